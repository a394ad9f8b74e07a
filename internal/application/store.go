package application

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/oksasatya/minha-cantina/internal/domain/apperr"
	"github.com/oksasatya/minha-cantina/internal/domain/entity"
	repo "github.com/oksasatya/minha-cantina/internal/domain/repository"
)

// store pairs a gateway with the classifier built from its duplicate signal.
type store struct {
	gw     repo.Gateway
	cls    apperr.Classifier
	logger *logrus.Logger
}

func newStore(gw repo.Gateway, logger *logrus.Logger) store {
	return store{gw: gw, cls: apperr.Classifier{IsDuplicate: gw.IsDuplicate}, logger: logger}
}

// commit stages changes on a fresh unit of work and classifies the outcome.
func (s store) commit(ctx context.Context, ent apperr.Entity, stage func(uow repo.UnitOfWork)) error {
	uow := s.gw.Begin()
	stage(uow)
	err := uow.Commit(ctx)
	if errors.Is(err, repo.ErrNotFound) {
		return apperr.NewNotFound(ent)
	}
	return s.report(s.cls.Classify(err, ent))
}

// lookup maps a finder error onto the taxonomy.
func (s store) lookup(err error, ent apperr.Entity) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, repo.ErrNotFound) {
		return apperr.NewNotFound(ent)
	}
	return s.report(apperr.NewUnexpected(ent, err))
}

// taken turns a find-by-unique-key result into a Duplicate when another
// aggregate already holds the key. selfID is 0 for new aggregates.
func (s store) taken(found entity.Aggregate, err error, selfID int64, ent apperr.Entity) error {
	switch {
	case errors.Is(err, repo.ErrNotFound):
		return nil
	case err != nil:
		return s.report(apperr.NewUnexpected(ent, err))
	case found.ID() != selfID:
		return apperr.NewDuplicate(ent)
	default:
		return nil
	}
}

func (s store) report(err error) error {
	e, ok := apperr.As(err)
	if !ok || e.Kind != apperr.Unexpected || s.logger == nil {
		return err
	}
	s.logger.WithError(e.Err).WithField("entity", e.Entity).Error("unexpected persistence failure")
	return err
}
