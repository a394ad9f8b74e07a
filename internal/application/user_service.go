package application

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/minha-cantina/internal/domain/apperr"
	"github.com/oksasatya/minha-cantina/internal/domain/entity"
	repo "github.com/oksasatya/minha-cantina/internal/domain/repository"
	"github.com/oksasatya/minha-cantina/pkg/helpers"
	"github.com/oksasatya/minha-cantina/pkg/mailer"
	mailtpl "github.com/oksasatya/minha-cantina/pkg/mailer/templates"
)

// ErrInvalidCredentials is returned for an unknown handle and for a wrong
// credential alike, so callers cannot tell which one failed.
var ErrInvalidCredentials = errors.New("usuário e/ou senha estão incorretos")

// sessionTTL bounds the Redis session hash independently of token lifetimes.
const sessionTTL = 24 * time.Hour

// JobPublisher puts a JSON job on a queue.
type JobPublisher interface {
	PublishJSON(ctx context.Context, body any) error
}

// SignupNotice sends a staff notification for each new registration.
type SignupNotice struct {
	Jobs  JobPublisher
	To    string
	Brand mailtpl.Brand
}

type UserService struct {
	db          store
	JWT         *helpers.JWTManager
	Redis       *redis.Client
	Logger      *logrus.Logger
	Credentials helpers.CredentialScheme
	Notice      *SignupNotice
}

func NewUserService(gw repo.Gateway, jwt *helpers.JWTManager, rdb *redis.Client, logger *logrus.Logger, scheme helpers.CredentialScheme, notice *SignupNotice) *UserService {
	return &UserService{
		db:          newStore(gw, logger),
		JWT:         jwt,
		Redis:       rdb,
		Logger:      logger,
		Credentials: scheme,
		Notice:      notice,
	}
}

type RegisterInput struct {
	Name       string
	Handle     string
	Credential string
}

type TokenPair struct {
	AccessToken        string
	AccessTokenExpiry  time.Time
	RefreshToken       string
	RefreshTokenExpiry time.Time
}

type LoginResponse struct {
	UserID int64  `json:"user_id"`
	Name   string `json:"name"`
	Handle string `json:"username"`
}

func nowRFC3339() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

// Register checks the handle before staging anything, so a taken handle never
// reaches the store. A concurrent registration that slips past the check is
// still caught by the unique constraint at commit.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (*entity.User, error) {
	u, err := entity.NewUser(in.Name, in.Credential, in.Handle)
	if err != nil {
		return nil, err
	}
	found, err := s.db.gw.Users().FindByHandle(ctx, in.Handle)
	if err := s.db.taken(found, err, 0, apperr.EntityUser); err != nil {
		return nil, err
	}

	if s.Credentials.Hashes() {
		sealed, err := s.Credentials.Seal(in.Credential)
		if err != nil {
			return nil, s.db.report(apperr.NewUnexpected(apperr.EntityUser, err))
		}
		if u, err = entity.NewUser(in.Name, sealed, in.Handle); err != nil {
			return nil, err
		}
	}

	if err := s.db.commit(ctx, apperr.EntityUser, func(uow repo.UnitOfWork) { uow.Add(u) }); err != nil {
		return nil, err
	}
	s.notifySignup(ctx, u)
	return u, nil
}

func (s *UserService) notifySignup(ctx context.Context, u *entity.User) {
	if s.Notice == nil || s.Notice.Jobs == nil || s.Notice.To == "" {
		return
	}
	job := mailer.EmailJob{
		To:       s.Notice.To,
		Template: mailtpl.SignupNotification,
		Data:     mailtpl.NewSignupNotificationData(s.Notice.Brand, u.Name(), u.Handle(), s.Notice.To, mailtpl.WithTime(time.Now())),
	}
	c, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := s.Notice.Jobs.PublishJSON(c, job); err != nil && s.Logger != nil {
		s.Logger.WithError(err).WithField("user_id", u.ID()).Warn("enqueue signup notification failed")
	}
}

// Authenticate validates handle/credential and returns the user without issuing tokens.
func (s *UserService) Authenticate(ctx context.Context, handle, credential string) (*entity.User, error) {
	u, err := s.db.gw.Users().FindByHandle(ctx, handle)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, s.db.lookup(err, apperr.EntityUser)
	}
	if !s.Credentials.Matches(u.Credential(), credential) {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

// IssueTokens generates access/refresh tokens and records a session in Redis.
func (s *UserService) IssueTokens(ctx context.Context, u *entity.User) (TokenPair, error) {
	uid := strconv.FormatInt(u.ID(), 10)
	sid := uuid.NewString()
	pair, err := s.generatePair(uid, sid)
	if err != nil {
		if s.Logger != nil {
			s.Logger.WithError(err).WithField("user_id", uid).Error("generate tokens failed")
		}
		return TokenPair{}, err
	}

	if s.Redis != nil {
		fields := map[string]any{
			"user_id":    uid,
			"name":       u.Name(),
			"username":   u.Handle(),
			"sid":        sid,
			"logged_in":  true,
			"created_at": nowRFC3339(),
		}
		key := helpers.SessionKey(uid)
		pipe := s.Redis.Pipeline()
		pipe.HSet(ctx, key, fields)
		pipe.Expire(ctx, key, sessionTTL)
		if _, rErr := pipe.Exec(ctx); rErr != nil && s.Logger != nil {
			s.Logger.WithError(rErr).WithField("key", key).Warn("redis pipeline failed")
		}
	}
	return pair, nil
}

func (s *UserService) generatePair(uid, sid string) (TokenPair, error) {
	access, aexp, err := s.JWT.GenerateAccessToken(uid, sid)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, rexp, err := s.JWT.GenerateRefreshToken(uid, sid)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{AccessToken: access, AccessTokenExpiry: aexp, RefreshToken: refresh, RefreshTokenExpiry: rexp}, nil
}

func (s *UserService) Login(ctx context.Context, handle, credential string) (*LoginResponse, TokenPair, error) {
	u, err := s.Authenticate(ctx, handle, credential)
	if err != nil {
		return nil, TokenPair{}, err
	}
	pair, err := s.IssueTokens(ctx, u)
	if err != nil {
		return nil, TokenPair{}, err
	}
	return &LoginResponse{UserID: u.ID(), Name: u.Name(), Handle: u.Handle()}, pair, nil
}

// Refresh rotates the session id and both tokens. The refresh token must
// carry the session id currently stored in Redis.
func (s *UserService) Refresh(ctx context.Context, refreshToken string) (TokenPair, int64, error) {
	claims, err := s.JWT.ParseRefreshToken(refreshToken)
	if err != nil {
		return TokenPair{}, 0, ErrInvalidCredentials
	}
	id, err := strconv.ParseInt(claims.UserID, 10, 64)
	if err != nil {
		return TokenPair{}, 0, ErrInvalidCredentials
	}
	if _, err := s.db.gw.Users().FindByID(ctx, id); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return TokenPair{}, 0, ErrInvalidCredentials
		}
		return TokenPair{}, 0, s.db.lookup(err, apperr.EntityUser)
	}

	key := helpers.SessionKey(claims.UserID)
	if s.Redis != nil {
		current, rErr := s.Redis.HGet(ctx, key, "sid").Result()
		if rErr != nil || current != claims.SessionID {
			return TokenPair{}, 0, ErrInvalidCredentials
		}
	}

	sid := uuid.NewString()
	pair, err := s.generatePair(claims.UserID, sid)
	if err != nil {
		return TokenPair{}, 0, err
	}
	if s.Redis != nil {
		pipe := s.Redis.Pipeline()
		pipe.HSet(ctx, key, map[string]any{
			"sid":        sid,
			"updated_at": nowRFC3339(),
		})
		pipe.Expire(ctx, key, sessionTTL)
		if _, rErr := pipe.Exec(ctx); rErr != nil && s.Logger != nil {
			s.Logger.WithError(rErr).WithField("key", key).Warn("redis pipeline failed")
		}
	}
	return pair, id, nil
}

// Logout drops the Redis session; tokens issued for it stop passing the auth middleware.
func (s *UserService) Logout(ctx context.Context, userID int64) error {
	if s.Redis == nil {
		return nil
	}
	return helpers.RedisDel(ctx, s.Redis, helpers.SessionKey(strconv.FormatInt(userID, 10)))
}

func (s *UserService) Profile(ctx context.Context, userID int64) (*entity.User, error) {
	u, err := s.db.gw.Users().FindByID(ctx, userID)
	if err != nil {
		return nil, s.db.lookup(err, apperr.EntityUser)
	}
	return u, nil
}
