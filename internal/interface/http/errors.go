package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/minha-cantina/internal/application"
	"github.com/oksasatya/minha-cantina/internal/domain/apperr"
	"github.com/oksasatya/minha-cantina/pkg/response"
	"github.com/oksasatya/minha-cantina/pkg/validation"
)

type errorBody struct {
	Kind   string `json:"kind"`
	Entity string `json:"entity,omitempty"`
	Field  string `json:"field,omitempty"`
}

// respondError is the single place where failures become HTTP responses.
// Unexpected failures only ever show apperr.GenericMessage.
func respondError(c *gin.Context, logger *logrus.Logger, err error) {
	switch {
	case errors.Is(err, application.ErrInvalidCredentials):
		response.Error[any](c, http.StatusBadRequest, err.Error(), errorBody{Kind: "invalid_credentials"})
		return
	case errors.Is(err, application.ErrImageStorageDisabled):
		response.Error[any](c, http.StatusServiceUnavailable, err.Error(), nil)
		return
	}

	e, ok := apperr.As(err)
	if !ok {
		e = apperr.NewUnexpected("", err)
	}
	body := errorBody{Kind: e.Kind.String(), Entity: string(e.Entity), Field: e.Field}

	switch e.Kind {
	case apperr.Validation:
		response.Error[any](c, http.StatusBadRequest, e.Message, body)
	case apperr.Duplicate:
		response.Error[any](c, http.StatusConflict, e.Message, body)
	case apperr.NotFound:
		response.Error[any](c, http.StatusNotFound, e.Message, body)
	default:
		if logger != nil {
			logger.WithError(err).WithFields(logrus.Fields{
				"request_id": c.GetString(response.RequestIDKey),
				"path":       c.FullPath(),
			}).Error("request failed")
		}
		response.Error[any](c, http.StatusInternalServerError, apperr.GenericMessage, errorBody{Kind: apperr.Unexpected.String()})
	}
}

func respondBindError(c *gin.Context, err error) {
	response.Error[any](c, http.StatusBadRequest, "payload inválido", validation.ToDetails(err))
}

type idURI struct {
	ID int64 `uri:"id" binding:"id"`
}

func bindID(c *gin.Context) (int64, bool) {
	var p idURI
	if err := c.ShouldBindUri(&p); err != nil {
		respondBindError(c, err)
		return 0, false
	}
	return p.ID, true
}
