package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"eagle-studio/internal/credential"
	"eagle-studio/internal/export"
	"eagle-studio/internal/gemini"
	"eagle-studio/internal/mask"
	"eagle-studio/internal/media"
	"eagle-studio/internal/prompt"
	"eagle-studio/internal/schema"
	"eagle-studio/internal/studio"
	"eagle-studio/internal/workflow"
)

var errSessionNotFound = errors.New("session not found")

type apiError struct {
	Error  string              `json:"error"`
	Fields []schema.FieldError `json:"fields,omitempty"`
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	var (
		apiErr   *gemini.APIError
		preErr   *prompt.PreconditionError
		sceneErr *workflow.SceneSizeError
		artErr   *workflow.ArtifactError
		valErr   *schema.ValidationError
	)

	switch {
	case errors.Is(err, credential.ErrNotSet), errors.Is(err, workflow.ErrCredentialRequired):
		return http.StatusUnauthorized
	case errors.As(err, &preErr),
		errors.Is(err, workflow.ErrUnknownMode),
		errors.Is(err, workflow.ErrUnknownStep),
		errors.Is(err, mask.ErrBadSize),
		errors.Is(err, mask.ErrNoBase),
		errors.Is(err, media.ErrEmptyDataURL):
		return http.StatusBadRequest
	case errors.Is(err, workflow.ErrNotFound), errors.Is(err, errSessionNotFound), errors.Is(err, export.ErrNothingToExport):
		return http.StatusNotFound
	case errors.As(err, &sceneErr),
		errors.Is(err, workflow.ErrStale),
		errors.Is(err, workflow.ErrStepMismatch),
		errors.Is(err, workflow.ErrModeLocked),
		errors.Is(err, workflow.ErrNoMode),
		errors.Is(err, workflow.ErrForwardBlocked),
		errors.Is(err, workflow.ErrLastCanvas),
		errors.Is(err, studio.ErrBusy):
		return http.StatusConflict
	case errors.As(err, &artErr), errors.Is(err, credential.ErrInvalid):
		return http.StatusUnprocessableEntity
	case errors.As(err, &apiErr),
		errors.Is(err, schema.ErrMalformed),
		errors.Is(err, studio.ErrNoResult),
		errors.Is(err, gemini.ErrNoImage):
		return http.StatusBadGateway
	case errors.As(err, &valErr):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func abortError(c *gin.Context, status int, err error) {
	body := apiError{Error: err.Error()}
	var valErr *schema.ValidationError
	if errors.As(err, &valErr) {
		body.Fields = valErr.Errors
	}
	c.AbortWithStatusJSON(status, body)
}

// fail writes err with its mapped status. Server-side failures are logged.
func (s *Server) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "path", c.FullPath(), "session", c.Param("id"), "status", status, "err", err)
	} else {
		s.logger.Debug("request rejected", "path", c.FullPath(), "session", c.Param("id"), "status", status, "err", err)
	}
	abortError(c, status, err)
}

func badRequest(c *gin.Context, err error) {
	abortError(c, http.StatusBadRequest, err)
}
