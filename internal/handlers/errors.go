package handlers

import (
	"context"
	"errors"
	"fmt"

	"eagle-studio/internal/credential"
	"eagle-studio/internal/export"
	"eagle-studio/internal/gemini"
	"eagle-studio/internal/prompt"
	"eagle-studio/internal/schema"
	"eagle-studio/internal/studio"
	"eagle-studio/internal/workflow"
)

// fail logs err and answers with its user-facing text. Only a failed send is returned.
func (h *Handler) fail(chatID int64, op string, err error) error {
	level := h.logger.Warn
	var apiErr *gemini.APIError
	if errors.As(err, &apiErr) {
		level = h.logger.Error
	}
	level("bot operation failed", "chat", chatID, "op", op, "err", err)
	return h.tg.SendText(chatID, userMessage(err))
}

func userMessage(err error) string {
	var (
		apiErr   *gemini.APIError
		preErr   *prompt.PreconditionError
		sceneErr *workflow.SceneSizeError
		artErr   *workflow.ArtifactError
		valErr   *schema.ValidationError
	)

	switch {
	case errors.Is(err, credential.ErrNotSet), errors.Is(err, workflow.ErrCredentialRequired):
		return "An API key is required. Send /key <your key> first."
	case errors.Is(err, credential.ErrInvalid):
		return "That does not look like an API key. It must start with AIza."
	case errors.Is(err, workflow.ErrUnknownMode):
		return "Unknown mode. Pick one of: reference, creative, amazon, plot, storefront."
	case errors.Is(err, workflow.ErrModeLocked):
		return "A mode is already active. Send /restart to switch."
	case errors.Is(err, workflow.ErrNoMode):
		return "No mode selected yet. Send /mode."
	case errors.Is(err, workflow.ErrStepMismatch), errors.Is(err, workflow.ErrUnknownStep):
		return "That action belongs to another step. /status shows where you are."
	case errors.Is(err, workflow.ErrForwardBlocked):
		return "An earlier step is not finished yet."
	case errors.Is(err, studio.ErrBusy):
		return "A batch is already running. Wait for it to finish."
	case errors.Is(err, export.ErrNothingToExport):
		return "Nothing has been generated yet."
	case errors.As(err, &sceneErr):
		return sceneErr.Error()
	case errors.As(err, &preErr):
		return fmt.Sprintf("Missing input: %s.", preErr.Field)
	case errors.As(err, &artErr):
		return "This step is not complete: " + artErr.Error()
	case errors.As(err, &valErr), errors.Is(err, schema.ErrMalformed), errors.Is(err, studio.ErrNoResult), errors.Is(err, gemini.ErrNoImage):
		return "The model returned an unusable answer. Please try again."
	case errors.As(err, &apiErr):
		if apiErr.Status == 401 || apiErr.Status == 403 {
			return "The API key was rejected. Send /key with a working key."
		}
		return fmt.Sprintf("The generation service failed (%d). Please try again later.", apiErr.Status)
	case errors.Is(err, context.DeadlineExceeded):
		return "The request timed out. Please try again."
	}
	return "Something went wrong. Please try again."
}
