package workflow

import (
	"errors"
	"fmt"
)

var (
	ErrCredentialRequired = errors.New("an API credential is required before choosing a mode")
	ErrUnknownMode        = errors.New("unknown workflow mode")
	ErrModeLocked         = errors.New("mode already selected; restart to change it")
	ErrNoMode             = errors.New("no mode selected")
	ErrUnknownStep        = errors.New("step is not part of the active mode")
	ErrStepMismatch       = errors.New("step is not the current step")
	ErrForwardBlocked     = errors.New("an earlier step has no output yet")
	ErrEmptyArtifact      = errors.New("step produced no output")
	ErrArtifactKind       = errors.New("artifact does not belong to this step")
	ErrNotFound           = errors.New("entity not found")
	ErrLastCanvas         = errors.New("at least one storefront canvas is required")
	ErrStale              = errors.New("response belongs to a superseded request")
)

// SceneSizeError is returned when a delete would leave a scene without a start and an end frame.
type SceneSizeError struct {
	SceneID string
	Frames  int
}

func (e *SceneSizeError) Error() string {
	scene := e.SceneID
	if scene == "" {
		scene = "storyboard"
	}
	return fmt.Sprintf("cannot delete frame: %s has %d frames and every transition needs at least %d", scene, e.Frames, minSceneFrames)
}

// ArtifactError explains why a step refused an artifact.
type ArtifactError struct {
	Step   Step
	Reason string
	Err    error
}

func (e *ArtifactError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("%s: %v", e.Step, e.Err)
	}
	return fmt.Sprintf("%s: %v: %s", e.Step, e.Err, e.Reason)
}

func (e *ArtifactError) Unwrap() error {
	return e.Err
}
