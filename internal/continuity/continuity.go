// Package continuity decides which earlier artifacts travel with a storyboard frame request.
package continuity

import (
	"errors"
	"fmt"

	"eagle-studio/internal/media"
	"eagle-studio/internal/prompt"
	"eagle-studio/internal/workflow"
)

const (
	LabelProduct     = "PRODUCT REFERENCE:"
	LabelEnvironment = "BACKGROUND ENVIRONMENT ANCHOR:"
	LabelPrevious    = "CONTINUITY PREVIOUS FRAME:"
)

var ErrUnknownShot = errors.New("shot is not in the storyboard")

func CharacterLabel(name string) string {
	return fmt.Sprintf("CHARACTER IDENTITY [Name: %s]:", name)
}

// Input is everything the builder reads. It never mutates it.
type Input struct {
	Mode   workflow.Mode
	ShotID string
	Data   workflow.Data
	// Previous replaces the natural same-scene predecessor, e.g. for an inserted in-between frame.
	Previous *media.Image
}

type Chain struct {
	Attachments []prompt.Attachment
	Instruction string
}

// Labels lists attachment labels in order.
func (c Chain) Labels() []string {
	out := make([]string, len(c.Attachments))
	for i, a := range c.Attachments {
		out[i] = a.Label
	}
	return out
}

// Build orders the attachments: product reference, environment anchor, previous frame (plot mode
// only), then every roster character that has an identity render. All characters go with every
// frame regardless of who appears in the shot.
func Build(in Input) (Chain, error) {
	shot, ok := in.Data.Shot(in.ShotID)
	if !ok {
		return Chain{}, ErrUnknownShot
	}

	var chain Chain
	add := func(label string, img *media.Image) {
		if img == nil || img.IsZero() {
			return
		}
		chain.Attachments = append(chain.Attachments, prompt.Attachment{Label: label, Image: *img})
	}

	add(LabelProduct, in.Data.Product.Reference())

	if shot.EnvironmentID != "" {
		if env, ok := in.Data.Environment(shot.EnvironmentID); ok {
			add(LabelEnvironment, env.Anchor)
		}
	}

	if in.Mode == workflow.ModePlot {
		switch {
		case in.Previous != nil && !in.Previous.IsZero():
			add(LabelPrevious, in.Previous)
		default:
			if prev, ok := in.Data.Predecessor(shot.ID); ok && prev.Generated() {
				add(LabelPrevious, prev.Image)
			}
		}
	}

	var roster []workflow.PlotCharacter
	if in.Mode == workflow.ModePlot {
		roster = in.Data.Characters
		for _, c := range roster {
			add(CharacterLabel(c.Name), c.IdentityAnchor())
		}
	}

	scene := shot.FinalPrompt
	if scene == "" {
		scene = shot.SubjectAction
	}
	chain.Instruction = prompt.Fidelity(scene, prompt.RosterStyle(roster))
	return chain, nil
}
