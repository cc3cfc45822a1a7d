package studio

import (
	"context"
	"fmt"
	"strings"

	"eagle-studio/internal/media"
	"eagle-studio/internal/prompt"
	"eagle-studio/internal/schema"
	"eagle-studio/internal/workflow"
)

// AnchorProduct extracts the fidelity token from the product images and stores the anchor. A
// creative brief, when given, is kept alongside it.
func (s *Service) AnchorProduct(ctx context.Context, sess *workflow.Session, images []media.Image, brief string) (workflow.ProductAnchor, error) {
	req, err := prompt.FeatureExtraction(images)
	if err != nil {
		return workflow.ProductAnchor{}, err
	}
	token, err := s.text(ctx, req)
	if err != nil {
		return workflow.ProductAnchor{}, err
	}

	anchor := workflow.ProductAnchor{
		Token:  strings.TrimSpace(token),
		Images: append([]media.Image(nil), images...),
		Brief:  strings.TrimSpace(brief),
	}
	if err := sess.Update(func(d *workflow.Data) error {
		d.Product = anchor
		return nil
	}); err != nil {
		return workflow.ProductAnchor{}, err
	}
	s.logger.Info("product anchored", "session", sess.ID(), "images", len(images))
	return anchor, nil
}

// AnalyzeVideo deconstructs a reference video into a shot structure.
func (s *Service) AnalyzeVideo(ctx context.Context, sess *workflow.Session, video media.Image) ([]workflow.ShotStructure, error) {
	req, err := prompt.StructureAnalysis(video)
	if err != nil {
		return nil, err
	}
	return s.structure(ctx, sess, req)
}

// BrainstormShots writes a shot structure from the product token and the creative brief.
func (s *Service) BrainstormShots(ctx context.Context, sess *workflow.Session, brief string) ([]workflow.ShotStructure, error) {
	d := sess.Data()
	if strings.TrimSpace(brief) == "" {
		brief = d.Product.Brief
	}
	req, err := prompt.CreativeBrainstorm(d.Product.Token, brief)
	if err != nil {
		return nil, err
	}
	return s.structure(ctx, sess, req)
}

func (s *Service) structure(ctx context.Context, sess *workflow.Session, req prompt.Request) ([]workflow.ShotStructure, error) {
	shots, err := decode[[]workflow.ShotStructure](ctx, s, req)
	if err != nil {
		return nil, err
	}
	for i := range shots {
		if err := schema.Struct(fmt.Sprintf("shot[%d]", i), shots[i]); err != nil {
			return nil, err
		}
	}
	if err := sess.Update(func(d *workflow.Data) error {
		d.Structure = shots
		return nil
	}); err != nil {
		return nil, err
	}
	return shots, nil
}

type remapResult struct {
	Prompts []string `json:"prompts"`
}

// RemapPrompts writes one final prompt per structured shot and rebuilds the storyboard. Prompts
// the model left out are filled with a generic product shot, so the result always has one shot per
// structure entry.
func (s *Service) RemapPrompts(ctx context.Context, sess *workflow.Session) ([]workflow.RemappedShot, error) {
	d := sess.Data()
	req, err := prompt.Remap(d.Product.Token, d.Structure)
	if err != nil {
		return nil, err
	}
	res, err := decode[remapResult](ctx, s, req)
	if err != nil {
		return nil, err
	}

	shots := workflow.NewShots("shot", d.Structure)
	for i := range shots {
		if i < len(res.Prompts) && strings.TrimSpace(res.Prompts[i]) != "" {
			shots[i].FinalPrompt = strings.TrimSpace(res.Prompts[i])
			continue
		}
		shots[i].FinalPrompt = prompt.RemapFallback(d.Product.Token, shots[i].ShotStructure)
	}
	if len(res.Prompts) != len(shots) {
		s.logger.Warn("remap returned a different prompt count", "session", sess.ID(), "want", len(shots), "got", len(res.Prompts))
	}

	if err := sess.Update(func(d *workflow.Data) error {
		d.Shots = shots
		return nil
	}); err != nil {
		return nil, err
	}
	return shots, nil
}

// VideoPrompts writes one video prompt per storyboard shot, falling back to a template for shots
// the model skipped.
func (s *Service) VideoPrompts(ctx context.Context, sess *workflow.Session) (workflow.VideoScript, error) {
	d := sess.Data()
	req, err := prompt.VideoPrompts(d.Product.Token, d.Shots)
	if err != nil {
		return nil, err
	}
	prompts, err := decode[[]string](ctx, s, req)
	if err != nil {
		return nil, err
	}

	script := make(workflow.VideoScript, len(d.Shots))
	for i, shot := range d.Shots {
		if i < len(prompts) && strings.TrimSpace(prompts[i]) != "" {
			script[i] = strings.TrimSpace(prompts[i])
			continue
		}
		script[i] = prompt.VideoFallback(d.Product.Token, shot)
	}

	ids := make([]string, len(d.Shots))
	for i, shot := range d.Shots {
		ids[i] = shot.ID
	}
	if err := sess.Update(func(d *workflow.Data) error {
		for i, id := range ids {
			for j := range d.Shots {
				if d.Shots[j].ID == id {
					d.Shots[j].VideoPrompt = script[i]
				}
			}
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return script, nil
}
