package studio

import (
	"context"
	"time"

	"eagle-studio/internal/batch"
	"eagle-studio/internal/continuity"
	"eagle-studio/internal/media"
	"eagle-studio/internal/prompt"
	"eagle-studio/internal/workflow"
)

// FrameInput selects a storyboard frame to render. Previous, when set, replaces the frame's natural
// predecessor as the continuity reference.
type FrameInput struct {
	ShotID   string
	Previous *media.Image
}

// RenderShot generates the image of one storyboard frame with its continuity chain attached. The
// result is written only if no newer request for the frame was issued meanwhile.
func (s *Service) RenderShot(ctx context.Context, sess *workflow.Session, in FrameInput) (media.Image, error) {
	chain, err := continuity.Build(continuity.Input{
		Mode:     sess.Mode(),
		ShotID:   in.ShotID,
		Data:     sess.Data(),
		Previous: in.Previous,
	})
	if err != nil {
		return media.Image{}, err
	}
	req, err := prompt.Render(prompt.RenderInput{
		Instruction: chain.Instruction,
		Attachments: chain.Attachments,
		Size:        s.size,
	})
	if err != nil {
		return media.Image{}, err
	}

	ticket, err := sess.Begin(workflow.KindShot, in.ShotID)
	if err != nil {
		return media.Image{}, err
	}
	start := time.Now()
	img, err := s.image(ctx, req)
	if err != nil {
		s.logger.Warn("frame render failed", "session", sess.ID(), "shot", in.ShotID, "err", err)
		return media.Image{}, err
	}
	if err := s.settle(sess, ticket, func() error { return sess.ApplyShotImage(ticket, img) }); err != nil {
		return media.Image{}, err
	}
	s.logger.Info("frame rendered", "session", sess.ID(), "shot", in.ShotID, "gen", ticket.Gen,
		"refs", len(chain.Attachments), "dur_ms", time.Since(start).Milliseconds())
	return img, nil
}

// RenderStoryboard renders every frame that has no image yet, in paced concurrent chunks.
func (s *Service) RenderStoryboard(ctx context.Context, sess *workflow.Session, onProgress func(batch.Progress)) (batch.Report, error) {
	return s.renderFrames(ctx, sess, sess.Data().PendingShots("", true), s.storyboard, onProgress)
}

// RenderScene renders the pending frames of one scene one after another, so every frame can chain
// from the frame rendered just before it.
func (s *Service) RenderScene(ctx context.Context, sess *workflow.Session, sceneID string, onProgress func(batch.Progress)) (batch.Report, error) {
	return s.renderFrames(ctx, sess, sess.Data().PendingShots(sceneID, false), s.scene, onProgress)
}

func (s *Service) renderFrames(ctx context.Context, sess *workflow.Session, ids []string, opts batch.Options, onProgress func(batch.Progress)) (batch.Report, error) {
	release, err := s.claim(sess)
	if err != nil {
		return batch.Report{}, err
	}
	defer release()

	items := make([]batch.Item, len(ids))
	for i, id := range ids {
		items[i] = batch.Item{ID: id, Run: func(ctx context.Context) error {
			_, err := s.RenderShot(ctx, sess, FrameInput{ShotID: id})
			return err
		}}
	}
	opts.OnProgress = onProgress
	report := batch.Run(ctx, items, opts)
	s.logger.Info("storyboard batch finished", "session", sess.ID(), "total", len(items),
		"succeeded", report.Succeeded, "failed", report.Failed)
	return report, nil
}

// EditInput is a user revision of a generated image. Mask is the PNG produced by the mask canvas;
// without it the whole image is open to change.
type EditInput struct {
	ID          string
	Instruction string
	Reference   *media.Image
	Mask        *media.Image
}

// EditShot revises a generated frame. On failure the frame keeps its previous image.
func (s *Service) EditShot(ctx context.Context, sess *workflow.Session, in EditInput) (media.Image, error) {
	shot, ok := sess.Data().Shot(in.ID)
	if !ok {
		return media.Image{}, workflow.ErrNotFound
	}
	var source media.Image
	if shot.Image != nil {
		source = *shot.Image
	}
	req, err := prompt.Edit(prompt.EditInput{
		Source:      source,
		Instruction: in.Instruction,
		Reference:   in.Reference,
		Mask:        in.Mask,
		Size:        s.size,
	})
	if err != nil {
		return media.Image{}, err
	}

	ticket, err := sess.Begin(workflow.KindShot, in.ID)
	if err != nil {
		return media.Image{}, err
	}
	img, err := s.image(ctx, req)
	if err != nil {
		s.logger.Warn("frame edit failed", "session", sess.ID(), "shot", in.ID, "err", err)
		return media.Image{}, err
	}
	if err := s.settle(sess, ticket, func() error { return sess.ApplyShotImage(ticket, img) }); err != nil {
		return media.Image{}, err
	}
	s.logger.Info("frame edited", "session", sess.ID(), "shot", in.ID, "masked", in.Mask != nil)
	return img, nil
}
