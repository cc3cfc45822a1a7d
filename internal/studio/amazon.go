package studio

import (
	"context"
	"fmt"

	"eagle-studio/internal/batch"
	"eagle-studio/internal/media"
	"eagle-studio/internal/prompt"
	"eagle-studio/internal/schema"
	"eagle-studio/internal/workflow"
)

// PlanAmazon replaces the listing plan with fresh slots built from cfg.
func (s *Service) PlanAmazon(sess *workflow.Session, cfg workflow.PlanConfig) (workflow.AmazonPlan, error) {
	if err := schema.Struct("plan", cfg); err != nil {
		return nil, err
	}
	plan := workflow.NewAmazonPlan(cfg)
	if plan.Empty() {
		return nil, &workflow.ArtifactError{Step: workflow.StepAmazonConfig, Err: workflow.ErrEmptyArtifact, Reason: "plan has no slots"}
	}
	if err := sess.Update(func(d *workflow.Data) error {
		d.AmazonSlots = plan
		return nil
	}); err != nil {
		return nil, err
	}
	return plan, nil
}

// BriefAmazon asks for a prompt and a final prompt per slot and merges them by slot id.
func (s *Service) BriefAmazon(ctx context.Context, sess *workflow.Session, notes string) (workflow.AmazonPlan, error) {
	d := sess.Data()
	req, err := prompt.AmazonBrief(d.Product.Token, d.AmazonSlots, notes)
	if err != nil {
		return nil, err
	}
	updates, err := decode[[]workflow.BriefUpdate](ctx, s, req)
	if err != nil {
		return nil, err
	}
	for i := range updates {
		if err := schema.Struct(fmt.Sprintf("brief[%d]", i), updates[i]); err != nil {
			return nil, err
		}
	}

	var merged []workflow.AmazonImageConfig
	if err := sess.Update(func(d *workflow.Data) error {
		d.ListingNotes = notes
		d.AmazonSlots = workflow.MergeBrief(d.AmazonSlots, updates)
		merged = d.AmazonSlots
		return nil
	}); err != nil {
		return nil, err
	}
	return workflow.AmazonPlan(merged), nil
}

// RenderAmazonSlot generates the image of one listing slot at the slot's aspect ratio.
func (s *Service) RenderAmazonSlot(ctx context.Context, sess *workflow.Session, id string) (media.Image, error) {
	d := sess.Data()
	slot, ok := d.Slot(id)
	if !ok {
		return media.Image{}, workflow.ErrNotFound
	}
	var product media.Image
	if ref := d.Product.Reference(); ref != nil {
		product = *ref
	}
	req, err := prompt.AmazonRender(product, slot, s.size)
	if err != nil {
		return media.Image{}, err
	}

	ticket, err := sess.Begin(workflow.KindSlot, id)
	if err != nil {
		return media.Image{}, err
	}
	img, err := s.image(ctx, req)
	if err != nil {
		s.logger.Warn("listing render failed", "session", sess.ID(), "slot", id, "err", err)
		return media.Image{}, err
	}
	if err := s.settle(sess, ticket, func() error { return sess.ApplySlotImage(ticket, img) }); err != nil {
		return media.Image{}, err
	}
	s.logger.Info("listing asset rendered", "session", sess.ID(), "slot", id, "gen", ticket.Gen, "aspect", req.Image.AspectRatio)
	return img, nil
}

// RenderAmazon renders every briefed slot without an image in paced chunks.
func (s *Service) RenderAmazon(ctx context.Context, sess *workflow.Session, onProgress func(batch.Progress)) (batch.Report, error) {
	release, err := s.claim(sess)
	if err != nil {
		return batch.Report{}, err
	}
	defer release()

	ids := sess.Data().PendingSlots()
	items := make([]batch.Item, len(ids))
	for i, id := range ids {
		items[i] = batch.Item{ID: id, Run: func(ctx context.Context) error {
			_, err := s.RenderAmazonSlot(ctx, sess, id)
			return err
		}}
	}
	opts := s.amazon
	opts.OnProgress = onProgress
	report := batch.Run(ctx, items, opts)
	s.logger.Info("listing batch finished", "session", sess.ID(), "total", len(items),
		"succeeded", report.Succeeded, "failed", report.Failed)
	return report, nil
}

// EditAmazonSlot revises a listing asset with the product photo attached. On failure the slot keeps
// its previous image.
func (s *Service) EditAmazonSlot(ctx context.Context, sess *workflow.Session, in EditInput) (media.Image, error) {
	d := sess.Data()
	slot, ok := d.Slot(in.ID)
	if !ok {
		return media.Image{}, workflow.ErrNotFound
	}
	var source media.Image
	if slot.Image != nil {
		source = *slot.Image
	}
	product := in.Reference
	if product == nil {
		product = d.Product.Reference()
	}
	req, err := prompt.AmazonEdit(prompt.AmazonEditInput{
		Source:      source,
		Instruction: in.Instruction,
		Product:     product,
		Mask:        in.Mask,
		Size:        s.size,
	})
	if err != nil {
		return media.Image{}, err
	}

	ticket, err := sess.Begin(workflow.KindSlot, in.ID)
	if err != nil {
		return media.Image{}, err
	}
	img, err := s.image(ctx, req)
	if err != nil {
		s.logger.Warn("listing edit failed", "session", sess.ID(), "slot", in.ID, "err", err)
		return media.Image{}, err
	}
	if err := s.settle(sess, ticket, func() error { return sess.ApplySlotImage(ticket, img) }); err != nil {
		return media.Image{}, err
	}
	return img, nil
}
