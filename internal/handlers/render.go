package handlers

import (
	"context"
	"fmt"
	"strings"

	"eagle-studio/internal/media"
	"eagle-studio/internal/workflow"
)

// stepAction runs the generation work of one step for /render.
type stepAction func(ctx context.Context, chatID int64, sess *workflow.Session) error

func (h *Handler) renderActions() map[workflow.Step]stepAction {
	return map[workflow.Step]stepAction{
		workflow.StepStoryboarding:       h.renderStoryboard,
		workflow.StepVideoPrompts:        h.writeVideoPrompts,
		workflow.StepAmazonConfig:        func(_ context.Context, chatID int64, _ *workflow.Session) error { return h.plan(chatID, "") },
		workflow.StepAmazonBrief:         h.rewriteBrief,
		workflow.StepAmazonVisuals:       h.renderListing,
		workflow.StepCharacterAnchor:     h.lockRoster,
		workflow.StepCharacterTurnaround: h.renderTurnarounds,
		workflow.StepEnvironmentAnchor:   h.renderEnvironments,
		workflow.StepCharacterOutfit:     h.renderOutfits,
		workflow.StepPlotStoryboard:      h.renderStoryboard,
		workflow.StepPlotFinalPrompts:    h.writeTransitions,
		workflow.StepStorefrontConfig:    h.renderStorefront,
	}
}

func (h *Handler) rewriteBrief(ctx context.Context, chatID int64, sess *workflow.Session) error {
	ctx, cancel := h.bound(ctx)
	defer cancel()
	return h.brief(ctx, chatID, sess.Data().ListingNotes)
}

func (h *Handler) renderStoryboard(ctx context.Context, chatID int64, sess *workflow.Session) error {
	report, err := h.studio.RenderStoryboard(ctx, sess, h.progressReporter(chatID, "Storyboard"))
	if err != nil {
		return h.fail(chatID, "storyboard", err)
	}

	d := sess.Data()
	for i, shot := range d.Shots {
		if shot.Generated() {
			if err := h.tg.SendImage(chatID, *shot.Image, fmt.Sprintf("%d. %s", i+1, shot.SubjectAction)); err != nil {
				h.logger.Warn("send image failed", "chat", chatID, "shot", shot.ID, "err", err)
			}
		}
	}
	if failed := report.FailedIDs(); len(failed) > 0 {
		return h.tg.SendText(chatID, fmt.Sprintf("%d frames failed: %s\nRun /render again to retry them.", len(failed), strings.Join(failed, ", ")))
	}

	step, _ := sess.Step()
	if err := h.advance(sess, step); err != nil {
		return h.fail(chatID, "storyboard", err)
	}
	if sess.Mode() == workflow.ModePlot {
		return h.writeTransitions(ctx, chatID, sess)
	}
	return h.writeVideoPrompts(ctx, chatID, sess)
}

func (h *Handler) writeVideoPrompts(ctx context.Context, chatID int64, sess *workflow.Session) error {
	h.tg.SendTyping(chatID)
	ctx, cancel := h.bound(ctx)
	defer cancel()
	script, err := h.studio.VideoPrompts(ctx, sess)
	if err != nil {
		return h.fail(chatID, "video prompts", err)
	}
	if _, err := sess.Advance(workflow.StepVideoPrompts, script); err != nil {
		return h.fail(chatID, "video prompts", err)
	}

	var b strings.Builder
	b.WriteString("Video prompts:\n")
	for i, p := range script {
		fmt.Fprintf(&b, "\n%d. %s\n", i+1, p)
	}
	b.WriteString("\n/zip downloads the storyboard.")
	return h.tg.SendText(chatID, b.String())
}

func (h *Handler) writeTransitions(ctx context.Context, chatID int64, sess *workflow.Session) error {
	h.tg.SendTyping(chatID)
	ctx, cancel := h.bound(ctx)
	defer cancel()
	out, err := h.studio.PlotVideoPrompts(ctx, sess)
	if err != nil {
		return h.fail(chatID, "transitions", err)
	}
	if _, err := sess.Advance(workflow.StepPlotFinalPrompts, workflow.TransitionSet(out)); err != nil {
		return h.fail(chatID, "transitions", err)
	}

	var b strings.Builder
	b.WriteString("Transition prompts:\n")
	for _, t := range out {
		fmt.Fprintf(&b, "\n%s -> %s\n%s\n", t.StartShotID, t.EndShotID, t.Prompt)
	}
	return h.tg.SendText(chatID, b.String())
}

func (h *Handler) renderListing(ctx context.Context, chatID int64, sess *workflow.Session) error {
	report, err := h.studio.RenderAmazon(ctx, sess, h.progressReporter(chatID, "Listing"))
	if err != nil {
		return h.fail(chatID, "listing", err)
	}

	for _, slot := range sess.Data().AmazonSlots {
		if slot.Generated() {
			if err := h.tg.SendImage(chatID, *slot.Image, fmt.Sprintf("%s %s", slot.Type, slot.Size)); err != nil {
				h.logger.Warn("send image failed", "chat", chatID, "slot", slot.ID, "err", err)
			}
		}
	}
	if failed := report.FailedIDs(); len(failed) > 0 {
		return h.tg.SendText(chatID, fmt.Sprintf("%d slots failed: %s\nRun /render again to retry them.", len(failed), strings.Join(failed, ", ")))
	}
	if err := h.advance(sess, workflow.StepAmazonVisuals); err != nil {
		return h.fail(chatID, "listing", err)
	}
	return h.tg.SendText(chatID, "Listing complete. /zip downloads every asset.")
}

func (h *Handler) lockRoster(ctx context.Context, chatID int64, sess *workflow.Session) error {
	if err := h.advance(sess, workflow.StepCharacterAnchor); err != nil {
		return h.fail(chatID, "characters", err)
	}
	return h.renderTurnarounds(ctx, chatID, sess)
}

func (h *Handler) renderTurnarounds(ctx context.Context, chatID int64, sess *workflow.Session) error {
	for _, c := range sess.Data().Characters {
		if c.Turnaround != nil {
			continue
		}
		h.tg.SendTyping(chatID)
		callCtx, cancel := h.bound(ctx)
		img, err := h.studio.RenderTurnaround(callCtx, sess, c.ID)
		cancel()
		if err != nil {
			return h.fail(chatID, "turnaround", err)
		}
		h.sendImage(chatID, img, c.Name)
	}
	if err := h.advance(sess, workflow.StepCharacterTurnaround); err != nil {
		return h.fail(chatID, "turnaround", err)
	}
	return h.sendStepGuide(chatID, sess)
}

func (h *Handler) renderEnvironments(ctx context.Context, chatID int64, sess *workflow.Session) error {
	for _, env := range sess.Data().Environments {
		if env.Anchor != nil {
			continue
		}
		h.tg.SendTyping(chatID)
		callCtx, cancel := h.bound(ctx)
		img, err := h.studio.RenderEnvironment(callCtx, sess, env.ID)
		cancel()
		if err != nil {
			return h.fail(chatID, "environment", err)
		}
		h.sendImage(chatID, img, env.Name)
	}
	if err := h.advance(sess, workflow.StepEnvironmentAnchor); err != nil {
		return h.fail(chatID, "environment", err)
	}
	return h.sendStepGuide(chatID, sess)
}

// renderOutfits dresses only characters with a selected costume; the step itself is optional.
func (h *Handler) renderOutfits(ctx context.Context, chatID int64, sess *workflow.Session) error {
	for _, c := range sess.Data().Characters {
		if c.SelectedCostume == nil {
			continue
		}
		h.tg.SendTyping(chatID)
		callCtx, cancel := h.bound(ctx)
		img, err := h.studio.RenderOutfit(callCtx, sess, c.ID)
		cancel()
		if err != nil {
			return h.fail(chatID, "outfit", err)
		}
		h.sendImage(chatID, img, c.Name+": "+c.SelectedCostume.Name)
	}
	if err := h.advance(sess, workflow.StepCharacterOutfit); err != nil {
		return h.fail(chatID, "outfit", err)
	}
	return h.sendStepGuide(chatID, sess)
}

func (h *Handler) renderStorefront(ctx context.Context, chatID int64, sess *workflow.Session) error {
	h.tg.SendTyping(chatID)
	callCtx, cancel := h.bound(ctx)
	logos, err := h.studio.GenerateLogos(callCtx, sess)
	cancel()
	if err != nil {
		return h.fail(chatID, "logos", err)
	}
	h.sendImages(chatID, logos, func(i int) string { return fmt.Sprintf("Logo %d", i+1) })

	for _, canvas := range sess.Data().Storefront.Canvases {
		h.tg.SendTyping(chatID)
		callCtx, cancel := h.bound(ctx)
		imgs, err := h.studio.RenderCanvas(callCtx, sess, canvas.ID)
		cancel()
		if err != nil {
			return h.fail(chatID, "banner", err)
		}
		h.sendImages(chatID, imgs, func(i int) string {
			return fmt.Sprintf("%dx%d option %d", canvas.Width, canvas.Height, i+1)
		})
	}
	if err := h.advance(sess, workflow.StepStorefrontConfig); err != nil {
		return h.fail(chatID, "storefront", err)
	}
	return h.tg.SendText(chatID, "Storefront drafts ready. /zip downloads them.")
}

func (h *Handler) sendImage(chatID int64, img media.Image, caption string) {
	h.sendImages(chatID, []media.Image{img}, func(int) string { return caption })
}
