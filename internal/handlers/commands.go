package handlers

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"eagle-studio/internal/batch"
	"eagle-studio/internal/credential"
	"eagle-studio/internal/export"
	"eagle-studio/internal/media"
	"eagle-studio/internal/studio"
	"eagle-studio/internal/telegram"
	"eagle-studio/internal/workflow"
)

const (
	textChooseMode     = "Choose a studio mode:"
	textDownloadFailed = "Could not download the file from Telegram. Please send it again."

	helpText = "Eagle Studio\n\n" +
		"/key <credential> - store the API key\n" +
		"/forget - remove the stored key\n" +
		"/mode <reference|creative|amazon|plot|storefront> - pick a workflow\n" +
		"/status - where you are\n" +
		"/back - previous step\n" +
		"/restart - start over\n" +
		"/plan [main sec aplus] - listing slot plan\n" +
		"/brief <text> - brief for the current step\n" +
		"/more - continue the plot script\n" +
		"/render - run the current step\n" +
		"/zip - download everything generated\n\n" +
		"Send product photos (one or an album) to anchor the product. Any other text goes to the assistant."
)

func (h *Handler) handleCommand(ctx context.Context, msg *telegram.Message) error {
	chatID := msg.Chat.ID
	args := strings.TrimSpace(msg.CommandArguments())

	switch msg.Command() {
	case "start":
		return h.sendModeMenu(chatID, fromID(msg), "Welcome to Eagle Studio.\n\n"+textChooseMode)
	case "help":
		return h.tg.SendText(chatID, helpText)
	case "key":
		return h.setKey(ctx, chatID, args)
	case "forget":
		if err := h.creds.Clear(ctx); err != nil {
			return h.fail(chatID, "forget", err)
		}
		return h.tg.SendText(chatID, "API key removed.")
	case "mode":
		if args == "" {
			return h.sendModeMenu(chatID, fromID(msg), textChooseMode)
		}
		return h.selectMode(ctx, chatID, args)
	case "back":
		return h.back(chatID)
	case "restart":
		h.session(chatID).Restart()
		h.sessions.ClearHistory(sessionKey(chatID))
		return h.sendModeMenu(chatID, fromID(msg), "Session cleared.\n\n"+textChooseMode)
	case "status":
		return h.tg.SendText(chatID, h.status(ctx, h.session(chatID)))
	case "plan":
		return h.plan(chatID, args)
	case "brief":
		return h.brief(ctx, chatID, args)
	case "render":
		return h.render(ctx, chatID)
	case "more":
		return h.extendPlot(ctx, chatID)
	case "zip":
		return h.zip(ctx, chatID)
	default:
		return h.tg.SendText(chatID, "Unknown command. /help lists what I can do.")
	}
}

func fromID(msg *telegram.Message) int64 {
	if msg.From == nil {
		return 0
	}
	return msg.From.ID
}

func (h *Handler) setKey(ctx context.Context, chatID int64, value string) error {
	key, err := credential.Validate(value)
	if err != nil {
		return h.fail(chatID, "key", err)
	}
	if err := h.creds.Set(ctx, key); err != nil {
		return h.fail(chatID, "key", err)
	}
	return h.tg.SendText(chatID, "API key stored: "+credential.Mask(key))
}

func (h *Handler) selectMode(ctx context.Context, chatID int64, name string) error {
	mode, err := workflow.ParseMode(name)
	if err != nil {
		return h.fail(chatID, "mode", err)
	}
	sess := h.session(chatID)
	if err := sess.SelectMode(ctx, h.creds, mode); err != nil {
		return h.fail(chatID, "mode", err)
	}
	h.logger.Info("mode selected", "session", sess.ID(), "mode", mode)
	return h.sendStepGuide(chatID, sess)
}

func (h *Handler) back(chatID int64) error {
	sess := h.session(chatID)
	st := sess.Snapshot()
	idx := -1
	for _, s := range st.Steps {
		if s.Current {
			idx = s.Index
		}
	}
	if idx < 0 {
		return h.fail(chatID, "back", workflow.ErrNoMode)
	}
	if idx == 0 {
		return h.tg.SendText(chatID, "Already at the first step.")
	}
	if err := sess.Retreat(st.Steps[idx-1].Step); err != nil {
		return h.fail(chatID, "back", err)
	}
	return h.sendStepGuide(chatID, sess)
}

func (h *Handler) plan(chatID int64, args string) error {
	sess := h.session(chatID)
	if step, _ := sess.Step(); step != workflow.StepAmazonConfig {
		return h.tg.SendText(chatID, "/plan works at the listing plan step of amazon mode.")
	}

	cfg, err := parsePlan(args)
	if err != nil {
		return h.tg.SendText(chatID, "Usage: /plan <main> <secondary> <aplus>, for example /plan 1 6 4")
	}
	plan, err := h.studio.PlanAmazon(sess, cfg)
	if err != nil {
		return h.fail(chatID, "plan", err)
	}
	if err := h.advance(sess, workflow.StepAmazonConfig); err != nil {
		return h.fail(chatID, "plan", err)
	}
	_ = h.tg.SendText(chatID, fmt.Sprintf("Plan ready: %d slots.", len(plan)))
	return h.sendStepGuide(chatID, sess)
}

func parsePlan(args string) (workflow.PlanConfig, error) {
	cfg := workflow.DefaultPlanConfig()
	fields := strings.Fields(args)
	if len(fields) == 0 {
		return cfg, nil
	}
	if len(fields) != 3 {
		return cfg, fmt.Errorf("want 3 counts, got %d", len(fields))
	}
	counts := make([]int, 3)
	for i, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil {
			return cfg, err
		}
		counts[i] = n
	}
	cfg.Main, cfg.Secondary, cfg.APlus = counts[0], counts[1], counts[2]
	return cfg, nil
}

func (h *Handler) brief(ctx context.Context, chatID int64, text string) error {
	sess := h.session(chatID)
	step, ok := sess.Step()
	if !ok {
		return h.sendModeMenu(chatID, 0, textChooseMode)
	}
	if text == "" && sess.Mode() != workflow.ModeAmazon {
		return h.tg.SendText(chatID, "Usage: /brief <text>")
	}

	h.tg.SendTyping(chatID)
	switch {
	case step == workflow.StepProductAnchoring && sess.Mode() == workflow.ModeCreative:
		if err := sess.Update(func(d *workflow.Data) error {
			d.Product.Brief = text
			return nil
		}); err != nil {
			return h.fail(chatID, "brief", err)
		}
		if err := h.advance(sess, workflow.StepProductAnchoring); err != nil {
			return h.fail(chatID, "brief", err)
		}
		return h.writeCreativeScript(ctx, chatID, sess, text)

	case step == workflow.StepCreativeScript:
		return h.writeCreativeScript(ctx, chatID, sess, text)

	case step == workflow.StepAmazonBrief:
		plan, err := h.studio.BriefAmazon(ctx, sess, text)
		if err != nil {
			return h.fail(chatID, "brief", err)
		}
		if err := h.advance(sess, workflow.StepAmazonBrief); err != nil {
			return h.fail(chatID, "brief", err)
		}
		_ = h.tg.SendText(chatID, formatPlan(plan))
		return h.sendStepGuide(chatID, sess)

	case step == workflow.StepScriptBrainstorm:
		proposal, err := h.studio.ProposePlot(ctx, sess, text)
		if err != nil {
			return h.fail(chatID, "proposal", err)
		}
		_ = h.tg.SendText(chatID, fmt.Sprintf("%s\n\n%s\n\n%s", proposal.FilmTitle, proposal.DirectorConcept, proposal.NarrativeArc))
		shots, err := h.studio.BrainstormPlot(ctx, sess)
		if err != nil {
			return h.fail(chatID, "plot storyboard", err)
		}
		if err := h.advance(sess, workflow.StepScriptBrainstorm); err != nil {
			return h.fail(chatID, "plot storyboard", err)
		}
		_ = h.tg.SendText(chatID, formatShots(shots))
		return h.sendStepGuide(chatID, sess)

	case sess.Mode() == workflow.ModeStorefront:
		if _, err := h.studio.UpdateDesign(sess, parseDesign(text, sess.Data().Storefront)); err != nil {
			return h.fail(chatID, "storefront", err)
		}
		return h.tg.SendText(chatID, "Storefront brief saved. /render draws logos and banners.")
	}

	return h.tg.SendText(chatID, "There is nothing to brief at step "+stepLabel(step)+".")
}

// parseDesign reads "brand | category | notes". Missing fields keep their current value.
func parseDesign(text string, current workflow.StorefrontDesign) studio.DesignInput {
	in := studio.DesignInput{BrandName: current.BrandName, Category: current.Category, Notes: current.Notes}
	parts := strings.SplitN(text, "|", 3)
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	switch len(parts) {
	case 1:
		in.BrandName = parts[0]
	case 2:
		in.BrandName, in.Category = parts[0], parts[1]
	default:
		in.BrandName, in.Category, in.Notes = parts[0], parts[1], parts[2]
	}
	return in
}

// writeCreativeScript brainstorms a shot structure, remaps it into final prompts and stores the
// storyboard.
func (h *Handler) writeCreativeScript(ctx context.Context, chatID int64, sess *workflow.Session, brief string) error {
	h.tg.SendTyping(chatID)
	if _, err := h.studio.BrainstormShots(ctx, sess, brief); err != nil {
		return h.fail(chatID, "brainstorm", err)
	}
	shots, err := h.studio.RemapPrompts(ctx, sess)
	if err != nil {
		return h.fail(chatID, "remap", err)
	}
	if err := h.advance(sess, workflow.StepCreativeScript); err != nil {
		return h.fail(chatID, "script", err)
	}
	_ = h.tg.SendText(chatID, formatShots(shots))
	return h.sendStepGuide(chatID, sess)
}

func (h *Handler) render(ctx context.Context, chatID int64) error {
	sess := h.session(chatID)
	step, ok := sess.Step()
	if !ok {
		return h.sendModeMenu(chatID, 0, textChooseMode)
	}
	action, ok := h.steps[step]
	if !ok {
		return h.sendStepGuide(chatID, sess)
	}
	h.logger.Info("render", "session", sess.ID(), "step", step)
	return action(ctx, chatID, sess)
}

// extendPlot appends more frames to the plot storyboard. They are drawn by the next /render at the
// storyboard step.
func (h *Handler) extendPlot(ctx context.Context, chatID int64) error {
	sess := h.session(chatID)
	if sess.Mode() != workflow.ModePlot {
		return h.tg.SendText(chatID, "/more continues a plot script. Pick /mode plot first.")
	}
	h.tg.SendTyping(chatID)
	added, err := h.studio.ExtendPlot(ctx, sess)
	if err != nil {
		return h.fail(chatID, "plot storyboard", err)
	}
	return h.tg.SendText(chatID, formatShots(added))
}

func (h *Handler) zip(ctx context.Context, chatID int64) error {
	sess := h.session(chatID)
	data, err := export.Bundle(sess.Data())
	if err != nil {
		return h.fail(chatID, "export", err)
	}
	name := export.BundleName(sess.Mode(), time.Now().Unix())

	caption := ""
	if h.sink != nil {
		location, err := h.sink.Put(ctx, name, data, "application/zip")
		if err != nil {
			h.logger.Warn("export sink failed", "session", sess.ID(), "err", err)
		} else {
			caption = "Saved to " + location
		}
	}
	return h.tg.SendDocument(chatID, name, data, caption)
}

// progressReporter edits one status message as a batch settles.
func (h *Handler) progressReporter(chatID int64, label string) func(batch.Progress) {
	msgID, err := h.tg.SendStatus(chatID, fmt.Sprintf("%s: starting", label))
	if err != nil {
		return nil
	}
	return func(p batch.Progress) {
		_ = h.tg.EditText(chatID, msgID, fmt.Sprintf("%s: %d/%d (%d%%), %d failed", label, p.Done, p.Total, p.Percent(), p.Failed))
	}
}

func (h *Handler) sendImages(chatID int64, images []media.Image, caption func(int) string) {
	for i, img := range images {
		if err := h.tg.SendImage(chatID, img, caption(i)); err != nil {
			h.logger.Warn("send image failed", "chat", chatID, "err", err)
		}
	}
}
