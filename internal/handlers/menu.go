package handlers

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"eagle-studio/internal/credential"
	"eagle-studio/internal/telegram"
	"eagle-studio/internal/workflow"
)

const callbackPrefix = "st"

var modeButtons = []struct {
	Mode  workflow.Mode
	Label string
}{
	{workflow.ModeReference, "Reference video"},
	{workflow.ModeCreative, "Creative brief"},
	{workflow.ModeAmazon, "Amazon listing"},
	{workflow.ModePlot, "Plot film"},
	{workflow.ModeStorefront, "Storefront"},
}

var stepGuides = map[workflow.Step]string{
	workflow.StepProductAnchoring:    "Send product photos. In creative mode add your idea as the caption or with /brief.",
	workflow.StepVideoAnalysis:       "Send the reference video to copy its shot structure.",
	workflow.StepCreativeScript:      "Send /brief <idea> to rewrite the script.",
	workflow.StepPromptRemapping:     "Prompts are being remapped.",
	workflow.StepStoryboarding:       "Send /render to draw every pending frame.",
	workflow.StepVideoPrompts:        "Send /render to write video prompts again, or /zip to download.",
	workflow.StepAmazonConfig:        "Send /plan <main> <secondary> <aplus>, or /plan for 1 6 4.",
	workflow.StepAmazonBrief:         "Send /brief <listing notes> to write the slot prompts.",
	workflow.StepAmazonVisuals:       "Send /render to generate every pending slot.",
	workflow.StepCharacterAnchor:     "Send reference photos of a character with the name as caption, then /render.",
	workflow.StepCharacterTurnaround: "Send /render to draw the missing turnarounds.",
	workflow.StepScriptBrainstorm:    "Send /brief <story idea> to draft the film.",
	workflow.StepEnvironmentAnchor:   "Send /render to paint every location.",
	workflow.StepCharacterOutfit:     "Send /render to continue.",
	workflow.StepPlotStoryboard:      "Send /render to draw the storyboard scene by scene.",
	workflow.StepPlotFinalPrompts:    "Send /render to rewrite transitions, or /zip to download.",
	workflow.StepStorefrontConfig:    "Send /brief <brand> | <category> | <notes>, an optional logo photo, then /render.",
}

func callbackData(owner int64, action string, args ...string) string {
	parts := append([]string{callbackPrefix, strconv.FormatInt(owner, 10), action}, args...)
	return strings.Join(parts, ":")
}

func modeKeyboard(owner int64) telegram.InlineKeyboard {
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, b := range modeButtons {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(b.Label, callbackData(owner, "mode", string(b.Mode))),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// sendModeMenu shows the mode keyboard. Owner 0 falls back to plain text since nobody could
// claim the buttons.
func (h *Handler) sendModeMenu(chatID, owner int64, text string) error {
	if owner == 0 {
		return h.tg.SendText(chatID, text+" /mode <reference|creative|amazon|plot|storefront>")
	}
	_, err := h.tg.SendTextWithKeyboard(chatID, text, modeKeyboard(owner))
	return err
}

func (h *Handler) handleCallback(ctx context.Context, q *telegram.CallbackQuery) error {
	if q == nil || q.Message == nil || q.From == nil {
		return nil
	}
	parts := strings.Split(strings.TrimSpace(q.Data), ":")
	if len(parts) < 3 || parts[0] != callbackPrefix {
		return nil
	}

	owner, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return nil
	}
	if owner != q.From.ID {
		return h.tg.AnswerCallback(q.ID, "This menu belongs to someone else.", true)
	}

	chatID := q.Message.Chat.ID
	switch parts[2] {
	case "mode":
		if len(parts) < 4 {
			return nil
		}
		mode, err := workflow.ParseMode(parts[3])
		if err != nil {
			return h.tg.AnswerCallback(q.ID, userMessage(err), true)
		}
		sess := h.session(chatID)
		if err := sess.SelectMode(ctx, h.creds, mode); err != nil {
			return h.tg.AnswerCallback(q.ID, userMessage(err), true)
		}
		h.logger.Info("mode selected", "session", sess.ID(), "mode", mode)
		_ = h.tg.AnswerCallback(q.ID, "", false)
		_ = h.tg.EditText(chatID, q.Message.MessageID, "Mode: "+string(mode))
		return h.sendStepGuide(chatID, sess)
	}
	return nil
}

func (h *Handler) sendStepGuide(chatID int64, sess *workflow.Session) error {
	step, ok := sess.Step()
	if !ok {
		return h.sendModeMenu(chatID, 0, textChooseMode)
	}
	return h.tg.SendText(chatID, fmt.Sprintf("Step: %s\n%s", stepLabel(step), stepGuides[step]))
}

func stepLabel(step workflow.Step) string {
	if step == "" {
		return "none"
	}
	return strings.ReplaceAll(string(step), "_", " ")
}

func (h *Handler) status(ctx context.Context, sess *workflow.Session) string {
	var b strings.Builder
	if key, err := h.creds.Get(ctx); err == nil && key != "" {
		fmt.Fprintf(&b, "Key: %s\n", credential.Mask(key))
	} else {
		b.WriteString("Key: not set (/key)\n")
	}

	st := sess.Snapshot()
	if st.Mode == "" {
		b.WriteString("Mode: none")
		return b.String()
	}
	fmt.Fprintf(&b, "Mode: %s\n\n", st.Mode)
	for _, s := range st.Steps {
		mark := "  "
		switch {
		case s.Current:
			mark = "> "
		case s.Ready:
			mark = "+ "
		}
		fmt.Fprintf(&b, "%s%d. %s\n", mark, s.Index+1, stepLabel(s.Step))
	}

	d := st.Data
	generated := 0
	for _, s := range d.Shots {
		if s.Generated() {
			generated++
		}
	}
	if len(d.Shots) > 0 {
		fmt.Fprintf(&b, "\nFrames: %d/%d drawn", generated, len(d.Shots))
	}
	if len(d.AmazonSlots) > 0 {
		pending := len(d.PendingSlots())
		fmt.Fprintf(&b, "\nSlots: %d/%d drawn", len(d.AmazonSlots)-pending, len(d.AmazonSlots))
	}
	if len(d.Characters) > 0 {
		fmt.Fprintf(&b, "\nCharacters: %d", len(d.Characters))
	}
	if h.studio.Busy(sess) {
		b.WriteString("\nA batch is running.")
	}
	return b.String()
}

func formatStructure(shots []workflow.ShotStructure) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Shot structure (%d shots):\n", len(shots))
	for i, s := range shots {
		fmt.Fprintf(&b, "\n%d. [%s] %s, %s\n%s\n", i+1, s.Timestamp, s.ShotType, s.CameraMovement, s.SubjectAction)
	}
	return b.String()
}

func formatShots(shots []workflow.RemappedShot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Storyboard (%d frames):\n", len(shots))
	scene := ""
	for i, s := range shots {
		if s.SceneTitle != "" && s.SceneID != scene {
			scene = s.SceneID
			fmt.Fprintf(&b, "\n== %s ==\n", s.SceneTitle)
		}
		fmt.Fprintf(&b, "\n%d. %s\n", i+1, s.FinalPrompt)
	}
	return b.String()
}

func formatPlan(plan workflow.AmazonPlan) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Listing plan (%d slots):\n", len(plan))
	for _, s := range plan {
		fmt.Fprintf(&b, "\n%s %s: %s\n", s.Type, s.Size, s.Prompt)
	}
	return b.String()
}
