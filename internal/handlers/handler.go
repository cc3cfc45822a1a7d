// Package handlers is the Telegram surface of the studio. Each chat owns one wizard session keyed by
// its chat id; commands move the wizard and run the generation work of the current step.
package handlers

import (
	"context"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"eagle-studio/internal/credential"
	"eagle-studio/internal/export"
	"eagle-studio/internal/media"
	"eagle-studio/internal/mediagroup"
	"eagle-studio/internal/session"
	"eagle-studio/internal/studio"
	"eagle-studio/internal/telegram"
	"eagle-studio/internal/workflow"
)

// Messenger is the part of the Telegram client the handler talks to.
type Messenger interface {
	SendText(chatID int64, text string) error
	SendStatus(chatID int64, text string) (int, error)
	SendTextWithKeyboard(chatID int64, text string, kb telegram.InlineKeyboard) (int, error)
	EditText(chatID int64, messageID int, text string) error
	AnswerCallback(callbackID, text string, alert bool) error
	SendImage(chatID int64, img media.Image, caption string) error
	SendDocument(chatID int64, name string, data []byte, caption string) error
	SendTyping(chatID int64)
	DownloadImage(ctx context.Context, fileID string) (media.Image, error)
}

type Options struct {
	Telegram    Messenger
	Studio      *studio.Service
	Sessions    *session.Store
	Credentials credential.Store
	// Sink receives a copy of every /zip bundle when set.
	Sink export.Sink
	// RequestTimeout bounds one model call and every update other than /render.
	RequestTimeout time.Duration
	Logger         *slog.Logger
}

type Handler struct {
	tg         Messenger
	studio     *studio.Service
	sessions   *session.Store
	creds      credential.Store
	sink       export.Sink
	timeout    time.Duration
	logger     *slog.Logger
	aggregator *mediagroup.Aggregator
	steps      map[workflow.Step]stepAction
}

func New(opts Options) *Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = 180 * time.Second
	}

	h := &Handler{
		tg:       opts.Telegram,
		studio:   opts.Studio,
		sessions: opts.Sessions,
		creds:    opts.Credentials,
		sink:     opts.Sink,
		timeout:  timeout,
		logger:   logger,
	}
	h.steps = h.renderActions()
	return h
}

func (h *Handler) SetMediaGroupAggregator(ag *mediagroup.Aggregator) {
	h.aggregator = ag
}

// bound limits ctx to the request timeout.
func (h *Handler) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, h.timeout)
}

// HandleUpdate dispatches one update. /render runs whole batches and is not bounded as a unit; its
// model calls carry their own deadlines.
func (h *Handler) HandleUpdate(ctx context.Context, update telegram.Update) error {
	if msg := update.Message; msg == nil || !msg.IsCommand() || msg.Command() != "render" {
		var cancel context.CancelFunc
		ctx, cancel = h.bound(ctx)
		defer cancel()
	}
	if update.CallbackQuery != nil {
		return h.handleCallback(ctx, update.CallbackQuery)
	}
	if update.Message == nil {
		return nil
	}

	msg := update.Message
	chatID := msg.Chat.ID

	switch {
	case msg.IsCommand():
		return h.handleCommand(ctx, msg)
	case len(msg.Photo) > 0:
		return h.handlePhoto(ctx, msg)
	case msg.Document != nil && strings.HasPrefix(msg.Document.MimeType, "image/"):
		return h.processPhotos(ctx, chatID, msg.Caption, []string{msg.Document.FileID})
	case msg.Video != nil:
		return h.handleVideo(ctx, chatID, msg.Video.FileID)
	case strings.TrimSpace(msg.Text) != "":
		return h.handleText(ctx, chatID, msg.Text)
	}
	return nil
}

// HandleAlbum processes a debounced media group as one upload.
func (h *Handler) HandleAlbum(ctx context.Context, album mediagroup.Album) {
	ctx, cancel := h.bound(ctx)
	defer cancel()
	if err := h.processPhotos(ctx, album.ChatID, album.Caption, album.FileIDs); err != nil {
		h.logger.Error("album processing failed", "chat", album.ChatID, "err", err)
	}
}

func (h *Handler) session(chatID int64) *workflow.Session {
	return h.sessions.GetOrCreate(sessionKey(chatID))
}

func sessionKey(chatID int64) string {
	return strconv.FormatInt(chatID, 10)
}

func (h *Handler) handleText(ctx context.Context, chatID int64, text string) error {
	h.tg.SendTyping(chatID)

	answer, err := h.studio.Ask(ctx, sessionKey(chatID), strings.TrimSpace(text))
	if err != nil {
		return h.fail(chatID, "assistant", err)
	}
	return h.tg.SendText(chatID, answer)
}

func (h *Handler) handlePhoto(ctx context.Context, msg *telegram.Message) error {
	fileID := msg.Photo[len(msg.Photo)-1].FileID

	if msg.MediaGroupID != "" && h.aggregator != nil {
		if h.aggregator.Add(mediagroup.Item{
			ChatID:       msg.Chat.ID,
			MediaGroupID: msg.MediaGroupID,
			Caption:      msg.Caption,
			FileID:       fileID,
		}) {
			return nil
		}
	}
	return h.processPhotos(ctx, msg.Chat.ID, msg.Caption, []string{fileID})
}

// processPhotos routes uploaded images by mode: product anchor, plot character references or the
// storefront logo reference.
func (h *Handler) processPhotos(ctx context.Context, chatID int64, caption string, fileIDs []string) error {
	sess := h.session(chatID)
	mode := sess.Mode()
	if mode == "" {
		return h.sendModeMenu(chatID, 0, textChooseMode)
	}
	step, _ := sess.Step()

	h.tg.SendTyping(chatID)
	images, err := h.download(ctx, fileIDs)
	if err != nil {
		h.logger.Error("photo download failed", "chat", chatID, "err", err)
		return h.tg.SendText(chatID, textDownloadFailed)
	}
	caption = strings.TrimSpace(caption)

	switch {
	case mode == workflow.ModePlot && step == workflow.StepCharacterAnchor:
		c, err := h.studio.CreateCharacter(ctx, sess, studio.CharacterInput{Name: caption, References: images})
		if err != nil {
			return h.fail(chatID, "character", err)
		}
		return h.tg.SendText(chatID, "Character added: "+c.Name+"\nSend more reference photos or /render to build turnarounds.")

	case mode == workflow.ModeStorefront:
		d := sess.Data().Storefront
		use := true
		if _, err := h.studio.UpdateDesign(sess, studio.DesignInput{
			BrandName:     d.BrandName,
			Category:      d.Category,
			Notes:         d.Notes,
			LogoReference: images[0].Ptr(),
			UseLogoAnchor: &use,
		}); err != nil {
			return h.fail(chatID, "storefront", err)
		}
		return h.tg.SendText(chatID, "Logo reference saved. /render draws logos and banners.")

	case step == workflow.StepProductAnchoring:
		return h.anchorProduct(ctx, chatID, sess, images, caption)
	}

	return h.tg.SendText(chatID, "Photos are not used at step "+stepLabel(step)+". Use /back to return to the upload step.")
}

func (h *Handler) anchorProduct(ctx context.Context, chatID int64, sess *workflow.Session, images []media.Image, brief string) error {
	anchor, err := h.studio.AnchorProduct(ctx, sess, images, brief)
	if err != nil {
		return h.fail(chatID, "anchor", err)
	}
	_ = h.tg.SendText(chatID, "Product locked:\n"+anchor.Token)

	if sess.Mode() == workflow.ModeCreative && anchor.Brief == "" {
		return h.tg.SendText(chatID, "Now send /brief <your idea> to write the script.")
	}
	if err := h.advance(sess, workflow.StepProductAnchoring); err != nil {
		return h.fail(chatID, "anchor", err)
	}
	if sess.Mode() == workflow.ModeCreative {
		return h.writeCreativeScript(ctx, chatID, sess, anchor.Brief)
	}
	return h.sendStepGuide(chatID, sess)
}

func (h *Handler) handleVideo(ctx context.Context, chatID int64, fileID string) error {
	sess := h.session(chatID)
	if step, _ := sess.Step(); step != workflow.StepVideoAnalysis {
		return h.tg.SendText(chatID, "A reference video is analysed only in reference mode, after the product photos.")
	}

	h.tg.SendTyping(chatID)
	video, err := h.tg.DownloadImage(ctx, fileID)
	if err != nil {
		h.logger.Error("video download failed", "chat", chatID, "err", err)
		return h.tg.SendText(chatID, textDownloadFailed)
	}

	shots, err := h.studio.AnalyzeVideo(ctx, sess, video)
	if err != nil {
		return h.fail(chatID, "analysis", err)
	}
	if err := h.advance(sess, workflow.StepVideoAnalysis); err != nil {
		return h.fail(chatID, "analysis", err)
	}
	_ = h.tg.SendText(chatID, formatStructure(shots))

	if _, err := h.studio.RemapPrompts(ctx, sess); err != nil {
		return h.fail(chatID, "remap", err)
	}
	if err := h.advance(sess, workflow.StepPromptRemapping); err != nil {
		return h.fail(chatID, "remap", err)
	}
	return h.sendStepGuide(chatID, sess)
}

func (h *Handler) download(ctx context.Context, fileIDs []string) ([]media.Image, error) {
	images := make([]media.Image, len(fileIDs))
	eg, egCtx := errgroup.WithContext(ctx)
	for i, fileID := range fileIDs {
		eg.Go(func() error {
			img, err := h.tg.DownloadImage(egCtx, fileID)
			if err != nil {
				return err
			}
			images[i] = img
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return images, nil
}

// advance stores what step holds and moves past it.
func (h *Handler) advance(sess *workflow.Session, step workflow.Step) error {
	out, err := sess.Output(step)
	if err != nil {
		return err
	}
	_, err = sess.Advance(step, out)
	return err
}
