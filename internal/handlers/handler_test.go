package handlers

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eagle-studio/internal/batch"
	"eagle-studio/internal/credential"
	"eagle-studio/internal/gemini"
	"eagle-studio/internal/media"
	"eagle-studio/internal/prompt"
	"eagle-studio/internal/retry"
	"eagle-studio/internal/schema"
	"eagle-studio/internal/session"
	"eagle-studio/internal/studio"
	"eagle-studio/internal/telegram"
	"eagle-studio/internal/workflow"
)

const (
	testChat  int64 = 42
	testOwner int64 = 7
)

type sentDocument struct {
	name    string
	data    []byte
	caption string
}

type fakeMessenger struct {
	mu        sync.Mutex
	texts     []string
	keyboards []telegram.InlineKeyboard
	images    []string
	documents []sentDocument
	answers   []string
	downloads map[string]media.Image
}

func newFakeMessenger() *fakeMessenger {
	return &fakeMessenger{downloads: map[string]media.Image{}}
}

func (f *fakeMessenger) SendText(_ int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, text)
	return nil
}

func (f *fakeMessenger) SendStatus(chatID int64, text string) (int, error) {
	return 1, f.SendText(chatID, text)
}

func (f *fakeMessenger) SendTextWithKeyboard(chatID int64, text string, kb telegram.InlineKeyboard) (int, error) {
	f.mu.Lock()
	f.keyboards = append(f.keyboards, kb)
	f.mu.Unlock()
	return 2, f.SendText(chatID, text)
}

func (f *fakeMessenger) EditText(_ int64, _ int, text string) error {
	return nil
}

func (f *fakeMessenger) AnswerCallback(_ string, text string, _ bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answers = append(f.answers, text)
	return nil
}

func (f *fakeMessenger) SendImage(_ int64, _ media.Image, caption string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.images = append(f.images, caption)
	return nil
}

func (f *fakeMessenger) SendDocument(_ int64, name string, data []byte, caption string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.documents = append(f.documents, sentDocument{name: name, data: data, caption: caption})
	return nil
}

func (f *fakeMessenger) SendTyping(int64) {}

func (f *fakeMessenger) DownloadImage(_ context.Context, fileID string) (media.Image, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	img, ok := f.downloads[fileID]
	if !ok {
		return media.Image{}, errors.New("file not found")
	}
	return img, nil
}

func (f *fakeMessenger) lastText() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.texts) == 0 {
		return ""
	}
	return f.texts[len(f.texts)-1]
}

func (f *fakeMessenger) allText() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return strings.Join(f.texts, "\n---\n")
}

type fakeGen struct {
	text map[prompt.Kind]string
	json map[prompt.Kind]string

	mu sync.Mutex
	// deadlines records, per call kind, whether the call's context had a deadline.
	deadlines map[prompt.Kind][]bool
}

func (f *fakeGen) sawDeadline(ctx context.Context, kind prompt.Kind) {
	_, ok := ctx.Deadline()
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deadlines == nil {
		f.deadlines = map[prompt.Kind][]bool{}
	}
	f.deadlines[kind] = append(f.deadlines[kind], ok)
}

func (f *fakeGen) Generate(_ context.Context, req prompt.Request) (gemini.Response, error) {
	return gemini.Response{Text: f.text[req.Kind]}, nil
}

func (f *fakeGen) GenerateJSON(ctx context.Context, req prompt.Request, out any) error {
	f.sawDeadline(ctx, req.Kind)
	raw, ok := f.json[req.Kind]
	if !ok {
		return &gemini.APIError{Status: 400, Body: "unscripted " + string(req.Kind)}
	}
	return req.Schema.Decode(raw, out)
}

func (f *fakeGen) GenerateImage(ctx context.Context, req prompt.Request) (media.Image, error) {
	f.sawDeadline(ctx, req.Kind)
	return pngImage(), nil
}

func (f *fakeGen) Chat(_ context.Context, history []gemini.Message, _ prompt.Request) (gemini.Response, error) {
	return gemini.Response{Text: fmt.Sprintf("answer after %d messages", len(history))}, nil
}

func pngImage() media.Image {
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	_ = png.Encode(&buf, img)
	return media.New(buf.Bytes(), "image/png")
}

func noSleep(context.Context, time.Duration) error { return nil }

type fixture struct {
	h     *Handler
	tg    *fakeMessenger
	gen   *fakeGen
	creds *credential.MemoryStore
	store *session.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gen := &fakeGen{text: map[prompt.Kind]string{}, json: map[prompt.Kind]string{}}
	store := session.NewStore(session.Options{MaxMessages: 10})
	svc := studio.New(studio.Options{
		Generator:  gen,
		History:    store,
		Retry:      retry.Policy{Retries: 1, Delay: time.Millisecond},
		Storyboard: batch.Options{Concurrency: 2, Pace: time.Millisecond, Sleep: noSleep},
		Amazon:     batch.Options{Concurrency: 4, Pace: time.Millisecond, Sleep: noSleep},
		Scene:      batch.Options{Pace: time.Millisecond, Sleep: noSleep},
	})
	tg := newFakeMessenger()
	creds := credential.NewMemoryStore()
	h := New(Options{Telegram: tg, Studio: svc, Sessions: store, Credentials: creds})
	return &fixture{h: h, tg: tg, gen: gen, creds: creds, store: store}
}

func command(text string) telegram.Update {
	name := strings.SplitN(text, " ", 2)[0]
	return telegram.Update{Message: &tgbotapi.Message{
		Text:     text,
		Chat:     &tgbotapi.Chat{ID: testChat},
		From:     &tgbotapi.User{ID: testOwner},
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(name)}},
	}}
}

func photo(fileID, caption string) telegram.Update {
	return telegram.Update{Message: &tgbotapi.Message{
		Caption: caption,
		Chat:    &tgbotapi.Chat{ID: testChat},
		From:    &tgbotapi.User{ID: testOwner},
		Photo:   []tgbotapi.PhotoSize{{FileID: fileID + "-small"}, {FileID: fileID}},
	}}
}

func (fx *fixture) send(t *testing.T, u telegram.Update) {
	t.Helper()
	require.NoError(t, fx.h.HandleUpdate(context.Background(), u))
}

func TestStart_ShowsModeKeyboard(t *testing.T) {
	fx := newFixture(t)
	fx.send(t, command("/start"))

	require.Len(t, fx.tg.keyboards, 1)
	rows := fx.tg.keyboards[0].InlineKeyboard
	require.Len(t, rows, len(modeButtons))
	require.NotNil(t, rows[0][0].CallbackData)
	assert.Equal(t, "st:7:mode:reference", *rows[0][0].CallbackData)
}

func TestMode_RequiresKey(t *testing.T) {
	fx := newFixture(t)
	fx.send(t, command("/mode amazon"))
	assert.Contains(t, fx.tg.lastText(), "/key")
	assert.Equal(t, workflow.Mode(""), fx.h.session(testChat).Mode())
}

func TestKey_ValidatesAndMasks(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	fx.send(t, command("/key sk-wrong"))
	assert.Contains(t, fx.tg.lastText(), "AIza")
	assert.False(t, credential.Present(ctx, fx.creds))

	fx.send(t, command("/key AIzaSyTestKey1234"))
	assert.Contains(t, fx.tg.lastText(), "AIza")
	assert.NotContains(t, fx.tg.lastText(), "TestKey")
	assert.True(t, credential.Present(ctx, fx.creds))

	fx.send(t, command("/forget"))
	assert.False(t, credential.Present(ctx, fx.creds))
}

func TestCallback_OwnerOnly(t *testing.T) {
	fx := newFixture(t)
	require.NoError(t, fx.creds.Set(context.Background(), "AIzaKey"))

	cb := func(from int64) telegram.Update {
		return telegram.Update{CallbackQuery: &tgbotapi.CallbackQuery{
			ID:      "cb",
			From:    &tgbotapi.User{ID: from},
			Message: &tgbotapi.Message{MessageID: 5, Chat: &tgbotapi.Chat{ID: testChat}},
			Data:    callbackData(testOwner, "mode", "plot"),
		}}
	}

	fx.send(t, cb(99))
	assert.Equal(t, []string{"This menu belongs to someone else."}, fx.tg.answers)
	assert.Equal(t, workflow.Mode(""), fx.h.session(testChat).Mode())

	fx.send(t, cb(testOwner))
	assert.Equal(t, workflow.ModePlot, fx.h.session(testChat).Mode())
	assert.Contains(t, fx.tg.lastText(), "character anchor")
}

func TestAmazonFlow(t *testing.T) {
	fx := newFixture(t)
	fx.gen.text[prompt.KindFeatureExtraction] = "matte black bottle, gold cap"
	fx.gen.json[prompt.KindAmazonBrief] = `[
	 {"id":"main-0","prompt":"hero","finalPrompt":"bottle on white"},
	 {"id":"sec-0","prompt":"lifestyle","finalPrompt":"bottle on a desk"}
	]`
	fx.tg.downloads["p1"] = pngImage()

	fx.send(t, command("/key AIzaSyTestKey1234"))
	fx.send(t, command("/mode amazon"))
	fx.send(t, photo("p1", ""))
	assert.Contains(t, fx.tg.allText(), "matte black bottle")

	fx.send(t, command("/plan 1 1 0"))
	assert.Contains(t, fx.tg.allText(), "Plan ready: 2 slots.")

	fx.send(t, command("/brief premium gift"))
	sess := fx.h.session(testChat)
	step, _ := sess.Step()
	assert.Equal(t, workflow.StepAmazonVisuals, step)
	assert.Equal(t, "premium gift", sess.Data().ListingNotes)

	fx.send(t, command("/render"))
	assert.Len(t, fx.tg.images, 2)
	assert.Contains(t, fx.tg.lastText(), "Listing complete")

	fx.send(t, command("/zip"))
	require.Len(t, fx.tg.documents, 1)
	doc := fx.tg.documents[0]
	assert.True(t, strings.HasPrefix(doc.name, "eagle_listing_pack_"))
	zr, err := zip.NewReader(bytes.NewReader(doc.data), int64(len(doc.data)))
	require.NoError(t, err)
	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"listing-asset-MAIN-1.png", "listing-asset-SECONDARY-2.png"}, names)
}

// /render drives a whole batch, so the update timeout does not cut it short. Other updates and the
// single calls around a batch are bounded.
func TestRender_BatchIsNotBoundByUpdateTimeout(t *testing.T) {
	fx := newFixture(t)
	fx.gen.text[prompt.KindFeatureExtraction] = "matte black bottle"
	fx.gen.json[prompt.KindAmazonBrief] = `[
	 {"id":"main-0","prompt":"hero","finalPrompt":"bottle on white"},
	 {"id":"sec-0","prompt":"lifestyle","finalPrompt":"bottle on a desk"}
	]`
	fx.tg.downloads["p1"] = pngImage()

	fx.send(t, command("/key AIzaSyTestKey1234"))
	fx.send(t, command("/mode amazon"))
	fx.send(t, photo("p1", ""))
	fx.send(t, command("/plan 1 1 0"))
	fx.send(t, command("/brief gift"))
	fx.send(t, command("/render"))
	require.Len(t, fx.tg.images, 2)

	fx.gen.mu.Lock()
	defer fx.gen.mu.Unlock()
	assert.Equal(t, []bool{true}, fx.gen.deadlines[prompt.KindAmazonBrief])
	assert.Equal(t, []bool{false, false}, fx.gen.deadlines[prompt.KindAmazonRender])
}

func TestMore_ExtendsPlotScript(t *testing.T) {
	fx := newFixture(t)
	fx.gen.json[prompt.KindPlotExtension] = `[
		{"sceneId":"s2","sceneTitle":"Return","shotType":"wide","cameraMovement":"static","lighting":"dusk","subjectAction":"boat docks","dialogue":"","dialogueType":"VO"}
	]`
	fx.gen.json[prompt.KindRemap] = `{"prompts":[]}`

	fx.send(t, command("/more"))
	assert.Contains(t, fx.tg.lastText(), "/mode plot")

	fx.send(t, command("/key AIzaSyTestKey1234"))
	fx.send(t, command("/mode plot"))
	sess := fx.h.session(testChat)
	require.NoError(t, sess.Update(func(d *workflow.Data) error {
		d.Proposal = &workflow.PlotProposal{NarrativeArc: "a girl waits"}
		d.Characters = []workflow.PlotCharacter{{ID: "c1", Name: "Mira", Token: "red scarf"}}
		d.Shots = []workflow.RemappedShot{{ID: "s1-a", SceneID: "s1", FinalPrompt: "waits", Image: pngImage().Ptr()}}
		return nil
	}))

	fx.send(t, command("/more"))
	assert.Contains(t, fx.tg.lastText(), "Storyboard (1 frames)")
	assert.Contains(t, fx.tg.lastText(), "boat docks")

	shots := sess.Data().Shots
	require.Len(t, shots, 2)
	assert.Equal(t, "s1-a", shots[0].ID)
	assert.NotNil(t, shots[0].Image)
	assert.Nil(t, shots[1].Image)
}

func TestPhoto_WithoutModeAsksForOne(t *testing.T) {
	fx := newFixture(t)
	fx.send(t, photo("p1", ""))
	assert.Contains(t, fx.tg.lastText(), textChooseMode)
}

func TestZip_NothingGenerated(t *testing.T) {
	fx := newFixture(t)
	fx.send(t, command("/zip"))
	assert.Equal(t, "Nothing has been generated yet.", fx.tg.lastText())
	assert.Empty(t, fx.tg.documents)
}

func TestBackAndRestart(t *testing.T) {
	fx := newFixture(t)
	fx.gen.text[prompt.KindFeatureExtraction] = "token"
	fx.tg.downloads["p1"] = pngImage()

	fx.send(t, command("/key AIzaSyTestKey1234"))
	fx.send(t, command("/mode amazon"))
	fx.send(t, command("/back"))
	assert.Equal(t, "Already at the first step.", fx.tg.lastText())

	fx.send(t, photo("p1", ""))
	fx.send(t, command("/back"))
	step, _ := fx.h.session(testChat).Step()
	assert.Equal(t, workflow.StepProductAnchoring, step)

	fx.send(t, command("/restart"))
	assert.Equal(t, workflow.Mode(""), fx.h.session(testChat).Mode())
	assert.Empty(t, fx.h.session(testChat).Data().Product.Token)
}

func TestText_GoesToAssistant(t *testing.T) {
	fx := newFixture(t)
	send := func(text string) {
		fx.send(t, telegram.Update{Message: &tgbotapi.Message{
			Text: text,
			Chat: &tgbotapi.Chat{ID: testChat},
			From: &tgbotapi.User{ID: testOwner},
		}})
	}

	send("how do I start?")
	assert.Equal(t, "answer after 0 messages", fx.tg.lastText())
	send("and then?")
	assert.Equal(t, "answer after 2 messages", fx.tg.lastText())
}

func TestStatus(t *testing.T) {
	fx := newFixture(t)
	fx.send(t, command("/status"))
	assert.Contains(t, fx.tg.lastText(), "Key: not set")
	assert.Contains(t, fx.tg.lastText(), "Mode: none")

	fx.send(t, command("/key AIzaSyTestKey1234"))
	fx.send(t, command("/mode storefront"))
	fx.send(t, command("/status"))
	assert.Contains(t, fx.tg.lastText(), "Mode: storefront")
	assert.Contains(t, fx.tg.lastText(), "> 1. storefront config")
}

func TestParsePlan(t *testing.T) {
	cfg, err := parsePlan("")
	require.NoError(t, err)
	assert.Equal(t, workflow.DefaultPlanConfig(), cfg)

	cfg, err = parsePlan("2 3 0")
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Main)
	assert.Equal(t, 3, cfg.Secondary)
	assert.Equal(t, 0, cfg.APlus)

	_, err = parsePlan("1 2")
	assert.Error(t, err)
	_, err = parsePlan("a b c")
	assert.Error(t, err)
}

func TestParseDesign(t *testing.T) {
	current := workflow.StorefrontDesign{BrandName: "Old", Category: "Tea", Notes: "calm"}

	in := parseDesign("Nimbus", current)
	assert.Equal(t, "Nimbus", in.BrandName)
	assert.Equal(t, "Tea", in.Category)
	assert.Equal(t, "calm", in.Notes)

	in = parseDesign("Nimbus | Coffee | bold, warm", current)
	assert.Equal(t, "Coffee", in.Category)
	assert.Equal(t, "bold, warm", in.Notes)
}

func TestUserMessage(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{workflow.ErrCredentialRequired, "An API key is required"},
		{fmt.Errorf("wrap: %w", workflow.ErrModeLocked), "/restart"},
		{studio.ErrBusy, "already running"},
		{&prompt.PreconditionError{Kind: prompt.KindRender, Field: "final prompt"}, "Missing input: final prompt."},
		{&schema.ValidationError{Schema: "remap"}, "unusable answer"},
		{&gemini.APIError{Status: 403}, "rejected"},
		{&gemini.APIError{Status: 503}, "(503)"},
		{&workflow.SceneSizeError{SceneID: "s1", Frames: 2}, "s1"},
		{context.DeadlineExceeded, "timed out"},
		{errors.New("boom"), "Something went wrong"},
	}
	for _, tc := range cases {
		assert.Contains(t, userMessage(tc.err), tc.want, tc.err.Error())
	}
}
