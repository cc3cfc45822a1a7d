package server

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eagle-studio/internal/batch"
	"eagle-studio/internal/credential"
	"eagle-studio/internal/export"
	"eagle-studio/internal/gemini"
	"eagle-studio/internal/media"
	"eagle-studio/internal/prompt"
	"eagle-studio/internal/retry"
	"eagle-studio/internal/schema"
	"eagle-studio/internal/session"
	"eagle-studio/internal/studio"
	"eagle-studio/internal/workflow"
)

type fakeGen struct {
	text map[prompt.Kind]string
	json map[prompt.Kind]string
}

func (f *fakeGen) Generate(_ context.Context, req prompt.Request) (gemini.Response, error) {
	return gemini.Response{Text: f.text[req.Kind]}, nil
}

func (f *fakeGen) GenerateJSON(_ context.Context, req prompt.Request, out any) error {
	raw, ok := f.json[req.Kind]
	if !ok {
		return &gemini.APIError{Status: 500, Body: "unscripted " + string(req.Kind)}
	}
	return req.Schema.Decode(raw, out)
}

func (f *fakeGen) GenerateImage(context.Context, prompt.Request) (media.Image, error) {
	return pngImage(2, 2), nil
}

func (f *fakeGen) Chat(_ context.Context, history []gemini.Message, _ prompt.Request) (gemini.Response, error) {
	return gemini.Response{Text: fmt.Sprintf("answer after %d messages", len(history))}, nil
}

func pngImage(w, h int) media.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{G: 255, A: 255})
	var buf bytes.Buffer
	_ = png.Encode(&buf, img)
	return media.New(buf.Bytes(), "image/png")
}

func noSleep(context.Context, time.Duration) error { return nil }

type fixture struct {
	srv   *httptest.Server
	gen   *fakeGen
	creds *credential.MemoryStore
	store *session.Store
}

func newFixture(t *testing.T, sink export.Sink) *fixture {
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
	creds := credential.NewMemoryStore()
	s := New(Options{Studio: svc, Sessions: store, Credentials: creds, Sink: sink, RequestTimeout: 5 * time.Second})
	srv := httptest.NewServer(s.Router())
	t.Cleanup(srv.Close)
	return &fixture{srv: srv, gen: gen, creds: creds, store: store}
}

func (fx *fixture) do(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(raw)
	} else {
		rd = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, fx.srv.URL+path, rd)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func (fx *fixture) newSession(t *testing.T) string {
	t.Helper()
	resp := fx.do(t, http.MethodPost, "/api/sessions", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return decodeBody[workflow.State](t, resp).ID
}

func TestCredentialRoutes(t *testing.T) {
	fx := newFixture(t, nil)

	resp := fx.do(t, http.MethodGet, "/api/credential", nil)
	assert.Equal(t, credentialStatus{}, decodeBody[credentialStatus](t, resp))

	resp = fx.do(t, http.MethodPut, "/api/credential", credentialRequest{Key: "sk-nope"})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	resp = fx.do(t, http.MethodPut, "/api/credential", credentialRequest{Key: "AIzaSyTestKey1234"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	st := decodeBody[credentialStatus](t, resp)
	assert.True(t, st.Present)
	assert.NotContains(t, st.Masked, "TestKey")

	resp = fx.do(t, http.MethodDelete, "/api/credential", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.False(t, credential.Present(context.Background(), fx.creds))
}

func TestSession_NotFound(t *testing.T) {
	fx := newFixture(t, nil)
	resp := fx.do(t, http.MethodGet, "/api/sessions/missing", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, errSessionNotFound.Error(), decodeBody[apiError](t, resp).Error)
}

func TestSelectMode_NeedsCredential(t *testing.T) {
	fx := newFixture(t, nil)
	id := fx.newSession(t)

	resp := fx.do(t, http.MethodPost, "/api/sessions/"+id+"/mode", modeRequest{Mode: "amazon"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = fx.do(t, http.MethodPost, "/api/sessions/"+id+"/mode", modeRequest{Mode: "poster"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	require.NoError(t, fx.creds.Set(context.Background(), "AIzaKey"))
	resp = fx.do(t, http.MethodPost, "/api/sessions/"+id+"/mode", modeRequest{Mode: "amazon"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	st := decodeBody[workflow.State](t, resp)
	assert.Equal(t, workflow.ModeAmazon, st.Mode)
	assert.Equal(t, workflow.StepProductAnchoring, st.Step)

	resp = fx.do(t, http.MethodPost, "/api/sessions/"+id+"/mode", modeRequest{Mode: "plot"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestAmazonFlowOverHTTP(t *testing.T) {
	fx := newFixture(t, nil)
	fx.gen.text[prompt.KindFeatureExtraction] = "matte black bottle"
	fx.gen.json[prompt.KindAmazonBrief] = `[
	 {"id":"main-0","prompt":"hero","finalPrompt":"bottle on white"},
	 {"id":"sec-0","prompt":"lifestyle","finalPrompt":"bottle on a desk"}
	]`
	require.NoError(t, fx.creds.Set(context.Background(), "AIzaKey"))
	id := fx.newSession(t)
	base := "/api/sessions/" + id

	resp := fx.do(t, http.MethodPost, base+"/mode", modeRequest{Mode: "amazon"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = fx.do(t, http.MethodPost, base+"/advance/product_anchoring", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	resp = fx.do(t, http.MethodPost, base+"/actions/product", anchorRequest{Images: []string{pngImage(2, 2).DataURL()}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "matte black bottle", decodeBody[workflow.ProductAnchor](t, resp).Token)

	resp = fx.do(t, http.MethodPost, base+"/advance/product_anchoring", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = fx.do(t, http.MethodPut, base+"/actions/amazon/plan", workflow.PlanConfig{Main: 1, Secondary: 1})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decodeBody[workflow.AmazonPlan](t, resp), 2)
	fx.do(t, http.MethodPost, base+"/advance/amazon_config", nil)

	resp = fx.do(t, http.MethodPost, base+"/actions/amazon/brief", notesRequest{Notes: "premium gift"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp = fx.do(t, http.MethodPost, base+"/advance/amazon_brief", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, workflow.StepAmazonVisuals, decodeBody[workflow.State](t, resp).Step)

	resp = fx.do(t, http.MethodPost, base+"/actions/amazon/render", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	rep := decodeBody[batchResponse](t, resp)
	assert.Equal(t, 2, rep.Succeeded)
	assert.Zero(t, rep.Failed)

	resp = fx.do(t, http.MethodGet, base+"/export", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "eagle_listing_pack_")
	var buf bytes.Buffer
	_, err := buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	require.Len(t, zr.File, 2)
	assert.Equal(t, "listing-asset-MAIN-1.png", zr.File[0].Name)

	resp = fx.do(t, http.MethodGet, base+"/download/slots/main-0", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "listing-asset-MAIN-main-0.png")
}

func TestExport_NothingGenerated(t *testing.T) {
	fx := newFixture(t, nil)
	id := fx.newSession(t)

	resp := fx.do(t, http.MethodGet, "/api/sessions/"+id+"/export", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = fx.do(t, http.MethodPost, "/api/sessions/"+id+"/export", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, errNoSink.Error(), decodeBody[apiError](t, resp).Error)
}

func TestExport_ToDirSink(t *testing.T) {
	dir := t.TempDir()
	fx := newFixture(t, export.DirSink{Dir: dir})
	require.NoError(t, fx.creds.Set(context.Background(), "AIzaKey"))
	id := fx.newSession(t)
	fx.do(t, http.MethodPost, "/api/sessions/"+id+"/mode", modeRequest{Mode: "storefront"})

	resp := fx.do(t, http.MethodPut, "/api/sessions/"+id+"/actions/storefront/design", designRequest{BrandName: "Eagle", Category: "tea"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = fx.do(t, http.MethodPost, "/api/sessions/"+id+"/actions/storefront/logos", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var logos struct {
		Logos []string `json:"logos"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&logos))
	assert.Len(t, logos.Logos, 3)

	resp = fx.do(t, http.MethodPost, "/api/sessions/"+id+"/export", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var out struct {
		Name     string `json:"name"`
		Location string `json:"location"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.True(t, strings.HasPrefix(out.Name, "eagle_storefront_pack_"))
	assert.Equal(t, filepath.Join(dir, out.Name), out.Location)
	_, err := os.Stat(out.Location)
	assert.NoError(t, err)
}

func TestShotRoutes_UnknownShot(t *testing.T) {
	fx := newFixture(t, nil)
	require.NoError(t, fx.creds.Set(context.Background(), "AIzaKey"))
	id := fx.newSession(t)
	fx.do(t, http.MethodPost, "/api/sessions/"+id+"/mode", modeRequest{Mode: "creative"})

	resp := fx.do(t, http.MethodDelete, "/api/sessions/"+id+"/actions/shots/nope", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = fx.do(t, http.MethodPost, "/api/sessions/"+id+"/actions/shots/nope/edit", editRequest{Instruction: "brighter"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = fx.do(t, http.MethodPost, "/api/sessions/"+id+"/actions/shots/nope/edit", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRetreatForwardIsBlocked(t *testing.T) {
	fx := newFixture(t, nil)
	require.NoError(t, fx.creds.Set(context.Background(), "AIzaKey"))
	id := fx.newSession(t)
	fx.do(t, http.MethodPost, "/api/sessions/"+id+"/mode", modeRequest{Mode: "amazon"})

	resp := fx.do(t, http.MethodPost, "/api/sessions/"+id+"/retreat", stepRequest{Step: workflow.StepAmazonVisuals})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = fx.do(t, http.MethodPost, "/api/sessions/"+id+"/goto", stepRequest{Step: workflow.StepAmazonBrief})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = fx.do(t, http.MethodPost, "/api/sessions/"+id+"/restart", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, decodeBody[workflow.State](t, resp).Mode)
}

func TestAssistant(t *testing.T) {
	fx := newFixture(t, nil)

	resp := fx.do(t, http.MethodPost, "/api/assistant/chat-1", askRequest{Text: "hi"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "answer after 0 messages", decodeBody[map[string]string](t, resp)["answer"])

	resp = fx.do(t, http.MethodPost, "/api/assistant/chat-1", askRequest{Text: "again"})
	assert.Equal(t, "answer after 2 messages", decodeBody[map[string]string](t, resp)["answer"])
}

func TestStyles(t *testing.T) {
	fx := newFixture(t, nil)
	resp := fx.do(t, http.MethodGet, "/api/styles", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decodeBody[[]prompt.StyleOption](t, resp), len(prompt.Styles()))
}

func TestMaskPreview(t *testing.T) {
	fx := newFixture(t, nil)
	body := maskPreviewRequest{Image: pngImage(2, 2).DataURL()}
	body.Strokes.Width, body.Strokes.Height = 8, 6

	resp := fx.do(t, http.MethodPost, "/api/mask/preview", body)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	img, err := png.Decode(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 8, 6), img.Bounds())

	body.Strokes.Width = 0
	resp = fx.do(t, http.MethodPost, "/api/mask/preview", body)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{credential.ErrNotSet, http.StatusUnauthorized},
		{&prompt.PreconditionError{Kind: prompt.KindRemap, Field: "token"}, http.StatusBadRequest},
		{fmt.Errorf("wrap: %w", workflow.ErrNotFound), http.StatusNotFound},
		{workflow.ErrStale, http.StatusConflict},
		{studio.ErrBusy, http.StatusConflict},
		{&schema.ValidationError{}, http.StatusUnprocessableEntity},
		{&gemini.APIError{Status: 503}, http.StatusBadGateway},
		{schema.ErrMalformed, http.StatusBadGateway},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, statusFor(tc.err), tc.err.Error())
	}
}

func TestBatchWork_DropsRequestDeadline(t *testing.T) {
	s := New(Options{RequestTimeout: time.Millisecond})
	ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
	defer cancel()
	<-ctx.Done()

	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodPost, "/api/sessions/x/actions/storyboard/render", nil).WithContext(ctx)

	work := s.batchWork(c)
	_, bounded := work.Deadline()
	assert.False(t, bounded)
	assert.NoError(t, work.Err())

	single, done := s.work(c)
	defer done()
	assert.Error(t, single.Err())
}

func TestExtendPlotRoute(t *testing.T) {
	fx := newFixture(t, nil)
	fx.gen.json[prompt.KindPlotExtension] = `[
		{"sceneId":"s2","sceneTitle":"Return","shotType":"wide","cameraMovement":"static","lighting":"dusk","subjectAction":"boat docks","dialogue":"","dialogueType":"VO"}
	]`
	fx.gen.json[prompt.KindRemap] = `{"prompts":["ink boat"]}`
	require.NoError(t, fx.creds.Set(context.Background(), "AIzaSyTestKey1234"))
	id := fx.newSession(t)
	resp := fx.do(t, http.MethodPost, "/api/sessions/"+id+"/mode", modeRequest{Mode: "plot"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	path := "/api/sessions/" + id + "/actions/plot/storyboard/extend"
	resp = fx.do(t, http.MethodPost, path, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	sess, ok := fx.store.Get(id)
	require.True(t, ok)
	require.NoError(t, sess.Update(func(d *workflow.Data) error {
		d.Proposal = &workflow.PlotProposal{NarrativeArc: "a girl waits"}
		d.Shots = []workflow.RemappedShot{{ID: "s1-a", SceneID: "s1", FinalPrompt: "waits"}}
		return nil
	}))

	resp = fx.do(t, http.MethodPost, path, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	added := decodeBody[[]workflow.RemappedShot](t, resp)
	require.Len(t, added, 1)
	assert.Equal(t, "ink boat", added[0].FinalPrompt)
	assert.Len(t, sess.Data().Shots, 2)
}
