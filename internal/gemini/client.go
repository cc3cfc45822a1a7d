package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"eagle-studio/internal/media"
	"eagle-studio/internal/prompt"
)

var (
	ErrNoImage  = errors.New("model returned no image")
	ErrNoSchema = errors.New("request has no response schema")
)

// KeySource yields the API key for one call. It is read on every call so a key change applies to
// the next request without touching requests already in flight.
type KeySource interface {
	APIKey(ctx context.Context) (string, error)
}

type Options struct {
	Keys       KeySource
	BaseURL    string
	APIVersion string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

type Client struct {
	keys       KeySource
	baseURL    string
	apiVersion string
	httpClient *http.Client
	logger     *slog.Logger
}

func New(opts Options) *Client {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com"
	}

	apiVersion := strings.TrimSpace(opts.APIVersion)
	if apiVersion == "" {
		apiVersion = "v1beta"
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &Client{
		keys:       opts.Keys,
		baseURL:    baseURL,
		apiVersion: apiVersion,
		httpClient: httpClient,
		logger:     logger,
	}
}

// Generate sends one single-turn request.
func (c *Client) Generate(ctx context.Context, req prompt.Request) (Response, error) {
	payload := generateContentRequest{
		Contents:         []content{{Role: "user", Parts: toParts(req.Parts)}},
		GenerationConfig: configFor(req),
	}
	if req.System != "" {
		payload.SystemInstruction = &content{Role: "user", Parts: []part{{Text: req.System}}}
	}
	return c.send(ctx, req, payload)
}

// GenerateJSON sends req and decodes the answer after validating it against req.Schema.
func (c *Client) GenerateJSON(ctx context.Context, req prompt.Request, out any) error {
	if req.Schema == nil {
		return ErrNoSchema
	}
	resp, err := c.Generate(ctx, req)
	if err != nil {
		return err
	}
	return req.Schema.Decode(resp.Text, out)
}

// GenerateImage returns the first inline image of the answer.
func (c *Client) GenerateImage(ctx context.Context, req prompt.Request) (media.Image, error) {
	resp, err := c.Generate(ctx, req)
	if err != nil {
		return media.Image{}, err
	}
	if len(resp.Images) == 0 {
		return media.Image{}, ErrNoImage
	}
	return resp.Images[0], nil
}

// Chat continues a conversation: history first, then the new turn carried by req.
func (c *Client) Chat(ctx context.Context, history []Message, req prompt.Request) (Response, error) {
	payload := generateContentRequest{
		Contents:         buildContents(history, req.Parts),
		GenerationConfig: configFor(req),
	}
	if req.System != "" {
		payload.SystemInstruction = &content{Role: "user", Parts: []part{{Text: req.System}}}
	}
	return c.send(ctx, req, payload)
}

func buildContents(history []Message, current []prompt.Part) []content {
	var contents []content
	for _, msg := range history {
		if strings.TrimSpace(msg.Text) == "" {
			continue
		}
		role := msg.Role
		if role == "" {
			role = "user"
		}
		contents = append(contents, content{Role: role, Parts: []part{{Text: msg.Text}}})
	}
	return append(contents, content{Role: "user", Parts: toParts(current)})
}

func toParts(parts []prompt.Part) []part {
	out := make([]part, 0, len(parts))
	for _, p := range parts {
		if p.Image != nil {
			out = append(out, part{InlineData: &blob{
				Data:     p.Image.Base64(),
				MimeType: media.NormalizeMIME(p.Image.MIMEType, p.Image.Data),
			}})
			continue
		}
		if p.Text != "" {
			out = append(out, part{Text: p.Text})
		}
	}
	return out
}

func configFor(req prompt.Request) generationConfig {
	var cfg generationConfig
	cfg.Temperature = req.Temperature
	if req.Schema != nil {
		cfg.ResponseMimeType = "application/json"
		cfg.ResponseJSONSchema = req.Schema.Raw()
	}
	if req.ThinkingBudget > 0 {
		cfg.ThinkingConfig = &thinkingConfig{ThinkingBudget: req.ThinkingBudget}
	}
	if req.Image != nil {
		cfg.ResponseModalities = []string{"IMAGE", "TEXT"}
		cfg.ImageConfig = &imageConfig{AspectRatio: req.Image.AspectRatio, ImageSize: string(req.Image.Size)}
	}
	return cfg
}

// send posts the payload. When the API rejects thinkingConfig or imageConfig as unknown, the call is
// repeated once without that field.
func (c *Client) send(ctx context.Context, req prompt.Request, payload generateContentRequest) (Response, error) {
	resp, err := c.generateContent(ctx, req.Model, payload)
	if err == nil {
		return resp, nil
	}

	retried := false
	if payload.GenerationConfig.ThinkingConfig != nil && isUnknownFieldError(err, "thinkingConfig") {
		payload.GenerationConfig.ThinkingConfig = nil
		retried = true
	}
	if payload.GenerationConfig.ImageConfig != nil && isUnknownFieldError(err, "imageConfig") {
		payload.GenerationConfig.ImageConfig = nil
		retried = true
	}
	if !retried {
		return Response{}, err
	}
	c.logger.Warn("gemini rejected generation field, retrying without it", "kind", req.Kind, "err", err)
	return c.generateContent(ctx, req.Model, payload)
}

func (c *Client) generateContent(ctx context.Context, model string, payload generateContentRequest) (Response, error) {
	if c.keys == nil {
		return Response{}, errors.New("gemini: no key source configured")
	}
	apiKey, err := c.keys.APIKey(ctx)
	if err != nil {
		return Response{}, fmt.Errorf("api key: %w", err)
	}
	if strings.TrimSpace(model) == "" {
		model = prompt.ModelText
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return Response{}, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/%s/models/%s:generateContent", c.baseURL, c.apiVersion, model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Response{}, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("content-type", "application/json")
	httpReq.Header.Set("x-goog-api-key", apiKey)

	start := time.Now()
	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Response{}, fmt.Errorf("request: %w", err)
	}
	defer httpResp.Body.Close()

	rawBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return Response{}, fmt.Errorf("read response: %w", err)
	}
	c.logger.Debug("gemini call", "model", model, "status", httpResp.StatusCode, "dur_ms", time.Since(start).Milliseconds())

	if httpResp.StatusCode >= 400 {
		return Response{}, &APIError{Status: httpResp.StatusCode, Body: strings.TrimSpace(string(rawBody))}
	}

	var decoded generateContentResponse
	if err := json.Unmarshal(rawBody, &decoded); err != nil {
		return Response{}, fmt.Errorf("decode response: %w", err)
	}

	text, images, err := extractParts(decoded)
	if err != nil {
		return Response{}, err
	}
	return Response{Text: text, Images: images}, nil
}

func extractParts(resp generateContentResponse) (string, []media.Image, error) {
	if len(resp.Candidates) == 0 {
		return "", nil, nil
	}

	var textBuilder strings.Builder
	var images []media.Image

	for _, p := range resp.Candidates[0].Content.Parts {
		if p.Text != "" {
			textBuilder.WriteString(p.Text)
		}
		if p.InlineData != nil && p.InlineData.Data != "" {
			img, err := media.FromBase64(p.InlineData.Data, p.InlineData.MimeType)
			if err != nil {
				return "", nil, fmt.Errorf("inline image: %w", err)
			}
			images = append(images, img)
		}
	}

	return textBuilder.String(), images, nil
}

func isUnknownFieldError(err error, field string) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusBadRequest {
		return false
	}
	return strings.Contains(apiErr.Body, "Unknown name") && strings.Contains(apiErr.Body, field)
}
