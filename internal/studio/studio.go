// Package studio runs the generation work behind each wizard step: it assembles requests, calls the
// model with retries, and writes results back into the workflow session under a generation ticket.
package studio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"eagle-studio/internal/batch"
	"eagle-studio/internal/gemini"
	"eagle-studio/internal/media"
	"eagle-studio/internal/prompt"
	"eagle-studio/internal/retry"
	"eagle-studio/internal/workflow"
)

var (
	ErrBusy     = errors.New("a batch is already running for this session")
	ErrNoResult = errors.New("model returned an empty result")
)

// Generator is the model client. *gemini.Client implements it.
type Generator interface {
	Generate(ctx context.Context, req prompt.Request) (gemini.Response, error)
	GenerateJSON(ctx context.Context, req prompt.Request, out any) error
	GenerateImage(ctx context.Context, req prompt.Request) (media.Image, error)
	Chat(ctx context.Context, history []gemini.Message, req prompt.Request) (gemini.Response, error)
}

// History keeps assistant conversations per key.
type History interface {
	History(key string) []gemini.Message
	Append(key string, msgs ...gemini.Message)
}

type Options struct {
	Generator  Generator
	History    History
	Retry      retry.Policy
	Storyboard batch.Options
	Amazon     batch.Options
	Scene      batch.Options
	// ItemTimeout bounds every item of a batch that does not set its own.
	ItemTimeout time.Duration
	ImageSize   prompt.Resolution
	Logger      *slog.Logger
}

type Service struct {
	gen        Generator
	history    History
	retry      retry.Policy
	storyboard batch.Options
	amazon     batch.Options
	scene      batch.Options
	size       prompt.Resolution
	logger     *slog.Logger

	busy sync.Map
}

func New(opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	policy := opts.Retry
	if policy.Retries == 0 && policy.Delay == 0 {
		policy = retry.DefaultPolicy()
	}
	if policy.Logger == nil {
		policy.Logger = logger
	}

	storyboard := withDefaults(opts.Storyboard, batch.StoryboardOptions(), opts.ItemTimeout, logger)
	amazon := withDefaults(opts.Amazon, batch.AmazonOptions(), opts.ItemTimeout, logger)
	scene := withDefaults(opts.Scene, batch.SceneOptions(), opts.ItemTimeout, logger)
	scene.Concurrency = 1

	return &Service{
		gen:        opts.Generator,
		history:    opts.History,
		retry:      policy,
		storyboard: storyboard,
		amazon:     amazon,
		scene:      scene,
		size:       prompt.ParseResolution(string(opts.ImageSize)),
		logger:     logger,
	}
}

func withDefaults(o, def batch.Options, itemTimeout time.Duration, logger *slog.Logger) batch.Options {
	if o.ItemTimeout <= 0 {
		o.ItemTimeout = itemTimeout
	}
	if o.Concurrency <= 0 {
		o.Concurrency = def.Concurrency
	}
	if o.Pace <= 0 {
		o.Pace = def.Pace
	}
	if o.Logger == nil {
		o.Logger = logger
	}
	return o
}

// claim marks a session as running a batch. The returned func releases it.
func (s *Service) claim(sess *workflow.Session) (func(), error) {
	if _, loaded := s.busy.LoadOrStore(sess.ID(), struct{}{}); loaded {
		return nil, ErrBusy
	}
	return func() { s.busy.Delete(sess.ID()) }, nil
}

// Busy reports whether a batch is running for the session.
func (s *Service) Busy(sess *workflow.Session) bool {
	_, ok := s.busy.Load(sess.ID())
	return ok
}

func (s *Service) image(ctx context.Context, req prompt.Request) (media.Image, error) {
	img, err := retry.Value(ctx, s.retry, func(ctx context.Context) (media.Image, error) {
		img, err := s.gen.GenerateImage(ctx, req)
		if err == nil && img.IsZero() {
			err = ErrNoResult
		}
		return img, err
	})
	if err != nil {
		return media.Image{}, fmt.Errorf("%s: %w", req.Kind, err)
	}
	return img, nil
}

func decode[T any](ctx context.Context, s *Service, req prompt.Request) (T, error) {
	out, err := retry.Value(ctx, s.retry, func(ctx context.Context) (T, error) {
		var v T
		err := s.gen.GenerateJSON(ctx, req, &v)
		return v, err
	})
	if err != nil {
		var zero T
		return zero, fmt.Errorf("%s: %w", req.Kind, err)
	}
	return out, nil
}

func (s *Service) text(ctx context.Context, req prompt.Request) (string, error) {
	out, err := retry.Value(ctx, s.retry, func(ctx context.Context) (string, error) {
		resp, err := s.gen.Generate(ctx, req)
		if err != nil {
			return "", err
		}
		if resp.Text == "" {
			return "", ErrNoResult
		}
		return resp.Text, nil
	})
	if err != nil {
		return "", fmt.Errorf("%s: %w", req.Kind, err)
	}
	return out, nil
}

// settle writes a generated result back. A stale ticket is logged and reported to the caller.
func (s *Service) settle(sess *workflow.Session, t workflow.Ticket, apply func() error) error {
	err := apply()
	if errors.Is(err, workflow.ErrStale) {
		s.logger.Info("dropped superseded response", "session", sess.ID(), "kind", t.Kind, "id", t.ID, "gen", t.Gen)
	}
	return err
}
