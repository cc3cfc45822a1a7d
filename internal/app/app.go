// Package app assembles the studio from configuration. Every entry point builds the same graph:
// credential store, model client, session registry, pipeline service and export sink.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"eagle-studio/internal/batch"
	"eagle-studio/internal/config"
	"eagle-studio/internal/credential"
	"eagle-studio/internal/export"
	"eagle-studio/internal/gemini"
	"eagle-studio/internal/httpclient"
	"eagle-studio/internal/prompt"
	"eagle-studio/internal/retry"
	"eagle-studio/internal/session"
	"eagle-studio/internal/studio"
)

type App struct {
	Config      config.Config
	Logger      *slog.Logger
	HTTPClient  *http.Client
	Credentials credential.Store
	Gemini      *gemini.Client
	Sessions    *session.Store
	Studio      *studio.Service
	// Sink is nil when neither EXPORT_S3_BUCKET nor EXPORT_DIR is set.
	Sink export.Sink

	closers []io.Closer
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	a := &App{Config: cfg, Logger: logger}

	a.HTTPClient = httpclient.New(httpclient.Options{
		PreferIPv4: cfg.PreferIPv4,
		Timeout:    cfg.HTTPTimeout,
		Logger:     logger,
	})

	creds, closer, err := OpenCredentials(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.Credentials = creds
	if closer != nil {
		a.closers = append(a.closers, closer)
	}
	if err := Seed(ctx, creds, cfg.GeminiAPIKey); err != nil {
		_ = a.Close()
		return nil, err
	}

	sink, err := OpenSink(ctx, cfg, logger)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.Sink = sink

	a.Gemini = gemini.New(gemini.Options{
		Keys:       credential.Source{Store: creds},
		BaseURL:    cfg.GeminiBaseURL,
		APIVersion: cfg.GeminiAPIVersion,
		HTTPClient: a.HTTPClient,
		Logger:     logger,
	})

	a.Sessions = session.NewStore(session.Options{
		MaxMessages: cfg.MaxHistoryMessages,
		TTL:         cfg.SessionTTL,
	})

	a.Studio = studio.New(studio.Options{
		Generator:   a.Gemini,
		History:     a.Sessions,
		Retry:       retry.Policy{Retries: cfg.RetryAttempts, Delay: cfg.RetryDelay},
		Storyboard:  batch.Options{Concurrency: cfg.StoryboardConcurrency, Pace: cfg.StoryboardPace},
		Amazon:      batch.Options{Concurrency: cfg.AmazonConcurrency, Pace: cfg.AmazonPace},
		Scene:       batch.Options{Pace: cfg.ScenePace},
		ItemTimeout: cfg.RequestTimeout,
		ImageSize:   prompt.Resolution(cfg.ImageSize),
		Logger:      logger,
	})
	return a, nil
}

// OpenCredentials picks the Redis store when REDIS_ADDR is set, else the credential file. The
// closer is nil for the file store.
func OpenCredentials(ctx context.Context, cfg config.Config, logger *slog.Logger) (credential.Store, io.Closer, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if cfg.RedisAddr != "" {
		store, err := credential.NewRedisStore(ctx, credential.RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("open redis credential store: %w", err)
		}
		logger.Info("credential store", "kind", "redis", "addr", cfg.RedisAddr)
		return store, store, nil
	}

	path := cfg.CredentialFile
	if path == "" {
		p, err := credential.DefaultPath()
		if err != nil {
			return nil, nil, err
		}
		path = p
	}
	logger.Info("credential store", "kind", "file", "path", path)
	return credential.NewFileStore(path), nil, nil
}

// Seed stores key when the store is still empty. An empty key is a no-op.
func Seed(ctx context.Context, store credential.Store, key string) error {
	if key == "" || credential.Present(ctx, store) {
		return nil
	}
	valid, err := credential.Validate(key)
	if err != nil {
		return fmt.Errorf("GEMINI_API_KEY: %w", err)
	}
	return store.Set(ctx, valid)
}

// OpenSink picks the S3 sink when a bucket is configured, else a local directory.
func OpenSink(ctx context.Context, cfg config.Config, logger *slog.Logger) (export.Sink, error) {
	switch {
	case cfg.ExportBucket != "":
		return export.NewS3Sink(ctx, export.S3Config{
			Bucket: cfg.ExportBucket,
			Prefix: cfg.ExportPrefix,
			Region: cfg.ExportS3Region,
		}, logger)
	case cfg.ExportDir != "":
		return export.DirSink{Dir: cfg.ExportDir}, nil
	}
	return nil, nil
}

// RunSweeper evicts idle sessions until ctx ends.
func (a *App) RunSweeper(ctx context.Context) {
	every := a.Config.SessionTTL / 4
	if every <= 0 {
		return
	}
	go a.Sessions.Run(ctx, every)
}

func (a *App) Close() error {
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

// NewLogger returns the JSON logger used by every binary.
func NewLogger(level string) *slog.Logger {
	lvl := slog.LevelInfo
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
