// Package server exposes the studio over a JSON HTTP API. Every route that touches a wizard takes
// the session id from the path; images travel as data URLs.
package server

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"eagle-studio/internal/credential"
	"eagle-studio/internal/export"
	"eagle-studio/internal/session"
	"eagle-studio/internal/studio"
	"eagle-studio/internal/workflow"
)

const maxBodyBytes = 64 << 20

type Options struct {
	Studio      *studio.Service
	Sessions    *session.Store
	Credentials credential.Store
	// Sink receives exported bundles on POST /export. Nil disables that route.
	Sink           export.Sink
	RequestTimeout time.Duration
	Logger         *slog.Logger
}

type Server struct {
	studio   *studio.Service
	sessions *session.Store
	creds    credential.Store
	sink     export.Sink
	timeout  time.Duration
	logger   *slog.Logger
}

func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = 240 * time.Second
	}
	return &Server{
		studio:   opts.Studio,
		sessions: opts.Sessions,
		creds:    opts.Credentials,
		sink:     opts.Sink,
		timeout:  timeout,
		logger:   logger,
	}
}

// Router builds the gin engine with every route registered.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger(), limitBody(maxBodyBytes))

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	api := r.Group("/api")
	s.registerCredentialRoutes(api)
	api.GET("/styles", s.handleStyles)
	api.POST("/mask/preview", s.handleMaskPreview)
	api.POST("/assistant/:id", s.handleAssistant)

	sessions := api.Group("/sessions")
	sessions.POST("", s.handleCreateSession)

	one := sessions.Group("/:id", s.loadSession)
	s.registerSessionRoutes(one)

	actions := one.Group("/actions")
	s.registerStoryboardRoutes(actions)
	s.registerAmazonRoutes(actions)
	s.registerPlotRoutes(actions)
	s.registerStorefrontRoutes(actions)

	s.registerExportRoutes(one)
	return r
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Info("http",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"dur_ms", time.Since(start).Milliseconds(),
		)
	}
}

func limitBody(n int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, n)
		}
		c.Next()
	}
}

// work bounds a generation call by the request timeout.
func (s *Server) work(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), s.timeout)
}

// batchWork is the context of a batch route. It carries neither the request timeout nor the
// client's cancellation: the batch settles every item and each item runs under its own deadline.
func (s *Server) batchWork(c *gin.Context) context.Context {
	return context.WithoutCancel(c.Request.Context())
}

const sessionKey = "session"

func (s *Server) loadSession(c *gin.Context) {
	sess, ok := s.sessions.Get(c.Param("id"))
	if !ok {
		abortError(c, http.StatusNotFound, errSessionNotFound)
		return
	}
	c.Set(sessionKey, sess)
	c.Next()
}

func current(c *gin.Context) *workflow.Session {
	return c.MustGet(sessionKey).(*workflow.Session)
}
