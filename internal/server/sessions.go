package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"eagle-studio/internal/credential"
	"eagle-studio/internal/media"
	"eagle-studio/internal/prompt"
	"eagle-studio/internal/workflow"
)

type credentialRequest struct {
	Key string `json:"key" binding:"required"`
}

type credentialStatus struct {
	Present bool   `json:"present"`
	Masked  string `json:"masked,omitempty"`
}

func (s *Server) registerCredentialRoutes(api *gin.RouterGroup) {
	api.GET("/credential", func(c *gin.Context) {
		key, err := s.creds.Get(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusOK, credentialStatus{})
			return
		}
		c.JSON(http.StatusOK, credentialStatus{Present: true, Masked: credential.Mask(key)})
	})

	api.PUT("/credential", func(c *gin.Context) {
		var req credentialRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		key, err := credential.Validate(req.Key)
		if err != nil {
			s.fail(c, err)
			return
		}
		if err := s.creds.Set(c.Request.Context(), key); err != nil {
			s.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, credentialStatus{Present: true, Masked: credential.Mask(key)})
	})

	api.DELETE("/credential", func(c *gin.Context) {
		if err := s.creds.Clear(c.Request.Context()); err != nil {
			s.fail(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	})
}

func (s *Server) handleStyles(c *gin.Context) {
	c.JSON(http.StatusOK, prompt.Styles())
}

func (s *Server) handleCreateSession(c *gin.Context) {
	sess := s.sessions.Create()
	s.logger.Info("session created", "session", sess.ID())
	c.JSON(http.StatusCreated, sess.Snapshot())
}

type modeRequest struct {
	Mode string `json:"mode" binding:"required"`
}

type stepRequest struct {
	Step workflow.Step `json:"step" binding:"required"`
}

func (s *Server) registerSessionRoutes(g *gin.RouterGroup) {
	g.GET("", func(c *gin.Context) {
		c.JSON(http.StatusOK, current(c).Snapshot())
	})

	g.DELETE("", func(c *gin.Context) {
		s.sessions.Delete(current(c).ID())
		c.Status(http.StatusNoContent)
	})

	g.POST("/mode", func(c *gin.Context) {
		var req modeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		mode, err := workflow.ParseMode(req.Mode)
		if err != nil {
			s.fail(c, err)
			return
		}
		sess := current(c)
		if err := sess.SelectMode(c.Request.Context(), s.creds, mode); err != nil {
			s.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, sess.Snapshot())
	})

	g.POST("/retreat", s.stepMove(func(sess *workflow.Session, step workflow.Step) error { return sess.Retreat(step) }))
	g.POST("/goto", s.stepMove(func(sess *workflow.Session, step workflow.Step) error { return sess.Goto(step) }))

	g.POST("/restart", func(c *gin.Context) {
		sess := current(c)
		sess.Restart()
		s.sessions.ClearHistory(sess.ID())
		c.JSON(http.StatusOK, sess.Snapshot())
	})

	// advance stores what the step currently holds and moves on.
	g.POST("/advance/:step", func(c *gin.Context) {
		sess := current(c)
		step := workflow.Step(c.Param("step"))
		out, err := sess.Output(step)
		if err != nil {
			s.fail(c, err)
			return
		}
		if _, err := sess.Advance(step, out); err != nil {
			s.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, sess.Snapshot())
	})
}

func (s *Server) stepMove(move func(*workflow.Session, workflow.Step) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req stepRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		sess := current(c)
		if err := move(sess, req.Step); err != nil {
			s.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, sess.Snapshot())
	}
}

type askRequest struct {
	Text string `json:"text" binding:"required"`
}

func (s *Server) handleAssistant(c *gin.Context) {
	var req askRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	ctx, cancel := s.work(c)
	defer cancel()

	answer, err := s.studio.Ask(ctx, c.Param("id"), req.Text)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"answer": answer})
}

// decodeImages parses data URLs. Empty entries are skipped.
func decodeImages(values []string) ([]media.Image, error) {
	var out []media.Image
	for i, v := range values {
		if strings.TrimSpace(v) == "" {
			continue
		}
		img, err := media.ParseDataURL(v)
		if err != nil {
			return nil, fmt.Errorf("image %d: %w", i, err)
		}
		out = append(out, img)
	}
	return out, nil
}

// decodeOptional parses one optional data URL.
func decodeOptional(value string) (*media.Image, error) {
	if strings.TrimSpace(value) == "" {
		return nil, nil
	}
	img, err := media.ParseDataURL(value)
	if err != nil {
		return nil, err
	}
	return &img, nil
}
