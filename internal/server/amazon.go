package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"eagle-studio/internal/workflow"
)

type notesRequest struct {
	Notes string `json:"notes"`
}

func (s *Server) registerAmazonRoutes(g *gin.RouterGroup) {
	amazon := g.Group("/amazon")

	amazon.PUT("/plan", func(c *gin.Context) {
		cfg := workflow.DefaultPlanConfig()
		if err := c.ShouldBindJSON(&cfg); err != nil {
			badRequest(c, err)
			return
		}
		plan, err := s.studio.PlanAmazon(current(c), cfg)
		if err != nil {
			s.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, plan)
	})

	amazon.POST("/brief", func(c *gin.Context) {
		var req notesRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		ctx, cancel := s.work(c)
		defer cancel()

		plan, err := s.studio.BriefAmazon(ctx, current(c), req.Notes)
		if err != nil {
			s.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, plan)
	})

	amazon.POST("/render", func(c *gin.Context) {
		sess := current(c)
		report, err := s.studio.RenderAmazon(s.batchWork(c), sess, nil)
		s.batchResult(c, sess, report, err)
	})

	amazon.POST("/slots/:slot/render", func(c *gin.Context) {
		ctx, cancel := s.work(c)
		defer cancel()

		img, err := s.studio.RenderAmazonSlot(ctx, current(c), c.Param("slot"))
		if err != nil {
			s.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"image": img.DataURL()})
	})

	amazon.POST("/slots/:slot/edit", func(c *gin.Context) {
		in, ok := bindEdit(c, c.Param("slot"))
		if !ok {
			return
		}
		ctx, cancel := s.work(c)
		defer cancel()

		img, err := s.studio.EditAmazonSlot(ctx, current(c), in)
		if err != nil {
			s.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"image": img.DataURL()})
	})
}
