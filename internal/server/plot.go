package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"eagle-studio/internal/prompt"
	"eagle-studio/internal/studio"
	"eagle-studio/internal/workflow"
)

var errUnknownStyle = errors.New("unknown style")

type characterRequest struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	References  []string `json:"references"`
	Style       string   `json:"style"`
}

type costumeHintRequest struct {
	Hint string `json:"hint"`
}

type costumeSelectRequest struct {
	CostumeID string            `json:"costumeId"`
	Custom    *workflow.Costume `json:"custom"`
}

func (s *Server) registerPlotRoutes(g *gin.RouterGroup) {
	plot := g.Group("/plot")

	plot.POST("/proposal", func(c *gin.Context) {
		var req briefRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		ctx, cancel := s.work(c)
		defer cancel()

		proposal, err := s.studio.ProposePlot(ctx, current(c), req.Brief)
		if err != nil {
			s.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, proposal)
	})

	plot.POST("/proposal/extend", func(c *gin.Context) {
		ctx, cancel := s.work(c)
		defer cancel()

		arc, err := s.studio.ExtendNarrative(ctx, current(c))
		if err != nil {
			s.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"narrativeArc": arc})
	})

	plot.POST("/storyboard", func(c *gin.Context) {
		ctx, cancel := s.work(c)
		defer cancel()

		shots, err := s.studio.BrainstormPlot(ctx, current(c))
		if err != nil {
			s.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, shots)
	})

	plot.POST("/storyboard/extend", func(c *gin.Context) {
		ctx, cancel := s.work(c)
		defer cancel()

		added, err := s.studio.ExtendPlot(ctx, current(c))
		if err != nil {
			s.fail(c, err)
			return
		}
		c.JSON(http.StatusCreated, added)
	})

	plot.POST("/transitions", func(c *gin.Context) {
		ctx, cancel := s.work(c)
		defer cancel()

		prompts, err := s.studio.PlotVideoPrompts(ctx, current(c))
		if err != nil {
			s.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, prompts)
	})

	plot.POST("/environments/:env/render", func(c *gin.Context) {
		ctx, cancel := s.work(c)
		defer cancel()

		img, err := s.studio.RenderEnvironment(ctx, current(c), c.Param("env"))
		if err != nil {
			s.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"image": img.DataURL()})
	})

	plot.POST("/characters", func(c *gin.Context) {
		var req characterRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		refs, err := decodeImages(req.References)
		if err != nil {
			badRequest(c, err)
			return
		}
		if len(refs) == 0 && strings.TrimSpace(req.Description) == "" {
			s.fail(c, &prompt.PreconditionError{Field: "description"})
			return
		}
		style, ok := prompt.ParseStyle(req.Style)
		if req.Style != "" && !ok {
			badRequest(c, errUnknownStyle)
			return
		}
		ctx, cancel := s.work(c)
		defer cancel()

		char, err := s.studio.CreateCharacter(ctx, current(c), studio.CharacterInput{
			Name:        req.Name,
			Description: req.Description,
			References:  refs,
			Style:       style,
		})
		if err != nil {
			s.fail(c, err)
			return
		}
		c.JSON(http.StatusCreated, char)
	})

	char := plot.Group("/characters/:char")

	char.DELETE("", func(c *gin.Context) {
		if err := s.studio.RemoveCharacter(current(c), c.Param("char")); err != nil {
			s.fail(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	})

	char.POST("/turnaround", func(c *gin.Context) {
		ctx, cancel := s.work(c)
		defer cancel()

		img, err := s.studio.RenderTurnaround(ctx, current(c), c.Param("char"))
		if err != nil {
			s.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"image": img.DataURL()})
	})

	char.POST("/costumes", func(c *gin.Context) {
		var req costumeHintRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		ctx, cancel := s.work(c)
		defer cancel()

		costumes, err := s.studio.SuggestCostumes(ctx, current(c), c.Param("char"), req.Hint)
		if err != nil {
			s.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, costumes)
	})

	char.PUT("/costume", func(c *gin.Context) {
		var req costumeSelectRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		sess := current(c)
		if err := s.studio.SelectCostume(sess, c.Param("char"), req.CostumeID, req.Custom); err != nil {
			s.fail(c, err)
			return
		}
		ch, _ := sess.Data().Character(c.Param("char"))
		c.JSON(http.StatusOK, ch)
	})

	char.POST("/outfit", func(c *gin.Context) {
		ctx, cancel := s.work(c)
		defer cancel()

		img, err := s.studio.RenderOutfit(ctx, current(c), c.Param("char"))
		if err != nil {
			s.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"image": img.DataURL()})
	})
}
