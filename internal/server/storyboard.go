package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"eagle-studio/internal/batch"
	"eagle-studio/internal/mask"
	"eagle-studio/internal/studio"
	"eagle-studio/internal/workflow"
)

type anchorRequest struct {
	Images []string `json:"images" binding:"required,min=1"`
	Brief  string   `json:"brief"`
}

type videoRequest struct {
	Video string `json:"video" binding:"required"`
}

type briefRequest struct {
	Brief string `json:"brief"`
}

type renderShotRequest struct {
	Previous string `json:"previous"`
}

// editRequest carries an image revision. The mask is either a finished PNG data URL or the raw
// strokes painted over the displayed image.
type editRequest struct {
	Instruction string        `json:"instruction" binding:"required"`
	Reference   string        `json:"reference"`
	Mask        string        `json:"mask"`
	Strokes     *mask.Strokes `json:"strokes"`
}

type shotPatch struct {
	FinalPrompt *string `json:"finalPrompt"`
	VideoPrompt *string `json:"videoPrompt"`
}

type batchResponse struct {
	Succeeded int      `json:"succeeded"`
	Failed    int      `json:"failed"`
	FailedIDs []string `json:"failedIds,omitempty"`
	State     any      `json:"state"`
}

func (s *Server) registerStoryboardRoutes(g *gin.RouterGroup) {
	g.POST("/product", func(c *gin.Context) {
		var req anchorRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		images, err := decodeImages(req.Images)
		if err != nil {
			badRequest(c, err)
			return
		}
		ctx, cancel := s.work(c)
		defer cancel()

		anchor, err := s.studio.AnchorProduct(ctx, current(c), images, req.Brief)
		if err != nil {
			s.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, anchor)
	})

	g.POST("/video", func(c *gin.Context) {
		var req videoRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		video, err := decodeOptional(req.Video)
		if err != nil {
			badRequest(c, err)
			return
		}
		ctx, cancel := s.work(c)
		defer cancel()

		shots, err := s.studio.AnalyzeVideo(ctx, current(c), *video)
		if err != nil {
			s.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, shots)
	})

	g.POST("/script", func(c *gin.Context) {
		var req briefRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		ctx, cancel := s.work(c)
		defer cancel()

		shots, err := s.studio.BrainstormShots(ctx, current(c), req.Brief)
		if err != nil {
			s.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, shots)
	})

	g.POST("/remap", func(c *gin.Context) {
		ctx, cancel := s.work(c)
		defer cancel()

		shots, err := s.studio.RemapPrompts(ctx, current(c))
		if err != nil {
			s.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, shots)
	})

	g.POST("/storyboard/render", func(c *gin.Context) {
		sess := current(c)
		report, err := s.studio.RenderStoryboard(s.batchWork(c), sess, nil)
		s.batchResult(c, sess, report, err)
	})

	g.POST("/scenes/:scene/render", func(c *gin.Context) {
		sess := current(c)
		report, err := s.studio.RenderScene(s.batchWork(c), sess, c.Param("scene"), nil)
		s.batchResult(c, sess, report, err)
	})

	g.POST("/video-prompts", func(c *gin.Context) {
		ctx, cancel := s.work(c)
		defer cancel()

		script, err := s.studio.VideoPrompts(ctx, current(c))
		if err != nil {
			s.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, script)
	})

	shots := g.Group("/shots/:shot")

	shots.POST("/render", func(c *gin.Context) {
		var req renderShotRequest
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				badRequest(c, err)
				return
			}
		}
		previous, err := decodeOptional(req.Previous)
		if err != nil {
			badRequest(c, err)
			return
		}
		ctx, cancel := s.work(c)
		defer cancel()

		img, err := s.studio.RenderShot(ctx, current(c), studio.FrameInput{ShotID: c.Param("shot"), Previous: previous})
		if err != nil {
			s.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"image": img.DataURL()})
	})

	shots.POST("/edit", func(c *gin.Context) {
		in, ok := bindEdit(c, c.Param("shot"))
		if !ok {
			return
		}
		ctx, cancel := s.work(c)
		defer cancel()

		img, err := s.studio.EditShot(ctx, current(c), in)
		if err != nil {
			s.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"image": img.DataURL()})
	})

	shots.POST("/insert", func(c *gin.Context) {
		shot, err := current(c).InsertInBetween(c.Param("shot"))
		if err != nil {
			s.fail(c, err)
			return
		}
		c.JSON(http.StatusCreated, shot)
	})

	shots.PATCH("", func(c *gin.Context) {
		var req shotPatch
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		shot, err := current(c).UpdateShot(c.Param("shot"), func(sh *workflow.RemappedShot) {
			if req.FinalPrompt != nil {
				sh.FinalPrompt = *req.FinalPrompt
			}
			if req.VideoPrompt != nil {
				sh.VideoPrompt = *req.VideoPrompt
			}
		})
		if err != nil {
			s.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, shot)
	})

	shots.DELETE("", func(c *gin.Context) {
		if err := current(c).DeleteShot(c.Param("shot")); err != nil {
			s.fail(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	})
}

// bindEdit decodes an edit body. Strokes win over a finished mask when both are sent.
func bindEdit(c *gin.Context, id string) (studio.EditInput, bool) {
	var req editRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return studio.EditInput{}, false
	}
	ref, err := decodeOptional(req.Reference)
	if err != nil {
		badRequest(c, err)
		return studio.EditInput{}, false
	}
	in := studio.EditInput{ID: id, Instruction: req.Instruction, Reference: ref}

	switch {
	case req.Strokes != nil:
		in.Mask, err = req.Strokes.Render()
	case req.Mask != "":
		in.Mask, err = decodeOptional(req.Mask)
	}
	if err != nil {
		badRequest(c, err)
		return studio.EditInput{}, false
	}
	return in, true
}

func (s *Server) batchResult(c *gin.Context, sess *workflow.Session, report batch.Report, err error) {
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, batchResponse{
		Succeeded: report.Succeeded,
		Failed:    report.Failed,
		FailedIDs: report.FailedIDs(),
		State:     sess.Snapshot(),
	})
}
