package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"eagle-studio/internal/studio"
)

// designRequest replaces the editable storefront fields. An absent logo reference keeps the
// current one.
type designRequest struct {
	BrandName     string `json:"brandName"`
	Category      string `json:"category"`
	Notes         string `json:"notes"`
	LogoReference string `json:"logoReference"`
	UseLogoAnchor *bool  `json:"useLogoAnchor"`
}

type logoSelectRequest struct {
	Index *int `json:"index" binding:"required"`
}

type referenceRequest struct {
	Image string `json:"image"`
}

func (s *Server) registerStorefrontRoutes(g *gin.RouterGroup) {
	sf := g.Group("/storefront")

	sf.PUT("/design", func(c *gin.Context) {
		var req designRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		ref, err := decodeOptional(req.LogoReference)
		if err != nil {
			badRequest(c, err)
			return
		}
		design, err := s.studio.UpdateDesign(current(c), studio.DesignInput{
			BrandName:     req.BrandName,
			Category:      req.Category,
			Notes:         req.Notes,
			LogoReference: ref,
			UseLogoAnchor: req.UseLogoAnchor,
		})
		if err != nil {
			s.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, design)
	})

	sf.POST("/logos", func(c *gin.Context) {
		ctx, cancel := s.work(c)
		defer cancel()

		logos, err := s.studio.GenerateLogos(ctx, current(c))
		if err != nil {
			s.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"logos": dataURLs(logos)})
	})

	sf.PUT("/logo", func(c *gin.Context) {
		var req logoSelectRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		sess := current(c)
		if err := s.studio.SelectLogo(sess, *req.Index); err != nil {
			s.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, sess.Data().Storefront)
	})

	sf.POST("/canvases", func(c *gin.Context) {
		c.JSON(http.StatusCreated, current(c).AddCanvas())
	})

	canvas := sf.Group("/canvases/:canvas")

	canvas.DELETE("", func(c *gin.Context) {
		if err := current(c).RemoveCanvas(c.Param("canvas")); err != nil {
			s.fail(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	})

	canvas.PUT("/reference", func(c *gin.Context) {
		var req referenceRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		ref, err := decodeOptional(req.Image)
		if err != nil {
			badRequest(c, err)
			return
		}
		if err := s.studio.SetCanvasReference(current(c), c.Param("canvas"), ref); err != nil {
			s.fail(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	})

	canvas.POST("/render", func(c *gin.Context) {
		ctx, cancel := s.work(c)
		defer cancel()

		imgs, err := s.studio.RenderCanvas(ctx, current(c), c.Param("canvas"))
		if err != nil {
			s.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"candidates": dataURLs(imgs)})
	})
}
