package server

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	_ "golang.org/x/image/webp"

	"eagle-studio/internal/export"
	"eagle-studio/internal/mask"
	"eagle-studio/internal/media"
	"eagle-studio/internal/workflow"
)

const zipType = "application/zip"

var errNoSink = errors.New("no export sink configured")

type maskPreviewRequest struct {
	Image   string       `json:"image" binding:"required"`
	Strokes mask.Strokes `json:"strokes"`
}

func (s *Server) registerExportRoutes(g *gin.RouterGroup) {
	g.GET("/export", func(c *gin.Context) {
		sess := current(c)
		data, err := export.Bundle(sess.Data())
		if err != nil {
			s.fail(c, err)
			return
		}
		name := export.BundleName(sess.Mode(), time.Now().Unix())
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
		c.Data(http.StatusOK, zipType, data)
	})

	g.POST("/export", func(c *gin.Context) {
		if s.sink == nil {
			abortError(c, http.StatusNotFound, errNoSink)
			return
		}
		sess := current(c)
		data, err := export.Bundle(sess.Data())
		if err != nil {
			s.fail(c, err)
			return
		}
		name := export.BundleName(sess.Mode(), time.Now().Unix())
		location, err := s.sink.Put(c.Request.Context(), name, data, zipType)
		if err != nil {
			s.fail(c, err)
			return
		}
		s.logger.Info("bundle exported", "session", sess.ID(), "location", location, "bytes", len(data))
		c.JSON(http.StatusCreated, gin.H{"name": name, "location": location})
	})

	g.GET("/download/:kind/:item", func(c *gin.Context) {
		img, name, err := artifact(current(c).Data(), c.Param("kind"), c.Param("item"), c.Query("variant"))
		if err != nil {
			s.fail(c, err)
			return
		}
		out, err := export.ToPNG(img)
		if err != nil {
			s.fail(c, err)
			return
		}
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.SingleName(name)))
		c.Data(http.StatusOK, "image/png", out.Data)
	})
}

// artifact resolves one downloadable image. Candidate lists (logos, canvases) are addressed by a
// 1-based variant.
func artifact(d workflow.Data, kind, id, variant string) (media.Image, string, error) {
	pick := func(img *media.Image) (media.Image, error) {
		if img == nil || img.IsZero() {
			return media.Image{}, export.ErrNothingToExport
		}
		return *img, nil
	}

	switch kind {
	case "shots":
		shot, ok := d.Shot(id)
		if !ok {
			return media.Image{}, "", workflow.ErrNotFound
		}
		img, err := pick(shot.Image)
		return img, "storyboard-" + id, err
	case "slots":
		slot, ok := d.Slot(id)
		if !ok {
			return media.Image{}, "", workflow.ErrNotFound
		}
		img, err := pick(slot.Image)
		return img, fmt.Sprintf("listing-asset-%s-%s", slot.Type, id), err
	case "characters":
		ch, ok := d.Character(id)
		if !ok {
			return media.Image{}, "", workflow.ErrNotFound
		}
		if variant == "outfit" {
			img, err := pick(ch.Outfitted)
			return img, ch.Name + "-outfit", err
		}
		img, err := pick(ch.Turnaround)
		return img, ch.Name + "-turnaround", err
	case "environments":
		env, ok := d.Environment(id)
		if !ok {
			return media.Image{}, "", workflow.ErrNotFound
		}
		img, err := pick(env.Anchor)
		return img, "environment-" + id, err
	case "logos":
		n, err := strconv.Atoi(id)
		if err != nil || n < 1 || n > len(d.Storefront.Logos) {
			return media.Image{}, "", workflow.ErrNotFound
		}
		img, err := pick(&d.Storefront.Logos[n-1])
		return img, fmt.Sprintf("storefront-logo-%d", n), err
	case "canvases":
		cv, ok := d.Canvas(id)
		if !ok {
			return media.Image{}, "", workflow.ErrNotFound
		}
		n := 1
		if variant != "" {
			v, err := strconv.Atoi(variant)
			if err != nil || v < 1 {
				return media.Image{}, "", workflow.ErrNotFound
			}
			n = v
		}
		if n > len(cv.Candidates) {
			return media.Image{}, "", export.ErrNothingToExport
		}
		img, err := pick(&cv.Candidates[n-1])
		return img, fmt.Sprintf("storefront-%s-%d", id, n), err
	}
	return media.Image{}, "", workflow.ErrNotFound
}

// handleMaskPreview replays the strokes over the base image and returns the composite as PNG.
func (s *Server) handleMaskPreview(c *gin.Context) {
	var req maskPreviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	base, err := media.ParseDataURL(req.Image)
	if err != nil {
		s.fail(c, err)
		return
	}
	decoded, _, err := image.Decode(bytes.NewReader(base.Data))
	if err != nil {
		badRequest(c, fmt.Errorf("decode base image: %w", err))
		return
	}
	canvas, err := req.Strokes.Canvas()
	if err != nil {
		s.fail(c, err)
		return
	}
	preview, err := canvas.Preview(decoded)
	if err != nil {
		s.fail(c, err)
		return
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, preview); err != nil {
		s.fail(c, err)
		return
	}
	c.Data(http.StatusOK, "image/png", buf.Bytes())
}

func dataURLs(imgs []media.Image) []string {
	out := make([]string, len(imgs))
	for i, img := range imgs {
		out[i] = img.DataURL()
	}
	return out
}
