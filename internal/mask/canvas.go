// Package mask turns brush strokes over a generated image into the binary edit mask sent with an
// edit instruction, plus the translucent overlay shown while painting.
package mask

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"

	"golang.org/x/image/draw"
	"golang.org/x/image/vector"

	"eagle-studio/internal/media"
)

type Mode string

const (
	Global Mode = "global"
	Brush  Mode = "brush"
)

const (
	DefaultBrush = 40
	MinBrush     = 10
	MaxBrush     = 150
)

var (
	ErrBadSize = errors.New("mask canvas needs a positive size")
	ErrNoBase  = errors.New("no base image")
)

var (
	painted    = color.Gray{Y: 255}
	unpainted  = color.Gray{Y: 0}
	overlayInk = color.NRGBA{R: 255, G: 165, B: 0, A: 102}
)

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Canvas holds one painting session over one target image. Not safe for concurrent use.
type Canvas struct {
	mode    Mode
	brush   int
	width   int
	height  int
	mask    *image.Gray
	overlay *image.NRGBA
	dirty   bool
	z       *vector.Rasterizer
	box     image.Rectangle
}

func NewCanvas(width, height int) (*Canvas, error) {
	c := &Canvas{}
	if err := c.Retarget(width, height); err != nil {
		return nil, err
	}
	return c, nil
}

// Retarget points the canvas at a new image: blank mask, default brush, global mode.
func (c *Canvas) Retarget(width, height int) error {
	if width <= 0 || height <= 0 {
		return ErrBadSize
	}
	c.width, c.height = width, height
	c.mode = Global
	c.brush = DefaultBrush
	c.z = vector.NewRasterizer(width, height)
	c.Clear()
	return nil
}

// Clear wipes mask and overlay. The brush size is kept.
func (c *Canvas) Clear() {
	r := image.Rect(0, 0, c.width, c.height)
	c.mask = image.NewGray(r)
	draw.Draw(c.mask, r, image.NewUniform(unpainted), image.Point{}, draw.Src)
	c.overlay = image.NewNRGBA(r)
	c.dirty = false
}

func (c *Canvas) Mode() Mode { return c.mode }

func (c *Canvas) SetMode(m Mode) error {
	switch m {
	case Global, Brush:
		c.mode = m
		return nil
	default:
		return fmt.Errorf("unknown mask mode %q", m)
	}
}

func (c *Canvas) BrushSize() int { return c.brush }

// SetBrush clamps the width to [MinBrush, MaxBrush].
func (c *Canvas) SetBrush(size int) {
	c.brush = min(max(size, MinBrush), MaxBrush)
}

func (c *Canvas) Size() (int, int) { return c.width, c.height }

// Painted reports whether any stroke landed since the last clear.
func (c *Canvas) Painted() bool { return c.dirty }

// Stroke paints a round-capped path. It is ignored in global mode.
func (c *Canvas) Stroke(path []Point) {
	if c.mode != Brush || len(path) == 0 {
		return
	}
	r := float64(c.brush) / 2
	c.disc(path[0], r)
	for i := 1; i < len(path); i++ {
		c.segment(path[i-1], path[i], r)
		c.disc(path[i], r)
	}
}

// segment fills the rectangle of width 2r around a-b; the discs at both ends make the round caps.
func (c *Canvas) segment(a, b Point, r float64) {
	dx, dy := b.X-a.X, b.Y-a.Y
	l := math.Hypot(dx, dy)
	if l == 0 {
		return
	}
	nx, ny := -dy/l*r, dx/l*r

	if !c.begin(math.Min(a.X, b.X)-r, math.Min(a.Y, b.Y)-r, math.Max(a.X, b.X)+r, math.Max(a.Y, b.Y)+r) {
		return
	}
	c.moveTo(a.X+nx, a.Y+ny)
	c.lineTo(b.X+nx, b.Y+ny)
	c.lineTo(b.X-nx, b.Y-ny)
	c.lineTo(a.X-nx, a.Y-ny)
	c.z.ClosePath()
	c.commit()
}

// kappa places cubic control points so four curves approximate a circle.
const kappa = 0.5522847498

func (c *Canvas) disc(p Point, r float64) {
	if !c.begin(p.X-r, p.Y-r, p.X+r, p.Y+r) {
		return
	}
	k := r * kappa
	c.moveTo(p.X+r, p.Y)
	c.cubeTo(p.X+r, p.Y+k, p.X+k, p.Y+r, p.X, p.Y+r)
	c.cubeTo(p.X-k, p.Y+r, p.X-r, p.Y+k, p.X-r, p.Y)
	c.cubeTo(p.X-r, p.Y-k, p.X-k, p.Y-r, p.X, p.Y-r)
	c.cubeTo(p.X+k, p.Y-r, p.X+r, p.Y-k, p.X+r, p.Y)
	c.z.ClosePath()
	c.commit()
}

// begin sizes the rasterizer to the primitive's bounding box clipped to the canvas. Path
// coordinates stay in canvas space and are shifted by the box origin.
func (c *Canvas) begin(minX, minY, maxX, maxY float64) bool {
	box := image.Rect(
		int(math.Floor(minX)), int(math.Floor(minY)),
		int(math.Ceil(maxX))+1, int(math.Ceil(maxY))+1,
	).Intersect(image.Rect(0, 0, c.width, c.height))
	if box.Empty() {
		return false
	}
	c.box = box
	c.z.Reset(box.Dx(), box.Dy())
	return true
}

func (c *Canvas) moveTo(x, y float64) {
	c.z.MoveTo(c.local(x, y))
}

func (c *Canvas) lineTo(x, y float64) {
	c.z.LineTo(c.local(x, y))
}

func (c *Canvas) cubeTo(x1, y1, x2, y2, x, y float64) {
	ax, ay := c.local(x1, y1)
	bx, by := c.local(x2, y2)
	cx, cy := c.local(x, y)
	c.z.CubeTo(ax, ay, bx, by, cx, cy)
}

func (c *Canvas) local(x, y float64) (float32, float32) {
	return float32(x - float64(c.box.Min.X)), float32(y - float64(c.box.Min.Y))
}

// commit rasterizes the pending primitive and thresholds its coverage into both layers, so the
// mask stays strictly black and white.
func (c *Canvas) commit() {
	cover := image.NewAlpha(image.Rect(0, 0, c.box.Dx(), c.box.Dy()))
	c.z.Draw(cover, cover.Bounds(), image.Opaque, image.Point{})

	for y := 0; y < c.box.Dy(); y++ {
		row := cover.Pix[y*cover.Stride : y*cover.Stride+c.box.Dx()]
		for x, a := range row {
			if a < 128 {
				continue
			}
			px, py := c.box.Min.X+x, c.box.Min.Y+y
			c.mask.SetGray(px, py, painted)
			c.overlay.SetNRGBA(px, py, overlayInk)
			c.dirty = true
		}
	}
}

// Mask returns a copy of the binary mask layer.
func (c *Canvas) Mask() *image.Gray {
	out := image.NewGray(c.mask.Rect)
	copy(out.Pix, c.mask.Pix)
	return out
}

// Overlay returns a copy of the visible overlay layer.
func (c *Canvas) Overlay() *image.NRGBA {
	out := image.NewNRGBA(c.overlay.Rect)
	copy(out.Pix, c.overlay.Pix)
	return out
}

// Payload encodes the mask as PNG. Global mode and an unpainted canvas have no payload.
func (c *Canvas) Payload() (*media.Image, error) {
	if c.mode != Brush || !c.dirty {
		return nil, nil
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, c.mask); err != nil {
		return nil, fmt.Errorf("encode mask: %w", err)
	}
	img := media.New(buf.Bytes(), "image/png")
	return &img, nil
}

// Preview scales base to the canvas size and composites the overlay on top.
func (c *Canvas) Preview(base image.Image) (*image.NRGBA, error) {
	if base == nil {
		return nil, ErrNoBase
	}
	bounds := image.Rect(0, 0, c.width, c.height)
	out := image.NewNRGBA(bounds)
	draw.ApproxBiLinear.Scale(out, bounds, base, base.Bounds(), draw.Src, nil)
	draw.Draw(out, bounds, c.overlay, image.Point{}, draw.Over)
	return out, nil
}
