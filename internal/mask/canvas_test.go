package mask

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func brushCanvas(t *testing.T, w, h int) *Canvas {
	t.Helper()
	c, err := NewCanvas(w, h)
	require.NoError(t, err)
	require.NoError(t, c.SetMode(Brush))
	return c
}

func TestClearRestoresBlankState(t *testing.T) {
	c := brushCanvas(t, 120, 80)
	blankMask := c.Mask()
	blankOverlay := c.Overlay()

	c.SetBrush(30)
	c.Stroke([]Point{{10, 10}, {100, 60}, {20, 70}})
	require.True(t, c.Painted())
	assert.NotEqual(t, blankMask.Pix, c.Mask().Pix)

	c.Clear()
	assert.Equal(t, blankMask.Pix, c.Mask().Pix)
	assert.Equal(t, blankOverlay.Pix, c.Overlay().Pix)
	assert.False(t, c.Painted())
	assert.Equal(t, 30, c.BrushSize())

	payload, err := c.Payload()
	require.NoError(t, err)
	assert.Nil(t, payload)
}

func TestStrokeIsBinaryAndRoundCapped(t *testing.T) {
	c := brushCanvas(t, 200, 100)
	c.SetBrush(20)
	c.Stroke([]Point{{50, 50}, {150, 50}})

	m := c.Mask()
	for _, v := range m.Pix {
		require.True(t, v == 0 || v == 255, "mask must be black or white, got %d", v)
	}

	assert.Equal(t, uint8(255), m.GrayAt(100, 50).Y)
	assert.Equal(t, uint8(255), m.GrayAt(100, 42).Y)
	assert.Equal(t, uint8(0), m.GrayAt(100, 30).Y)
	// round cap reaches past the end point
	assert.Equal(t, uint8(255), m.GrayAt(157, 50).Y)
	assert.Equal(t, uint8(0), m.GrayAt(157, 58).Y)
	assert.Equal(t, uint8(0), m.GrayAt(170, 50).Y)

	ov := c.Overlay().NRGBAAt(100, 50)
	assert.Equal(t, color.NRGBA{R: 255, G: 165, B: 0, A: 102}, ov)
	assert.Equal(t, color.NRGBA{}, c.Overlay().NRGBAAt(5, 5))
}

func TestStrokeNearEdgeIsClipped(t *testing.T) {
	c := brushCanvas(t, 50, 50)
	c.Stroke([]Point{{-10, -10}, {2, 2}})
	assert.Equal(t, uint8(255), c.Mask().GrayAt(0, 0).Y)
	assert.Equal(t, uint8(0), c.Mask().GrayAt(49, 49).Y)
}

func TestGlobalModeHasNoPayload(t *testing.T) {
	c, err := NewCanvas(40, 40)
	require.NoError(t, err)
	assert.Equal(t, Global, c.Mode())

	c.Stroke([]Point{{20, 20}})
	assert.False(t, c.Painted())

	payload, err := c.Payload()
	require.NoError(t, err)
	assert.Nil(t, payload)
}

func TestPayloadIsPNGOfCanvasSize(t *testing.T) {
	c := brushCanvas(t, 64, 48)
	c.Stroke([]Point{{32, 24}})

	payload, err := c.Payload()
	require.NoError(t, err)
	require.NotNil(t, payload)
	assert.Equal(t, "image/png", payload.MIMEType)

	decoded, err := png.Decode(bytes.NewReader(payload.Data))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 64, 48), decoded.Bounds())
	r, _, _, _ := decoded.At(32, 24).RGBA()
	assert.Equal(t, uint32(0xffff), r)
}

func TestBrushClampAndRetarget(t *testing.T) {
	c := brushCanvas(t, 10, 10)
	assert.Equal(t, DefaultBrush, c.BrushSize())

	c.SetBrush(1)
	assert.Equal(t, MinBrush, c.BrushSize())
	c.SetBrush(1000)
	assert.Equal(t, MaxBrush, c.BrushSize())

	c.Stroke([]Point{{5, 5}})
	require.NoError(t, c.Retarget(30, 20))
	assert.Equal(t, DefaultBrush, c.BrushSize())
	assert.Equal(t, Global, c.Mode())
	assert.False(t, c.Painted())
	w, h := c.Size()
	assert.Equal(t, []int{30, 20}, []int{w, h})

	assert.ErrorIs(t, c.Retarget(0, 10), ErrBadSize)
	assert.Error(t, c.SetMode("lasso"))
}

func TestPreviewCompositesOverlay(t *testing.T) {
	c := brushCanvas(t, 40, 20)
	c.Stroke([]Point{{10, 10}})

	base := image.NewNRGBA(image.Rect(0, 0, 80, 40))
	for i := 0; i < len(base.Pix); i += 4 {
		base.Pix[i], base.Pix[i+1], base.Pix[i+2], base.Pix[i+3] = 0, 0, 255, 255
	}

	out, err := c.Preview(base)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 40, 20), out.Bounds())

	untouched := out.NRGBAAt(35, 5)
	assert.Equal(t, color.NRGBA{B: 255, A: 255}, untouched)

	tinted := out.NRGBAAt(10, 10)
	assert.Greater(t, tinted.R, uint8(90))
	assert.Less(t, tinted.B, uint8(255))

	_, err = c.Preview(nil)
	assert.ErrorIs(t, err, ErrNoBase)
}

func TestStrokesRender(t *testing.T) {
	payload, err := Strokes{Width: 32, Height: 32, Brush: 12, Paths: [][]Point{{{4, 4}, {28, 28}}}}.Render()
	require.NoError(t, err)
	require.NotNil(t, payload)

	payload, err = Strokes{Width: 32, Height: 32}.Render()
	require.NoError(t, err)
	assert.Nil(t, payload)

	_, err = Strokes{}.Render()
	assert.ErrorIs(t, err, ErrBadSize)
}
