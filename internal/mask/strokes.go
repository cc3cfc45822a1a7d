package mask

import "eagle-studio/internal/media"

// Strokes is a painting session replayed from a client: the displayed image size, the brush width
// and every stroke path in display pixels.
type Strokes struct {
	Width  int       `json:"width" validate:"required,gt=0"`
	Height int       `json:"height" validate:"required,gt=0"`
	Brush  int       `json:"brush"`
	Paths  [][]Point `json:"paths"`
}

// Canvas replays s on a fresh brush-mode canvas.
func (s Strokes) Canvas() (*Canvas, error) {
	c, err := NewCanvas(s.Width, s.Height)
	if err != nil {
		return nil, err
	}
	if err := c.SetMode(Brush); err != nil {
		return nil, err
	}
	if s.Brush != 0 {
		c.SetBrush(s.Brush)
	}
	for _, p := range s.Paths {
		c.Stroke(p)
	}
	return c, nil
}

// Render returns the mask payload of s, nil when nothing was painted.
func (s Strokes) Render() (*media.Image, error) {
	c, err := s.Canvas()
	if err != nil {
		return nil, err
	}
	return c.Payload()
}
