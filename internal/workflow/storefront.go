package workflow

import "github.com/google/uuid"

const (
	firstCanvasSide = 1600
	newCanvasSide   = 1000
)

func DefaultStorefront() StorefrontDesign {
	return StorefrontDesign{
		SelectedLogo: -1,
		Canvases: []StorefrontCanvasConfig{
			{ID: "sf-1", Width: firstCanvasSide, Height: firstCanvasSide},
		},
	}
}

// AddCanvas appends a 1000x1000 canvas.
func (s *Session) AddCanvas() StorefrontCanvasConfig {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := StorefrontCanvasConfig{ID: "sf-" + uuid.NewString()[:8], Width: newCanvasSide, Height: newCanvasSide}
	s.data.Storefront.Canvases = append(s.data.Storefront.Canvases, c)
	s.touchLocked()
	return c
}

// RemoveCanvas deletes a canvas; the last one cannot be removed.
func (s *Session) RemoveCanvas(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.data.canvasIndex(id)
	if idx < 0 {
		return ErrNotFound
	}
	if len(s.data.Storefront.Canvases) == 1 {
		return ErrLastCanvas
	}
	canvases := s.data.Storefront.Canvases
	s.data.Storefront.Canvases = append(canvases[:idx:idx], canvases[idx+1:]...)
	s.touchLocked()
	return nil
}
