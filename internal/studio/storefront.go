package studio

import (
	"context"

	"golang.org/x/sync/errgroup"

	"eagle-studio/internal/media"
	"eagle-studio/internal/prompt"
	"eagle-studio/internal/workflow"
)

const candidates = 3

// DesignInput carries the storefront fields the user edits.
type DesignInput struct {
	BrandName     string
	Category      string
	Notes         string
	LogoReference *media.Image
	UseLogoAnchor *bool
}

// UpdateDesign applies the edited storefront fields.
func (s *Service) UpdateDesign(sess *workflow.Session, in DesignInput) (workflow.StorefrontDesign, error) {
	var out workflow.StorefrontDesign
	err := sess.Update(func(d *workflow.Data) error {
		d.Storefront.BrandName = in.BrandName
		d.Storefront.Category = in.Category
		d.Storefront.Notes = in.Notes
		if in.LogoReference != nil {
			d.Storefront.LogoReference = in.LogoReference
		}
		if in.UseLogoAnchor != nil {
			d.Storefront.UseLogoAnchor = *in.UseLogoAnchor
		}
		out = d.Storefront
		return nil
	})
	return out, err
}

// GenerateLogos draws three logo candidates concurrently. Any failure fails the whole set and the
// previous candidates stay.
func (s *Service) GenerateLogos(ctx context.Context, sess *workflow.Session) ([]media.Image, error) {
	req, err := prompt.StorefrontLogo(sess.Data().Storefront)
	if err != nil {
		return nil, err
	}
	ticket, err := sess.Begin(workflow.KindLogo, "")
	if err != nil {
		return nil, err
	}
	imgs, err := s.fanOut(ctx, req)
	if err != nil {
		s.logger.Warn("logo generation failed", "session", sess.ID(), "err", err)
		return nil, err
	}
	if err := s.settle(sess, ticket, func() error { return sess.ApplyLogos(ticket, imgs) }); err != nil {
		return nil, err
	}
	return imgs, nil
}

// RenderCanvas draws three candidates for one storefront canvas, anchored to the selected logo when
// that is enabled.
func (s *Service) RenderCanvas(ctx context.Context, sess *workflow.Session, id string) ([]media.Image, error) {
	d := sess.Data()
	canvas, ok := d.Canvas(id)
	if !ok {
		return nil, workflow.ErrNotFound
	}
	req, err := prompt.StorefrontCanvas(d.Storefront, canvas, s.size)
	if err != nil {
		return nil, err
	}
	ticket, err := sess.Begin(workflow.KindCanvas, id)
	if err != nil {
		return nil, err
	}
	imgs, err := s.fanOut(ctx, req)
	if err != nil {
		s.logger.Warn("canvas render failed", "session", sess.ID(), "canvas", id, "err", err)
		return nil, err
	}
	if err := s.settle(sess, ticket, func() error { return sess.ApplyCanvasCandidates(ticket, imgs) }); err != nil {
		return nil, err
	}
	s.logger.Info("canvas rendered", "session", sess.ID(), "canvas", id, "aspect", req.Image.AspectRatio)
	return imgs, nil
}

// SetCanvasReference attaches a visual reference to a canvas.
func (s *Service) SetCanvasReference(sess *workflow.Session, id string, ref *media.Image) error {
	return sess.Update(func(d *workflow.Data) error {
		for i := range d.Storefront.Canvases {
			if d.Storefront.Canvases[i].ID == id {
				d.Storefront.Canvases[i].Reference = ref
				return nil
			}
		}
		return workflow.ErrNotFound
	})
}

// SelectLogo marks a logo candidate as the anchor source.
func (s *Service) SelectLogo(sess *workflow.Session, index int) error {
	return sess.Update(func(d *workflow.Data) error {
		if index < 0 || index >= len(d.Storefront.Logos) {
			return workflow.ErrNotFound
		}
		d.Storefront.SelectedLogo = index
		return nil
	})
}

func (s *Service) fanOut(ctx context.Context, req prompt.Request) ([]media.Image, error) {
	imgs := make([]media.Image, candidates)
	g, gctx := errgroup.WithContext(ctx)
	for i := range imgs {
		g.Go(func() error {
			img, err := s.image(gctx, req)
			if err != nil {
				return err
			}
			imgs[i] = img
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return imgs, nil
}
