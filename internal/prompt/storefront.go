package prompt

import (
	"fmt"
	"strings"

	"eagle-studio/internal/workflow"
)

// StorefrontLogo asks for one logo candidate; callers issue it once per candidate.
func StorefrontLogo(d workflow.StorefrontDesign) (Request, error) {
	brand := strings.TrimSpace(d.BrandName)
	if brand == "" {
		brand = "Generic"
	}
	text := fmt.Sprintf("TASK: Brand Logo Design. BRAND: %s. CATEGORY: %s. NOTES: %s. AESTHETIC: High-end, commercial, minimalist vector style. White background. 400x400.",
		brand, strings.TrimSpace(d.Category), strings.TrimSpace(d.Notes))
	parts := []Part{Text(text)}
	if d.LogoReference != nil && !d.LogoReference.IsZero() {
		parts = append(parts, Inline(*d.LogoReference))
	}
	return Request{
		Kind:  KindStorefrontLogo,
		Model: ModelImage,
		Parts: parts,
		Image: &ImageConfig{AspectRatio: "1:1", Size: Res1K},
	}, nil
}

// StorefrontCanvas asks for one storefront module render at the canvas size.
func StorefrontCanvas(d workflow.StorefrontDesign, c workflow.StorefrontCanvasConfig, size Resolution) (Request, error) {
	if c.Width <= 0 || c.Height <= 0 {
		return Request{}, missing(KindStorefrontCanvas, "canvas size")
	}
	if blank(d.BrandName) {
		return Request{}, missing(KindStorefrontCanvas, "brand name")
	}
	logo := d.LogoAnchor()

	var b strings.Builder
	b.WriteString(fmt.Sprintf("AMAZON PREMIUM STOREFRONT DESIGN: %dx%d. BRAND: %s. CATEGORY: %s. STYLE: %s.\n",
		c.Width, c.Height, strings.TrimSpace(d.BrandName), strings.TrimSpace(d.Category), strings.TrimSpace(d.Notes)))
	b.WriteString("REQUIREMENT: Professional commercial render.")
	if logo != nil {
		b.WriteString(" MANDATORY: Integrate the provided BRAND LOGO into the scene.")
	}

	parts := []Part{Text(b.String())}
	if logo != nil {
		parts = append(parts, Attachment{Label: "BRAND LOGO ANCHOR SOURCE:", Image: *logo}.parts()...)
	}
	if c.Reference != nil && !c.Reference.IsZero() {
		parts = append(parts, Attachment{Label: "VISUAL REFERENCE:", Image: *c.Reference}.parts()...)
	}
	return Request{
		Kind:  KindStorefrontCanvas,
		Model: ModelImage,
		Parts: parts,
		Image: &ImageConfig{AspectRatio: CanvasAspect(c.Width, c.Height), Size: ParseResolution(string(size))},
	}, nil
}
