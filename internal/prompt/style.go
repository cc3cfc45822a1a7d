package prompt

import (
	"math"
	"strconv"
	"strings"

	"eagle-studio/internal/workflow"
)

// DefaultStyle is used for render calls whose roster carries no plot style.
const DefaultStyle = "Photorealistic commercial photography"

type StyleOption struct {
	Key    workflow.PlotStyle `json:"key"`
	Name   string             `json:"name"`
	Phrase string             `json:"phrase"`
}

var styleCatalog = []StyleOption{
	{workflow.StyleAnime, "Anime", "2D high-quality anime cel shaded style, vibrant colors, clean lines, Japanese manga aesthetic, hand-drawn look."},
	{workflow.StyleRealistic, "Realistic", "Highly photorealistic cinematic live-action photography, 8k RAW photo, masterwork, detailed skin textures, realistic human features, cinematic lighting."},
	{workflow.StyleCyberpunk, "Cyberpunk", "Cyberpunk aesthetic, neon lighting, futuristic tech accessories, high contrast, vibrant purples and cyans."},
	{workflow.StylePixar, "3D Animation", "3D animated feature film style, Pixar/Disney aesthetic, soft rounded features, stylized textures, CGI animation look."},
	{workflow.StyleSketch, "Sketch", "Hand-drawn concept art sketch, charcoal and pencil, artistic lines, monochromatic."},
	{workflow.StyleInk, "Ink Wash", "Traditional Chinese ink wash painting, Shan Shui style, expressive black ink brushwork."},
	{workflow.StyleRealisticInkFusion, "Realistic Ink Fusion", "Fusion of high-fidelity 3D realistic cinematic rendering and expressive traditional ink wash particles."},
	{workflow.StyleChinese, "Guofeng", "Modern Chinese aesthetic (Guofeng), grand cinematic photography, silk textures, elegant vermilion and gold palette."},
	{workflow.StyleChinese3DAnime, "Chinese 3D Anime", "High-end Chinese 3D animation rendering style (Xianxia/Xuanhuan), masterwork CGI, Unreal Engine 5 look."},
}

func Styles() []StyleOption {
	return append([]StyleOption(nil), styleCatalog...)
}

// StylePhrase returns the phrase for a plot style, or "" for an unknown one.
func StylePhrase(style workflow.PlotStyle) string {
	for _, s := range styleCatalog {
		if s.Key == style {
			return s.Phrase
		}
	}
	return ""
}

func ParseStyle(value string) (workflow.PlotStyle, bool) {
	key := workflow.PlotStyle(strings.ToUpper(strings.TrimSpace(value)))
	return key, StylePhrase(key) != ""
}

// RosterStyle is the phrase of the first character, which sets the look of the whole film.
func RosterStyle(roster []workflow.PlotCharacter) string {
	if len(roster) == 0 {
		return ""
	}
	return StylePhrase(roster[0].Style)
}

// ParseSize reads a "WxH" pixel size.
func ParseSize(size string) (int, int, bool) {
	w, h, ok := strings.Cut(strings.ToLower(strings.TrimSpace(size)), "x")
	if !ok {
		return 0, 0, false
	}
	width, err := strconv.Atoi(strings.TrimSpace(w))
	if err != nil || width <= 0 {
		return 0, 0, false
	}
	height, err := strconv.Atoi(strings.TrimSpace(h))
	if err != nil || height <= 0 {
		return 0, 0, false
	}
	return width, height, true
}

// AspectForSize maps a slot size to the closest aspect ratio the image model supports.
func AspectForSize(size string) string {
	w, h, ok := ParseSize(size)
	if !ok {
		return "1:1"
	}
	r := float64(w) / float64(h)
	switch {
	case math.Abs(r-1) < 0.1:
		return "1:1"
	case math.Abs(r-16.0/9.0) < 0.3:
		return "16:9"
	case math.Abs(r-9.0/16.0) < 0.3:
		return "9:16"
	case math.Abs(r-4.0/3.0) < 0.2:
		return "4:3"
	case math.Abs(r-3.0/4.0) < 0.2:
		return "3:4"
	case r > 1.2:
		return "16:9"
	case r < 0.8:
		return "9:16"
	default:
		return "1:1"
	}
}

// CanvasAspect is the coarse mapping used for storefront canvases.
func CanvasAspect(width, height int) string {
	switch {
	case width == height:
		return "1:1"
	case width > height:
		return "16:9"
	default:
		return "9:16"
	}
}
