// Package prompt assembles generation requests from workflow entities. Builders only read their
// inputs; a request with a missing required input is refused with a PreconditionError.
package prompt

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"eagle-studio/internal/media"
	"eagle-studio/internal/schema"
)

const (
	ModelFast  = "gemini-3-flash-preview"
	ModelText  = "gemini-3-pro-preview"
	ModelImage = "gemini-3-pro-image-preview"
)

var ErrMissingPrecondition = errors.New("missing precondition")

type Kind string

const (
	KindFeatureExtraction  Kind = "feature_extraction"
	KindStructureAnalysis  Kind = "structure_analysis"
	KindCreativeBrainstorm Kind = "creative_brainstorm"
	KindRemap              Kind = "remap"
	KindRender             Kind = "render"
	KindEdit               Kind = "edit"
	KindVideoPrompts       Kind = "video_prompts"
	KindPlotVideoPrompts   Kind = "plot_video_prompts"
	KindAmazonBrief        Kind = "amazon_brief"
	KindAmazonRender       Kind = "amazon_render"
	KindAmazonEdit         Kind = "amazon_edit"
	KindPlotProposal       Kind = "plot_proposal"
	KindNarrativeExtension Kind = "narrative_extension"
	KindPlotStoryboard     Kind = "plot_storyboard"
	KindPlotExtension      Kind = "plot_extension"
	KindCharacterSheet     Kind = "character_sheet"
	KindTurnaround         Kind = "turnaround"
	KindCostumes           Kind = "costume_suggestions"
	KindOutfit             Kind = "outfit"
	KindEnvironment        Kind = "environment_render"
	KindStorefrontLogo     Kind = "storefront_logo"
	KindStorefrontCanvas   Kind = "storefront_canvas"
	KindAssistant          Kind = "assistant_chat"
)

// PreconditionError names the input a builder needed and did not get.
type PreconditionError struct {
	Kind  Kind
	Field string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("%s: %s is required", e.Kind, e.Field)
}

func (e *PreconditionError) Is(target error) bool {
	return target == ErrMissingPrecondition
}

func missing(kind Kind, field string) error {
	return &PreconditionError{Kind: kind, Field: field}
}

// Part is one element of the request body: text or an inline image.
type Part struct {
	Text  string       `json:"text,omitempty"`
	Image *media.Image `json:"image,omitempty"`
}

func Text(s string) Part { return Part{Text: s} }

func Inline(img media.Image) Part { return Part{Image: &img} }

// Attachment is an image preceded by a label part in the request body.
type Attachment struct {
	Label string      `json:"label"`
	Image media.Image `json:"image"`
}

func (a Attachment) parts() []Part {
	if a.Label == "" {
		return []Part{Inline(a.Image)}
	}
	return []Part{Text(a.Label), Inline(a.Image)}
}

type ImageConfig struct {
	AspectRatio string     `json:"aspectRatio,omitempty"`
	Size        Resolution `json:"imageSize,omitempty"`
}

// Request is everything the generation client needs for one call.
type Request struct {
	Kind           Kind
	Model          string
	System         string
	Parts          []Part
	Schema         *schema.Schema
	Image          *ImageConfig
	ThinkingBudget int
	Temperature    float64
}

func (r Request) WantsImage() bool { return r.Image != nil }

// Images returns the inline images in request order.
func (r Request) Images() []media.Image {
	var out []media.Image
	for _, p := range r.Parts {
		if p.Image != nil {
			out = append(out, *p.Image)
		}
	}
	return out
}

// PromptText joins the text parts; used for logging and tests.
func (r Request) PromptText() string {
	var texts []string
	for _, p := range r.Parts {
		if p.Text != "" {
			texts = append(texts, p.Text)
		}
	}
	return strings.Join(texts, "\n")
}

type Resolution string

const (
	Res1K Resolution = "1K"
	Res2K Resolution = "2K"
	Res4K Resolution = "4K"
)

// ParseResolution accepts 1K, 2K or 4K in any case and falls back to 1K.
func ParseResolution(value string) Resolution {
	switch Resolution(strings.ToUpper(strings.TrimSpace(value))) {
	case Res2K:
		return Res2K
	case Res4K:
		return Res4K
	default:
		return Res1K
	}
}

func blank(s string) bool { return strings.TrimSpace(s) == "" }

func compactJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "[]"
	}
	return string(b)
}
