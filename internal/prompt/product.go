package prompt

import (
	"fmt"
	"strings"

	"eagle-studio/internal/media"
	"eagle-studio/internal/schema"
	"eagle-studio/internal/workflow"
)

// FeatureExtraction asks for the fidelity token of a product image set.
func FeatureExtraction(images []media.Image) (Request, error) {
	var parts []Part
	for _, img := range images {
		if !img.IsZero() {
			parts = append(parts, Inline(img))
		}
	}
	if len(parts) == 0 {
		return Request{}, missing(KindFeatureExtraction, "product images")
	}

	var b strings.Builder
	b.WriteString("TASK: Product identity extraction for pixel-faithful reproduction.\n")
	b.WriteString("- Describe the exact silhouette and proportions.\n")
	b.WriteString("- List every color, with hex codes when you can estimate them.\n")
	b.WriteString("- Note logo and label placement, surface textures, materials, buttons and other physical details.\n")
	b.WriteString("Finish with a short summary stating that these features must not be altered in any render.")
	parts = append(parts, Text(b.String()))

	return Request{Kind: KindFeatureExtraction, Model: ModelFast, Parts: parts}, nil
}

// StructureAnalysis deconstructs a reference video into shots.
func StructureAnalysis(video media.Image) (Request, error) {
	if video.IsZero() {
		return Request{}, missing(KindStructureAnalysis, "reference video")
	}
	text := "Study only the cinematography of this reference video. For each shot, break down framing, camera path, lighting and pacing, and what the subject does. Answer with JSON."
	return Request{
		Kind:   KindStructureAnalysis,
		Model:  ModelFast,
		Parts:  []Part{Inline(video), Text(text)},
		Schema: schema.ShotList,
	}, nil
}

// CreativeBrainstorm writes a shot list from a brief instead of a reference video.
func CreativeBrainstorm(token, brief string) (Request, error) {
	if blank(token) {
		return Request{}, missing(KindCreativeBrainstorm, "product token")
	}
	if blank(brief) {
		return Request{}, missing(KindCreativeBrainstorm, "creative brief")
	}
	text := fmt.Sprintf("You are the creative director of a premium commercial.\nPRODUCT DNA: %s\nBRIEF: %s\nWrite the shot-by-shot script. Every shot must show the product's original features unchanged. Answer with JSON.",
		strings.TrimSpace(token), strings.TrimSpace(brief))
	return Request{Kind: KindCreativeBrainstorm, Model: ModelText, Parts: []Part{Text(text)}, Schema: schema.ShotList}, nil
}

// Remap turns a shot structure into one image prompt per shot.
func Remap(token string, shots []workflow.ShotStructure) (Request, error) {
	if blank(token) {
		return Request{}, missing(KindRemap, "product token")
	}
	if len(shots) == 0 {
		return Request{}, missing(KindRemap, "shot list")
	}

	var b strings.Builder
	b.WriteString("TASK: Write one image generation prompt per shot.\n")
	b.WriteString("PRODUCT DNA: " + strings.TrimSpace(token) + "\n")
	b.WriteString("SHOTS: " + compactJSON(shots) + "\n")
	b.WriteString("RULES:\n")
	b.WriteString("- The product is the anchor and must match the DNA exactly. Never add, remove or reshape a feature.\n")
	b.WriteString("- Place that exact product into each shot's lighting and camera angle.\n")
	b.WriteString(fmt.Sprintf("- Return exactly %d prompts in shot order as JSON.", len(shots)))
	return Request{Kind: KindRemap, Model: ModelText, Parts: []Part{Text(b.String())}, Schema: schema.Remap}, nil
}

// RemapFallback is the prompt used for a shot the model left out.
func RemapFallback(token string, shot workflow.ShotStructure) string {
	return fmt.Sprintf("Detailed shot of %s, %s, %s", strings.TrimSpace(token), shot.ShotType, shot.Lighting)
}

// Fidelity is the render instruction that pins the product to its reference.
func Fidelity(scene, style string) string {
	if blank(style) {
		style = DefaultStyle
	}
	var b strings.Builder
	b.WriteString("STRICT PRODUCT FIDELITY MODE:\n")
	b.WriteString("1. Inspect the attached product reference closely.\n")
	b.WriteString("2. The rendered product must be an exact physical copy of it.\n")
	b.WriteString("3. Keep its color, logo, buttons, textures and shape unchanged.\n")
	b.WriteString("4. SCENE: " + strings.TrimSpace(scene) + ".\n")
	b.WriteString("5. STYLE: " + strings.TrimSpace(style) + ".\n")
	b.WriteString("6. Keep the product as the focal point with full brand consistency.")
	return b.String()
}

type RenderInput struct {
	Instruction string
	Attachments []Attachment
	Size        Resolution
}

// Render builds a 16:9 storyboard frame request: instruction first, then labelled attachments.
func Render(in RenderInput) (Request, error) {
	if blank(in.Instruction) {
		return Request{}, missing(KindRender, "instruction")
	}
	parts := []Part{Text(in.Instruction)}
	for _, a := range in.Attachments {
		if a.Image.IsZero() {
			continue
		}
		parts = append(parts, a.parts()...)
	}
	return Request{
		Kind:  KindRender,
		Model: ModelImage,
		Parts: parts,
		Image: &ImageConfig{AspectRatio: "16:9", Size: ParseResolution(string(in.Size))},
	}, nil
}

type EditInput struct {
	Source      media.Image
	Instruction string
	Reference   *media.Image
	Mask        *media.Image
	Size        Resolution
}

// Edit changes a generated frame. With a mask only the white area is meant to change.
func Edit(in EditInput) (Request, error) {
	if in.Source.IsZero() {
		return Request{}, missing(KindEdit, "source image")
	}
	if blank(in.Instruction) {
		return Request{}, missing(KindEdit, "edit instruction")
	}
	parts := []Part{
		Inline(in.Source),
		Text(fmt.Sprintf("Edit this image as follows: %s. The product itself must keep its exact appearance; change only the surroundings or lighting.", strings.TrimSpace(in.Instruction))),
	}
	if in.Reference != nil && !in.Reference.IsZero() {
		parts = append(parts, Text("STYLE REFERENCE:"), Inline(*in.Reference))
	}
	if in.Mask != nil && !in.Mask.IsZero() {
		parts = append(parts, Text("Edit only the white area of this mask:"), Inline(*in.Mask))
	}
	return Request{
		Kind:  KindEdit,
		Model: ModelImage,
		Parts: parts,
		Image: &ImageConfig{AspectRatio: "16:9", Size: ParseResolution(string(in.Size))},
	}, nil
}

type videoShot struct {
	SubjectAction string `json:"subjectAction"`
	Camera        string `json:"camera"`
	Lighting      string `json:"lighting"`
}

// VideoPrompts asks for one video prompt per storyboard shot.
func VideoPrompts(token string, shots []workflow.RemappedShot) (Request, error) {
	if blank(token) {
		return Request{}, missing(KindVideoPrompts, "product token")
	}
	if len(shots) == 0 {
		return Request{}, missing(KindVideoPrompts, "storyboard")
	}
	brief := make([]videoShot, len(shots))
	for i, s := range shots {
		brief[i] = videoShot{SubjectAction: s.SubjectAction, Camera: s.CameraMovement, Lighting: s.Lighting}
	}

	var b strings.Builder
	b.WriteString("You are a senior video director preparing prompts for a text-to-video model.\n")
	b.WriteString("PRODUCT DNA: " + strings.TrimSpace(token) + "\n")
	b.WriteString("STORYBOARD: " + compactJSON(brief) + "\n")
	b.WriteString("For each shot write a detailed video prompt covering motion, physics and light while keeping every product feature exact.\n")
	b.WriteString(fmt.Sprintf("Return a JSON array of %d strings, one per shot in order.", len(shots)))
	return Request{Kind: KindVideoPrompts, Model: ModelText, Parts: []Part{Text(b.String())}, Schema: schema.VideoPrompts}, nil
}

// VideoFallback is used for a shot the model returned no video prompt for.
func VideoFallback(token string, shot workflow.RemappedShot) string {
	return fmt.Sprintf("Cinematic commercial video of %s, %s, slow motion, 8k.", strings.TrimSpace(token), shot.SubjectAction)
}
