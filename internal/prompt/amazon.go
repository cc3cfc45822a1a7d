package prompt

import (
	"fmt"
	"strings"

	"eagle-studio/internal/media"
	"eagle-studio/internal/schema"
	"eagle-studio/internal/workflow"
)

type slotBrief struct {
	ID   string            `json:"id"`
	Type workflow.SlotType `json:"type"`
	Size string            `json:"size"`
}

// AmazonBrief asks for a prompt and a final render prompt for every listing slot.
func AmazonBrief(token string, slots []workflow.AmazonImageConfig, notes string) (Request, error) {
	if blank(token) {
		return Request{}, missing(KindAmazonBrief, "product token")
	}
	if len(slots) == 0 {
		return Request{}, missing(KindAmazonBrief, "listing plan")
	}
	brief := make([]slotBrief, len(slots))
	for i, s := range slots {
		brief[i] = slotBrief{ID: s.ID, Type: s.Type, Size: s.Size}
	}

	var b strings.Builder
	b.WriteString("Plan the visual strategy of an Amazon listing.\n")
	b.WriteString("PRODUCT DNA: " + strings.TrimSpace(token) + "\n")
	b.WriteString("SLOTS: " + compactJSON(brief) + "\n")
	if !blank(notes) {
		b.WriteString("CONTEXT: " + strings.TrimSpace(notes) + "\n")
	}
	b.WriteString("Aim for conversion while keeping the product's physical identity exact. MAIN slots use a pure white background.\n")
	b.WriteString("Return a JSON array with id, prompt and finalPrompt for every slot id above.")
	return Request{Kind: KindAmazonBrief, Model: ModelText, Parts: []Part{Text(b.String())}, Schema: schema.AmazonBrief}, nil
}

// AmazonRender places the product photo into a slot scene at the slot's aspect ratio.
func AmazonRender(product media.Image, slot workflow.AmazonImageConfig, size Resolution) (Request, error) {
	if product.IsZero() {
		return Request{}, missing(KindAmazonRender, "product reference")
	}
	if blank(slot.FinalPrompt) {
		return Request{}, missing(KindAmazonRender, "final prompt")
	}
	text := fmt.Sprintf("ULTRA-HIGH FIDELITY AMAZON RENDER: Use the attached product photo. The rendered product must match it perfectly, with no variation. Scene: %s.",
		strings.TrimSpace(slot.FinalPrompt))
	return Request{
		Kind:  KindAmazonRender,
		Model: ModelImage,
		Parts: []Part{Inline(product), Text(text)},
		Image: &ImageConfig{AspectRatio: AspectForSize(slot.Size), Size: ParseResolution(string(size))},
	}, nil
}

type AmazonEditInput struct {
	Source      media.Image
	Instruction string
	Product     *media.Image
	Mask        *media.Image
	Size        Resolution
}

// AmazonEdit revises a listing asset. The aspect ratio is left to the source image.
func AmazonEdit(in AmazonEditInput) (Request, error) {
	if in.Source.IsZero() {
		return Request{}, missing(KindAmazonEdit, "source image")
	}
	if blank(in.Instruction) {
		return Request{}, missing(KindAmazonEdit, "edit instruction")
	}
	parts := []Part{
		Inline(in.Source),
		Text(fmt.Sprintf("Edit this Amazon asset: %s. Keep the original product design intact.", strings.TrimSpace(in.Instruction))),
	}
	if in.Product != nil && !in.Product.IsZero() {
		parts = append(parts, Inline(*in.Product))
	}
	if in.Mask != nil && !in.Mask.IsZero() {
		parts = append(parts, Text("Apply the changes only inside the white mask area:"), Inline(*in.Mask))
	}
	return Request{
		Kind:  KindAmazonEdit,
		Model: ModelImage,
		Parts: parts,
		Image: &ImageConfig{Size: ParseResolution(string(in.Size))},
	}, nil
}
