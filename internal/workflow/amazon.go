package workflow

import (
	"fmt"
	"strings"
)

const (
	DefaultMainCount      = 1
	DefaultSecondaryCount = 6
	DefaultAPlusCount     = 4
	DefaultGallerySize    = "1600x1600"
	DefaultAPlusSize      = "970x600"
)

type PlanConfig struct {
	Main        int    `json:"main" validate:"min=0,max=20"`
	Secondary   int    `json:"secondary" validate:"min=0,max=20"`
	APlus       int    `json:"aplus" validate:"min=0,max=20"`
	GallerySize string `json:"gallerySize"`
	APlusSize   string `json:"aplusSize"`
}

func DefaultPlanConfig() PlanConfig {
	return PlanConfig{
		Main:        DefaultMainCount,
		Secondary:   DefaultSecondaryCount,
		APlus:       DefaultAPlusCount,
		GallerySize: DefaultGallerySize,
		APlusSize:   DefaultAPlusSize,
	}
}

// NewAmazonPlan creates the slot list: main, then secondary, then A+. Gallery slots carry the
// gallery size, A+ slots the A+ size.
func NewAmazonPlan(cfg PlanConfig) AmazonPlan {
	gallery := strings.TrimSpace(cfg.GallerySize)
	if gallery == "" {
		gallery = DefaultGallerySize
	}
	aplus := strings.TrimSpace(cfg.APlusSize)
	if aplus == "" {
		aplus = DefaultAPlusSize
	}

	plan := make(AmazonPlan, 0, max(cfg.Main, 0)+max(cfg.Secondary, 0)+max(cfg.APlus, 0))
	for i := 0; i < cfg.Main; i++ {
		plan = append(plan, AmazonImageConfig{ID: fmt.Sprintf("main-%d", i), Type: SlotMain, Size: gallery})
	}
	for i := 0; i < cfg.Secondary; i++ {
		plan = append(plan, AmazonImageConfig{ID: fmt.Sprintf("sec-%d", i), Type: SlotSecondary, Size: gallery})
	}
	for i := 0; i < cfg.APlus; i++ {
		plan = append(plan, AmazonImageConfig{ID: fmt.Sprintf("aplus-%d", i), Type: SlotAPlus, Size: aplus})
	}
	return plan
}

// BriefUpdate is the model's proposal for one slot.
type BriefUpdate struct {
	ID          string `json:"id" validate:"required"`
	Prompt      string `json:"prompt"`
	FinalPrompt string `json:"finalPrompt"`
}

// MergeBrief fills prompt fields by slot id. Unknown ids are ignored; type and size never change.
func MergeBrief(slots []AmazonImageConfig, updates []BriefUpdate) []AmazonImageConfig {
	out := append([]AmazonImageConfig(nil), slots...)
	for _, u := range updates {
		for i := range out {
			if out[i].ID != u.ID {
				continue
			}
			out[i].Prompt = u.Prompt
			out[i].FinalPrompt = u.FinalPrompt
		}
	}
	return out
}

// PendingSlots lists slots that have a final prompt but no image.
func (d Data) PendingSlots() []string {
	var out []string
	for _, s := range d.AmazonSlots {
		if !s.Generated() && strings.TrimSpace(s.FinalPrompt) != "" {
			out = append(out, s.ID)
		}
	}
	return out
}
