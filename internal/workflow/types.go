package workflow

import (
	"strings"

	"eagle-studio/internal/media"
)

type Mode string

const (
	ModeReference  Mode = "reference"
	ModeCreative   Mode = "creative"
	ModeAmazon     Mode = "amazon"
	ModePlot       Mode = "plot"
	ModeStorefront Mode = "storefront"
)

func ParseMode(value string) (Mode, error) {
	m := Mode(strings.ToLower(strings.TrimSpace(value)))
	if _, ok := graphs[m]; !ok {
		return "", ErrUnknownMode
	}
	return m, nil
}

type Step string

const (
	StepProductAnchoring Step = "product_anchoring"
	StepVideoAnalysis    Step = "video_analysis"
	StepCreativeScript   Step = "creative_script"
	StepPromptRemapping  Step = "prompt_remapping"
	StepStoryboarding    Step = "storyboarding"
	StepVideoPrompts     Step = "video_prompts"

	StepAmazonConfig  Step = "amazon_config"
	StepAmazonBrief   Step = "amazon_brief"
	StepAmazonVisuals Step = "amazon_visuals"

	StepCharacterAnchor     Step = "character_anchor"
	StepCharacterTurnaround Step = "character_turnaround"
	StepScriptBrainstorm    Step = "script_brainstorm"
	StepEnvironmentAnchor   Step = "environment_anchor"
	StepCharacterOutfit     Step = "character_outfit"
	StepPlotStoryboard      Step = "plot_storyboard"
	StepPlotFinalPrompts    Step = "plot_final_prompts"

	StepStorefrontConfig Step = "storefront_config"
)

// ProductAnchor is the fidelity token extracted from the uploaded product images, plus the images.
type ProductAnchor struct {
	Token  string        `json:"token"`
	Images []media.Image `json:"images,omitempty"`
	Brief  string        `json:"brief,omitempty"`
}

// Reference returns the first product image, the one attached to every render.
func (p ProductAnchor) Reference() *media.Image {
	for _, img := range p.Images {
		if !img.IsZero() {
			return img.Ptr()
		}
	}
	return nil
}

type DialogueType string

const (
	DialogueVO        DialogueType = "VO"
	DialogueCharacter DialogueType = "CHARACTER"
)

type ShotStructure struct {
	Timestamp      string       `json:"timestamp" validate:"required"`
	ShotType       string       `json:"shotType" validate:"required"`
	CameraMovement string       `json:"cameraMovement" validate:"required"`
	Lighting       string       `json:"lighting" validate:"required"`
	Pacing         string       `json:"pacing,omitempty"`
	SubjectAction  string       `json:"subjectAction" validate:"required"`
	Dialogue       string       `json:"dialogue,omitempty"`
	DialogueType   DialogueType `json:"dialogueType,omitempty" validate:"omitempty,oneof=VO CHARACTER"`
}

type RemappedShot struct {
	ID string `json:"id"`
	ShotStructure
	FinalPrompt   string       `json:"finalPrompt"`
	Image         *media.Image `json:"image,omitempty"`
	VideoPrompt   string       `json:"videoPrompt,omitempty"`
	SceneID       string       `json:"sceneId,omitempty"`
	SceneTitle    string       `json:"sceneTitle,omitempty"`
	EnvironmentID string       `json:"environmentId,omitempty"`
	Gen           uint64       `json:"gen"`
}

func (s RemappedShot) Generated() bool {
	return s.Image != nil && !s.Image.IsZero()
}

type PlotStyle string

const (
	StyleAnime              PlotStyle = "ANIME"
	StyleRealistic          PlotStyle = "REALISTIC"
	StyleCyberpunk          PlotStyle = "CYBERPUNK"
	StylePixar              PlotStyle = "PIXAR"
	StyleSketch             PlotStyle = "SKETCH"
	StyleInk                PlotStyle = "INK"
	StyleRealisticInkFusion PlotStyle = "REALISTIC_INK_FUSION"
	StyleChinese            PlotStyle = "CHINESE"
	StyleChinese3DAnime     PlotStyle = "CHINESE_3D_ANIME"
)

type Costume struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Style       string `json:"style"`
}

// PlotCharacter is one cast member. Gen guards turnaround writes and OutfitGen outfit writes, so
// the two renders of a character never supersede each other.
type PlotCharacter struct {
	ID                string        `json:"id"`
	Name              string        `json:"name"`
	References        []media.Image `json:"references,omitempty"`
	Token             string        `json:"token"`
	Turnaround        *media.Image  `json:"turnaround,omitempty"`
	Outfitted         *media.Image  `json:"outfitted,omitempty"`
	Style             PlotStyle     `json:"style,omitempty"`
	SelectedCostume   *Costume      `json:"selectedCostume,omitempty"`
	SuggestedCostumes []Costume     `json:"suggestedCostumes,omitempty"`
	Gen               uint64        `json:"gen"`
	OutfitGen         uint64        `json:"outfitGen"`
}

// Ready reports whether the character can anchor identity: it needs a token or a turnaround.
func (c PlotCharacter) Ready() bool {
	return strings.TrimSpace(c.Token) != "" || c.Turnaround != nil
}

// IdentityAnchor prefers the outfitted render over the bare turnaround.
func (c PlotCharacter) IdentityAnchor() *media.Image {
	if c.Outfitted != nil && !c.Outfitted.IsZero() {
		return c.Outfitted
	}
	if c.Turnaround != nil && !c.Turnaround.IsZero() {
		return c.Turnaround
	}
	return nil
}

type PlotEnvironment struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Anchor      *media.Image `json:"anchor,omitempty"`
	Gen         uint64       `json:"gen"`
}

type PlotProposal struct {
	FilmTitle        string            `json:"filmTitle"`
	DirectorConcept  string            `json:"directorConcept"`
	NarrativeArc     string            `json:"narrativeArc"`
	VisualTheme      string            `json:"visualTheme"`
	Environments     []PlotEnvironment `json:"environments"`
	KeyStyleKeywords []string          `json:"keyStyleKeywords"`
}

type SlotType string

const (
	SlotMain      SlotType = "MAIN"
	SlotSecondary SlotType = "SECONDARY"
	SlotAPlus     SlotType = "APLUS"
)

// AmazonImageConfig is one gallery or A+ slot. Type and Size are fixed at plan creation.
type AmazonImageConfig struct {
	ID          string       `json:"id"`
	Type        SlotType     `json:"type"`
	Size        string       `json:"size"`
	Prompt      string       `json:"prompt"`
	FinalPrompt string       `json:"finalPrompt"`
	Image       *media.Image `json:"image,omitempty"`
	Gen         uint64       `json:"gen"`
}

func (c AmazonImageConfig) Generated() bool {
	return c.Image != nil && !c.Image.IsZero()
}

type StorefrontCanvasConfig struct {
	ID         string        `json:"id"`
	Width      int           `json:"width"`
	Height     int           `json:"height"`
	Reference  *media.Image  `json:"reference,omitempty"`
	Candidates []media.Image `json:"candidates,omitempty"`
	Gen        uint64        `json:"gen"`
}

type StorefrontDesign struct {
	BrandName     string                   `json:"brandName"`
	Category      string                   `json:"category"`
	Notes         string                   `json:"notes"`
	LogoReference *media.Image             `json:"logoReference,omitempty"`
	Logos         []media.Image            `json:"logos,omitempty"`
	SelectedLogo  int                      `json:"selectedLogo"`
	UseLogoAnchor bool                     `json:"useLogoAnchor"`
	Canvases      []StorefrontCanvasConfig `json:"canvases"`
	LogoGen       uint64                   `json:"logoGen"`
}

// LogoAnchor returns the selected logo when anchoring is enabled.
func (d StorefrontDesign) LogoAnchor() *media.Image {
	if !d.UseLogoAnchor || d.SelectedLogo < 0 || d.SelectedLogo >= len(d.Logos) {
		return nil
	}
	return d.Logos[d.SelectedLogo].Ptr()
}

type TransitionPrompt struct {
	StartShotID string `json:"startShotId"`
	EndShotID   string `json:"endShotId"`
	Prompt      string `json:"prompt"`
}

// Data is every entity accumulated during one session.
type Data struct {
	Product      ProductAnchor       `json:"product"`
	Structure    []ShotStructure     `json:"structure,omitempty"`
	Shots        []RemappedShot      `json:"shots,omitempty"`
	ListingNotes string              `json:"listingNotes,omitempty"`
	AmazonSlots  []AmazonImageConfig `json:"amazonSlots,omitempty"`
	Characters   []PlotCharacter     `json:"characters,omitempty"`
	PlotBrief    string              `json:"plotBrief,omitempty"`
	Proposal     *PlotProposal       `json:"proposal,omitempty"`
	Environments []PlotEnvironment   `json:"environments,omitempty"`
	Transitions  []TransitionPrompt  `json:"transitions,omitempty"`
	Storefront   StorefrontDesign    `json:"storefront"`
}

// clone copies every collection. Image bytes are shared; they are never mutated in place.
func (d Data) clone() Data {
	out := d
	out.Product.Images = append([]media.Image(nil), d.Product.Images...)
	out.Structure = append([]ShotStructure(nil), d.Structure...)
	out.Shots = append([]RemappedShot(nil), d.Shots...)
	out.AmazonSlots = append([]AmazonImageConfig(nil), d.AmazonSlots...)
	out.Characters = make([]PlotCharacter, len(d.Characters))
	for i, c := range d.Characters {
		c.References = append([]media.Image(nil), c.References...)
		c.SuggestedCostumes = append([]Costume(nil), c.SuggestedCostumes...)
		out.Characters[i] = c
	}
	if d.Characters == nil {
		out.Characters = nil
	}
	if d.Proposal != nil {
		p := *d.Proposal
		p.Environments = append([]PlotEnvironment(nil), d.Proposal.Environments...)
		p.KeyStyleKeywords = append([]string(nil), d.Proposal.KeyStyleKeywords...)
		out.Proposal = &p
	}
	out.Environments = append([]PlotEnvironment(nil), d.Environments...)
	out.Transitions = append([]TransitionPrompt(nil), d.Transitions...)
	out.Storefront.Logos = append([]media.Image(nil), d.Storefront.Logos...)
	out.Storefront.Canvases = make([]StorefrontCanvasConfig, len(d.Storefront.Canvases))
	for i, c := range d.Storefront.Canvases {
		c.Candidates = append([]media.Image(nil), c.Candidates...)
		out.Storefront.Canvases[i] = c
	}
	if d.Storefront.Canvases == nil {
		out.Storefront.Canvases = nil
	}
	return out
}
