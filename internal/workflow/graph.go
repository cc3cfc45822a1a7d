package workflow

import (
	"fmt"
	"strings"
)

// Artifact is the output of one step.
type Artifact interface {
	Empty() bool
}

type ShotList []ShotStructure

func (a ShotList) Empty() bool { return len(a) == 0 }

type Storyboard []RemappedShot

func (a Storyboard) Empty() bool { return len(a) == 0 }

// VideoScript holds one video prompt per shot, in shot order.
type VideoScript []string

func (a VideoScript) Empty() bool {
	for _, p := range a {
		if strings.TrimSpace(p) != "" {
			return false
		}
	}
	return true
}

type AmazonPlan []AmazonImageConfig

func (a AmazonPlan) Empty() bool { return len(a) == 0 }

type Roster []PlotCharacter

func (a Roster) Empty() bool { return len(a) == 0 }

type PlotScript struct {
	Proposal *PlotProposal
	Shots    []RemappedShot
}

func (a PlotScript) Empty() bool { return a.Proposal == nil || len(a.Shots) == 0 }

type EnvironmentSet []PlotEnvironment

func (a EnvironmentSet) Empty() bool { return len(a) == 0 }

type TransitionSet []TransitionPrompt

func (a TransitionSet) Empty() bool { return len(a) == 0 }

func (a ProductAnchor) Empty() bool { return strings.TrimSpace(a.Token) == "" }

func (a StorefrontDesign) Empty() bool { return len(a.Canvases) == 0 }

// StepDef binds a step to the artifact it produces and where that artifact lives in Data.
type StepDef struct {
	Step   Step
	accept func(Artifact) error
	store  func(*Data, Artifact)
	load   func(*Data) Artifact
}

func def[T Artifact](step Step, check func(T) string, store func(*Data, T), load func(*Data) T) StepDef {
	return StepDef{
		Step: step,
		accept: func(a Artifact) error {
			v, ok := a.(T)
			if !ok {
				return &ArtifactError{Step: step, Err: ErrArtifactKind, Reason: fmt.Sprintf("got %T", a)}
			}
			if v.Empty() {
				return &ArtifactError{Step: step, Err: ErrEmptyArtifact}
			}
			if check != nil {
				if reason := check(v); reason != "" {
					return &ArtifactError{Step: step, Err: ErrEmptyArtifact, Reason: reason}
				}
			}
			return nil
		},
		store: func(d *Data, a Artifact) { store(d, a.(T)) },
		load:  func(d *Data) Artifact { return load(d) },
	}
}

// Graph is the ordered step list of one mode, chosen once when the mode is selected.
type Graph struct {
	Mode  Mode
	Steps []StepDef
}

func (g Graph) Index(step Step) int {
	for i, s := range g.Steps {
		if s.Step == step {
			return i
		}
	}
	return -1
}

func (g Graph) StepNames() []Step {
	out := make([]Step, len(g.Steps))
	for i, s := range g.Steps {
		out[i] = s.Step
	}
	return out
}

// GraphFor returns the step graph of a mode.
func GraphFor(mode Mode) (Graph, bool) {
	g, ok := graphs[mode]
	return g, ok
}

var graphs = map[Mode]Graph{
	ModeReference: {Mode: ModeReference, Steps: []StepDef{
		productStep(false),
		def(StepVideoAnalysis, nil,
			func(d *Data, a ShotList) { d.Structure = append([]ShotStructure(nil), a...) },
			func(d *Data) ShotList { return ShotList(d.Structure) }),
		def(StepPromptRemapping, requirePrompts, storeShots, loadShots),
		def(StepStoryboarding, nil, storeShots, loadShots),
		videoScriptStep(),
	}},
	ModeCreative: {Mode: ModeCreative, Steps: []StepDef{
		productStep(true),
		def(StepCreativeScript, requirePrompts, storeShots, loadShots),
		def(StepStoryboarding, nil, storeShots, loadShots),
		videoScriptStep(),
	}},
	ModeAmazon: {Mode: ModeAmazon, Steps: []StepDef{
		productStep(false),
		def(StepAmazonConfig, nil, storeSlots, loadSlots),
		def(StepAmazonBrief, func(a AmazonPlan) string {
			for _, s := range a {
				if strings.TrimSpace(s.FinalPrompt) != "" {
					return ""
				}
			}
			return "no slot has a final prompt"
		}, storeSlots, loadSlots),
		def(StepAmazonVisuals, nil, storeSlots, loadSlots),
	}},
	ModePlot: {Mode: ModePlot, Steps: []StepDef{
		def(StepCharacterAnchor, func(a Roster) string {
			for _, c := range a {
				if !c.Ready() {
					return fmt.Sprintf("character %q has neither token nor turnaround", c.Name)
				}
			}
			return ""
		}, storeRoster, loadRoster),
		def(StepCharacterTurnaround, func(a Roster) string {
			for _, c := range a {
				if c.Turnaround == nil {
					return fmt.Sprintf("character %q has no turnaround", c.Name)
				}
			}
			return ""
		}, storeRoster, loadRoster),
		def(StepScriptBrainstorm, nil,
			func(d *Data, a PlotScript) {
				p := *a.Proposal
				d.Proposal = &p
				d.Shots = append([]RemappedShot(nil), a.Shots...)
				d.Environments = mergeEnvironments(d.Environments, p.Environments)
			},
			func(d *Data) PlotScript { return PlotScript{Proposal: d.Proposal, Shots: d.Shots} }),
		def(StepEnvironmentAnchor, nil,
			func(d *Data, a EnvironmentSet) { d.Environments = append([]PlotEnvironment(nil), a...) },
			func(d *Data) EnvironmentSet { return EnvironmentSet(d.Environments) }),
		def(StepCharacterOutfit, nil, storeRoster, loadRoster),
		def(StepPlotStoryboard, nil, storeShots, loadShots),
		def(StepPlotFinalPrompts, nil,
			func(d *Data, a TransitionSet) { d.Transitions = append([]TransitionPrompt(nil), a...) },
			func(d *Data) TransitionSet { return TransitionSet(d.Transitions) }),
	}},
	ModeStorefront: {Mode: ModeStorefront, Steps: []StepDef{
		def(StepStorefrontConfig, nil,
			func(d *Data, a StorefrontDesign) { d.Storefront = a },
			func(d *Data) StorefrontDesign { return d.Storefront }),
	}},
}

func productStep(needsBrief bool) StepDef {
	var check func(ProductAnchor) string
	if needsBrief {
		check = func(a ProductAnchor) string {
			if strings.TrimSpace(a.Brief) == "" {
				return "creative brief is empty"
			}
			return ""
		}
	}
	return def(StepProductAnchoring, check,
		func(d *Data, a ProductAnchor) { d.Product = a },
		func(d *Data) ProductAnchor { return d.Product })
}

func videoScriptStep() StepDef {
	return def(StepVideoPrompts, nil,
		func(d *Data, a VideoScript) {
			for i := range d.Shots {
				if i < len(a) {
					d.Shots[i].VideoPrompt = a[i]
				}
			}
		},
		func(d *Data) VideoScript {
			out := make(VideoScript, len(d.Shots))
			for i, s := range d.Shots {
				out[i] = s.VideoPrompt
			}
			return out
		})
}

func requirePrompts(a Storyboard) string {
	for _, s := range a {
		if strings.TrimSpace(s.FinalPrompt) == "" {
			return fmt.Sprintf("shot %s has no final prompt", s.ID)
		}
	}
	return ""
}

func storeShots(d *Data, a Storyboard) { d.Shots = append([]RemappedShot(nil), a...) }
func loadShots(d *Data) Storyboard     { return Storyboard(d.Shots) }

func storeSlots(d *Data, a AmazonPlan) { d.AmazonSlots = append([]AmazonImageConfig(nil), a...) }
func loadSlots(d *Data) AmazonPlan     { return AmazonPlan(d.AmazonSlots) }

func storeRoster(d *Data, a Roster) { d.Characters = append([]PlotCharacter(nil), a...) }
func loadRoster(d *Data) Roster     { return Roster(d.Characters) }

// mergeEnvironments takes the proposal's environment list and keeps anchors already rendered for
// environments with the same id.
func mergeEnvironments(existing, proposed []PlotEnvironment) []PlotEnvironment {
	out := make([]PlotEnvironment, 0, len(proposed))
	for _, env := range proposed {
		for _, old := range existing {
			if old.ID == env.ID && old.Anchor != nil {
				env.Anchor = old.Anchor
				env.Gen = old.Gen
			}
		}
		out = append(out, env)
	}
	return out
}
