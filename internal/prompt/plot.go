package prompt

import (
	"fmt"
	"strings"

	"eagle-studio/internal/schema"
	"eagle-studio/internal/workflow"
)

const (
	storyboardThinking = 8192
	transitionThinking = 4096
	framesPerScene     = 5
	costumeCount       = 4
)

// Pair is two consecutive frames of one scene; a plot video prompt covers the motion between them.
type Pair struct {
	Start workflow.RemappedShot
	End   workflow.RemappedShot
}

// Pairs lists adjacent frame pairs within each scene, in storyboard order.
func Pairs(shots []workflow.RemappedShot) []Pair {
	var out []Pair
	last := map[string]int{}
	for i, s := range shots {
		if j, ok := last[s.SceneID]; ok {
			out = append(out, Pair{Start: shots[j], End: s})
		}
		last[s.SceneID] = i
	}
	return out
}

func characterNames(roster []workflow.PlotCharacter) string {
	names := make([]string, 0, len(roster))
	for _, c := range roster {
		names = append(names, c.Name)
	}
	return strings.Join(names, ", ")
}

func characterContext(roster []workflow.PlotCharacter) string {
	lines := make([]string, 0, len(roster))
	for _, c := range roster {
		lines = append(lines, fmt.Sprintf("%s: %s", c.Name, strings.TrimSpace(c.Token)))
	}
	return strings.Join(lines, ". ")
}

// PlotProposal asks for a film strategy: title, concept, arc, theme and environments.
func PlotProposal(brief string, roster []workflow.PlotCharacter) (Request, error) {
	if blank(brief) {
		return Request{}, missing(KindPlotProposal, "plot brief")
	}
	var b strings.Builder
	b.WriteString("Propose a short film strategy.\n")
	b.WriteString("BRIEF: " + strings.TrimSpace(brief) + "\n")
	if len(roster) > 0 {
		b.WriteString("CAST: " + characterContext(roster) + "\n")
	}
	b.WriteString("List every distinct location as an environment with a stable id. Answer with JSON.")
	return Request{Kind: KindPlotProposal, Model: ModelText, Parts: []Part{Text(b.String())}, Schema: schema.PlotProposal}, nil
}

// NarrativeExtension continues the current narrative arc.
func NarrativeExtension(arc string, roster []workflow.PlotCharacter) (Request, error) {
	if blank(arc) {
		return Request{}, missing(KindNarrativeExtension, "narrative arc")
	}
	text := fmt.Sprintf("Extend this story and return the complete new arc as JSON.\nCURRENT ARC: %s\nCHARACTERS: %s",
		strings.TrimSpace(arc), characterNames(roster))
	return Request{Kind: KindNarrativeExtension, Model: ModelText, Parts: []Part{Text(text)}, Schema: schema.Narrative}, nil
}

// PlotStoryboard asks for the shot list of the film, five frames per scene.
func PlotStoryboard(p *workflow.PlotProposal, roster []workflow.PlotCharacter) (Request, error) {
	if p == nil || blank(p.NarrativeArc) {
		return Request{}, missing(KindPlotStoryboard, "narrative arc")
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("You are the director. Storyboard this film shot by shot: %q.\n", strings.TrimSpace(p.NarrativeArc)))
	if len(roster) > 0 {
		b.WriteString("CHARACTERS: " + characterNames(roster) + "\n")
	}
	if len(p.Environments) > 0 {
		b.WriteString("ENVIRONMENTS:\n")
		for _, env := range p.Environments {
			b.WriteString(fmt.Sprintf("- %s: %s\n", env.ID, env.Name))
		}
		b.WriteString("Tag each shot with the environmentId it takes place in.\n")
	}
	b.WriteString("RULES:\n")
	b.WriteString(fmt.Sprintf("1. Every scene has exactly %d frames.\n", framesPerScene))
	b.WriteString("2. Return a JSON array of shots.")
	return Request{
		Kind:           KindPlotStoryboard,
		Model:          ModelText,
		Parts:          []Part{Text(b.String())},
		Schema:         schema.PlotStoryboard,
		ThinkingBudget: storyboardThinking,
	}, nil
}

// PlotExtension asks for the shots that continue an existing plot storyboard. New scenes get ids
// that do not collide with the scenes already written.
func PlotExtension(p *workflow.PlotProposal, existing []workflow.RemappedShot, roster []workflow.PlotCharacter) (Request, error) {
	if p == nil || blank(p.NarrativeArc) {
		return Request{}, missing(KindPlotExtension, "narrative arc")
	}
	if len(existing) == 0 {
		return Request{}, missing(KindPlotExtension, "existing storyboard")
	}

	var scenes []string
	seen := map[string]bool{}
	for _, s := range existing {
		if s.SceneID != "" && !seen[s.SceneID] {
			seen[s.SceneID] = true
			scenes = append(scenes, s.SceneID)
		}
	}
	last := existing[len(existing)-1]

	var b strings.Builder
	b.WriteString(fmt.Sprintf("Continue the script of this film: %q.\n", strings.TrimSpace(p.NarrativeArc)))
	b.WriteString(fmt.Sprintf("EXISTING: %d shots", len(existing)))
	if len(scenes) > 0 {
		b.WriteString(" in scenes " + strings.Join(scenes, ", "))
	}
	b.WriteString(".\n")
	b.WriteString(fmt.Sprintf("LAST SHOT: %s\n", strings.TrimSpace(last.SubjectAction)))
	if len(roster) > 0 {
		b.WriteString("CHARACTERS: " + characterNames(roster) + "\n")
	}
	if len(p.Environments) > 0 {
		b.WriteString("ENVIRONMENTS:\n")
		for _, env := range p.Environments {
			b.WriteString(fmt.Sprintf("- %s: %s\n", env.ID, env.Name))
		}
	}
	b.WriteString("RULES:\n")
	b.WriteString("1. Pick up where the last shot ends; do not repeat earlier shots.\n")
	b.WriteString(fmt.Sprintf("2. Every new scene has exactly %d frames and a scene id not used above.\n", framesPerScene))
	b.WriteString("3. Return a JSON array of the new shots only.")
	return Request{
		Kind:           KindPlotExtension,
		Model:          ModelText,
		Parts:          []Part{Text(b.String())},
		Schema:         schema.PlotStoryboard,
		ThinkingBudget: transitionThinking,
	}, nil
}

// CharacterSheet creates a character from a description alone.
func CharacterSheet(description string, style workflow.PlotStyle) (Request, error) {
	if blank(description) {
		return Request{}, missing(KindCharacterSheet, "character description")
	}
	text := fmt.Sprintf("CHARACTER MODEL SHEET: %s. Style: %s. Keep one consistent identity across all views.",
		strings.TrimSpace(description), StylePhrase(style))
	return Request{
		Kind:  KindCharacterSheet,
		Model: ModelImage,
		Parts: []Part{Text(text)},
		Image: &ImageConfig{AspectRatio: "16:9", Size: Res1K},
	}, nil
}

// Turnaround renders a multi-angle sheet from the character token and any reference images.
func Turnaround(c workflow.PlotCharacter) (Request, error) {
	if blank(c.Name) {
		return Request{}, missing(KindTurnaround, "character name")
	}
	if !c.Ready() && len(c.References) == 0 {
		return Request{}, missing(KindTurnaround, "character token or reference")
	}
	parts := []Part{Text(fmt.Sprintf("Draw a character turnaround sheet for %s. Identity: %s. Style: %s.",
		c.Name, strings.TrimSpace(c.Token), StylePhrase(c.Style)))}
	for _, ref := range c.References {
		if !ref.IsZero() {
			parts = append(parts, Inline(ref))
		}
	}
	if c.Turnaround != nil && !c.Turnaround.IsZero() {
		parts = append(parts, Inline(*c.Turnaround))
	}
	return Request{
		Kind:  KindTurnaround,
		Model: ModelImage,
		Parts: parts,
		Image: &ImageConfig{AspectRatio: "16:9", Size: Res1K},
	}, nil
}

// CostumeSuggestions asks for four outfits that fit the film.
func CostumeSuggestions(c workflow.PlotCharacter, filmTitle, hint string) (Request, error) {
	if blank(c.Name) {
		return Request{}, missing(KindCostumes, "character name")
	}
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Suggest %d costumes for %s", costumeCount, c.Name))
	if !blank(filmTitle) {
		b.WriteString(" in " + strings.TrimSpace(filmTitle))
	}
	b.WriteString(".")
	if !blank(hint) {
		b.WriteString(" Hint: " + strings.TrimSpace(hint) + ".")
	}
	b.WriteString(" Answer with JSON.")
	return Request{Kind: KindCostumes, Model: ModelText, Parts: []Part{Text(b.String())}, Schema: schema.Costumes}, nil
}

// Outfit dresses the turnaround in the selected costume without touching the face.
func Outfit(c workflow.PlotCharacter) (Request, error) {
	if c.Turnaround == nil || c.Turnaround.IsZero() {
		return Request{}, missing(KindOutfit, "turnaround")
	}
	if c.SelectedCostume == nil || blank(c.SelectedCostume.Name) {
		return Request{}, missing(KindOutfit, "selected costume")
	}
	text := fmt.Sprintf("Dress this character in: %s. %s Style: %s. Keep the original face exactly.",
		c.SelectedCostume.Name, strings.TrimSpace(c.SelectedCostume.Description), StylePhrase(c.Style))
	return Request{
		Kind:  KindOutfit,
		Model: ModelImage,
		Parts: []Part{Inline(*c.Turnaround), Text(text)},
		Image: &ImageConfig{AspectRatio: "1:1", Size: Res1K},
	}, nil
}

// EnvironmentRender paints the anchor image of a location.
func EnvironmentRender(env workflow.PlotEnvironment, style workflow.PlotStyle) (Request, error) {
	if blank(env.Name) {
		return Request{}, missing(KindEnvironment, "environment name")
	}
	text := fmt.Sprintf("ENVIRONMENT RENDER: %s.", env.Name)
	if !blank(env.Description) {
		text += " " + strings.TrimSpace(env.Description) + "."
	}
	text += fmt.Sprintf(" Style: %s. Masterwork atmospheric lighting.", StylePhrase(style))
	return Request{
		Kind:  KindEnvironment,
		Model: ModelImage,
		Parts: []Part{Text(text)},
		Image: &ImageConfig{AspectRatio: "16:9", Size: Res1K},
	}, nil
}

type transitionShot struct {
	ID     string `json:"id"`
	Action string `json:"action"`
}

// PlotVideoPrompts asks for one transition prompt per adjacent frame pair within a scene.
func PlotVideoPrompts(shots []workflow.RemappedShot, roster []workflow.PlotCharacter) (Request, error) {
	pairs := Pairs(shots)
	if len(pairs) == 0 {
		return Request{}, missing(KindPlotVideoPrompts, "a scene with two frames")
	}
	seq := make([]transitionShot, len(shots))
	for i, s := range shots {
		seq[i] = transitionShot{ID: s.ID, Action: s.SubjectAction}
	}

	var b strings.Builder
	b.WriteString("Write video transition prompts.\n")
	b.WriteString("SEQUENCE: " + compactJSON(seq) + "\n")
	b.WriteString("TRANSITIONS:\n")
	for _, p := range pairs {
		b.WriteString(fmt.Sprintf("- %s -> %s\n", p.Start.ID, p.End.ID))
	}
	if len(roster) > 0 {
		b.WriteString("CHARACTERS: " + characterContext(roster) + "\n")
	}
	b.WriteString("Keep characters and product consistent. Answer with JSON {\"results\": [{startShotId, endShotId, prompt}]}.")
	return Request{
		Kind:           KindPlotVideoPrompts,
		Model:          ModelText,
		Parts:          []Part{Text(b.String())},
		Schema:         schema.Transitions,
		ThinkingBudget: transitionThinking,
	}, nil
}
