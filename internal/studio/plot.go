package studio

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"eagle-studio/internal/media"
	"eagle-studio/internal/prompt"
	"eagle-studio/internal/workflow"
)

// ProposePlot drafts the film strategy for the brief and resets the storyboard.
func (s *Service) ProposePlot(ctx context.Context, sess *workflow.Session, brief string) (workflow.PlotProposal, error) {
	d := sess.Data()
	req, err := prompt.PlotProposal(brief, d.Characters)
	if err != nil {
		return workflow.PlotProposal{}, err
	}
	proposal, err := decode[workflow.PlotProposal](ctx, s, req)
	if err != nil {
		return workflow.PlotProposal{}, err
	}
	for i, env := range proposal.Environments {
		if strings.TrimSpace(env.ID) == "" {
			proposal.Environments[i].ID = fmt.Sprintf("env-%d", i+1)
		}
	}

	if err := sess.Update(func(d *workflow.Data) error {
		p := proposal
		d.PlotBrief = strings.TrimSpace(brief)
		d.Proposal = &p
		d.Shots = nil
		d.Transitions = nil
		return nil
	}); err != nil {
		return workflow.PlotProposal{}, err
	}
	return proposal, nil
}

type narrative struct {
	NarrativeArc string `json:"narrativeArc"`
}

// ExtendNarrative continues the proposal's narrative arc.
func (s *Service) ExtendNarrative(ctx context.Context, sess *workflow.Session) (string, error) {
	d := sess.Data()
	arc := ""
	if d.Proposal != nil {
		arc = d.Proposal.NarrativeArc
	}
	req, err := prompt.NarrativeExtension(arc, d.Characters)
	if err != nil {
		return "", err
	}
	res, err := decode[narrative](ctx, s, req)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(res.NarrativeArc) == "" {
		return "", fmt.Errorf("%s: %w", req.Kind, ErrNoResult)
	}

	if err := sess.Update(func(d *workflow.Data) error {
		if d.Proposal == nil {
			return workflow.ErrNotFound
		}
		d.Proposal.NarrativeArc = res.NarrativeArc
		return nil
	}); err != nil {
		return "", err
	}
	return res.NarrativeArc, nil
}

// BrainstormPlot writes the plot storyboard for the current proposal and a final prompt per frame.
// Frames the prompt pass skipped keep their subject action as prompt.
func (s *Service) BrainstormPlot(ctx context.Context, sess *workflow.Session) ([]workflow.RemappedShot, error) {
	d := sess.Data()
	req, err := prompt.PlotStoryboard(d.Proposal, d.Characters)
	if err != nil {
		return nil, err
	}
	rows, err := decode[[]workflow.RemappedShot](ctx, s, req)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%s: %w", req.Kind, ErrNoResult)
	}

	rows, err = s.finishPlotShots(ctx, d, "plot", rows)
	if err != nil {
		return nil, err
	}

	if err := sess.Update(func(d *workflow.Data) error {
		d.Shots = rows
		d.Transitions = nil
		return nil
	}); err != nil {
		return nil, err
	}
	s.logger.Info("plot storyboard written", "session", sess.ID(), "frames", len(rows), "scenes", len(sess.Data().Scenes()))
	return rows, nil
}

// ExtendPlot continues the plot storyboard. The new frames get fresh ids and are appended after the
// existing ones, which keep their images and prompts.
func (s *Service) ExtendPlot(ctx context.Context, sess *workflow.Session) ([]workflow.RemappedShot, error) {
	d := sess.Data()
	req, err := prompt.PlotExtension(d.Proposal, d.Shots, d.Characters)
	if err != nil {
		return nil, err
	}
	rows, err := decode[[]workflow.RemappedShot](ctx, s, req)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%s: %w", req.Kind, ErrNoResult)
	}
	rows, err = s.finishPlotShots(ctx, d, "plot-ext", rows)
	if err != nil {
		return nil, err
	}

	if err := sess.Update(func(d *workflow.Data) error {
		d.Shots = append(d.Shots, rows...)
		return nil
	}); err != nil {
		return nil, err
	}
	s.logger.Info("plot storyboard extended", "session", sess.ID(), "added", len(rows), "frames", len(sess.Data().Shots))
	return rows, nil
}

// finishPlotShots writes the final prompt of each new frame through the prompt pass and assigns
// fresh ids. Frames the pass skipped keep their subject action as prompt.
func (s *Service) finishPlotShots(ctx context.Context, d workflow.Data, prefix string, rows []workflow.RemappedShot) ([]workflow.RemappedShot, error) {
	structure := make([]workflow.ShotStructure, len(rows))
	for i, r := range rows {
		structure[i] = r.ShotStructure
	}
	req, err := prompt.Remap(plotToken(d), structure)
	if err != nil {
		return nil, err
	}
	res, err := decode[remapResult](ctx, s, req)
	if err != nil {
		return nil, err
	}

	ids := workflow.NewShots(prefix, structure)
	for i := range rows {
		rows[i].ID = ids[i].ID
		rows[i].Image = nil
		rows[i].Gen = 0
		rows[i].FinalPrompt = rows[i].SubjectAction
		if i < len(res.Prompts) && strings.TrimSpace(res.Prompts[i]) != "" {
			rows[i].FinalPrompt = strings.TrimSpace(res.Prompts[i])
		}
	}
	return rows, nil
}

// plotToken is the identity context the prompt pass uses in plot mode: film style plus every
// character's token.
func plotToken(d workflow.Data) string {
	var b strings.Builder
	if d.Proposal != nil {
		b.WriteString(fmt.Sprintf("Film Style: %s. Keywords: %s. ", d.Proposal.VisualTheme, strings.Join(d.Proposal.KeyStyleKeywords, ", ")))
	}
	dna := make([]string, 0, len(d.Characters))
	for _, c := range d.Characters {
		dna = append(dna, fmt.Sprintf("%s: %s", c.Name, strings.TrimSpace(c.Token)))
	}
	b.WriteString("Characters DNA: " + strings.Join(dna, ". "))
	return b.String()
}

// CharacterInput creates a cast member either from reference photos or from a description.
type CharacterInput struct {
	Name        string
	Description string
	References  []media.Image
	Style       workflow.PlotStyle
}

// CreateCharacter adds a character to the roster. Reference photos are reduced to an identity
// token; a description alone is drawn as a model sheet that serves as the first turnaround.
func (s *Service) CreateCharacter(ctx context.Context, sess *workflow.Session, in CharacterInput) (workflow.PlotCharacter, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		name = fmt.Sprintf("Character %d", len(sess.Data().Characters)+1)
	}
	c := workflow.PlotCharacter{
		ID:         "char-" + uuid.NewString()[:8],
		Name:       name,
		References: append([]media.Image(nil), in.References...),
		Style:      in.Style,
	}

	if len(in.References) > 0 {
		req, err := prompt.FeatureExtraction(in.References)
		if err != nil {
			return workflow.PlotCharacter{}, err
		}
		token, err := s.text(ctx, req)
		if err != nil {
			return workflow.PlotCharacter{}, err
		}
		c.Token = strings.TrimSpace(token)
	} else {
		req, err := prompt.CharacterSheet(in.Description, in.Style)
		if err != nil {
			return workflow.PlotCharacter{}, err
		}
		img, err := s.image(ctx, req)
		if err != nil {
			return workflow.PlotCharacter{}, err
		}
		c.Turnaround = img.Ptr()
		c.Token = "Generated: " + truncate(in.Description, 50)
	}

	if err := sess.Update(func(d *workflow.Data) error {
		d.Characters = append(d.Characters, c)
		return nil
	}); err != nil {
		return workflow.PlotCharacter{}, err
	}
	s.logger.Info("character created", "session", sess.ID(), "character", c.ID, "from_refs", len(in.References) > 0)
	return c, nil
}

// RemoveCharacter drops a character from the roster.
func (s *Service) RemoveCharacter(sess *workflow.Session, id string) error {
	return sess.Update(func(d *workflow.Data) error {
		for i, c := range d.Characters {
			if c.ID == id {
				d.Characters = append(d.Characters[:i:i], d.Characters[i+1:]...)
				return nil
			}
		}
		return workflow.ErrNotFound
	})
}

// RenderTurnaround draws the multi-angle sheet of a character.
func (s *Service) RenderTurnaround(ctx context.Context, sess *workflow.Session, id string) (media.Image, error) {
	c, ok := sess.Data().Character(id)
	if !ok {
		return media.Image{}, workflow.ErrNotFound
	}
	req, err := prompt.Turnaround(c)
	if err != nil {
		return media.Image{}, err
	}
	return s.renderEntity(ctx, sess, workflow.KindCharacter, id, req, sess.ApplyTurnaround)
}

// SuggestCostumes asks for outfits that fit the film and stores them on the character.
func (s *Service) SuggestCostumes(ctx context.Context, sess *workflow.Session, id, hint string) ([]workflow.Costume, error) {
	d := sess.Data()
	c, ok := d.Character(id)
	if !ok {
		return nil, workflow.ErrNotFound
	}
	title := ""
	if d.Proposal != nil {
		title = d.Proposal.FilmTitle
	}
	req, err := prompt.CostumeSuggestions(c, title, hint)
	if err != nil {
		return nil, err
	}
	costumes, err := decode[[]workflow.Costume](ctx, s, req)
	if err != nil {
		return nil, err
	}
	for i := range costumes {
		if strings.TrimSpace(costumes[i].ID) == "" {
			costumes[i].ID = "costume-" + uuid.NewString()[:8]
		}
	}

	if err := sess.Update(func(d *workflow.Data) error {
		for i := range d.Characters {
			if d.Characters[i].ID == id {
				d.Characters[i].SuggestedCostumes = costumes
				return nil
			}
		}
		return workflow.ErrNotFound
	}); err != nil {
		return nil, err
	}
	return costumes, nil
}

// SelectCostume picks one of the suggested costumes, or a custom one when costumeID is unknown and
// custom is set.
func (s *Service) SelectCostume(sess *workflow.Session, id, costumeID string, custom *workflow.Costume) error {
	return sess.Update(func(d *workflow.Data) error {
		for i := range d.Characters {
			c := &d.Characters[i]
			if c.ID != id {
				continue
			}
			for _, costume := range c.SuggestedCostumes {
				if costume.ID == costumeID {
					picked := costume
					c.SelectedCostume = &picked
					return nil
				}
			}
			if custom != nil && strings.TrimSpace(custom.Name) != "" {
				picked := *custom
				if picked.ID == "" {
					picked.ID = "costume-" + uuid.NewString()[:8]
				}
				c.SelectedCostume = &picked
				return nil
			}
			return workflow.ErrNotFound
		}
		return workflow.ErrNotFound
	})
}

// RenderOutfit dresses the character's turnaround in the selected costume.
func (s *Service) RenderOutfit(ctx context.Context, sess *workflow.Session, id string) (media.Image, error) {
	c, ok := sess.Data().Character(id)
	if !ok {
		return media.Image{}, workflow.ErrNotFound
	}
	req, err := prompt.Outfit(c)
	if err != nil {
		return media.Image{}, err
	}
	return s.renderEntity(ctx, sess, workflow.KindOutfit, id, req, sess.ApplyOutfit)
}

// RenderEnvironment paints the anchor image of a location in the cast's style.
func (s *Service) RenderEnvironment(ctx context.Context, sess *workflow.Session, id string) (media.Image, error) {
	d := sess.Data()
	env, ok := d.Environment(id)
	if !ok {
		return media.Image{}, workflow.ErrNotFound
	}
	var style workflow.PlotStyle
	if len(d.Characters) > 0 {
		style = d.Characters[0].Style
	}
	req, err := prompt.EnvironmentRender(env, style)
	if err != nil {
		return media.Image{}, err
	}
	return s.renderEntity(ctx, sess, workflow.KindEnvironment, id, req, sess.ApplyEnvironmentAnchor)
}

type transitions struct {
	Results []workflow.TransitionPrompt `json:"results"`
}

// PlotVideoPrompts writes one transition prompt per adjacent frame pair of each scene. Results for
// pairs that do not exist in the storyboard are dropped.
func (s *Service) PlotVideoPrompts(ctx context.Context, sess *workflow.Session) ([]workflow.TransitionPrompt, error) {
	d := sess.Data()
	req, err := prompt.PlotVideoPrompts(d.Shots, d.Characters)
	if err != nil {
		return nil, err
	}
	res, err := decode[transitions](ctx, s, req)
	if err != nil {
		return nil, err
	}

	valid := map[[2]string]bool{}
	for _, p := range prompt.Pairs(d.Shots) {
		valid[[2]string{p.Start.ID, p.End.ID}] = true
	}
	var out []workflow.TransitionPrompt
	for _, r := range res.Results {
		if valid[[2]string{r.StartShotID, r.EndShotID}] && strings.TrimSpace(r.Prompt) != "" {
			out = append(out, r)
		}
	}

	if err := sess.Update(func(d *workflow.Data) error {
		d.Transitions = out
		return nil
	}); err != nil {
		return nil, err
	}
	return out, nil
}

// renderEntity runs one guarded image call for a non-storyboard entity.
func (s *Service) renderEntity(ctx context.Context, sess *workflow.Session, kind workflow.EntityKind, id string, req prompt.Request, apply func(workflow.Ticket, media.Image) error) (media.Image, error) {
	ticket, err := sess.Begin(kind, id)
	if err != nil {
		return media.Image{}, err
	}
	img, err := s.image(ctx, req)
	if err != nil {
		s.logger.Warn("render failed", "session", sess.ID(), "kind", kind, "id", id, "err", err)
		return media.Image{}, err
	}
	if err := s.settle(sess, ticket, func() error { return apply(ticket, img) }); err != nil {
		return media.Image{}, err
	}
	s.logger.Info("rendered", "session", sess.ID(), "kind", kind, "id", id, "gen", ticket.Gen)
	return img, nil
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
