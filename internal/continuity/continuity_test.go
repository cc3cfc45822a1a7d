package continuity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eagle-studio/internal/media"
	"eagle-studio/internal/workflow"
)

func img(b byte) *media.Image {
	return media.New([]byte{b}, "image/png").Ptr()
}

func plotData() workflow.Data {
	return workflow.Data{
		Product: workflow.ProductAnchor{Token: "bottle", Images: []media.Image{*img(1)}},
		Environments: []workflow.PlotEnvironment{
			{ID: "env-1", Name: "Roof", Anchor: img(2)},
			{ID: "env-2", Name: "Street"},
		},
		Characters: []workflow.PlotCharacter{
			{Name: "Mia", Turnaround: img(3), Outfitted: img(4), Style: workflow.StyleAnime},
			{Name: "Leo", Turnaround: img(5)},
			{Name: "Ghost", Token: "pale"},
		},
		Shots: []workflow.RemappedShot{
			{ID: "a", SceneID: "s1", EnvironmentID: "env-1", FinalPrompt: "opening", Image: img(10)},
			{ID: "x", SceneID: "s2", EnvironmentID: "env-2", FinalPrompt: "elsewhere", Image: img(11)},
			{ID: "b", SceneID: "s1", EnvironmentID: "env-1", FinalPrompt: "follow"},
			{ID: "c", SceneID: "s1", EnvironmentID: "env-1", FinalPrompt: "end"},
		},
	}
}

func TestBuild_PlotFrameOrder(t *testing.T) {
	chain, err := Build(Input{Mode: workflow.ModePlot, ShotID: "b", Data: plotData()})
	require.NoError(t, err)

	assert.Equal(t, []string{
		LabelProduct,
		LabelEnvironment,
		LabelPrevious,
		"CHARACTER IDENTITY [Name: Mia]:",
		"CHARACTER IDENTITY [Name: Leo]:",
	}, chain.Labels())

	assert.Equal(t, []byte{10}, chain.Attachments[2].Image.Data, "previous frame comes from the same scene")
	assert.Equal(t, []byte{4}, chain.Attachments[3].Image.Data, "outfitted render wins over turnaround")
	assert.Contains(t, chain.Instruction, "SCENE: follow.")
	assert.Contains(t, chain.Instruction, "anime cel shaded")
}

func TestBuild_FirstFrameHasNoPrevious(t *testing.T) {
	chain, err := Build(Input{Mode: workflow.ModePlot, ShotID: "a", Data: plotData()})
	require.NoError(t, err)
	assert.NotContains(t, chain.Labels(), LabelPrevious)
}

func TestBuild_SkipsUngeneratedPredecessor(t *testing.T) {
	chain, err := Build(Input{Mode: workflow.ModePlot, ShotID: "c", Data: plotData()})
	require.NoError(t, err)
	assert.NotContains(t, chain.Labels(), LabelPrevious)
}

func TestBuild_OverrideReplacesPredecessor(t *testing.T) {
	chain, err := Build(Input{Mode: workflow.ModePlot, ShotID: "b", Data: plotData(), Previous: img(99)})
	require.NoError(t, err)

	count := 0
	for _, a := range chain.Attachments {
		if a.Label == LabelPrevious {
			count++
			assert.Equal(t, []byte{99}, a.Image.Data)
		}
	}
	assert.Equal(t, 1, count)
}

func TestBuild_ReferenceModeSkipsPlotRules(t *testing.T) {
	data := plotData()
	chain, err := Build(Input{Mode: workflow.ModeReference, ShotID: "b", Data: data})
	require.NoError(t, err)

	assert.Equal(t, []string{LabelProduct, LabelEnvironment}, chain.Labels())
	assert.Contains(t, chain.Instruction, "STYLE: Photorealistic commercial photography.")
}

func TestBuild_EnvironmentWithoutAnchor(t *testing.T) {
	chain, err := Build(Input{Mode: workflow.ModePlot, ShotID: "x", Data: plotData()})
	require.NoError(t, err)
	assert.NotContains(t, chain.Labels(), LabelEnvironment)
	assert.Equal(t, LabelProduct, chain.Labels()[0])
}

func TestBuild_UnknownShot(t *testing.T) {
	_, err := Build(Input{ShotID: "zzz", Data: plotData()})
	assert.ErrorIs(t, err, ErrUnknownShot)
}
