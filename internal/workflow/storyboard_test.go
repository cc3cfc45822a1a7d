package workflow

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eagle-studio/internal/media"
)

func sessionWithShots(t *testing.T, shots []RemappedShot) *Session {
	t.Helper()
	s := newModeSession(t, ModePlot)
	require.NoError(t, s.Update(func(d *Data) error {
		d.Shots = shots
		return nil
	}))
	return s
}

func shotIDs(shots []RemappedShot) []string {
	out := make([]string, len(shots))
	for i, s := range shots {
		out[i] = s.ID
	}
	return out
}

func TestDeleteShot_RefusesBelowTwoFrames(t *testing.T) {
	shots := append(sampleShots(2, "s1"), sampleShots(3, "s2")...)
	s := sessionWithShots(t, shots)

	err := s.DeleteShot("s1-a")
	var se *SceneSizeError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "s1", se.SceneID)
	assert.Equal(t, 2, se.Frames)
	assert.Len(t, s.Data().Shots, 5)

	require.NoError(t, s.DeleteShot("s2-b"))
	assert.Equal(t, []string{"s1-a", "s1-b", "s2-a", "s2-c"}, shotIDs(s.Data().Shots))

	assert.Error(t, s.DeleteShot("s2-a"))
	assert.ErrorIs(t, s.DeleteShot("missing"), ErrNotFound)
}

func TestDeleteShot_UnscopedStoryboard(t *testing.T) {
	s := sessionWithShots(t, sampleShots(3, ""))
	require.NoError(t, s.DeleteShot("-a"))

	err := s.DeleteShot("-b")
	var se *SceneSizeError
	require.True(t, errors.As(err, &se))
	assert.Contains(t, se.Error(), "storyboard")
}

func TestInsertInBetween(t *testing.T) {
	shots := append(sampleShots(2, "s1"), sampleShots(2, "s2")...)
	shots[0].Image = media.New([]byte{1}, "image/png").Ptr()
	shots[0].SceneTitle = "Opening"
	s := sessionWithShots(t, shots)

	inserted, err := s.InsertInBetween("s1-a")
	require.NoError(t, err)
	assert.Equal(t, "s1", inserted.SceneID)
	assert.Equal(t, "Opening", inserted.SceneTitle)
	assert.Nil(t, inserted.Image)
	assert.True(t, strings.HasPrefix(inserted.ID, "inbetween-"))
	assert.Contains(t, inserted.FinalPrompt, `"action a"`)
	assert.Contains(t, inserted.FinalPrompt, `"action b"`)

	ids := shotIDs(s.Data().Shots)
	assert.Equal(t, []string{"s1-a", inserted.ID, "s1-b", "s2-a", "s2-b"}, ids)

	last, err := s.InsertInBetween("s1-b")
	require.NoError(t, err)
	assert.Contains(t, last.FinalPrompt, "An additional following frame")
	assert.Contains(t, s.Data().PendingShots("s1", false), last.ID)
}

func TestScenesAndPredecessor(t *testing.T) {
	shots := []RemappedShot{
		{ID: "a", SceneID: "s1"},
		{ID: "b", SceneID: "s2"},
		{ID: "c", SceneID: "s1"},
	}
	d := Data{Shots: shots}

	scenes := d.Scenes()
	require.Len(t, scenes, 2)
	assert.Equal(t, []string{"a", "c"}, scenes[0].ShotIDs)

	prev, ok := d.Predecessor("c")
	require.True(t, ok)
	assert.Equal(t, "a", prev.ID)

	_, ok = d.Predecessor("b")
	assert.False(t, ok)
}

func TestUpdateShot_KeepsIdentity(t *testing.T) {
	s := sessionWithShots(t, sampleShots(2, ""))
	shot, err := s.UpdateShot("-a", func(sh *RemappedShot) {
		sh.ID = "hijack"
		sh.FinalPrompt = "edited"
	})
	require.NoError(t, err)
	assert.Equal(t, "-a", shot.ID)
	assert.Equal(t, "edited", shot.FinalPrompt)
}

func TestNewShots_UniqueAcrossCalls(t *testing.T) {
	structure := []ShotStructure{{ShotType: "wide"}, {ShotType: "close"}}
	first := NewShots("shot", structure)
	second := NewShots("shot", structure)

	require.Len(t, first, 2)
	assert.True(t, strings.HasPrefix(first[0].ID, "shot-"))
	assert.True(t, strings.HasSuffix(first[1].ID, "-2"))
	assert.Equal(t, "close", first[1].ShotType)
	assert.NotEqual(t, first[0].ID, second[0].ID)
}
