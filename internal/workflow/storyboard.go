package workflow

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

const minSceneFrames = 2

// Scene is a run of shots sharing a scene id, in storyboard order.
type Scene struct {
	ID      string   `json:"id"`
	Title   string   `json:"title,omitempty"`
	ShotIDs []string `json:"shotIds"`
}

// Scenes groups shots by scene id in order of first appearance. Shots without a scene id form one
// unnamed scene.
func (d Data) Scenes() []Scene {
	var scenes []Scene
	index := map[string]int{}
	for _, s := range d.Shots {
		i, ok := index[s.SceneID]
		if !ok {
			i = len(scenes)
			index[s.SceneID] = i
			scenes = append(scenes, Scene{ID: s.SceneID, Title: s.SceneTitle})
		}
		scenes[i].ShotIDs = append(scenes[i].ShotIDs, s.ID)
	}
	return scenes
}

// Predecessor returns the shot before id within the same scene.
func (d Data) Predecessor(id string) (RemappedShot, bool) {
	idx := d.shotIndex(id)
	if idx < 0 {
		return RemappedShot{}, false
	}
	scene := d.Shots[idx].SceneID
	for i := idx - 1; i >= 0; i-- {
		if d.Shots[i].SceneID == scene {
			return d.Shots[i], true
		}
	}
	return RemappedShot{}, false
}

func (d Data) successor(idx int) (RemappedShot, bool) {
	scene := d.Shots[idx].SceneID
	for i := idx + 1; i < len(d.Shots); i++ {
		if d.Shots[i].SceneID == scene {
			return d.Shots[i], true
		}
	}
	return RemappedShot{}, false
}

// PendingShots lists shots without a generated image. An empty sceneID selects every scene.
func (d Data) PendingShots(sceneID string, allScenes bool) []string {
	var out []string
	for _, s := range d.Shots {
		if !allScenes && s.SceneID != sceneID {
			continue
		}
		if !s.Generated() {
			out = append(out, s.ID)
		}
	}
	return out
}

// NewShots turns a structure list into storyboard shots with empty prompts. Ids carry a per-call
// batch tag so a rebuilt storyboard never reuses the id of a shot with a request in flight.
func NewShots(prefix string, structure []ShotStructure) []RemappedShot {
	batch := uuid.NewString()[:8]
	out := make([]RemappedShot, len(structure))
	for i, st := range structure {
		out[i] = RemappedShot{ID: fmt.Sprintf("%s-%s-%d", prefix, batch, i+1), ShotStructure: st}
	}
	return out
}

// InsertInBetween adds a transitional frame right after afterID, in the same scene, with no image.
func (s *Session) InsertInBetween(afterID string) (RemappedShot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.data.shotIndex(afterID)
	if idx < 0 {
		return RemappedShot{}, ErrNotFound
	}
	cur := s.data.Shots[idx]

	prompt := fmt.Sprintf("An additional following frame for %q, showing a slight progression in motion or emotion.", cur.SubjectAction)
	if next, ok := s.data.successor(idx); ok {
		prompt = fmt.Sprintf("A smooth transition frame between %q and %q. Maintain character pose continuity and lighting. Cinematic flow.", cur.SubjectAction, next.SubjectAction)
	}

	shot := cur
	shot.ID = "inbetween-" + uuid.NewString()
	shot.SubjectAction = "[transition] " + truncate(cur.SubjectAction, 40)
	shot.FinalPrompt = prompt
	shot.Image = nil
	shot.VideoPrompt = ""
	shot.Gen = 0

	shots := make([]RemappedShot, 0, len(s.data.Shots)+1)
	shots = append(shots, s.data.Shots[:idx+1]...)
	shots = append(shots, shot)
	shots = append(shots, s.data.Shots[idx+1:]...)
	s.data.Shots = shots
	s.touchLocked()
	return shot, nil
}

// DeleteShot removes a frame unless its scene would fall below two frames.
func (s *Session) DeleteShot(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.data.shotIndex(id)
	if idx < 0 {
		return ErrNotFound
	}
	scene := s.data.Shots[idx].SceneID
	frames := 0
	for _, sh := range s.data.Shots {
		if sh.SceneID == scene {
			frames++
		}
	}
	if frames-1 < minSceneFrames {
		return &SceneSizeError{SceneID: scene, Frames: frames}
	}

	shots := make([]RemappedShot, 0, len(s.data.Shots)-1)
	shots = append(shots, s.data.Shots[:idx]...)
	shots = append(shots, s.data.Shots[idx+1:]...)
	s.data.Shots = shots
	s.touchLocked()
	return nil
}

// UpdateShot applies a user edit to one shot. Identity and generation fields are kept.
func (s *Session) UpdateShot(id string, fn func(*RemappedShot)) (RemappedShot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.data.shotIndex(id)
	if idx < 0 {
		return RemappedShot{}, ErrNotFound
	}
	shot := s.data.Shots[idx]
	fn(&shot)
	shot.ID = s.data.Shots[idx].ID
	shot.Gen = s.data.Shots[idx].Gen
	s.data.Shots[idx] = shot
	s.touchLocked()
	return shot, nil
}

func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return strings.TrimSpace(string(runes[:max])) + "..."
}
