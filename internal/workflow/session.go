// Package workflow is the wizard state machine: one Session per user holds the selected mode, the
// current step and every entity produced so far. All mutations go through named transitions.
package workflow

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"eagle-studio/internal/credential"
)

type Session struct {
	mu        sync.Mutex
	id        string
	nonce     string
	mode      Mode
	graph     *Graph
	current   int
	data      Data
	updatedAt time.Time
}

func NewSession() *Session {
	return NewSessionWithID(uuid.NewString())
}

func NewSessionWithID(id string) *Session {
	return &Session{
		id:        id,
		nonce:     uuid.NewString(),
		updatedAt: time.Now(),
	}
}

type StepStatus struct {
	Step    Step `json:"step"`
	Index   int  `json:"index"`
	Ready   bool `json:"ready"`
	Current bool `json:"current"`
}

// State is a serializable copy of a session.
type State struct {
	ID        string       `json:"id"`
	Nonce     string       `json:"nonce"`
	Mode      Mode         `json:"mode,omitempty"`
	Step      Step         `json:"step,omitempty"`
	Steps     []StepStatus `json:"steps,omitempty"`
	Data      Data         `json:"data"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) Nonce() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nonce
}

func (s *Session) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// Step returns the current step, or false before a mode is chosen.
func (s *Session) Step() (Step, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.graph == nil {
		return "", false
	}
	return s.graph.Steps[s.current].Step, true
}

func (s *Session) UpdatedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updatedAt
}

// SelectMode enters a mode. Without a stored credential it fails with ErrCredentialRequired and the
// surface asks for one.
func (s *Session) SelectMode(ctx context.Context, creds credential.Store, mode Mode) error {
	if !credential.Present(ctx, creds) {
		return ErrCredentialRequired
	}
	g, ok := graphs[mode]
	if !ok {
		return ErrUnknownMode
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.mode != "" {
		return ErrModeLocked
	}
	s.mode = mode
	s.graph = &g
	s.current = 0
	if mode == ModeStorefront && len(s.data.Storefront.Canvases) == 0 {
		s.data.Storefront = DefaultStorefront()
	}
	s.touchLocked()
	return nil
}

// Advance stores the artifact produced by step and moves to the next step. The last step keeps
// the position and only stores.
func (s *Session) Advance(step Step, artifact Artifact) (Step, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, err := s.indexLocked(step)
	if err != nil {
		return "", err
	}
	if idx != s.current {
		return "", ErrStepMismatch
	}
	if artifact == nil {
		return "", &ArtifactError{Step: step, Err: ErrEmptyArtifact}
	}

	def := s.graph.Steps[idx]
	if err := def.accept(artifact); err != nil {
		return "", err
	}
	def.store(&s.data, artifact)

	if s.current < len(s.graph.Steps)-1 {
		s.current++
	}
	s.touchLocked()
	return s.graph.Steps[s.current].Step, nil
}

// Retreat moves back to step. Produced data is kept so moving forward again shows it unchanged.
func (s *Session) Retreat(step Step) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, err := s.indexLocked(step)
	if err != nil {
		return err
	}
	if idx > s.current {
		return ErrForwardBlocked
	}
	s.current = idx
	s.touchLocked()
	return nil
}

// Goto jumps to any step whose predecessors all hold their output.
func (s *Session) Goto(step Step) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, err := s.indexLocked(step)
	if err != nil {
		return err
	}
	for i := 0; i < idx; i++ {
		if !s.readyLocked(i) {
			return ErrForwardBlocked
		}
	}
	s.current = idx
	s.touchLocked()
	return nil
}

// Restart clears the session and issues a new nonce. Responses for requests issued under the old
// nonce are dropped by Commit.
func (s *Session) Restart() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nonce = uuid.NewString()
	s.mode = ""
	s.graph = nil
	s.current = 0
	s.data = Data{}
	s.touchLocked()
	return s.nonce
}

// Output returns a copy of what step has stored so far.
func (s *Session) Output(step Step) (Artifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, err := s.indexLocked(step)
	if err != nil {
		return nil, err
	}
	data := s.data.clone()
	return s.graph.Steps[idx].load(&data), nil
}

func (s *Session) Data() Data {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.clone()
}

// Update applies a direct user edit to the accumulated data.
func (s *Session) Update(fn func(*Data) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.data.clone()
	if err := fn(&work); err != nil {
		return err
	}
	s.data = work
	s.touchLocked()
	return nil
}

func (s *Session) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := State{
		ID:        s.id,
		Nonce:     s.nonce,
		Mode:      s.mode,
		Data:      s.data.clone(),
		UpdatedAt: s.updatedAt,
	}
	if s.graph != nil {
		st.Step = s.graph.Steps[s.current].Step
		for i, def := range s.graph.Steps {
			st.Steps = append(st.Steps, StepStatus{
				Step:    def.Step,
				Index:   i,
				Ready:   s.readyLocked(i),
				Current: i == s.current,
			})
		}
	}
	return st
}

func (s *Session) indexLocked(step Step) (int, error) {
	if s.graph == nil {
		return -1, ErrNoMode
	}
	idx := s.graph.Index(step)
	if idx < 0 {
		return -1, ErrUnknownStep
	}
	return idx, nil
}

func (s *Session) readyLocked(idx int) bool {
	def := s.graph.Steps[idx]
	return def.accept(def.load(&s.data)) == nil
}

func (s *Session) touchLocked() {
	s.updatedAt = time.Now()
}
