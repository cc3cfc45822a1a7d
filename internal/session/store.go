package session

import (
	"context"
	"sync"
	"time"

	"eagle-studio/internal/gemini"
	"eagle-studio/internal/workflow"
)

const (
	defaultMaxHistory = 20
	defaultTTL        = 2 * time.Hour
)

type entry struct {
	wizard       *workflow.Session
	history      []gemini.Message
	lastActivity time.Time
}

type Options struct {
	MaxMessages int
	TTL         time.Duration
	Now         func() time.Time
}

// Store keeps one wizard session and one assistant conversation per key. Keys are session ids on
// the web surface and chat ids on the bot.
type Store struct {
	mu         sync.Mutex
	entries    map[string]*entry
	maxHistory int
	ttl        time.Duration
	now        func() time.Time
}

func NewStore(opts Options) *Store {
	maxHistory := opts.MaxMessages
	if maxHistory <= 0 {
		maxHistory = defaultMaxHistory
	}
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = defaultTTL
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Store{
		entries:    make(map[string]*entry),
		maxHistory: maxHistory,
		ttl:        ttl,
		now:        now,
	}
}

// Create registers a new wizard session under a fresh id.
func (s *Store) Create() *workflow.Session {
	wiz := workflow.NewSession()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[wiz.ID()] = &entry{wizard: wiz, lastActivity: s.now()}
	return wiz
}

func (s *Store) Get(key string) (*workflow.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok || e.wizard == nil {
		return nil, false
	}
	e.lastActivity = s.now()
	return e.wizard, true
}

// GetOrCreate returns the wizard session for key, creating one with that id when missing.
func (s *Store) GetOrCreate(key string) *workflow.Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.getOrCreateLocked(key)
	if e.wizard == nil {
		e.wizard = workflow.NewSessionWithID(key)
	}
	return e.wizard
}

func (s *Store) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *Store) ClearHistory(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[key]; ok {
		e.history = nil
		e.lastActivity = s.now()
	}
}

// History returns a copy of the conversation for key.
func (s *Store) History(key string) []gemini.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.getOrCreateLocked(key)
	history := make([]gemini.Message, len(e.history))
	copy(history, e.history)
	return history
}

// Append records messages and keeps only the newest MaxMessages.
func (s *Store) Append(key string, msgs ...gemini.Message) {
	if len(msgs) == 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.getOrCreateLocked(key)
	e.history = append(e.history, msgs...)
	if len(e.history) > s.maxHistory {
		e.history = e.history[len(e.history)-s.maxHistory:]
	}
}

// Sweep drops entries idle for longer than the TTL and returns how many went.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-s.ttl)
	removed := 0
	for key, e := range s.entries {
		last := e.lastActivity
		if e.wizard != nil {
			if updated := e.wizard.UpdatedAt(); updated.After(last) {
				last = updated
			}
		}
		if last.Before(cutoff) {
			delete(s.entries, key)
			removed++
		}
	}
	return removed
}

// Run sweeps on every tick until ctx is done.
func (s *Store) Run(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

func (s *Store) getOrCreateLocked(key string) *entry {
	e, ok := s.entries[key]
	if !ok {
		e = &entry{}
		s.entries[key] = e
	}
	e.lastActivity = s.now()
	return e
}
