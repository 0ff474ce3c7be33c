// Package session tracks the per-session state of crawl runs: the current
// step, every step's latest result, accumulated errors and derived metadata.
// The store is the only object mutated by concurrently running sessions, so
// every method is safe under concurrent access and reads return consistent
// snapshots.
package session

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wutongci/wxcrawl/pkg/logging"
)

// Session status values derived by Status.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Defaults for the background cleanup sweep.
const (
	DefaultCleanupInterval = time.Hour
	DefaultMaxAge          = 24 * time.Hour
)

// Error is one recorded failure within a session.
type Error struct {
	Message   string
	Step      string
	SessionID string
	Retryable bool
	Timestamp time.Time
}

// State is the durable-for-session-lifetime record of one crawl session.
type State struct {
	ID          string
	URL         string
	StartedAt   time.Time
	CurrentStep string
	StepResults map[string]any
	UpdatedAt   map[string]time.Time
	Errors      []Error
	Metadata    map[string]any

	// Terminal marks the session finished; Succeeded distinguishes
	// completed from failed.
	Terminal  bool
	Succeeded bool
}

// Status is the externally visible summary of a session.
type Status struct {
	SessionID   string
	Status      string
	Progress    int
	CurrentStep string
	StartedAt   time.Time
	Duration    time.Duration
	LastError   string
}

// Store holds all active session states. It owns a background timer that
// sweeps expired sessions.
type Store struct {
	mu        sync.RWMutex
	sessions  map[string]*State
	canonical []string
	log       *logging.Logger

	maxAge   time.Duration
	stopOnce sync.Once
	done     chan struct{}
}

// Config tunes a Store. Zero values take the documented defaults.
type Config struct {
	// CanonicalSteps are the step names progress is computed over
	CanonicalSteps []string

	// CleanupInterval is the background sweep period
	CleanupInterval time.Duration

	// MaxAge is the age past which a session is swept
	MaxAge time.Duration
}

// New creates a Store and starts its cleanup timer.
func New(cfg Config) *Store {
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = DefaultCleanupInterval
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = DefaultMaxAge
	}
	log, _ := logging.NewLogger("session-store")

	s := &Store{
		sessions:  make(map[string]*State),
		canonical: cfg.CanonicalSteps,
		log:       log,
		maxAge:    cfg.MaxAge,
		done:      make(chan struct{}),
	}
	go s.sweepLoop(cfg.CleanupInterval)
	return s
}

func (s *Store) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			removed := s.CleanupExpired(s.maxAge)
			if removed > 0 {
				s.log.Infof("swept %d expired sessions", removed)
			}
		case <-s.done:
			return
		}
	}
}

// CreateSession registers a new session for the given URL and returns its id.
func (s *Store) CreateSession(url string) string {
	id := uuid.New().String()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[id] = &State{
		ID:          id,
		URL:         url,
		StartedAt:   time.Now(),
		StepResults: make(map[string]any),
		UpdatedAt:   make(map[string]time.Time),
		Metadata:    make(map[string]any),
	}
	return id
}

// GetSession returns a snapshot of the session state, or false if unknown.
func (s *Store) GetSession(id string) (State, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.sessions[id]
	if !ok {
		return State{}, false
	}
	return st.snapshot(), true
}

// snapshot copies a State so readers never observe later mutations.
// Callers must hold at least the read lock.
func (st *State) snapshot() State {
	out := *st
	out.StepResults = make(map[string]any, len(st.StepResults))
	for k, v := range st.StepResults {
		out.StepResults[k] = v
	}
	out.UpdatedAt = make(map[string]time.Time, len(st.UpdatedAt))
	for k, v := range st.UpdatedAt {
		out.UpdatedAt[k] = v
	}
	out.Errors = append([]Error(nil), st.Errors...)
	out.Metadata = make(map[string]any, len(st.Metadata))
	for k, v := range st.Metadata {
		out.Metadata[k] = v
	}
	return out
}

// UpdateCurrentStep records the step a session is about to execute.
// Unknown ids are logged and ignored.
func (s *Store) UpdateCurrentStep(id, stepName string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.sessions[id]
	if !ok {
		s.log.Warnf("update current step for unknown session %s", id)
		return
	}
	st.CurrentStep = stepName
}

// UpdateStepResult records a step's latest result, superseding any earlier
// one. Unknown ids are logged and ignored.
func (s *Store) UpdateStepResult(id, stepName string, result any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.sessions[id]
	if !ok {
		s.log.Warnf("update step result for unknown session %s", id)
		return
	}
	st.StepResults[stepName] = result
	st.UpdatedAt[stepName] = time.Now()
}

// AddError appends an error to the session's ordered error list. Unknown
// ids are logged and ignored.
func (s *Store) AddError(id string, e Error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.sessions[id]
	if !ok {
		s.log.Warnf("add error for unknown session %s", id)
		return
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	e.SessionID = id
	st.Errors = append(st.Errors, e)
}

// UpdateMetadata merges partial metadata into the session's metadata bag.
// Unknown ids are logged and ignored.
func (s *Store) UpdateMetadata(id string, partial map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.sessions[id]
	if !ok {
		s.log.Warnf("update metadata for unknown session %s", id)
		return
	}
	for k, v := range partial {
		st.Metadata[k] = v
	}
}

// CompleteSession marks the session terminal.
func (s *Store) CompleteSession(id string, success bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.sessions[id]
	if !ok {
		s.log.Warnf("complete unknown session %s", id)
		return
	}
	st.Terminal = true
	st.Succeeded = success
}

// Status derives the externally visible summary of a session.
func (s *Store) Status(id string) (Status, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.sessions[id]
	if !ok {
		return Status{}, false
	}
	return s.statusLocked(st), true
}

func (s *Store) statusLocked(st *State) Status {
	out := Status{
		SessionID:   st.ID,
		CurrentStep: st.CurrentStep,
		StartedAt:   st.StartedAt,
		Duration:    time.Since(st.StartedAt),
		Progress:    s.progressLocked(st),
	}
	if len(st.Errors) > 0 {
		out.LastError = st.Errors[len(st.Errors)-1].Message
	}

	switch {
	case st.Terminal && st.Succeeded:
		out.Status = StatusCompleted
	case st.Terminal || len(st.Errors) > 0:
		out.Status = StatusFailed
	case st.CurrentStep == "":
		out.Status = StatusPending
	default:
		out.Status = StatusRunning
	}
	return out
}

// progressLocked computes the percentage of canonical steps with a recorded
// result. Results are never removed, so progress is monotonic within a
// session.
func (s *Store) progressLocked(st *State) int {
	if len(s.canonical) == 0 {
		return 0
	}
	completed := 0
	for _, name := range s.canonical {
		if _, ok := st.StepResults[name]; ok {
			completed++
		}
	}
	return int(math.Round(float64(completed) / float64(len(s.canonical)) * 100))
}

// ListStatuses returns the status of every known session, most recently
// started first.
func (s *Store) ListStatuses() []Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Status, 0, len(s.sessions))
	for _, st := range s.sessions {
		out = append(out, s.statusLocked(st))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	return out
}

// CleanupExpired removes sessions older than maxAge and returns how many
// were removed. Safe to call concurrently with in-flight sessions.
func (s *Store) CleanupExpired(maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge)

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, st := range s.sessions {
		if st.StartedAt.Before(cutoff) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

// DeleteSession removes a single session explicitly.
func (s *Store) DeleteSession(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

// Destroy stops the cleanup timer and clears all sessions. Safe to call
// more than once.
func (s *Store) Destroy() {
	s.stopOnce.Do(func() {
		close(s.done)
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions = make(map[string]*State)
}
