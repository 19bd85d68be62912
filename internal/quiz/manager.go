package quiz

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/gokatarajesh/career-assessment/internal/metrics"
)

// Deps are the collaborators shared by every runner of a Manager.
type Deps struct {
	Loader    QuestionLoader
	Submitter Submitter
	Results   ResultHandler
	Observers []Observer
	Logger    zerolog.Logger
	// IdleTTL is how long a settled session may sit untouched before Sweep discards it.
	IdleTTL time.Duration
	Now     func() time.Time
}

type runnerKey struct {
	user string
	test string
}

// Manager hosts one Runner per (user, test type).
type Manager struct {
	defs  map[string]Definition
	order []string
	deps  Deps

	logger zerolog.Logger

	mu      sync.Mutex
	runners map[runnerKey]*Runner
}

// NewManager validates defs and builds a manager serving them.
func NewManager(defs []Definition, deps Deps) (*Manager, error) {
	if deps.Loader == nil || deps.Submitter == nil {
		return nil, fmt.Errorf("quiz manager: loader and submitter required")
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	deps.Observers = append([]Observer{transitionCounter{}}, deps.Observers...)

	m := &Manager{
		defs:    make(map[string]Definition, len(defs)),
		deps:    deps,
		logger:  deps.Logger.With().Str("component", "quiz_manager").Logger(),
		runners: make(map[runnerKey]*Runner),
	}
	for _, def := range defs {
		if err := def.Validate(); err != nil {
			return nil, err
		}
		if _, dup := m.defs[def.Slug]; dup {
			return nil, fmt.Errorf("quiz manager: duplicate definition %q", def.Slug)
		}
		m.defs[def.Slug] = def
		m.order = append(m.order, def.Slug)
	}
	return m, nil
}

// Definitions lists the served test types in registration order.
func (m *Manager) Definitions() []Definition {
	out := make([]Definition, 0, len(m.order))
	for _, slug := range m.order {
		out = append(out, m.defs[slug])
	}
	return out
}

// Definition looks up a test type by slug.
func (m *Manager) Definition(slug string) (Definition, bool) {
	def, ok := m.defs[slug]
	return def, ok
}

// Start begins a new session of test for userID and loads its questions. The runner is
// resolved and the session installed under the manager lock, so a concurrent sweep or
// abandon cannot strand the new session on a runner the registry has already forgotten.
func (m *Manager) Start(ctx context.Context, userID, test, token string) (View, error) {
	def, ok := m.defs[test]
	if !ok {
		return View{}, fmt.Errorf("%w: %s", ErrUnknownTest, test)
	}

	m.mu.Lock()
	r := m.runnerLocked(userID, def)
	s := r.begin()
	m.mu.Unlock()

	return r.load(ctx, s, token)
}

// runnerLocked returns the user's runner for def, creating it on first use. m.mu must be held.
func (m *Manager) runnerLocked(userID string, def Definition) *Runner {
	key := runnerKey{user: userID, test: def.Slug}
	if r, ok := m.runners[key]; ok {
		return r
	}
	r := NewRunner(userID, def, RunnerOptions{
		Loader:    m.deps.Loader,
		Submitter: m.deps.Submitter,
		Results:   m.deps.Results,
		Observers: m.deps.Observers,
		Logger:    m.deps.Logger,
		Now:       m.deps.Now,
	})
	m.runners[key] = r
	return r
}

// Lookup returns the user's runner for test. Only Start creates runners.
func (m *Manager) Lookup(userID, test string) (*Runner, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.runners[runnerKey{user: userID, test: test}]
	return r, ok
}

// Abandon discards the user's session for test, if any.
func (m *Manager) Abandon(userID, test string) bool {
	key := runnerKey{user: userID, test: test}
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.runners[key]
	if !ok {
		return false
	}
	delete(m.runners, key)
	return r.Abandon()
}

// AbandonUser discards every session of userID. Used on logout.
func (m *Manager) AbandonUser(userID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for key, r := range m.runners {
		if key.user != userID {
			continue
		}
		delete(m.runners, key)
		if r.Abandon() {
			n++
		}
	}
	return n
}

// ActiveTests lists the tests userID currently has a session for, sorted.
func (m *Manager) ActiveTests(userID string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for key, r := range m.runners {
		if key.user == userID && r.hasSession() {
			out = append(out, key.test)
		}
	}
	sort.Strings(out)
	return out
}

// Sweep discards settled sessions idle since before now-IdleTTL and forgets empty runners.
// Sessions holding a result stay until retake, abandon or logout.
// It returns the number of sessions discarded.
func (m *Manager) Sweep(now time.Time) int {
	if m.deps.IdleTTL <= 0 {
		return 0
	}
	cutoff := now.Add(-m.deps.IdleTTL)

	m.mu.Lock()
	defer m.mu.Unlock()
	evicted := 0
	for key, r := range m.runners {
		gone, empty := r.abandonIfIdle(cutoff)
		if gone {
			evicted++
		}
		if empty {
			delete(m.runners, key)
		}
	}
	if evicted > 0 {
		m.logger.Info().Int("evicted", evicted).Int("remaining", len(m.runners)).Msg("idle sessions swept")
	}
	return evicted
}

// transitionCounter feeds session status changes into metrics.
type transitionCounter struct{}

func (transitionCounter) SessionChanged(event SessionEvent) {
	status := string(event.View.Status)
	if event.Closed != "" {
		status = "closed"
	}
	metrics.SessionTransitions.WithLabelValues(event.View.Test, status).Inc()
}
