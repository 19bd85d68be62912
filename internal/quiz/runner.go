package quiz

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/gokatarajesh/career-assessment/internal/question"
	"github.com/gokatarajesh/career-assessment/internal/wordpress"
)

// QuestionLoader produces the question set for a test.
type QuestionLoader interface {
	Load(ctx context.Context, test string, rules question.Rules, token string) ([]question.Question, error)
}

// Runner drives the current Session of one user for one test type. Network calls run without
// the lock; their outcome is applied only while the session that issued them is still current.
type Runner struct {
	userID    string
	def       Definition
	loader    QuestionLoader
	submitter Submitter
	results   ResultHandler
	observers []Observer
	logger    zerolog.Logger
	now       func() time.Time

	mu      sync.Mutex
	current *Session
}

// RunnerOptions wires a Runner's collaborators.
type RunnerOptions struct {
	Loader    QuestionLoader
	Submitter Submitter
	Results   ResultHandler
	Observers []Observer
	Logger    zerolog.Logger
	Now       func() time.Time
}

// NewRunner builds a runner for userID and def.
func NewRunner(userID string, def Definition, opts RunnerOptions) *Runner {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Runner{
		userID:    userID,
		def:       def,
		loader:    opts.Loader,
		submitter: opts.Submitter,
		results:   opts.Results,
		observers: opts.Observers,
		logger:    opts.Logger.With().Str("component", "quiz_runner").Str("test", def.Slug).Str("user_id", userID).Logger(),
		now:       now,
	}
}

// Definition returns the test type this runner serves.
func (r *Runner) Definition() Definition { return r.def }

// Start creates a brand-new session and loads its questions. Used for first takes and retakes;
// any previous session is discarded and its in-flight responses become stale.
func (r *Runner) Start(ctx context.Context, token string) (View, error) {
	return r.load(ctx, r.begin(), token)
}

// begin installs a fresh session as current.
func (r *Runner) begin() *Session {
	s := NewSession(r.def.Slug, r.now)

	r.mu.Lock()
	defer r.mu.Unlock()
	if prev := r.current; prev != nil {
		r.logger.Debug().Str("session_id", prev.ID()).Str("status", string(prev.Status())).Msg("session replaced")
	}
	r.current = s
	r.publish(s)
	return s
}

func (r *Runner) load(ctx context.Context, s *Session, token string) (View, error) {
	if !r.def.QuestionsRequireAuth {
		token = ""
	}
	questions, err := r.loader.Load(ctx, r.def.Slug, r.def.Rules, token)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current != s {
		r.logger.Info().Str("session_id", s.ID()).Msg("stale question load discarded")
		return View{}, ErrStaleSession
	}
	if err != nil {
		_ = s.LoadFailed(err)
		r.publish(s)
		return s.View(), err
	}
	if err := s.Loaded(questions); err != nil {
		_ = s.LoadFailed(err)
		r.publish(s)
		return s.View(), err
	}
	r.publish(s)
	return s.View(), nil
}

// Submit sends the answer record for scoring. An incomplete record fails with ValidationError
// before any network call.
func (r *Runner) Submit(ctx context.Context, token string) (View, error) {
	r.mu.Lock()
	s := r.current
	if s == nil {
		r.mu.Unlock()
		return View{}, ErrNoSession
	}
	if err := s.BeginSubmit(); err != nil {
		view := s.View()
		r.mu.Unlock()
		return view, err
	}
	sub := packageSubmission(r.def, s, r.logger)
	r.publish(s)
	r.mu.Unlock()

	return r.submit(ctx, s, sub, token)
}

func (r *Runner) submit(ctx context.Context, s *Session, sub wordpress.Submission, token string) (View, error) {
	result, err := r.submitter.Submit(ctx, r.def.Slug, token, sub)

	r.mu.Lock()
	if r.current != s {
		r.mu.Unlock()
		r.logger.Info().Str("session_id", s.ID()).Bool("failed", err != nil).Msg("stale submission response discarded")
		return View{}, ErrStaleSession
	}
	if err != nil {
		_ = s.SubmitFailed(err)
		r.publish(s)
		view := s.View()
		r.mu.Unlock()
		return view, err
	}
	_ = s.Submitted(result)
	r.publish(s)
	view := s.View()
	event := ResultEvent{
		UserID:      r.userID,
		Test:        r.def.Slug,
		SessionID:   s.ID(),
		Result:      result,
		SubmittedAt: r.now(),
	}
	r.mu.Unlock()

	if r.results != nil {
		if err := r.results.ResultReady(ctx, event); err != nil {
			r.logger.Warn().Err(err).Str("session_id", s.ID()).Msg("result hand-off failed")
		}
	}
	return view, nil
}

// Retry repeats the step that failed: a reload after a load error, a resubmission of the
// preserved answers after a submit error. Resubmissions are not deduplicated.
func (r *Runner) Retry(ctx context.Context, token string) (View, error) {
	r.mu.Lock()
	s := r.current
	if s == nil {
		r.mu.Unlock()
		return View{}, ErrNoSession
	}
	phase, err := s.BeginRetry()
	if err != nil {
		view := s.View()
		r.mu.Unlock()
		return view, err
	}
	r.publish(s)
	if phase == PhaseLoad {
		r.mu.Unlock()
		return r.load(ctx, s, token)
	}
	sub := packageSubmission(r.def, s, r.logger)
	r.mu.Unlock()
	return r.submit(ctx, s, sub, token)
}

// Answer records key for questionID on the current session.
func (r *Runner) Answer(questionID, key string) (View, error) {
	return r.mutate(func(s *Session) error { return s.RecordAnswer(questionID, key) })
}

// Advance moves the current session forward one question.
func (r *Runner) Advance() (View, error) {
	return r.mutate((*Session).Advance)
}

// Retreat moves the current session back one question.
func (r *Runner) Retreat() (View, error) {
	return r.mutate((*Session).Retreat)
}

func (r *Runner) mutate(op func(*Session) error) (View, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.current
	if s == nil {
		return View{}, ErrNoSession
	}
	if err := op(s); err != nil {
		return s.View(), err
	}
	r.publish(s)
	return s.View(), nil
}

// View renders the current session.
func (r *Runner) View() (View, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current == nil {
		return View{}, ErrNoSession
	}
	return r.current.View(), nil
}

// Abandon discards the current session. Responses still in flight for it will be ignored.
func (r *Runner) Abandon() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.current
	if s == nil {
		return false
	}
	r.logger.Debug().Str("session_id", s.ID()).Msg("session abandoned")
	r.current = nil
	r.publishClosed(s, CloseAbandoned)
	return true
}

// hasSession reports whether the runner holds a current session.
func (r *Runner) hasSession() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current != nil
}

// abandonIfIdle discards the session when it has not been touched since cutoff. Sessions
// waiting on the network and sessions holding a result are kept. It reports whether the
// runner is now empty.
func (r *Runner) abandonIfIdle(cutoff time.Time) (evicted, empty bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.current
	if s == nil {
		return false, true
	}
	switch s.Status() {
	case StatusLoading, StatusSubmitting, StatusResult:
		return false, false
	}
	if s.TouchedAt().After(cutoff) {
		return false, false
	}
	r.current = nil
	r.publishClosed(s, CloseExpired)
	return true, true
}

func (r *Runner) publish(s *Session) { r.notify(s, "") }

func (r *Runner) publishClosed(s *Session, reason CloseReason) { r.notify(s, reason) }

func (r *Runner) notify(s *Session, closed CloseReason) {
	if len(r.observers) == 0 {
		return
	}
	event := SessionEvent{UserID: r.userID, View: s.View(), Closed: closed}
	for _, o := range r.observers {
		o.SessionChanged(event)
	}
}
