package quiz

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/gokatarajesh/career-assessment/internal/question"
	"github.com/gokatarajesh/career-assessment/internal/wordpress"
)

func discardLogger() zerolog.Logger { return zerolog.New(io.Discard) }

type stubLoader struct {
	mu        sync.Mutex
	questions []question.Question
	errs      []error
	calls     int
	tokens    []string
	gate      chan struct{} // blocks Load until closed
}

func (s *stubLoader) Load(_ context.Context, _ string, _ question.Rules, token string) ([]question.Question, error) {
	s.mu.Lock()
	s.calls++
	s.tokens = append(s.tokens, token)
	var err error
	if len(s.errs) > 0 {
		err, s.errs = s.errs[0], s.errs[1:]
	}
	gate := s.gate
	s.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if err != nil {
		return nil, err
	}
	return s.questions, nil
}

type mockSubmitter struct {
	mock.Mock
}

func (m *mockSubmitter) Submit(ctx context.Context, test, token string, submission wordpress.Submission) (json.RawMessage, error) {
	args := m.Called(ctx, test, token, submission)
	raw, _ := args.Get(0).(json.RawMessage)
	return raw, args.Error(1)
}

type recordingResults struct {
	mu     sync.Mutex
	events []ResultEvent
}

func (r *recordingResults) ResultReady(_ context.Context, event ResultEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

type fixture struct {
	loader    *stubLoader
	submitter *mockSubmitter
	results   *recordingResults
	events    []SessionEvent
	runner    *Runner
}

func newFixture(t *testing.T, def Definition) *fixture {
	t.Helper()
	f := &fixture{
		loader:    &stubLoader{questions: threeQuestions()},
		submitter: new(mockSubmitter),
		results:   &recordingResults{},
	}
	if def.Slug == "" {
		def.Slug = "mbti"
	}
	if def.Rules.NoChoices == question.NoChoicesUnset {
		def.Rules.NoChoices = question.NoChoicesSkip
	}
	f.runner = NewRunner("user-1", def, RunnerOptions{
		Loader:    f.loader,
		Submitter: f.submitter,
		Results:   f.results,
		Observers: []Observer{ObserverFunc(func(e SessionEvent) { f.events = append(f.events, e) })},
		Logger:    discardLogger(),
		Now:       newClock().Now,
	})
	return f
}

func answerAll(t *testing.T, r *Runner, answers map[string]string) {
	t.Helper()
	for id, key := range answers {
		_, err := r.Answer(id, key)
		require.NoError(t, err)
	}
}

func TestPartialAnswersCannotSubmit(t *testing.T) {
	f := newFixture(t, Definition{})
	view, err := f.runner.Start(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, StatusInProgress, view.Status)
	assert.Equal(t, 3, view.Total)

	answerAll(t, f.runner, map[string]string{"q1": "b", "q3": "a"})
	view, _ = f.runner.View()
	assert.False(t, view.Complete)

	view, err = f.runner.Submit(context.Background(), "tok")
	assert.ErrorIs(t, err, ErrIncomplete)
	assert.Equal(t, StatusInProgress, view.Status)
	f.submitter.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCompleteSubmissionReachesResult(t *testing.T) {
	f := newFixture(t, Definition{})
	_, err := f.runner.Start(context.Background(), "tok")
	require.NoError(t, err)
	answerAll(t, f.runner, map[string]string{"q1": "b", "q3": "a", "q2": "c"})

	result := json.RawMessage(`{"result":"ENTP","scores":{"E":12}}`)
	expected := wordpress.Submission{Answers: map[string]string{"q1": "b", "q2": "c", "q3": "a"}}
	f.submitter.On("Submit", mock.Anything, "mbti", "tok", expected).Return(result, nil).Once()

	view, err := f.runner.Submit(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, StatusResult, view.Status)
	assert.JSONEq(t, string(result), string(view.Result))
	f.submitter.AssertExpectations(t)

	require.Len(t, f.results.events, 1)
	assert.Equal(t, "user-1", f.results.events[0].UserID)
	assert.Equal(t, "mbti", f.results.events[0].Test)
	assert.Equal(t, view.ID, f.results.events[0].SessionID)
}

func TestLoadFailureThenRetryReloads(t *testing.T) {
	f := newFixture(t, Definition{})
	f.loader.errs = []error{&wordpress.HTTPError{Endpoint: "questions", Status: 500}}

	view, err := f.runner.Start(context.Background(), "tok")
	require.Error(t, err)
	assert.Equal(t, 500, wordpress.StatusOf(err))
	assert.Equal(t, StatusError, view.Status)
	require.NotNil(t, view.Error)
	assert.Equal(t, PhaseLoad, view.Error.Phase)

	view, err = f.runner.Retry(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, StatusInProgress, view.Status)
	assert.Equal(t, 2, f.loader.calls)
}

func TestSubmitTimeoutRetrySendsAgain(t *testing.T) {
	f := newFixture(t, Definition{})
	_, err := f.runner.Start(context.Background(), "tok")
	require.NoError(t, err)
	answerAll(t, f.runner, map[string]string{"q1": "b", "q2": "c", "q3": "a"})

	timeout := &wordpress.NetworkError{Endpoint: "submit", Err: context.DeadlineExceeded}
	f.submitter.On("Submit", mock.Anything, "mbti", "tok", mock.Anything).Return(nil, timeout).Once()
	f.submitter.On("Submit", mock.Anything, "mbti", "tok", mock.Anything).Return(json.RawMessage(`{"result":"INTP"}`), nil).Once()

	view, err := f.runner.Submit(context.Background(), "tok")
	assert.ErrorIs(t, err, wordpress.ErrNetwork)
	assert.Equal(t, StatusError, view.Status)
	assert.Equal(t, "network", view.Error.Kind)
	assert.Len(t, view.Answers, 3)

	view, err = f.runner.Retry(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, StatusResult, view.Status)
	f.submitter.AssertNumberOfCalls(t, "Submit", 2)
}

func TestRetakeStartsFreshSession(t *testing.T) {
	f := newFixture(t, Definition{})
	first, err := f.runner.Start(context.Background(), "tok")
	require.NoError(t, err)
	answerAll(t, f.runner, map[string]string{"q1": "b", "q2": "c"})
	_, err = f.runner.Advance()
	require.NoError(t, err)

	second, err := f.runner.Start(context.Background(), "tok")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Empty(t, second.Answers)
	assert.Zero(t, second.CurrentIndex)
	assert.Equal(t, StatusInProgress, second.Status)
}

func TestStaleLoadIsDiscarded(t *testing.T) {
	f := newFixture(t, Definition{})
	f.loader.gate = make(chan struct{})

	done := make(chan error, 1)
	go func() {
		_, err := f.runner.Start(context.Background(), "tok")
		done <- err
	}()

	// Wait until the first load is in flight, then abandon.
	require.Eventually(t, func() bool {
		f.loader.mu.Lock()
		defer f.loader.mu.Unlock()
		return f.loader.calls == 1
	}, time.Second, time.Millisecond)
	assert.True(t, f.runner.Abandon())
	close(f.loader.gate)

	assert.ErrorIs(t, <-done, ErrStaleSession)
	_, err := f.runner.View()
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestStaleSubmitDoesNotFireResult(t *testing.T) {
	f := newFixture(t, Definition{})
	_, err := f.runner.Start(context.Background(), "tok")
	require.NoError(t, err)
	answerAll(t, f.runner, map[string]string{"q1": "b", "q2": "c", "q3": "a"})

	release := make(chan struct{})
	started := make(chan struct{})
	f.submitter.On("Submit", mock.Anything, "mbti", "tok", mock.Anything).
		Run(func(mock.Arguments) {
			close(started)
			<-release
		}).
		Return(json.RawMessage(`{"result":"ISTJ"}`), nil).Once()

	done := make(chan error, 1)
	go func() {
		_, err := f.runner.Submit(context.Background(), "tok")
		done <- err
	}()
	<-started

	retake, err := f.runner.Start(context.Background(), "tok")
	require.NoError(t, err)
	close(release)

	assert.ErrorIs(t, <-done, ErrStaleSession)
	assert.Empty(t, f.results.events)

	current, err := f.runner.View()
	require.NoError(t, err)
	assert.Equal(t, retake.ID, current.ID)
	assert.Equal(t, StatusInProgress, current.Status)
	assert.Nil(t, current.Result)
}

func TestQuestionsTokenOnlyWhenRequired(t *testing.T) {
	public := newFixture(t, Definition{Slug: "eq"})
	_, err := public.runner.Start(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, []string{""}, public.loader.tokens)

	private := newFixture(t, Definition{Slug: "filtering", QuestionsRequireAuth: true})
	_, err = private.runner.Start(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, []string{"tok"}, private.loader.tokens)
}

func TestObserversSeeEveryTransition(t *testing.T) {
	f := newFixture(t, Definition{})
	_, err := f.runner.Start(context.Background(), "tok")
	require.NoError(t, err)
	_, err = f.runner.Answer("q1", "a")
	require.NoError(t, err)

	var statuses []Status
	for _, e := range f.events {
		assert.Equal(t, "user-1", e.UserID)
		statuses = append(statuses, e.View.Status)
	}
	assert.Equal(t, []Status{StatusLoading, StatusInProgress, StatusInProgress}, statuses)
	assert.Equal(t, 1, f.events[2].View.Answered)
}

func TestAbandonPublishesClosedEvent(t *testing.T) {
	f := newFixture(t, Definition{})
	started, err := f.runner.Start(context.Background(), "tok")
	require.NoError(t, err)

	require.True(t, f.runner.Abandon())
	last := f.events[len(f.events)-1]
	assert.Equal(t, CloseAbandoned, last.Closed)
	assert.Equal(t, started.ID, last.View.ID)
	for _, e := range f.events[:len(f.events)-1] {
		assert.Empty(t, e.Closed)
	}
}

func TestOperationsWithoutSession(t *testing.T) {
	f := newFixture(t, Definition{})
	_, err := f.runner.Answer("q1", "a")
	assert.ErrorIs(t, err, ErrNoSession)
	_, err = f.runner.Submit(context.Background(), "tok")
	assert.ErrorIs(t, err, ErrNoSession)
	_, err = f.runner.Retry(context.Background(), "tok")
	assert.ErrorIs(t, err, ErrNoSession)
	assert.False(t, f.runner.Abandon())
}

func TestRetryOutsideErrorIsConflict(t *testing.T) {
	f := newFixture(t, Definition{})
	_, err := f.runner.Start(context.Background(), "tok")
	require.NoError(t, err)
	_, err = f.runner.Retry(context.Background(), "tok")
	assert.ErrorIs(t, err, ErrInvalidState)
}
