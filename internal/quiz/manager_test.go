package quiz

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/gokatarajesh/career-assessment/internal/question"
)

func testDefs() []Definition {
	rules := question.Rules{NoChoices: question.NoChoicesSkip}
	return []Definition{
		{Slug: "mbti", Title: "MBTI", Rules: rules},
		{Slug: "eq", Title: "EQ", Rules: rules},
	}
}

type eventLog struct {
	mu     sync.Mutex
	events []SessionEvent
}

func (l *eventLog) SessionChanged(event SessionEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, event)
}

func (l *eventLog) last() SessionEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.events[len(l.events)-1]
}

type managerFixture struct {
	manager   *Manager
	loader    *stubLoader
	submitter *mockSubmitter
	events    *eventLog
}

func newTestManager(t *testing.T, c *clock, ttl time.Duration) *managerFixture {
	t.Helper()
	f := &managerFixture{
		loader:    &stubLoader{questions: threeQuestions()},
		submitter: new(mockSubmitter),
		events:    &eventLog{},
	}
	m, err := NewManager(testDefs(), Deps{
		Loader:    f.loader,
		Submitter: f.submitter,
		Observers: []Observer{f.events},
		Logger:    discardLogger(),
		IdleTTL:   ttl,
		Now:       c.Now,
	})
	require.NoError(t, err)
	f.manager = m
	return f
}

func TestNewManagerRejectsBadDefinitions(t *testing.T) {
	deps := Deps{Loader: &stubLoader{}, Submitter: new(mockSubmitter), Logger: discardLogger()}

	defs := append(testDefs(), Definition{Slug: "mbti", Rules: question.Rules{NoChoices: question.NoChoicesBinary}})
	_, err := NewManager(defs, deps)
	assert.ErrorContains(t, err, "duplicate")

	_, err = NewManager([]Definition{{Slug: "values"}}, deps)
	assert.ErrorIs(t, err, question.ErrInvalidRules)

	_, err = NewManager(testDefs(), Deps{Logger: discardLogger()})
	assert.Error(t, err)
}

func TestManagerRunnerPerUserAndTest(t *testing.T) {
	m := newTestManager(t, newClock(), time.Minute).manager
	ctx := context.Background()

	_, found := m.Lookup("u1", "mbti")
	assert.False(t, found)

	first, err := m.Start(ctx, "u1", "mbti", "")
	require.NoError(t, err)
	a, found := m.Lookup("u1", "mbti")
	require.True(t, found)

	retake, err := m.Start(ctx, "u1", "mbti", "")
	require.NoError(t, err)
	again, _ := m.Lookup("u1", "mbti")
	assert.Same(t, a, again)
	assert.NotEqual(t, first.ID, retake.ID)

	_, err = m.Start(ctx, "u2", "mbti", "")
	require.NoError(t, err)
	other, _ := m.Lookup("u2", "mbti")
	assert.NotSame(t, a, other)

	_, err = m.Start(ctx, "u1", "tarot", "")
	assert.ErrorIs(t, err, ErrUnknownTest)

	assert.Equal(t, []string{"mbti", "eq"}, slugs(m.Definitions()))
}

func TestManagerAbandonUser(t *testing.T) {
	f := newTestManager(t, newClock(), time.Minute)
	m := f.manager
	for _, test := range []string{"mbti", "eq"} {
		_, err := m.Start(context.Background(), "u1", test, "")
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"eq", "mbti"}, m.ActiveTests("u1"))

	assert.Equal(t, 2, m.AbandonUser("u1"))
	assert.Equal(t, CloseAbandoned, f.events.last().Closed)
	assert.Empty(t, m.ActiveTests("u1"))
	assert.False(t, m.Abandon("u1", "mbti"))
}

func TestActiveTestsSkipsRunnersWithoutSession(t *testing.T) {
	m := newTestManager(t, newClock(), time.Minute).manager
	_, err := m.Start(context.Background(), "u1", "eq", "")
	require.NoError(t, err)

	r, _ := m.Lookup("u1", "eq")
	require.True(t, r.Abandon())
	assert.Empty(t, m.ActiveTests("u1"))
}

func TestStartedSessionSurvivesSweepDuringLoad(t *testing.T) {
	c := newClock()
	f := newTestManager(t, c, time.Minute)
	f.loader.gate = make(chan struct{})

	done := make(chan struct{})
	go func() {
		_, _ = f.manager.Start(context.Background(), "u1", "mbti", "")
		close(done)
	}()
	require.Eventually(t, func() bool {
		f.loader.mu.Lock()
		defer f.loader.mu.Unlock()
		return f.loader.calls == 1
	}, time.Second, time.Millisecond)

	assert.Zero(t, f.manager.Sweep(c.Now().Add(time.Hour)))
	assert.Equal(t, []string{"mbti"}, f.manager.ActiveTests("u1"))

	close(f.loader.gate)
	<-done

	r, found := f.manager.Lookup("u1", "mbti")
	require.True(t, found)
	view, err := r.View()
	require.NoError(t, err)
	assert.Equal(t, StatusInProgress, view.Status)
}

func TestSweepEvictsIdleSessions(t *testing.T) {
	c := newClock()
	f := newTestManager(t, c, 10*time.Minute)
	m := f.manager

	_, err := m.Start(context.Background(), "u1", "mbti", "")
	require.NoError(t, err)

	c.Advance(6 * time.Minute)
	_, err = m.Start(context.Background(), "u2", "mbti", "")
	require.NoError(t, err)

	c.Advance(5 * time.Minute)
	assert.Equal(t, 1, m.Sweep(c.Now()))

	_, ok := m.Lookup("u1", "mbti")
	assert.False(t, ok)
	_, ok = m.Lookup("u2", "mbti")
	assert.True(t, ok)

	closed := f.events.last()
	assert.Equal(t, CloseExpired, closed.Closed)
	assert.Equal(t, "u1", closed.UserID)
}

func TestSweepKeepsResults(t *testing.T) {
	c := newClock()
	f := newTestManager(t, c, time.Minute)
	ctx := context.Background()

	_, err := f.manager.Start(ctx, "u1", "mbti", "tok")
	require.NoError(t, err)
	r, _ := f.manager.Lookup("u1", "mbti")
	answerAll(t, r, map[string]string{"q1": "a", "q2": "b", "q3": "c"})
	f.submitter.On("Submit", mock.Anything, "mbti", "tok", mock.Anything).Return(json.RawMessage(`{"result":"ISTJ"}`), nil).Once()
	_, err = r.Submit(ctx, "tok")
	require.NoError(t, err)

	assert.Zero(t, f.manager.Sweep(c.Now().Add(24*time.Hour)))
	view, err := r.View()
	require.NoError(t, err)
	assert.Equal(t, StatusResult, view.Status)
	assert.JSONEq(t, `{"result":"ISTJ"}`, string(view.Result))
}

func slugs(defs []Definition) []string {
	out := make([]string, len(defs))
	for i, d := range defs {
		out[i] = d.Slug
	}
	return out
}
