package assessment

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFinalizer struct {
	mu       sync.Mutex
	calls    int
	last     *SubmissionPayload
	failures int
	err      error
}

func (f *fakeFinalizer) Finalize(_ context.Context, p *SubmissionPayload) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls++
	f.last = p
	if f.failures > 0 {
		f.failures--
		return f.err
	}
	return nil
}

func (f *fakeFinalizer) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// twoPartSteps builds part 1 with two editing steps and part 2 with one
// reading step.
func twoPartSteps() []Step {
	return []Step{
		{ID: "p1_editing_e1", Part: 1, Type: StepEditing},
		{ID: "p1_editing_e2", Part: 1, Type: StepEditing},
		{ID: "p2_q_q1", Part: 2, Type: StepReadingMCQ, Options: []string{"A", "B"}},
	}
}

func startedSession(t *testing.T, steps []Step, duration int, fin Finalizer) *Session {
	t.Helper()
	s := NewSession(uuid.New(), "12", fin)
	require.NoError(t, s.Begin(steps, duration))
	require.Equal(t, StatePresenting, s.State())
	return s
}

func TestBeginRequiresSteps(t *testing.T) {
	s := NewSession(uuid.New(), "12", &fakeFinalizer{})

	err := s.Begin(nil, 600)
	assert.ErrorIs(t, err, ErrNoSteps)
	assert.Equal(t, StateLoading, s.State(), "empty sequence means still loading")
}

func TestPartGateRefusesAdvance(t *testing.T) {
	s := startedSession(t, twoPartSteps(), 600, &fakeFinalizer{})

	// Answer only the first editing step, then walk to the part boundary.
	require.NoError(t, s.RecordAnswer("p1_editing_e1", Text("fixed")))
	v, err := s.Continue()
	require.NoError(t, err)
	require.Equal(t, 1, v.StepIndex)

	v, err = s.Continue()
	assert.ErrorIs(t, err, ErrPartIncomplete)
	assert.Equal(t, 1, v.StepIndex, "index unchanged on refusal")

	// Completing the part opens the gate.
	require.NoError(t, s.RecordAnswer("p1_editing_e2", Text("also fixed")))
	v, err = s.Continue()
	require.NoError(t, err)
	assert.Equal(t, 2, v.StepIndex)
}

func TestEmptyTextDoesNotSatisfyGate(t *testing.T) {
	s := startedSession(t, twoPartSteps(), 600, &fakeFinalizer{})

	require.NoError(t, s.RecordAnswer("p1_editing_e1", Text("fixed")))
	require.NoError(t, s.RecordAnswer("p1_editing_e2", Text("")))
	_, err := s.Continue()
	require.NoError(t, err)

	_, err = s.Continue()
	assert.ErrorIs(t, err, ErrPartIncomplete)
}

func TestPreviousAlwaysAllowedExceptAtStart(t *testing.T) {
	s := startedSession(t, twoPartSteps(), 600, &fakeFinalizer{})

	_, err := s.Previous()
	assert.ErrorIs(t, err, ErrAtFirstStep)

	_, err = s.Continue()
	require.NoError(t, err)

	// Previous needs no answers at all.
	v, err := s.Previous()
	require.NoError(t, err)
	assert.Equal(t, 0, v.StepIndex)
}

func TestConfirmFlow(t *testing.T) {
	fin := &fakeFinalizer{}
	s := startedSession(t, twoPartSteps(), 600, fin)

	require.NoError(t, s.RecordAnswer("p1_editing_e1", Text("a")))
	require.NoError(t, s.RecordAnswer("p1_editing_e2", Text("b")))
	_, err := s.Continue()
	require.NoError(t, err)
	_, err = s.Continue()
	require.NoError(t, err)

	// Continue on the final step opens confirmation instead of advancing.
	v, err := s.Continue()
	require.NoError(t, err)
	assert.Equal(t, StateConfirming, v.State)
	assert.Equal(t, 2, v.StepIndex)

	// Cancel returns without side effects.
	v, err = s.CancelConfirm()
	require.NoError(t, err)
	assert.Equal(t, StatePresenting, v.State)
	assert.Equal(t, 0, fin.Calls())

	_, err = s.Continue()
	require.NoError(t, err)
	require.NoError(t, s.Submit(context.Background()))
	assert.Equal(t, StateSubmitted, s.State())
	assert.Equal(t, 1, fin.Calls())
}

func TestSubmitOutsideConfirmRefused(t *testing.T) {
	fin := &fakeFinalizer{}
	s := startedSession(t, twoPartSteps(), 600, fin)

	err := s.Submit(context.Background())
	assert.ErrorIs(t, err, ErrNotConfirming)
	assert.Equal(t, 0, fin.Calls())
}

func TestAtMostOneSubmission(t *testing.T) {
	fin := &fakeFinalizer{}
	s := startedSession(t, twoPartSteps(), 600, fin)

	require.NoError(t, s.RecordAnswer("p1_editing_e1", Text("a")))
	require.NoError(t, s.RecordAnswer("p1_editing_e2", Text("b")))
	for i := 0; i < 3; i++ {
		_, err := s.Continue()
		require.NoError(t, err)
	}
	require.NoError(t, s.Submit(context.Background()))

	err := s.Submit(context.Background())
	assert.ErrorIs(t, err, ErrNotConfirming)
	assert.Equal(t, 1, fin.Calls())
}

func TestTimeoutForcesSingleSubmit(t *testing.T) {
	fin := &fakeFinalizer{}
	s := startedSession(t, twoPartSteps(), 60, fin)

	// Mid-way through part 1, one answer recorded.
	require.NoError(t, s.RecordAnswer("p1_editing_e1", Text("only this")))

	var forcedTicks int
	for i := 0; i < 120; i++ {
		res := s.Tick(context.Background())
		if res.ForcedSubmit {
			forcedTicks++
			require.NoError(t, res.Err)
		}
	}

	assert.Equal(t, 1, forcedTicks, "exactly one tick forces submission")
	assert.Equal(t, 1, fin.Calls())
	assert.Equal(t, StateSubmitted, s.State())
	assert.Equal(t, map[string]string{"p1_editing_e1": "only this"}, fin.last.Content)
}

func TestTimeoutFailureLeavesManualRetry(t *testing.T) {
	fin := &fakeFinalizer{failures: 1, err: errors.New("network down")}
	s := startedSession(t, twoPartSteps(), 1, fin)

	res := s.Tick(context.Background())
	require.True(t, res.ForcedSubmit)
	require.Error(t, res.Err)
	assert.NotEqual(t, StateSubmitted, s.State())

	// The timer never retries on its own.
	for i := 0; i < 10; i++ {
		res = s.Tick(context.Background())
		assert.False(t, res.ForcedSubmit)
	}
	assert.Equal(t, 1, fin.Calls())

	// But a manual submit after timeout is allowed.
	require.NoError(t, s.Submit(context.Background()))
	assert.Equal(t, StateSubmitted, s.State())
	assert.Equal(t, 2, fin.Calls())
}

func TestSubmitFailureRestoresConfirming(t *testing.T) {
	fin := &fakeFinalizer{failures: 1, err: errors.New("validation rejected")}
	s := startedSession(t, twoPartSteps(), 600, fin)

	require.NoError(t, s.RecordAnswer("p1_editing_e1", Text("a")))
	require.NoError(t, s.RecordAnswer("p1_editing_e2", Text("b")))
	for i := 0; i < 3; i++ {
		_, err := s.Continue()
		require.NoError(t, err)
	}

	require.Error(t, s.Submit(context.Background()))
	assert.Equal(t, StateConfirming, s.State(), "failure is recoverable, not terminal")

	require.NoError(t, s.Submit(context.Background()))
	assert.Equal(t, StateSubmitted, s.State())
}

func TestRecordAnswerValidation(t *testing.T) {
	s := startedSession(t, twoPartSteps(), 600, &fakeFinalizer{})

	err := s.RecordAnswer("p9_unknown", Text("x"))
	assert.ErrorIs(t, err, ErrUnknownStep)
}

func TestRestoreAnswersOnResume(t *testing.T) {
	s := startedSession(t, twoPartSteps(), 600, &fakeFinalizer{})

	s.RestoreAnswers(AnswerMap{
		"p1_editing_e1": Text("saved earlier"),
		"gone_step":     Text("dropped"),
	})

	answers := s.Answers()
	assert.Equal(t, "saved earlier", answers["p1_editing_e1"].Value)
	_, ok := answers["gone_step"]
	assert.False(t, ok)
}

func TestTickBeforeBeginIsInert(t *testing.T) {
	fin := &fakeFinalizer{}
	s := NewSession(uuid.New(), "12", fin)

	res := s.Tick(context.Background())
	assert.False(t, res.ForcedSubmit)
	assert.Equal(t, 0, fin.Calls())
}

func TestSnapshotPartProgress(t *testing.T) {
	s := startedSession(t, twoPartSteps(), 600, &fakeFinalizer{})

	require.NoError(t, s.RecordAnswer("p1_editing_e1", Text("a")))
	_, err := s.Continue()
	require.NoError(t, err)

	v := s.Snapshot()
	assert.Equal(t, 2, v.PartSize)
	assert.Equal(t, 2, v.StepInPart)
	assert.Equal(t, 3, v.TotalSteps)
	require.NotNil(t, v.Step)
	assert.Equal(t, "p1_editing_e2", v.Step.ID)
}
