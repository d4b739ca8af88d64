package assessment

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPayloadUnwrapsChoices(t *testing.T) {
	fin := &fakeFinalizer{}
	s := startedSession(t, twoPartSteps(), 600, fin)

	require.NoError(t, s.RecordAnswer("p1_editing_e1", Text("a")))
	require.NoError(t, s.RecordAnswer("p1_editing_e2", Text("b")))
	require.NoError(t, s.RecordAnswer("p2_q_q1", Choice("B", 1)))
	for i := 0; i < 3; i++ {
		_, err := s.Continue()
		require.NoError(t, err)
	}
	require.NoError(t, s.Submit(context.Background()))

	require.NotNil(t, fin.last)
	assert.Equal(t, "exam", fin.last.Type)
	assert.Equal(t, "B", fin.last.Content["p2_q_q1"], "choice transmitted as bare value")
}

func TestPayloadCarriesAttachment(t *testing.T) {
	fin := &fakeFinalizer{}
	s := startedSession(t, twoPartSteps(), 600, fin)

	require.NoError(t, s.RecordAnswer("p1_editing_e1", Text("a")))
	require.NoError(t, s.RecordAnswer("p1_editing_e2", Text("b")))
	require.NoError(t, s.RecordAnswer("p2_q_q1", Choice("A", 0)))
	for i := 0; i < 3; i++ {
		_, err := s.Continue()
		require.NoError(t, err)
	}

	s.SetAttachment(&Attachment{
		Filename:    "oral.mp3",
		ContentType: "audio/mpeg",
		Data:        []byte{0x49, 0x44, 0x33},
	})
	require.NoError(t, s.Submit(context.Background()))

	require.NotNil(t, fin.last)
	require.NotNil(t, fin.last.File)
	assert.Equal(t, "oral.mp3", fin.last.File.Filename)
	assert.Equal(t, "audio/mpeg", fin.last.File.ContentType)
}

func TestFinalizerFuncAdapts(t *testing.T) {
	var got *SubmissionPayload
	fn := FinalizerFunc(func(_ context.Context, p *SubmissionPayload) error {
		got = p
		return nil
	})

	payload := BuildPayload(uuid.New(), AnswerMap{"p1_editing_e1": Text("a")}, nil)
	require.NoError(t, fn.Finalize(context.Background(), payload))
	require.Same(t, payload, got)
	assert.Equal(t, "a", got.Content["p1_editing_e1"])
}
