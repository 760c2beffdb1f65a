package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/omnandre07/SchemeSahayak/internal/catalog"
	"github.com/omnandre07/SchemeSahayak/internal/engine"
	"github.com/omnandre07/SchemeSahayak/internal/profile"
	"github.com/omnandre07/SchemeSahayak/internal/session"
)

func intPtr(n int) *int { return &n }

func queueTestController(t *testing.T) *engine.Controller {
	t.Helper()
	cat, err := catalog.New([]catalog.Program{
		{
			ID:    "farm-support",
			Scope: catalog.ScopeNational,
			Predicate: []catalog.Constraint{
				{Name: "is-farmer", Attribute: profile.AttrOccupation, Kind: catalog.KindOneOf, OneOf: []string{"farmer"}},
				{Name: "adult", Attribute: profile.AttrAge, Kind: catalog.KindRange, Min: intPtr(18)},
			},
		},
		{
			ID:    "senior-pension",
			Scope: catalog.ScopeNational,
			Predicate: []catalog.Constraint{
				{Name: "senior", Attribute: profile.AttrAge, Kind: catalog.KindRange, Min: intPtr(60)},
			},
		},
	})
	require.NoError(t, err)
	return engine.NewController(session.NewLRUStore(64, time.Minute), cat, nil)
}

func collect(t *testing.T, q *Queue) []ActionResult {
	t.Helper()
	ch, err := q.Drain(context.Background())
	require.NoError(t, err)

	var results []ActionResult
	for r := range ch {
		results = append(results, r)
	}
	return results
}

func TestDrainReplaysInSequenceOrder(t *testing.T) {
	controller := queueTestController(t)
	ctx := context.Background()

	// The session was started online; the follow-ups queued up offline.
	start, err := controller.SubmitUtterance(ctx, "", "hello", "en")
	require.NoError(t, err)
	sessionID := start.SessionID

	q := New(controller, nil)
	// Enqueued out of arrival order.
	require.NoError(t, q.Enqueue(Action{Seq: 3, SessionID: sessionID, Kind: KindUtterance, Text: "my age is 45", Language: "en"}))
	require.NoError(t, q.Enqueue(Action{Seq: 1, SessionID: sessionID, Kind: KindUtterance, Text: "I am a farmer", Language: "en"}))
	require.NoError(t, q.Enqueue(Action{Seq: 2, SessionID: sessionID, Kind: KindUtterance, Text: "I live in a village", Language: "en"}))
	require.Equal(t, 3, q.Len())

	results := collect(t, q)
	require.Len(t, results, 3)

	for i, expected := range []int{1, 2, 3} {
		require.Equal(t, expected, results[i].Seq)
		require.Equal(t, StatusApplied, results[i].Status)
		require.NotNil(t, results[i].Result)
	}

	// The replayed turns landed in the session in order.
	sess, err := controller.GetSession(ctx, sessionID)
	require.NoError(t, err)
	require.Equal(t, "farmer", sess.Context.Attributes[profile.AttrOccupation].Raw)
	require.Equal(t, "45", sess.Context.Attributes[profile.AttrAge].Raw)
}

func TestDrainMatchesDirectApplication(t *testing.T) {
	direct := queueTestController(t)
	replayed := queueTestController(t)
	ctx := context.Background()

	utterances := []string{"I am a farmer", "my age is 45"}

	// Apply directly.
	result, err := direct.SubmitUtterance(ctx, "", utterances[0], "en")
	require.NoError(t, err)
	directID := result.SessionID
	_, err = direct.SubmitUtterance(ctx, directID, utterances[1], "en")
	require.NoError(t, err)

	// Apply via queue replay.
	result, err = replayed.SubmitUtterance(ctx, "", "hello", "en")
	require.NoError(t, err)
	replayID := result.SessionID

	q := New(replayed, nil)
	require.NoError(t, q.Enqueue(Action{Seq: 2, SessionID: replayID, Kind: KindUtterance, Text: utterances[1], Language: "en"}))
	require.NoError(t, q.Enqueue(Action{Seq: 1, SessionID: replayID, Kind: KindUtterance, Text: utterances[0], Language: "en"}))
	collect(t, q)

	directSess, err := direct.GetSession(ctx, directID)
	require.NoError(t, err)
	replaySess, err := replayed.GetSession(ctx, replayID)
	require.NoError(t, err)

	directValues := directSess.Context.Values()
	replayValues := replaySess.Context.Values()
	require.Equal(t, directValues, replayValues)
}

func TestDrainReportsSequenceGaps(t *testing.T) {
	controller := queueTestController(t)
	ctx := context.Background()

	start, err := controller.SubmitUtterance(ctx, "", "hello", "en")
	require.NoError(t, err)

	q := New(controller, nil)
	require.NoError(t, q.Enqueue(Action{Seq: 1, SessionID: start.SessionID, Kind: KindUtterance, Text: "I am a farmer", Language: "en"}))
	require.NoError(t, q.Enqueue(Action{Seq: 4, SessionID: start.SessionID, Kind: KindUtterance, Text: "my age is 45", Language: "en"}))

	results := collect(t, q)
	require.Len(t, results, 4)

	require.Equal(t, 1, results[0].Seq)
	require.Equal(t, StatusApplied, results[0].Status)

	require.Equal(t, 2, results[1].Seq)
	require.Equal(t, StatusSequenceGap, results[1].Status)
	require.NotEmpty(t, results[1].Error)

	require.Equal(t, 3, results[2].Seq)
	require.Equal(t, StatusSequenceGap, results[2].Status)

	require.Equal(t, 4, results[3].Seq)
	require.Equal(t, StatusApplied, results[3].Status)
}

func TestDrainContinuesPastFailedActions(t *testing.T) {
	controller := queueTestController(t)
	ctx := context.Background()

	start, err := controller.SubmitUtterance(ctx, "", "hello", "en")
	require.NoError(t, err)

	q := New(controller, nil)
	require.NoError(t, q.Enqueue(Action{Seq: 1, SessionID: "gone-session", Kind: KindUtterance, Text: "hi", Language: "en"}))
	require.NoError(t, q.Enqueue(Action{Seq: 2, SessionID: start.SessionID, Kind: KindAnswer, QuestionID: "q-never-asked", Answer: "yes"}))
	require.NoError(t, q.Enqueue(Action{Seq: 3, SessionID: start.SessionID, Kind: KindUtterance, Text: "I am a farmer", Language: "en"}))
	require.NoError(t, q.Enqueue(Action{Seq: 4, SessionID: start.SessionID, Kind: "teleport"}))

	results := collect(t, q)
	require.Len(t, results, 4)

	require.Equal(t, StatusSessionExpired, results[0].Status)
	require.Equal(t, StatusInvalidAnswer, results[1].Status)
	require.Equal(t, StatusApplied, results[2].Status)
	require.Equal(t, StatusFailed, results[3].Status)
}

func TestEnqueueRejectsDuplicates(t *testing.T) {
	q := New(queueTestController(t), nil)

	require.NoError(t, q.Enqueue(Action{Seq: 1, Kind: KindUtterance, Text: "a"}))
	err := q.Enqueue(Action{Seq: 1, Kind: KindUtterance, Text: "b"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "duplicate")
}

func TestQueueIsSingleUse(t *testing.T) {
	q := New(queueTestController(t), nil)

	_, err := q.Drain(context.Background())
	require.NoError(t, err)

	_, err = q.Drain(context.Background())
	require.Error(t, err)

	err = q.Enqueue(Action{Seq: 1, Kind: KindUtterance, Text: "late"})
	require.Error(t, err)
}

func TestDrainEmptyQueue(t *testing.T) {
	q := New(queueTestController(t), nil)

	results := collect(t, q)
	require.Empty(t, results)
}
