package queue

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/omnandre07/SchemeSahayak/internal/apperrors"
	"github.com/omnandre07/SchemeSahayak/internal/engine"
	"github.com/omnandre07/SchemeSahayak/internal/logging"
	"github.com/omnandre07/SchemeSahayak/internal/metrics"
)

// Kind is the type of a queued controller input.
type Kind string

const (
	KindUtterance Kind = "utterance"
	KindAnswer    Kind = "answer"
)

// Action is one opaque controller input captured while disconnected,
// tagged with a client-assigned monotonic sequence number.
type Action struct {
	Seq        int    `json:"seq"`
	SessionID  string `json:"session_id"`
	Kind       Kind   `json:"kind"`
	Text       string `json:"text,omitempty"`
	Language   string `json:"language,omitempty"`
	QuestionID string `json:"question_id,omitempty"`
	Answer     string `json:"answer,omitempty"`
}

// Status classifies one replayed action's outcome.
type Status string

const (
	StatusApplied        Status = "applied"
	StatusSessionExpired Status = "session_expired"
	StatusInvalidAnswer  Status = "invalid_answer"
	StatusSequenceGap    Status = "sequence_gap"
	StatusFailed         Status = "failed"
)

// ActionResult is one element of the drain sequence.
type ActionResult struct {
	Seq    int                `json:"seq"`
	Status Status             `json:"status"`
	Error  string             `json:"error,omitempty"`
	Result *engine.TurnResult `json:"result,omitempty"`
}

// Queue orders and replays controller actions issued while disconnected.
// Actions may be enqueued out of arrival order; Drain replays them in
// strict ascending sequence order, exactly once each. A queue drains once
// and is then spent.
type Queue struct {
	controller *engine.Controller
	metrics    *metrics.Metrics
	logger     logging.Logger

	mu      sync.Mutex
	actions map[int]Action
	drained bool
}

// New creates an empty queue replaying through the given controller.
func New(controller *engine.Controller, m *metrics.Metrics) *Queue {
	return &Queue{
		controller: controller,
		metrics:    m,
		logger:     logging.NewComponentLogger("offline-queue"),
		actions:    make(map[int]Action),
	}
}

// Enqueue adds an action. Duplicate sequence numbers and enqueueing into a
// spent queue are rejected.
func (q *Queue) Enqueue(action Action) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.drained {
		return fmt.Errorf("queue already drained")
	}
	if _, dup := q.actions[action.Seq]; dup {
		return fmt.Errorf("duplicate sequence number %d", action.Seq)
	}
	q.actions[action.Seq] = action
	return nil
}

// Len reports pending actions.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.actions)
}

// Drain replays all enqueued actions in ascending sequence order and
// produces a lazy, finite result sequence. Gaps in the sequence numbers
// are reported as lost actions, not silently skipped. A replay hitting an
// expired session fails for that action only; the remainder still drains.
// Drain can run once; subsequent calls fail.
func (q *Queue) Drain(ctx context.Context) (<-chan ActionResult, error) {
	q.mu.Lock()
	if q.drained {
		q.mu.Unlock()
		return nil, fmt.Errorf("queue already drained")
	}
	q.drained = true
	actions := q.actions
	q.actions = make(map[int]Action)
	q.mu.Unlock()

	seqs := make([]int, 0, len(actions))
	for seq := range actions {
		seqs = append(seqs, seq)
	}
	sort.Ints(seqs)

	results := make(chan ActionResult)
	go func() {
		defer close(results)
		if len(seqs) == 0 {
			return
		}

		expected := seqs[0]
		for _, seq := range seqs {
			// Report every hole before the next present action.
			for ; expected < seq; expected++ {
				gap := &apperrors.QueueGapError{Missing: expected}
				q.logger.Warn("Drain detected %v", gap)
				if q.metrics != nil {
					q.metrics.QueueGapsTotal.Inc()
				}
				if !emit(ctx, results, ActionResult{Seq: expected, Status: StatusSequenceGap, Error: gap.Error()}) {
					return
				}
			}
			expected = seq + 1

			if !emit(ctx, results, q.apply(ctx, actions[seq])) {
				return
			}
		}
	}()

	return results, nil
}

// apply replays one action through the controller, which serializes it
// against live turns via the same per-session lease.
func (q *Queue) apply(ctx context.Context, action Action) ActionResult {
	if q.metrics != nil {
		q.metrics.QueueReplaysTotal.Inc()
	}

	var (
		result engine.TurnResult
		err    error
	)
	switch action.Kind {
	case KindUtterance:
		result, err = q.controller.SubmitUtterance(ctx, action.SessionID, action.Text, action.Language)
	case KindAnswer:
		result, err = q.controller.SubmitAnswer(ctx, action.SessionID, action.QuestionID, action.Answer)
	default:
		err = fmt.Errorf("unknown action kind %q", action.Kind)
	}

	if err != nil {
		status := StatusFailed
		switch {
		case errors.Is(err, apperrors.ErrSessionExpired):
			status = StatusSessionExpired
		case errors.Is(err, apperrors.ErrInvalidAnswer):
			status = StatusInvalidAnswer
		}
		q.logger.Warn("Replay of action %d failed: %v", action.Seq, err)
		return ActionResult{Seq: action.Seq, Status: status, Error: err.Error()}
	}

	return ActionResult{Seq: action.Seq, Status: StatusApplied, Result: &result}
}

// emit sends one result unless the drain context is cancelled.
func emit(ctx context.Context, ch chan<- ActionResult, result ActionResult) bool {
	select {
	case ch <- result:
		return true
	case <-ctx.Done():
		return false
	}
}
