package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/omnandre07/SchemeSahayak/internal/apperrors"
	"github.com/omnandre07/SchemeSahayak/internal/catalog"
	"github.com/omnandre07/SchemeSahayak/internal/clarify"
	"github.com/omnandre07/SchemeSahayak/internal/logging"
	"github.com/omnandre07/SchemeSahayak/internal/match"
	"github.com/omnandre07/SchemeSahayak/internal/metrics"
	"github.com/omnandre07/SchemeSahayak/internal/oracle"
	"github.com/omnandre07/SchemeSahayak/internal/profile"
	"github.com/omnandre07/SchemeSahayak/internal/session"
)

// Controller is the conversation state machine. It is the only component
// with side effects beyond the session store: everything else it calls is
// pure or read-only. Per-session mutation is serialized through a lease
// held for the duration of one state transition; different sessions run in
// parallel against the shared read-only catalog.
type Controller struct {
	store    session.Store
	leases   *session.Leases
	catalog  *catalog.Catalog
	primary  oracle.Oracle
	fallback oracle.Oracle
	breaker  *apperrors.CircuitBreaker
	matcher  *match.Matcher
	selector *clarify.Selector
	metrics  *metrics.Metrics
	logger   logging.Logger
	timeout  time.Duration
}

// Option customizes controller construction.
type Option func(*Controller)

// WithMetrics attaches operational counters.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Controller) { c.metrics = m }
}

// WithOracleTimeout bounds every oracle call. On expiry the lease is not
// held any longer than the fallback pass takes; the turn completes degraded
// instead of blocking other turns.
func WithOracleTimeout(timeout time.Duration) Option {
	return func(c *Controller) { c.timeout = timeout }
}

// WithLogger overrides the component logger.
func WithLogger(logger logging.Logger) Option {
	return func(c *Controller) { c.logger = logger }
}

// WithBreaker overrides the oracle circuit breaker, shared between
// extraction and reasoning calls.
func WithBreaker(breaker *apperrors.CircuitBreaker) Option {
	return func(c *Controller) { c.breaker = breaker }
}

// NewController wires the conversation engine. primary may be nil for a
// fully offline deployment; the deterministic fallback then serves every
// call.
func NewController(store session.Store, cat *catalog.Catalog, primary oracle.Oracle, opts ...Option) *Controller {
	c := &Controller{
		store:    store,
		leases:   session.NewLeases(),
		catalog:  cat,
		primary:  primary,
		fallback: oracle.NewFallback(cat),
		logger:   logging.NewComponentLogger("engine"),
		timeout:  8 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.breaker == nil {
		c.breaker = apperrors.NewCircuitBreaker("oracle", apperrors.DefaultCircuitBreakerConfig())
	}
	if c.primary == nil {
		c.primary = c.fallback
	}
	c.matcher = match.NewMatcher(c.primary, c.fallback, c.breaker, c.timeout)
	c.selector = clarify.NewSelector(c.primary, c.fallback, c.timeout)
	return c
}

// SubmitUtterance processes one free-text utterance. An empty sessionID
// starts a new session; an unknown one reports expiry so the client can
// start over.
func (c *Controller) SubmitUtterance(ctx context.Context, sessionID, text, language string) (TurnResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return TurnResult{}, fmt.Errorf("utterance text is required")
	}

	var sess *session.Session
	if sessionID == "" {
		sess = session.New()
		sess.State = StateAwaitingInput
		sessionID = sess.ID
	}

	release := c.leases.Acquire(sessionID)
	defer release()

	if sess == nil {
		loaded, err := c.loadSession(ctx, sessionID)
		if err != nil {
			return TurnResult{}, err
		}
		sess = loaded
	}

	if language != "" {
		sess.Language = language
	} else if sess.Language == "" {
		sess.Language = "en"
	}

	// A new utterance against a concluded session reopens it with a full
	// re-evaluation: round counter reset, asked-question set cleared.
	if sess.State == StateConcluded {
		c.logger.Info("Session %s reopened by new utterance", sess.ID)
		sess.ResetForReevaluation()
	}

	sess.State = StateExtracting
	sess.AppendTurn("user", text)

	delta, extractDegraded := c.extract(ctx, text, sess.Language, sess.Context)
	merged := profile.MergeDelta(sess.Context, delta, sess.NextSequence())

	result := c.runMatching(ctx, sess, merged, extractDegraded)

	if err := c.store.Put(ctx, sess); err != nil {
		return TurnResult{}, fmt.Errorf("failed to persist session: %w", err)
	}

	c.countTurn("utterance", result)
	return result, nil
}

// SubmitAnswer processes a clarification answer. The answer bypasses the
// extractor and merges directly with clarification-answer provenance.
// Resubmitting the same (question, answer) pair returns the previously
// computed result without a state transition.
func (c *Controller) SubmitAnswer(ctx context.Context, sessionID, questionID, answer string) (TurnResult, error) {
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return TurnResult{}, &apperrors.InvalidAnswerError{QuestionID: questionID, Reason: "empty answer"}
	}

	release := c.leases.Acquire(sessionID)
	defer release()

	sess, err := c.loadSession(ctx, sessionID)
	if err != nil {
		return TurnResult{}, err
	}

	asked, ok := sess.FindAsked(questionID)
	if !ok {
		return TurnResult{}, &apperrors.InvalidAnswerError{QuestionID: questionID, Reason: "question was never asked"}
	}

	if previous, answered := sess.Answered[questionID]; answered {
		if previous.Answer == answer {
			var cached TurnResult
			if err := json.Unmarshal(previous.Result, &cached); err == nil {
				c.logger.Debug("Idempotent replay of answer for %s on session %s", questionID, sess.ID)
				return cached, nil
			}
			// Fall through to a real re-evaluation only if the cache is
			// unreadable, which should not happen.
		} else {
			return TurnResult{}, &apperrors.InvalidAnswerError{QuestionID: questionID, Reason: "question already answered"}
		}
	}

	sess.State = StateExtracting
	sess.AppendTurn("user", answer)

	delta := map[string]string{asked.Attribute: normalizeAnswer(answer)}
	merged := profile.Merge(sess.Context, delta, profile.ProvenanceClarification, sess.NextSequence())

	result := c.runMatching(ctx, sess, merged, false)

	if encoded, err := json.Marshal(result); err == nil {
		sess.Answered[questionID] = session.AnsweredQuestion{Answer: answer, Result: encoded}
	}

	if err := c.store.Put(ctx, sess); err != nil {
		return TurnResult{}, fmt.Errorf("failed to persist session: %w", err)
	}

	c.countTurn("answer", result)
	return result, nil
}

// GetSession returns the full session snapshot.
func (c *Controller) GetSession(ctx context.Context, sessionID string) (*session.Session, error) {
	release := c.leases.Acquire(sessionID)
	defer release()
	return c.loadSession(ctx, sessionID)
}

// DeleteSession removes a session ahead of its retention window.
func (c *Controller) DeleteSession(ctx context.Context, sessionID string) error {
	release := c.leases.Acquire(sessionID)
	defer release()
	return c.store.Delete(ctx, sessionID)
}

// runMatching executes the MATCHING state and decides between CLARIFYING
// and CONCLUDED. The full next session state is computed here; the caller
// performs the single persistence write afterwards.
func (c *Controller) runMatching(ctx context.Context, sess *session.Session, merged profile.UserContext, extractDegraded bool) TurnResult {
	sess.State = StateMatching
	sess.Context = merged

	matchResult := c.matcher.Match(ctx, merged, c.catalog)
	degraded := matchResult.Degraded || extractDegraded

	sess.Candidates = matchResult.Candidates
	sess.Confidence = matchResult.Confidence
	sess.Degraded = degraded

	question := c.selector.NextQuestion(ctx, merged, matchResult.Candidates, c.catalog, sess.AskedAttributes(), sess.Round, sess.Language)

	result := TurnResult{
		SessionID:  sess.ID,
		Context:    merged.Attributes,
		Matches:    matchResult.Candidates,
		Confidence: matchResult.Confidence,
		Degraded:   degraded,
		Uncertain:  degraded || matchResult.Confidence < match.ConfidenceThreshold,
	}

	if question != nil && sess.Round < clarify.MaxRounds {
		// The question id is marked asked at generation time, before any
		// answer arrives, so concurrent turns cannot generate duplicates.
		sess.Asked = append(sess.Asked, session.AskedQuestion{
			ID:        question.ID,
			Attribute: question.Attribute,
			Text:      question.Text,
			Round:     question.Round,
		})
		sess.Round++
		sess.AppendTurn("assistant", question.Text)
		sess.State = StateAwaitingInput

		result.State = StateClarifying
		result.Question = question
		if c.metrics != nil {
			c.metrics.ClarificationsTotal.Inc()
		}
	} else {
		sess.State = StateConcluded
		result.State = StateConcluded
		result.Concluded = true
	}

	result.Round = sess.Round
	return result
}

// extract runs the oracle extraction with the shared breaker and timeout,
// degrading to the deterministic extractor, and treating malformed output
// as an empty delta.
func (c *Controller) extract(ctx context.Context, text, language string, current profile.UserContext) (profile.Delta, bool) {
	if err := c.breaker.Allow(); err != nil {
		c.logger.Warn("Oracle circuit open, extracting with fallback rules")
		return c.fallbackExtract(ctx, text, language, current)
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	delta, err := c.primary.Extract(callCtx, text, language, current)
	switch {
	case err == nil:
		c.breaker.Mark(nil)
		return delta, false

	case errors.Is(err, apperrors.ErrOracleMalformed):
		c.breaker.Mark(nil)
		c.logger.Warn("Extraction response malformed, continuing with empty delta")
		return profile.Delta{}, true

	default:
		c.breaker.Mark(err)
		c.logger.Warn("Extraction failed (%v), using fallback rules", err)
		return c.fallbackExtract(ctx, text, language, current)
	}
}

func (c *Controller) fallbackExtract(ctx context.Context, text, language string, current profile.UserContext) (profile.Delta, bool) {
	delta, err := c.fallback.Extract(ctx, text, language, current)
	if err != nil {
		return profile.Delta{}, true
	}
	return delta, true
}

// loadSession translates store misses into the session-expired outcome.
func (c *Controller) loadSession(ctx context.Context, sessionID string) (*session.Session, error) {
	sess, err := c.store.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			if c.metrics != nil {
				c.metrics.SessionsExpiredTotal.Inc()
			}
			return nil, fmt.Errorf("session %s: %w", sessionID, apperrors.ErrSessionExpired)
		}
		return nil, err
	}
	return sess, nil
}

func (c *Controller) countTurn(kind string, result TurnResult) {
	if c.metrics == nil {
		return
	}
	c.metrics.TurnsTotal.WithLabelValues(kind).Inc()
	if result.Degraded {
		c.metrics.OracleFallbacksTotal.Inc()
	}
}

// normalizeAnswer maps yes/no replies onto boolean attribute values and
// lowercases everything else so predicate evaluation stays case-insensitive.
func normalizeAnswer(answer string) string {
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "yes", "y", "haan", "ha", "true":
		return "true"
	case "no", "n", "nahi", "false":
		return "false"
	default:
		return strings.ToLower(strings.TrimSpace(answer))
	}
}
