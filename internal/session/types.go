package session

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/omnandre07/SchemeSahayak/internal/match"
	"github.com/omnandre07/SchemeSahayak/internal/profile"
)

// MaxTurns bounds the conversation log. The log is what gets sent to the
// oracle as dialogue context, so it is capped with oldest-first eviction.
const MaxTurns = 40

// Turn is one conversation log entry. Seq is a logical timestamp scoped to
// the session, not wall clock, so ordering stays well-defined under replay.
type Turn struct {
	Role string `json:"role"` // user | assistant
	Text string `json:"text"`
	Seq  int    `json:"seq"`
}

// AskedQuestion records a clarification question the engine has emitted.
// Questions are recorded at generation time and never re-asked.
type AskedQuestion struct {
	ID        string `json:"id"`
	Attribute string `json:"attribute"`
	Text      string `json:"text"`
	Round     int    `json:"round"`
}

// AnsweredQuestion caches the outcome of an answered clarification so that
// client retries of the same (question, answer) pair are no-ops returning
// the previously computed result.
type AnsweredQuestion struct {
	Answer string          `json:"answer"`
	Result json.RawMessage `json:"result"`
}

// Session owns one user context, one conversation log, the asked-question
// ledger, the round counter and the latest candidate list. Only the
// conversation controller mutates it.
type Session struct {
	ID         string                      `json:"id"`
	Language   string                      `json:"language"`
	State      string                      `json:"state"`
	Round      int                         `json:"round"`
	NextSeq    int                         `json:"next_seq"`
	Context    profile.UserContext         `json:"context"`
	Turns      []Turn                      `json:"turns"`
	Asked      []AskedQuestion             `json:"asked"`
	Answered   map[string]AnsweredQuestion `json:"answered"`
	Candidates []match.Candidate           `json:"candidates"`
	Confidence int                         `json:"confidence"`
	Degraded   bool                        `json:"degraded"`
	CreatedAt  time.Time                   `json:"created_at"`
	UpdatedAt  time.Time                   `json:"updated_at"`
}

// New creates a fresh session with an opaque random token as identifier.
// UUIDv4 comes from crypto/rand, so collisions are negligible.
func New() *Session {
	now := time.Now().UTC()
	return &Session{
		ID:        uuid.NewString(),
		Context:   profile.NewContext(),
		Answered:  make(map[string]AnsweredQuestion),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// NextSequence hands out the next logical timestamp for this session.
func (s *Session) NextSequence() int {
	s.NextSeq++
	return s.NextSeq
}

// AppendTurn adds a conversation log entry, evicting the oldest entry once
// the log exceeds MaxTurns.
func (s *Session) AppendTurn(role, text string) {
	s.Turns = append(s.Turns, Turn{Role: role, Text: text, Seq: s.NextSequence()})
	if len(s.Turns) > MaxTurns {
		s.Turns = s.Turns[len(s.Turns)-MaxTurns:]
	}
}

// FindAsked returns the asked-question record for an id.
func (s *Session) FindAsked(questionID string) (AskedQuestion, bool) {
	for _, q := range s.Asked {
		if q.ID == questionID {
			return q, true
		}
	}
	return AskedQuestion{}, false
}

// AskedIDs returns the set of asked question ids.
func (s *Session) AskedIDs() map[string]bool {
	ids := make(map[string]bool, len(s.Asked))
	for _, q := range s.Asked {
		ids[q.ID] = true
	}
	return ids
}

// AskedAttributes returns the set of attributes already asked about.
func (s *Session) AskedAttributes() map[string]bool {
	attrs := make(map[string]bool, len(s.Asked))
	for _, q := range s.Asked {
		attrs[q.Attribute] = true
	}
	return attrs
}

// ResetForReevaluation reopens a concluded session for a full re-match:
// round counter back to zero, asked-question set and answer cache cleared.
// Answers cached before the reset target superseded questions and must not
// replay against the new evaluation.
func (s *Session) ResetForReevaluation() {
	s.Round = 0
	s.Asked = nil
	s.Answered = make(map[string]AnsweredQuestion)
	s.Candidates = nil
	s.Confidence = 0
	s.Degraded = false
}
