package engine

import (
	"github.com/omnandre07/SchemeSahayak/internal/clarify"
	"github.com/omnandre07/SchemeSahayak/internal/match"
	"github.com/omnandre07/SchemeSahayak/internal/profile"
)

// Conversation states. One turn walks AWAITING_INPUT through EXTRACTING and
// MATCHING and lands back in AWAITING_INPUT (with a question pending) or in
// CONCLUDED. CONCLUDED is re-enterable: a later utterance reopens the
// session with a full re-evaluation.
const (
	StateAwaitingInput = "AWAITING_INPUT"
	StateExtracting    = "EXTRACTING"
	StateMatching      = "MATCHING"
	StateClarifying    = "CLARIFYING"
	StateConcluded     = "CONCLUDED"
)

// TurnResult is what one controller turn returns to the transport layer:
// the session token, the merged context, the ranked matches and either the
// next clarification question or a conclusion.
type TurnResult struct {
	SessionID  string                   `json:"session_id"`
	State      string                   `json:"state"`
	Round      int                      `json:"round"`
	Context    map[string]profile.Value `json:"context"`
	Matches    []match.Candidate        `json:"matches"`
	Confidence int                      `json:"confidence"`
	// Degraded is set when this turn's matching ran without the live oracle.
	Degraded bool `json:"degraded"`
	// Uncertain is set when top-candidate confidence is below the
	// threshold or the turn ran degraded; the result must not be
	// presented as a firm match.
	Uncertain bool              `json:"uncertain"`
	Question  *clarify.Question `json:"question"`
	Concluded bool              `json:"concluded"`
}
