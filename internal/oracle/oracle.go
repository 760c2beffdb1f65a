package oracle

import (
	"context"

	"github.com/omnandre07/SchemeSahayak/internal/catalog"
	"github.com/omnandre07/SchemeSahayak/internal/profile"
)

// Candidate is raw, untrusted oracle output for one program. The matcher
// validates and normalizes it before anything downstream sees it: unknown
// program ids are dropped, scores clamped, missing verdicts become
// "unknown".
type Candidate struct {
	ProgramID string   `json:"program_id"`
	Score     int      `json:"score"`
	Satisfied []string `json:"satisfied,omitempty"`
	Missing   []string `json:"missing,omitempty"`
	Verdict   string   `json:"verdict,omitempty"`
}

// Oracle is the external natural-language reasoning service, a black box
// with three typed operations. Both the hosted-model adapter and the
// deterministic fallback adapter satisfy it; the engine picks one at call
// time based on availability.
type Oracle interface {
	// Extract turns one free-text utterance into a partial context delta.
	Extract(ctx context.Context, text, language string, current profile.UserContext) (profile.Delta, error)

	// Reason scores the pre-filtered candidate programs against the context.
	Reason(ctx context.Context, current profile.UserContext, programs []catalog.Program) ([]Candidate, error)

	// PhraseQuestion renders a yes/no clarification question for an attribute.
	PhraseQuestion(ctx context.Context, attribute, language string) (string, error)
}
