package match

// Verdict is the eligibility outcome for one program against one context.
type Verdict string

const (
	VerdictEligible   Verdict = "eligible"
	VerdictLikely     Verdict = "likely"
	VerdictIneligible Verdict = "ineligible"
	VerdictUnknown    Verdict = "unknown"
)

// knownVerdicts guards against the oracle inventing verdict values.
var knownVerdicts = map[Verdict]bool{
	VerdictEligible:   true,
	VerdictLikely:     true,
	VerdictIneligible: true,
	VerdictUnknown:    true,
}

// Candidate is one program paired with a validated eligibility verdict and
// relevance score for the current context.
type Candidate struct {
	ProgramID string `json:"program_id"`
	Score     int    `json:"score"` // 0-100
	// LowerBound is set for unknown verdicts: the score is a floor, never
	// to be displayed as certainty.
	LowerBound bool     `json:"score_is_lower_bound,omitempty"`
	Satisfied  []string `json:"satisfied,omitempty"`
	Missing    []string `json:"missing,omitempty"`
	Verdict    Verdict  `json:"verdict"`
}

// Result is the validated, deterministically ranked match outcome.
type Result struct {
	Candidates []Candidate `json:"candidates"`
	Confidence int         `json:"confidence"`
	Degraded   bool        `json:"degraded"`
}

// ConfidenceThreshold is the floor below which the top candidate must be
// surfaced with an explicit uncertainty flag rather than as a firm match.
const ConfidenceThreshold = 70
