package match

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/omnandre07/SchemeSahayak/internal/apperrors"
	"github.com/omnandre07/SchemeSahayak/internal/catalog"
	"github.com/omnandre07/SchemeSahayak/internal/logging"
	"github.com/omnandre07/SchemeSahayak/internal/oracle"
	"github.com/omnandre07/SchemeSahayak/internal/profile"
)

// MissingRegionConstraint is the synthetic constraint name attached to
// regional programs matched while the user's region is still unset.
const MissingRegionConstraint = "region"

// Matcher runs one eligibility pass: pre-filter the catalog by region,
// delegate reasoning to the oracle, then validate and deterministically
// rank whatever comes back. When the oracle is unavailable, times out or
// the circuit is open, the deterministic fallback adapter evaluates the
// structured predicates instead and the result is flagged degraded.
type Matcher struct {
	primary  oracle.Oracle
	fallback oracle.Oracle
	breaker  *apperrors.CircuitBreaker
	timeout  time.Duration
	logger   logging.Logger
}

// NewMatcher wires a matcher. fallback must be the deterministic adapter;
// it is assumed to never fail.
func NewMatcher(primary, fallback oracle.Oracle, breaker *apperrors.CircuitBreaker, timeout time.Duration) *Matcher {
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	return &Matcher{
		primary:  primary,
		fallback: fallback,
		breaker:  breaker,
		timeout:  timeout,
		logger:   logging.NewComponentLogger("matcher"),
	}
}

// Prefilter narrows the catalog to programs whose scope is compatible with
// the context's region. National programs are always included. Regional
// programs are included when the region matches, or when the region is
// unset — unset means "include all regional programs and flag region as a
// missing constraint".
func Prefilter(cat *catalog.Catalog, region string) []catalog.Program {
	programs := make([]catalog.Program, 0, cat.Len())
	for _, p := range cat.Programs() {
		if p.AppliesToRegion(region) {
			programs = append(programs, p)
		}
	}
	return programs
}

// Match evaluates the context against the catalog and returns a validated,
// ranked result. It never fails the turn: every oracle failure mode ends in
// either an empty candidate list or the rule-based fallback.
func (m *Matcher) Match(ctx context.Context, current profile.UserContext, cat *catalog.Catalog) Result {
	region := current.Region()
	prefiltered := Prefilter(cat, region)

	raw, degraded := m.reason(ctx, current, prefiltered)

	candidates := m.validate(raw, prefiltered, cat, region == "")
	rank(candidates, cat)

	confidence := 0
	if len(candidates) > 0 {
		confidence = candidates[0].Score
	}
	if degraded && confidence > ConfidenceThreshold {
		// A rule-based pass is structurally sound but never grounds high
		// confidence.
		confidence = ConfidenceThreshold
	}

	return Result{Candidates: candidates, Confidence: confidence, Degraded: degraded}
}

// reason runs the oracle with the per-call timeout, routing to the
// deterministic fallback on unavailability. Returns the raw candidates and
// whether the pass is degraded.
func (m *Matcher) reason(ctx context.Context, current profile.UserContext, programs []catalog.Program) ([]oracle.Candidate, bool) {
	if err := m.breaker.Allow(); err != nil {
		m.logger.Warn("Oracle circuit open, using rule-based fallback")
		return m.ruleBasedPass(ctx, current, programs)
	}

	callCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	raw, err := m.primary.Reason(callCtx, current, programs)
	switch {
	case err == nil:
		m.breaker.Mark(nil)
		return raw, false

	case errors.Is(err, apperrors.ErrOracleMalformed):
		// The service answered, just not with anything usable. That is not
		// an availability failure: keep the circuit closed and continue
		// with an empty candidate list.
		m.breaker.Mark(nil)
		m.logger.Warn("Oracle returned malformed candidates, continuing with empty list: %v", err)
		return nil, true

	default:
		m.breaker.Mark(err)
		m.logger.Warn("Oracle reasoning failed (%v), using rule-based fallback", err)
		return m.ruleBasedPass(ctx, current, programs)
	}
}

func (m *Matcher) ruleBasedPass(ctx context.Context, current profile.UserContext, programs []catalog.Program) ([]oracle.Candidate, bool) {
	raw, err := m.fallback.Reason(ctx, current, programs)
	if err != nil {
		// The deterministic adapter has no failure modes in practice;
		// treat one anyway as an empty, degraded result.
		m.logger.Error("Fallback reasoning failed: %v", err)
		return nil, true
	}
	return raw, true
}

// validate normalizes raw oracle output. Candidates referencing program ids
// outside the pre-filtered set are dropped (hallucination defense), scores
// are clamped to [0,100], absent or unrecognized verdicts become unknown,
// and duplicates keep their first occurrence.
func (m *Matcher) validate(raw []oracle.Candidate, prefiltered []catalog.Program, cat *catalog.Catalog, regionUnset bool) []Candidate {
	allowed := make(map[string]catalog.Program, len(prefiltered))
	for _, p := range prefiltered {
		allowed[p.ID] = p
	}

	seen := make(map[string]bool, len(raw))
	candidates := make([]Candidate, 0, len(raw))

	for _, rc := range raw {
		program, ok := allowed[rc.ProgramID]
		if !ok {
			m.logger.Warn("Dropping candidate %q: not in pre-filtered catalog", rc.ProgramID)
			continue
		}
		if seen[rc.ProgramID] {
			continue
		}
		seen[rc.ProgramID] = true

		verdict := Verdict(rc.Verdict)
		if !knownVerdicts[verdict] {
			verdict = VerdictUnknown
		}

		candidate := Candidate{
			ProgramID:  rc.ProgramID,
			Score:      clampScore(rc.Score),
			Satisfied:  rc.Satisfied,
			Missing:    rc.Missing,
			Verdict:    verdict,
			LowerBound: verdict == VerdictUnknown,
		}

		if regionUnset && program.Scope == catalog.ScopeRegional && !contains(candidate.Missing, MissingRegionConstraint) {
			candidate.Missing = append(candidate.Missing, MissingRegionConstraint)
		}

		candidates = append(candidates, candidate)
	}

	return candidates
}

// rank sorts candidates by descending relevance score; ties break by
// ascending count of missing constraints, then by catalog insertion order.
// Stable and deterministic so runs are reproducible.
func rank(candidates []Candidate, cat *catalog.Catalog) {
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if len(a.Missing) != len(b.Missing) {
			return len(a.Missing) < len(b.Missing)
		}
		return cat.Position(a.ProgramID) < cat.Position(b.ProgramID)
	})
}

func clampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

func contains(list []string, value string) bool {
	for _, v := range list {
		if v == value {
			return true
		}
	}
	return false
}
