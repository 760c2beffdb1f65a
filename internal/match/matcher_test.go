package match

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/omnandre07/SchemeSahayak/internal/apperrors"
	"github.com/omnandre07/SchemeSahayak/internal/catalog"
	"github.com/omnandre07/SchemeSahayak/internal/oracle"
	"github.com/omnandre07/SchemeSahayak/internal/profile"
)

// stubOracle lets each test script the primary oracle's behavior.
type stubOracle struct {
	reason func(ctx context.Context, current profile.UserContext, programs []catalog.Program) ([]oracle.Candidate, error)
}

func (s *stubOracle) Extract(context.Context, string, string, profile.UserContext) (profile.Delta, error) {
	return profile.Delta{}, nil
}

func (s *stubOracle) Reason(ctx context.Context, current profile.UserContext, programs []catalog.Program) ([]oracle.Candidate, error) {
	return s.reason(ctx, current, programs)
}

func (s *stubOracle) PhraseQuestion(context.Context, string, string) (string, error) {
	return "", nil
}

func intPtr(n int) *int { return &n }

func matchTestCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.New([]catalog.Program{
		{
			ID:    "national-a",
			Scope: catalog.ScopeNational,
			Predicate: []catalog.Constraint{
				{Name: "adult", Attribute: profile.AttrAge, Kind: catalog.KindRange, Min: intPtr(18)},
			},
		},
		{
			ID:    "national-b",
			Scope: catalog.ScopeNational,
			Predicate: []catalog.Constraint{
				{Name: "low-income", Attribute: profile.AttrIncome, Kind: catalog.KindRange, Max: intPtr(100000)},
			},
		},
		{
			ID:      "regional-mh",
			Scope:   catalog.ScopeRegional,
			Regions: []string{"maharashtra"},
			Predicate: []catalog.Constraint{
				{Name: "adult", Attribute: profile.AttrAge, Kind: catalog.KindRange, Min: intPtr(18)},
			},
		},
		{
			ID:      "regional-tn",
			Scope:   catalog.ScopeRegional,
			Regions: []string{"tamil nadu"},
			Predicate: []catalog.Constraint{
				{Name: "adult", Attribute: profile.AttrAge, Kind: catalog.KindRange, Min: intPtr(18)},
			},
		},
		{
			ID:      "regional-up",
			Scope:   catalog.ScopeRegional,
			Regions: []string{"uttar pradesh"},
			Predicate: []catalog.Constraint{
				{Name: "adult", Attribute: profile.AttrAge, Kind: catalog.KindRange, Min: intPtr(18)},
			},
		},
	})
	require.NoError(t, err)
	return cat
}

func newTestMatcher(cat *catalog.Catalog, primary oracle.Oracle) (*Matcher, *apperrors.CircuitBreaker) {
	breaker := apperrors.NewCircuitBreaker("test", apperrors.DefaultCircuitBreakerConfig())
	fallback := oracle.NewFallback(cat)
	if primary == nil {
		primary = fallback
	}
	return NewMatcher(primary, fallback, breaker, time.Second), breaker
}

func contextWith(attrs map[string]string) profile.UserContext {
	return profile.Merge(profile.NewContext(), attrs, profile.ProvenanceUserStated, 1)
}

func TestPrefilter(t *testing.T) {
	cat := matchTestCatalog(t)

	all := Prefilter(cat, "")
	require.Len(t, all, 5)

	mh := Prefilter(cat, "maharashtra")
	ids := make([]string, 0, len(mh))
	for _, p := range mh {
		ids = append(ids, p.ID)
	}
	require.Equal(t, []string{"national-a", "national-b", "regional-mh"}, ids)

	kerala := Prefilter(cat, "kerala")
	require.Len(t, kerala, 2)
}

func TestMatchValidatesOracleOutput(t *testing.T) {
	cat := matchTestCatalog(t)
	primary := &stubOracle{
		reason: func(context.Context, profile.UserContext, []catalog.Program) ([]oracle.Candidate, error) {
			return []oracle.Candidate{
				{ProgramID: "invented-scheme", Score: 99, Verdict: "eligible"},
				{ProgramID: "national-a", Score: 150, Verdict: "eligible"},
				{ProgramID: "national-a", Score: 10, Verdict: "ineligible"}, // duplicate, dropped
				{ProgramID: "national-b", Score: -5, Verdict: "definitely"},
			}, nil
		},
	}
	matcher, _ := newTestMatcher(cat, primary)

	result := matcher.Match(context.Background(), contextWith(map[string]string{profile.AttrRegion: "kerala"}), cat)

	require.False(t, result.Degraded)
	require.Len(t, result.Candidates, 2)

	first := result.Candidates[0]
	require.Equal(t, "national-a", first.ProgramID)
	require.Equal(t, 100, first.Score)
	require.Equal(t, VerdictEligible, first.Verdict)
	require.False(t, first.LowerBound)

	second := result.Candidates[1]
	require.Equal(t, "national-b", second.ProgramID)
	require.Equal(t, 0, second.Score)
	// Unrecognized verdicts normalize to unknown, which is a lower bound.
	require.Equal(t, VerdictUnknown, second.Verdict)
	require.True(t, second.LowerBound)

	require.Equal(t, 100, result.Confidence)
}

func TestMatchRankingIsDeterministic(t *testing.T) {
	cat := matchTestCatalog(t)

	raw := []oracle.Candidate{
		{ProgramID: "national-a", Score: 80, Verdict: "eligible"},
		{ProgramID: "national-b", Score: 80, Verdict: "unknown", Missing: []string{"low-income"}},
		{ProgramID: "regional-mh", Score: 80, Verdict: "eligible"},
		{ProgramID: "regional-tn", Score: 50, Verdict: "unknown", Missing: []string{"adult"}},
	}

	rng := rand.New(rand.NewSource(7))
	for trial := 0; trial < 20; trial++ {
		shuffled := append([]oracle.Candidate(nil), raw...)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

		primary := &stubOracle{
			reason: func(context.Context, profile.UserContext, []catalog.Program) ([]oracle.Candidate, error) {
				return shuffled, nil
			},
		}
		matcher, _ := newTestMatcher(cat, primary)

		result := matcher.Match(context.Background(), contextWith(map[string]string{profile.AttrRegion: "maharashtra"}), cat)
		// regional-tn is dropped by the region prefilter before validation.
		require.Len(t, result.Candidates, 3)

		ids := make([]string, 0, 3)
		for _, c := range result.Candidates {
			ids = append(ids, c.ProgramID)
		}
		// Score ties break by fewer missing constraints, then catalog order.
		require.Equal(t, []string{"national-a", "regional-mh", "national-b"}, ids, "trial %d", trial)
	}
}

func TestMatchRegionUnsetFlagsRegionalCandidates(t *testing.T) {
	cat := matchTestCatalog(t)
	matcher, _ := newTestMatcher(cat, nil)

	result := matcher.Match(context.Background(), contextWith(map[string]string{profile.AttrAge: "30"}), cat)

	// Both national and all three regional programs stay in play.
	require.Len(t, result.Candidates, 5)
	for _, c := range result.Candidates {
		program, ok := cat.ByID(c.ProgramID)
		require.True(t, ok)
		if program.Scope == catalog.ScopeRegional {
			require.Contains(t, c.Missing, MissingRegionConstraint, "program %s", c.ProgramID)
		} else {
			require.NotContains(t, c.Missing, MissingRegionConstraint, "program %s", c.ProgramID)
		}
	}
}

func TestMatchOracleFailureFallsBackDegraded(t *testing.T) {
	cat := matchTestCatalog(t)
	primary := &stubOracle{
		reason: func(context.Context, profile.UserContext, []catalog.Program) ([]oracle.Candidate, error) {
			return nil, apperrors.NewOracleError("reason", 503, fmt.Errorf("%w: boom", apperrors.ErrOracleUnavailable))
		},
	}
	matcher, _ := newTestMatcher(cat, primary)

	result := matcher.Match(context.Background(), contextWith(map[string]string{
		profile.AttrAge:    "30",
		profile.AttrRegion: "maharashtra",
	}), cat)

	require.True(t, result.Degraded)
	require.Len(t, result.Candidates, 3)
	// The rule-based pass never grounds confidence above the threshold.
	require.LessOrEqual(t, result.Confidence, ConfidenceThreshold)
}

func TestMatchTimeoutFallsBackDegraded(t *testing.T) {
	cat := matchTestCatalog(t)
	primary := &stubOracle{
		reason: func(ctx context.Context, _ profile.UserContext, _ []catalog.Program) ([]oracle.Candidate, error) {
			<-ctx.Done()
			return nil, fmt.Errorf("%w: %v", apperrors.ErrOracleUnavailable, ctx.Err())
		},
	}
	breaker := apperrors.NewCircuitBreaker("test", apperrors.DefaultCircuitBreakerConfig())
	matcher := NewMatcher(primary, oracle.NewFallback(cat), breaker, 10*time.Millisecond)

	result := matcher.Match(context.Background(), contextWith(map[string]string{profile.AttrAge: "30"}), cat)

	require.True(t, result.Degraded)
	require.NotEmpty(t, result.Candidates)
}

func TestMatchMalformedKeepsCircuitClosed(t *testing.T) {
	cat := matchTestCatalog(t)
	primary := &stubOracle{
		reason: func(context.Context, profile.UserContext, []catalog.Program) ([]oracle.Candidate, error) {
			return nil, fmt.Errorf("garbage response: %w", apperrors.ErrOracleMalformed)
		},
	}
	matcher, breaker := newTestMatcher(cat, primary)

	for i := 0; i < 5; i++ {
		result := matcher.Match(context.Background(), contextWith(nil), cat)
		require.True(t, result.Degraded)
		require.Empty(t, result.Candidates)
	}

	// Malformed answers are not availability failures.
	require.Equal(t, apperrors.StateClosed, breaker.State())
}

func TestMatchOpenCircuitSkipsPrimary(t *testing.T) {
	cat := matchTestCatalog(t)
	primary := &stubOracle{
		reason: func(context.Context, profile.UserContext, []catalog.Program) ([]oracle.Candidate, error) {
			t.Fatal("primary must not be called while the circuit is open")
			return nil, nil
		},
	}
	matcher, breaker := newTestMatcher(cat, primary)

	for i := 0; i < apperrors.DefaultCircuitBreakerConfig().FailureThreshold; i++ {
		breaker.Mark(errors.New("boom"))
	}
	require.Equal(t, apperrors.StateOpen, breaker.State())

	result := matcher.Match(context.Background(), contextWith(map[string]string{profile.AttrAge: "30"}), cat)

	require.True(t, result.Degraded)
	require.NotEmpty(t, result.Candidates)
}
