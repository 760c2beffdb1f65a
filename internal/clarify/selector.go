package clarify

import (
	"context"
	"time"

	"github.com/omnandre07/SchemeSahayak/internal/catalog"
	"github.com/omnandre07/SchemeSahayak/internal/logging"
	"github.com/omnandre07/SchemeSahayak/internal/match"
	"github.com/omnandre07/SchemeSahayak/internal/oracle"
	"github.com/omnandre07/SchemeSahayak/internal/profile"
)

// MaxRounds is the hard cap on clarification rounds per session. The
// dialogue always terminates within this many question/answer cycles.
const MaxRounds = 5

// Question is one yes/no clarification proposed to the user. IDs are
// derived from the target attribute, which also guarantees the same
// attribute is never asked twice.
type Question struct {
	ID        string `json:"id"`
	Attribute string `json:"attribute"`
	Text      string `json:"text"`
	Priority  int    `json:"priority"`
	Round     int    `json:"round"`
}

// QuestionID derives the stable question id for an attribute.
func QuestionID(attribute string) string {
	return "q-" + attribute
}

// Selector picks the single highest-value question to ask next, or signals
// that the dialogue should conclude.
type Selector struct {
	phraser  oracle.Oracle
	fallback oracle.Oracle
	timeout  time.Duration
	logger   logging.Logger
}

// NewSelector wires a selector. phraser is the primary oracle used to
// render question text; fallback provides template phrasing when it fails.
func NewSelector(phraser, fallback oracle.Oracle, timeout time.Duration) *Selector {
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	return &Selector{
		phraser:  phraser,
		fallback: fallback,
		timeout:  timeout,
		logger:   logging.NewComponentLogger("clarify"),
	}
}

// NextQuestion returns the next clarification, or nil to stop asking.
//
// Stop conditions: the round cap is reached, every remaining candidate has
// an empty missing-constraint set, or no unasked attribute appears in any
// candidate's gaps (such a question could not change the ranking).
//
// With zero candidates the selector still proposes a question driven by
// catalog-wide attribute coverage: absence of matches is never terminal
// without at least one clarification attempt.
func (s *Selector) NextQuestion(ctx context.Context, current profile.UserContext, candidates []match.Candidate, cat *catalog.Catalog, askedAttributes map[string]bool, round int, language string) *Question {
	if round >= MaxRounds {
		return nil
	}

	attribute := s.pickAttribute(current, candidates, cat, askedAttributes)
	if attribute == "" {
		return nil
	}

	priority := attributePriorities(candidates, cat)[attribute]
	text := s.phrase(ctx, attribute, language)

	return &Question{
		ID:        QuestionID(attribute),
		Attribute: attribute,
		Text:      text,
		Priority:  priority,
		Round:     round + 1,
	}
}

// pickAttribute selects the attribute gap with the highest priority.
// Priority is the summed relevance score of candidates whose verdict would
// flip from unknown/likely to a definitive one if this attribute were
// resolved. Ties break by the attribute's global frequency across the full
// catalog (the more broadly discriminating attribute wins), then
// alphabetically for determinism.
func (s *Selector) pickAttribute(current profile.UserContext, candidates []match.Candidate, cat *catalog.Catalog, askedAttributes map[string]bool) string {
	values := current.Values()

	if len(candidates) == 0 {
		// Catalog-coverage fallback: most broadly constrained attribute the
		// user has neither provided nor been asked about.
		for _, attribute := range cat.AttributesByFrequency() {
			if askedAttributes[attribute] {
				continue
			}
			if _, set := values[attribute]; set {
				continue
			}
			return attribute
		}
		return ""
	}

	gaps := gapAttributes(candidates, cat)
	if len(gaps) == 0 {
		return ""
	}

	priorities := attributePriorities(candidates, cat)
	frequency := cat.AttributeFrequency()

	best := ""
	for _, attribute := range gaps {
		if askedAttributes[attribute] {
			continue
		}
		if _, set := values[attribute]; set {
			continue
		}
		if best == "" {
			best = attribute
			continue
		}
		if priorities[attribute] != priorities[best] {
			if priorities[attribute] > priorities[best] {
				best = attribute
			}
			continue
		}
		if frequency[attribute] != frequency[best] {
			if frequency[attribute] > frequency[best] {
				best = attribute
			}
			continue
		}
		if attribute < best {
			best = attribute
		}
	}
	return best
}

// gapAttributes maps candidates' missing constraint names to the attributes
// behind them, deduplicated, in deterministic order.
func gapAttributes(candidates []match.Candidate, cat *catalog.Catalog) []string {
	seen := make(map[string]bool)
	var attrs []string
	for _, c := range candidates {
		for _, attribute := range candidateGaps(c, cat) {
			if !seen[attribute] {
				seen[attribute] = true
				attrs = append(attrs, attribute)
			}
		}
	}
	return attrs
}

// candidateGaps resolves one candidate's missing constraint names to
// attribute names via the program's predicate. The synthetic region gap
// resolves to the region attribute.
func candidateGaps(c match.Candidate, cat *catalog.Catalog) []string {
	program, ok := cat.ByID(c.ProgramID)
	byName := make(map[string]string)
	if ok {
		for _, constraint := range program.Predicate {
			byName[constraint.Name] = constraint.Attribute
		}
	}

	seen := make(map[string]bool)
	var attrs []string
	for _, name := range c.Missing {
		attribute := byName[name]
		if attribute == "" {
			if name == match.MissingRegionConstraint {
				attribute = profile.AttrRegion
			} else {
				continue
			}
		}
		if !seen[attribute] {
			seen[attribute] = true
			attrs = append(attrs, attribute)
		}
	}
	return attrs
}

// attributePriorities computes, per gap attribute, the summed relevance
// score of unknown/likely candidates for which this attribute is the only
// remaining gap — exactly the candidates whose verdict the answer settles.
func attributePriorities(candidates []match.Candidate, cat *catalog.Catalog) map[string]int {
	priorities := make(map[string]int)
	for _, c := range candidates {
		if c.Verdict != match.VerdictUnknown && c.Verdict != match.VerdictLikely {
			continue
		}
		gaps := candidateGaps(c, cat)
		if len(gaps) == 1 {
			priorities[gaps[0]] += c.Score
		}
	}
	return priorities
}

// phrase renders the question text, preferring the live oracle and falling
// back to templates.
func (s *Selector) phrase(ctx context.Context, attribute, language string) string {
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if s.phraser != nil {
		if text, err := s.phraser.PhraseQuestion(callCtx, attribute, language); err == nil && text != "" {
			return text
		} else if err != nil {
			s.logger.Debug("Oracle phrasing failed for %s, using template: %v", attribute, err)
		}
	}

	text, err := s.fallback.PhraseQuestion(ctx, attribute, language)
	if err != nil || text == "" {
		return "Could you tell me more about your " + attribute + "?"
	}
	return text
}
