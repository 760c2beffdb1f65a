package oracle

import (
	"context"
	"regexp"
	"strings"

	"github.com/omnandre07/SchemeSahayak/internal/catalog"
	"github.com/omnandre07/SchemeSahayak/internal/profile"
)

// Fallback is the deterministic oracle adapter. It runs fully offline:
// extraction uses vocabulary learned from the catalog plus a few fixed
// patterns, reasoning evaluates structured predicates directly, and
// phrasing uses templates. It backs the chat command in dev and every
// degraded-network path in production.
type Fallback struct {
	catalog *catalog.Catalog
	// vocab maps attribute -> known raw values, learned from one_of
	// constraints and regional scopes at construction time.
	vocab map[string][]string
}

// NewFallback builds the deterministic adapter from the shared catalog.
func NewFallback(cat *catalog.Catalog) *Fallback {
	vocab := make(map[string][]string)
	seen := make(map[string]map[string]bool)

	add := func(attribute, value string) {
		value = strings.ToLower(strings.TrimSpace(value))
		if value == "" {
			return
		}
		if seen[attribute] == nil {
			seen[attribute] = make(map[string]bool)
		}
		if seen[attribute][value] {
			return
		}
		seen[attribute][value] = true
		vocab[attribute] = append(vocab[attribute], value)
	}

	for _, p := range cat.Programs() {
		for _, region := range p.Regions {
			add(profile.AttrRegion, region)
		}
		for _, c := range p.Predicate {
			if c.Kind == catalog.KindOneOf {
				for _, option := range c.OneOf {
					add(c.Attribute, option)
				}
			}
		}
	}

	return &Fallback{catalog: cat, vocab: vocab}
}

var (
	agePattern = regexp.MustCompile(`\b(\d{1,3})\s*(?:years?\s*old|yrs?\b|साल)|\bage\s*(?:is\s*)?(\d{1,3})\b`)

	occupationHints = map[string]string{
		"farm":     "farmer",
		"kheti":    "farmer",
		"fishing":  "fisherman",
		"weav":     "weaver",
		"student":  "student",
		"teach":    "teacher",
		"labour":   "labourer",
		"labor":    "labourer",
		"mazdoor":  "labourer",
		"shop":     "shopkeeper",
		"business": "entrepreneur",
	}

	disabilityHints = []string{"disabled", "disability", "divyang", "handicap", "wheelchair"}

	genderHints = map[string]string{
		"woman": "female", "female": "female", "mahila": "female", "widow": "female",
		"man": "male", "male": "male",
	}
)

// Extract implements Oracle with keyword and vocabulary matching. Values
// the user names outright (age, a known region or category) are stated;
// values derived from activity hints are inferred.
func (f *Fallback) Extract(_ context.Context, text, _ string, current profile.UserContext) (profile.Delta, error) {
	lower := strings.ToLower(text)
	delta := profile.Delta{
		Stated:   make(map[string]string),
		Inferred: make(map[string]string),
	}

	if m := agePattern.FindStringSubmatch(lower); m != nil {
		age := m[1]
		if age == "" {
			age = m[2]
		}
		delta.Stated[profile.AttrAge] = age
	}

	for attribute, values := range f.vocab {
		for _, value := range values {
			if containsWord(lower, value) {
				delta.Stated[attribute] = value
				break
			}
		}
	}

	for hint, occupation := range occupationHints {
		if strings.Contains(lower, hint) {
			if _, ok := delta.Stated[profile.AttrOccupation]; !ok {
				delta.Inferred[profile.AttrOccupation] = occupation
			}
			break
		}
	}

	for _, hint := range disabilityHints {
		if strings.Contains(lower, hint) {
			delta.Stated[profile.AttrDisability] = "true"
			break
		}
	}

	for hint, gender := range genderHints {
		if containsWord(lower, hint) {
			delta.Inferred[profile.AttrGender] = gender
			break
		}
	}

	// Already-known attributes are left alone here; precedence is the
	// merger's job, not the extractor's.
	_ = current

	return delta, nil
}

// Reason implements Oracle by evaluating structured predicates. Verdicts:
// a violated constraint on present data means ineligible, any absent
// required attribute means unknown, otherwise eligible. Missing data alone
// never yields ineligible.
func (f *Fallback) Reason(_ context.Context, current profile.UserContext, programs []catalog.Program) ([]Candidate, error) {
	attrs := current.Values()
	candidates := make([]Candidate, 0, len(programs))

	for _, p := range programs {
		satisfied, missing, violated := p.Evaluate(attrs)
		candidate := Candidate{
			ProgramID: p.ID,
			Satisfied: satisfied,
			Missing:   missing,
		}

		switch {
		case len(violated) > 0:
			candidate.Verdict = "ineligible"
			candidate.Score = 10
		case len(missing) > 0:
			candidate.Verdict = "unknown"
			candidate.Score = ruleScoreUnknown(len(satisfied), len(missing))
		default:
			candidate.Verdict = "eligible"
			candidate.Score = 90
		}

		candidates = append(candidates, candidate)
	}

	return candidates, nil
}

// ruleScoreUnknown gives partial credit for satisfied constraints while
// keeping unknown verdicts below any eligible one. Deterministic by design.
func ruleScoreUnknown(satisfied, missing int) int {
	total := satisfied + missing
	if total == 0 {
		return 30
	}
	return 30 + (20*satisfied)/total
}

var questionTemplates = map[string]map[string]string{
	profile.AttrRegion: {
		"en": "Which state or region do you live in?",
		"hi": "आप किस राज्य या क्षेत्र में रहते हैं?",
	},
	profile.AttrOccupation: {
		"en": "What is your occupation?",
		"hi": "आपका व्यवसाय क्या है?",
	},
	profile.AttrAge: {
		"en": "How old are you?",
		"hi": "आपकी उम्र क्या है?",
	},
	profile.AttrIncome: {
		"en": "What is your approximate yearly household income in rupees?",
		"hi": "आपकी वार्षिक पारिवारिक आय लगभग कितनी है?",
	},
	profile.AttrSocialCategory: {
		"en": "Do you belong to a reserved social category (SC, ST or OBC)?",
		"hi": "क्या आप आरक्षित सामाजिक वर्ग (SC, ST या OBC) से हैं?",
	},
	profile.AttrGender: {
		"en": "Are you applying as a woman candidate?",
		"hi": "क्या आप महिला आवेदक हैं?",
	},
	profile.AttrDisability: {
		"en": "Do you have a disability certificate?",
		"hi": "क्या आपके पास दिव्यांगता प्रमाण पत्र है?",
	},
}

// PhraseQuestion implements Oracle with fixed templates.
func (f *Fallback) PhraseQuestion(_ context.Context, attribute, language string) (string, error) {
	templates, ok := questionTemplates[attribute]
	if !ok {
		return "Could you tell me your " + strings.ReplaceAll(attribute, "_", " ") + "?", nil
	}
	if text, ok := templates[language]; ok {
		return text, nil
	}
	return templates["en"], nil
}

// containsWord reports whether value occurs in text on word boundaries, so
// "up" does not match inside "support".
func containsWord(text, value string) bool {
	idx := 0
	for {
		i := strings.Index(text[idx:], value)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(value)
		beforeOK := start == 0 || !isWordChar(text[start-1])
		afterOK := end == len(text) || !isWordChar(text[end])
		if beforeOK && afterOK {
			return true
		}
		idx = start + 1
	}
}

func isWordChar(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9'
}
