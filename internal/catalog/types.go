package catalog

import (
	"strconv"
	"strings"
)

// Scope says where a program applies.
type Scope string

const (
	ScopeNational Scope = "national"
	ScopeRegional Scope = "regional"
)

// Constraint is one structured eligibility condition on a user attribute.
// Exactly one of the kind-specific fields is meaningful per Kind.
type Constraint struct {
	Name      string   `yaml:"name" json:"name"`
	Attribute string   `yaml:"attribute" json:"attribute"`
	Kind      string   `yaml:"kind" json:"kind"` // range, one_of, flag
	Min       *int     `yaml:"min,omitempty" json:"min,omitempty"`
	Max       *int     `yaml:"max,omitempty" json:"max,omitempty"`
	OneOf     []string `yaml:"one_of,omitempty" json:"one_of,omitempty"`
	Expect    *bool    `yaml:"expect,omitempty" json:"expect,omitempty"`
}

const (
	KindRange = "range"
	KindOneOf = "one_of"
	KindFlag  = "flag"
)

// Satisfied evaluates the constraint against a raw attribute value.
// The value is always a string in the user context; range constraints
// parse it as an integer. An unparsable value counts as not satisfied.
func (c Constraint) Satisfied(value string) bool {
	value = strings.TrimSpace(strings.ToLower(value))
	if value == "" {
		return false
	}

	switch c.Kind {
	case KindRange:
		n, err := strconv.Atoi(value)
		if err != nil {
			return false
		}
		if c.Min != nil && n < *c.Min {
			return false
		}
		if c.Max != nil && n > *c.Max {
			return false
		}
		return true

	case KindOneOf:
		for _, option := range c.OneOf {
			if strings.EqualFold(option, value) {
				return true
			}
		}
		return false

	case KindFlag:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return false
		}
		if c.Expect == nil {
			return b
		}
		return b == *c.Expect

	default:
		// Unknown constraint kinds never block eligibility.
		return true
	}
}

// Program is one catalog entry. Immutable within a session; the catalog is
// versioned and reloaded by a collaborator outside this core.
type Program struct {
	ID          string            `yaml:"id" json:"id"`
	Name        map[string]string `yaml:"name" json:"name"`               // language -> name
	Description map[string]string `yaml:"description" json:"description"` // language -> description
	Scope       Scope             `yaml:"scope" json:"scope"`
	Regions     []string          `yaml:"regions,omitempty" json:"regions,omitempty"`
	Predicate   []Constraint      `yaml:"predicate" json:"predicate"`
	Benefit     string            `yaml:"benefit" json:"benefit"`
	Process     string            `yaml:"process" json:"process"`
}

// DisplayName returns the program name in the requested language, falling
// back to English.
func (p Program) DisplayName(language string) string {
	if name, ok := p.Name[language]; ok && name != "" {
		return name
	}
	return p.Name["en"]
}

// AppliesToRegion reports whether the program's scope is compatible with the
// given region. An empty region is compatible with everything: unset region
// means "include all regional programs and flag region as missing".
func (p Program) AppliesToRegion(region string) bool {
	if p.Scope != ScopeRegional {
		return true
	}
	if region == "" {
		return true
	}
	for _, r := range p.Regions {
		if strings.EqualFold(r, region) {
			return true
		}
	}
	return false
}

// Evaluate checks the structured predicate against the given attribute
// values. It returns the names of satisfied constraints, constraints whose
// attribute is absent from the context, and constraints whose attribute is
// present but violated.
func (p Program) Evaluate(attrs map[string]string) (satisfied, missing, violated []string) {
	for _, c := range p.Predicate {
		value, ok := attrs[c.Attribute]
		if !ok || strings.TrimSpace(value) == "" {
			missing = append(missing, c.Name)
			continue
		}
		if c.Satisfied(value) {
			satisfied = append(satisfied, c.Name)
		} else {
			violated = append(violated, c.Name)
		}
	}
	return satisfied, missing, violated
}
