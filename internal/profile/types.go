package profile

import "strings"

// Provenance tags how an attribute value entered the context. Explicit
// statements outrank clarification answers, which outrank inference.
type Provenance string

const (
	ProvenanceUserStated    Provenance = "user-stated"
	ProvenanceClarification Provenance = "clarification-answer"
	ProvenanceInferred      Provenance = "inferred"
)

// rank orders provenance for conflict resolution. Higher wins.
func (p Provenance) rank() int {
	switch p {
	case ProvenanceUserStated:
		return 3
	case ProvenanceClarification:
		return 2
	case ProvenanceInferred:
		return 1
	default:
		return 0
	}
}

// Canonical attribute names. Anything else in a delta is dropped by the
// merger, except free-form notes under AttrExtras.
const (
	AttrRegion         = "region"
	AttrOccupation     = "occupation"
	AttrAge            = "age"
	AttrIncome         = "income"
	AttrSocialCategory = "social_category"
	AttrGender         = "gender"
	AttrDisability     = "disability"
	AttrExtras         = "extras"
)

var knownAttributes = map[string]bool{
	AttrRegion:         true,
	AttrOccupation:     true,
	AttrAge:            true,
	AttrIncome:         true,
	AttrSocialCategory: true,
	AttrGender:         true,
	AttrDisability:     true,
	AttrExtras:         true,
}

// KnownAttribute reports whether the merger accepts the given key.
func KnownAttribute(key string) bool {
	return knownAttributes[key]
}

// Value is one attribute value with its provenance and the logical
// timestamp of the turn that set it.
type Value struct {
	Raw        string     `json:"raw"`
	Provenance Provenance `json:"provenance"`
	Seq        int        `json:"seq"`
}

// DiscardedValue records a superseded attribute value. The trail is kept
// for debugging merges and is never surfaced to the user.
type DiscardedValue struct {
	Attribute     string     `json:"attribute"`
	Raw           string     `json:"raw"`
	Provenance    Provenance `json:"provenance"`
	ReplacedAtSeq int        `json:"replaced_at_seq"`
}

// UserContext is the evolving set of structured facts known about one user
// in one session.
type UserContext struct {
	Attributes map[string]Value `json:"attributes"`
	Discarded  []DiscardedValue `json:"discarded,omitempty"`
}

// NewContext returns an empty context.
func NewContext() UserContext {
	return UserContext{Attributes: make(map[string]Value)}
}

// Clone returns a deep copy. Merges operate on copies so a turn either
// fully applies or leaves the stored context untouched.
func (c UserContext) Clone() UserContext {
	next := UserContext{Attributes: make(map[string]Value, len(c.Attributes))}
	for k, v := range c.Attributes {
		next.Attributes[k] = v
	}
	if len(c.Discarded) > 0 {
		next.Discarded = append([]DiscardedValue(nil), c.Discarded...)
	}
	return next
}

// Get returns the value for an attribute.
func (c UserContext) Get(attribute string) (Value, bool) {
	v, ok := c.Attributes[attribute]
	return v, ok
}

// Values flattens the context to raw attribute strings for predicate
// evaluation and oracle payloads.
func (c UserContext) Values() map[string]string {
	out := make(map[string]string, len(c.Attributes))
	for k, v := range c.Attributes {
		if strings.TrimSpace(v.Raw) != "" {
			out[k] = v.Raw
		}
	}
	return out
}

// Region returns the region attribute, or "" when unset.
func (c UserContext) Region() string {
	if v, ok := c.Attributes[AttrRegion]; ok {
		return v.Raw
	}
	return ""
}

// Delta is a partial context update produced from one utterance. The
// extractor separates values the user said outright from values it
// inferred, because the two merge with different precedence.
type Delta struct {
	Stated   map[string]string `json:"stated"`
	Inferred map[string]string `json:"inferred"`
}

// Empty reports whether the delta carries no values.
func (d Delta) Empty() bool {
	return len(d.Stated) == 0 && len(d.Inferred) == 0
}
