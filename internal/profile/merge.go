package profile

import "strings"

// Merge applies a flat attribute delta to the context with the given
// provenance and logical timestamp, returning a new context. It is pure and
// total: unrecognized attribute keys and blank values are dropped, never
// rejected.
//
// Conflict rule, per attribute:
//
//	user-stated > clarification-answer > inferred
//
// Equal precedence: most recent wins. Lower precedence never overwrites
// higher, so once an attribute is user-stated, later inferred deltas are
// ignored. Any value that is overwritten lands in the Discarded audit trail.
func Merge(current UserContext, delta map[string]string, provenance Provenance, seq int) UserContext {
	next := current.Clone()
	if next.Attributes == nil {
		next.Attributes = make(map[string]Value)
	}

	for key, raw := range delta {
		key = strings.TrimSpace(strings.ToLower(key))
		raw = strings.TrimSpace(raw)
		if raw == "" || !KnownAttribute(key) {
			continue
		}

		incoming := Value{Raw: raw, Provenance: provenance, Seq: seq}
		existing, ok := next.Attributes[key]
		if !ok {
			next.Attributes[key] = incoming
			continue
		}

		if incoming.Provenance.rank() < existing.Provenance.rank() {
			continue
		}

		// Equal or higher precedence: most recent wins, superseded value
		// is retained for debuggability.
		if existing.Raw != incoming.Raw {
			next.Discarded = append(next.Discarded, DiscardedValue{
				Attribute:     key,
				Raw:           existing.Raw,
				Provenance:    existing.Provenance,
				ReplacedAtSeq: seq,
			})
		}
		next.Attributes[key] = incoming
	}

	return next
}

// MergeDelta applies an extraction delta: stated values carry user-stated
// provenance, inferred values carry inferred provenance. Stated values are
// applied second so they win within a single turn.
func MergeDelta(current UserContext, delta Delta, seq int) UserContext {
	next := Merge(current, delta.Inferred, ProvenanceInferred, seq)
	return Merge(next, delta.Stated, ProvenanceUserStated, seq)
}
