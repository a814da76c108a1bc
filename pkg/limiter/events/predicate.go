package events

import "strings"

// Op is the comparison a predicate applies to its field. The set is closed;
// anything beyond it goes through OpCustom.
type Op int

const (
	// OpEquals passes when the field equals the comparison value exactly.
	OpEquals Op = iota

	// OpContains passes when the field contains the comparison value as a
	// substring.
	OpContains

	// OpNotContains passes when the field is present and does not contain
	// the comparison value.
	OpNotContains

	// OpCustom delegates to a caller-supplied function.
	OpCustom
)

// Predicate tests one field of an event against a comparison rule.
//
// Built-in ops compare string fields. A missing field or a non-string value
// fails the predicate rather than erroring, so a malformed event degrades to
// a skipped processor instead of aborting the batch. Custom predicates
// receive the raw field value (nil when the path is absent) and apply their
// own rules.
//
// Predicates compose: p.And(q) requires both, p.Or(q) accepts either, and
// chains group as (p and all And-predicates) or any Or-predicate.
type Predicate struct {
	path string
	op   Op
	want string
	fn   func(value any) bool
	and  []Predicate
	or   []Predicate
}

// Equals matches a string field equal to want.
func Equals(path, want string) Predicate {
	return Predicate{path: path, op: OpEquals, want: want}
}

// Contains matches a string field containing want as a substring.
func Contains(path, want string) Predicate {
	return Predicate{path: path, op: OpContains, want: want}
}

// NotContains matches a string field not containing want.
func NotContains(path, want string) Predicate {
	return Predicate{path: path, op: OpNotContains, want: want}
}

// Custom matches with a caller-supplied function over the raw field value.
func Custom(path string, fn func(value any) bool) Predicate {
	return Predicate{path: path, op: OpCustom, fn: fn}
}

// And returns a copy of p that additionally requires q.
func (p Predicate) And(q Predicate) Predicate {
	p.and = append(append([]Predicate(nil), p.and...), q)
	return p
}

// Or returns a copy of p that alternatively accepts q.
func (p Predicate) Or(q Predicate) Predicate {
	p.or = append(append([]Predicate(nil), p.or...), q)
	return p
}

// Test evaluates the predicate chain against the event.
func (p Predicate) Test(e Event) bool {
	result := p.evaluate(e)
	for _, q := range p.and {
		if !result {
			break
		}
		result = q.Test(e)
	}
	if result {
		return true
	}
	for _, q := range p.or {
		if q.Test(e) {
			return true
		}
	}
	return false
}

// evaluate applies the predicate's own comparison, ignoring the chains.
func (p Predicate) evaluate(e Event) bool {
	value, _ := e.Lookup(p.path)

	if p.op == OpCustom {
		if p.fn == nil {
			return false
		}
		return p.fn(value)
	}

	s, ok := value.(string)
	if !ok {
		return false
	}

	switch p.op {
	case OpEquals:
		return s == p.want
	case OpContains:
		return strings.Contains(s, p.want)
	case OpNotContains:
		return !strings.Contains(s, p.want)
	default:
		return false
	}
}
