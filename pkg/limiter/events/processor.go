package events

import "strconv"

// Processor matches lifecycle events from one source and names the field
// carrying the resource id of the token to remove.
type Processor struct {
	// Source is the event source tag this processor handles. Several
	// processors may share a source; the manager runs all of them.
	Source string

	// IDPath is the dotted path to the resource id field.
	IDPath string

	// Predicates gate the processor. They are evaluated in order and all
	// must pass; a processor with none always proceeds.
	Predicates []Predicate
}

// NewProcessor creates a processor for the given source and id path.
func NewProcessor(source, idPath string, predicates ...Predicate) Processor {
	return Processor{Source: source, IDPath: idPath, Predicates: predicates}
}

// Match reports whether the event passes every predicate and, when it does,
// returns the resource id extracted from IDPath. Evaluation short-circuits
// on the first failing predicate. A missing or non-scalar id is a non-match,
// never an error: events legitimately arrive for resources that were never
// tokenized.
func (p Processor) Match(e Event) (string, bool) {
	for _, pred := range p.Predicates {
		if !pred.Test(e) {
			return "", false
		}
	}
	return p.resourceID(e)
}

// resourceID extracts and formats the id value. Numeric ids are formatted
// the way encoding/json renders them, so JSON-delivered events round-trip.
func (p Processor) resourceID(e Event) (string, bool) {
	value, ok := e.Lookup(p.IDPath)
	if !ok {
		return "", false
	}

	switch id := value.(type) {
	case string:
		return id, id != ""
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64), true
	case int:
		return strconv.Itoa(id), true
	case int64:
		return strconv.FormatInt(id, 10), true
	default:
		return "", false
	}
}
