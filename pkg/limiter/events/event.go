package events

import "strings"

// SourceField is the top-level field naming an event's origin.
const SourceField = "source"

// Event is one inbound lifecycle notification: an attribute tree with a
// top-level source discriminator and arbitrarily nested detail fields.
// Events typically arrive as unmarshaled JSON.
type Event map[string]any

// Source returns the event's source tag. The second return is false when
// the field is missing or not a string.
func (e Event) Source() (string, bool) {
	v, ok := e[SourceField]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Lookup traverses the event down a "." delimited path and returns the
// value named by the last segment. A missing segment or a non-map
// intermediate is a miss, not an error.
func (e Event) Lookup(path string) (any, bool) {
	var current any = e
	for _, segment := range strings.Split(path, ".") {
		var node map[string]any
		switch n := current.(type) {
		case Event:
			node = n
		case map[string]any:
			node = n
		default:
			return nil, false
		}
		value, ok := node[segment]
		if !ok {
			return nil, false
		}
		current = value
	}
	return current, true
}
