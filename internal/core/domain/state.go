package domain

import (
	"strconv"
	"strings"
)

type StateKind int

const (
	StatePresent StateKind = iota
	StateUnknown
	StateUnavailable
	StateMissing
)

// StateValue is the state of an entity at query time. The platform reports
// "no data" either through sentinel strings on a known entity or by not
// knowing the entity at all; both end up as a non-present kind here, so
// callers never compare sentinel strings.
type StateValue struct {
	Kind StateKind
	Text string
}

// StateOf maps a raw platform state string to a StateValue, folding the
// "unknown", "unavailable" and empty-string sentinels into their kinds.
func StateOf(raw string) StateValue {
	switch raw {
	case "unknown":
		return StateValue{Kind: StateUnknown}
	case "unavailable":
		return StateValue{Kind: StateUnavailable}
	case "":
		return StateValue{Kind: StateMissing}
	default:
		return StateValue{Kind: StatePresent, Text: raw}
	}
}

func MissingState() StateValue {
	return StateValue{Kind: StateMissing}
}

func (s StateValue) Present() bool {
	return s.Kind == StatePresent
}

// FloatOr parses the state as a float. Absent, sentinel or unparseable
// states yield def.
func (s StateValue) FloatOr(def float64) float64 {
	if !s.Present() {
		return def
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(s.Text), 64)
	if err != nil {
		return def
	}
	return v
}

// IntOr parses the state as a float and truncates toward zero, so a state
// of "12.7" yields 12. Absent, sentinel or unparseable states yield def.
func (s StateValue) IntOr(def int) int {
	if !s.Present() {
		return def
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(s.Text), 64)
	if err != nil {
		return def
	}
	return int(v)
}

// TextOr returns the raw state text, or def when the state is not present.
func (s StateValue) TextOr(def string) string {
	if !s.Present() {
		return def
	}
	return s.Text
}
