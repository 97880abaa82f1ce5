package engine

import (
	"strconv"
	"strings"
)

// Predicate is a pure two-argument comparator over trimmed cell values,
// registered by reference in calls to RA.Select.
type Predicate func(cell string, param string) bool

// Equals reports trimmed textual equality.
func Equals(cell, param string) bool {
	return trim(cell) == trim(param)
}

// LessThan reports numeric '<' on the trimmed values. Non-numeric values
// compare as false in both directions, matching the source's silent
// coercion-failure behaviour.
func LessThan(cell, param string) bool {
	a, aok := asNumber(trim(cell))
	b, bok := asNumber(trim(param))
	if !aok || !bok {
		return false
	}
	return a < b
}

// AnyOf reports whether the trimmed cell equals any trimmed element of a
// semicolon-separated list given as param.
func AnyOf(cell, list string) bool {
	c := trim(cell)
	for _, item := range splitParams(list) {
		if trim(item) == c {
			return true
		}
	}
	return false
}

func trim(s string) string {
	return strings.TrimSpace(s)
}

func asNumber(s string) (float64, bool) {
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// splitParams splits a trigger parameters string on ';'.
func splitParams(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ";")
}
