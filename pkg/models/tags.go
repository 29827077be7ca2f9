package models

import (
	"strconv"
	"strings"
)

// TagValue is one raw embedded tag value: either text or a list of numbers.
// GPS positions arrive as three numbers (degrees, minutes, seconds).
type TagValue struct {
	Text    string
	Numbers []float64
}

// TextValue wraps a string tag value
func TextValue(s string) TagValue {
	return TagValue{Text: s}
}

// NumberValue wraps one or more numeric tag values
func NumberValue(values ...float64) TagValue {
	return TagValue{Numbers: values}
}

// IsEmpty reports whether the value carries no information: empty text,
// no numbers, or a single zero.
func (v TagValue) IsEmpty() bool {
	if v.Text != "" {
		return false
	}
	switch len(v.Numbers) {
	case 0:
		return true
	case 1:
		return v.Numbers[0] == 0
	default:
		return false
	}
}

// String renders text as-is and numbers comma-joined in shortest form
func (v TagValue) String() string {
	if v.Text != "" || len(v.Numbers) == 0 {
		return v.Text
	}
	parts := make([]string, len(v.Numbers))
	for i, n := range v.Numbers {
		parts[i] = strconv.FormatFloat(n, 'f', -1, 64)
	}
	return strings.Join(parts, ",")
}

// Triple returns the value as a degrees/minutes/seconds triple
func (v TagValue) Triple() ([3]float64, bool) {
	var out [3]float64
	if len(v.Numbers) != 3 {
		return out, false
	}
	copy(out[:], v.Numbers)
	return out, true
}

// Tag is a named raw tag
type Tag struct {
	Name  string
	Value TagValue
}

// TagSet is the ordered collection of tags read from one file
type TagSet []Tag

// Lookup returns the value of the named tag
func (s TagSet) Lookup(name string) (TagValue, bool) {
	for _, t := range s {
		if t.Name == name {
			return t.Value, true
		}
	}
	return TagValue{}, false
}
