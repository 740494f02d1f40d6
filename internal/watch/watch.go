// Package watch maps an hour of the day to the name of the shipboard watch on duty.
package watch

import (
	"fmt"
	"sort"
	"strings"
)

// Range covers hours [Start, End).
type Range struct {
	Start int    `json:"start"`
	End   int    `json:"end"`
	Name  string `json:"name"`
}

func (r Range) contains(hour int) bool { return hour >= r.Start && hour < r.End }

// Table is an immutable list of watch ranges. It must partition [0,24).
type Table struct {
	ranges []Range
}

// ConfigError reports a malformed watch table or an hour no range covers.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string { return "watch table: " + e.Reason }

// Default returns the traditional table with the dog watch split in two.
func Default() Table {
	return Table{ranges: []Range{
		{Start: 0, End: 4, Name: "middle watch"},
		{Start: 4, End: 8, Name: "morning watch"},
		{Start: 8, End: 12, Name: "forenoon watch"},
		{Start: 12, End: 16, Name: "afternoon watch"},
		{Start: 16, End: 18, Name: "1st dog watch"},
		{Start: 18, End: 20, Name: "last dog watch"},
		{Start: 20, End: 24, Name: "first watch"},
	}}
}

// New builds a table from ranges and validates it.
func New(ranges []Range) (Table, error) {
	t := Table{ranges: append([]Range(nil), ranges...)}
	if err := t.Validate(); err != nil {
		return Table{}, err
	}
	return t, nil
}

// Ranges returns a copy sorted by start hour.
func (t Table) Ranges() []Range {
	out := append([]Range(nil), t.ranges...)
	sort.Slice(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out
}

// For returns the watch on duty at hour.
func (t Table) For(hour int) (string, error) {
	for _, r := range t.ranges {
		if r.contains(hour) {
			return r.Name, nil
		}
	}
	return "", &ConfigError{Reason: fmt.Sprintf("no watch covers hour %d", hour)}
}

// Validate checks that the ranges partition [0,24) without gaps or overlaps.
func (t Table) Validate() error {
	if len(t.ranges) == 0 {
		return &ConfigError{Reason: "no ranges"}
	}
	sorted := t.Ranges()
	next := 0
	for _, r := range sorted {
		if strings.TrimSpace(r.Name) == "" {
			return &ConfigError{Reason: fmt.Sprintf("range %d-%d has no name", r.Start, r.End)}
		}
		if r.Start < 0 || r.End > 24 || r.Start >= r.End {
			return &ConfigError{Reason: fmt.Sprintf("invalid range %d-%d", r.Start, r.End)}
		}
		switch {
		case r.Start > next:
			return &ConfigError{Reason: fmt.Sprintf("gap between hour %d and %d", next, r.Start)}
		case r.Start < next:
			return &ConfigError{Reason: fmt.Sprintf("range %d-%d overlaps previous range", r.Start, r.End)}
		}
		next = r.End
	}
	if next != 24 {
		return &ConfigError{Reason: fmt.Sprintf("gap between hour %d and 24", next)}
	}
	return nil
}
