/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package conflict

import (
	"fmt"
	"strings"
)

// Outcome records what happened to one group during Apply. Result is the
// category that received answers: the new name for a rename, the existing
// name for an overwrite, and empty for a skip.
type Outcome struct {
	Group  int    `json:"group"`
	Name   string `json:"name"`
	Kind   Kind   `json:"action"`
	Result string `json:"result,omitempty"`
}

// Summary counts the groups processed by Apply.
type Summary struct {
	Skipped     int       `json:"skipped"`
	Renamed     int       `json:"renamed"`
	Overwritten int       `json:"overwritten"`
	Outcomes    []Outcome `json:"outcomes,omitempty"`
}

// Committed is the number of groups that changed the store.
func (s Summary) Committed() int {
	return s.Renamed + s.Overwritten
}

// Processed is the number of groups Apply got through.
func (s Summary) Processed() int {
	return s.Skipped + s.Renamed + s.Overwritten
}

func (s Summary) String() string {
	var b strings.Builder

	b.WriteString("Categories processed:\n")
	fmt.Fprintf(&b, "  - Skipped: %d\n", s.Skipped)
	fmt.Fprintf(&b, "  - Renamed: %d\n", s.Renamed)
	fmt.Fprintf(&b, "  - Overwritten: %d\n", s.Overwritten)

	for _, o := range s.Outcomes {
		switch o.Kind {
		case Rename:
			fmt.Fprintf(&b, "  %q imported as %q\n", o.Name, o.Result)
		case Overwrite:
			fmt.Fprintf(&b, "  %q overwritten\n", o.Name)
		}
	}

	return b.String()
}
