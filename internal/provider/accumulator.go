package provider

import "strings"

// Accumulator collects the deltas of one stream. It is append-only and
// owned by a single consumer; it is not safe for concurrent use.
type Accumulator struct {
	b     strings.Builder
	count int
}

// Append adds delta and returns the cumulative text.
func (a *Accumulator) Append(delta string) string {
	a.b.WriteString(delta)
	a.count++
	return a.b.String()
}

// String returns the text accumulated so far.
func (a *Accumulator) String() string { return a.b.String() }

// Deltas returns the number of deltas appended.
func (a *Accumulator) Deltas() int { return a.count }
