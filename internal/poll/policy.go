package poll

import (
	"fmt"
	"strings"
)

// FailurePolicy decides what a cycle does when some of its fetches fail.
type FailurePolicy int

const (
	// Degrade replaces each failed collection with an empty, error-carrying
	// Result and applies the snapshot anyway.
	Degrade FailurePolicy = iota
	// Abort keeps the previous snapshot when any fetch fails and returns the
	// joined fetch errors from Refresh.
	Abort
)

func (p FailurePolicy) String() string {
	switch p {
	case Abort:
		return "abort"
	default:
		return "degrade"
	}
}

// ParseFailurePolicy maps "degrade" or "abort". Empty means Degrade.
func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "degrade":
		return Degrade, nil
	case "abort":
		return Abort, nil
	}
	return Degrade, fmt.Errorf("unknown fetch failure policy %q", s)
}

// OverlapPolicy decides what happens when a refresh is requested while a
// cycle is still in flight.
type OverlapPolicy int

const (
	// Coalesce folds requests made during a cycle into a single follow-up
	// cycle that starts once the current one settles. Callers return after
	// a cycle that began after their request.
	Coalesce OverlapPolicy = iota
	// LastWriteWins runs every request as its own concurrent cycle; whichever
	// settles last is what the store holds.
	LastWriteWins
)

func (p OverlapPolicy) String() string {
	switch p {
	case LastWriteWins:
		return "last-write-wins"
	default:
		return "coalesce"
	}
}

// ParseOverlapPolicy maps "coalesce" or "last-write-wins". Empty means Coalesce.
func ParseOverlapPolicy(s string) (OverlapPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "coalesce":
		return Coalesce, nil
	case "last-write-wins", "lww":
		return LastWriteWins, nil
	}
	return Coalesce, fmt.Errorf("unknown refresh overlap policy %q", s)
}
