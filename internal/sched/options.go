package sched

import (
	"fmt"
	"math"
)

// CeilMode selects how ceil and floor are computed.
type CeilMode int

const (
	CeilInteger CeilMode = iota // x/y plus a remainder test
	CeilFloat                   // math.Ceil / math.Floor over float64
)

func (c CeilMode) String() string {
	if c == CeilFloat {
		return "float"
	}
	return "int"
}

// ParseCeilMode accepts "int" or "float". An empty string is CeilInteger.
func ParseCeilMode(s string) (CeilMode, error) {
	switch s {
	case "", "int", "integer":
		return CeilInteger, nil
	case "float":
		return CeilFloat, nil
	}
	return 0, fmt.Errorf("unknown ceil mode %q", s)
}

// DeadlineCheck selects where RTA4 compares the estimate with the deadline.
type DeadlineCheck int

const (
	CheckPerUpdate DeadlineCheck = iota // after every refreshed higher-priority task
	CheckAfterScan                      // once per outer iteration
)

func (d DeadlineCheck) String() string {
	if d == CheckAfterScan {
		return "scan"
	}
	return "update"
}

// ParseDeadlineCheck accepts "update" or "scan". An empty string is CheckPerUpdate.
func ParseDeadlineCheck(s string) (DeadlineCheck, error) {
	switch s {
	case "", "update":
		return CheckPerUpdate, nil
	case "scan":
		return CheckAfterScan, nil
	}
	return 0, fmt.Errorf("unknown deadline check %q", s)
}

// Options are the knobs an analysis run honors. None of them changes a
// verdict; they only change how the work is done and therefore the counters.
type Options struct {
	Ceil      CeilMode
	RTA4Check DeadlineCheck

	// RTA4RawCeil makes RTA4 compute ceil(tr/t) instead of ceil((tr-a)/(t-c)).
	RTA4RawCeil bool
	// RTA4NoMinValidity replaces the min-validity loop guard with the
	// classic "estimate changed" test.
	RTA4NoMinValidity bool
	// HET2SeedWCET seeds HET2's highest-priority task with its wcet instead
	// of deadline - wcet.
	HET2SeedWCET bool

	Capacity int // 0 means DefaultCapacity
}

type divider struct {
	mode CeilMode
}

func (d divider) ceil(x, y int) int {
	if d.mode == CeilFloat {
		return int(math.Ceil(float64(x) / float64(y)))
	}
	q := x / y
	if x%y != 0 {
		q++
	}
	return q
}

func (d divider) floor(x, y int) int {
	if d.mode == CeilFloat {
		return int(math.Floor(float64(x) / float64(y)))
	}
	return x / y
}
