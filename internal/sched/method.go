package sched

import (
	"errors"
	"fmt"
	"strings"
)

var ErrUnknownMethod = errors.New("unknown method")

// Method identifies one schedulability analysis. The numeric values are the
// method ids used in reports and must not be reordered.
type Method int

const (
	RTA Method = iota
	RTA2
	RTA3
	RTA4
	HET
	HET2
)

// AllMethods lists every method in id order.
var AllMethods = []Method{RTA, RTA2, RTA3, RTA4, HET, HET2}

func (m Method) String() string {
	switch m {
	case RTA:
		return "RTA"
	case RTA2:
		return "RTA2"
	case RTA3:
		return "RTA3"
	case RTA4:
		return "RTA4"
	case HET:
		return "HET"
	case HET2:
		return "HET2"
	default:
		return "Unknown"
	}
}

// Valid reports whether m is one of the six known methods.
func (m Method) Valid() bool { return m >= RTA && m <= HET2 }

// ParseMethod accepts a method name in any case.
func ParseMethod(s string) (Method, error) {
	for _, m := range AllMethods {
		if strings.EqualFold(strings.TrimSpace(s), m.String()) {
			return m, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownMethod, s)
}

// ParseMethods parses a list of names, dropping duplicates while keeping order.
func ParseMethods(names []string) ([]Method, error) {
	seen := make(map[Method]bool, len(names))
	out := make([]Method, 0, len(names))
	for _, n := range names {
		m, err := ParseMethod(n)
		if err != nil {
			return nil, err
		}
		if seen[m] {
			continue
		}
		seen[m] = true
		out = append(out, m)
	}
	return out, nil
}

func (m Method) MarshalText() ([]byte, error) {
	if !m.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownMethod, int(m))
	}
	return []byte(m.String()), nil
}

func (m *Method) UnmarshalText(b []byte) error {
	v, err := ParseMethod(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// TaskStatus is the per-task outcome of one analysis run.
type TaskStatus int

const (
	NotAnalyzed TaskStatus = iota
	Schedulable
	Unschedulable
)

func (s TaskStatus) String() string {
	switch s {
	case NotAnalyzed:
		return "not analyzed"
	case Schedulable:
		return "schedulable"
	case Unschedulable:
		return "unschedulable"
	default:
		return "unknown"
	}
}

func (s TaskStatus) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *TaskStatus) UnmarshalText(b []byte) error {
	for _, v := range []TaskStatus{NotAnalyzed, Schedulable, Unschedulable} {
		if string(b) == v.String() {
			*s = v
			return nil
		}
	}
	return fmt.Errorf("unknown task status %q", b)
}
