// internal/sched/rta4.go

package sched

import "math"

// rta4Run is RTA3 with two refinements. The ceiling operand is rewritten
// from tr/t_j to (tr-a_j)/(t_j-c_j), which jumps straight to the smallest
// activation count that absorbs the rest of the estimate and keeps the
// operands small. The outer loop runs only while the estimate exceeds the
// smallest validity bound among the higher-priority tasks.
type rta4Run struct {
	*analysis
	s *contributions
}

func rta4(a *analysis) bool {
	ts := a.tasks
	if !a.acceptFirst(ts[0].WCET) {
		return false
	}
	r := &rta4Run{analysis: a, s: newContributions(ts)}

	tr := ts[0].WCET
	minB := r.s.b[0]
	for i := 1; i < len(ts); i++ {
		st := &a.res[i]
		tr += ts[i].WCET

		var ok bool
		if a.opts.RTA4NoMinValidity {
			for {
				st.Outer++
				prev := tr
				if tr, _, ok = r.scan(i, tr); !ok {
					return false
				}
				if tr == prev {
					break
				}
			}
		} else {
			for tr > minB {
				st.Outer++
				if tr, minB, ok = r.scan(i, tr); !ok {
					return false
				}
			}
		}

		if tr > ts[i].Deadline {
			return a.reject(i, tr)
		}
		a.accept(i, tr)

		// task i interferes with everything below it from now on, with its
		// untouched bound b[i] == t_i
		minB = min(minB, r.s.b[i])
	}
	return true
}

// scan visits the higher-priority tasks of i from the closest one upwards,
// refreshing every stale contribution. It returns the new estimate and the
// smallest validity bound seen.
func (r *rta4Run) scan(i, tr int) (int, int, bool) {
	st := &r.res[i]
	di := r.tasks[i].Deadline
	minB := math.MaxInt

	for j := i - 1; j >= 0; j-- {
		st.Inner++
		if tr > r.s.b[j] {
			tr = r.refresh(i, j, tr)
			if r.opts.RTA4Check == CheckPerUpdate && tr > di {
				return tr, minB, r.reject(i, tr)
			}
		}
		if r.s.b[j] < minB {
			minB = r.s.b[j]
		}
	}
	if r.opts.RTA4Check == CheckAfterScan && tr > di {
		return tr, minB, r.reject(i, tr)
	}
	return tr, minB, true
}

// refresh recomputes the contribution of j to the response time of i.
func (r *rta4Run) refresh(i, j, tr int) int {
	tj := r.tasks[j]

	// a task without slack would divide by zero in the rewritten form
	if r.opts.RTA4RawCeil || tj.Slack() <= 0 {
		k := r.ceil(i, tr, tj.Period)
		aj := k * tj.WCET
		tr += aj - r.s.a[j]
		r.s.a[j] = aj
		r.s.b[j] = k * tj.Period
		return tr
	}

	rest := tr - r.s.a[j]
	k := r.ceil(i, rest, tj.Slack())
	r.s.a[j] = k * tj.WCET
	r.s.b[j] = k * tj.Period
	return r.s.a[j] + rest
}
