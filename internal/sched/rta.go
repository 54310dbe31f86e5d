// internal/sched/rta.go

package sched

// contributions is the per-run cache of the RTA family. For every
// higher-priority task j, a[j] is its last computed interference ceil(x/t)*c
// and b[j] is ceil(x/t)*t, the estimate up to which a[j] stays exact.
type contributions struct {
	a []int
	b []int
}

func newContributions(ts TaskSet) *contributions {
	c := &contributions{a: make([]int, len(ts)), b: make([]int, len(ts))}
	for j, t := range ts {
		c.a[j] = t.WCET
		c.b[j] = t.Period
	}
	return c
}

// rta is the classical response time analysis: every iteration recomputes the
// whole interference sum.
func rta(a *analysis) bool {
	ts := a.tasks
	if !a.acceptFirst(ts[0].WCET) {
		return false
	}

	t := ts[0].WCET
	for i := 1; i < len(ts); i++ {
		ci, di := ts[i].WCET, ts[i].Deadline
		st := &a.res[i]

		// the previous response time plus c_i is a lower bound for this one
		tr := t + ci
		for {
			st.Outer++
			t = tr
			w := ci
			for j := 0; j < i; j++ {
				st.Inner++
				w += a.ceil(i, tr, ts[j].Period) * ts[j].WCET
				if w > di {
					return a.reject(i, w)
				}
			}
			tr = w
			if t == tr {
				break
			}
		}
		a.accept(i, t)
	}
	return true
}

// rta2 keeps the last contribution of every higher-priority task and only
// adds the increase to the estimate.
func rta2(a *analysis) bool {
	ts := a.tasks
	if !a.acceptFirst(ts[0].WCET) {
		return false
	}
	s := newContributions(ts)

	t := ts[0].WCET
	for i := 1; i < len(ts); i++ {
		ci, di := ts[i].WCET, ts[i].Deadline
		st := &a.res[i]

		tr := t + ci
		for {
			st.Outer++
			t = tr
			for j := 0; j < i; j++ {
				st.Inner++
				aj := a.ceil(i, tr, ts[j].Period) * ts[j].WCET
				// contributions never shrink as tr grows
				if aj > s.a[j] {
					tr += aj - s.a[j]
					s.a[j] = aj
					if tr > di {
						return a.reject(i, tr)
					}
				}
			}
			if t == tr {
				break
			}
		}
		if t > di {
			return a.reject(i, t)
		}
		a.accept(i, t)
	}
	return true
}

// rta3 adds the validity bound: a higher-priority task whose b[j] has not
// been passed by the estimate is skipped without a division. The scan runs
// from the closest higher priority upwards.
func rta3(a *analysis) bool {
	ts := a.tasks
	if !a.acceptFirst(ts[0].WCET) {
		return false
	}
	s := newContributions(ts)

	t := ts[0].WCET
	for i := 1; i < len(ts); i++ {
		ci, di := ts[i].WCET, ts[i].Deadline
		st := &a.res[i]

		tr := t + ci
		for {
			st.Outer++
			t = tr
			for j := i - 1; j >= 0; j-- {
				st.Inner++
				if tr <= s.b[j] {
					continue
				}
				k := a.ceil(i, tr, ts[j].Period)
				aj := k * ts[j].WCET
				tr += aj - s.a[j]
				s.a[j] = aj
				s.b[j] = k * ts[j].Period
				if tr > di {
					return a.reject(i, tr)
				}
			}
			if t == tr {
				break
			}
		}
		if t > di {
			return a.reject(i, t)
		}
		a.accept(i, t)
	}
	return true
}
