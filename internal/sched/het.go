// internal/sched/het.go

package sched

// workloadCache remembers, per task, the last busy window it was asked
// about and the workload returned for it. Workload never decreases with the
// window, so any query at or below psi[i] may reuse w[i].
type workloadCache struct {
	psi []int
	w   []int
}

func newWorkloadCache(n int) *workloadCache {
	return &workloadCache{psi: make([]int, n), w: make([]int, n)}
}

func (c *workloadCache) store(i, window, w int) int {
	c.psi[i] = window
	c.w[i] = w
	return w
}

type hetRun struct {
	*analysis
	cache *workloadCache
}

// het is the busy-window exact test. For every task the workload of the
// higher-priority tasks within its deadline is computed recursively.
func het(a *analysis) bool {
	r := &hetRun{analysis: a, cache: newWorkloadCache(len(a.tasks))}
	for i, t := range a.tasks {
		a.res[i].Outer++
		w := r.workload(i-1, t.Deadline, i) + t.WCET
		if w > t.Deadline {
			return a.reject(i, w)
		}
		a.accept(i, w)
	}
	return true
}

// workload is the largest amount of work tasks 0..i can demand within a
// window, charged to owner. Either the window ends inside an activation of
// task i, leaving floor(window/t_i) complete periods to the tasks above it,
// or task i runs all ceil(window/t_i) activations in full.
func (r *hetRun) workload(i, window, owner int) int {
	r.res[owner].Inner++
	if i < 0 {
		return 0
	}
	if window <= r.cache.psi[i] {
		return r.cache.w[i]
	}

	ci, ti := r.tasks[i].WCET, r.tasks[i].Period
	f := r.floor(owner, window, ti)
	k := r.ceil(owner, window, ti)

	inside := window - f*(ti-ci) + r.workload(i-1, f*ti, owner)
	full := k*ci + r.workload(i-1, window, owner)
	return r.cache.store(i, window, min(inside, full))
}

// het2 restructures the recursion: it never descends below task 0 and it
// reuses the cached answer of task i-1 directly when the shorter window is
// already covered.
func het2(a *analysis) bool {
	ts := a.tasks
	seed := ts[0].Deadline - ts[0].WCET
	if a.opts.HET2SeedWCET {
		seed = ts[0].WCET
	}
	if !a.acceptFirst(seed) {
		return false
	}

	r := &hetRun{analysis: a, cache: newWorkloadCache(len(ts))}
	for i := 1; i < len(ts); i++ {
		a.res[i].Outer++
		w := r.workload2(i-1, ts[i].Deadline, i) + ts[i].WCET
		if w > ts[i].Deadline {
			return a.reject(i, w)
		}
		a.accept(i, w)
	}
	return true
}

func (r *hetRun) workload2(i, window, owner int) int {
	r.res[owner].Inner++

	ci, ti := r.tasks[i].WCET, r.tasks[i].Period
	f := r.floor(owner, window, ti)
	k := r.ceil(owner, window, ti)

	inside := window - f*(ti-ci)
	full := k * ci
	if i > 0 {
		lw := r.cache.w[i-1]
		if shorter := f * ti; shorter > r.cache.psi[i-1] {
			lw = r.workload2(i-1, shorter, owner)
		}
		inside += lw
		full += r.workload2(i-1, window, owner)
	}
	return r.cache.store(i, window, min(inside, full))
}
