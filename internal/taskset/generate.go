package taskset

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"slices"

	"wcrt/internal/sched"
)

// Params describe one group of synthetic task sets.
type Params struct {
	Sets        int     // number of sets to draw
	Tasks       int     // tasks per set
	Utilization float64 // target total utilization
	PeriodMin   int
	PeriodMax   int
	// Constrained draws every deadline uniformly in [c, t] instead of d = t.
	Constrained bool
}

// DefaultParams matches the sets the benchmarks were usually run with.
func DefaultParams() Params {
	return Params{
		Sets:        100,
		Tasks:       10,
		Utilization: 0.8,
		PeriodMin:   10,
		PeriodMax:   10000,
	}
}

// Group is the label generated sets carry, e.g. "n10-u0.80-p10-10000".
func (p Params) Group() string {
	return fmt.Sprintf("n%d-u%.2f-p%d-%d", p.Tasks, p.Utilization, p.PeriodMin, p.PeriodMax)
}

func (p Params) validate() error {
	switch {
	case p.Sets <= 0:
		return errors.New("sets must be positive")
	case p.Tasks <= 0:
		return errors.New("tasks must be positive")
	case p.Utilization <= 0 || p.Utilization > 1:
		return fmt.Errorf("utilization %.3f outside (0, 1]", p.Utilization)
	case p.PeriodMin <= 0 || p.PeriodMax < p.PeriodMin:
		return fmt.Errorf("bad period range [%d, %d]", p.PeriodMin, p.PeriodMax)
	}
	return nil
}

// Generate draws p.Sets task sets in rate-monotonic order. Utilizations come
// from UUniFast, periods are log-uniform in [PeriodMin, PeriodMax] and every
// wcet is at least 1.
func Generate(p Params, rng *rand.Rand) ([]Set, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}

	group := p.Group()
	sets := make([]Set, p.Sets)
	for i := range sets {
		sets[i] = Set{ID: i + 1, Group: group, Tasks: draw(p, rng)}
	}
	return sets, nil
}

func draw(p Params, rng *rand.Rand) sched.TaskSet {
	lo, hi := math.Log(float64(p.PeriodMin)), math.Log(float64(p.PeriodMax+1))

	ts := make(sched.TaskSet, p.Tasks)
	for i, u := range uunifast(p.Tasks, p.Utilization, rng) {
		t := min(p.PeriodMax, int(math.Exp(lo+(hi-lo)*rng.Float64())))
		c := min(t, max(1, int(math.Round(u*float64(t)))))
		d := t
		if p.Constrained && c < t {
			d = c + rng.IntN(t-c+1)
		}
		ts[i] = sched.Task{WCET: c, Period: t, Deadline: d}
	}

	slices.SortStableFunc(ts, func(a, b sched.Task) int { return a.Period - b.Period })
	ts.Renumber()
	return ts
}

// uunifast splits total into n utilizations uniformly over the simplex.
func uunifast(n int, total float64, rng *rand.Rand) []float64 {
	us := make([]float64, n)
	sum := total
	for i := 0; i < n-1; i++ {
		next := sum * math.Pow(rng.Float64(), 1/float64(n-1-i))
		us[i] = sum - next
		sum = next
	}
	us[n-1] = sum
	return us
}
