package sched

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var rtaFamily = []Method{RTA, RTA2, RTA3, RTA4}

func scenarioA() TaskSet { return NewTaskSet([3]int{1, 4, 4}, [3]int{2, 5, 5}, [3]int{2, 10, 10}) }
func scenarioB() TaskSet { return NewTaskSet([3]int{6, 10, 10}, [3]int{6, 10, 10}) }

func TestScenarioASchedulable(t *testing.T) {
	results, err := AnalyzeAll(scenarioA(), AllMethods, Options{})
	require.NoError(t, err)
	require.NoError(t, Agree(results))

	for _, r := range results {
		assert.True(t, r.Schedulable, r.Method.String())
		if r.Method == HET || r.Method == HET2 {
			continue
		}
		assert.Equal(t, []int{1, 3, 8}, r.WCRTs(), r.Method.String())
	}
}

func TestScenarioABusyWindowBounds(t *testing.T) {
	r, err := Analyze(scenarioA(), HET, Options{})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 4, 9}, r.WCRTs())

	r, err = Analyze(scenarioA(), HET2, Options{})
	require.NoError(t, err)
	assert.Equal(t, []int{3, 4, 9}, r.WCRTs(), "first task is seeded with d - c")

	r, err = Analyze(scenarioA(), HET2, Options{HET2SeedWCET: true})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 4, 9}, r.WCRTs())
}

func TestScenarioBUnschedulable(t *testing.T) {
	for _, m := range AllMethods {
		r, err := Analyze(scenarioB(), m, Options{})
		require.NoError(t, err)
		assert.False(t, r.Schedulable, m.String())
		assert.Equal(t, Schedulable, r.Tasks[0].Status, m.String())
		assert.Equal(t, Unschedulable, r.Tasks[1].Status, m.String())
		assert.Zero(t, r.Tasks[1].WCRT, m.String())
	}

	for _, m := range rtaFamily {
		r, err := Analyze(scenarioB(), m, Options{})
		require.NoError(t, err)
		assert.Equal(t, 6, r.Tasks[0].WCRT, m.String())
		assert.Equal(t, 18, r.Tasks[1].Exceeded, m.String())
	}
}

func TestOperationCounts(t *testing.T) {
	want := map[Method]Counters{
		RTA:  {Divisions: 7, Outer: 4, Inner: 7},
		RTA2: {Divisions: 5, Outer: 3, Inner: 5},
		RTA3: {Divisions: 2, Outer: 4, Inner: 7},
		RTA4: {Divisions: 2, Outer: 2, Inner: 4},
		HET:  {Divisions: 6, Outer: 3, Inner: 9},
		HET2: {Divisions: 8, Outer: 2, Inner: 4},
	}
	for m, c := range want {
		r, err := Analyze(scenarioA(), m, Options{})
		require.NoError(t, err)
		assert.Equal(t, c, r.Totals(), m.String())
	}

	rta, _ := Analyze(scenarioA(), RTA, Options{})
	for _, m := range []Method{RTA3, RTA4} {
		r, _ := Analyze(scenarioA(), m, Options{})
		assert.Less(t, r.Totals().Divisions, rta.Totals().Divisions, m.String())
	}
}

func TestPerTaskCounters(t *testing.T) {
	r, err := Analyze(scenarioA(), RTA, Options{})
	require.NoError(t, err)

	assert.Equal(t, Counters{}, r.Tasks[0].Counters)
	assert.Equal(t, Counters{Divisions: 1, Outer: 1, Inner: 1}, r.Tasks[1].Counters)
	assert.Equal(t, Counters{Divisions: 6, Outer: 3, Inner: 6}, r.Tasks[2].Counters)
}

func TestSingleTask(t *testing.T) {
	ts := NewTaskSet([3]int{3, 10, 8})
	for _, m := range AllMethods {
		r, err := Analyze(ts, m, Options{HET2SeedWCET: true})
		require.NoError(t, err)
		assert.True(t, r.Schedulable, m.String())
		assert.Equal(t, []int{3}, r.WCRTs(), m.String())
	}

	r, err := Analyze(ts, HET2, Options{})
	require.NoError(t, err)
	assert.True(t, r.Schedulable)
	assert.Equal(t, 5, r.Tasks[0].WCRT)
}

func TestFirstTaskOverDeadline(t *testing.T) {
	ts := NewTaskSet([3]int{5, 10, 4}, [3]int{1, 20, 20})
	for _, m := range AllMethods {
		r, err := Analyze(ts, m, Options{})
		require.NoError(t, err)
		assert.False(t, r.Schedulable, m.String())
		assert.Equal(t, Unschedulable, r.Tasks[0].Status, m.String())
		assert.Equal(t, NotAnalyzed, r.Tasks[1].Status, m.String())
	}
}

func TestEarlyTermination(t *testing.T) {
	ts := NewTaskSet(
		[3]int{2, 5, 5},
		[3]int{4, 7, 7},
		[3]int{1, 100, 100},
		[3]int{1, 200, 200},
	)
	for _, m := range AllMethods {
		r, err := Analyze(ts, m, Options{})
		require.NoError(t, err)
		require.False(t, r.Schedulable, m.String())

		failed, ok := r.Failed()
		require.True(t, ok, m.String())
		assert.Equal(t, 2, failed.ID, m.String())
		for _, tr := range r.Tasks[2:] {
			assert.Equal(t, NotAnalyzed, tr.Status, m.String())
			assert.False(t, tr.Analyzed(), m.String())
			assert.Zero(t, tr.WCRT, m.String())
			assert.Equal(t, Counters{}, tr.Counters, m.String())
		}
	}
}

func TestIdempotent(t *testing.T) {
	ts := NewTaskSet(
		[3]int{1, 7, 7},
		[3]int{2, 11, 11},
		[3]int{3, 17, 17},
		[3]int{4, 31, 31},
	)
	for _, m := range AllMethods {
		first, err := Analyze(ts, m, Options{})
		require.NoError(t, err)
		second, err := Analyze(ts, m, Options{})
		require.NoError(t, err)
		if diff := cmp.Diff(first, second); diff != "" {
			t.Errorf("%s: rerun differs (-first +second):\n%s", m, diff)
		}
	}
}

func TestAnalyzeAllDoesNotLeakScratch(t *testing.T) {
	ts := NewTaskSet(
		[3]int{1, 4, 4},
		[3]int{1, 6, 6},
		[3]int{2, 13, 13},
		[3]int{2, 20, 20},
	)
	all, err := AnalyzeAll(ts, []Method{RTA3, RTA4, RTA2, HET, HET2, RTA}, Options{})
	require.NoError(t, err)
	for _, got := range all {
		alone, err := Analyze(ts, got.Method, Options{})
		require.NoError(t, err)
		if diff := cmp.Diff(alone, got); diff != "" {
			t.Errorf("%s: result depends on earlier methods (-alone +batched):\n%s", got.Method, diff)
		}
	}
}

func TestRTA4OptionsKeepResponseTimes(t *testing.T) {
	ts := NewTaskSet(
		[3]int{1, 4, 4},
		[3]int{1, 5, 5},
		[3]int{1, 6, 6},
		[3]int{2, 15, 15},
		[3]int{3, 40, 40},
	)
	base, err := Analyze(ts, RTA, Options{})
	require.NoError(t, err)

	for _, opts := range optionGrid() {
		r, err := Analyze(ts, RTA4, opts)
		require.NoError(t, err)
		assert.Equal(t, base.Schedulable, r.Schedulable, "%+v", opts)
		assert.Equal(t, base.WCRTs(), r.WCRTs(), "%+v", opts)
	}
}

func TestRTA4ZeroSlack(t *testing.T) {
	// the first task saturates its own period; the rewritten ceiling would
	// divide by zero
	ts := NewTaskSet([3]int{4, 4, 4}, [3]int{1, 8, 8})
	for _, m := range rtaFamily {
		r, err := Analyze(ts, m, Options{})
		require.NoError(t, err)
		assert.False(t, r.Schedulable, m.String())
	}
}

func TestConvergedEstimateChecked(t *testing.T) {
	// the second task converges on its first estimate without refreshing
	// any contribution, and that estimate is past its deadline
	ts := NewTaskSet([3]int{1, 10, 10}, [3]int{2, 10, 2})
	for _, m := range AllMethods {
		r, err := Analyze(ts, m, Options{})
		require.NoError(t, err)
		assert.False(t, r.Schedulable, m.String())
	}
}

func TestNonRateMonotonicOrder(t *testing.T) {
	// the second task has a shorter period than the first
	ts := NewTaskSet([3]int{1, 10, 10}, [3]int{1, 2, 2}, [3]int{1, 100, 100})
	for _, m := range rtaFamily {
		r, err := Analyze(ts, m, Options{})
		require.NoError(t, err)
		assert.True(t, r.Schedulable, m.String())
		assert.Equal(t, []int{1, 2, 4}, r.WCRTs(), m.String())
	}
}

func TestAnalyzeRejectsInvalidInput(t *testing.T) {
	_, err := Analyze(NewTaskSet([3]int{1, 0, 4}), RTA, Options{})
	assert.ErrorIs(t, err, ErrInvalidTask)

	_, err = Analyze(scenarioA(), Method(42), Options{})
	assert.ErrorIs(t, err, ErrUnknownMethod)

	_, err = AnalyzeAll(scenarioA(), AllMethods, Options{Capacity: 2})
	assert.ErrorIs(t, err, ErrCapacityExceeded)
}

func TestAgree(t *testing.T) {
	assert.NoError(t, Agree(nil))
	err := Agree([]Result{
		{Method: RTA, Schedulable: true},
		{Method: HET, Schedulable: false},
	})
	require.ErrorIs(t, err, ErrDisagreement)
	assert.Contains(t, err.Error(), "HET:false")
}

func optionGrid() []Options {
	var grid []Options
	for _, ceil := range []CeilMode{CeilInteger, CeilFloat} {
		for _, check := range []DeadlineCheck{CheckPerUpdate, CheckAfterScan} {
			for _, raw := range []bool{false, true} {
				for _, noMin := range []bool{false, true} {
					grid = append(grid, Options{
						Ceil:              ceil,
						RTA4Check:         check,
						RTA4RawCeil:       raw,
						RTA4NoMinValidity: noMin,
					})
				}
			}
		}
	}
	return grid
}

func TestCheckedMatchesAnalyze(t *testing.T) {
	_, err := Check(TaskSet{}, Options{})
	assert.ErrorIs(t, err, ErrEmptyTaskSet)

	c, err := Check(scenarioB(), Options{})
	require.NoError(t, err)
	for _, m := range AllMethods {
		want, err := Analyze(scenarioB(), m, Options{})
		require.NoError(t, err)
		got, err := c.Analyze(m)
		require.NoError(t, err)
		assert.Equal(t, want, got, m.String())
	}

	_, err = c.Analyze(Method(9))
	assert.ErrorIs(t, err, ErrUnknownMethod)
}
