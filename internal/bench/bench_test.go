package bench

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wcrt/internal/job"
	"wcrt/internal/sched"
)

func outcomes(t *testing.T, methods ...string) []job.Outcome {
	t.Helper()
	cfg := sched.DefaultConfig()
	cfg.Methods = methods
	r := job.NewRunner(cfg)

	return []job.Outcome{
		r.Run(job.Job{ID: 1, Group: "a", Set: sched.NewTaskSet([3]int{1, 4, 4}, [3]int{2, 5, 5}, [3]int{2, 10, 10})}),
		r.Run(job.Job{ID: 2, Group: "a", Set: sched.NewTaskSet([3]int{1, 4, 4}, [3]int{2, 5, 5}, [3]int{2, 9, 7})}),
		r.Run(job.Job{ID: 3, Group: "b", Set: sched.NewTaskSet([3]int{1, 10, 10})}),
		r.Run(job.Job{ID: 4, Group: "b", Set: sched.TaskSet{}}),
	}
}

func replay(outs []job.Outcome) Producer {
	return func(_ context.Context, emit func(job.Outcome)) error {
		for _, o := range outs {
			emit(o)
		}
		return nil
	}
}

func readCSV(t *testing.T, buf *bytes.Buffer) [][]string {
	t.Helper()
	recs, err := csv.NewReader(buf).ReadAll()
	require.NoError(t, err)
	return recs
}

func TestTotalRows(t *testing.T) {
	b := New(sched.ReportTotal)
	var buf bytes.Buffer
	require.NoError(t, b.SetCSVOutput(&buf))
	require.NoError(t, b.Run(context.Background(), replay(outcomes(t, "RTA", "RTA4"))))

	recs := readCSV(t, &buf)
	require.Len(t, recs, 1+3*2)
	assert.Equal(t, header(sched.ReportTotal), recs[0])

	first := recs[1]
	assert.Equal(t, b.RunID.String(), first[0])
	assert.Equal(t, []string{"1", "a", "3"}, first[1:4])
	assert.Equal(t, []string{"0", "RTA", "1"}, first[5:8])
	// scenario A totals for RTA
	assert.Equal(t, []string{"7", "4", "7"}, first[9:])

	sets, rejected, mismatches := b.Counts()
	assert.Equal(t, 3, sets)
	assert.Equal(t, 1, rejected)
	assert.Zero(t, mismatches)
}

func TestDetailRows(t *testing.T) {
	b := New(sched.ReportDetail)
	var buf bytes.Buffer
	require.NoError(t, b.SetCSVOutput(&buf))
	require.NoError(t, b.Run(context.Background(), replay(outcomes(t, "RTA"))))

	recs := readCSV(t, &buf)
	// one row per task of every accepted set
	require.Len(t, recs, 1+3+3+1)
	assert.Equal(t, []string{"3", "schedulable", "8", "", "6", "3", "6"}, recs[3][9:])

	// the second set fails at its third task
	assert.Equal(t, "0", recs[6][7])
	assert.Equal(t, []string{"3", "unschedulable", ""}, recs[6][9:12])
	assert.NotEmpty(t, recs[6][12])
}

func TestDetailRowsAfterFailure(t *testing.T) {
	cfg := sched.DefaultConfig()
	cfg.Methods = []string{"RTA"}
	o := job.NewRunner(cfg).Run(job.Job{
		ID:  1,
		Set: sched.NewTaskSet([3]int{6, 10, 10}, [3]int{6, 10, 10}, [3]int{1, 100, 100}),
	})

	b := New(sched.ReportDetail)
	var buf bytes.Buffer
	require.NoError(t, b.SetCSVOutput(&buf))
	require.NoError(t, b.Run(context.Background(), replay([]job.Outcome{o})))

	recs := readCSV(t, &buf)
	require.Len(t, recs, 1+3)
	// task, status, wcrt, exceeded, cc, outer, inner
	assert.Equal(t, []string{"1", "schedulable", "6", ""}, recs[1][9:13])
	assert.Equal(t, []string{"2", "unschedulable", "", "18"}, recs[2][9:13])
	assert.Equal(t, []string{"3", "not analyzed", "", "", "0", "0", "0"}, recs[3][9:])
}

func TestSummariesOrdered(t *testing.T) {
	b := New(sched.ReportTotal)
	require.NoError(t, b.Run(context.Background(), replay(outcomes(t, "RTA", "HET"))))

	sums := b.Summaries()
	require.NotEmpty(t, sums)
	for i := 1; i < len(sums); i++ {
		prev, cur := sums[i-1], sums[i]
		assert.True(t, prev.Bucket < cur.Bucket || (prev.Bucket == cur.Bucket && prev.Method < cur.Method))
	}

	var total, ok int
	for _, s := range sums {
		total += s.Sets
		ok += s.Schedulable
		assert.LessOrEqual(t, s.MeanElapsed(), s.MaxElapsed)
	}
	assert.Equal(t, 6, total)
	assert.Equal(t, 4, ok)
}

func TestMismatchCounted(t *testing.T) {
	o := outcomes(t, "RTA")[0]
	o.Mismatch = sched.ErrDisagreement

	b := New(sched.ReportTotal)
	require.NoError(t, b.Run(context.Background(), replay([]job.Outcome{o})))
	sets, _, mismatches := b.Counts()
	assert.Equal(t, 1, sets)
	assert.Equal(t, 1, mismatches)
}

func TestProducerErrorReturned(t *testing.T) {
	boom := errors.New("boom")
	b := New(sched.ReportDetail)
	err := b.Run(context.Background(), func(context.Context, func(job.Outcome)) error { return boom })
	assert.ErrorIs(t, err, boom)
}

func TestEventKinds(t *testing.T) {
	assert.Equal(t, EventRejected, eventFor(job.Outcome{Err: sched.ErrEmptyTaskSet}).Kind)
	assert.Equal(t, EventMismatch, eventFor(job.Outcome{Mismatch: sched.ErrDisagreement}).Kind)
	assert.Equal(t, EventAnalysed, eventFor(job.Outcome{}).Kind)
	assert.Equal(t, "Unknown", EventKind(9).String())
}

func TestBucket(t *testing.T) {
	assert.InDelta(t, 0.65, bucket(0.6571), 1e-9)
	assert.InDelta(t, 0.70, bucket(0.68), 1e-9)
}
