// Package bench collects job outcomes into CSV rows and per-utilization
// summaries.
package bench

import (
	"context"
	"encoding/csv"
	"io"
	"log/slog"
	"math"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/emirpasic/gods/trees/redblacktree"
	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"

	"wcrt/internal/job"
	"wcrt/internal/sched"
)

// BucketWidth is the utilization step summaries are grouped by.
const BucketWidth = 0.05

// Producer runs jobs and hands every outcome to emit.
type Producer func(ctx context.Context, emit func(job.Outcome)) error

// Bench consumes outcomes from a producer and aggregates them.
type Bench struct {
	RunID uuid.UUID

	mu       sync.Mutex         // protects the aggregates below
	mode     sched.ReportMode   // detail writes one CSV row per task
	tree     *redblacktree.Tree // summaries ordered by bucket and method
	events   chan Event
	sets     int
	rejected int
	mismatch int

	// CSV output
	csvFile   *os.File
	csvWriter *csv.Writer
	csvErr    error
}

// New creates a Bench with a fresh run id.
func New(mode sched.ReportMode) *Bench {
	if mode != sched.ReportTotal {
		mode = sched.ReportDetail
	}
	return &Bench{
		RunID:  uuid.New(),
		mode:   mode,
		tree:   redblacktree.NewWith(cmp),
		events: make(chan Event, 256),
	}
}

// EnableCSV creates path and writes every row to it. Must be called before
// Run.
func (b *Bench) EnableCSV(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	b.csvFile = f
	return b.SetCSVOutput(f)
}

// SetCSVOutput writes rows to w instead of a file and emits the header.
func (b *Bench) SetCSVOutput(w io.Writer) error {
	b.csvWriter = csv.NewWriter(w)
	if err := b.csvWriter.Write(header(b.mode)); err != nil {
		return err
	}
	b.csvWriter.Flush()
	return b.csvWriter.Error()
}

func header(mode sched.ReportMode) []string {
	h := []string{"run_id", "set", "group", "tasks", "utilization", "method_id", "method", "sched", "usecs"}
	if mode == sched.ReportDetail {
		h = append(h, "task", "status", "wcrt", "exceeded")
	}
	return append(h, "cc", "outer", "inner")
}

// Run starts produce and consumes its outcomes until it returns. The CSV
// output, if any, is flushed and closed afterwards.
func (b *Bench) Run(ctx context.Context, produce Producer) error {
	var perr error
	go func() {
		defer close(b.events)
		perr = produce(ctx, b.emit)
	}()

	for ev := range b.events {
		b.handleEvent(ev)
	}

	var result *multierror.Error
	if perr != nil {
		result = multierror.Append(result, perr)
	}
	if b.csvWriter != nil {
		b.csvWriter.Flush()
		if err := b.csvWriter.Error(); err != nil && b.csvErr == nil {
			b.csvErr = err
		}
		if b.csvErr != nil {
			result = multierror.Append(result, b.csvErr)
		}
	}
	if b.csvFile != nil {
		if err := b.csvFile.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

func (b *Bench) emit(o job.Outcome) {
	b.events <- eventFor(o)
}

func (b *Bench) handleEvent(ev Event) {
	o := ev.Outcome
	log := slog.With("set", o.Job.ID, "group", o.Job.Group)

	b.mu.Lock()
	defer b.mu.Unlock()

	switch ev.Kind {
	case EventRejected:
		b.rejected++
		log.Warn("task set rejected", "err", o.Err)
		return
	case EventMismatch:
		b.mismatch++
		log.Warn("methods disagree", "err", o.Mismatch)
	default:
		log.Debug("task set analysed", "schedulable", o.Schedulable())
	}
	b.sets++

	u := o.Job.Set.Utilization()
	for _, run := range o.Runs {
		b.fold(u, run)
		if b.csvWriter != nil && b.csvErr == nil {
			b.csvErr = b.writeRows(o, u, run)
		}
	}
}

func (b *Bench) fold(u float64, run job.MethodRun) {
	key := nodeKey{bucket: bucket(u), method: run.Method}
	var s *Summary
	if v, ok := b.tree.Get(key); ok {
		s = v.(*Summary)
	} else {
		s = &Summary{Bucket: key.bucket, Method: key.method}
		b.tree.Put(key, s)
	}

	s.Sets++
	if run.Schedulable {
		s.Schedulable++
	}
	s.Elapsed += run.Elapsed
	s.MaxElapsed = max(s.MaxElapsed, run.Elapsed)
	tot := run.Totals()
	s.Divisions += int64(tot.Divisions)
	s.Outer += int64(tot.Outer)
	s.Inner += int64(tot.Inner)
}

func (b *Bench) writeRows(o job.Outcome, u float64, run job.MethodRun) error {
	prefix := []string{
		b.RunID.String(),
		strconv.Itoa(o.Job.ID),
		o.Job.Group,
		strconv.Itoa(len(o.Job.Set)),
		strconv.FormatFloat(u, 'f', 4, 64),
		strconv.Itoa(int(run.Method)),
		run.Method.String(),
		boolInt(run.Schedulable),
		strconv.FormatInt(run.Elapsed.Microseconds(), 10),
	}

	if b.mode == sched.ReportTotal {
		tot := run.Totals()
		rec := append(prefix, counters(tot)...)
		return b.csvWriter.Write(rec)
	}

	for _, t := range run.Tasks {
		// wcrt is blank unless the task was accepted, exceeded unless it failed
		var wcrt, exceeded string
		switch t.Status {
		case sched.Schedulable:
			wcrt = strconv.Itoa(t.WCRT)
		case sched.Unschedulable:
			exceeded = strconv.Itoa(t.Exceeded)
		}
		rec := append(append([]string{}, prefix...),
			strconv.Itoa(t.ID),
			t.Status.String(),
			wcrt,
			exceeded,
		)
		if err := b.csvWriter.Write(append(rec, counters(t.Counters)...)); err != nil {
			return err
		}
	}
	return nil
}

func counters(c sched.Counters) []string {
	return []string{strconv.Itoa(c.Divisions), strconv.Itoa(c.Outer), strconv.Itoa(c.Inner)}
}

func boolInt(v bool) string {
	if v {
		return "1"
	}
	return "0"
}

// Counts returns how many sets were analysed, rejected, and analysed with
// disagreeing verdicts.
func (b *Bench) Counts() (sets, rejected, mismatches int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sets, b.rejected, b.mismatch
}

// Summary aggregates one method over the sets of one utilization bucket.
type Summary struct {
	Bucket      float64
	Method      sched.Method
	Sets        int
	Schedulable int
	Elapsed     time.Duration
	MaxElapsed  time.Duration
	Divisions   int64
	Outer       int64
	Inner       int64
}

// MeanElapsed is the mean wall time per set.
func (s Summary) MeanElapsed() time.Duration {
	if s.Sets == 0 {
		return 0
	}
	return s.Elapsed / time.Duration(s.Sets)
}

// Ratio is the share of schedulable sets.
func (s Summary) Ratio() float64 {
	if s.Sets == 0 {
		return 0
	}
	return float64(s.Schedulable) / float64(s.Sets)
}

// Summaries returns every summary ordered by bucket, then method.
func (b *Bench) Summaries() []Summary {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]Summary, 0, b.tree.Size())
	it := b.tree.Iterator()
	for it.Next() {
		out = append(out, *it.Value().(*Summary))
	}
	return out
}

func bucket(u float64) float64 {
	return math.Round(u/BucketWidth) * BucketWidth
}

// nodeKey is used as a key in the red-black tree.
type nodeKey struct {
	bucket float64
	method sched.Method
}

// cmp orders keys by bucket, then method.
func cmp(a, b any) int {
	ka, kb := a.(nodeKey), b.(nodeKey)
	switch {
	case ka.bucket < kb.bucket:
		return -1
	case ka.bucket > kb.bucket:
		return 1
	case ka.method < kb.method:
		return -1
	case ka.method > kb.method:
		return 1
	default:
		return 0
	}
}
