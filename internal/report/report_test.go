package report

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wcrt/internal/bench"
	"wcrt/internal/job"
	"wcrt/internal/sched"
)

func init() {
	color.NoColor = true
}

func scenarioB(t *testing.T) job.Outcome {
	t.Helper()
	cfg := sched.DefaultConfig()
	cfg.Methods = []string{"RTA", "RTA4"}
	return job.NewRunner(cfg).Run(job.Job{
		ID:    5,
		Group: "demo",
		Set:   sched.NewTaskSet([3]int{6, 10, 10}, [3]int{6, 10, 10}),
	})
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatTable, f)
	f, err = ParseFormat(" JSON ")
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, f)
	_, err = ParseFormat("xml")
	assert.Error(t, err)
}

func TestFromOutcome(t *testing.T) {
	o := scenarioB(t)

	detail := FromOutcome(o, sched.ReportDetail)
	assert.Equal(t, 5, detail.ID)
	assert.Equal(t, 2, detail.Tasks)
	assert.InDelta(t, 1.2, detail.Utilization, 1e-9)
	assert.False(t, detail.Schedulable)
	require.Len(t, detail.Methods, 2)
	assert.Len(t, detail.Methods[0].Tasks, 2)

	assert.Equal(t, 2, detail.Methods[0].FailedTask)

	total := FromOutcome(o, sched.ReportTotal)
	assert.Nil(t, total.Methods[0].Tasks)
	assert.Equal(t, 2, total.Methods[0].FailedTask)
	assert.Equal(t, o.Runs[1].Totals(), total.Methods[1].Totals)
}

func TestFromRejectedOutcome(t *testing.T) {
	r := FromOutcome(job.Outcome{Job: job.Job{ID: 9}, Err: sched.ErrEmptyTaskSet}, sched.ReportDetail)
	assert.Equal(t, sched.ErrEmptyTaskSet.Error(), r.Error)
	assert.Empty(t, r.Methods)
}

func TestJSONShape(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, FromOutcome(scenarioB(t), sched.ReportDetail)))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	methods := decoded["methods"].([]any)
	first := methods[0].(map[string]any)
	assert.Equal(t, "RTA", first["method"])
	assert.Equal(t, false, first["schedulable"])

	tasks := first["tasks"].([]any)
	second := tasks[1].(map[string]any)
	assert.Equal(t, "unschedulable", second["status"])
	assert.EqualValues(t, 18, second["exceeded"])
}

func TestWriteSetDetail(t *testing.T) {
	var buf bytes.Buffer
	WriteSet(&buf, FromOutcome(scenarioB(t), sched.ReportDetail))

	out := buf.String()
	assert.Contains(t, out, "set 5: 2 tasks")
	assert.Contains(t, out, "[demo]")
	assert.Contains(t, out, "RTA4")
	assert.Contains(t, out, ">18")
	assert.Contains(t, out, "unschedulable")
}

func TestWriteSetTotalAndError(t *testing.T) {
	var buf bytes.Buffer
	WriteSet(&buf, FromOutcome(scenarioB(t), sched.ReportTotal))
	assert.Contains(t, buf.String(), "Verdict")
	assert.Contains(t, buf.String(), "unschedulable (task 2)")

	buf.Reset()
	WriteSet(&buf, SetReport{ID: 3, Error: "empty task set"})
	assert.Contains(t, buf.String(), "empty task set")

	buf.Reset()
	r := FromOutcome(scenarioB(t), sched.ReportTotal)
	r.Mismatch = "RTA:true HET:false"
	WriteSet(&buf, r)
	assert.Contains(t, buf.String(), "warning: RTA:true HET:false")
}

func TestWriteSummary(t *testing.T) {
	var buf bytes.Buffer
	WriteSummary(&buf, []bench.Summary{
		{Bucket: 0.65, Method: sched.RTA, Sets: 4, Schedulable: 3, Elapsed: 8 * time.Microsecond, MaxElapsed: 3 * time.Microsecond},
		{Bucket: 0.65, Method: sched.HET, Sets: 4, Schedulable: 2},
	})

	out := buf.String()
	assert.Contains(t, out, "0.65")
	assert.Contains(t, out, "75.0%")
	assert.Contains(t, out, "HET")
}

func TestWriteSetNotAnalyzedTasks(t *testing.T) {
	cfg := sched.DefaultConfig()
	cfg.Methods = []string{"RTA"}
	o := job.NewRunner(cfg).Run(job.Job{
		ID:  6,
		Set: sched.NewTaskSet([3]int{6, 10, 10}, [3]int{6, 10, 10}, [3]int{1, 100, 100}),
	})

	var buf bytes.Buffer
	WriteSet(&buf, FromOutcome(o, sched.ReportDetail))
	out := buf.String()
	assert.Contains(t, out, "not analyzed")
	assert.Contains(t, out, ">18")
	assert.Contains(t, out, " - ")
}
