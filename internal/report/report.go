// Package report renders analysis outcomes for people and for machines.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"wcrt/internal/bench"
	"wcrt/internal/job"
	"wcrt/internal/sched"
)

// Format selects the renderer.
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
)

// ParseFormat accepts "table" (the default) and "json".
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "", FormatTable:
		return FormatTable, nil
	case FormatJSON:
		return FormatJSON, nil
	}
	return "", fmt.Errorf("unknown output format %q", s)
}

// MethodReport is one method's verdict on one set.
type MethodReport struct {
	Method      sched.Method       `json:"method"`
	Schedulable bool               `json:"schedulable"`
	Usecs       int64              `json:"usecs"`
	Totals      sched.Counters     `json:"totals"`
	// FailedTask is the ID of the task that made the set unschedulable.
	FailedTask  int                `json:"failed_task,omitempty"`
	Tasks       []sched.TaskResult `json:"tasks,omitempty"`
}

// SetReport is the outcome of every enabled method on one set.
type SetReport struct {
	ID          int            `json:"id"`
	Group       string         `json:"group,omitempty"`
	Tasks       int            `json:"tasks"`
	Utilization float64        `json:"utilization"`
	Schedulable bool           `json:"schedulable"`
	Error       string         `json:"error,omitempty"`
	Mismatch    string         `json:"mismatch,omitempty"`
	Methods     []MethodReport `json:"methods,omitempty"`
}

// FromOutcome builds the report of one job. Total mode leaves out the
// per-task results.
func FromOutcome(o job.Outcome, mode sched.ReportMode) SetReport {
	r := SetReport{
		ID:          o.Job.ID,
		Group:       o.Job.Group,
		Tasks:       len(o.Job.Set),
		Utilization: o.Job.Set.Utilization(),
		Schedulable: o.Schedulable(),
	}
	if o.Err != nil {
		r.Error = o.Err.Error()
		return r
	}
	if o.Mismatch != nil {
		r.Mismatch = o.Mismatch.Error()
	}

	for _, run := range o.Runs {
		m := MethodReport{
			Method:      run.Method,
			Schedulable: run.Schedulable,
			Usecs:       run.Elapsed.Microseconds(),
			Totals:      run.Totals(),
		}
		if failed, ok := run.Failed(); ok {
			m.FailedTask = failed.ID
		}
		if mode == sched.ReportDetail {
			m.Tasks = run.Tasks
		}
		r.Methods = append(r.Methods, m)
	}
	return r
}

// WriteJSON encodes v as indented JSON.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

var (
	okColor   = color.New(color.FgHiGreen)
	failColor = color.New(color.FgHiRed)
	warnColor = color.New(color.FgHiYellow)
	dimColor  = color.New(color.Faint)
)

func verdict(m MethodReport) string {
	if m.Schedulable {
		return okColor.Sprint("schedulable")
	}
	if m.FailedTask > 0 {
		return failColor.Sprintf("unschedulable (task %d)", m.FailedTask)
	}
	return failColor.Sprint("unschedulable")
}

func status(s sched.TaskStatus) string {
	switch s {
	case sched.Schedulable:
		return okColor.Sprint(s)
	case sched.Unschedulable:
		return failColor.Sprint(s)
	}
	return dimColor.Sprint(s)
}

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	return t
}

// WriteSet renders one set report as a table: one row per task in detail
// mode, one row per method otherwise.
func WriteSet(w io.Writer, r SetReport) {
	title := fmt.Sprintf("set %d: %d tasks, U=%.3f", r.ID, r.Tasks, r.Utilization)
	if r.Group != "" {
		title += " [" + r.Group + "]"
	}

	if r.Error != "" {
		fmt.Fprintf(w, "%s: %s\n", title, failColor.Sprint(r.Error))
		return
	}

	t := newTable(w)
	t.SetTitle(title)

	detail := len(r.Methods) > 0 && len(r.Methods[0].Tasks) > 0
	if detail {
		t.AppendHeader(table.Row{"Method", "Task", "Status", "WCRT", "CC", "Outer", "Inner"})
		for _, m := range r.Methods {
			for _, tr := range m.Tasks {
				wcrt := "-"
				if tr.Analyzed() {
					wcrt = fmt.Sprint(tr.WCRT)
					if tr.Status == sched.Unschedulable {
						wcrt = fmt.Sprintf(">%d", tr.Exceeded)
					}
				}
				t.AppendRow(table.Row{m.Method, tr.ID, status(tr.Status), wcrt, tr.Divisions, tr.Outer, tr.Inner})
			}
			t.AppendSeparator()
		}
	} else {
		t.AppendHeader(table.Row{"Method", "Verdict", "CC", "Outer", "Inner", "µs"})
		for _, m := range r.Methods {
			t.AppendRow(table.Row{m.Method, verdict(m), m.Totals.Divisions, m.Totals.Outer, m.Totals.Inner, m.Usecs})
		}
	}
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignLeft},
		{Number: 2, Align: text.AlignCenter},
	})
	t.Render()

	if r.Mismatch != "" {
		fmt.Fprintln(w, warnColor.Sprint("warning: ", r.Mismatch))
	}
}

// WriteSummary renders the per-bucket benchmark summary.
func WriteSummary(w io.Writer, sums []bench.Summary) {
	t := newTable(w)
	t.SetTitle("summary")
	t.AppendHeader(table.Row{"U", "Method", "Sets", "Schedulable", "Mean µs", "Max µs", "CC", "Outer", "Inner"})
	for _, s := range sums {
		t.AppendRow(table.Row{
			fmt.Sprintf("%.2f", s.Bucket),
			s.Method,
			s.Sets,
			fmt.Sprintf("%.1f%%", 100*s.Ratio()),
			s.MeanElapsed().Microseconds(),
			s.MaxElapsed.Microseconds(),
			s.Divisions,
			s.Outer,
			s.Inner,
		})
	}
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "U", AutoMerge: true},
	})
	t.Render()
}
