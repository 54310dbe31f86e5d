package taskset

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"

	yaml "github.com/goccy/go-yaml"
	"github.com/pelletier/go-toml/v2"

	"wcrt/internal/sched"
)

// document is the shared shape of YAML, TOML and JSON task set files. A file
// holds either a list of sets or, as a shorthand, the tasks of one set.
type document struct {
	Sets  []setDoc  `yaml:"sets,omitempty" toml:"sets,omitempty" json:"sets,omitempty"`
	Tasks []taskDoc `yaml:"tasks,omitempty" toml:"tasks,omitempty" json:"tasks,omitempty"`
}

type setDoc struct {
	ID    int       `yaml:"id" toml:"id" json:"id"`
	Group string    `yaml:"group,omitempty" toml:"group,omitempty" json:"group,omitempty"`
	Tasks []taskDoc `yaml:"tasks" toml:"tasks" json:"tasks"`
}

// taskDoc is one task in priority order. A missing deadline means d = t.
type taskDoc struct {
	C int  `yaml:"c" toml:"c" json:"c"`
	T int  `yaml:"t" toml:"t" json:"t"`
	D *int `yaml:"d,omitempty" toml:"d,omitempty" json:"d,omitempty"`
}

func (d taskDoc) task() sched.Task {
	deadline := d.T
	if d.D != nil {
		deadline = *d.D
	}
	return sched.Task{WCET: d.C, Period: d.T, Deadline: deadline}
}

func fromTasks(docs []taskDoc) sched.TaskSet {
	ts := make(sched.TaskSet, len(docs))
	for i, d := range docs {
		ts[i] = d.task()
	}
	ts.Renumber()
	return ts
}

func toTasks(ts sched.TaskSet) []taskDoc {
	docs := make([]taskDoc, len(ts))
	for i, t := range ts {
		docs[i] = taskDoc{C: t.WCET, T: t.Period}
		if t.Deadline != t.Period {
			d := t.Deadline
			docs[i].D = &d
		}
	}
	return docs
}

func (doc document) sets() []Set {
	if len(doc.Sets) == 0 && len(doc.Tasks) > 0 {
		return []Set{{ID: 1, Tasks: fromTasks(doc.Tasks)}}
	}
	out := make([]Set, 0, len(doc.Sets))
	for i, s := range doc.Sets {
		id := s.ID
		if id == 0 {
			id = i + 1
		}
		out = append(out, Set{ID: id, Group: s.Group, Tasks: fromTasks(s.Tasks)})
	}
	return out
}

func newDocument(sets []Set) document {
	doc := document{Sets: make([]setDoc, len(sets))}
	for i, s := range sets {
		doc.Sets[i] = setDoc{ID: s.ID, Group: s.Group, Tasks: toTasks(s.Tasks)}
	}
	return doc
}

// Decode parses task sets from r. Parse failures and empty input are
// reported as ErrNoTaskSet; the sets themselves are not validated here.
func Decode(r io.Reader, format Format) ([]Set, error) {
	var sets []Set
	var err error

	switch format {
	case CSV:
		sets, err = decodeCSV(r)
	case YAML, TOML, JSON:
		var data []byte
		if data, err = io.ReadAll(r); err != nil {
			return nil, err
		}
		var doc document
		switch format {
		case YAML:
			err = yaml.Unmarshal(data, &doc)
		case TOML:
			err = toml.Unmarshal(data, &doc)
		default:
			err = json.Unmarshal(data, &doc)
		}
		sets = doc.sets()
	default:
		return nil, fmt.Errorf("unsupported format %q", format)
	}

	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoTaskSet, err)
	}
	if len(sets) == 0 {
		return nil, ErrNoTaskSet
	}
	return sets, nil
}

// Encode writes sets to w.
func Encode(w io.Writer, format Format, sets []Set) error {
	switch format {
	case CSV:
		return encodeCSV(w, sets)
	case YAML:
		return yaml.NewEncoder(w).Encode(newDocument(sets))
	case TOML:
		return toml.NewEncoder(w).Encode(newDocument(sets))
	case JSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(newDocument(sets))
	}
	return fmt.Errorf("unsupported format %q", format)
}

var csvHeader = []string{"set", "group", "c", "t", "d"}

// decodeCSV reads one task per row. Rows of one set must be contiguous and
// in priority order.
func decodeCSV(r io.Reader) ([]Set, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(csvHeader)
	cr.Comment = '#'

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, err
	}
	if header[0] != csvHeader[0] {
		return nil, fmt.Errorf("missing header %v", csvHeader)
	}

	var sets []Set
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		var v [4]int
		for i, col := range []int{0, 2, 3, 4} {
			if v[i], err = strconv.Atoi(rec[col]); err != nil {
				line, _ := cr.FieldPos(col)
				return nil, fmt.Errorf("line %d: column %s: %w", line, csvHeader[col], err)
			}
		}

		id := v[0]
		if len(sets) == 0 || sets[len(sets)-1].ID != id {
			sets = append(sets, Set{ID: id, Group: rec[1]})
		}
		s := &sets[len(sets)-1]
		s.Tasks = append(s.Tasks, sched.Task{ID: len(s.Tasks) + 1, WCET: v[1], Period: v[2], Deadline: v[3]})
	}
	return sets, nil
}

func encodeCSV(w io.Writer, sets []Set) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, s := range sets {
		for _, t := range s.Tasks {
			rec := []string{
				strconv.Itoa(s.ID),
				s.Group,
				strconv.Itoa(t.WCET),
				strconv.Itoa(t.Period),
				strconv.Itoa(t.Deadline),
			}
			if err := cw.Write(rec); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}
