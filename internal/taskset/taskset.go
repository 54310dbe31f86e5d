// Package taskset reads, writes and generates task sets for the analysis.
package taskset

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"

	"wcrt/internal/sched"
)

// ErrNoTaskSet is returned for input that does not contain a usable task set.
var ErrNoTaskSet = errors.New("no task set available")

// Set is one task set as it was read from a file, with the labels used to
// group benchmark results.
type Set struct {
	ID    int
	Group string
	Tasks sched.TaskSet
}

// Format names a file encoding.
type Format string

const (
	YAML Format = "yaml"
	TOML Format = "toml"
	JSON Format = "json"
	CSV  Format = "csv"
)

// FormatOf derives the encoding from a file name, ignoring a trailing .zst.
func FormatOf(path string) (Format, bool, error) {
	compressed := strings.HasSuffix(path, ".zst")
	base := strings.TrimSuffix(path, ".zst")

	switch strings.ToLower(filepath.Ext(base)) {
	case ".yaml", ".yml":
		return YAML, compressed, nil
	case ".toml":
		return TOML, compressed, nil
	case ".json":
		return JSON, compressed, nil
	case ".csv":
		return CSV, compressed, nil
	}
	return "", compressed, fmt.Errorf("unsupported task set file %s", path)
}

// Load reads every task set in path.
func Load(path string) ([]Set, error) {
	format, compressed, err := FormatOf(path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var r io.Reader = f
	if compressed {
		d, err := zstd.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd reader: %w", err)
		}
		defer d.Close()
		r = d
	}

	sets, err := Decode(r, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return sets, nil
}

// Write stores sets in path, choosing the encoding the same way Load does.
func Write(path string, sets []Set) (err error) {
	format, compressed, err := FormatOf(path)
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	var w io.Writer = f
	if compressed {
		var e *zstd.Encoder
		if e, err = zstd.NewWriter(f); err != nil {
			return fmt.Errorf("failed to create zstd writer: %w", err)
		}
		defer func() {
			if cerr := e.Close(); err == nil {
				err = cerr
			}
		}()
		w = e
	}
	return Encode(w, format, sets)
}
