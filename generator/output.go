package generator

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/k14s/difflib"
	"golang.org/x/tools/txtar"
)

// ErrOutputDrift is returned in check mode when existing output differs
// from what the study and templates produce.
var ErrOutputDrift = errors.New("generated output differs from existing output")

// outputFile is one file of an experiment, ready to be stored.
type outputFile struct {
	Name   string // slash-separated, relative to the experiment directory
	Data   []byte
	Static bool // copied from the template directory rather than rendered
}

// sink stores the files of finished experiments. put may be called
// concurrently; close is called once after the last put.
type sink interface {
	put(index int, experiment string, files []outputFile) error
	close() error
}

// dirSink writes experiments under root, overwriting existing files.
type dirSink struct {
	root string
}

func (s *dirSink) put(_ int, experiment string, files []outputFile) error {
	base := filepath.Join(s.root, experiment)
	for _, f := range files {
		path := filepath.Join(base, filepath.FromSlash(f.Name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(path, f.Data, 0o644); err != nil {
			return err
		}
	}
	return nil
}

func (s *dirSink) close() error { return nil }

// checkSink compares experiments with the files already under root and
// writes a diff for every file that would change.
type checkSink struct {
	root string

	mu      sync.Mutex // Serializes diff output
	diff    io.Writer
	drifted int
}

func (s *checkSink) put(_ int, experiment string, files []outputFile) error {
	for _, f := range files {
		name := experiment + "/" + f.Name
		existing, err := os.ReadFile(filepath.Join(s.root, filepath.FromSlash(name)))
		switch {
		case errors.Is(err, fs.ErrNotExist):
			s.report(name, "missing", "")
		case err != nil:
			return err
		case !bytes.Equal(existing, f.Data):
			diff := difflib.PPDiff(strings.Split(string(existing), "\n"), strings.Split(string(f.Data), "\n"))
			s.report(name, "differs", diff)
		}
	}
	return nil
}

func (s *checkSink) report(name, status, diff string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drifted++
	fmt.Fprintf(s.diff, "%s: %s\n", name, status)
	if diff != "" {
		fmt.Fprintln(s.diff, diff)
	}
}

func (s *checkSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.drifted
}

func (s *checkSink) close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.drifted > 0 {
		return fmt.Errorf("%d files: %w", s.drifted, ErrOutputDrift)
	}
	return nil
}

// archiveSink collects every experiment into one txtar archive written on close.
type archiveSink struct {
	w       io.Writer
	comment string

	mu          sync.Mutex
	experiments map[int][]txtar.File
}

func newArchiveSink(w io.Writer, comment string) *archiveSink {
	return &archiveSink{
		w:           w,
		comment:     comment,
		experiments: make(map[int][]txtar.File),
	}
}

func (s *archiveSink) put(index int, experiment string, files []outputFile) error {
	entries := make([]txtar.File, len(files))
	for i, f := range files {
		entries[i] = txtar.File{Name: experiment + "/" + f.Name, Data: f.Data}
	}

	s.mu.Lock()
	s.experiments[index] = entries
	s.mu.Unlock()
	return nil
}

func (s *archiveSink) close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	indexes := make([]int, 0, len(s.experiments))
	for i := range s.experiments {
		indexes = append(indexes, i)
	}
	slices.Sort(indexes)

	ar := &txtar.Archive{Comment: []byte(s.comment)}
	for _, i := range indexes {
		ar.Files = append(ar.Files, s.experiments[i]...)
	}
	_, err := s.w.Write(txtar.Format(ar))
	return err
}
