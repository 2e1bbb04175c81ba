package generator

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"sync"
	"text/template"

	"github.com/abiiranathan/expgen/validator"
)

// TemplateExt marks a file of the template directory as a template. The
// rendered file is named after the template without the extension.
const TemplateExt = ".tpl"

// ErrTemplateNotFound is returned when the study names a template the
// template directory does not contain.
var ErrTemplateNotFound = errors.New("template not found")

// IsTemplateFile reports whether a file name denotes a template.
func IsTemplateFile(name string) bool {
	return strings.HasSuffix(name, TemplateExt) && len(name) > len(TemplateExt)
}

// TemplateDir is the inventory of a template directory.
type TemplateDir struct {
	// Root is the directory path.
	Root string
	// Templates maps a template name to the slash-separated path of its
	// .tpl file relative to Root.
	Templates map[string]string
	// Static lists the other files, relative to Root, sorted. They are
	// copied verbatim into every experiment.
	Static []string
}

// LoadTemplateDir walks root and sorts its regular files into templates and
// static files. Sub-directories are included; names use forward slashes.
func LoadTemplateDir(root string) (*TemplateDir, error) {
	dir := &TemplateDir{
		Root:      root,
		Templates: make(map[string]string),
	}

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		// Normalize to forward slashes for cross-platform consistency
		rel = filepath.ToSlash(rel)

		if IsTemplateFile(rel) {
			dir.Templates[strings.TrimSuffix(rel, TemplateExt)] = rel
		} else {
			dir.Static = append(dir.Static, rel)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load template directory: %w", err)
	}

	slices.Sort(dir.Static)
	return dir, nil
}

// Names returns the template names, sorted.
func (d *TemplateDir) Names() []string {
	names := make([]string, 0, len(d.Templates))
	for n := range d.Templates {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// Path returns the file system path of a file relative to Root.
func (d *TemplateDir) Path(rel string) string {
	return filepath.Join(d.Root, filepath.FromSlash(rel))
}

// Source reads the named template.
func (d *TemplateDir) Source(name string) (string, error) {
	rel, ok := d.Templates[name]
	if !ok {
		return "", fmt.Errorf("%w: %q (expected %s in %s)", ErrTemplateNotFound, name, name+TemplateExt, d.Root)
	}
	data, err := os.ReadFile(d.Path(rel))
	if err != nil {
		return "", fmt.Errorf("read template %q: %w", name, err)
	}
	return string(data), nil
}

// compiledTemplate is the lazily loaded form of one template.
type compiledTemplate struct {
	once    sync.Once
	source  string
	readErr error
	tmpl    *template.Template
	err     error
}

// templateStore reads and compiles each template at most once per run.
//
// Thread-safety: All methods are safe for concurrent use.
type templateStore struct {
	dir         *TemplateDir
	leftDelim   string
	rightDelim  string
	funcs       template.FuncMap
	mu          sync.Mutex
	compiledMap map[string]*compiledTemplate
}

func newTemplateStore(dir *TemplateDir, leftDelim, rightDelim string) *templateStore {
	return &templateStore{
		dir:         dir,
		leftDelim:   leftDelim,
		rightDelim:  rightDelim,
		funcs:       FuncMap(),
		compiledMap: make(map[string]*compiledTemplate),
	}
}

func (s *templateStore) get(name string) *compiledTemplate {
	s.mu.Lock()
	c, ok := s.compiledMap[name]
	if !ok {
		c = &compiledTemplate{}
		s.compiledMap[name] = c
	}
	s.mu.Unlock()

	c.once.Do(func() {
		c.source, c.readErr = s.dir.Source(name)
		if c.readErr != nil {
			return
		}
		c.tmpl, c.err = template.New(name).
			Delims(s.leftDelim, s.rightDelim).
			Funcs(s.funcs).
			Option("missingkey=error").
			Parse(c.source)
		if c.err != nil {
			c.err = &validator.TemplateSyntaxError{Template: name, Err: c.err}
		}
	})
	return c
}

// loader returns the source loader the variable cache calls on a miss.
func (s *templateStore) loader(name string) func() (string, error) {
	return func() (string, error) {
		c := s.get(name)
		return c.source, c.readErr
	}
}

// compile reports whether the named template can be read and parsed with
// the render functions.
func (s *templateStore) compile(name string) error {
	c := s.get(name)
	if c.readErr != nil {
		return c.readErr
	}
	return c.err
}

// render executes the named template against record.
func (s *templateStore) render(name string, record map[string]any) ([]byte, error) {
	c := s.get(name)
	if c.readErr != nil {
		return nil, c.readErr
	}
	if c.err != nil {
		return nil, c.err
	}

	var buf bytes.Buffer
	if err := c.tmpl.Execute(&buf, record); err != nil {
		return nil, fmt.Errorf("render template %q: %w", name, err)
	}
	return buf.Bytes(), nil
}

// TemplateVariables extracts the free variables of every template in dir.
//
// Concurrency model:
//   - One worker per CPU core
//   - Workers read template names from a shared channel
//   - Results land in cache, which parses each template once
//
// The first error in name order is returned.
func TemplateVariables(dir *TemplateDir, cache *validator.VariableCache) (map[string]validator.VariableSet, error) {
	names := dir.Names()
	if len(names) == 0 {
		return map[string]validator.VariableSet{}, nil
	}

	numWorkers := min(max(runtime.NumCPU(), 1), len(names))
	nameChan := make(chan string, len(names))

	var wg sync.WaitGroup
	for range numWorkers {
		wg.Go(func() {
			for name := range nameChan {
				_, _ = cache.Get(name, func() (string, error) { return dir.Source(name) })
			}
		})
	}

	for _, name := range names {
		nameChan <- name
	}
	close(nameChan)
	wg.Wait()

	// Every entry is populated now; these calls only read the cache.
	out := make(map[string]validator.VariableSet, len(names))
	for _, name := range names {
		vars, err := cache.Get(name, func() (string, error) { return dir.Source(name) })
		if err != nil {
			return nil, err
		}
		out[name] = vars
	}
	return out, nil
}
