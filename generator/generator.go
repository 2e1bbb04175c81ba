// Package generator materializes the experiments of a study.
//
// For every experiment the expander yields, the generator:
//  1. resolves the free variables of each template it names (once per template per run)
//  2. validates every record against its template's variables
//  3. renders every template and collects the static files of the template directory
//  4. hands the files to the output: a directory tree, a drift check or a txtar archive
//
// Experiments are validated one after another in enumeration order and only
// then handed to the rendering workers, so a mismatch never leaves a
// partially written experiment behind and no experiment after the first
// invalid one is written. Experiments stored before it are kept.
package generator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/abiiranathan/expgen/ast"
	"github.com/abiiranathan/expgen/expander"
	"github.com/abiiranathan/expgen/logger"
	"github.com/abiiranathan/expgen/validator"
)

// Mode selects what happens to generated experiments.
type Mode int

const (
	// ModeWrite writes experiment directories under Options.Output.
	ModeWrite Mode = iota
	// ModeCheck compares generated files with those under Options.Output
	// and fails with ErrOutputDrift when any differ.
	ModeCheck
	// ModeArchive writes all experiments as one txtar archive to Options.Archive.
	ModeArchive
)

// Options configures a Generator.
type Options struct {
	// Study is the study-parameters document, used by Run.
	Study string
	// Templates is the template directory, used by Run.
	Templates string
	// Output is the directory experiments are written under (ModeWrite)
	// or compared with (ModeCheck).
	Output string
	// NameFormat names experiment directories; expander.DefaultNameFormat when empty.
	NameFormat string
	// Workers bounds concurrent experiments; runtime.NumCPU() when < 1.
	Workers int
	// LeftDelim and RightDelim are the template delimiters; "{{" and "}}" when empty.
	LeftDelim  string
	RightDelim string
	// Clean removes Output before writing (ModeWrite only).
	Clean bool
	// Mode selects the output.
	Mode Mode
	// Archive receives the txtar archive in ModeArchive.
	Archive io.Writer
	// Diff receives drift reports in ModeCheck; discarded when nil.
	Diff io.Writer
	// Logger defaults to logger.DefaultLogger.
	Logger *slog.Logger
}

// Summary counts what a run produced.
type Summary struct {
	Experiments   int `json:"experiments"`
	FilesRendered int `json:"filesRendered"`
	FilesCopied   int `json:"filesCopied"`
	// Drifted counts files that differ from existing output (ModeCheck only).
	Drifted int `json:"drifted,omitempty"`
}

// Generator runs the generation pipeline. A Generator holds the per-run
// template caches, so use a new one for every run.
type Generator struct {
	opts Options
	log  *slog.Logger
	vars *validator.VariableCache
}

// New returns a Generator for one run.
func New(opts Options) *Generator {
	if opts.NameFormat == "" {
		opts.NameFormat = expander.DefaultNameFormat
	}
	if opts.Workers < 1 {
		opts.Workers = runtime.NumCPU()
	}
	if opts.Diff == nil {
		opts.Diff = io.Discard
	}
	log := opts.Logger
	if log == nil {
		log = logger.DefaultLogger
	}

	return &Generator{
		opts: opts,
		log:  log,
		vars: validator.NewVariableCache(validator.WithDelims(opts.LeftDelim, opts.RightDelim)),
	}
}

// Variables returns the variable cache of this run.
func (g *Generator) Variables() *validator.VariableCache {
	return g.vars
}

// Run loads Options.Study and Options.Templates and generates every experiment.
func (g *Generator) Run(ctx context.Context) (Summary, error) {
	tree, err := ast.LoadFile(g.opts.Study)
	if err != nil {
		return Summary{}, err
	}
	dir, err := LoadTemplateDir(g.opts.Templates)
	if err != nil {
		return Summary{}, err
	}
	return g.Generate(ctx, tree, dir)
}

// Generate expands tree and materializes every experiment from the
// templates in dir.
//
// Experiments are enumerated and validated in order; rendering and storing
// run on up to Options.Workers goroutines. Enumeration waits for a free
// worker, so only the experiments in flight are held in memory.
//
// The first experiment that fails validation stops the enumeration: no
// experiment after it is started, the ones before it are completed. When
// several experiments fail, the error of the lowest index is returned.
func (g *Generator) Generate(ctx context.Context, tree ast.Node, dir *TemplateDir) (Summary, error) {
	out, err := g.newSink()
	if err != nil {
		return Summary{}, err
	}

	store := newTemplateStore(dir, g.opts.LeftDelim, g.opts.RightDelim)

	var (
		experiments atomic.Int64
		rendered    atomic.Int64
		copied      atomic.Int64
		failed      firstFailure
	)

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(g.opts.Workers)

	for exp, err := range expander.Enumerate(tree) {
		if err == nil {
			err = g.validate(exp, store)
		}
		if err != nil {
			failed.record(exp.Index, err)
			break
		}
		if egCtx.Err() != nil {
			break
		}

		eg.Go(func() error {
			r, c, err := g.generate(egCtx, exp, store, dir, out)
			if err != nil {
				// Cancellation caused by another failure is not this experiment's error.
				if !errors.Is(err, context.Canceled) || ctx.Err() != nil {
					failed.record(exp.Index, err)
				}
				return err
			}
			experiments.Add(1)
			rendered.Add(int64(r))
			copied.Add(int64(c))
			return nil
		})
	}

	waitErr := eg.Wait()

	summary := Summary{
		Experiments:   int(experiments.Load()),
		FilesRendered: int(rendered.Load()),
		FilesCopied:   int(copied.Load()),
	}
	if check, ok := out.(*checkSink); ok {
		summary.Drifted = check.count()
	}

	switch {
	case ctx.Err() != nil:
		return summary, ctx.Err()
	case failed.err != nil:
		return summary, failed.err
	case waitErr != nil:
		return summary, waitErr
	}

	if err := out.close(); err != nil {
		return summary, err
	}
	return summary, nil
}

// firstFailure keeps the error of the lowest failing experiment index.
type firstFailure struct {
	mu    sync.Mutex
	index int
	err   error
}

func (f *firstFailure) record(index int, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err == nil || index < f.index {
		f.index, f.err = index, err
	}
}

func (g *Generator) newSink() (sink, error) {
	switch g.opts.Mode {
	case ModeWrite:
		if g.opts.Output == "" {
			return nil, errors.New("generator: output directory not set")
		}
		if g.opts.Clean {
			g.log.Info("Removing previous output", "path", g.opts.Output)
			if err := os.RemoveAll(g.opts.Output); err != nil {
				return nil, fmt.Errorf("clean output: %w", err)
			}
		}
		return &dirSink{root: g.opts.Output}, nil

	case ModeCheck:
		if g.opts.Output == "" {
			return nil, errors.New("generator: output directory not set")
		}
		return &checkSink{root: g.opts.Output, diff: g.opts.Diff}, nil

	case ModeArchive:
		if g.opts.Archive == nil {
			return nil, errors.New("generator: archive writer not set")
		}
		return newArchiveSink(g.opts.Archive, fmt.Sprintf("experiments generated from %s\n", g.opts.Study)), nil
	}
	return nil, fmt.Errorf("generator: unknown mode %d", g.opts.Mode)
}

// validate checks every record of exp against the free variables of its
// template and that every template compiles. It runs before any file of the
// experiment is rendered or stored.
func (g *Generator) validate(exp expander.Experiment, store *templateStore) error {
	name := exp.Name(g.opts.NameFormat)
	for _, fp := range exp.Parameters {
		vars, err := g.vars.Get(fp.Template, store.loader(fp.Template))
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		if err := validator.Validate(fp.Template, fp.Record, vars); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		if err := store.compile(fp.Template); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

// generate renders and stores one validated experiment. It returns the
// number of rendered and copied files.
func (g *Generator) generate(
	ctx context.Context,
	exp expander.Experiment,
	store *templateStore,
	dir *TemplateDir,
	out sink,
) (int, int, error) {
	name := exp.Name(g.opts.NameFormat)
	g.log.Info("Generating experiment", "index", exp.Index, "path", filepath.Join(g.opts.Output, name))

	// Phase 1: render templates
	files := make([]outputFile, 0, len(exp.Parameters)+len(dir.Static))
	written := make(map[string]bool, len(exp.Parameters))
	for _, fp := range exp.Parameters {
		if err := ctx.Err(); err != nil {
			return 0, 0, err
		}
		data, err := store.render(fp.Template, fp.Record)
		if err != nil {
			return 0, 0, fmt.Errorf("%s: %w", name, err)
		}
		g.log.Debug("Writing file", "path", name+"/"+fp.Template, "parameters", fp.Record)
		files = append(files, outputFile{Name: fp.Template, Data: data})
		written[fp.Template] = true
	}

	// Phase 2: static files, unless a rendered template took the name
	copied := 0
	for _, rel := range dir.Static {
		if written[rel] {
			continue
		}
		data, err := os.ReadFile(dir.Path(rel))
		if err != nil {
			return 0, 0, fmt.Errorf("%s: copy %s: %w", name, rel, err)
		}
		g.log.Debug("Copying file", "from", dir.Path(rel), "path", name+"/"+rel)
		files = append(files, outputFile{Name: rel, Data: data, Static: true})
		copied++
	}

	if err := ctx.Err(); err != nil {
		return 0, 0, err
	}
	if err := out.put(exp.Index, name, files); err != nil {
		return 0, 0, fmt.Errorf("%s: %w", name, err)
	}
	return len(exp.Parameters), copied, nil
}
