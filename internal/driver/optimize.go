package driver

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"tarn/internal/diag"
	"tarn/internal/mir"
	"tarn/internal/mirtext"
	"tarn/internal/observ"
	"tarn/internal/opt"
	"tarn/internal/project"
	"tarn/internal/source"
	"tarn/internal/trace"
	"tarn/internal/types"
)

// Options configures one optimizer run over a set of inputs.
type Options struct {
	// Passes names the pipeline; empty means opt.DefaultPipeline.
	Passes         []string
	MaxDiagnostics int
	// Jobs caps worker parallelism; <= 0 means GOMAXPROCS.
	Jobs int

	// CheckOnly suppresses all output writing.
	CheckOnly bool
	// OutDir, when set, receives one output file per input (same base name).
	OutDir string
	// InPlace rewrites changed inputs where they are.
	InPlace bool

	NoCache  bool
	CacheDir string

	EnableTimings bool
	Progress      ProgressSink
}

// FileResult captures the outcome for a single input file.
type FileResult struct {
	Path      string
	FileID    source.FileID
	Bag       *diag.Bag
	Text      []byte // optimized module text; nil when errors prevented it
	Changed   bool   // text differs from the input bytes
	FromCache bool
	OutPath   string // where the text was written, if anywhere
}

// RunResult is the aggregated outcome of a run.
type RunResult struct {
	FileSet *source.FileSet
	Files   []FileResult
	Bag     *diag.Bag // merged and sorted across files
}

// Run loads, parses, optimizes, and (unless CheckOnly) writes every .tir
// file named by paths. Directories are walked. Files are processed in
// parallel; results and diagnostics come back in deterministic path order.
func Run(ctx context.Context, paths []string, opts Options) (*RunResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	files, err := collectTirFiles(ctx, paths)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, errors.New("no .tir input files found")
	}

	if opts.MaxDiagnostics <= 0 {
		opts.MaxDiagnostics = 100
	}
	passes := opts.Passes
	if len(passes) == 0 {
		passes = opt.DefaultPipeline()
	}
	for _, name := range passes {
		if _, ok := opt.LookupPass(name); !ok {
			return nil, fmt.Errorf("unknown pass %q", name)
		}
	}

	tr := trace.FromContext(ctx)
	runSpan := trace.Begin(tr, trace.ScopeDriver, "optimize", 0)

	emitQueued(opts.Progress, files)

	// Файлы грузим заранее и последовательно: FileSet не рассчитан на
	// конкурентный Add.
	fileSet := source.NewFileSet()
	fileIDs := make(map[string]source.FileID, len(files))
	loadErrors := make(map[string]error, len(files))
	for _, path := range files {
		id, err := fileSet.Load(path)
		if err != nil {
			loadErrors[path] = err
			continue
		}
		fileIDs[path] = id
	}

	var cache *DiskCache
	if !opts.NoCache {
		// Кэш — ускорение, а не обязанность: если открыть не удалось,
		// работаем без него.
		if c, err := OpenDiskCache(opts.CacheDir); err == nil {
			cache = c
		}
	}

	jobs := opts.Jobs
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}

	// Результаты по уникальным индексам, мьютекс не нужен.
	results := make([]FileResult, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(min(jobs, len(files)))

	for i, path := range files {
		g.Go(func(i int, path string) func() error {
			return func() error {
				select {
				case <-gctx.Done():
					return gctx.Err()
				default:
				}

				started := time.Now()
				res, err := optimizeOne(gctx, fileSet, path, fileIDs, loadErrors, passes, cache, opts, runSpan.ID())
				if err != nil {
					return err
				}
				writeResult(&res, opts)

				stage := StageOptimize
				if res.OutPath != "" {
					stage = StageWrite
				}
				status := StatusDone
				if res.Bag.HasErrors() {
					status = StatusError
				}
				emitFile(opts.Progress, path, stage, status, nil, time.Since(started))

				results[i] = res
				return nil
			}
		}(i, path))
	}

	if err := g.Wait(); err != nil {
		runSpan.End("interrupted")
		return nil, err
	}
	runSpan.WithExtra("files", strconv.Itoa(len(files))).End("")

	merged := diag.NewBag(opts.MaxDiagnostics)
	for i := range results {
		if results[i].Bag != nil {
			merged.Merge(results[i].Bag)
		}
	}
	merged.Sort()

	return &RunResult{FileSet: fileSet, Files: results, Bag: merged}, nil
}

// optimizeOne runs the full per-file flow: cache probe, parse, pipeline,
// print, cache store. Terminal progress statuses are the caller's job; this
// only emits StatusWorking transitions.
func optimizeOne(ctx context.Context, fileSet *source.FileSet, path string, ids map[string]source.FileID, loadErrors map[string]error, passes []string, cache *DiskCache, opts Options, parent uint64) (FileResult, error) {
	bag := diag.NewBag(opts.MaxDiagnostics)
	res := FileResult{Path: path, Bag: bag}

	if loadErr, failed := loadErrors[path]; failed {
		bag.Add(diag.NewError(diag.IOLoadFileError, source.Span{}, "failed to load file: "+loadErr.Error()))
		return res, nil
	}

	id := ids[path]
	sf := fileSet.Get(id)
	res.FileID = id

	tr := trace.FromContext(ctx)

	if cache != nil {
		key := cacheKey(sf, passes)
		var payload Payload
		if hit, err := cache.Get(key, &payload); err == nil && hit {
			trace.Point(tr, trace.ScopeDriver, "cache", "hit "+path, parent)
			res.Text = payload.Text
			res.FromCache = true
			res.Changed = payload.Text != nil && !bytes.Equal(sf.Content, payload.Text)
			replayDiagnostics(bag, id, payload.Diags)
			return res, nil
		}
		trace.Point(tr, trace.ScopeDriver, "cache", "miss "+path, parent)
	}

	fileSpan := trace.Begin(tr, trace.ScopeDriver, path, parent)
	timer := observ.NewTimer()

	emitFile(opts.Progress, path, StageParse, StatusWorking, nil, 0)
	ti := types.NewInterner()
	var (
		m       *mir.Module
		parseOK bool
	)
	_ = timer.Measure("parse", func() error {
		m, parseOK = mirtext.Parse(sf, ti, diag.BagReporter{Bag: bag})
		return nil
	})
	if !parseOK || m == nil {
		fileSpan.End("parse failed")
		return res, nil
	}

	emitFile(opts.Progress, path, StageOptimize, StatusWorking, nil, 0)
	pipe := &opt.Pipeline{
		Passes:      passes,
		Reporter:    diag.BagReporter{Bag: bag},
		Tracer:      tr,
		TraceParent: fileSpan.ID(),
	}
	if err := timer.Measure("optimize", func() error { return pipe.Run(m) }); err != nil {
		fileSpan.End("internal error")
		return res, fmt.Errorf("%s: %w", path, err)
	}

	if !bag.HasErrors() {
		res.Text = []byte(mir.ModuleString(m))
		res.Changed = !bytes.Equal(sf.Content, res.Text)
	}

	if cache != nil {
		payload := Payload{
			Schema:      cacheSchemaVersion,
			Path:        path,
			ContentHash: project.Digest(sf.Hash),
			PassHash:    project.HashStrings(passes),
			Text:        res.Text,
			Diags:       cacheDiagnostics(bag),
		}
		if err := cache.Put(cacheKey(sf, passes), &payload); err != nil {
			trace.Point(tr, trace.ScopeDriver, "cache", "store failed: "+err.Error(), parent)
		}
	}

	if opts.EnableTimings {
		report := timer.Report()
		appendTimingDiagnostic(bag, timingPayload{
			Kind:    "file",
			Path:    path,
			TotalMS: report.TotalMS,
			Phases:  report.Phases,
		})
	}

	fileSpan.End("")
	return res, nil
}

// writeResult places the optimized text according to the output options.
// Write failures surface as IO diagnostics on the file's bag.
func writeResult(res *FileResult, opts Options) {
	if opts.CheckOnly || res.Text == nil || res.Bag.HasErrors() {
		return
	}
	var out string
	switch {
	case opts.InPlace:
		if !res.Changed {
			return
		}
		out = res.Path
	case opts.OutDir != "":
		out = filepath.Join(opts.OutDir, filepath.Base(res.Path))
	default:
		return
	}

	emitFile(opts.Progress, res.Path, StageWrite, StatusWorking, nil, 0)
	if opts.OutDir != "" {
		if err := os.MkdirAll(opts.OutDir, 0o755); err != nil {
			res.Bag.Add(diag.NewError(diag.IOWriteFileError, source.Span{}, "failed to create output directory: "+err.Error()))
			return
		}
	}
	mode := os.FileMode(0o644)
	if info, err := os.Stat(res.Path); err == nil {
		mode = info.Mode().Perm()
	}
	if err := os.WriteFile(out, res.Text, mode); err != nil {
		res.Bag.Add(diag.NewError(diag.IOWriteFileError, source.Span{}, "failed to write file: "+err.Error()))
		return
	}
	res.OutPath = out
}
