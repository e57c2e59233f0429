package driver

import (
	"bytes"
	"context"
	"errors"
	"os"

	"fortio.org/safecast"

	"tarn/internal/diag"
	"tarn/internal/mir"
	"tarn/internal/mirtext"
	"tarn/internal/source"
	"tarn/internal/types"
)

// FormatOptions configures canonical reformatting.
type FormatOptions struct {
	// Check reports files that are not canonically formatted instead of
	// rewriting them.
	Check bool
	// Stdout leaves files untouched; callers print Formatted themselves.
	Stdout         bool
	MaxDiagnostics int
}

// FormatResult captures the result of formatting a single file.
type FormatResult struct {
	Path      string
	FileID    source.FileID
	Formatted []byte
	Changed   bool
	Bag       *diag.Bag
}

// FormatPaths reprints the given .tir files (or directories of them) in the
// canonical form the module printer produces. Files parse fully before
// anything is rewritten; a file with parse errors is reported and left
// untouched.
func FormatPaths(ctx context.Context, paths []string, opts FormatOptions) (*source.FileSet, []FormatResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	files, err := collectTirFiles(ctx, paths)
	if err != nil {
		return nil, nil, err
	}
	if len(files) == 0 {
		return nil, nil, errors.New("no .tir input files found")
	}

	maxDiag := opts.MaxDiagnostics
	if maxDiag <= 0 {
		maxDiag = 100
	}

	fileSet := source.NewFileSet()
	results := make([]FormatResult, 0, len(files))
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return fileSet, results, err
		}
		results = append(results, formatOne(fileSet, path, opts, maxDiag))
	}
	return fileSet, results, nil
}

func formatOne(fileSet *source.FileSet, path string, opts FormatOptions, maxDiag int) FormatResult {
	bag := diag.NewBag(maxDiag)
	res := FormatResult{Path: path, Bag: bag}

	id, err := fileSet.Load(path)
	if err != nil {
		bag.Add(diag.NewError(diag.IOLoadFileError, source.Span{}, "failed to load file: "+err.Error()))
		return res
	}
	sf := fileSet.Get(id)
	res.FileID = id

	ti := types.NewInterner()
	m, ok := mirtext.Parse(sf, ti, diag.BagReporter{Bag: bag})
	if !ok || m == nil {
		return res
	}

	formatted := []byte(mir.ModuleString(m))
	res.Formatted = formatted
	res.Changed = !bytes.Equal(sf.Content, formatted)
	if !res.Changed {
		return res
	}

	if opts.Check {
		d := diag.New(diag.SevWarning, diag.FmtNotCanonical, diffSpan(sf, formatted), "file is not formatted canonically")
		d = d.WithNote(source.Span{}, "run 'tarn fmt' to rewrite it")
		bag.Add(d)
		return res
	}
	if opts.Stdout {
		return res
	}

	mode := os.FileMode(0o644)
	if info, statErr := os.Stat(path); statErr == nil {
		mode = info.Mode().Perm()
	}
	if err := os.WriteFile(path, formatted, mode); err != nil {
		bag.Add(diag.NewError(diag.IOWriteFileError, source.Span{}, "failed to write file: "+err.Error()))
	}
	return res
}

// diffSpan points at the first byte where the file diverges from its
// canonical form, clamped into the file so the excerpt renderer has a line
// to show.
func diffSpan(sf *source.File, formatted []byte) source.Span {
	off := firstDiff(sf.Content, formatted)
	lenContent, err := safecast.Conv[uint32](len(sf.Content))
	if err != nil {
		panic(err)
	}
	if lenContent == 0 {
		return source.Span{}
	}
	if off >= lenContent {
		off = lenContent - 1
	}
	return source.Span{File: sf.ID, Start: off, End: off + 1}
}

func firstDiff(a, b []byte) uint32 {
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return uint32(i) //nolint:gosec // G115: file sizes fit uint32
		}
	}
	return uint32(n) //nolint:gosec // G115: file sizes fit uint32
}
