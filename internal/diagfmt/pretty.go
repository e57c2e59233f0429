package diagfmt

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"tarn/internal/diag"
	"tarn/internal/source"
)

var (
	prettyErrorColor   = color.New(color.FgRed, color.Bold)
	prettyWarningColor = color.New(color.FgYellow, color.Bold)
	prettyInfoColor    = color.New(color.FgCyan)
	prettyNoteColor    = color.New(color.FgBlue)
)

// Pretty форматирует диагностики в человекочитаемый вид.
// Идёт по bag.Items() (ожидается bag.Sort() заранее).
// Для каждого diag печатает:
// <path>:<line>:<col>: <SEV> <CODE>: <Message>
// затем строку исходника с подчёркиванием ^~~~ по Span,
// затем Notes в том же формате и Fixes как help-строки.
// Цвет включается опцией.
func Pretty(w io.Writer, bag *diag.Bag, fs *source.FileSet, opts PrettyOpts) {
	for i, d := range bag.Items() {
		if i > 0 {
			fmt.Fprintln(w)
		}
		writeDiagnostic(w, d, fs, opts)
	}
}

func writeDiagnostic(w io.Writer, d diag.Diagnostic, fs *source.FileSet, opts PrettyOpts) {
	sev := d.Severity.String()
	code := d.Code.ID()
	if opts.Color {
		c := severityColor(d.Severity)
		sev = c.Sprint(sev)
		code = c.Sprint(code)
	}

	// Диагностики без привязки (например, тайминги) печатаем без позиции.
	if d.Primary == (source.Span{}) {
		fmt.Fprintf(w, "%s %s: %s\n", sev, code, d.Message)
	} else {
		start, _ := fs.Resolve(d.Primary)
		path := renderPath(fs, d.Primary, opts.PathMode)
		fmt.Fprintf(w, "%s:%d:%d: %s %s: %s\n", path, start.Line, start.Col, sev, code, d.Message)
		writeExcerpt(w, d.Primary, d.Severity, fs, opts)
	}

	if opts.ShowNotes {
		for _, note := range d.Notes {
			writeNote(w, note, fs, opts)
		}
	}
	if opts.ShowFixes {
		for _, fix := range d.Fixes {
			writeFix(w, fix, fs, opts)
		}
	}
}

// writeExcerpt prints the source line under the span with a caret row.
// Optional context lines precede the primary line.
func writeExcerpt(w io.Writer, span source.Span, sev diag.Severity, fs *source.FileSet, opts PrettyOpts) {
	f := fs.Get(span.File)
	start, end := fs.Resolve(span)

	first := start.Line
	if opts.Context > 0 {
		ctx := uint32(opts.Context)
		if first > ctx {
			first -= ctx
		} else {
			first = 1
		}
	}
	for ln := first; ln < start.Line; ln++ {
		fmt.Fprintf(w, "%5d | %s\n", ln, f.GetLine(ln))
	}

	lineText := f.GetLine(start.Line)
	fmt.Fprintf(w, "%5d | %s\n", start.Line, lineText)

	marks := underline(start, end, lineText)
	if opts.Color {
		marks = severityColor(sev).Sprint(marks)
	}
	fmt.Fprintf(w, "      | %s%s\n", caretPadding(lineText, start.Col), marks)
}

// caretPadding builds the whitespace before the caret, keeping tabs so
// the caret stays aligned with the rendered source line.
func caretPadding(lineText string, col uint32) string {
	n := int(col) - 1
	if n > len(lineText) {
		n = len(lineText)
	}
	if n <= 0 {
		return ""
	}
	pad := make([]byte, n)
	for i := range n {
		if lineText[i] == '\t' {
			pad[i] = '\t'
		} else {
			pad[i] = ' '
		}
	}
	return string(pad)
}

// underline renders "^~~~" sized to the span. Multi-line spans are
// underlined to the end of the first line.
func underline(start, end source.LineCol, lineText string) string {
	width := 1
	switch {
	case end.Line == start.Line && end.Col > start.Col:
		width = int(end.Col - start.Col)
	case end.Line > start.Line:
		width = len(lineText) - int(start.Col) + 1
	}
	if width < 1 {
		width = 1
	}
	return "^" + strings.Repeat("~", width-1)
}

func writeNote(w io.Writer, note diag.Note, fs *source.FileSet, opts PrettyOpts) {
	label := "note"
	if opts.Color {
		label = prettyNoteColor.Sprint(label)
	}

	if note.Span == (source.Span{}) {
		fmt.Fprintf(w, "  %s: %s\n", label, note.Msg)
		return
	}

	start, _ := fs.Resolve(note.Span)
	path := renderPath(fs, note.Span, opts.PathMode)
	fmt.Fprintf(w, "%s:%d:%d: %s: %s\n", path, start.Line, start.Col, label, note.Msg)
	writeExcerpt(w, note.Span, diag.SevInfo, fs, opts)
}

func writeFix(w io.Writer, fix diag.Fix, fs *source.FileSet, opts PrettyOpts) {
	fmt.Fprintf(w, "  help: %s\n", fix.Title)
	if !opts.ShowPreview {
		return
	}
	for _, edit := range fix.Edits {
		preview, err := buildFixEditPreview(fs, edit)
		if err != nil {
			continue
		}
		for _, line := range preview.before {
			fmt.Fprintf(w, "    - %s\n", line)
		}
		for _, line := range preview.after {
			fmt.Fprintf(w, "    + %s\n", line)
		}
	}
}

func severityColor(sev diag.Severity) *color.Color {
	switch sev {
	case diag.SevError:
		return prettyErrorColor
	case diag.SevWarning:
		return prettyWarningColor
	default:
		return prettyInfoColor
	}
}

// renderPath formats the span's file path according to mode.
func renderPath(fs *source.FileSet, span source.Span, mode PathMode) string {
	f := fs.Get(span.File)
	switch mode {
	case PathModeAbsolute:
		return f.FormatPath("absolute", "")
	case PathModeRelative:
		return f.FormatPath("relative", fs.BaseDir())
	case PathModeBasename:
		return f.FormatPath("basename", "")
	case PathModeAuto:
		return f.FormatPath("auto", "")
	default:
		return f.Path
	}
}
