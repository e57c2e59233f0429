package source

import (
	"testing"
)

func TestFileSetAddAndGet(t *testing.T) {
	fs := NewFileSet()

	id := fs.AddVirtual("box.tir", []byte("fn @main() {\nbb0:\n  return\n}\n"))
	if id != 0 {
		t.Errorf("expected first FileID to be 0, got %d", id)
	}

	f := fs.Get(id)
	if f.Path != "box.tir" {
		t.Errorf("Path = %q, want %q", f.Path, "box.tir")
	}
	if f.Flags&FileVirtual == 0 {
		t.Error("expected FileVirtual flag")
	}
	if len(f.LineIdx) != 4 {
		t.Errorf("LineIdx has %d entries, want 4", len(f.LineIdx))
	}

	byPath, ok := fs.GetByPath("box.tir")
	if !ok || byPath.ID != id {
		t.Errorf("GetByPath = (%v, %v), want id %d", byPath, ok, id)
	}
}

func TestFileSetResolve(t *testing.T) {
	fs := NewFileSet()
	id := fs.AddVirtual("pos.tir", []byte("abc\ndef\nghij"))

	tests := []struct {
		name  string
		span  Span
		start LineCol
		end   LineCol
	}{
		{
			name:  "first line",
			span:  Span{File: id, Start: 0, End: 3},
			start: LineCol{Line: 1, Col: 1},
			end:   LineCol{Line: 1, Col: 4},
		},
		{
			name:  "second line",
			span:  Span{File: id, Start: 4, End: 7},
			start: LineCol{Line: 2, Col: 1},
			end:   LineCol{Line: 2, Col: 4},
		},
		{
			name:  "middle of third line",
			span:  Span{File: id, Start: 9, End: 11},
			start: LineCol{Line: 3, Col: 2},
			end:   LineCol{Line: 3, Col: 4},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end := fs.Resolve(tt.span)
			if start != tt.start || end != tt.end {
				t.Errorf("Resolve() = %+v..%+v, want %+v..%+v", start, end, tt.start, tt.end)
			}
		})
	}
}

func TestGetLine(t *testing.T) {
	fs := NewFileSet()
	id := fs.AddVirtual("lines.tir", []byte("one\ntwo\nthree"))
	f := fs.Get(id)

	tests := []struct {
		line     uint32
		expected string
	}{
		{0, ""},
		{1, "one"},
		{2, "two"},
		{3, "three"},
		{4, ""},
	}

	for _, tt := range tests {
		if got := f.GetLine(tt.line); got != tt.expected {
			t.Errorf("GetLine(%d) = %q, want %q", tt.line, got, tt.expected)
		}
	}
}

func TestNormalizeCRLF(t *testing.T) {
	out, changed := normalizeCRLF([]byte("a\r\nb\rc\n"))
	if !changed {
		t.Error("expected CRLF normalization to report a change")
	}
	if string(out) != "a\nb\rc\n" {
		t.Errorf("normalizeCRLF = %q, want %q", out, "a\nb\rc\n")
	}

	out, changed = normalizeCRLF([]byte("plain\n"))
	if changed {
		t.Error("expected no change without CR")
	}
	if string(out) != "plain\n" {
		t.Errorf("normalizeCRLF = %q, want %q", out, "plain\n")
	}
}

func TestRemoveBOM(t *testing.T) {
	out, had := removeBOM([]byte{0xEF, 0xBB, 0xBF, 'x'})
	if !had || string(out) != "x" {
		t.Errorf("removeBOM = (%q, %v), want (%q, true)", out, had, "x")
	}

	out, had = removeBOM([]byte("xy"))
	if had || string(out) != "xy" {
		t.Errorf("removeBOM = (%q, %v), want (%q, false)", out, had, "xy")
	}
}
