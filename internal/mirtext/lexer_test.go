package mirtext_test

import (
	"testing"

	"tarn/internal/diag"
	"tarn/internal/mirtext"
	"tarn/internal/source"
)

func lexAll(t *testing.T, src string) ([]mirtext.Token, *diag.Bag) {
	t.Helper()
	fs := source.NewFileSet()
	id := fs.AddVirtual("test.tir", []byte(src))
	bag := diag.NewBag(64)
	lx := mirtext.NewLexer(fs.Get(id), diag.BagReporter{Bag: bag})
	return lx.Tokens(), bag
}

func hasCode(bag *diag.Bag, code diag.Code) bool {
	for _, d := range bag.Items() {
		if d.Code == code {
			return true
		}
	}
	return false
}

func bagCodes(bag *diag.Bag) []diag.Code {
	out := make([]diag.Code, 0, bag.Len())
	for _, d := range bag.Items() {
		out = append(out, d.Code)
	}
	return out
}

func TestLexBasicTokens(t *testing.T) {
	toks, bag := lexAll(t, "%x = load %a")
	if bag.HasErrors() {
		t.Fatalf("unexpected diagnostics: %v", bagCodes(bag))
	}
	want := []struct {
		kind mirtext.Kind
		text string
	}{
		{mirtext.Percent, ""},
		{mirtext.Ident, "x"},
		{mirtext.Eq, ""},
		{mirtext.Ident, "load"},
		{mirtext.Percent, ""},
		{mirtext.Ident, "a"},
		{mirtext.EOF, ""},
	}
	if len(toks) != len(want) {
		t.Fatalf("got %d tokens, want %d", len(toks), len(want))
	}
	for i, w := range want {
		if toks[i].Kind != w.kind {
			t.Errorf("token %d: kind = %v, want %v", i, toks[i].Kind, w.kind)
		}
		if w.text != "" && toks[i].Text != w.text {
			t.Errorf("token %d: text = %q, want %q", i, toks[i].Text, w.text)
		}
	}
}

func TestLexKeywords(t *testing.T) {
	src := "fn struct opaque indirect to then else if goto return unreachable true false fnord"
	toks, _ := lexAll(t, src)
	want := []mirtext.Kind{
		mirtext.KwFn, mirtext.KwStruct, mirtext.KwOpaque, mirtext.KwIndirect,
		mirtext.KwTo, mirtext.KwThen, mirtext.KwElse, mirtext.KwIf,
		mirtext.KwGoto, mirtext.KwReturn, mirtext.KwUnreachable,
		mirtext.KwTrue, mirtext.KwFalse, mirtext.Ident, mirtext.EOF,
	}
	if len(toks) != len(want) {
		t.Fatalf("got %d tokens, want %d", len(toks), len(want))
	}
	for i, w := range want {
		if toks[i].Kind != w {
			t.Errorf("token %d: kind = %v, want %v", i, toks[i].Kind, w)
		}
	}
}

func TestLexArrowAndNumbers(t *testing.T) {
	toks, bag := lexAll(t, "-> 42 -7")
	if bag.HasErrors() {
		t.Fatalf("unexpected diagnostics: %v", bagCodes(bag))
	}
	if toks[0].Kind != mirtext.Arrow {
		t.Errorf("token 0: kind = %v, want %v", toks[0].Kind, mirtext.Arrow)
	}
	if toks[1].Kind != mirtext.IntLit || toks[1].Text != "42" {
		t.Errorf("token 1 = %v %q, want integer \"42\"", toks[1].Kind, toks[1].Text)
	}
	if toks[2].Kind != mirtext.IntLit || toks[2].Text != "-7" {
		t.Errorf("token 2 = %v %q, want integer \"-7\"", toks[2].Kind, toks[2].Text)
	}
}

func TestLexCommentsAndLineStarts(t *testing.T) {
	src := "// header comment\nfn @a // trailing\nbb0:"
	toks, bag := lexAll(t, src)
	if bag.HasErrors() {
		t.Fatalf("unexpected diagnostics: %v", bagCodes(bag))
	}
	want := []struct {
		kind    mirtext.Kind
		atStart bool
	}{
		{mirtext.KwFn, true},
		{mirtext.At, false},
		{mirtext.Ident, false},
		{mirtext.Ident, true}, // bb0
		{mirtext.Colon, false},
		{mirtext.EOF, true},
	}
	if len(toks) != len(want) {
		t.Fatalf("got %d tokens, want %d", len(toks), len(want))
	}
	for i, w := range want {
		if toks[i].Kind != w.kind {
			t.Errorf("token %d: kind = %v, want %v", i, toks[i].Kind, w.kind)
		}
		if toks[i].AtLineStart != w.atStart {
			t.Errorf("token %d: AtLineStart = %v, want %v", i, toks[i].AtLineStart, w.atStart)
		}
	}
}

func TestLexSpansSliceSource(t *testing.T) {
	src := "%x = elem_addr %p, 0"
	toks, _ := lexAll(t, src)
	for i, tok := range toks {
		if tok.Kind == mirtext.EOF {
			continue
		}
		got := src[tok.Span.Start:tok.Span.End]
		wantText := tok.Text
		if wantText == "" {
			// punctuation carries no text, the span still points at it
			if got == "" {
				t.Errorf("token %d: empty span", i)
			}
			continue
		}
		if got != wantText {
			t.Errorf("token %d: span slice %q, text %q", i, got, wantText)
		}
	}
}

func TestLexBadNumber(t *testing.T) {
	toks, bag := lexAll(t, "12ab")
	if !hasCode(bag, diag.LexBadNumber) {
		t.Fatalf("diagnostics %v do not include LexBadNumber", bagCodes(bag))
	}
	if toks[0].Kind != mirtext.Invalid {
		t.Errorf("token 0: kind = %v, want %v", toks[0].Kind, mirtext.Invalid)
	}
}

func TestLexUnknownChar(t *testing.T) {
	_, bag := lexAll(t, "#")
	if !hasCode(bag, diag.LexUnknownChar) {
		t.Fatalf("diagnostics %v do not include LexUnknownChar", bagCodes(bag))
	}
}

func TestLexNormalizesIdentifiers(t *testing.T) {
	// "e" + combining acute vs precomposed U+00E9: both must lex to the
	// same identifier text.
	decomposed := "séance"
	composed := "séance"
	toks, bag := lexAll(t, decomposed)
	if bag.HasErrors() {
		t.Fatalf("unexpected diagnostics: %v", bagCodes(bag))
	}
	if toks[0].Kind != mirtext.Ident {
		t.Fatalf("token 0: kind = %v, want %v", toks[0].Kind, mirtext.Ident)
	}
	if toks[0].Text != composed {
		t.Errorf("identifier text = %q, want %q", toks[0].Text, composed)
	}
}
