package fuzztests

import (
	"testing"

	"tarn/internal/diag"
	"tarn/internal/mirtext"
	"tarn/internal/source"
)

const maxFuzzInput = 1 << 16 // 64 KiB

func FuzzLexerTokens(f *testing.F) {
	addCorpusSeeds(f)
	f.Fuzz(func(t *testing.T, input []byte) {
		input = clampSeed(input)
		if len(input) > maxFuzzInput {
			input = input[:maxFuzzInput]
		}

		fs := source.NewFileSet()
		fileID := fs.AddVirtual("fuzz.tir", input)
		file := fs.Get(fileID)

		bag := diag.NewBag(64)
		lx := mirtext.NewLexer(file, diag.BagReporter{Bag: bag})
		toks := lx.Tokens()
		if len(toks) == 0 {
			t.Fatal("token stream must at least contain EOF")
		}
		if toks[len(toks)-1].Kind != mirtext.EOF {
			t.Fatalf("token stream ends in %v, want EOF", toks[len(toks)-1].Kind)
		}
	})
}
