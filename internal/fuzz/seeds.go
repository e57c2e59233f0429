package fuzztests

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"
)

const (
	maxSeedBytes = 64 << 10 // 64 KiB — ограничение для тестового корпуса
)

func addCorpusSeeds(f *testing.F) {
	addTestdataSeeds(f)
	addGrammarSeeds(f)
}

func addTestdataSeeds(f *testing.F) {
	root := filepath.Join("..", "..", "testdata")
	if _, err := os.Stat(root); err != nil {
		return
	}
	// проходим по дереву testdata, добавляем все *.tir файлы
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if filepath.Ext(path) != ".tir" {
			return nil
		}
		// #nosec G304 -- path comes from repository testdata walk
		src, err := os.ReadFile(path)
		if err != nil {
			return nil
		}
		f.Add(clampSeed(src))
		return nil
	})
	if err != nil {
		return
	}
}

// addGrammarSeeds covers each construct of the grammar at least once, plus
// the malformed shapes the parser recovers from.
func addGrammarSeeds(f *testing.F) {
	seeds := []string{
		"",
		"fn @id(%x: $Int) -> $Int {\nbb0:\n\treturn %x\n}\n",
		"fn @ext(%p: $&Int) -> $Unit;\n",
		"struct Box { v: $Int }\n",
		"struct Hidden opaque\n",
		"fn @mk() -> $Int {\nbb0:\n\t%b = alloc $Int\n\t%c = const 7 : $Int\n\tstore %c to %b\n\t%v = load %b\n\tdealloc %b\n\treturn %v\n}\n",
		"fn @loop() -> $Unit {\nbb0:\n\tgoto bb1\nbb1:\n\tgoto bb0\n}\n",
		"fn @br(%c: $Bool) -> $Unit {\nbb0:\n\tif %c then bb1 else bb2\nbb1:\n\treturn\nbb2:\n\tunreachable\n}\n",
		"fn @pair() -> $(Int, Bool) {\nbb0:\n\t%a = const 1 : $Int\n\t%b = const true : $Bool\n\t%t = tuple (%a, %b)\n\treturn %t\n}\n",
		"fn @broken( {\n",
		"fn @dup() -> $Unit {\nbb0:\nbb0:\n\treturn\n}\n",
		"struct Pair { a: $Int, b: }\n",
		"%stray = const 1 : $Int\n",
	}
	for _, s := range seeds {
		f.Add([]byte(s))
	}
}

func clampSeed(b []byte) []byte {
	if len(b) > maxSeedBytes {
		b = b[:maxSeedBytes]
	}
	return append([]byte(nil), b...)
}
