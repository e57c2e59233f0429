package driver

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"tarn/internal/diag"
)

const promotableSrc = `fn @mk() -> $Int {
bb0:
	%box = alloc $Int
	%one = const 1 : $Int
	store %one to %box
	%back = load %box
	dealloc %box
	return %back
}
`

const uninitSrc = `fn @bad() -> $Int {
bb0:
	%box = alloc $Int
	%x = load %box
	return %x
}
`

func writeInput(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile(%s): %v", name, err)
	}
	return path
}

func goldenOf(t *testing.T, res *RunResult) string {
	t.Helper()
	return diag.FormatGoldenDiagnostics(res.Bag.Items(), res.FileSet, false)
}

func TestRunCheckOnly(t *testing.T) {
	dir := t.TempDir()
	writeInput(t, dir, "bad.tir", uninitSrc)
	writeInput(t, dir, "mk.tir", promotableSrc)

	res, err := Run(context.Background(), []string{dir}, Options{CheckOnly: true, NoCache: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Files) != 2 {
		t.Fatalf("len(Files) = %d, want 2", len(res.Files))
	}

	bad, mk := res.Files[0], res.Files[1]
	if filepath.Base(bad.Path) != "bad.tir" || filepath.Base(mk.Path) != "mk.tir" {
		t.Fatalf("file order = %s, %s; want bad.tir, mk.tir", bad.Path, mk.Path)
	}

	if !bad.Bag.HasErrors() {
		t.Error("bad.tir: no errors reported")
	}
	foundUninit := false
	for _, d := range bad.Bag.Items() {
		if d.Code == diag.OptUseBeforeInit {
			foundUninit = true
		}
	}
	if !foundUninit {
		t.Errorf("bad.tir diagnostics = %v, want OPT%d", goldenOf(t, res), diag.OptUseBeforeInit)
	}
	if bad.Text != nil {
		t.Error("bad.tir: got output text despite errors")
	}

	if mk.Bag.HasErrors() {
		t.Errorf("mk.tir: unexpected errors: %s", goldenOf(t, res))
	}
	if mk.Text == nil || !mk.Changed {
		t.Error("mk.tir: expected changed optimized text")
	}
	if mk.OutPath != "" {
		t.Errorf("mk.tir: OutPath = %q in check-only mode", mk.OutPath)
	}

	onDisk, err := os.ReadFile(mk.Path)
	if err != nil {
		t.Fatal(err)
	}
	if string(onDisk) != promotableSrc {
		t.Error("check-only run modified the input file")
	}
}

func TestRunWritesToOutDir(t *testing.T) {
	dir := t.TempDir()
	writeInput(t, dir, "bad.tir", uninitSrc)
	writeInput(t, dir, "mk.tir", promotableSrc)
	out := filepath.Join(dir, "out")

	res, err := Run(context.Background(), []string{dir}, Options{OutDir: out, NoCache: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	bad, mk := res.Files[0], res.Files[1]
	if bad.OutPath != "" {
		t.Error("bad.tir: wrote output despite errors")
	}
	if _, err := os.Stat(filepath.Join(out, "bad.tir")); !os.IsNotExist(err) {
		t.Error("bad.tir: output file exists")
	}

	want := filepath.Join(out, "mk.tir")
	if mk.OutPath != want {
		t.Fatalf("mk.tir: OutPath = %q, want %q", mk.OutPath, want)
	}
	written, err := os.ReadFile(want)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(written, mk.Text) {
		t.Error("written bytes differ from result text")
	}
}

func TestRunInPlaceIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	path := writeInput(t, dir, "mk.tir", promotableSrc)

	first, err := Run(context.Background(), []string{path}, Options{InPlace: true, NoCache: true})
	if err != nil {
		t.Fatalf("first Run: %v", err)
	}
	if !first.Files[0].Changed || first.Files[0].OutPath != path {
		t.Fatalf("first run: Changed=%v OutPath=%q, want rewrite of %q", first.Files[0].Changed, first.Files[0].OutPath, path)
	}

	second, err := Run(context.Background(), []string{path}, Options{InPlace: true, NoCache: true})
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if second.Files[0].Changed {
		t.Error("second run still changed the file; pipeline is not idempotent on its own output")
	}
	if second.Files[0].OutPath != "" {
		t.Error("second run rewrote an unchanged file")
	}

	onDisk, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(onDisk, first.Files[0].Text) {
		t.Error("on-disk content does not match the optimized text")
	}
}

func TestRunCacheHit(t *testing.T) {
	dir := t.TempDir()
	writeInput(t, dir, "bad.tir", uninitSrc)
	writeInput(t, dir, "mk.tir", promotableSrc)
	opts := Options{CheckOnly: true, CacheDir: filepath.Join(dir, "cache")}

	first, err := Run(context.Background(), []string{dir}, opts)
	if err != nil {
		t.Fatalf("first Run: %v", err)
	}
	for _, f := range first.Files {
		if f.FromCache {
			t.Fatalf("%s: cache hit on a cold cache", f.Path)
		}
	}

	second, err := Run(context.Background(), []string{dir}, opts)
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	for i, f := range second.Files {
		if !f.FromCache {
			t.Errorf("%s: expected cache hit", f.Path)
		}
		if !bytes.Equal(f.Text, first.Files[i].Text) {
			t.Errorf("%s: cached text differs from computed text", f.Path)
		}
	}
	if got, want := goldenOf(t, second), goldenOf(t, first); got != want {
		t.Errorf("cached diagnostics differ:\ngot:\n%swant:\n%s", got, want)
	}
}

func TestRunParallelDeterminism(t *testing.T) {
	dir := t.TempDir()
	writeInput(t, dir, "a.tir", promotableSrc)
	writeInput(t, dir, "b.tir", uninitSrc)
	writeInput(t, dir, "c.tir", "fn @c(%x: $Int) -> $Int {\nbb0:\n\treturn %x\n}\n")
	writeInput(t, dir, "d.tir", uninitSrc)
	opts := Options{CheckOnly: true, NoCache: true, Jobs: 4}

	first, err := Run(context.Background(), []string{dir}, opts)
	if err != nil {
		t.Fatalf("first Run: %v", err)
	}
	second, err := Run(context.Background(), []string{dir}, opts)
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}

	if got, want := goldenOf(t, second), goldenOf(t, first); got != want {
		t.Errorf("diagnostics differ across runs:\ngot:\n%swant:\n%s", got, want)
	}
	for i := range first.Files {
		if !bytes.Equal(first.Files[i].Text, second.Files[i].Text) {
			t.Errorf("%s: output text differs across runs", first.Files[i].Path)
		}
	}
}

func TestRunEmitsProgressEvents(t *testing.T) {
	dir := t.TempDir()
	writeInput(t, dir, "bad.tir", uninitSrc)
	writeInput(t, dir, "mk.tir", promotableSrc)

	ch := make(chan Event, 64)
	_, err := Run(context.Background(), []string{dir}, Options{
		CheckOnly: true,
		NoCache:   true,
		Progress:  ChannelSink{Ch: ch},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	close(ch)

	queued := 0
	terminal := map[string]Status{}
	for ev := range ch {
		switch ev.Status {
		case StatusQueued:
			queued++
		case StatusDone, StatusError:
			terminal[filepath.Base(ev.File)] = ev.Status
		}
	}
	if queued != 2 {
		t.Errorf("queued events = %d, want 2", queued)
	}
	if terminal["bad.tir"] != StatusError {
		t.Errorf("bad.tir terminal status = %q, want error", terminal["bad.tir"])
	}
	if terminal["mk.tir"] != StatusDone {
		t.Errorf("mk.tir terminal status = %q, want done", terminal["mk.tir"])
	}
}

func TestRunRejectsUnknownPass(t *testing.T) {
	dir := t.TempDir()
	writeInput(t, dir, "mk.tir", promotableSrc)

	_, err := Run(context.Background(), []string{dir}, Options{CheckOnly: true, NoCache: true, Passes: []string{"promote-memory", "inline"}})
	if err == nil {
		t.Fatal("Run accepted an unknown pass name")
	}
}

func TestCollectTirFiles(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "sub")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	a := writeInput(t, dir, "a.tir", "fn @a() -> $Int;\n")
	writeInput(t, dir, "skip.txt", "not ir")
	b := writeInput(t, sub, "b.tir", "fn @b() -> $Int;\n")

	got, err := collectTirFiles(context.Background(), []string{dir, a})
	if err != nil {
		t.Fatalf("collectTirFiles: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len(files) = %d (%v), want 2", len(got), got)
	}
	if got[0] != a || got[1] != b {
		t.Errorf("files = %v, want [%s %s]", got, a, b)
	}
}
