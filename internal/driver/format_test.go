package driver

import (
	"context"
	"os"
	"testing"

	"tarn/internal/diag"
)

// Space indentation parses fine but is not what the printer emits.
const looseSrc = "fn @id(%x: $Int) -> $Int {\nbb0:\n    return %x\n}\n"

func TestFormatCheckReportsLooseFile(t *testing.T) {
	dir := t.TempDir()
	path := writeInput(t, dir, "loose.tir", looseSrc)

	_, results, err := FormatPaths(context.Background(), []string{path}, FormatOptions{Check: true})
	if err != nil {
		t.Fatalf("FormatPaths: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("len(results) = %d, want 1", len(results))
	}
	res := results[0]
	if !res.Changed {
		t.Fatal("loose file reported as canonical")
	}

	found := false
	for _, d := range res.Bag.Items() {
		if d.Code == diag.FmtNotCanonical {
			found = true
			if d.Severity != diag.SevWarning {
				t.Errorf("severity = %v, want warning", d.Severity)
			}
			if d.Primary.Empty() {
				t.Error("diagnostic has no location")
			}
		}
	}
	if !found {
		t.Error("no FMT finding for a loose file")
	}

	onDisk, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(onDisk) != looseSrc {
		t.Error("check mode modified the file")
	}
}

func TestFormatRewriteConverges(t *testing.T) {
	dir := t.TempDir()
	path := writeInput(t, dir, "loose.tir", looseSrc)

	_, first, err := FormatPaths(context.Background(), []string{path}, FormatOptions{})
	if err != nil {
		t.Fatalf("first FormatPaths: %v", err)
	}
	if !first[0].Changed {
		t.Fatal("rewrite did not change a loose file")
	}

	_, second, err := FormatPaths(context.Background(), []string{path}, FormatOptions{})
	if err != nil {
		t.Fatalf("second FormatPaths: %v", err)
	}
	if second[0].Changed {
		t.Error("second format still changed the file")
	}
	if second[0].Bag.Len() != 0 {
		t.Errorf("clean reformat produced diagnostics: %v", second[0].Bag.Items())
	}

	onDisk, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(onDisk) != string(first[0].Formatted) {
		t.Error("on-disk content does not match the formatted text")
	}
}

func TestFormatParseErrorLeavesFile(t *testing.T) {
	dir := t.TempDir()
	path := writeInput(t, dir, "broken.tir", "fn @broken( {\n")

	_, results, err := FormatPaths(context.Background(), []string{path}, FormatOptions{})
	if err != nil {
		t.Fatalf("FormatPaths: %v", err)
	}
	if !results[0].Bag.HasErrors() {
		t.Fatal("broken file parsed without errors")
	}
	if results[0].Formatted != nil {
		t.Error("broken file produced formatted output")
	}

	onDisk, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(onDisk) != "fn @broken( {\n" {
		t.Error("broken file was modified")
	}
}

func TestFirstDiff(t *testing.T) {
	tests := []struct {
		a, b string
		want uint32
	}{
		{"abc", "abc", 3},
		{"abc", "abd", 2},
		{"abc", "abcd", 3},
		{"", "x", 0},
		{"xyz", "ayz", 0},
	}
	for _, tt := range tests {
		if got := firstDiff([]byte(tt.a), []byte(tt.b)); got != tt.want {
			t.Errorf("firstDiff(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}
