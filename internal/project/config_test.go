package project

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeManifest(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "tarn.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write manifest: %v", err)
	}
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeManifest(t, t.TempDir(), "[project]\nname = \"demo\"\n")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}

	if cfg.Project.Name != "demo" {
		t.Errorf("Project.Name = %q, want %q", cfg.Project.Name, "demo")
	}
	if cfg.Diagnostics.Max != 100 {
		t.Errorf("Diagnostics.Max = %d, want 100", cfg.Diagnostics.Max)
	}
	if !cfg.Cache.Enabled {
		t.Error("Cache.Enabled = false, want true by default")
	}
	if cfg.Cache.Dir != "" {
		t.Errorf("Cache.Dir = %q, want empty", cfg.Cache.Dir)
	}
	if cfg.Build.Jobs != 0 {
		t.Errorf("Build.Jobs = %d, want 0", cfg.Build.Jobs)
	}
	if cfg.Pipeline.Passes != nil {
		t.Errorf("Pipeline.Passes = %v, want nil (default pipeline)", cfg.Pipeline.Passes)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	path := writeManifest(t, t.TempDir(), `
[project]
name = "kernels"

[pipeline]
passes = ["simplify-cfg", "promote-memory"]

[diagnostics]
max = 25

[cache]
enabled = false
dir = ".tarn-cache"

[build]
jobs = 4
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}

	if cfg.Project.Name != "kernels" {
		t.Errorf("Project.Name = %q, want %q", cfg.Project.Name, "kernels")
	}
	wantPasses := []string{"simplify-cfg", "promote-memory"}
	if len(cfg.Pipeline.Passes) != len(wantPasses) {
		t.Fatalf("Pipeline.Passes = %v, want %v", cfg.Pipeline.Passes, wantPasses)
	}
	for i, p := range wantPasses {
		if cfg.Pipeline.Passes[i] != p {
			t.Errorf("Pipeline.Passes[%d] = %q, want %q", i, cfg.Pipeline.Passes[i], p)
		}
	}
	if cfg.Diagnostics.Max != 25 {
		t.Errorf("Diagnostics.Max = %d, want 25", cfg.Diagnostics.Max)
	}
	if cfg.Cache.Enabled {
		t.Error("Cache.Enabled = true, want false")
	}
	if cfg.Cache.Dir != ".tarn-cache" {
		t.Errorf("Cache.Dir = %q, want %q", cfg.Cache.Dir, ".tarn-cache")
	}
	if cfg.Build.Jobs != 4 {
		t.Errorf("Build.Jobs = %d, want 4", cfg.Build.Jobs)
	}
}

func TestLoadConfigInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr error
	}{
		{
			name:    "negative max diagnostics",
			content: "[diagnostics]\nmax = -1\n",
			wantErr: ErrNegativeMaxDiagnostics,
		},
		{
			name:    "negative jobs",
			content: "[build]\njobs = -2\n",
			wantErr: ErrNegativeJobs,
		},
		{
			name:    "empty pass name",
			content: "[pipeline]\npasses = [\"dce\", \"  \"]\n",
			wantErr: ErrEmptyPassName,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeManifest(t, t.TempDir(), tt.content)
			_, err := LoadConfig(path)
			if err == nil {
				t.Fatal("LoadConfig succeeded, want error")
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("LoadConfig error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadConfigBadTOML(t *testing.T) {
	path := writeManifest(t, t.TempDir(), "[project\nname = \"broken\n")
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("LoadConfig succeeded on malformed TOML, want error")
	}
}

func TestFindTarnTomlWalksUp(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root, "[project]\nname = \"up\"\n")

	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatalf("failed to create nested dirs: %v", err)
	}

	path, ok, err := FindTarnToml(nested)
	if err != nil {
		t.Fatalf("FindTarnToml returned error: %v", err)
	}
	if !ok {
		t.Fatal("FindTarnToml did not find manifest in ancestor")
	}
	if filepath.Dir(path) != root {
		t.Errorf("manifest found at %q, want directory %q", path, root)
	}

	gotRoot, ok, err := FindProjectRoot(nested)
	if err != nil || !ok {
		t.Fatalf("FindProjectRoot = ok=%v err=%v", ok, err)
	}
	if gotRoot != root {
		t.Errorf("FindProjectRoot = %q, want %q", gotRoot, root)
	}
}

func TestLoadProjectConfigMissing(t *testing.T) {
	cfg, manifestPath, ok, err := LoadProjectConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadProjectConfig returned error: %v", err)
	}
	if ok {
		t.Skip("unexpected tarn.toml in temp dir ancestry")
	}
	if manifestPath != "" {
		t.Errorf("manifestPath = %q, want empty", manifestPath)
	}
	if cfg.Diagnostics.Max != 100 {
		t.Errorf("Diagnostics.Max = %d, want default 100", cfg.Diagnostics.Max)
	}
}

func TestCombineDependsOnOrder(t *testing.T) {
	var a, b Digest
	a[0] = 1
	b[0] = 2

	if Combine(a, b) == Combine(b, a) {
		t.Error("Combine is order-insensitive, want distinct digests")
	}
	if Combine(a) == a {
		t.Error("Combine(a) equals a, want rehash")
	}
}

func TestHashStringsBoundaries(t *testing.T) {
	if HashStrings([]string{"a", "bc"}) == HashStrings([]string{"ab", "c"}) {
		t.Error("HashStrings ignores element boundaries")
	}
	if HashStrings(nil) != HashStrings([]string{}) {
		t.Error("HashStrings(nil) differs from HashStrings(empty)")
	}
}
