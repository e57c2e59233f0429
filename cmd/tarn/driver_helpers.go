package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"tarn/internal/diag"
	"tarn/internal/diagfmt"
	"tarn/internal/driver"
	"tarn/internal/project"
)

// runSettings carries the merged tarn.toml and flag settings for one
// driver run. Flags win over the manifest, the manifest over defaults.
type runSettings struct {
	passes   []string
	maxDiag  int
	jobs     int
	noCache  bool
	cacheDir string
	timings  bool
	quiet    bool
}

// resolveRunSettings reads tarn.toml (if any) and overlays the command's
// flags on top of it.
func resolveRunSettings(cmd *cobra.Command) (runSettings, error) {
	cfg, _, _, err := project.LoadProjectConfig(".")
	if err != nil {
		return runSettings{}, err
	}

	s := runSettings{
		passes:   cfg.Pipeline.Passes,
		maxDiag:  cfg.Diagnostics.Max,
		jobs:     cfg.Build.Jobs,
		noCache:  !cfg.Cache.Enabled,
		cacheDir: cfg.Cache.Dir,
	}

	root := cmd.Root().PersistentFlags()
	if root.Changed("max-diagnostics") {
		s.maxDiag, err = root.GetInt("max-diagnostics")
		if err != nil {
			return runSettings{}, fmt.Errorf("failed to get max-diagnostics flag: %w", err)
		}
	}
	s.timings, err = root.GetBool("timings")
	if err != nil {
		return runSettings{}, fmt.Errorf("failed to get timings flag: %w", err)
	}
	s.quiet, err = root.GetBool("quiet")
	if err != nil {
		return runSettings{}, fmt.Errorf("failed to get quiet flag: %w", err)
	}

	flags := cmd.Flags()
	if flags.Changed("passes") {
		s.passes, err = flags.GetStringSlice("passes")
		if err != nil {
			return runSettings{}, fmt.Errorf("failed to get passes flag: %w", err)
		}
	}
	if flags.Changed("jobs") {
		s.jobs, err = flags.GetInt("jobs")
		if err != nil {
			return runSettings{}, fmt.Errorf("failed to get jobs flag: %w", err)
		}
	}
	if flags.Changed("no-cache") {
		s.noCache, err = flags.GetBool("no-cache")
		if err != nil {
			return runSettings{}, fmt.Errorf("failed to get no-cache flag: %w", err)
		}
	}
	if flags.Changed("cache-dir") {
		s.cacheDir, err = flags.GetString("cache-dir")
		if err != nil {
			return runSettings{}, fmt.Errorf("failed to get cache-dir flag: %w", err)
		}
	}
	return s, nil
}

// registerRunFlags declares the flags shared by opt and check.
func registerRunFlags(cmd *cobra.Command) {
	cmd.Flags().StringSlice("passes", nil, "comma-separated pass pipeline (default from tarn.toml or built-in)")
	cmd.Flags().Int("jobs", 0, "max parallel workers (0=auto)")
	cmd.Flags().Bool("no-cache", false, "disable the persistent artifact cache")
	cmd.Flags().String("cache-dir", "", "artifact cache directory (default: user cache dir)")
	cmd.Flags().String("format", "pretty", "output format (pretty|json|short)")
	cmd.Flags().Bool("with-notes", false, "include diagnostic notes in output")
	cmd.Flags().Bool("fullpath", false, "emit absolute file paths in output")
	cmd.Flags().String("ui", "auto", "progress display (auto|on|off)")
}

// renderRunDiagnostics prints the merged bag of a driver run in the
// requested format.
func renderRunDiagnostics(cmd *cobra.Command, run *driver.RunResult, format string, withNotes, fullPath bool) error {
	pathMode := diagfmt.PathModeAuto
	if fullPath {
		pathMode = diagfmt.PathModeAbsolute
	}

	switch format {
	case "pretty":
		useColor, err := resolveColor(cmd)
		if err != nil {
			return err
		}
		diagfmt.Pretty(os.Stdout, run.Bag, run.FileSet, diagfmt.PrettyOpts{
			Color:     useColor,
			Context:   2,
			PathMode:  pathMode,
			ShowNotes: withNotes,
		})
	case "short":
		output := diag.FormatGoldenDiagnostics(run.Bag.Items(), run.FileSet, withNotes)
		if output != "" {
			fmt.Fprintln(os.Stdout, output)
		}
	case "json":
		jsonOpts := diagfmt.JSONOpts{
			IncludePositions: true,
			PathMode:         pathMode,
			IncludeNotes:     withNotes,
		}
		if err := diagfmt.JSON(os.Stdout, run.Bag, run.FileSet, jsonOpts); err != nil {
			return fmt.Errorf("failed to format diagnostics: %w", err)
		}
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
	return nil
}

// resolveColor maps the --color persistent flag onto a concrete choice.
func resolveColor(cmd *cobra.Command) (bool, error) {
	colorFlag, err := cmd.Root().PersistentFlags().GetString("color")
	if err != nil {
		return false, fmt.Errorf("failed to get color flag: %w", err)
	}
	return colorFlag == "on" || (colorFlag == "auto" && isTerminal(os.Stdout)), nil
}

// failSilently marks the command as already reported and returns the empty
// error main() maps to exit code 1.
func failSilently(cmd *cobra.Command) error {
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true
	return fmt.Errorf("")
}

// collectRunInputs expands command arguments the way the driver will and
// rejects empty input sets up front.
func collectRunInputs(cmd *cobra.Command, args []string) ([]string, error) {
	files, err := driver.CollectInputs(cmd.Context(), args)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no .tir input files found")
	}
	return files, nil
}
