// Package main implements the tarn CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"tarn/internal/driver"
)

var optCmd = &cobra.Command{
	Use:   "opt [flags] <path> [path...]",
	Short: "Optimize tarn IR files",
	Long: `Run the optimization pipeline over .tir files or directories of them.
Without -o or -w the optimized text of a single input goes to stdout.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runOpt,
}

// init registers CLI flags for the opt command used by runOpt.
func init() {
	optCmd.Flags().StringP("out-dir", "o", "", "write optimized files into this directory")
	optCmd.Flags().BoolP("write", "w", false, "rewrite changed input files in place")
	registerRunFlags(optCmd)
}

// runOpt executes the "opt" command: it merges tarn.toml with flags, runs
// the driver over every input, renders diagnostics in the chosen format,
// and writes or prints the optimized text.
func runOpt(cmd *cobra.Command, args []string) error {
	// Ensure trace is dumped on panic
	defer dumpTraceOnPanic()

	cleanup, err := setupTracing(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	stopProfiling, err := setupProfiling(cmd)
	if err != nil {
		return err
	}
	defer stopProfiling()

	outDir, err := cmd.Flags().GetString("out-dir")
	if err != nil {
		return fmt.Errorf("failed to get out-dir flag: %w", err)
	}
	write, err := cmd.Flags().GetBool("write")
	if err != nil {
		return fmt.Errorf("failed to get write flag: %w", err)
	}
	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return fmt.Errorf("failed to get format flag: %w", err)
	}
	withNotes, err := cmd.Flags().GetBool("with-notes")
	if err != nil {
		return fmt.Errorf("failed to get with-notes flag: %w", err)
	}
	fullPath, err := cmd.Flags().GetBool("fullpath")
	if err != nil {
		return fmt.Errorf("failed to get fullpath flag: %w", err)
	}
	uiValue, err := cmd.Flags().GetString("ui")
	if err != nil {
		return fmt.Errorf("failed to get ui flag: %w", err)
	}

	if outDir != "" && write {
		return fmt.Errorf("--out-dir and --write are mutually exclusive")
	}
	uiModeValue, err := readUIMode(uiValue)
	if err != nil {
		return err
	}

	settings, err := resolveRunSettings(cmd)
	if err != nil {
		return err
	}

	files, err := collectRunInputs(cmd, args)
	if err != nil {
		return err
	}
	stdoutMode := outDir == "" && !write
	if stdoutMode && len(files) > 1 {
		return fmt.Errorf("optimizing %d files needs -o or -w (stdout output is single-file only)", len(files))
	}

	opts := driver.Options{
		Passes:         settings.passes,
		MaxDiagnostics: settings.maxDiag,
		Jobs:           settings.jobs,
		CheckOnly:      stdoutMode,
		OutDir:         outDir,
		InPlace:        write,
		NoCache:        settings.noCache,
		CacheDir:       settings.cacheDir,
		EnableTimings:  settings.timings,
	}

	// Прогресс-бар только там, где он не мешает выводу
	useTUI := shouldUseTUI(uiModeValue) && !stdoutMode && format == "pretty"
	var run *driver.RunResult
	if useTUI {
		run, err = runOptWithUI(cmd.Context(), "tarn opt", files, opts)
	} else {
		run, err = driver.Run(cmd.Context(), files, opts)
	}
	if err != nil {
		return err
	}

	if err := renderRunDiagnostics(cmd, run, format, withNotes, fullPath); err != nil {
		return err
	}

	if stdoutMode && !run.Bag.HasErrors() {
		if _, err := os.Stdout.Write(run.Files[0].Text); err != nil {
			return err
		}
	}
	if !settings.quiet && format == "pretty" {
		for _, res := range run.Files {
			if res.OutPath != "" {
				fmt.Fprintf(os.Stdout, "wrote %s\n", res.OutPath)
			}
		}
	}

	if run.Bag.HasErrors() {
		return failSilently(cmd)
	}
	return nil
}
