package main

import (
	"github.com/spf13/cobra"

	"tarn/internal/driver"
)

var checkCmd = &cobra.Command{
	Use:   "check [flags] <path> [path...]",
	Short: "Run the optimizer without writing anything",
	Long:  `Parse, validate, and optimize .tir files, reporting diagnostics only`,
	Args:  cobra.MinimumNArgs(1),
	RunE:  runCheck,
}

func init() {
	registerRunFlags(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
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

	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return err
	}
	withNotes, err := cmd.Flags().GetBool("with-notes")
	if err != nil {
		return err
	}
	fullPath, err := cmd.Flags().GetBool("fullpath")
	if err != nil {
		return err
	}
	uiValue, err := cmd.Flags().GetString("ui")
	if err != nil {
		return err
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

	opts := driver.Options{
		Passes:         settings.passes,
		MaxDiagnostics: settings.maxDiag,
		Jobs:           settings.jobs,
		CheckOnly:      true,
		NoCache:        settings.noCache,
		CacheDir:       settings.cacheDir,
		EnableTimings:  settings.timings,
	}

	useTUI := shouldUseTUI(uiModeValue) && format == "pretty" && len(files) > 1
	var run *driver.RunResult
	if useTUI {
		run, err = runOptWithUI(cmd.Context(), "tarn check", files, opts)
	} else {
		run, err = driver.Run(cmd.Context(), files, opts)
	}
	if err != nil {
		return err
	}

	if err := renderRunDiagnostics(cmd, run, format, withNotes, fullPath); err != nil {
		return err
	}

	if run.Bag.HasErrors() {
		return failSilently(cmd)
	}
	return nil
}
