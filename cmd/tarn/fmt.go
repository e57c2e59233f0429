package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"tarn/internal/diag"
	"tarn/internal/driver"
	"tarn/internal/source"
)

var fmtCmd = &cobra.Command{
	Use:   "fmt [flags] <path> [path...]",
	Short: "Format tarn IR files",
	Long:  `Reprint .tir files in the canonical form the module printer produces`,
	Args:  cobra.MinimumNArgs(1),
	RunE:  runFmt,
}

func init() {
	fmtCmd.Flags().Bool("check", false, "check if files are properly formatted")
	fmtCmd.Flags().String("format", "text", "output format (text|json)")
	fmtCmd.Flags().Bool("stdout", false, "print formatted code to stdout instead of rewriting files")
}

func runFmt(cmd *cobra.Command, args []string) error {
	// Ensure trace is dumped on panic
	defer dumpTraceOnPanic()

	check, err := cmd.Flags().GetBool("check")
	if err != nil {
		return err
	}
	outputFormat, err := cmd.Flags().GetString("format")
	if err != nil {
		return err
	}
	writeToStdout, err := cmd.Flags().GetBool("stdout")
	if err != nil {
		return err
	}

	if writeToStdout && check {
		return fmt.Errorf("fmt: --stdout cannot be used with --check")
	}
	if writeToStdout && outputFormat != "text" {
		return fmt.Errorf("fmt: --stdout is only supported with text output")
	}

	maxDiagnostics, err := cmd.Root().PersistentFlags().GetInt("max-diagnostics")
	if err != nil {
		return err
	}
	quiet, err := cmd.Root().PersistentFlags().GetBool("quiet")
	if err != nil {
		return err
	}

	fs, results, err := driver.FormatPaths(cmd.Context(), args, driver.FormatOptions{
		Check:          check,
		Stdout:         writeToStdout,
		MaxDiagnostics: maxDiagnostics,
	})
	if err != nil {
		return err
	}

	var hasErrors, hasChanges bool
	for _, res := range results {
		if res.Bag.HasErrors() {
			hasErrors = true
		}
		if res.Changed {
			hasChanges = true
		}
	}

	switch outputFormat {
	case "text":
		if writeToStdout {
			renderFmtStdout(results, fs)
		} else {
			renderFmtText(results, fs, check, quiet)
		}
	case "json":
		if err := renderFmtJSON(results, check); err != nil {
			return err
		}
	default:
		return fmt.Errorf("fmt: unsupported output format %q", outputFormat)
	}

	if hasErrors {
		fmt.Fprintln(os.Stderr, "fmt: failed to format some files")
		return failSilently(cmd)
	}
	if check && hasChanges {
		if !quiet {
			fmt.Fprintln(os.Stderr, "fmt: formatting changes required")
		}
		return failSilently(cmd)
	}
	return nil
}

func renderFmtStdout(results []driver.FormatResult, fs *source.FileSet) {
	for _, res := range results {
		if res.Bag.HasErrors() {
			printFmtDiagnostics(res, fs)
			continue
		}
		_, _ = os.Stdout.Write(res.Formatted)
	}
}

func renderFmtText(results []driver.FormatResult, fs *source.FileSet, check, quiet bool) {
	for _, res := range results {
		if res.Bag.HasErrors() {
			printFmtDiagnostics(res, fs)
			continue
		}
		if !res.Changed || quiet {
			continue
		}
		if check {
			fmt.Fprintln(os.Stdout, res.Path)
		} else {
			fmt.Fprintf(os.Stdout, "reformatted %s\n", res.Path)
		}
	}
}

func renderFmtJSON(results []driver.FormatResult, check bool) error {
	type jsonResult struct {
		Path     string `json:"path"`
		Changed  bool   `json:"changed"`
		Error    string `json:"error,omitempty"`
		CheckRun bool   `json:"check"`
	}

	payload := make([]jsonResult, 0, len(results))
	for _, res := range results {
		jr := jsonResult{Path: res.Path, Changed: res.Changed, CheckRun: check}
		if res.Bag.HasErrors() {
			for _, d := range res.Bag.Items() {
				if d.Severity == diag.SevError {
					jr.Error = d.Message
					break
				}
			}
		}
		payload = append(payload, jr)
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(payload)
}

func printFmtDiagnostics(res driver.FormatResult, fs *source.FileSet) {
	output := diag.FormatGoldenDiagnostics(res.Bag.Items(), fs, false)
	if output != "" {
		fmt.Fprintln(os.Stderr, output)
	}
}
