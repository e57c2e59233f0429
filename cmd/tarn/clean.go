package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"tarn/internal/driver"
	"tarn/internal/project"
)

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove the tarn artifact cache",
	Long:  "Remove cached optimizer artifacts so the next run starts cold.",
	Args:  cobra.NoArgs,
	RunE:  runClean,
}

func init() {
	cleanCmd.Flags().String("cache-dir", "", "artifact cache directory (default: user cache dir)")
}

func runClean(cmd *cobra.Command, _ []string) error {
	cacheDir, err := cmd.Flags().GetString("cache-dir")
	if err != nil {
		return fmt.Errorf("failed to get cache-dir flag: %w", err)
	}
	if cacheDir == "" {
		// Без флага чистим тот же каталог, что использовал бы драйвер
		cfg, _, _, cfgErr := project.LoadProjectConfig(".")
		if cfgErr != nil {
			return cfgErr
		}
		cacheDir = cfg.Cache.Dir
	}

	cache, err := driver.OpenDiskCache(cacheDir)
	if err != nil {
		return fmt.Errorf("failed to open cache: %w", err)
	}
	dir := cache.Dir()
	if err := cache.DropAll(); err != nil {
		return fmt.Errorf("failed to remove %q: %w", dir, err)
	}
	_, _ = fmt.Fprintf(os.Stdout, "removed %s\n", dir)
	return nil
}
