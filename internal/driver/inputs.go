package driver

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

// CollectInputs expands the given paths into the sorted list of .tir files
// Run would process. Commands call it up front to validate inputs and to
// size progress displays.
func CollectInputs(ctx context.Context, paths []string) ([]string, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	return collectTirFiles(ctx, paths)
}

// collectTirFiles expands the given paths into a sorted, deduplicated list
// of .tir files. Directories are walked recursively.
func collectTirFiles(ctx context.Context, paths []string) ([]string, error) {
	var files []string
	seen := make(map[string]struct{})
	addFile := func(path string) {
		if _, ok := seen[path]; ok {
			return
		}
		seen[path] = struct{}{}
		files = append(files, path)
	}

	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if info.IsDir() {
			err = filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
				if err != nil {
					return err
				}
				if err := ctx.Err(); err != nil {
					return err
				}
				if d.IsDir() {
					return nil
				}
				if filepath.Ext(path) == ".tir" {
					addFile(path)
				}
				return nil
			})
			if err != nil {
				return nil, err
			}
			continue
		}

		if filepath.Ext(p) == ".tir" {
			addFile(p)
		}
	}

	sort.Strings(files)
	return files, nil
}
