package pipeline

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/toastate/toastpipe/internal/tlogger"
)

// Dest writes every file to dir, keeping its path relative to its base.
// The returned batch points at the written files.
func Dest(dir string) Step {
	return StepFunc("dest "+filepath.ToSlash(dir), func(ctx context.Context, in Batch) (Batch, error) {
		out := make(Batch, 0, len(in))
		for _, f := range in {
			target := filepath.Join(dir, filepath.FromSlash(f.Rel()))

			err := os.MkdirAll(filepath.Dir(target), 0755)
			if err != nil {
				tlogger.Error("step", "dest", "msg", "Failed to create folder", "file", target, "err", err)
				return nil, &IOError{Op: "write", Path: target, Err: err}
			}

			if f.Loaded() {
				mode := f.Mode
				if mode == 0 {
					mode = 0644
				}
				err = os.WriteFile(target, f.Contents, mode)
			} else if filepath.Clean(f.Path) != filepath.Clean(target) {
				_, err = copyFile(f.Path, target)
			}
			if err != nil {
				tlogger.Error("step", "dest", "msg", "output file creation", "file", target, "err", err)
				return nil, &IOError{Op: "write", Path: target, Err: err}
			}

			tlogger.Debug("step", "dest", "msg", "written", "file", target)
			out = append(out, &File{Path: target, Base: dir, Contents: f.Contents, Mode: f.Mode})
		}
		return out, nil
	})
}

// Clean removes every file under dir except the ones below the preserved
// subdirectories, then removes directories left empty. A missing dir is
// not an error. dir is walked as a plain path, never as a glob.
func Clean(dir string, preserve []string) error {
	dir = filepath.Clean(dir)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil
	}

	kept := make([]string, 0, len(preserve))
	for _, p := range preserve {
		kept = append(kept, filepath.Join(dir, filepath.FromSlash(p)))
	}

	files := []string{}
	dirs := []string{}
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if isPreserved(p, kept) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.IsDir() {
			files = append(files, p)
		} else if p != dir {
			dirs = append(dirs, p)
		}
		return nil
	})
	if err != nil {
		return &IOError{Op: "clean", Path: dir, Err: err}
	}

	for _, f := range files {
		err := os.Remove(f)
		if err != nil && !os.IsNotExist(err) {
			return &IOError{Op: "remove", Path: f, Err: err}
		}
		tlogger.Debug("step", "clean", "msg", "removed", "file", f)
	}

	// deepest first so parents are empty by the time they are visited
	sort.Slice(dirs, func(i, j int) bool { return len(dirs[i]) > len(dirs[j]) })
	for _, d := range dirs {
		entries, err := os.ReadDir(d)
		if err == nil && len(entries) == 0 {
			os.Remove(d)
		}
	}
	return nil
}

func isPreserved(p string, kept []string) bool {
	for _, k := range kept {
		if p == k || strings.HasPrefix(p, k+string(filepath.Separator)) {
			return true
		}
	}
	return false
}
