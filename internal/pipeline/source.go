package pipeline

import (
	"context"
	"errors"
	"io/fs"
	"os"

	"github.com/toastate/toastpipe/internal/fileset"
	"github.com/toastate/toastpipe/internal/tlogger"
)

// Src appends the files selected by set, with their contents read.
func Src(set *fileset.Set) Step {
	return StepFunc("src", func(ctx context.Context, in Batch) (Batch, error) {
		return expandSet(in, set, true)
	})
}

// SrcLazy appends the files selected by set without reading them.
func SrcLazy(set *fileset.Set) Step {
	return StepFunc("src", func(ctx context.Context, in Batch) (Batch, error) {
		return expandSet(in, set, false)
	})
}

func expandSet(in Batch, set *fileset.Set, read bool) (Batch, error) {
	matches, err := set.Expand()
	if err != nil {
		return nil, &IOError{Op: "read", Path: pathOf(err), Err: err}
	}

	out := make(Batch, 0, len(in)+len(matches))
	out = append(out, in...)
	for _, m := range matches {
		info, err := os.Stat(m.Path)
		if err != nil {
			return nil, &IOError{Op: "read", Path: m.Path, Err: err}
		}

		f := &File{Path: m.Path, Base: m.Base, Mode: info.Mode().Perm()}
		if read {
			if _, err := f.Bytes(); err != nil {
				return nil, err
			}
		}
		tlogger.Debug("step", "src", "msg", "selected", "file", m.Path)
		out = append(out, f)
	}
	return out, nil
}

func pathOf(err error) string {
	var pe *fs.PathError
	if errors.As(err, &pe) {
		return pe.Path
	}
	return ""
}
