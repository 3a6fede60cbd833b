package pipeline

import (
	"bytes"
	"context"
	"path/filepath"
)

// Concat joins the batch, in order, into a single file called name placed
// at the base of the first file. An empty batch stays empty.
func Concat(name string) Step {
	return StepFunc("concat "+name, func(ctx context.Context, in Batch) (Batch, error) {
		if len(in) == 0 {
			return in, nil
		}

		var buf bytes.Buffer
		for i, f := range in {
			b, err := f.Bytes()
			if err != nil {
				return nil, err
			}
			if i > 0 {
				buf.WriteByte('\n')
			}
			buf.Write(replaceWindowsCarriageReturn(b))
		}

		first := in[0]
		contents := buf.Bytes()
		if contents == nil {
			contents = []byte{}
		}
		return Batch{{
			Path:     filepath.Join(first.Base, filepath.FromSlash(name)),
			Base:     first.Base,
			Contents: contents,
			Mode:     0644,
		}}, nil
	})
}
