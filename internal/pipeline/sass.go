package pipeline

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"

	"github.com/toastate/toastpipe/internal/tlogger"
)

// Sass compiles every non-partial file of the batch with an external
// compiler. command is a shell command line run through mvdan.cc/sh with
// SASS_INPUT (absolute source path), SASS_STYLE and SASS_INCLUDE_PATHS in
// its environment; whatever it prints on stdout becomes the .css output.
// conf takes gulp-sass style keys: outputStyle and includePaths.
func Sass(command string, conf map[string]string) Step {
	return StepFunc("sass", func(ctx context.Context, in Batch) (Batch, error) {
		script, err := syntax.NewParser().Parse(strings.NewReader(command), "sass command")
		if err != nil {
			return nil, eris.Wrapf(err, "failed to parse sass command %s", command)
		}

		out := make(Batch, 0, len(in))
		for _, f := range in {
			if strings.HasPrefix(filepath.Base(f.Path), "_") {
				continue
			}

			compiled, err := runSass(ctx, script, f, conf)
			if err != nil {
				return nil, err
			}

			ext := filepath.Ext(f.Path)
			out = append(out, &File{
				Path:     strings.TrimSuffix(f.Path, ext) + ".css",
				Base:     f.Base,
				Contents: compiled,
				Mode:     0644,
			})
		}
		return out, nil
	})
}

func sassStyle(conf map[string]string) string {
	switch conf["outputStyle"] {
	case "compressed":
		return "compressed"
	default:
		// dart-sass dropped nested and compact
		return "expanded"
	}
}

func runSass(ctx context.Context, script *syntax.File, f *File, conf map[string]string) ([]byte, error) {
	input, err := filepath.Abs(f.Path)
	if err != nil {
		return nil, &IOError{Op: "read", Path: f.Path, Err: err}
	}

	env := os.Environ()
	env = append(env,
		"SASS_INPUT="+input,
		"SASS_STYLE="+sassStyle(conf),
		"SASS_INCLUDE_PATHS="+conf["includePaths"],
	)

	var stdout, stderr bytes.Buffer
	runner, err := interp.New(
		interp.Dir(filepath.Dir(input)),
		interp.Env(expand.ListEnviron(env...)),
		interp.StdIO(nil, &stdout, &stderr),
		interp.Params("-e"),
	)
	if err != nil {
		return nil, eris.Wrap(err, "failed to initialize sass runner")
	}

	tlogger.Debug("step", "sass", "msg", "compiling", "file", f.Path)

	err = runner.Run(ctx, script)
	if err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = "compiler failed"
		}
		return nil, &TransformError{Step: "sass", Path: f.Path, Err: eris.Wrap(err, msg)}
	}

	out := stdout.Bytes()
	if out == nil {
		out = []byte{}
	}
	return out, nil
}
