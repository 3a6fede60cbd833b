package pipeline

import (
	"bytes"
	"context"
	"path"
	"path/filepath"

	"github.com/toastate/toastpipe/internal/helpers"
)

type TemplateCacheOptions struct {
	Filename string
	Module   string
	// Standalone declares the module instead of attaching to an existing one.
	Standalone bool
	// Root prefixes every template key.
	Root string
	// MinifyHTML minifies fragments before caching them.
	MinifyHTML bool
}

// TemplateCache bundles HTML fragments into one Angular script that puts
// each fragment in $templateCache under its path relative to its base.
func TemplateCache(opts TemplateCacheOptions) Step {
	return StepFunc("templatecache "+opts.Filename, func(ctx context.Context, in Batch) (Batch, error) {
		var buf bytes.Buffer

		deps := ""
		if opts.Standalone {
			deps = ", []"
		}
		buf.WriteString("angular.module(" + helpers.JSString(opts.Module) + deps + ").run(['$templateCache', function($templateCache) {\n")

		for _, f := range in {
			b, err := f.Bytes()
			if err != nil {
				return nil, err
			}
			b = replaceWindowsCarriageReturn(b)

			if opts.MinifyHTML {
				b, err = defaultMinifier.Bytes(MediaHTML, b)
				if err != nil {
					return nil, &TransformError{Step: "templatecache", Path: f.Path, Err: err}
				}
			}

			key := f.Rel()
			if opts.Root != "" {
				key = path.Join(opts.Root, key)
			}
			buf.WriteString("  $templateCache.put(" + helpers.JSString(key) + ", " + helpers.JSString(string(b)) + ");\n")
		}
		buf.WriteString("}]);\n")

		base := "."
		if len(in) > 0 {
			base = in[0].Base
		}
		return Batch{{
			Path:     filepath.Join(base, filepath.FromSlash(opts.Filename)),
			Base:     base,
			Contents: buf.Bytes(),
			Mode:     0644,
		}}, nil
	})
}
