// Package tasks wires the admin front-end build onto a runner.
package tasks

import (
	"context"
	"path/filepath"

	"github.com/rotisserie/eris"

	"github.com/toastate/toastpipe/internal/fileset"
	"github.com/toastate/toastpipe/internal/pipeline"
	"github.com/toastate/toastpipe/internal/runner"
	"github.com/toastate/toastpipe/pkg/config"
)

const (
	VendorJS  = "app.vendor.js"
	VendorCSS = "app.vendor.css"
	AppJS     = "app.js"
)

type definition struct {
	name  string
	deps  []string
	desc  string
	build func(cfg *config.Configuration) (*pipeline.Pipeline, error)
}

// Production tasks in the order dist runs them.
var definitions = []definition{
	{name: "clean", desc: "Remove the destination tree, keeping preserved folders", build: cleanPipeline},
	{name: "copy", desc: "Copy static assets into the destination root", build: copyPipeline},
	{name: "fonts", desc: "Copy font files into <dist>/fonts", build: fontsPipeline},
	{name: "vendor:js:prod", desc: "Concatenate and minify vendor scripts into js/" + VendorJS, build: vendorJSPipeline},
	{name: "vendor:css:prod", desc: "Concatenate vendor stylesheets into css/" + VendorCSS, build: vendorCSSPipeline},
	{name: "vendor:prod", deps: []string{"vendor:js:prod", "vendor:css:prod"}, desc: "Inject the vendor bundles into the page template", build: vendorInjectPipeline},
	{name: "js:prod", desc: "Concatenate and minify application scripts into js/" + AppJS, build: appJSPipeline},
	{name: "css:prod", desc: "Compile Sass entry points into css/", build: sassPipeline},
	{name: "templates", desc: "Bundle HTML templates into an Angular template cache", build: templatesPipeline},
}

var distDeps = []string{"clean", "copy", "fonts", "vendor:prod", "js:prod", "css:prod", "templates"}

// Register adds every build task of the command surface to r.
func Register(r *runner.Runner) error {
	for _, def := range definitions {
		def := def
		err := r.Register(&runner.Task{
			Name: def.name,
			Deps: def.deps,
			Desc: def.desc,
			Body: func(ctx context.Context, cfg *config.Configuration) error {
				p, err := def.build(cfg)
				if err != nil {
					return err
				}
				_, err = p.Run(ctx, nil)
				return err
			},
		})
		if err != nil {
			return err
		}
	}

	err := r.Register(&runner.Task{Name: "dist", Deps: distDeps, Desc: "Full production build"})
	if err != nil {
		return err
	}

	watchers := []struct {
		name, desc string
		pick       func([]runner.WatchBinding) []runner.WatchBinding
	}{
		{"copy:watch", "Re-run copy when assets change", only("copy")},
		{"templates:watch", "Re-run templates when HTML templates change", only("templates")},
		{"watch", "Re-run copy and templates on change", all},
	}
	for _, w := range watchers {
		w := w
		err := r.Register(&runner.Task{
			Name: w.name,
			Desc: w.desc,
			Body: func(ctx context.Context, cfg *config.Configuration) error {
				bindings, err := WatchBindings(cfg)
				if err != nil {
					return err
				}
				return r.Watch(ctx, w.pick(bindings), runner.WatchOptions{})
			},
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func only(task string) func([]runner.WatchBinding) []runner.WatchBinding {
	return func(bindings []runner.WatchBinding) []runner.WatchBinding {
		out := []runner.WatchBinding{}
		for _, b := range bindings {
			if b.Task == task {
				out = append(out, b)
			}
		}
		return out
	}
}

func all(bindings []runner.WatchBinding) []runner.WatchBinding {
	return bindings
}

// WatchBindings returns the source globs that trigger a rebuild and the task
// each one re-runs.
func WatchBindings(cfg *config.Configuration) ([]runner.WatchBinding, error) {
	assets, err := globs(cfg, cfg.Path.Copy)
	if err != nil {
		return nil, err
	}
	templates, err := globs(cfg, cfg.Path.HTML)
	if err != nil {
		return nil, err
	}
	return []runner.WatchBinding{
		{Globs: assets, Task: "copy"},
		{Globs: templates, Task: "templates"},
	}, nil
}

// Describe returns the pipeline steps of a build task, nil for tasks that
// only group dependencies or watch.
func Describe(cfg *config.Configuration, name string) ([]string, error) {
	for _, def := range definitions {
		if def.name != name {
			continue
		}
		p, err := def.build(cfg)
		if err != nil {
			return nil, err
		}
		return p.Describe(), nil
	}
	return nil, nil
}

func globs(cfg *config.Configuration, patterns []string) (*fileset.Set, error) {
	set, err := fileset.New(cfg.Globs(patterns)...)
	if err != nil {
		return nil, eris.Wrapf(err, "invalid glob in %v", patterns)
	}
	return set, nil
}

func cleanPipeline(cfg *config.Configuration) (*pipeline.Pipeline, error) {
	dist := cfg.DistDir()
	return pipeline.New("clean",
		pipeline.StepFunc("clean "+filepath.ToSlash(dist), func(ctx context.Context, in pipeline.Batch) (pipeline.Batch, error) {
			return in, pipeline.Clean(dist, cfg.Clean.Preserve)
		}),
	), nil
}

func copyPipeline(cfg *config.Configuration) (*pipeline.Pipeline, error) {
	src, err := globs(cfg, cfg.Path.Copy)
	if err != nil {
		return nil, err
	}
	return pipeline.New("copy",
		pipeline.SrcLazy(src),
		pipeline.Dest(cfg.DistDir()),
	), nil
}

func fontsPipeline(cfg *config.Configuration) (*pipeline.Pipeline, error) {
	src, err := globs(cfg, cfg.Path.Fonts)
	if err != nil {
		return nil, err
	}
	return pipeline.New("fonts",
		pipeline.SrcLazy(src),
		pipeline.Dest(cfg.DistDir("fonts")),
	), nil
}

func vendorJSPipeline(cfg *config.Configuration) (*pipeline.Pipeline, error) {
	src, err := globs(cfg, cfg.Path.Libs)
	if err != nil {
		return nil, err
	}
	return pipeline.New("vendor:js:prod",
		pipeline.Src(src),
		pipeline.Concat(VendorJS),
		pipeline.Minify(pipeline.MediaJS),
		pipeline.Dest(cfg.DistDir("js")),
	), nil
}

func vendorCSSPipeline(cfg *config.Configuration) (*pipeline.Pipeline, error) {
	src, err := globs(cfg, cfg.Path.CSSLibs)
	if err != nil {
		return nil, err
	}
	return pipeline.New("vendor:css:prod",
		pipeline.Src(src),
		pipeline.Concat(VendorCSS),
		pipeline.Dest(cfg.DistDir("css")),
	), nil
}

func vendorInjectPipeline(cfg *config.Configuration) (*pipeline.Pipeline, error) {
	if cfg.Inject.Target == "" {
		return nil, eris.New("inject.target is not set")
	}
	target := cfg.Resolve(cfg.Inject.Target)

	src, err := fileset.New(fileset.Escape(target))
	if err != nil {
		return nil, eris.Wrapf(err, "invalid inject target %s", cfg.Inject.Target)
	}

	// a bundle is only referenced when its vendor task has inputs
	bundles := []string{}
	if len(cfg.Path.Libs) > 0 {
		bundles = append(bundles, fileset.Escape(cfg.DistDir("js", VendorJS)))
	}
	if len(cfg.Path.CSSLibs) > 0 {
		bundles = append(bundles, fileset.Escape(cfg.DistDir("css", VendorCSS)))
	}
	refs, err := fileset.New(bundles...)
	if err != nil {
		return nil, eris.Wrap(err, "invalid vendor bundle path")
	}

	root := cfg.Root
	if root == "" {
		root = "."
	}
	return pipeline.New("vendor:prod",
		pipeline.Src(src),
		pipeline.Inject(pipeline.InjectOptions{
			Name:       cfg.Inject.Name,
			Root:       root,
			IgnorePath: cfg.Inject.IgnorePath,
			AddPrefix:  cfg.Inject.AddPrefix,
		}, refs),
		pipeline.Dest(filepath.Dir(target)),
	), nil
}

func appJSPipeline(cfg *config.Configuration) (*pipeline.Pipeline, error) {
	src, err := globs(cfg, cfg.Path.Scripts)
	if err != nil {
		return nil, err
	}
	return pipeline.New("js:prod",
		pipeline.Src(src),
		pipeline.Concat(AppJS),
		pipeline.Minify(pipeline.MediaJS),
		pipeline.Dest(cfg.DistDir("js")),
	), nil
}

func sassPipeline(cfg *config.Configuration) (*pipeline.Pipeline, error) {
	src, err := globs(cfg, cfg.Path.Sass.Src)
	if err != nil {
		return nil, err
	}
	return pipeline.New("css:prod",
		pipeline.Src(src),
		pipeline.Sass(cfg.Sass.Command, cfg.Path.Sass.Conf),
		pipeline.Dest(cfg.DistDir("css")),
	), nil
}

func templatesPipeline(cfg *config.Configuration) (*pipeline.Pipeline, error) {
	src, err := globs(cfg, cfg.Path.HTML)
	if err != nil {
		return nil, err
	}
	return pipeline.New("templates",
		pipeline.Src(src),
		pipeline.TemplateCache(pipeline.TemplateCacheOptions{
			Filename:   cfg.Templates.Filename,
			Module:     cfg.Templates.Module,
			Standalone: cfg.Templates.Standalone,
			Root:       cfg.Templates.Root,
			MinifyHTML: cfg.Templates.Minify,
		}),
		pipeline.Dest(cfg.DistDir("js")),
	), nil
}
