// Package builder is the entry point for running the admin front-end build
// from Go code.
package builder

import (
	"context"

	"github.com/toastate/toastpipe/internal/metrics"
	"github.com/toastate/toastpipe/internal/runner"
	"github.com/toastate/toastpipe/internal/tasks"
	"github.com/toastate/toastpipe/pkg/config"
)

// DefaultTask is run when no task name is given.
const DefaultTask = "dist"

type Builder struct {
	cfg     *config.Configuration
	runner  *runner.Runner
	metrics *metrics.Recorder
}

// TaskInfo describes one registered task.
type TaskInfo struct {
	Name  string
	Deps  []string
	Desc  string
	Steps []string
}

// NewBuilder registers every build task for cfg.
func NewBuilder(cfg *config.Configuration) (*Builder, error) {
	r := runner.New(cfg)
	err := tasks.Register(r)
	if err != nil {
		return nil, err
	}

	m := metrics.New()
	m.Attach(r)

	return &Builder{cfg: cfg, runner: r, metrics: m}, nil
}

// Build runs names, or DefaultTask when names is empty.
func (b *Builder) Build(ctx context.Context, names ...string) error {
	if len(names) == 0 {
		names = []string{DefaultTask}
	}
	return b.runner.Run(ctx, names...)
}

func (b *Builder) Tasks() ([]TaskInfo, error) {
	out := []TaskInfo{}
	for _, t := range b.runner.Tasks() {
		steps, err := tasks.Describe(b.cfg, t.Name)
		if err != nil {
			return nil, err
		}
		out = append(out, TaskInfo{Name: t.Name, Deps: t.Deps, Desc: t.Desc, Steps: steps})
	}
	return out, nil
}

func (b *Builder) Config() *config.Configuration {
	return b.cfg
}

// Runner exposes the underlying task graph, mainly for the dev server.
func (b *Builder) Runner() *runner.Runner {
	return b.runner
}

func (b *Builder) Metrics() *metrics.Recorder {
	return b.metrics
}
