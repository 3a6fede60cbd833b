// Package pipeline applies ordered transform steps to in-memory file batches.
//
// A pipeline starts empty; source steps (Src, SrcLazy) add files, transform
// steps (Concat, Minify, Sass, TemplateCache, Inject) rewrite the batch, and
// Dest writes it out. Each step is a plain (Batch) -> (Batch, error) function
// so pipelines can be listed with Describe and tested step by step.
package pipeline

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/toastate/toastpipe/internal/tlogger"
)

// File is one entry of a batch. Contents is nil until read; lazy files are
// copied by stream when written.
type File struct {
	Path     string
	Base     string
	Contents []byte
	Mode     fs.FileMode
}

// Rel returns Path relative to Base with forward slashes.
func (f *File) Rel() string {
	rel, err := filepath.Rel(f.Base, f.Path)
	if err != nil {
		return filepath.ToSlash(filepath.Base(f.Path))
	}
	return filepath.ToSlash(rel)
}

// Loaded reports whether the contents are in memory.
func (f *File) Loaded() bool {
	return f.Contents != nil
}

// Bytes returns the contents, reading them from Path on first use.
func (f *File) Bytes() ([]byte, error) {
	if f.Contents != nil {
		return f.Contents, nil
	}
	b, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, &IOError{Op: "read", Path: f.Path, Err: err}
	}
	if b == nil {
		b = []byte{}
	}
	f.Contents = b
	return b, nil
}

// Batch is the unit a step consumes and produces.
type Batch []*File

// Step is one transform of a pipeline.
type Step interface {
	Name() string
	Apply(ctx context.Context, in Batch) (Batch, error)
}

type stepFunc struct {
	name string
	fn   func(context.Context, Batch) (Batch, error)
}

func (s *stepFunc) Name() string { return s.name }

func (s *stepFunc) Apply(ctx context.Context, in Batch) (Batch, error) {
	return s.fn(ctx, in)
}

// StepFunc turns fn into a named Step.
func StepFunc(name string, fn func(context.Context, Batch) (Batch, error)) Step {
	return &stepFunc{name: name, fn: fn}
}

type Pipeline struct {
	Name  string
	Steps []Step
}

func New(name string, steps ...Step) *Pipeline {
	return &Pipeline{Name: name, Steps: steps}
}

// Describe lists the step names in execution order.
func (p *Pipeline) Describe() []string {
	out := make([]string, len(p.Steps))
	for i, s := range p.Steps {
		out[i] = s.Name()
	}
	return out
}

// Run applies every step to in, stopping at the first error.
func (p *Pipeline) Run(ctx context.Context, in Batch) (Batch, error) {
	batch := in
	for _, s := range p.Steps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		tlogger.Debug("pipeline", p.Name, "step", s.Name(), "msg", "applying", "files", len(batch))

		out, err := s.Apply(ctx, batch)
		if err != nil {
			tlogger.Error("pipeline", p.Name, "step", s.Name(), "msg", "step failed", "err", err)
			return nil, err
		}
		batch = out
	}
	return batch, nil
}
