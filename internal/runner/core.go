// Package runner registers named build tasks and runs them in dependency order.
//
// Every call to Run is one invocation: each reachable task runs at most once,
// dependencies first. The whole graph reachable from the requested tasks is
// resolved before any body executes, so unknown names and cycles never leave
// half-written outputs behind.
package runner

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rotisserie/eris"

	"github.com/toastate/toastpipe/pkg/config"
)

// Body performs the work of a task.
type Body func(ctx context.Context, cfg *config.Configuration) error

type Task struct {
	Name string
	Deps []string
	Desc string
	// Body may be nil for tasks that only group dependencies.
	Body Body
}

// Result describes one executed task body.
type Result struct {
	Task     string
	Run      string
	Duration time.Duration
	Err      error
}

type Runner struct {
	cfg *config.Configuration

	mu    sync.RWMutex
	tasks map[string]*Task
	hooks []func(Result)

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// New returns an empty runner handing cfg to every task body.
func New(cfg *config.Configuration) *Runner {
	return &Runner{
		cfg:   cfg,
		tasks: make(map[string]*Task),
		locks: make(map[string]*sync.Mutex),
	}
}

func (r *Runner) Config() *config.Configuration {
	return r.cfg
}

// Register adds t. Dependencies may name tasks registered later; they are
// checked when a run is planned.
func (r *Runner) Register(t *Task) error {
	if t == nil || t.Name == "" {
		return eris.New("task name is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tasks[t.Name]; ok {
		return &DuplicateTaskError{Name: t.Name}
	}

	deps := make([]string, len(t.Deps))
	copy(deps, t.Deps)
	r.tasks[t.Name] = &Task{Name: t.Name, Deps: deps, Desc: t.Desc, Body: t.Body}
	return nil
}

// Add is Register without a description.
func (r *Runner) Add(name string, deps []string, body Body) error {
	return r.Register(&Task{Name: name, Deps: deps, Body: body})
}

func (r *Runner) Task(name string) (*Task, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tasks[name]
	return t, ok
}

// Tasks returns the registered tasks sorted by name.
func (r *Runner) Tasks() []*Task {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Task, 0, len(r.tasks))
	for _, t := range r.tasks {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// OnFinish registers fn to be called after every executed task body.
func (r *Runner) OnFinish(fn func(Result)) {
	r.mu.Lock()
	r.hooks = append(r.hooks, fn)
	r.mu.Unlock()
}

func (r *Runner) notify(res Result) {
	r.mu.RLock()
	hooks := r.hooks
	r.mu.RUnlock()

	for _, fn := range hooks {
		fn(res)
	}
}

func (r *Runner) lockFor(name string) *sync.Mutex {
	r.locksMu.Lock()
	defer r.locksMu.Unlock()

	l, ok := r.locks[name]
	if !ok {
		l = &sync.Mutex{}
		r.locks[name] = l
	}
	return l
}
