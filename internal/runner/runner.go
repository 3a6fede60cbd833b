package runner

import (
	"context"
	"time"

	"github.com/aidarkhanov/nanoid"

	"github.com/toastate/toastpipe/internal/tlogger"
)

// Status is the state of a task within one invocation.
type Status int

const (
	Pending Status = iota
	Running
	Done
)

func (s Status) String() string {
	switch s {
	case Running:
		return "running"
	case Done:
		return "done"
	default:
		return "pending"
	}
}

// Plan resolves names and their dependencies into execution order without
// running anything. Every task appears once, after all of its dependencies.
func (r *Runner) Plan(names ...string) ([]*Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	status := make(map[string]Status)
	order := make([]*Task, 0, len(r.tasks))

	for _, name := range names {
		t, ok := r.tasks[name]
		if !ok {
			return nil, &UnknownTaskError{Name: name}
		}
		err := r.visit(t, status, nil, &order)
		if err != nil {
			return nil, err
		}
	}
	return order, nil
}

func (r *Runner) visit(t *Task, status map[string]Status, stack []string, order *[]*Task) error {
	switch status[t.Name] {
	case Done:
		return nil
	case Running:
		cycle := []string{t.Name}
		for i, name := range stack {
			if name == t.Name {
				cycle = append(append([]string{}, stack[i:]...), t.Name)
				break
			}
		}
		return &CyclicDependencyError{Cycle: cycle}
	}

	status[t.Name] = Running
	stack = append(stack, t.Name)

	for _, dep := range t.Deps {
		depTask, ok := r.tasks[dep]
		if !ok {
			return &UnknownDependencyError{Task: t.Name, Dependency: dep}
		}
		err := r.visit(depTask, status, stack, order)
		if err != nil {
			return err
		}
	}

	status[t.Name] = Done
	*order = append(*order, t)
	return nil
}

// Run executes names and everything they depend on, each task at most once.
// Planning errors are returned before any body runs. A failing body stops
// the invocation and is returned as a *TaskError.
func (r *Runner) Run(ctx context.Context, names ...string) error {
	runID := nanoid.New()

	order, err := r.Plan(names...)
	if err != nil {
		tlogger.Error("run", runID, "msg", "Failed to plan tasks", "tasks", names, "err", err)
		return err
	}

	for _, t := range order {
		if err := ctx.Err(); err != nil {
			return err
		}

		tlogger.Info("run", runID, "task", t.Name, "msg", "Starting")
		start := time.Now()

		var bodyErr error
		if t.Body != nil {
			bodyErr = t.Body(ctx, r.cfg)
		}

		elapsed := time.Since(start)
		r.notify(Result{Task: t.Name, Run: runID, Duration: elapsed, Err: bodyErr})

		if bodyErr != nil {
			tlogger.Error("run", runID, "task", t.Name, "msg", "Failed", "after", elapsed, "err", bodyErr)
			return &TaskError{Task: t.Name, Err: bodyErr}
		}
		tlogger.Info("run", runID, "task", t.Name, "msg", "Finished", "after", elapsed)
	}
	return nil
}
