package runner

import (
	"context"
	"sync"
	"time"

	"github.com/toastate/toastpipe/internal/fileset"
	"github.com/toastate/toastpipe/internal/tlogger"
	"github.com/toastate/toastpipe/internal/watcher"
)

// WatchBinding re-runs Task when a file matching Globs changes.
type WatchBinding struct {
	Globs *fileset.Set
	Task  string
}

type WatchOptions struct {
	// Debounce is the quiet period required before a run starts.
	// Zero means the configured watch.debounce.
	Debounce time.Duration
	// AfterRun is called after every watch-triggered run.
	AfterRun func(Result)
}

// Watch observes the roots of every binding and runs the bound tasks on
// change until ctx is done. Changes within the debounce window coalesce
// into one run of each task, whichever of its bindings they matched. Runs of the same task never overlap: a change seen while
// the task runs queues a single follow-up run.
func (r *Runner) Watch(ctx context.Context, bindings []WatchBinding, opts WatchOptions) error {
	if err := r.checkBindings(bindings); err != nil {
		return err
	}

	roots := []string{}
	seen := map[string]bool{}
	for _, b := range bindings {
		for _, root := range b.Globs.Roots() {
			if !seen[root] {
				seen[root] = true
				roots = append(roots, root)
			}
		}
	}

	events, err := watcher.StartWatcher(ctx, roots)
	if err != nil {
		return err
	}

	for _, b := range bindings {
		if b.Globs.Empty() {
			tlogger.Warn("msg", "Nothing to watch", "task", b.Task)
			continue
		}
		tlogger.Info("msg", "Watching", "task", b.Task, "roots", len(b.Globs.Roots()))
	}
	return r.watchEvents(ctx, events, bindings, opts)
}

func (r *Runner) checkBindings(bindings []WatchBinding) error {
	for _, b := range bindings {
		if _, ok := r.Task(b.Task); !ok {
			return &UnknownTaskError{Name: b.Task}
		}
	}
	return nil
}

// watchEvents dispatches changed paths to the matching bindings until
// events is closed or ctx is done.
func (r *Runner) watchEvents(ctx context.Context, events <-chan string, bindings []WatchBinding, opts WatchOptions) error {
	if err := r.checkBindings(bindings); err != nil {
		return err
	}
	if opts.Debounce <= 0 && r.cfg != nil {
		opts.Debounce = r.cfg.DebounceDuration()
	}

	loopCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// one debounce window per task, shared by all of its bindings
	triggers := map[string]chan struct{}{}
	var wg sync.WaitGroup
	for _, b := range bindings {
		if _, ok := triggers[b.Task]; ok {
			continue
		}
		trigger := make(chan struct{}, 1)
		triggers[b.Task] = trigger
		wg.Add(1)
		go func(task string) {
			defer wg.Done()
			r.debounceLoop(loopCtx, task, trigger, opts)
		}(b.Task)
	}

dispatch:
	for {
		select {
		case <-ctx.Done():
			break dispatch
		case path, ok := <-events:
			if !ok {
				break dispatch
			}
			for _, b := range bindings {
				if !b.Globs.Match(path) {
					continue
				}
				select {
				case triggers[b.Task] <- struct{}{}:
				default:
					// a trigger is already pending
				}
			}
		}
	}

	cancel()
	wg.Wait()
	return nil
}

func (r *Runner) debounceLoop(ctx context.Context, task string, trigger <-chan struct{}, opts WatchOptions) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-trigger:
		}

		timer := time.NewTimer(opts.Debounce)
	quiet:
		for {
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-trigger:
				if !timer.Stop() {
					<-timer.C
				}
				timer.Reset(opts.Debounce)
			case <-timer.C:
				break quiet
			}
		}

		r.runSerialized(ctx, task, opts)
	}
}

func (r *Runner) runSerialized(ctx context.Context, task string, opts WatchOptions) {
	lock := r.lockFor(task)
	lock.Lock()
	start := time.Now()
	err := r.Run(ctx, task)
	elapsed := time.Since(start)
	lock.Unlock()

	if err != nil {
		// keep watching, the next change triggers a rebuild
		tlogger.Warn("msg", "Watched task failed", "task", task, "err", err)
	}
	if opts.AfterRun != nil {
		opts.AfterRun(Result{Task: task, Duration: elapsed, Err: err})
	}
}
