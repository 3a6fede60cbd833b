package runner

import (
	"fmt"
	"strings"
)

type DuplicateTaskError struct {
	Name string
}

func (e *DuplicateTaskError) Error() string {
	return fmt.Sprintf("task %s is already registered", e.Name)
}

type UnknownTaskError struct {
	Name string
}

func (e *UnknownTaskError) Error() string {
	return fmt.Sprintf("task %s not found", e.Name)
}

type UnknownDependencyError struct {
	Task       string
	Dependency string
}

func (e *UnknownDependencyError) Error() string {
	return fmt.Sprintf("task %s depends on unknown task %s", e.Task, e.Dependency)
}

// CyclicDependencyError carries the cycle, first and last entries being the same task.
type CyclicDependencyError struct {
	Cycle []string
}

func (e *CyclicDependencyError) Error() string {
	return "dependency cycle: " + strings.Join(e.Cycle, " -> ")
}

// TaskError is returned by Run when a task body fails.
type TaskError struct {
	Task string
	Err  error
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("task %s failed: %v", e.Task, e.Err)
}

func (e *TaskError) Unwrap() error { return e.Err }
