package pipeline

import "fmt"

// TransformError reports a step that could not process a file.
type TransformError struct {
	Step string
	Path string
	Err  error
}

func (e *TransformError) Error() string {
	return fmt.Sprintf("%s failed on %s: %v", e.Step, e.Path, e.Err)
}

func (e *TransformError) Unwrap() error { return e.Err }

// IOError reports a missing source or an unwritable destination.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }
