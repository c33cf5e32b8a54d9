package dispatch

import (
	"errors"
	"fmt"
)

// ErrToolExecutionFailed matches *ToolExecutionFailedError.
var ErrToolExecutionFailed = errors.New("tool execution failed")

// ToolExecutionFailedError reports the command that exited non-zero.
type ToolExecutionFailedError struct {
	Index    int
	Command  string
	ExitCode int
	// Err is set when the command could not be run to completion.
	Err error
}

func (e *ToolExecutionFailedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%v: command %d (%s): %v", ErrToolExecutionFailed, e.Index+1, e.Command, e.Err)
	}
	return fmt.Sprintf("%v: command %d (%s) exited with status %d", ErrToolExecutionFailed, e.Index+1, e.Command, e.ExitCode)
}

func (e *ToolExecutionFailedError) Is(target error) bool {
	return target == ErrToolExecutionFailed
}

func (e *ToolExecutionFailedError) Unwrap() error {
	return e.Err
}
