package assemble

import (
	"errors"
	"fmt"
	"strings"
)

// Exit statuses the CLI reports for each failure category.
const (
	ExitOK      = 0
	ExitInput   = 1
	ExitStaging = 2
	ExitTool    = 3
)

// MissingInputError reports a build input that does not exist or is not a
// regular readable file.
type MissingInputError struct {
	Role string // kernel, config or ramdisk
	Path string
	Err  error
}

func (e *MissingInputError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s input %s: %v", e.Role, e.Path, e.Err)
	}
	return fmt.Sprintf("%s input %s is missing", e.Role, e.Path)
}

func (e *MissingInputError) Unwrap() error { return e.Err }

// StagingError reports a failure creating or preparing the staging tree.
type StagingError struct {
	Path string
	Err  error
}

func (e *StagingError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("stage: %v", e.Err)
	}
	return fmt.Sprintf("stage %s: %v", e.Path, e.Err)
}

func (e *StagingError) Unwrap() error { return e.Err }

// CopyError reports a failed artifact copy. The incomplete destination is
// removed before the error is returned, so no partial file survives.
type CopyError struct {
	Source      string
	Destination string
	Err         error
}

func (e *CopyError) Error() string {
	return fmt.Sprintf("copy %s to %s: %v", e.Source, e.Destination, e.Err)
}

func (e *CopyError) Unwrap() error { return e.Err }

// ToolInvocationError reports that the external tool could not be started,
// commonly because it is not installed.
type ToolInvocationError struct {
	Tool string
	Err  error
}

func (e *ToolInvocationError) Error() string {
	return fmt.Sprintf("invoke %s: %v", e.Tool, e.Err)
}

func (e *ToolInvocationError) Unwrap() error { return e.Err }

// ToolFailureError reports a tool run that started but exited non-zero.
// Stderr carries the tool's captured diagnostics verbatim.
type ToolFailureError struct {
	Tool     string
	ExitCode int
	Stderr   string
}

func (e *ToolFailureError) Error() string {
	if diagnostics := strings.TrimSpace(e.Stderr); diagnostics != "" {
		return fmt.Sprintf("%s exited with status %d: %s", e.Tool, e.ExitCode, diagnostics)
	}
	return fmt.Sprintf("%s exited with status %d", e.Tool, e.ExitCode)
}

// ExitCode maps an assembly error to the process exit status the CLI
// reports: 0 success, 1 input, 2 staging or copy, 3 external tool.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}

	var (
		missing    *MissingInputError
		staging    *StagingError
		failedCopy *CopyError
		invocation *ToolInvocationError
		failure    *ToolFailureError
	)
	switch {
	case errors.As(err, &missing):
		return ExitInput
	case errors.As(err, &staging), errors.As(err, &failedCopy):
		return ExitStaging
	case errors.As(err, &invocation), errors.As(err, &failure):
		return ExitTool
	default:
		return ExitInput
	}
}
