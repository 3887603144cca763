package assemble

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
)

// DefaultTool is the image-writing tool used when none is configured.
const DefaultTool = "grub-mkrescue"

// GrubMkrescueInvoker assembles the image by running grub-mkrescue (or a
// compatible tool) over the staging tree.
type GrubMkrescueInvoker struct {
	Logger *slog.Logger

	// Command overrides the executable name. Empty selects DefaultTool.
	Command string

	// ExtraArgs are passed to the tool before the output and staging
	// root arguments.
	ExtraArgs []string

	// Stdout receives the tool's standard output. Empty selects
	// os.Stdout.
	Stdout io.Writer
}

func (i *GrubMkrescueInvoker) Tool() string {
	if i.Command != "" {
		return i.Command
	}
	return DefaultTool
}

// Preflight checks that the tool is present on PATH before any staging
// work happens.
func (i *GrubMkrescueInvoker) Preflight() error {
	if _, err := exec.LookPath(i.Tool()); err != nil {
		return &ToolInvocationError{Tool: i.Tool(), Err: err}
	}
	return nil
}

func (i *GrubMkrescueInvoker) Invoke(ctx context.Context, stagingRoot, outputPath string) error {
	commandArgs := append(append([]string{}, i.ExtraArgs...), "-o", outputPath, stagingRoot)
	i.logger().Info("invoking image tool", "command", i.Tool()+" "+strings.Join(commandArgs, " "))

	var stderr bytes.Buffer
	command := exec.CommandContext(ctx, i.Tool(), commandArgs...)
	command.Stdout = i.stdout()
	command.Stderr = &stderr

	if err := command.Run(); err != nil {
		// The tool may have left a truncated image behind.
		_ = os.Remove(outputPath)

		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			i.logger().Error("image tool failed",
				"tool", i.Tool(),
				"exit_code", exitErr.ExitCode(),
				"stderr", strings.TrimSpace(stderr.String()),
			)
			return &ToolFailureError{
				Tool:     i.Tool(),
				ExitCode: exitErr.ExitCode(),
				Stderr:   stderr.String(),
			}
		}
		return &ToolInvocationError{Tool: i.Tool(), Err: err}
	}
	return nil
}

func (i *GrubMkrescueInvoker) stdout() io.Writer {
	if i.Stdout != nil {
		return i.Stdout
	}
	return os.Stdout
}

func (i *GrubMkrescueInvoker) logger() *slog.Logger {
	if i.Logger != nil {
		return i.Logger
	}
	return slog.Default()
}
