package assemble

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

// LocalArtifactCollector copies input files from the local filesystem into
// the staging tree. Inputs were validated when the request was built, but
// files can disappear between then and now, so every copy re-checks its
// source.
type LocalArtifactCollector struct {
	Logger *slog.Logger
}

func (c *LocalArtifactCollector) Collect(tree StagingTree, request BuildRequest) error {
	steps := []struct {
		role        string
		source      string
		destination string
	}{
		{"kernel", request.KernelPath, tree.KernelPath()},
		{"config", request.ConfigPath, tree.ConfigPath()},
		{"ramdisk", request.RamdiskPath, tree.RamdiskPath()},
	}
	for _, step := range steps {
		if err := c.collectOne(step.role, step.source, step.destination); err != nil {
			return err
		}
	}
	return nil
}

func (c *LocalArtifactCollector) collectOne(role, source, destination string) error {
	info, err := os.Stat(source)
	if err != nil {
		return &MissingInputError{Role: role, Path: source, Err: err}
	}
	if !info.Mode().IsRegular() {
		return &MissingInputError{Role: role, Path: source, Err: errors.New("not a regular file")}
	}
	if err := os.MkdirAll(filepath.Dir(destination), 0o755); err != nil {
		return &StagingError{Path: filepath.Dir(destination), Err: err}
	}
	if err := copyFile(source, destination, info.Mode().Perm()); err != nil {
		return &CopyError{Source: source, Destination: destination, Err: err}
	}
	c.logger().Debug("artifact staged", "role", role, "source", source, "destination", destination)
	return nil
}

// copyFile copies src to dst with the given permissions. A failed copy
// never leaves a partial dst behind.
func copyFile(src, dst string, perm os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		return err
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(dst)
		return err
	}
	// OpenFile only applies perm on create; force it on overwrite too.
	if err := os.Chmod(dst, perm); err != nil {
		_ = os.Remove(dst)
		return err
	}
	return nil
}

func (c *LocalArtifactCollector) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}
