package assemble

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func stagedTree(t *testing.T, request BuildRequest) StagingTree {
	t.Helper()
	builder := &TempStagingBuilder{WorkDir: t.TempDir()}
	tree, err := builder.Build(request, request.Layout())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	return tree
}

func TestLocalArtifactCollectorStagesInputs(t *testing.T) {
	t.Parallel()

	request := testRequest(t)
	if err := os.Chmod(request.KernelPath, 0o755); err != nil {
		t.Fatalf("chmod kernel: %v", err)
	}
	tree := stagedTree(t, request)

	collector := &LocalArtifactCollector{}
	if err := collector.Collect(tree, request); err != nil {
		t.Fatalf("Collect() error = %v", err)
	}

	for _, staged := range []string{tree.KernelPath(), tree.ConfigPath(), tree.RamdiskPath()} {
		if _, err := os.Stat(staged); err != nil {
			t.Fatalf("expected %q to be staged: %v", staged, err)
		}
	}

	contents, err := os.ReadFile(tree.ConfigPath())
	if err != nil {
		t.Fatalf("reading staged config: %v", err)
	}
	original, err := os.ReadFile(request.ConfigPath)
	if err != nil {
		t.Fatalf("reading config: %v", err)
	}
	if string(contents) != string(original) {
		t.Fatalf("staged config differs: got %q want %q", contents, original)
	}

	info, err := os.Stat(tree.KernelPath())
	if err != nil {
		t.Fatalf("stat staged kernel: %v", err)
	}
	if info.Mode().Perm() != 0o755 {
		t.Fatalf("expected kernel mode 0755, got %v", info.Mode().Perm())
	}
}

func TestLocalArtifactCollectorReportsVanishedInput(t *testing.T) {
	t.Parallel()

	request := testRequest(t)
	tree := stagedTree(t, request)
	if err := os.Remove(request.RamdiskPath); err != nil {
		t.Fatalf("removing ramdisk: %v", err)
	}

	collector := &LocalArtifactCollector{}
	err := collector.Collect(tree, request)

	var missing *MissingInputError
	if !errors.As(err, &missing) {
		t.Fatalf("Collect() error = %v, want MissingInputError", err)
	}
	if missing.Role != "ramdisk" {
		t.Fatalf("unexpected role: got %q want %q", missing.Role, "ramdisk")
	}
}

func TestLocalArtifactCollectorRejectsDirectoryInput(t *testing.T) {
	t.Parallel()

	request := testRequest(t)
	tree := stagedTree(t, request)
	if err := os.Remove(request.ConfigPath); err != nil {
		t.Fatalf("removing config: %v", err)
	}
	if err := os.Mkdir(request.ConfigPath, 0o755); err != nil {
		t.Fatalf("replacing config with directory: %v", err)
	}

	collector := &LocalArtifactCollector{}
	err := collector.Collect(tree, request)

	var missing *MissingInputError
	if !errors.As(err, &missing) {
		t.Fatalf("Collect() error = %v, want MissingInputError", err)
	}
	if missing.Role != "config" {
		t.Fatalf("unexpected role: got %q want %q", missing.Role, "config")
	}
}

func TestCopyFileOverwritesDestination(t *testing.T) {
	t.Parallel()

	tempDir := t.TempDir()
	source := writeInput(t, tempDir, "source")
	destination := filepath.Join(tempDir, "destination")
	if err := os.WriteFile(destination, []byte("stale"), 0o600); err != nil {
		t.Fatalf("writing destination: %v", err)
	}

	if err := copyFile(source, destination, 0o644); err != nil {
		t.Fatalf("copyFile() error = %v", err)
	}

	contents, err := os.ReadFile(destination)
	if err != nil {
		t.Fatalf("reading destination: %v", err)
	}
	if string(contents) != "source contents" {
		t.Fatalf("unexpected destination contents: %q", contents)
	}
	info, err := os.Stat(destination)
	if err != nil {
		t.Fatalf("stat destination: %v", err)
	}
	if info.Mode().Perm() != 0o644 {
		t.Fatalf("expected mode 0644 after overwrite, got %v", info.Mode().Perm())
	}
}

func TestCopyFileLeavesNoPartialDestination(t *testing.T) {
	t.Parallel()

	tempDir := t.TempDir()
	destination := filepath.Join(tempDir, "destination")

	// A directory source opens fine but fails on the first read.
	if err := copyFile(tempDir, destination, 0o644); err == nil {
		t.Fatalf("copyFile() accepted a directory source")
	}
	if _, err := os.Stat(destination); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected destination to be removed, stat: %v", err)
	}
}
