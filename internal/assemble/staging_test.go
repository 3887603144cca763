package assemble

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func testRequest(t *testing.T) BuildRequest {
	t.Helper()
	tempDir := t.TempDir()
	kernel := writeInput(t, tempDir, "k")
	config := writeInput(t, tempDir, "grub.cfg")
	ramdisk := writeInput(t, tempDir, "ramdisk.cpio.gz")

	request, err := NewBuildRequest(kernel, config, ramdisk, "")
	if err != nil {
		t.Fatalf("NewBuildRequest() error = %v", err)
	}
	return request
}

func TestTempStagingBuilderCreatesLayoutDirectories(t *testing.T) {
	t.Parallel()

	request := testRequest(t)
	workDir := filepath.Join(t.TempDir(), "work")
	builder := &TempStagingBuilder{WorkDir: workDir}

	tree, err := builder.Build(request, request.Layout())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	if tree.RunID == "" {
		t.Fatalf("expected a run id")
	}
	if filepath.Dir(tree.Root) != workDir {
		t.Fatalf("expected root under %q, got %q", workDir, tree.Root)
	}
	if !strings.HasPrefix(filepath.Base(tree.Root), "bootforge-") {
		t.Fatalf("unexpected root name: %q", tree.Root)
	}

	configDir := filepath.Dir(tree.ConfigPath())
	info, err := os.Stat(configDir)
	if err != nil || !info.IsDir() {
		t.Fatalf("expected config directory %q, stat: %v", configDir, err)
	}

	if err := tree.Remove(); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if _, err := os.Stat(tree.Root); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected root to be removed, stat: %v", err)
	}
}

func TestTempStagingBuilderIsolatesRuns(t *testing.T) {
	t.Parallel()

	request := testRequest(t)
	builder := &TempStagingBuilder{WorkDir: t.TempDir()}

	first, err := builder.Build(request, request.Layout())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	second, err := builder.Build(request, request.Layout())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	if first.Root == second.Root {
		t.Fatalf("expected distinct staging roots, both are %q", first.Root)
	}
	if first.RunID == second.RunID {
		t.Fatalf("expected distinct run ids, both are %q", first.RunID)
	}
}

func TestTempStagingBuilderRejectsFileWorkDir(t *testing.T) {
	t.Parallel()

	request := testRequest(t)
	workDir := writeInput(t, t.TempDir(), "occupied")
	builder := &TempStagingBuilder{WorkDir: workDir}

	_, err := builder.Build(request, request.Layout())
	var staging *StagingError
	if !errors.As(err, &staging) {
		t.Fatalf("Build() error = %v, want StagingError", err)
	}
}

func TestTempStagingBuilderRejectsBadLayout(t *testing.T) {
	t.Parallel()

	request := testRequest(t)
	builder := &TempStagingBuilder{WorkDir: t.TempDir()}
	layout := BootMediaLayout{KernelName: "k", ConfigPath: "../escape.cfg", RamdiskPath: "ramdisk.cpio.gz"}

	_, err := builder.Build(request, layout)
	var staging *StagingError
	if !errors.As(err, &staging) {
		t.Fatalf("Build() error = %v, want StagingError", err)
	}
}
