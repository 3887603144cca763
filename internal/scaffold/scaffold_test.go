package scaffold

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWriteRendersConfiguration(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	configPath, err := Write(Options{Dir: dir, KernelName: "vmbottle"})
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if configPath != filepath.Join(dir, "grub", "grub.cfg") {
		t.Fatalf("unexpected config path: got %q", configPath)
	}

	raw, err := os.ReadFile(configPath)
	if err != nil {
		t.Fatalf("reading configuration: %v", err)
	}
	contents := string(raw)

	for _, needle := range []string{
		"multiboot2 /vmbottle",
		"module2 /ramdisk.cpio.gz",
		"terminal_output serial console",
	} {
		if !strings.Contains(contents, needle) {
			t.Fatalf("expected configuration to contain %q, got:\n%s", needle, contents)
		}
	}
	if strings.Contains(contents, "{{") {
		t.Fatalf("configuration still contains template markers:\n%s", contents)
	}
}

func TestWriteRefusesToOverwrite(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	if _, err := Write(Options{Dir: dir, KernelName: "k"}); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if _, err := Write(Options{Dir: dir, KernelName: "k"}); err == nil {
		t.Fatalf("Write() overwrote an existing configuration")
	}
}

func TestWriteValidatesKernelName(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	if _, err := Write(Options{Dir: dir, KernelName: "  "}); err == nil {
		t.Fatalf("Write() accepted an empty kernel name")
	}
	if _, err := Write(Options{Dir: dir, KernelName: "boot/k"}); err == nil {
		t.Fatalf("Write() accepted a kernel name with separators")
	}
}
