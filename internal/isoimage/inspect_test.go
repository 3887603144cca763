package isoimage

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kdomanski/iso9660"
)

func writeTestImage(t *testing.T, files map[string]string) string {
	t.Helper()

	writer, err := iso9660.NewWriter()
	if err != nil {
		t.Fatalf("create iso writer: %v", err)
	}
	defer writer.Cleanup()

	for name, contents := range files {
		if err := writer.AddFile(strings.NewReader(contents), name); err != nil {
			t.Fatalf("add %s: %v", name, err)
		}
	}

	imagePath := filepath.Join(t.TempDir(), "test.iso")
	out, err := os.Create(imagePath)
	if err != nil {
		t.Fatalf("create image file: %v", err)
	}
	if err := writer.WriteTo(out, "bootforge"); err != nil {
		t.Fatalf("write image: %v", err)
	}
	if err := out.Close(); err != nil {
		t.Fatalf("close image file: %v", err)
	}
	return imagePath
}

func TestListWalksImage(t *testing.T) {
	t.Parallel()

	imagePath := writeTestImage(t, map[string]string{
		"k":                  "kernel",
		"boot/grub/grub.cfg": "set timeout=1",
		"ramdisk.cpio.gz":    "archive",
	})

	entries, err := List(imagePath)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}

	byPath := make(map[string]Entry, len(entries))
	for _, entry := range entries {
		byPath[entry.Path] = entry
	}

	kernel, ok := byPath["k"]
	if !ok {
		t.Fatalf("expected kernel entry, got %v", entries)
	}
	if kernel.Dir || kernel.Size != int64(len("kernel")) {
		t.Fatalf("unexpected kernel entry: %+v", kernel)
	}

	if entry, ok := byPath["boot"]; !ok || !entry.Dir {
		t.Fatalf("expected boot directory entry, got %v", entries)
	}
	if _, ok := byPath["boot/grub/grub.cfg"]; !ok {
		t.Fatalf("expected nested config entry, got %v", entries)
	}

	// The writer mangles multi-extension names.
	if _, ok := byPath["ramdisk_cpio.gz"]; !ok {
		t.Fatalf("expected mangled ramdisk entry, got %v", entries)
	}

	for i := 1; i < len(entries); i++ {
		if entries[i-1].Path > entries[i].Path {
			t.Fatalf("entries not sorted: %q before %q", entries[i-1].Path, entries[i].Path)
		}
	}
}

func TestListRejectsNonImage(t *testing.T) {
	t.Parallel()

	notImage := filepath.Join(t.TempDir(), "not.iso")
	if err := os.WriteFile(notImage, []byte("plain text"), 0o644); err != nil {
		t.Fatalf("writing file: %v", err)
	}

	if _, err := List(notImage); err == nil {
		t.Fatalf("List() accepted a non-image file")
	}
}

func TestMissingMatchesMangledNames(t *testing.T) {
	t.Parallel()

	imagePath := writeTestImage(t, map[string]string{
		"k":                  "kernel",
		"boot/grub/grub.cfg": "set timeout=1",
		"ramdisk.cpio.gz":    "archive",
	})

	missing, err := Missing(imagePath, []string{"k", "boot/grub/grub.cfg", "ramdisk.cpio.gz"})
	if err != nil {
		t.Fatalf("Missing() error = %v", err)
	}
	if len(missing) != 0 {
		t.Fatalf("expected all entries present, missing %v", missing)
	}

	missing, err = Missing(imagePath, []string{"k", "vmlinuz"})
	if err != nil {
		t.Fatalf("Missing() error = %v", err)
	}
	if len(missing) != 1 || missing[0] != "vmlinuz" {
		t.Fatalf("unexpected missing set: %v", missing)
	}
}

func TestCheckerVerify(t *testing.T) {
	t.Parallel()

	imagePath := writeTestImage(t, map[string]string{
		"k":                  "kernel",
		"boot/grub/grub.cfg": "set timeout=1",
		"ramdisk.cpio.gz":    "archive",
	})

	checker := Checker{}
	if err := checker.Verify(imagePath, []string{"k", "boot/grub/grub.cfg", "ramdisk.cpio.gz"}); err != nil {
		t.Fatalf("Verify() error = %v", err)
	}

	err := checker.Verify(imagePath, []string{"vmlinuz"})
	if err == nil {
		t.Fatalf("Verify() accepted an image without the kernel")
	}
	if !strings.Contains(err.Error(), "vmlinuz") {
		t.Fatalf("expected error to name the missing entry, got %v", err)
	}
}
