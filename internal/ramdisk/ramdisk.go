// Package ramdisk builds and inspects the compressed cpio archives the
// bootloader hands to the kernel as its initial ramdisk.
package ramdisk

import (
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/cavaliergopher/cpio"
)

// DefaultName is the archive file name the boot-media layout expects.
const DefaultName = "ramdisk.cpio.gz"

// Builder packs a directory tree into a gzip-compressed cpio archive.
// Entries are written in lexical order with zeroed timestamps, so the
// same tree always produces the same archive.
type Builder struct {
	Logger *slog.Logger
}

// Build archives sourceDir into outputPath. A failed build never leaves
// a partial archive behind.
func (b *Builder) Build(sourceDir, outputPath string) error {
	info, err := os.Stat(sourceDir)
	if err != nil {
		return fmt.Errorf("ramdisk source: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("ramdisk source %s is not a directory", sourceDir)
	}
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return fmt.Errorf("ramdisk output directory: %w", err)
	}

	out, err := os.OpenFile(outputPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("ramdisk output: %w", err)
	}
	if err := writeArchive(out, sourceDir); err != nil {
		_ = out.Close()
		_ = os.Remove(outputPath)
		return err
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(outputPath)
		return fmt.Errorf("ramdisk output: %w", err)
	}

	b.logger().Debug("ramdisk archived", "source", sourceDir, "output", outputPath)
	return nil
}

func writeArchive(out io.Writer, sourceDir string) error {
	compressed := gzip.NewWriter(out)
	archive := cpio.NewWriter(compressed)

	err := filepath.WalkDir(sourceDir, func(walkPath string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		rel, err := filepath.Rel(sourceDir, walkPath)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		return addEntry(archive, filepath.ToSlash(rel), walkPath, d)
	})
	if err != nil {
		return fmt.Errorf("archiving %s: %w", sourceDir, err)
	}

	if err := archive.Close(); err != nil {
		return fmt.Errorf("finishing archive: %w", err)
	}
	if err := compressed.Close(); err != nil {
		return fmt.Errorf("compressing archive: %w", err)
	}
	return nil
}

func addEntry(archive *cpio.Writer, name, walkPath string, d fs.DirEntry) error {
	info, err := d.Info()
	if err != nil {
		return err
	}
	perm := cpio.FileMode(info.Mode().Perm())

	switch {
	case d.IsDir():
		return archive.WriteHeader(&cpio.Header{
			Name: name,
			Mode: cpio.TypeDir | perm,
		})

	case info.Mode()&fs.ModeSymlink != 0:
		target, err := os.Readlink(walkPath)
		if err != nil {
			return err
		}
		header := &cpio.Header{
			Name: name,
			Mode: cpio.TypeSymlink | 0o777,
			Size: int64(len(target)),
		}
		if err := archive.WriteHeader(header); err != nil {
			return err
		}
		_, err = archive.Write([]byte(target))
		return err

	case info.Mode().IsRegular():
		file, err := os.Open(walkPath)
		if err != nil {
			return err
		}
		defer file.Close()

		header := &cpio.Header{
			Name: name,
			Mode: cpio.TypeReg | perm,
			Size: info.Size(),
		}
		if err := archive.WriteHeader(header); err != nil {
			return err
		}
		_, err = io.Copy(archive, file)
		return err

	default:
		return fmt.Errorf("%s: unsupported file type %v", walkPath, info.Mode().Type())
	}
}

func (b *Builder) logger() *slog.Logger {
	if b.Logger != nil {
		return b.Logger
	}
	return slog.Default()
}

// Entry describes one archive member.
type Entry struct {
	Name string
	Size int64
	Mode fs.FileMode
}

// List returns the members of a gzip-compressed cpio archive in the
// order they are stored.
func List(archivePath string) ([]Entry, error) {
	file, err := os.Open(archivePath)
	if err != nil {
		return nil, fmt.Errorf("open ramdisk: %w", err)
	}
	defer file.Close()

	compressed, err := gzip.NewReader(file)
	if err != nil {
		return nil, fmt.Errorf("read ramdisk %s: %w", archivePath, err)
	}
	defer compressed.Close()

	archive := cpio.NewReader(compressed)
	var entries []Entry
	for {
		header, err := archive.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read ramdisk %s: %w", archivePath, err)
		}
		entries = append(entries, Entry{
			Name: header.Name,
			Size: header.Size,
			Mode: header.FileInfo().Mode(),
		})
	}
	return entries, nil
}
