package isoimage

import (
	"fmt"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/kdomanski/iso9660"
)

// Entry is one file or directory inside an image, addressed by its
// slash-separated path from the image root.
type Entry struct {
	Path string
	Size int64
	Dir  bool
}

// List returns every entry in the image, sorted by path.
func List(imagePath string) ([]Entry, error) {
	file, err := os.Open(imagePath)
	if err != nil {
		return nil, fmt.Errorf("open image: %w", err)
	}
	defer file.Close()

	image, err := iso9660.OpenImage(file)
	if err != nil {
		return nil, fmt.Errorf("read image %s: %w", imagePath, err)
	}
	root, err := image.RootDir()
	if err != nil {
		return nil, fmt.Errorf("read image root: %w", err)
	}

	var entries []Entry
	if err := walk(root, "", &entries); err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
	return entries, nil
}

func walk(file *iso9660.File, prefix string, entries *[]Entry) error {
	children, err := file.GetChildren()
	if err != nil {
		return fmt.Errorf("list image directory %q: %w", prefix, err)
	}
	for _, child := range children {
		name := child.Name()
		if name == "." || name == ".." {
			continue
		}
		childPath := path.Join(prefix, name)
		entry := Entry{Path: childPath, Dir: child.IsDir()}
		if !child.IsDir() {
			entry.Size = child.Size()
		}
		*entries = append(*entries, entry)
		if child.IsDir() {
			if err := walk(child, childPath, entries); err != nil {
				return err
			}
		}
	}
	return nil
}

// Missing reports which of the given host-relative paths have no
// counterpart in the image. Expected paths are mangled the way the
// ISO9660 writer would mangle them before comparing.
func Missing(imagePath string, relPaths []string) ([]string, error) {
	entries, err := List(imagePath)
	if err != nil {
		return nil, err
	}

	present := make(map[string]bool, len(entries))
	for _, entry := range entries {
		if entry.Dir {
			continue
		}
		present[normalizeIdentifierPath(entry.Path)] = true
	}

	var missing []string
	for _, rel := range relPaths {
		if !present[RelativePath(rel)] {
			missing = append(missing, rel)
		}
	}
	return missing, nil
}

// normalizeIdentifierPath lowercases an identifier path and drops any
// ";N" version suffix from its final segment.
func normalizeIdentifierPath(p string) string {
	p = strings.ToLower(p)
	if i := strings.LastIndex(p, ";"); i >= 0 && !strings.Contains(p[i:], "/") {
		p = p[:i]
	}
	return p
}

// Checker verifies assembled images by listing them back.
type Checker struct{}

// Verify confirms that every expected entry made it into the image.
func (Checker) Verify(imagePath string, entries []string) error {
	missing, err := Missing(imagePath, entries)
	if err != nil {
		return err
	}
	if len(missing) > 0 {
		return fmt.Errorf("image %s is missing %s", imagePath, strings.Join(missing, ", "))
	}
	return nil
}
