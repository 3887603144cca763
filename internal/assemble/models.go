package assemble

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

// BootMediaLayout fixes where each artifact lives inside the staging tree
// and, after assembly, inside the image. The bootloader configuration
// references these locations by name, so they only ever change together.
type BootMediaLayout struct {
	KernelName  string // kernel binary at the image root
	ConfigPath  string // bootloader configuration
	RamdiskPath string // compressed cpio archive at the image root
}

const (
	configEntry  = "boot/grub/grub.cfg"
	ramdiskEntry = "ramdisk.cpio.gz"
)

// LayoutFor returns the standard boot-media layout for a kernel binary name.
func LayoutFor(kernelName string) BootMediaLayout {
	return BootMediaLayout{
		KernelName:  kernelName,
		ConfigPath:  configEntry,
		RamdiskPath: ramdiskEntry,
	}
}

// Entries lists the layout's relative paths in staging order.
func (l BootMediaLayout) Entries() []string {
	return []string{l.KernelName, l.ConfigPath, l.RamdiskPath}
}

func (l BootMediaLayout) validate() error {
	if strings.ContainsAny(l.KernelName, `/\`) {
		return fmt.Errorf("kernel name %q must be a bare file name", l.KernelName)
	}
	for _, entry := range l.Entries() {
		if strings.TrimSpace(entry) == "" {
			return errors.New("layout entry is empty")
		}
		if path.IsAbs(entry) {
			return fmt.Errorf("layout entry %q must be relative", entry)
		}
		clean := path.Clean(entry)
		if clean == ".." || strings.HasPrefix(clean, "../") {
			return fmt.Errorf("layout entry %q escapes the staging root", entry)
		}
	}
	return nil
}

// BuildRequest names the four paths one assembly run works with. Construct
// it with NewBuildRequest; paths are validated and made absolute there and
// treated as read-only afterwards.
type BuildRequest struct {
	KernelPath  string
	ConfigPath  string
	RamdiskPath string
	OutputPath  string
}

// DeriveOutputPath returns the image path used when none is requested
// explicitly: the kernel path with an ".iso" suffix appended.
func DeriveOutputPath(kernelPath string) string {
	return kernelPath + ".iso"
}

// NewBuildRequest validates the three input paths and resolves every path
// to an absolute one. An empty outputPath selects the derived default.
func NewBuildRequest(kernelPath, configPath, ramdiskPath, outputPath string) (BuildRequest, error) {
	kernel, err := resolveInput("kernel", kernelPath)
	if err != nil {
		return BuildRequest{}, err
	}
	config, err := resolveInput("config", configPath)
	if err != nil {
		return BuildRequest{}, err
	}
	ramdisk, err := resolveInput("ramdisk", ramdiskPath)
	if err != nil {
		return BuildRequest{}, err
	}

	if strings.TrimSpace(outputPath) == "" {
		outputPath = DeriveOutputPath(kernel)
	}
	output, err := filepath.Abs(outputPath)
	if err != nil {
		return BuildRequest{}, &MissingInputError{Role: "output", Path: outputPath, Err: err}
	}

	return BuildRequest{
		KernelPath:  kernel,
		ConfigPath:  config,
		RamdiskPath: ramdisk,
		OutputPath:  output,
	}, nil
}

// Layout returns the boot-media layout for this request's kernel.
func (r BuildRequest) Layout() BootMediaLayout {
	return LayoutFor(filepath.Base(r.KernelPath))
}

func resolveInput(role, inputPath string) (string, error) {
	if strings.TrimSpace(inputPath) == "" {
		return "", &MissingInputError{Role: role, Path: inputPath, Err: errors.New("path is empty")}
	}
	abs, err := filepath.Abs(inputPath)
	if err != nil {
		return "", &MissingInputError{Role: role, Path: inputPath, Err: err}
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", &MissingInputError{Role: role, Path: abs, Err: err}
	}
	if !info.Mode().IsRegular() {
		return "", &MissingInputError{Role: role, Path: abs, Err: errors.New("not a regular file")}
	}
	return abs, nil
}

// StagingTree is the on-disk tree one run assembles the image from. It is
// owned by exactly one run and removed when that run finishes.
type StagingTree struct {
	RunID  string
	Root   string
	Layout BootMediaLayout
}

// KernelPath returns the staged location of the kernel binary.
func (t StagingTree) KernelPath() string { return t.join(t.Layout.KernelName) }

// ConfigPath returns the staged location of the bootloader configuration.
func (t StagingTree) ConfigPath() string { return t.join(t.Layout.ConfigPath) }

// RamdiskPath returns the staged location of the ramdisk archive.
func (t StagingTree) RamdiskPath() string { return t.join(t.Layout.RamdiskPath) }

func (t StagingTree) join(entry string) string {
	return filepath.Join(t.Root, filepath.FromSlash(entry))
}

// Remove deletes the staging tree and everything under it.
func (t StagingTree) Remove() error {
	if t.Root == "" {
		return nil
	}
	return os.RemoveAll(t.Root)
}

// Report summarizes a finished assembly run.
type Report struct {
	RunID       string        `json:"run_id"`
	KernelPath  string        `json:"kernel"`
	ConfigPath  string        `json:"config"`
	RamdiskPath string        `json:"ramdisk"`
	OutputPath  string        `json:"output"`
	ImageSize   int64         `json:"image_size_bytes"`
	Tool        string        `json:"tool"`
	StagingRoot string        `json:"staging_root,omitempty"` // set when the tree was kept
	Duration    time.Duration `json:"duration_ns"`
	CreatedAt   time.Time     `json:"created_at"`
}
