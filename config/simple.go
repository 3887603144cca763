package simple

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/cochaviz/bootforge/internal/assemble"
	"github.com/cochaviz/bootforge/internal/emulator"
	"github.com/cochaviz/bootforge/internal/isoimage"
	"github.com/cochaviz/bootforge/internal/logging"
	"github.com/cochaviz/bootforge/internal/ramdisk"
)

var DefaultConfigPath = filepath.Join("build", "grub", "grub.cfg")
var DefaultRamdiskPath = filepath.Join("build", ramdisk.DefaultName)
var DefaultTool = assemble.DefaultTool

// AssembleOptions selects the inputs and behavior of one assembly run.
// Empty paths fall back to the build/ conventions above.
type AssembleOptions struct {
	KernelPath  string
	ConfigPath  string
	RamdiskPath string
	OutputPath  string
	WorkDir     string
	Tool        string
	ToolArgs    []string
	KeepStaging bool
	Verify      bool
	Manifest    bool
}

// Assemble executes the end-to-end flow that turns a kernel, bootloader
// configuration and ramdisk into a bootable image.
func Assemble(ctx context.Context, opts AssembleOptions, logger *slog.Logger) (assemble.Report, error) {
	logger = logging.Ensure(logger).With("component", "config.simple")

	if opts.ConfigPath == "" {
		opts.ConfigPath = DefaultConfigPath
	}
	if opts.RamdiskPath == "" {
		opts.RamdiskPath = DefaultRamdiskPath
	}

	request, err := assemble.NewBuildRequest(opts.KernelPath, opts.ConfigPath, opts.RamdiskPath, opts.OutputPath)
	if err != nil {
		return assemble.Report{}, err
	}

	assembleService := &assemble.AssembleService{
		Logger: logger.With("service", "assemble"),
		TreeBuilder: &assemble.TempStagingBuilder{
			Logger:  logger.With("stage", "staging"),
			WorkDir: opts.WorkDir,
		},
		Collector: &assemble.LocalArtifactCollector{
			Logger: logger.With("stage", "collect"),
		},
		Invoker: &assemble.GrubMkrescueInvoker{
			Logger:    logger.With("stage", "invoke"),
			Command:   opts.Tool,
			ExtraArgs: opts.ToolArgs,
		},
		KeepStaging: opts.KeepStaging,
	}
	if opts.Verify {
		assembleService.Verifier = isoimage.Checker{}
	}

	report, err := assembleService.Run(ctx, request)
	if err != nil {
		return assemble.Report{}, err
	}

	if opts.Manifest {
		manifestPath, err := assemble.WriteManifest(report)
		if err != nil {
			return report, err
		}
		logger.Info("manifest written", "path", manifestPath)
	}
	return report, nil
}

// BuildRamdisk packs sourceDir into a compressed cpio archive and
// returns where it was written.
func BuildRamdisk(sourceDir, outputPath string, logger *slog.Logger) (string, error) {
	logger = logging.Ensure(logger).With("component", "config.simple")

	if outputPath == "" {
		outputPath = ramdisk.DefaultName
	}
	builder := &ramdisk.Builder{Logger: logger.With("service", "ramdisk")}
	if err := builder.Build(sourceDir, outputPath); err != nil {
		return "", err
	}
	return outputPath, nil
}

// BootOptions selects the image to boot and how to run the emulator.
type BootOptions struct {
	ImagePath  string
	KernelPath string
	Arch       string
	Emulator   string
	MemoryMB   int
	KVM        bool
	Headless   bool
	ExtraArgs  []string
}

// Boot runs an assembled image in QEMU. When no architecture is given
// and a kernel path is, the architecture is read from the kernel binary.
func Boot(ctx context.Context, opts BootOptions, logger *slog.Logger) error {
	logger = logging.Ensure(logger).With("component", "config.simple")

	if _, err := os.Stat(opts.ImagePath); err != nil {
		return &assemble.MissingInputError{Role: "image", Path: opts.ImagePath, Err: err}
	}

	arch := opts.Arch
	if arch == "" && opts.KernelPath != "" {
		detected, err := emulator.KernelArch(opts.KernelPath)
		if err != nil {
			return err
		}
		logger.Debug("kernel architecture detected", "arch", detected)
		arch = detected
	}

	launcher := &emulator.QEMULauncher{
		Logger:    logger.With("service", "boot"),
		Emulator:  opts.Emulator,
		Arch:      arch,
		MemoryMB:  opts.MemoryMB,
		KVM:       opts.KVM,
		Headless:  opts.Headless,
		ExtraArgs: opts.ExtraArgs,
	}
	return launcher.Boot(ctx, opts.ImagePath)
}
