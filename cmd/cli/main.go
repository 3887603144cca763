package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	simple "github.com/cochaviz/bootforge/config"
	"github.com/cochaviz/bootforge/internal/assemble"
	"github.com/cochaviz/bootforge/internal/emulator"
	"github.com/cochaviz/bootforge/internal/isoimage"
	"github.com/cochaviz/bootforge/internal/logging"
	"github.com/cochaviz/bootforge/internal/preflight"
	"github.com/cochaviz/bootforge/internal/ramdisk"
	"github.com/cochaviz/bootforge/internal/scaffold"
)

const defaultLogLevel = "info"

func main() {
	var levelVar slog.LevelVar
	levelVar.Set(slog.LevelInfo)

	logger := logging.NewCLI(os.Stderr, &levelVar)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCommand(&levelVar)
	if err := root.ExecuteContext(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			slog.Warn("command interrupted", "error", err)
			os.Exit(130)
		}
		slog.Error("command execution failed", "error", err)
		os.Exit(assemble.ExitCode(err))
	}
}

func newRootCommand(levelVar *slog.LevelVar) *cobra.Command {
	logLevel := defaultLogLevel
	logFormat := ""

	root := &cobra.Command{
		Use:           "bootforge",
		Short:         "Assemble bootable images from a kernel, a GRUB configuration and a ramdisk",
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	root.PersistentFlags().StringVar(&logLevel, "log-level", defaultLogLevel, "Set log verbosity (debug, info, warning, error)")
	root.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Set log output format (text, json)")
	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		level, err := parseLogLevel(logLevel)
		if err != nil {
			return err
		}
		if levelVar != nil {
			levelVar.Set(level)
		}

		mode, err := logging.ParseMode(logFormat)
		if err != nil {
			return err
		}
		if mode == logging.ModeJSON {
			slog.SetDefault(logging.NewJSON(os.Stderr, levelVar))
		}
		return nil
	}

	root.AddCommand(
		newAssembleCommand(),
		newRamdiskCommand(),
		newInspectCommand(),
		newBootCommand(),
		newDoctorCommand(),
		newInitCommand(),
	)
	return root
}

func newAssembleCommand() *cobra.Command {
	var (
		configPath  string
		ramdiskPath string
		outputPath  string
		workDir     string
		tool        string
		toolArgs    []string
		profilePath string
		keepStaging bool
		verify      bool
		manifest    bool
	)

	cmd := &cobra.Command{
		Use:   "assemble <kernel-path>",
		Args:  cobra.ExactArgs(1),
		Short: "Assemble a bootable image for the given kernel binary",
		RunE: func(cmd *cobra.Command, args []string) error {
			kernelPath := strings.TrimSpace(args[0])
			if kernelPath == "" {
				return fmt.Errorf("kernel path is required")
			}

			cmdLogger := slog.Default().With("command", "assemble", "kernel", filepath.Base(kernelPath))

			opts := simple.AssembleOptions{
				KernelPath:  kernelPath,
				ConfigPath:  configPath,
				RamdiskPath: ramdiskPath,
				OutputPath:  outputPath,
				WorkDir:     workDir,
				Tool:        tool,
				ToolArgs:    toolArgs,
				KeepStaging: keepStaging,
				Verify:      verify,
				Manifest:    manifest,
			}
			if profilePath != "" {
				profile, err := assemble.LoadProfile(profilePath)
				if err != nil {
					return err
				}
				applyAssembleProfile(&opts, profile, cmd)
			}

			cmdLogger.Info("assembling image", "config", opts.ConfigPath, "ramdisk", opts.RamdiskPath)

			report, err := simple.Assemble(cmd.Context(), opts, cmdLogger)
			if err != nil {
				cmdLogger.Error("assembly failed", "error", err)
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), report.OutputPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "Path to the GRUB configuration (default "+simple.DefaultConfigPath+")")
	cmd.Flags().StringVar(&ramdiskPath, "ramdisk", "", "Path to the compressed cpio ramdisk (default "+simple.DefaultRamdiskPath+")")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Path of the image to write (default <kernel-path>.iso)")
	cmd.Flags().StringVar(&workDir, "work-dir", "", "Directory to create staging trees under (default system temp)")
	cmd.Flags().StringVar(&tool, "tool", "", "Image-writing tool to invoke (default "+simple.DefaultTool+")")
	cmd.Flags().StringArrayVar(&toolArgs, "tool-arg", nil, "Extra argument for the tool; repeat flag to add more")
	cmd.Flags().StringVar(&profilePath, "profile", "", "Path to a YAML profile with assembly defaults")
	cmd.Flags().BoolVar(&keepStaging, "keep-staging", false, "Keep the staging tree after a successful run")
	cmd.Flags().BoolVar(&verify, "verify", false, "List the written image and check the boot layout")
	cmd.Flags().BoolVar(&manifest, "manifest", false, "Write a JSON manifest next to the image")

	return cmd
}

// applyAssembleProfile fills options the profile sets and no flag
// overrode.
func applyAssembleProfile(opts *simple.AssembleOptions, profile assemble.Profile, cmd *cobra.Command) {
	flags := cmd.Flags()
	if profile.Config != "" && !flags.Changed("config") {
		opts.ConfigPath = profile.Config
	}
	if profile.Ramdisk != "" && !flags.Changed("ramdisk") {
		opts.RamdiskPath = profile.Ramdisk
	}
	if profile.Output != "" && !flags.Changed("output") {
		opts.OutputPath = profile.Output
	}
	if profile.WorkDir != "" && !flags.Changed("work-dir") {
		opts.WorkDir = profile.WorkDir
	}
	if profile.Tool != "" && !flags.Changed("tool") {
		opts.Tool = profile.Tool
	}
	if len(profile.ToolArgs) > 0 && !flags.Changed("tool-arg") {
		opts.ToolArgs = profile.ToolArgs
	}
}

func newRamdiskCommand() *cobra.Command {
	var (
		outputPath string
		list       bool
	)

	cmd := &cobra.Command{
		Use:   "ramdisk <source>",
		Args:  cobra.ExactArgs(1),
		Short: "Pack a directory into a compressed cpio ramdisk, or list an existing one",
		RunE: func(cmd *cobra.Command, args []string) error {
			source := strings.TrimSpace(args[0])
			if source == "" {
				return fmt.Errorf("source path is required")
			}

			cmdLogger := slog.Default().With("command", "ramdisk")

			if list {
				entries, err := ramdisk.List(source)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				for _, entry := range entries {
					fmt.Fprintf(out, "%s\t%d\t%s\n", entry.Mode, entry.Size, entry.Name)
				}
				return nil
			}

			archivePath, err := simple.BuildRamdisk(source, outputPath, cmdLogger)
			if err != nil {
				cmdLogger.Error("ramdisk build failed", "error", err)
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), archivePath)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Path of the archive to write (default "+ramdisk.DefaultName+")")
	cmd.Flags().BoolVar(&list, "list", false, "Treat <source> as an archive and list its contents")

	return cmd
}

func newInspectCommand() *cobra.Command {
	var layoutKernel string

	cmd := &cobra.Command{
		Use:   "inspect <image-path>",
		Args:  cobra.ExactArgs(1),
		Short: "List the contents of an assembled image",
		RunE: func(cmd *cobra.Command, args []string) error {
			imagePath := strings.TrimSpace(args[0])
			if imagePath == "" {
				return fmt.Errorf("image path is required")
			}

			entries, err := isoimage.List(imagePath)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, entry := range entries {
				if entry.Dir {
					fmt.Fprintf(out, "%s/\n", entry.Path)
					continue
				}
				fmt.Fprintf(out, "%s\t%d\n", entry.Path, entry.Size)
			}

			if layoutKernel != "" {
				layout := assemble.LayoutFor(layoutKernel)
				missing, err := isoimage.Missing(imagePath, layout.Entries())
				if err != nil {
					return err
				}
				if len(missing) > 0 {
					return fmt.Errorf("image is missing %s", strings.Join(missing, ", "))
				}
				fmt.Fprintln(out, "boot layout complete")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&layoutKernel, "layout", "", "Check the boot layout for the given kernel name")

	return cmd
}

func newBootCommand() *cobra.Command {
	var (
		emulatorBinary string
		arch           string
		kernelPath     string
		profilePath    string
		memoryMB       int
		kvm            bool
		headless       bool
		qemuArgs       []string
	)

	cmd := &cobra.Command{
		Use:   "boot <image-path>",
		Args:  cobra.ExactArgs(1),
		Short: "Boot an assembled image in QEMU with the serial console attached",
		RunE: func(cmd *cobra.Command, args []string) error {
			imagePath := strings.TrimSpace(args[0])
			if imagePath == "" {
				return fmt.Errorf("image path is required")
			}

			cmdLogger := slog.Default().With("command", "boot", "image", filepath.Base(imagePath))

			opts := simple.BootOptions{
				ImagePath:  imagePath,
				KernelPath: kernelPath,
				Arch:       arch,
				Emulator:   emulatorBinary,
				MemoryMB:   memoryMB,
				KVM:        kvm,
				Headless:   headless,
				ExtraArgs:  qemuArgs,
			}
			if profilePath != "" {
				profile, err := assemble.LoadProfile(profilePath)
				if err != nil {
					return err
				}
				if profile.Emulator != "" && !cmd.Flags().Changed("emulator") {
					opts.Emulator = profile.Emulator
				}
				if profile.MemoryMB > 0 && !cmd.Flags().Changed("memory") {
					opts.MemoryMB = profile.MemoryMB
				}
			}

			if err := simple.Boot(cmd.Context(), opts, cmdLogger); err != nil {
				cmdLogger.Error("boot failed", "error", err)
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&emulatorBinary, "emulator", "", "qemu-system binary to run (default derived from --arch)")
	cmd.Flags().StringVar(&arch, "arch", "", "Guest architecture (e.g. x86_64, i386; default host or kernel)")
	cmd.Flags().StringVar(&kernelPath, "kernel", "", "Kernel binary to read the guest architecture from")
	cmd.Flags().StringVar(&profilePath, "profile", "", "Path to a YAML profile with boot defaults")
	cmd.Flags().IntVar(&memoryMB, "memory", emulator.DefaultMemoryMB, "Guest memory in MiB")
	cmd.Flags().BoolVar(&kvm, "kvm", false, "Enable KVM acceleration")
	cmd.Flags().BoolVar(&headless, "headless", false, "Run without a display, serial console only")
	cmd.Flags().StringArrayVar(&qemuArgs, "qemu-arg", nil, "Extra argument for QEMU; repeat flag to add more")

	return cmd
}

func newDoctorCommand() *cobra.Command {
	var (
		tool string
		boot bool
		arch string
	)

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check that the external tools an assembly run needs are installed",
		RunE: func(cmd *cobra.Command, args []string) error {
			requirements := preflight.AssembleRequirements(tool)
			if boot {
				canonical := emulator.CanonicalArch(arch)
				requirements = append(requirements, preflight.BootRequirements(emulator.EmulatorFor(canonical))...)
			}

			out := cmd.OutOrStdout()
			firstMissing := ""
			for _, result := range preflight.Inspect(requirements) {
				if result.Ok() {
					fmt.Fprintf(out, "ok\t%s\t%s\n", result.Requirement.Name, result.Path)
					continue
				}
				fmt.Fprintf(out, "missing\t%s\t(%s)\n", result.Requirement.Name, result.Requirement.Reason)
				if firstMissing == "" {
					firstMissing = result.Requirement.Name
				}
			}

			if firstMissing != "" {
				return &assemble.ToolInvocationError{Tool: firstMissing, Err: errors.New("not found on PATH")}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&tool, "tool", "", "Image-writing tool to check for (default "+simple.DefaultTool+")")
	cmd.Flags().BoolVar(&boot, "boot", false, "Also check for the QEMU emulator")
	cmd.Flags().StringVar(&arch, "arch", "", "Guest architecture the emulator check uses")

	return cmd
}

func newInitCommand() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "init <kernel-name>",
		Args:  cobra.ExactArgs(1),
		Short: "Write a starter GRUB configuration for a new kernel project",
		RunE: func(cmd *cobra.Command, args []string) error {
			kernelName := strings.TrimSpace(args[0])
			if kernelName == "" {
				return fmt.Errorf("kernel name is required")
			}

			configPath, err := scaffold.Write(scaffold.Options{Dir: dir, KernelName: kernelName})
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), configPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "Directory to create the grub/ tree under (default build)")

	return cmd
}

func parseLogLevel(value string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error", "err":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", value)
	}
}
