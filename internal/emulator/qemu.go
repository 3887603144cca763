// Package emulator boots assembled images in QEMU for a quick smoke
// test without real hardware.
package emulator

import (
	"context"
	"debug/elf"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"strings"

	"github.com/cochaviz/bootforge/internal/assemble"
)

// DefaultMemoryMB is the guest memory used when none is configured.
const DefaultMemoryMB = 512

// QEMULauncher runs an image under qemu-system with the serial console
// attached to the caller's terminal.
type QEMULauncher struct {
	Logger *slog.Logger

	// Emulator overrides the qemu-system binary. Empty derives it from
	// Arch.
	Emulator string

	// Arch selects the guest architecture. Empty selects the host
	// architecture.
	Arch string

	MemoryMB  int
	KVM       bool
	Headless  bool
	ExtraArgs []string
}

func (l *QEMULauncher) emulator() string {
	if l.Emulator != "" {
		return l.Emulator
	}
	return EmulatorFor(CanonicalArch(l.Arch))
}

func (l *QEMULauncher) bootArgs(imagePath string) []string {
	memory := l.MemoryMB
	if memory <= 0 {
		memory = DefaultMemoryMB
	}
	args := []string{"-cdrom", imagePath, "-m", strconv.Itoa(memory), "-serial", "stdio"}
	if l.Headless {
		args = append(args, "-display", "none")
	}
	if l.KVM {
		args = append(args, "-enable-kvm")
	}
	return append(args, l.ExtraArgs...)
}

// Boot runs the image until the guest powers off or the context is
// canceled. The guest's serial console is wired to stdin and stdout.
func (l *QEMULauncher) Boot(ctx context.Context, imagePath string) error {
	emulator := l.emulator()
	if _, err := exec.LookPath(emulator); err != nil {
		return &assemble.ToolInvocationError{Tool: emulator, Err: err}
	}

	bootArgs := l.bootArgs(imagePath)
	l.logger().Info("booting image", "command", emulator+" "+strings.Join(bootArgs, " "))

	command := exec.CommandContext(ctx, emulator, bootArgs...)
	command.Stdin = os.Stdin
	command.Stdout = os.Stdout
	command.Stderr = os.Stderr

	if err := command.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return &assemble.ToolFailureError{Tool: emulator, ExitCode: exitErr.ExitCode()}
		}
		return &assemble.ToolInvocationError{Tool: emulator, Err: err}
	}
	return nil
}

func (l *QEMULauncher) logger() *slog.Logger {
	if l.Logger != nil {
		return l.Logger
	}
	return slog.Default()
}

// EmulatorFor returns the qemu-system binary name for a canonical
// architecture.
func EmulatorFor(arch string) string {
	return "qemu-system-" + arch
}

// CanonicalArch canonicalizes the given architecture string. Empty
// selects the host architecture.
func CanonicalArch(arch string) string {
	normalized := strings.ToLower(strings.TrimSpace(arch))
	if normalized == "" {
		normalized = runtime.GOARCH
	}
	switch normalized {
	case "x86_64", "amd64":
		return "x86_64"
	case "arm64", "aarch64":
		return "aarch64"
	case "386", "i386", "i486", "i586", "i686", "x86":
		return "i386"
	default:
		return normalized
	}
}

// KernelArch inspects an ELF kernel binary and returns the canonical
// architecture it was built for.
func KernelArch(kernelPath string) (string, error) {
	file, err := elf.Open(kernelPath)
	if err != nil {
		return "", fmt.Errorf("inspect kernel %s: %w", kernelPath, err)
	}
	defer file.Close()

	return archForMachine(file.Machine, file.Class)
}

func archForMachine(machine elf.Machine, class elf.Class) (string, error) {
	switch machine {
	case elf.EM_X86_64:
		return "x86_64", nil
	case elf.EM_386:
		return "i386", nil
	case elf.EM_AARCH64:
		return "aarch64", nil
	case elf.EM_ARM:
		return "arm", nil
	case elf.EM_RISCV:
		if class == elf.ELFCLASS64 {
			return "riscv64", nil
		}
		return "riscv32", nil
	case elf.EM_PPC64:
		return "ppc64", nil
	case elf.EM_S390:
		return "s390x", nil
	default:
		return "", fmt.Errorf("unsupported kernel machine %s", machine)
	}
}
