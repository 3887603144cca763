package assemble

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"golang.org/x/sys/unix"
)

// TempStagingBuilder creates per-run staging trees under a shared work
// directory. Each tree gets a fresh run identifier so concurrent runs
// never collide.
type TempStagingBuilder struct {
	Logger *slog.Logger

	// WorkDir is the directory staging trees are created under. Empty
	// selects the system temporary directory.
	WorkDir string
}

func (b *TempStagingBuilder) Build(request BuildRequest, layout BootMediaLayout) (StagingTree, error) {
	if err := layout.validate(); err != nil {
		return StagingTree{}, &StagingError{Err: err}
	}

	workDir := b.WorkDir
	if workDir == "" {
		workDir = os.TempDir()
	}
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return StagingTree{}, &StagingError{Path: workDir, Err: err}
	}
	if err := checkStagingSpace(workDir, request); err != nil {
		return StagingTree{}, err
	}

	runID := uuid.NewString()
	root := filepath.Join(workDir, "bootforge-"+runID)
	if err := os.Mkdir(root, 0o755); err != nil {
		return StagingTree{}, &StagingError{Path: root, Err: err}
	}

	tree := StagingTree{RunID: runID, Root: root, Layout: layout}
	for _, entry := range layout.Entries() {
		dir := filepath.Dir(tree.join(entry))
		if err := os.MkdirAll(dir, 0o755); err != nil {
			_ = os.RemoveAll(root)
			return StagingTree{}, &StagingError{Path: dir, Err: err}
		}
	}

	b.logger().Debug("staging tree created", "root", root, "run_id", runID)
	return tree, nil
}

// checkStagingSpace rejects work directories that are not writable or
// cannot hold a copy of all three inputs.
func checkStagingSpace(workDir string, request BuildRequest) error {
	if err := unix.Access(workDir, unix.W_OK); err != nil {
		return &StagingError{Path: workDir, Err: fmt.Errorf("not writable: %w", err)}
	}

	var needed int64
	for _, inputPath := range []string{request.KernelPath, request.ConfigPath, request.RamdiskPath} {
		if info, err := os.Stat(inputPath); err == nil {
			needed += info.Size()
		}
	}

	var stat unix.Statfs_t
	if err := unix.Statfs(workDir, &stat); err != nil {
		return &StagingError{Path: workDir, Err: err}
	}
	free := int64(stat.Bavail) * int64(stat.Bsize)
	if free < needed {
		return &StagingError{
			Path: workDir,
			Err:  fmt.Errorf("needs %d bytes but only %d are free", needed, free),
		}
	}
	return nil
}

func (b *TempStagingBuilder) logger() *slog.Logger {
	if b.Logger != nil {
		return b.Logger
	}
	return slog.Default()
}
