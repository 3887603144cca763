package assemble

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"
)

// AssembleService drives one assembly run: stage, collect, invoke, and
// optionally verify. Stages run strictly in order and the first failure
// aborts the run.
type AssembleService struct {
	Logger *slog.Logger

	TreeBuilder StagingTreeBuilder
	Collector   ArtifactCollector
	Invoker     ImageInvoker

	// Verifier, when set, checks the written image for the layout's
	// entries after the tool succeeds.
	Verifier ImageVerifier

	// KeepStaging leaves the staging tree behind after a successful
	// run. Failed runs always keep it so the tree can be inspected.
	KeepStaging bool
}

// Run assembles the image described by the request and reports on the
// result. The staging tree of a failed run is left in place and its
// location logged.
func (s *AssembleService) Run(ctx context.Context, request BuildRequest) (Report, error) {
	if s.TreeBuilder == nil {
		return Report{}, errors.New("staging tree builder is not configured")
	}
	if s.Collector == nil {
		return Report{}, errors.New("artifact collector is not configured")
	}
	if s.Invoker == nil {
		return Report{}, errors.New("image invoker is not configured")
	}

	started := time.Now()
	layout := request.Layout()

	if err := s.Invoker.Preflight(); err != nil {
		return Report{}, err
	}

	tree, err := s.TreeBuilder.Build(request, layout)
	if err != nil {
		return Report{}, err
	}
	keep := true
	defer func() {
		if keep {
			s.logger().Info("staging tree kept", "root", tree.Root)
			return
		}
		if err := tree.Remove(); err != nil {
			s.logger().Warn("removing staging tree", "root", tree.Root, "error", err)
		}
	}()

	if err := s.Collector.Collect(tree, request); err != nil {
		return Report{}, err
	}
	if err := s.Invoker.Invoke(ctx, tree.Root, request.OutputPath); err != nil {
		return Report{}, err
	}
	if s.Verifier != nil {
		if err := s.Verifier.Verify(request.OutputPath, layout.Entries()); err != nil {
			return Report{}, err
		}
	}
	keep = s.KeepStaging

	report := Report{
		RunID:       tree.RunID,
		KernelPath:  request.KernelPath,
		ConfigPath:  request.ConfigPath,
		RamdiskPath: request.RamdiskPath,
		OutputPath:  request.OutputPath,
		Tool:        s.Invoker.Tool(),
		Duration:    time.Since(started),
		CreatedAt:   started.UTC(),
	}
	if s.KeepStaging {
		report.StagingRoot = tree.Root
	}
	if info, err := os.Stat(request.OutputPath); err == nil {
		report.ImageSize = info.Size()
	}

	s.logger().Info("image assembled",
		"output", report.OutputPath,
		"size", report.ImageSize,
		"duration", report.Duration,
	)
	return report, nil
}

func (s *AssembleService) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}
