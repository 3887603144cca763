package assemble

import "context"

// StagingTreeBuilder materializes an empty staging tree shaped after the
// boot-media layout.
type StagingTreeBuilder interface {
	Build(request BuildRequest, layout BootMediaLayout) (StagingTree, error)
}

// ArtifactCollector copies the request's input files into their staged
// locations.
type ArtifactCollector interface {
	Collect(tree StagingTree, request BuildRequest) error
}

// ImageInvoker runs the external image-writing tool over a populated
// staging tree.
type ImageInvoker interface {
	// Tool names the executable the invoker runs.
	Tool() string
	// Preflight reports whether the tool can be invoked at all.
	Preflight() error
	// Invoke writes the image at outputPath from stagingRoot.
	Invoke(ctx context.Context, stagingRoot, outputPath string) error
}

// ImageVerifier checks a written image for the expected entries.
type ImageVerifier interface {
	Verify(imagePath string, entries []string) error
}
