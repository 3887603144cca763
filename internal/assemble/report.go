package assemble

import (
	"encoding/json"
	"fmt"
	"os"
)

// ManifestPath returns where the manifest for an image lives: next to the
// image, with a ".json" suffix appended.
func ManifestPath(outputPath string) string {
	return outputPath + ".json"
}

// WriteManifest stores the report as a JSON sidecar next to the image and
// returns the manifest path.
func WriteManifest(report Report) (string, error) {
	raw, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding manifest: %w", err)
	}
	manifestPath := ManifestPath(report.OutputPath)
	if err := os.WriteFile(manifestPath, raw, 0o644); err != nil {
		return "", fmt.Errorf("writing manifest: %w", err)
	}
	return manifestPath, nil
}
