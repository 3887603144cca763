// Package scaffold writes the starter bootloader configuration a new
// kernel project assembles its first image from.
package scaffold

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"
)

//go:embed assets/grub.cfg
var embeddedGrubConfig string

// Options selects where the configuration goes and which kernel it
// boots.
type Options struct {
	// Dir is the directory the grub/ tree is created under. Empty
	// selects "build".
	Dir string

	// KernelName is the kernel binary name the menu entry boots.
	KernelName string
}

// Write renders the starter configuration and returns its path. An
// existing configuration is never overwritten.
func Write(opts Options) (string, error) {
	name := strings.TrimSpace(opts.KernelName)
	if name == "" {
		return "", fmt.Errorf("kernel name is empty")
	}
	if strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("kernel name %q must be a bare file name", name)
	}

	dir := opts.Dir
	if dir == "" {
		dir = "build"
	}

	tmpl, err := template.New("grub.cfg").Parse(embeddedGrubConfig)
	if err != nil {
		return "", fmt.Errorf("parse configuration template: %w", err)
	}
	var rendered bytes.Buffer
	if err := tmpl.Execute(&rendered, struct{ KernelName string }{KernelName: name}); err != nil {
		return "", fmt.Errorf("render configuration: %w", err)
	}

	configPath := filepath.Join(dir, "grub", "grub.cfg")
	if _, err := os.Stat(configPath); err == nil {
		return "", fmt.Errorf("%s already exists", configPath)
	}
	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return "", fmt.Errorf("create configuration directory: %w", err)
	}
	if err := os.WriteFile(configPath, rendered.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("write configuration: %w", err)
	}
	return configPath, nil
}
