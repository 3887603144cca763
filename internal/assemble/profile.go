package assemble

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Profile is a reusable set of assembly defaults loaded from a YAML file.
// Anything left empty falls back to the built-in default, and explicit
// command-line flags win over profile values.
type Profile struct {
	Tool     string   `yaml:"tool,omitempty"`
	ToolArgs []string `yaml:"tool_args,omitempty"`
	Config   string   `yaml:"config,omitempty"`
	Ramdisk  string   `yaml:"ramdisk,omitempty"`
	Output   string   `yaml:"output,omitempty"`
	WorkDir  string   `yaml:"work_dir,omitempty"`

	Emulator string `yaml:"emulator,omitempty"`
	MemoryMB int    `yaml:"memory_mb,omitempty"`
}

// LoadProfile reads and validates a profile file.
func LoadProfile(path string) (Profile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, fmt.Errorf("reading profile: %w", err)
	}
	var profile Profile
	if err := yaml.Unmarshal(raw, &profile); err != nil {
		return Profile{}, fmt.Errorf("parsing profile %s: %w", path, err)
	}
	if profile.MemoryMB < 0 {
		return Profile{}, fmt.Errorf("profile %s: memory_mb must not be negative", path)
	}
	return profile, nil
}
