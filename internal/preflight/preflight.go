// Package preflight checks that the external programs an assembly run
// depends on are actually installed.
package preflight

import "os/exec"

// Requirement names one external program and why it is needed.
type Requirement struct {
	Name   string
	Reason string
}

// Result pairs a requirement with where it was found, or the lookup
// error when it was not.
type Result struct {
	Requirement Requirement
	Path        string
	Err         error
}

// Ok reports whether the requirement was satisfied.
func (r Result) Ok() bool { return r.Err == nil }

// AssembleRequirements lists the programs an assembly run with the given
// tool needs. grub-mkrescue pulls in its own helpers, so those are
// checked too.
func AssembleRequirements(tool string) []Requirement {
	if tool == "" {
		tool = "grub-mkrescue"
	}
	requirements := []Requirement{
		{Name: tool, Reason: "writes the bootable image"},
	}
	if tool == "grub-mkrescue" {
		requirements = append(requirements,
			Requirement{Name: "xorriso", Reason: "grub-mkrescue delegates ISO writing to it"},
			Requirement{Name: "mformat", Reason: "grub-mkrescue uses mtools for the EFI boot image"},
		)
	}
	return requirements
}

// BootRequirements lists the programs needed to boot an image with the
// given emulator binary.
func BootRequirements(emulator string) []Requirement {
	return []Requirement{
		{Name: emulator, Reason: "boots the assembled image"},
	}
}

// Inspect looks every requirement up on PATH.
func Inspect(requirements []Requirement) []Result {
	results := make([]Result, 0, len(requirements))
	for _, requirement := range requirements {
		path, err := exec.LookPath(requirement.Name)
		results = append(results, Result{Requirement: requirement, Path: path, Err: err})
	}
	return results
}
