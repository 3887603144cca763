package isoimage

import (
	"path"
	"runtime"
	"strings"
)

const (
	directoryIdentifierMaxLength = 31
	fileIdentifierMaxLength      = 30
)

// dCharacters defines the allowed characters for ISO9660 D-strings. This
// matches the character set used by github.com/kdomanski/iso9660.
const dCharacters = "abcdefghijklmnopqrstuvwxyz0123456789_!\"%&'()*+,-./:;<=>?"

// RelativePath converts a host-relative path into the mangled path an
// ISO9660 writer produces, so staged names can be matched against what
// actually ends up inside the image.
func RelativePath(rel string) string {
	clean := splitPath(rel)
	if len(clean) == 0 {
		return ""
	}

	segments := make([]string, len(clean))
	for i, segment := range clean {
		if i == len(clean)-1 {
			name := mangleFileName(segment)
			segments[i] = strings.TrimSuffix(name, ";1")
			continue
		}
		segments[i] = mangleDirectoryName(segment)
	}
	return path.Join(segments...)
}

func splitPath(p string) []string {
	if runtime.GOOS == "windows" {
		p = strings.ReplaceAll(p, "\\", "/")
	}
	raw := strings.Split(p, "/")
	out := make([]string, 0, len(raw))
	for _, segment := range raw {
		if segment == "" {
			continue
		}
		out = append(out, segment)
	}
	return out
}

func mangleDirectoryName(input string) string {
	return mangleDString(input, directoryIdentifierMaxLength)
}

func mangleFileName(input string) string {
	input = strings.ToLower(input)
	parts := strings.Split(input, ".")

	version := "1"
	filename := parts[0]
	extension := ""
	if len(parts) > 1 {
		filename = strings.Join(parts[:len(parts)-1], "_")
		extension = parts[len(parts)-1]
	}

	extension = mangleDString(extension, 8)

	maxFilenameLen := fileIdentifierMaxLength - (1 + len(version))
	if extension != "" {
		maxFilenameLen -= (1 + len(extension))
	}

	filename = mangleDString(filename, maxFilenameLen)

	if extension != "" {
		return filename + "." + extension + ";" + version
	}
	return filename + ";" + version
}

func mangleDString(input string, maxLen int) string {
	input = strings.ToLower(input)
	var b strings.Builder
	for i := 0; i < len(input) && b.Len() < maxLen; i++ {
		c := rune(input[i])
		if strings.ContainsRune(dCharacters, c) {
			b.WriteRune(c)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}
