// Package props parses Android build property files: newline-separated
// key=value pairs with #-comments, the format of default.prop and
// build.prop inside a ramdisk.
package props

import (
	"bufio"
	"bytes"
	"strings"

	"github.com/EduardoA3677/twrpdtgen/internal/cpio"
)

// SearchPaths lists the ramdisk locations checked for a property file,
// in priority order. The recovery ramdisk usually carries default.prop
// or prop.default at its root; system-as-root and vendor layouts bury
// build.prop one level down.
var SearchPaths = []string{
	"default.prop",
	"prop.default",
	"system/build.prop",
	"vendor/build.prop",
	"system/etc/build.prop",
	"vendor/etc/build.prop",
}

// Properties is a parsed property file.
type Properties map[string]string

// Parse reads key=value lines. Malformed lines and comments are
// skipped rather than rejected: vendor prop files routinely carry
// stray import statements and other junk.
func Parse(data []byte) Properties {
	p := Properties{}
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		p[key] = strings.TrimSpace(value)
	}
	return p
}

// Get returns the first non-empty value among the given keys.
func (p Properties) Get(keys ...string) string {
	for _, k := range keys {
		if v := p[k]; v != "" {
			return v
		}
	}
	return ""
}

// FromRamdisk locates and parses the first property file present in
// the unpacked ramdisk, returning the path it was found at.
func FromRamdisk(a *cpio.Archive) (Properties, string, bool) {
	if a == nil {
		return nil, "", false
	}
	for _, path := range SearchPaths {
		if data, ok := a.File(path); ok {
			return Parse(data), path, true
		}
	}
	return nil, "", false
}
