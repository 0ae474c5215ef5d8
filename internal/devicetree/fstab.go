package devicetree

import (
	"fmt"
	"strings"

	"github.com/EduardoA3677/twrpdtgen/internal/cpio"
)

// FstabSearchPaths are the ramdisk locations consulted for a recovery
// fstab, in priority order.
var FstabSearchPaths = []string{
	"etc/recovery.fstab",
	"system/etc/recovery.fstab",
	"vendor/etc/recovery.fstab",
}

// FstabEntry is a single mount definition, normalized to the v2 field
// order regardless of the source format.
type FstabEntry struct {
	MountPoint string
	FsType     string
	Device     string
	Flags      string
}

// Fstab is an ordered list of mount definitions.
type Fstab struct {
	Entries []FstabEntry
}

// FstabFromRamdisk locates and parses the first recovery fstab found at
// the known search paths. The boolean reports whether one was found.
// A nil archive (image with no ramdisk section) finds nothing.
func FstabFromRamdisk(a *cpio.Archive) (*Fstab, string, bool) {
	if a == nil {
		return nil, "", false
	}
	for _, path := range FstabSearchPaths {
		if data, ok := a.File(path); ok {
			return ParseFstab(data), path, true
		}
	}
	return nil, "", false
}

// ParseFstab parses fstab text in either the v1 ordering
// ("mountpoint fstype device ...") or the v2 ordering
// ("device mountpoint fstype flags ..."). Comment and blank lines are
// skipped; lines with fewer than three fields are ignored.
func ParseFstab(data []byte) *Fstab {
	f := &Fstab{}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 3 {
			continue
		}

		var e FstabEntry
		// v2 puts the device first and the mount point second; the
		// mount point always starts with a slash where a filesystem
		// type never does.
		if strings.HasPrefix(fields[1], "/") {
			e = FstabEntry{Device: fields[0], MountPoint: fields[1], FsType: fields[2]}
			if len(fields) > 3 {
				e.Flags = fields[3]
			}
		} else {
			e = FstabEntry{MountPoint: fields[0], FsType: fields[1], Device: fields[2]}
			if len(fields) > 3 {
				e.Flags = fields[3]
			}
		}
		f.Entries = append(f.Entries, e)
	}
	return f
}

// FormatTWRP renders the fstab in the TWRP recovery layout: mount point
// first, columns aligned, flags carried through unchanged.
func (f *Fstab) FormatTWRP() string {
	var mountWidth, typeWidth, devWidth int
	for _, e := range f.Entries {
		if len(e.MountPoint) > mountWidth {
			mountWidth = len(e.MountPoint)
		}
		if len(e.FsType) > typeWidth {
			typeWidth = len(e.FsType)
		}
		if len(e.Device) > devWidth {
			devWidth = len(e.Device)
		}
	}

	var b strings.Builder
	b.WriteString("# mount point\tfstype\tdevice\n\n")
	for _, e := range f.Entries {
		line := fmt.Sprintf("%-*s %-*s %-*s", mountWidth, e.MountPoint, typeWidth, e.FsType, devWidth, e.Device)
		if e.Flags != "" {
			line += " " + e.Flags
		}
		b.WriteString(strings.TrimRight(line, " "))
		b.WriteString("\n")
	}
	return b.String()
}
