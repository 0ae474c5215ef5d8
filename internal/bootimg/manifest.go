package bootimg

import "fmt"

// SectionKind identifies one region of a boot image.
type SectionKind int

const (
	SectionKernel SectionKind = iota
	SectionRamdisk
	SectionSecond
	SectionRecoveryDtbo
	SectionDtb
	SectionSignature
	SectionRamdiskTable
	SectionBootconfig
)

func (k SectionKind) String() string {
	switch k {
	case SectionKernel:
		return "kernel"
	case SectionRamdisk:
		return "ramdisk"
	case SectionSecond:
		return "second"
	case SectionRecoveryDtbo:
		return "recovery_dtbo"
	case SectionDtb:
		return "dtb"
	case SectionSignature:
		return "signature"
	case SectionRamdiskTable:
		return "vendor_ramdisk_table"
	case SectionBootconfig:
		return "bootconfig"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// Section is one offset/size-delimited region within the image.
type Section struct {
	Kind     SectionKind
	Offset   int    // byte offset within the image
	Size     int    // declared size in bytes (before page padding)
	LoadAddr uint64 // physical load address, 0 if the header has none
}

// Manifest is the decoded description of a boot image: its version,
// page geometry and every declared section in layout order. Sections
// with a declared size of zero are omitted.
type Manifest struct {
	VendorBoot bool
	Version    uint32
	PageSize   uint32
	Sections   []Section

	// Identity fields carried by the header, where the layout has them.
	Board        string
	Cmdline      string
	ExtraCmdline string
	OSVersion    uint32
}

// Section returns the first section of the given kind.
func (m *Manifest) Section(kind SectionKind) (Section, bool) {
	for _, s := range m.Sections {
		if s.Kind == kind {
			return s, true
		}
	}
	return Section{}, false
}

// SectionBytes slices the given image buffer to the section of the
// given kind. The returned slice aliases img; it is nil if the manifest
// has no such section. Parse validated the bounds, so the slice is safe
// for any image the manifest was produced from.
func (m *Manifest) SectionBytes(img []byte, kind SectionKind) []byte {
	s, ok := m.Section(kind)
	if !ok {
		return nil
	}
	if s.Offset+s.Size > len(img) {
		return nil
	}
	return img[s.Offset : s.Offset+s.Size]
}
