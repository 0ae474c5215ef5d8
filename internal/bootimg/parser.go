package bootimg

import (
	"encoding/binary"
	"fmt"

	"github.com/EduardoA3677/twrpdtgen/internal/blob"
)

// Header magics and fixed field sizes, per the AOSP bootimg definitions.
const (
	BootMagic       = "ANDROID!"
	VendorBootMagic = "VNDRBOOT"

	bootMagicSize     = 8
	bootNameSize      = 16
	bootArgsSize      = 512
	bootExtraArgsSize = 1024
	bootIDSize        = 32

	v3ArgsSize         = 1536 // cmdline + extra_cmdline merged in v3+
	v3PageSize         = 4096 // fixed, no page_size field in v3+
	vendorBootArgsSize = 2048
	vendorBootNameSize = 16

	// header_version sits at byte 40 in both the legacy and the v3+
	// layout; the v3 designers kept the offset so the discriminant can
	// be read before choosing a decoder.
	headerVersionOffset = 40

	fdtMagic = 0xd00dfeed
)

// Parse classifies and decodes a boot or vendor_boot image, producing a
// manifest of its sections. The image buffer is not copied; the
// returned manifest references it only by offsets.
func Parse(img []byte) (*Manifest, error) {
	if len(img) < bootMagicSize {
		return nil, &FormatError{Offset: 0, Reason: "image shorter than magic"}
	}
	switch string(img[:bootMagicSize]) {
	case BootMagic:
		return parseBoot(img)
	case VendorBootMagic:
		return parseVendorBoot(img)
	default:
		return nil, &FormatError{
			Offset: 0,
			Reason: "unrecognized magic",
			Want:   fmt.Sprintf("%q or %q", BootMagic, VendorBootMagic),
			Got:    fmt.Sprintf("%q", img[:bootMagicSize]),
		}
	}
}

func parseBoot(img []byte) (*Manifest, error) {
	r := blob.NewReader(img)
	if err := r.Seek(headerVersionOffset); err != nil {
		return nil, &FormatError{Offset: headerVersionOffset, Reason: "image shorter than header"}
	}
	version, err := r.ReadU32(binary.LittleEndian)
	if err != nil {
		return nil, &FormatError{Offset: headerVersionOffset, Reason: "image shorter than header"}
	}
	switch version {
	case 0, 1, 2:
		return parseBootLegacy(img, version)
	case 3, 4:
		return parseBootModern(img, version)
	default:
		return nil, &FormatError{
			Offset: headerVersionOffset,
			Reason: "unsupported header version",
			Want:   "0-4",
			Got:    fmt.Sprintf("%d", version),
		}
	}
}

// parseBootLegacy decodes the v0-v2 layout: a size/load-address table
// for kernel, ramdisk and second stage, followed in v1 by the recovery
// dtbo fields and in v2 by the dtb fields.
func parseBootLegacy(img []byte, version uint32) (*Manifest, error) {
	r := blob.NewReader(img)
	var (
		kernelSize, kernelAddr   uint32
		ramdiskSize, ramdiskAddr uint32
		secondSize, secondAddr   uint32
		pageSize                 uint32
		osVersion                uint32
		recoveryDtboSize         uint32
		dtbSize                  uint32
		dtbAddr                  uint64
		board, cmdline, extra    string
	)

	fail := func(err error) (*Manifest, error) {
		return nil, &FormatError{Offset: r.Offset(), Reason: "truncated header: " + err.Error()}
	}

	if err := r.Skip(bootMagicSize); err != nil {
		return fail(err)
	}
	var err error
	if kernelSize, err = r.ReadU32(binary.LittleEndian); err != nil {
		return fail(err)
	}
	if kernelAddr, err = r.ReadU32(binary.LittleEndian); err != nil {
		return fail(err)
	}
	if ramdiskSize, err = r.ReadU32(binary.LittleEndian); err != nil {
		return fail(err)
	}
	if ramdiskAddr, err = r.ReadU32(binary.LittleEndian); err != nil {
		return fail(err)
	}
	if secondSize, err = r.ReadU32(binary.LittleEndian); err != nil {
		return fail(err)
	}
	if secondAddr, err = r.ReadU32(binary.LittleEndian); err != nil {
		return fail(err)
	}
	if err = r.Skip(4); err != nil { // tags_addr
		return fail(err)
	}
	if pageSize, err = r.ReadU32(binary.LittleEndian); err != nil {
		return fail(err)
	}
	if err = r.Skip(4); err != nil { // header_version, already read
		return fail(err)
	}
	if osVersion, err = r.ReadU32(binary.LittleEndian); err != nil {
		return fail(err)
	}
	if board, err = r.ReadString(bootNameSize); err != nil {
		return fail(err)
	}
	if cmdline, err = r.ReadString(bootArgsSize); err != nil {
		return fail(err)
	}
	if err = r.Skip(bootIDSize); err != nil {
		return fail(err)
	}
	if extra, err = r.ReadString(bootExtraArgsSize); err != nil {
		return fail(err)
	}
	if version >= 1 {
		if recoveryDtboSize, err = r.ReadU32(binary.LittleEndian); err != nil {
			return fail(err)
		}
		if err = r.Skip(8 + 4); err != nil { // recovery_dtbo_offset, header_size
			return fail(err)
		}
	}
	if version >= 2 {
		if dtbSize, err = r.ReadU32(binary.LittleEndian); err != nil {
			return fail(err)
		}
		if dtbAddr, err = r.ReadU64(binary.LittleEndian); err != nil {
			return fail(err)
		}
	}

	if pageSize == 0 || pageSize&(pageSize-1) != 0 {
		return nil, &FormatError{
			Offset: 36,
			Reason: "implausible page size",
			Want:   "power of two",
			Got:    fmt.Sprintf("%d", pageSize),
		}
	}

	m := &Manifest{
		Version:      version,
		PageSize:     pageSize,
		Board:        board,
		Cmdline:      cmdline,
		ExtraCmdline: extra,
		OSVersion:    osVersion,
	}

	// Sections are laid out back to back after the header page, each
	// rounded up to the page size.
	w := sectionWalker{page: int(pageSize), off: int(pageSize), imgLen: len(img)}
	if err := w.add(m, SectionKernel, int(kernelSize), uint64(kernelAddr)); err != nil {
		return nil, err
	}
	if err := w.add(m, SectionRamdisk, int(ramdiskSize), uint64(ramdiskAddr)); err != nil {
		return nil, err
	}
	if err := w.add(m, SectionSecond, int(secondSize), uint64(secondAddr)); err != nil {
		return nil, err
	}
	if err := w.add(m, SectionRecoveryDtbo, int(recoveryDtboSize), 0); err != nil {
		return nil, err
	}
	if err := w.add(m, SectionDtb, int(dtbSize), dtbAddr); err != nil {
		return nil, err
	}

	// Older images carry the dtb appended to the kernel instead of in a
	// dedicated section. Expose it as a dtb section so downstream code
	// has a single place to look.
	if dtbSize == 0 {
		if ks, ok := m.Section(SectionKernel); ok {
			if off, size, found := findAppendedFdt(img[ks.Offset : ks.Offset+ks.Size]); found {
				m.Sections = append(m.Sections, Section{
					Kind:   SectionDtb,
					Offset: ks.Offset + off,
					Size:   size,
				})
			}
		}
	}

	return m, nil
}

// parseBootModern decodes the v3/v4 layout: kernel and ramdisk sizes
// only, fixed 4096-byte pages, and in v4 a boot signature section.
func parseBootModern(img []byte, version uint32) (*Manifest, error) {
	r := blob.NewReader(img)
	fail := func(err error) (*Manifest, error) {
		return nil, &FormatError{Offset: r.Offset(), Reason: "truncated header: " + err.Error()}
	}

	if err := r.Skip(bootMagicSize); err != nil {
		return fail(err)
	}
	kernelSize, err := r.ReadU32(binary.LittleEndian)
	if err != nil {
		return fail(err)
	}
	ramdiskSize, err := r.ReadU32(binary.LittleEndian)
	if err != nil {
		return fail(err)
	}
	osVersion, err := r.ReadU32(binary.LittleEndian)
	if err != nil {
		return fail(err)
	}
	if err = r.Skip(4 + 16 + 4); err != nil { // header_size, reserved, header_version
		return fail(err)
	}
	cmdline, err := r.ReadString(v3ArgsSize)
	if err != nil {
		return fail(err)
	}
	var signatureSize uint32
	if version >= 4 {
		if signatureSize, err = r.ReadU32(binary.LittleEndian); err != nil {
			return fail(err)
		}
	}

	m := &Manifest{
		Version:   version,
		PageSize:  v3PageSize,
		Cmdline:   cmdline,
		OSVersion: osVersion,
	}

	w := sectionWalker{page: v3PageSize, off: v3PageSize, imgLen: len(img)}
	if err := w.add(m, SectionKernel, int(kernelSize), 0); err != nil {
		return nil, err
	}
	if err := w.add(m, SectionRamdisk, int(ramdiskSize), 0); err != nil {
		return nil, err
	}
	if err := w.add(m, SectionSignature, int(signatureSize), 0); err != nil {
		return nil, err
	}
	return m, nil
}

// parseVendorBoot decodes the vendor_boot v3/v4 layout. The vendor
// header is its own format: it keeps an explicit page size and carries
// the vendor ramdisk and the dtb; v4 adds a ramdisk table and a
// bootconfig section.
func parseVendorBoot(img []byte) (*Manifest, error) {
	r := blob.NewReader(img)
	fail := func(err error) (*Manifest, error) {
		return nil, &FormatError{Offset: r.Offset(), Reason: "truncated header: " + err.Error()}
	}

	if err := r.Skip(bootMagicSize); err != nil {
		return fail(err)
	}
	version, err := r.ReadU32(binary.LittleEndian)
	if err != nil {
		return fail(err)
	}
	if version != 3 && version != 4 {
		return nil, &FormatError{
			Offset: bootMagicSize,
			Reason: "unsupported vendor_boot header version",
			Want:   "3 or 4",
			Got:    fmt.Sprintf("%d", version),
		}
	}
	pageSize, err := r.ReadU32(binary.LittleEndian)
	if err != nil {
		return fail(err)
	}
	if err = r.Skip(4); err != nil { // kernel_addr
		return fail(err)
	}
	ramdiskAddr, err := r.ReadU32(binary.LittleEndian)
	if err != nil {
		return fail(err)
	}
	ramdiskSize, err := r.ReadU32(binary.LittleEndian)
	if err != nil {
		return fail(err)
	}
	cmdline, err := r.ReadString(vendorBootArgsSize)
	if err != nil {
		return fail(err)
	}
	if err = r.Skip(4); err != nil { // tags_addr
		return fail(err)
	}
	board, err := r.ReadString(vendorBootNameSize)
	if err != nil {
		return fail(err)
	}
	headerSize, err := r.ReadU32(binary.LittleEndian)
	if err != nil {
		return fail(err)
	}
	dtbSize, err := r.ReadU32(binary.LittleEndian)
	if err != nil {
		return fail(err)
	}
	dtbAddr, err := r.ReadU64(binary.LittleEndian)
	if err != nil {
		return fail(err)
	}
	var tableSize, bootconfigSize uint32
	if version >= 4 {
		if tableSize, err = r.ReadU32(binary.LittleEndian); err != nil {
			return fail(err)
		}
		if err = r.Skip(4 + 4); err != nil { // table_entry_num, table_entry_size
			return fail(err)
		}
		if bootconfigSize, err = r.ReadU32(binary.LittleEndian); err != nil {
			return fail(err)
		}
	}

	if pageSize == 0 || pageSize&(pageSize-1) != 0 {
		return nil, &FormatError{
			Offset: 12,
			Reason: "implausible page size",
			Want:   "power of two",
			Got:    fmt.Sprintf("%d", pageSize),
		}
	}
	if headerSize == 0 || int(headerSize) > len(img) {
		return nil, &FormatError{
			Offset: 2096,
			Reason: "implausible header size",
			Got:    fmt.Sprintf("%d", headerSize),
		}
	}

	m := &Manifest{
		VendorBoot: true,
		Version:    version,
		PageSize:   pageSize,
		Board:      board,
		Cmdline:    cmdline,
	}

	w := sectionWalker{
		page:   int(pageSize),
		off:    alignUp(int(headerSize), int(pageSize)),
		imgLen: len(img),
	}
	if err := w.add(m, SectionRamdisk, int(ramdiskSize), uint64(ramdiskAddr)); err != nil {
		return nil, err
	}
	if err := w.add(m, SectionDtb, int(dtbSize), dtbAddr); err != nil {
		return nil, err
	}
	if err := w.add(m, SectionRamdiskTable, int(tableSize), 0); err != nil {
		return nil, err
	}
	if err := w.add(m, SectionBootconfig, int(bootconfigSize), 0); err != nil {
		return nil, err
	}
	return m, nil
}

// sectionWalker lays sections out back to back, rounding each section's
// end up to the page boundary.
type sectionWalker struct {
	page   int
	off    int
	imgLen int
}

func (w *sectionWalker) add(m *Manifest, kind SectionKind, size int, addr uint64) error {
	if size == 0 {
		return nil
	}
	if size < 0 || w.off+size > w.imgLen {
		return &FormatError{
			Offset: w.off,
			Reason: fmt.Sprintf("%s section extends past end of image", kind),
			Want:   fmt.Sprintf("<= %d bytes", w.imgLen-w.off),
			Got:    fmt.Sprintf("%d bytes", size),
		}
	}
	m.Sections = append(m.Sections, Section{Kind: kind, Offset: w.off, Size: size, LoadAddr: addr})
	w.off += alignUp(size, w.page)
	return nil
}

func alignUp(n, page int) int {
	return (n + page - 1) / page * page
}

// findAppendedFdt scans a kernel payload for a flattened device tree
// appended after the kernel proper, returning its offset and declared
// total size. Only a blob whose declared size fits the remaining bytes
// is accepted.
func findAppendedFdt(kernel []byte) (off, size int, found bool) {
	for i := 0; i+8 <= len(kernel); i += 4 {
		if binary.BigEndian.Uint32(kernel[i:]) != fdtMagic {
			continue
		}
		total := int(binary.BigEndian.Uint32(kernel[i+4:]))
		if total >= 40 && i+total <= len(kernel) {
			return i, total, true
		}
	}
	return 0, 0, false
}
