package bootimg

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
)

const testPage = 2048

func putString(dst []byte, s string) {
	copy(dst, s)
}

// buildLegacy assembles a synthetic v0-v2 boot image with the given
// section payloads laid out back to back on page boundaries.
func buildLegacy(version uint32, pageSize uint32, kernel, ramdisk, second, dtbo, dtb []byte) []byte {
	le := binary.LittleEndian
	hdr := make([]byte, pageSize)
	putString(hdr[0:8], BootMagic)
	le.PutUint32(hdr[8:], uint32(len(kernel)))
	le.PutUint32(hdr[12:], 0x10008000) // kernel_addr
	le.PutUint32(hdr[16:], uint32(len(ramdisk)))
	le.PutUint32(hdr[20:], 0x11000000) // ramdisk_addr
	le.PutUint32(hdr[24:], uint32(len(second)))
	le.PutUint32(hdr[28:], 0x10f00000) // second_addr
	le.PutUint32(hdr[32:], 0x10000100) // tags_addr
	le.PutUint32(hdr[36:], pageSize)
	le.PutUint32(hdr[40:], version)
	putString(hdr[48:64], "testboard")
	putString(hdr[64:576], "console=ttyMSM0")
	if version >= 1 {
		le.PutUint32(hdr[1632:], uint32(len(dtbo)))
	}
	if version >= 2 {
		le.PutUint32(hdr[1648:], uint32(len(dtb)))
	}

	img := hdr
	for _, sec := range [][]byte{kernel, ramdisk, second, dtbo, dtb} {
		if len(sec) == 0 {
			continue
		}
		padded := make([]byte, alignUp(len(sec), int(pageSize)))
		copy(padded, sec)
		img = append(img, padded...)
	}
	return img
}

func buildModern(version uint32, kernel, ramdisk, signature []byte) []byte {
	le := binary.LittleEndian
	hdr := make([]byte, v3PageSize)
	putString(hdr[0:8], BootMagic)
	le.PutUint32(hdr[8:], uint32(len(kernel)))
	le.PutUint32(hdr[12:], uint32(len(ramdisk)))
	le.PutUint32(hdr[40:], version)
	putString(hdr[44:], "console=ttyS0")
	if version >= 4 {
		le.PutUint32(hdr[44+v3ArgsSize:], uint32(len(signature)))
	}

	img := hdr
	for _, sec := range [][]byte{kernel, ramdisk, signature} {
		if len(sec) == 0 {
			continue
		}
		padded := make([]byte, alignUp(len(sec), v3PageSize))
		copy(padded, sec)
		img = append(img, padded...)
	}
	return img
}

func buildVendor(version uint32, pageSize uint32, ramdisk, dtb, table, bootconfig []byte) []byte {
	le := binary.LittleEndian
	headerSize := uint32(2112)
	if version >= 4 {
		headerSize = 2128
	}
	hdr := make([]byte, alignUp(int(headerSize), int(pageSize)))
	putString(hdr[0:8], VendorBootMagic)
	le.PutUint32(hdr[8:], version)
	le.PutUint32(hdr[12:], pageSize)
	le.PutUint32(hdr[20:], 0x11000000) // ramdisk_addr
	le.PutUint32(hdr[24:], uint32(len(ramdisk)))
	putString(hdr[28:], "androidboot.hardware=qcom")
	putString(hdr[2080:2096], "vendorboard")
	le.PutUint32(hdr[2096:], headerSize)
	le.PutUint32(hdr[2100:], uint32(len(dtb)))
	if version >= 4 {
		le.PutUint32(hdr[2112:], uint32(len(table)))
		le.PutUint32(hdr[2124:], uint32(len(bootconfig)))
	}

	img := hdr
	for _, sec := range [][]byte{ramdisk, dtb, table, bootconfig} {
		if len(sec) == 0 {
			continue
		}
		padded := make([]byte, alignUp(len(sec), int(pageSize)))
		copy(padded, sec)
		img = append(img, padded...)
	}
	return img
}

func checkSection(t *testing.T, m *Manifest, img []byte, kind SectionKind, want []byte) {
	t.Helper()
	got := m.SectionBytes(img, kind)
	if !bytes.Equal(got, want) {
		t.Errorf("%s section = %d bytes, want %d bytes", kind, len(got), len(want))
	}
}

func TestParseLegacyVersions(t *testing.T) {
	kernel := bytes.Repeat([]byte{0xAA}, 5000)
	ramdisk := bytes.Repeat([]byte{0xBB}, 3000)
	second := bytes.Repeat([]byte{0xCC}, 100)
	dtbo := bytes.Repeat([]byte{0xDD}, 700)
	dtb := bytes.Repeat([]byte{0xEE}, 900)

	tests := []struct {
		name    string
		version uint32
		img     []byte
		kinds   []SectionKind
	}{
		{
			name:    "v0 kernel+ramdisk+second",
			version: 0,
			img:     buildLegacy(0, testPage, kernel, ramdisk, second, nil, nil),
			kinds:   []SectionKind{SectionKernel, SectionRamdisk, SectionSecond},
		},
		{
			name:    "v1 with recovery dtbo",
			version: 1,
			img:     buildLegacy(1, testPage, kernel, ramdisk, nil, dtbo, nil),
			kinds:   []SectionKind{SectionKernel, SectionRamdisk, SectionRecoveryDtbo},
		},
		{
			name:    "v2 with dtb",
			version: 2,
			img:     buildLegacy(2, testPage, kernel, ramdisk, nil, dtbo, dtb),
			kinds:   []SectionKind{SectionKernel, SectionRamdisk, SectionRecoveryDtbo, SectionDtb},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := Parse(tt.img)
			if err != nil {
				t.Fatalf("Parse() error: %v", err)
			}
			if m.Version != tt.version {
				t.Errorf("version = %d, want %d", m.Version, tt.version)
			}
			if m.PageSize != testPage {
				t.Errorf("page size = %d, want %d", m.PageSize, testPage)
			}
			if m.Board != "testboard" {
				t.Errorf("board = %q", m.Board)
			}
			if len(m.Sections) != len(tt.kinds) {
				t.Fatalf("sections = %v, want kinds %v", m.Sections, tt.kinds)
			}
			for i, kind := range tt.kinds {
				if m.Sections[i].Kind != kind {
					t.Errorf("section %d kind = %s, want %s", i, m.Sections[i].Kind, kind)
				}
			}
			checkSection(t, m, tt.img, SectionKernel, kernel)
			checkSection(t, m, tt.img, SectionRamdisk, ramdisk)
		})
	}
}

func TestParseSectionGeometry(t *testing.T) {
	img := buildLegacy(2, testPage,
		bytes.Repeat([]byte{1}, 5000),
		bytes.Repeat([]byte{2}, 3000),
		nil,
		bytes.Repeat([]byte{3}, 700),
		bytes.Repeat([]byte{4}, 900))
	m, err := Parse(img)
	if err != nil {
		t.Fatal(err)
	}
	for _, s := range m.Sections {
		if s.Offset%testPage != 0 {
			t.Errorf("%s offset %d not page aligned", s.Kind, s.Offset)
		}
		if s.Offset+s.Size > len(img) {
			t.Errorf("%s section [%d,%d) outside image of %d bytes",
				s.Kind, s.Offset, s.Offset+s.Size, len(img))
		}
	}
}

func TestParseModernVersions(t *testing.T) {
	kernel := bytes.Repeat([]byte{0xAA}, 9000)
	ramdisk := bytes.Repeat([]byte{0xBB}, 5000)
	signature := bytes.Repeat([]byte{0xFF}, 512)

	t.Run("v3", func(t *testing.T) {
		img := buildModern(3, kernel, ramdisk, nil)
		m, err := Parse(img)
		if err != nil {
			t.Fatal(err)
		}
		if m.PageSize != v3PageSize {
			t.Errorf("page size = %d, want %d", m.PageSize, v3PageSize)
		}
		if m.Cmdline != "console=ttyS0" {
			t.Errorf("cmdline = %q", m.Cmdline)
		}
		checkSection(t, m, img, SectionKernel, kernel)
		checkSection(t, m, img, SectionRamdisk, ramdisk)
		if _, ok := m.Section(SectionSignature); ok {
			t.Error("v3 image reported a signature section")
		}
	})

	t.Run("v4 signature", func(t *testing.T) {
		img := buildModern(4, kernel, ramdisk, signature)
		m, err := Parse(img)
		if err != nil {
			t.Fatal(err)
		}
		checkSection(t, m, img, SectionSignature, signature)
		sig, _ := m.Section(SectionSignature)
		kern, _ := m.Section(SectionKernel)
		ram, _ := m.Section(SectionRamdisk)
		if sig.Offset <= kern.Offset || sig.Offset <= ram.Offset {
			t.Error("signature section not appended after the others")
		}
	})
}

func TestParseVendorBoot(t *testing.T) {
	ramdisk := bytes.Repeat([]byte{0xBB}, 4000)
	dtb := bytes.Repeat([]byte{0xEE}, 2500)
	table := bytes.Repeat([]byte{0x11}, 216)
	bootconfig := []byte("androidboot.hardware=exynos\n")

	t.Run("v3", func(t *testing.T) {
		img := buildVendor(3, testPage, ramdisk, dtb, nil, nil)
		m, err := Parse(img)
		if err != nil {
			t.Fatal(err)
		}
		if !m.VendorBoot {
			t.Error("VendorBoot = false")
		}
		if m.Board != "vendorboard" {
			t.Errorf("board = %q", m.Board)
		}
		checkSection(t, m, img, SectionRamdisk, ramdisk)
		checkSection(t, m, img, SectionDtb, dtb)
	})

	t.Run("v4", func(t *testing.T) {
		img := buildVendor(4, testPage, ramdisk, dtb, table, bootconfig)
		m, err := Parse(img)
		if err != nil {
			t.Fatal(err)
		}
		checkSection(t, m, img, SectionRamdiskTable, table)
		checkSection(t, m, img, SectionBootconfig, bootconfig)
	})

	t.Run("unsupported version", func(t *testing.T) {
		img := buildVendor(3, testPage, ramdisk, dtb, nil, nil)
		binary.LittleEndian.PutUint32(img[8:], 9)
		if _, err := Parse(img); err == nil {
			t.Fatal("Parse accepted vendor_boot v9")
		}
	})
}

func TestParseUnrecognizedMagic(t *testing.T) {
	img := make([]byte, 4096)
	putString(img, "NOTBOOT!")
	m, err := Parse(img)
	if m != nil {
		t.Error("manifest returned for unrecognized magic")
	}
	var fe *FormatError
	if !errors.As(err, &fe) {
		t.Fatalf("error type = %T, want *FormatError", err)
	}
	if fe.Reason != "unrecognized magic" {
		t.Errorf("reason = %q", fe.Reason)
	}
}

func TestParseUnsupportedVersion(t *testing.T) {
	img := buildLegacy(0, testPage, []byte{1}, []byte{2}, nil, nil, nil)
	binary.LittleEndian.PutUint32(img[40:], 7)
	_, err := Parse(img)
	var fe *FormatError
	if !errors.As(err, &fe) {
		t.Fatalf("error = %v, want *FormatError", err)
	}
	if fe.Reason != "unsupported header version" {
		t.Errorf("reason = %q", fe.Reason)
	}
}

func TestParseTruncatedImage(t *testing.T) {
	img := buildLegacy(0, testPage, bytes.Repeat([]byte{1}, 5000), bytes.Repeat([]byte{2}, 3000), nil, nil, nil)
	truncated := img[:len(img)-2500] // cut into the ramdisk section
	if _, err := Parse(truncated); err == nil {
		t.Fatal("Parse accepted an image with sections past the end")
	}
}

func TestParseAppendedFdt(t *testing.T) {
	// Kernel payload with an FDT blob appended at a 4-byte boundary.
	fdt := make([]byte, 64)
	binary.BigEndian.PutUint32(fdt[0:], fdtMagic)
	binary.BigEndian.PutUint32(fdt[4:], uint32(len(fdt)))
	kernel := append(bytes.Repeat([]byte{0x90}, 1024), fdt...)

	img := buildLegacy(0, testPage, kernel, []byte{1, 2, 3}, nil, nil, nil)
	m, err := Parse(img)
	if err != nil {
		t.Fatal(err)
	}
	sec, ok := m.Section(SectionDtb)
	if !ok {
		t.Fatal("appended dtb not exposed as a section")
	}
	if sec.Size != len(fdt) {
		t.Errorf("dtb size = %d, want %d", sec.Size, len(fdt))
	}
	if !bytes.Equal(m.SectionBytes(img, SectionDtb), fdt) {
		t.Error("dtb section bytes do not match the appended blob")
	}
}
