package cpio

import (
	"bytes"
	"fmt"
	"strings"
)

const (
	magicNewc    = "070701"
	magicNewcCRC = "070702"
	headerSize   = 110
	trailerName  = "TRAILER!!!"

	// Mode bits of the entry type, per the cpio spec.
	modeTypeMask = 0170000
	modeDir      = 0040000
	modeRegular  = 0100000
	modeSymlink  = 0120000

	// Paths longer than this are treated as corruption rather than
	// truncation; no Android ramdisk carries one.
	maxNameSize = 4096
)

// Kind classifies an archive entry.
type Kind int

const (
	KindRegular Kind = iota
	KindDirectory
	KindSymlink
	KindOther
)

func (k Kind) String() string {
	switch k {
	case KindRegular:
		return "file"
	case KindDirectory:
		return "directory"
	case KindSymlink:
		return "symlink"
	default:
		return "other"
	}
}

// Entry is one archive member. Data holds file content for regular
// files and the link target for symlinks.
type Entry struct {
	Path string
	Kind Kind
	Mode uint32 // full mode word including type bits
	UID  uint32
	GID  uint32
	Data []byte
}

// Archive is the result of unpacking: entries in archive order, plus a
// flag for input that ended before the trailer record.
type Archive struct {
	Entries   []Entry
	Truncated bool
}

// File returns the content of the regular file at the given path.
func (a *Archive) File(path string) ([]byte, bool) {
	for i := range a.Entries {
		e := &a.Entries[i]
		if e.Path == path && e.Kind == KindRegular {
			return e.Data, true
		}
	}
	return nil, false
}

// DecodeError reports a structurally invalid archive record.
type DecodeError struct {
	Offset int
	Reason string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("cpio record at offset %d: %s", e.Offset, e.Reason)
}

// Unpack parses a newc archive. Input ending before the trailer yields
// the entries parsed so far with Truncated set; invalid headers fail
// with *DecodeError.
func Unpack(data []byte) (*Archive, error) {
	a := &Archive{}
	pos := 0
	for {
		// An archive that ends (or degrades to NUL padding) without a
		// trailer record was cut short. The trailer path returns from
		// inside the loop, so reaching end of input here is always the
		// soft-truncation case.
		if isZero(data[pos:]) || len(data)-pos < headerSize {
			a.Truncated = true
			return a, nil
		}

		hdrStart := pos
		magic := string(data[pos : pos+6])
		if magic != magicNewc && magic != magicNewcCRC {
			return nil, &DecodeError{Offset: hdrStart, Reason: fmt.Sprintf("bad magic %q", magic)}
		}

		fields := make([]uint32, 13)
		for i := range fields {
			v, err := parseHex(data[pos+6+i*8 : pos+6+(i+1)*8])
			if err != nil {
				return nil, &DecodeError{Offset: hdrStart, Reason: err.Error()}
			}
			fields[i] = v
		}
		mode := fields[1]
		uid := fields[2]
		gid := fields[3]
		fileSize := int(fields[6])
		nameSize := int(fields[11])
		pos += headerSize

		if nameSize == 0 || nameSize > maxNameSize {
			return nil, &DecodeError{Offset: hdrStart, Reason: fmt.Sprintf("implausible name size %d", nameSize)}
		}
		if pos+nameSize > len(data) {
			a.Truncated = true
			return a, nil
		}
		name := strings.TrimRight(string(data[pos:pos+nameSize]), "\x00")
		pos = align4(hdrStart + headerSize + nameSize)

		if name == trailerName {
			return a, nil
		}

		if pos+fileSize > len(data) {
			// Cut off mid-entry: the entries before this one are intact.
			a.Truncated = true
			return a, nil
		}
		entry := Entry{
			Path: strings.TrimPrefix(name, "./"),
			Kind: kindOf(mode),
			Mode: mode,
			UID:  uid,
			GID:  gid,
		}
		if fileSize > 0 {
			entry.Data = data[pos : pos+fileSize]
		}
		a.Entries = append(a.Entries, entry)
		pos = align4(pos + fileSize)

		if pos > len(data) {
			a.Truncated = true
			return a, nil
		}
	}
}

// Pack writes entries as a newc archive with a trailer record. It is
// the encoder counterpart of Unpack, used to rebuild ramdisks and as
// the round-trip oracle in tests.
func Pack(entries []Entry) []byte {
	var buf bytes.Buffer
	ino := uint32(300000)
	for _, e := range entries {
		ino++
		writeRecord(&buf, &e, ino)
	}
	trailer := Entry{Path: trailerName, Mode: 0}
	writeRecord(&buf, &trailer, 0)
	return buf.Bytes()
}

func writeRecord(buf *bytes.Buffer, e *Entry, ino uint32) {
	name := e.Path
	nameSize := len(name) + 1
	nlink := uint32(1)
	if e.Kind == KindDirectory {
		nlink = 2
	}
	fields := []uint32{
		ino,
		e.Mode,
		e.UID,
		e.GID,
		nlink,
		0, // mtime
		uint32(len(e.Data)),
		0, 0, 0, 0, // dev/rdev major+minor
		uint32(nameSize),
		0, // check
	}
	buf.WriteString(magicNewc)
	for _, f := range fields {
		fmt.Fprintf(buf, "%08X", f)
	}
	buf.WriteString(name)
	buf.WriteByte(0)
	pad(buf, headerSize+nameSize)
	buf.Write(e.Data)
	pad(buf, len(e.Data))
}

func pad(buf *bytes.Buffer, n int) {
	for i := n; i%4 != 0; i++ {
		buf.WriteByte(0)
	}
}

func kindOf(mode uint32) Kind {
	switch mode & modeTypeMask {
	case modeRegular:
		return KindRegular
	case modeDir:
		return KindDirectory
	case modeSymlink:
		return KindSymlink
	default:
		return KindOther
	}
}

func parseHex(b []byte) (uint32, error) {
	var out uint32
	for _, c := range b {
		var v byte
		switch {
		case c >= '0' && c <= '9':
			v = c - '0'
		case c >= 'a' && c <= 'f':
			v = c - 'a' + 10
		case c >= 'A' && c <= 'F':
			v = c - 'A' + 10
		default:
			return 0, fmt.Errorf("bad hex digit %q in header field", c)
		}
		out = out<<4 | uint32(v)
	}
	return out, nil
}

func align4(n int) int { return (n + 3) &^ 3 }

func isZero(b []byte) bool {
	for _, c := range b {
		if c != 0 {
			return false
		}
	}
	return true
}
