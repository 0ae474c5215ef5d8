package compression

import (
	"bytes"
	"compress/bzip2"
	"compress/gzip"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/ulikunitz/xz/lzma"
)

// Envelope identifies the compression wrapping a payload.
type Envelope int

const (
	EnvelopeNone Envelope = iota
	EnvelopeGzip
	EnvelopeLZ4Legacy
	EnvelopeLZ4LG
	EnvelopeLZ4
	EnvelopeLZMA
	EnvelopeBzip2
	EnvelopeZstd
)

func (e Envelope) String() string {
	switch e {
	case EnvelopeNone:
		return "none"
	case EnvelopeGzip:
		return "gzip"
	case EnvelopeLZ4Legacy:
		return "lz4-legacy"
	case EnvelopeLZ4LG:
		return "lz4-lg"
	case EnvelopeLZ4:
		return "lz4"
	case EnvelopeLZMA:
		return "lzma"
	case EnvelopeBzip2:
		return "bzip2"
	case EnvelopeZstd:
		return "zstd"
	default:
		return fmt.Sprintf("unknown(%d)", int(e))
	}
}

// DecodeError reports a truncated or corrupt compressed stream.
type DecodeError struct {
	Envelope Envelope
	Err      error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s decode failed: %v", e.Envelope, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Compression magics. Detection matches these prefixes only.
var (
	magicGzip      = []byte{0x1f, 0x8b}
	magicLZ4Legacy = []byte{0x02, 0x21, 0x4c, 0x18}
	magicLZ4FrameA = []byte{0x03, 0x21, 0x4c, 0x18}
	magicLZ4FrameB = []byte{0x04, 0x22, 0x4d, 0x18}
	magicBzip2     = []byte("BZh")
	magicZstd      = []byte{0x28, 0xb5, 0x2f, 0xfd}
	magicLZMA      = []byte{0x5d, 0x00, 0x00}
)

const lz4LegacyBlockMax = 8 << 20 // fixed block size of the legacy format

// Detect classifies the payload by its magic prefix. The LG variant of
// the legacy lz4 format shares the legacy magic and is only told apart
// during decoding, so Detect reports it as EnvelopeLZ4Legacy.
func Detect(data []byte) Envelope {
	switch {
	case bytes.HasPrefix(data, magicGzip):
		return EnvelopeGzip
	case bytes.HasPrefix(data, magicLZ4Legacy):
		return EnvelopeLZ4Legacy
	case bytes.HasPrefix(data, magicLZ4FrameA), bytes.HasPrefix(data, magicLZ4FrameB):
		return EnvelopeLZ4
	case bytes.HasPrefix(data, magicBzip2):
		return EnvelopeBzip2
	case bytes.HasPrefix(data, magicZstd):
		return EnvelopeZstd
	case len(data) >= 13 && bytes.HasPrefix(data, magicLZMA) && (data[12] == 0x00 || data[12] == 0xff):
		// The lzma_alone header has no magic proper; match the common
		// properties byte plus the size-field sentinel like magiskboot.
		return EnvelopeLZMA
	default:
		return EnvelopeNone
	}
}

// Decompress detects the payload's envelope and fully decodes it. A
// payload with no recognized magic is returned as-is with EnvelopeNone.
// Corrupt or truncated streams fail with *DecodeError.
func Decompress(data []byte) ([]byte, Envelope, error) {
	env := Detect(data)
	var (
		out []byte
		err error
	)
	switch env {
	case EnvelopeNone:
		return data, EnvelopeNone, nil
	case EnvelopeGzip:
		out, err = decodePadded(data, decodeGzip)
	case EnvelopeLZ4Legacy:
		var lg bool
		out, lg, err = decodeLZ4Legacy(data)
		if lg {
			env = EnvelopeLZ4LG
		}
	case EnvelopeLZ4:
		out, err = decodePadded(data, decodeLZ4Frame)
	case EnvelopeLZMA:
		out, err = decodePadded(data, decodeLZMA)
	case EnvelopeBzip2:
		out, err = decodePadded(data, decodeBzip2)
	case EnvelopeZstd:
		out, err = decodePadded(data, decodeZstd)
	}
	if err != nil {
		return nil, env, &DecodeError{Envelope: env, Err: err}
	}
	return out, env, nil
}

// decodePadded runs a decoder and, when it fails on input that carries
// trailing NUL page padding, retries with the padding stripped. Streams
// whose own final bytes happen to be NUL are unaffected since the
// untrimmed attempt runs first.
func decodePadded(data []byte, decode func([]byte) ([]byte, error)) ([]byte, error) {
	out, err := decode(data)
	if err == nil {
		return out, nil
	}
	trimmed := bytes.TrimRight(data, "\x00")
	if len(trimmed) == len(data) {
		return nil, err
	}
	out, retryErr := decode(trimmed)
	if retryErr != nil {
		return nil, err
	}
	return out, nil
}

func decodeGzip(data []byte) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	// A ramdisk is a single member; stop at its logical end instead of
	// interpreting page padding as a second stream.
	zr.Multistream(false)
	return io.ReadAll(zr)
}

func decodeLZ4Frame(data []byte) ([]byte, error) {
	return io.ReadAll(lz4.NewReader(bytes.NewReader(data)))
}

func decodeLZMA(data []byte) ([]byte, error) {
	r, err := lzma.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return io.ReadAll(r)
}

func decodeBzip2(data []byte) ([]byte, error) {
	return io.ReadAll(bzip2.NewReader(bytes.NewReader(data)))
}

func decodeZstd(data []byte) ([]byte, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	return dec.DecodeAll(data, nil)
}

// decodeLZ4Legacy decodes the kernel's legacy lz4 format: a magic word
// followed by raw blocks, each prefixed with its compressed size. The
// LG bootloader variant appends the total decompressed size as a final
// word; its presence is reported via the lg return.
func decodeLZ4Legacy(data []byte) (out []byte, lg bool, err error) {
	le := binary.LittleEndian
	legacyMagic := le.Uint32(magicLZ4Legacy)

	var buf bytes.Buffer
	block := make([]byte, lz4LegacyBlockMax)
	pos := 4 // past the magic
	for pos+4 <= len(data) {
		size := le.Uint32(data[pos:])
		pos += 4
		if size == legacyMagic {
			// Concatenated legacy frame; keep going.
			continue
		}
		if size == 0 {
			break
		}
		if pos+int(size) > len(data) {
			if int(size) == buf.Len() && isZero(data[pos:]) {
				// Trailing decompressed-size word of the LG variant,
				// possibly followed by page padding.
				return buf.Bytes(), true, nil
			}
			return nil, false, fmt.Errorf("block of %d bytes at offset %d exceeds input", size, pos-4)
		}
		n, berr := lz4.UncompressBlock(data[pos:pos+int(size)], block)
		if berr != nil {
			return nil, false, fmt.Errorf("block at offset %d: %w", pos-4, berr)
		}
		buf.Write(block[:n])
		pos += int(size)
	}
	if buf.Len() == 0 {
		return nil, false, fmt.Errorf("no blocks decoded")
	}
	return buf.Bytes(), false, nil
}

func isZero(b []byte) bool {
	for _, c := range b {
		if c != 0 {
			return false
		}
	}
	return true
}
