package compression

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"errors"
	"strings"
	"testing"

	dbzip2 "github.com/dsnet/compress/bzip2"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/ulikunitz/xz/lzma"
)

// testPayload is compressible so every codec produces a real stream.
var testPayload = []byte(strings.Repeat("ro.product.device=hero2lte\nro.product.manufacturer=samsung\n", 200))

func gzipCompress(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func lz4FrameCompress(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := lz4.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// lz4LegacyCompress builds a legacy block-chain stream by hand: magic
// word, then size-prefixed raw blocks. With lg set, the decompressed
// total is appended the way LG bootloader images do.
func lz4LegacyCompress(t *testing.T, data []byte, lg bool) []byte {
	t.Helper()
	var buf bytes.Buffer
	buf.Write(magicLZ4Legacy)

	block := make([]byte, lz4.CompressBlockBound(lz4LegacyBlockMax))
	for off := 0; off < len(data); off += lz4LegacyBlockMax {
		end := off + lz4LegacyBlockMax
		if end > len(data) {
			end = len(data)
		}
		n, err := lz4.CompressBlock(data[off:end], block, nil)
		if err != nil {
			t.Fatal(err)
		}
		if n == 0 {
			t.Fatal("test payload not compressible")
		}
		var size [4]byte
		binary.LittleEndian.PutUint32(size[:], uint32(n))
		buf.Write(size[:])
		buf.Write(block[:n])
	}
	if lg {
		var total [4]byte
		binary.LittleEndian.PutUint32(total[:], uint32(len(data)))
		buf.Write(total[:])
	}
	return buf.Bytes()
}

func lzmaCompress(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw, err := lzma.NewWriter(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := zw.Write(data); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func bzip2Compress(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw, err := dbzip2.NewWriter(&buf, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := zw.Write(data); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func zstdCompress(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw, err := zstd.NewWriter(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := zw.Write(data); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestDecompressRoundTrip(t *testing.T) {
	tests := []struct {
		name     string
		compress func(*testing.T, []byte) []byte
		want     Envelope
	}{
		{"gzip", gzipCompress, EnvelopeGzip},
		{"lz4 frame", lz4FrameCompress, EnvelopeLZ4},
		{"lz4 legacy", func(t *testing.T, d []byte) []byte { return lz4LegacyCompress(t, d, false) }, EnvelopeLZ4Legacy},
		{"lz4 lg", func(t *testing.T, d []byte) []byte { return lz4LegacyCompress(t, d, true) }, EnvelopeLZ4LG},
		{"lzma", lzmaCompress, EnvelopeLZMA},
		{"bzip2", bzip2Compress, EnvelopeBzip2},
		{"zstd", zstdCompress, EnvelopeZstd},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			compressed := tt.compress(t, testPayload)

			out, env, err := Decompress(compressed)
			if err != nil {
				t.Fatalf("Decompress() error: %v", err)
			}
			if env != tt.want {
				t.Errorf("envelope = %s, want %s", env, tt.want)
			}
			if !bytes.Equal(out, testPayload) {
				t.Errorf("round trip mismatch: got %d bytes, want %d", len(out), len(testPayload))
			}
		})

		t.Run(tt.name+" with page padding", func(t *testing.T) {
			compressed := tt.compress(t, testPayload)
			padded := append(compressed, make([]byte, 4096-len(compressed)%4096)...)

			out, _, err := Decompress(padded)
			if err != nil {
				t.Fatalf("Decompress() of padded stream: %v", err)
			}
			if !bytes.Equal(out, testPayload) {
				t.Error("padded round trip mismatch")
			}
		})
	}
}

func TestDecompressUncompressed(t *testing.T) {
	raw := []byte("070701 not a compressed stream at all")
	out, env, err := Decompress(raw)
	if err != nil {
		t.Fatal(err)
	}
	if env != EnvelopeNone {
		t.Errorf("envelope = %s, want none", env)
	}
	if !bytes.Equal(out, raw) {
		t.Error("uncompressed payload was modified")
	}
}

func TestDecompressCorrupt(t *testing.T) {
	compressed := gzipCompress(t, testPayload)
	corrupt := compressed[:len(compressed)/2]

	_, env, err := Decompress(corrupt)
	if err == nil {
		t.Fatal("Decompress accepted a truncated gzip stream")
	}
	var de *DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("error type = %T, want *DecodeError", err)
	}
	if env != EnvelopeGzip {
		t.Errorf("envelope = %s, want gzip", env)
	}
}

func TestDetect(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want Envelope
	}{
		{"gzip", []byte{0x1f, 0x8b, 0x08, 0x00}, EnvelopeGzip},
		{"lz4 legacy", []byte{0x02, 0x21, 0x4c, 0x18, 0x00}, EnvelopeLZ4Legacy},
		{"lz4 frame", []byte{0x04, 0x22, 0x4d, 0x18, 0x00}, EnvelopeLZ4},
		{"bzip2", []byte("BZh91AY"), EnvelopeBzip2},
		{"zstd", []byte{0x28, 0xb5, 0x2f, 0xfd, 0x00}, EnvelopeZstd},
		{"cpio", []byte("070701AABBCC"), EnvelopeNone},
		{"empty", nil, EnvelopeNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Detect(tt.data); got != tt.want {
				t.Errorf("Detect() = %s, want %s", got, tt.want)
			}
		})
	}
}
