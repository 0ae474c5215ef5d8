// Package compression detects and reverses the compression envelopes
// used for boot image payloads.
//
// Detection inspects the payload's magic prefix only; header size
// fields are never trusted. Supported envelopes: gzip, lz4 (frame and
// the kernel's legacy block chain, including the LG variant with a
// trailing size word), lzma, bzip2 and zstd. A payload with no known
// magic is returned unchanged and tagged EnvelopeNone, since containers
// may legitimately carry an uncompressed ramdisk.
//
// Boot image sections are NUL-padded to page boundaries, so every
// decoder tolerates trailing padding after the logical end of the
// compressed stream.
package compression
