// Package blob provides a bounds-checked cursor over an in-memory byte
// buffer with typed field extraction.
//
// Every parser in this tool (boot image headers, cpio archives, device
// tree blobs) reads fixed-layout binary structures out of a single
// buffer that was read from disk once. Reader wraps that buffer with a
// monotonically advancing position and guarantees that no read ever
// touches memory outside the buffer: a read that would run past the end
// fails with *BoundsError and leaves the cursor where it was.
//
// Reads that return byte slices alias the underlying buffer rather than
// copying. The buffer is treated as immutable for the lifetime of the
// Reader, so aliased slices are safe to share across goroutines.
package blob
