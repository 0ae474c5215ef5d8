// Package cpio reads and writes the newc cpio archive format used by
// Android ramdisks.
//
// A newc archive is a sequence of (header, name, data) records with
// 110-byte ASCII-hex headers, name and data each padded to a 4-byte
// boundary, terminated by a TRAILER!!! record. Unpack parses an
// in-memory archive into ordered entries.
//
// Ramdisks recovered from boot images are frequently cut short (the
// section size lies, or the stream was truncated), and the property
// files this tool is after sit near the front of the archive. Input
// that ends before the trailer is therefore a soft condition: Unpack
// returns every complete entry it saw and sets Truncated instead of
// failing. Structurally invalid headers (bad magic, bad hex digits)
// still fail hard.
package cpio
