// Package fdt parses flattened device tree blobs.
//
// A blob is a header (magic 0xd00dfeed, big-endian fields locating the
// structure and strings blocks), a structure block encoded as
// BEGIN_NODE/END_NODE/PROP/NOP/END tokens, and a strings block that
// property names reference by offset. Parse builds the node hierarchy
// as an arena indexed by Handle: each node stores the handles of its
// children, which sidesteps ownership cycles and keeps lookups cheap.
//
// Property values stay raw bytes at this layer; PropString, PropStrings
// and PropU32 are offered for callers that know the encoding. Vendor
// images often embed one board variant per top-level node (or even
// concatenate several whole blobs into one dtb section), so
// CompatibleNodes exposes every compatible-bearing top-level node and
// ParseAll walks concatenated blobs.
package fdt
