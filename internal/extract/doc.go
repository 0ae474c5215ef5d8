// Package extract runs the full image-to-fingerprint pipeline.
//
// The container parser produces a section manifest, after which two
// independent branches run over the shared read-only image buffer: the
// ramdisk branch (decompress, unpack, locate the property file) and the
// device tree branch (parse the dtb section, or a secondary vendor_boot
// image when the primary has none). The branches touch disjoint
// sections and run concurrently; the fingerprint resolver joins them.
//
// Error policy: a container-level format error, a ramdisk decode error
// or an unresolvable fingerprint abort the pipeline. A device tree that
// fails to parse is soft — it is reported on the result and the
// ramdisk-only fingerprint path may still succeed.
package extract
