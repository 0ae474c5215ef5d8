// Package bootimg parses Android boot, recovery and vendor_boot image
// containers.
//
// A boot image is a header followed by concatenated sections (kernel,
// ramdisk, second stage, recovery dtbo, dtb, signature), each padded to
// the header's page-size granularity. The header layout varies by
// version:
//
//   - v0-v2: legacy layout with per-section size/load-address pairs and
//     an explicit page_size field. v1 adds the recovery dtbo, v2 adds
//     an embedded dtb section.
//   - v3/v4: reduced layout with only kernel and ramdisk sizes and a
//     fixed 4096-byte page size. v4 adds a boot signature section.
//   - vendor_boot v3/v4: distinct header carrying the vendor ramdisk
//     and dtb; v4 adds a ramdisk table and bootconfig section.
//
// Parse classifies the image by its magic and version and produces a
// Manifest describing every declared section. The page rounding between
// sections is load-bearing: sections are laid out back-to-back with
// each end rounded up to a page boundary, so a decoder that skips the
// rounding mis-locates every section after the first.
package bootimg
