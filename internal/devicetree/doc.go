// Package devicetree renders the generated TWRP device-tree directory.
//
// From the facts the extraction pipeline recovered (fingerprint, section
// manifest, ramdisk) it writes the makefile skeletons, the converted
// recovery.fstab, the prebuilt kernel/dtb payloads and the recovery
// init scripts, and optionally turns the output directory into a git
// repository with an initial commit.
package devicetree
