package extract

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/EduardoA3677/twrpdtgen/internal/bootimg"
	"github.com/EduardoA3677/twrpdtgen/internal/compression"
	"github.com/EduardoA3677/twrpdtgen/internal/cpio"
	"github.com/EduardoA3677/twrpdtgen/internal/fdt"
	"github.com/EduardoA3677/twrpdtgen/internal/fingerprint"
	"github.com/EduardoA3677/twrpdtgen/internal/logging"
	"github.com/EduardoA3677/twrpdtgen/internal/props"
)

// Options tune a pipeline run.
type Options struct {
	// VendorBoot is an optional secondary vendor_boot image. When the
	// primary image lacks a dtb the secondary's dtb is used; when the
	// primary lacks a ramdisk the secondary's vendor ramdisk is.
	VendorBoot []byte
}

// Result carries everything the pipeline recovered. Fingerprint and
// Manifest are always set on success; Trees may be empty and TreeErr
// set when the dtb section was present but unparsable.
type Result struct {
	Manifest  *bootimg.Manifest
	Envelope  compression.Envelope
	Ramdisk   *cpio.Archive
	PropsPath string // ramdisk path the property file was loaded from
	Props     props.Properties

	Trees   []*fdt.Tree
	TreeErr error // soft: dtb present but unparsable

	Fingerprint *fingerprint.Fingerprint
}

type ramdiskOut struct {
	archive   *cpio.Archive
	envelope  compression.Envelope
	props     props.Properties
	propsPath string
	err       error
}

type treeOut struct {
	trees []*fdt.Tree
	err   error
}

// Run parses the image and resolves its device fingerprint. The image
// buffer is treated as immutable; both branches read it concurrently
// without copying.
func Run(image []byte, opts Options) (*Result, error) {
	log := logging.GetLogger()

	manifest, err := bootimg.Parse(image)
	if err != nil {
		return nil, fmt.Errorf("parsing boot image container: %w", err)
	}
	log.Debug("container parsed",
		zap.Uint32("version", manifest.Version),
		zap.Bool("vendor_boot", manifest.VendorBoot),
		zap.Uint32("page_size", manifest.PageSize),
		zap.Int("sections", len(manifest.Sections)))
	for _, s := range manifest.Sections {
		logging.LogSection(s.Kind.String(), s.Offset, s.Size, image[s.Offset:s.Offset+s.Size])
	}

	// Multi-image mode: the secondary vendor_boot is parsed up front so
	// both branches can fall back to its sections.
	var vendor *bootimg.Manifest
	if len(opts.VendorBoot) > 0 {
		vendor, err = bootimg.Parse(opts.VendorBoot)
		if err != nil {
			return nil, fmt.Errorf("parsing vendor_boot image: %w", err)
		}
	}

	ramdiskCh := make(chan ramdiskOut, 1)
	treeCh := make(chan treeOut, 1)

	go func() { ramdiskCh <- runRamdiskBranch(manifest, image, vendor, opts.VendorBoot) }()
	go func() { treeCh <- runTreeBranch(manifest, image, vendor, opts.VendorBoot) }()

	ram := <-ramdiskCh
	tree := <-treeCh

	if ram.err != nil {
		return nil, fmt.Errorf("extracting ramdisk: %w", ram.err)
	}
	if tree.err != nil {
		// Soft: the ramdisk-only path may still identify the device.
		log.Warn("device tree unusable, continuing with ramdisk facts only", zap.Error(tree.err))
	}

	res := &Result{
		Manifest:  manifest,
		Envelope:  ram.envelope,
		Ramdisk:   ram.archive,
		Props:     ram.props,
		PropsPath: ram.propsPath,
		Trees:     tree.trees,
		TreeErr:   tree.err,
	}

	fp, err := fingerprint.Resolve(fingerprint.Sources{Props: ram.props, Trees: tree.trees})
	if err != nil {
		return nil, err
	}
	res.Fingerprint = fp

	log.Info("device identified",
		zap.String("codename", fp.Codename),
		zap.String("manufacturer", fp.Manufacturer),
		zap.String("model", fp.Model))
	return res, nil
}

func runRamdiskBranch(manifest *bootimg.Manifest, image []byte, vendor *bootimg.Manifest, vendorImage []byte) ramdiskOut {
	log := logging.GetLogger()

	raw := manifest.SectionBytes(image, bootimg.SectionRamdisk)
	if raw == nil && vendor != nil {
		if raw = vendor.SectionBytes(vendorImage, bootimg.SectionRamdisk); raw != nil {
			log.Debug("primary image has no ramdisk, using vendor_boot ramdisk",
				zap.Int("size", len(raw)))
		}
	}
	if raw == nil {
		return ramdiskOut{envelope: compression.EnvelopeNone}
	}

	decompressed, envelope, err := compression.Decompress(raw)
	if err != nil {
		return ramdiskOut{err: err}
	}
	log.Debug("ramdisk decompressed",
		zap.Stringer("envelope", envelope),
		zap.Int("compressed", len(raw)),
		zap.Int("decompressed", len(decompressed)))

	archive, err := cpio.Unpack(decompressed)
	if err != nil {
		return ramdiskOut{err: err}
	}
	if archive.Truncated {
		log.Warn("ramdisk archive truncated, using entries parsed so far",
			zap.Int("entries", len(archive.Entries)))
	}

	out := ramdiskOut{archive: archive, envelope: envelope}
	if p, path, ok := props.FromRamdisk(archive); ok {
		out.props = p
		out.propsPath = path
		log.Debug("property file located", zap.String("path", path), zap.Int("keys", len(p)))
	}
	return out
}

func runTreeBranch(manifest *bootimg.Manifest, image []byte, vendor *bootimg.Manifest, vendorImage []byte) treeOut {
	dtb := manifest.SectionBytes(image, bootimg.SectionDtb)
	if dtb == nil && vendor != nil {
		dtb = vendor.SectionBytes(vendorImage, bootimg.SectionDtb)
	}
	if dtb == nil {
		return treeOut{}
	}

	trees, err := fdt.ParseAll(dtb)
	if err != nil {
		return treeOut{err: err}
	}
	return treeOut{trees: trees}
}
