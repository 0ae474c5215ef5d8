package devicetree

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/EduardoA3677/twrpdtgen/internal/bootimg"
	"github.com/EduardoA3677/twrpdtgen/internal/cpio"
	"github.com/EduardoA3677/twrpdtgen/internal/fingerprint"
	"github.com/EduardoA3677/twrpdtgen/internal/logging"
)

// initRcDirs are the ramdisk directories scanned for recovery init
// scripts, beside the ramdisk root itself.
var initRcDirs = []string{
	"system/etc/init",
	"vendor/etc/init",
}

// Tree assembles the output device-tree directory from the extraction
// results. Image must be the same buffer Manifest was parsed from.
type Tree struct {
	Fingerprint *fingerprint.Fingerprint
	Manifest    *bootimg.Manifest
	Image       []byte
	Ramdisk     *cpio.Archive
	Version     string // tool version, stamped into README and the commit message
}

// Write renders the device tree under
// outputDir/<manufacturer>/<codename>, replacing any previous contents,
// and returns the directory it wrote.
func (t *Tree) Write(outputDir string) (string, error) {
	log := logging.GetLogger()

	dir := filepath.Join(outputDir, t.Fingerprint.Manufacturer, t.Fingerprint.Codename)
	if err := os.RemoveAll(dir); err != nil {
		return "", fmt.Errorf("clearing previous device tree: %w", err)
	}
	prebuiltDir := filepath.Join(dir, "prebuilt")
	recoveryRootDir := filepath.Join(dir, "recovery", "root")
	for _, d := range []string{dir, prebuiltDir, recoveryRootDir} {
		if err := os.MkdirAll(d, 0755); err != nil {
			return "", fmt.Errorf("creating device tree directories: %w", err)
		}
	}

	data := newTemplateData(t.Fingerprint, t.Manifest, t.Version)

	fstab, fstabPath, fstabFound := FstabFromRamdisk(t.Ramdisk)
	data.HasFstab = fstabFound

	for _, rf := range renderedFiles {
		text, err := renderTemplate(rf.tpl, data)
		if err != nil {
			return "", err
		}
		if err := os.WriteFile(filepath.Join(dir, rf.out), []byte(text), rf.mode); err != nil {
			return "", fmt.Errorf("writing %s: %w", rf.out, err)
		}
	}

	omniName := fmt.Sprintf("omni_%s.mk", t.Fingerprint.Codename)
	text, err := renderTemplate("omni_device.mk", data)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(filepath.Join(dir, omniName), []byte(text), 0644); err != nil {
		return "", fmt.Errorf("writing %s: %w", omniName, err)
	}

	if fstabFound {
		log.Debug("converting recovery fstab", zap.String("source", fstabPath),
			zap.Int("entries", len(fstab.Entries)))
		if err := os.WriteFile(filepath.Join(dir, "recovery.fstab"), []byte(fstab.FormatTWRP()), 0644); err != nil {
			return "", fmt.Errorf("writing recovery.fstab: %w", err)
		}
	} else {
		log.Warn("no recovery fstab in ramdisk, skipping recovery.fstab")
	}

	if err := t.writePrebuilts(prebuiltDir); err != nil {
		return "", err
	}
	if err := t.writeInitScripts(recoveryRootDir); err != nil {
		return "", err
	}

	log.Info("device tree written", zap.String("dir", dir))
	return dir, nil
}

// writePrebuilts exports the kernel, dtb and recovery dtbo section
// payloads. Sections the image does not carry are skipped.
func (t *Tree) writePrebuilts(prebuiltDir string) error {
	exports := []struct {
		kind bootimg.SectionKind
		name string
	}{
		{bootimg.SectionKernel, "kernel"},
		{bootimg.SectionDtb, "dtb.img"},
		{bootimg.SectionRecoveryDtbo, "dtbo.img"},
	}
	for _, e := range exports {
		payload := t.Manifest.SectionBytes(t.Image, e.kind)
		if payload == nil {
			continue
		}
		if err := os.WriteFile(filepath.Join(prebuiltDir, e.name), payload, 0644); err != nil {
			return fmt.Errorf("writing prebuilt %s: %w", e.name, err)
		}
	}
	return nil
}

// writeInitScripts copies init .rc files (other than init.rc itself)
// from the ramdisk root and the etc/init directories into
// recovery/root. A kernel+dtb-only image has no ramdisk to copy from.
func (t *Tree) writeInitScripts(recoveryRootDir string) error {
	if t.Ramdisk == nil {
		return nil
	}
	for _, entry := range t.Ramdisk.Entries {
		if entry.Kind != cpio.KindRegular || !wantInitScript(entry.Path) {
			continue
		}
		name := path.Base(entry.Path)
		if err := os.WriteFile(filepath.Join(recoveryRootDir, name), entry.Data, 0644); err != nil {
			return fmt.Errorf("writing init script %s: %w", name, err)
		}
	}
	return nil
}

func wantInitScript(p string) bool {
	if !strings.HasSuffix(p, ".rc") {
		return false
	}
	if !strings.Contains(p, "/") {
		return p != "init.rc"
	}
	for _, dir := range initRcDirs {
		if path.Dir(p) == dir {
			return true
		}
	}
	return false
}
