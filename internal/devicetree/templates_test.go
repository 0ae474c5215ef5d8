package devicetree

import (
	"strings"
	"testing"

	"github.com/EduardoA3677/twrpdtgen/internal/bootimg"
	"github.com/EduardoA3677/twrpdtgen/internal/fingerprint"
)

func testFingerprint() *fingerprint.Fingerprint {
	return &fingerprint.Fingerprint{
		Codename:     "hero2lte",
		Manufacturer: "samsung",
		Brand:        "samsung",
		Model:        "SM-G935F",
		Platform:     "exynos5",
	}
}

func testManifest() *bootimg.Manifest {
	return &bootimg.Manifest{
		Version:  2,
		PageSize: 2048,
		Cmdline:  "console=null androidboot.hardware=samsungexynos8890",
		Sections: []bootimg.Section{
			{Kind: bootimg.SectionKernel, Offset: 2048, Size: 64, LoadAddr: 0x10008000},
			{Kind: bootimg.SectionRamdisk, Offset: 4096, Size: 64, LoadAddr: 0x11000000},
			{Kind: bootimg.SectionDtb, Offset: 6144, Size: 64},
		},
	}
}

func TestBoardConfigTemplate(t *testing.T) {
	data := newTemplateData(testFingerprint(), testManifest(), "1.0.0")
	data.HasFstab = true

	out, err := renderTemplate("BoardConfig.mk", data)
	if err != nil {
		t.Fatal(err)
	}

	for _, want := range []string{
		"DEVICE_PATH := device/samsung/hero2lte",
		"TARGET_BOARD_PLATFORM := exynos5",
		"BOARD_BOOTIMG_HEADER_VERSION := 2",
		"BOARD_KERNEL_PAGESIZE := 2048",
		"BOARD_KERNEL_BASE := 0x10000000",
		"BOARD_RAMDISK_OFFSET := 0x01000000",
		"BOARD_INCLUDE_DTB_IN_BOOTIMG := true",
		"TARGET_RECOVERY_FSTAB := $(DEVICE_PATH)/recovery.fstab",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("BoardConfig.mk missing %q", want)
		}
	}

	if strings.Contains(out, "BOARD_PREBUILT_DTBOIMAGE") {
		t.Error("BoardConfig.mk references a dtbo the image does not carry")
	}
}

func TestBoardConfigTemplateModernHeader(t *testing.T) {
	m := &bootimg.Manifest{
		Version:  3,
		PageSize: 4096,
		Cmdline:  "twrpfastboot=1",
		Sections: []bootimg.Section{
			{Kind: bootimg.SectionKernel, Offset: 4096, Size: 64},
			{Kind: bootimg.SectionRamdisk, Offset: 8192, Size: 64},
		},
	}
	out, err := renderTemplate("BoardConfig.mk", newTemplateData(testFingerprint(), m, "1.0.0"))
	if err != nil {
		t.Fatal(err)
	}

	// v3 headers carry no load addresses; the base/offset block must be absent.
	if strings.Contains(out, "BOARD_KERNEL_BASE") {
		t.Error("BoardConfig.mk emits a kernel base for an addressless header")
	}
	if !strings.Contains(out, "BOARD_BOOTIMG_HEADER_VERSION := 3") {
		t.Error("BoardConfig.mk missing header version")
	}
}

func TestOmniTemplate(t *testing.T) {
	out, err := renderTemplate("omni_device.mk", newTemplateData(testFingerprint(), testManifest(), "1.0.0"))
	if err != nil {
		t.Fatal(err)
	}

	for _, want := range []string{
		"PRODUCT_DEVICE := hero2lte",
		"PRODUCT_NAME := omni_hero2lte",
		"PRODUCT_MODEL := SM-G935F",
		"device/samsung/hero2lte/device.mk",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("omni makefile missing %q", want)
		}
	}
}

func TestShellScriptTemplates(t *testing.T) {
	data := newTemplateData(testFingerprint(), testManifest(), "1.0.0")

	for _, name := range []string{"extract-files.sh", "setup-makefiles.sh"} {
		out, err := renderTemplate(name, data)
		if err != nil {
			t.Fatal(err)
		}
		if !strings.HasPrefix(out, "#!/bin/bash") {
			t.Errorf("%s missing shebang: %q", name, out[:20])
		}
		for _, want := range []string{"DEVICE=hero2lte", "VENDOR=samsung"} {
			if !strings.Contains(out, want) {
				t.Errorf("%s missing %q", name, want)
			}
		}
	}

	out, err := renderTemplate("vendorsetup.sh", data)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "add_lunch_combo omni_hero2lte-userdebug") {
		t.Errorf("vendorsetup.sh = %q", out)
	}
}

func TestAndroidBpTemplate(t *testing.T) {
	out, err := renderTemplate("Android.bp", newTemplateData(testFingerprint(), testManifest(), "1.0.0"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out, "//") {
		t.Errorf("Android.bp comments are not blueprint-style: %q", out[:10])
	}
	if !strings.Contains(out, "soong_namespace {") {
		t.Errorf("Android.bp missing soong namespace: %q", out)
	}
}

func TestCommitMessageTemplate(t *testing.T) {
	out, err := renderTemplate("commit_message", newTemplateData(testFingerprint(), testManifest(), "1.0.0"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out, "hero2lte: initial TWRP device tree") {
		t.Errorf("commit message = %q", out)
	}
}
