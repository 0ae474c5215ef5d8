package devicetree

import (
	"fmt"
	"os"
	"strings"
	"text/template"
	"time"

	"github.com/EduardoA3677/twrpdtgen/internal/bootimg"
	"github.com/EduardoA3677/twrpdtgen/internal/fingerprint"
)

// templateData feeds the output skeletons. Everything the makefiles
// reference comes from the fingerprint and the section manifest.
type templateData struct {
	Year         string
	Version      string // tool version, for the generated-by banner
	Codename     string
	Manufacturer string
	Brand        string
	Model        string
	Platform     string

	DevicePath    string // device/<manufacturer>/<codename>
	HeaderVersion uint32
	PageSize      uint32
	Cmdline       string
	BaseAddress   string // hex, 0x-prefixed
	KernelOffset  string
	RamdiskOffset string
	TagsOffset    string
	HasDtb        bool
	HasDtbo       bool
	HasFstab      bool
}

// Conventional AOSP mkbootimg offsets. The header stores absolute load
// addresses; the makefiles want base + per-section offsets.
const (
	kernelOffset  = 0x00008000
	ramdiskOffset = 0x01000000
	tagsOffset    = 0x00000100
)

func newTemplateData(fp *fingerprint.Fingerprint, m *bootimg.Manifest, toolVersion string) templateData {
	d := templateData{
		Year:          fmt.Sprintf("%d", time.Now().Year()),
		Version:       toolVersion,
		Codename:      fp.Codename,
		Manufacturer:  fp.Manufacturer,
		Brand:         fp.Brand,
		Model:         fp.Model,
		Platform:      fp.Platform,
		DevicePath:    fmt.Sprintf("device/%s/%s", fp.Manufacturer, fp.Codename),
		HeaderVersion: m.Version,
		PageSize:      m.PageSize,
		Cmdline:       strings.TrimSpace(m.Cmdline + " " + m.ExtraCmdline),
	}
	if _, ok := m.Section(bootimg.SectionDtb); ok {
		d.HasDtb = true
	}
	if _, ok := m.Section(bootimg.SectionRecoveryDtbo); ok {
		d.HasDtbo = true
	}

	// Recover the base address from the kernel load address when the
	// header carries one; v3+ headers have no addresses at all.
	if ks, ok := m.Section(bootimg.SectionKernel); ok && ks.LoadAddr >= kernelOffset {
		base := ks.LoadAddr - kernelOffset
		d.BaseAddress = fmt.Sprintf("0x%08x", base)
		d.KernelOffset = fmt.Sprintf("0x%08x", kernelOffset)
		d.TagsOffset = fmt.Sprintf("0x%08x", tagsOffset)
		if rs, ok := m.Section(bootimg.SectionRamdisk); ok && rs.LoadAddr > base {
			d.RamdiskOffset = fmt.Sprintf("0x%08x", rs.LoadAddr-base)
		} else {
			d.RamdiskOffset = fmt.Sprintf("0x%08x", uint64(ramdiskOffset))
		}
	}
	return d
}

// One template per output file, keyed by the file name it renders to.
// omni_device.mk is special-cased by the writer: its output name embeds
// the codename.
var outputTemplates = template.Must(template.New("devicetree").Parse(`
{{define "header"}}#
# Copyright (C) {{.Year}} The Android Open Source Project
#
# SPDX-License-Identifier: Apache-2.0
#
# Automatically generated file. DO NOT MODIFY
#
{{end}}

{{define "Android.mk"}}{{template "header" .}}
LOCAL_PATH := $(call my-dir)

ifeq ($(TARGET_DEVICE),{{.Codename}})
include $(call all-subdir-makefiles,$(LOCAL_PATH))
endif
{{end}}

{{define "AndroidProducts.mk"}}{{template "header" .}}
PRODUCT_MAKEFILES := \
    $(LOCAL_DIR)/omni_{{.Codename}}.mk

COMMON_LUNCH_CHOICES := \
    omni_{{.Codename}}-user \
    omni_{{.Codename}}-userdebug \
    omni_{{.Codename}}-eng
{{end}}

{{define "BoardConfig.mk"}}{{template "header" .}}
DEVICE_PATH := {{.DevicePath}}

# For building with minimal manifest
ALLOW_MISSING_DEPENDENCIES := true

# Architecture
TARGET_BOARD_SUFFIX := _64
TARGET_ARCH := arm64
TARGET_ARCH_VARIANT := armv8-a
TARGET_CPU_ABI := arm64-v8a
TARGET_CPU_VARIANT := generic

TARGET_2ND_ARCH := arm
TARGET_2ND_ARCH_VARIANT := armv7-a-neon
TARGET_2ND_CPU_ABI := armeabi-v7a
TARGET_2ND_CPU_ABI2 := armeabi
TARGET_2ND_CPU_VARIANT := generic

# Bootloader
TARGET_BOOTLOADER_BOARD_NAME := {{.Codename}}
TARGET_NO_BOOTLOADER := true
{{if .Platform}}
# Platform
TARGET_BOARD_PLATFORM := {{.Platform}}
{{end}}
# Kernel
BOARD_BOOTIMG_HEADER_VERSION := {{.HeaderVersion}}
{{if .Cmdline}}BOARD_KERNEL_CMDLINE := {{.Cmdline}}
{{end}}BOARD_KERNEL_PAGESIZE := {{.PageSize}}
{{if .BaseAddress}}BOARD_KERNEL_BASE := {{.BaseAddress}}
BOARD_KERNEL_OFFSET := {{.KernelOffset}}
BOARD_RAMDISK_OFFSET := {{.RamdiskOffset}}
BOARD_KERNEL_TAGS_OFFSET := {{.TagsOffset}}
BOARD_MKBOOTIMG_ARGS += --base {{.BaseAddress}}
BOARD_MKBOOTIMG_ARGS += --kernel_offset {{.KernelOffset}}
BOARD_MKBOOTIMG_ARGS += --ramdisk_offset {{.RamdiskOffset}}
BOARD_MKBOOTIMG_ARGS += --tags_offset {{.TagsOffset}}
{{end}}BOARD_MKBOOTIMG_ARGS += --header_version $(BOARD_BOOTIMG_HEADER_VERSION)
TARGET_PREBUILT_KERNEL := $(DEVICE_PATH)/prebuilt/kernel
{{if .HasDtb}}BOARD_INCLUDE_DTB_IN_BOOTIMG := true
BOARD_PREBUILT_DTBIMAGE_DIR := $(DEVICE_PATH)/prebuilt
{{end}}{{if .HasDtbo}}BOARD_INCLUDE_RECOVERY_DTBO := true
BOARD_PREBUILT_DTBOIMAGE := $(DEVICE_PATH)/prebuilt/dtbo.img
{{end}}
# Recovery
{{if .HasFstab}}TARGET_RECOVERY_FSTAB := $(DEVICE_PATH)/recovery.fstab
{{end}}TARGET_RECOVERY_PIXEL_FORMAT := RGBX_8888
TARGET_USERIMAGES_USE_EXT4 := true
TARGET_USERIMAGES_USE_F2FS := true
{{end}}

{{define "device.mk"}}{{template "header" .}}
LOCAL_PATH := {{.DevicePath}}

# Inherit from those products. Most specific first.
$(call inherit-product, $(SRC_TARGET_DIR)/product/core_64_bit.mk)
$(call inherit-product, $(SRC_TARGET_DIR)/product/full_base_telephony.mk)
$(call inherit-product, $(SRC_TARGET_DIR)/product/languages_full.mk)

# Soong namespaces
PRODUCT_SOONG_NAMESPACES += \
    $(LOCAL_PATH)
{{end}}

{{define "omni_device.mk"}}{{template "header" .}}
# Inherit from those products. Most specific first.
$(call inherit-product, $(SRC_TARGET_DIR)/product/core_64_bit.mk)
$(call inherit-product, $(SRC_TARGET_DIR)/product/full_base_telephony.mk)
$(call inherit-product, $(SRC_TARGET_DIR)/product/languages_full.mk)

# Inherit some common Omni stuff.
$(call inherit-product, vendor/omni/config/common.mk)
$(call inherit-product, vendor/omni/config/gsm.mk)

# Inherit from {{.Codename}} device
$(call inherit-product, device/{{.Manufacturer}}/{{.Codename}}/device.mk)

PRODUCT_DEVICE := {{.Codename}}
PRODUCT_NAME := omni_{{.Codename}}
PRODUCT_BRAND := {{.Brand}}
PRODUCT_MODEL := {{.Model}}
PRODUCT_MANUFACTURER := {{.Manufacturer}}
{{end}}

{{define "Android.bp"}}//
// Copyright (C) {{.Year}} The Android Open Source Project
//
// SPDX-License-Identifier: Apache-2.0
//
// Automatically generated file. DO NOT MODIFY
//

soong_namespace {
}
{{end}}

{{define "extract-files.sh"}}#!/bin/bash
{{template "header" .}}
set -e

DEVICE={{.Codename}}
VENDOR={{.Manufacturer}}

# Load extract_utils and do some sanity checks
MY_DIR="${BASH_SOURCE%/*}"
if [[ ! -d "${MY_DIR}" ]]; then MY_DIR="${PWD}"; fi

ANDROID_ROOT="${MY_DIR}/../../.."

HELPER="${ANDROID_ROOT}/tools/extract-utils/extract_utils.sh"
if [ ! -f "${HELPER}" ]; then
    echo "Unable to find helper script at ${HELPER}"
    exit 1
fi
source "${HELPER}"

# Initialize the helper
setup_vendor "${DEVICE}" "${VENDOR}" "${ANDROID_ROOT}" false "${CLEAN_VENDOR}"

extract "${MY_DIR}/proprietary-files.txt" "${SRC}" "${KANG}" --section "${SECTION}"

"${MY_DIR}/setup-makefiles.sh"
{{end}}

{{define "setup-makefiles.sh"}}#!/bin/bash
{{template "header" .}}
set -e

DEVICE={{.Codename}}
VENDOR={{.Manufacturer}}

# Load extract_utils and do some sanity checks
MY_DIR="${BASH_SOURCE%/*}"
if [[ ! -d "${MY_DIR}" ]]; then MY_DIR="${PWD}"; fi

ANDROID_ROOT="${MY_DIR}/../../.."

HELPER="${ANDROID_ROOT}/tools/extract-utils/extract_utils.sh"
if [ ! -f "${HELPER}" ]; then
    echo "Unable to find helper script at ${HELPER}"
    exit 1
fi
source "${HELPER}"

# Initialize the helper
setup_vendor "${DEVICE}" "${VENDOR}" "${ANDROID_ROOT}" false

# Warning headers and guards
write_headers

write_makefiles "${MY_DIR}/proprietary-files.txt" true

# Finish
write_footers
{{end}}

{{define "vendorsetup.sh"}}{{template "header" .}}
add_lunch_combo omni_{{.Codename}}-user
add_lunch_combo omni_{{.Codename}}-userdebug
add_lunch_combo omni_{{.Codename}}-eng
{{end}}

{{define "README.md"}}# TWRP device tree for {{.Model}} ({{.Codename}})

Generated by twrpdtgen {{.Version}}.

| Spec            | Value           |
| --------------- | --------------- |
| Codename        | {{.Codename}} |
| Manufacturer    | {{.Manufacturer}} |
| Brand           | {{.Brand}} |
| Model           | {{.Model}} |
| Platform        | {{.Platform}} |
| Header version  | {{.HeaderVersion}} |
| Page size       | {{.PageSize}} |
{{end}}

{{define "commit_message"}}{{.Codename}}: initial TWRP device tree

Generated by twrpdtgen {{.Version}}.
{{end}}
`))

// renderedFiles maps output file names to template names and file
// modes. The writer walks this table plus the codename-derived omni
// makefile. The extraction shell scripts are executable.
var renderedFiles = []struct {
	out  string
	tpl  string
	mode os.FileMode
}{
	{"Android.bp", "Android.bp", 0644},
	{"Android.mk", "Android.mk", 0644},
	{"AndroidProducts.mk", "AndroidProducts.mk", 0644},
	{"BoardConfig.mk", "BoardConfig.mk", 0644},
	{"device.mk", "device.mk", 0644},
	{"extract-files.sh", "extract-files.sh", 0755},
	{"setup-makefiles.sh", "setup-makefiles.sh", 0755},
	{"vendorsetup.sh", "vendorsetup.sh", 0644},
	{"README.md", "README.md", 0644},
}

func renderTemplate(name string, data templateData) (string, error) {
	var b strings.Builder
	if err := outputTemplates.ExecuteTemplate(&b, name, data); err != nil {
		return "", fmt.Errorf("rendering %s: %w", name, err)
	}
	// Named template bodies begin with the define's trailing newline.
	return strings.TrimLeft(b.String(), "\n"), nil
}
