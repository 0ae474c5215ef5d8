// Package fingerprint derives a device identity record from the facts
// recovered out of a boot image: the ramdisk's build properties and the
// device tree's compatible/model strings.
package fingerprint

import (
	"errors"
	"strings"

	"github.com/EduardoA3677/twrpdtgen/internal/fdt"
	"github.com/EduardoA3677/twrpdtgen/internal/props"
)

// ErrIncomplete is returned when neither the property file nor the
// device tree yields enough data to identify the device. Callers must
// treat it as terminal: a device description with no identity is worse
// than no description.
var ErrIncomplete = errors.New("fingerprint: no identifying data in property file or device tree")

// Fingerprint is the resolved device identity. Fields are plain
// strings, populated or empty, never raw bytes.
type Fingerprint struct {
	Codename        string
	Manufacturer    string
	Brand           string
	Model           string
	Platform        string
	BoardCompatible []string
}

// Valid reports whether the record carries the minimum identity.
func (f *Fingerprint) Valid() bool {
	return f.Codename != "" || f.Model != ""
}

// Property keys consulted per field, in priority order. Mirrors the
// lists AOSP build tooling writes into recovery prop files.
var (
	codenameKeys = []string{
		"ro.product.device",
		"ro.product.system.device",
		"ro.product.vendor.device",
		"ro.build.product",
	}
	manufacturerKeys = []string{
		"ro.product.manufacturer",
		"ro.product.system.manufacturer",
		"ro.product.vendor.manufacturer",
	}
	brandKeys = []string{
		"ro.product.brand",
		"ro.product.system.brand",
		"ro.product.vendor.brand",
	}
	modelKeys = []string{
		"ro.product.model",
		"ro.product.system.model",
		"ro.product.vendor.model",
	}
	platformKeys = []string{
		"ro.board.platform",
		"ro.product.board",
		"ro.hardware",
	}
)

// Sources are the inputs to resolution; either may be absent.
type Sources struct {
	Props props.Properties // nil when no property file was found
	Trees []*fdt.Tree      // empty when the image had no parsable dtb
}

// Resolve merges both sources into a single record. Property-file
// values win for manufacturer, brand and model; the codename prefers
// the device tree compatible's second component and falls back to the
// property file. Returns ErrIncomplete when the sources are absent or
// carry no usable identity.
func Resolve(src Sources) (*Fingerprint, error) {
	if src.Props == nil && len(src.Trees) == 0 {
		return nil, ErrIncomplete
	}

	f := &Fingerprint{}

	// Device tree facts first, so the property file can override them.
	var dtManufacturer, dtCodename, dtModel string
	for _, tree := range src.Trees {
		for _, h := range tree.CompatibleNodes() {
			node := tree.Node(h)
			for _, compat := range fdt.PropStrings(mustValue(node, "compatible")) {
				compat = sanitize(compat)
				if compat == "" {
					continue
				}
				f.BoardCompatible = append(f.BoardCompatible, compat)
				if dtManufacturer == "" {
					if manufacturer, codename, ok := strings.Cut(compat, ","); ok {
						dtManufacturer = manufacturer
						dtCodename = codename
					}
				}
			}
			if dtModel == "" {
				if v, ok := node.Property("model"); ok {
					dtModel = sanitize(fdt.PropString(v))
				}
			}
		}
	}

	f.Codename = firstNonEmpty(dtCodename, propGet(src.Props, codenameKeys))
	f.Manufacturer = strings.ToLower(firstNonEmpty(propGet(src.Props, manufacturerKeys), dtManufacturer))
	f.Brand = firstNonEmpty(propGet(src.Props, brandKeys), f.Manufacturer)
	f.Model = firstNonEmpty(propGet(src.Props, modelKeys), dtModel)
	f.Platform = propGet(src.Props, platformKeys)

	if !f.Valid() {
		return nil, ErrIncomplete
	}
	return f, nil
}

func propGet(p props.Properties, keys []string) string {
	if p == nil {
		return ""
	}
	return sanitize(p.Get(keys...))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// sanitize strips NUL bytes and surrounding whitespace so downstream
// templating never sees raw binary.
func sanitize(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, "\x00", ""))
}

func mustValue(n *fdt.Node, name string) []byte {
	v, _ := n.Property(name)
	return v
}
