package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/EduardoA3677/twrpdtgen/internal/config"
	"github.com/EduardoA3677/twrpdtgen/internal/devicetree"
	"github.com/EduardoA3677/twrpdtgen/internal/extract"
	"github.com/EduardoA3677/twrpdtgen/internal/version"
)

// Command flags
var (
	logLevel       string
	outputDir      string
	gitInit        bool
	vendorBootPath string
	outputFormat   string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log verbosity (debug, info, warn, error); silent when unset")

	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(inspectCmd)
}

// generateCmd turns a boot image into a TWRP device tree directory.
var generateCmd = &cobra.Command{
	Use:   "generate <image>",
	Short: "Generate a TWRP device tree from a boot image",
	Long: `Generate a TWRP device tree from a boot image.

The image is parsed, its ramdisk and device tree blob are decoded, and
the resolved device identity drives the rendered makefiles, converted
recovery.fstab and prebuilt payloads. The tree is written under
<output>/<manufacturer>/<codename>, replacing any previous run.`,
	Example: `  # Generate into the configured output directory
  twrpdtgen generate recovery.img

  # Generate into a specific directory and create a git repo
  twrpdtgen generate recovery.img --output trees --git

  # v3+ boot image whose dtb lives in a separate vendor_boot
  twrpdtgen generate boot.img --vendor-boot vendor_boot.img`,
	Args: cobra.ExactArgs(1),
	RunE: runGenerate,
}

func init() {
	generateCmd.Flags().StringVarP(&outputDir, "output", "o", "", "Output directory (default from config, else \"output\")")
	generateCmd.Flags().BoolVar(&gitInit, "git", false, "Initialize a git repository in the generated tree")
	generateCmd.Flags().StringVar(&vendorBootPath, "vendor-boot", "", "Secondary vendor_boot image consulted for the dtb")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	imagePath := args[0]

	image, err := os.ReadFile(imagePath)
	if err != nil {
		return fmt.Errorf("reading image: %w", err)
	}

	var opts extract.Options
	if vendorBootPath != "" {
		opts.VendorBoot, err = os.ReadFile(vendorBootPath)
		if err != nil {
			return fmt.Errorf("reading vendor_boot image: %w", err)
		}
	}

	res, err := extract.Run(image, opts)
	if err != nil {
		return err
	}

	registry, err := config.LoadRegistry()
	if err != nil {
		return err
	}

	out := outputDir
	if out == "" {
		out = registry.Preferences.OutputDir
	}
	if out == "" {
		out = "output"
	}

	tree := &devicetree.Tree{
		Fingerprint: res.Fingerprint,
		Manifest:    res.Manifest,
		Image:       image,
		Ramdisk:     res.Ramdisk,
		Version:     version.Version,
	}
	dir, err := tree.Write(out)
	if err != nil {
		return err
	}

	if gitInit || (!cmd.Flags().Changed("git") && registry.Preferences.Git) {
		name, email := registry.Author()
		if err := tree.InitRepo(dir, name, email); err != nil {
			return err
		}
	}

	registry.RecordGeneration(res.Fingerprint.Codename, res.Fingerprint.Manufacturer, imagePath, dir)
	if err := registry.Save(); err != nil {
		return err
	}

	fmt.Printf("Device tree for %s (%s) written to %s\n",
		res.Fingerprint.Model, res.Fingerprint.Codename, dir)
	return nil
}

// inspectCmd prints what the parser sees without writing anything.
var inspectCmd = &cobra.Command{
	Use:   "inspect <image>",
	Short: "Show a boot image's layout and resolved identity",
	Long: `Parse a boot image and print its section manifest, the ramdisk
compression envelope and the resolved device fingerprint without
generating any output files.`,
	Example: `  # Human-readable dump
  twrpdtgen inspect recovery.img

  # JSON output for scripting
  twrpdtgen inspect recovery.img --format json`,
	Args: cobra.ExactArgs(1),
	RunE: runInspect,
}

func init() {
	inspectCmd.Flags().StringVar(&outputFormat, "format", "detailed", "Output format (detailed, json)")
	inspectCmd.Flags().StringVar(&vendorBootPath, "vendor-boot", "", "Secondary vendor_boot image consulted for the dtb")
}

// inspectReport is the JSON shape of the inspect output.
type inspectReport struct {
	VendorBoot    bool             `json:"vendor_boot"`
	HeaderVersion uint32           `json:"header_version"`
	PageSize      uint32           `json:"page_size"`
	Board         string           `json:"board,omitempty"`
	Cmdline       string           `json:"cmdline,omitempty"`
	Envelope      string           `json:"ramdisk_envelope"`
	PropsPath     string           `json:"props_path,omitempty"`
	Sections      []inspectSection `json:"sections"`
	Fingerprint   fingerprintView  `json:"fingerprint"`
	TreeError     string           `json:"tree_error,omitempty"`
}

type inspectSection struct {
	Kind   string `json:"kind"`
	Offset int    `json:"offset"`
	Size   int    `json:"size"`
}

type fingerprintView struct {
	Codename        string   `json:"codename"`
	Manufacturer    string   `json:"manufacturer"`
	Brand           string   `json:"brand"`
	Model           string   `json:"model"`
	Platform        string   `json:"platform,omitempty"`
	BoardCompatible []string `json:"board_compatible,omitempty"`
}

func runInspect(cmd *cobra.Command, args []string) error {
	image, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading image: %w", err)
	}

	var opts extract.Options
	if vendorBootPath != "" {
		opts.VendorBoot, err = os.ReadFile(vendorBootPath)
		if err != nil {
			return fmt.Errorf("reading vendor_boot image: %w", err)
		}
	}

	res, err := extract.Run(image, opts)
	if err != nil {
		return err
	}

	report := inspectReport{
		VendorBoot:    res.Manifest.VendorBoot,
		HeaderVersion: res.Manifest.Version,
		PageSize:      res.Manifest.PageSize,
		Board:         res.Manifest.Board,
		Cmdline:       res.Manifest.Cmdline,
		Envelope:      res.Envelope.String(),
		PropsPath:     res.PropsPath,
		Fingerprint: fingerprintView{
			Codename:        res.Fingerprint.Codename,
			Manufacturer:    res.Fingerprint.Manufacturer,
			Brand:           res.Fingerprint.Brand,
			Model:           res.Fingerprint.Model,
			Platform:        res.Fingerprint.Platform,
			BoardCompatible: res.Fingerprint.BoardCompatible,
		},
	}
	for _, s := range res.Manifest.Sections {
		report.Sections = append(report.Sections, inspectSection{
			Kind: s.Kind.String(), Offset: s.Offset, Size: s.Size,
		})
	}
	if res.TreeErr != nil {
		report.TreeError = res.TreeErr.Error()
	}

	switch outputFormat {
	case "json":
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		fmt.Println(string(data))
	case "detailed":
		fallthrough
	default:
		printReport(report)
	}
	return nil
}

func printReport(r inspectReport) {
	kind := "boot"
	if r.VendorBoot {
		kind = "vendor_boot"
	}
	fmt.Printf("Image:    %s, header version %d, page size %d\n", kind, r.HeaderVersion, r.PageSize)
	if r.Board != "" {
		fmt.Printf("Board:    %s\n", r.Board)
	}
	if r.Cmdline != "" {
		fmt.Printf("Cmdline:  %s\n", r.Cmdline)
	}
	fmt.Printf("Ramdisk:  %s compressed\n", r.Envelope)
	if r.PropsPath != "" {
		fmt.Printf("Props:    %s\n", r.PropsPath)
	}

	fmt.Println("\nSections:")
	for _, s := range r.Sections {
		fmt.Printf("  %-20s offset %-10d size %d\n", s.Kind, s.Offset, s.Size)
	}

	fp := r.Fingerprint
	fmt.Println("\nDevice:")
	fmt.Printf("  Codename:      %s\n", fp.Codename)
	fmt.Printf("  Manufacturer:  %s\n", fp.Manufacturer)
	fmt.Printf("  Brand:         %s\n", fp.Brand)
	fmt.Printf("  Model:         %s\n", fp.Model)
	if fp.Platform != "" {
		fmt.Printf("  Platform:      %s\n", fp.Platform)
	}
	for _, c := range fp.BoardCompatible {
		fmt.Printf("  Compatible:    %s\n", c)
	}
	if r.TreeError != "" {
		fmt.Printf("\nDevice tree:  unusable (%s)\n", r.TreeError)
	}
}
