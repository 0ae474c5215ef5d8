package config

import "time"

// Registry represents the entire user configuration file.
// This stores the git author identity, output preferences and a record
// of previously generated device trees.
type Registry struct {
	Version     int                `yaml:"version"`
	Devices     map[string]*Device `yaml:"devices,omitempty"` // Keyed by device codename
	Preferences *Preferences       `yaml:"preferences,omitempty"`
}

// Device records the last generation run for a single device codename.
type Device struct {
	Manufacturer string    `yaml:"manufacturer,omitempty"` // Resolved manufacturer (lowercase)
	LastImage    string    `yaml:"last_image,omitempty"`   // Path of the boot image last used
	LastOutput   string    `yaml:"last_output,omitempty"`  // Directory the tree was written to
	GeneratedAt  time.Time `yaml:"generated_at,omitempty"` // Time of the last generation
}

// Preferences represents application-wide user preferences.
type Preferences struct {
	OutputDir string      `yaml:"output_dir,omitempty"` // Default output directory for generated trees
	Git       bool        `yaml:"git"`                  // Initialize a git repository in the output by default
	Author    *AuthorMeta `yaml:"author,omitempty"`     // Commit author identity
}

// AuthorMeta is the git author identity used for generated commits.
type AuthorMeta struct {
	Name  string `yaml:"name"`
	Email string `yaml:"email"`
}

// Fallback commit identity when no author is configured.
const (
	DefaultAuthorName  = "twrpdtgen"
	DefaultAuthorEmail = "twrpdtgen@localhost"
)

// NewRegistry creates a new Registry with default values.
func NewRegistry() *Registry {
	return &Registry{
		Version: 1,
		Devices: make(map[string]*Device),
		Preferences: &Preferences{
			OutputDir: "output",
			Git:       true,
			Author: &AuthorMeta{
				Name:  DefaultAuthorName,
				Email: DefaultAuthorEmail,
			},
		},
	}
}

// GetDevice retrieves the generation record for a codename.
// Returns nil if the device has never been generated.
func (r *Registry) GetDevice(codename string) *Device {
	return r.Devices[codename]
}

// EnsureDevice ensures a device entry exists in the registry.
// Returns the entry (existing or newly created).
func (r *Registry) EnsureDevice(codename string) *Device {
	if r.Devices == nil {
		r.Devices = make(map[string]*Device)
	}

	if device, exists := r.Devices[codename]; exists {
		return device
	}

	device := &Device{}
	r.Devices[codename] = device
	return device
}

// RecordGeneration updates the registry after a successful run.
func (r *Registry) RecordGeneration(codename, manufacturer, image, output string) {
	device := r.EnsureDevice(codename)
	device.Manufacturer = manufacturer
	device.LastImage = image
	device.LastOutput = output
	device.GeneratedAt = time.Now()
}

// Author returns the configured commit identity, falling back to the
// built-in defaults when unset.
func (r *Registry) Author() (name, email string) {
	if r.Preferences != nil && r.Preferences.Author != nil {
		a := r.Preferences.Author
		if a.Name != "" && a.Email != "" {
			return a.Name, a.Email
		}
	}
	return DefaultAuthorName, DefaultAuthorEmail
}
