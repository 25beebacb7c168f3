package vcpkg

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// PortsDir is the registry directory holding one subdirectory per port
const PortsDir = "ports"

var portNamePattern = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

// ValidName reports whether name is a well formed port name
func ValidName(name string) bool {
	return portNamePattern.MatchString(name)
}

// ParsePortPath extracts the port name from a registry path of the form
// ports/<name>/... It returns false for any other shape.
func ParsePortPath(p string) (string, bool) {
	parts := strings.Split(strings.TrimPrefix(p, "/"), "/")
	if len(parts) < 3 || parts[0] != PortsDir || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// Port is a parsed vcpkg.json manifest
type Port struct {
	Name         string             `json:"name"`
	Version      string             `json:"version"`
	VersionKind  string             `json:"version_kind,omitempty"`
	PortVersion  int                `json:"port_version,omitempty"`
	Description  string             `json:"description,omitempty"`
	Homepage     string             `json:"homepage,omitempty"`
	License      string             `json:"license,omitempty"`
	Supports     string             `json:"supports,omitempty"`
	Dependencies []Dependency       `json:"dependencies,omitempty"`
	Features     map[string]Feature `json:"features,omitempty"`

	// Stale is set when the port was served from a snapshot because the
	// registry could not be reached
	Stale bool `json:"-"`
}

// HasDescription reports whether the manifest carries a description
func (p *Port) HasDescription() bool {
	return strings.TrimSpace(p.Description) != ""
}

// HasHomepage reports whether the manifest carries a homepage URL
func (p *Port) HasHomepage() bool {
	return strings.TrimSpace(p.Homepage) != ""
}

// FeatureNames returns the declared feature names in sorted order
func (p *Port) FeatureNames() []string {
	names := make([]string, 0, len(p.Features))
	for name := range p.Features {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Dependency is a manifest dependency. In vcpkg.json it is either a bare
// port name or an object.
type Dependency struct {
	Name     string   `json:"name"`
	Features []string `json:"features,omitempty"`
	Host     bool     `json:"host,omitempty"`
	Platform string   `json:"platform,omitempty"`
}

func (d *Dependency) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		*d = Dependency{Name: name}
		return nil
	}

	var obj struct {
		Name            string            `json:"name"`
		Features        []json.RawMessage `json:"features"`
		Host            bool              `json:"host"`
		Platform        string            `json:"platform"`
		DefaultFeatures *bool             `json:"default-features"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("dependency must be a string or an object: %w", err)
	}
	if obj.Name == "" {
		return fmt.Errorf("dependency object without name")
	}

	*d = Dependency{Name: obj.Name, Host: obj.Host, Platform: obj.Platform}
	for _, raw := range obj.Features {
		feature, err := featureRefName(raw)
		if err != nil {
			return err
		}
		d.Features = append(d.Features, feature)
	}
	return nil
}

// featureRefName accepts "feature" or {"name": "feature", "platform": ...}
func featureRefName(raw json.RawMessage) (string, error) {
	var name string
	if err := json.Unmarshal(raw, &name); err == nil {
		return name, nil
	}
	var obj struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil || obj.Name == "" {
		return "", fmt.Errorf("invalid dependency feature %s", string(raw))
	}
	return obj.Name, nil
}

// Feature is an optional port feature
type Feature struct {
	Description  string       `json:"description,omitempty"`
	Dependencies []Dependency `json:"dependencies,omitempty"`
	Supports     string       `json:"supports,omitempty"`
}

func (f *Feature) UnmarshalJSON(data []byte) error {
	var raw struct {
		Description  json.RawMessage `json:"description"`
		Dependencies []Dependency    `json:"dependencies"`
		Supports     string          `json:"supports"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	desc, err := textOrLines(raw.Description)
	if err != nil {
		return fmt.Errorf("feature description: %w", err)
	}
	*f = Feature{Description: desc, Dependencies: raw.Dependencies, Supports: raw.Supports}
	return nil
}

// manifest mirrors the on-disk vcpkg.json shape
type manifest struct {
	Name          string             `json:"name"`
	Version       string             `json:"version"`
	VersionSemver string             `json:"version-semver"`
	VersionDate   string             `json:"version-date"`
	VersionString string             `json:"version-string"`
	PortVersion   int                `json:"port-version"`
	Description   json.RawMessage    `json:"description"`
	Homepage      string             `json:"homepage"`
	License       *string            `json:"license"`
	Supports      string             `json:"supports"`
	Dependencies  []Dependency       `json:"dependencies"`
	Features      map[string]Feature `json:"features"`
}

// ParseManifest decodes a vcpkg.json document
func ParseManifest(data []byte) (*Port, error) {
	var m manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	if m.Name == "" {
		return nil, fmt.Errorf("manifest has no name")
	}

	desc, err := textOrLines(m.Description)
	if err != nil {
		return nil, fmt.Errorf("manifest description: %w", err)
	}

	port := &Port{
		Name:         m.Name,
		PortVersion:  m.PortVersion,
		Description:  desc,
		Homepage:     m.Homepage,
		Supports:     m.Supports,
		Dependencies: m.Dependencies,
		Features:     m.Features,
	}
	if m.License != nil {
		port.License = *m.License
	}

	switch {
	case m.Version != "":
		port.Version, port.VersionKind = m.Version, "version"
	case m.VersionSemver != "":
		port.Version, port.VersionKind = m.VersionSemver, "version-semver"
	case m.VersionDate != "":
		port.Version, port.VersionKind = m.VersionDate, "version-date"
	case m.VersionString != "":
		port.Version, port.VersionKind = m.VersionString, "version-string"
	}

	return port, nil
}

// textOrLines decodes a JSON string or array of strings; arrays are joined
// with newlines. Absent and null values yield "".
func textOrLines(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var lines []string
	if err := json.Unmarshal(raw, &lines); err != nil {
		return "", fmt.Errorf("expected string or array of strings")
	}
	return strings.Join(lines, "\n"), nil
}

// VersionMatches reports whether the port satisfies the requested version.
// want may carry a port-version suffix ("1.2.3#2"). Versions are compared as
// semantic versions when both sides parse, as strings otherwise.
func VersionMatches(p *Port, want string) bool {
	want = strings.TrimSpace(want)
	if want == "" {
		return true
	}

	if base, suffix, ok := strings.Cut(want, "#"); ok {
		if suffix != fmt.Sprint(p.PortVersion) {
			return false
		}
		want = base
	}

	have, errHave := semver.NewVersion(p.Version)
	wanted, errWant := semver.NewVersion(want)
	if errHave == nil && errWant == nil {
		return have.Equal(wanted)
	}
	return strings.TrimPrefix(p.Version, "v") == strings.TrimPrefix(want, "v")
}
