package recording

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"echopress/internal/generation"
	"echopress/internal/services"
)

// Profile is a stored voice/style profile.
type Profile struct {
	Name             string `yaml:"name" json:"name"`
	generation.Style `yaml:",inline"`
	// Outline, when set, replaces the generated article structure.
	Outline *generation.Outline `yaml:"outline,omitempty" json:"outline,omitempty"`
}

// ProfileStore reads profiles from <dir>/<name>.yaml.
type ProfileStore struct {
	dir string
}

// NewProfileStore returns a store rooted at dir.
func NewProfileStore(dir string) *ProfileStore {
	return &ProfileStore{dir: dir}
}

// Load reads the named profile. Unknown names are input errors.
func (s *ProfileStore) Load(name string) (Profile, error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.ContainsAny(name, `/\`) || strings.HasPrefix(name, ".") {
		return Profile{}, services.Wrap(services.ErrInput, stageName, "load profile", fmt.Sprintf("invalid profile name %q", name), nil)
	}
	if s == nil || strings.TrimSpace(s.dir) == "" {
		return Profile{}, services.Wrap(services.ErrConfiguration, stageName, "load profile", "profiles_dir not configured", nil)
	}
	for _, ext := range []string{".yaml", ".yml"} {
		data, err := os.ReadFile(filepath.Join(s.dir, name+ext))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return Profile{}, services.Wrap(services.ErrConfiguration, stageName, "load profile", "read profile", err)
		}
		profile, err := ParseProfile(data)
		if err != nil {
			return Profile{}, services.Wrap(services.ErrInput, stageName, "load profile", "profile "+name, err)
		}
		if profile.Name == "" {
			profile.Name = name
		}
		return profile, nil
	}
	return Profile{}, services.Wrap(services.ErrInput, stageName, "load profile", fmt.Sprintf("profile %q not found", name), nil)
}

// List returns the profile names available in the store, sorted.
func (s *ProfileStore) List() ([]string, error) {
	if s == nil || strings.TrimSpace(s.dir) == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		names = append(names, strings.TrimSuffix(entry.Name(), ext))
	}
	sort.Strings(names)
	return names, nil
}

// ParseProfile decodes a YAML profile, rejecting unknown keys.
func ParseProfile(data []byte) (Profile, error) {
	var profile Profile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&profile); err != nil {
		return Profile{}, fmt.Errorf("decode profile: %w", err)
	}
	profile.Name = strings.TrimSpace(profile.Name)
	return profile, nil
}

// LoadOutline reads a YAML (or JSON, which YAML accepts) outline file.
func LoadOutline(path string) (*generation.Outline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, services.Wrap(services.ErrInput, stageName, "load outline", "read outline", err)
	}
	var outline generation.Outline
	if err := yaml.Unmarshal(data, &outline); err != nil {
		return nil, services.Wrap(services.ErrInput, stageName, "load outline", "decode outline", err)
	}
	if len(outline.Sections) == 0 {
		return nil, services.Wrap(services.ErrInput, stageName, "load outline", "outline has no sections", nil)
	}
	return &outline, nil
}
