// Package config loads scenario files.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/stealthrocket/vthread/internal/scenario"
)

// Format is the encoding of a scenario file.
type Format string

const (
	YAML Format = "yaml"
	TOML Format = "toml"
)

// ErrUnknownFormat is returned when the format of a file cannot be derived
// from its extension.
var ErrUnknownFormat = errors.New("unknown scenario format")

// FormatOf returns the format of the file at path, based on its extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return YAML, nil
	case ".toml":
		return TOML, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownFormat, path)
	}
}

// Overrides replace values of a loaded scenario when set.
type Overrides struct {
	MaxTicks int
	Interval time.Duration
}

func (o Overrides) apply(s *scenario.Scenario) {
	if o.MaxTicks > 0 {
		s.MaxTicks = o.MaxTicks
	}
	if o.Interval > 0 {
		s.Interval = o.Interval
	}
}

// Load reads, decodes and validates the scenario file at path. The scenario
// name defaults to the base name of the file.
func Load(path string, overrides Overrides) (*scenario.Scenario, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario: %w", err)
	}

	s, err := Parse(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if s.Name == "" {
		s.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	overrides.apply(s)
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Parse decodes a scenario and fills in defaults. Unknown fields are
// rejected. The result is not validated.
func Parse(data []byte, format Format) (*scenario.Scenario, error) {
	s := new(scenario.Scenario)
	switch format {
	case YAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(s); err != nil {
			return nil, fmt.Errorf("decoding yaml: %w", err)
		}
	case TOML:
		md, err := toml.Decode(string(data), s)
		if err != nil {
			return nil, fmt.Errorf("decoding toml: %w", err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("decoding toml: unknown field %q", undecoded[0].String())
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	applyDefaults(s)
	return s, nil
}

func applyDefaults(s *scenario.Scenario) {
	if s.Root == "" {
		s.Root = "main"
	}
	if s.MaxTicks == 0 {
		s.MaxTicks = scenario.DefaultMaxTicks
	}
	if s.WaitForChildren == nil {
		wait := true
		s.WaitForChildren = &wait
	}
}
