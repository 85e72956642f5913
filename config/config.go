package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

var (
	ErrRead  = errors.New("could not read config")
	ErrParse = errors.New("could not parse config")
)

// Configuration maps shortcut identifiers to their binds. It is never
// modified after Load; reloads produce a new value.
type Configuration struct {
	Binds map[string]Bind `yaml:"binds"`
}

// Bind attaches an optional label, trigger hint and down/up actions to a
// shortcut identifier. A Bind with no actions only reserves the shortcut.
type Bind struct {
	Description string
	Suggest     string
	OnDown      Action
	OnUp        Action
}

func (b *Bind) UnmarshalYAML(node *yaml.Node) error {
	var raw struct {
		Description string    `yaml:"description"`
		Suggest     string    `yaml:"suggest"`
		OnDown      yaml.Node `yaml:"on_down"`
		OnUp        yaml.Node `yaml:"on_up"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}

	onDown, err := decodeAction(&raw.OnDown)
	if err != nil {
		return fmt.Errorf("on_down: %w", err)
	}
	onUp, err := decodeAction(&raw.OnUp)
	if err != nil {
		return fmt.Errorf("on_up: %w", err)
	}

	*b = Bind{
		Description: raw.Description,
		Suggest:     raw.Suggest,
		OnDown:      onDown,
		OnUp:        onUp,
	}
	return nil
}

// Label is the human readable name sent to the shortcut service.
func (b Bind) Label(id string) string {
	if b.Description != "" {
		return b.Description
	}
	return id
}

// Load reads and parses the configuration at path.
func Load(path string) (*Configuration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w %s: %w", ErrRead, path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%w %s: %w", ErrParse, path, err)
	}
	return cfg, nil
}

// Parse decodes a configuration document.
func Parse(data []byte) (*Configuration, error) {
	var doc struct {
		Binds *map[string]Bind `yaml:"binds"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc.Binds == nil {
		return nil, errors.New("missing binds section")
	}

	binds := *doc.Binds
	if binds == nil {
		binds = map[string]Bind{}
	}
	return &Configuration{Binds: binds}, nil
}
