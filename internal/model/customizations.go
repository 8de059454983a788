package model

import (
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Customizations are per-project overrides keyed by formatted title.
// They are read once at the start of analyze and treated as read-only.
type Customizations struct {
	Enabled             bool                        `yaml:"is-enabled" json:"is-enabled"`
	PagesToModify       map[string]PageModification `yaml:"pages-to-modify" json:"pages-to-modify,omitempty"`
	CategoriesToAdd     map[string][]string         `yaml:"categories-to-add" json:"categories-to-add,omitempty"`
	TitleCheatsheet     map[string]string           `yaml:"title-cheatsheet" json:"title-cheatsheet,omitempty"`
	RedmineDomain       string                      `yaml:"redmine-domain" json:"redmine-domain,omitempty"`
	CurrentRevisionOnly bool                        `yaml:"current-revision-only" json:"current-revision-only"`
	CustomizedReplace   map[string]string           `yaml:"customized-replace" json:"customized-replace,omitempty"`
}

// Effective returns c when it is enabled and the zero value otherwise,
// so every other option is gated on is-enabled.
func (c Customizations) Effective() Customizations {
	if !c.Enabled {
		return Customizations{}
	}
	return c
}

// LoadCustomizations reads a customization YAML file. An empty path yields
// disabled customizations.
func LoadCustomizations(path string) (Customizations, error) {
	var c Customizations
	if path == "" {
		return c, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return c, fmt.Errorf("failed to read customizations: %w", err)
	}
	if err := yaml.Unmarshal(data, &c); err != nil {
		return c, fmt.Errorf("failed to parse customizations: %w", err)
	}
	return c, nil
}

// PageModification is either a drop marker (false) or a new title.
type PageModification struct {
	Drop   bool
	Rename string
}

// UnmarshalYAML accepts `false` or a string.
func (p *PageModification) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("pages-to-modify: expected false or a title at line %d", node.Line)
	}
	if node.Tag == "!!bool" {
		var b bool
		if err := node.Decode(&b); err != nil {
			return err
		}
		if b {
			return fmt.Errorf("pages-to-modify: true is not a valid value at line %d", node.Line)
		}
		*p = PageModification{Drop: true}
		return nil
	}
	*p = PageModification{Rename: node.Value}
	return nil
}

// MarshalJSON writes false for drops and the title otherwise.
func (p PageModification) MarshalJSON() ([]byte, error) {
	if p.Drop {
		return []byte("false"), nil
	}
	return json.Marshal(p.Rename)
}

// UnmarshalJSON accepts false or a string.
func (p *PageModification) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*p = PageModification{Rename: s}
		return nil
	}
	var b bool
	if err := json.Unmarshal(data, &b); err != nil {
		return fmt.Errorf("pages-to-modify: expected false or a title: %w", err)
	}
	if b {
		return fmt.Errorf("pages-to-modify: true is not a valid value")
	}
	*p = PageModification{Drop: true}
	return nil
}
