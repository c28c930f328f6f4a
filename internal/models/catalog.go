// ABOUTME: Static catalog of generative models offered for refinement
// ABOUTME: Loaded from embedded YAML or a replacement file, resolves keys to model IDs
package models

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalogYAML []byte

// ModelInfo describes one selectable model
type ModelInfo struct {
	Key         string `json:"key" yaml:"key"`
	ID          string `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
}

// Catalog is the list of models plus the default key
type Catalog struct {
	Default string      `json:"default" yaml:"default"`
	Models  []ModelInfo `json:"models" yaml:"models"`
}

// DefaultCatalog returns the embedded catalog
func DefaultCatalog() *Catalog {
	c, err := ParseCatalog(defaultCatalogYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded model catalog is invalid: %v", err))
	}
	return c
}

// LoadCatalog reads a catalog file, or returns the embedded one when path is empty
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return DefaultCatalog(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model catalog: %w", err)
	}
	return ParseCatalog(data)
}

// ParseCatalog decodes and validates catalog YAML
func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse model catalog: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks keys are unique and the default exists
func (c *Catalog) Validate() error {
	if len(c.Models) == 0 {
		return errors.New("model catalog is empty")
	}
	seen := make(map[string]bool, len(c.Models))
	for _, m := range c.Models {
		if m.Key == "" || m.ID == "" {
			return errors.New("model catalog entries need a key and an id")
		}
		if seen[m.Key] {
			return fmt.Errorf("duplicate model key %q", m.Key)
		}
		seen[m.Key] = true
	}
	if !seen[c.Default] {
		return fmt.Errorf("default model %q is not in the catalog", c.Default)
	}
	return nil
}

// Lookup finds a model by key
func (c *Catalog) Lookup(key string) (ModelInfo, bool) {
	for _, m := range c.Models {
		if strings.EqualFold(m.Key, key) {
			return m, true
		}
	}
	return ModelInfo{}, false
}

// Resolve returns the model ID for the first non-empty candidate.
// Catalog keys map to their ID; any other string is used verbatim.
// With no candidates the catalog default is used.
func (c *Catalog) Resolve(candidates ...string) string {
	for _, cand := range candidates {
		cand = strings.TrimSpace(cand)
		if cand == "" {
			continue
		}
		if m, ok := c.Lookup(cand); ok {
			return m.ID
		}
		return cand
	}
	m, _ := c.Lookup(c.Default)
	return m.ID
}
