// Package skins loads the messenger skin catalogue.
package skins

import (
	_ "embed"
	"errors"
	"fmt"
	"math/rand"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var catalogYAML []byte

// Skin is the look and voice of a messenger.
type Skin struct {
	ID          string `yaml:"id" json:"id"`
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description" json:"description"`
	Personality string `yaml:"personality" json:"personality"`
	Greeting    string `yaml:"greeting" json:"greeting"`
	Color       string `yaml:"color" json:"color"`
}

// Catalog is an ordered, id-indexed set of skins.
type Catalog struct {
	skins []Skin
	byID  map[string]int
}

// Parse decodes a catalogue document.
func Parse(data []byte) (*Catalog, error) {
	var doc struct {
		Skins []Skin `yaml:"skins"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse skin catalog: %w", err)
	}
	if len(doc.Skins) == 0 {
		return nil, errors.New("skin catalog is empty")
	}

	c := &Catalog{skins: doc.Skins, byID: make(map[string]int, len(doc.Skins))}
	for i, s := range doc.Skins {
		if s.ID == "" {
			return nil, fmt.Errorf("skin %d has no id", i)
		}
		if _, dup := c.byID[s.ID]; dup {
			return nil, fmt.Errorf("duplicate skin id %q", s.ID)
		}
		c.byID[s.ID] = i
	}
	return c, nil
}

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
)

// Default returns the embedded catalogue. It panics if the embedded file is
// malformed, which the package tests rule out.
func Default() *Catalog {
	defaultOnce.Do(func() {
		c, err := Parse(catalogYAML)
		if err != nil {
			panic(err)
		}
		defaultCatalog = c
	})
	return defaultCatalog
}

// All returns the skins in catalogue order.
func (c *Catalog) All() []Skin {
	out := make([]Skin, len(c.skins))
	copy(out, c.skins)
	return out
}

// Get looks up a skin by id.
func (c *Catalog) Get(id string) (Skin, bool) {
	i, ok := c.byID[id]
	if !ok {
		return Skin{}, false
	}
	return c.skins[i], true
}

// GetOrDefault falls back to the first skin for unknown ids, including
// the legacy "default_messenger".
func (c *Catalog) GetOrDefault(id string) Skin {
	if s, ok := c.Get(id); ok {
		return s
	}
	return c.skins[0]
}

// RandomID picks a skin id uniformly.
func (c *Catalog) RandomID() string {
	return c.skins[rand.Intn(len(c.skins))].ID
}
