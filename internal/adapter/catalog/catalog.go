// Package catalog holds the static list of target languages and the voice
// each synthesizer provider uses for them.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"github.com/pscheid92/livetranslate/internal/domain"
	"gopkg.in/yaml.v3"
)

//go:embed languages.yaml
var defaultCatalog []byte

type entry struct {
	Code   string            `yaml:"code"`
	Name   string            `yaml:"name"`
	Voices map[string]string `yaml:"voices"`
}

type document struct {
	Languages []entry `yaml:"languages"`
}

// Catalog is an immutable, ordered language list.
type Catalog struct {
	entries []entry
}

// Default returns the embedded catalog.
func Default() (*Catalog, error) {
	return Parse(defaultCatalog)
}

// Parse decodes a YAML catalog. Codes must be unique and non-empty.
func Parse(data []byte) (*Catalog, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse language catalog: %w", err)
	}
	if len(doc.Languages) == 0 {
		return nil, errors.New("language catalog is empty")
	}

	seen := make(map[string]struct{}, len(doc.Languages))
	for i, e := range doc.Languages {
		code := strings.TrimSpace(e.Code)
		if code == "" {
			return nil, fmt.Errorf("language catalog entry %d has no code", i)
		}
		if _, dup := seen[code]; dup {
			return nil, fmt.Errorf("language catalog lists %q twice", code)
		}
		seen[code] = struct{}{}
		doc.Languages[i].Code = code
	}

	return &Catalog{entries: doc.Languages}, nil
}

// For returns the languages that have a voice for provider, in catalog order.
func (c *Catalog) For(provider string) []domain.Language {
	out := make([]domain.Language, 0, len(c.entries))
	for _, e := range c.entries {
		voice, ok := e.Voices[provider]
		if !ok {
			continue
		}
		out = append(out, domain.Language{Code: e.Code, Name: e.Name, Voice: voice})
	}
	return out
}

// Voice returns the voice for code under provider.
func (c *Catalog) Voice(provider, code string) (string, bool) {
	for _, e := range c.entries {
		if e.Code == code {
			v, ok := e.Voices[provider]
			return v, ok
		}
	}
	return "", false
}
