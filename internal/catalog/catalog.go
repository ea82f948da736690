package catalog

import (
	_ "embed"
	"fmt"

	"cuequiz-service/internal/domain"
	"gopkg.in/yaml.v3"
)

// DefaultID is the identifier of the compiled-in catalog.
const DefaultID = "leipzig"

//go:embed leipzig.yaml
var leipzigYAML []byte

// Default returns the compiled-in Leipzig University catalog.
func Default() domain.Catalog {
	c, err := Parse(leipzigYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded catalog: %v", err))
	}
	return c
}

// Parse decodes a YAML catalog and validates it.
func Parse(data []byte) (domain.Catalog, error) {
	var c domain.Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return domain.Catalog{}, fmt.Errorf("decode catalog: %w", err)
	}
	if err := c.Validate(); err != nil {
		return domain.Catalog{}, err
	}
	return c, nil
}

// Defaults returns the built-in catalogs keyed by id.
func Defaults() map[string]domain.Catalog {
	c := Default()
	return map[string]domain.Catalog{c.ID: c}
}
