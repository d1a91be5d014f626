package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"

	"github.com/vietddude/atelier/internal/core/domain"
)

// LoadCatalog reads the compatibility catalog from a YAML file.
func LoadCatalog(path string) (*domain.CompatibilityCatalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}

	var catalog domain.CompatibilityCatalog
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return nil, fmt.Errorf("failed to parse catalog file: %w", err)
	}

	if len(catalog.Poses) == 0 {
		return nil, fmt.Errorf("catalog defines no poses")
	}
	if len(catalog.Outfits) == 0 {
		return nil, fmt.Errorf("catalog defines no outfits")
	}
	if len(catalog.Footwear) == 0 {
		return nil, fmt.Errorf("catalog defines no footwear")
	}

	return &catalog, nil
}
