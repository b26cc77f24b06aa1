package catalog

import (
	"context"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"smartdine/internal/docstore"
	"smartdine/internal/models"
)

// SeedItem is one entry of a menu seed file
type SeedItem struct {
	Name      string `yaml:"name"`
	Price     string `yaml:"price"`
	Category  string `yaml:"category"`
	Available *bool  `yaml:"available"`
	VIPOnly   bool   `yaml:"vip_only"`
}

type seedFile struct {
	Items []SeedItem `yaml:"items"`
}

// LoadSeedFile reads a YAML menu file
func LoadSeedFile(path string) ([]SeedItem, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}
	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse seed file: %w", err)
	}
	for i, item := range f.Items {
		if item.Name == "" {
			return nil, fmt.Errorf("item %d: name is required", i)
		}
		price, err := decimal.NewFromString(item.Price)
		if err != nil {
			return nil, fmt.Errorf("item %d (%s): invalid price %q", i, item.Name, item.Price)
		}
		if price.IsNegative() {
			return nil, fmt.Errorf("item %d (%s): negative price", i, item.Name)
		}
	}
	return f.Items, nil
}

// Seed writes items into the menu collection and returns their ids
func Seed(ctx context.Context, store docstore.Store, items []SeedItem) ([]string, error) {
	ids := make([]string, 0, len(items))
	for _, item := range items {
		price, err := decimal.NewFromString(item.Price)
		if err != nil {
			return ids, fmt.Errorf("invalid price for %s: %w", item.Name, err)
		}
		available := true
		if item.Available != nil {
			available = *item.Available
		}
		doc, err := store.AddDocument(ctx, models.MenuItemsCollection, models.MenuItem{
			Name:      item.Name,
			Price:     price,
			Category:  item.Category,
			Available: available,
			VIPOnly:   item.VIPOnly,
		})
		if err != nil {
			return ids, fmt.Errorf("add %s: %w", item.Name, err)
		}
		ids = append(ids, doc.ID)
	}
	return ids, nil
}
