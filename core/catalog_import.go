package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

const maxImportSize = 1 * 1024 * 1024

// CatalogImportDoc is the YAML document accepted by the admin bulk import.
// Categories and merchants are created first so products can refer to them
// by name within the same document.
type CatalogImportDoc struct {
	Categories []struct {
		Name string `yaml:"name"`
		Slug string `yaml:"slug"`
	} `yaml:"categories"`
	Merchants []struct {
		Name       string `yaml:"name"`
		WebsiteURL string `yaml:"website_url"`
		LogoURL    string `yaml:"logo_url"`
	} `yaml:"merchants"`
	Products []struct {
		Name        string `yaml:"name"`
		BrandName   string `yaml:"brand_name"`
		Description string `yaml:"description"`
		ImageURL    string `yaml:"image_url"`
		Category    string `yaml:"category"`
	} `yaml:"products"`
}

// CatalogImportResult reports what was created and what was skipped.
type CatalogImportResult struct {
	CategoriesCreated int      `json:"categories_created"`
	MerchantsCreated  int      `json:"merchants_created"`
	ProductsCreated   int      `json:"products_created"`
	Skipped           []string `json:"skipped,omitempty"`
}

// ParseCatalogDoc validates and decodes a catalog YAML document.
func ParseCatalogDoc(data []byte) (CatalogImportDoc, error) {
	if len(data) == 0 {
		return CatalogImportDoc{}, errors.New("empty catalog document")
	}
	if len(data) > maxImportSize {
		return CatalogImportDoc{}, errors.New("catalog document too large")
	}

	var doc CatalogImportDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return CatalogImportDoc{}, fmt.Errorf("invalid yaml: %w", err)
	}

	if len(doc.Categories) == 0 && len(doc.Merchants) == 0 && len(doc.Products) == 0 {
		return CatalogImportDoc{}, errors.New("catalog document has no entries")
	}

	for i, c := range doc.Categories {
		if strings.TrimSpace(c.Name) == "" || strings.TrimSpace(c.Slug) == "" {
			return CatalogImportDoc{}, fmt.Errorf("categories[%d]: name and slug are required", i)
		}
	}
	for i, m := range doc.Merchants {
		if strings.TrimSpace(m.Name) == "" {
			return CatalogImportDoc{}, fmt.Errorf("merchants[%d]: name is required", i)
		}
	}
	for i, p := range doc.Products {
		if strings.TrimSpace(p.Name) == "" {
			return CatalogImportDoc{}, fmt.Errorf("products[%d]: name is required", i)
		}
		if strings.TrimSpace(p.Category) == "" {
			return CatalogImportDoc{}, fmt.Errorf("products[%d]: category is required", i)
		}
	}

	return doc, nil
}

// ImportCatalog applies a parsed document. Entries whose name already exists
// are skipped rather than treated as errors so the import can be re-run.
func ImportCatalog(ctx context.Context, doc CatalogImportDoc, categories CategoryRepository, merchants MerchantRepository, products ProductRepository) (CatalogImportResult, error) {
	var res CatalogImportResult

	for _, c := range doc.Categories {
		existing, err := categories.FindByName(ctx, c.Name)
		if err != nil {
			return res, err
		}
		if existing != nil {
			res.Skipped = append(res.Skipped, "category "+c.Name)
			continue
		}
		if _, err := categories.Create(ctx, c.Name, c.Slug); err != nil {
			return res, err
		}
		res.CategoriesCreated++
	}

	for _, m := range doc.Merchants {
		existing, err := merchants.FindByName(ctx, m.Name)
		if err != nil {
			return res, err
		}
		if existing != nil {
			res.Skipped = append(res.Skipped, "merchant "+m.Name)
			continue
		}
		if _, err := merchants.Create(ctx, m.Name, m.WebsiteURL, m.LogoURL); err != nil {
			return res, err
		}
		res.MerchantsCreated++
	}

	for _, p := range doc.Products {
		cat, err := categories.FindByName(ctx, p.Category)
		if err != nil {
			return res, err
		}
		if cat == nil {
			return res, fmt.Errorf("product %s refers to unknown category %s", p.Name, p.Category)
		}
		existing, err := products.FindByName(ctx, p.Name)
		if err != nil {
			return res, err
		}
		if existing != nil {
			res.Skipped = append(res.Skipped, "product "+p.Name)
			continue
		}
		if _, err := products.Create(ctx, Product{
			Name:        p.Name,
			BrandName:   p.BrandName,
			Description: p.Description,
			ImageURL:    p.ImageURL,
			CategoryID:  cat.ID,
		}); err != nil {
			return res, err
		}
		res.ProductsCreated++
	}

	return res, nil
}
