package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

// Product is an immutable catalog entry sourced from the backend, keyed by ID.
type Product struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Category string          `json:"category"`
	Cost     decimal.Decimal `json:"cost"`
	Rating   int             `json:"rating"` // 0-5
	ImageURL string          `json:"imageUrl"`
}

// --- Interfaces ---

type ProductRepository interface {
	// List returns the full catalog.
	List(ctx context.Context) ([]Product, error)
	// Search returns products matching text. Backend misses (404/500) yield an empty slice.
	Search(ctx context.Context, text string) ([]Product, error)
}

// IndexByID maps each product id to its first occurrence in the catalog.
func IndexByID(catalog []Product) map[string]Product {
	index := make(map[string]Product, len(catalog))
	for _, p := range catalog {
		if _, exists := index[p.ID]; exists {
			continue
		}
		index[p.ID] = p
	}
	return index
}
