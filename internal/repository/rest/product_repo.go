package rest

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/shopspring/decimal"

	"qkart-storefront/internal/domain"
	"qkart-storefront/internal/infrastructure/backend"
)

// productDTO is the backend's wire shape for a product.
type productDTO struct {
	ID       string          `json:"_id"`
	Name     string          `json:"name"`
	Category string          `json:"category"`
	Cost     decimal.Decimal `json:"cost"`
	Rating   int             `json:"rating"`
	Image    string          `json:"image"`
}

func (d productDTO) toDomain() domain.Product {
	return domain.Product{
		ID:       d.ID,
		Name:     d.Name,
		Category: d.Category,
		Cost:     d.Cost,
		Rating:   d.Rating,
		ImageURL: d.Image,
	}
}

type productRepository struct {
	client *backend.Client
}

func NewProductRepository(client *backend.Client) domain.ProductRepository {
	return &productRepository{client: client}
}

func (r *productRepository) List(ctx context.Context) ([]domain.Product, error) {
	var dtos []productDTO
	err := r.client.Do(ctx, backend.Request{
		Method:     http.MethodGet,
		Path:       "products",
		Idempotent: true,
	}, &dtos)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", mapError(err, nil))
	}
	return toProducts(dtos), nil
}

func (r *productRepository) Search(ctx context.Context, text string) ([]domain.Product, error) {
	var dtos []productDTO
	err := r.client.Do(ctx, backend.Request{
		Method:     http.MethodGet,
		Path:       "products/search",
		Query:      url.Values{"value": {text}},
		Idempotent: true,
	}, &dtos)
	if err != nil {
		// The backend answers a miss with 404 and some bad queries with 500.
		if isStatus(err, http.StatusNotFound, http.StatusInternalServerError) {
			return []domain.Product{}, nil
		}
		return nil, fmt.Errorf("search products %q: %w", text, mapError(err, nil))
	}
	return toProducts(dtos), nil
}

func toProducts(dtos []productDTO) []domain.Product {
	products := make([]domain.Product, 0, len(dtos))
	for _, d := range dtos {
		products = append(products, d.toDomain())
	}
	return products
}
