package rest

import (
	"context"
	"fmt"
	"net/http"

	"qkart-storefront/internal/domain"
	"qkart-storefront/internal/infrastructure/backend"
)

type cartEntryDTO struct {
	ProductID string `json:"productId"`
	Qty       int    `json:"qty"`
}

var cartErrorKinds = map[int]error{
	http.StatusBadRequest:   domain.ErrValidation,
	http.StatusUnauthorized: domain.ErrUnauthorized,
	http.StatusNotFound:     domain.ErrNotFound,
}

type cartRepository struct {
	client *backend.Client
}

func NewCartRepository(client *backend.Client) domain.CartRepository {
	return &cartRepository{client: client}
}

func (r *cartRepository) Get(ctx context.Context, token string) ([]domain.CartEntry, error) {
	var dtos []cartEntryDTO
	err := r.client.Do(ctx, backend.Request{
		Method:     http.MethodGet,
		Path:       "cart",
		Token:      token,
		Idempotent: true,
	}, &dtos)
	if err != nil {
		return nil, fmt.Errorf("get cart: %w", mapError(err, cartErrorKinds))
	}
	return toEntries(dtos), nil
}

func (r *cartRepository) Set(ctx context.Context, token, productID string, quantity int) ([]domain.CartEntry, error) {
	var dtos []cartEntryDTO
	err := r.client.Do(ctx, backend.Request{
		Method: http.MethodPost,
		Path:   "cart",
		Token:  token,
		Body:   cartEntryDTO{ProductID: productID, Qty: quantity},
	}, &dtos)
	if err != nil {
		return nil, fmt.Errorf("set cart item %s: %w", productID, mapError(err, cartErrorKinds))
	}
	return toEntries(dtos), nil
}

func toEntries(dtos []cartEntryDTO) []domain.CartEntry {
	entries := make([]domain.CartEntry, 0, len(dtos))
	for _, d := range dtos {
		entries = append(entries, domain.CartEntry{ProductID: d.ProductID, Quantity: d.Qty})
	}
	return entries
}
