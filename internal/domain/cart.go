package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

// --- Cart Entities ---

// CartEntry is one row of the server-side cart. Entries in a cart have unique ProductIDs.
type CartEntry struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// CartLineItem is a cart entry enriched with its catalog product. It is derived on
// every materialization and never persisted.
type CartLineItem struct {
	Product
	Quantity int             `json:"quantity"`
	Subtotal decimal.Decimal `json:"subtotal"`
}

// CartView is what the view layer renders for a cart.
type CartView struct {
	Items []CartLineItem  `json:"items"`
	Total decimal.Decimal `json:"total"`
	// MissingProductIDs lists cart entries whose product is absent from the catalog.
	MissingProductIDs []string `json:"missingProductIds"`
	Seq               uint64   `json:"seq"`
}

type CartRepository interface {
	// Get returns the user's cart entries.
	Get(ctx context.Context, token string) ([]CartEntry, error)
	// Set stores the absolute quantity for a product and returns the full updated cart.
	// A quantity of zero removes the entry.
	Set(ctx context.Context, token, productID string, quantity int) ([]CartEntry, error)
}

// --- Materialization ---

// Materialize joins cart entries against the catalog. Output order follows entries;
// entries whose product is not in the catalog are excluded.
func Materialize(entries []CartEntry, catalog []Product) []CartLineItem {
	items, _ := MaterializeReport(entries, catalog)
	return items
}

// MaterializeReport is Materialize that also returns the product ids it had to drop.
func MaterializeReport(entries []CartEntry, catalog []Product) ([]CartLineItem, []string) {
	items := make([]CartLineItem, 0, len(entries))
	var missing []string
	if len(entries) == 0 {
		return items, missing
	}

	index := IndexByID(catalog)
	for _, entry := range entries {
		product, ok := index[entry.ProductID]
		if !ok {
			missing = append(missing, entry.ProductID)
			continue
		}
		items = append(items, CartLineItem{
			Product:  product,
			Quantity: entry.Quantity,
			Subtotal: lineValue(product.Cost, entry.Quantity),
		})
	}
	return items, missing
}

// TotalValue sums cost * quantity over all items. Zero for an empty slice.
func TotalValue(items []CartLineItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(lineValue(item.Cost, item.Quantity))
	}
	return total
}

// ContainsProduct reports whether some entry references productID.
func ContainsProduct(entries []CartEntry, productID string) bool {
	_, ok := FindEntry(entries, productID)
	return ok
}

// FindEntry returns the entry for productID, if any.
func FindEntry(entries []CartEntry, productID string) (CartEntry, bool) {
	for _, entry := range entries {
		if entry.ProductID == productID {
			return entry, true
		}
	}
	return CartEntry{}, false
}

// NextQuantity applies delta to current and clamps at zero. Zero means "remove".
func NextQuantity(current, delta int) int {
	next := current + delta
	if next < 0 {
		return 0
	}
	return next
}

func lineValue(cost decimal.Decimal, quantity int) decimal.Decimal {
	return cost.Mul(decimal.NewFromInt(int64(quantity)))
}
