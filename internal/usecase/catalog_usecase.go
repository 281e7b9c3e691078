package usecase

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"

	"qkart-storefront/internal/domain"
	"qkart-storefront/pkg/cache"
	"qkart-storefront/pkg/logger"
	"qkart-storefront/pkg/utils"
)

const catalogCacheKey = "catalog:all"

type CatalogUsecase struct {
	repo  domain.ProductRepository
	cache cache.CacheService
	ttl   time.Duration
	group singleflight.Group
}

func NewCatalogUsecase(repo domain.ProductRepository, cache cache.CacheService, ttl time.Duration) *CatalogUsecase {
	return &CatalogUsecase{
		repo:  repo,
		cache: cache,
		ttl:   ttl,
	}
}

// ListProducts returns the full catalog, served from cache while fresh.
// Concurrent misses share one backend call.
func (uc *CatalogUsecase) ListProducts(ctx context.Context) ([]domain.Product, error) {
	if cached, found := uc.cache.Get(catalogCacheKey); found {
		if products, ok := cached.([]domain.Product); ok {
			return products, nil
		}
	}

	v, err, _ := uc.group.Do(catalogCacheKey, func() (interface{}, error) {
		products, err := uc.repo.List(ctx)
		if err != nil {
			return nil, err
		}
		uc.cache.Set(catalogCacheKey, products, uc.ttl)
		logger.WithContext(ctx).Debug().Int("count", len(products)).Msg("Catalog refreshed")
		return products, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]domain.Product), nil
}

// Search returns products matching text. Blank text means "show all".
func (uc *CatalogUsecase) Search(ctx context.Context, text string) ([]domain.Product, error) {
	query := utils.NormalizeQuery(text)
	if query == "" {
		return uc.ListProducts(ctx)
	}
	return uc.repo.Search(ctx, query)
}

func (uc *CatalogUsecase) Invalidate() {
	uc.cache.Delete(catalogCacheKey)
}
