package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"qkart-storefront/internal/domain"
	"qkart-storefront/pkg/cache"
	"qkart-storefront/pkg/logger"
)

const cartStatePrefix = "cart:"

// cartState is the last applied backend cart for one session. Every backend
// call gets a sequence number; only a response newer than the applied one
// replaces the snapshot.
type cartState struct {
	mu      sync.Mutex
	issued  uint64
	applied uint64
	loaded  bool
	entries []domain.CartEntry
}

func (s *cartState) issue() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.issued++
	return s.issued
}

// apply stores entries if seq is newer than the applied snapshot and returns
// the snapshot in effect afterwards.
func (s *cartState) apply(seq uint64, entries []domain.CartEntry) ([]domain.CartEntry, uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if seq <= s.applied {
		return s.entries, s.applied, false
	}
	s.applied = seq
	s.loaded = true
	s.entries = entries
	return entries, seq, true
}

func (s *cartState) current() ([]domain.CartEntry, uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entries, s.applied, s.loaded
}

type CartUsecase struct {
	carts       domain.CartRepository
	catalog     *CatalogUsecase
	state       cache.CacheService
	stateTTL    time.Duration
	maxQuantity int
}

func NewCartUsecase(carts domain.CartRepository, catalog *CatalogUsecase, state cache.CacheService, stateTTL time.Duration, maxQuantity int) *CartUsecase {
	return &CartUsecase{
		carts:       carts,
		catalog:     catalog,
		state:       state,
		stateTTL:    stateTTL,
		maxQuantity: maxQuantity,
	}
}

// ViewCart fetches the cart from the backend and materializes it against the catalog.
func (uc *CartUsecase) ViewCart(ctx context.Context, sess *domain.Session) (*domain.CartView, error) {
	entries, seq, err := uc.fetch(ctx, sess)
	if err != nil {
		return nil, err
	}
	return uc.materialize(ctx, sess, entries, seq)
}

// AddToCart puts one unit of productID in the cart. A product already in the
// cart is rejected; quantity changes go through ChangeQuantity.
func (uc *CartUsecase) AddToCart(ctx context.Context, sess *domain.Session, productID string) (*domain.CartView, error) {
	if productID == "" {
		return nil, domain.NewError(domain.ErrValidation, domain.MsgProductIDRequired)
	}

	entries, err := uc.entries(ctx, sess)
	if err != nil {
		return nil, err
	}
	if domain.ContainsProduct(entries, productID) {
		return nil, domain.NewError(domain.ErrAlreadyInCart, domain.MsgAlreadyInCart)
	}

	return uc.set(ctx, sess, productID, 1)
}

// ChangeQuantity adjusts a cart item by delta. Reaching zero removes it.
func (uc *CartUsecase) ChangeQuantity(ctx context.Context, sess *domain.Session, productID string, delta int) (*domain.CartView, error) {
	if productID == "" {
		return nil, domain.NewError(domain.ErrValidation, domain.MsgProductIDRequired)
	}

	entries, err := uc.entries(ctx, sess)
	if err != nil {
		return nil, err
	}
	entry, ok := domain.FindEntry(entries, productID)
	if !ok {
		return nil, domain.NewError(domain.ErrNotFound, domain.MsgNotInCart)
	}

	next := domain.NextQuantity(entry.Quantity, delta)
	if next > uc.maxQuantity {
		return nil, domain.NewError(domain.ErrValidation, domain.MsgQuantityExceeded)
	}

	return uc.set(ctx, sess, productID, next)
}

// Forget drops the cart snapshot kept for a session.
func (uc *CartUsecase) Forget(ctx context.Context, sessionID string) {
	uc.state.Delete(cartStatePrefix + sessionID)
}

func (uc *CartUsecase) entries(ctx context.Context, sess *domain.Session) ([]domain.CartEntry, error) {
	if entries, _, loaded := uc.stateFor(sess.ID).current(); loaded {
		return entries, nil
	}
	entries, _, err := uc.fetch(ctx, sess)
	return entries, err
}

func (uc *CartUsecase) fetch(ctx context.Context, sess *domain.Session) ([]domain.CartEntry, uint64, error) {
	state := uc.stateFor(sess.ID)
	seq := state.issue()

	entries, err := uc.carts.Get(ctx, sess.Token)
	if err != nil {
		return nil, 0, err
	}
	entries, applied := uc.applyResponse(ctx, state, seq, entries)
	return entries, applied, nil
}

func (uc *CartUsecase) set(ctx context.Context, sess *domain.Session, productID string, quantity int) (*domain.CartView, error) {
	state := uc.stateFor(sess.ID)
	seq := state.issue()

	entries, err := uc.carts.Set(ctx, sess.Token, productID, quantity)
	if err != nil {
		return nil, err
	}
	entries, applied := uc.applyResponse(ctx, state, seq, entries)
	return uc.materialize(ctx, sess, entries, applied)
}

func (uc *CartUsecase) applyResponse(ctx context.Context, state *cartState, seq uint64, entries []domain.CartEntry) ([]domain.CartEntry, uint64) {
	current, applied, ok := state.apply(seq, entries)
	if !ok {
		logger.WithContext(ctx).Debug().
			Uint64("seq", seq).
			Uint64("applied", applied).
			Msg("Stale cart response discarded")
	}
	return current, applied
}

func (uc *CartUsecase) materialize(ctx context.Context, sess *domain.Session, entries []domain.CartEntry, seq uint64) (*domain.CartView, error) {
	catalog, err := uc.catalog.ListProducts(ctx)
	if err != nil {
		return nil, err
	}

	items, missing := domain.MaterializeReport(entries, catalog)
	if len(missing) > 0 {
		err := domain.NewError(domain.ErrDataIntegrity, fmt.Sprintf("cart references %d unknown products", len(missing)))
		logger.WithContext(ctx).Warn().
			Err(err).
			Str("session_id", sess.ID).
			Strs("product_ids", missing).
			Msg("Cart entries dropped during materialization")
	}
	if missing == nil {
		missing = []string{}
	}

	return &domain.CartView{
		Items:             items,
		Total:             domain.TotalValue(items),
		MissingProductIDs: missing,
		Seq:               seq,
	}, nil
}

func (uc *CartUsecase) stateFor(sessionID string) *cartState {
	key := cartStatePrefix + sessionID
	for {
		if v, ok := uc.state.Get(key); ok {
			if s, ok := v.(*cartState); ok {
				uc.state.Set(key, s, uc.stateTTL)
				return s
			}
			uc.state.Delete(key)
		}
		s := &cartState{}
		if uc.state.Add(key, s, uc.stateTTL) {
			return s
		}
	}
}
