package usecase

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"qkart-storefront/internal/domain"
	infracache "qkart-storefront/internal/infrastructure/cache"
	"qkart-storefront/internal/repository/memory"
)

type mockAuthRepository struct {
	loginResult *domain.LoginResult
	loginErr    error
	registerErr error
	registered  []domain.Credentials
}

func (m *mockAuthRepository) Login(ctx context.Context, creds domain.Credentials) (*domain.LoginResult, error) {
	if m.loginErr != nil {
		return nil, m.loginErr
	}
	if m.loginResult != nil {
		return m.loginResult, nil
	}
	return &domain.LoginResult{Token: "token-" + creds.Username, Username: creds.Username, Balance: decimal.NewFromInt(5000)}, nil
}

func (m *mockAuthRepository) Register(ctx context.Context, creds domain.Credentials) error {
	if m.registerErr != nil {
		return m.registerErr
	}
	m.registered = append(m.registered, creds)
	return nil
}

type mockProductRepository struct {
	mu       sync.Mutex
	catalog  []domain.Product
	listErr  error
	lists    int
	searches []string
}

func (m *mockProductRepository) List(ctx context.Context) ([]domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lists++
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.catalog, nil
}

func (m *mockProductRepository) Search(ctx context.Context, text string) ([]domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.searches = append(m.searches, text)
	var out []domain.Product
	for _, p := range m.catalog {
		if strings.Contains(strings.ToLower(p.Name), strings.ToLower(text)) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *mockProductRepository) Lists() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lists
}

func (m *mockProductRepository) Searches() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.searches...)
}

// mockCartRepository keeps one cart per token. Set can be held with a gate to
// simulate a slow backend response.
type mockCartRepository struct {
	mu     sync.Mutex
	carts  map[string][]domain.CartEntry
	sets   []domain.CartEntry
	gates  map[string]chan struct{}
	getErr error
	setErr error
}

func newMockCartRepository() *mockCartRepository {
	return &mockCartRepository{
		carts: make(map[string][]domain.CartEntry),
		gates: make(map[string]chan struct{}),
	}
}

func (m *mockCartRepository) Get(ctx context.Context, token string) ([]domain.CartEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	return append([]domain.CartEntry(nil), m.carts[token]...), nil
}

func (m *mockCartRepository) Set(ctx context.Context, token, productID string, quantity int) ([]domain.CartEntry, error) {
	m.mu.Lock()
	if m.setErr != nil {
		m.mu.Unlock()
		return nil, m.setErr
	}
	m.sets = append(m.sets, domain.CartEntry{ProductID: productID, Quantity: quantity})

	var next []domain.CartEntry
	found := false
	for _, e := range m.carts[token] {
		if e.ProductID == productID {
			found = true
			if quantity == 0 {
				continue
			}
			e.Quantity = quantity
		}
		next = append(next, e)
	}
	if !found && quantity > 0 {
		next = append(next, domain.CartEntry{ProductID: productID, Quantity: quantity})
	}
	m.carts[token] = next
	snapshot := append([]domain.CartEntry(nil), next...)
	gate := m.gates[productID]
	m.mu.Unlock()

	if gate != nil {
		<-gate
	}
	return snapshot, nil
}

func (m *mockCartRepository) Sets() []domain.CartEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.CartEntry(nil), m.sets...)
}

func testProduct(id, name, cost string) domain.Product {
	return domain.Product{ID: id, Name: name, Category: "Electronics", Cost: decimal.RequireFromString(cost), Rating: 4}
}

func testCatalog() []domain.Product {
	return []domain.Product{
		testProduct("p1", "iPhone XR", "100"),
		testProduct("p2", "Wireless Mouse", "20.5"),
		testProduct("p3", "Phone Case", "5"),
	}
}

func newTestCatalog(repo domain.ProductRepository) *CatalogUsecase {
	return NewCatalogUsecase(repo, infracache.NewMemoryCache(time.Minute, time.Minute), time.Minute)
}

func newTestSessions() domain.SessionRepository {
	return memory.NewSessionRepository(infracache.NewMemoryCache(time.Hour, time.Minute), time.Hour)
}
