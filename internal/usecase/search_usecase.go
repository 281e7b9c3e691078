package usecase

import (
	"context"
	"sync"
	"time"

	"qkart-storefront/internal/domain"
	"qkart-storefront/internal/search"
	"qkart-storefront/pkg/cache"
	"qkart-storefront/pkg/logger"
)

const widgetPrefix = "search:"

// searchWidget is the server-side state of one search box: its dispatcher,
// the last applied result and the live subscribers.
type searchWidget struct {
	dispatcher *search.Dispatcher[[]domain.Product]

	// release runs once after close, dropping the widget from its usecase.
	release func()

	mu          sync.Mutex
	snapshot    domain.SearchSnapshot
	hasResult   bool
	closed      bool
	nextSub     int
	subscribers map[int]chan domain.SearchSnapshot
}

func (w *searchWidget) publish(res search.Result[[]domain.Product]) {
	products := res.Value
	if products == nil {
		products = []domain.Product{}
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	w.snapshot = domain.SearchSnapshot{Seq: res.Seq, Query: res.Query, Products: products}
	w.hasResult = true
	for _, ch := range w.subscribers {
		// Keep only the newest snapshot for slow readers.
		select {
		case <-ch:
		default:
		}
		ch <- w.snapshot
	}
}

func (w *searchWidget) close() {
	w.dispatcher.Close()

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	for id, ch := range w.subscribers {
		close(ch)
		delete(w.subscribers, id)
	}
	w.mu.Unlock()

	if w.release != nil {
		w.release()
	}
}

// EvictSearchWidget releases a widget removed from the widget cache.
// Pass it as the cache's eviction hook.
func EvictSearchWidget(key string, value interface{}) {
	if w, ok := value.(*searchWidget); ok {
		w.close()
		logger.Debug().Str("key", key).Msg("Search widget released")
	}
}

type SearchOptions struct {
	QuietPeriod  time.Duration
	FetchTimeout time.Duration
	WidgetTTL    time.Duration
	Clock        search.Clock
}

type SearchUsecase struct {
	ctx     context.Context
	catalog *CatalogUsecase
	widgets cache.CacheService
	opts    SearchOptions
	mu      sync.Mutex

	// live holds every open widget by key. The cache hides an expired entry
	// before its janitor evicts it, so a replaced widget is closed from here.
	live sync.Map
}

// NewSearchUsecase creates the search usecase. widgets should be a cache whose
// eviction hook is EvictSearchWidget. ctx bounds every dispatched fetch.
func NewSearchUsecase(ctx context.Context, catalog *CatalogUsecase, widgets cache.CacheService, opts SearchOptions) *SearchUsecase {
	return &SearchUsecase{
		ctx:     ctx,
		catalog: catalog,
		widgets: widgets,
		opts:    opts,
	}
}

// Type records a keystroke in the search box identified by key.
func (uc *SearchUsecase) Type(key, text string) {
	uc.widget(key).dispatcher.OnQueryChange(text)
}

// Flush fires the pending query of key right away. It reports whether one was pending.
func (uc *SearchUsecase) Flush(key string) bool {
	w, ok := uc.lookup(key)
	if !ok {
		return false
	}
	return w.dispatcher.Flush()
}

// Snapshot returns what the search box currently shows. Before its first
// applied query that is the full catalog.
func (uc *SearchUsecase) Snapshot(ctx context.Context, key string) (domain.SearchSnapshot, error) {
	if w, ok := uc.lookup(key); ok {
		w.mu.Lock()
		snapshot, hasResult := w.snapshot, w.hasResult
		w.mu.Unlock()
		if hasResult {
			return snapshot, nil
		}
	}

	products, err := uc.catalog.ListProducts(ctx)
	if err != nil {
		return domain.SearchSnapshot{}, err
	}
	return domain.SearchSnapshot{Products: products}, nil
}

// Subscribe streams every snapshot applied for key. The channel closes when
// the widget is forgotten or expires; cancel detaches the subscriber.
func (uc *SearchUsecase) Subscribe(key string) (<-chan domain.SearchSnapshot, func()) {
	w := uc.widget(key)
	ch := make(chan domain.SearchSnapshot, 1)

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := w.nextSub
	w.nextSub++
	w.subscribers[id] = ch
	w.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			w.mu.Lock()
			defer w.mu.Unlock()
			if c, ok := w.subscribers[id]; ok {
				close(c)
				delete(w.subscribers, id)
			}
		})
	}
	return ch, cancel
}

// Touch extends the TTL of the search box of key if it is still open.
// Long-lived subscribers call it to keep their widget from expiring.
func (uc *SearchUsecase) Touch(key string) bool {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	w, ok := uc.lookup(key)
	if !ok {
		return false
	}
	uc.widgets.Set(widgetPrefix+key, w, uc.opts.WidgetTTL)
	return true
}

// Forget drops the search box of key together with its pending work.
func (uc *SearchUsecase) Forget(ctx context.Context, key string) {
	uc.widgets.Delete(widgetPrefix + key)
}

func (uc *SearchUsecase) lookup(key string) (*searchWidget, bool) {
	v, ok := uc.widgets.Get(widgetPrefix + key)
	if !ok {
		return nil, false
	}
	w, ok := v.(*searchWidget)
	return w, ok
}

// widget returns the widget of key, creating it on first use, and extends its TTL.
func (uc *SearchUsecase) widget(key string) *searchWidget {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	if w, ok := uc.lookup(key); ok {
		uc.widgets.Set(widgetPrefix+key, w, uc.opts.WidgetTTL)
		return w
	}

	// Expired but not yet evicted: Set below would overwrite it without the eviction hook.
	if old, ok := uc.live.Load(key); ok {
		old.(*searchWidget).close()
		logger.Debug().Str("key", key).Msg("Expired search widget replaced")
	}

	w := &searchWidget{subscribers: make(map[int]chan domain.SearchSnapshot)}
	w.release = func() { uc.live.CompareAndDelete(key, w) }
	w.dispatcher = search.NewDispatcher(uc.ctx, search.Options{
		QuietPeriod:  uc.opts.QuietPeriod,
		FetchTimeout: uc.opts.FetchTimeout,
		Clock:        uc.opts.Clock,
	}, uc.catalog.Search, w.publish)

	uc.live.Store(key, w)
	uc.widgets.Set(widgetPrefix+key, w, uc.opts.WidgetTTL)
	return w
}
