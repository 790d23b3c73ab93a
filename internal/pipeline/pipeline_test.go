package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/franckalain/grocerylens/internal/cache"
	"github.com/franckalain/grocerylens/internal/models"
)

type fakeResolver struct {
	calls    atomic.Int32
	products map[string]*models.ProductRecord
	err      error

	// When set, lookups signal started and then wait for release.
	started chan struct{}
	release chan struct{}
}

func (f *fakeResolver) FetchProductByBarcode(ctx context.Context, barcode string) (*models.ProductRecord, error) {
	f.calls.Add(1)
	if f.started != nil {
		f.started <- struct{}{}
		select {
		case <-f.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	if p, ok := f.products[barcode]; ok {
		return p.Clone(), nil
	}
	return nil, nil
}

func yogurt(barcode string) *models.ProductRecord {
	return &models.ProductRecord{
		Barcode:            barcode,
		Name:               "Greek Yogurt",
		Brand:              "Chobani",
		Nutrition:          models.Nutrition{ProteinG: 15, SugarG: 4},
		Ingredients:        []string{"Cultured Nonfat Milk"},
		HarmfulIngredients: []string{},
	}
}

func newTestPipeline(remote *fakeResolver, opts ...Option) (*Pipeline, *cache.MemoryStore) {
	store := cache.NewMemoryStore()
	c := cache.New(store, cache.Options{TTL: time.Hour}, zap.NewNop().Sugar())
	return New(c, remote, zap.NewNop().Sugar(), opts...), store
}

func TestResolveRemoteThenCache(t *testing.T) {
	remote := &fakeResolver{products: map[string]*models.ProductRecord{"5000": yogurt("5000")}}
	p, store := newTestPipeline(remote)
	ctx := context.Background()

	first, err := p.Resolve(ctx, "5000")
	if err != nil {
		t.Fatal(err)
	}
	if first.Source != models.SourceRemote {
		t.Errorf("first source: got %s, want remote", first.Source)
	}
	if store.Len() != 1 {
		t.Errorf("remote hit not cached, store has %d", store.Len())
	}

	second, err := p.Resolve(ctx, " 5000 ")
	if err != nil {
		t.Fatal(err)
	}
	if second.Source != models.SourceCache {
		t.Errorf("second source: got %s, want cache", second.Source)
	}
	a, _ := json.Marshal(first.Product)
	b, _ := json.Marshal(second.Product)
	if string(a) != string(b) {
		t.Errorf("cached product differs:\n first %s\nsecond %s", a, b)
	}
	if n := remote.calls.Load(); n != 1 {
		t.Errorf("remote called %d times, want 1", n)
	}
}

func TestResolveCacheTakesPrecedence(t *testing.T) {
	remote := &fakeResolver{products: map[string]*models.ProductRecord{"5000": yogurt("5000")}}
	p, _ := newTestPipeline(remote)
	ctx := context.Background()

	cached := yogurt("5000")
	cached.Name = "Cached Yogurt"
	if err := p.cache.Set(ctx, "5000", cached); err != nil {
		t.Fatal(err)
	}

	res, err := p.Resolve(ctx, "5000")
	if err != nil {
		t.Fatal(err)
	}
	if res.Source != models.SourceCache || res.Product.Name != "Cached Yogurt" {
		t.Errorf("got %s %q, want cached entry", res.Source, res.Product.Name)
	}
	if remote.calls.Load() != 0 {
		t.Error("remote consulted despite a cache hit")
	}
}

func TestResolveFallbackIsNotCached(t *testing.T) {
	p, store := newTestPipeline(&fakeResolver{})
	ctx := context.Background()

	for range 2 {
		res, err := p.Resolve(ctx, "123456789")
		if err != nil {
			t.Fatal(err)
		}
		if res.Source != models.SourceFallback {
			t.Errorf("source: got %s, want fallback", res.Source)
		}
		if res.Product.Name != "Organic Protein Bar" {
			t.Errorf("product: got %q", res.Product.Name)
		}
	}
	if store.Len() != 0 {
		t.Errorf("fallback result cached, store has %d", store.Len())
	}
}

func TestResolveUnknownBarcode(t *testing.T) {
	remote := &fakeResolver{}
	p, store := newTestPipeline(remote)

	_, err := p.Resolve(context.Background(), "000000000")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
	if remote.calls.Load() != 1 {
		t.Errorf("remote calls: %d, want 1", remote.calls.Load())
	}
	if store.Len() != 0 {
		t.Error("a miss must not write the cache")
	}
}

func TestResolveRemoteErrorFallsThrough(t *testing.T) {
	remote := &fakeResolver{err: errors.New("connection refused")}
	p, _ := newTestPipeline(remote)
	ctx := context.Background()

	res, err := p.Resolve(ctx, "987654321")
	if err != nil {
		t.Fatalf("remote failure should fall through to the dataset: %v", err)
	}
	if res.Source != models.SourceFallback {
		t.Errorf("source: got %s, want fallback", res.Source)
	}

	if _, err := p.Resolve(ctx, "000000000"); !errors.Is(err, ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}

func TestResolveInvalidBarcode(t *testing.T) {
	remote := &fakeResolver{}
	p, _ := newTestPipeline(remote)

	for _, code := range []string{"", "   ", "12 34", "abc/def", "<script>"} {
		if _, err := p.Resolve(context.Background(), code); !errors.Is(err, ErrInvalidBarcode) {
			t.Errorf("Resolve(%q): got %v, want ErrInvalidBarcode", code, err)
		}
	}
	if remote.calls.Load() != 0 {
		t.Error("invalid input reached the remote resolver")
	}
}

type brokenCache struct{}

func (brokenCache) Get(context.Context, string) (*models.ProductRecord, bool, error) {
	return nil, false, errors.New("database locked")
}

func (brokenCache) Set(context.Context, string, *models.ProductRecord) error {
	return errors.New("database locked")
}

func (brokenCache) Stats(context.Context) (models.CacheStats, error) {
	return models.CacheStats{}, errors.New("database locked")
}

func (brokenCache) Clear(context.Context) error { return errors.New("database locked") }

func TestResolveSurvivesCacheFailure(t *testing.T) {
	remote := &fakeResolver{products: map[string]*models.ProductRecord{"5000": yogurt("5000")}}
	p := New(brokenCache{}, remote, zap.NewNop().Sugar())

	res, err := p.Resolve(context.Background(), "5000")
	if err != nil {
		t.Fatalf("cache failure leaked to caller: %v", err)
	}
	if res.Source != models.SourceRemote {
		t.Errorf("source: got %s, want remote", res.Source)
	}
}

func TestResolveCoalescesConcurrentLookups(t *testing.T) {
	remote := &fakeResolver{
		products: map[string]*models.ProductRecord{"5000": yogurt("5000")},
		started:  make(chan struct{}, 8),
		release:  make(chan struct{}),
	}
	p, _ := newTestPipeline(remote)

	const n = 8
	var wg sync.WaitGroup
	results := make([]*Resolution, n)
	errs := make([]error, n)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = p.Resolve(context.Background(), "5000")
		}()
	}

	<-remote.started
	time.Sleep(20 * time.Millisecond)
	close(remote.release)
	wg.Wait()

	// Late arrivals are served by the cache, so the remote sees one lookup.
	if c := remote.calls.Load(); c != 1 {
		t.Errorf("remote called %d times, want 1", c)
	}
	for i := range n {
		if errs[i] != nil || results[i].Product.Name != "Greek Yogurt" {
			t.Errorf("caller %d: %+v, %v", i, results[i], errs[i])
		}
	}
	results[0].Product.Name = "mutated"
	for i := 1; i < n; i++ {
		if results[i].Product.Name == "mutated" {
			t.Errorf("caller %d shares a record with caller 0", i)
		}
	}
}

func TestResolveOutlivesCancelledCaller(t *testing.T) {
	remote := &fakeResolver{
		products: map[string]*models.ProductRecord{"5000": yogurt("5000")},
		started:  make(chan struct{}, 1),
		release:  make(chan struct{}),
	}
	p, store := newTestPipeline(remote)

	leaderCtx, cancel := context.WithCancel(context.Background())
	leaderErr := make(chan error, 1)
	go func() {
		_, err := p.Resolve(leaderCtx, "5000")
		leaderErr <- err
	}()
	<-remote.started

	follower := make(chan *Resolution, 1)
	followerErr := make(chan error, 1)
	go func() {
		res, err := p.Resolve(context.Background(), "5000")
		follower <- res
		followerErr <- err
	}()
	time.Sleep(20 * time.Millisecond)

	cancel()
	if err := <-leaderErr; !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled caller: got %v, want context.Canceled", err)
	}
	close(remote.release)

	res := <-follower
	if err := <-followerErr; err != nil {
		t.Fatalf("live caller lost the lookup: %v", err)
	}
	if res.Product.Name != "Greek Yogurt" {
		t.Errorf("live caller got %+v", res.Product)
	}
	if store.Len() != 1 {
		t.Error("remote hit not cached")
	}
}

func TestCacheStatsAndClear(t *testing.T) {
	remote := &fakeResolver{products: map[string]*models.ProductRecord{"5000": yogurt("5000")}}
	p, _ := newTestPipeline(remote)
	ctx := context.Background()

	p.Resolve(ctx, "5000")
	st, err := p.CacheStats(ctx)
	if err != nil || st.TotalItems != 1 {
		t.Fatalf("stats: %+v, %v", st, err)
	}
	if err := p.ClearCache(ctx); err != nil {
		t.Fatal(err)
	}
	if st, _ := p.CacheStats(ctx); st.TotalItems != 0 {
		t.Errorf("stats after clear: %+v", st)
	}
}
