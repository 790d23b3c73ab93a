package cache

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/franckalain/grocerylens/internal/models"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestCache(store Store, ttl time.Duration, maxEntries, memoryEntries int) (*Cache, *clock) {
	clk := &clock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	c := New(store, Options{
		TTL:           ttl,
		MaxEntries:    maxEntries,
		MemoryEntries: memoryEntries,
		Now:           clk.now,
	}, zap.NewNop().Sugar())
	return c, clk
}

func record(barcode, name string) *models.ProductRecord {
	return &models.ProductRecord{
		Barcode:     barcode,
		Name:        name,
		Ingredients: []string{"Oats", "Honey"},
	}
}

func TestCacheSetGet(t *testing.T) {
	for _, mem := range []int{0, 8} {
		c, _ := newTestCache(NewMemoryStore(), time.Hour, 0, mem)
		ctx := context.Background()

		if _, ok, err := c.Get(ctx, "111"); ok || err != nil {
			t.Fatalf("memory=%d: empty cache returned ok=%v err=%v", mem, ok, err)
		}

		want := record("111", "Granola")
		if err := c.Set(ctx, "111", want); err != nil {
			t.Fatalf("memory=%d: set: %v", mem, err)
		}
		got, ok, err := c.Get(ctx, "111")
		if err != nil || !ok {
			t.Fatalf("memory=%d: get after set: ok=%v err=%v", mem, ok, err)
		}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("memory=%d: got %+v, want %+v", mem, got, want)
		}
	}
}

func TestCacheReturnsCopies(t *testing.T) {
	c, _ := newTestCache(NewMemoryStore(), time.Hour, 0, 8)
	ctx := context.Background()

	rec := record("111", "Granola")
	c.Set(ctx, "111", rec)
	rec.Ingredients[0] = "changed by caller"

	got, _, _ := c.Get(ctx, "111")
	if got.Ingredients[0] != "Oats" {
		t.Errorf("cached record was mutated through the caller's pointer: %v", got.Ingredients)
	}
	got.Name = "changed again"
	again, _, _ := c.Get(ctx, "111")
	if again.Name != "Granola" {
		t.Errorf("cached record was mutated through a returned pointer: %q", again.Name)
	}
}

func TestCacheExpiredEntryIsMiss(t *testing.T) {
	for _, mem := range []int{0, 8} {
		store := NewMemoryStore()
		c, clk := newTestCache(store, time.Hour, 0, mem)
		ctx := context.Background()

		c.Set(ctx, "111", record("111", "Granola"))
		clk.advance(59 * time.Minute)
		if _, ok, _ := c.Get(ctx, "111"); !ok {
			t.Errorf("memory=%d: entry should still be fresh", mem)
		}

		clk.advance(2 * time.Minute)
		if _, ok, _ := c.Get(ctx, "111"); ok {
			t.Errorf("memory=%d: expired entry returned as hit", mem)
		}
		if store.Len() != 1 {
			t.Errorf("memory=%d: expired entry should stay stored until the next write, store has %d", mem, store.Len())
		}

		c.Set(ctx, "222", record("222", "Muesli"))
		if store.Len() != 1 {
			t.Errorf("memory=%d: expired entry not pruned on write, store has %d", mem, store.Len())
		}
	}
}

func TestCacheSetReplacesEntry(t *testing.T) {
	c, clk := newTestCache(NewMemoryStore(), time.Hour, 0, 8)
	ctx := context.Background()

	c.Set(ctx, "111", record("111", "Old Name"))
	clk.advance(50 * time.Minute)
	c.Set(ctx, "111", record("111", "New Name"))
	clk.advance(20 * time.Minute)

	got, ok, _ := c.Get(ctx, "111")
	if !ok {
		t.Fatal("replacement should refresh fetchedAt")
	}
	if got.Name != "New Name" {
		t.Errorf("got %q, want New Name", got.Name)
	}
}

func TestCacheEvictsOldestBeyondCapacity(t *testing.T) {
	store := NewMemoryStore()
	c, clk := newTestCache(store, 24*time.Hour, 2, 0)
	ctx := context.Background()

	for _, code := range []string{"1", "2", "3"} {
		c.Set(ctx, code, record(code, "p"+code))
		clk.advance(time.Minute)
	}

	if store.Len() != 2 {
		t.Fatalf("store size: got %d, want 2", store.Len())
	}
	if _, ok, _ := c.Get(ctx, "1"); ok {
		t.Error("oldest entry should have been evicted")
	}
	for _, code := range []string{"2", "3"} {
		if _, ok, _ := c.Get(ctx, code); !ok {
			t.Errorf("entry %s should still be cached", code)
		}
	}
}

func TestCacheEvictionReachesMemoryTier(t *testing.T) {
	store := NewMemoryStore()
	c, clk := newTestCache(store, time.Hour, 1, 8)
	ctx := context.Background()

	c.Set(ctx, "a", record("a", "Granola"))
	clk.advance(time.Second)
	c.Set(ctx, "b", record("b", "Muesli"))

	if _, ok, _ := c.Get(ctx, "a"); ok {
		t.Error("entry evicted from the store was served from memory")
	}
	if _, ok, _ := c.Get(ctx, "b"); !ok {
		t.Error("newest entry missing")
	}
	if st, _ := c.Stats(ctx); st.TotalItems != 1 {
		t.Errorf("stats: got %+v, want 1 item", st)
	}
}

func TestCacheStats(t *testing.T) {
	c, clk := newTestCache(NewMemoryStore(), time.Hour, 0, 8)
	ctx := context.Background()

	st, err := c.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if st != (models.CacheStats{}) {
		t.Errorf("empty stats: got %+v", st)
	}

	c.Set(ctx, "1", record("1", "a"))
	clk.advance(10 * time.Minute)
	c.Set(ctx, "2", record("2", "b"))
	clk.advance(5 * time.Minute)

	st, err = c.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	want := models.CacheStats{TotalItems: 2, OldestEntryAge: 15 * time.Minute, NewestEntryAge: 5 * time.Minute}
	if st != want {
		t.Errorf("stats: got %+v, want %+v", st, want)
	}

	// Entry "1" leaves the live set once it expires.
	clk.advance(50 * time.Minute)
	st, _ = c.Stats(ctx)
	if st.TotalItems != 1 || st.OldestEntryAge != 55*time.Minute {
		t.Errorf("stats after expiry: got %+v", st)
	}
}

func TestCacheClear(t *testing.T) {
	store := NewMemoryStore()
	c, _ := newTestCache(store, time.Hour, 0, 8)
	ctx := context.Background()

	c.Set(ctx, "1", record("1", "a"))
	c.Set(ctx, "2", record("2", "b"))
	if err := c.Clear(ctx); err != nil {
		t.Fatal(err)
	}

	if store.Len() != 0 {
		t.Errorf("store not emptied: %d entries", store.Len())
	}
	if _, ok, _ := c.Get(ctx, "1"); ok {
		t.Error("memory tier still served a cleared entry")
	}
	if st, _ := c.Stats(ctx); st.TotalItems != 0 {
		t.Errorf("stats after clear: %+v", st)
	}
}

var errDisk = errors.New("disk unavailable")

type failingStore struct {
	*MemoryStore
	failGet, failPut bool
}

func (s *failingStore) GetCacheEntry(ctx context.Context, barcode string) (*models.CacheEntry, error) {
	if s.failGet {
		return nil, errDisk
	}
	return s.MemoryStore.GetCacheEntry(ctx, barcode)
}

func (s *failingStore) PutCacheEntry(ctx context.Context, e *models.CacheEntry) error {
	if s.failPut {
		return errDisk
	}
	return s.MemoryStore.PutCacheEntry(ctx, e)
}

func TestCacheStoreErrors(t *testing.T) {
	store := &failingStore{MemoryStore: NewMemoryStore(), failGet: true, failPut: true}
	c, _ := newTestCache(store, time.Hour, 0, 8)
	ctx := context.Background()

	if err := c.Set(ctx, "1", record("1", "a")); !errors.Is(err, errDisk) {
		t.Errorf("set: got %v, want errDisk", err)
	}
	_, ok, err := c.Get(ctx, "1")
	if ok {
		t.Error("failed write must not be served from memory")
	}
	if !errors.Is(err, errDisk) {
		t.Errorf("get: got %v, want errDisk", err)
	}
}

func TestCacheSetNilRecord(t *testing.T) {
	c, _ := newTestCache(NewMemoryStore(), time.Hour, 0, 0)
	if err := c.Set(context.Background(), "1", nil); err == nil {
		t.Error("expected error for nil record")
	}
}
