// Package pipeline turns scanned barcodes into classified products and
// reconciles them against the shopper's active list.
//
// Resolution tries, in order, the product cache, the remote resolver and the
// static fallback table, stopping at the first hit. Only remote hits are
// written back to the cache. Infrastructure failures along the way are logged
// and treated as misses, so callers only ever see a product, ErrNotFound or
// ErrInvalidBarcode.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/franckalain/grocerylens/internal/fallback"
	"github.com/franckalain/grocerylens/internal/models"
	"github.com/franckalain/grocerylens/internal/resolver"
)

var (
	// ErrInvalidBarcode rejects empty or malformed input before any lookup.
	ErrInvalidBarcode = errors.New("invalid barcode")
	// ErrNotFound means no tier knows the barcode. It is a normal outcome.
	ErrNotFound = errors.New("product not found")
)

const defaultLookupTimeout = time.Minute

var barcodePattern = regexp.MustCompile(`^[0-9A-Za-z-]{1,64}$`)

// ProductCache is the cache the pipeline reads through and writes back to.
type ProductCache interface {
	Get(ctx context.Context, barcode string) (*models.ProductRecord, bool, error)
	Set(ctx context.Context, barcode string, record *models.ProductRecord) error
	Stats(ctx context.Context) (models.CacheStats, error)
	Clear(ctx context.Context) error
}

// FallbackFunc looks a barcode up in an offline dataset.
type FallbackFunc func(barcode string) (*models.ProductRecord, bool)

// Resolution is a resolved product and the tier that produced it.
type Resolution struct {
	Product *models.ProductRecord
	Source  models.Source
}

// Pipeline resolves barcodes. It is safe for concurrent use.
type Pipeline struct {
	cache    ProductCache
	remote   resolver.Resolver
	fallback FallbackFunc
	lists    ListProvider
	history  HistoryRecorder
	logger   *zap.SugaredLogger
	now      func() time.Time

	lookupTimeout time.Duration
	group         singleflight.Group

	mu       sync.Mutex
	sessions map[string]*session
}

// Option customises a Pipeline.
type Option func(*Pipeline)

// WithFallback replaces the built-in fallback table.
func WithFallback(fn FallbackFunc) Option {
	return func(p *Pipeline) { p.fallback = fn }
}

// WithLists enables shopping-list reconciliation on Scan.
func WithLists(lists ListProvider) Option {
	return func(p *Pipeline) { p.lists = lists }
}

// WithHistory records every successful scan.
func WithHistory(h HistoryRecorder) Option {
	return func(p *Pipeline) { p.history = h }
}

// WithClock overrides time.Now for scan timestamps.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// WithLookupTimeout bounds one shared resolution, which outlives the callers
// waiting on it.
func WithLookupTimeout(d time.Duration) Option {
	return func(p *Pipeline) {
		if d > 0 {
			p.lookupTimeout = d
		}
	}
}

// New creates a pipeline. The cache and remote resolver are owned by the caller.
func New(cache ProductCache, remote resolver.Resolver, logger *zap.SugaredLogger, opts ...Option) *Pipeline {
	p := &Pipeline{
		cache:    cache,
		remote:   remote,
		fallback: fallback.Lookup,
		logger:   logger,
		now:      time.Now,
		sessions: make(map[string]*session),

		lookupTimeout: defaultLookupTimeout,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// NormalizeBarcode trims input and checks it looks like a barcode.
func NormalizeBarcode(raw string) (string, error) {
	code := strings.TrimSpace(raw)
	if !barcodePattern.MatchString(code) {
		return "", fmt.Errorf("%w: %q", ErrInvalidBarcode, raw)
	}
	return code, nil
}

// Resolve turns a barcode into a product. Concurrent calls for the same
// barcode share one lookup. A caller whose ctx ends gets ctx.Err() while the
// lookup carries on for the others and still warms the cache.
func (p *Pipeline) Resolve(ctx context.Context, barcode string) (*Resolution, error) {
	code, err := NormalizeBarcode(barcode)
	if err != nil {
		return nil, err
	}

	// The shared lookup must not die with whichever caller started it, so it
	// runs detached and bounded by lookupTimeout; each caller waits on its own ctx.
	ch := p.group.DoChan(code, func() (any, error) {
		lookupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.lookupTimeout)
		defer cancel()
		return p.resolve(lookupCtx, code)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		res := r.Val.(*Resolution)
		if r.Shared {
			res = &Resolution{Product: res.Product.Clone(), Source: res.Source}
		}
		return res, nil
	}
}

func (p *Pipeline) resolve(ctx context.Context, barcode string) (*Resolution, error) {
	rec, ok, err := p.cache.Get(ctx, barcode)
	if err != nil {
		p.logger.Warnw("Cache lookup failed, continuing without cache", "barcode", barcode, "error", err)
	}
	if ok {
		p.logger.Debugw("Cache hit", "barcode", barcode)
		return &Resolution{Product: rec, Source: models.SourceCache}, nil
	}

	rec, err = p.remote.FetchProductByBarcode(ctx, barcode)
	if err != nil {
		p.logger.Warnw("Remote lookup failed", "barcode", barcode, "error", err)
	}
	if err == nil && rec != nil {
		if rec.Barcode == "" {
			rec.Barcode = barcode
		}
		// The write outlives the scan: a stopped session still warms the cache.
		if err := p.cache.Set(context.WithoutCancel(ctx), barcode, rec); err != nil {
			p.logger.Warnw("Failed to cache product", "barcode", barcode, "error", err)
		}
		p.logger.Infow("Resolved product remotely", "barcode", barcode, "name", rec.Name)
		return &Resolution{Product: rec, Source: models.SourceRemote}, nil
	}

	if p.fallback != nil {
		if rec, ok := p.fallback(barcode); ok {
			p.logger.Infow("Resolved product from fallback dataset", "barcode", barcode, "name", rec.Name)
			return &Resolution{Product: rec, Source: models.SourceFallback}, nil
		}
	}

	p.logger.Infow("Product not found", "barcode", barcode)
	return nil, fmt.Errorf("%w: %s", ErrNotFound, barcode)
}

// CacheStats reports on the product cache.
func (p *Pipeline) CacheStats(ctx context.Context) (models.CacheStats, error) {
	return p.cache.Stats(ctx)
}

// ClearCache empties the product cache.
func (p *Pipeline) ClearCache(ctx context.Context) error {
	return p.cache.Clear(ctx)
}
