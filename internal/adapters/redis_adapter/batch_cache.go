// internal/adapters/redis_adapter/batch_cache.go
package redis_a

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/ammerola/shelfstock-be/internal/core/domain"
	"github.com/ammerola/shelfstock-be/internal/core/ports"
)

// ProductKey is the cache key of a product with its batches.
func ProductKey(productID string) string {
	return BuildKey(PrefixProduct, productID)
}

// BatchesKey is the cache key of a product's FEFO-ordered batch list.
func BatchesKey(productID string) string {
	return BuildKey(PrefixProduct, productID, "batches")
}

// ExpiryReportKey is the cache key of the expiring batch report for a day.
func ExpiryReportKey(day time.Time) string {
	return BuildKey(PrefixReport, "expiring", day.UTC().Format("2006-01-02"))
}

// ExpiryReportPattern matches the expiring batch report of every day.
func ExpiryReportPattern() string {
	return BuildKey(PrefixReport, "expiring", "*")
}

// LowStockAlertKey guards against repeating a low stock alert.
func LowStockAlertKey(productID string) string {
	return BuildKey(PrefixAlert, "low-stock", productID)
}

// SoldCounterKey counts units sold per product per day.
func SoldCounterKey(productID string, day time.Time) string {
	return BuildKey(PrefixStats, "sold", productID, day.UTC().Format("2006-01-02"))
}

// sharedReadTimeout bounds a store read shared by concurrent cache misses.
const sharedReadTimeout = 5 * time.Second

// CachedBatchStore serves product and batch reads from Redis and passes every
// write through to the wrapped store, dropping the cached entries afterwards.
// Concurrent misses for the same key share one store read.
type CachedBatchStore struct {
	store  ports.BatchStore
	cache  ports.CacheRepository
	ttl    time.Duration
	group  singleflight.Group
	logger *slog.Logger
}

var (
	_ ports.BatchStore       = (*CachedBatchStore)(nil)
	_ ports.CacheInvalidator = (*CachedBatchStore)(nil)
)

// NewCachedBatchStore wraps store with a read-through cache
func NewCachedBatchStore(store ports.BatchStore, cache ports.CacheRepository, ttl time.Duration, logger *slog.Logger) *CachedBatchStore {
	return &CachedBatchStore{
		store:  store,
		cache:  cache,
		ttl:    ttl,
		logger: logger.With(slog.String("component", "batch_cache")),
	}
}

func (s *CachedBatchStore) GetProduct(ctx context.Context, productID uuid.UUID) (*domain.Product, error) {
	key := ProductKey(productID.String())

	var cached domain.Product
	if s.lookup(ctx, key, &cached) {
		return &cached, nil
	}

	v, err, _ := s.group.Do(key, func() (interface{}, error) {
		// waiters share this read, so one caller going away must not fail it
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedReadTimeout)
		defer cancel()

		product, err := s.store.GetProduct(ctx, productID)
		if err != nil {
			return nil, err
		}
		s.fill(ctx, key, product)
		return product, nil
	})
	if err != nil {
		return nil, err
	}
	return cloneProduct(v.(*domain.Product)), nil
}

func (s *CachedBatchStore) GetBatchesForProduct(ctx context.Context, productID uuid.UUID) ([]domain.Batch, error) {
	key := BatchesKey(productID.String())

	var cached []domain.Batch
	if s.lookup(ctx, key, &cached) {
		return cached, nil
	}

	v, err, _ := s.group.Do(key, func() (interface{}, error) {
		// waiters share this read, so one caller going away must not fail it
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedReadTimeout)
		defer cancel()

		batches, err := s.store.GetBatchesForProduct(ctx, productID)
		if err != nil {
			return nil, err
		}
		s.fill(ctx, key, batches)
		return batches, nil
	})
	if err != nil {
		return nil, err
	}
	return append([]domain.Batch(nil), v.([]domain.Batch)...), nil
}

func (s *CachedBatchStore) CreateProduct(ctx context.Context, product *domain.Product) error {
	if err := s.store.CreateProduct(ctx, product); err != nil {
		return err
	}
	s.drop(ctx, product.ID)
	return nil
}

func (s *CachedBatchStore) ApplyDeduction(ctx context.Context, productID uuid.UUID, deltas []domain.BatchDelta) error {
	err := s.store.ApplyDeduction(ctx, productID, deltas)
	if err == nil {
		s.drop(ctx, productID)
	}
	return err
}

func (s *CachedBatchStore) RestoreDeduction(ctx context.Context, productID uuid.UUID, deltas []domain.BatchDelta) error {
	err := s.store.RestoreDeduction(ctx, productID, deltas)
	if err == nil {
		s.drop(ctx, productID)
	}
	return err
}

func (s *CachedBatchStore) AddBatch(ctx context.Context, productID uuid.UUID, batch domain.NewBatch) (*domain.Batch, error) {
	b, err := s.store.AddBatch(ctx, productID, batch)
	if err != nil {
		return nil, err
	}
	s.drop(ctx, productID)
	if b.ExpiryDate != nil {
		if err := s.InvalidateExpiryReports(ctx); err != nil {
			s.logger.WarnContext(ctx, "failed to drop expiry reports",
				slog.String("product_id", productID.String()),
				slog.String("error", err.Error()))
		}
	}
	return b, nil
}

// ListExpiringBatches is not cached; the expiry scan caches its own report.
func (s *CachedBatchStore) ListExpiringBatches(ctx context.Context, before time.Time) ([]domain.ExpiringBatch, error) {
	return s.store.ListExpiringBatches(ctx, before)
}

// InvalidateProduct drops every cached view of the product
func (s *CachedBatchStore) InvalidateProduct(ctx context.Context, productID string) error {
	return s.cache.Delete(ctx, ProductKey(productID), BatchesKey(productID))
}

// InvalidateExpiryReports drops the cached expiring batch reports
func (s *CachedBatchStore) InvalidateExpiryReports(ctx context.Context) error {
	return s.cache.DeletePattern(ctx, ExpiryReportPattern())
}

func (s *CachedBatchStore) lookup(ctx context.Context, key string, dest interface{}) bool {
	err := s.cache.Get(ctx, key, dest)
	if err == nil {
		return true
	}
	if !errors.Is(err, ErrCacheMiss) {
		s.logger.WarnContext(ctx, "cache read failed, falling back to store",
			slog.String("key", key),
			slog.String("error", err.Error()))
	}
	return false
}

func (s *CachedBatchStore) fill(ctx context.Context, key string, value interface{}) {
	if err := s.cache.SetWithTTL(ctx, key, value, s.ttl); err != nil {
		s.logger.WarnContext(ctx, "failed to fill cache",
			slog.String("key", key),
			slog.String("error", err.Error()))
	}
}

func (s *CachedBatchStore) drop(ctx context.Context, productID uuid.UUID) {
	if err := s.InvalidateProduct(ctx, productID.String()); err != nil {
		s.logger.WarnContext(ctx, "failed to invalidate product cache",
			slog.String("product_id", productID.String()),
			slog.String("error", err.Error()))
	}
}

func cloneProduct(p *domain.Product) *domain.Product {
	cp := *p
	cp.Batches = append([]domain.Batch(nil), p.Batches...)
	return &cp
}
