package services

import (
	"context"
	"errors"
	"time"

	"github.com/address-resolver/app/models"
	"go.uber.org/zap"
)

// HybridCacheService cache hai tầng: L1 nhanh (Redis) + L2 bền (MongoDB)
type HybridCacheService struct {
	l1     ICacheService
	l2     ICacheService
	logger *zap.Logger
}

// NewHybridCacheService tạo mới hybrid cache service
func NewHybridCacheService(l1, l2 ICacheService, logger *zap.Logger) *HybridCacheService {
	return &HybridCacheService{
		l1:     l1,
		l2:     l2,
		logger: logger,
	}
}

// Get lấy từ L1 trước, L2 sau
func (hcs *HybridCacheService) Get(ctx context.Context, key string) (*models.AddressResult, bool, error) {
	result, found, err := hcs.l1.Get(ctx, key)
	if err != nil {
		hcs.logger.Warn("Lỗi L1 cache, fallback L2", zap.Error(err))
	} else if found {
		return result, true, nil
	}

	result, found, err = hcs.l2.Get(ctx, key)
	if err != nil || !found {
		return nil, false, err
	}

	// đồng bộ ngược lên L1
	go func() {
		bgCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := hcs.l1.Set(bgCtx, key, result); err != nil {
			hcs.logger.Warn("Lỗi sync L2->L1", zap.Error(err), zap.String("key", key))
		}
	}()

	return result, true, nil
}

// Set lưu vào cả hai tầng song song
func (hcs *HybridCacheService) Set(ctx context.Context, key string, result *models.AddressResult) error {
	return hcs.both(func(c ICacheService) error { return c.Set(ctx, key, result) })
}

// Delete xóa key khỏi cả hai tầng
func (hcs *HybridCacheService) Delete(ctx context.Context, key string) error {
	return hcs.both(func(c ICacheService) error { return c.Delete(ctx, key) })
}

// Clear xóa toàn bộ cache
func (hcs *HybridCacheService) Clear(ctx context.Context) error {
	if err := hcs.both(func(c ICacheService) error { return c.Clear(ctx) }); err != nil {
		return err
	}
	hcs.logger.Info("Đã clear hybrid cache")
	return nil
}

// InvalidateByReferenceVersion invalidate ở cả hai tầng, trả về tổng số entry đã xóa
func (hcs *HybridCacheService) InvalidateByReferenceVersion(ctx context.Context, version string) (int64, error) {
	var l1Deleted, l2Deleted int64
	err := hcs.both(func(c ICacheService) error {
		n, err := c.InvalidateByReferenceVersion(ctx, version)
		if c == hcs.l1 {
			l1Deleted = n
		} else {
			l2Deleted = n
		}
		return err
	})
	return l1Deleted + l2Deleted, err
}

// GetStats cộng thống kê của hai tầng
func (hcs *HybridCacheService) GetStats(ctx context.Context) (*CacheStats, error) {
	l1Stats, l1Err := hcs.l1.GetStats(ctx)
	l2Stats, l2Err := hcs.l2.GetStats(ctx)

	switch {
	case l1Err != nil && l2Err != nil:
		return nil, errors.Join(l1Err, l2Err)
	case l1Err != nil:
		return l2Stats, nil
	case l2Err != nil:
		return l1Stats, nil
	}

	hits := l1Stats.TotalHits + l2Stats.TotalHits
	// miss ở L1 rồi hit ở L2 không phải miss thật
	misses := l2Stats.TotalMiss
	return &CacheStats{
		Backend:    "hybrid",
		HitRate:    hitRate(hits, misses),
		TotalHits:  hits,
		TotalMiss:  misses,
		TotalItems: l2Stats.TotalItems,
	}, nil
}

// Close đóng cả hai tầng
func (hcs *HybridCacheService) Close() error {
	return hcs.both(func(c ICacheService) error { return c.Close() })
}

// both chạy fn trên hai tầng song song và gom lỗi
func (hcs *HybridCacheService) both(fn func(ICacheService) error) error {
	errCh := make(chan error, 2)
	for _, c := range []ICacheService{hcs.l1, hcs.l2} {
		go func(c ICacheService) {
			errCh <- fn(c)
		}(c)
	}

	var errs []error
	for i := 0; i < 2; i++ {
		if err := <-errCh; err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
