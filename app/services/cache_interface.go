package services

import (
	"context"
	"crypto/sha256"
	"fmt"
	"strings"

	"github.com/address-resolver/app/models"
	"github.com/address-resolver/internal/parser"
)

// CacheStats thống kê cache
type CacheStats struct {
	Backend    string  `json:"backend"`
	HitRate    float64 `json:"hit_rate"`
	TotalHits  int64   `json:"total_hits"`
	TotalMiss  int64   `json:"total_miss"`
	TotalItems int64   `json:"total_items"`
}

// ICacheService interface định nghĩa các method cần thiết cho cache.
// Key luôn có dạng "<reference_version>:<sha256>" (xem CacheKey).
type ICacheService interface {
	// Get lấy kết quả từ cache
	Get(ctx context.Context, key string) (*models.AddressResult, bool, error)

	// Set lưu kết quả vào cache
	Set(ctx context.Context, key string, result *models.AddressResult) error

	// Delete xóa một key
	Delete(ctx context.Context, key string) error

	// Clear xóa tất cả cache
	Clear(ctx context.Context) error

	// InvalidateByReferenceVersion xóa mọi entry dựng từ phiên bản dữ liệu tham chiếu đã cho
	InvalidateByReferenceVersion(ctx context.Context, version string) (int64, error)

	// GetStats lấy thống kê cache
	GetStats(ctx context.Context) (*CacheStats, error)

	// Close đóng kết nối (nếu cần)
	Close() error
}

// CacheKey sinh khóa cache từ phiên bản tham chiếu, giá trị biết trước và văn bản đã chuẩn hóa.
func CacheKey(version, knownProvince, knownDistrict, normalized string) string {
	h := sha256.New()
	for _, part := range []string{version, parser.KnownValue(knownProvince), parser.KnownValue(knownDistrict), normalized} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return fmt.Sprintf("%s:%x", version, h.Sum(nil))
}

// versionOf tách phiên bản từ khóa cache.
func versionOf(key string) string {
	if i := strings.LastIndexByte(key, ':'); i >= 0 {
		return key[:i]
	}
	return ""
}

func hitRate(hits, misses int64) float64 {
	total := hits + misses
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}
