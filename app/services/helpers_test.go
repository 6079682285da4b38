package services

import (
	"context"
	"sort"
	"sync"
	"testing"

	"github.com/address-resolver/app/models"
	"github.com/address-resolver/internal/gazetteer/gazetteertest"
	"github.com/address-resolver/internal/parser"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

var testThresholds = models.Thresholds{High: 0.9, ReviewLow: 0.6}

func newTestAddressService(t *testing.T, cache ICacheService, suggester Suggester) (*AddressService, *Metrics) {
	t.Helper()
	resolver := parser.NewResolver(gazetteertest.Index(t), parser.DefaultResolverConfig(), nil)
	metrics := NewMetrics(prometheus.NewRegistry())
	svc := NewAddressService(resolver, cache, suggester, metrics, AddressServiceConfig{
		Thresholds:   testThresholds,
		MaxAddresses: 100,
		Workers:      4,
	}, zap.NewNop())
	return svc, metrics
}

// memoryStore cài đặt ReferenceStore và ReviewStore trong bộ nhớ cho test.
type memoryStore struct {
	mu      sync.Mutex
	units   map[string][]models.AdminUnit
	latest  string
	aliases []models.LearnedAliases
	reviews []models.AddressReview
}

func newMemoryStore() *memoryStore {
	return &memoryStore{units: make(map[string][]models.AdminUnit)}
}

func (m *memoryStore) ReplaceUnits(ctx context.Context, version string, units []models.AdminUnit) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.units[version] = append([]models.AdminUnit(nil), units...)
	m.latest = version
	return int64(len(units)), nil
}

func (m *memoryStore) LoadUnits(ctx context.Context, version string) ([]models.AdminUnit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.units[version], nil
}

func (m *memoryStore) LatestVersion(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.latest == "" {
		return "", ErrNoReference
	}
	return m.latest, nil
}

func (m *memoryStore) LearnedAliases(ctx context.Context) ([]models.LearnedAliases, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.LearnedAliases(nil), m.aliases...), nil
}

func (m *memoryStore) SaveLearnedAlias(ctx context.Context, alias *models.LearnedAliases) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.aliases = append(m.aliases, *alias)
	return nil
}

func (m *memoryStore) Counts(ctx context.Context) (*DatabaseStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return &DatabaseStats{
		AdminUnits:     int64(len(m.units[m.latest])),
		AddressReview:  int64(len(m.reviews)),
		LearnedAliases: int64(len(m.aliases)),
	}, nil
}

func (m *memoryStore) SaveReview(ctx context.Context, review *models.AddressReview) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reviews = append(m.reviews, *review)
	return nil
}

func (m *memoryStore) LowRatedReviews(ctx context.Context, maxRating int, limit int) ([]models.AddressReview, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.AddressReview
	for _, r := range m.reviews {
		if r.Rating <= maxRating {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
