package services

import (
	"context"
	"testing"

	"github.com/address-resolver/internal/quality"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestQualityService(t *testing.T, store ReviewStore) (*QualityService, *Metrics) {
	t.Helper()
	tax, err := quality.DefaultTaxonomy()
	require.NoError(t, err)
	addressService, metrics := newTestAddressService(t, nil, nil)
	return NewQualityService(store, quality.NewClassifier(tax, nil), addressService, metrics, 2, 0, zap.NewNop()), metrics
}

func TestQualityService_SubmitAndClassify(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	svc, metrics := newTestQualityService(t, store)
	assert.Nil(t, svc.LastReport())

	reviews := []struct {
		address, province, district, ward string
		rating                            int
	}{
		{"CTY TNHH ABC XYZ", "", "", "", 1},
		{"Phường Hưng Bình, Thành phố Vinh, Nghệ An", "Nghệ An", "Vinh", "Hưng Bình", 2},
		{"xã thanh hưng", "/", "Thanh Chương", "Thanh Hưng", 1},
		{"Phường Lê Mao, Vinh", "Nghệ An", "Vinh", "Lê Mao", 5},
	}
	for _, r := range reviews {
		saved, err := svc.SubmitReview(ctx, r.address, r.province, r.district, r.ward, r.rating, "")
		require.NoError(t, err)
		assert.NotEmpty(t, saved.ID)
		assert.Equal(t, "fixture-2024.1", saved.ReferenceVersion)
	}

	_, err := svc.SubmitReview(ctx, "Vinh", "", "", "", 9, "")
	assert.Error(t, err)
	assert.Len(t, store.reviews, 4)

	for _, rescore := range []bool{false, true} {
		report, err := svc.ClassifyStored(ctx, ClassifyOptions{Rescore: rescore})
		require.NoError(t, err)
		assert.Equal(t, 3, report.Total, "rescore=%v", rescore)
		assert.Equal(t, 1, report.Counts[quality.CategoryOrganizationalNoise])
		assert.Equal(t, 1, report.Counts[quality.CategoryCorrectPerceivedWrong])
		assert.Equal(t, 1, report.Counts[quality.CategoryMissingGeography])
		assert.Same(t, report, svc.LastReport())
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.Classifications.WithLabelValues(string(quality.CategoryMissingGeography))))

	report, err := svc.ClassifyStored(ctx, ClassifyOptions{MaxRating: 5, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, report.Total)
}

func TestQualityService_NoStore(t *testing.T) {
	svc, _ := newTestQualityService(t, nil)

	_, err := svc.SubmitReview(context.Background(), "Vinh", "", "", "", 1, "")
	assert.ErrorIs(t, err, ErrNoStore)
	_, err = svc.ClassifyStored(context.Background(), ClassifyOptions{})
	assert.ErrorIs(t, err, ErrNoStore)
}
