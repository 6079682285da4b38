package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/address-resolver/app/models"
	"github.com/address-resolver/helpers/utils"
	"github.com/address-resolver/internal/quality"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ClassifyOptions tham số một lần phân loại
type ClassifyOptions struct {
	MaxRating int
	Limit     int
	Rescore   bool // resolve lại bằng index hiện tại thay vì dùng kết quả lúc chấm điểm
}

// QualityService phân loại các review bị chấm điểm thấp
type QualityService struct {
	store          ReviewStore
	classifier     *quality.Classifier
	addressService *AddressService
	metrics        *Metrics
	workers        int
	maxRating      int
	logger         *zap.Logger

	mu         sync.RWMutex
	lastReport *quality.Report
}

// NewQualityService tạo mới QualityService. store và metrics có thể nil.
func NewQualityService(store ReviewStore, classifier *quality.Classifier, addressService *AddressService, metrics *Metrics, workers, maxRating int, logger *zap.Logger) *QualityService {
	if workers <= 0 {
		workers = 4
	}
	if maxRating <= 0 {
		maxRating = 2
	}
	return &QualityService{
		store:          store,
		classifier:     classifier,
		addressService: addressService,
		metrics:        metrics,
		workers:        workers,
		maxRating:      maxRating,
		logger:         logger,
	}
}

// SubmitReview resolve lại địa chỉ và lưu cùng rating của người dùng.
func (qs *QualityService) SubmitReview(ctx context.Context, address, province, district, ward string, rating int, comment string) (*models.AddressReview, error) {
	if qs.store == nil {
		return nil, ErrNoStore
	}
	result, _, err := qs.addressService.Resolve(ctx, ResolveInput{
		Address:  address,
		Province: province,
		District: district,
		UseCache: true,
	})
	if err != nil {
		return nil, err
	}

	review := models.NewAddressReview(utils.GenerateUUID(), province, district, ward, *result, rating, comment)
	if !review.IsValidRating() {
		return nil, fmt.Errorf("rating %d ngoài khoảng %d-%d", rating, models.MinRating, models.MaxRating)
	}
	if err := qs.store.SaveReview(ctx, review); err != nil {
		return nil, err
	}
	return review, nil
}

// ClassifyStored đọc review có rating thấp từ storage rồi phân loại.
func (qs *QualityService) ClassifyStored(ctx context.Context, opts ClassifyOptions) (*quality.Report, error) {
	if qs.store == nil {
		return nil, ErrNoStore
	}
	if opts.MaxRating <= 0 {
		opts.MaxRating = qs.maxRating
	}
	reviews, err := qs.store.LowRatedReviews(ctx, opts.MaxRating, opts.Limit)
	if err != nil {
		return nil, err
	}
	return qs.ClassifyReviews(ctx, reviews, opts.Rescore)
}

// ClassifyReviews phân loại một tập review, lưu lại báo cáo gần nhất.
func (qs *QualityService) ClassifyReviews(ctx context.Context, reviews []models.AddressReview, rescore bool) (*quality.Report, error) {
	records := make([]quality.Record, len(reviews))
	if rescore {
		r := qs.addressService.Resolver()
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(qs.workers)
		for i := range reviews {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				rv := &reviews[i]
				res := r.Resolve(rv.RawAddress, rv.KnownProvince, rv.KnownDistrict)
				records[i] = quality.RecordFromResolution(rv.ID, res, rv.KnownProvince, rv.KnownDistrict, rv.KnownWard, rv.Rating)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	} else {
		for i := range reviews {
			records[i] = reviews[i].ToRecord()
		}
	}

	items, err := qs.classifier.ClassifyAll(ctx, records, qs.workers)
	if err != nil {
		return nil, err
	}
	report := qs.classifier.Summarize(items)

	if qs.metrics != nil {
		for category, n := range report.Counts {
			qs.metrics.Classifications.WithLabelValues(string(category)).Add(float64(n))
		}
	}

	qs.mu.Lock()
	qs.lastReport = &report
	qs.mu.Unlock()

	qs.logger.Info("Đã phân loại review",
		zap.Int("total", report.Total),
		zap.Bool("rescore", rescore),
		zap.String("taxonomy_version", report.TaxonomyVersion))
	return &report, nil
}

// LastReport báo cáo gần nhất, nil nếu chưa chạy.
func (qs *QualityService) LastReport() *quality.Report {
	qs.mu.RLock()
	defer qs.mu.RUnlock()
	return qs.lastReport
}
