package services

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/address-resolver/app/models"
	"github.com/address-resolver/app/requests"
	"github.com/address-resolver/helpers/utils"
	"github.com/address-resolver/internal/gazetteer"
	"github.com/address-resolver/internal/parser"
	"github.com/address-resolver/internal/search"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	ErrJobNotFound   = errors.New("job không tồn tại")
	ErrJobNotDone    = errors.New("job chưa hoàn thành")
	ErrTooManyItems  = errors.New("số lượng địa chỉ vượt quá giới hạn")
	ErrNoSuggester   = errors.New("chưa cấu hình Meilisearch")
	ErrInvalidSearch = errors.New("tham số tìm kiếm không hợp lệ")
)

// Suggester nguồn gợi ý autocomplete (Meilisearch).
type Suggester interface {
	SearchByLevel(ctx context.Context, query string, level gazetteer.Level, parentID string, limit int) ([]search.Document, error)
}

// ResolveInput input của một lần resolve.
type ResolveInput struct {
	Address     string
	Province    string
	District    string
	UseCache    bool
	ReturnTrace bool
}

// AddressServiceConfig các tham số của AddressService
type AddressServiceConfig struct {
	Thresholds   models.Thresholds
	MaxAddresses int
	Workers      int
}

// AddressService service xử lý logic resolve địa chỉ
type AddressService struct {
	resolver  atomic.Pointer[parser.Resolver]
	cache     ICacheService
	suggester Suggester
	metrics   *Metrics
	cfg       AddressServiceConfig
	logger    *zap.Logger
	startTime time.Time
	processed atomic.Int64

	// Job management
	mu         sync.RWMutex
	jobs       map[string]*JobStatus
	jobResults map[string][]*models.AddressResult
}

// JobStatus trạng thái của job
type JobStatus struct {
	JobID              string    `json:"job_id"`
	Status             string    `json:"status"`
	Progress           float64   `json:"progress"`
	Processed          int       `json:"processed"`
	Total              int       `json:"total"`
	EstimatedRemaining int       `json:"estimated_remaining"`
	Message            string    `json:"message"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// JobStatus constants
const (
	JobStatusPending = "pending"
	JobStatusRunning = "running"
	JobStatusDone    = "done"
	JobStatusFailed  = "failed"
)

// NewAddressService tạo mới AddressService. cache, suggester và metrics có thể nil.
func NewAddressService(resolver *parser.Resolver, cache ICacheService, suggester Suggester, metrics *Metrics, cfg AddressServiceConfig, logger *zap.Logger) *AddressService {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.MaxAddresses <= 0 {
		cfg.MaxAddresses = 20000
	}
	as := &AddressService{
		cache:      cache,
		suggester:  suggester,
		metrics:    metrics,
		cfg:        cfg,
		logger:     logger,
		startTime:  time.Now(),
		jobs:       make(map[string]*JobStatus),
		jobResults: make(map[string][]*models.AddressResult),
	}
	as.resolver.Store(resolver)
	return as
}

// Resolver resolver hiện tại.
func (as *AddressService) Resolver() *parser.Resolver {
	return as.resolver.Load()
}

// SwapResolver thay resolver sau khi nạp lại dữ liệu tham chiếu. Request đang chạy giữ resolver cũ.
func (as *AddressService) SwapResolver(r *parser.Resolver) {
	old := as.resolver.Swap(r)
	as.logger.Info("Đã thay resolver",
		zap.String("old_version", old.Index().Version()),
		zap.String("new_version", r.Index().Version()))
}

// ReferenceVersion phiên bản dữ liệu tham chiếu đang phục vụ.
func (as *AddressService) ReferenceVersion() string {
	return as.Resolver().Index().Version()
}

// Resolve resolve một địa chỉ, có cache. Trả về cờ cache hit.
func (as *AddressService) Resolve(ctx context.Context, in ResolveInput) (*models.AddressResult, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	start := time.Now()
	r := as.Resolver()

	key := CacheKey(r.Index().Version(), in.Province, in.District, r.Normalize(in.Address))
	useCache := in.UseCache && as.cache != nil

	if useCache {
		cached, found, err := as.cache.Get(ctx, key)
		if err != nil {
			as.logger.Warn("Lỗi đọc cache, resolve trực tiếp", zap.Error(err))
		}
		if as.metrics != nil {
			as.metrics.IncrementCacheLookup(found)
		}
		if found {
			out := *cached
			if !in.ReturnTrace {
				out.Stages = nil
			}
			as.observe(&out, start)
			return &out, true, nil
		}
	}

	res := r.Resolve(in.Address, in.Province, in.District)
	out := models.NewAddressResult(res, as.cfg.Thresholds)
	out.KnownProvince = parser.KnownValue(in.Province)
	out.KnownDistrict = parser.KnownValue(in.District)
	out.RawFingerprint = key
	out.ProcessingTimeMs = float64(time.Since(start).Microseconds()) / 1000

	if as.metrics != nil {
		for _, st := range res.Stages {
			as.metrics.IncrementStage(st.Level.String(), string(st.Outcome))
		}
	}

	if useCache {
		// cache giữ bản sao có trace; out bên dưới có thể bị bỏ Stages
		entry := out
		if err := as.cache.Set(ctx, key, &entry); err != nil {
			as.logger.Warn("Lỗi ghi cache", zap.Error(err), zap.String("key", key))
		}
	}

	if !in.ReturnTrace {
		out.Stages = nil
	}
	as.observe(&out, start)

	if ce := as.logger.Check(zap.DebugLevel, "Resolved address"); ce != nil {
		ce.Write(
			zap.String("raw", in.Address),
			zap.String("status", out.Status),
			zap.Float64("confidence", out.Confidence))
	}
	return &out, false, nil
}

func (as *AddressService) observe(out *models.AddressResult, start time.Time) {
	as.processed.Add(1)
	if as.metrics != nil {
		as.metrics.ObserveResolution(out.Status, time.Since(start).Seconds())
	}
}

// EstimateBatchProcessingTime ước tính thời gian xử lý (giây)
func (as *AddressService) EstimateBatchProcessingTime(addressCount int) int {
	// ~0.5ms mỗi địa chỉ mỗi worker
	seconds := addressCount / (2000 * as.cfg.Workers)
	if seconds < 1 {
		seconds = 1
	}
	return seconds
}

// SubmitBatchJob đăng ký job và chạy nền. Trả về job ID ngay.
func (as *AddressService) SubmitBatchJob(items []requests.BatchItem, opts requests.ResolveOptions) (string, error) {
	if len(items) > as.cfg.MaxAddresses {
		return "", fmt.Errorf("%w: %d > %d", ErrTooManyItems, len(items), as.cfg.MaxAddresses)
	}

	jobID := utils.GenerateJobID()
	as.registerJob(jobID, len(items))

	go func() {
		if err := as.ProcessBatchJob(context.Background(), jobID, items, opts); err != nil {
			as.logger.Error("Batch job thất bại", zap.String("job_id", jobID), zap.Error(err))
		}
	}()
	return jobID, nil
}

func (as *AddressService) registerJob(jobID string, total int) {
	now := time.Now()
	as.mu.Lock()
	as.jobs[jobID] = &JobStatus{
		JobID:     jobID,
		Status:    JobStatusPending,
		Total:     total,
		Message:   "Đang chờ xử lý",
		CreatedAt: now,
		UpdatedAt: now,
	}
	as.mu.Unlock()
}

// ProcessBatchJob xử lý đồng bộ một job, các địa chỉ chạy song song theo cfg.Workers.
func (as *AddressService) ProcessBatchJob(ctx context.Context, jobID string, items []requests.BatchItem, opts requests.ResolveOptions) error {
	as.mu.RLock()
	_, registered := as.jobs[jobID]
	as.mu.RUnlock()
	if !registered {
		as.registerJob(jobID, len(items))
	}
	as.updateJob(jobID, func(job *JobStatus) {
		job.Status = JobStatusRunning
		job.Message = "Đang xử lý..."
	})

	if as.metrics != nil {
		as.metrics.RunningJobs.Inc()
		defer as.metrics.RunningJobs.Dec()
	}

	start := time.Now()
	results := make([]*models.AddressResult, len(items))
	var done atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(as.cfg.Workers)
	for i, item := range items {
		g.Go(func() error {
			res, _, err := as.Resolve(gctx, ResolveInput{
				Address:     item.Address,
				Province:    item.Province,
				District:    item.District,
				UseCache:    opts.CacheEnabled(),
				ReturnTrace: opts.ReturnTrace,
			})
			if err != nil {
				return err
			}
			results[i] = res

			n := int(done.Add(1))
			if n%100 == 0 || n == len(items) {
				as.updateProgress(jobID, n, start)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		as.updateJob(jobID, func(job *JobStatus) {
			job.Status = JobStatusFailed
			job.Message = "Job thất bại: " + err.Error()
		})
		return err
	}

	as.mu.Lock()
	as.jobResults[jobID] = results
	if job, ok := as.jobs[jobID]; ok {
		job.Status = JobStatusDone
		job.Processed = len(items)
		job.Progress = 1
		job.EstimatedRemaining = 0
		job.Message = "Hoàn thành xử lý"
		job.UpdatedAt = time.Now()
	}
	as.mu.Unlock()

	as.logger.Info("Batch job completed",
		zap.String("job_id", jobID),
		zap.Int("total_addresses", len(items)),
		zap.Duration("elapsed", time.Since(start)))
	return nil
}

func (as *AddressService) updateProgress(jobID string, processed int, start time.Time) {
	as.updateJob(jobID, func(job *JobStatus) {
		if processed <= job.Processed {
			return
		}
		job.Processed = processed
		if job.Total > 0 {
			job.Progress = float64(processed) / float64(job.Total)
		}
		perItem := time.Since(start) / time.Duration(processed)
		job.EstimatedRemaining = int((perItem * time.Duration(job.Total-processed)).Seconds())
	})
}

func (as *AddressService) updateJob(jobID string, fn func(*JobStatus)) {
	as.mu.Lock()
	defer as.mu.Unlock()
	if job, ok := as.jobs[jobID]; ok {
		fn(job)
		job.UpdatedAt = time.Now()
	}
}

// GetJobStatus lấy bản sao trạng thái job
func (as *AddressService) GetJobStatus(jobID string) (*JobStatus, error) {
	as.mu.RLock()
	defer as.mu.RUnlock()

	job, exists := as.jobs[jobID]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}
	copied := *job
	return &copied, nil
}

// GetJobResults lấy kết quả job
func (as *AddressService) GetJobResults(jobID string) ([]*models.AddressResult, error) {
	as.mu.RLock()
	defer as.mu.RUnlock()

	results, exists := as.jobResults[jobID]
	if exists {
		return results, nil
	}
	if _, running := as.jobs[jobID]; running {
		return nil, fmt.Errorf("%w: %s", ErrJobNotDone, jobID)
	}
	return nil, fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
}

// GetJobResultsStream lấy kết quả job dưới dạng channel để stream
func (as *AddressService) GetJobResultsStream(ctx context.Context, jobID string) (<-chan *models.AddressResult, error) {
	results, err := as.GetJobResults(jobID)
	if err != nil {
		return nil, err
	}

	resultChannel := make(chan *models.AddressResult, 100)
	go func() {
		defer close(resultChannel)
		for _, result := range results {
			select {
			case resultChannel <- result:
			case <-ctx.Done():
				return
			}
		}
	}()
	return resultChannel, nil
}

// WriteNDJSON ghi kết quả job ra w, mỗi dòng một JSON, tùy chọn gzip.
func (as *AddressService) WriteNDJSON(ctx context.Context, w io.Writer, jobID string, gzipEnabled bool) (int, error) {
	stream, err := as.GetJobResultsStream(ctx, jobID)
	if err != nil {
		return 0, err
	}

	out := w
	var gz *gzip.Writer
	if gzipEnabled {
		gz = gzip.NewWriter(w)
		out = gz
	}

	encoder := json.NewEncoder(out)
	written := 0
	for result := range stream {
		if err := encoder.Encode(result); err != nil {
			return written, fmt.Errorf("lỗi encode NDJSON: %w", err)
		}
		written++
	}
	if gz != nil {
		if err := gz.Close(); err != nil {
			return written, fmt.Errorf("lỗi đóng gzip: %w", err)
		}
	}
	return written, ctx.Err()
}

// Suggest gợi ý đơn vị hành chính theo tiền tố qua Meilisearch.
func (as *AddressService) Suggest(ctx context.Context, query string, level gazetteer.Level, parentID string, limit int) ([]search.Document, error) {
	if as.suggester == nil {
		return nil, ErrNoSuggester
	}
	if query == "" || !level.Valid() {
		return nil, fmt.Errorf("%w: query=%q level=%d", ErrInvalidSearch, query, level)
	}
	if limit <= 0 || limit > 50 {
		limit = 10
	}
	return as.suggester.SearchByLevel(ctx, query, level, parentID, limit)
}

// GetStartTime lấy thời gian khởi động service
func (as *AddressService) GetStartTime() time.Time {
	return as.startTime
}

// GetStats lấy thống kê service
func (as *AddressService) GetStats(ctx context.Context) map[string]interface{} {
	as.mu.RLock()
	jobs := len(as.jobs)
	running := 0
	for _, job := range as.jobs {
		if job.Status == JobStatusRunning || job.Status == JobStatusPending {
			running++
		}
	}
	as.mu.RUnlock()

	stats := map[string]interface{}{
		"uptime_seconds":    int64(time.Since(as.startTime).Seconds()),
		"start_time":        as.startTime.Format(time.RFC3339),
		"reference_version": as.ReferenceVersion(),
		"reference":         as.Resolver().Index().Stats(),
		"total_processed":   as.processed.Load(),
		"jobs_total":        jobs,
		"jobs_running":      running,
	}
	if as.cache != nil {
		cacheStats, err := as.cache.GetStats(ctx)
		if err != nil {
			as.logger.Warn("Không thể lấy cache stats", zap.Error(err))
		} else {
			stats["cache"] = cacheStats
		}
	}
	return stats
}

// InvalidateCache xóa cache của một phiên bản, rỗng nghĩa là xóa toàn bộ.
func (as *AddressService) InvalidateCache(ctx context.Context, version string) (int64, error) {
	if as.cache == nil {
		return 0, nil
	}
	if version == "" {
		return 0, as.cache.Clear(ctx)
	}
	return as.cache.InvalidateByReferenceVersion(ctx, version)
}
