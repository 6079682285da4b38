package controllers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/address-resolver/app/requests"
	"github.com/address-resolver/app/responses"
	"github.com/address-resolver/app/services"
	"github.com/address-resolver/internal/gazetteer"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// HealthCheck kiểm tra một service phụ thuộc (Mongo, Redis...).
type HealthCheck func(ctx context.Context) error

// AddressController controller xử lý các request liên quan đến địa chỉ
type AddressController struct {
	addressService *services.AddressService
	checks         map[string]HealthCheck
	version        string
	logger         *zap.Logger
}

// NewAddressController tạo mới AddressController
func NewAddressController(addressService *services.AddressService, checks map[string]HealthCheck, version string, logger *zap.Logger) *AddressController {
	return &AddressController{
		addressService: addressService,
		checks:         checks,
		version:        version,
		logger:         logger,
	}
}

// Resolve resolve địa chỉ đơn lẻ
func (ac *AddressController) Resolve(c *gin.Context) {
	var req requests.ResolveAddressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "INVALID_REQUEST", "Request không hợp lệ: "+err.Error())
		return
	}

	startTime := time.Now()
	result, hit, err := ac.addressService.Resolve(c.Request.Context(), services.ResolveInput{
		Address:     req.Address,
		Province:    req.Province,
		District:    req.District,
		UseCache:    req.Options.CacheEnabled(),
		ReturnTrace: req.Options.ReturnTrace,
	})
	if err != nil {
		ac.logger.Error("Lỗi resolve địa chỉ", zap.Error(err))
		abortWithError(c, http.StatusInternalServerError, "RESOLVE_ERROR", "Lỗi resolve địa chỉ: "+err.Error())
		return
	}

	c.JSON(http.StatusOK, responses.ResolveResponse{
		ReferenceVersion: result.ReferenceVersion,
		Result:           *result,
		ProcessingTimeMs: float64(time.Since(startTime).Microseconds()) / 1000,
		CacheHit:         hit,
	})
}

// CreateJob tạo job resolve hàng loạt
func (ac *AddressController) CreateJob(c *gin.Context) {
	var req requests.BatchResolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "INVALID_REQUEST", "Request không hợp lệ: "+err.Error())
		return
	}

	jobID, err := ac.addressService.SubmitBatchJob(req.Items, req.Options)
	if errors.Is(err, services.ErrTooManyItems) {
		abortWithError(c, http.StatusBadRequest, "TOO_MANY_ADDRESSES", err.Error())
		return
	}
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "JOB_ERROR", err.Error())
		return
	}

	c.JSON(http.StatusAccepted, responses.BatchResolveResponse{
		JobID:            jobID,
		EstimatedSeconds: ac.addressService.EstimateBatchProcessingTime(len(req.Items)),
		TotalAddresses:   len(req.Items),
		Message:          "Job đã được tạo và đang xử lý",
	})
}

// GetJobStatus lấy trạng thái job
func (ac *AddressController) GetJobStatus(c *gin.Context) {
	jobID := c.Param("jobID")
	status, err := ac.addressService.GetJobStatus(jobID)
	if err != nil {
		abortWithError(c, http.StatusNotFound, "JOB_NOT_FOUND", "Không tìm thấy job: "+jobID)
		return
	}

	c.JSON(http.StatusOK, responses.JobStatusResponse{
		JobID:              jobID,
		Status:             status.Status,
		Progress:           status.Progress,
		Processed:          status.Processed,
		Total:              status.Total,
		EstimatedRemaining: status.EstimatedRemaining,
		Message:            status.Message,
	})
}

// GetJobResults lấy kết quả job, hỗ trợ ?format=ndjson và ?gzip=1
func (ac *AddressController) GetJobResults(c *gin.Context) {
	jobID := c.Param("jobID")

	results, err := ac.addressService.GetJobResults(jobID)
	switch {
	case errors.Is(err, services.ErrJobNotDone):
		abortWithError(c, http.StatusConflict, "JOB_NOT_DONE", "Job chưa hoàn thành: "+jobID)
		return
	case err != nil:
		abortWithError(c, http.StatusNotFound, "JOB_NOT_FOUND", "Không tìm thấy job: "+jobID)
		return
	}

	if c.Query("format") != "ndjson" {
		c.JSON(http.StatusOK, responses.NewSuccess("Lấy kết quả thành công", results))
		return
	}

	gzipEnabled := c.Query("gzip") == "1"
	c.Header("Content-Type", "application/x-ndjson")
	if gzipEnabled {
		c.Header("Content-Encoding", "gzip")
	}
	c.Status(http.StatusOK)

	written, err := ac.addressService.WriteNDJSON(c.Request.Context(), c.Writer, jobID, gzipEnabled)
	if err != nil {
		// header đã gửi, chỉ log được
		ac.logger.Error("Lỗi stream NDJSON", zap.String("job_id", jobID), zap.Int("written", written), zap.Error(err))
	}
}

// Suggest gợi ý đơn vị hành chính: ?q=&level=district&parent_id=&limit=
func (ac *AddressController) Suggest(c *gin.Context) {
	query := c.Query("q")
	level, err := gazetteer.ParseLevel(c.DefaultQuery("level", "province"))
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "INVALID_LEVEL", err.Error())
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))

	hits, err := ac.addressService.Suggest(c.Request.Context(), query, level, c.Query("parent_id"), limit)
	switch {
	case errors.Is(err, services.ErrNoSuggester):
		abortWithError(c, http.StatusServiceUnavailable, "SEARCH_DISABLED", err.Error())
		return
	case errors.Is(err, services.ErrInvalidSearch):
		abortWithError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	case err != nil:
		ac.logger.Error("Lỗi tìm kiếm Meilisearch", zap.Error(err))
		abortWithError(c, http.StatusBadGateway, "SEARCH_ERROR", err.Error())
		return
	}

	c.JSON(http.StatusOK, responses.SuggestResponse{
		Query: query,
		Level: level.String(),
		Hits:  hits,
	})
}

// HealthCheck kiểm tra sức khỏe service
func (ac *AddressController) HealthCheck(c *gin.Context) {
	resp := ac.health(c.Request.Context())
	c.JSON(http.StatusOK, resp)
}

// Ready trả 503 khi có service phụ thuộc lỗi
func (ac *AddressController) Ready(c *gin.Context) {
	resp := ac.health(c.Request.Context())
	status := http.StatusOK
	if resp.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, resp)
}

// Live chỉ xác nhận process còn chạy
func (ac *AddressController) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}

func (ac *AddressController) health(ctx context.Context) responses.HealthCheckResponse {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	status := "healthy"
	deps := map[string]string{"resolver": "healthy"}
	for name, check := range ac.checks {
		if err := check(ctx); err != nil {
			ac.logger.Warn("Health check thất bại", zap.String("service", name), zap.Error(err))
			deps[name] = "unhealthy"
			status = "degraded"
			continue
		}
		deps[name] = "healthy"
	}

	return responses.HealthCheckResponse{
		Status:           status,
		Timestamp:        time.Now().Format(time.RFC3339),
		Uptime:           time.Since(ac.addressService.GetStartTime()).Round(time.Second).String(),
		Version:          ac.version,
		ReferenceVersion: ac.addressService.ReferenceVersion(),
		Services:         deps,
	}
}

// abortWithError trả ErrorResponse kèm request ID nếu có
func abortWithError(c *gin.Context, status int, code, message string) {
	resp := responses.NewError(code, message)
	resp.RequestID = c.GetString(RequestIDKey)
	c.AbortWithStatusJSON(status, resp)
}
