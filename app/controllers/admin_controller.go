package controllers

import (
	"errors"
	"fmt"
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

// AdminController controller xử lý các request admin
type AdminController struct {
	adminService   *services.AdminService
	addressService *services.AddressService
	logger         *zap.Logger
}

// NewAdminController tạo mới AdminController
func NewAdminController(adminService *services.AdminService, addressService *services.AddressService, logger *zap.Logger) *AdminController {
	return &AdminController{
		adminService:   adminService,
		addressService: addressService,
		logger:         logger,
	}
}

// SeedReference seed dữ liệu tham chiếu. Body là snapshot YAML hoặc JSON.
// ?dry_run=true chỉ kiểm tra, ?publish=true đẩy thêm lên Meilisearch.
func (ac *AdminController) SeedReference(c *gin.Context) {
	snap, err := gazetteer.ReadSnapshot(c.Request.Body)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "INVALID_REQUEST", "Snapshot không hợp lệ: "+err.Error())
		return
	}

	dryRun := c.Query("dry_run") == "true"
	publish := c.Query("publish") == "true"

	validation := ac.adminService.ValidateReference(snap)
	if !validation.Passed {
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, responses.SeedReferenceResponse{
			ValidationPassed: false,
			Warnings:         validation.Warnings,
			DryRun:           dryRun,
			Message:          "Snapshot không qua được kiểm tra",
		})
		return
	}

	result, err := ac.adminService.SeedReference(c.Request.Context(), snap, dryRun, publish)
	if err != nil {
		ac.logger.Error("Lỗi seed dữ liệu tham chiếu", zap.Error(err))
		abortWithError(c, http.StatusInternalServerError, "SEED_ERROR", "Lỗi seed dữ liệu tham chiếu: "+err.Error())
		return
	}

	message := "Seed dữ liệu tham chiếu thành công"
	if dryRun {
		message = "Validation hoàn thành thành công"
	}
	c.JSON(http.StatusOK, responses.SeedReferenceResponse{
		ValidationPassed:   true,
		EstimatedBuildTime: validation.EstimatedBuildTime,
		ReferenceVersion:   result.Version,
		UnitsProcessed:     result.UnitsProcessed,
		DocumentsIndexed:   result.DocumentsIndexed,
		CacheInvalidated:   result.CacheInvalidated,
		ProcessingTimeMs:   result.ProcessingTimeMs,
		DryRun:             dryRun,
		Message:            message,
	})
}

// GetReferenceInfo thống kê index đang phục vụ
func (ac *AdminController) GetReferenceInfo(c *gin.Context) {
	c.JSON(http.StatusOK, responses.ReferenceInfoResponse{
		Reference: ac.adminService.GetReferenceInfo(),
		LoadedAt:  ac.addressService.GetStartTime().Format(time.RFC3339),
	})
}

// Reload nạp lại index từ MongoDB (kèm alias học được)
func (ac *AdminController) Reload(c *gin.Context) {
	stats, err := ac.adminService.Reload(c.Request.Context())
	if errors.Is(err, services.ErrNoStore) {
		abortWithError(c, http.StatusServiceUnavailable, "STORE_DISABLED", err.Error())
		return
	}
	if err != nil {
		ac.logger.Error("Lỗi reload dữ liệu tham chiếu", zap.Error(err))
		abortWithError(c, http.StatusInternalServerError, "RELOAD_ERROR", err.Error())
		return
	}
	c.JSON(http.StatusOK, responses.NewSuccess("Reload thành công", stats))
}

// PublishIndex đẩy index hiện tại lên Meilisearch
func (ac *AdminController) PublishIndex(c *gin.Context) {
	startTime := time.Now()

	n, err := ac.adminService.PublishIndex(c.Request.Context())
	if errors.Is(err, services.ErrNoPublisher) {
		abortWithError(c, http.StatusServiceUnavailable, "SEARCH_DISABLED", err.Error())
		return
	}
	if err != nil {
		ac.logger.Error("Lỗi publish Meilisearch", zap.Error(err))
		abortWithError(c, http.StatusBadGateway, "PUBLISH_ERROR", err.Error())
		return
	}

	c.JSON(http.StatusOK, responses.NewSuccess("Publish thành công", gin.H{
		"documents_indexed":  n,
		"processing_time_ms": time.Since(startTime).Milliseconds(),
	}))
}

// InvalidateCache invalidate cache theo reference_version, ?all=true xóa toàn bộ
func (ac *AdminController) InvalidateCache(c *gin.Context) {
	version := c.Query("reference_version")
	if version == "" && c.Query("all") != "true" {
		abortWithError(c, http.StatusBadRequest, "MISSING_VERSION", "Thiếu reference_version")
		return
	}

	startTime := time.Now()
	n, err := ac.addressService.InvalidateCache(c.Request.Context(), version)
	if err != nil {
		ac.logger.Error("Lỗi invalidate cache", zap.Error(err))
		abortWithError(c, http.StatusInternalServerError, "INVALIDATE_ERROR", "Lỗi invalidate cache: "+err.Error())
		return
	}

	ac.logger.Info("Invalidate cache thành công",
		zap.String("version", version),
		zap.Int64("deleted", n),
		zap.Duration("duration", time.Since(startTime)))

	c.JSON(http.StatusOK, responses.NewSuccess("Invalidate cache thành công", gin.H{
		"reference_version":  version,
		"deleted":            n,
		"processing_time_ms": time.Since(startTime).Milliseconds(),
	}))
}

// GetStats lấy thống kê hệ thống
func (ac *AdminController) GetStats(c *gin.Context) {
	stats, err := ac.adminService.GetSystemStats(c.Request.Context())
	if err != nil {
		ac.logger.Error("Lỗi lấy stats", zap.Error(err))
		abortWithError(c, http.StatusInternalServerError, "STATS_ERROR", "Lỗi lấy stats: "+err.Error())
		return
	}
	c.JSON(http.StatusOK, stats)
}

// AddAlias thêm alias cho một đơn vị hành chính
func (ac *AdminController) AddAlias(c *gin.Context) {
	var req requests.AddAliasRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "INVALID_REQUEST", "Request không hợp lệ: "+err.Error())
		return
	}

	alias, err := ac.adminService.AddAlias(c.Request.Context(), req.AdminID, req.Alias, req.Confidence)
	switch {
	case errors.Is(err, services.ErrUnknownUnit):
		abortWithError(c, http.StatusNotFound, "UNIT_NOT_FOUND", err.Error())
		return
	case errors.Is(err, services.ErrNoStore):
		abortWithError(c, http.StatusServiceUnavailable, "STORE_DISABLED", err.Error())
		return
	case err != nil:
		abortWithError(c, http.StatusInternalServerError, "ALIAS_ERROR", err.Error())
		return
	}
	c.JSON(http.StatusCreated, responses.NewSuccess("Đã lưu alias, có hiệu lực sau khi reload", alias))
}

// ExportData export dữ liệu để backup
func (ac *AdminController) ExportData(c *gin.Context) {
	dataType := c.Param("type") // admin_units, learned_aliases
	format := c.DefaultQuery("format", "json")

	limit := 10000
	if l, err := strconv.Atoi(c.Query("limit")); err == nil && l > 0 {
		limit = l
	}

	data, contentType, err := ac.adminService.ExportData(c.Request.Context(), dataType, format, limit)
	switch {
	case errors.Is(err, services.ErrUnsupportedExport):
		abortWithError(c, http.StatusBadRequest, "UNSUPPORTED_EXPORT", err.Error())
		return
	case errors.Is(err, services.ErrNoStore):
		abortWithError(c, http.StatusServiceUnavailable, "STORE_DISABLED", err.Error())
		return
	case err != nil:
		ac.logger.Error("Lỗi export data", zap.Error(err))
		abortWithError(c, http.StatusInternalServerError, "EXPORT_ERROR", "Lỗi export data: "+err.Error())
		return
	}

	filename := fmt.Sprintf("%s_export_%s.%s", dataType, time.Now().Format("20060102_150405"), format)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", filename))
	c.Data(http.StatusOK, contentType, data)
}
