package controllers

import (
	"errors"
	"net/http"

	"github.com/address-resolver/app/requests"
	"github.com/address-resolver/app/responses"
	"github.com/address-resolver/app/services"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// QualityController review của người dùng và bộ phân loại chất lượng
type QualityController struct {
	qualityService *services.QualityService
	logger         *zap.Logger
}

// NewQualityController tạo mới QualityController
func NewQualityController(qualityService *services.QualityService, logger *zap.Logger) *QualityController {
	return &QualityController{qualityService: qualityService, logger: logger}
}

// SubmitReview lưu rating của người dùng cho một địa chỉ
func (qc *QualityController) SubmitReview(c *gin.Context) {
	var req requests.SubmitReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "INVALID_REQUEST", "Request không hợp lệ: "+err.Error())
		return
	}

	review, err := qc.qualityService.SubmitReview(c.Request.Context(), req.Address, req.Province, req.District, req.Ward, req.Rating, req.Comment)
	if errors.Is(err, services.ErrNoStore) {
		abortWithError(c, http.StatusServiceUnavailable, "STORE_DISABLED", err.Error())
		return
	}
	if err != nil {
		qc.logger.Error("Lỗi lưu review", zap.Error(err))
		abortWithError(c, http.StatusInternalServerError, "REVIEW_ERROR", err.Error())
		return
	}
	c.JSON(http.StatusCreated, responses.NewSuccess("Đã lưu review", review))
}

// Classify chạy bộ phân loại trên các review rating thấp
func (qc *QualityController) Classify(c *gin.Context) {
	var req requests.ClassifyRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			abortWithError(c, http.StatusBadRequest, "INVALID_REQUEST", "Request không hợp lệ: "+err.Error())
			return
		}
	}

	report, err := qc.qualityService.ClassifyStored(c.Request.Context(), services.ClassifyOptions{
		MaxRating: req.MaxRating,
		Limit:     req.Limit,
		Rescore:   req.Rescore,
	})
	if errors.Is(err, services.ErrNoStore) {
		abortWithError(c, http.StatusServiceUnavailable, "STORE_DISABLED", err.Error())
		return
	}
	if err != nil {
		qc.logger.Error("Lỗi phân loại review", zap.Error(err))
		abortWithError(c, http.StatusInternalServerError, "CLASSIFY_ERROR", err.Error())
		return
	}
	c.JSON(http.StatusOK, report)
}

// GetReport báo cáo phân loại gần nhất
func (qc *QualityController) GetReport(c *gin.Context) {
	report := qc.qualityService.LastReport()
	if report == nil {
		abortWithError(c, http.StatusNotFound, "NO_REPORT", "Chưa có báo cáo phân loại")
		return
	}
	c.JSON(http.StatusOK, report)
}
