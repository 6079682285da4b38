package responses

import (
	"time"

	"github.com/address-resolver/app/models"
	"github.com/address-resolver/internal/gazetteer"
	"github.com/address-resolver/internal/search"
)

// ResolveResponse response resolve địa chỉ đơn lẻ
type ResolveResponse struct {
	ReferenceVersion string               `json:"reference_version"` // Phiên bản dữ liệu tham chiếu
	Result           models.AddressResult `json:"result"`            // Kết quả resolve
	ProcessingTimeMs float64              `json:"processing_time_ms"`
	CacheHit         bool                 `json:"cache_hit"` // Có hit cache không
}

// BatchResolveResponse response tạo job resolve hàng loạt
type BatchResolveResponse struct {
	JobID            string `json:"job_id"`            // ID của job
	EstimatedSeconds int    `json:"estimated_seconds"` // Thời gian ước tính (giây)
	TotalAddresses   int    `json:"total_addresses"`   // Tổng số địa chỉ
	Message          string `json:"message"`
}

// JobStatusResponse response trạng thái job
type JobStatusResponse struct {
	JobID              string  `json:"job_id"`
	Status             string  `json:"status"`              // Trạng thái job
	Progress           float64 `json:"progress"`            // Tiến độ (0.0 - 1.0)
	Processed          int     `json:"processed"`           // Số địa chỉ đã xử lý
	Total              int     `json:"total"`               // Tổng số địa chỉ
	EstimatedRemaining int     `json:"estimated_remaining"` // Thời gian còn lại ước tính (giây)
	Message            string  `json:"message"`
}

// SuggestResponse gợi ý autocomplete
type SuggestResponse struct {
	Query string            `json:"query"`
	Level string            `json:"level"`
	Hits  []search.Document `json:"hits"`
}

// SeedReferenceResponse response seed dữ liệu tham chiếu
type SeedReferenceResponse struct {
	ValidationPassed   bool     `json:"validation_passed"`
	Warnings           []string `json:"warnings,omitempty"`
	EstimatedBuildTime string   `json:"estimated_build_time,omitempty"`
	ReferenceVersion   string   `json:"reference_version,omitempty"`
	UnitsProcessed     int      `json:"units_processed,omitempty"`
	DocumentsIndexed   int      `json:"documents_indexed,omitempty"` // Số document đã đẩy lên Meilisearch
	CacheInvalidated   int64    `json:"cache_invalidated,omitempty"`
	ProcessingTimeMs   int64    `json:"processing_time_ms,omitempty"`
	DryRun             bool     `json:"dry_run"`
	Message            string   `json:"message"`
}

// ReferenceInfoResponse thông tin index đang phục vụ
type ReferenceInfoResponse struct {
	Reference gazetteer.Stats `json:"reference"`
	LoadedAt  string          `json:"loaded_at"`
}

// ErrorResponse response lỗi
type ErrorResponse struct {
	Error     string      `json:"error"`             // Mã lỗi
	Message   string      `json:"message"`           // Thông báo lỗi
	Details   interface{} `json:"details,omitempty"` // Chi tiết lỗi
	Timestamp string      `json:"timestamp"`
	RequestID string      `json:"request_id,omitempty"`
}

// SuccessResponse response thành công
type SuccessResponse struct {
	Success   bool        `json:"success"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp string      `json:"timestamp"`
}

// HealthCheckResponse response kiểm tra sức khỏe
type HealthCheckResponse struct {
	Status           string            `json:"status"` // healthy / degraded
	Timestamp        string            `json:"timestamp"`
	Uptime           string            `json:"uptime"`
	Version          string            `json:"version"`
	ReferenceVersion string            `json:"reference_version"`
	Services         map[string]string `json:"services"` // Trạng thái các service phụ thuộc
}

// NewError tạo ErrorResponse với timestamp hiện tại.
func NewError(code, message string) ErrorResponse {
	return ErrorResponse{
		Error:     code,
		Message:   message,
		Timestamp: time.Now().Format(time.RFC3339),
	}
}

// NewSuccess tạo SuccessResponse với timestamp hiện tại.
func NewSuccess(message string, data interface{}) SuccessResponse {
	return SuccessResponse{
		Success:   true,
		Message:   message,
		Data:      data,
		Timestamp: time.Now().Format(time.RFC3339),
	}
}
