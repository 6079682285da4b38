package models

import (
	"time"

	"github.com/address-resolver/internal/gazetteer"
)

// DefaultAliasConfidence độ tin cậy mặc định của alias mới học.
const DefaultAliasConfidence = 0.8

// LearnedAliases alias đã học được từ hệ thống
type LearnedAliases struct {
	OriginalToken string    `bson:"original_token" json:"original_token"` // Token gốc
	CanonicalForm string    `bson:"canonical_form" json:"canonical_form"` // Dạng chuẩn
	AdminLevel    int       `bson:"admin_level" json:"admin_level"`       // Cấp hành chính
	AdminID       string    `bson:"admin_id" json:"admin_id"`             // ID đơn vị hành chính
	Confidence    float64   `bson:"confidence" json:"confidence"`         // Độ tin cậy
	Source        string    `bson:"source" json:"source"`                 // Nguồn học (manual/auto_learned)
	UsageCount    int       `bson:"usage_count" json:"usage_count"`       // Số lần sử dụng
	CreatedAt     time.Time `bson:"created_at" json:"created_at"`         // Thời gian tạo
	LastUsed      time.Time `bson:"last_used" json:"last_used"`           // Lần sử dụng cuối
}

// Source constants
const (
	SourceManual      = "manual"
	SourceAutoLearned = "auto_learned"
)

// NewLearnedAliases tạo mới một LearnedAliases
func NewLearnedAliases(originalToken string, level gazetteer.Level, adminID string, source string) *LearnedAliases {
	now := time.Now()
	return &LearnedAliases{
		OriginalToken: originalToken,
		CanonicalForm: gazetteer.FoldName(originalToken),
		AdminLevel:    int(level),
		AdminID:       adminID,
		Confidence:    DefaultAliasConfidence,
		Source:        source,
		UsageCount:    1,
		CreatedAt:     now,
		LastUsed:      now,
	}
}

// IsValidSource kiểm tra source có hợp lệ không
func (la *LearnedAliases) IsValidSource() bool {
	return la.Source == SourceManual || la.Source == SourceAutoLearned
}

// IsValidAdminLevel chỉ nhận province/district/ward.
func (la *LearnedAliases) IsValidAdminLevel() bool {
	return gazetteer.Level(la.AdminLevel).Valid()
}

// UpdateUsage cập nhật thông tin sử dụng
func (la *LearnedAliases) UpdateUsage() {
	la.UsageCount++
	la.LastUsed = time.Now()
}

// UpdateConfidence cập nhật độ tin cậy
func (la *LearnedAliases) UpdateConfidence(newConfidence float64) {
	if newConfidence >= 0.0 && newConfidence <= 1.0 {
		la.Confidence = newConfidence
	}
}

// IsHighConfidence kiểm tra có đủ tin cậy để nạp vào index không
func (la *LearnedAliases) IsHighConfidence(min float64) bool {
	return la.Confidence >= min
}
