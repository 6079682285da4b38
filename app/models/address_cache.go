package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AddressCache cache kết quả resolve địa chỉ
type AddressCache struct {
	ID               primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	RawFingerprint   string             `bson:"raw_fingerprint" json:"raw_fingerprint"`     // Khóa cache
	RawAddress       string             `bson:"raw_address" json:"raw_address"`             // Địa chỉ gốc
	Normalized       string             `bson:"normalized" json:"normalized"`               // Văn bản đã chuẩn hóa
	ParsedResult     AddressResult      `bson:"parsed_result" json:"parsed_result"`         // Kết quả resolve
	Confidence       float64            `bson:"confidence" json:"confidence"`               // Độ tin cậy
	ReferenceVersion string             `bson:"reference_version" json:"reference_version"` // Phiên bản dữ liệu tham chiếu
	CreatedAt        time.Time          `bson:"created_at" json:"created_at"`               // Thời gian tạo
	LastAccessed     time.Time          `bson:"last_accessed" json:"last_accessed"`         // Lần truy cập cuối
	AccessCount      int                `bson:"access_count" json:"access_count"`           // Số lần truy cập
}

// NewAddressCache tạo mới một AddressCache
func NewAddressCache(result AddressResult) *AddressCache {
	now := time.Now()
	return &AddressCache{
		RawFingerprint:   result.RawFingerprint,
		RawAddress:       result.Raw,
		Normalized:       result.Normalized,
		ParsedResult:     result,
		Confidence:       result.Confidence,
		ReferenceVersion: result.ReferenceVersion,
		CreatedAt:        now,
		LastAccessed:     now,
		AccessCount:      1,
	}
}

// UpdateAccess cập nhật thông tin truy cập
func (ac *AddressCache) UpdateAccess() {
	ac.LastAccessed = time.Now()
	ac.AccessCount++
}

// IsExpired kiểm tra cache có hết hạn không (dựa trên thời gian tạo)
func (ac *AddressCache) IsExpired(ttl time.Duration) bool {
	return ttl > 0 && time.Since(ac.CreatedAt) > ttl
}

// IsValidReferenceVersion kiểm tra phiên bản dữ liệu tham chiếu có khớp không
func (ac *AddressCache) IsValidReferenceVersion(currentVersion string) bool {
	return ac.ReferenceVersion == currentVersion
}
