package models

import (
	"time"

	"github.com/address-resolver/internal/gazetteer"
	"github.com/address-resolver/internal/quality"
)

// AddressReview một lần resolve đã được người dùng chấm điểm (1-5).
type AddressReview struct {
	ID               string    `bson:"_id" json:"id"`
	RawAddress       string    `bson:"raw_address" json:"raw_address"`       // Địa chỉ gốc
	KnownProvince    string    `bson:"known_province" json:"known_province"` // Giá trị form, "/" = không có
	KnownDistrict    string    `bson:"known_district" json:"known_district"`
	KnownWard        string    `bson:"known_ward" json:"known_ward"`
	ParsedProvince   string    `bson:"parsed_province" json:"parsed_province"` // Kết quả lúc chấm điểm
	ParsedDistrict   string    `bson:"parsed_district" json:"parsed_district"`
	ParsedWard       string    `bson:"parsed_ward" json:"parsed_ward"`
	Confidence       float64   `bson:"confidence" json:"confidence"`
	Rating           int       `bson:"rating" json:"rating"`
	Comment          string    `bson:"comment,omitempty" json:"comment,omitempty"`
	ReferenceVersion string    `bson:"reference_version" json:"reference_version"`
	CreatedAt        time.Time `bson:"created_at" json:"created_at"`
}

const (
	MinRating = 1
	MaxRating = 5
)

// NewAddressReview tạo review từ kết quả đã trả cho người dùng.
func NewAddressReview(id, knownProvince, knownDistrict, knownWard string, result AddressResult, rating int, comment string) *AddressReview {
	return &AddressReview{
		ID:               id,
		RawAddress:       result.Raw,
		KnownProvince:    knownProvince,
		KnownDistrict:    knownDistrict,
		KnownWard:        knownWard,
		ParsedProvince:   result.ComponentName(gazetteer.LevelProvince),
		ParsedDistrict:   result.ComponentName(gazetteer.LevelDistrict),
		ParsedWard:       result.ComponentName(gazetteer.LevelWard),
		Confidence:       result.Confidence,
		Rating:           rating,
		Comment:          comment,
		ReferenceVersion: result.ReferenceVersion,
		CreatedAt:        time.Now(),
	}
}

// IsValidRating kiểm tra rating có hợp lệ không
func (ar *AddressReview) IsValidRating() bool {
	return ar.Rating >= MinRating && ar.Rating <= MaxRating
}

// ToRecord chuyển sang input của bộ phân loại.
func (ar *AddressReview) ToRecord() quality.Record {
	return quality.Record{
		ID:             ar.ID,
		Address:        ar.RawAddress,
		KnownProvince:  ar.KnownProvince,
		KnownDistrict:  ar.KnownDistrict,
		KnownWard:      ar.KnownWard,
		ParsedProvince: ar.ParsedProvince,
		ParsedDistrict: ar.ParsedDistrict,
		ParsedWard:     ar.ParsedWard,
		Confidence:     ar.Confidence,
		Rating:         ar.Rating,
	}
}
