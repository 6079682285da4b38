package models

import (
	"strings"

	"github.com/address-resolver/internal/gazetteer"
	"github.com/address-resolver/internal/parser"
)

// AdminComponent một cấp đã resolve, dạng hiển thị cho API.
type AdminComponent struct {
	ID       string  `bson:"id" json:"id"`
	Name     string  `bson:"name" json:"name"`       // tên chuẩn không dấu
	Display  string  `bson:"display" json:"display"` // tên gốc có dấu
	Score    float64 `bson:"score" json:"score"`
	Source   string  `bson:"source" json:"source"`
	Inferred bool    `bson:"inferred,omitempty" json:"inferred,omitempty"`
}

// AddressResult kết quả resolve địa chỉ
type AddressResult struct {
	Raw              string              `bson:"raw" json:"raw"`               // Địa chỉ gốc
	Normalized       string              `bson:"normalized" json:"normalized"` // Văn bản chuẩn không dấu
	KnownProvince    string              `bson:"known_province,omitempty" json:"known_province,omitempty"`
	KnownDistrict    string              `bson:"known_district,omitempty" json:"known_district,omitempty"`
	Province         *AdminComponent     `bson:"province,omitempty" json:"province"`
	District         *AdminComponent     `bson:"district,omitempty" json:"district"`
	Ward             *AdminComponent     `bson:"ward,omitempty" json:"ward"`
	Confidence       float64             `bson:"confidence" json:"confidence"`               // Độ tin cậy
	Status           string              `bson:"status" json:"status"`                       // Trạng thái xử lý
	Flags            []string            `bson:"flags" json:"flags"`                         // Các cờ chất lượng
	AdminPath        []string            `bson:"admin_path" json:"admin_path"`               // Tỉnh > Quận > Phường (có dấu)
	Stages           []parser.StageTrace `bson:"stages,omitempty" json:"stages,omitempty"`   // Trace từng cấp
	RawFingerprint   string              `bson:"raw_fingerprint" json:"raw_fingerprint"`     // Khóa cache
	ReferenceVersion string              `bson:"reference_version" json:"reference_version"` // Phiên bản dữ liệu tham chiếu
	ProcessingTimeMs float64             `bson:"processing_time_ms" json:"processing_time_ms"`
}

// Thresholds ngưỡng quyết định Status.
type Thresholds struct {
	High      float64 `json:"high"`
	ReviewLow float64 `json:"review_low"`
}

// Status constants
const (
	StatusMatched     = "matched"
	StatusAmbiguous   = "ambiguous"
	StatusNeedsReview = "needs_review"
	StatusUnmatched   = "unmatched"
)

// Quality flags
const (
	FlagExactMatch     = "EXACT_MATCH"
	FlagAliasMatch     = "ALIAS_MATCH"
	FlagFuzzyMatch     = "FUZZY_MATCH"
	FlagKnownValue     = "KNOWN_VALUE"
	FlagKnownRejected  = "KNOWN_REJECTED"
	FlagInferredParent = "INFERRED_PARENT"
	FlagWardFromHint   = "WARD_FROM_HINT"
	FlagAmbiguous      = "AMBIGUOUS"
	FlagLowConfidence  = "LOW_CONFIDENCE"
	FlagMissingWard    = "MISSING_WARD"
)

// NewAddressResult dựng view API từ kết quả của resolver.
func NewAddressResult(res *parser.ResolvedAddress, th Thresholds) AddressResult {
	out := AddressResult{
		Raw:              res.Raw,
		Normalized:       res.Normalized,
		Province:         toComponent(res.Province),
		District:         toComponent(res.District),
		Ward:             toComponent(res.Ward),
		Confidence:       res.Confidence,
		Flags:            make([]string, 0),
		AdminPath:        make([]string, 0, 3),
		Stages:           res.Stages,
		ReferenceVersion: res.ReferenceVersion,
	}
	for _, c := range []*AdminComponent{out.Province, out.District, out.Ward} {
		if c != nil {
			out.AdminPath = append(out.AdminPath, c.Display)
		}
	}

	ambiguous := false
	for _, st := range res.Stages {
		if st.Ambiguous {
			ambiguous = true
			out.addFlag(FlagAmbiguous + "_" + strings.ToUpper(st.Level.String()))
		}
		if st.KnownRejected {
			out.addFlag(FlagKnownRejected)
		}
	}

	exact := true
	for _, c := range []*AdminComponent{out.Province, out.District, out.Ward} {
		if c == nil {
			continue
		}
		switch parser.Source(c.Source) {
		case parser.SourceExact:
		case parser.SourceKnown:
			out.addFlag(FlagKnownValue)
		case parser.SourceAlias:
			exact = false
			out.addFlag(FlagAliasMatch)
		case parser.SourceFuzzy:
			exact = false
			out.addFlag(FlagFuzzyMatch)
		case parser.SourceHint:
			exact = false
			out.addFlag(FlagWardFromHint)
		case parser.SourceInferred:
			exact = false
			out.addFlag(FlagInferredParent)
		}
	}
	if exact && res.Resolved() {
		out.addFlag(FlagExactMatch)
	}
	if res.Resolved() && out.Ward == nil {
		out.addFlag(FlagMissingWard)
	}
	if res.Resolved() && res.Confidence < th.ReviewLow {
		out.addFlag(FlagLowConfidence)
	}

	switch {
	case !res.Resolved():
		out.Status = StatusUnmatched
	case ambiguous:
		out.Status = StatusAmbiguous
	case res.Confidence >= th.High:
		out.Status = StatusMatched
	default:
		out.Status = StatusNeedsReview
	}
	return out
}

func toComponent(c *parser.Component) *AdminComponent {
	if c == nil {
		return nil
	}
	return &AdminComponent{
		ID:       c.ID,
		Name:     c.Name,
		Display:  c.Display,
		Score:    c.Score,
		Source:   string(c.Source),
		Inferred: c.Inferred,
	}
}

func (ar *AddressResult) addFlag(flag string) {
	for _, f := range ar.Flags {
		if f == flag {
			return
		}
	}
	ar.Flags = append(ar.Flags, flag)
}

// HasFlag kiểm tra cờ chất lượng.
func (ar *AddressResult) HasFlag(flag string) bool {
	for _, f := range ar.Flags {
		if f == flag {
			return true
		}
	}
	return false
}

// IsValidStatus kiểm tra status có hợp lệ không
func (ar *AddressResult) IsValidStatus() bool {
	switch ar.Status {
	case StatusMatched, StatusAmbiguous, StatusNeedsReview, StatusUnmatched:
		return true
	}
	return false
}

// ComponentName tên chuẩn của một cấp, rỗng nếu null.
func (ar *AddressResult) ComponentName(level gazetteer.Level) string {
	var c *AdminComponent
	switch level {
	case gazetteer.LevelProvince:
		c = ar.Province
	case gazetteer.LevelDistrict:
		c = ar.District
	case gazetteer.LevelWard:
		c = ar.Ward
	}
	if c == nil {
		return ""
	}
	return c.Name
}
