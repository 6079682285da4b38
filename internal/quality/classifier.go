// Package quality phân loại offline các kết quả resolve bị chấm điểm thấp
// theo nguyên nhân, chỉ dựa trên dữ liệu đã trả về.
package quality

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/address-resolver/internal/gazetteer"
	"github.com/address-resolver/internal/normalizer"
	"github.com/address-resolver/internal/parser"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Category nhóm nguyên nhân.
type Category string

const (
	CategoryMissingGeography      Category = "missing_geography"
	CategoryNothingMatched        Category = "nothing_matched"
	CategoryHighConfidenceWrong   Category = "high_confidence_wrong"
	CategoryLowConfidencePartial  Category = "low_confidence_partial"
	CategoryPartialMatch          Category = "partial_match"
	CategoryLowConfidenceMatch    Category = "low_confidence_match"
	CategoryCorrectPerceivedWrong Category = "correct_perceived_wrong"

	// các nhóm nằm trong taxonomy mặc định
	CategoryAbbreviationOverload Category = "abbreviation_overload"
	CategoryOrganizationalNoise  Category = "organizational_noise"
	CategoryUnusualPunctuation   Category = "unusual_punctuation"
)

func (c Category) builtin() bool {
	switch c {
	case CategoryMissingGeography, CategoryNothingMatched, CategoryHighConfidenceWrong,
		CategoryLowConfidencePartial, CategoryPartialMatch, CategoryLowConfidenceMatch,
		CategoryCorrectPerceivedWrong:
		return true
	}
	return false
}

// Record một kết quả lịch sử: giá trị biết trước, giá trị đã parse, confidence, điểm người dùng.
type Record struct {
	ID             string  `json:"id" bson:"_id"`
	Address        string  `json:"address" bson:"address"`
	KnownProvince  string  `json:"known_province" bson:"known_province"`
	KnownDistrict  string  `json:"known_district" bson:"known_district"`
	KnownWard      string  `json:"known_ward" bson:"known_ward"`
	ParsedProvince string  `json:"parsed_province" bson:"parsed_province"`
	ParsedDistrict string  `json:"parsed_district" bson:"parsed_district"`
	ParsedWard     string  `json:"parsed_ward" bson:"parsed_ward"`
	Confidence     float64 `json:"confidence" bson:"confidence"`
	Rating         int     `json:"rating" bson:"rating"`
}

// RecordFromResolution dựng record từ kết quả của resolver.
func RecordFromResolution(id string, res *parser.ResolvedAddress, knownProvince, knownDistrict, knownWard string, rating int) Record {
	rec := Record{
		ID:            id,
		Address:       res.Raw,
		KnownProvince: knownProvince,
		KnownDistrict: knownDistrict,
		KnownWard:     knownWard,
		Confidence:    res.Confidence,
		Rating:        rating,
	}
	if res.Province != nil {
		rec.ParsedProvince = res.Province.Name
	}
	if res.District != nil {
		rec.ParsedDistrict = res.District.Name
	}
	if res.Ward != nil {
		rec.ParsedWard = res.Ward.Name
	}
	return rec
}

// Classification kết quả phân loại một record.
type Classification struct {
	RecordID string   `json:"record_id"`
	Category Category `json:"category"`
	Reasons  []string `json:"reasons"`
}

// Report tổng hợp một lượt phân loại.
type Report struct {
	TaxonomyVersion string           `json:"taxonomy_version"`
	Total           int              `json:"total"`
	Counts          map[Category]int `json:"counts"`
	Items           []Classification `json:"items"`
}

// Classifier áp taxonomy lên record. Không giữ state, dùng chung được giữa các goroutine.
type Classifier struct {
	taxonomy *Taxonomy
	logger   *zap.Logger
}

// NewClassifier tạo classifier với taxonomy đã biên dịch.
func NewClassifier(taxonomy *Taxonomy, logger *zap.Logger) *Classifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Classifier{taxonomy: taxonomy, logger: logger}
}

// Taxonomy đang dùng.
func (c *Classifier) Taxonomy() *Taxonomy { return c.taxonomy }

// Classify xếp record vào đúng một category.
func (c *Classifier) Classify(rec Record) Classification {
	out := Classification{RecordID: rec.ID}
	tax := c.taxonomy

	known := []struct{ field, value string }{
		{"known_province", rec.KnownProvince},
		{"known_district", rec.KnownDistrict},
		{"known_ward", rec.KnownWard},
	}
	for _, k := range known {
		if tax.IsSentinel(k.value) {
			out.Reasons = append(out.Reasons, fmt.Sprintf("%s = %q", k.field, k.value))
		}
	}
	if len(out.Reasons) > 0 {
		out.Category = CategoryMissingGeography
		return out
	}

	parsed := []string{rec.ParsedProvince, rec.ParsedDistrict, rec.ParsedWard}
	nulls := 0
	for _, p := range parsed {
		if p == "" {
			nulls++
		}
	}

	if nulls == len(parsed) {
		folded := normalizer.Canonicalize(rec.Address, "")
		for i := range tax.Categories {
			cat := &tax.Categories[i]
			if reason, ok := cat.match(rec.Address, folded); ok {
				out.Category = cat.Name
				out.Reasons = []string{reason}
				return out
			}
		}
		out.Category = CategoryNothingMatched
		out.Reasons = []string{"không cấp nào khớp"}
		return out
	}

	mismatches := disagreements(rec)
	switch {
	case len(mismatches) > 0 && rec.Confidence >= tax.Bands.High:
		out.Category = CategoryHighConfidenceWrong
		out.Reasons = mismatches
	case nulls > 0 && rec.Confidence < tax.Bands.Low:
		out.Category = CategoryLowConfidencePartial
		out.Reasons = append(mismatches, fmt.Sprintf("%d cấp null, confidence %.2f < %.2f", nulls, rec.Confidence, tax.Bands.Low))
	case nulls > 0:
		out.Category = CategoryPartialMatch
		out.Reasons = append(mismatches, fmt.Sprintf("%d cấp null", nulls))
	case len(mismatches) > 0 || rec.Confidence < tax.Bands.Low:
		out.Category = CategoryLowConfidenceMatch
		out.Reasons = append(mismatches, fmt.Sprintf("confidence %.2f", rec.Confidence))
	default:
		out.Category = CategoryCorrectPerceivedWrong
		out.Reasons = []string{"kết quả khớp giá trị biết trước"}
	}
	return out
}

// disagreements các cấp mà giá trị parse khác giá trị biết trước.
func disagreements(rec Record) []string {
	pairs := []struct {
		level         gazetteer.Level
		known, parsed string
	}{
		{gazetteer.LevelProvince, rec.KnownProvince, rec.ParsedProvince},
		{gazetteer.LevelDistrict, rec.KnownDistrict, rec.ParsedDistrict},
		{gazetteer.LevelWard, rec.KnownWard, rec.ParsedWard},
	}
	var out []string
	for _, p := range pairs {
		if strings.TrimSpace(p.known) == "" || p.parsed == "" {
			continue
		}
		if gazetteer.BareName(p.known) != gazetteer.BareName(p.parsed) {
			out = append(out, fmt.Sprintf("%s: biết trước %q, parse %q", p.level, p.known, p.parsed))
		}
	}
	return out
}

// ClassifyAll phân loại song song, giữ nguyên thứ tự input.
func (c *Classifier) ClassifyAll(ctx context.Context, records []Record, workers int) ([]Classification, error) {
	if workers <= 0 {
		workers = 1
	}
	out := make([]Classification, len(records))
	var done atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range records {
		i := i
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out[i] = c.Classify(records[i])
			done.Add(1)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("phân loại bị hủy sau %d/%d record: %w", done.Load(), len(records), err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.logger.Info("Đã phân loại record", zap.Int("total", len(records)), zap.Int("workers", workers))
	return out, nil
}

// Summarize gom số lượng theo category.
func (c *Classifier) Summarize(items []Classification) Report {
	r := Report{
		TaxonomyVersion: c.taxonomy.Version,
		Total:           len(items),
		Counts:          make(map[Category]int),
		Items:           items,
	}
	for _, it := range items {
		r.Counts[it.Category]++
	}
	return r
}

// TopCategories các category theo số lượng giảm dần.
func (r Report) TopCategories() []Category {
	cats := make([]Category, 0, len(r.Counts))
	for cat := range r.Counts {
		cats = append(cats, cat)
	}
	sort.Slice(cats, func(i, j int) bool {
		if r.Counts[cats[i]] != r.Counts[cats[j]] {
			return r.Counts[cats[i]] > r.Counts[cats[j]]
		}
		return cats[i] < cats[j]
	})
	return cats
}
