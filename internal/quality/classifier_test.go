package quality

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/address-resolver/internal/gazetteer/gazetteertest"
	"github.com/address-resolver/internal/parser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClassifier(t *testing.T) *Classifier {
	t.Helper()
	tax, err := DefaultTaxonomy()
	require.NoError(t, err)
	return NewClassifier(tax, zap.NewNop())
}

func TestClassify_AbbreviationVersusMissingGeography(t *testing.T) {
	c := newTestClassifier(t)

	abbrev := c.Classify(Record{
		ID:            "r1",
		Address:       "55 BE VAN DAN, Q.TB, TP",
		KnownProvince: "Hồ Chí Minh",
		KnownDistrict: "Tân Bình",
	})
	assert.Equal(t, CategoryAbbreviationOverload, abbrev.Category)
	require.Len(t, abbrev.Reasons, 1)

	missing := c.Classify(Record{
		ID:            "r2",
		Address:       "55 BE VAN DAN, Q.TB, TP",
		KnownProvince: "Hồ Chí Minh",
		KnownDistrict: "/",
	})
	assert.Equal(t, CategoryMissingGeography, missing.Category)
	assert.Contains(t, missing.Reasons[0], "known_district")
	assert.NotEqual(t, abbrev.Category, missing.Category)
}

func TestClassify_NothingMatchedTriggers(t *testing.T) {
	c := newTestClassifier(t)

	testCases := []struct {
		address  string
		expected Category
	}{
		{"CTY TNHH Matrix Việt Nam", CategoryOrganizationalNoise},
		{"Ngân hàng ABC chi nhánh 3", CategoryOrganizationalNoise},
		{"số 12 ## đường ???", CategoryUnusualPunctuation},
		{"khu vuc 7 gan cho", CategoryNothingMatched},
		// viết thường không tính là viết tắt
		{"tp xyz", CategoryNothingMatched},
	}
	for _, tc := range testCases {
		got := c.Classify(Record{Address: tc.address, KnownProvince: "Nghệ An"})
		assert.Equal(t, tc.expected, got.Category, tc.address)
	}
}

func TestClassify_ParsedOutcomes(t *testing.T) {
	c := newTestClassifier(t)

	testCases := []struct {
		name     string
		rec      Record
		expected Category
	}{
		{
			name: "high_confidence_wrong",
			rec: Record{KnownProvince: "Nghệ An", KnownDistrict: "Vinh",
				ParsedProvince: "nghe an", ParsedDistrict: "thanh chuong", ParsedWard: "thanh hung", Confidence: 0.95},
			expected: CategoryHighConfidenceWrong,
		},
		{
			name: "low_confidence_partial",
			rec: Record{KnownProvince: "Nghệ An",
				ParsedProvince: "nghe an", Confidence: 0.3},
			expected: CategoryLowConfidencePartial,
		},
		{
			name: "partial_match",
			rec: Record{KnownProvince: "Nghệ An",
				ParsedProvince: "nghe an", ParsedDistrict: "vinh", Confidence: 0.65},
			expected: CategoryPartialMatch,
		},
		{
			name: "low_confidence_match",
			rec: Record{KnownDistrict: "Huyện Nam Đàn",
				ParsedProvince: "nghe an", ParsedDistrict: "vinh", ParsedWard: "le mao", Confidence: 0.7},
			expected: CategoryLowConfidenceMatch,
		},
		{
			name: "correct_perceived_wrong",
			rec: Record{KnownProvince: "Tỉnh Nghệ An", KnownDistrict: "TP Vinh",
				ParsedProvince: "nghe an", ParsedDistrict: "vinh", ParsedWard: "le mao", Confidence: 0.98},
			expected: CategoryCorrectPerceivedWrong,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, c.Classify(tc.rec).Category)
		})
	}
}

func TestRecordFromResolution(t *testing.T) {
	r := parser.NewResolver(gazetteertest.Index(t), parser.DefaultResolverConfig(), zap.NewNop())
	c := newTestClassifier(t)

	res := r.Resolve("CTY TNHH MATRIX, TP", "", "")
	rec := RecordFromResolution("x1", res, "Nghệ An", "Vinh", "", 1)
	assert.Empty(t, rec.ParsedProvince)
	assert.Equal(t, 0.0, rec.Confidence)
	assert.Equal(t, CategoryAbbreviationOverload, c.Classify(rec).Category)

	res = r.Resolve("Lê Mao, Vinh, Nghệ An", "", "")
	rec = RecordFromResolution("x2", res, "Nghệ An", "Vinh", "Lê Mao", 2)
	assert.Equal(t, "le mao", rec.ParsedWard)
	assert.Equal(t, CategoryCorrectPerceivedWrong, c.Classify(rec).Category)
}

func TestClassifyAll(t *testing.T) {
	c := newTestClassifier(t)

	records := make([]Record, 50)
	for i := range records {
		records[i] = Record{ID: string(rune('a' + i%26)), Address: "CTY TNHH", KnownProvince: "Hà Nội"}
	}
	records[7].KnownDistrict = "/"

	items, err := c.ClassifyAll(context.Background(), records, 4)
	require.NoError(t, err)
	require.Len(t, items, 50)
	assert.Equal(t, CategoryMissingGeography, items[7].Category)
	assert.Equal(t, records[8].ID, items[8].RecordID)

	report := c.Summarize(items)
	assert.Equal(t, 50, report.Total)
	assert.Equal(t, 49, report.Counts[CategoryOrganizationalNoise])
	assert.Equal(t, 1, report.Counts[CategoryMissingGeography])
	assert.Equal(t, "2024.1", report.TaxonomyVersion)
	assert.Equal(t, []Category{CategoryOrganizationalNoise, CategoryMissingGeography}, report.TopCategories())
}

func TestClassifyAll_Canceled(t *testing.T) {
	c := newTestClassifier(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.ClassifyAll(ctx, []Record{{ID: "1"}, {ID: "2"}}, 2)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParseTaxonomy_Invalid(t *testing.T) {
	testCases := map[string]string{
		"bad_bands":     "version: x\nbands: {low: 0.9, high: 0.5}\ncategories: []\n",
		"bad_regex":     "version: x\nbands: {low: 0.1, high: 0.5}\ncategories:\n  - name: a\n    patterns: ['(']\n",
		"empty_trigger": "version: x\nbands: {low: 0.1, high: 0.5}\ncategories:\n  - name: a\n",
		"builtin_name":  "version: x\nbands: {low: 0.1, high: 0.5}\ncategories:\n  - name: nothing_matched\n    keywords: [x]\n",
		"not_yaml":      "version: [",
	}
	for name, doc := range testCases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseTaxonomy([]byte(doc))
			assert.ErrorIs(t, err, ErrInvalidTaxonomy)
		})
	}
}

func TestLoadTaxonomy_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "taxonomy.yaml")
	doc := "version: custom\nbands: {low: 0.2, high: 0.8}\nsentinels: ['?']\ncategories:\n  - name: po_box\n    keywords: [hop thu]\n"
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	tax, err := LoadTaxonomy(path)
	require.NoError(t, err)
	c := NewClassifier(tax, nil)

	assert.Equal(t, Category("po_box"), c.Classify(Record{Address: "Hộp thư 12"}).Category)
	assert.Equal(t, CategoryMissingGeography, c.Classify(Record{KnownProvince: "?"}).Category)
	// sentinel của resolver luôn được tính, kể cả khi file không liệt kê
	assert.Equal(t, CategoryMissingGeography, c.Classify(Record{KnownDistrict: "N/A"}).Category)

	def, err := LoadTaxonomy("")
	require.NoError(t, err)
	assert.Equal(t, "2024.1", def.Version)

	_, err = LoadTaxonomy(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
