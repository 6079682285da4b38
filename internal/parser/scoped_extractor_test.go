package parser

import (
	"testing"

	"github.com/address-resolver/internal/gazetteer"
	"github.com/address-resolver/internal/gazetteer/gazetteertest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestExtractor(t *testing.T) *Extractor {
	t.Helper()
	return NewExtractor(gazetteertest.Index(t), newTestMatcher(), zap.NewNop())
}

func findCandidate(cands []Candidate, name string, span Span) *Candidate {
	for i := range cands {
		if cands[i].Name == name && cands[i].Span == span {
			return &cands[i]
		}
	}
	return nil
}

func TestExtractLevel_TwoDisjointDistricts(t *testing.T) {
	x := newTestExtractor(t)
	tokens := []string{"thanh", "hung", "thanh", "chuong", "cty", "tnhh", "matrix", "vinh"}

	cands := x.ExtractLevel(tokens, gazetteer.LevelDistrict, Scope{Province: "nghe an"}, []Span{NoSpan}, "", 0.8)

	tc := findCandidate(cands, "thanh chuong", Span{Start: 2, End: 4})
	require.NotNil(t, tc)
	assert.Equal(t, SourceExact, tc.Source)
	assert.Equal(t, 1.0, tc.Score)

	vinh := findCandidate(cands, "vinh", Span{Start: 7, End: 8})
	require.NotNil(t, vinh)
	assert.Equal(t, SourceExact, vinh.Source)
	assert.GreaterOrEqual(t, vinh.Score, 0.8)

	// cụm "thanh hung" gần giống "thanh chuong" nên cũng được giữ lại dạng fuzzy
	fuzzy := findCandidate(cands, "thanh chuong", Span{Start: 0, End: 2})
	require.NotNil(t, fuzzy)
	assert.Equal(t, SourceFuzzy, fuzzy.Source)
	assert.Less(t, fuzzy.Score, 1.0)

	// span dài hơn đứng trước khi hòa điểm
	assert.Equal(t, "thanh chuong", cands[0].Name)
	for i := 1; i < len(cands); i++ {
		assert.GreaterOrEqual(t, cands[i-1].Score, cands[i].Score)
	}
	for _, c := range cands {
		assert.Equal(t, "nghe an", c.Province)
	}
}

func TestExtractLevel_KnownValueStillScansText(t *testing.T) {
	x := newTestExtractor(t)
	tokens := []string{"p14", "q", "tan", "binh"}

	cands := x.ExtractLevel(tokens, gazetteer.LevelDistrict, Scope{Province: "ho chi minh"}, nil, "Quận 1", 0.8)
	require.NotEmpty(t, cands)
	assert.Equal(t, SourceKnown, cands[0].Source)
	assert.Equal(t, "quan 1", cands[0].Name)
	assert.Equal(t, NoSpan, cands[0].Span)

	assert.NotNil(t, findCandidate(cands, "tan binh", Span{Start: 2, End: 4}))
	alias := findCandidate(cands, "tan binh", Span{Start: 1, End: 4})
	require.NotNil(t, alias)
	assert.Equal(t, SourceAlias, alias.Source)
	assert.Equal(t, gazetteer.AliasScore, alias.Score)
}

func TestExtractLevel_KnownOutsideScopeIgnored(t *testing.T) {
	x := newTestExtractor(t)
	cands := x.ExtractLevel([]string{"vinh"}, gazetteer.LevelDistrict, Scope{Province: "nghe an"}, nil, "Quận 1", 0.8)
	for _, c := range cands {
		assert.NotEqual(t, SourceKnown, c.Source)
	}
	assert.Len(t, cands, 1)
}

func TestExtractLevel_SkipsConsumedSpans(t *testing.T) {
	x := newTestExtractor(t)
	tokens := []string{"thanh", "hung", "thanh", "chuong", "vinh"}

	cands := x.ExtractLevel(tokens, gazetteer.LevelDistrict, Scope{Province: "nghe an"}, []Span{{Start: 2, End: 4}}, "", 0.8)
	for _, c := range cands {
		assert.False(t, c.Span.Overlaps(Span{Start: 2, End: 4}), c)
	}
	assert.NotNil(t, findCandidate(cands, "vinh", Span{Start: 4, End: 5}))
}

func TestExtractLevel_NestedHint(t *testing.T) {
	x := newTestExtractor(t)

	cands := x.ExtractLevel([]string{"nam", "dan"}, gazetteer.LevelDistrict, Scope{Province: "nghe an"}, nil, "", 0.8)
	require.Len(t, cands, 1)
	hint := cands[0].Hint
	assert.Equal(t, gazetteer.LevelWard, hint.Level)
	assert.Equal(t, "nam dan", hint.Name)
	assert.Equal(t, "18118", hint.ID)
	assert.Equal(t, Span{Start: 0, End: 2}, hint.Span)

	prov := x.ExtractLevel([]string{"ha", "tinh"}, gazetteer.LevelProvince, Scope{}, nil, "", 0.8)
	require.NotEmpty(t, prov)
	assert.Equal(t, "ha tinh", prov[0].Name)
	assert.Equal(t, gazetteer.LevelDistrict, prov[0].Hint.Level)
	assert.Equal(t, "436", prov[0].Hint.ID)

	// không có cấp con khớp thì hint rỗng
	vinh := x.ExtractLevel([]string{"vinh"}, gazetteer.LevelDistrict, Scope{Province: "nghe an"}, nil, "", 0.8)
	require.Len(t, vinh, 1)
	assert.Empty(t, vinh[0].Hint.Name)
	assert.Equal(t, NoSpan, vinh[0].Hint.Span)
}

func TestExtractLevel_SameNameAcrossProvinces(t *testing.T) {
	x := newTestExtractor(t)

	cands := x.ExtractLevel([]string{"chau", "thanh"}, gazetteer.LevelDistrict, Scope{}, nil, "", 0.8)
	require.Len(t, cands, 2)
	assert.Equal(t, cands[0].Score, cands[1].Score)
	assert.ElementsMatch(t, []string{"tien giang", "ben tre"}, []string{cands[0].Province, cands[1].Province})

	scoped := x.ExtractLevel([]string{"chau", "thanh"}, gazetteer.LevelDistrict, Scope{Province: "ben tre"}, nil, "", 0.8)
	require.Len(t, scoped, 1)
	assert.Equal(t, "831", scoped[0].ID)
}

func TestExtractLevel_NothingMatches(t *testing.T) {
	x := newTestExtractor(t)

	cands := x.ExtractLevel([]string{"cty", "tnhh", "matrix"}, gazetteer.LevelWard, Scope{Province: "nghe an", District: "vinh"}, nil, "", 0.8)
	assert.NotNil(t, cands)
	assert.Empty(t, cands)

	assert.Empty(t, x.ExtractLevel(nil, gazetteer.LevelProvince, Scope{}, nil, "", 0.8))
	assert.Empty(t, x.ExtractLevel([]string{"vinh"}, gazetteer.LevelDistrict, Scope{Province: "atlantis"}, nil, "", 0.8))
}

func TestExtractLevel_FusedAndSplitSpellings(t *testing.T) {
	x := newTestExtractor(t)
	scope := Scope{Province: "nghe an"}

	// dính liền và sai một chữ
	fused := x.ExtractLevel([]string{"thanhchuog"}, gazetteer.LevelDistrict, scope, nil, "", 0.5)
	tc := findCandidate(fused, "thanh chuong", Span{Start: 0, End: 1})
	require.NotNil(t, tc)
	assert.Equal(t, SourceFuzzy, tc.Source)
	assert.InDelta(t, x.matcher.Similarity("thanhchuog", "thanhchuong"), tc.Score, 1e-9)

	// tách thành ba token
	split := x.ExtractLevel([]string{"thanh", "chu", "ong"}, gazetteer.LevelDistrict, scope, nil, "", 0.8)
	sc := findCandidate(split, "thanh chuong", Span{Start: 0, End: 3})
	require.NotNil(t, sc)
	assert.Equal(t, 1.0, sc.Score)
	assert.Equal(t, SourceFuzzy, sc.Source)

	// cửa sổ ngắn vẫn được chấm, chỉ bị loại bởi ngưỡng
	short := x.ExtractLevel([]string{"vin"}, gazetteer.LevelDistrict, scope, nil, "", 0.5)
	assert.NotNil(t, findCandidate(short, "vinh", Span{Start: 0, End: 1}))
}

func TestSpan(t *testing.T) {
	assert.False(t, NoSpan.Used())
	assert.Equal(t, 0, NoSpan.Len())
	assert.False(t, NoSpan.Overlaps(Span{Start: 0, End: 10}))
	assert.True(t, Span{Start: 0, End: 2}.Overlaps(Span{Start: 1, End: 3}))
	assert.False(t, Span{Start: 0, End: 2}.Overlaps(Span{Start: 2, End: 3}))
}
