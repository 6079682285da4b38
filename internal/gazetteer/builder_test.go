package gazetteer

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRows() []Row {
	return []Row{
		{ID: "VN", Level: LevelCountry, Name: "Việt Nam"},
		{ID: "40", ParentID: "VN", Level: LevelProvince, Name: "Nghệ An"},
		{ID: "412", ParentID: "40", Level: LevelDistrict, Name: "Thành phố Vinh"},
		{ID: "16681", ParentID: "412", Level: LevelWard, Name: "Phường Hưng Bình"},
	}
}

func TestBuilder_Build(t *testing.T) {
	idx, err := FromRows("v1", sampleRows())
	require.NoError(t, err)

	assert.Equal(t, "v1", idx.Version())
	stats := idx.Stats()
	assert.Equal(t, 1, stats.Provinces)
	assert.Equal(t, 1, stats.Districts)
	assert.Equal(t, 1, stats.Wards)

	w, ok := idx.Ward("nghe an", "vinh", "hung binh")
	require.True(t, ok)
	assert.Equal(t, "Phường Hưng Bình", w.Display)
	assert.Contains(t, w.Aliases, "p hung binh")
}

func TestBuilder_RowOrderDoesNotMatter(t *testing.T) {
	rows := sampleRows()
	reversed := []Row{rows[3], rows[2], rows[1], rows[0]}

	a, err := FromRows("", rows)
	require.NoError(t, err)
	b, err := FromRows("", reversed)
	require.NoError(t, err)

	assert.Equal(t, a.Version(), b.Version())
	assert.True(t, strings.HasPrefix(a.Version(), "sha256:"))
}

func TestBuilder_LearnedAlias(t *testing.T) {
	idx, err := NewBuilder("").Add(sampleRows()...).AddAlias("412", "TP. Vinh Nghệ An").Build()
	require.NoError(t, err)

	d, ok := idx.District("nghe an", "tp vinh nghe an")
	require.True(t, ok)
	assert.Equal(t, "412", d.ID)

	plain, err := FromRows("", sampleRows())
	require.NoError(t, err)
	assert.NotEqual(t, plain.Version(), idx.Version())
}

func TestBuilder_Errors(t *testing.T) {
	testCases := []struct {
		name string
		rows []Row
		want string
	}{
		{
			name: "missing_parent",
			rows: []Row{
				{ID: "40", Level: LevelProvince, Name: "Nghệ An"},
				{ID: "412", ParentID: "99", Level: LevelDistrict, Name: "Vinh"},
			},
			want: "không tìm thấy đơn vị cha",
		},
		{
			name: "wrong_parent_level",
			rows: []Row{
				{ID: "40", Level: LevelProvince, Name: "Nghệ An"},
				{ID: "16681", ParentID: "40", Level: LevelWard, Name: "Hưng Bình"},
			},
			want: "cần district",
		},
		{
			name: "duplicate_id",
			rows: []Row{
				{ID: "40", Level: LevelProvince, Name: "Nghệ An"},
				{ID: "40", Level: LevelProvince, Name: "Hà Tĩnh"},
			},
			want: "bị trùng",
		},
		{
			name: "duplicate_name_in_scope",
			rows: []Row{
				{ID: "40", Level: LevelProvince, Name: "Nghệ An"},
				{ID: "41", Level: LevelProvince, Name: "Tỉnh Nghệ An"},
			},
			want: "trùng với 40",
		},
		{
			name: "empty_name",
			rows: []Row{{ID: "40", Level: LevelProvince, Name: " , "}},
			want: "thiếu tên",
		},
		{
			name: "no_provinces",
			rows: []Row{{ID: "VN", Level: LevelCountry, Name: "Việt Nam"}},
			want: "không có tỉnh nào",
		},
		{
			name: "invalid_level",
			rows: []Row{{ID: "x", Level: 7, Name: "Ấp"}},
			want: "không hợp lệ",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			idx, err := FromRows("", tc.rows)
			assert.Nil(t, idx)
			require.ErrorIs(t, err, ErrReferenceLoad)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestBuilder_UnknownAliasTarget(t *testing.T) {
	_, err := NewBuilder("").Add(sampleRows()...).AddAlias("nope", "x").Build()
	require.ErrorIs(t, err, ErrReferenceLoad)
}

func TestLoad_Snapshot(t *testing.T) {
	doc := `
version: mini
provinces:
  - name: Tỉnh Bến Tre
    districts:
      - name: Huyện Châu Thành
        wards:
          - name: Xã Tân Thạch
`
	idx, err := Load(strings.NewReader(doc))
	require.NoError(t, err)
	assert.Equal(t, "mini", idx.Version())

	w, ok := idx.Ward("ben tre", "chau thanh", "tan thach")
	require.True(t, ok)
	assert.Equal(t, "ben-tre/chau-thanh/tan-thach", w.ID)
}

func TestLoad_JSONSnapshot(t *testing.T) {
	doc := `{"version":"j","provinces":[{"id":"01","name":"Hà Nội","districts":[{"id":"001","name":"Quận Ba Đình"}]}]}`
	idx, err := Load(bytes.NewBufferString(doc))
	require.NoError(t, err)
	assert.Len(t, idx.DistrictsOf("ha noi"), 1)
}

func TestLoad_Rejects(t *testing.T) {
	_, err := Load(strings.NewReader(""))
	assert.ErrorIs(t, err, ErrReferenceLoad)

	_, err = Load(strings.NewReader("provinces:\n  - name: A\n    population: 3\n"))
	assert.ErrorIs(t, err, ErrReferenceLoad)

	_, err = LoadFile("does/not/exist.yaml")
	assert.ErrorIs(t, err, ErrReferenceLoad)
}
