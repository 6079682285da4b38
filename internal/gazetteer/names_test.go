package gazetteer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanonicalName(t *testing.T) {
	cases := map[string]string{
		"Huyện Thanh Chương":    "thanh chuong",
		"Thành phố Hồ Chí Minh": "ho chi minh",
		"Phường 14":             "phuong 14",
		"Quận 1":                "quan 1",
		"Thị xã Cửa Lò":         "cua lo",
		"Xã":                    "xa",
		"Nghệ An":               "nghe an",
		"  Q.Tân Bình ":         "q tan binh",
	}
	for in, want := range cases {
		assert.Equal(t, want, CanonicalName(in), in)
	}
}

func TestStripTypePrefix(t *testing.T) {
	assert.Equal(t, "tan binh", StripTypePrefix("quan tan binh"))
	assert.Equal(t, "quan 3", StripTypePrefix("quan 3"))
	assert.Equal(t, "vinh", StripTypePrefix("thanh pho vinh"))
	assert.Equal(t, "binh", StripTypePrefix("binh"))
}

func TestGeneratedAliases(t *testing.T) {
	assert.ElementsMatch(t,
		[]string{"phuong 07", "phuong 7", "p07", "p 07", "f07", "f 07", "p7", "p 7", "f7", "f 7"},
		generatedAliases("Phường 07"))

	assert.ElementsMatch(t,
		[]string{"quan tan binh", "q tan binh", "tanbinh"},
		generatedAliases("Quận Tân Bình"))

	assert.Empty(t, generatedAliases("Vinh"))
	assert.Equal(t, []string{"nghean"}, generatedAliases("Nghệ An"))
}

func TestParseLevel(t *testing.T) {
	l, err := ParseLevel("district")
	assert.NoError(t, err)
	assert.Equal(t, LevelDistrict, l)

	l, err = ParseLevel("4")
	assert.NoError(t, err)
	assert.Equal(t, LevelWard, l)
	assert.Equal(t, Level(0), LevelWard.Child())
	assert.Equal(t, LevelWard, LevelDistrict.Child())

	_, err = ParseLevel("hamlet")
	assert.Error(t, err)
}

func TestBareName(t *testing.T) {
	assert.Equal(t, "vinh", BareName("TP Vinh"))
	assert.Equal(t, "vinh", BareName("Thành phố Vinh"))
	assert.Equal(t, "tan binh", BareName("Q.Tân Bình"))
	assert.Equal(t, "quan 3", BareName("Q.3"))
	assert.Equal(t, "phuong 14", BareName("P.14"))
	assert.Equal(t, "phuong 14", BareName("Phường 14"))
	assert.Equal(t, "nghe an", BareName("Nghệ An"))
}
