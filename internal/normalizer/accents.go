package normalizer

import (
	"strings"
	"unicode"

	"github.com/mozillazg/go-unidecode"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// StripDiacritics loại bỏ dấu tiếng Việt một cách an toàn
func StripDiacritics(s string) string {
	t := transform.Chain(norm.NFD, transform.RemoveFunc(isMn), norm.NFC)
	out, _, _ := transform.String(t, s)
	return out
}

// isMn kiểm tra xem rune có phải là diacritic mark không
func isMn(r rune) bool {
	return unicode.Is(unicode.Mn, r)
}

// Fold bỏ dấu, chuyển các ký tự còn lại (đ, ư, ơ...) về ASCII và lowercase.
// "Thành phố Hồ Chí Minh" -> "thanh pho ho chi minh", "Đông Anh" -> "dong anh".
func Fold(s string) string {
	if s == "" {
		return ""
	}
	return strings.ToLower(unidecode.Unidecode(StripDiacritics(s)))
}
