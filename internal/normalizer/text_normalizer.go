// Package normalizer chuẩn hóa văn bản địa chỉ thô thành chuỗi token sạch.
package normalizer

import "strings"

// DefaultSeparators là các ký tự phân cách được thay bằng khoảng trắng.
const DefaultSeparators = ",-_"

// AddressSeparators mở rộng DefaultSeparators cho văn bản địa chỉ thực tế
// ("Q.TAN BINH", "P14;Q3", "80/12/7").
const AddressSeparators = DefaultSeparators + ".;:/\\()[]|\"'"

// Options cấu hình Normalize.
type Options struct {
	// KeepSeparators thay separator bằng một khoảng trắng. Khi false separator
	// bị xóa hẳn và hai phía dính lại với nhau ("tan-binh" -> "tanbinh").
	KeepSeparators bool
	// Separators mặc định là DefaultSeparators.
	Separators string
}

// Normalize lowercase, xử lý separator, gộp khoảng trắng và trim.
// Normalize(Normalize(x, k), k) == Normalize(x, k).
func Normalize(text string, keepSeparators bool) string {
	return NormalizeWith(text, Options{KeepSeparators: keepSeparators})
}

// NormalizeWith giống Normalize nhưng cho phép đổi tập separator.
func NormalizeWith(text string, opts Options) string {
	if text == "" {
		return ""
	}
	seps := opts.Separators
	if seps == "" {
		seps = DefaultSeparators
	}

	var b strings.Builder
	b.Grow(len(text))
	for _, r := range strings.ToLower(text) {
		if strings.ContainsRune(seps, r) {
			if opts.KeepSeparators {
				b.WriteByte(' ')
			}
			continue
		}
		b.WriteRune(r)
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// Canonicalize là dạng dùng cho resolver: bỏ dấu rồi normalize giữ separator.
func Canonicalize(text, separators string) string {
	if separators == "" {
		separators = AddressSeparators
	}
	return NormalizeWith(Fold(text), Options{KeepSeparators: true, Separators: separators})
}

// Tokenize tách NormalizedText thành token theo khoảng trắng.
func Tokenize(normalized string) []string {
	return strings.Fields(normalized)
}
