package gazetteer

import (
	"strings"

	"github.com/address-resolver/internal/normalizer"
)

type typePrefix struct {
	full    string
	abbrevs []string
}

// Tiền tố loại đơn vị sau khi bỏ dấu. Tiền tố hai từ đứng trước.
var typePrefixes = []typePrefix{
	{full: "thanh pho", abbrevs: []string{"tp"}},
	{full: "thi tran", abbrevs: []string{"tt"}},
	{full: "thi xa", abbrevs: []string{"tx"}},
	{full: "tinh", abbrevs: nil},
	{full: "quan", abbrevs: []string{"q"}},
	{full: "huyen", abbrevs: []string{"h"}},
	{full: "phuong", abbrevs: []string{"p", "f"}},
	{full: "xa", abbrevs: []string{"x"}},
}

// FoldName đưa một tên bất kỳ về dạng so khớp: không dấu, lowercase, separator thành khoảng trắng.
func FoldName(s string) string {
	return normalizer.Canonicalize(s, "")
}

// splitPrefix tách tiền tố loại đơn vị khỏi tên đã fold.
func splitPrefix(folded string) (*typePrefix, string) {
	for i := range typePrefixes {
		p := &typePrefixes[i]
		if strings.HasPrefix(folded, p.full+" ") {
			rest := strings.TrimSpace(folded[len(p.full):])
			if rest != "" {
				return p, rest
			}
		}
	}
	return nil, folded
}

// CanonicalName "Huyện Thanh Chương" -> "thanh chuong". Tên chỉ có số giữ
// tiền tố: "Phường 14" -> "phuong 14", "Quận 1" -> "quan 1".
func CanonicalName(display string) string {
	folded := FoldName(display)
	prefix, rest := splitPrefix(folded)
	if prefix == nil || isNumeric(rest) {
		return folded
	}
	return rest
}

// StripTypePrefix bỏ tiền tố loại đơn vị của một cụm đã fold, giữ nguyên nếu phần còn lại là số.
func StripTypePrefix(folded string) string {
	prefix, rest := splitPrefix(folded)
	if prefix == nil || isNumeric(rest) {
		return folded
	}
	return rest
}

// generatedAliases sinh các cách viết tắt phổ biến từ tên gốc.
func generatedAliases(display string) []string {
	folded := FoldName(display)
	prefix, rest := splitPrefix(folded)

	var out []string
	if prefix != nil {
		out = append(out, folded)
		if isNumeric(rest) {
			for _, num := range numericForms(rest) {
				if num != rest {
					out = append(out, prefix.full+" "+num)
				}
				for _, ab := range prefix.abbrevs {
					out = append(out, ab+num, ab+" "+num)
				}
			}
		} else {
			for _, ab := range prefix.abbrevs {
				out = append(out, ab+" "+rest)
			}
		}
	}
	if !isNumeric(rest) && strings.Contains(rest, " ") {
		out = append(out, strings.ReplaceAll(rest, " ", ""))
	}
	return out
}

// numericForms "01" -> ["01", "1"].
func numericForms(num string) []string {
	forms := []string{num}
	if trimmed := strings.TrimLeft(num, "0"); trimmed != "" && trimmed != num {
		forms = append(forms, trimmed)
	}
	return forms
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// BareName bỏ cả tiền tố đầy đủ lẫn viết tắt: "TP. Vinh" -> "vinh", "Q.3" -> "quan 3".
// Dùng để so sánh hai tên do người nhập, không dùng để tra index.
func BareName(s string) string {
	folded := FoldName(s)
	if stripped := StripTypePrefix(folded); stripped != folded {
		return stripped
	}
	for _, p := range typePrefixes {
		for _, ab := range p.abbrevs {
			rest, ok := strings.CutPrefix(folded, ab+" ")
			if !ok || rest == "" {
				continue
			}
			if isNumeric(rest) {
				return p.full + " " + rest
			}
			return rest
		}
	}
	return folded
}
