// Package gazetteer giữ cây hành chính tỉnh -> quận/huyện -> phường/xã dưới dạng
// index bất biến, tra cứu theo phạm vi cha.
package gazetteer

import (
	"fmt"
	"strconv"
	"strings"
)

// Level cấp hành chính. Giá trị trùng với cột level của admin_units.
type Level int

const (
	LevelCountry  Level = 1
	LevelProvince Level = 2
	LevelDistrict Level = 3
	LevelWard     Level = 4
)

func (l Level) String() string {
	switch l {
	case LevelCountry:
		return "country"
	case LevelProvince:
		return "province"
	case LevelDistrict:
		return "district"
	case LevelWard:
		return "ward"
	default:
		return "level_" + strconv.Itoa(int(l))
	}
}

// Valid chỉ nhận ba cấp mà resolver làm việc.
func (l Level) Valid() bool {
	return l >= LevelProvince && l <= LevelWard
}

// Child trả về cấp con, 0 nếu là ward.
func (l Level) Child() Level {
	if l >= LevelProvince && l < LevelWard {
		return l + 1
	}
	return 0
}

// MarshalText để JSON/YAML hiển thị "province" thay vì 2.
func (l Level) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

func (l *Level) UnmarshalText(b []byte) error {
	parsed, err := ParseLevel(string(b))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// ParseLevel nhận tên cấp ("district", "huyen") hoặc số ("3").
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "country", "1":
		return LevelCountry, nil
	case "province", "tinh", "2":
		return LevelProvince, nil
	case "district", "huyen", "quan", "3":
		return LevelDistrict, nil
	case "ward", "xa", "phuong", "4":
		return LevelWard, nil
	}
	return 0, fmt.Errorf("cấp hành chính không hợp lệ: %q", s)
}

// Entity một đơn vị hành chính đã chuẩn hóa.
type Entity struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`    // tên chuẩn, không dấu, bỏ tiền tố loại đơn vị
	Display  string   `json:"display"` // tên gốc có dấu
	Level    Level    `json:"level"`
	Subtype  string   `json:"subtype,omitempty"`
	Aliases  []string `json:"aliases,omitempty"`
	ParentID string   `json:"parent_id,omitempty"`
	Parent   string   `json:"parent,omitempty"`   // tên chuẩn của đơn vị cha
	Province string   `json:"province,omitempty"` // tên chuẩn của tỉnh chứa đơn vị
}

// TokenCount số token của tên chuẩn.
func (e *Entity) TokenCount() int {
	return len(strings.Fields(e.Name))
}

// Key định danh duy nhất theo tên: province|parent|name.
func (e *Entity) Key() string {
	switch e.Level {
	case LevelProvince:
		return e.Name
	case LevelDistrict:
		return e.Province + "|" + e.Name
	default:
		return e.Province + "|" + e.Parent + "|" + e.Name
	}
}

// Row là dạng phẳng của một đơn vị như khi lưu trong storage.
type Row struct {
	ID       string   `json:"id" yaml:"id"`
	ParentID string   `json:"parent_id,omitempty" yaml:"parent_id,omitempty"`
	Level    Level    `json:"level" yaml:"level"`
	Name     string   `json:"name" yaml:"name"`
	Subtype  string   `json:"subtype,omitempty" yaml:"subtype,omitempty"`
	Aliases  []string `json:"aliases,omitempty" yaml:"aliases,omitempty"`
}
