package gazetteer

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Builder gom các row rồi dựng Index, kiểm tra toàn vẹn quan hệ cha-con.
type Builder struct {
	version string
	rows    []Row
	learned map[string][]string
}

// NewBuilder tạo builder. version rỗng thì Build tự tính fingerprint.
func NewBuilder(version string) *Builder {
	return &Builder{version: version, learned: make(map[string][]string)}
}

// Add thêm row. Row cấp quốc gia bị bỏ qua.
func (b *Builder) Add(rows ...Row) *Builder {
	b.rows = append(b.rows, rows...)
	return b
}

// AddAlias gắn thêm alias (ví dụ alias đã học) cho đơn vị có mã id.
func (b *Builder) AddAlias(id, alias string) *Builder {
	b.learned[id] = append(b.learned[id], alias)
	return b
}

// FromRows dựng index từ danh sách row.
func FromRows(version string, rows []Row) (*Index, error) {
	return NewBuilder(version).Add(rows...).Build()
}

// Build kiểm tra và dựng index. Mọi vấn đề được gom lại trong một lỗi bọc ErrReferenceLoad.
func (b *Builder) Build() (*Index, error) {
	var errs []error

	rows := make([]Row, 0, len(b.rows))
	for _, r := range b.rows {
		if r.Level == LevelCountry {
			continue
		}
		rows = append(rows, r)
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Level < rows[j].Level })

	idx := &Index{
		byID:                make(map[string]*Entity, len(rows)),
		districtsByProvince: make(map[string]*Scope),
		wardsByDistrict:     make(map[string]*Scope),
		wardsByProvince:     make(map[string]*Scope),
		wardsByDistrictName: make(map[string]*Scope),
	}

	var provinces, districts, wards []*Entity
	seenKey := make(map[string]string)

	for i, r := range rows {
		if r.ID == "" {
			errs = append(errs, fmt.Errorf("row %d (%q): thiếu id", i, r.Name))
			continue
		}
		if _, dup := idx.byID[r.ID]; dup {
			errs = append(errs, fmt.Errorf("id %s bị trùng", r.ID))
			continue
		}
		if !r.Level.Valid() {
			errs = append(errs, fmt.Errorf("id %s: level %d không hợp lệ", r.ID, r.Level))
			continue
		}
		name := CanonicalName(r.Name)
		if name == "" {
			errs = append(errs, fmt.Errorf("id %s: thiếu tên", r.ID))
			continue
		}

		e := &Entity{
			ID:       r.ID,
			Name:     name,
			Display:  strings.TrimSpace(r.Name),
			Level:    r.Level,
			Subtype:  r.Subtype,
			ParentID: r.ParentID,
		}

		if r.Level != LevelProvince {
			parent, ok := idx.byID[r.ParentID]
			if !ok {
				errs = append(errs, fmt.Errorf("id %s (%s): không tìm thấy đơn vị cha %q", r.ID, r.Name, r.ParentID))
				continue
			}
			if parent.Level != r.Level-1 {
				errs = append(errs, fmt.Errorf("id %s (%s): đơn vị cha %s là %s, cần %s", r.ID, r.Name, parent.ID, parent.Level, r.Level-1))
				continue
			}
			e.Parent = parent.Name
			e.Province = parent.Province
		} else {
			e.ParentID = ""
			e.Province = name
		}

		if other, dup := seenKey[e.Key()]; dup {
			errs = append(errs, fmt.Errorf("id %s: tên %q trùng với %s trong cùng phạm vi", r.ID, name, other))
			continue
		}
		seenKey[e.Key()] = r.ID

		e.Aliases = buildAliases(name, r.Name, r.Aliases, b.learned[r.ID])
		idx.aliasCount += len(e.Aliases)
		idx.byID[r.ID] = e

		switch r.Level {
		case LevelProvince:
			provinces = append(provinces, e)
		case LevelDistrict:
			districts = append(districts, e)
		case LevelWard:
			wards = append(wards, e)
		}
	}

	for id := range b.learned {
		if _, ok := idx.byID[id]; !ok {
			errs = append(errs, fmt.Errorf("alias gắn cho id %s không tồn tại", id))
		}
	}
	if len(provinces) == 0 {
		errs = append(errs, errors.New("không có tỉnh nào"))
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("%w: %w", ErrReferenceLoad, errors.Join(errs...))
	}

	idx.provinces = newScope(LevelProvince, provinces)
	idx.allDistricts = newScope(LevelDistrict, districts)
	idx.allWards = newScope(LevelWard, wards)

	for province, list := range groupBy(districts, func(e *Entity) string { return e.Province }) {
		idx.districtsByProvince[province] = newScope(LevelDistrict, list)
	}
	for key, list := range groupBy(wards, func(e *Entity) string { return e.Province + "|" + e.Parent }) {
		idx.wardsByDistrict[key] = newScope(LevelWard, list)
	}
	for province, list := range groupBy(wards, func(e *Entity) string { return e.Province }) {
		idx.wardsByProvince[province] = newScope(LevelWard, list)
	}
	for district, list := range groupBy(wards, func(e *Entity) string { return e.Parent }) {
		idx.wardsByDistrictName[district] = newScope(LevelWard, list)
	}

	idx.version = b.version
	if idx.version == "" {
		idx.version = fingerprint(rows, b.learned)
	}
	return idx, nil
}

func buildAliases(name, display string, given, learned []string) []string {
	seen := map[string]bool{name: true, "": true}
	var out []string
	add := func(a string) {
		if !seen[a] {
			seen[a] = true
			out = append(out, a)
		}
	}
	for _, a := range generatedAliases(display) {
		add(a)
	}
	for _, a := range given {
		add(FoldName(a))
	}
	for _, a := range learned {
		add(FoldName(a))
	}
	return out
}

func groupBy(list []*Entity, key func(*Entity) string) map[string][]*Entity {
	out := make(map[string][]*Entity)
	for _, e := range list {
		k := key(e)
		out[k] = append(out[k], e)
	}
	return out
}

// fingerprint sha256 ổn định theo nội dung, không phụ thuộc thứ tự row.
func fingerprint(rows []Row, learned map[string][]string) string {
	lines := make([]string, 0, len(rows))
	for _, r := range rows {
		aliases := append(append([]string(nil), r.Aliases...), learned[r.ID]...)
		sort.Strings(aliases)
		lines = append(lines, fmt.Sprintf("%s|%s|%d|%s|%s", r.ID, r.ParentID, r.Level, r.Name, strings.Join(aliases, ",")))
	}
	sort.Strings(lines)
	sum := sha256.Sum256([]byte(strings.Join(lines, "\n")))
	return fmt.Sprintf("sha256:%x", sum[:8])
}
