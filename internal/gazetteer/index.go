package gazetteer

import (
	"errors"
	"sort"
)

// ErrReferenceLoad dữ liệu tham chiếu thiếu hoặc hỏng. Lỗi này chỉ xuất hiện lúc khởi động.
var ErrReferenceLoad = errors.New("reference load failure")

// AliasScore điểm của một hit alias; thấp hơn exact để exact thắng khi hòa.
const AliasScore = 0.97

// Index là cây hành chính bất biến, dùng chung cho mọi request mà không cần khóa.
type Index struct {
	version string

	provinces *Scope
	byID      map[string]*Entity

	districtsByProvince map[string]*Scope
	allDistricts        *Scope

	wardsByDistrict     map[string]*Scope // province|district
	wardsByProvince     map[string]*Scope
	wardsByDistrictName map[string]*Scope
	allWards            *Scope

	aliasCount int
}

// Stats số lượng đơn vị theo cấp.
type Stats struct {
	Version   string `json:"version"`
	Provinces int    `json:"provinces"`
	Districts int    `json:"districts"`
	Wards     int    `json:"wards"`
	Aliases   int    `json:"aliases"`
}

// Version phiên bản snapshot, hoặc fingerprint SHA-256 của các row.
func (idx *Index) Version() string { return idx.version }

// Stats thống kê index.
func (idx *Index) Stats() Stats {
	return Stats{
		Version:   idx.version,
		Provinces: idx.provinces.Len(),
		Districts: idx.allDistricts.Len(),
		Wards:     idx.allWards.Len(),
		Aliases:   idx.aliasCount,
	}
}

// ProvinceNames tên chuẩn của mọi tỉnh, đã sắp xếp.
func (idx *Index) ProvinceNames() []string {
	names := make([]string, 0, idx.provinces.Len())
	for _, p := range idx.provinces.Entities() {
		names = append(names, p.Name)
	}
	sort.Strings(names)
	return names
}

// Provinces danh sách tỉnh theo tên.
func (idx *Index) Provinces() []*Entity { return idx.provinces.Entities() }

// Districts mọi quận/huyện.
func (idx *Index) Districts() []*Entity { return idx.allDistricts.Entities() }

// Wards mọi phường/xã.
func (idx *Index) Wards() []*Entity { return idx.allWards.Entities() }

// EntityByID tra theo mã đơn vị.
func (idx *Index) EntityByID(id string) (*Entity, bool) {
	e, ok := idx.byID[id]
	return e, ok
}

// Province tra một tỉnh theo tên bất kỳ (có dấu, có tiền tố, alias).
func (idx *Index) Province(name string) (*Entity, bool) {
	return first(idx.provinces.Lookup(FoldName(name)))
}

// District tra quận/huyện trong một tỉnh.
func (idx *Index) District(province, name string) (*Entity, bool) {
	p, ok := idx.Province(province)
	if !ok {
		return nil, false
	}
	return first(idx.districtsByProvince[p.Name].Lookup(FoldName(name)))
}

// Ward tra phường/xã trong một quận/huyện của một tỉnh.
func (idx *Index) Ward(province, district, name string) (*Entity, bool) {
	d, ok := idx.District(province, district)
	if !ok {
		return nil, false
	}
	return first(idx.wardsByDistrict[d.Key()].Lookup(FoldName(name)))
}

// DistrictsOf quận/huyện thuộc tỉnh; rỗng nếu không biết tỉnh.
func (idx *Index) DistrictsOf(province string) []*Entity {
	p, ok := idx.Province(province)
	if !ok {
		return []*Entity{}
	}
	return nonNil(idx.districtsByProvince[p.Name].Entities())
}

// WardsOf phường/xã của quận/huyện, phân biệt bằng tỉnh vì tên quận có thể trùng giữa các tỉnh.
func (idx *Index) WardsOf(district, province string) []*Entity {
	d, ok := idx.District(province, district)
	if !ok {
		return []*Entity{}
	}
	return nonNil(idx.wardsByDistrict[d.Key()].Entities())
}

// ScopeFor tập ứng viên hợp lệ cho level dưới phạm vi cha. Tham số là tên chuẩn;
// chuỗi rỗng nghĩa là chưa biết và scope mở rộng ra toàn bộ cấp đó.
// Tên cha không có trong index cho scope rỗng.
func (idx *Index) ScopeFor(level Level, province, district string) *Scope {
	switch level {
	case LevelProvince:
		return idx.provinces
	case LevelDistrict:
		if province == "" {
			return idx.allDistricts
		}
		return idx.districtsByProvince[province]
	case LevelWard:
		switch {
		case province != "" && district != "":
			return idx.wardsByDistrict[province+"|"+district]
		case province != "":
			return idx.wardsByProvince[province]
		case district != "":
			return idx.wardsByDistrictName[district]
		default:
			return idx.allWards
		}
	}
	return nil
}

// MaxTokens độ dài (token) lớn nhất của tên/alias trong một cấp.
func (idx *Index) MaxTokens(level Level) int {
	return idx.ScopeFor(level, "", "").MaxTokens()
}

func first(list []*Entity) (*Entity, bool) {
	if len(list) == 0 {
		return nil, false
	}
	return list[0], true
}

func nonNil(list []*Entity) []*Entity {
	if list == nil {
		return []*Entity{}
	}
	return list
}
