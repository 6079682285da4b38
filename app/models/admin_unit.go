package models

import (
	"strings"
	"time"

	"github.com/address-resolver/internal/gazetteer"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AdminUnit đại diện cho đơn vị hành chính (quốc gia, tỉnh, quận, phường)
type AdminUnit struct {
	ID               primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	AdminID          string             `bson:"admin_id" json:"admin_id"`                       // ID theo cấp hành chính
	ParentID         *string            `bson:"parent_id,omitempty" json:"parent_id,omitempty"` // ID của đơn vị cha
	Level            int                `bson:"level" json:"level"`                             // 1=country, 2=province, 3=district, 4=ward
	Name             string             `bson:"name" json:"name"`                               // Tên đơn vị hành chính (có dấu)
	NormalizedName   string             `bson:"normalized_name" json:"normalized_name"`         // Tên chuẩn (không dấu, bỏ tiền tố loại)
	AdminSubtype     string             `bson:"admin_subtype" json:"admin_subtype"`             // Loại phụ (province, municipality, urban_district, ...)
	Aliases          []string           `bson:"aliases,omitempty" json:"aliases,omitempty"`     // Các tên gọi khác
	Path             []string           `bson:"path" json:"path"`                               // Đường dẫn ID từ gốc đến đơn vị hiện tại
	PathNormalized   []string           `bson:"path_normalized" json:"path_normalized"`         // Đường dẫn tên chuẩn của các đơn vị cha
	GazetteerVersion string             `bson:"gazetteer_version" json:"gazetteer_version"`     // Phiên bản dữ liệu tham chiếu
	CreatedAt        time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt        time.Time          `bson:"updated_at" json:"updated_at"`
}

// AdminSubtype constants
const (
	AdminSubtypeCountry           = "country"
	AdminSubtypeProvince          = "province"
	AdminSubtypeMunicipality      = "municipality"
	AdminSubtypeUrbanDistrict     = "urban_district"
	AdminSubtypeRuralDistrict     = "rural_district"
	AdminSubtypeCityUnderProvince = "city_under_province"
	AdminSubtypeTown              = "town"
	AdminSubtypeWard              = "ward"
	AdminSubtypeCommune           = "commune"
	AdminSubtypeTownship          = "township"
)

var validSubtypes = map[string]bool{
	AdminSubtypeCountry:           true,
	AdminSubtypeProvince:          true,
	AdminSubtypeMunicipality:      true,
	AdminSubtypeUrbanDistrict:     true,
	AdminSubtypeRuralDistrict:     true,
	AdminSubtypeCityUnderProvince: true,
	AdminSubtypeTown:              true,
	AdminSubtypeWard:              true,
	AdminSubtypeCommune:           true,
	AdminSubtypeTownship:          true,
}

// IsValidAdminSubtype kiểm tra admin_subtype có hợp lệ không. Rỗng được chấp nhận.
func (au *AdminUnit) IsValidAdminSubtype() bool {
	return au.AdminSubtype == "" || validSubtypes[au.AdminSubtype]
}

// IsValidLevel kiểm tra level có hợp lệ không
func (au *AdminUnit) IsValidLevel() bool {
	return au.Level >= int(gazetteer.LevelCountry) && au.Level <= int(gazetteer.LevelWard)
}

// GetFullPath trả về đường dẫn đầy đủ từ gốc
func (au *AdminUnit) GetFullPath() string {
	return strings.Join(append(append([]string{}, au.PathNormalized...), au.NormalizedName), " > ")
}

// ToRow chuyển sang dạng row mà gazetteer.Builder nhận.
func (au *AdminUnit) ToRow() gazetteer.Row {
	row := gazetteer.Row{
		ID:      au.AdminID,
		Level:   gazetteer.Level(au.Level),
		Name:    au.Name,
		Subtype: au.AdminSubtype,
		Aliases: au.Aliases,
	}
	if au.ParentID != nil {
		row.ParentID = *au.ParentID
	}
	return row
}

// AdminUnitsFromSnapshot làm phẳng snapshot thành các document admin_units.
func AdminUnitsFromSnapshot(snap *gazetteer.Snapshot, version string) []AdminUnit {
	rows := snap.Rows()
	byID := make(map[string]gazetteer.Row, len(rows))
	for _, r := range rows {
		byID[r.ID] = r
	}

	now := time.Now()
	units := make([]AdminUnit, 0, len(rows))
	for _, r := range rows {
		unit := AdminUnit{
			AdminID:          r.ID,
			Level:            int(r.Level),
			Name:             r.Name,
			NormalizedName:   gazetteer.CanonicalName(r.Name),
			AdminSubtype:     r.Subtype,
			Aliases:          r.Aliases,
			GazetteerVersion: version,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		if r.ParentID != "" {
			parent := r.ParentID
			unit.ParentID = &parent
		}

		// đi ngược lên gốc
		var ids, names []string
		for pid := r.ParentID; pid != ""; {
			p, ok := byID[pid]
			if !ok {
				break
			}
			ids = append([]string{p.ID}, ids...)
			names = append([]string{gazetteer.CanonicalName(p.Name)}, names...)
			pid = p.ParentID
		}
		unit.Path = append(ids, r.ID)
		unit.PathNormalized = names
		units = append(units, unit)
	}
	return units
}
