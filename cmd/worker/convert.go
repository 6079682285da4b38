package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/address-resolver/app/models"
	"github.com/address-resolver/internal/gazetteer"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// ErrOrphanUnit đơn vị trỏ tới parent không tồn tại.
var ErrOrphanUnit = errors.New("đơn vị không có parent hợp lệ")

// FlatUnit một dòng trong file address.json dạng phẳng (unit_level 1..3).
type FlatUnit struct {
	ID        int    `json:"id"`
	ParentID  int    `json:"parent_id"`
	UnitLevel int    `json:"unit_level"`
	Name      string `json:"name"`
	KeyWord   string `json:"key_word"`
	Code      string `json:"code,omitempty"`
}

// ConvertReport thống kê sau khi chuyển đổi
type ConvertReport struct {
	Provinces int      `json:"provinces"`
	Districts int      `json:"districts"`
	Wards     int      `json:"wards"`
	Skipped   []string `json:"skipped,omitempty"`
}

// ConvertFlat dựng snapshot dạng cây từ danh sách phẳng.
// Quận/huyện hoặc phường/xã có parent không tồn tại bị bỏ qua và ghi vào report,
// strict=true thì trả lỗi.
func ConvertFlat(version string, units []FlatUnit, strict bool) (*gazetteer.Snapshot, ConvertReport, error) {
	var report ConvertReport
	byLevel := map[int][]FlatUnit{}
	for _, u := range units {
		byLevel[u.UnitLevel] = append(byLevel[u.UnitLevel], u)
	}
	for _, list := range byLevel {
		sort.SliceStable(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	}

	snap := &gazetteer.Snapshot{Version: version}
	provinceAt := map[int]int{}
	for _, p := range byLevel[1] {
		provinceAt[p.ID] = len(snap.Provinces)
		snap.Provinces = append(snap.Provinces, snapshotUnit(p, provinceSubtype(p.Name)))
	}

	type pos struct{ p, d int }
	districtAt := map[int]pos{}
	for _, d := range byLevel[2] {
		pi, ok := provinceAt[d.ParentID]
		if !ok {
			if strict {
				return nil, report, fmt.Errorf("%w: quận/huyện %d (%s) trỏ tới tỉnh %d", ErrOrphanUnit, d.ID, d.Name, d.ParentID)
			}
			report.Skipped = append(report.Skipped, fmt.Sprintf("district %d", d.ID))
			continue
		}
		province := &snap.Provinces[pi]
		districtAt[d.ID] = pos{pi, len(province.Districts)}
		province.Districts = append(province.Districts, snapshotUnit(d, districtSubtype(d.Name)))
		report.Districts++
	}

	for _, w := range byLevel[3] {
		at, ok := districtAt[w.ParentID]
		if !ok {
			if strict {
				return nil, report, fmt.Errorf("%w: phường/xã %d (%s) trỏ tới quận/huyện %d", ErrOrphanUnit, w.ID, w.Name, w.ParentID)
			}
			report.Skipped = append(report.Skipped, fmt.Sprintf("ward %d", w.ID))
			continue
		}
		district := &snap.Provinces[at.p].Districts[at.d]
		district.Wards = append(district.Wards, snapshotUnit(w, wardSubtype(w.Name)))
		report.Wards++
	}

	report.Provinces = len(snap.Provinces)
	return snap, report, nil
}

func snapshotUnit(u FlatUnit, subtype string) gazetteer.SnapshotUnit {
	su := gazetteer.SnapshotUnit{
		ID:      strconv.Itoa(u.ID),
		Name:    strings.TrimSpace(u.Name),
		Subtype: subtype,
	}
	// key_word chỉ giữ khi khác tên đã chuẩn hóa, alias sinh tự động đã phủ phần còn lại
	if kw := strings.TrimSpace(u.KeyWord); kw != "" && gazetteer.FoldName(kw) != gazetteer.CanonicalName(su.Name) {
		su.Aliases = []string{kw}
	}
	return su
}

func hasPrefix(name, prefix string) bool {
	return strings.HasPrefix(strings.ToLower(name), prefix)
}

func provinceSubtype(name string) string {
	if hasPrefix(name, "thành phố") {
		return models.AdminSubtypeMunicipality
	}
	return models.AdminSubtypeProvince
}

func districtSubtype(name string) string {
	switch {
	case hasPrefix(name, "thành phố"):
		return models.AdminSubtypeCityUnderProvince
	case hasPrefix(name, "thị xã"):
		return models.AdminSubtypeTown
	case hasPrefix(name, "quận"):
		return models.AdminSubtypeUrbanDistrict
	}
	return models.AdminSubtypeRuralDistrict
}

func wardSubtype(name string) string {
	switch {
	case hasPrefix(name, "phường"):
		return models.AdminSubtypeWard
	case hasPrefix(name, "thị trấn"):
		return models.AdminSubtypeTownship
	}
	return models.AdminSubtypeCommune
}

func readFlatUnits(r io.Reader) ([]FlatUnit, error) {
	var units []FlatUnit
	if err := json.NewDecoder(r).Decode(&units); err != nil {
		return nil, fmt.Errorf("giải mã danh sách đơn vị: %w", err)
	}
	return units, nil
}

func convertCmd() *cobra.Command {
	var in, out, version string
	var strict bool
	cmd := &cobra.Command{
		Use:   "convert",
		Short: "Chuyển address.json dạng phẳng (province/district/ward) sang snapshot YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(in)
			if err != nil {
				return err
			}
			defer f.Close()

			units, err := readFlatUnits(f)
			if err != nil {
				return err
			}
			snap, report, err := ConvertFlat(version, units, strict)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if out != "" {
				of, err := os.Create(out)
				if err != nil {
					return err
				}
				defer of.Close()
				w = of
			}
			enc := yaml.NewEncoder(w)
			enc.SetIndent(2)
			if err := enc.Encode(snap); err != nil {
				return err
			}
			if err := enc.Close(); err != nil {
				return err
			}
			return writeJSON(cmd.ErrOrStderr(), report)
		},
	}
	cmd.Flags().StringVar(&in, "in", "", "file JSON dạng phẳng")
	cmd.Flags().StringVar(&out, "out", "", "file snapshot YAML, mặc định stdout")
	cmd.Flags().StringVar(&version, "version", "", "phiên bản dữ liệu tham chiếu")
	cmd.Flags().BoolVar(&strict, "strict", false, "báo lỗi khi gặp đơn vị mồ côi thay vì bỏ qua")
	_ = cmd.MarkFlagRequired("in")
	_ = cmd.MarkFlagRequired("version")
	return cmd
}
