package gazetteer

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Snapshot dạng cây của dữ liệu tham chiếu, đọc từ YAML (JSON cũng hợp lệ).
type Snapshot struct {
	Version   string         `yaml:"version" json:"version"`
	Provinces []SnapshotUnit `yaml:"provinces" json:"provinces"`
}

// SnapshotUnit một đơn vị trong snapshot. Province chứa Districts, District chứa Wards.
type SnapshotUnit struct {
	ID        string         `yaml:"id,omitempty" json:"id,omitempty"`
	Name      string         `yaml:"name" json:"name"`
	Subtype   string         `yaml:"subtype,omitempty" json:"subtype,omitempty"`
	Aliases   []string       `yaml:"aliases,omitempty" json:"aliases,omitempty"`
	Districts []SnapshotUnit `yaml:"districts,omitempty" json:"districts,omitempty"`
	Wards     []SnapshotUnit `yaml:"wards,omitempty" json:"wards,omitempty"`
}

// ReadSnapshot giải mã snapshot, từ chối field lạ.
func ReadSnapshot(r io.Reader) (*Snapshot, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: đọc snapshot: %w", ErrReferenceLoad, err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var snap Snapshot
	if err := dec.Decode(&snap); err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("%w: snapshot rỗng", ErrReferenceLoad)
		}
		return nil, fmt.Errorf("%w: giải mã snapshot: %w", ErrReferenceLoad, err)
	}
	return &snap, nil
}

// ReadSnapshotFile đọc snapshot từ file.
func ReadSnapshotFile(path string) (*Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrReferenceLoad, err)
	}
	defer f.Close()
	return ReadSnapshot(f)
}

// Rows làm phẳng cây thành các row. Đơn vị thiếu id nhận id tổng hợp từ đường dẫn tên.
func (s *Snapshot) Rows() []Row {
	var rows []Row
	for _, p := range s.Provinces {
		pid := unitID(p, "")
		rows = append(rows, p.row(pid, "", LevelProvince))
		for _, d := range p.Districts {
			did := unitID(d, pid)
			rows = append(rows, d.row(did, pid, LevelDistrict))
			for _, w := range d.Wards {
				rows = append(rows, w.row(unitID(w, did), did, LevelWard))
			}
		}
	}
	return rows
}

// Index dựng index từ snapshot.
func (s *Snapshot) Index() (*Index, error) {
	return FromRows(s.Version, s.Rows())
}

func (u SnapshotUnit) row(id, parent string, level Level) Row {
	return Row{
		ID:       id,
		ParentID: parent,
		Level:    level,
		Name:     u.Name,
		Subtype:  u.Subtype,
		Aliases:  u.Aliases,
	}
}

func unitID(u SnapshotUnit, parent string) string {
	if u.ID != "" {
		return u.ID
	}
	slug := strings.ReplaceAll(CanonicalName(u.Name), " ", "-")
	if parent == "" {
		return slug
	}
	return parent + "/" + slug
}

// Load đọc snapshot và dựng index.
func Load(r io.Reader) (*Index, error) {
	snap, err := ReadSnapshot(r)
	if err != nil {
		return nil, err
	}
	return snap.Index()
}

// LoadFile như Load nhưng từ đường dẫn.
func LoadFile(path string) (*Index, error) {
	snap, err := ReadSnapshotFile(path)
	if err != nil {
		return nil, err
	}
	return snap.Index()
}
