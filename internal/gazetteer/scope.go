package gazetteer

import (
	"sort"
	"strings"
)

// Scope là tập đơn vị hợp lệ của một cấp dưới một phạm vi cha, kèm bảng tra
// tên và alias dựng sẵn. Bất biến sau khi tạo, nil Scope tương đương rỗng.
type Scope struct {
	level     Level
	entities  []*Entity
	byName    map[string][]*Entity
	byAlias   map[string][]*Entity
	byTokens  map[int][]string
	byCompact map[string][]string
	compacts  map[int][]string
	maxTokens int
}

func newScope(level Level, entities []*Entity) *Scope {
	s := &Scope{
		level:     level,
		entities:  append([]*Entity(nil), entities...),
		byName:    make(map[string][]*Entity, len(entities)),
		byAlias:   make(map[string][]*Entity),
		byTokens:  make(map[int][]string),
		byCompact: make(map[string][]string),
		compacts:  make(map[int][]string),
	}
	sort.SliceStable(s.entities, func(i, j int) bool {
		return s.entities[i].Key() < s.entities[j].Key()
	})

	for _, e := range s.entities {
		if _, seen := s.byName[e.Name]; !seen {
			n := e.TokenCount()
			s.byTokens[n] = append(s.byTokens[n], e.Name)
			s.track(n)

			c := Compact(e.Name)
			if _, dup := s.byCompact[c]; !dup {
				s.compacts[n] = append(s.compacts[n], c)
			}
			s.byCompact[c] = append(s.byCompact[c], e.Name)
		}
		s.byName[e.Name] = append(s.byName[e.Name], e)
	}
	for _, e := range s.entities {
		for _, a := range e.Aliases {
			if _, isName := s.byName[a]; isName {
				continue
			}
			s.byAlias[a] = appendUnique(s.byAlias[a], e)
			s.track(len(strings.Fields(a)))
		}
	}
	for _, names := range s.byTokens {
		sort.Strings(names)
	}
	for _, forms := range s.compacts {
		sort.Strings(forms)
	}
	return s
}

func (s *Scope) track(tokens int) {
	if tokens > s.maxTokens {
		s.maxTokens = tokens
	}
}

func appendUnique(list []*Entity, e *Entity) []*Entity {
	for _, x := range list {
		if x == e {
			return list
		}
	}
	return append(list, e)
}

// Level cấp của các đơn vị trong scope.
func (s *Scope) Level() Level {
	if s == nil {
		return 0
	}
	return s.level
}

// Len số đơn vị trong scope.
func (s *Scope) Len() int {
	if s == nil {
		return 0
	}
	return len(s.entities)
}

// Entities trả về danh sách đã sắp xếp. Không được sửa slice trả về.
func (s *Scope) Entities() []*Entity {
	if s == nil {
		return nil
	}
	return s.entities
}

// Exact tra tên chuẩn. Có thể trả về nhiều đơn vị khi scope không giới hạn cha.
func (s *Scope) Exact(phrase string) []*Entity {
	if s == nil {
		return nil
	}
	return s.byName[phrase]
}

// Alias tra bảng alias/viết tắt.
func (s *Scope) Alias(phrase string) []*Entity {
	if s == nil {
		return nil
	}
	return s.byAlias[phrase]
}

// Lookup thử tên chuẩn, alias, rồi tên sau khi bỏ tiền tố loại đơn vị.
func (s *Scope) Lookup(phrase string) []*Entity {
	if s == nil || phrase == "" {
		return nil
	}
	if hits := s.Exact(phrase); len(hits) > 0 {
		return hits
	}
	if hits := s.Alias(phrase); len(hits) > 0 {
		return hits
	}
	if stripped := StripTypePrefix(phrase); stripped != phrase {
		return s.Exact(stripped)
	}
	return nil
}

// NamesWithTokens các tên chuẩn (không trùng) có đúng n token, đã sắp xếp.
func (s *Scope) NamesWithTokens(n int) []string {
	if s == nil {
		return nil
	}
	return s.byTokens[n]
}

// Compact bỏ khoảng trắng: "thanh chuong" -> "thanhchuong".
func Compact(s string) string {
	return strings.ReplaceAll(s, " ", "")
}

// CompactNames dạng Compact của các tên có từ n-tol đến n+tol token. Một dạng
// có thể thuộc về nhiều tên chuẩn, xem NamesByCompact.
func (s *Scope) CompactNames(n, tol int) []string {
	if s == nil {
		return nil
	}
	var out []string
	for k := n - tol; k <= n+tol; k++ {
		out = append(out, s.compacts[k]...)
	}
	return out
}

// NamesByCompact các tên chuẩn có dạng Compact là c.
func (s *Scope) NamesByCompact(c string) []string {
	if s == nil {
		return nil
	}
	return s.byCompact[c]
}

// MaxTokens số token dài nhất của tên hoặc alias trong scope.
func (s *Scope) MaxTokens() int {
	if s == nil {
		return 0
	}
	return s.maxTokens
}
