package parser

import (
	"sort"
	"strconv"
	"strings"

	"github.com/address-resolver/internal/gazetteer"
	"go.uber.org/zap"
)

// fuzzyTokenTolerance cửa sổ n token được so fuzzy với tên có n-1..n+1 token,
// để "thanhchuong" và "thanh chu ong" vẫn gặp "thanh chuong".
const fuzzyTokenTolerance = 1

// Source nguồn gốc của một candidate.
type Source string

const (
	SourceKnown Source = "known"
	SourceExact Source = "exact"
	SourceAlias Source = "alias"
	SourceFuzzy Source = "fuzzy"

	// chỉ dùng cho Component do resolver suy ra
	SourceHint     Source = "hint"
	SourceInferred Source = "inferred"
)

func (s Source) rank() int {
	switch s {
	case SourceKnown:
		return 0
	case SourceExact:
		return 1
	case SourceAlias:
		return 2
	case SourceFuzzy:
		return 3
	default:
		return 4
	}
}

// Span vị trí token [Start, End).
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// NoSpan đánh dấu giá trị không xuất hiện trong text (ví dụ known value).
var NoSpan = Span{Start: -1, End: -1}

// Used false với NoSpan.
func (s Span) Used() bool { return s.Start >= 0 && s.End > s.Start }

// Len số token.
func (s Span) Len() int {
	if !s.Used() {
		return 0
	}
	return s.End - s.Start
}

// Overlaps hai span có chung token.
func (s Span) Overlaps(o Span) bool {
	return s.Used() && o.Used() && s.Start < o.End && o.Start < s.End
}

func overlapsAny(s Span, spans []Span) bool {
	for _, o := range spans {
		if s.Overlaps(o) {
			return true
		}
	}
	return false
}

// NestedHint đơn vị cấp con nằm ở đuôi cụm đã khớp. Name rỗng nghĩa là không có.
type NestedHint struct {
	Level   gazetteer.Level `json:"level,omitempty"`
	ID      string          `json:"id,omitempty"`
	Name    string          `json:"name,omitempty"`
	Display string          `json:"display,omitempty"`
	Span    Span            `json:"span"`
}

// Candidate ứng viên cho một cấp, chưa chốt.
type Candidate struct {
	Level    gazetteer.Level `json:"level"`
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Display  string          `json:"display"`
	Parent   string          `json:"parent,omitempty"`
	Province string          `json:"province,omitempty"`
	Score    float64         `json:"score"`
	Source   Source          `json:"source"`
	Span     Span            `json:"span"`
	Matched  string          `json:"matched,omitempty"`
	Hint     NestedHint      `json:"hint"`
}

// Scope phạm vi cha theo tên chuẩn; rỗng là chưa biết.
type Scope struct {
	Province string `json:"province,omitempty"`
	District string `json:"district,omitempty"`
}

// Extractor quét cửa sổ token để sinh candidate cho từng cấp.
type Extractor struct {
	idx     *gazetteer.Index
	matcher *Matcher
	logger  *zap.Logger
}

// NewExtractor tạo extractor trên một index bất biến.
func NewExtractor(idx *gazetteer.Index, matcher *Matcher, logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if matcher == nil {
		matcher = NewMatcher(DefaultMatcherConfig(), logger)
	}
	return &Extractor{idx: idx, matcher: matcher, logger: logger}
}

// ExtractLevel sinh mọi candidate của level trong phạm vi parent. consumed là các span
// cấp trên đã dùng (NoSpan được bỏ qua). known, nếu có và nằm trong phạm vi, thành
// candidate nguồn known điểm 1.0; text vẫn được quét.
func (x *Extractor) ExtractLevel(tokens []string, level gazetteer.Level, parent Scope, consumed []Span, known string, threshold float64) []Candidate {
	scope := x.idx.ScopeFor(level, parent.Province, parent.District)
	out := make([]Candidate, 0)
	seen := make(map[string]bool)

	add := func(c Candidate) {
		key := c.ID + "@" + spanKey(c.Span)
		if seen[key] {
			return
		}
		seen[key] = true
		out = append(out, c)
	}

	if known != "" {
		for _, e := range scope.Lookup(gazetteer.FoldName(known)) {
			add(newCandidate(e, 1.0, SourceKnown, NoSpan, known))
		}
	}

	maxN := scope.MaxTokens()
	if maxN > 0 {
		maxN += fuzzyTokenTolerance
	}
	if maxN > len(tokens) {
		maxN = len(tokens)
	}
	for n := maxN; n >= 1; n-- {
		for start := 0; start+n <= len(tokens); start++ {
			span := Span{Start: start, End: start + n}
			if overlapsAny(span, consumed) {
				continue
			}
			phrase := strings.Join(tokens[span.Start:span.End], " ")

			if hits := scope.Exact(phrase); len(hits) > 0 {
				if 1.0 >= threshold {
					for _, e := range hits {
						add(x.withHint(newCandidate(e, 1.0, SourceExact, span, phrase), tokens))
					}
				}
				continue
			}
			if hits := scope.Alias(phrase); len(hits) > 0 {
				if gazetteer.AliasScore >= threshold {
					for _, e := range hits {
						add(x.withHint(newCandidate(e, gazetteer.AliasScore, SourceAlias, span, phrase), tokens))
					}
				}
				continue
			}
			// so trên dạng bỏ khoảng trắng, cửa sổ dính liền hay tách rời đều được chấm
			for _, m := range x.matcher.MatchInSet(gazetteer.Compact(phrase), scope.CompactNames(n, fuzzyTokenTolerance), level, threshold) {
				for _, name := range scope.NamesByCompact(m.Name) {
					for _, e := range scope.Exact(name) {
						add(x.withHint(newCandidate(e, m.Score, SourceFuzzy, span, phrase), tokens))
					}
				}
			}
		}
	}

	sortCandidates(out)

	if ce := x.logger.Check(zap.DebugLevel, "extract level"); ce != nil {
		ce.Write(
			zap.Stringer("level", level),
			zap.String("province", parent.Province),
			zap.String("district", parent.District),
			zap.Int("scope_size", scope.Len()),
			zap.Int("candidates", len(out)))
	}
	return out
}

// withHint gắn đơn vị cấp con dài nhất nằm ở đuôi span của candidate.
func (x *Extractor) withHint(c Candidate, tokens []string) Candidate {
	child := c.Level.Child()
	if child == 0 || !c.Span.Used() {
		return c
	}

	var childScope *gazetteer.Scope
	switch c.Level {
	case gazetteer.LevelProvince:
		childScope = x.idx.ScopeFor(child, c.Name, "")
	case gazetteer.LevelDistrict:
		childScope = x.idx.ScopeFor(child, c.Province, c.Name)
	}

	for start := c.Span.Start; start < c.Span.End; start++ {
		phrase := strings.Join(tokens[start:c.Span.End], " ")
		hits := childScope.Exact(phrase)
		if len(hits) == 0 {
			hits = childScope.Alias(phrase)
		}
		if len(hits) > 0 {
			e := hits[0]
			c.Hint = NestedHint{
				Level:   e.Level,
				ID:      e.ID,
				Name:    e.Name,
				Display: e.Display,
				Span:    Span{Start: start, End: c.Span.End},
			}
			return c
		}
	}
	return c
}

func newCandidate(e *gazetteer.Entity, score float64, src Source, span Span, matched string) Candidate {
	return Candidate{
		Level:    e.Level,
		ID:       e.ID,
		Name:     e.Name,
		Display:  e.Display,
		Parent:   e.Parent,
		Province: e.Province,
		Score:    score,
		Source:   src,
		Span:     span,
		Matched:  matched,
		Hint:     NestedHint{Span: NoSpan},
	}
}

// sortCandidates điểm giảm dần, rồi nguồn, span dài hơn, vị trí sớm hơn, tên.
func sortCandidates(cs []Candidate) {
	sort.SliceStable(cs, func(i, j int) bool {
		a, b := cs[i], cs[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Source.rank() != b.Source.rank() {
			return a.Source.rank() < b.Source.rank()
		}
		if a.Span.Len() != b.Span.Len() {
			return a.Span.Len() > b.Span.Len()
		}
		if a.Span.Start != b.Span.Start {
			return a.Span.Start < b.Span.Start
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.ID < b.ID
	})
}

func spanKey(s Span) string {
	if !s.Used() {
		return "-"
	}
	return strconv.Itoa(s.Start) + ":" + strconv.Itoa(s.End)
}
