package parser

import (
	"sort"
	"unicode/utf8"

	"github.com/address-resolver/internal/gazetteer"
	"github.com/agnivade/levenshtein"
	"github.com/xrash/smetrics"
	"go.uber.org/zap"
)

// DefaultMatchThreshold ngưỡng mặc định của MatchInSet.
const DefaultMatchThreshold = 0.5

// MatcherConfig trọng số hai thuật toán similarity.
type MatcherConfig struct {
	LevWeight float64 `mapstructure:"lev_weight" json:"lev_weight"`
	JWWeight  float64 `mapstructure:"jw_weight" json:"jw_weight"`
}

// DefaultMatcherConfig Levenshtein nặng hơn vì tên đơn vị ngắn, Jaro-Winkler bù cho lỗi ở đuôi.
func DefaultMatcherConfig() MatcherConfig {
	return MatcherConfig{LevWeight: 0.7, JWWeight: 0.3}
}

// Match một tên trong tập đích cùng điểm similarity.
type Match struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

// Matcher so khớp fuzzy một chuỗi với tập tên. Không giữ state, dùng chung được.
type Matcher struct {
	levWeight float64
	jwWeight  float64
	logger    *zap.Logger
}

// NewMatcher tạo matcher; trọng số âm hoặc tổng bằng 0 rơi về mặc định.
func NewMatcher(cfg MatcherConfig, logger *zap.Logger) *Matcher {
	if cfg.LevWeight < 0 || cfg.JWWeight < 0 || cfg.LevWeight+cfg.JWWeight == 0 {
		cfg = DefaultMatcherConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Matcher{levWeight: cfg.LevWeight, jwWeight: cfg.JWWeight, logger: logger}
}

// MatchInSet trả về mọi tên có điểm >= threshold, điểm giảm dần, hòa thì theo tên.
// Nếu query có trong targets thì chỉ trả về đúng tên đó với điểm 1.0.
func (m *Matcher) MatchInSet(query string, targets []string, level gazetteer.Level, threshold float64) []Match {
	for _, t := range targets {
		if t == query {
			return []Match{{Name: t, Score: 1.0}}
		}
	}

	seen := make(map[string]bool, len(targets))
	matches := make([]Match, 0)
	for _, t := range targets {
		if seen[t] {
			continue
		}
		seen[t] = true
		if score := m.Similarity(query, t); score >= threshold {
			matches = append(matches, Match{Name: t, Score: score})
		}
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].Name < matches[j].Name
	})

	if ce := m.logger.Check(zap.DebugLevel, "fuzzy match"); ce != nil {
		ce.Write(
			zap.String("query", query),
			zap.Stringer("level", level),
			zap.Int("targets", len(targets)),
			zap.Int("matches", len(matches)),
			zap.Float64("threshold", threshold))
	}
	return matches
}

// Similarity điểm trong [0,1] giữa hai chuỗi.
func (m *Matcher) Similarity(a, b string) float64 {
	if a == b {
		return 1.0
	}
	if a == "" || b == "" {
		return 0
	}

	maxLen := utf8.RuneCountInString(a)
	if n := utf8.RuneCountInString(b); n > maxLen {
		maxLen = n
	}
	levScore := 1.0 - float64(levenshtein.ComputeDistance(a, b))/float64(maxLen)
	jaroScore := smetrics.JaroWinkler(a, b, 0.7, 4)

	score := (m.levWeight*levScore + m.jwWeight*jaroScore) / (m.levWeight + m.jwWeight)
	switch {
	case score < 0:
		return 0
	case score > 1:
		return 1
	}
	return score
}
