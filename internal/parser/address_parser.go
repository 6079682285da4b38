package parser

import (
	"strings"
	"time"

	"github.com/address-resolver/internal/gazetteer"
	"github.com/address-resolver/internal/normalizer"
	"go.uber.org/zap"
)

// Outcome kết quả của một stage trong trace.
type Outcome string

const (
	OutcomeKnown     Outcome = "known"
	OutcomeResolved  Outcome = "resolved"
	OutcomeAmbiguous Outcome = "ambiguous"
	OutcomeInferred  Outcome = "inferred"
	OutcomeHinted    Outcome = "hinted"
	OutcomeNoMatch   Outcome = "no_match"
)

// Weights trọng số confidence theo cấp.
type Weights struct {
	Province float64 `mapstructure:"province" json:"province"`
	District float64 `mapstructure:"district" json:"district"`
	Ward     float64 `mapstructure:"ward" json:"ward"`
}

func (w Weights) valid() bool {
	return w.Province > 0 && w.District > 0 && w.Ward > 0
}

func (w Weights) sum() float64 { return w.Province + w.District + w.Ward }

// ResolverConfig cấu hình resolver.
type ResolverConfig struct {
	Threshold      float64       `mapstructure:"threshold" json:"threshold"`
	InferredFactor float64       `mapstructure:"inferred_factor" json:"inferred_factor"`
	Weights        Weights       `mapstructure:"weights" json:"weights"`
	Separators     string        `mapstructure:"separators" json:"separators"`
	Matcher        MatcherConfig `mapstructure:"matcher" json:"matcher"`
}

// DefaultResolverConfig cấu hình mặc định.
func DefaultResolverConfig() ResolverConfig {
	return ResolverConfig{
		Threshold:      0.8,
		InferredFactor: 0.5,
		Weights:        Weights{Province: 0.3, District: 0.35, Ward: 0.35},
		Separators:     normalizer.AddressSeparators,
		Matcher:        DefaultMatcherConfig(),
	}
}

// Component giá trị đã chốt cho một cấp.
type Component struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Display  string  `json:"display"`
	Score    float64 `json:"score"`
	Source   Source  `json:"source"`
	Span     Span    `json:"span"`
	Inferred bool    `json:"inferred,omitempty"`
}

// StageTrace diễn giải một stage: phạm vi, ứng viên, lựa chọn.
type StageTrace struct {
	Level         gazetteer.Level `json:"level"`
	Known         string          `json:"known,omitempty"`
	KnownRejected bool            `json:"known_rejected,omitempty"`
	Scope         Scope           `json:"scope"`
	Chosen        *Candidate      `json:"chosen,omitempty"`
	Score         float64         `json:"score"`
	Candidates    []Candidate     `json:"candidates"`
	Ambiguous     bool            `json:"ambiguous,omitempty"`
	Outcome       Outcome         `json:"outcome"`
	ElapsedMicros int64           `json:"elapsed_us"`
}

// ResolvedAddress kết quả resolve, không đổi sau khi tạo.
type ResolvedAddress struct {
	Raw              string       `json:"raw"`
	Normalized       string       `json:"normalized"`
	Tokens           []string     `json:"tokens"`
	Province         *Component   `json:"province"`
	District         *Component   `json:"district"`
	Ward             *Component   `json:"ward"`
	Confidence       float64      `json:"confidence"`
	Stages           []StageTrace `json:"stages"`
	ReferenceVersion string       `json:"reference_version"`
}

// Stage trả về trace của một cấp, nil nếu stage không chạy.
func (r *ResolvedAddress) Stage(level gazetteer.Level) *StageTrace {
	for i := range r.Stages {
		if r.Stages[i].Level == level {
			return &r.Stages[i]
		}
	}
	return nil
}

// Resolved true khi có ít nhất một cấp.
func (r *ResolvedAddress) Resolved() bool {
	return r.Province != nil || r.District != nil || r.Ward != nil
}

// Sentinels các giá trị known mang nghĩa "không có" (so sánh không phân biệt hoa thường).
// Bộ phân loại chất lượng dùng chung danh sách này.
var Sentinels = []string{"/", "-", "n/a", "null", "none"}

// IsSentinel v có phải một trong Sentinels không.
func IsSentinel(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	for _, s := range Sentinels {
		if v == s {
			return true
		}
	}
	return false
}

// KnownValue chuẩn hóa giá trị biết trước từ form: sentinel và chuỗi trắng nghĩa là không có.
func KnownValue(s string) string {
	s = strings.TrimSpace(s)
	if IsSentinel(s) {
		return ""
	}
	return s
}

// Resolver chạy normalize -> province -> district -> ward trên index dùng chung.
type Resolver struct {
	idx       *gazetteer.Index
	extractor *Extractor
	cfg       ResolverConfig
	logger    *zap.Logger
}

// NewResolver tạo resolver. Giá trị cấu hình không hợp lệ được thay bằng mặc định.
func NewResolver(idx *gazetteer.Index, cfg ResolverConfig, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	def := DefaultResolverConfig()
	if cfg.Threshold <= 0 || cfg.Threshold > 1 {
		cfg.Threshold = def.Threshold
	}
	if cfg.InferredFactor <= 0 || cfg.InferredFactor > 1 {
		cfg.InferredFactor = def.InferredFactor
	}
	if !cfg.Weights.valid() {
		cfg.Weights = def.Weights
	}
	if cfg.Separators == "" {
		cfg.Separators = def.Separators
	}

	matcher := NewMatcher(cfg.Matcher, logger)
	return &Resolver{
		idx:       idx,
		extractor: NewExtractor(idx, matcher, logger),
		cfg:       cfg,
		logger:    logger,
	}
}

// Index index đang dùng.
func (r *Resolver) Index() *gazetteer.Index { return r.idx }

// Config cấu hình đã áp mặc định.
func (r *Resolver) Config() ResolverConfig { return r.cfg }

// Normalize chuẩn hóa text giống như Resolve làm.
func (r *Resolver) Normalize(raw string) string {
	return normalizer.Canonicalize(raw, r.cfg.Separators)
}

// Resolve không bao giờ lỗi: input rỗng hoặc không khớp cho kết quả null với confidence 0.
func (r *Resolver) Resolve(raw, knownProvince, knownDistrict string) *ResolvedAddress {
	start := time.Now()
	normalized := r.Normalize(raw)
	tokens := normalizer.Tokenize(normalized)

	res := &ResolvedAddress{
		Raw:              raw,
		Normalized:       normalized,
		Tokens:           tokens,
		Stages:           make([]StageTrace, 0, 3),
		ReferenceVersion: r.idx.Version(),
	}
	if len(tokens) == 0 {
		res.Tokens = []string{}
		return res
	}

	knownProvince = KnownValue(knownProvince)
	knownDistrict = KnownValue(knownDistrict)

	var consumed []Span

	// Province
	pTrace, pChosen := r.stage(tokens, gazetteer.LevelProvince, Scope{}, consumed, knownProvince)
	consumed = consume(consumed, pChosen)
	res.Stages = append(res.Stages, pTrace)

	// District
	dScope := Scope{}
	if pChosen != nil {
		dScope.Province = pChosen.Name
	}
	dTrace, dChosen := r.stage(tokens, gazetteer.LevelDistrict, dScope, consumed, knownDistrict)
	if dChosen == nil {
		dChosen = r.fromProvinceHint(&dTrace, pChosen)
	}
	consumed = consume(consumed, dChosen)
	res.Stages = append(res.Stages, dTrace)

	// Ward
	wScope := dScope
	if dChosen != nil {
		wScope = Scope{Province: dChosen.Province, District: dChosen.Name}
	}
	wTrace, wChosen := r.stage(tokens, gazetteer.LevelWard, wScope, consumed, "")
	res.Stages = append(res.Stages, wTrace)

	res.Province = componentOf(pChosen)
	res.District = componentOf(dChosen)
	res.Ward = componentOf(wChosen)
	if res.District != nil && res.District.Source == SourceHint {
		res.District.Inferred = true
	}

	r.fillFromHint(res, dChosen)
	r.inferParents(res)
	res.Confidence = r.confidence(res)

	if ce := r.logger.Check(zap.DebugLevel, "Đã resolve địa chỉ"); ce != nil {
		ce.Write(
			zap.String("normalized", normalized),
			zap.Float64("confidence", res.Confidence),
			zap.Duration("elapsed", time.Since(start)))
	}
	return res
}

func (r *Resolver) stage(tokens []string, level gazetteer.Level, scope Scope, consumed []Span, known string) (StageTrace, *Candidate) {
	start := time.Now()
	cands := r.extractor.ExtractLevel(tokens, level, scope, consumed, known, r.cfg.Threshold)

	trace := StageTrace{
		Level:      level,
		Known:      known,
		Scope:      scope,
		Candidates: cands,
		Outcome:    OutcomeNoMatch,
	}
	if known != "" && (len(cands) == 0 || cands[0].Source != SourceKnown) {
		trace.KnownRejected = true
		r.logger.Debug("Giá trị biết trước không có trong phạm vi",
			zap.Stringer("level", level), zap.String("known", known))
	}

	var chosen *Candidate
	if len(cands) > 0 {
		c := cands[0]
		chosen = &c
		trace.Chosen = chosen
		trace.Score = c.Score
		trace.Ambiguous = tiedAtTop(cands)
		switch {
		case c.Source == SourceKnown:
			trace.Outcome = OutcomeKnown
		case trace.Ambiguous:
			trace.Outcome = OutcomeAmbiguous
		default:
			trace.Outcome = OutcomeResolved
		}
	}
	trace.ElapsedMicros = time.Since(start).Microseconds()
	return trace, chosen
}

// tiedAtTop có hơn một đơn vị khác nhau cùng đạt điểm cao nhất.
func tiedAtTop(cands []Candidate) bool {
	top := cands[0]
	for _, c := range cands[1:] {
		if c.Score != top.Score {
			return false
		}
		if c.ID != top.ID {
			return true
		}
	}
	return false
}

// consume đánh dấu span của lựa chọn. Các lần xuất hiện khác của cùng tên
// vẫn để cấp dưới quét ("TP Hà Tĩnh, Hà Tĩnh").
func consume(consumed []Span, chosen *Candidate) []Span {
	if chosen == nil || !chosen.Span.Used() {
		return consumed
	}
	return append(consumed, chosen.Span)
}

// fromProvinceHint cấp quận/huyện rỗng nhưng cụm tỉnh kết thúc bằng tên một
// quận/huyện của chính tỉnh đó, ví dụ "Hà Tĩnh" cũng là tên thành phố tỉnh lỵ.
func (r *Resolver) fromProvinceHint(trace *StageTrace, province *Candidate) *Candidate {
	if province == nil || province.Hint.Level != gazetteer.LevelDistrict || province.Hint.ID == "" {
		return nil
	}
	e, ok := r.idx.EntityByID(province.Hint.ID)
	if !ok {
		return nil
	}
	c := newCandidate(e, province.Score*r.cfg.InferredFactor, SourceHint, NoSpan, province.Hint.Name)
	trace.Chosen = &c
	trace.Score = c.Score
	trace.Outcome = OutcomeHinted
	return &c
}

func componentOf(c *Candidate) *Component {
	if c == nil {
		return nil
	}
	return &Component{
		ID:      c.ID,
		Name:    c.Name,
		Display: c.Display,
		Score:   c.Score,
		Source:  c.Source,
		Span:    c.Span,
	}
}

// fillFromHint ward rỗng nhưng cụm quận/huyện chứa tên phường/xã ở đuôi.
func (r *Resolver) fillFromHint(res *ResolvedAddress, district *Candidate) {
	if res.Ward != nil || district == nil || district.Hint.Name == "" {
		return
	}
	res.Ward = &Component{
		ID:       district.Hint.ID,
		Name:     district.Hint.Name,
		Display:  district.Hint.Display,
		Score:    district.Score * r.cfg.InferredFactor,
		Source:   SourceHint,
		Span:     district.Hint.Span,
		Inferred: true,
	}
	if st := res.Stage(gazetteer.LevelWard); st != nil {
		st.Outcome = OutcomeHinted
		st.Score = res.Ward.Score
	}
}

// inferParents điền cấp cha còn thiếu từ tổ tiên của cấp con đã chốt.
func (r *Resolver) inferParents(res *ResolvedAddress) {
	if res.District == nil && res.Ward != nil {
		if w, ok := r.idx.EntityByID(res.Ward.ID); ok {
			if d, ok := r.idx.EntityByID(w.ParentID); ok {
				res.District = r.inferred(d, res.Ward.Score)
				r.markInferred(res, gazetteer.LevelDistrict, res.District.Score)
			}
		}
	}
	if res.Province == nil && res.District != nil {
		if d, ok := r.idx.EntityByID(res.District.ID); ok {
			if p, ok := r.idx.EntityByID(d.ParentID); ok {
				res.Province = r.inferred(p, res.District.Score)
				r.markInferred(res, gazetteer.LevelProvince, res.Province.Score)
			}
		}
	}
}

func (r *Resolver) inferred(e *gazetteer.Entity, childScore float64) *Component {
	return &Component{
		ID:       e.ID,
		Name:     e.Name,
		Display:  e.Display,
		Score:    childScore * r.cfg.InferredFactor,
		Source:   SourceInferred,
		Span:     NoSpan,
		Inferred: true,
	}
}

func (r *Resolver) markInferred(res *ResolvedAddress, level gazetteer.Level, score float64) {
	if st := res.Stage(level); st != nil {
		st.Outcome = OutcomeInferred
		st.Score = score
	}
}

// confidence trung bình có trọng số; cấp null tính 0.
func (r *Resolver) confidence(res *ResolvedAddress) float64 {
	w := r.cfg.Weights
	total := 0.0
	if res.Province != nil {
		total += w.Province * res.Province.Score
	}
	if res.District != nil {
		total += w.District * res.District.Score
	}
	if res.Ward != nil {
		total += w.Ward * res.Ward.Score
	}
	c := total / w.sum()
	if c > 1 {
		return 1
	}
	return c
}
