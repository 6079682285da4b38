package quality

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/address-resolver/internal/normalizer"
	"github.com/address-resolver/internal/parser"
	"gopkg.in/yaml.v3"
)

//go:embed data/taxonomy.yaml
var taxonomyYAML []byte

// ErrInvalidTaxonomy file taxonomy sai cấu trúc.
var ErrInvalidTaxonomy = errors.New("invalid quality taxonomy")

// Bands ngưỡng confidence dùng để phân loại.
type Bands struct {
	Low  float64 `yaml:"low" json:"low"`
	High float64 `yaml:"high" json:"high"`
}

// TriggerCategory một nhóm nguyên nhân nhận diện bằng regex trên text gốc hoặc keyword trên text đã fold.
type TriggerCategory struct {
	Name          Category `yaml:"name" json:"name"`
	Description   string   `yaml:"description,omitempty" json:"description,omitempty"`
	CaseSensitive bool     `yaml:"case_sensitive,omitempty" json:"case_sensitive,omitempty"`
	Patterns      []string `yaml:"patterns,omitempty" json:"patterns,omitempty"`
	Keywords      []string `yaml:"keywords,omitempty" json:"keywords,omitempty"`

	compiled []*regexp.Regexp
	phrases  []string
}

// Taxonomy dữ liệu phân loại có version.
type Taxonomy struct {
	Version    string            `yaml:"version" json:"version"`
	Bands      Bands             `yaml:"bands" json:"bands"`
	Sentinels  []string          `yaml:"sentinels" json:"sentinels"`
	Categories []TriggerCategory `yaml:"categories" json:"categories"`

	sentinels map[string]bool
}

// DefaultTaxonomy taxonomy nhúng sẵn trong binary.
func DefaultTaxonomy() (*Taxonomy, error) {
	return ParseTaxonomy(taxonomyYAML)
}

// LoadTaxonomy đọc taxonomy từ file; path rỗng dùng bản nhúng.
func LoadTaxonomy(path string) (*Taxonomy, error) {
	if path == "" {
		return DefaultTaxonomy()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("đọc taxonomy %s: %w", path, err)
	}
	return ParseTaxonomy(data)
}

// ParseTaxonomy giải mã và biên dịch taxonomy.
func ParseTaxonomy(data []byte) (*Taxonomy, error) {
	var t Taxonomy
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidTaxonomy, err)
	}
	if err := t.compile(); err != nil {
		return nil, err
	}
	return &t, nil
}

func (t *Taxonomy) compile() error {
	var errs []error
	if t.Bands.Low < 0 || t.Bands.High > 1 || t.Bands.Low > t.Bands.High {
		errs = append(errs, fmt.Errorf("bands không hợp lệ: low=%v high=%v", t.Bands.Low, t.Bands.High))
	}

	t.sentinels = make(map[string]bool, len(t.Sentinels))
	for _, s := range t.Sentinels {
		t.sentinels[strings.ToLower(strings.TrimSpace(s))] = true
	}

	seen := make(map[Category]bool)
	for i := range t.Categories {
		c := &t.Categories[i]
		if c.Name == "" {
			errs = append(errs, fmt.Errorf("category %d thiếu name", i))
			continue
		}
		if seen[c.Name] || c.Name.builtin() {
			errs = append(errs, fmt.Errorf("category %s bị trùng", c.Name))
			continue
		}
		seen[c.Name] = true
		if len(c.Patterns) == 0 && len(c.Keywords) == 0 {
			errs = append(errs, fmt.Errorf("category %s không có patterns hay keywords", c.Name))
			continue
		}

		c.compiled = c.compiled[:0]
		for _, p := range c.Patterns {
			if !c.CaseSensitive {
				p = "(?i)" + p
			}
			re, err := regexp.Compile(p)
			if err != nil {
				errs = append(errs, fmt.Errorf("category %s: %w", c.Name, err))
				continue
			}
			c.compiled = append(c.compiled, re)
		}
		c.phrases = c.phrases[:0]
		for _, k := range c.Keywords {
			if folded := normalizer.Canonicalize(k, ""); folded != "" {
				c.phrases = append(c.phrases, folded)
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidTaxonomy, errors.Join(errs...))
	}
	return nil
}

// IsSentinel giá trị known có phải là "không có" hay không: các sentinel mà
// resolver bỏ qua, cộng thêm các giá trị khai báo trong taxonomy.
func (t *Taxonomy) IsSentinel(v string) bool {
	return parser.IsSentinel(v) || t.sentinels[strings.ToLower(strings.TrimSpace(v))]
}

// match trả về lý do nếu địa chỉ rơi vào category.
func (c *TriggerCategory) match(raw, folded string) (string, bool) {
	for _, re := range c.compiled {
		if loc := re.FindString(raw); loc != "" {
			return fmt.Sprintf("pattern %s khớp %q", re.String(), loc), true
		}
	}
	padded := " " + folded + " "
	for _, p := range c.phrases {
		if strings.Contains(padded, " "+p+" ") {
			return fmt.Sprintf("keyword %q", p), true
		}
	}
	return "", false
}
