package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/address-resolver/internal/normalizer"
	"github.com/address-resolver/internal/parser"
	"github.com/spf13/viper"
)

// ErrInvalidConfig cấu hình sai, service không được khởi động.
var ErrInvalidConfig = errors.New("invalid config")

type AppCfg struct {
	Port    string `mapstructure:"port"`
	Env     string `mapstructure:"env"`
	Version string `mapstructure:"version"`
}

type MongoCfg struct {
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database"`
}

type RedisCfg struct {
	URL    string        `mapstructure:"url"`
	Prefix string        `mapstructure:"prefix"`
	TTL    time.Duration `mapstructure:"ttl"`
}

type MeiliCfg struct {
	URL       string        `mapstructure:"url"`
	MasterKey string        `mapstructure:"master_key"`
	Index     string        `mapstructure:"index"`
	Timeout   time.Duration `mapstructure:"timeout"`
	Enabled   bool          `mapstructure:"enabled"`
}

type CacheCfg struct {
	Backend string        `mapstructure:"backend"` // memory | redis | mongo | hybrid
	L1Size  int           `mapstructure:"l1_size"`
	TTL     time.Duration `mapstructure:"ttl"`
	Warmup  int           `mapstructure:"warmup"`
}

type ReferenceCfg struct {
	Source         string  `mapstructure:"source"` // file | mongo
	Path           string  `mapstructure:"path"`
	LearnedAliases bool    `mapstructure:"learned_aliases"`
	MinAliasConf   float64 `mapstructure:"min_alias_confidence"`
}

// ScoringWeights trọng số confidence theo cấp.
type ScoringWeights struct {
	Province float64 `mapstructure:"province" json:"province"`
	District float64 `mapstructure:"district" json:"district"`
	Ward     float64 `mapstructure:"ward" json:"ward"`
}

// Thresholds ngưỡng trạng thái của kết quả API.
type Thresholds struct {
	High      float64 `mapstructure:"high" json:"high"`
	ReviewLow float64 `mapstructure:"review_low" json:"review_low"`
}

type ResolverCfg struct {
	Threshold      float64        `mapstructure:"threshold"`
	InferredFactor float64        `mapstructure:"inferred_factor"`
	LevWeight      float64        `mapstructure:"lev_weight"`
	JWWeight       float64        `mapstructure:"jw_weight"`
	Weights        ScoringWeights `mapstructure:"weights"`
	Separators     string         `mapstructure:"separators"`
	Thresholds     Thresholds     `mapstructure:"thresholds"`
}

type QualityCfg struct {
	TaxonomyPath string `mapstructure:"taxonomy_path"`
	Workers      int    `mapstructure:"workers"`
	MaxRating    int    `mapstructure:"max_rating"`
}

type JobsCfg struct {
	MaxAddresses int `mapstructure:"max_addresses"`
	Workers      int `mapstructure:"workers"`
}

// Config cấu hình toàn service.
type Config struct {
	App         AppCfg       `mapstructure:"app"`
	Mongo       MongoCfg     `mapstructure:"mongo"`
	Redis       RedisCfg     `mapstructure:"redis"`
	Meilisearch MeiliCfg     `mapstructure:"meilisearch"`
	Cache       CacheCfg     `mapstructure:"cache"`
	Reference   ReferenceCfg `mapstructure:"reference"`
	Resolver    ResolverCfg  `mapstructure:"resolver"`
	Quality     QualityCfg   `mapstructure:"quality"`
	Jobs        JobsCfg      `mapstructure:"jobs"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.port", "8080")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.version", "dev")

	v.SetDefault("mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("mongo.database", "address_resolver")

	v.SetDefault("redis.url", "redis://localhost:6379")
	v.SetDefault("redis.prefix", "addr")
	v.SetDefault("redis.ttl", 24*time.Hour)

	v.SetDefault("meilisearch.url", "http://meili:7700")
	v.SetDefault("meilisearch.master_key", "")
	v.SetDefault("meilisearch.index", "admin_units")
	v.SetDefault("meilisearch.timeout", 5*time.Second)
	v.SetDefault("meilisearch.enabled", false)

	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.l1_size", 10000)
	v.SetDefault("cache.ttl", 24*time.Hour)
	v.SetDefault("cache.warmup", 5000)

	v.SetDefault("reference.source", "file")
	v.SetDefault("reference.path", "config/reference.yaml")
	v.SetDefault("reference.learned_aliases", true)
	v.SetDefault("reference.min_alias_confidence", 0.8)

	def := parser.DefaultResolverConfig()
	v.SetDefault("resolver.threshold", def.Threshold)
	v.SetDefault("resolver.inferred_factor", def.InferredFactor)
	v.SetDefault("resolver.lev_weight", def.Matcher.LevWeight)
	v.SetDefault("resolver.jw_weight", def.Matcher.JWWeight)
	v.SetDefault("resolver.weights.province", def.Weights.Province)
	v.SetDefault("resolver.weights.district", def.Weights.District)
	v.SetDefault("resolver.weights.ward", def.Weights.Ward)
	v.SetDefault("resolver.separators", normalizer.AddressSeparators)
	v.SetDefault("resolver.thresholds.high", 0.9)
	v.SetDefault("resolver.thresholds.review_low", 0.6)

	v.SetDefault("quality.taxonomy_path", "")
	v.SetDefault("quality.workers", 8)
	v.SetDefault("quality.max_rating", 2)

	v.SetDefault("jobs.max_addresses", 10000)
	v.SetDefault("jobs.workers", 8)
}

// Load đọc file YAML (nếu có) rồi env. path rỗng thì dùng APP_CONFIG hoặc config/app.yaml.
// Thiếu file mặc định không phải lỗi; thiếu file được chỉ định rõ thì là lỗi.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	explicit := path != ""
	if !explicit {
		path = os.Getenv("APP_CONFIG")
		explicit = path != ""
	}
	if explicit {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("app")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if explicit || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("đọc config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("giải mã config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate kiểm tra các giá trị mà engine không tự sửa được.
func (c *Config) Validate() error {
	var errs []error
	r := c.Resolver
	if r.Threshold <= 0 || r.Threshold > 1 {
		errs = append(errs, fmt.Errorf("resolver.threshold phải trong (0,1], nhận %v", r.Threshold))
	}
	if r.InferredFactor <= 0 || r.InferredFactor > 1 {
		errs = append(errs, fmt.Errorf("resolver.inferred_factor phải trong (0,1], nhận %v", r.InferredFactor))
	}
	if r.Weights.Province <= 0 || r.Weights.District <= 0 || r.Weights.Ward <= 0 {
		errs = append(errs, errors.New("resolver.weights phải dương"))
	}
	if r.LevWeight < 0 || r.JWWeight < 0 || r.LevWeight+r.JWWeight == 0 {
		errs = append(errs, errors.New("resolver.lev_weight/jw_weight không hợp lệ"))
	}
	if r.Thresholds.ReviewLow > r.Thresholds.High {
		errs = append(errs, errors.New("resolver.thresholds.review_low lớn hơn high"))
	}
	switch c.Cache.Backend {
	case "memory", "redis", "mongo", "hybrid":
	default:
		errs = append(errs, fmt.Errorf("cache.backend không hỗ trợ: %q", c.Cache.Backend))
	}
	switch c.Reference.Source {
	case "file":
		if c.Reference.Path == "" {
			errs = append(errs, errors.New("reference.path trống"))
		}
	case "mongo":
	default:
		errs = append(errs, fmt.Errorf("reference.source không hỗ trợ: %q", c.Reference.Source))
	}
	if c.Jobs.Workers <= 0 || c.Quality.Workers <= 0 {
		errs = append(errs, errors.New("workers phải dương"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// NeedsMongo true khi có thành phần phải đọc/ghi Mongo.
func (c *Config) NeedsMongo() bool {
	return c.Reference.Source == "mongo" || c.Cache.Backend == "mongo" || c.Cache.Backend == "hybrid"
}

// ParserConfig chuyển sang cấu hình của resolver.
func (c *Config) ParserConfig() parser.ResolverConfig {
	r := c.Resolver
	return parser.ResolverConfig{
		Threshold:      r.Threshold,
		InferredFactor: r.InferredFactor,
		Weights: parser.Weights{
			Province: r.Weights.Province,
			District: r.Weights.District,
			Ward:     r.Weights.Ward,
		},
		Separators: r.Separators,
		Matcher: parser.MatcherConfig{
			LevWeight: r.LevWeight,
			JWWeight:  r.JWWeight,
		},
	}
}
