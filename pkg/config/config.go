package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
)

type Config struct {
	Telegram   TelegramConfig   `mapstructure:"telegram"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Classifier ClassifierConfig `mapstructure:"classifier"`
	OpenAI     OpenAIConfig     `mapstructure:"openai"`
	Profile    ProfileConfig    `mapstructure:"profile"`
	Temporal   TemporalConfig   `mapstructure:"temporal"`
	Incident   IncidentConfig   `mapstructure:"incident"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Scheduler  SchedulerConfig  `mapstructure:"scheduler"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

type TelegramConfig struct {
	Token string `mapstructure:"token"`
}

// Database drivers.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type DatabaseConfig struct {
	Driver     string `mapstructure:"driver"`
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	User       string `mapstructure:"user"`
	Password   string `mapstructure:"password"`
	DBName     string `mapstructure:"dbname"`
	SSLMode    string `mapstructure:"sslmode"`
	SQLitePath string `mapstructure:"sqlite_path"`
}

// Classifier providers.
const (
	ProviderGPT     = "gpt"
	ProviderKeyword = "keyword"
)

type ClassifierConfig struct {
	Provider       string        `mapstructure:"provider"`
	Timeout        time.Duration `mapstructure:"timeout"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryBackoff   time.Duration `mapstructure:"retry_backoff"`
	MinProbability float64       `mapstructure:"min_probability"`
	Fallback       bool          `mapstructure:"fallback"`
}

type OpenAIConfig struct {
	APIKey      string  `mapstructure:"api_key"`
	Model       string  `mapstructure:"model"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	Temperature float64 `mapstructure:"temperature"`
}

type ProfileConfig struct {
	MidTermDays      int         `mapstructure:"mid_term_days"`
	MidTermMessages  int         `mapstructure:"mid_term_messages"`
	LongTermDays     int         `mapstructure:"long_term_days"`
	LongTermMessages int         `mapstructure:"long_term_messages"`
	ShortTermRate    float64     `mapstructure:"short_term_rate"`
	MidTermRate      float64     `mapstructure:"mid_term_rate"`
	LongTermRate     float64     `mapstructure:"long_term_rate"`
	DecayConstant    float64     `mapstructure:"decay_constant"`
	HistorySize      int         `mapstructure:"history_size"`
	WeightRates      WeightRates `mapstructure:"weight_rates"`
}

type WeightRates struct {
	EmotionIntensity   float64 `mapstructure:"emotion_intensity"`
	Recency            float64 `mapstructure:"recency_weight"`
	Recurrence         float64 `mapstructure:"recurrence_boost"`
	TemporalConfidence float64 `mapstructure:"temporal_confidence"`
}

type TemporalConfig struct {
	DisableDateParse bool              `mapstructure:"disable_dateparse"`
	ExtraPatterns    []TemporalPattern `mapstructure:"extra_patterns"`
}

// TemporalPattern is an additional phrase pattern; category is absolute,
// relative or vague and language is en, hi, hinglish or mixed.
type TemporalPattern struct {
	Name     string `mapstructure:"name"`
	Expr     string `mapstructure:"expr"`
	Category string `mapstructure:"category"`
	Language string `mapstructure:"language"`
}

type IncidentConfig struct {
	ExtraKeywords []string `mapstructure:"extra_keywords"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Stream   string `mapstructure:"stream"`
	MaxLen   int64  `mapstructure:"max_len"`
}

type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

type SchedulerConfig struct {
	CheckpointSchedule string        `mapstructure:"checkpoint_schedule"`
	Timeout            time.Duration `mapstructure:"timeout"`
}

type LoggingConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

func parseDatabaseURL(dbURL string) (DatabaseConfig, error) {
	u, err := url.Parse(dbURL)
	if err != nil {
		return DatabaseConfig{}, err
	}

	password, _ := u.User.Password()
	port := 5432 // default PostgreSQL port
	if u.Port() != "" {
		fmt.Sscanf(u.Port(), "%d", &port)
	}

	sslMode := u.Query().Get("sslmode")
	if sslMode == "" {
		sslMode = "disable"
	}

	return DatabaseConfig{
		Driver:   DriverPostgres,
		Host:     u.Hostname(),
		Port:     port,
		User:     u.User.Username(),
		Password: password,
		DBName:   strings.TrimPrefix(u.Path, "/"),
		SSLMode:  sslMode,
	}, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.driver", DriverMemory)
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.dbname", "emotrack")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.sqlite_path", "emotrack.db")

	v.SetDefault("classifier.provider", ProviderKeyword)
	v.SetDefault("classifier.timeout", 15*time.Second)
	v.SetDefault("classifier.max_retries", 2)
	v.SetDefault("classifier.retry_backoff", 500*time.Millisecond)
	v.SetDefault("classifier.min_probability", 0.01)
	v.SetDefault("classifier.fallback", true)

	v.SetDefault("openai.model", "gpt-4o-mini")
	v.SetDefault("openai.max_tokens", 300)
	v.SetDefault("openai.temperature", 0.0)

	v.SetDefault("profile.mid_term_days", 14)
	v.SetDefault("profile.mid_term_messages", 30)
	v.SetDefault("profile.long_term_days", 90)
	v.SetDefault("profile.long_term_messages", 50)
	v.SetDefault("profile.short_term_rate", 0.30)
	v.SetDefault("profile.mid_term_rate", 0.125)
	v.SetDefault("profile.long_term_rate", 0.02)
	v.SetDefault("profile.decay_constant", 200.0)
	v.SetDefault("profile.history_size", 500)
	v.SetDefault("profile.weight_rates.emotion_intensity", 0.12)
	v.SetDefault("profile.weight_rates.recency_weight", 0.15)
	v.SetDefault("profile.weight_rates.recurrence_boost", 0.25)
	v.SetDefault("profile.weight_rates.temporal_confidence", 0.20)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.stream", "emotrack:analyses")
	v.SetDefault("redis.max_len", 100000)

	v.SetDefault("metrics.addr", ":9090")

	v.SetDefault("scheduler.checkpoint_schedule", "@every 5m")
	v.SetDefault("scheduler.timeout", time.Minute)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.development", false)
}

// LoadConfig reads the YAML file at path; the file must exist.
func LoadConfig(path string) (*Config, error) {
	return load(path, false)
}

// LoadOptional is LoadConfig that falls back to defaults and environment
// when the file is missing.
func LoadOptional(path string) (*Config, error) {
	return load(path, true)
}

func load(path string, optional bool) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	// Enable environment variable support
	v.SetEnvPrefix("EMOTRACK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if !optional || !errors.Is(err, fs.ErrNotExist) {
				return nil, err
			}
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	// Well-known variables without the prefix
	env := viper.New()
	env.AutomaticEnv()

	if dbURL := env.GetString("DATABASE_URL"); dbURL != "" {
		dbConfig, err := parseDatabaseURL(dbURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse DATABASE_URL: %w", err)
		}
		config.Database = dbConfig
	}

	if redisURL := env.GetString("REDIS_URL"); redisURL != "" {
		opts, err := redis.ParseURL(redisURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse REDIS_URL: %w", err)
		}
		config.Redis.Enabled = true
		config.Redis.Addr = opts.Addr
		config.Redis.Password = opts.Password
		config.Redis.DB = opts.DB
	}

	if token := env.GetString("TELEGRAM_TOKEN"); token != "" {
		config.Telegram.Token = token
	}

	if apiKey := env.GetString("OPENAI_API_KEY"); apiKey != "" {
		config.OpenAI.APIKey = apiKey
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverMemory, DriverPostgres, DriverSQLite:
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}
	switch c.Classifier.Provider {
	case ProviderKeyword:
	case ProviderGPT:
		if c.OpenAI.APIKey == "" {
			return errors.New("openai.api_key is required for the gpt classifier")
		}
	default:
		return fmt.Errorf("unknown classifier provider %q", c.Classifier.Provider)
	}
	if c.Classifier.MinProbability < 0 || c.Classifier.MinProbability >= 1 {
		return fmt.Errorf("classifier.min_probability must be in [0, 1), got %v", c.Classifier.MinProbability)
	}
	if c.Profile.HistorySize <= 0 {
		return fmt.Errorf("profile.history_size must be positive, got %d", c.Profile.HistorySize)
	}
	return nil
}
