package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	CORS      CORSConfig
	Log       LogConfig
	AI        AIConfig
	Analytics AnalyticsConfig
	Reports   ReportsConfig
	Comments  CommentsConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret            string
	Expiration        time.Duration
	RefreshExpiration time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// AIConfig holds the model provider connection and usage limits.
type AIConfig struct {
	BaseURL        string
	APIKey         string
	DefaultModel   string
	ChatModel      string
	RequestTimeout time.Duration
	MaxRetries     int
	RetryBaseDelay time.Duration
	DailyQuota     int64
}

// AnalyticsConfig governs cache behaviour for derived analytics reads.
type AnalyticsConfig struct {
	CacheTTL time.Duration
}

// ReportsConfig controls class report generation and detached persistence.
type ReportsConfig struct {
	Model             string
	FailureSentinel   string
	WorkerConcurrency int
	WorkerRetries     int
	WorkerRetryDelay  time.Duration
}

// CommentsConfig controls student comment generation.
type CommentsConfig struct {
	Model    string
	CacheTTL time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:            v.GetString("JWT_SECRET"),
		Expiration:        parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		RefreshExpiration: parseDuration(v.GetString("REFRESH_TOKEN_EXPIRATION"), 7*24*time.Hour),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.AI = AIConfig{
		BaseURL:        v.GetString("AI_BASE_URL"),
		APIKey:         v.GetString("AI_API_KEY"),
		DefaultModel:   v.GetString("AI_DEFAULT_MODEL"),
		ChatModel:      v.GetString("AI_CHAT_MODEL"),
		RequestTimeout: parseDuration(v.GetString("AI_REQUEST_TIMEOUT"), 5*time.Minute),
		MaxRetries:     v.GetInt("AI_MAX_RETRIES"),
		RetryBaseDelay: parseDuration(v.GetString("AI_RETRY_BASE_DELAY"), time.Second),
		DailyQuota:     v.GetInt64("AI_DAILY_QUOTA"),
	}

	cfg.Analytics = AnalyticsConfig{
		CacheTTL: parseDuration(v.GetString("ANALYTICS_CACHE_TTL"), 10*time.Minute),
	}

	cfg.Reports = ReportsConfig{
		Model:             v.GetString("REPORTS_MODEL"),
		FailureSentinel:   v.GetString("REPORTS_FAILURE_SENTINEL"),
		WorkerConcurrency: v.GetInt("REPORTS_WORKER_CONCURRENCY"),
		WorkerRetries:     v.GetInt("REPORTS_WORKER_RETRIES"),
		WorkerRetryDelay:  parseDuration(v.GetString("REPORTS_WORKER_RETRY_DELAY"), time.Second),
	}
	if cfg.Reports.Model == "" {
		cfg.Reports.Model = cfg.AI.DefaultModel
	}

	cfg.Comments = CommentsConfig{
		Model:    v.GetString("COMMENTS_MODEL"),
		CacheTTL: parseDuration(v.GetString("COMMENTS_CACHE_TTL"), 24*time.Hour),
	}
	if cfg.Comments.Model == "" {
		cfg.Comments.Model = cfg.AI.DefaultModel
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "grade_insight")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("REFRESH_TOKEN_EXPIRATION", "168h")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("AI_BASE_URL", "https://api-inference.modelscope.cn/v1")
	v.SetDefault("AI_API_KEY", "")
	v.SetDefault("AI_DEFAULT_MODEL", "Qwen/Qwen2.5-72B-Instruct")
	v.SetDefault("AI_CHAT_MODEL", "")
	v.SetDefault("AI_REQUEST_TIMEOUT", "5m")
	v.SetDefault("AI_MAX_RETRIES", 3)
	v.SetDefault("AI_RETRY_BASE_DELAY", "1s")
	v.SetDefault("AI_DAILY_QUOTA", 500)

	v.SetDefault("ANALYTICS_CACHE_TTL", "10m")

	v.SetDefault("REPORTS_MODEL", "")
	v.SetDefault("REPORTS_FAILURE_SENTINEL", "generation failed")
	v.SetDefault("REPORTS_WORKER_CONCURRENCY", 1)
	v.SetDefault("REPORTS_WORKER_RETRIES", 3)
	v.SetDefault("REPORTS_WORKER_RETRY_DELAY", "1s")

	v.SetDefault("COMMENTS_MODEL", "")
	v.SetDefault("COMMENTS_CACHE_TTL", "24h")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
