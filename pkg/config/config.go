package config

import (
	"errors"
	"io/fs"
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

	Database   DatabaseConfig
	Redis      RedisConfig
	JWT        JWTConfig
	CORS       CORSConfig
	Log        LogConfig
	Statistics StatisticsConfig
	Exports    ExportsConfig
	Document   DocumentConfig
	Raster     RasterConfig
	Locale     LocaleConfig
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

// JWTConfig verifies access tokens issued by the identity provider.
type JWTConfig struct {
	Secret           string
	TrustEmailHeader bool
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// StatisticsConfig covers both sides of the full-export contract: the client used by
// the exporter and the cache applied by the endpoint serving it.
type StatisticsConfig struct {
	BaseURL             string
	Timeout             time.Duration
	CacheEnabled        bool
	CacheTTL            time.Duration
	DegradeOnFetchError bool
}

// ExportsConfig configures artifact delivery.
type ExportsConfig struct {
	StorageDir      string
	SignedURLSecret string
	SignedURLTTL    time.Duration
	ResultTTL       time.Duration
	CleanupSchedule string
}

// DocumentConfig holds page geometry (millimetres) and report metadata.
type DocumentConfig struct {
	Title        string
	PageWidth    float64
	PageHeight   float64
	Margin       float64
	SurfaceOrder []string
}

// RasterConfig sets the snapshot defaults handed to chart surfaces.
type RasterConfig struct {
	Scale             float64
	Background        string
	AllowCrossOrigin  bool
	MaxSnapshotBytes  int64
	// MaxSnapshotPixels bounds width*height of a decoded snapshot; MaxOutputPixels
	// bounds the scaled raster.
	MaxSnapshotPixels int64
	MaxOutputPixels   int64
}

// LocaleConfig controls how dates are rendered for the requester.
type LocaleConfig struct {
	DateLayout string
	Timezone   string
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
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
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
		Secret:           v.GetString("JWT_SECRET"),
		TrustEmailHeader: v.GetBool("AUTH_TRUST_EMAIL_HEADER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Statistics = StatisticsConfig{
		BaseURL:             strings.TrimRight(v.GetString("STATISTICS_BASE_URL"), "/"),
		Timeout:             parseDuration(v.GetString("STATISTICS_TIMEOUT"), 30*time.Second),
		CacheEnabled:        v.GetBool("STATISTICS_CACHE_ENABLED"),
		CacheTTL:            parseDuration(v.GetString("STATISTICS_CACHE_TTL"), time.Minute),
		DegradeOnFetchError: v.GetBool("STATISTICS_DEGRADE_ON_ERROR"),
	}

	cfg.Exports = ExportsConfig{
		StorageDir:      v.GetString("EXPORTS_STORAGE_DIR"),
		SignedURLSecret: v.GetString("EXPORTS_SIGNED_URL_SECRET"),
		SignedURLTTL:    parseDuration(v.GetString("EXPORTS_SIGNED_URL_TTL"), 15*time.Minute),
		ResultTTL:       parseDuration(v.GetString("EXPORTS_RESULT_TTL"), time.Hour),
		CleanupSchedule: v.GetString("EXPORTS_CLEANUP_SCHEDULE"),
	}

	cfg.Document = DocumentConfig{
		Title:        v.GetString("DOCUMENT_TITLE"),
		PageWidth:    v.GetFloat64("DOCUMENT_PAGE_WIDTH_MM"),
		PageHeight:   v.GetFloat64("DOCUMENT_PAGE_HEIGHT_MM"),
		Margin:       v.GetFloat64("DOCUMENT_MARGIN_MM"),
		SurfaceOrder: splitAndTrim(v.GetString("DOCUMENT_SURFACE_ORDER")),
	}

	cfg.Raster = RasterConfig{
		Scale:             v.GetFloat64("RASTER_SCALE"),
		Background:        v.GetString("RASTER_BACKGROUND"),
		AllowCrossOrigin:  v.GetBool("RASTER_ALLOW_CROSS_ORIGIN"),
		MaxSnapshotBytes:  v.GetInt64("RASTER_MAX_SNAPSHOT_BYTES"),
		MaxSnapshotPixels: v.GetInt64("RASTER_MAX_SNAPSHOT_PIXELS"),
		MaxOutputPixels:   v.GetInt64("RASTER_MAX_OUTPUT_PIXELS"),
	}

	cfg.Locale = LocaleConfig{
		DateLayout: v.GetString("LOCALE_DATE_LAYOUT"),
		Timezone:   v.GetString("LOCALE_TIMEZONE"),
	}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "helpdesk")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("AUTH_TRUST_EMAIL_HEADER", false)

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("STATISTICS_BASE_URL", "http://localhost:8080")
	v.SetDefault("STATISTICS_TIMEOUT", "30s")
	v.SetDefault("STATISTICS_CACHE_ENABLED", false)
	v.SetDefault("STATISTICS_CACHE_TTL", "1m")
	v.SetDefault("STATISTICS_DEGRADE_ON_ERROR", true)

	v.SetDefault("EXPORTS_STORAGE_DIR", "./exports")
	v.SetDefault("EXPORTS_SIGNED_URL_SECRET", "dev_exports_secret")
	v.SetDefault("EXPORTS_SIGNED_URL_TTL", "15m")
	v.SetDefault("EXPORTS_RESULT_TTL", "1h")
	v.SetDefault("EXPORTS_CLEANUP_SCHEDULE", "@every 1h")

	v.SetDefault("DOCUMENT_TITLE", "Relatório de Estatísticas de Chamados")
	v.SetDefault("DOCUMENT_PAGE_WIDTH_MM", 210.0)
	v.SetDefault("DOCUMENT_PAGE_HEIGHT_MM", 297.0)
	v.SetDefault("DOCUMENT_MARGIN_MM", 15.0)
	v.SetDefault("DOCUMENT_SURFACE_ORDER", "status-bar,category-pie,monthly-line,analyst-bar")

	v.SetDefault("RASTER_SCALE", 2.0)
	v.SetDefault("RASTER_BACKGROUND", "#ffffff")
	v.SetDefault("RASTER_ALLOW_CROSS_ORIGIN", true)
	v.SetDefault("RASTER_MAX_SNAPSHOT_BYTES", 8*1024*1024)
	v.SetDefault("RASTER_MAX_SNAPSHOT_PIXELS", 4096*4096)
	v.SetDefault("RASTER_MAX_OUTPUT_PIXELS", 8192*8192)

	v.SetDefault("LOCALE_DATE_LAYOUT", "02/01/2006")
	v.SetDefault("LOCALE_TIMEZONE", "America/Sao_Paulo")
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
