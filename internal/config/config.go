package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config aggregates application settings that may be sourced from files or environment variables.
type Config struct {
	API      APIConfig      `mapstructure:"api"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	MinIO    MinIOConfig    `mapstructure:"minio"`
	Clamd    ClamdConfig    `mapstructure:"clamd"`
	Render   RenderConfig   `mapstructure:"render"`
	Print    PrintConfig    `mapstructure:"print"`
	Worker   WorkerConfig   `mapstructure:"worker"`
}

// APIConfig contains HTTP server settings.
type APIConfig struct {
	Port           int    `mapstructure:"port"`
	InternalSecret string `mapstructure:"internal_secret"`
	// AllowedOrigins 为逗号分隔的 WebSocket 允许来源，留空表示仅允许同源。
	AllowedOrigins string `mapstructure:"allowed_origins"`
	DesignerPath   string `mapstructure:"designer_path"`
	// VerifyLimitPerHour 为每个 IP 每小时允许的验证次数，<=0 表示不限制。
	VerifyLimitPerHour int `mapstructure:"verify_limit_per_hour"`
}

// DatabaseConfig contains connection options for PostgreSQL.
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Name     string `mapstructure:"name"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	SSLMode  string `mapstructure:"sslmode"`
}

// RedisConfig 包含 Redis 连接配置。
type RedisConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// Addr 返回 host:port 形式的地址。
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// MinIOConfig contains connection options for MinIO/S3-compatible storage.
type MinIOConfig struct {
	Endpoint         string `mapstructure:"endpoint"`
	PublicEndpoint   string `mapstructure:"public_endpoint"`
	AccessKeyID      string `mapstructure:"access_key_id"`
	SecretAccessKey  string `mapstructure:"secret_access_key"`
	UseSSL           bool   `mapstructure:"use_ssl"`
	Bucket           string `mapstructure:"bucket"`
	Region           string `mapstructure:"region"`
	BucketLookup     string `mapstructure:"bucket_lookup"`
	AutoCreateBucket bool   `mapstructure:"auto_create_bucket"`
}

// ClamdConfig 描述上传扫描使用的 clamd 地址；留空时跳过扫描。
type ClamdConfig struct {
	Addr string `mapstructure:"addr"`
}

// RenderConfig 控制卡片渲染。
type RenderConfig struct {
	// FontsDir 存放 <family>.ttf / <family>-Bold.ttf，缺失时回退到内置位图字体。
	FontsDir     string  `mapstructure:"fonts_dir"`
	Locale       string  `mapstructure:"locale"`
	DefaultScale float64 `mapstructure:"default_scale"`
	QRSizePx     int     `mapstructure:"qr_size_px"`
}

// PrintConfig 描述打印纸张与排版参数（毫米）。
type PrintConfig struct {
	SheetWidthMM  float64 `mapstructure:"sheet_width_mm"`
	SheetHeightMM float64 `mapstructure:"sheet_height_mm"`
	MarginMM      float64 `mapstructure:"margin_mm"`
	SpacingMM     float64 `mapstructure:"spacing_mm"`
}

// WorkerConfig 控制 asynq worker。
type WorkerConfig struct {
	Concurrency int `mapstructure:"concurrency"`
	// MetricsPort 为 worker 暴露 /metrics 的端口，0 表示不暴露。
	MetricsPort int `mapstructure:"metrics_port"`
}

// DSN builds a lib/pq compatible connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host,
		d.Port,
		d.User,
		d.Password,
		d.Name,
		d.SSLMode,
	)
}

// OriginList 拆分 AllowedOrigins。
func (a APIConfig) OriginList() []string {
	var out []string
	for _, o := range strings.Split(a.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// Load reads configuration from environment variables (with optional defaults).
// A .env file in the working directory is loaded first when present.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if err := bindEnv(v); err != nil {
		return nil, fmt.Errorf("bind env: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// MustLoad wraps Load and panics on failure.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.port", 8080)
	v.SetDefault("api.designer_path", "/designer")
	v.SetDefault("api.verify_limit_per_hour", 30)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "academy")
	v.SetDefault("database.user", "academy")
	v.SetDefault("database.password", "academy")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("minio.endpoint", "localhost:9000")
	v.SetDefault("minio.public_endpoint", "http://localhost:9000")
	v.SetDefault("minio.use_ssl", false)
	v.SetDefault("minio.bucket", "id-cards")
	v.SetDefault("minio.bucket_lookup", "auto")
	v.SetDefault("minio.auto_create_bucket", true)
	v.SetDefault("render.fonts_dir", "assets/fonts")
	v.SetDefault("render.locale", "ar")
	v.SetDefault("render.default_scale", 1.0)
	v.SetDefault("render.qr_size_px", 256)
	v.SetDefault("print.sheet_width_mm", 210.0)
	v.SetDefault("print.sheet_height_mm", 297.0)
	v.SetDefault("print.margin_mm", 5.0)
	v.SetDefault("print.spacing_mm", 2.0)
	v.SetDefault("worker.concurrency", 10)
	v.SetDefault("worker.metrics_port", 9091)
}

func bindEnv(v *viper.Viper) error {
	mappings := map[string]string{
		"api.port":                  "API_PORT",
		"api.internal_secret":       "INTERNAL_API_SECRET",
		"api.allowed_origins":       "WS_ALLOWED_ORIGINS",
		"api.designer_path":         "DESIGNER_PATH",
		"api.verify_limit_per_hour": "VERIFY_LIMIT_PER_HOUR",
		"database.host":             "DATABASE_HOST",
		"database.port":             "DATABASE_PORT",
		"database.name":             "POSTGRES_DB",
		"database.user":             "POSTGRES_USER",
		"database.password":         "POSTGRES_PASSWORD",
		"database.sslmode":          "DATABASE_SSLMODE",
		"redis.host":                "REDIS_HOST",
		"redis.port":                "REDIS_PORT",
		"minio.endpoint":            "MINIO_ENDPOINT",
		"minio.public_endpoint":     "MINIO_PUBLIC_ENDPOINT",
		"minio.access_key_id":       "MINIO_ACCESS_KEY_ID",
		"minio.secret_access_key":   "MINIO_SECRET_ACCESS_KEY",
		"minio.use_ssl":             "MINIO_USE_SSL",
		"minio.bucket":              "MINIO_BUCKET",
		"minio.region":              "MINIO_REGION",
		"minio.bucket_lookup":       "MINIO_BUCKET_LOOKUP",
		"minio.auto_create_bucket":  "MINIO_AUTO_CREATE_BUCKET",
		"clamd.addr":                "CLAMD_ADDR",
		"render.fonts_dir":          "RENDER_FONTS_DIR",
		"render.locale":             "RENDER_LOCALE",
		"render.default_scale":      "RENDER_DEFAULT_SCALE",
		"render.qr_size_px":         "RENDER_QR_SIZE_PX",
		"print.sheet_width_mm":      "PRINT_SHEET_WIDTH_MM",
		"print.sheet_height_mm":     "PRINT_SHEET_HEIGHT_MM",
		"print.margin_mm":           "PRINT_MARGIN_MM",
		"print.spacing_mm":          "PRINT_SPACING_MM",
		"worker.concurrency":        "WORKER_CONCURRENCY",
		"worker.metrics_port":       "WORKER_METRICS_PORT",
	}

	for key, env := range mappings {
		if err := v.BindEnv(key, env); err != nil {
			return fmt.Errorf("bind %s to %s: %w", key, env, err)
		}
	}

	return nil
}

func validate(cfg Config) error {
	if cfg.API.Port <= 0 {
		return errors.New("api port must be positive")
	}
	if cfg.Database.Host == "" {
		return errors.New("database host is required")
	}
	if cfg.Database.Port <= 0 {
		return errors.New("database port must be positive")
	}
	if cfg.Database.Name == "" {
		return errors.New("database name is required")
	}
	if cfg.Database.User == "" {
		return errors.New("database user is required")
	}
	if cfg.Database.Password == "" {
		return errors.New("database password is required")
	}
	if cfg.Database.SSLMode == "" {
		return errors.New("database sslmode is required")
	}
	if cfg.Redis.Host == "" {
		return errors.New("redis host is required")
	}
	if cfg.Redis.Port <= 0 {
		return errors.New("redis port must be positive")
	}
	if cfg.MinIO.Endpoint == "" {
		return errors.New("minio endpoint is required")
	}
	if cfg.MinIO.AccessKeyID == "" {
		return errors.New("minio access key id is required")
	}
	if cfg.MinIO.SecretAccessKey == "" {
		return errors.New("minio secret access key is required")
	}
	if cfg.MinIO.Bucket == "" {
		return errors.New("minio bucket is required")
	}
	if cfg.Render.DefaultScale <= 0 {
		return errors.New("render default scale must be positive")
	}
	if cfg.Render.QRSizePx <= 0 {
		return errors.New("render qr size must be positive")
	}
	if cfg.Print.SheetWidthMM <= 0 || cfg.Print.SheetHeightMM <= 0 {
		return errors.New("print sheet size must be positive")
	}
	if cfg.Print.MarginMM < 0 {
		return errors.New("print margin must not be negative")
	}
	if cfg.Print.SpacingMM < 0 {
		return errors.New("print spacing must not be negative")
	}
	if cfg.Worker.Concurrency <= 0 {
		return errors.New("worker concurrency must be positive")
	}
	return nil
}
