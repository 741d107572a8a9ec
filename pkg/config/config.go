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
	PublicURL string

	Database    DatabaseConfig
	Redis       RedisConfig
	CORS        CORSConfig
	Log         LogConfig
	Tokens      TokenConfig
	Storage     StorageConfig
	Fonts       FontConfig
	Signing     SigningConfig
	Certificate CertificateConfig
	Jobs        JobsConfig
	Mail        MailConfig
	Webhooks    WebhookConfig
	Forwarding  ForwardingConfig
	Cache       CacheConfig
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

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// TokenConfig configures recipient access tokens and the short-lived
// certificate render token.
type TokenConfig struct {
	Secret            string
	RecipientTTL      time.Duration
	CertificateTTL    time.Duration
	DownloadSecret    string
	DownloadTTL       time.Duration
}

// StorageConfig selects the document payload backend.
type StorageConfig struct {
	Backend     string // "local" or "s3"
	LocalDir    string
	S3Bucket    string
	S3Region    string
	S3Endpoint  string // non-empty for MinIO/LocalStack style deployments
	S3AccessKey string
	S3SecretKey string
}

// FontConfig names the font files loaded once at startup and injected
// into the renderer.
type FontConfig struct {
	Dir           string
	DefaultFont   string
	SignatureFont string
}

// SigningConfig points at the PEM certificate and key used to seal documents.
type SigningConfig struct {
	CertificateFile string
	KeyFile         string
	Reason          string
	Location        string
	ContactInfo     string
}

// CertificateConfig governs the audit certificate page appended during sealing.
type CertificateConfig struct {
	Enabled       bool
	RenderTimeout time.Duration
	SiteName      string
}

// JobsConfig tunes the background queue.
type JobsConfig struct {
	Workers    int
	BufferSize int
	MaxRetries int
	RetryDelay time.Duration
}

// MailConfig configures the SMTP mailer. When Host is empty email jobs
// log instead of sending.
type MailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// WebhookConfig configures completion/signed event delivery.
type WebhookConfig struct {
	URL     string
	Secret  string
	Timeout time.Duration
}

// ForwardingConfig configures best-effort delivery of sealed documents to
// the records system.
type ForwardingConfig struct {
	Enabled bool
	URL     string
	APIKey  string
	Timeout time.Duration
}

// CacheConfig governs the Redis-backed document read cache.
type CacheConfig struct {
	Enabled bool
	TTL     time.Duration
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
	cfg.PublicURL = v.GetString("PUBLIC_URL")

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

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Tokens = TokenConfig{
		Secret:         v.GetString("TOKEN_SECRET"),
		RecipientTTL:   parseDuration(v.GetString("RECIPIENT_TOKEN_TTL"), 30*24*time.Hour),
		CertificateTTL: parseDuration(v.GetString("CERTIFICATE_TOKEN_TTL"), 5*time.Minute),
		DownloadSecret: v.GetString("DOWNLOAD_URL_SECRET"),
		DownloadTTL:    parseDuration(v.GetString("DOWNLOAD_URL_TTL"), 24*time.Hour),
	}

	cfg.Storage = StorageConfig{
		Backend:     v.GetString("STORAGE_BACKEND"),
		LocalDir:    v.GetString("STORAGE_LOCAL_DIR"),
		S3Bucket:    v.GetString("STORAGE_S3_BUCKET"),
		S3Region:    v.GetString("STORAGE_S3_REGION"),
		S3Endpoint:  v.GetString("STORAGE_S3_ENDPOINT"),
		S3AccessKey: v.GetString("STORAGE_S3_ACCESS_KEY"),
		S3SecretKey: v.GetString("STORAGE_S3_SECRET_KEY"),
	}

	cfg.Fonts = FontConfig{
		Dir:           v.GetString("FONTS_DIR"),
		DefaultFont:   v.GetString("FONTS_DEFAULT"),
		SignatureFont: v.GetString("FONTS_SIGNATURE"),
	}

	cfg.Signing = SigningConfig{
		CertificateFile: v.GetString("SIGNING_CERT_FILE"),
		KeyFile:         v.GetString("SIGNING_KEY_FILE"),
		Reason:          v.GetString("SIGNING_REASON"),
		Location:        v.GetString("SIGNING_LOCATION"),
		ContactInfo:     v.GetString("SIGNING_CONTACT"),
	}

	cfg.Certificate = CertificateConfig{
		Enabled:       v.GetBool("ENABLE_CERTIFICATE_PAGE"),
		RenderTimeout: parseDuration(v.GetString("CERTIFICATE_RENDER_TIMEOUT"), 50*time.Second),
		SiteName:      v.GetString("CERTIFICATE_SITE_NAME"),
	}

	cfg.Jobs = JobsConfig{
		Workers:    v.GetInt("JOBS_WORKERS"),
		BufferSize: v.GetInt("JOBS_BUFFER_SIZE"),
		MaxRetries: v.GetInt("JOBS_MAX_RETRIES"),
		RetryDelay: parseDuration(v.GetString("JOBS_RETRY_DELAY"), time.Second),
	}

	cfg.Mail = MailConfig{
		Host:     v.GetString("SMTP_HOST"),
		Port:     v.GetInt("SMTP_PORT"),
		Username: v.GetString("SMTP_USERNAME"),
		Password: v.GetString("SMTP_PASSWORD"),
		From:     v.GetString("SMTP_FROM"),
	}

	cfg.Webhooks = WebhookConfig{
		URL:     v.GetString("WEBHOOK_URL"),
		Secret:  v.GetString("WEBHOOK_SECRET"),
		Timeout: parseDuration(v.GetString("WEBHOOK_TIMEOUT"), 10*time.Second),
	}

	cfg.Forwarding = ForwardingConfig{
		Enabled: v.GetBool("ENABLE_FORWARDING"),
		URL:     v.GetString("FORWARDING_URL"),
		APIKey:  v.GetString("FORWARDING_API_KEY"),
		Timeout: parseDuration(v.GetString("FORWARDING_TIMEOUT"), 30*time.Second),
	}

	cfg.Cache = CacheConfig{
		Enabled: v.GetBool("ENABLE_DOCUMENT_CACHE"),
		TTL:     parseDuration(v.GetString("DOCUMENT_CACHE_TTL"), 5*time.Minute),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")
	v.SetDefault("PUBLIC_URL", "http://localhost:8080")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "documenso_signing")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("TOKEN_SECRET", "dev_secret")
	v.SetDefault("RECIPIENT_TOKEN_TTL", "720h")
	v.SetDefault("CERTIFICATE_TOKEN_TTL", "5m")
	v.SetDefault("DOWNLOAD_URL_SECRET", "dev_download_secret")
	v.SetDefault("DOWNLOAD_URL_TTL", "24h")

	v.SetDefault("STORAGE_BACKEND", "local")
	v.SetDefault("STORAGE_LOCAL_DIR", "./documents")
	v.SetDefault("STORAGE_S3_BUCKET", "")
	v.SetDefault("STORAGE_S3_REGION", "us-east-1")
	v.SetDefault("STORAGE_S3_ENDPOINT", "")
	v.SetDefault("STORAGE_S3_ACCESS_KEY", "")
	v.SetDefault("STORAGE_S3_SECRET_KEY", "")

	v.SetDefault("FONTS_DIR", "./fonts")
	v.SetDefault("FONTS_DEFAULT", "Inter")
	v.SetDefault("FONTS_SIGNATURE", "Caveat")

	v.SetDefault("SIGNING_CERT_FILE", "./certs/signing.crt")
	v.SetDefault("SIGNING_KEY_FILE", "./certs/signing.key")
	v.SetDefault("SIGNING_REASON", "Signed by Caring Data")
	v.SetDefault("SIGNING_LOCATION", "")
	v.SetDefault("SIGNING_CONTACT", "")

	v.SetDefault("ENABLE_CERTIFICATE_PAGE", true)
	v.SetDefault("CERTIFICATE_RENDER_TIMEOUT", "50s")
	v.SetDefault("CERTIFICATE_SITE_NAME", "Caring Data Signing")

	v.SetDefault("JOBS_WORKERS", 2)
	v.SetDefault("JOBS_BUFFER_SIZE", 32)
	v.SetDefault("JOBS_MAX_RETRIES", 3)
	v.SetDefault("JOBS_RETRY_DELAY", "1s")

	v.SetDefault("SMTP_HOST", "")
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("SMTP_FROM", "noreply@caringdata.com")

	v.SetDefault("WEBHOOK_URL", "")
	v.SetDefault("WEBHOOK_SECRET", "")
	v.SetDefault("WEBHOOK_TIMEOUT", "10s")

	v.SetDefault("ENABLE_FORWARDING", false)
	v.SetDefault("FORWARDING_URL", "")
	v.SetDefault("FORWARDING_API_KEY", "")
	v.SetDefault("FORWARDING_TIMEOUT", "30s")

	v.SetDefault("ENABLE_DOCUMENT_CACHE", true)
	v.SetDefault("DOCUMENT_CACHE_TTL", "5m")
}

func parseDuration(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
