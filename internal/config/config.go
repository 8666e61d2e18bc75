package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port          string   `mapstructure:"PORT"`
	Env           string   `mapstructure:"ENV"`
	DatabaseURL   string   `mapstructure:"DATABASE_URL"`
	DBMaxConns    int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns    int32    `mapstructure:"DB_MIN_CONNS"`
	GatewaySecret string   `mapstructure:"GATEWAY_SECRET"`
	CORSOrigins   []string `mapstructure:"CORS_ORIGINS"`

	// Blob storage for published PDF artifacts.
	BlobBackend        string `mapstructure:"BLOB_BACKEND"` // "memory" or "gcs"
	GCSBucket          string `mapstructure:"GCS_BUCKET"`
	GCSCredentialsFile string `mapstructure:"GCS_CREDENTIALS_FILE"`

	// Branding and compliance-code composition.
	BrandName      string `mapstructure:"BRAND_NAME"`
	ServiceCode    string `mapstructure:"SERVICE_CODE"`
	ContentVersion string `mapstructure:"CONTENT_VERSION"`
	ReportTimeZone string `mapstructure:"REPORT_TIME_ZONE"`

	// Chart rendering font assets. Both optional: the composer falls back
	// to the embedded Go font when a file is missing or unreadable.
	ChartFontRegular string `mapstructure:"CHART_FONT_REGULAR"`
	ChartFontBold    string `mapstructure:"CHART_FONT_BOLD"`

	StatsCacheTTLSeconds int `mapstructure:"STATS_CACHE_TTL_SECONDS"`
	QueryTimeoutSeconds  int `mapstructure:"QUERY_TIMEOUT_SECONDS"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("BLOB_BACKEND", "memory")
	v.SetDefault("BRAND_NAME", "Covercheck Financial Services")
	v.SetDefault("SERVICE_CODE", "COVERCHECK")
	v.SetDefault("CONTENT_VERSION", "V1")
	v.SetDefault("REPORT_TIME_ZONE", "Asia/Seoul")
	v.SetDefault("STATS_CACHE_TTL_SECONDS", 3600)
	v.SetDefault("QUERY_TIMEOUT_SECONDS", 30)

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("GATEWAY_SECRET")
	v.BindEnv("CORS_ORIGINS")
	v.BindEnv("BLOB_BACKEND")
	v.BindEnv("GCS_BUCKET")
	v.BindEnv("GCS_CREDENTIALS_FILE")
	v.BindEnv("BRAND_NAME")
	v.BindEnv("SERVICE_CODE")
	v.BindEnv("CONTENT_VERSION")
	v.BindEnv("REPORT_TIME_ZONE")
	v.BindEnv("CHART_FONT_REGULAR")
	v.BindEnv("CHART_FONT_BOLD")
	v.BindEnv("STATS_CACHE_TTL_SECONDS")
	v.BindEnv("QUERY_TIMEOUT_SECONDS")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.IsDev() {
		log.Println("WARNING: ============================================================")
		log.Println("WARNING: Server is running in DEVELOPMENT mode (ENV=development).")
		log.Println("WARNING: Unauthenticated requests get a default consultant identity.")
		log.Println("WARNING: Do NOT use this configuration in production.")
		log.Println("WARNING: ============================================================")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// StatsCacheTTL returns the memoization window for aggregation results and
// rendered charts.
func (c *Config) StatsCacheTTL() time.Duration {
	if c.StatsCacheTTLSeconds <= 0 {
		return time.Hour
	}
	return time.Duration(c.StatsCacheTTLSeconds) * time.Second
}

// QueryTimeout returns the per-request deadline applied to remote store calls.
func (c *Config) QueryTimeout() time.Duration {
	if c.QueryTimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.QueryTimeoutSeconds) * time.Second
}

// Validate checks that the configuration is safe to run. Outside development
// the gateway secret must be set so consultant tokens are actually verified,
// and a GCS bucket is required when the gcs blob backend is selected.
func (c *Config) Validate() error {
	if !c.IsDev() && c.GatewaySecret == "" {
		return fmt.Errorf(
			"GATEWAY_SECRET must be set when ENV=%q. "+
				"Refusing to start without token verification configuration", c.Env)
	}

	switch c.BlobBackend {
	case "memory", "gcs":
	default:
		return fmt.Errorf("BLOB_BACKEND must be \"memory\" or \"gcs\", got %q", c.BlobBackend)
	}
	if c.BlobBackend == "gcs" && c.GCSBucket == "" {
		return fmt.Errorf("GCS_BUCKET is required when BLOB_BACKEND is \"gcs\"")
	}

	if c.IsProduction() && c.BlobBackend == "memory" {
		return fmt.Errorf("BLOB_BACKEND=memory is not allowed in production: published artifacts would not survive a restart")
	}

	if _, err := time.LoadLocation(c.ReportTimeZone); err != nil {
		return fmt.Errorf("REPORT_TIME_ZONE %q is not a valid IANA zone: %w", c.ReportTimeZone, err)
	}

	return nil
}
