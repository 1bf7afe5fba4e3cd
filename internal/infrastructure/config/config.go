package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Log       LogConfig       `mapstructure:"log"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	ERP       ERPConfig       `mapstructure:"erp"`
	Dokobit   DokobitConfig   `mapstructure:"dokobit"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Swagger   SwaggerConfig   `mapstructure:"swagger"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, console
	Output string `mapstructure:"output"` // stdout, stderr, or file path
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
	Port string `mapstructure:"port"`
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	DBName          string `mapstructure:"dbname"`
	SSLMode         string `mapstructure:"sslmode"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`  // in minutes
	ConnMaxIdleTime int    `mapstructure:"conn_max_idle_time"` // in minutes
}

// RedisConfig holds Redis connection settings.
// An empty Host disables Redis; stores fall back to the database and in-memory locks.
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout      time.Duration `mapstructure:"read_timeout"`
	WriteTimeout     time.Duration `mapstructure:"write_timeout"`
	IdleTimeout      time.Duration `mapstructure:"idle_timeout"`
	MaxHeaderBytes   int           `mapstructure:"max_header_bytes"`
	MaxBodySize      int64         `mapstructure:"max_body_size"`
	CORSAllowOrigins []string      `mapstructure:"cors_allow_origins"`
	CORSAllowMethods []string      `mapstructure:"cors_allow_methods"`
	CORSAllowHeaders []string      `mapstructure:"cors_allow_headers"`
	TrustedProxies   []string      `mapstructure:"trusted_proxies"`

	// AdminToken guards the /erp routes; empty leaves them open (development only)
	AdminToken        string        `mapstructure:"admin_token"`
	RateLimitEnabled  bool          `mapstructure:"rate_limit_enabled"`
	RateLimitRequests int           `mapstructure:"rate_limit_requests"`
	RateLimitWindow   time.Duration `mapstructure:"rate_limit_window"`

	PhoneAuthRateLimitRequests int           `mapstructure:"phone_auth_rate_limit_requests"` // max phone login attempts per window (default: 5)
	PhoneAuthRateLimitWindow   time.Duration `mapstructure:"phone_auth_rate_limit_window"`
}

// ERPConfig holds Business Central OAuth and API settings.
// ClientID, ClientSecret, TenantID, APIURL and CompanyID only seed the runtime settings table.
type ERPConfig struct {
	ClientID               string        `mapstructure:"client_id"`
	ClientSecret           string        `mapstructure:"client_secret"`
	TenantID               string        `mapstructure:"tenant_id"`
	APIURL                 string        `mapstructure:"api_url"`
	CompanyID              string        `mapstructure:"company_id"`
	AuthorityURL           string        `mapstructure:"authority_url"`            // identity provider base, e.g. https://login.microsoftonline.com
	RedirectURL            string        `mapstructure:"redirect_url"`             // absolute callback URL registered on the app
	Scope                  string        `mapstructure:"scope"`                    // requested scope for the authorization-code grant
	ServiceScope           string        `mapstructure:"service_scope"`            // requested scope for the client-credentials grant
	RefreshSkew            time.Duration `mapstructure:"refresh_skew"`             // refresh when expiry is closer than this
	StateTTL               time.Duration `mapstructure:"state_ttl"`                // pending nonce lifetime
	HTTPTimeout            time.Duration `mapstructure:"http_timeout"`
	PageSize               int           `mapstructure:"page_size"`
	MaxErrorEntries        int           `mapstructure:"max_error_entries"`
	AllowClientCredentials bool          `mapstructure:"allow_client_credentials"`
	EncryptionKey          string        `mapstructure:"encryption_key"`           // 64 hex chars; empty stores secrets in plain text
}

// DokobitConfig holds phone identity provider settings
type DokobitConfig struct {
	APIEndpoint  string        `mapstructure:"api_endpoint"`
	APIKey       string        `mapstructure:"api_key"`
	Message      string        `mapstructure:"message"`
	HTTPTimeout  time.Duration `mapstructure:"http_timeout"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	MaxAttempts  int           `mapstructure:"max_attempts"`
	ChallengeTTL time.Duration `mapstructure:"challenge_ttl"` // how long a started login can be checked
}

// SchedulerConfig holds periodic sync configuration
type SchedulerConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	Interval   time.Duration `mapstructure:"interval"`
	Families   []string      `mapstructure:"families"`    // empty = all families
	JobTimeout time.Duration `mapstructure:"job_timeout"`
	LockTTL    time.Duration `mapstructure:"lock_ttl"`
}

// SwaggerConfig holds Swagger documentation endpoint configuration
type SwaggerConfig struct {
	Enabled     bool     `mapstructure:"enabled"`
	RequireAuth bool     `mapstructure:"require_auth"` // require the admin token to read the docs
	AllowedIPs  []string `mapstructure:"allowed_ips"`  // IPs or CIDRs; empty allows every address
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool          `mapstructure:"enabled"`            // Whether to enable OpenTelemetry
	CollectorEndpoint string        `mapstructure:"collector_endpoint"` // OTEL Collector endpoint (e.g., "localhost:4317")
	SamplingRatio     float64       `mapstructure:"sampling_ratio"`     // Sampling ratio (0.0-1.0, 1.0 = 100%)
	ServiceName       string        `mapstructure:"service_name"`       // Service name for traces
	Insecure          bool          `mapstructure:"insecure"`           // Use insecure (non-TLS) connection (development only)
	MetricsEnabled    bool          `mapstructure:"metrics_enabled"`
	MetricsInterval   time.Duration `mapstructure:"metrics_interval"`
	LogsEnabled       bool          `mapstructure:"logs_enabled"`
	// Database tracing options
	DBTraceEnabled    bool          `mapstructure:"db_trace_enabled"`        // Enable database query tracing (otelgorm)
	DBLogFullSQL      bool          `mapstructure:"db_log_full_sql"`         // Log full SQL statements (dev only)
	DBSlowQueryThresh time.Duration `mapstructure:"db_slow_query_threshold"` // Slow query threshold for warnings
	// Profiling
	ProfilingEnabled bool   `mapstructure:"profiling_enabled"`
	PyroscopeURL     string `mapstructure:"pyroscope_url"`
}

// defaults are registered for every key so that ERP_ environment variables
// override them even when config.toml does not mention the key
var defaults = map[string]any{
	"app.name": "bcsync",
	"app.env":  "development",
	"app.port": "8080",

	"database.host":               "localhost",
	"database.port":               5432,
	"database.user":               "postgres",
	"database.password":           "",
	"database.dbname":             "bcsync",
	"database.sslmode":            "disable",
	"database.max_open_conns":     25,
	"database.max_idle_conns":     5,
	"database.conn_max_lifetime":  60,
	"database.conn_max_idle_time": 30,

	"redis.host":     "",
	"redis.port":     6379,
	"redis.password": "",
	"redis.db":       0,

	"log.level":  "info",
	"log.format": "console",
	"log.output": "stdout",

	"http.read_timeout":                   "15s",
	"http.write_timeout":                  "10m", // a full sync runs inside the request
	"http.idle_timeout":                   "60s",
	"http.max_header_bytes":               1 << 20,
	"http.max_body_size":                  1 << 20,
	"http.cors_allow_origins":             []string{},
	"http.cors_allow_methods":             []string{"GET", "POST", "PUT", "OPTIONS"},
	"http.cors_allow_headers":             []string{"Content-Type", "Authorization", "X-Request-ID"},
	"http.trusted_proxies":                []string{},
	"http.admin_token":                    "",
	"http.rate_limit_enabled":             false,
	"http.rate_limit_requests":            100,
	"http.rate_limit_window":              "1m",
	"http.phone_auth_rate_limit_requests": 5,
	"http.phone_auth_rate_limit_window":   "1m",

	"erp.client_id":                "",
	"erp.client_secret":            "",
	"erp.tenant_id":                "",
	"erp.api_url":                  "",
	"erp.company_id":               "",
	"erp.authority_url":            "https://login.microsoftonline.com",
	"erp.redirect_url":             "",
	"erp.scope":                    "https://api.businesscentral.dynamics.com/.default offline_access",
	"erp.service_scope":            "https://api.businesscentral.dynamics.com/.default",
	"erp.refresh_skew":             "300s",
	"erp.state_ttl":                "600s",
	"erp.http_timeout":             "30s",
	"erp.page_size":                100,
	"erp.max_error_entries":        100,
	"erp.allow_client_credentials": false,
	"erp.encryption_key":           "",

	"dokobit.api_endpoint":  "",
	"dokobit.api_key":       "",
	"dokobit.message":       "Login",
	"dokobit.http_timeout":  "30s",
	"dokobit.poll_interval": "2s",
	"dokobit.max_attempts":  60,
	"dokobit.challenge_ttl": "10m",

	"scheduler.enabled":     false,
	"scheduler.interval":    "1h",
	"scheduler.families":    []string{},
	"scheduler.job_timeout": "30m",
	"scheduler.lock_ttl":    "0s",

	"swagger.enabled":      true,
	"swagger.require_auth": false,
	"swagger.allowed_ips":  []string{},

	"telemetry.enabled":                 false,
	"telemetry.collector_endpoint":      "localhost:4317",
	"telemetry.sampling_ratio":          1.0,
	"telemetry.service_name":            "",
	"telemetry.insecure":                false,
	"telemetry.metrics_enabled":         false,
	"telemetry.metrics_interval":        "60s",
	"telemetry.logs_enabled":            false,
	"telemetry.db_trace_enabled":        false,
	"telemetry.db_log_full_sql":         false,
	"telemetry.db_slow_query_threshold": "200ms",
	"telemetry.profiling_enabled":       false,
	"telemetry.pyroscope_url":           "",
}

// Load reads config.toml from ., ./config or /app when present, then lets
// ERP_<SECTION>_<KEY> environment variables override it (ERP_DATABASE_PASSWORD).
func Load() (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/app")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	v.SetEnvPrefix("ERP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode configuration: %w", err)
	}

	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = cfg.App.Name
	}
	if cfg.Scheduler.LockTTL == 0 {
		cfg.Scheduler.LockTTL = cfg.Scheduler.JobTimeout
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}

	if c.ERP.RedirectURL != "" {
		u, err := url.Parse(c.ERP.RedirectURL)
		if err != nil || !u.IsAbs() {
			return fmt.Errorf("erp.redirect_url must be an absolute URL, got %q", c.ERP.RedirectURL)
		}
	}
	if c.ERP.RefreshSkew < 0 {
		return fmt.Errorf("erp.refresh_skew cannot be negative")
	}
	if c.ERP.PageSize < 1 || c.ERP.PageSize > 20000 {
		return fmt.Errorf("erp.page_size must be between 1 and 20000, got %d", c.ERP.PageSize)
	}
	if c.ERP.EncryptionKey != "" {
		key, err := hex.DecodeString(c.ERP.EncryptionKey)
		if err != nil || len(key) != 32 {
			return fmt.Errorf("erp.encryption_key must be 64 hex characters")
		}
	}
	if c.Dokobit.MaxAttempts < 1 {
		return fmt.Errorf("dokobit.max_attempts must be positive")
	}
	if c.Dokobit.ChallengeTTL < c.Dokobit.PollInterval*time.Duration(c.Dokobit.MaxAttempts) {
		return fmt.Errorf("dokobit.challenge_ttl (%s) must cover the polling window", c.Dokobit.ChallengeTTL)
	}
	if c.Scheduler.Enabled && c.Scheduler.Interval < time.Minute {
		return fmt.Errorf("scheduler.interval must be at least 1m, got %s", c.Scheduler.Interval)
	}

	if c.App.Env == "production" {
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
		if c.ERP.EncryptionKey == "" {
			return fmt.Errorf("erp.encryption_key is required in production")
		}
		if len(c.HTTP.AdminToken) < 32 {
			return fmt.Errorf("http.admin_token of at least 32 characters is required in production")
		}
		for _, origin := range c.HTTP.CORSAllowOrigins {
			if origin == "*" {
				return fmt.Errorf("cors_allow_origins cannot be '*' in production (use specific origins)")
			}
		}
		if c.Telemetry.DBLogFullSQL {
			return fmt.Errorf("telemetry.db_log_full_sql must be false in production to prevent sensitive data exposure in traces")
		}
	}

	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}

	return nil
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// Addr returns the Redis address, or "" when Redis is disabled
func (r *RedisConfig) Addr() string {
	if r.Host == "" {
		return ""
	}
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// EncryptionKeyBytes returns the decoded secret sealing key, nil when unset
func (e *ERPConfig) EncryptionKeyBytes() []byte {
	if e.EncryptionKey == "" {
		return nil
	}
	key, err := hex.DecodeString(e.EncryptionKey)
	if err != nil {
		return nil
	}
	return key
}
