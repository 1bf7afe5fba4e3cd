package logger

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config selects the level, encoding and destination of the process logger
type Config struct {
	Level      string // zap level name; empty means info
	Format     string // "json", anything else is the colored console encoder
	Output     string // stdout, stderr, or a file appended to
	TimeFormat string // time layout; empty means millisecond RFC3339
}

const defaultTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// ForEnvironment returns JSON output in production and console output elsewhere
func ForEnvironment(env string) *Config {
	cfg := &Config{Level: "info", Format: "console", Output: "stdout"}
	if env == "production" {
		cfg.Format = "json"
	}
	return cfg
}

// New builds the process logger. Extra cores, such as the OTLP log bridge,
// receive the same entries as the primary core; nil cores are skipped.
func New(cfg *Config, extra ...zapcore.Core) (*zap.Logger, error) {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	writer, err := openOutput(cfg.Output)
	if err != nil {
		return nil, err
	}

	cores := []zapcore.Core{zapcore.NewCore(newEncoder(cfg), writer, level)}
	for _, c := range extra {
		if c != nil {
			cores = append(cores, c)
		}
	}
	return zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)), nil
}

// parseLevel accepts zap level names plus "warning"
func parseLevel(level string) (zapcore.Level, error) {
	switch l := strings.ToLower(strings.TrimSpace(level)); l {
	case "":
		return zapcore.InfoLevel, nil
	case "warning":
		return zapcore.WarnLevel, nil
	default:
		parsed, err := zapcore.ParseLevel(l)
		if err != nil {
			return zapcore.InfoLevel, fmt.Errorf("log level %q: %w", level, err)
		}
		return parsed, nil
	}
}

func newEncoder(cfg *Config) zapcore.Encoder {
	layout := cfg.TimeFormat
	if layout == "" {
		layout = defaultTimeFormat
	}
	ec := zap.NewProductionEncoderConfig()
	ec.TimeKey = "time"
	ec.EncodeTime = zapcore.TimeEncoderOfLayout(layout)
	ec.EncodeDuration = zapcore.MillisDurationEncoder

	if strings.EqualFold(cfg.Format, "json") {
		return zapcore.NewJSONEncoder(ec)
	}
	ec.EncodeLevel = zapcore.CapitalColorLevelEncoder
	return zapcore.NewConsoleEncoder(ec)
}

func openOutput(output string) (zapcore.WriteSyncer, error) {
	switch strings.ToLower(output) {
	case "", "stdout":
		return zapcore.Lock(os.Stdout), nil
	case "stderr":
		return zapcore.Lock(os.Stderr), nil
	}
	f, err := os.OpenFile(output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log output: %w", err)
	}
	return zapcore.AddSync(f), nil
}

// sensitiveParams are query parameters that carry credentials or one-time values
var sensitiveParams = map[string]bool{
	"code":          true,
	"state":         true,
	"access_token":  true,
	"refresh_token": true,
	"client_secret": true,
	"$skiptoken":    true,
}

// RedactQuery masks sensitive values in a raw query string.
// An unparsable query is dropped entirely.
func RedactQuery(rawQuery string) string {
	if rawQuery == "" {
		return ""
	}
	values, err := url.ParseQuery(rawQuery)
	if err != nil {
		return "[unparsable]"
	}
	for key := range values {
		if sensitiveParams[strings.ToLower(key)] {
			values[key] = []string{"[redacted]"}
		}
	}
	return values.Encode()
}

// RedactURL masks sensitive query values of a URL
func RedactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "[unparsable]"
	}
	u.RawQuery = RedactQuery(u.RawQuery)
	return u.String()
}

// Sync flushes any buffered log entries
func Sync(logger *zap.Logger) error {
	return logger.Sync()
}
