// Package config provides configuration loading and validation for the API
// server. It uses koanf to merge environment variables with optional file
// overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config holds all configuration values for the API server.
type Config struct {
	// Server settings
	Port int    `koanf:"port"`
	Env  string `koanf:"env"`

	// Caption service
	CaptionAPIURL         string `koanf:"caption_api_url"`
	CaptionAPIKey         string `koanf:"caption_api_key"`
	CaptionFallback       string `koanf:"caption_fallback"`
	CaptionLocale         string `koanf:"caption_locale"`
	CaptionTimeoutSeconds int    `koanf:"caption_timeout_seconds"`

	// Booth behaviour
	DevelopDelayMS int `koanf:"develop_delay_ms"` // Develop timer, default: 3500ms
	PhotoWidth     int `koanf:"photo_width"`
	PhotoHeight    int `koanf:"photo_height"`
	PhotoQuality   int `koanf:"photo_quality"`

	// Upload limits
	MaxUploadSizeMB int `koanf:"max_upload_size_mb"` // Default: 15MB

	// CORS
	AllowedOrigins []string `koanf:"allowed_origins"`

	// Tracing
	TracingEnabled      bool    `koanf:"tracing_enabled"`
	TracingExporter     string  `koanf:"tracing_exporter"` // otlp-http or otlp-grpc
	TracingOTLPEndpoint string  `koanf:"tracing_otlp_endpoint"`
	TracingSamplingRate float64 `koanf:"tracing_sampling_rate"`
	TracingInsecure     bool    `koanf:"tracing_insecure"`
}

// Configuration validation errors.
var (
	ErrMissingCaptionAPIURL = errors.New("CAPTION_API_URL is required")
	ErrInvalidPort          = errors.New("PORT must be a valid integer")
	ErrInvalidDevelopDelay  = errors.New("DEVELOP_DELAY_MS must be positive")
	ErrInvalidPhotoSize     = errors.New("PHOTO_WIDTH and PHOTO_HEIGHT must be positive")
	ErrInvalidPhotoQuality  = errors.New("PHOTO_QUALITY must be between 1 and 100")
	ErrInvalidSamplingRate  = errors.New("TRACING_SAMPLING_RATE must be between 0 and 1")
)

// Default values for non-secret configuration.
const (
	DefaultPort                  = 8080
	DefaultEnv                   = "development"
	DefaultCaptionLocale         = "en-US"
	DefaultCaptionTimeoutSeconds = 30
	DefaultDevelopDelayMS        = 3500
	DefaultPhotoWidth            = 600
	DefaultPhotoHeight           = 800
	DefaultPhotoQuality          = 85
	DefaultMaxUploadSizeMB       = 15
	DefaultTracingSamplingRate   = 1.0
)

// Load reads configuration from environment variables and an optional config
// file. Environment variables take precedence over file values.
// Returns the loaded config and a slice of validation errors (empty if valid).
// If a config file path is provided and the file cannot be loaded, an error
// is returned.
func Load(configFilePath string) (*Config, []error) {
	k := koanf.New(".")
	var loadErrs []error

	// Load from YAML file first if provided (lower precedence)
	if configFilePath != "" {
		if err := k.Load(file.Provider(configFilePath), yaml.Parser()); err != nil {
			return nil, []error{fmt.Errorf("failed to load config file %s: %w", configFilePath, err)}
		}
	}

	// Try BOOTH_PORT first, then PORT for container platform compatibility
	port, portErr := getEnvIntOrDefaultMulti([]string{"BOOTH_PORT", "PORT"}, k.Int("port"), DefaultPort)
	if portErr != nil {
		loadErrs = append(loadErrs, portErr)
	}

	captionTimeout, timeoutErr := getEnvIntOrDefault("CAPTION_TIMEOUT_SECONDS", k.Int("caption_timeout_seconds"), DefaultCaptionTimeoutSeconds)
	if timeoutErr != nil {
		loadErrs = append(loadErrs, timeoutErr)
	}

	developDelay, delayErr := getEnvIntOrDefault("DEVELOP_DELAY_MS", k.Int("develop_delay_ms"), DefaultDevelopDelayMS)
	if delayErr != nil {
		loadErrs = append(loadErrs, delayErr)
	}

	photoWidth, widthErr := getEnvIntOrDefault("PHOTO_WIDTH", k.Int("photo_width"), DefaultPhotoWidth)
	if widthErr != nil {
		loadErrs = append(loadErrs, widthErr)
	}

	photoHeight, heightErr := getEnvIntOrDefault("PHOTO_HEIGHT", k.Int("photo_height"), DefaultPhotoHeight)
	if heightErr != nil {
		loadErrs = append(loadErrs, heightErr)
	}

	photoQuality, qualityErr := getEnvIntOrDefault("PHOTO_QUALITY", k.Int("photo_quality"), DefaultPhotoQuality)
	if qualityErr != nil {
		loadErrs = append(loadErrs, qualityErr)
	}

	maxUploadSize, uploadSizeErr := getEnvIntOrDefault("MAX_UPLOAD_SIZE_MB", k.Int("max_upload_size_mb"), DefaultMaxUploadSizeMB)
	if uploadSizeErr != nil {
		loadErrs = append(loadErrs, uploadSizeErr)
	}

	samplingRate, samplingErr := getEnvFloatOrDefault("TRACING_SAMPLING_RATE", k.Float64("tracing_sampling_rate"), DefaultTracingSamplingRate)
	if samplingErr != nil {
		loadErrs = append(loadErrs, samplingErr)
	}

	// Build config struct, with env vars taking precedence over file values
	cfg := &Config{
		Port:                  port,
		Env:                   getEnvOrDefaultMulti([]string{"BOOTH_ENV", "ENV", "GO_ENV"}, k.String("env"), DefaultEnv),
		CaptionAPIURL:         getEnvOrKoanf("CAPTION_API_URL", k, "caption_api_url"),
		CaptionAPIKey:         getEnvOrKoanf("CAPTION_API_KEY", k, "caption_api_key"),
		CaptionFallback:       getEnvOrKoanf("CAPTION_FALLBACK", k, "caption_fallback"),
		CaptionLocale:         getEnvOrDefault("CAPTION_LOCALE", k.String("caption_locale"), DefaultCaptionLocale),
		CaptionTimeoutSeconds: captionTimeout,
		DevelopDelayMS:        developDelay,
		PhotoWidth:            photoWidth,
		PhotoHeight:           photoHeight,
		PhotoQuality:          photoQuality,
		MaxUploadSizeMB:       maxUploadSize,
		AllowedOrigins:        getOrigins(k),
		TracingEnabled:        getEnvBoolOrKoanf("TRACING_ENABLED", k, "tracing_enabled"),
		TracingExporter:       getEnvOrDefault("TRACING_EXPORTER", k.String("tracing_exporter"), "otlp-http"),
		TracingOTLPEndpoint:   getEnvOrKoanf("TRACING_OTLP_ENDPOINT", k, "tracing_otlp_endpoint"),
		TracingSamplingRate:   samplingRate,
		TracingInsecure:       getEnvBoolOrKoanf("TRACING_INSECURE", k, "tracing_insecure"),
	}

	// Validate and collect errors
	errs := cfg.Validate()
	errs = append(loadErrs, errs...)

	return cfg, errs
}

// getOrigins parses the CORS origin allowlist from env (comma-separated) or
// the config file (list).
func getOrigins(k *koanf.Koanf) []string {
	if val := os.Getenv("ALLOWED_ORIGINS"); val != "" {
		var origins []string
		for _, origin := range strings.Split(val, ",") {
			origin = strings.TrimSpace(origin)
			if origin != "" {
				origins = append(origins, origin)
			}
		}
		return origins
	}
	return k.Strings("allowed_origins")
}

// getEnvOrKoanf returns the environment variable value if set, otherwise the
// koanf value.
func getEnvOrKoanf(envKey string, k *koanf.Koanf, koanfKey string) string {
	if val := os.Getenv(envKey); val != "" {
		return val
	}
	return k.String(koanfKey)
}

// getEnvBoolOrKoanf returns the environment variable as bool if set,
// otherwise the koanf value.
func getEnvBoolOrKoanf(envKey string, k *koanf.Koanf, koanfKey string) bool {
	if val := os.Getenv(envKey); val != "" {
		switch strings.ToLower(val) {
		case "true", "1", "yes", "on":
			return true
		case "false", "0", "no", "off":
			return false
		}
	}
	return k.Bool(koanfKey)
}

// getEnvOrDefault returns the environment variable value if set, otherwise
// the koanf value, or default.
func getEnvOrDefault(envKey string, koanfVal string, defaultVal string) string {
	if val := os.Getenv(envKey); val != "" {
		return val
	}
	if koanfVal != "" {
		return koanfVal
	}
	return defaultVal
}

// getEnvOrDefaultMulti tries multiple environment variable keys in order.
// Returns the first non-empty value found, otherwise the koanf value, or
// default.
func getEnvOrDefaultMulti(envKeys []string, koanfVal string, defaultVal string) string {
	for _, key := range envKeys {
		if val := os.Getenv(key); val != "" {
			return val
		}
	}
	if koanfVal != "" {
		return koanfVal
	}
	return defaultVal
}

// getEnvIntOrDefault returns the environment variable as int if set,
// otherwise the koanf value, or default.
// Returns an error if the environment variable is set but cannot be parsed
// as an integer. A zero value in a YAML file falls back to the default.
func getEnvIntOrDefault(envKey string, koanfVal int, defaultVal int) (int, error) {
	if val := os.Getenv(envKey); val != "" {
		i, err := strconv.Atoi(val)
		if err != nil {
			return 0, fmt.Errorf("%s must be a valid integer: %w", envKey, err)
		}
		return i, nil
	}
	if koanfVal != 0 {
		return koanfVal, nil
	}
	return defaultVal, nil
}

// getEnvIntOrDefaultMulti tries multiple environment variable keys in order.
// Returns the first valid integer value found, otherwise the koanf value, or
// default. Returns an error if any environment variable is set but cannot be
// parsed as an integer.
func getEnvIntOrDefaultMulti(envKeys []string, koanfVal int, defaultVal int) (int, error) {
	for _, key := range envKeys {
		if val := os.Getenv(key); val != "" {
			i, err := strconv.Atoi(val)
			if err != nil {
				return 0, fmt.Errorf("%s must be a valid integer: %w", key, ErrInvalidPort)
			}
			return i, nil
		}
	}
	if koanfVal != 0 {
		return koanfVal, nil
	}
	return defaultVal, nil
}

// getEnvFloatOrDefault returns the environment variable as float64 if set,
// otherwise the koanf value, or default. Returns an error if the environment
// variable is set but cannot be parsed as a float.
func getEnvFloatOrDefault(envKey string, koanfVal float64, defaultVal float64) (float64, error) {
	if val := os.Getenv(envKey); val != "" {
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return 0, fmt.Errorf("%s must be a valid float: %w", envKey, err)
		}
		return f, nil
	}
	if koanfVal != 0 {
		return koanfVal, nil
	}
	return defaultVal, nil
}

// Validate checks that all required configuration values are present and
// within range. Returns a slice of validation errors (empty if valid).
func (c *Config) Validate() []error {
	var errs []error

	if c.CaptionAPIURL == "" {
		errs = append(errs, ErrMissingCaptionAPIURL)
	}
	if c.DevelopDelayMS <= 0 {
		errs = append(errs, ErrInvalidDevelopDelay)
	}
	if c.PhotoWidth <= 0 || c.PhotoHeight <= 0 {
		errs = append(errs, ErrInvalidPhotoSize)
	}
	if c.PhotoQuality < 1 || c.PhotoQuality > 100 {
		errs = append(errs, ErrInvalidPhotoQuality)
	}
	if c.TracingSamplingRate < 0 || c.TracingSamplingRate > 1 {
		errs = append(errs, ErrInvalidSamplingRate)
	}

	return errs
}

// LogSummary returns a summary of the configuration suitable for logging.
// All secrets are masked to prevent accidental exposure.
func (c *Config) LogSummary() map[string]string {
	return map[string]string{
		"port":                    fmt.Sprintf("%d", c.Port),
		"env":                     c.Env,
		"caption_api_url":         c.CaptionAPIURL,
		"caption_api_key":         maskSecret(c.CaptionAPIKey),
		"caption_locale":          c.CaptionLocale,
		"caption_timeout_seconds": fmt.Sprintf("%d", c.CaptionTimeoutSeconds),
		"develop_delay_ms":        fmt.Sprintf("%d", c.DevelopDelayMS),
		"photo_size":              fmt.Sprintf("%dx%d", c.PhotoWidth, c.PhotoHeight),
		"photo_quality":           fmt.Sprintf("%d", c.PhotoQuality),
		"max_upload_size_mb":      fmt.Sprintf("%d", c.MaxUploadSizeMB),
		"allowed_origins":         strings.Join(c.AllowedOrigins, ","),
		"tracing_enabled":         fmt.Sprintf("%t", c.TracingEnabled),
		"tracing_exporter":        c.TracingExporter,
		"tracing_otlp_endpoint":   c.TracingOTLPEndpoint,
		"tracing_sampling_rate":   fmt.Sprintf("%g", c.TracingSamplingRate),
	}
}

// maskSecret masks a secret value, showing only the first 4 characters
// followed by ****. If the secret is shorter than 8 characters, it's fully
// masked.
func maskSecret(s string) string {
	if s == "" {
		return "<not set>"
	}
	if len(s) < 8 {
		return "****"
	}
	return s[:4] + "****"
}
