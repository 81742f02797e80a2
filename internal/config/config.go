package config

import (
	"errors"
	"strings"
	"time"
)

type Config struct {
	Logger    LoggerConfig    `mapstructure:"logger"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Scan      ScanConfig      `mapstructure:"scan"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Consent   ConsentConfig   `mapstructure:"consent"`
	Report    ReportConfig    `mapstructure:"report"`
}

type LoggerConfig struct {
	Level       string   `mapstructure:"level"`
	Format      string   `mapstructure:"format"`
	OutputPaths []string `mapstructure:"output_paths"`
}

type HTTPConfig struct {
	Timeout         time.Duration `mapstructure:"timeout"`
	FollowRedirects bool          `mapstructure:"follow_redirects"`
	MaxRedirects    int           `mapstructure:"max_redirects"`
}

type RateLimitConfig struct {
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	BurstSize         int           `mapstructure:"burst_size"`
	MutatingDelay     time.Duration `mapstructure:"mutating_delay"`
	ReadDelay         time.Duration `mapstructure:"read_delay"`
}

type ScanConfig struct {
	OpenAPILocation   string   `mapstructure:"openapi"`
	BaseURL           string   `mapstructure:"base_url"`
	RequestingBank    string   `mapstructure:"requesting_bank"`
	InterbankClientID string   `mapstructure:"interbank_client_id"`
	ExtraHeaders      []string `mapstructure:"extra_headers"`
	Verbose           bool     `mapstructure:"verbose"`
}

type AuthConfig struct {
	// BearerArg is the raw --auth value in "bearer:<token>" form.
	BearerArg    string `mapstructure:"bearer_arg"`
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
}

type ConsentConfig struct {
	Create bool `mapstructure:"create"`
}

type ReportConfig struct {
	Dir   string `mapstructure:"dir"`
	Title string `mapstructure:"title"`
}

// Validate catches configuration mistakes before any network probing.
// Missing base URL is not checked here: the auditor may still derive it
// from the loaded document.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Scan.OpenAPILocation) == "" && strings.TrimSpace(c.Scan.BaseURL) == "" {
		return errors.New("either an OpenAPI location or a base URL is required")
	}
	if c.Consent.Create {
		if strings.TrimSpace(c.Scan.RequestingBank) == "" {
			return errors.New("consent creation requires a requesting bank id")
		}
		if strings.TrimSpace(c.Scan.InterbankClientID) == "" {
			return errors.New("consent creation requires an interbank client id")
		}
	}
	return nil
}
