package config

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const envPrefix = "NEURAVISION"

// MultipartOverhead is added to analysis.max_image_bytes when
// server.max_request_body_size is not set, leaving room for form framing.
const MultipartOverhead = 1024 * 1024

type Config struct {
	Host               string
	Port               string
	RequestTimeout     time.Duration
	MaxRequestBodySize int64
	LogLevel           string

	Provider ProviderConfig
	Analysis AnalysisConfig
	Fetch    FetchConfig
	Session  SessionConfig
	Storage  StorageConfig
}

// ProviderConfig describes the hosted chat-completion endpoint.
type ProviderConfig struct {
	BaseURL     string
	Model       string
	MaxTokens   int
	Timeout     time.Duration // 0 keeps the HTTP client default
	Temperature *float64
}

// AnalysisConfig holds encoding settings and the user-facing framing of results.
type AnalysisConfig struct {
	JPEGQuality               int
	MaxImageDimension         int
	MaxImageBytes             int64
	Banner                    string
	ErrorPrefix               string
	CredentialRequiredMessage string
	DefaultPrompt             string
}

// FetchConfig governs downloads of remote images. AllowedHosts also admits
// subdomains and applies to Azure blob URLs; empty admits every public host.
type FetchConfig struct {
	Timeout              time.Duration
	RetryBackoff         time.Duration
	AllowedSchemes       []string
	AllowedHosts         []string
	AllowPrivateNetworks bool
}

type SessionConfig struct {
	TTL time.Duration
}

type StorageConfig struct {
	Azure AzureConfig
	Minio MinioConfig
}

type AzureConfig struct {
	AccountName string
	AccountKey  string
}

type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// Configured reports whether enough settings are present to build a client.
func (c AzureConfig) Configured() bool {
	return c.AccountName != "" && c.AccountKey != ""
}

func (c MinioConfig) Configured() bool {
	return c.Endpoint != ""
}

func (c *Config) ServerAddress() string {
	host := strings.TrimSpace(c.Host)
	port := strings.TrimSpace(c.Port)
	return net.JoinHostPort(host, port)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.request_timeout", 60*time.Second)
	v.SetDefault("server.max_request_body_size", 0) // 0 derives it from analysis.max_image_bytes
	v.SetDefault("log.level", "info")

	v.SetDefault("provider.base_url", "https://api.groq.com/openai/v1")
	v.SetDefault("provider.model", "meta-llama/llama-4-scout-17b-16e-instruct")
	v.SetDefault("provider.max_tokens", 1024)
	v.SetDefault("provider.timeout", time.Duration(0))

	v.SetDefault("analysis.jpeg_quality", 75)
	v.SetDefault("analysis.max_image_dimension", 0)
	v.SetDefault("analysis.max_image_bytes", 10*1024*1024)
	v.SetDefault("analysis.banner", "▲▲ ANALYSIS COMPLETE ▲▲")
	v.SetDefault("analysis.error_prefix", "⚠️ SYSTEM ERROR: ")
	v.SetDefault("analysis.credential_required_message", "❌ ERROR: API KEY REQUIRED")
	v.SetDefault("analysis.default_prompt",
		"Conduct full spectrum analysis of this image. Include technical, emotional, and compositional assessment.")

	v.SetDefault("fetch.timeout", 15*time.Second)
	v.SetDefault("fetch.retry_backoff", time.Second)
	v.SetDefault("fetch.allowed_schemes", []string{"http", "https"})
	v.SetDefault("fetch.allowed_hosts", []string{})
	v.SetDefault("fetch.allow_private_networks", false)
	v.SetDefault("session.ttl", 30*time.Minute)

	v.SetDefault("storage.azure.account_name", "")
	v.SetDefault("storage.azure.account_key", "")
	v.SetDefault("storage.minio.endpoint", "")
	v.SetDefault("storage.minio.access_key", "")
	v.SetDefault("storage.minio.secret_key", "")
	v.SetDefault("storage.minio.bucket", "")
	v.SetDefault("storage.minio.use_ssl", true)
}

// LoadFromEnv builds the configuration from defaults and NEURAVISION_* variables.
func LoadFromEnv() (*Config, error) {
	return Load("")
}

// Load reads defaults, then the YAML file at path (when path is not empty),
// then environment overrides, e.g. NEURAVISION_PROVIDER_MODEL.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %q: %w", path, err)
		}
	}

	cfg := &Config{
		Host:               v.GetString("server.host"),
		Port:               v.GetString("server.port"),
		RequestTimeout:     v.GetDuration("server.request_timeout"),
		MaxRequestBodySize: v.GetInt64("server.max_request_body_size"),
		LogLevel:           v.GetString("log.level"),
		Provider: ProviderConfig{
			BaseURL:   strings.TrimSpace(v.GetString("provider.base_url")),
			Model:     strings.TrimSpace(v.GetString("provider.model")),
			MaxTokens: v.GetInt("provider.max_tokens"),
			Timeout:   v.GetDuration("provider.timeout"),
		},
		Analysis: AnalysisConfig{
			JPEGQuality:               v.GetInt("analysis.jpeg_quality"),
			MaxImageDimension:         v.GetInt("analysis.max_image_dimension"),
			MaxImageBytes:             v.GetInt64("analysis.max_image_bytes"),
			Banner:                    v.GetString("analysis.banner"),
			ErrorPrefix:               v.GetString("analysis.error_prefix"),
			CredentialRequiredMessage: v.GetString("analysis.credential_required_message"),
			DefaultPrompt:             v.GetString("analysis.default_prompt"),
		},
		Fetch: FetchConfig{
			Timeout:              v.GetDuration("fetch.timeout"),
			RetryBackoff:         v.GetDuration("fetch.retry_backoff"),
			AllowedSchemes:       listValue(v, "fetch.allowed_schemes"),
			AllowedHosts:         listValue(v, "fetch.allowed_hosts"),
			AllowPrivateNetworks: v.GetBool("fetch.allow_private_networks"),
		},
		Session: SessionConfig{
			TTL: v.GetDuration("session.ttl"),
		},
		Storage: StorageConfig{
			Azure: AzureConfig{
				AccountName: v.GetString("storage.azure.account_name"),
				AccountKey:  v.GetString("storage.azure.account_key"),
			},
			Minio: MinioConfig{
				Endpoint:  v.GetString("storage.minio.endpoint"),
				AccessKey: v.GetString("storage.minio.access_key"),
				SecretKey: v.GetString("storage.minio.secret_key"),
				Bucket:    v.GetString("storage.minio.bucket"),
				UseSSL:    v.GetBool("storage.minio.use_ssl"),
			},
		},
	}
	if cfg.MaxRequestBodySize == 0 {
		cfg.MaxRequestBodySize = cfg.Analysis.MaxImageBytes + MultipartOverhead
	}
	if v.IsSet("provider.temperature") {
		t := v.GetFloat64("provider.temperature")
		cfg.Provider.Temperature = &t
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// listValue reads a YAML list or a comma separated environment value
func listValue(v *viper.Viper, key string) []string {
	var out []string
	for _, item := range v.GetStringSlice(key) {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// Validate checks ranges the rest of the program relies on.
func (c *Config) Validate() error {
	p, err := strconv.Atoi(strings.TrimSpace(c.Port))
	if err != nil || p < 1 || p > 65535 {
		return fmt.Errorf("invalid port: %q", c.Port)
	}
	if c.MaxRequestBodySize <= 0 {
		return fmt.Errorf("max request body size must be > 0 (got %d)", c.MaxRequestBodySize)
	}
	if c.RequestTimeout <= 0 || c.Fetch.Timeout <= 0 {
		return fmt.Errorf("timeouts must be > 0 (got request=%s, fetch=%s)", c.RequestTimeout, c.Fetch.Timeout)
	}
	if c.Provider.Timeout < 0 {
		return fmt.Errorf("provider timeout must be >= 0 (got %s)", c.Provider.Timeout)
	}
	if c.Provider.BaseURL == "" {
		return fmt.Errorf("provider base URL must not be empty")
	}
	if c.Provider.Model == "" {
		return fmt.Errorf("provider model must not be empty")
	}
	if c.Provider.MaxTokens <= 0 {
		return fmt.Errorf("provider max tokens must be > 0 (got %d)", c.Provider.MaxTokens)
	}
	if c.Analysis.JPEGQuality < 1 || c.Analysis.JPEGQuality > 100 {
		return fmt.Errorf("JPEG quality must be within 1..100 (got %d)", c.Analysis.JPEGQuality)
	}
	if c.Analysis.MaxImageDimension < 0 {
		return fmt.Errorf("max image dimension must be >= 0 (got %d)", c.Analysis.MaxImageDimension)
	}
	if c.Analysis.MaxImageBytes <= 0 {
		return fmt.Errorf("max image bytes must be > 0 (got %d)", c.Analysis.MaxImageBytes)
	}
	if c.MaxRequestBodySize <= c.Analysis.MaxImageBytes {
		return fmt.Errorf("max request body size (%d) must exceed max image bytes (%d)", c.MaxRequestBodySize, c.Analysis.MaxImageBytes)
	}
	if c.Session.TTL <= 0 {
		return fmt.Errorf("session TTL must be > 0 (got %s)", c.Session.TTL)
	}
	return nil
}
