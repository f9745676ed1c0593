package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Quotelens QuotelensConfig `yaml:"quotelens"`
	API       APIConfig       `yaml:"api"`
	Tiering   TieringConfig   `yaml:"tiering"`
	Output    OutputConfig    `yaml:"output"`
	Storage   StorageConfig   `yaml:"storage"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Poller    PollerConfig    `yaml:"poller"`
}

type QuotelensConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
	Wallet  string `yaml:"wallet"`
}

type APIConfig struct {
	URL               string   `yaml:"url"`
	Timeout           Duration `yaml:"timeout"`
	RetryAttempts     int      `yaml:"retry_attempts"`
	RequestsPerSecond int      `yaml:"requests_per_second"`
	BurstSize         int      `yaml:"burst_size"`
}

type TieringConfig struct {
	RatioThreshold float64 `yaml:"ratio_threshold"`
}

// Threshold returns the tier ratio threshold as a decimal.
func (t TieringConfig) Threshold() decimal.Decimal {
	return decimal.NewFromFloat(t.RatioThreshold)
}

type OutputConfig struct {
	Dir     string        `yaml:"dir"`
	Formats FormatsConfig `yaml:"formats"`
}

type FormatsConfig struct {
	Parquet ParquetConfig `yaml:"parquet"`
}

type ParquetConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Compression string `yaml:"compression"`
}

type StorageConfig struct {
	S3 S3Config `yaml:"s3"`
}

type S3Config struct {
	Enabled         bool   `yaml:"enabled"`
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	PathStyle       bool   `yaml:"path_style"`
	Prefix          string `yaml:"prefix"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
	MaxAge int    `yaml:"max_age"`
}

type MetricsConfig struct {
	CloudWatch CloudWatchConfig `yaml:"cloudwatch"`
}

type CloudWatchConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Region    string `yaml:"region"`
	Namespace string `yaml:"namespace"`
}

type PollerConfig struct {
	Enabled  bool     `yaml:"enabled"`
	Interval Duration `yaml:"interval"`
}

// Duration accepts YAML scalars in time.ParseDuration form ("10s", "1m30s")
// as well as plain integers, which are taken as nanoseconds.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", s, err)
		}
		*d = Duration(parsed)
		return nil
	}

	var n int64
	if err := value.Decode(&n); err != nil {
		return fmt.Errorf("invalid duration value %q", value.Value)
	}
	*d = Duration(n)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Defaults applied before the configuration file is parsed. Everything here
// can be overridden from the file.
const (
	DefaultAPIURL         = "https://api.hyperliquid.xyz/info"
	DefaultTimeout        = 10 * time.Second
	DefaultRetryAttempts  = 2
	DefaultRatioThreshold = 1.5
	DefaultOutputDir      = "./data"
	DefaultPollInterval   = time.Minute
)

const walletEnvVar = "QUOTELENS_WALLET"

func LoadConfig(path string) (*Config, error) {
	path = resolveEnvSpecificPath(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Config{
		Quotelens: QuotelensConfig{
			Name:    "quotelens",
			Version: "dev",
		},
		API: APIConfig{
			URL:               DefaultAPIURL,
			Timeout:           Duration(DefaultTimeout),
			RetryAttempts:     DefaultRetryAttempts,
			RequestsPerSecond: 4,
			BurstSize:         4,
		},
		Tiering: TieringConfig{
			RatioThreshold: DefaultRatioThreshold,
		},
		Output: OutputConfig{
			Dir: DefaultOutputDir,
		},
		Poller: PollerConfig{
			Interval: Duration(DefaultPollInterval),
		},
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Override the target wallet from the environment if available
	if v := os.Getenv(walletEnvVar); v != "" {
		config.Quotelens.Wallet = strings.TrimSpace(v)
	}
	config.Quotelens.Wallet = strings.ToLower(strings.TrimSpace(config.Quotelens.Wallet))

	// Override S3 settings from environment variables if available
	if config.Storage.S3.Enabled {
		if v := os.Getenv("AWS_ACCESS_KEY_ID"); v != "" {
			config.Storage.S3.AccessKeyID = strings.TrimSpace(v)
		}
		if v := os.Getenv("AWS_SECRET_ACCESS_KEY"); v != "" {
			config.Storage.S3.SecretAccessKey = strings.TrimSpace(v)
		}
		if v := os.Getenv("AWS_REGION"); v != "" {
			config.Storage.S3.Region = strings.TrimSpace(v)
		}
		if v := os.Getenv("S3_BUCKET"); v != "" {
			config.Storage.S3.Bucket = strings.TrimSpace(v)
		}
	}
	config.Storage.S3.Bucket = strings.TrimSpace(config.Storage.S3.Bucket)

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

func validateConfig(cfg *Config) error {
	if cfg.Quotelens.Name == "" {
		return fmt.Errorf("quotelens.name is required")
	}

	if cfg.Quotelens.Wallet == "" {
		return fmt.Errorf("quotelens.wallet is required (or set %s)", walletEnvVar)
	}
	if !isValidWallet(cfg.Quotelens.Wallet) {
		return fmt.Errorf("quotelens.wallet '%s' is not a valid address", cfg.Quotelens.Wallet)
	}

	if cfg.API.URL == "" {
		return fmt.Errorf("api.url is required")
	}
	if cfg.API.Timeout.Std() <= 0 {
		return fmt.Errorf("api.timeout must be greater than 0")
	}
	if cfg.API.RetryAttempts < 1 {
		return fmt.Errorf("api.retry_attempts must be at least 1")
	}
	if cfg.API.RequestsPerSecond <= 0 {
		return fmt.Errorf("api.requests_per_second must be greater than 0")
	}

	if cfg.Tiering.RatioThreshold <= 1 {
		return fmt.Errorf("tiering.ratio_threshold must be greater than 1")
	}

	if cfg.Output.Dir == "" {
		return fmt.Errorf("output.dir is required")
	}

	if cfg.Poller.Enabled && cfg.Poller.Interval.Std() <= 0 {
		return fmt.Errorf("poller.interval must be greater than 0 when the poller is enabled")
	}

	if cfg.Storage.S3.Enabled {
		if cfg.Storage.S3.Bucket == "" {
			return fmt.Errorf("storage.s3.bucket is required when S3 is enabled")
		}
		if cfg.Storage.S3.Region == "" {
			return fmt.Errorf("storage.s3.region is required when S3 is enabled")
		}
		if !isValidS3Bucket(cfg.Storage.S3.Bucket) {
			return fmt.Errorf("storage.s3.bucket '%s' is invalid", cfg.Storage.S3.Bucket)
		}
	}

	return nil
}

var walletRegexp = regexp.MustCompile(`^0x[0-9a-f]{40}$`)

func isValidWallet(address string) bool {
	return walletRegexp.MatchString(address)
}

var s3BucketRegexp = regexp.MustCompile(`^[a-z0-9][a-z0-9.-]{1,61}[a-z0-9]$`)

func isValidS3Bucket(name string) bool {
	if len(name) < 3 || len(name) > 63 {
		return false
	}
	if strings.Contains(name, "..") || strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".") {
		return false
	}
	return s3BucketRegexp.MatchString(name)
}
