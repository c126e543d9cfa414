// Package config loads the tokens API configuration from a YAML file with
// environment variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from YAML strings such as
// "30s" or "5m".
type Duration time.Duration

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Config is the root configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Mongo     MongoConfig     `yaml:"mongo"`
	Redis     RedisConfig     `yaml:"redis"`
	Partner   PartnerConfig   `yaml:"partner"`
	Auth      AuthConfig      `yaml:"auth"`
	Features  FeaturesConfig  `yaml:"features"`
	RateLimit RateLimitConfig `yaml:"rateLimit"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  Duration `yaml:"readTimeout"`
	WriteTimeout Duration `yaml:"writeTimeout"`
}

// Addr returns the listen address.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type MongoConfig struct {
	URI      string        `yaml:"uri"`
	Database string        `yaml:"database"`
	Timeout  Duration `yaml:"timeout"`
}

type RedisConfig struct {
	Addr       string        `yaml:"addr"`
	Password   string        `yaml:"password"`
	DB         int           `yaml:"db"`
	ProfileTTL Duration `yaml:"profileTTL"`
}

type PartnerConfig struct {
	AccountAPIURL     string        `yaml:"accountAPIURL"`
	OpenAMAPIURL      string        `yaml:"openAMAPIURL"`
	User              string        `yaml:"user"`
	Password          string        `yaml:"password"`
	Timeout           Duration `yaml:"timeout"`
	CallbackURL       string        `yaml:"callbackURL"`
	CallbackMobileURL string        `yaml:"callbackMobileURL"`
	SendNotifEmail    bool          `yaml:"sendNotifEmail"`
}

type AuthConfig struct {
	// PublicKeyPath points to the PEM-encoded RSA public key used to verify
	// identity tokens. PublicKeyPEM takes precedence when set.
	PublicKeyPath string `yaml:"publicKeyPath"`
	PublicKeyPEM  string `yaml:"publicKeyPEM"`
}

// PublicKey returns the PEM material, reading the file when no inline key is
// configured.
func (c AuthConfig) PublicKey() ([]byte, error) {
	if c.PublicKeyPEM != "" {
		return []byte(c.PublicKeyPEM), nil
	}
	data, err := os.ReadFile(c.PublicKeyPath)
	if err != nil {
		return nil, fmt.Errorf("read public key: %w", err)
	}
	return data, nil
}

type FeaturesConfig struct {
	AccessTokenValidation        bool `yaml:"accessTokenValidation"`
	AccessTokenValidationOnReads bool `yaml:"accessTokenValidationOnReads"`
}

type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerSecond int  `yaml:"requestsPerSecond"`
	Burst             int  `yaml:"burst"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  Duration(30 * time.Second),
			WriteTimeout: Duration(30 * time.Second),
		},
		Mongo: MongoConfig{
			URI:      "mongodb://localhost:27017",
			Database: "tokens",
			Timeout:  Duration(10 * time.Second),
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			ProfileTTL: Duration(5 * time.Minute),
		},
		Partner: PartnerConfig{
			Timeout:        Duration(10 * time.Second),
			SendNotifEmail: true,
		},
		Auth: AuthConfig{
			PublicKeyPath: "config/idtoken.pub",
		},
		RateLimit: RateLimitConfig{
			Enabled:           true,
			RequestsPerSecond: 50,
			Burst:             100,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads the configuration from path, falling back to defaults when the
// file does not exist, then applies environment overrides and validates.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	case os.IsNotExist(err):
		// Defaults plus environment.
	default:
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}

	applyEnv(&cfg)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Mongo.URI == "" {
		return fmt.Errorf("mongo.uri is required")
	}
	if c.Mongo.Database == "" {
		return fmt.Errorf("mongo.database is required")
	}
	if c.Redis.ProfileTTL <= 0 {
		return fmt.Errorf("redis.profileTTL must be positive")
	}
	if c.RateLimit.Enabled && c.RateLimit.RequestsPerSecond <= 0 {
		return fmt.Errorf("rateLimit.requestsPerSecond must be positive")
	}
	return nil
}

func applyEnv(cfg *Config) {
	setString(&cfg.Server.Host, "SERVER_HOST")
	setInt(&cfg.Server.Port, "SERVER_PORT")
	setString(&cfg.Mongo.URI, "MONGO_URI")
	setString(&cfg.Mongo.Database, "MONGO_DATABASE")
	setString(&cfg.Redis.Addr, "REDIS_ADDR")
	setString(&cfg.Redis.Password, "REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "REDIS_DB")
	setDuration(&cfg.Redis.ProfileTTL, "REDIS_PROFILE_TTL")
	setString(&cfg.Partner.AccountAPIURL, "PARTNER_ACCOUNT_API_URL")
	setString(&cfg.Partner.OpenAMAPIURL, "PARTNER_OPENAM_API_URL")
	setString(&cfg.Partner.User, "PARTNER_USER")
	setString(&cfg.Partner.Password, "PARTNER_PASSWORD")
	setString(&cfg.Auth.PublicKeyPath, "AUTH_PUBLIC_KEY_PATH")
	setString(&cfg.Auth.PublicKeyPEM, "AUTH_PUBLIC_KEY_PEM")
	setBool(&cfg.Features.AccessTokenValidation, "FEATURE_ACCESS_TOKEN_VALIDATION")
	setBool(&cfg.Features.AccessTokenValidationOnReads, "FEATURE_ACCESS_TOKEN_VALIDATION_ON_READS")
	setBool(&cfg.RateLimit.Enabled, "RATE_LIMIT_ENABLED")
	setInt(&cfg.RateLimit.RequestsPerSecond, "RATE_LIMIT_RPS")
	setInt(&cfg.RateLimit.Burst, "RATE_LIMIT_BURST")
	setString(&cfg.Logging.Level, "LOG_LEVEL")
	setString(&cfg.Logging.Format, "LOG_FORMAT")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = Duration(d)
		}
	}
}
