package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ConfigPath is the default location checked when no path is given.
const ConfigPath = "config.yaml"

// DefaultMaxUploadBytes caps manuscript uploads when maxUploadBytes is unset.
const DefaultMaxUploadBytes int64 = 32 << 20

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	Port            string `yaml:"port"`
	LogLevel        string `yaml:"logLevel"`
	DatabaseURL     string `yaml:"databaseURL"`
	RedisAddr       string `yaml:"redisAddr"`
	RedisPassword   string `yaml:"redisPassword"`
	SessionStrategy string `yaml:"sessionStrategy"`
	SessionTTLHours int    `yaml:"sessionTtlHours"`
	SessionSecret   string `yaml:"sessionSecret"`
	MinioEndpoint   string `yaml:"minioEndpoint"`
	MinioAccessKey  string `yaml:"minioAccessKey"`
	MinioSecretKey  string `yaml:"minioSecretKey"`
	MinioBucket     string `yaml:"minioBucket"`
	MinioUseSSL     bool   `yaml:"minioUseSSL"`
	MaxUploadBytes  int64  `yaml:"maxUploadBytes"`
}

// Load reads config from path (defaults to config.yaml).
func Load(path string) (FileConfig, error) {
	cfg := FileConfig{}
	if path == "" {
		path = ConfigPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	// Override with environment variables
	if v := os.Getenv("PORT"); v != "" {
		cfg.Port = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.RedisPassword = v
	}
	if v := os.Getenv("SESSION_STRATEGY"); v != "" {
		cfg.SessionStrategy = v
	}
	if v := os.Getenv("SESSION_TTL_HOURS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.SessionTTLHours = n
		}
	}
	if v := os.Getenv("SESSION_SECRET"); v != "" {
		cfg.SessionSecret = v
	}
	if v := os.Getenv("MINIO_ENDPOINT"); v != "" {
		cfg.MinioEndpoint = v
	}
	if v := os.Getenv("MINIO_ACCESS_KEY"); v != "" {
		cfg.MinioAccessKey = v
	}
	if v := os.Getenv("MINIO_SECRET_KEY"); v != "" {
		cfg.MinioSecretKey = v
	}
	if v := os.Getenv("MINIO_BUCKET"); v != "" {
		cfg.MinioBucket = v
	}
	if v := os.Getenv("MINIO_USE_SSL"); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			cfg.MinioUseSSL = enabled
		}
	}
	if v := os.Getenv("MAX_UPLOAD_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.MaxUploadBytes = n
		}
	}
	applyDefaults(&cfg)
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyDefaults(cfg *FileConfig) {
	if cfg.SessionStrategy == "" {
		cfg.SessionStrategy = "redis"
	}
	if cfg.SessionTTLHours <= 0 {
		cfg.SessionTTLHours = 72
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = DefaultMaxUploadBytes
	}
}

func validateConfig(cfg FileConfig) error {
	if cfg.Port == "" {
		return errors.New("config: port is required (set in config.yaml)")
	}
	if cfg.DatabaseURL == "" {
		return errors.New("config: databaseURL is required (set in config.yaml or DATABASE_URL)")
	}
	switch cfg.SessionStrategy {
	case "redis":
		if cfg.RedisAddr == "" {
			return errors.New("config: redisAddr is required (set in config.yaml or REDIS_ADDR)")
		}
	case "jwt":
		if strings.TrimSpace(cfg.SessionSecret) == "" {
			return errors.New("config: sessionSecret is required when sessionStrategy=jwt")
		}
		if cfg.RedisAddr == "" {
			return errors.New("config: redisAddr is required when sessionStrategy=jwt (token revocation)")
		}
	default:
		return fmt.Errorf("config: unknown sessionStrategy %q (want redis or jwt)", cfg.SessionStrategy)
	}
	if cfg.MinioEndpoint == "" {
		return errors.New("config: minioEndpoint is required (set in config.yaml or MINIO_ENDPOINT)")
	}
	if cfg.MinioAccessKey == "" || cfg.MinioSecretKey == "" {
		return errors.New("config: object storage requires MINIO_ACCESS_KEY + MINIO_SECRET_KEY")
	}
	if cfg.MinioBucket == "" {
		return errors.New("config: minioBucket is required (set in config.yaml or MINIO_BUCKET)")
	}
	return nil
}
