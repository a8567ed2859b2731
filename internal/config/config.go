package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	defaultMaxUploadBytes    = 10 * 1024 * 1024
	defaultCompressThreshold = 2 * 1024 * 1024
	defaultMaxImageDimension = 1920
)

// DefaultLegacySections is the allow-list of section names replayed from
// legacy snapshots.
var DefaultLegacySections = []string{
	"algemeen",
	"gebouwschil",
	"verwarmingssysteem",
	"warm_tapwater",
	"ventilatie",
	"koeling",
	"verlichting",
	"zonwering",
	"energiemeting",
	"gebouwbeheersysteem",
	"opwekking",
}

type Config struct {
	ListenAddr             string   `yaml:"listen_addr"`
	DBPath                 string   `yaml:"db_path"`
	MediaRoot              string   `yaml:"media_root"`
	MaxUploadBytes         int64    `yaml:"max_upload_bytes"`
	CompressThresholdBytes int64    `yaml:"compress_threshold_bytes"`
	MaxImageDimension      int      `yaml:"max_image_dimension"`
	LegacySections         []string `yaml:"legacy_sections"`
	LogLevel               string   `yaml:"log_level"`
	LogFormat              string   `yaml:"log_format"`
	LogFile                string   `yaml:"log_file"`
}

func defaults() *Config {
	return &Config{
		ListenAddr:             ":8080",
		DBPath:                 "/data/opname.db",
		MediaRoot:              "/data/media",
		MaxUploadBytes:         defaultMaxUploadBytes,
		CompressThresholdBytes: defaultCompressThreshold,
		MaxImageDimension:      defaultMaxImageDimension,
		LegacySections:         append([]string(nil), DefaultLegacySections...),
		LogLevel:               "info",
		LogFormat:              "json",
	}
}

// Load builds the configuration from defaults, an optional YAML file named by
// OPNAME_CONFIG and the environment, in increasing order of precedence. A
// .env file in the working directory is loaded into the environment first
// when present; variables already set are not overwritten.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := defaults()

	if path := os.Getenv("OPNAME_CONFIG"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.ListenAddr = getEnv("LISTEN_ADDR", cfg.ListenAddr)
	cfg.DBPath = getEnv("DB_PATH", cfg.DBPath)
	cfg.MediaRoot = getEnv("MEDIA_ROOT", cfg.MediaRoot)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = getEnv("LOG_FORMAT", cfg.LogFormat)
	cfg.LogFile = getEnv("LOG_FILE", cfg.LogFile)

	var err error
	if cfg.MaxUploadBytes, err = getEnvInt64("MAX_UPLOAD_BYTES", cfg.MaxUploadBytes); err != nil {
		return nil, err
	}
	if cfg.CompressThresholdBytes, err = getEnvInt64("COMPRESS_THRESHOLD_BYTES", cfg.CompressThresholdBytes); err != nil {
		return nil, err
	}
	dim, err := getEnvInt64("MAX_IMAGE_DIMENSION", int64(cfg.MaxImageDimension))
	if err != nil {
		return nil, err
	}
	cfg.MaxImageDimension = int(dim)

	if v, ok := os.LookupEnv("LEGACY_SECTIONS"); ok {
		cfg.LegacySections = splitList(v)
	}

	return cfg, cfg.validate()
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) validate() error {
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("max upload bytes must be positive, got %d", c.MaxUploadBytes)
	}
	if c.CompressThresholdBytes <= 0 {
		return fmt.Errorf("compress threshold must be positive, got %d", c.CompressThresholdBytes)
	}
	if c.MaxImageDimension <= 0 {
		return fmt.Errorf("max image dimension must be positive, got %d", c.MaxImageDimension)
	}
	if c.MediaRoot == "" {
		return errors.New("media root must not be empty")
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val, exists := os.LookupEnv(key); exists {
		return val
	}
	return defaultVal
}

func getEnvInt64(key string, defaultVal int64) (int64, error) {
	val, exists := os.LookupEnv(key)
	if !exists || val == "" {
		return defaultVal, nil
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
