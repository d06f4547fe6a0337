package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/docuvault/docscan/internal/models"
)

// Config is the full application configuration, loaded from a yaml file
// with credentials supplied through the environment (.env).
type Config struct {
	Scan    ScanConfig    `yaml:"scan"`
	Assets  AssetsConfig  `yaml:"assets"`
	Engines EnginesConfig `yaml:"engines"`
	Store   StoreConfig   `yaml:"store"`
	Queue   QueueConfig   `yaml:"queue"`
	Server  ServerConfig  `yaml:"server"`
	Logging LoggingConfig `yaml:"logging"`
}

type ScanConfig struct {
	BatchSize          int           `yaml:"batchSize"`
	MinFileSize        int64         `yaml:"minFileSize"`
	MaxFileSize        int64         `yaml:"maxFileSize"`
	MaxAspectRatio     float64       `yaml:"maxAspectRatio"`
	WifiOnly           bool          `yaml:"wifiOnly"`
	BatterySaver       bool          `yaml:"batterySaver"`
	SmartFilterEnabled bool          `yaml:"smartFilterEnabled"`
	ScanNewOnly        bool          `yaml:"scanNewOnly"`
	IncludeScreenshots bool          `yaml:"includeScreenshots"`
	MaxRetries         int           `yaml:"maxRetries"`
	AssetTimeout       time.Duration `yaml:"assetTimeout"`
}

type AssetsConfig struct {
	Source string `yaml:"source"` // filesystem | minio | s3
	Root   string `yaml:"root"`   // filesystem root
	Bucket string `yaml:"bucket"` // minio/s3 bucket
}

type EnginesConfig struct {
	Tesseract TesseractConfig `yaml:"tesseract"`
	Textract  TextractConfig  `yaml:"textract"`
	Ollama    OllamaConfig    `yaml:"ollama"`
}

type TesseractConfig struct {
	Enabled   bool     `yaml:"enabled"`
	Languages []string `yaml:"languages"`
}

type OllamaConfig struct {
	Enabled     bool          `yaml:"enabled"`
	Endpoint    string        `yaml:"endpoint"`
	Model       string        `yaml:"model"`
	MaxTokens   int           `yaml:"maxTokens"`
	Temperature float64       `yaml:"temperature"`
	Timeout     time.Duration `yaml:"timeout"`
}

type StoreConfig struct {
	Backend   string `yaml:"backend"`   // bolt | redis
	Path      string `yaml:"path"`      // bolt file path
	RedisAddr string `yaml:"redisAddr"` // redis backend only
	RedisDB   int    `yaml:"redisDb"`
}

type QueueConfig struct {
	// Enabled routes scan starts through redis/asynq to a separate worker
	// process. Disabled, the server runs scans in-process.
	Enabled     bool   `yaml:"enabled"`
	RedisAddr   string `yaml:"redisAddr"`
	RedisDB     int    `yaml:"redisDb"`
	Concurrency int    `yaml:"concurrency"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

type LoggingConfig struct {
	Level       string   `yaml:"level"`
	Encoding    string   `yaml:"encoding"`
	OutputPaths []string `yaml:"outputPaths"`
}

// Load reads the yaml config at path, applying defaults for anything unset.
// A missing file yields the pure default configuration.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if cfg.Scan.BatchSize <= 0 {
		cfg.Scan.BatchSize = defaultConfig().Scan.BatchSize
	}
	if cfg.Scan.AssetTimeout <= 0 {
		cfg.Scan.AssetTimeout = defaultConfig().Scan.AssetTimeout
	}
	if cfg.Scan.MaxRetries <= 0 {
		cfg.Scan.MaxRetries = defaultConfig().Scan.MaxRetries
	}

	return cfg, nil
}

func defaultConfig() *Config {
	defaults := models.DefaultScanOptions()
	return &Config{
		Scan: ScanConfig{
			BatchSize:          defaults.BatchSize,
			MinFileSize:        defaults.MinFileSize,
			MaxFileSize:        defaults.MaxFileSize,
			MaxAspectRatio:     defaults.MaxAspectRatio,
			SmartFilterEnabled: defaults.SmartFilterEnabled,
			MaxRetries:         defaults.MaxRetries,
			AssetTimeout:       defaults.AssetTimeout,
		},
		Assets: AssetsConfig{
			Source: "filesystem",
			Root:   ".",
		},
		Engines: EnginesConfig{
			Tesseract: TesseractConfig{
				Enabled:   true,
				Languages: []string{"eng"},
			},
			Ollama: OllamaConfig{
				Endpoint:    "http://localhost:11434",
				Model:       "llama3.2-vision",
				MaxTokens:   2048,
				Temperature: 0.2,
				Timeout:     60 * time.Second,
			},
		},
		Store: StoreConfig{
			Backend:   "bolt",
			Path:      "data/docscan.db",
			RedisAddr: "localhost:6379",
		},
		Queue: QueueConfig{
			RedisAddr:   "localhost:6379",
			Concurrency: 1,
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
		Logging: LoggingConfig{
			Level:       "info",
			Encoding:    "json",
			OutputPaths: []string{"stdout", "logs/docscan.log"},
		},
	}
}

// ScanOptions converts the scan section to the per-scan snapshot type.
func (c *Config) ScanOptions() models.ScanOptions {
	return models.ScanOptions{
		BatchSize:          c.Scan.BatchSize,
		MinFileSize:        c.Scan.MinFileSize,
		MaxFileSize:        c.Scan.MaxFileSize,
		MaxAspectRatio:     c.Scan.MaxAspectRatio,
		WifiOnly:           c.Scan.WifiOnly,
		BatterySaver:       c.Scan.BatterySaver,
		SmartFilterEnabled: c.Scan.SmartFilterEnabled,
		ScanNewOnly:        c.Scan.ScanNewOnly,
		IncludeScreenshots: c.Scan.IncludeScreenshots,
		MaxRetries:         c.Scan.MaxRetries,
		AssetTimeout:       c.Scan.AssetTimeout,
	}
}
