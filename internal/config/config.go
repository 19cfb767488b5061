package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ConfigPath is the default config file location.
const ConfigPath = "config.yaml"

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	Port     string `yaml:"port"`
	LogLevel string `yaml:"logLevel"`

	DatabaseURL   string `yaml:"databaseURL"`
	RedisAddr     string `yaml:"redisAddr"`
	RedisPassword string `yaml:"redisPassword"`

	MinioEndpoint  string `yaml:"minioEndpoint"`
	MinioAccessKey string `yaml:"minioAccessKey"`
	MinioSecretKey string `yaml:"minioSecretKey"`
	MinioBucket    string `yaml:"minioBucket"`
	MinioUseSSL    bool   `yaml:"minioUseSSL"`

	GeminiAPIKey       string `yaml:"geminiAPIKey"`
	GenerationProvider string `yaml:"generationProvider"`
	GenerationBaseURL  string `yaml:"generationBaseURL"`
	GenerationAPIKey   string `yaml:"generationAPIKey"`
	GenerationModel    string `yaml:"generationModel"`
	OCRModel           string `yaml:"ocrModel"`

	ClassifierMode string `yaml:"classifierMode"`
	CompanyName    string `yaml:"companyName"`
	CompanyContext string `yaml:"companyContext"`

	DeepgramURL     string `yaml:"deepgramURL"`
	DeepgramLiveURL string `yaml:"deepgramLiveURL"`
	DeepgramAPIKey  string `yaml:"deepgramAPIKey"`

	SendgridAPIKey string `yaml:"sendgridAPIKey"`
	FromEmail      string `yaml:"fromEmail"`

	MaxUploadBytes          int64 `yaml:"maxUploadBytes"`
	ScanRateLimitPerMinute  int   `yaml:"scanRateLimitPerMinute"`
	AudioRateLimitPerMinute int   `yaml:"audioRateLimitPerMinute"`
	EmailRateLimitPerMinute int   `yaml:"emailRateLimitPerMinute"`
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
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.RedisPassword = v
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
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		cfg.GeminiAPIKey = v
	}
	if v := os.Getenv("DEEPGRAM_API_KEY"); v != "" {
		cfg.DeepgramAPIKey = v
	}
	if v := os.Getenv("SENDGRID_API_KEY"); v != "" {
		cfg.SendgridAPIKey = v
	}
	if v := os.Getenv("FROM_EMAIL"); v != "" {
		cfg.FromEmail = v
	}
	applyDefaults(&cfg)
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyDefaults(cfg *FileConfig) {
	if cfg.GenerationProvider == "" {
		cfg.GenerationProvider = "gemini"
	}
	if cfg.OCRModel == "" {
		cfg.OCRModel = cfg.GenerationModel
	}
	if cfg.ClassifierMode == "" {
		cfg.ClassifierMode = "tag"
	}
	if cfg.DeepgramURL == "" {
		cfg.DeepgramURL = "https://api.deepgram.com/v1/listen"
	}
	if cfg.DeepgramLiveURL == "" {
		cfg.DeepgramLiveURL = "wss://api.deepgram.com/v1/listen"
	}
}

func validateConfig(cfg FileConfig) error {
	if cfg.Port == "" {
		return errors.New("config: port is required (set in config.yaml)")
	}
	if cfg.DatabaseURL == "" {
		return errors.New("config: databaseURL is required (set in config.yaml or DATABASE_URL)")
	}
	if cfg.RedisAddr == "" {
		return errors.New("config: redisAddr is required (set in config.yaml or REDIS_ADDR)")
	}
	if cfg.MinioEndpoint == "" {
		return errors.New("config: minioEndpoint is required (set in config.yaml or MINIO_ENDPOINT)")
	}
	if cfg.MinioBucket == "" {
		return errors.New("config: minioBucket is required (set in config.yaml)")
	}
	if cfg.GeminiAPIKey == "" {
		return errors.New("config: geminiAPIKey is required for card extraction (set in config.yaml or GEMINI_API_KEY)")
	}
	if cfg.GenerationModel == "" {
		return errors.New("config: generationModel is required (set in config.yaml)")
	}
	switch cfg.GenerationProvider {
	case "gemini", "ollama", "openai-compat":
	default:
		return fmt.Errorf("config: unknown generationProvider: %s", cfg.GenerationProvider)
	}
	switch cfg.ClassifierMode {
	case "tag", "score":
	default:
		return fmt.Errorf("config: classifierMode must be tag or score, got %s", cfg.ClassifierMode)
	}
	if cfg.DeepgramAPIKey == "" {
		return errors.New("config: deepgramAPIKey is required (set in config.yaml or DEEPGRAM_API_KEY)")
	}
	return nil
}
