// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

func Load() (*Config, error) {
	loadEnvFile()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath("../../configs")
	viper.AddConfigPath(".")

	// Enable ENV override like CORPUS_DIR, REDIS_ADDRESS
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	// Environment overlay (config.development.yaml etc.), optional.
	viper.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = viper.MergeInConfig()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func loadEnvFile() {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env",
	}

	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

// findProjectRoot walks up from the working directory looking for go.mod.
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "admission-orchestrator"
	}
	if cfg.App.Environment == "" {
		cfg.App.Environment = "development"
	}
	if cfg.Server.Address == "" {
		cfg.Server.Address = ":8080"
	}
	if cfg.Server.MetricsAddress == "" {
		cfg.Server.MetricsAddress = ":9090"
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 10000
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 15000
	}
	if cfg.Corpus.Dir == "" {
		cfg.Corpus.Dir = "data"
	}
	if cfg.Corpus.ChunkSize == 0 {
		cfg.Corpus.ChunkSize = 500
	}
	if cfg.Corpus.ChunkOverlap == 0 {
		cfg.Corpus.ChunkOverlap = 50
	}
	if cfg.Corpus.TopK == 0 {
		cfg.Corpus.TopK = 2
	}
	if cfg.Corpus.QueryTimeout == 0 {
		cfg.Corpus.QueryTimeout = 3000
	}
	if cfg.Corpus.EmbedderURL == "" {
		cfg.Corpus.EmbedderURL = "http://localhost:11434"
	}
	if cfg.Corpus.EmbedModel == "" {
		cfg.Corpus.EmbedModel = "nomic-embed-text:latest"
	}
	if cfg.Policy.MinPercentageFallback == 0 {
		cfg.Policy.MinPercentageFallback = 60
	}
	if cfg.Policy.MaxLoanFractionFallback == 0 {
		cfg.Policy.MaxLoanFractionFallback = 0.80
	}
	if cfg.Policy.CourseFeeFallback == 0 {
		cfg.Policy.CourseFeeFallback = 10000
	}
	if cfg.Policy.CacheTTL == 0 {
		cfg.Policy.CacheTTL = 1800
	}
	if cfg.Budget.Capacity == 0 {
		cfg.Budget.Capacity = 100000
	}
	if cfg.Budget.DefaultLoanRequest == 0 {
		cfg.Budget.DefaultLoanRequest = 5000
	}
	if cfg.TextGen.Provider == "" {
		cfg.TextGen.Provider = "ollama"
	}
	if cfg.TextGen.BaseURL == "" {
		cfg.TextGen.BaseURL = "http://localhost:11434"
	}
	if cfg.TextGen.Model == "" {
		cfg.TextGen.Model = "llama3"
	}
	if cfg.TextGen.Timeout == 0 {
		cfg.TextGen.Timeout = 5000
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "console"
	}
}

func validateConfig(cfg *Config) error {
	if cfg.Budget.Capacity < 0 {
		return fmt.Errorf("budget.capacity must not be negative")
	}
	if cfg.Corpus.ChunkOverlap >= cfg.Corpus.ChunkSize {
		return fmt.Errorf("corpus.chunk_overlap must be smaller than corpus.chunk_size")
	}
	switch cfg.TextGen.Provider {
	case "ollama", "http", "none":
	default:
		return fmt.Errorf("textgen.provider must be one of ollama, http, none")
	}
	if cfg.Directory.Enabled && cfg.Directory.Postgres.Host == "" {
		return fmt.Errorf("directory.postgres.host required when directory is enabled")
	}
	if cfg.Redis.Enabled && cfg.Redis.Address == "" {
		return fmt.Errorf("redis.address required when redis is enabled")
	}
	return nil
}
