// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Server    ServerConfig    `mapstructure:"server"`
	Corpus    CorpusConfig    `mapstructure:"corpus"`
	Policy    PolicyConfig    `mapstructure:"policy"`
	Budget    BudgetConfig    `mapstructure:"budget"`
	TextGen   TextGenConfig   `mapstructure:"textgen"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Directory DirectoryConfig `mapstructure:"directory"`
	Template  TemplateConfig  `mapstructure:"template"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// TemplateConfig points at the optional notification template registry file.
// An empty path means the built-in templates are used.
type TemplateConfig struct {
	RegistryPath string `mapstructure:"registry_path"`
}

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type ServerConfig struct {
	Address        string `mapstructure:"address"`
	ReadTimeout    int    `mapstructure:"read_timeout"`  // milliseconds
	WriteTimeout   int    `mapstructure:"write_timeout"` // milliseconds
	MetricsAddress string `mapstructure:"metrics_address"`
}

type CorpusConfig struct {
	Dir          string `mapstructure:"dir"`
	ChunkSize    int    `mapstructure:"chunk_size"`
	ChunkOverlap int    `mapstructure:"chunk_overlap"`
	TopK         int    `mapstructure:"top_k"`
	QueryTimeout int    `mapstructure:"query_timeout"` // milliseconds
	EmbedderURL  string `mapstructure:"embedder_url"`
	EmbedModel   string `mapstructure:"embed_model"`
}

// PolicyConfig carries the pre-agreed conservative fallback constants used when
// a policy rule cannot be parsed from the corpus.
type PolicyConfig struct {
	MinPercentageFallback   float64 `mapstructure:"min_percentage_fallback"`
	MaxLoanFractionFallback float64 `mapstructure:"max_loan_fraction_fallback"`
	CourseFeeFallback       float64 `mapstructure:"course_fee_fallback"`
	CacheTTL                int     `mapstructure:"cache_ttl"` // seconds
}

type BudgetConfig struct {
	Capacity           float64 `mapstructure:"capacity"`
	DefaultLoanRequest float64 `mapstructure:"default_loan_request"`
}

type TextGenConfig struct {
	Provider string `mapstructure:"provider"` // "ollama" or "http"
	BaseURL  string `mapstructure:"base_url"`
	Model    string `mapstructure:"model"`
	Timeout  int    `mapstructure:"timeout"` // milliseconds
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type DirectoryConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string.
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}
