package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the query agent
type Config struct {
	General   GeneralConfig   `mapstructure:"general"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Search    SearchConfig    `mapstructure:"search"`
	Files     FilesConfig     `mapstructure:"files"`
	Server    ServerConfig    `mapstructure:"server"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	Debug          bool          `mapstructure:"debug"`
	QueryTimeout   time.Duration `mapstructure:"query_timeout"`
	DefaultTimeout time.Duration `mapstructure:"default_timeout"`
}

// LLMConfig contains LLM provider settings
type LLMConfig struct {
	Provider       string        `mapstructure:"provider"` // openai
	APIKey         string        `mapstructure:"api_key"`
	Model          string        `mapstructure:"model"`
	EmbeddingModel string        `mapstructure:"embedding_model"`
	Temperature    float64       `mapstructure:"temperature"`
	MaxTokens      int           `mapstructure:"max_tokens"`
	Timeout        time.Duration `mapstructure:"timeout"`
}

// SearchConfig contains web search backend settings
type SearchConfig struct {
	SerperAPIKey     string        `mapstructure:"serper_api_key"`
	BraveAPIKey      string        `mapstructure:"brave_api_key"`
	MaxResults       int           `mapstructure:"max_results"`
	MaxRetries       int           `mapstructure:"max_retries"`
	BackoffBase      time.Duration `mapstructure:"backoff_base"`
	MinContentLength int           `mapstructure:"min_content_length"`
	Timeout          time.Duration `mapstructure:"timeout"`
	EnrichTopResult  bool          `mapstructure:"enrich_top_result"`
}

// FilesConfig contains file extraction and retrieval settings
type FilesConfig struct {
	ChunkSize    int    `mapstructure:"chunk_size"`
	ChunkOverlap int    `mapstructure:"chunk_overlap"`
	MaxFileSize  int64  `mapstructure:"max_file_size"`
	TopK         int    `mapstructure:"top_k"`
	DataDir      string `mapstructure:"data_dir"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// TelemetryConfig contains metrics and request log settings
type TelemetryConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	RequestLogFile string `mapstructure:"request_log_file"`
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig(path string) (*Config, error) {
	if path != "" {
		viper.SetConfigFile(path)
	} else {
		viper.SetConfigName("queryagent")
		viper.SetConfigType("yaml")
		viper.AddConfigPath("./config")
		viper.AddConfigPath(".")
	}

	viper.SetEnvPrefix("QUERYAGENT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	// Config file is optional; defaults plus env are enough to run
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	overrideFromEnv()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	viper.SetDefault("general.debug", false)
	viper.SetDefault("general.query_timeout", "2m")
	viper.SetDefault("general.default_timeout", "30s")

	viper.SetDefault("llm.provider", "openai")
	viper.SetDefault("llm.model", "gpt-4o-mini")
	viper.SetDefault("llm.embedding_model", "text-embedding-3-small")
	viper.SetDefault("llm.temperature", 0.2)
	viper.SetDefault("llm.max_tokens", 2048)
	viper.SetDefault("llm.timeout", "30s")

	viper.SetDefault("search.max_results", 5)
	viper.SetDefault("search.max_retries", 3)
	viper.SetDefault("search.backoff_base", "1s")
	viper.SetDefault("search.min_content_length", 50)
	viper.SetDefault("search.timeout", "10s")
	viper.SetDefault("search.enrich_top_result", false)

	viper.SetDefault("files.chunk_size", 1500)
	viper.SetDefault("files.chunk_overlap", 200)
	viper.SetDefault("files.max_file_size", 10*1024*1024)
	viper.SetDefault("files.top_k", 3)
	viper.SetDefault("files.data_dir", "./data")

	viper.SetDefault("server.addr", ":10010")

	viper.SetDefault("telemetry.enabled", true)
	viper.SetDefault("telemetry.request_log_file", "./outputs/requests.json")
}

// overrideFromEnv overrides sensitive values from well-known environment variables
func overrideFromEnv() {
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		viper.Set("llm.api_key", apiKey)
	}
	if apiKey := os.Getenv("SERPER_API_KEY"); apiKey != "" {
		viper.Set("search.serper_api_key", apiKey)
	}
	if apiKey := os.Getenv("BRAVE_SEARCH_KEY"); apiKey != "" {
		viper.Set("search.brave_api_key", apiKey)
	}
}

// Validate checks configuration invariants. A missing LLM API key is a
// fatal startup error; search API keys are optional because keyless
// backends remain available.
func Validate(cfg *Config) error {
	var issues []string

	if cfg.LLM.APIKey == "" {
		issues = append(issues, "llm.api_key is not set (export OPENAI_API_KEY)")
	}
	if cfg.Files.ChunkSize <= 0 {
		issues = append(issues, "files.chunk_size must be positive")
	}
	if cfg.Files.ChunkOverlap < 0 {
		issues = append(issues, "files.chunk_overlap must be non-negative")
	}
	if cfg.Files.ChunkOverlap >= cfg.Files.ChunkSize {
		issues = append(issues, "files.chunk_overlap must be less than files.chunk_size")
	}
	if cfg.Files.MaxFileSize <= 0 {
		issues = append(issues, "files.max_file_size must be positive")
	}
	if cfg.Search.MaxResults <= 0 {
		issues = append(issues, "search.max_results must be positive")
	}
	if cfg.Search.MaxRetries < 1 {
		issues = append(issues, "search.max_retries must be at least 1")
	}

	if len(issues) > 0 {
		return &ValidationError{Issues: issues}
	}
	return nil
}

// ValidationError reports every configuration issue at once so the
// operator can fix them in a single pass.
type ValidationError struct {
	Issues []string
}

func (e *ValidationError) Error() string {
	return "invalid configuration: " + strings.Join(e.Issues, "; ")
}
