// Package config loads settings from YAML config files, .env files and
// environment variables, in that order of increasing precedence.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all settings.
type Config struct {
	// Queue tuning
	BatchIntervalMs int `yaml:"batch_interval_ms" mapstructure:"batch_interval_ms"`
	MaxBatchSize    int `yaml:"max_batch_size" mapstructure:"max_batch_size"`

	// Orphan bookkeeping
	MaxOrphanFiles      int    `yaml:"max_orphan_files" mapstructure:"max_orphan_files"`
	OrphanRetentionDays int    `yaml:"orphan_retention_days" mapstructure:"orphan_retention_days"`
	OrphanDBPath        string `yaml:"orphan_db_path" mapstructure:"orphan_db_path"`

	// Diagnostics
	Verbose bool `yaml:"verbose" mapstructure:"verbose"`

	// Parse phase
	ParseConcurrency int `yaml:"parse_concurrency" mapstructure:"parse_concurrency"`

	Graph     GraphConfig     `yaml:"graph" mapstructure:"graph"`
	Embedding EmbeddingConfig `yaml:"embedding" mapstructure:"embedding"`
	Vision    VisionConfig    `yaml:"vision" mapstructure:"vision"`
	Parsers   ParserConfig    `yaml:"parsers" mapstructure:"parsers"`
	Aliases   AliasConfig     `yaml:"aliases" mapstructure:"aliases"`
}

// GraphConfig is the Neo4j connection.
type GraphConfig struct {
	URI      string `yaml:"uri" mapstructure:"uri"`
	Username string `yaml:"username" mapstructure:"username"`
	Password string `yaml:"password" mapstructure:"password"`
	Database string `yaml:"database" mapstructure:"database"`
}

// EmbeddingConfig is the embedding collaborator.
type EmbeddingConfig struct {
	APIKey            string  `yaml:"api_key" mapstructure:"api_key"`
	BaseURL           string  `yaml:"base_url" mapstructure:"base_url"`
	Model             string  `yaml:"model" mapstructure:"model"`
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	Enabled           bool    `yaml:"enabled" mapstructure:"enabled"`
}

// VisionConfig is the vision/OCR collaborator.
type VisionConfig struct {
	APIKey  string `yaml:"api_key" mapstructure:"api_key"`
	Model   string `yaml:"model" mapstructure:"model"`
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
}

// ParserConfig carries the per-parser knobs.
type ParserConfig struct {
	ParseCodeBlocks   bool `yaml:"parse_code_blocks" mapstructure:"parse_code_blocks"`
	ExtractText       bool `yaml:"extract_text" mapstructure:"extract_text"`
	UseOCR            bool `yaml:"use_ocr" mapstructure:"use_ocr"`
	MaxOCRPages       int  `yaml:"max_ocr_pages" mapstructure:"max_ocr_pages"`
	ExtractImages     bool `yaml:"extract_images" mapstructure:"extract_images"`
	ExtractDimensions bool `yaml:"extract_dimensions" mapstructure:"extract_dimensions"`
	ParseGltfMetadata bool `yaml:"parse_gltf_metadata" mapstructure:"parse_gltf_metadata"`
}

// AliasConfig is the tsconfig-style path alias table.
type AliasConfig struct {
	BaseURL string              `yaml:"base_url" mapstructure:"base_url"`
	Paths   map[string][]string `yaml:"paths" mapstructure:"paths"`
}

// Default returns the default configuration.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	return &Config{
		BatchIntervalMs:     1000,
		MaxBatchSize:        100,
		MaxOrphanFiles:      100,
		OrphanRetentionDays: 7,
		OrphanDBPath:        filepath.Join(homeDir, ".codegraph", "orphans.db"),
		Verbose:             false,
		ParseConcurrency:    10,
		Graph: GraphConfig{
			URI:      "bolt://localhost:7687",
			Username: "neo4j",
			Database: "neo4j",
		},
		Embedding: EmbeddingConfig{
			Model:             "text-embedding-3-small",
			RequestsPerSecond: 5,
			Enabled:           true,
		},
		Vision: VisionConfig{
			Model: "gemini-2.0-flash",
		},
		Parsers: ParserConfig{
			ParseCodeBlocks:   true,
			ExtractText:       true,
			MaxOCRPages:       20,
			ExtractDimensions: true,
			ParseGltfMetadata: true,
		},
	}
}

// Load loads configuration from file, environment and defaults.
func Load(path string) (*Config, error) {
	loadEnvFiles()

	v := viper.New()
	v.SetConfigType("yaml")

	cfg := Default()
	v.SetDefault("batch_interval_ms", cfg.BatchIntervalMs)
	v.SetDefault("max_batch_size", cfg.MaxBatchSize)
	v.SetDefault("max_orphan_files", cfg.MaxOrphanFiles)
	v.SetDefault("orphan_retention_days", cfg.OrphanRetentionDays)
	v.SetDefault("orphan_db_path", cfg.OrphanDBPath)
	v.SetDefault("parse_concurrency", cfg.ParseConcurrency)
	v.SetDefault("graph", cfg.Graph)
	v.SetDefault("embedding", cfg.Embedding)
	v.SetDefault("vision", cfg.Vision)
	v.SetDefault("parsers", cfg.Parsers)

	v.SetEnvPrefix("CODEGRAPH")
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".codegraph")
		v.AddConfigPath(".")
		homeDir, _ := os.UserHomeDir()
		v.AddConfigPath(filepath.Join(homeDir, ".codegraph"))
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
		// Missing config file is fine; defaults apply.
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

// loadEnvFiles loads .env files in order of precedence.
func loadEnvFiles() {
	for _, file := range []string{".env.local", ".env"} {
		if _, err := os.Stat(file); err == nil {
			_ = godotenv.Load(file)
		}
	}
	homeDir, _ := os.UserHomeDir()
	homeEnv := filepath.Join(homeDir, ".codegraph", ".env")
	if _, err := os.Stat(homeEnv); err == nil {
		_ = godotenv.Load(homeEnv)
	}
}

// applyEnvOverrides applies environment variable overrides.
func applyEnvOverrides(cfg *Config) {
	if uri := os.Getenv("NEO4J_URI"); uri != "" {
		cfg.Graph.URI = uri
	}
	if user := os.Getenv("NEO4J_USERNAME"); user != "" {
		cfg.Graph.Username = user
	}
	if pass := os.Getenv("NEO4J_PASSWORD"); pass != "" {
		cfg.Graph.Password = pass
	}
	if db := os.Getenv("NEO4J_DATABASE"); db != "" {
		cfg.Graph.Database = db
	}

	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		cfg.Embedding.APIKey = key
	}
	if url := os.Getenv("EMBEDDING_BASE_URL"); url != "" {
		cfg.Embedding.BaseURL = url
	}
	if model := os.Getenv("EMBEDDING_MODEL"); model != "" {
		cfg.Embedding.Model = model
	}

	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		cfg.Vision.APIKey = key
		cfg.Vision.Enabled = true
	}

	if interval := os.Getenv("CODEGRAPH_BATCH_INTERVAL_MS"); interval != "" {
		if n, err := strconv.Atoi(interval); err == nil {
			cfg.BatchIntervalMs = n
		}
	}
	if size := os.Getenv("CODEGRAPH_MAX_BATCH_SIZE"); size != "" {
		if n, err := strconv.Atoi(size); err == nil {
			cfg.MaxBatchSize = n
		}
	}
	if orphans := os.Getenv("CODEGRAPH_MAX_ORPHAN_FILES"); orphans != "" {
		if n, err := strconv.Atoi(orphans); err == nil {
			cfg.MaxOrphanFiles = n
		}
	}
	if days := os.Getenv("CODEGRAPH_ORPHAN_RETENTION_DAYS"); days != "" {
		if n, err := strconv.Atoi(days); err == nil {
			cfg.OrphanRetentionDays = n
		}
	}
	if verbose := os.Getenv("CODEGRAPH_VERBOSE"); verbose != "" {
		cfg.Verbose = verbose == "true" || verbose == "1"
	}
}

// Save writes configuration to a YAML file.
func (c *Config) Save(path string) error {
	v := viper.New()
	v.SetConfigType("yaml")

	v.Set("batch_interval_ms", c.BatchIntervalMs)
	v.Set("max_batch_size", c.MaxBatchSize)
	v.Set("max_orphan_files", c.MaxOrphanFiles)
	v.Set("orphan_retention_days", c.OrphanRetentionDays)
	v.Set("orphan_db_path", c.OrphanDBPath)
	v.Set("verbose", c.Verbose)
	v.Set("parse_concurrency", c.ParseConcurrency)
	v.Set("graph", c.Graph)
	v.Set("embedding", c.Embedding)
	v.Set("vision", c.Vision)
	v.Set("parsers", c.Parsers)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
