package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Storage  StorageConfig  `mapstructure:"storage"`
	VectorDB VectorDBConfig `mapstructure:"vectordb"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Embed    EmbedConfig    `mapstructure:"embed"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Queue    QueueConfig    `mapstructure:"queue"`
	Database DatabaseConfig `mapstructure:"database"`
	Document DocumentConfig `mapstructure:"document"`
	Search   SearchConfig   `mapstructure:"search"`
	Log      LogConfig      `mapstructure:"log"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// StorageConfig holds file storage settings.
type StorageConfig struct {
	Type      string `mapstructure:"type"` // local or minio
	Path      string `mapstructure:"path"` // local storage directory
	Bucket    string `mapstructure:"bucket"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

// VectorDBConfig holds vector store settings.
type VectorDBConfig struct {
	Type     string `mapstructure:"type"` // memory, chromem or faiss
	Path     string `mapstructure:"path"`
	Dim      int    `mapstructure:"dim"`
	Distance string `mapstructure:"distance"` // cosine, l2, dot
}

// LLMConfig holds language model settings.
type LLMConfig struct {
	Provider    string  `mapstructure:"provider"` // gemini or ollama
	Model       string  `mapstructure:"model"`
	APIKey      string  `mapstructure:"api_key"`
	Endpoint    string  `mapstructure:"endpoint"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	Temperature float32 `mapstructure:"temperature"`
}

// EmbedConfig holds embedding model settings.
type EmbedConfig struct {
	Provider   string `mapstructure:"provider"` // gemini, openai or ollama
	Model      string `mapstructure:"model"`
	APIKey     string `mapstructure:"api_key"`
	Endpoint   string `mapstructure:"endpoint"`
	BatchSize  int    `mapstructure:"batch_size"`
	Dimensions int    `mapstructure:"dimensions"`
}

// CacheConfig holds answer cache settings.
type CacheConfig struct {
	Enable   bool   `mapstructure:"enable"`
	Type     string `mapstructure:"type"` // memory or redis
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	TTL      int    `mapstructure:"ttl"` // seconds
}

// QueueConfig holds task queue settings.
type QueueConfig struct {
	Enable        bool   `mapstructure:"enable"`
	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`
	Concurrency   int    `mapstructure:"concurrency"`
	RetryLimit    int    `mapstructure:"retry_limit"`
	RetryDelay    int    `mapstructure:"retry_delay"` // seconds
}

// DatabaseConfig holds metadata database settings.
type DatabaseConfig struct {
	Type string `mapstructure:"type"` // sqlite
	DSN  string `mapstructure:"dsn"`
}

// DocumentConfig holds document processing settings.
type DocumentConfig struct {
	ChunkSize    int `mapstructure:"chunk_size"`
	ChunkOverlap int `mapstructure:"chunk_overlap"`
}

// SearchConfig holds retrieval settings.
type SearchConfig struct {
	Limit    int     `mapstructure:"limit"`     // top-K chunks per question
	MinScore float32 `mapstructure:"min_score"` // similarity floor
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"` // empty logs to stdout only
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// Load reads configuration from the given file, layered under
// environment variables. A .env file in the working directory is
// loaded first when present.
func Load(configPath string) (*Config, error) {
	var config Config

	// Optional .env file for local development.
	if err := godotenv.Load(); err == nil {
		log.Printf("Loaded environment from .env")
	}

	if configPath == "" {
		configPath = "config.yaml"
	}

	v := viper.New()
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok || os.IsNotExist(err) {
			log.Printf("Warning: config file not found at %s, using defaults", configPath)
			setDefaults(v)
			dir := filepath.Dir(configPath)
			if err := os.MkdirAll(dir, 0755); err == nil {
				if err := v.WriteConfigAs(configPath); err != nil {
					log.Printf("Warning: could not write default config to %s: %v", configPath, err)
				}
			}
		} else {
			return nil, fmt.Errorf("failed to read config file: %v", err)
		}
	}

	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %v", err)
	}

	expandEnvSecrets(&config)

	return &config, nil
}

// expandEnvSecrets resolves ${VAR} placeholders in secret fields so
// API keys can live in the environment rather than the config file.
func expandEnvSecrets(cfg *Config) {
	cfg.Embed.APIKey = expandEnv(cfg.Embed.APIKey)
	cfg.LLM.APIKey = expandEnv(cfg.LLM.APIKey)
	cfg.Storage.AccessKey = expandEnv(cfg.Storage.AccessKey)
	cfg.Storage.SecretKey = expandEnv(cfg.Storage.SecretKey)
	cfg.Cache.Password = expandEnv(cfg.Cache.Password)
	cfg.Queue.RedisPassword = expandEnv(cfg.Queue.RedisPassword)
}

func expandEnv(value string) string {
	if strings.HasPrefix(value, "${") && strings.HasSuffix(value, "}") {
		if envVal := os.Getenv(value[2 : len(value)-1]); envVal != "" {
			return envVal
		}
	}
	return value
}

// setDefaults applies the default configuration.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)

	v.SetDefault("storage.type", "local")
	v.SetDefault("storage.path", "./uploads")
	v.SetDefault("storage.bucket", "legal-docs")
	v.SetDefault("storage.use_ssl", false)

	v.SetDefault("vectordb.type", "chromem")
	v.SetDefault("vectordb.path", "./data/vectordb")
	v.SetDefault("vectordb.dim", 768)
	v.SetDefault("vectordb.distance", "cosine")

	v.SetDefault("llm.provider", "gemini")
	v.SetDefault("llm.model", "gemini-2.5-flash")
	v.SetDefault("llm.api_key", "${GEMINI_API_KEY}")
	v.SetDefault("llm.max_tokens", 2048)
	v.SetDefault("llm.temperature", 0.3)

	v.SetDefault("embed.provider", "gemini")
	v.SetDefault("embed.model", "embedding-001")
	v.SetDefault("embed.api_key", "${GEMINI_API_KEY}")
	v.SetDefault("embed.batch_size", 16)
	v.SetDefault("embed.dimensions", 768)

	v.SetDefault("cache.enable", true)
	v.SetDefault("cache.type", "memory")
	v.SetDefault("cache.ttl", 86400)

	v.SetDefault("queue.enable", false)
	v.SetDefault("queue.redis_addr", "localhost:6379")
	v.SetDefault("queue.redis_db", 0)
	v.SetDefault("queue.concurrency", 10)
	v.SetDefault("queue.retry_limit", 3)
	v.SetDefault("queue.retry_delay", 60)

	v.SetDefault("database.type", "sqlite")
	v.SetDefault("database.dsn", "data/analyzer.db")

	v.SetDefault("document.chunk_size", 1000)
	v.SetDefault("document.chunk_overlap", 200)

	v.SetDefault("search.limit", 5)
	v.SetDefault("search.min_score", 0.3)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 28)
}
