package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/xxxsen/common/logger"
)

type Config struct {
	Port        int              `json:"port"`
	Version     string           `json:"version"`
	CORSOrigins []string         `json:"cors_origins"`
	RateLimitMS int              `json:"rate_limit_ms"`
	LogConfig   logger.LogConfig `json:"log_config"`
	DB          DatabaseConfig   `json:"db"`
	AI          AIConfig         `json:"ai"`
	Vector      VectorConfig     `json:"vector"`
	Upload      UploadConfig     `json:"upload"`
	Chat        ChatConfig       `json:"chat"`
	FileStore   FileStoreConfig  `json:"file_store"`
	Jobs        JobsConfig       `json:"jobs"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"db_name"`
	SSLMode  string `json:"ssl_mode"`
}

type AIProviderConfig struct {
	Name       string      `json:"name"`
	Model      string      `json:"model"`
	EmbedModel string      `json:"embed_model"`
	Data       interface{} `json:"data"`
}

type AIConfig struct {
	Providers       []AIProviderConfig `json:"providers"`
	Temperature     float32            `json:"temperature"`
	MaxOutputTokens int32              `json:"max_output_tokens"`
	Timeout         int                `json:"timeout"`
	MaxInputChars   int                `json:"max_input_chars"`
}

type VectorConfig struct {
	Dimension       int     `json:"dimension"`
	SearchThreshold float64 `json:"search_threshold"`
	PolicyThreshold float64 `json:"policy_threshold"`
}

type UploadConfig struct {
	MaxFileSizeMB int `json:"max_file_size_mb"`
	Concurrency   int `json:"concurrency"`
}

type ChatConfig struct {
	MaxHistory        int `json:"max_history"`
	SuggestionTimeout int `json:"suggestion_timeout"`
}

type FileStoreConfig struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type JobsConfig struct {
	SessionCleanupSpec    string `json:"session_cleanup_spec"`
	SessionTTLDays        int    `json:"session_ttl_days"`
	EmbedCacheCleanupSpec string `json:"embed_cache_cleanup_spec"`
	EmbedCacheTTLDays     int    `json:"embed_cache_ttl_days"`
}

func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.Port == 0 {
		return nil, fmt.Errorf("port is required")
	}
	if cfg.Version == "" {
		cfg.Version = "1.0.0"
	}
	if cfg.LogConfig.Level == "" {
		cfg.LogConfig.Level = "info"
	}
	if cfg.DB.DSN == "" && cfg.DB.Host == "" {
		return nil, fmt.Errorf("db.dsn or db.host is required")
	}
	if cfg.DB.Port == 0 {
		cfg.DB.Port = 5432
	}
	if len(cfg.AI.Providers) == 0 {
		return nil, fmt.Errorf("ai.providers is required")
	}
	for i, p := range cfg.AI.Providers {
		if p.Name == "" {
			return nil, fmt.Errorf("ai.providers[%d].name is required", i)
		}
		if p.Model == "" {
			return nil, fmt.Errorf("ai.providers[%d].model is required", i)
		}
	}
	if cfg.AI.Temperature == 0 {
		cfg.AI.Temperature = 0.1
	}
	if cfg.AI.MaxOutputTokens == 0 {
		cfg.AI.MaxOutputTokens = 4096
	}
	if cfg.AI.Timeout == 0 {
		cfg.AI.Timeout = 120
	}
	if cfg.Vector.Dimension == 0 {
		cfg.Vector.Dimension = 768
	}
	if cfg.Vector.SearchThreshold == 0 {
		cfg.Vector.SearchThreshold = 0.3
	}
	if cfg.Vector.PolicyThreshold == 0 {
		cfg.Vector.PolicyThreshold = 0.3
	}
	if cfg.Upload.MaxFileSizeMB == 0 {
		cfg.Upload.MaxFileSizeMB = 50
	}
	if cfg.Upload.Concurrency == 0 {
		cfg.Upload.Concurrency = 5
	}
	if cfg.Chat.MaxHistory == 0 {
		cfg.Chat.MaxHistory = 20
	}
	if cfg.Chat.SuggestionTimeout == 0 {
		cfg.Chat.SuggestionTimeout = 10
	}
	if cfg.FileStore.Type == "" {
		cfg.FileStore.Type = "local"
		if cfg.FileStore.Data == nil {
			cfg.FileStore.Data = map[string]interface{}{"dir": "uploads"}
		}
	}
	if cfg.Jobs.SessionCleanupSpec == "" {
		cfg.Jobs.SessionCleanupSpec = "0 3 * * *"
	}
	if cfg.Jobs.SessionTTLDays == 0 {
		cfg.Jobs.SessionTTLDays = 7
	}
	if cfg.Jobs.EmbedCacheCleanupSpec == "" {
		cfg.Jobs.EmbedCacheCleanupSpec = "30 3 * * *"
	}
	if cfg.Jobs.EmbedCacheTTLDays == 0 {
		cfg.Jobs.EmbedCacheTTLDays = 30
	}
	return &cfg, nil
}
