package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/xxxsen/common/logger"
)

type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"dbname"`
	SSLMode  string `json:"sslmode"`
}

type AIProviderConfig struct {
	Provider string      `json:"provider"`
	Model    string      `json:"model"`
	Data     interface{} `json:"data"`
}

type AIConfig struct {
	Generators     []AIProviderConfig `json:"generators"`
	Embedders      []AIProviderConfig `json:"embedders"`
	Timeout        int                `json:"timeout"`
	EmbedBatchSize int                `json:"embed_batch_size"`
	EmbedCacheSize int                `json:"embed_cache_size"`
}

type SyncConfig struct {
	// ReindexSpec is the cron spec for the is_indexed=false sweep. Empty
	// disables the job.
	ReindexSpec  string `json:"reindex_spec"`
	ReindexLimit int    `json:"reindex_limit"`
}

type Config struct {
	Port             int              `json:"port"`
	JWTSecret        string           `json:"jwt_secret"`
	CredentialSecret string           `json:"credential_secret"`
	Database         DatabaseConfig   `json:"database"`
	AI               AIConfig         `json:"ai"`
	Sync             SyncConfig       `json:"sync"`
	CORSAllowlist    []string         `json:"cors_allowlist"`
	LogConfig        logger.LogConfig `json:"log_config"`
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
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("jwt_secret is required")
	}
	if cfg.CredentialSecret == "" {
		return nil, fmt.Errorf("credential_secret is required")
	}
	if cfg.Database.DSN == "" && cfg.Database.Host == "" {
		return nil, fmt.Errorf("database.dsn or database.host is required")
	}
	if cfg.AI.Timeout == 0 {
		cfg.AI.Timeout = 60
	}
	if cfg.AI.EmbedBatchSize == 0 {
		cfg.AI.EmbedBatchSize = 100
	}
	if cfg.AI.EmbedCacheSize == 0 {
		cfg.AI.EmbedCacheSize = 10000
	}
	if cfg.Sync.ReindexLimit == 0 {
		cfg.Sync.ReindexLimit = 200
	}
	if cfg.LogConfig.Level == "" {
		cfg.LogConfig.Level = "info"
	}
	return &cfg, nil
}
