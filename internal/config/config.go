package config

import (
	yamlenv "github.com/ifuryst/go-yaml-env"

	"github.com/storesmith/storesmith/pkg/logger"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Logger    logger.Config   `yaml:"logger"`
	Generator GeneratorConfig `yaml:"generator"`
	Catalog   CatalogConfig   `yaml:"catalog"`
	Worker    WorkerConfig    `yaml:"worker"`
	Bridge    BridgeConfig    `yaml:"bridge"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Jobs      JobsConfig      `yaml:"jobs"`
	Billing   BillingConfig   `yaml:"billing"`
}

type ServerConfig struct {
	Port     int    `yaml:"port"`
	Host     string `yaml:"host"`
	Mode     string `yaml:"mode"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"ssl_mode"`
	TimeZone string `yaml:"timezone"`
}

type GeneratorConfig struct {
	BaseURL    string `yaml:"base_url"`
	Token      string `yaml:"token"`
	APIVersion string `yaml:"api_version"`
}

type CatalogConfig struct {
	BaseURL string `yaml:"base_url"`
	Token   string `yaml:"token"`
}

type WorkerConfig struct {
	Count        int    `yaml:"count"`
	PollInterval string `yaml:"poll_interval"`
	StaleAfter   string `yaml:"stale_after"`
}

type BridgeConfig struct {
	PollInterval string `yaml:"poll_interval"`
	BatchSize    int    `yaml:"batch_size"`
}

type SchedulerConfig struct {
	Interval string `yaml:"interval"`
	Enabled  bool   `yaml:"enabled"`
}

type JobsConfig struct {
	// MaxItemsPerJob caps how many units a single bulk request may expand
	// to; oversized collections are sampled down to the cap.
	MaxItemsPerJob int              `yaml:"max_items_per_job"`
	ItemCosts      map[string]int64 `yaml:"item_costs"`
}

type BillingConfig struct {
	CycleDays int `yaml:"cycle_days"`
}

func LoadConfig(configPath string) (*Config, error) {
	cfg, err := yamlenv.LoadConfig[Config](configPath)
	if err != nil {
		return nil, err
	}

	ApplyDefaults(cfg)

	return cfg, nil
}

// ApplyDefaults fills zero-valued fields with working defaults.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 5560
	}
	if cfg.Server.Mode == "" {
		cfg.Server.Mode = "debug"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.TimeZone == "" {
		cfg.Database.TimeZone = "UTC"
	}
	if cfg.Generator.APIVersion == "" {
		cfg.Generator.APIVersion = "2024-06-01"
	}
	if cfg.Worker.Count == 0 {
		cfg.Worker.Count = 4
	}
	if cfg.Worker.PollInterval == "" {
		cfg.Worker.PollInterval = "2s"
	}
	if cfg.Worker.StaleAfter == "" {
		cfg.Worker.StaleAfter = "30m"
	}
	if cfg.Bridge.PollInterval == "" {
		cfg.Bridge.PollInterval = "15s"
	}
	if cfg.Bridge.BatchSize == 0 {
		cfg.Bridge.BatchSize = 20
	}
	if cfg.Scheduler.Interval == "" {
		cfg.Scheduler.Interval = "1m"
	}
	if cfg.Jobs.MaxItemsPerJob == 0 {
		cfg.Jobs.MaxItemsPerJob = 250
	}
	if cfg.Jobs.ItemCosts == nil {
		cfg.Jobs.ItemCosts = map[string]int64{
			"text_optimize":  1,
			"image_optimize": 2,
			"blog_post":      15,
		}
	}
	if cfg.Billing.CycleDays == 0 {
		cfg.Billing.CycleDays = 30
	}
}
