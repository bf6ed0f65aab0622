package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	LogLevel int `yaml:"log_level"`

	Server   ServerConfig   `yaml:"server"`
	Storage  StorageConfig  `yaml:"storage"`
	Poll     PollConfig     `yaml:"poll"`
	Viewport ViewportConfig `yaml:"viewport"`
	Results  ResultsConfig  `yaml:"results"`
}

type ServerConfig struct {
	Port string `yaml:"port"`

	// BaseURL is where the CLI reaches the check service.
	BaseURL string `yaml:"base_url"`

	// JobRetention is how long finished jobs stay queryable.
	JobRetention time.Duration `yaml:"job_retention"`

	// StepDelay slows down the fixture checker so progress is observable.
	StepDelay time.Duration `yaml:"step_delay"`
}

type StorageConfig struct {
	// Type of storage: "local" or "gcs"
	Type string `yaml:"type"`

	// Local storage options
	OutputDir string `yaml:"output_dir"`

	// GCS options
	Bucket          string `yaml:"bucket"`
	ObjectPrefix    string `yaml:"object_prefix"`
	CredentialsFile string `yaml:"credentials_file"`
}

type PollConfig struct {
	Interval          time.Duration `yaml:"interval"`
	MaxBackoff        time.Duration `yaml:"max_backoff"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
}

type ViewportConfig struct {
	ReadyTimeout    time.Duration `yaml:"ready_timeout"`
	DefaultBoxSize  float64       `yaml:"default_box_size"`
	MinRenderedSize float64       `yaml:"min_rendered_size"`
}

type ResultsConfig struct {
	PageSize int `yaml:"page_size"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var config *Config

	// Unmarshal the YAML data into the struct
	err = yaml.Unmarshal(data, &config)
	if err != nil {
		return nil, err
	}
	if config == nil {
		config = &Config{}
	}

	config.applyDefaults()
	return config, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.Server.BaseURL == "" {
		c.Server.BaseURL = "http://localhost:" + c.Server.Port
	}
	if c.Server.JobRetention <= 0 {
		c.Server.JobRetention = 24 * time.Hour
	}

	if c.Storage.Type == "" {
		c.Storage.Type = "local"
	}
	if c.Storage.OutputDir == "" {
		c.Storage.OutputDir = "output"
	}

	if c.Poll.Interval <= 0 {
		c.Poll.Interval = 500 * time.Millisecond
	}
	if c.Poll.MaxBackoff <= 0 {
		c.Poll.MaxBackoff = 5 * time.Second
	}
	if c.Poll.RequestsPerSecond <= 0 {
		c.Poll.RequestsPerSecond = 10
	}

	if c.Viewport.ReadyTimeout <= 0 {
		c.Viewport.ReadyTimeout = 5 * time.Second
	}
	if c.Viewport.DefaultBoxSize <= 0 {
		c.Viewport.DefaultBoxSize = 100
	}
	if c.Viewport.MinRenderedSize <= 0 {
		c.Viewport.MinRenderedSize = 10
	}

	if c.Results.PageSize <= 0 {
		c.Results.PageSize = 20
	}
}
