package manager

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"bdsgp/internal/history"
	"bdsgp/internal/upstream"
)

// DefaultConfigFile is read from the working directory when no path is given.
const DefaultConfigFile = "bdsgp.config"

// Config is the on-disk JSON configuration.
type Config struct {
	Port                   int             `json:"port"`
	LogFile                string          `json:"log_file"`
	DatabasePath           string          `json:"database_path"`
	RefreshIntervalSeconds int             `json:"refresh_interval_seconds"`
	HistoryRetentionHours  int             `json:"history_retention_hours"`
	MaxChartSeries         int             `json:"max_chart_series"`
	ChartLabelLayout       string          `json:"chart_label_layout"`
	ChartPalette           []string        `json:"chart_palette,omitempty"`
	DiscordWebhook         string          `json:"discord_webhook"`
	RateLimitPerMinute     int             `json:"rate_limit_per_minute"`
	VerboseHTTP            bool            `json:"verbose_http"`
	AllowIFrame            bool            `json:"allow_iframe"`
	Upstream               upstream.Config `json:"upstream"`
}

// DefaultConfig returns the settings used when the file omits a field.
func DefaultConfig() Config {
	return Config{
		Port:                   8080,
		DatabasePath:           filepath.Join("data", "bdsgp.db"),
		RefreshIntervalSeconds: 300,
		HistoryRetentionHours:  72,
		MaxChartSeries:         history.MaxChartSeries,
		ChartLabelLayout:       history.DefaultLabelLayout,
		RateLimitPerMinute:     100,
		Upstream:               upstream.DefaultConfig(),
	}
}

// LoadConfig reads path over the defaults. A missing file is created with
// the defaults so operators have something to edit.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if strings.TrimSpace(path) == "" {
		path = DefaultConfigFile
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		if werr := SaveConfig(path, cfg); werr != nil {
			return cfg, fmt.Errorf("write default configuration: %w", werr)
		}
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read configuration: %w", err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return DefaultConfig(), fmt.Errorf("error parsing configuration: %w", err)
	}
	cfg.normalize()
	return cfg, nil
}

// SaveConfig writes cfg as indented JSON.
func SaveConfig(path string, cfg Config) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func (c *Config) normalize() {
	def := DefaultConfig()
	if c.Port < 1 || c.Port > 65535 {
		c.Port = def.Port
	}
	if c.RefreshIntervalSeconds < 10 {
		c.RefreshIntervalSeconds = def.RefreshIntervalSeconds
	}
	if c.HistoryRetentionHours <= 0 {
		c.HistoryRetentionHours = def.HistoryRetentionHours
	}
	if c.MaxChartSeries <= 0 {
		c.MaxChartSeries = def.MaxChartSeries
	}
	if strings.TrimSpace(c.ChartLabelLayout) == "" {
		c.ChartLabelLayout = def.ChartLabelLayout
	}
	if c.RateLimitPerMinute <= 0 {
		c.RateLimitPerMinute = def.RateLimitPerMinute
	}
	c.DatabasePath = strings.TrimSpace(c.DatabasePath)
	c.DiscordWebhook = strings.TrimSpace(c.DiscordWebhook)
	c.LogFile = strings.TrimSpace(c.LogFile)
}

// RefreshInterval is the directory polling period.
func (c Config) RefreshInterval() time.Duration {
	return time.Duration(c.RefreshIntervalSeconds) * time.Second
}

// Retention is how long locally recorded samples are kept.
func (c Config) Retention() time.Duration {
	return time.Duration(c.HistoryRetentionHours) * time.Hour
}
