// Package config holds all harvester configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"harvester/internal/logging"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration loaded from harvester.yaml.
type Config struct {
	// Target application
	BaseURL  string `yaml:"base_url"`
	LoginURL string `yaml:"login_url"`

	// Working directories
	OutputDir     string `yaml:"output_dir"`
	CheckpointDir string `yaml:"checkpoint_dir"`
	ArtifactDir   string `yaml:"artifact_dir"`
	AuthStateDir  string `yaml:"auth_state_dir"`

	// Extraction behavior
	CheckpointFrequency   int `yaml:"checkpoint_frequency"`
	MaxRetries            int `yaml:"max_retries"`
	MaxParallelPartitions int `yaml:"max_parallel_partitions"`

	// Timeouts, duration strings ("5s", "300s")
	LoginTimeout     string `yaml:"login_timeout"`
	IndicatorTimeout string `yaml:"indicator_timeout"`
	NavTimeout       string `yaml:"nav_timeout"`

	Browser    BrowserConfig     `yaml:"browser"`
	Oracle     OracleConfig      `yaml:"oracle"`
	Selectors  SelectorConfig    `yaml:"selectors"`
	Logging    logging.Config    `yaml:"logging"`
	Partitions []PartitionConfig `yaml:"partitions"`
}

// PartitionConfig identifies one independently checkpointed catalog segment.
type PartitionConfig struct {
	ID    string `yaml:"id"`
	Label string `yaml:"label"`
}

// BrowserConfig configures the rod-driven browser.
type BrowserConfig struct {
	DebuggerURL    string `yaml:"debugger_url"` // attach instead of launching
	Bin            string `yaml:"bin"`
	Headless       bool   `yaml:"headless"`
	ViewportWidth  int    `yaml:"viewport_width"`
	ViewportHeight int    `yaml:"viewport_height"`
}

// OracleConfig configures the diagnostic oracle client.
type OracleConfig struct {
	APIKey  string `yaml:"api_key"` // HARVESTER_ORACLE_API_KEY overrides
	Model   string `yaml:"model"`
	Timeout string `yaml:"timeout"`
}

// SelectorConfig is the DOM contract with the target application.
// The defaults match the reference catalog layout; deployments override
// them in yaml.
type SelectorConfig struct {
	LoggedInIndicator string `yaml:"logged_in_indicator"`
	CatalogLink       string `yaml:"catalog_link"`
	PartitionLink     string `yaml:"partition_link"` // expanded with the partition id
	ItemList          string `yaml:"item_list"`
	Item              string `yaml:"item"`
	ItemIDAttr        string `yaml:"item_id_attr"`
	NextPage          string `yaml:"next_page"`
	DetailPane        string `yaml:"detail_pane"`
	DetailClose       string `yaml:"detail_close"`
	RecordTitle       string `yaml:"record_title"`
	RecordField       string `yaml:"record_field"`
	Figures           string `yaml:"figures"`
	Tables            string `yaml:"tables"`
	RelatedText       string `yaml:"related_text"`
}

// Default returns the baseline configuration.
func Default() Config {
	return Config{
		OutputDir:             "out/records",
		CheckpointDir:         "out/checkpoints",
		ArtifactDir:           filepath.Join(os.TempDir(), "harvester-artifacts"),
		AuthStateDir:          "out/auth",
		CheckpointFrequency:   10,
		MaxRetries:            3,
		MaxParallelPartitions: 1,
		LoginTimeout:          "300s",
		IndicatorTimeout:      "5s",
		NavTimeout:            "30s",
		Browser: BrowserConfig{
			Headless:       true,
			ViewportWidth:  1920,
			ViewportHeight: 1080,
		},
		Oracle: OracleConfig{
			Model:   "gemini-2.5-flash",
			Timeout: "60s",
		},
		Selectors: SelectorConfig{
			LoggedInIndicator: "[data-testid='user-menu']",
			CatalogLink:       "a[href='/catalog']",
			PartitionLink:     "a[data-subject='%s']",
			ItemList:          "[data-testid='item-list']",
			Item:              "[data-testid='item-row']",
			ItemIDAttr:        "data-item-id",
			NextPage:          "button[aria-label='Next page']",
			DetailPane:        "[data-testid='item-detail']",
			DetailClose:       "button[aria-label='Close']",
			RecordTitle:       "h1",
			RecordField:       "dl > div",
			Figures:           "figure",
			Tables:            "table",
			RelatedText:       "[data-testid='related-text']",
		},
		Logging: logging.Config{Level: "info"},
	}
}

// Load reads the yaml file at path over the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if key := os.Getenv("HARVESTER_ORACLE_API_KEY"); key != "" {
		cfg.Oracle.APIKey = key
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks fields the orchestrator cannot default.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base_url is required")
	}
	if c.LoginURL == "" {
		c.LoginURL = c.BaseURL + "/login"
	}
	if len(c.Partitions) == 0 {
		return fmt.Errorf("at least one partition is required")
	}
	for i, p := range c.Partitions {
		if p.ID == "" {
			return fmt.Errorf("partition %d: id is required", i)
		}
	}
	return nil
}

func parseTimeout(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// LoginWait is the bounded interactive-login wait.
func (c *Config) LoginWait() time.Duration { return parseTimeout(c.LoginTimeout, 300*time.Second) }

// IndicatorWait is the short logged-in indicator probe timeout.
func (c *Config) IndicatorWait() time.Duration {
	return parseTimeout(c.IndicatorTimeout, 5*time.Second)
}

// NavWait bounds each navigation / UI interaction step.
func (c *Config) NavWait() time.Duration { return parseTimeout(c.NavTimeout, 30*time.Second) }

// OracleTimeout bounds a single oracle call.
func (c *OracleConfig) OracleTimeout() time.Duration {
	return parseTimeout(c.Timeout, 60*time.Second)
}

// AuthStatePath returns the per-partition auth artifact path.
func (c *Config) AuthStatePath(partitionID string) string {
	return filepath.Join(c.AuthStateDir, partitionID+".json")
}
