package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/lmmx/arxiv-explorer/internal/embedding"
	"github.com/lmmx/arxiv-explorer/internal/hub"
	"github.com/lmmx/arxiv-explorer/internal/partition"
	"github.com/lmmx/arxiv-explorer/internal/projection"
)

// GlobalConfig represents configuration stored in ~/.config/axp/config.yml.
// Zero values mean "use the default", except umap.min_dist and
// umap.random_state, where zero is a valid setting when written in the file.
type GlobalConfig struct {
	DataDir     string  `yaml:"data_dir,omitempty"`
	DatasetRepo string  `yaml:"dataset_repo,omitempty"`
	Revision    string  `yaml:"revision,omitempty"`
	HFToken     string  `yaml:"hf_token,omitempty"`
	OllamaURL   string  `yaml:"ollama_url,omitempty"`
	Model       string  `yaml:"model,omitempty"`
	Dimensions  int     `yaml:"dimensions,omitempty"`
	BatchSize   int     `yaml:"batch_size,omitempty"`
	Concurrency int     `yaml:"concurrency,omitempty"`
	Throughput  float64 `yaml:"throughput,omitempty"` // papers per second, for estimates

	UMAP projection.Params `yaml:"umap,omitempty"`

	umapSet umapPresence
}

// umapPresence records which zero-valid umap keys the file spelled out.
type umapPresence struct {
	MinDist bool
	Seed    bool
}

// explicitUMAP decodes only the umap keys whose zero value is meaningful.
type explicitUMAP struct {
	UMAP struct {
		MinDist *float64 `yaml:"min_dist"`
		Seed    *int64   `yaml:"random_state"`
	} `yaml:"umap"`
}

const (
	// GlobalConfigDir is the directory name under XDG_CONFIG_HOME.
	GlobalConfigDir = "axp"
	// GlobalConfigFile is the config file name.
	GlobalConfigFile = "config.yml"
)

// Environment variables that override the file.
const (
	EnvHFToken    = "HF_TOKEN"
	EnvDataDir    = "AXP_DATA_DIR"
	EnvOllamaHost = "OLLAMA_HOST"
)

// globalConfigCache caches the loaded global config.
var globalConfigCache *GlobalConfig

// GlobalConfigPath returns the path to the global config file.
// Respects XDG_CONFIG_HOME, defaults to ~/.config/axp/config.yml.
func GlobalConfigPath() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, GlobalConfigDir, GlobalConfigFile)
}

// LoadGlobalConfig loads the global configuration file, applies
// environment overrides and fills defaults. A missing file is not an
// error.
func LoadGlobalConfig() (*GlobalConfig, error) {
	if globalConfigCache != nil {
		return globalConfigCache, nil
	}

	cfg, err := ReadGlobalConfig(GlobalConfigPath())
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv()
	cfg.ApplyDefaults()

	globalConfigCache = cfg
	return cfg, nil
}

// ReadGlobalConfig parses the file at path as-is, without overrides or
// defaults. A missing file or empty path yields an empty config.
func ReadGlobalConfig(path string) (*GlobalConfig, error) {
	if path == "" {
		return &GlobalConfig{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &GlobalConfig{}, nil
		}
		return nil, fmt.Errorf("reading global config: %w", err)
	}

	var cfg GlobalConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing global config: %w", err)
	}
	var explicit explicitUMAP
	if err := yaml.Unmarshal(data, &explicit); err != nil {
		return nil, fmt.Errorf("parsing global config: %w", err)
	}
	cfg.umapSet = umapPresence{
		MinDist: explicit.UMAP.MinDist != nil,
		Seed:    explicit.UMAP.Seed != nil,
	}
	return &cfg, nil
}

// ResetGlobalConfigCache clears the cached global config.
// Useful for testing.
func ResetGlobalConfigCache() {
	globalConfigCache = nil
}

// ApplyEnv overrides file values with HF_TOKEN, AXP_DATA_DIR and
// OLLAMA_HOST when they are set.
func (c *GlobalConfig) ApplyEnv() {
	if v := os.Getenv(EnvHFToken); v != "" {
		c.HFToken = v
	}
	if v := os.Getenv(EnvDataDir); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv(EnvOllamaHost); v != "" {
		c.OllamaURL = v
	}
}

// ApplyDefaults fills every unset field.
func (c *GlobalConfig) ApplyDefaults() {
	if c.DataDir == "" {
		c.DataDir = DefaultDataDir()
	}
	c.DataDir = ExpandPath(c.DataDir)
	if c.DatasetRepo == "" {
		c.DatasetRepo = hub.DefaultRepo
	}
	if c.Revision == "" {
		c.Revision = hub.DefaultRevision
	}
	if c.OllamaURL == "" {
		c.OllamaURL = embedding.DefaultOllamaURL
	}
	if c.Model == "" {
		c.Model = embedding.DefaultModel
	}
	if c.Dimensions == 0 {
		c.Dimensions = embedding.DefaultDimensions
	}
	if c.BatchSize == 0 {
		c.BatchSize = embedding.DefaultBatchSize
	}
	if c.Concurrency == 0 {
		c.Concurrency = partition.DefaultConcurrency
	}
	if c.Throughput == 0 {
		c.Throughput = partition.DefaultThroughput
	}

	def := projection.DefaultParams()
	if c.UMAP.NNeighbors == 0 {
		c.UMAP.NNeighbors = def.NNeighbors
	}
	if c.UMAP.MinDist == 0 && !c.umapSet.MinDist {
		c.UMAP.MinDist = def.MinDist
	}
	if c.UMAP.Metric == "" {
		c.UMAP.Metric = def.Metric
	}
	if c.UMAP.Seed == 0 && !c.umapSet.Seed {
		c.UMAP.Seed = def.Seed
	}
	if c.UMAP.Epochs == 0 {
		c.UMAP.Epochs = def.Epochs
	}
}

// Validate checks values that would fail later in the pipeline.
func (c *GlobalConfig) Validate() error {
	if c.Dimensions < 0 || c.BatchSize < 0 || c.Concurrency < 0 || c.Throughput < 0 {
		return fmt.Errorf("dimensions, batch_size, concurrency and throughput must not be negative")
	}
	if err := c.UMAP.Validate(); err != nil {
		return fmt.Errorf("umap: %w", err)
	}
	return nil
}

// HelpfulConfigMessage shows where the config file lives.
func HelpfulConfigMessage() string {
	configPath := GlobalConfigPath()
	return fmt.Sprintf(`Configuration is read from %s.

Example:
  mkdir -p %s
  cat > %s <<EOF
  data_dir: ~/arxiv-data
  model: %s
  umap:
    n_neighbors: 15
    min_dist: 0.1
  EOF`,
		configPath,
		filepath.Dir(configPath),
		configPath,
		embedding.DefaultModel)
}
