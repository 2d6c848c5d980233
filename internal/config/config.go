package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ProjectType represents the type of project detected.
type ProjectType string

const (
	ProjectTypeGo      ProjectType = "go"
	ProjectTypeNode    ProjectType = "node"
	ProjectTypePython  ProjectType = "python"
	ProjectTypeUnknown ProjectType = "unknown"
)

// Config is the settings surface: a master switch plus the GPU embedding
// provider's options. Everything else about a run (collection name,
// concurrency, paths to index) is a CLI flag, not a persisted setting.
type Config struct {
	Enabled      bool               `yaml:"enabled" json:"enabled"`
	GPUEmbedding GPUEmbeddingConfig `yaml:"gpu_embeddings" json:"gpu_embeddings"`
}

// GPUEmbeddingConfig configures the GPU-resident embedding provider.
type GPUEmbeddingConfig struct {
	Enabled      bool   `yaml:"enabled" json:"enabled"`
	ModelPath    string `yaml:"model_path" json:"model_path"`
	Device       string `yaml:"device" json:"device"` // auto, cuda, metal, cpu
	BatchSize    int    `yaml:"batch_size" json:"batch_size"`
	Quantization string `yaml:"quantization" json:"quantization"` // none, int8
	QdrantURL    string `yaml:"qdrant_url" json:"qdrant_url"`
}

// NewConfig returns a Config populated with the documented defaults.
func NewConfig() *Config {
	return &Config{
		Enabled: true,
		GPUEmbedding: GPUEmbeddingConfig{
			Enabled:      false,
			ModelPath:    "",
			Device:       "auto",
			BatchSize:    32,
			Quantization: "int8",
			QdrantURL:    "http://localhost:6334",
		},
	}
}

// GetUserConfigPath returns the path to the user/global configuration file.
// It follows the XDG Base Directory specification:
//   - $XDG_CONFIG_HOME/codesem/config.yaml (if XDG_CONFIG_HOME is set)
//   - ~/.config/codesem/config.yaml (default)
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "codesem", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "codesem", "config.yaml")
	}
	return filepath.Join(home, ".config", "codesem", "config.yaml")
}

// GetUserConfigDir returns the directory containing the user configuration.
func GetUserConfigDir() string {
	return filepath.Dir(GetUserConfigPath())
}

// UserConfigExists reports whether the user configuration file exists.
func UserConfigExists() bool {
	return fileExists(GetUserConfigPath())
}

// loadUserConfig loads the user/global configuration file if it exists.
// A missing file is not an error; it returns (nil, nil).
func loadUserConfig() (*Config, error) {
	configPath := GetUserConfigPath()
	if !fileExists(configPath) {
		return nil, nil
	}

	cfg := NewConfig()
	if err := cfg.loadYAML(configPath); err != nil {
		return nil, fmt.Errorf("failed to load user config from %s: %w", configPath, err)
	}
	return cfg, nil
}

// Load loads configuration for dir in order of increasing precedence:
//  1. hardcoded defaults
//  2. user/global config (~/.config/codesem/config.yaml)
//  3. project config (.codesem.yaml in dir)
//  4. CODESEM_* environment variables
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if userCfg, err := loadUserConfig(); err != nil {
		return nil, fmt.Errorf("failed to load user config: %w", err)
	} else if userCfg != nil {
		cfg.mergeWith(userCfg)
	}

	if err := cfg.loadFromFile(dir); err != nil {
		return nil, err
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// loadFromFile loads .codesem.yaml or .codesem.yml from dir, if present.
func (c *Config) loadFromFile(dir string) error {
	yamlPath := filepath.Join(dir, ".codesem.yaml")
	if fileExists(yamlPath) {
		return c.loadYAML(yamlPath)
	}

	ymlPath := filepath.Join(dir, ".codesem.yml")
	if fileExists(ymlPath) {
		return c.loadYAML(ymlPath)
	}

	return nil
}

func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	c.mergeWith(&parsed)
	return nil
}

// mergeWith overlays other's explicitly-set fields onto c. Booleans are
// always taken from other since there is no YAML-level way to distinguish
// "false" from "absent"; string/int/float fields are only overlaid when
// non-zero.
func (c *Config) mergeWith(other *Config) {
	c.Enabled = other.Enabled

	g, o := &c.GPUEmbedding, &other.GPUEmbedding
	g.Enabled = o.Enabled
	if o.ModelPath != "" {
		g.ModelPath = o.ModelPath
	}
	if o.Device != "" {
		g.Device = o.Device
	}
	if o.BatchSize != 0 {
		g.BatchSize = o.BatchSize
	}
	if o.Quantization != "" {
		g.Quantization = o.Quantization
	}
	if o.QdrantURL != "" {
		g.QdrantURL = o.QdrantURL
	}
}

// applyEnvOverrides applies CODESEM_* environment variable overrides, the
// highest-precedence configuration layer.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("CODESEM_ENABLED"); v != "" {
		c.Enabled = strings.EqualFold(v, "true") || v == "1"
	}
	if v := os.Getenv("CODESEM_GPU_EMBEDDINGS_ENABLED"); v != "" {
		c.GPUEmbedding.Enabled = strings.EqualFold(v, "true") || v == "1"
	}
	if v := os.Getenv("CODESEM_GPU_EMBEDDINGS_MODEL_PATH"); v != "" {
		c.GPUEmbedding.ModelPath = v
	}
	if v := os.Getenv("CODESEM_GPU_EMBEDDINGS_DEVICE"); v != "" {
		c.GPUEmbedding.Device = v
	}
	if v := os.Getenv("CODESEM_GPU_EMBEDDINGS_BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.GPUEmbedding.BatchSize = n
		}
	}
	if v := os.Getenv("CODESEM_GPU_EMBEDDINGS_QUANTIZATION"); v != "" {
		c.GPUEmbedding.Quantization = v
	}
	if v := os.Getenv("CODESEM_GPU_EMBEDDINGS_QDRANT_URL"); v != "" {
		c.GPUEmbedding.QdrantURL = v
	}
}

// Validate checks the configuration for internally inconsistent values.
func (c *Config) Validate() error {
	switch c.GPUEmbedding.Device {
	case "auto", "cuda", "metal", "cpu":
	default:
		return fmt.Errorf("gpu_embeddings.device must be one of auto, cuda, metal, cpu, got %q", c.GPUEmbedding.Device)
	}

	switch c.GPUEmbedding.Quantization {
	case "none", "int8":
	default:
		return fmt.Errorf("gpu_embeddings.quantization must be 'none' or 'int8', got %q", c.GPUEmbedding.Quantization)
	}

	if c.GPUEmbedding.BatchSize < 0 {
		return fmt.Errorf("gpu_embeddings.batch_size must be non-negative, got %d", c.GPUEmbedding.BatchSize)
	}

	return nil
}

// WriteYAML writes the configuration to path as YAML.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// LoadUserConfig loads the user configuration file, or (nil, nil) if absent.
func LoadUserConfig() (*Config, error) {
	return loadUserConfig()
}

// MergeNewDefaults fills zero-valued fields in c with defaults, returning
// the dotted field names that were filled in. Used by `codesem config init
// --force` to upgrade an existing config without discarding its settings.
func (c *Config) MergeNewDefaults() []string {
	defaults := NewConfig()
	var added []string

	if c.GPUEmbedding.Device == "" {
		c.GPUEmbedding.Device = defaults.GPUEmbedding.Device
		added = append(added, "gpu_embeddings.device")
	}
	if c.GPUEmbedding.BatchSize == 0 {
		c.GPUEmbedding.BatchSize = defaults.GPUEmbedding.BatchSize
		added = append(added, "gpu_embeddings.batch_size")
	}
	if c.GPUEmbedding.Quantization == "" {
		c.GPUEmbedding.Quantization = defaults.GPUEmbedding.Quantization
		added = append(added, "gpu_embeddings.quantization")
	}
	if c.GPUEmbedding.QdrantURL == "" {
		c.GPUEmbedding.QdrantURL = defaults.GPUEmbedding.QdrantURL
		added = append(added, "gpu_embeddings.qdrant_url")
	}

	return added
}

// DetectProjectType detects the project type based on marker files.
func DetectProjectType(dir string) ProjectType {
	if fileExists(filepath.Join(dir, "go.mod")) {
		return ProjectTypeGo
	}
	if fileExists(filepath.Join(dir, "package.json")) {
		return ProjectTypeNode
	}
	if fileExists(filepath.Join(dir, "pyproject.toml")) || fileExists(filepath.Join(dir, "requirements.txt")) {
		return ProjectTypePython
	}
	return ProjectTypeUnknown
}

// FindProjectRoot walks up from startDir looking for a .git directory or a
// .codesem.yaml/.yml file, returning startDir itself if neither is found.
func FindProjectRoot(startDir string) (string, error) {
	absDir, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}

	currentDir := absDir
	for {
		if dirExists(filepath.Join(currentDir, ".git")) {
			return currentDir, nil
		}
		if fileExists(filepath.Join(currentDir, ".codesem.yaml")) || fileExists(filepath.Join(currentDir, ".codesem.yml")) {
			return currentDir, nil
		}

		parentDir := filepath.Dir(currentDir)
		if parentDir == currentDir {
			return absDir, nil
		}
		currentDir = parentDir
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}

// String returns a string representation of ProjectType.
func (p ProjectType) String() string {
	return string(p)
}

// IsKnown reports whether the project type is known (not unknown).
func (p ProjectType) IsKnown() bool {
	return p != ProjectTypeUnknown
}
