package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Format names the output encoding of split results.
type Format string

const (
	FormatPython  Format = "python"
	FormatJSON    Format = "json"
	FormatYAML    Format = "yaml"
	FormatMsgpack Format = "msgpack"
)

// Config holds all configuration for fsplit
type Config struct {
	// Receiver is the instance parameter name used for snippets
	Receiver string `yaml:"receiver" env:"FSPLIT_RECEIVER"`

	// Method is the method split when none is given on the command line
	Method string `yaml:"method" env:"FSPLIT_METHOD"`

	// SegmentName is a fmt pattern taking the function name and segment number
	SegmentName string `yaml:"segment_name" env:"FSPLIT_SEGMENT_NAME"`

	// IndentWidth is the indentation of rendered segment bodies
	IndentWidth int `yaml:"indent_width" env:"FSPLIT_INDENT_WIDTH"`

	// Names the analyzed module gets from outside its own top level
	ExtraGlobals  []string `yaml:"extra_globals" env:"FSPLIT_EXTRA_GLOBALS"`
	ExtraBuiltins []string `yaml:"extra_builtins" env:"FSPLIT_EXTRA_BUILTINS"`

	// Strict turns cycle and unresolved-local warnings into errors
	Strict bool `yaml:"strict" env:"FSPLIT_STRICT"`

	// Format is the default output format
	Format Format `yaml:"format" env:"FSPLIT_FORMAT"`

	// CacheSize bounds the number of parsed modules kept in memory
	CacheSize int `yaml:"cache_size" env:"FSPLIT_CACHE_SIZE"`

	// Logging
	Verbose bool `yaml:"verbose" env:"FSPLIT_VERBOSE"`
	LogJSON bool `yaml:"log_json" env:"FSPLIT_LOG_JSON"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Receiver:      "self",
		Method:        "forward",
		SegmentName:   "%s_part%d",
		IndentWidth:   4,
		ExtraGlobals:  []string{},
		ExtraBuiltins: []string{},
		Strict:        false,
		Format:        FormatPython,
		CacheSize:     16,
		Verbose:       false,
		LogJSON:       false,
	}
}

// GlobalConfigFilePath returns the global config file path (~/.fsplit/config.yaml)
func GlobalConfigFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".fsplit", "config.yaml")
	}
	return filepath.Join(home, ".fsplit", "config.yaml")
}

// ProjectConfigFilePath returns the project-level config file path (./.fsplit/config.yaml)
func ProjectConfigFilePath() string {
	return filepath.Join(".fsplit", "config.yaml")
}

// Load reads configuration with the following priority (highest to lowest):
// 1. Project-level config (./.fsplit/config.yaml)
// 2. Environment variables, including those from ./.env
// 3. Global config (~/.fsplit/config.yaml)
// 4. Defaults
func Load() (*Config, error) {
	_ = godotenv.Load()
	return load(GlobalConfigFilePath(), ProjectConfigFilePath())
}

func load(globalPath, projectPath string) (*Config, error) {
	cfg := DefaultConfig()

	if err := mergeFile(cfg, globalPath); err != nil {
		return nil, err
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := mergeFile(cfg, projectPath); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// mergeFile overlays the YAML file at path onto cfg. A missing file is
// not an error.
func mergeFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// LoadFromFile reads configuration from a specific YAML file path
func LoadFromFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	if data, err := os.ReadFile(path); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes the configuration to the specified YAML file path.
// It creates parent directories if they don't exist.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file %s: %w", path, err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides to the config
func applyEnvOverrides(cfg *Config) error {
	if v, ok := os.LookupEnv("FSPLIT_RECEIVER"); ok {
		// An empty receiver is meaningful: snippets are free functions.
		cfg.Receiver = v
	}
	if v := os.Getenv("FSPLIT_METHOD"); v != "" {
		cfg.Method = v
	}
	if v := os.Getenv("FSPLIT_SEGMENT_NAME"); v != "" {
		cfg.SegmentName = v
	}
	if v := os.Getenv("FSPLIT_INDENT_WIDTH"); v != "" {
		i, err := parseInt(v)
		if err != nil {
			return fmt.Errorf("FSPLIT_INDENT_WIDTH: %w", err)
		}
		cfg.IndentWidth = i
	}
	if v := os.Getenv("FSPLIT_EXTRA_GLOBALS"); v != "" {
		cfg.ExtraGlobals = splitList(v)
	}
	if v := os.Getenv("FSPLIT_EXTRA_BUILTINS"); v != "" {
		cfg.ExtraBuiltins = splitList(v)
	}
	if v := os.Getenv("FSPLIT_STRICT"); v != "" {
		cfg.Strict = parseBool(v)
	}
	if v := os.Getenv("FSPLIT_FORMAT"); v != "" {
		cfg.Format = Format(strings.ToLower(v))
	}
	if v := os.Getenv("FSPLIT_CACHE_SIZE"); v != "" {
		i, err := parseInt(v)
		if err != nil {
			return fmt.Errorf("FSPLIT_CACHE_SIZE: %w", err)
		}
		cfg.CacheSize = i
	}
	if v := os.Getenv("FSPLIT_VERBOSE"); v != "" {
		cfg.Verbose = parseBool(v)
	}
	if v := os.Getenv("FSPLIT_LOG_JSON"); v != "" {
		cfg.LogJSON = parseBool(v)
	}
	return nil
}

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Validate checks that the configuration has valid required fields
func (c *Config) Validate() error {
	if c.Receiver != "" && !identifierPattern.MatchString(c.Receiver) {
		return fmt.Errorf("receiver %q is not a Python identifier", c.Receiver)
	}
	if c.Method != "" && !identifierPattern.MatchString(c.Method) {
		return fmt.Errorf("method %q is not a Python identifier", c.Method)
	}

	if strings.Count(c.SegmentName, "%s") != 1 || strings.Count(c.SegmentName, "%d") != 1 ||
		strings.Count(c.SegmentName, "%") != 2 {
		return fmt.Errorf("segment_name %q must contain exactly one %%s and one %%d", c.SegmentName)
	}
	if strings.Index(c.SegmentName, "%s") > strings.Index(c.SegmentName, "%d") {
		return fmt.Errorf("segment_name %q must place %%s before %%d", c.SegmentName)
	}

	if c.IndentWidth <= 0 {
		return fmt.Errorf("indent_width must be positive")
	}
	if c.CacheSize < 0 {
		return fmt.Errorf("cache_size must be non-negative")
	}

	switch c.Format {
	case FormatPython, FormatJSON, FormatYAML, FormatMsgpack:
		// Valid
	default:
		return fmt.Errorf("invalid format: %s (must be 'python', 'json', 'yaml' or 'msgpack')", c.Format)
	}

	for _, name := range append(append([]string{}, c.ExtraGlobals...), c.ExtraBuiltins...) {
		if !identifierPattern.MatchString(name) {
			return fmt.Errorf("extra name %q is not a Python identifier", name)
		}
	}

	return nil
}

// parseInt attempts to parse a string as int
func parseInt(s string) (int, error) {
	var i int
	if _, err := fmt.Sscanf(strings.TrimSpace(s), "%d", &i); err != nil {
		return 0, fmt.Errorf("invalid integer %q", s)
	}
	return i, nil
}

func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes", "on":
		return true
	}
	return false
}

// splitList parses a comma or whitespace separated list.
func splitList(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n'
	})
}
