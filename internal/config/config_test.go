package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	tests := []struct {
		name     string
		got      interface{}
		expected interface{}
	}{
		{"Receiver", cfg.Receiver, "self"},
		{"Method", cfg.Method, "forward"},
		{"SegmentName", cfg.SegmentName, "%s_part%d"},
		{"IndentWidth", cfg.IndentWidth, 4},
		{"Strict", cfg.Strict, false},
		{"Format", cfg.Format, FormatPython},
		{"CacheSize", cfg.CacheSize, 16},
		{"Verbose", cfg.Verbose, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("DefaultConfig().%s = %v, want %v", tt.name, tt.got, tt.expected)
			}
		})
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("DefaultConfig().Validate() = %v, want nil", err)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name        string
		modify      func(*Config)
		errContains string
	}{
		{name: "defaults", modify: func(c *Config) {}},
		{name: "empty receiver", modify: func(c *Config) { c.Receiver = "" }},
		{name: "custom format order", modify: func(c *Config) { c.SegmentName = "stage_%s_%d" }},
		{name: "bad receiver", modify: func(c *Config) { c.Receiver = "self.x" }, errContains: "receiver"},
		{name: "bad method", modify: func(c *Config) { c.Method = "2fast" }, errContains: "method"},
		{name: "segment name without number", modify: func(c *Config) { c.SegmentName = "%s_part" }, errContains: "segment_name"},
		{name: "segment name extra verb", modify: func(c *Config) { c.SegmentName = "%s_%d_%v" }, errContains: "segment_name"},
		{name: "segment name reversed", modify: func(c *Config) { c.SegmentName = "p%d_%s" }, errContains: "before"},
		{name: "zero indent", modify: func(c *Config) { c.IndentWidth = 0 }, errContains: "indent_width"},
		{name: "negative cache", modify: func(c *Config) { c.CacheSize = -1 }, errContains: "cache_size"},
		{name: "unknown format", modify: func(c *Config) { c.Format = "xml" }, errContains: "invalid format"},
		{name: "bad extra global", modify: func(c *Config) { c.ExtraGlobals = []string{"a-b"} }, errContains: "extra name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.errContains == "" {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.errContains) {
				t.Errorf("Validate() = %v, want error containing %q", err, tt.errContains)
			}
		})
	}
}

func TestLoadPriority(t *testing.T) {
	dir := t.TempDir()
	globalPath := filepath.Join(dir, "global.yaml")
	projectPath := filepath.Join(dir, "project.yaml")

	writeFile(t, globalPath, "method: call\nindent_width: 2\ncache_size: 4\nformat: json\n")
	writeFile(t, projectPath, "format: yaml\n")
	t.Setenv("FSPLIT_INDENT_WIDTH", "8")
	t.Setenv("FSPLIT_FORMAT", "msgpack")
	t.Setenv("FSPLIT_EXTRA_GLOBALS", "torch, np")

	cfg, err := load(globalPath, projectPath)
	if err != nil {
		t.Fatalf("load() error = %v", err)
	}

	if cfg.Method != "call" {
		t.Errorf("Method = %q, want global value %q", cfg.Method, "call")
	}
	if cfg.CacheSize != 4 {
		t.Errorf("CacheSize = %d, want global value 4", cfg.CacheSize)
	}
	if cfg.IndentWidth != 8 {
		t.Errorf("IndentWidth = %d, want env value 8", cfg.IndentWidth)
	}
	if cfg.Format != FormatYAML {
		t.Errorf("Format = %q, want project value %q", cfg.Format, FormatYAML)
	}
	if !reflect.DeepEqual(cfg.ExtraGlobals, []string{"torch", "np"}) {
		t.Errorf("ExtraGlobals = %v", cfg.ExtraGlobals)
	}
}

func TestLoadMissingFiles(t *testing.T) {
	dir := t.TempDir()
	cfg, err := load(filepath.Join(dir, "none.yaml"), filepath.Join(dir, "nope.yaml"))
	if err != nil {
		t.Fatalf("load() error = %v", err)
	}
	if !reflect.DeepEqual(cfg, DefaultConfig()) {
		t.Errorf("load() = %+v, want defaults", cfg)
	}
}

func TestLoadInvalid(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.yaml")

	writeFile(t, bad, "indent_width: [\n")
	if _, err := load(bad, ""); err == nil || !strings.Contains(err.Error(), "failed to parse") {
		t.Errorf("load() with broken YAML = %v", err)
	}

	writeFile(t, bad, "format: xml\n")
	if _, err := load(bad, ""); err == nil || !strings.Contains(err.Error(), "invalid format") {
		t.Errorf("load() with invalid format = %v", err)
	}

	t.Setenv("FSPLIT_CACHE_SIZE", "many")
	if _, err := load("", ""); err == nil || !strings.Contains(err.Error(), "FSPLIT_CACHE_SIZE") {
		t.Errorf("load() with bad env = %v", err)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("FSPLIT_RECEIVER", "")
	t.Setenv("FSPLIT_STRICT", "yes")
	t.Setenv("FSPLIT_VERBOSE", "0")
	t.Setenv("FSPLIT_LOG_JSON", "on")
	t.Setenv("FSPLIT_EXTRA_BUILTINS", "xm\tshard")
	t.Setenv("FSPLIT_SEGMENT_NAME", "%s_stage%d")

	cfg := DefaultConfig()
	if err := applyEnvOverrides(cfg); err != nil {
		t.Fatalf("applyEnvOverrides() error = %v", err)
	}

	if cfg.Receiver != "" {
		t.Errorf("Receiver = %q, want empty", cfg.Receiver)
	}
	if !cfg.Strict || cfg.Verbose || !cfg.LogJSON {
		t.Errorf("Strict/Verbose/LogJSON = %v/%v/%v", cfg.Strict, cfg.Verbose, cfg.LogJSON)
	}
	if !reflect.DeepEqual(cfg.ExtraBuiltins, []string{"xm", "shard"}) {
		t.Errorf("ExtraBuiltins = %v", cfg.ExtraBuiltins)
	}
	if cfg.SegmentName != "%s_stage%d" {
		t.Errorf("SegmentName = %q", cfg.SegmentName)
	}
}

func TestConfigSave(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "nested", "dir", "config.yaml")

	cfg := DefaultConfig()
	cfg.Receiver = "model"
	cfg.ExtraGlobals = []string{"torch"}
	cfg.Strict = true

	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}
	if !reflect.DeepEqual(cfg, loaded) {
		t.Errorf("LoadFromFile() = %+v, want %+v", loaded, cfg)
	}
}

func TestLoadFromFileMissing(t *testing.T) {
	if _, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("LoadFromFile() on missing file should fail")
	}
}

func TestParseInt(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"4", 4, false},
		{" 16 ", 16, false},
		{"-1", -1, false},
		{"abc", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		got, err := parseInt(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("parseInt(%q) = %d, %v", tt.in, got, err)
		}
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
}
