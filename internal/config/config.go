package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/KaramelBytes/tabula-cli/internal/schema"
	"github.com/KaramelBytes/tabula-cli/internal/utils"
)

// Global configuration structure.
type Global struct {
	StorePath string `mapstructure:"store_path" yaml:"store_path"`
	// Ingestion
	InferSampleRows int      `mapstructure:"infer_sample_rows" yaml:"infer_sample_rows"`
	NullValues      []string `mapstructure:"null_values" yaml:"null_values"`
	Delimiter       string   `mapstructure:"delimiter" yaml:"delimiter"`
	ReconcileOnOpen bool     `mapstructure:"reconcile_on_open" yaml:"reconcile_on_open"`

	// Output
	PreviewRows int    `mapstructure:"preview_rows" yaml:"preview_rows"`
	Output      string `mapstructure:"output" yaml:"output"`

	// Logging
	LogLevel  string `mapstructure:"log_level" yaml:"log_level"`
	LogFormat string `mapstructure:"log_format" yaml:"log_format"`
	LogFile   string `mapstructure:"log_file" yaml:"log_file"`
}

// Dir returns ~/.tabula.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".tabula"), nil
}

// Save writes the given configuration to the cfgFile path. If cfgFile is empty,
// it writes to ~/.tabula/config.yaml, creating the directory if necessary.
func Save(c *Global, cfgFile string) error {
	path := cfgFile
	if path == "" {
		dir, err := Dir()
		if err != nil {
			return err
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir config dir: %w", err)
		}
		path = filepath.Join(dir, "config.yaml")
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := utils.SafeWriteFile(path, b); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Load loads configuration from file, env, and defaults.
// Precedence: flags (cfgFile) > env > config file > defaults.
func Load(cfgFile string) (*Global, error) {
	v := viper.New()
	v.SetEnvPrefix("TABULA")
	v.AutomaticEnv()

	dir, err := Dir()
	if err != nil {
		return nil, err
	}
	v.SetDefault("store_path", filepath.Join(dir, "tabula.db"))
	v.SetDefault("infer_sample_rows", 0)
	v.SetDefault("null_values", schema.DefaultNullValues)
	v.SetDefault("delimiter", "")
	v.SetDefault("reconcile_on_open", true)
	v.SetDefault("preview_rows", 10)
	v.SetDefault("output", "table")
	v.SetDefault("log_level", "warn")
	v.SetDefault("log_format", "text")
	v.SetDefault("log_file", "")

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	// optional read
	_ = v.ReadInConfig()

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if c.StorePath, err = utils.ExpandHome(c.StorePath); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks enumerated and bounded settings.
func (c *Global) Validate() error {
	switch c.Output {
	case "table", "markdown", "json":
	default:
		return fmt.Errorf("output must be table, markdown or json, got %q", c.Output)
	}
	if c.PreviewRows < 0 {
		return fmt.Errorf("preview_rows must be >= 0")
	}
	if c.InferSampleRows < 0 {
		return fmt.Errorf("infer_sample_rows must be >= 0")
	}
	if _, err := c.DelimiterRune(); err != nil {
		return err
	}
	return nil
}

// DelimiterRune returns the configured CSV delimiter; 0 means auto-detect.
// "tab" and "\t" both select a tab.
func (c *Global) DelimiterRune() (rune, error) {
	return ParseDelimiter(c.Delimiter)
}

// ParseDelimiter converts a delimiter setting to a rune.
func ParseDelimiter(s string) (rune, error) {
	switch s {
	case "":
		return 0, nil
	case "tab", `\t`, "\t":
		return '\t', nil
	}
	r := []rune(s)
	if len(r) != 1 {
		return 0, fmt.Errorf("delimiter must be a single character, got %q", s)
	}
	return r[0], nil
}

// SchemaOptions returns the inference settings.
func (c *Global) SchemaOptions() schema.Options {
	return schema.Options{SampleRows: c.InferSampleRows, NullValues: c.NullValues}
}

// Keys lists the settable configuration keys in order.
func Keys() []string {
	keys := []string{
		"store_path", "infer_sample_rows", "null_values", "delimiter", "reconcile_on_open",
		"preview_rows", "output", "log_level", "log_format", "log_file",
	}
	sort.Strings(keys)
	return keys
}

// Set assigns value to key, parsing it for the key's type. null_values takes
// a comma-separated list.
func (c *Global) Set(key, value string) error {
	var err error
	switch key {
	case "store_path":
		c.StorePath = value
	case "infer_sample_rows":
		c.InferSampleRows, err = strconv.Atoi(value)
	case "null_values":
		c.NullValues = nil
		for _, p := range strings.Split(value, ",") {
			if p = strings.TrimSpace(p); p != "" {
				c.NullValues = append(c.NullValues, p)
			}
		}
	case "delimiter":
		c.Delimiter = value
	case "reconcile_on_open":
		c.ReconcileOnOpen, err = strconv.ParseBool(value)
	case "preview_rows":
		c.PreviewRows, err = strconv.Atoi(value)
	case "output":
		c.Output = value
	case "log_level":
		c.LogLevel = value
	case "log_format":
		c.LogFormat = value
	case "log_file":
		c.LogFile = value
	default:
		return fmt.Errorf("unknown config key %q (known: %s)", key, strings.Join(Keys(), ", "))
	}
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	return c.Validate()
}
