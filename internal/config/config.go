package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"khalorg/internal/khal"
	"khalorg/internal/org"
	"khalorg/internal/recur"
)

// Config is the top-level application configuration.
type Config struct {
	// KhalCommand is the khal executable plus any leading arguments, split
	// with shell quoting rules (e.g. "khal -c ~/.config/khal/work").
	KhalCommand string `yaml:"khal_command" json:"khal_command"`

	// Calendar is the default khal calendar when none is given on the
	// command line.
	Calendar string `yaml:"calendar" json:"calendar"`

	// ListFormat is passed to `khal list --format`. It must produce Org
	// headings, one per event.
	ListFormat string `yaml:"list_format" json:"list_format"`

	// OrgFormat is the placeholder template used to render items.
	OrgFormat string `yaml:"org_format" json:"org_format"`

	// HorizonDays is the number of days after the first start in which
	// recurring items are materialized.
	HorizonDays int `yaml:"horizon_days" json:"horizon_days"`

	// MaxOccurrences caps the occurrences materialized per item.
	MaxOccurrences int `yaml:"max_occurrences" json:"max_occurrences"`

	// DateFormat and TimeFormat are Go layouts for the date and time tokens
	// handed to `khal new`.
	DateFormat string `yaml:"date_format" json:"date_format"`
	TimeFormat string `yaml:"time_format" json:"time_format"`

	// PropertyFlags maps Org property names to `khal new` options.
	PropertyFlags map[string]string `yaml:"property_flags" json:"property_flags"`

	// LogLevel is one of DEBUG, INFO, WARNING, ERROR, CRITICAL.
	LogLevel string `yaml:"log_level" json:"log_level"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		KhalCommand:    "khal",
		ListFormat:     khal.DefaultListFormat,
		OrgFormat:      org.DefaultFormat,
		HorizonDays:    recur.DefaultHorizonDays,
		MaxOccurrences: recur.DefaultMaxOccurrences,
		DateFormat:     khal.DefaultDateFormat,
		TimeFormat:     khal.DefaultTimeFormat,
		PropertyFlags:  khal.DefaultPropertyFlags(),
		LogLevel:       "WARNING",
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	def := DefaultConfig()

	if strings.TrimSpace(c.KhalCommand) == "" {
		c.KhalCommand = def.KhalCommand
	}
	if c.ListFormat == "" {
		c.ListFormat = def.ListFormat
	}
	if c.OrgFormat == "" {
		c.OrgFormat = def.OrgFormat
	}
	if c.HorizonDays <= 0 {
		c.HorizonDays = def.HorizonDays
	}
	if c.MaxOccurrences <= 0 {
		c.MaxOccurrences = def.MaxOccurrences
	}
	if c.DateFormat == "" {
		c.DateFormat = def.DateFormat
	}
	if c.TimeFormat == "" {
		c.TimeFormat = def.TimeFormat
	}
	if c.PropertyFlags == nil {
		c.PropertyFlags = def.PropertyFlags
	}
	// Property names are matched upper-case.
	flags := make(map[string]string, len(c.PropertyFlags))
	for prop, flag := range c.PropertyFlags {
		flags[strings.ToUpper(strings.TrimSpace(prop))] = strings.TrimSpace(flag)
	}
	c.PropertyFlags = flags

	c.LogLevel = strings.ToUpper(strings.TrimSpace(c.LogLevel))
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
}

// Expand returns the recurrence bounds.
func (c *Config) Expand() recur.ExpandConfig {
	return recur.ExpandConfig{HorizonDays: c.HorizonDays, MaxOccurrences: c.MaxOccurrences}
}

// Args returns the `khal new` mapping options.
func (c *Config) Args() khal.ArgsOptions {
	return khal.ArgsOptions{
		DateFormat:    c.DateFormat,
		TimeFormat:    c.TimeFormat,
		PropertyFlags: c.PropertyFlags,
	}
}

// DefaultPath is $XDG_CONFIG_HOME/khalorg/config.yaml, falling back to
// ~/.config on systems without XDG_CONFIG_HOME.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "khalorg", "config.yaml"), nil
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Marshals cfg to YAML.
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".khalorg-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// Save is a convenience method on Config that delegates to the package-level
// Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
