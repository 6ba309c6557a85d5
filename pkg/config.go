package ldup

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-ini/ini"
	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix is the prefix for environment variable overrides (LDUP_HASH, ...)
const EnvPrefix = "LDUP"

// Config represents the ldup configuration. It is read from disk but never
// written back.
type Config struct {
	configPath string
	ini        *ini.File
}

// HashConfig represents hash algorithm configuration
type HashConfig struct {
	Default string // Default hash algorithm
}

// OutputConfig represents output format configuration
type OutputConfig struct {
	Format string // human, json, fdupes
}

// VerboseConfig represents verbosity configuration
type VerboseConfig struct {
	Level int    // 0=quiet, 1=basic, 2=detailed, 3=trace
	Debug string // comma-separated debug flags
}

// SymlinkConfig represents symlink handling configuration
type SymlinkConfig struct {
	Mode string // none, contained, all
}

// PerformanceConfig represents performance-related configuration
type PerformanceConfig struct {
	HashWorkers int    // concurrent admissions, 1 means sequential
	HashBuffer  string // read size for hashing, empty means the filesystem block size
}

// ScanConfig represents traversal and error policy configuration
type ScanConfig struct {
	Recursive  bool
	Hidden     bool
	Strict     bool   // abort the run on the first unreadable file
	IgnoreFile string // file of regex ignore patterns
}

// AllConfig represents all configuration options
type AllConfig struct {
	Hash        *HashConfig
	Output      *OutputConfig
	Verbose     *VerboseConfig
	Symlink     *SymlinkConfig
	Performance *PerformanceConfig
	Scan        *ScanConfig
}

// envOverrides maps LDUP_* environment variables onto override keys. Fields
// carry no envconfig names so that unprefixed variables are never consulted.
type envOverrides struct {
	Hash       string
	Format     string
	Verbose    string
	Debug      string
	Symlinks   string
	Workers    string
	HashBuffer string `split_words:"true"`
	Recursive  string
	Hidden     string
	Strict     string
	IgnoreFile string `split_words:"true"`
}

// DefaultConfigPath returns $XDG_CONFIG_HOME/ldup/config (or the platform
// equivalent), or "" when no config directory is known
func DefaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "ldup", "config")
}

// NewDefaultConfig returns an in-memory configuration holding the defaults
func NewDefaultConfig() *Config {
	cfg := &Config{ini: ini.Empty()}
	if err := cfg.setDefaults(); err != nil {
		// Only fails on malformed section names, which are constants here
		panic(err)
	}
	return cfg
}

// LoadConfig loads configuration from configPath. A missing file yields the
// defaults; an empty path also does.
func LoadConfig(configPath string) (*Config, error) {
	if configPath == "" {
		return NewDefaultConfig(), nil
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		VerboseLog(2, "no config file at %s, using defaults", configPath)
		cfg := NewDefaultConfig()
		cfg.configPath = configPath
		return cfg, nil
	}

	iniFile, err := ini.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	return &Config{
		configPath: configPath,
		ini:        iniFile,
	}, nil
}

// Path returns the file the configuration was read from, if any
func (c *Config) Path() string {
	return c.configPath
}

// setDefaults sets default configuration values
func (c *Config) setDefaults() error {
	defaults := []struct {
		section, key, value string
	}{
		{"filehash", "default", DefaultHashAlgorithm},
		{"output", "format", FormatHuman},
		{"verbose", "level", "0"},
		{"verbose", "debug", ""},
		{"symlink", "mode", SymlinkNone},
		{"performance", "hash_workers", fmt.Sprintf("%d", DefaultHashWorkers)},
		{"performance", "hash_buffer", ""},
		{"scan", "recursive", "false"},
		{"scan", "hidden", "false"},
		{"scan", "strict", "false"},
		{"scan", "ignore_file", ""},
	}

	for _, d := range defaults {
		section, err := c.ini.NewSection(d.section)
		if err != nil {
			return fmt.Errorf("failed to create %s section: %w", d.section, err)
		}
		if _, err := section.NewKey(d.key, d.value); err != nil {
			return fmt.Errorf("failed to set default %s.%s: %w", d.section, d.key, err)
		}
	}
	return nil
}

// GetHashConfig returns the hash configuration
func (c *Config) GetHashConfig() *HashConfig {
	hashConfig := &HashConfig{
		Default: DefaultHashAlgorithm,
	}

	if c.ini.HasSection("filehash") {
		section := c.ini.Section("filehash")
		if section.HasKey("default") {
			hashConfig.Default = section.Key("default").String()
		}
	}

	return hashConfig
}

// GetOutputConfig returns the output configuration
func (c *Config) GetOutputConfig() *OutputConfig {
	outputConfig := &OutputConfig{
		Format: FormatHuman,
	}

	if c.ini.HasSection("output") {
		section := c.ini.Section("output")
		if section.HasKey("format") {
			outputConfig.Format = section.Key("format").String()
		}
	}

	return outputConfig
}

// GetVerboseConfig returns the verbose configuration
func (c *Config) GetVerboseConfig() *VerboseConfig {
	verboseConfig := &VerboseConfig{}

	if c.ini.HasSection("verbose") {
		section := c.ini.Section("verbose")
		if section.HasKey("level") {
			if level, err := section.Key("level").Int(); err == nil {
				verboseConfig.Level = level
			}
		}
		if section.HasKey("debug") {
			verboseConfig.Debug = section.Key("debug").String()
		}
	}

	return verboseConfig
}

// GetSymlinkConfig returns the symlink configuration
func (c *Config) GetSymlinkConfig() *SymlinkConfig {
	symlinkConfig := &SymlinkConfig{
		Mode: SymlinkNone,
	}

	if c.ini.HasSection("symlink") {
		section := c.ini.Section("symlink")
		if section.HasKey("mode") {
			symlinkConfig.Mode = section.Key("mode").String()
		}
	}

	return symlinkConfig
}

// GetPerformanceConfig returns the performance configuration
func (c *Config) GetPerformanceConfig() *PerformanceConfig {
	performanceConfig := &PerformanceConfig{
		HashWorkers: DefaultHashWorkers,
	}

	if c.ini.HasSection("performance") {
		section := c.ini.Section("performance")
		if section.HasKey("hash_workers") {
			if workers, err := section.Key("hash_workers").Int(); err == nil {
				performanceConfig.HashWorkers = workers
			}
		}
		if section.HasKey("hash_buffer") {
			performanceConfig.HashBuffer = section.Key("hash_buffer").String()
		}
	}

	return performanceConfig
}

// GetScanConfig returns the scan configuration
func (c *Config) GetScanConfig() *ScanConfig {
	scanConfig := &ScanConfig{}

	if c.ini.HasSection("scan") {
		section := c.ini.Section("scan")
		if section.HasKey("recursive") {
			if recursive, err := section.Key("recursive").Bool(); err == nil {
				scanConfig.Recursive = recursive
			}
		}
		if section.HasKey("hidden") {
			if hidden, err := section.Key("hidden").Bool(); err == nil {
				scanConfig.Hidden = hidden
			}
		}
		if section.HasKey("strict") {
			if strict, err := section.Key("strict").Bool(); err == nil {
				scanConfig.Strict = strict
			}
		}
		if section.HasKey("ignore_file") {
			scanConfig.IgnoreFile = section.Key("ignore_file").String()
		}
	}

	return scanConfig
}

// GetAllConfig returns all configuration options
func (c *Config) GetAllConfig() *AllConfig {
	return &AllConfig{
		Hash:        c.GetHashConfig(),
		Output:      c.GetOutputConfig(),
		Verbose:     c.GetVerboseConfig(),
		Symlink:     c.GetSymlinkConfig(),
		Performance: c.GetPerformanceConfig(),
		Scan:        c.GetScanConfig(),
	}
}

// overrideTargets maps override keys to their ini section
var overrideTargets = map[string]string{
	"default":      "filehash",
	"format":       "output",
	"level":        "verbose",
	"debug":        "verbose",
	"mode":         "symlink",
	"hash_workers": "performance",
	"hash_buffer":  "performance",
	"recursive":    "scan",
	"hidden":       "scan",
	"strict":       "scan",
	"ignore_file":  "scan",
}

// ApplyOverrides applies command-line overrides to the configuration
// Accepts strings like "default:sha256", "format:json", "level:2", "debug:walk"
func (c *Config) ApplyOverrides(overrides []string) error {
	for _, override := range overrides {
		parts := strings.SplitN(override, ":", 2)
		if len(parts) != 2 {
			return fmt.Errorf("invalid override format '%s', expected 'key:value'", override)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		sectionName, ok := overrideTargets[key]
		if !ok {
			return fmt.Errorf("unsupported override key '%s' (supported: default, format, level, debug, mode, hash_workers, hash_buffer, recursive, hidden, strict, ignore_file)", key)
		}
		c.ini.Section(sectionName).Key(key).SetValue(value)
	}

	return nil
}

// ApplyEnvironment applies LDUP_* environment variables as overrides
func (c *Config) ApplyEnvironment() error {
	var env envOverrides
	if err := envconfig.Process(EnvPrefix, &env); err != nil {
		return fmt.Errorf("failed to parse environment variables: %w", err)
	}

	var overrides []string
	for key, value := range map[string]string{
		"default":      env.Hash,
		"format":       env.Format,
		"level":        env.Verbose,
		"debug":        env.Debug,
		"mode":         env.Symlinks,
		"hash_workers": env.Workers,
		"hash_buffer":  env.HashBuffer,
		"recursive":    env.Recursive,
		"hidden":       env.Hidden,
		"strict":       env.Strict,
		"ignore_file":  env.IgnoreFile,
	} {
		if value != "" {
			overrides = append(overrides, key+":"+value)
		}
	}

	return c.ApplyOverrides(overrides)
}

// typedKeys lists the keys whose getters fall back to a default when the
// stored value does not parse
var typedKeys = []struct {
	section, key string
	parse        func(*ini.Key) error
}{
	{"verbose", "level", func(k *ini.Key) error { _, err := k.Int(); return err }},
	{"performance", "hash_workers", func(k *ini.Key) error { _, err := k.Int(); return err }},
	{"scan", "recursive", func(k *ini.Key) error { _, err := k.Bool(); return err }},
	{"scan", "hidden", func(k *ini.Key) error { _, err := k.Bool(); return err }},
	{"scan", "strict", func(k *ini.Key) error { _, err := k.Bool(); return err }},
}

// Validate checks every configured value
func (c *Config) Validate() error {
	for _, tk := range typedKeys {
		if !c.ini.HasSection(tk.section) || !c.ini.Section(tk.section).HasKey(tk.key) {
			continue
		}
		if err := tk.parse(c.ini.Section(tk.section).Key(tk.key)); err != nil {
			return fmt.Errorf("invalid value for %s.%s: %w", tk.section, tk.key, err)
		}
	}

	all := c.GetAllConfig()

	if err := ValidateHashAlgorithm(all.Hash.Default); err != nil {
		return err
	}
	if err := ValidateOutputFormat(all.Output.Format); err != nil {
		return err
	}
	if err := ValidateVerboseLevel(all.Verbose.Level); err != nil {
		return err
	}
	if err := ValidateSymlinkMode(all.Symlink.Mode); err != nil {
		return err
	}
	if err := ValidateHashWorkers(all.Performance.HashWorkers); err != nil {
		return err
	}
	if all.Performance.HashBuffer != "" {
		if _, err := ParseHumanSize(all.Performance.HashBuffer); err != nil {
			return fmt.Errorf("invalid hash buffer: %w", err)
		}
	}
	return nil
}

// WriteTo writes the effective configuration in ini form
func (c *Config) WriteTo(w io.Writer) (int64, error) {
	return c.ini.WriteTo(w)
}

// ValidateHashAlgorithm validates that a hash algorithm is supported
func ValidateHashAlgorithm(algorithm string) error {
	if _, ok := HashTypeFromName(algorithm); !ok {
		return fmt.Errorf("%w: %s (supported: sha1, sha256, sha512)", ErrUnsupportedAlgorithm, algorithm)
	}
	return nil
}

// ValidateOutputFormat validates that an output format is supported
func ValidateOutputFormat(format string) error {
	switch strings.ToLower(format) {
	case FormatHuman, FormatJSON, FormatFdupes:
		return nil
	default:
		return fmt.Errorf("unsupported output format: %s (supported: human, json, fdupes)", format)
	}
}

// ValidateVerboseLevel validates that a verbose level is valid
func ValidateVerboseLevel(level int) error {
	if level < 0 || level > 3 {
		return fmt.Errorf("invalid verbose level: %d (supported: 0-3)", level)
	}
	return nil
}

// ValidateSymlinkMode validates that a symlink mode is supported
func ValidateSymlinkMode(mode string) error {
	switch strings.ToLower(mode) {
	case SymlinkNone, SymlinkContained, SymlinkAll:
		return nil
	default:
		return fmt.Errorf("unsupported symlink mode: %s (supported: all, contained, none)", mode)
	}
}

// ValidateHashWorkers validates that the hash worker count is reasonable
func ValidateHashWorkers(workers int) error {
	if workers < 1 {
		return fmt.Errorf("hash workers must be at least 1, got: %d", workers)
	}
	if workers > MaxHashWorkers {
		return fmt.Errorf("hash workers should not exceed %d, got: %d", MaxHashWorkers, workers)
	}
	return nil
}

// ValidateErrorPolicy validates an index error policy
func ValidateErrorPolicy(policy string) error {
	switch policy {
	case PolicySkip, PolicyAbort:
		return nil
	default:
		return fmt.Errorf("unsupported error policy: %s (supported: skip, abort)", policy)
	}
}
