// Package config loads predict run settings from the environment and an optional YAML file.
//
// Settings are resolved in increasing precedence: defaults, the YAML file named by
// PREDICT_CONFIG, PREDICT_* environment variables, then command line flags (applied by the caller).
//
// Environment variables:
//
//	PREDICT_CONFIG           YAML file to load first
//	PREDICT_K                graphlet size, 3..8 (default 4)
//	PREDICT_JOBS             worker processes, >= 1 (default 1)
//	PREDICT_SIGNATURE        pair | edge | quad (default edge)
//	PREDICT_IDENTITY         canonical | orbit (default canonical)
//	PREDICT_WEIGHTING        uniform | degree | distinct (default uniform)
//	PREDICT_ORBITS           predictive pair filter: inline tokens or a file of tokens
//	PREDICT_NODE_NAMES       node tokens are names (default false)
//	PREDICT_SUMMARIZE        report distinct counts per prefix (distinct weighting only)
//	PREDICT_MEMORY_MARGIN    RAM held back from the budget (default 1GB)
//	PREDICT_MEMORY_INTERVAL  how often memory is checked (default 1s)
//	PREDICT_FLUSH_INTERVAL   how often workers flush, 0 disables (default 100ms)
//	PREDICT_CANON_CACHE      directory of the canonical catalog cache ("" for in-memory)
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/2x3systems/gopredict/gopredict"
	"github.com/2x3systems/gopredict/libpredict/memwatch"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config holds every setting of a predict run.
type Config struct {
	K              int           `yaml:"k"`
	Jobs           int           `yaml:"jobs"`
	Signature      string        `yaml:"signature"`
	Identity       string        `yaml:"identity"`
	Weighting      string        `yaml:"weighting"`
	Orbits         string        `yaml:"orbits"`
	NodeNames      bool          `yaml:"node_names"`
	Summarize      bool          `yaml:"summarize"`
	MemoryMargin   string        `yaml:"memory_margin"`
	MemoryInterval time.Duration `yaml:"memory_interval"`
	FlushInterval  time.Duration `yaml:"flush_interval"`
	CanonCache     string        `yaml:"canon_cache"`
}

// DefaultConfig returns the settings used when nothing else is specified.
func DefaultConfig() *Config {
	return &Config{
		K:              4,
		Jobs:           1,
		Signature:      gopredict.SigEdge.String(),
		Identity:       gopredict.IdentityCanonical.String(),
		Weighting:      gopredict.WeightUniform.String(),
		MemoryMargin:   "1GB",
		MemoryInterval: time.Second,
		FlushInterval:  100 * time.Millisecond,
	}
}

// Load returns the defaults overlaid by the PREDICT_CONFIG file (if set) and then the environment.
func Load() (*Config, error) {
	cfg := DefaultConfig()
	if path := os.Getenv("PREDICT_CONFIG"); path != "" {
		var err error
		if cfg, err = LoadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile returns the defaults overlaid by the given YAML file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(gopredict.ErrConfig, "reading %q: %v", path, err)
	}
	cfg := DefaultConfig()
	if err = yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(gopredict.ErrConfig, "parsing %q: %v", path, err)
	}
	return cfg, nil
}

// ApplyEnv overrides cfg with any PREDICT_* variables that are set.
func (cfg *Config) ApplyEnv() error {
	var err error
	cfg.Signature = getEnv("PREDICT_SIGNATURE", cfg.Signature)
	cfg.Identity = getEnv("PREDICT_IDENTITY", cfg.Identity)
	cfg.Weighting = getEnv("PREDICT_WEIGHTING", cfg.Weighting)
	cfg.Orbits = getEnv("PREDICT_ORBITS", cfg.Orbits)
	cfg.MemoryMargin = getEnv("PREDICT_MEMORY_MARGIN", cfg.MemoryMargin)
	cfg.CanonCache = getEnv("PREDICT_CANON_CACHE", cfg.CanonCache)
	if cfg.K, err = getEnvInt("PREDICT_K", cfg.K); err != nil {
		return err
	}
	if cfg.Jobs, err = getEnvInt("PREDICT_JOBS", cfg.Jobs); err != nil {
		return err
	}
	if cfg.NodeNames, err = getEnvBool("PREDICT_NODE_NAMES", cfg.NodeNames); err != nil {
		return err
	}
	if cfg.Summarize, err = getEnvBool("PREDICT_SUMMARIZE", cfg.Summarize); err != nil {
		return err
	}
	if cfg.MemoryInterval, err = getEnvDuration("PREDICT_MEMORY_INTERVAL", cfg.MemoryInterval); err != nil {
		return err
	}
	if cfg.FlushInterval, err = getEnvDuration("PREDICT_FLUSH_INTERVAL", cfg.FlushInterval); err != nil {
		return err
	}
	return nil
}

// Environ returns cfg as PREDICT_* assignments so a child process resolves the same settings.
func (cfg *Config) Environ() []string {
	return []string{
		"PREDICT_CONFIG=",
		"PREDICT_K=" + strconv.Itoa(cfg.K),
		"PREDICT_JOBS=" + strconv.Itoa(cfg.Jobs),
		"PREDICT_SIGNATURE=" + cfg.Signature,
		"PREDICT_IDENTITY=" + cfg.Identity,
		"PREDICT_WEIGHTING=" + cfg.Weighting,
		"PREDICT_ORBITS=" + cfg.Orbits,
		"PREDICT_NODE_NAMES=" + strconv.FormatBool(cfg.NodeNames),
		"PREDICT_SUMMARIZE=" + strconv.FormatBool(cfg.Summarize),
		"PREDICT_MEMORY_MARGIN=" + cfg.MemoryMargin,
		"PREDICT_MEMORY_INTERVAL=" + cfg.MemoryInterval.String(),
		"PREDICT_FLUSH_INTERVAL=" + cfg.FlushInterval.String(),
		"PREDICT_CANON_CACHE=" + cfg.CanonCache,
	}
}

// Validate checks every setting, returning an error wrapping gopredict.ErrConfig or gopredict.ErrBadK.
func (cfg *Config) Validate() error {
	if cfg.K < gopredict.MinK || cfg.K > gopredict.MaxK {
		return errors.Wrapf(gopredict.ErrBadK, "k=%d", cfg.K)
	}
	if cfg.Jobs < 1 {
		return errors.Wrapf(gopredict.ErrConfig, "jobs=%d", cfg.Jobs)
	}
	if cfg.MemoryInterval < 0 || cfg.FlushInterval < 0 {
		return errors.Wrap(gopredict.ErrConfig, "intervals cannot be negative")
	}
	if _, err := ParseMemorySize(cfg.MemoryMargin); err != nil {
		return err
	}
	opts, err := cfg.predictOpts()
	if err != nil {
		return err
	}
	if err = opts.Validate(); err != nil {
		return err
	}
	if cfg.Summarize && opts.Weighting != gopredict.WeightDistinct {
		return errors.Wrap(gopredict.ErrConfig, "summarize requires distinct weighting")
	}
	return nil
}

func (cfg *Config) predictOpts() (opts gopredict.PredictOpts, err error) {
	opts.K = cfg.K
	if opts.Signature, err = gopredict.ParseSignatureMode(cfg.Signature); err != nil {
		return
	}
	if opts.Identity, err = gopredict.ParsePairIdentity(cfg.Identity); err != nil {
		return
	}
	opts.Weighting, err = gopredict.ParseWeighting(cfg.Weighting)
	return
}

// PredictOpts validates cfg and returns the options it selects, loading the orbit filter if one is set.
func (cfg *Config) PredictOpts() (gopredict.PredictOpts, error) {
	if err := cfg.Validate(); err != nil {
		return gopredict.PredictOpts{}, err
	}
	opts, err := cfg.predictOpts()
	if err != nil {
		return opts, err
	}
	filter, err := LoadOrbitFilter(cfg.Orbits, cfg.K)
	if err != nil {
		return opts, err
	}
	if filter != nil {
		opts.Filter = filter
	}
	return opts, nil
}

// MemwatchOpts returns the memory monitor settings of cfg.
func (cfg *Config) MemwatchOpts() (memwatch.Opts, error) {
	margin, err := ParseMemorySize(cfg.MemoryMargin)
	if err != nil {
		return memwatch.Opts{}, err
	}
	return memwatch.Opts{
		SafetyMargin:  margin,
		CheckInterval: cfg.MemoryInterval,
		FlushInterval: cfg.FlushInterval,
	}, nil
}

// ParseMemorySize parses a human-readable size such as "1024", "512MB", or "2G" (binary units).
func ParseMemorySize(s string) (uint64, error) {
	str := strings.TrimSpace(strings.ToUpper(s))
	if str == "" || str == "0" {
		return 0, nil
	}

	str = strings.TrimSuffix(str, "B")

	var multiplier uint64 = 1
	switch {
	case strings.HasSuffix(str, "K"):
		multiplier = 1 << 10
		str = strings.TrimSuffix(str, "K")
	case strings.HasSuffix(str, "M"):
		multiplier = 1 << 20
		str = strings.TrimSuffix(str, "M")
	case strings.HasSuffix(str, "G"):
		multiplier = 1 << 30
		str = strings.TrimSuffix(str, "G")
	case strings.HasSuffix(str, "T"):
		multiplier = 1 << 40
		str = strings.TrimSuffix(str, "T")
	}

	val, err := strconv.ParseUint(strings.TrimSpace(str), 10, 64)
	if err != nil {
		return 0, errors.Wrapf(gopredict.ErrConfig, "memory size %q", s)
	}
	return val * multiplier, nil
}

func getEnv(key, defaultVal string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) (int, error) {
	if val := os.Getenv(key); val != "" {
		i, err := strconv.Atoi(strings.TrimSpace(val))
		if err != nil {
			return defaultVal, errors.Wrapf(gopredict.ErrConfig, "%s=%q", key, val)
		}
		return i, nil
	}
	return defaultVal, nil
}

func getEnvBool(key string, defaultVal bool) (bool, error) {
	if val := os.Getenv(key); val != "" {
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "true", "1", "yes", "on":
			return true, nil
		case "false", "0", "no", "off":
			return false, nil
		default:
			return defaultVal, errors.Wrapf(gopredict.ErrConfig, "%s=%q", key, val)
		}
	}
	return defaultVal, nil
}

func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d, nil
		}
		// Try parsing as seconds
		if secs, err := strconv.Atoi(val); err == nil {
			return time.Duration(secs) * time.Second, nil
		}
		return defaultVal, errors.Wrapf(gopredict.ErrConfig, "%s=%q", key, val)
	}
	return defaultVal, nil
}
