package core

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// ---------------------------------------------------------------------------
// Config — central configuration for a LeafMind instance.
//
// The configuration is resolved through a four-level hierarchy where each
// layer overrides values set by the layer beneath it:
//
//	Priority (highest → lowest):
//	  1. Programmatic overrides (e.g. CLI flags applied after loading)
//	  2. Environment variables (LEAFMIND_* prefix)
//	  3. YAML configuration file
//	  4. Built-in defaults
// ---------------------------------------------------------------------------

// MemoryConfig groups the plasticity and consolidation parameters of the
// memory graph.
type MemoryConfig struct {
	// LearningRate is the fraction of remaining headroom gained per
	// activation (asymptotic strengthening).
	LearningRate float64 `yaml:"learningRate" msgpack:"learning_rate"`

	// DecayRate is the multiplicative weight loss per decay cycle.
	DecayRate float64 `yaml:"decayRate" msgpack:"decay_rate"`

	// ConsolidationThreshold is the weight needed for the promotion
	// criterion during consolidation.
	ConsolidationThreshold float64 `yaml:"consolidationThreshold" msgpack:"consolidation_threshold"`

	// MaxShortTermConnections is the configured short-term zone size. It
	// is validated and persisted with the configuration; the graph does
	// not limit the short-term zone to it.
	MaxShortTermConnections int `yaml:"maxShortTermConnections" msgpack:"max_short_term_connections"`

	// ConsolidationIntervalHours controls automatic consolidation cadence.
	ConsolidationIntervalHours uint64 `yaml:"consolidationIntervalHours" msgpack:"consolidation_interval_hours"`

	// MaxRecallResults is the configured recall result limit. It is
	// validated and persisted with the configuration; recall truncates only
	// by RecallQuery.MaxResults and does not read this field.
	MaxRecallResults int `yaml:"maxRecallResults" msgpack:"max_recall_results"`
}

// PersistenceConfig groups durable-storage settings.
type PersistenceConfig struct {
	// DBPath is the database directory.
	DBPath string `yaml:"dbPath"`

	// AutoSaveIntervalSeconds controls periodic snapshots. 0 disables
	// auto-save entirely.
	AutoSaveIntervalSeconds uint64 `yaml:"autoSaveIntervalSeconds"`

	// BatchSize bounds the number of entries per write batch during bulk
	// snapshots.
	BatchSize int `yaml:"batchSize"`

	// EnableCompression turns on block compression in the store.
	EnableCompression bool `yaml:"enableCompression"`

	// MaxCacheSize is the in-memory entity count at which mutations start
	// writing through to the store immediately.
	MaxCacheSize int `yaml:"maxCacheSize"`

	// EnableWAL enables synchronous writes for crash recovery.
	EnableWAL bool `yaml:"enableWAL"`
}

// Config is the root configuration object.
type Config struct {
	Memory      MemoryConfig      `yaml:"memory"`
	Persistence PersistenceConfig `yaml:"persistence"`
}

// DefaultMemoryConfig returns the standard plasticity profile.
func DefaultMemoryConfig() MemoryConfig {
	return MemoryConfig{
		LearningRate:               0.1,  // 10% strengthening per activation
		DecayRate:                  0.01, // 1% decay per cycle
		ConsolidationThreshold:     0.5,  // 50% strength needed for long-term storage
		MaxShortTermConnections:    10000,
		ConsolidationIntervalHours: 24, // Daily consolidation like sleep
		MaxRecallResults:           20,
	}
}

// DefaultPersistenceConfig returns the standard durability profile.
func DefaultPersistenceConfig() PersistenceConfig {
	return PersistenceConfig{
		DBPath:                  "leafmind.db",
		AutoSaveIntervalSeconds: 300, // 5 minutes
		BatchSize:               1000,
		EnableCompression:       true,
		MaxCacheSize:            100000, // 100k items
		EnableWAL:               true,
	}
}

// DefaultConfig returns a Config populated with both default profiles.
func DefaultConfig() *Config {
	return &Config{
		Memory:      DefaultMemoryConfig(),
		Persistence: DefaultPersistenceConfig(),
	}
}

// HighPerformanceMemoryConfig is tuned for high-throughput workloads:
// slower plasticity, larger zones, twice-daily consolidation.
func HighPerformanceMemoryConfig() MemoryConfig {
	return MemoryConfig{
		LearningRate:               0.05,
		DecayRate:                  0.001,
		ConsolidationThreshold:     0.7,
		MaxShortTermConnections:    100000,
		ConsolidationIntervalHours: 12,
		MaxRecallResults:           100,
	}
}

// HighPerformancePersistenceConfig pairs with HighPerformanceMemoryConfig.
func HighPerformancePersistenceConfig() PersistenceConfig {
	return PersistenceConfig{
		DBPath:                  "leafmind_hp.db",
		AutoSaveIntervalSeconds: 120,
		BatchSize:               5000,
		EnableCompression:       true,
		MaxCacheSize:            500000,
		EnableWAL:               true,
	}
}

// ResearchMemoryConfig is tuned for exploratory workloads with faster
// plasticity and more generous recall limits.
func ResearchMemoryConfig() MemoryConfig {
	return MemoryConfig{
		LearningRate:               0.08,
		DecayRate:                  0.015,
		ConsolidationThreshold:     0.6,
		MaxShortTermConnections:    50000,
		ConsolidationIntervalHours: 24,
		MaxRecallResults:           50,
	}
}

// ResearchPersistenceConfig pairs with ResearchMemoryConfig.
func ResearchPersistenceConfig() PersistenceConfig {
	return PersistenceConfig{
		DBPath:                  "leafmind_research.db",
		AutoSaveIntervalSeconds: 600,
		BatchSize:               2000,
		EnableCompression:       true,
		MaxCacheSize:            200000,
		EnableWAL:               true,
	}
}

// ConsolidationInterval returns the interval as a time.Duration.
func (m MemoryConfig) ConsolidationInterval() time.Duration {
	return time.Duration(m.ConsolidationIntervalHours) * time.Hour
}

// AutoSaveInterval returns the auto-save cadence; 0 means disabled.
func (p PersistenceConfig) AutoSaveInterval() time.Duration {
	return time.Duration(p.AutoSaveIntervalSeconds) * time.Second
}

// ConfigFromFile reads a YAML configuration file and merges it on top of
// the built-in defaults. Fields absent from the file retain their defaults.
func ConfigFromFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	return cfg, nil
}

// ConfigFromEnv applies environment variable overrides to the given Config.
// If cfg is nil a new default Config is created first.
//
// Environment variable mapping (all optional, prefix LEAFMIND_):
//
//	LEAFMIND_LEARNING_RATE         → Memory.LearningRate
//	LEAFMIND_DECAY_RATE            → Memory.DecayRate
//	LEAFMIND_CONSOLIDATION_THRESHOLD → Memory.ConsolidationThreshold
//	LEAFMIND_MAX_SHORT_TERM        → Memory.MaxShortTermConnections
//	LEAFMIND_CONSOLIDATION_HOURS   → Memory.ConsolidationIntervalHours
//	LEAFMIND_MAX_RECALL_RESULTS    → Memory.MaxRecallResults
//	LEAFMIND_DB_PATH               → Persistence.DBPath
//	LEAFMIND_AUTO_SAVE_SECONDS     → Persistence.AutoSaveIntervalSeconds
//	LEAFMIND_BATCH_SIZE            → Persistence.BatchSize
//	LEAFMIND_COMPRESSION           → Persistence.EnableCompression ("true"/"false")
//	LEAFMIND_MAX_CACHE_SIZE        → Persistence.MaxCacheSize
//	LEAFMIND_WAL_ENABLED           → Persistence.EnableWAL ("true"/"false")
func ConfigFromEnv(cfg *Config) *Config {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	setEnvFloat("LEAFMIND_LEARNING_RATE", &cfg.Memory.LearningRate)
	setEnvFloat("LEAFMIND_DECAY_RATE", &cfg.Memory.DecayRate)
	setEnvFloat("LEAFMIND_CONSOLIDATION_THRESHOLD", &cfg.Memory.ConsolidationThreshold)
	setEnvInt("LEAFMIND_MAX_SHORT_TERM", &cfg.Memory.MaxShortTermConnections)
	setEnvUint64("LEAFMIND_CONSOLIDATION_HOURS", &cfg.Memory.ConsolidationIntervalHours)
	setEnvInt("LEAFMIND_MAX_RECALL_RESULTS", &cfg.Memory.MaxRecallResults)

	setEnvStr("LEAFMIND_DB_PATH", &cfg.Persistence.DBPath)
	setEnvUint64("LEAFMIND_AUTO_SAVE_SECONDS", &cfg.Persistence.AutoSaveIntervalSeconds)
	setEnvInt("LEAFMIND_BATCH_SIZE", &cfg.Persistence.BatchSize)
	setEnvBool("LEAFMIND_COMPRESSION", &cfg.Persistence.EnableCompression)
	setEnvInt("LEAFMIND_MAX_CACHE_SIZE", &cfg.Persistence.MaxCacheSize)
	setEnvBool("LEAFMIND_WAL_ENABLED", &cfg.Persistence.EnableWAL)

	return cfg
}

// LoadConfig implements the full configuration hierarchy:
//
//  1. Start with built-in defaults.
//  2. If configPath is non-empty, overlay the YAML file.
//  3. Apply environment variable overrides.
//  4. The caller may then apply programmatic overrides (e.g. CLI flags).
func LoadConfig(configPath string) (*Config, error) {
	var cfg *Config

	if configPath != "" {
		var err error
		cfg, err = ConfigFromFile(configPath)
		if err != nil {
			return nil, err
		}
	} else {
		cfg = DefaultConfig()
	}

	return ConfigFromEnv(cfg), nil
}

// Validate performs structural validation of the entire configuration.
// Returns a descriptive error for the first invalid field encountered.
func (c *Config) Validate() error {
	if err := c.Memory.Validate(); err != nil {
		return err
	}
	return c.Persistence.Validate()
}

// Validate checks plasticity parameter ranges.
func (m MemoryConfig) Validate() error {
	if m.LearningRate <= 0 || m.LearningRate > 1 {
		return fmt.Errorf("%w: memory.learningRate must be in (0, 1], got %f", ErrInvalidParameter, m.LearningRate)
	}
	if m.DecayRate < 0 || m.DecayRate >= 1 {
		return fmt.Errorf("%w: memory.decayRate must be in [0, 1), got %f", ErrInvalidParameter, m.DecayRate)
	}
	if m.ConsolidationThreshold <= 0 || m.ConsolidationThreshold > 1 {
		return fmt.Errorf("%w: memory.consolidationThreshold must be in (0, 1], got %f", ErrInvalidParameter, m.ConsolidationThreshold)
	}
	if m.MaxShortTermConnections < 1 {
		return fmt.Errorf("%w: memory.maxShortTermConnections must be >= 1", ErrInvalidParameter)
	}
	if m.ConsolidationIntervalHours == 0 {
		return fmt.Errorf("%w: memory.consolidationIntervalHours must be > 0", ErrInvalidParameter)
	}
	if m.MaxRecallResults < 1 {
		return fmt.Errorf("%w: memory.maxRecallResults must be >= 1", ErrInvalidParameter)
	}
	return nil
}

// Validate checks durability parameter ranges.
func (p PersistenceConfig) Validate() error {
	if p.DBPath == "" {
		return fmt.Errorf("%w: persistence.dbPath must not be empty", ErrInvalidParameter)
	}
	if p.BatchSize < 1 {
		return fmt.Errorf("%w: persistence.batchSize must be >= 1", ErrInvalidParameter)
	}
	if p.MaxCacheSize < 1 {
		return fmt.Errorf("%w: persistence.maxCacheSize must be >= 1", ErrInvalidParameter)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Environment variable helpers
// ---------------------------------------------------------------------------

// setEnvStr sets *target to the value of the named env var if it is non-empty.
func setEnvStr(key string, target *string) {
	if v := os.Getenv(key); v != "" {
		*target = v
	}
}

// setEnvBool sets *target to the parsed boolean value of the named env var.
func setEnvBool(key string, target *bool) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*target = b
		}
	}
}

// setEnvInt sets *target to the parsed integer value of the named env var.
func setEnvInt(key string, target *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*target = n
		}
	}
}

// setEnvUint64 sets *target to the parsed uint64 value of the named env var.
func setEnvUint64(key string, target *uint64) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			*target = n
		}
	}
}

// setEnvFloat sets *target to the parsed float64 value of the named env var.
func setEnvFloat(key string, target *float64) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*target = f
		}
	}
}
