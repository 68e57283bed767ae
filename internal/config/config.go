// Package config holds the typed configuration record for the FASGuard
// binaries: the signature extractor's ASG keys, the dendrogram clustering
// threshold, the local-alignment scoring table source, and logging. One
// typed struct tree replaces the original's dynamic property-dictionary
// config; every key the extractor reads is an explicit field here.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Config holds all FASGuard configuration
type Config struct {
	// ASG (automatic signature generation) configuration
	ASG ASGConfig `json:"asg"`

	// Dendrogram clustering configuration
	Dendrogram DendrogramConfig `json:"dendrogram"`

	// Local-alignment scoring configuration
	LocalAlignment LocalAlignmentConfig `json:"local_alignment"`

	// Logging configuration
	Logging LoggingConfig `json:"logging"`
}

// ASGConfig holds the signature extractor's configuration
type ASGConfig struct {
	// MinDepth and MaxDepth bound the n-gram length window, and must match
	// the benign Bloom filter the extractor loads.
	MinDepth int `json:"min_depth"`
	MaxDepth int `json:"max_depth"`

	// BloomFilterDir holds benign Bloom filters named
	// proto_<p>_port_<q>_min_<m>_max_<M>.bloom.
	BloomFilterDir string `json:"bloom_filter_dir"`

	// BloomFromMemory loads the whole bit payload into RAM instead of
	// seeking the file per lookup.
	BloomFromMemory bool `json:"bloom_from_memory"`

	// BloomThreaded and BloomThreads are loaded and validated but not read
	// by any binary; fasguard-makebloom chooses the threaded build and its
	// hasher count from its own -t and -T flags.
	BloomThreaded bool `json:"bloom_threaded"`

	// BloomThreads is the hasher worker count for a threaded build.
	BloomThreads int `json:"bloom_threads"`

	RuleAction string `json:"rule_action"`

	SuricataRuleFile                    string `json:"suricata_rule_file"`
	SuricataPcreRuleFile                string `json:"suricata_pcre_rule_file"`
	SuricataUnsupervisedClusterRuleFile string `json:"suricata_unsupervised_cluster_rule_file"`
}

// DendrogramConfig holds the hierarchical-clustering configuration
type DendrogramConfig struct {
	// LevelPercentThresh is the merge-score jump (as a fraction of the
	// child's score) at which the dendrogram is cut into disjoint clusters.
	LevelPercentThresh float64 `json:"level_percent_thresh"`
}

// LocalAlignmentConfig holds the Smith-Waterman scoring configuration
type LocalAlignmentConfig struct {
	// ScoringEngineFile optionally names a JSON file carrying match,
	// mismatch and indel weights; empty selects the built-in default table.
	ScoringEngineFile string `json:"scoring_engine_file"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
	File   string `json:"file"`
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		ASG: ASGConfig{
			MinDepth:                            4,
			MaxDepth:                            8,
			BloomFilterDir:                      "bloomfilters",
			BloomFromMemory:                     true,
			BloomThreaded:                       false,
			BloomThreads:                        2,
			RuleAction:                          "alert",
			SuricataRuleFile:                    "fasguard.rules",
			SuricataPcreRuleFile:                "fasguard-pcre.rules",
			SuricataUnsupervisedClusterRuleFile: "fasguard-cluster.rules",
		},
		Dendrogram: DendrogramConfig{
			LevelPercentThresh: 0.5,
		},
		LocalAlignment: LocalAlignmentConfig{
			ScoringEngineFile: "",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			File:   "",
		},
	}
}

// LoadConfig loads configuration from file with environment variable overrides
func LoadConfig(configPath string) (*Config, error) {
	config := DefaultConfig()

	if configPath != "" {
		if err := config.loadFromFile(configPath); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	config.applyEnvironmentOverrides()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// loadFromFile loads configuration from a JSON file
func (c *Config) loadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// File doesn't exist, use defaults
			return nil
		}
		return err
	}

	return json.Unmarshal(data, c)
}

// applyEnvironmentOverrides applies environment variable overrides
func (c *Config) applyEnvironmentOverrides() {
	if val := os.Getenv("FASGUARD_MIN_DEPTH"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			c.ASG.MinDepth = n
		}
	}
	if val := os.Getenv("FASGUARD_MAX_DEPTH"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			c.ASG.MaxDepth = n
		}
	}
	if val := os.Getenv("FASGUARD_BLOOM_FILTER_DIR"); val != "" {
		c.ASG.BloomFilterDir = val
	}
	if val := os.Getenv("FASGUARD_BLOOM_FROM_MEMORY"); val != "" {
		c.ASG.BloomFromMemory = parseBoolFlag(val)
	}
	if val := os.Getenv("FASGUARD_BLOOM_THREADED"); val != "" {
		c.ASG.BloomThreaded = parseBoolFlag(val)
	}
	if val := os.Getenv("FASGUARD_BLOOM_THREADS"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			c.ASG.BloomThreads = n
		}
	}
	if val := os.Getenv("FASGUARD_RULE_ACTION"); val != "" {
		c.ASG.RuleAction = val
	}
	if val := os.Getenv("FASGUARD_SURICATA_RULE_FILE"); val != "" {
		c.ASG.SuricataRuleFile = val
	}
	if val := os.Getenv("FASGUARD_SURICATA_PCRE_RULE_FILE"); val != "" {
		c.ASG.SuricataPcreRuleFile = val
	}
	if val := os.Getenv("FASGUARD_SURICATA_CLUSTER_RULE_FILE"); val != "" {
		c.ASG.SuricataUnsupervisedClusterRuleFile = val
	}
	if val := os.Getenv("FASGUARD_LEVEL_PERCENT_THRESH"); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			c.Dendrogram.LevelPercentThresh = f
		}
	}
	if val := os.Getenv("FASGUARD_SCORING_ENGINE_FILE"); val != "" {
		c.LocalAlignment.ScoringEngineFile = val
	}
	if val := os.Getenv("FASGUARD_LOG_LEVEL"); val != "" {
		c.Logging.Level = val
	}
	if val := os.Getenv("FASGUARD_LOG_FORMAT"); val != "" {
		c.Logging.Format = val
	}
	if val := os.Getenv("FASGUARD_LOG_FILE"); val != "" {
		c.Logging.File = val
	}
}

// parseBoolFlag accepts both the original's T/F single-letter convention
// and the usual true/false spellings.
func parseBoolFlag(val string) bool {
	switch strings.ToLower(val) {
	case "t", "true", "1", "yes":
		return true
	default:
		return false
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.ASG.MinDepth <= 0 {
		return fmt.Errorf("min depth must be positive")
	}
	if c.ASG.MaxDepth < c.ASG.MinDepth {
		return fmt.Errorf("max depth must be >= min depth")
	}
	if c.ASG.BloomFilterDir == "" {
		return fmt.Errorf("bloom filter directory cannot be empty")
	}
	if c.ASG.BloomThreads < 1 {
		return fmt.Errorf("bloom threads must be positive")
	}
	if c.ASG.RuleAction == "" {
		return fmt.Errorf("rule action cannot be empty")
	}

	if c.Dendrogram.LevelPercentThresh <= 0 {
		return fmt.Errorf("dendrogram level percent threshold must be positive")
	}

	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	validFormats := map[string]bool{
		"text": true, "json": true,
	}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}

	return nil
}

// SaveToFile saves the configuration to a JSON file
func (c *Config) SaveToFile(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0644)
}
