package vm

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/sibexico/virtmem/storage"
)

// Config holds simulator configuration
type Config struct {
	// Memory geometry
	NumPages  uint32 `json:"num_pages"`  // Number of virtual pages
	NumFrames uint32 `json:"num_frames"` // Number of physical frames

	// Run selection
	Policy  string `json:"policy"`  // Eviction policy (rand, fifo, lru)
	Program string `json:"program"` // Workload (sort, scan, focus)
	Seed    uint64 `json:"seed"`    // PRNG seed; 0 picks one at start-up

	// Backing store
	DiskPath    string `json:"disk_path"`    // File used by the file and mmap backends
	DiskBackend string `json:"disk_backend"` // file, mmap or memory
	Compression string `json:"compression"`  // none, lz4 or snappy
	SyncWrites  bool   `json:"sync_writes"`  // fsync after every page write

	// Diagnostics
	LogLevel         string `json:"log_level"`         // debug, info, warn or error
	CheckConsistency bool   `json:"check_consistency"` // Verify frame/page table invariants after the run
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		NumPages:    100,
		NumFrames:   10,
		Policy:      "fifo",
		Program:     "scan",
		DiskPath:    "myvirtualdisk",
		DiskBackend: storage.BackendFile,
		Compression: "none",
		LogLevel:    "warn",
	}
}

// LoadConfigFromFile loads configuration from a JSON file on top of the defaults
func LoadConfigFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// LoadConfigFromEnv loads configuration from environment variables
// Falls back to default values if environment variables are not set
func LoadConfigFromEnv() *Config {
	config := DefaultConfig()
	config.ApplyEnv()
	return config
}

// ApplyEnv overrides fields from VIRTMEM_* environment variables.
// Malformed numeric values are ignored.
func (c *Config) ApplyEnv() {
	if val := os.Getenv("VIRTMEM_NUM_PAGES"); val != "" {
		if n, err := strconv.ParseUint(val, 10, 32); err == nil {
			c.NumPages = uint32(n)
		}
	}

	if val := os.Getenv("VIRTMEM_NUM_FRAMES"); val != "" {
		if n, err := strconv.ParseUint(val, 10, 32); err == nil {
			c.NumFrames = uint32(n)
		}
	}

	if val := os.Getenv("VIRTMEM_POLICY"); val != "" {
		c.Policy = val
	}

	if val := os.Getenv("VIRTMEM_PROGRAM"); val != "" {
		c.Program = val
	}

	if val := os.Getenv("VIRTMEM_SEED"); val != "" {
		if n, err := strconv.ParseUint(val, 10, 64); err == nil {
			c.Seed = n
		}
	}

	if val := os.Getenv("VIRTMEM_DISK_PATH"); val != "" {
		c.DiskPath = val
	}

	if val := os.Getenv("VIRTMEM_DISK_BACKEND"); val != "" {
		c.DiskBackend = val
	}

	if val := os.Getenv("VIRTMEM_COMPRESSION"); val != "" {
		c.Compression = val
	}

	if val := os.Getenv("VIRTMEM_SYNC_WRITES"); val != "" {
		c.SyncWrites = val == "true" || val == "1"
	}

	if val := os.Getenv("VIRTMEM_LOG_LEVEL"); val != "" {
		c.LogLevel = val
	}

	if val := os.Getenv("VIRTMEM_CHECK"); val != "" {
		c.CheckConsistency = val == "true" || val == "1"
	}
}

// SaveToFile saves the configuration to a JSON file
func (c *Config) SaveToFile(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks the engine settings. The program name is checked by the
// caller that owns the workload registry.
func (c *Config) Validate() error {
	if c.NumPages == 0 {
		return storage.ErrInvalidConfig("Validate", "number of pages must be greater than 0")
	}

	if c.NumFrames == 0 {
		return storage.ErrInvalidConfig("Validate", "number of frames must be greater than 0")
	}

	if _, err := ParsePolicy(c.Policy); err != nil {
		return err
	}

	if _, err := storage.ParseCompressionType(c.Compression); err != nil {
		return err
	}

	switch strings.ToLower(c.DiskBackend) {
	case "", storage.BackendFile, storage.BackendMmap:
		if c.DiskPath == "" {
			return storage.ErrInvalidConfig("Validate", "disk path cannot be empty for a file-backed store")
		}
	case storage.BackendMemory:
	default:
		return storage.NewStorageError(storage.ErrCodeUnknownBackend, "Validate",
			fmt.Sprintf("unknown disk backend %q (must be file, mmap or memory)", c.DiskBackend), nil)
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		return storage.ErrInvalidConfig("Validate",
			fmt.Sprintf("invalid log level: %s (must be debug, info, warn, or error)", c.LogLevel))
	}

	return nil
}

// StoreOptions translates the backing-store settings
func (c *Config) StoreOptions() storage.StoreOptions {
	return storage.StoreOptions{
		Backend:     c.DiskBackend,
		Path:        c.DiskPath,
		NumPages:    c.NumPages,
		SyncWrites:  c.SyncWrites,
		Compression: c.Compression,
	}
}

// Clone creates a copy of the configuration
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}
