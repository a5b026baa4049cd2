// Package config loads process-wide atomik configuration from atomik.json:
// worker-pool bounds, worker naming, auto-cleanup, storage backend, and the
// inspect server address. The graph algorithm itself never reads this; the
// CLI and applications map it onto graph options at startup.
package config

import (
	"encoding/json"
	stderrors "errors"
	"os"
	"path/filepath"

	"github.com/atomik-dev/atomik/internal/errors"
	"github.com/atomik-dev/atomik/pkg/atomik"
)

const (
	// ConfigFileName is the name of the configuration file.
	ConfigFileName = "atomik.json"

	// DefaultMaxWorkers is the default deferred-mutation pool size.
	DefaultMaxWorkers = 4

	// MaxWorkersLimit caps the pool size; the library targets constrained
	// deployments, not unbounded fan-out.
	MaxWorkersLimit = 32

	// DefaultWorkerNamePrefix names pool workers in debug logs.
	DefaultWorkerNamePrefix = "atomik-worker"
)

// StorageConfig selects and locates the persistence backend.
type StorageConfig struct {
	// Backend is "file", "badger", or "none" (default "file").
	Backend string `json:"backend,omitempty"`

	// Dir is the backing directory for file and badger backends.
	// Defaults to ./.atomik for "file".
	Dir string `json:"dir,omitempty"`
}

// InspectConfig configures the debug server.
type InspectConfig struct {
	// Addr is the listen address, e.g. "localhost:6060".
	// Empty disables the inspect server.
	Addr string `json:"addr,omitempty"`
}

// Config represents the complete atomik.json configuration.
type Config struct {
	// Debug enables debug logging of waves and dispatches.
	Debug bool `json:"debug,omitempty"`

	// MaxWorkers bounds the deferred-mutation worker pool (1..32).
	MaxWorkers int `json:"max_workers,omitempty"`

	// WorkerNamePrefix names worker goroutines in logs.
	WorkerNamePrefix string `json:"worker_name_prefix,omitempty"`

	// AutoCleanup detaches all nodes when the graph closes.
	// Pointer so that an absent field defaults to true.
	AutoCleanup *bool `json:"auto_cleanup,omitempty"`

	// Storage selects the persistence backend.
	Storage StorageConfig `json:"storage,omitempty"`

	// Inspect configures the debug server.
	Inspect InspectConfig `json:"inspect,omitempty"`

	// configPath stores the path the config was loaded from.
	configPath string
}

// Default returns the configuration used when no atomik.json exists.
func Default() *Config {
	auto := true
	return &Config{
		MaxWorkers:       DefaultMaxWorkers,
		WorkerNamePrefix: DefaultWorkerNamePrefix,
		AutoCleanup:      &auto,
		Storage:          StorageConfig{Backend: "file", Dir: ".atomik"},
	}
}

// Load reads atomik.json from dir.
func Load(dir string) (*Config, error) {
	return LoadFile(filepath.Join(dir, ConfigFileName))
}

// LoadFile reads a configuration file from an explicit path.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New("E101").
				WithDetail("no " + ConfigFileName + " found in " + filepath.Dir(path)).
				WithSuggestion("create " + ConfigFileName + " or run without a config file for defaults")
		}
		return nil, errors.New("E101").Wrap(err)
	}

	cfg := Default()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, errors.New("E102").
			WithDetail(err.Error()).
			WithSuggestion("check that " + ConfigFileName + " is valid JSON")
	}
	cfg.configPath = path
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault reads atomik.json from dir, falling back to defaults when
// the file does not exist. Parse and validation failures still error.
func LoadOrDefault(dir string) (*Config, error) {
	cfg, err := Load(dir)
	if err != nil {
		var ae *errors.AtomikError
		if stderrors.As(err, &ae) && ae.Code == "E101" {
			return Default(), nil
		}
		return nil, err
	}
	return cfg, nil
}

// Path returns where the config was loaded from, or "" for defaults.
func (c *Config) Path() string { return c.configPath }

// applyDefaults fills unset fields.
func (c *Config) applyDefaults() {
	if c.MaxWorkers == 0 {
		c.MaxWorkers = DefaultMaxWorkers
	}
	if c.WorkerNamePrefix == "" {
		c.WorkerNamePrefix = DefaultWorkerNamePrefix
	}
	if c.AutoCleanup == nil {
		auto := true
		c.AutoCleanup = &auto
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = "file"
	}
	if c.Storage.Dir == "" && c.Storage.Backend != "none" {
		c.Storage.Dir = ".atomik"
	}
}

// Validate rejects out-of-range or unknown values.
func (c *Config) Validate() error {
	if c.MaxWorkers < 1 {
		return errors.New("E103").
			WithDetail("max_workers must be at least 1").
			WithSuggestion("remove max_workers to use the default of 4")
	}
	if c.MaxWorkers > MaxWorkersLimit {
		return errors.New("E103").
			WithDetail("max_workers must not exceed 32").
			WithSuggestion("lower max_workers; the pool is meant to stay small")
	}
	switch c.Storage.Backend {
	case "file", "badger", "none":
	default:
		return errors.New("E103").
			WithDetail("unknown storage backend " + c.Storage.Backend).
			WithSuggestion(`use "file", "badger", or "none"`)
	}
	return nil
}

// Exists reports whether dir contains an atomik.json.
func Exists(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, ConfigFileName))
	return err == nil
}

// FindRoot walks up from startDir to the filesystem root and returns the
// nearest directory containing atomik.json.
func FindRoot(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}

	for {
		if Exists(dir) {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.New("E101").
				WithDetail("no " + ConfigFileName + " found in " + startDir + " or any parent directory").
				WithSuggestion("create " + ConfigFileName + " or run without a config file for defaults")
		}
		dir = parent
	}
}

// Discover walks up from startDir and loads the nearest atomik.json,
// falling back to defaults when no ancestor has one.
func Discover(startDir string) (*Config, error) {
	root, err := FindRoot(startDir)
	if err != nil {
		var ae *errors.AtomikError
		if stderrors.As(err, &ae) && ae.Code == "E101" {
			return Default(), nil
		}
		return nil, err
	}
	return Load(root)
}

// GraphOptions maps the configuration onto atomik graph options.
func (c *Config) GraphOptions() []atomik.GraphOption {
	return []atomik.GraphOption{
		atomik.WithMaxWorkers(c.MaxWorkers),
		atomik.WithWorkerNamePrefix(c.WorkerNamePrefix),
		atomik.WithAutoCleanup(*c.AutoCleanup),
		atomik.WithDebug(c.Debug),
	}
}
