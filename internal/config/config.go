package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/gravitrone/storesync/internal/store"
)

// DefaultTimeout is the HTTP timeout used when the config leaves it empty.
const DefaultTimeout = 30 * time.Second

// Config holds CLI configuration stored at ~/.storesync/config.
type Config struct {
	ServerURL string                 `yaml:"server_url,omitempty"`
	APIKey    string                 `yaml:"api_key"`
	Timeout   string                 `yaml:"timeout,omitempty"`
	LogLevel  string                 `yaml:"log_level,omitempty"`
	StateDB   string                 `yaml:"state_db,omitempty"`
	Stores    map[string]StoreConfig `yaml:"stores,omitempty"`
}

// Endpoint is one API url plus static params sent with every call.
type Endpoint struct {
	URL    string         `yaml:"url"`
	Params map[string]any `yaml:"params,omitempty"`
}

// Endpoints names the four urls a store talks to.
type Endpoints struct {
	Load   Endpoint `yaml:"load"`
	Save   Endpoint `yaml:"save"`
	Delete Endpoint `yaml:"delete"`
	Search Endpoint `yaml:"search"`
}

// StoreConfig defines one entity kind.
type StoreConfig struct {
	NamePlural   string         `yaml:"name_plural,omitempty"`
	API          Endpoints      `yaml:"api"`
	QueryFilter  map[string]any `yaml:"query_filter,omitempty"`
	Sort         string         `yaml:"sort,omitempty"`
	ExtendedView bool           `yaml:"extended_view,omitempty"`
	Limit        int            `yaml:"limit,omitempty"`
	// Columns are the record fields shown in list views.
	Columns []string `yaml:"columns,omitempty"`
	// Toggles map a label to the filter key/value it switches.
	Toggles map[string]Toggle `yaml:"toggles,omitempty"`
}

// Toggle is one quick filter switch.
type Toggle struct {
	Key   string `yaml:"key"`
	Value any    `yaml:"value,omitempty"`
}

// Path returns the config file path.
func Path() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".storesync", "config")
}

// DefaultStateDB is where query filters persist when state_db is empty.
func DefaultStateDB() string {
	return filepath.Join(filepath.Dir(Path()), "state.db")
}

// Load reads and parses the config file. Returns error if missing or insecure.
func Load() (*Config, error) {
	path := Path()

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("config not found: %w", err)
	}

	perm := info.Mode().Perm()
	if perm != 0600 {
		return nil, fmt.Errorf("config permissions too open: %04o (want 0600)", perm)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if cfg.APIKey == "" {
		return nil, fmt.Errorf("config missing api_key")
	}
	if _, err := cfg.HTTPTimeout(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes the config to disk with secure permissions.
func (c *Config) Save() error {
	path := Path()
	dir := filepath.Dir(path)

	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0600)
}

// HTTPTimeout parses the timeout field.
func (c *Config) HTTPTimeout() (time.Duration, error) {
	if strings.TrimSpace(c.Timeout) == "" {
		return DefaultTimeout, nil
	}
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 0, fmt.Errorf("parse timeout %q: %w", c.Timeout, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("timeout must be positive, got %s", d)
	}
	return d, nil
}

// StateDBPath returns the configured state database or the default one.
func (c *Config) StateDBPath() string {
	if c.StateDB != "" {
		return c.StateDB
	}
	return DefaultStateDB()
}

// StoreNames lists configured stores in sorted order.
func (c *Config) StoreNames() []string {
	names := make([]string, 0, len(c.Stores))
	for name := range c.Stores {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Store resolves the definition for name. Unconfigured names get REST
// defaults under /api/{plural}/.
func (c *Config) Store(name string) StoreConfig {
	sc, ok := c.Stores[name]
	if !ok {
		sc = StoreConfig{}
	}
	return sc.withDefaults(name)
}

func (sc StoreConfig) withDefaults(name string) StoreConfig {
	if sc.NamePlural == "" {
		sc.NamePlural = name + "s"
	}
	base := "/api/" + sc.NamePlural + "/"
	if sc.API.Load.URL == "" {
		sc.API.Load.URL = base
	}
	if sc.API.Save.URL == "" {
		sc.API.Save.URL = sc.API.Load.URL
	}
	if sc.API.Delete.URL == "" {
		sc.API.Delete.URL = sc.API.Load.URL
	}
	if sc.API.Search.URL == "" {
		sc.API.Search.URL = strings.TrimRight(sc.API.Load.URL, "/") + "/search"
	}
	if len(sc.Columns) == 0 {
		sc.Columns = []string{"id", "title"}
	}
	return sc
}

// ToggleLabels lists toggle labels in sorted order.
func (sc StoreConfig) ToggleLabels() []string {
	labels := make([]string, 0, len(sc.Toggles))
	for label := range sc.Toggles {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}

// Options converts the definition into store options. Callers fill in
// storage, logger and hooks.
func (sc StoreConfig) Options() store.Options {
	var filter store.Filter
	if sc.QueryFilter != nil {
		filter = store.Filter(sc.QueryFilter)
	}
	return store.Options{
		NamePlural: sc.NamePlural,
		API: store.Endpoints{
			Load:   store.Endpoint(sc.API.Load),
			Save:   store.Endpoint(sc.API.Save),
			Delete: store.Endpoint(sc.API.Delete),
			Search: store.Endpoint(sc.API.Search),
		},
		QueryFilter:  filter,
		Sort:         sc.Sort,
		ExtendedView: sc.ExtendedView,
		Limit:        sc.Limit,
	}
}
