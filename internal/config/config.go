// Package config provides configuration loading and management for the replication server.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/stacklok/toolhive-replication-server/internal/resource"
	"github.com/stacklok/toolhive-replication-server/internal/telemetry"
)

// EnvPrefix is the prefix of every environment variable read by the server
const EnvPrefix = "THV_REPLICATION"

// ErrConfiguration marks failures caused by node configuration, such as a
// missing primary URL or an unusable signing key. They are not retried.
var ErrConfiguration = errors.New("configuration error")

// Role is the replication role of a node
type Role string

const (
	// RolePrimary holds the authoritative copy of every resource
	RolePrimary Role = "primary"

	// RoleSecondary replicates resources from the primary
	RoleSecondary Role = "secondary"
)

// StorageType selects the backing store for registries, leases and events
type StorageType string

const (
	// StorageTypeFile keeps state on the local filesystem (single node)
	StorageTypeFile StorageType = "file"

	// StorageTypeDatabase keeps state in PostgreSQL
	StorageTypeDatabase StorageType = "database"
)

const (
	defaultDataDir               = "./data"
	defaultLeaseTimeout          = 8 * time.Hour
	defaultPollInterval          = 2 * time.Minute
	defaultResyncInterval        = 6 * time.Hour
	defaultVerificationInterval  = 10 * time.Minute
	defaultReverificationPeriod  = 24 * time.Hour
	defaultMaxConcurrency        = 4
	defaultEventBatchSize        = 500
	defaultPruneInterval         = time.Hour
	defaultPruneBatchSize        = 1000
	defaultTokenTTL              = 10 * time.Minute
	defaultStatusTimeout         = 10 * time.Second
	defaultStatusPushInterval    = time.Minute
	signingKeyEnvVar             = EnvPrefix + "_SIGNING_KEY"
	databasePasswordEnvVar       = EnvPrefix + "_DATABASE_PASSWORD"
	minSigningKeyLength          = 32
	defaultDatabaseSSLMode       = "require"
	defaultRetryBeforeRedownload = 5
	defaultRetryLimit            = 8
)

// Option defines the interface for configuration options
type Option func(*loaderConfig) error

// loaderConfig defines the configuration for loading a configuration
type loaderConfig struct {
	path string
}

// WithConfigPath loads configuration from a YAML file
func WithConfigPath(path string) Option {
	return func(cfg *loaderConfig) error {
		if path == "" {
			return fmt.Errorf("path is required")
		}

		// Resolve symlinks to prevent symlink attacks.
		// Note that this calls filepath.Clean internally.
		realPath, err := filepath.EvalSymlinks(path)
		if err != nil {
			return fmt.Errorf("failed to evaluate symlinks: %w", err)
		}

		if !filepath.IsAbs(realPath) && !filepath.IsLocal(realPath) {
			return fmt.Errorf("path is not local or contains invalid traversal: %s", path)
		}

		cfg.path = realPath
		return nil
	}
}

// Config represents the root configuration structure
type Config struct {
	Node         NodeConfig         `yaml:"node"`
	Storage      StorageConfig      `yaml:"storage,omitempty"`
	Sync         SyncConfig         `yaml:"sync,omitempty"`
	Verification VerificationConfig `yaml:"verification,omitempty"`
	Events       EventsConfig       `yaml:"events,omitempty"`
	Resources    []ResourceConfig   `yaml:"resources,omitempty"`
	Secondaries  []SecondaryConfig  `yaml:"secondaries,omitempty"`
	Database     *DatabaseConfig    `yaml:"database,omitempty"`
	Telemetry    *telemetry.Config  `yaml:"telemetry,omitempty"`
}

// NodeConfig describes this node and how it reaches the primary
type NodeConfig struct {
	// Name identifies the node in status payloads and event cursors
	Name string `yaml:"name"`

	// Role is either primary or secondary
	Role Role `yaml:"role"`

	// PrimaryURL is the base URL of the primary node. Required on secondaries.
	PrimaryURL string `yaml:"primaryURL,omitempty"`

	// ReplicationEnabled turns replication on or off without changing the role
	// Defaults to true
	ReplicationEnabled *bool `yaml:"replicationEnabled,omitempty"`

	// SigningKeyFile holds the shared secret used to sign bearer tokens
	SigningKeyFile string `yaml:"signingKeyFile,omitempty"`

	// TokenTTL bounds the lifetime of issued bearer tokens (e.g., "10m")
	TokenTTL string `yaml:"tokenTTL,omitempty"`

	// StatusTimeout is the timeout of status requests to other nodes
	StatusTimeout string `yaml:"statusTimeout,omitempty"`

	// StatusPushInterval is how often a secondary pushes its status to the primary
	StatusPushInterval string `yaml:"statusPushInterval,omitempty"`
}

// StorageConfig selects where replication state is stored
type StorageConfig struct {
	// Type is file or database. Defaults to file.
	Type StorageType `yaml:"type,omitempty"`

	// DataDir is where local resource copies and file-based state live
	DataDir string `yaml:"dataDir,omitempty"`
}

// SyncConfig tunes the sync orchestrator and its scheduler
type SyncConfig struct {
	RetryBeforeRedownload *int   `yaml:"retryBeforeRedownload,omitempty"`
	RetryLimit            *int   `yaml:"retryLimit,omitempty"`
	BaseRetryDelay        string `yaml:"baseRetryDelay,omitempty"`
	LeaseTimeout          string `yaml:"leaseTimeout,omitempty"`
	PollInterval          string `yaml:"pollInterval,omitempty"`
	ResyncInterval        string `yaml:"resyncInterval,omitempty"`
	MaxConcurrency        int    `yaml:"maxConcurrency,omitempty"`
}

// VerificationConfig tunes the checksum verification pass
type VerificationConfig struct {
	// Enabled defaults to true
	Enabled              *bool  `yaml:"enabled,omitempty"`
	Interval             string `yaml:"interval,omitempty"`
	ReverificationPeriod string `yaml:"reverificationPeriod,omitempty"`
	MaxConcurrency       int    `yaml:"maxConcurrency,omitempty"`
}

// EventsConfig tunes event draining and pruning
type EventsConfig struct {
	BatchSize      int    `yaml:"batchSize,omitempty"`
	PruneInterval  string `yaml:"pruneInterval,omitempty"`
	PruneBatchSize int    `yaml:"pruneBatchSize,omitempty"`
}

// ResourceConfig declares a resource that is tracked from start-up
type ResourceConfig struct {
	Type resource.Type `yaml:"type"`
	ID   string        `yaml:"id"`
}

// Key returns the resource key of the declaration
func (r ResourceConfig) Key() resource.Key {
	return resource.Key{Type: r.Type, ID: r.ID}
}

// SecondaryConfig declares a secondary node known to the primary
type SecondaryConfig struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

// DatabaseConfig defines database connection settings
type DatabaseConfig struct {
	// Host is the database server hostname or IP address
	Host string `yaml:"host"`

	// Port is the database server port
	Port int `yaml:"port"`

	// User is the database username
	User string `yaml:"user"`

	// PasswordFile is the path to a file containing the database password
	PasswordFile string `yaml:"passwordFile,omitempty"`

	// Database is the database name
	Database string `yaml:"database"`

	// SSLMode is the SSL mode for the connection (disable, require, verify-ca, verify-full)
	SSLMode string `yaml:"sslMode,omitempty"`

	// MaxOpenConns is the maximum number of open connections to the database
	MaxOpenConns int32 `yaml:"maxOpenConns,omitempty"`

	// MaxIdleConns is the minimum number of connections kept in the pool
	MaxIdleConns int32 `yaml:"maxIdleConns,omitempty"`

	// ConnMaxLifetime is the maximum lifetime of a connection (e.g., "1h", "30m")
	ConnMaxLifetime string `yaml:"connMaxLifetime,omitempty"`
}

// GetPassword returns the database password using the following priority:
// 1. Read from PasswordFile if specified
// 2. Read from THV_REPLICATION_DATABASE_PASSWORD environment variable
func (d *DatabaseConfig) GetPassword() (string, error) {
	if d.PasswordFile != "" {
		data, err := os.ReadFile(filepath.Clean(d.PasswordFile))
		if err != nil {
			return "", fmt.Errorf("failed to read password from file %s: %w", d.PasswordFile, err)
		}
		return strings.TrimSpace(string(data)), nil
	}

	if envPassword := os.Getenv(databasePasswordEnvVar); envPassword != "" {
		return envPassword, nil
	}

	return "", fmt.Errorf(
		"no database password configured: set passwordFile or %s environment variable", databasePasswordEnvVar,
	)
}

// GetConnectionString builds a PostgreSQL connection string.
// The password is URL-escaped to handle special characters safely.
func (d *DatabaseConfig) GetConnectionString() (string, error) {
	password, err := d.GetPassword()
	if err != nil {
		return "", err
	}

	sslMode := d.SSLMode
	if sslMode == "" {
		sslMode = defaultDatabaseSSLMode
	}

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, password),
		Host:     fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:     d.Database,
		RawQuery: "sslmode=" + url.QueryEscape(sslMode),
	}
	return u.String(), nil
}

// LoadConfig loads and parses configuration from a YAML file
func LoadConfig(opts ...Option) (*Config, error) {
	loaderCfg := &loaderConfig{}
	for _, opt := range opts {
		if err := opt(loaderCfg); err != nil {
			return nil, err
		}
	}

	if loaderCfg.path == "" {
		return nil, fmt.Errorf("path is required")
	}

	data, err := os.ReadFile(loaderCfg.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c == nil {
		return fmt.Errorf("config cannot be nil")
	}

	var errs []error

	if c.Node.Name == "" {
		errs = append(errs, fmt.Errorf("node.name is required"))
	}

	switch c.Node.Role {
	case RolePrimary:
	case RoleSecondary:
		if c.Node.PrimaryURL == "" {
			errs = append(errs, fmt.Errorf("node.primaryURL is required for secondary nodes"))
		}
	default:
		errs = append(errs, fmt.Errorf("node.role must be %q or %q, got %q", RolePrimary, RoleSecondary, c.Node.Role))
	}

	if c.Node.PrimaryURL != "" {
		if u, err := url.Parse(c.Node.PrimaryURL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("node.primaryURL %q is not an absolute URL", c.Node.PrimaryURL))
		}
	}

	switch c.Storage.Type {
	case "", StorageTypeFile:
	case StorageTypeDatabase:
		if c.Database == nil {
			errs = append(errs, fmt.Errorf("database configuration is required for database storage"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.type must be %q or %q, got %q",
			StorageTypeFile, StorageTypeDatabase, c.Storage.Type))
	}

	durations := map[string]string{
		"node.tokenTTL":                     c.Node.TokenTTL,
		"node.statusTimeout":                c.Node.StatusTimeout,
		"node.statusPushInterval":           c.Node.StatusPushInterval,
		"sync.baseRetryDelay":               c.Sync.BaseRetryDelay,
		"sync.leaseTimeout":                 c.Sync.LeaseTimeout,
		"sync.pollInterval":                 c.Sync.PollInterval,
		"sync.resyncInterval":               c.Sync.ResyncInterval,
		"verification.interval":             c.Verification.Interval,
		"verification.reverificationPeriod": c.Verification.ReverificationPeriod,
		"events.pruneInterval":              c.Events.PruneInterval,
	}
	for field, value := range durations {
		if err := validateDuration(value); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", field, err))
		}
	}

	if c.Sync.RetryBeforeRedownload != nil && c.Sync.RetryLimit != nil &&
		*c.Sync.RetryLimit < *c.Sync.RetryBeforeRedownload {
		errs = append(errs, fmt.Errorf("sync.retryLimit must not be lower than sync.retryBeforeRedownload"))
	}

	seen := make(map[resource.Key]bool)
	for i, res := range c.Resources {
		key := res.Key()
		if err := key.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("resources[%d]: %w", i, err))
			continue
		}
		if seen[key] {
			errs = append(errs, fmt.Errorf("resources[%d]: duplicate resource %s", i, key))
		}
		seen[key] = true
	}

	names := make(map[string]bool)
	for i, sec := range c.Secondaries {
		if sec.Name == "" {
			errs = append(errs, fmt.Errorf("secondaries[%d]: name is required", i))
		}
		if names[sec.Name] {
			errs = append(errs, fmt.Errorf("secondaries[%d]: duplicate secondary name '%s'", i, sec.Name))
		}
		names[sec.Name] = true
	}

	if err := c.Telemetry.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("telemetry: %w", err))
	}

	return errors.Join(errs...)
}

func validateDuration(value string) error {
	if value == "" {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value, err)
	}
	if d <= 0 {
		return fmt.Errorf("duration must be positive, got %q", value)
	}
	return nil
}

// durationOrDefault parses a validated duration string, falling back to def when unset
func durationOrDefault(value string, def time.Duration) time.Duration {
	if value == "" {
		return def
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// IsPrimary reports whether this node is the primary
func (c *Config) IsPrimary() bool {
	return c.Node.Role == RolePrimary
}

// IsSecondary reports whether this node is a secondary
func (c *Config) IsSecondary() bool {
	return c.Node.Role == RoleSecondary
}

// ReplicationEnabled reports whether replication is active on this node
func (c *Config) ReplicationEnabled() bool {
	return c.Node.ReplicationEnabled == nil || *c.Node.ReplicationEnabled
}

// EventLogActive reports whether the primary should record change events.
// Events are only useful when at least one secondary consumes them.
func (c *Config) EventLogActive() bool {
	return c.IsPrimary() && c.ReplicationEnabled() && len(c.Secondaries) > 0
}

// GetStorageType returns the storage type, defaulting to file
func (c *Config) GetStorageType() StorageType {
	if c.Storage.Type == "" {
		return StorageTypeFile
	}
	return c.Storage.Type
}

// GetDataDir returns the data directory, defaulting to ./data
func (c *Config) GetDataDir() string {
	if c.Storage.DataDir == "" {
		return defaultDataDir
	}
	return c.Storage.DataDir
}

// GetRepositoriesDir returns where local resource copies are stored
func (c *Config) GetRepositoriesDir() string {
	return filepath.Join(c.GetDataDir(), "repositories")
}

// GetSigningKey returns the shared token signing secret using the following priority:
// 1. Read from Node.SigningKeyFile if specified
// 2. Read from THV_REPLICATION_SIGNING_KEY environment variable
func (c *Config) GetSigningKey() ([]byte, error) {
	var key string
	switch {
	case c.Node.SigningKeyFile != "":
		data, err := os.ReadFile(filepath.Clean(c.Node.SigningKeyFile))
		if err != nil {
			return nil, fmt.Errorf("failed to read signing key from file %s: %w", c.Node.SigningKeyFile, err)
		}
		key = strings.TrimSpace(string(data))
	default:
		key = os.Getenv(signingKeyEnvVar)
	}

	if key == "" {
		return nil, fmt.Errorf("no signing key configured: set node.signingKeyFile or %s", signingKeyEnvVar)
	}
	if len(key) < minSigningKeyLength {
		return nil, fmt.Errorf("signing key must be at least %d bytes", minSigningKeyLength)
	}
	return []byte(key), nil
}

// GetTokenTTL returns the bearer token lifetime
func (c *Config) GetTokenTTL() time.Duration {
	return durationOrDefault(c.Node.TokenTTL, defaultTokenTTL)
}

// GetStatusTimeout returns the timeout of status requests
func (c *Config) GetStatusTimeout() time.Duration {
	return durationOrDefault(c.Node.StatusTimeout, defaultStatusTimeout)
}

// GetStatusPushInterval returns how often a secondary pushes its status
func (c *Config) GetStatusPushInterval() time.Duration {
	return durationOrDefault(c.Node.StatusPushInterval, defaultStatusPushInterval)
}

// GetRetryBeforeRedownload returns the highest retry count that still fetches incrementally
func (c *Config) GetRetryBeforeRedownload() int {
	if c.Sync.RetryBeforeRedownload == nil {
		return defaultRetryBeforeRedownload
	}
	return *c.Sync.RetryBeforeRedownload
}

// GetRetryLimit returns the highest retry count that still redownloads
func (c *Config) GetRetryLimit() int {
	if c.Sync.RetryLimit == nil {
		return defaultRetryLimit
	}
	return *c.Sync.RetryLimit
}

// GetBaseRetryDelay returns the unit of the retry backoff curve.
// Zero means the retry package default.
func (c *Config) GetBaseRetryDelay() time.Duration {
	return durationOrDefault(c.Sync.BaseRetryDelay, 0)
}

// GetLeaseTimeout returns the lease timeout
func (c *Config) GetLeaseTimeout() time.Duration {
	return durationOrDefault(c.Sync.LeaseTimeout, defaultLeaseTimeout)
}

// GetPollInterval returns the scheduler polling interval
func (c *Config) GetPollInterval() time.Duration {
	return durationOrDefault(c.Sync.PollInterval, defaultPollInterval)
}

// GetResyncInterval returns how long a successful sync stays fresh
func (c *Config) GetResyncInterval() time.Duration {
	return durationOrDefault(c.Sync.ResyncInterval, defaultResyncInterval)
}

// GetSyncConcurrency returns the maximum number of concurrent syncs
func (c *Config) GetSyncConcurrency() int {
	if c.Sync.MaxConcurrency <= 0 {
		return defaultMaxConcurrency
	}
	return c.Sync.MaxConcurrency
}

// VerificationEnabled reports whether the verification pass runs
func (c *Config) VerificationEnabled() bool {
	return c.Verification.Enabled == nil || *c.Verification.Enabled
}

// GetVerificationInterval returns how often the verification pass runs
func (c *Config) GetVerificationInterval() time.Duration {
	return durationOrDefault(c.Verification.Interval, defaultVerificationInterval)
}

// GetReverificationPeriod returns how long a successful verification stays fresh
func (c *Config) GetReverificationPeriod() time.Duration {
	return durationOrDefault(c.Verification.ReverificationPeriod, defaultReverificationPeriod)
}

// GetVerificationConcurrency returns the maximum number of concurrent verifications
func (c *Config) GetVerificationConcurrency() int {
	if c.Verification.MaxConcurrency <= 0 {
		return defaultMaxConcurrency
	}
	return c.Verification.MaxConcurrency
}

// GetEventBatchSize returns how many events are drained per batch
func (c *Config) GetEventBatchSize() int {
	if c.Events.BatchSize <= 0 {
		return defaultEventBatchSize
	}
	return c.Events.BatchSize
}

// GetPruneInterval returns how often the primary prunes the event log
func (c *Config) GetPruneInterval() time.Duration {
	return durationOrDefault(c.Events.PruneInterval, defaultPruneInterval)
}

// GetPruneBatchSize returns how many events are deleted per prune batch
func (c *Config) GetPruneBatchSize() int {
	if c.Events.PruneBatchSize <= 0 {
		return defaultPruneBatchSize
	}
	return c.Events.PruneBatchSize
}
