// Package config provides configuration loading and management for the ERP sync server.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix for all environment variables read by the server
const EnvPrefix = "ERPSYNC"

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

		// Validate the path to prevent path traversal attacks
		if !filepath.IsAbs(realPath) {
			if !filepath.IsLocal(realPath) {
				return fmt.Errorf("path is not local or contains invalid traversal: %s", path)
			}
		}

		cfg.path = realPath
		return nil
	}
}

// Config represents the root configuration structure
type Config struct {
	// ServerName is the name/identifier for this sync server instance
	// Defaults to "default" if not specified
	ServerName string          `yaml:"serverName,omitempty"`
	Tenants    []TenantConfig  `yaml:"tenants"`
	Crawl      *CrawlConfig    `yaml:"crawl,omitempty"`
	Client     *ClientConfig   `yaml:"client,omitempty"`
	Lookup     *LookupConfig   `yaml:"lookup,omitempty"`
	Database   *DatabaseConfig `yaml:"database,omitempty"`
}

// TenantConfig defines a single ERP tenant (one independently-credentialed account)
type TenantConfig struct {
	// Name is the identifier for this tenant
	Name string `yaml:"name"`

	// Endpoint is the base ERP API URL (without path)
	// The client will append the appropriate paths, for instance:
	//   - /products?page=1&limit=100
	//   - /invoices/{id}
	// Example: "https://erp.example.com/api/v3"
	Endpoint string `yaml:"endpoint"`

	// Credentials holds the bearer credential settings for this tenant
	Credentials *CredentialsConfig `yaml:"credentials,omitempty"`
}

// CredentialsConfig defines how a tenant's bearer credential is obtained and refreshed
type CredentialsConfig struct {
	// TokenFile is the path to a file containing the current access token.
	// The file should contain only the token with optional trailing whitespace.
	TokenFile string `yaml:"tokenFile,omitempty"`

	// RefreshTokenFile is the path to a file containing the refresh token
	RefreshTokenFile string `yaml:"refreshTokenFile,omitempty"`

	// TokenURL is the OAuth token endpoint used to refresh the access token
	// when the ERP reports it as expired
	TokenURL string `yaml:"tokenURL,omitempty"`
}

// CrawlConfig defines bulk crawl settings shared by all tenants
type CrawlConfig struct {
	// PageSize is the number of entity summaries requested per page
	PageSize int `yaml:"pageSize,omitempty"`

	// MaxPages caps how many pages a single crawl invocation walks
	MaxPages int `yaml:"maxPages,omitempty"`

	// ProductInterval is how often the product crawl runs (e.g. "6h")
	ProductInterval string `yaml:"productInterval,omitempty"`

	// InvoiceInterval is how often the invoice crawl runs per tenant (e.g. "30m")
	InvoiceInterval string `yaml:"invoiceInterval,omitempty"`
}

// ClientConfig defines outbound ERP client settings
type ClientConfig struct {
	// MaxAttempts is the total number of attempts per request before giving up
	MaxAttempts int `yaml:"maxAttempts,omitempty"`

	// InitialBackoff is the base retry delay, doubling per attempt (e.g. "500ms")
	InitialBackoff string `yaml:"initialBackoff,omitempty"`

	// RateLimitDelay is the fixed longer delay applied after an HTTP 429 (e.g. "15s")
	RateLimitDelay string `yaml:"rateLimitDelay,omitempty"`

	// Timeout is the per-request HTTP timeout (e.g. "30s")
	Timeout string `yaml:"timeout,omitempty"`

	// RequestsPerSecond paces outbound calls per tenant
	RequestsPerSecond float64 `yaml:"requestsPerSecond,omitempty"`
}

// LookupConfig defines on-demand lookup queue settings
type LookupConfig struct {
	// QueueSize bounds the number of pending lookup requests
	QueueSize int `yaml:"queueSize,omitempty"`
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
	// This is the recommended approach for production deployments
	// The file should contain only the password with optional trailing whitespace
	PasswordFile string `yaml:"passwordFile,omitempty"`

	// Database is the database name
	Database string `yaml:"database"`

	// SSLMode is the SSL mode for the connection (disable, require, verify-ca, verify-full)
	SSLMode string `yaml:"sslMode,omitempty"`

	// MaxOpenConns is the maximum number of open connections to the database
	MaxOpenConns int32 `yaml:"maxOpenConns,omitempty"`

	// MaxIdleConns is the maximum number of idle connections in the pool
	MaxIdleConns int32 `yaml:"maxIdleConns,omitempty"`

	// ConnMaxLifetime is the maximum lifetime of a connection (e.g., "1h", "30m")
	ConnMaxLifetime string `yaml:"connMaxLifetime,omitempty"`
}

// GetPassword returns the database password using the following priority:
// 1. Read from PasswordFile if specified
// 2. Read from ERPSYNC_DATABASE_PASSWORD environment variable
//
// The password from file will have leading/trailing whitespace trimmed.
func (d *DatabaseConfig) GetPassword() (string, error) {
	// Priority 1: Read from file if specified
	if d.PasswordFile != "" {
		// Use filepath.Clean to prevent path traversal attacks
		cleanPath := filepath.Clean(d.PasswordFile)

		data, err := os.ReadFile(cleanPath)
		if err != nil {
			return "", fmt.Errorf("failed to read password from file %s: %w", d.PasswordFile, err)
		}

		// Trim whitespace (including newlines) from file content
		password := strings.TrimSpace(string(data))
		return password, nil
	}

	// Priority 2: Check environment variable
	if envPassword := os.Getenv("ERPSYNC_DATABASE_PASSWORD"); envPassword != "" {
		return envPassword, nil
	}

	return "", fmt.Errorf(
		"no database password configured: set passwordFile or ERPSYNC_DATABASE_PASSWORD environment variable",
	)
}

// GetConnectionString builds a PostgreSQL connection string with proper password handling.
// The password is URL-escaped to handle special characters safely.
func (d *DatabaseConfig) GetConnectionString() (string, error) {
	password, err := d.GetPassword()
	if err != nil {
		return "", err
	}

	sslMode := d.SSLMode
	if sslMode == "" {
		sslMode = "require"
	}

	// URL-escape the password to handle special characters
	escapedPassword := url.QueryEscape(password)

	connString := fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User,
		escapedPassword,
		d.Host,
		d.Port,
		d.Database,
		sslMode,
	)

	return connString, nil
}

// GetToken returns the tenant's current access token using the following priority:
// 1. Read from Credentials.TokenFile if specified
// 2. Read from ERPSYNC_TOKEN_<TENANT> environment variable
func (t *TenantConfig) GetToken() (string, error) {
	if t.Credentials != nil && t.Credentials.TokenFile != "" {
		cleanPath := filepath.Clean(t.Credentials.TokenFile)

		data, err := os.ReadFile(cleanPath)
		if err != nil {
			return "", fmt.Errorf("failed to read token from file %s: %w", t.Credentials.TokenFile, err)
		}
		return strings.TrimSpace(string(data)), nil
	}

	envKey := "ERPSYNC_TOKEN_" + strings.ToUpper(strings.ReplaceAll(t.Name, "-", "_"))
	if envToken := os.Getenv(envKey); envToken != "" {
		return envToken, nil
	}

	return "", fmt.Errorf(
		"no token configured for tenant %s: set credentials.tokenFile or %s environment variable",
		t.Name, envKey,
	)
}

// GetRefreshToken returns the tenant's refresh token, or empty when refresh is not configured
func (t *TenantConfig) GetRefreshToken() (string, error) {
	if t.Credentials == nil || t.Credentials.RefreshTokenFile == "" {
		return "", nil
	}

	cleanPath := filepath.Clean(t.Credentials.RefreshTokenFile)
	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return "", fmt.Errorf("failed to read refresh token from file %s: %w", t.Credentials.RefreshTokenFile, err)
	}
	return strings.TrimSpace(string(data)), nil
}

// LoadConfig loads and parses configuration from a YAML file
func LoadConfig(opts ...Option) (*Config, error) {
	loaderCfg := &loaderConfig{}
	for _, opt := range opts {
		if err := opt(loaderCfg); err != nil {
			return nil, err
		}
	}

	// As of now, this is required because there's no other options to load
	// configuration. Once we add more options, we can remove this check.
	if loaderCfg.path == "" {
		return nil, fmt.Errorf("path is required")
	}

	// Read the entire file into memory
	data, err := os.ReadFile(loaderCfg.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse YAML content
	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	// Validate the config
	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// GetServerName returns the server name, using "default" if not specified
func (c *Config) GetServerName() string {
	if c.ServerName == "" {
		return "default"
	}
	return c.ServerName
}

// TenantNames returns the tenant names in configuration order.
// This order is also the search order for on-demand lookups.
func (c *Config) TenantNames() []string {
	names := make([]string, len(c.Tenants))
	for i, t := range c.Tenants {
		names[i] = t.Name
	}
	return names
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c == nil {
		return fmt.Errorf("config cannot be nil")
	}

	// Validate at least one tenant is configured
	if len(c.Tenants) == 0 {
		return fmt.Errorf("at least one tenant must be configured")
	}

	// Validate each tenant configuration
	tenantNames := make(map[string]bool)
	for i, tenant := range c.Tenants {
		// Validate tenant name
		if tenant.Name == "" {
			return fmt.Errorf("tenant[%d]: name is required", i)
		}

		// Check for duplicate tenant names
		if tenantNames[tenant.Name] {
			return fmt.Errorf("tenant[%d]: duplicate tenant name '%s'", i, tenant.Name)
		}
		tenantNames[tenant.Name] = true

		if tenant.Endpoint == "" {
			return fmt.Errorf("tenant[%d] (%s): endpoint is required", i, tenant.Name)
		}
	}

	if err := validateCrawlConfig(c.Crawl); err != nil {
		return err
	}

	return validateClientConfig(c.Client)
}

// validateCrawlConfig validates the crawl settings
func validateCrawlConfig(crawl *CrawlConfig) error {
	if crawl == nil {
		return nil
	}

	if crawl.PageSize < 0 {
		return fmt.Errorf("crawl.pageSize must not be negative")
	}
	if crawl.MaxPages < 0 {
		return fmt.Errorf("crawl.maxPages must not be negative")
	}

	for name, interval := range map[string]string{
		"crawl.productInterval": crawl.ProductInterval,
		"crawl.invoiceInterval": crawl.InvoiceInterval,
	} {
		if interval == "" {
			continue
		}
		if _, err := time.ParseDuration(interval); err != nil {
			return fmt.Errorf("%s must be a valid duration (e.g., '30m', '1h'): %w", name, err)
		}
	}

	return nil
}

// validateClientConfig validates the outbound client settings
func validateClientConfig(client *ClientConfig) error {
	if client == nil {
		return nil
	}

	if client.MaxAttempts < 0 {
		return fmt.Errorf("client.maxAttempts must not be negative")
	}
	if client.RequestsPerSecond < 0 {
		return fmt.Errorf("client.requestsPerSecond must not be negative")
	}

	for name, d := range map[string]string{
		"client.initialBackoff": client.InitialBackoff,
		"client.rateLimitDelay": client.RateLimitDelay,
		"client.timeout":        client.Timeout,
	} {
		if d == "" {
			continue
		}
		if _, err := time.ParseDuration(d); err != nil {
			return fmt.Errorf("%s must be a valid duration (e.g., '500ms', '15s'): %w", name, err)
		}
	}

	return nil
}

// Crawl defaults applied when the corresponding config values are absent.
const (
	DefaultPageSize        = 100
	DefaultMaxPages        = 60
	DefaultProductInterval = 6 * time.Hour
	DefaultInvoiceInterval = 30 * time.Minute
)

// GetPageSize returns the configured page size or the default
func (c *Config) GetPageSize() int {
	if c.Crawl == nil || c.Crawl.PageSize == 0 {
		return DefaultPageSize
	}
	return c.Crawl.PageSize
}

// GetMaxPages returns the configured page cap or the default
func (c *Config) GetMaxPages() int {
	if c.Crawl == nil || c.Crawl.MaxPages == 0 {
		return DefaultMaxPages
	}
	return c.Crawl.MaxPages
}

// GetProductInterval returns the product crawl interval or the default
func (c *Config) GetProductInterval() time.Duration {
	if c.Crawl == nil || c.Crawl.ProductInterval == "" {
		return DefaultProductInterval
	}
	d, err := time.ParseDuration(c.Crawl.ProductInterval)
	if err != nil {
		return DefaultProductInterval
	}
	return d
}

// GetLookupQueueSize returns the lookup queue capacity or zero when unset
func (c *Config) GetLookupQueueSize() int {
	if c.Lookup == nil {
		return 0
	}
	return c.Lookup.QueueSize
}

// GetInvoiceInterval returns the invoice crawl interval or the default
func (c *Config) GetInvoiceInterval() time.Duration {
	if c.Crawl == nil || c.Crawl.InvoiceInterval == "" {
		return DefaultInvoiceInterval
	}
	d, err := time.ParseDuration(c.Crawl.InvoiceInterval)
	if err != nil {
		return DefaultInvoiceInterval
	}
	return d
}
