package trino

import (
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Default buffer and pacing constants from spec §4.1 / §6.
const (
	DefaultReadDelay    = 50 * time.Millisecond
	MaxReadDelay        = 5 * time.Second
	ReadDelayMultiplier = 1.2
	ReadDelayGraceCount = 4

	// DefaultBufferSize is 5 * 10 * 1MB, the soft byte budget a PageQueue
	// enforces when it is not overridden.
	DefaultBufferSize = 5 * 10 * 1024 * 1024

	minDequeueWait = 50 * time.Millisecond
	maxDequeueWait = 10 * time.Second
	dequeueWaitStep = 100 * time.Millisecond

	targetResultSizeParam = "targetResultSize=5MB"
)

// Config seeds the initial SessionState and configures the transport a
// Client uses.
type Config struct {
	ServerURL string
	User      string
	Auth      Auth // optional; see Auth

	Catalog string
	Schema  string
	Path    string
	Source  string

	ClientTags []string
	TimeZone   string
	Locale     string

	// SessionProperties seeds the initial SessionState's Properties map
	// (e.g. from FileConfig.ApplyTo's "session_properties" table).
	SessionProperties map[string]string

	HeaderNamespace HeaderNamespace

	StatementTimeout time.Duration
	RequestTimeout   time.Duration

	// BufferSize is the soft byte budget for a PageQueue.
	// DefaultBufferSize is used when it is zero or negative, so the
	// queue always receives a strictly positive budget.
	BufferSize int64

	// MaxRetries caps the transient-HTTP-status retry loop; zero means
	// unbounded, matching spec §4.1's literal "retried indefinitely"
	// (see DESIGN.md's Open Question decision for why the default is
	// unbounded rather than capped).
	MaxRetries int

	// MaxRequestsPerSecond, when > 0, throttles outbound requests via a
	// token-bucket limiter (see transport.go).
	MaxRequestsPerSecond float64

	DisableCompression bool

	TLS TLSOptions

	ExtraHeaders map[string]string
}

// TLSOptions configures the transport's TLS behavior. Building a
// concrete *tls.Config from it is an ambient transport concern (see
// tlsconfig.go); provisioning the certificate material itself remains
// an external collaborator's job per spec §1.
type TLSOptions struct {
	// InsecureSkipVerify disables all certificate validation. Opt-in
	// only; never enabled by a zero-value Config.
	InsecureSkipVerify bool
	// CustomCACertPEM, when set, is used instead of the system trust
	// store.
	CustomCACertPEM []byte
	// AllowSelfSigned accepts a chain whose only validation failure is
	// an untrusted root, per the exact rule spec §9 calls out as an
	// Open Question / likely bug in the reference implementation.
	AllowSelfSigned bool
	// AllowHostnameMismatch skips only the CN/SAN hostname check while
	// still validating the rest of the chain.
	AllowHostnameMismatch bool
}

// resolvedSession builds the initial SessionState this Config implies.
func (c Config) resolvedSession() SessionState {
	properties := copyStringMap(c.SessionProperties)
	if properties == nil {
		properties = map[string]string{}
	}
	return SessionState{
		ServerURL:          c.ServerURL,
		User:               c.User,
		Catalog:            c.Catalog,
		Schema:             c.Schema,
		Path:               c.Path,
		TimeZone:           c.TimeZone,
		Locale:             c.Locale,
		Source:             c.Source,
		ClientTags:         append([]string(nil), c.ClientTags...),
		Compression:        !c.DisableCompression,
		TLSTrustPEM:        c.TLS.CustomCACertPEM,
		PreparedStatements: map[string]string{},
		Properties:         properties,
		ResourceEstimates:  map[string]string{},
		ExtraCredentials:   map[string]string{},
		Roles:              map[string]SelectedRole{},
		ExtraHeaders:       copyStringMap(c.ExtraHeaders),
	}
}

func (c Config) bufferSize() int64 {
	if c.BufferSize > 0 {
		return c.BufferSize
	}
	return DefaultBufferSize
}

// FileConfig is the schema for an optional TOML file of connection
// defaults, mirroring the teacher's external client-configuration-file
// feature (client_configuration.go / client_configuration_finder.go) but
// adapted to TOML and to this protocol's session properties instead of
// Snowflake's easy-logging/driver-config knobs.
type FileConfig struct {
	ServerURL string            `toml:"server_url"`
	User      string            `toml:"user"`
	Catalog   string            `toml:"catalog"`
	Schema    string            `toml:"schema"`
	Source    string            `toml:"source"`

	SessionProperties map[string]string `toml:"session_properties"`

	TLSCustomCACertPath   string `toml:"tls_ca_cert_path"`
	TLSAllowSelfSigned    bool   `toml:"tls_allow_self_signed"`
	TLSAllowHostMismatch  bool   `toml:"tls_allow_hostname_mismatch"`
}

// LoadConfigFile reads and parses an optional TOML configuration file.
// A missing file is not an error: it returns a zero-value FileConfig,
// matching the teacher's "search several well-known locations, use
// defaults if none exist" configuration-finder behavior.
func LoadConfigFile(path string) (*FileConfig, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return &FileConfig{}, nil
		}
		return nil, err
	}
	var fc FileConfig
	if _, err := toml.DecodeFile(path, &fc); err != nil {
		return nil, err
	}
	return &fc, nil
}

// ApplyTo layers the file configuration's non-zero fields under an
// explicit Config the same way the teacher layers a discovered
// configuration file under connection-string/DSN settings: explicit
// settings always win.
func (fc *FileConfig) ApplyTo(cfg *Config) error {
	if fc == nil {
		return nil
	}
	if cfg.ServerURL == "" {
		cfg.ServerURL = fc.ServerURL
	}
	if cfg.User == "" {
		cfg.User = fc.User
	}
	if cfg.Catalog == "" {
		cfg.Catalog = fc.Catalog
	}
	if cfg.Schema == "" {
		cfg.Schema = fc.Schema
	}
	if cfg.Source == "" {
		cfg.Source = fc.Source
	}
	if len(fc.SessionProperties) > 0 {
		if cfg.SessionProperties == nil {
			cfg.SessionProperties = map[string]string{}
		}
		for k, v := range fc.SessionProperties {
			if _, exists := cfg.SessionProperties[k]; !exists {
				cfg.SessionProperties[k] = v
			}
		}
	}
	if !cfg.TLS.AllowSelfSigned {
		cfg.TLS.AllowSelfSigned = fc.TLSAllowSelfSigned
	}
	if !cfg.TLS.AllowHostnameMismatch {
		cfg.TLS.AllowHostnameMismatch = fc.TLSAllowHostMismatch
	}
	if len(cfg.TLS.CustomCACertPEM) == 0 && fc.TLSCustomCACertPath != "" {
		pem, err := os.ReadFile(fc.TLSCustomCACertPath)
		if err != nil {
			return err
		}
		cfg.TLS.CustomCACertPEM = pem
	}
	return nil
}
