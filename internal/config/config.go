// Package config loads the service configuration from defaults, an optional
// YAML file and FLOWAUTH_ prefixed environment variables.
package config

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const EnvPrefix = "FLOWAUTH"

// Storage drivers
const (
	DriverMemory   = "memory"
	DriverRedis    = "redis"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Event drivers
const (
	EventsGoChannel = "gochannel"
	EventsRedis     = "redis"
)

type Config struct {
	Server    Server
	Log       Log
	Auth      Auth
	Session   Session
	Flow      Flow
	Storage   Storage
	Redis     Redis
	Events    Events
	RateLimit RateLimit
}

type Server struct {
	Addr string
	Mode string // gin mode: debug, release or test

	// TrustedProxies lists the IPs or CIDRs whose X-Forwarded-For header is
	// believed. Empty means the peer address is the client.
	TrustedProxies []string
}

type Log struct {
	Level  string
	Pretty bool
}

type Auth struct {
	AppID           string
	NonceTTL        time.Duration
	NonceRetention  time.Duration
	JanitorInterval time.Duration
}

type Session struct {
	TTL            time.Duration
	Issuer         string
	Audience       string
	SigningKeyFile string // empty means an ephemeral key is generated at startup
}

type Flow struct {
	AccessNode     string
	Network        string
	Timeout        time.Duration
	ServiceAccount ServiceAccount
}

type ServiceAccount struct {
	Address            string
	KeyIndex           int
	PrivateKey         string
	SignatureAlgorithm string
	HashAlgorithm      string
}

type Storage struct {
	Nonces      string
	Documents   string
	SQLitePath  string
	PostgresDSN string
}

type Redis struct {
	URL string
}

type Events struct {
	Driver string
}

type RateLimit struct {
	RPS   float64
	Burst int
}

// SetDefaults registers the default value of every key on v
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":9000")
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.trusted_proxies", []string{})

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	v.SetDefault("auth.app_id", "DAO LLC Governance Portal (v0.1)")
	v.SetDefault("auth.nonce_ttl", "60s")
	v.SetDefault("auth.nonce_retention", "10m")
	v.SetDefault("auth.janitor_interval", "1m")

	v.SetDefault("session.ttl", "1h")
	v.SetDefault("session.issuer", "flowauth")
	v.SetDefault("session.audience", "session:access")
	v.SetDefault("session.signing_key_file", "")

	v.SetDefault("flow.access_node", "https://rest-testnet.onflow.org")
	v.SetDefault("flow.network", "testnet")
	v.SetDefault("flow.timeout", "10s")
	v.SetDefault("flow.service_account.address", "")
	v.SetDefault("flow.service_account.key_index", 0)
	v.SetDefault("flow.service_account.private_key", "")
	v.SetDefault("flow.service_account.signature_algorithm", "ECDSA_P256")
	v.SetDefault("flow.service_account.hash_algorithm", "SHA3_256")

	v.SetDefault("storage.nonces", DriverMemory)
	v.SetDefault("storage.documents", DriverMemory)
	v.SetDefault("storage.sqlite_path", "flowauth.db")
	v.SetDefault("storage.postgres_dsn", "")

	v.SetDefault("redis.url", "redis://localhost:6379/0")

	v.SetDefault("events.driver", EventsGoChannel)

	v.SetDefault("ratelimit.rps", 5)
	v.SetDefault("ratelimit.burst", 20)
}

// New returns a viper instance with defaults and environment binding configured
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the optional config file and returns the validated configuration
func Load(v *viper.Viper, file string) (*Config, error) {
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg := &Config{
		Server: Server{
			Addr:           v.GetString("server.addr"),
			Mode:           v.GetString("server.mode"),
			TrustedProxies: v.GetStringSlice("server.trusted_proxies"),
		},
		Log: Log{
			Level:  v.GetString("log.level"),
			Pretty: v.GetBool("log.pretty"),
		},
		Auth: Auth{
			AppID:           v.GetString("auth.app_id"),
			NonceTTL:        v.GetDuration("auth.nonce_ttl"),
			NonceRetention:  v.GetDuration("auth.nonce_retention"),
			JanitorInterval: v.GetDuration("auth.janitor_interval"),
		},
		Session: Session{
			TTL:            v.GetDuration("session.ttl"),
			Issuer:         v.GetString("session.issuer"),
			Audience:       v.GetString("session.audience"),
			SigningKeyFile: v.GetString("session.signing_key_file"),
		},
		Flow: Flow{
			AccessNode: v.GetString("flow.access_node"),
			Network:    v.GetString("flow.network"),
			Timeout:    v.GetDuration("flow.timeout"),
			ServiceAccount: ServiceAccount{
				Address:            v.GetString("flow.service_account.address"),
				KeyIndex:           v.GetInt("flow.service_account.key_index"),
				PrivateKey:         v.GetString("flow.service_account.private_key"),
				SignatureAlgorithm: v.GetString("flow.service_account.signature_algorithm"),
				HashAlgorithm:      v.GetString("flow.service_account.hash_algorithm"),
			},
		},
		Storage: Storage{
			Nonces:      strings.ToLower(v.GetString("storage.nonces")),
			Documents:   strings.ToLower(v.GetString("storage.documents")),
			SQLitePath:  v.GetString("storage.sqlite_path"),
			PostgresDSN: v.GetString("storage.postgres_dsn"),
		},
		Redis: Redis{
			URL: v.GetString("redis.url"),
		},
		Events: Events{
			Driver: strings.ToLower(v.GetString("events.driver")),
		},
		RateLimit: RateLimit{
			RPS:   v.GetFloat64("ratelimit.rps"),
			Burst: v.GetInt("ratelimit.burst"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks values that would otherwise fail later at runtime
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Auth.AppID) == "" {
		return fmt.Errorf("auth.app_id must not be empty")
	}
	if c.Auth.NonceTTL <= 0 {
		return fmt.Errorf("auth.nonce_ttl must be positive")
	}
	if c.Auth.NonceRetention < 0 {
		return fmt.Errorf("auth.nonce_retention must not be negative")
	}
	if c.Auth.JanitorInterval <= 0 {
		return fmt.Errorf("auth.janitor_interval must be positive")
	}
	if c.Session.TTL <= 0 {
		return fmt.Errorf("session.ttl must be positive")
	}
	for _, proxy := range c.Server.TrustedProxies {
		if _, _, err := net.ParseCIDR(proxy); err != nil && net.ParseIP(proxy) == nil {
			return fmt.Errorf("server.trusted_proxies: %q is neither an IP nor a CIDR", proxy)
		}
	}

	switch c.Storage.Nonces {
	case DriverMemory, DriverRedis, DriverSQLite, DriverPostgres:
	default:
		return fmt.Errorf("unknown storage.nonces driver %q", c.Storage.Nonces)
	}
	switch c.Storage.Documents {
	case DriverMemory, DriverSQLite, DriverPostgres:
	default:
		return fmt.Errorf("unknown storage.documents driver %q", c.Storage.Documents)
	}
	if (c.Storage.Nonces == DriverPostgres || c.Storage.Documents == DriverPostgres) && c.Storage.PostgresDSN == "" {
		return fmt.Errorf("storage.postgres_dsn is required for the postgres driver")
	}

	switch c.Events.Driver {
	case EventsGoChannel, EventsRedis:
	default:
		return fmt.Errorf("unknown events.driver %q", c.Events.Driver)
	}

	return nil
}
