package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/devblac/tx-ledger/internal/ledger"
	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds the YAML configuration.
type Config struct {
	Version int           `yaml:"version"`
	Global  GlobalConfig  `yaml:"global"`
	Chain   ChainConfig   `yaml:"chain"`
	Assets  []Asset       `yaml:"assets"`
	Cache   CacheConfig   `yaml:"cache"`
	Tracing TracingConfig `yaml:"tracing"`
	Server  ServerConfig  `yaml:"server"`
	Sinks   []Sink        `yaml:"sinks"`
}

type GlobalConfig struct {
	DBDriver string `yaml:"db_driver"`
	DBDSN    string `yaml:"db_dsn"`
}

type ChainConfig struct {
	ID             uint64 `yaml:"id"`
	RPCURL         string `yaml:"rpc_url"`
	NativeSymbol   string `yaml:"native_symbol"`
	NativeDecimals *uint8 `yaml:"native_decimals"`
}

// Asset is a known token contract. Decimals is a hint; live decimals win.
type Asset struct {
	Address  string `yaml:"address"`
	Symbol   string `yaml:"symbol"`
	Decimals uint8  `yaml:"decimals"`
}

type CacheConfig struct {
	RedisAddr string `yaml:"redis_addr"`
	TTL       string `yaml:"ttl"`
}

type TracingConfig struct {
	Endpoint    string `yaml:"endpoint"`
	ServiceName string `yaml:"service_name"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

type RateLimit struct {
	Capacity  float64 `yaml:"capacity"`
	PerSecond float64 `yaml:"per_second"`
}

type Sink struct {
	ID         string     `yaml:"id"`
	Type       string     `yaml:"type"`
	WebhookURL string     `yaml:"webhook_url"`
	Template   string     `yaml:"template"`
	URL        string     `yaml:"url"`
	Method     string     `yaml:"method"`
	Brokers    []string   `yaml:"brokers"`
	Topic      string     `yaml:"topic"`
	Where      []string   `yaml:"where"`
	RateLimit  *RateLimit `yaml:"rate_limit,omitempty"`
}

const (
	defaultDBDriver       = "sqlite"
	defaultNativeSymbol   = "BNB"
	defaultNativeDecimals = 18
	defaultCacheTTL       = 5 * time.Minute
	defaultServiceName    = "tx-ledger"
	defaultServerAddr     = ":5000"
)

var envPattern = regexp.MustCompile(`\${([A-Za-z_][A-Za-z0-9_]*)}`)

// Load reads, interpolates env vars, parses YAML, applies defaults, and validates.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is required")
	}

	if err := loadDotEnv(path); err != nil {
		return nil, err
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	interpolated, err := interpolateEnv(string(raw))
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal([]byte(interpolated), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func loadDotEnv(configPath string) error {
	envPath := filepath.Join(filepath.Dir(configPath), ".env")
	if _, err := os.Stat(envPath); err == nil {
		if err := godotenv.Load(envPath); err != nil {
			return fmt.Errorf("load .env: %w", err)
		}
	}
	return nil
}

// interpolateEnv expands ${VAR} references. Full-line YAML comments are left as-is.
func interpolateEnv(input string) (string, error) {
	missing := []string{}
	lines := strings.Split(input, "\n")
	for i, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "#") {
			continue
		}
		lines[i] = envPattern.ReplaceAllStringFunc(line, func(match string) string {
			name := envPattern.FindStringSubmatch(match)[1]
			if val, ok := os.LookupEnv(name); ok {
				return val
			}
			missing = append(missing, name)
			return match
		})
	}

	if len(missing) > 0 {
		return "", fmt.Errorf("missing environment variables: %s", strings.Join(dedup(missing), ", "))
	}
	return strings.Join(lines, "\n"), nil
}

func (c *Config) applyDefaults() {
	if c.Global.DBDriver == "" {
		c.Global.DBDriver = defaultDBDriver
	}
	c.Global.DBDriver = strings.ToLower(c.Global.DBDriver)
	if c.Chain.NativeSymbol == "" {
		c.Chain.NativeSymbol = defaultNativeSymbol
	}
	if c.Chain.NativeDecimals == nil {
		d := uint8(defaultNativeDecimals)
		c.Chain.NativeDecimals = &d
	}
	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = defaultServiceName
	}
	if c.Server.Addr == "" {
		c.Server.Addr = defaultServerAddr
	}
	for i := range c.Sinks {
		s := &c.Sinks[i]
		s.Type = strings.ToLower(s.Type)
		if s.Type == "webhook" && s.Method == "" {
			s.Method = "POST"
		}
	}
}

// NativeDecimals returns the configured native precision.
func (c *Config) NativeDecimals() uint8 {
	if c.Chain.NativeDecimals == nil {
		return defaultNativeDecimals
	}
	return *c.Chain.NativeDecimals
}

// CacheTTL parses cache.ttl, falling back to the default.
func (c *Config) CacheTTL() time.Duration {
	if c.Cache.TTL == "" {
		return defaultCacheTTL
	}
	d, err := time.ParseDuration(c.Cache.TTL)
	if err != nil || d <= 0 {
		return defaultCacheTTL
	}
	return d
}

// Validate performs small, direct schema checks.
func (c *Config) Validate() error {
	if c.Version == 0 {
		return errors.New("version is required")
	}
	switch c.Global.DBDriver {
	case "sqlite", "postgres", "mysql":
	default:
		return fmt.Errorf("unsupported global.db_driver: %s", c.Global.DBDriver)
	}
	if c.Global.DBDSN == "" {
		return errors.New("global.db_dsn is required")
	}
	if err := c.Chain.Validate(); err != nil {
		return fmt.Errorf("chain: %w", err)
	}
	if c.Cache.TTL != "" {
		if d, err := time.ParseDuration(c.Cache.TTL); err != nil || d <= 0 {
			return fmt.Errorf("cache.ttl invalid: %q", c.Cache.TTL)
		}
	}

	addrs := map[string]struct{}{}
	for _, a := range c.Assets {
		if err := a.Validate(c.Chain.NativeSymbol); err != nil {
			return fmt.Errorf("asset %s: %w", a.Symbol, err)
		}
		key := strings.ToLower(a.Address)
		if _, exists := addrs[key]; exists {
			return fmt.Errorf("duplicate asset address: %s", a.Address)
		}
		addrs[key] = struct{}{}
	}

	sinkIDs := map[string]struct{}{}
	for i := range c.Sinks {
		s := &c.Sinks[i]
		if _, exists := sinkIDs[s.ID]; exists {
			return fmt.Errorf("duplicate sink id: %s", s.ID)
		}
		sinkIDs[s.ID] = struct{}{}
		if err := s.Validate(); err != nil {
			return fmt.Errorf("sink %s: %w", s.ID, err)
		}
	}

	return nil
}

func (ch *ChainConfig) Validate() error {
	if ch.ID == 0 {
		return errors.New("id is required")
	}
	if ch.RPCURL == "" {
		return errors.New("rpc_url is required")
	}
	if ch.NativeSymbol == ledger.UnknownAsset {
		return fmt.Errorf("native_symbol %s is reserved", ch.NativeSymbol)
	}
	return nil
}

func (a *Asset) Validate(nativeSymbol string) error {
	if !strings.HasPrefix(a.Address, "0x") || !common.IsHexAddress(a.Address) {
		return fmt.Errorf("address invalid: %q", a.Address)
	}
	switch a.Symbol {
	case "":
		return errors.New("symbol is required")
	case ledger.UnknownAsset, nativeSymbol:
		return fmt.Errorf("symbol %s is reserved", a.Symbol)
	}
	return nil
}

func (s *Sink) Validate() error {
	if s.ID == "" {
		return errors.New("id is required")
	}
	if s.Type == "" {
		return errors.New("type is required")
	}

	switch s.Type {
	case "slack", "teams":
		if s.WebhookURL == "" {
			return errors.New("webhook_url is required for slack/teams sinks")
		}
	case "webhook":
		if s.URL == "" {
			return errors.New("url is required for webhook sink")
		}
	case "kafka":
		if len(s.Brokers) == 0 {
			return errors.New("brokers are required for kafka sink")
		}
		if s.Topic == "" {
			return errors.New("topic is required for kafka sink")
		}
	default:
		return fmt.Errorf("unsupported sink type: %s", s.Type)
	}

	if s.RateLimit != nil && (s.RateLimit.Capacity <= 0 || s.RateLimit.PerSecond <= 0) {
		return errors.New("rate_limit.capacity and rate_limit.per_second must be positive")
	}
	return nil
}

func dedup(values []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
