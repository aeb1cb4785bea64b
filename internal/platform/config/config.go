package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Duplicate handling policies for persisted records.
const (
	DuplicatePolicySkip   = "skip"
	DuplicatePolicyUpdate = "update"
)

// MaxHistoryPageSize is the most messages.getHistory returns per call.
const MaxHistoryPageSize = 100

type Config struct {
	AppEnv        string `env:"APP_ENV" envDefault:"local"`
	LogLevel      string `env:"LOG_LEVEL" envDefault:"info"`
	PostgresDSN   string `env:"POSTGRES_DSN,required"`
	TGAPIID       int    `env:"TG_API_ID,required"`
	TGAPIHash     string `env:"TG_API_HASH,required"`
	TGPhone       string `env:"TG_PHONE"`
	TG2FAPassword string `env:"TG_2FA_PASSWORD"`
	TGSessionPath string `env:"TG_SESSION_PATH" envDefault:"./tg.session"`
	HealthPort    int    `env:"HEALTH_PORT" envDefault:"8080"`

	// Database pool
	DBMaxConnections    int32         `env:"DB_MAX_CONNECTIONS" envDefault:"10"`
	DBMinConnections    int32         `env:"DB_MIN_CONNECTIONS" envDefault:"2"`
	DBMaxConnIdleTime   time.Duration `env:"DB_MAX_CONN_IDLE_TIME" envDefault:"30m"`
	DBMaxConnLifetime   time.Duration `env:"DB_MAX_CONN_LIFETIME" envDefault:"1h"`
	DBHealthCheckPeriod time.Duration `env:"DB_HEALTH_CHECK_PERIOD" envDefault:"1m"`

	// Retrieval pacing
	ChannelLookupPause time.Duration `env:"CHANNEL_LOOKUP_PAUSE" envDefault:"30s"`
	HistoryPagePause   time.Duration `env:"HISTORY_PAGE_PAUSE" envDefault:"1s"`
	HistoryPageSize    int           `env:"HISTORY_PAGE_SIZE" envDefault:"100"`
	FloodWaitMax       time.Duration `env:"FLOOD_WAIT_MAX" envDefault:"10m"`
	SkipKnownChannels  bool          `env:"SKIP_KNOWN_CHANNELS" envDefault:"true"`
	DuplicatePolicy    string        `env:"DUPLICATE_POLICY" envDefault:"skip"`

	// Analysis
	NetworkMaxSize   int           `env:"NETWORK_MAX_SIZE" envDefault:"800"`
	TopMessagesLimit int           `env:"TOP_MESSAGES_LIMIT" envDefault:"1000"`
	AnalysisCacheTTL time.Duration `env:"ANALYSIS_CACHE_TTL" envDefault:"10m"`
	CommunitySeed    uint64        `env:"COMMUNITY_SEED" envDefault:"1"`

	// CollapseSubdomains groups cited hosts by registrable domain (news.bbc.co.uk -> bbc.co.uk).
	CollapseSubdomains bool `env:"DOMAIN_COLLAPSE_SUBDOMAINS" envDefault:"false"`

	// Graph export
	Neo4jURI      string        `env:"NEO4J_URI"`
	Neo4jUser     string        `env:"NEO4J_USER" envDefault:"neo4j"`
	Neo4jPassword string        `env:"NEO4J_PASSWORD"`
	Neo4jDatabase string        `env:"NEO4J_DATABASE"`
	Neo4jTimeout  time.Duration `env:"NEO4J_TIMEOUT" envDefault:"5m"`
}

func Load() (*Config, error) {
	_ = godotenv.Load() //nolint:errcheck // .env file is optional, error is expected when not present

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing environment config: %w", err)
	}

	applyAliases(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Neo4jEnabled reports whether a graph database sink is configured.
func (c *Config) Neo4jEnabled() bool {
	return c.Neo4jURI != ""
}

func (c *Config) validate() error {
	switch c.DuplicatePolicy {
	case DuplicatePolicySkip, DuplicatePolicyUpdate:
	default:
		return fmt.Errorf("invalid DUPLICATE_POLICY %q: want %s or %s", c.DuplicatePolicy, DuplicatePolicySkip, DuplicatePolicyUpdate)
	}

	if c.HistoryPageSize <= 0 || c.HistoryPageSize > MaxHistoryPageSize {
		return fmt.Errorf("invalid HISTORY_PAGE_SIZE %d: must be between 1 and %d", c.HistoryPageSize, MaxHistoryPageSize)
	}

	if c.NetworkMaxSize < 0 {
		return fmt.Errorf("invalid NETWORK_MAX_SIZE %d: must not be negative", c.NetworkMaxSize)
	}

	return nil
}

// applyAliases honours the shorter variable names used by older deployments.
func applyAliases(cfg *Config) {
	if !hasEnv("CHANNEL_LOOKUP_PAUSE") {
		setSecondsFromEnv("SECONDS_BETWEEN_CHANNEL_LOOKUPS", &cfg.ChannelLookupPause)
	}

	if !hasEnv("NEO4J_PASSWORD") {
		setStringFromEnv("NEO4J_PASS", &cfg.Neo4jPassword)
	}
}

func hasEnv(key string) bool {
	_, ok := os.LookupEnv(key)
	return ok
}

func setStringFromEnv(key string, target *string) {
	val, ok := os.LookupEnv(key)
	if !ok {
		return
	}

	val = strings.TrimSpace(val)
	if val == "" {
		return
	}

	*target = val
}

func setSecondsFromEnv(key string, target *time.Duration) {
	val, ok := os.LookupEnv(key)
	if !ok {
		return
	}

	parsed, err := strconv.Atoi(strings.TrimSpace(val))
	if err != nil || parsed < 0 {
		return
	}

	*target = time.Duration(parsed) * time.Second
}
