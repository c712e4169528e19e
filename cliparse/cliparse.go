package cliparse

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/danielhkuo/factcheck-votes/scoring"
)

const (
	DefaultPort          = 3318
	DefaultDatabaseType  = "sqlite"
	DefaultFlushInterval = 5 * time.Second
	DefaultCacheTTL      = 5 * time.Minute
	DefaultBatchSize     = 500
	DefaultRateLimit     = 20
	DefaultRateBurst     = 40
)

type Config struct {
	Port           int           `yaml:"port" validate:"min=1,max=65535"`
	DatabaseURL    string        `yaml:"database_url" validate:"required"`
	DatabaseType   string        `yaml:"database_type" validate:"oneof=sqlite postgres"`
	VoterTokenSalt string        `yaml:"-" validate:"required"`
	FlushInterval  time.Duration `yaml:"flush_interval" validate:"min=100ms"`
	CacheTTL       time.Duration `yaml:"cache_ttl" validate:"min=1s"`
	BatchSize      int           `yaml:"batch_size" validate:"min=1,max=500"`
	RateLimit      float64       `yaml:"rate_limit" validate:"gte=0"`
	RateBurst      int           `yaml:"rate_burst" validate:"gte=0"`
	TrustProxy     bool          `yaml:"trust_proxy"`
	Rebuild        bool          `yaml:"-"`

	Trust scoring.TrustPolicy `yaml:"trust"`
}

var validate = validator.New()

// ParseFlags builds the server config.
// Precedence: flags, then environment, then the YAML file named by -config
// (or CONFIG_FILE), then defaults. A .env file in the working directory is
// loaded first but never overrides variables already set.
func ParseFlags(args []string) (Config, error) {
	var cli Config
	var configPath string

	fset := flag.NewFlagSet("factcheck-votes", flag.ContinueOnError)

	// Network config (can be CLI args or env)
	fset.IntVar(&cli.Port, "p", 0, "Server port")
	fset.StringVar(&cli.DatabaseURL, "d", "", "Database URL")
	fset.StringVar(&cli.DatabaseType, "t", "", "Database type (sqlite or postgres)")
	fset.StringVar(&configPath, "config", "", "YAML config file")

	// Reconciliation and caching
	fset.DurationVar(&cli.FlushInterval, "flush-interval", 0, "Aggregate flush interval")
	fset.DurationVar(&cli.CacheTTL, "cache-ttl", 0, "Aggregate cache TTL")
	fset.IntVar(&cli.BatchSize, "batch-size", 0, "Max items per flush batch")
	fset.Float64Var(&cli.RateLimit, "rate-limit", 0, "Requests per second per client IP (0 disables)")
	fset.IntVar(&cli.RateBurst, "rate-burst", 0, "Rate limit burst")
	fset.BoolVar(&cli.TrustProxy, "trust-proxy", false, "Key rate limits on X-Forwarded-For (only behind a proxy that sets it)")
	fset.BoolVar(&cli.Rebuild, "rebuild", false, "Recount every aggregate from the ledger before serving")

	// Secrets (prefer env variables, but allow CLI for dev)
	fset.StringVar(&cli.VoterTokenSalt, "voter-salt", "", "Voter token salt (prefer env)")

	if err := fset.Parse(args); err != nil {
		return Config{}, err
	}

	set := map[string]bool{}
	fset.Visit(func(f *flag.Flag) { set[f.Name] = true })

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	if configPath == "" {
		configPath = os.Getenv("CONFIG_FILE")
	}
	cfg, err := loadFile(configPath)
	if err != nil {
		return Config{}, err
	}

	// Environment overrides the file
	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}

	// Flags override everything
	if set["p"] {
		cfg.Port = cli.Port
	}
	if set["d"] {
		cfg.DatabaseURL = cli.DatabaseURL
	}
	if set["t"] {
		cfg.DatabaseType = cli.DatabaseType
	}
	if set["flush-interval"] {
		cfg.FlushInterval = cli.FlushInterval
	}
	if set["cache-ttl"] {
		cfg.CacheTTL = cli.CacheTTL
	}
	if set["batch-size"] {
		cfg.BatchSize = cli.BatchSize
	}
	if set["rate-limit"] {
		cfg.RateLimit = cli.RateLimit
	}
	if set["rate-burst"] {
		cfg.RateBurst = cli.RateBurst
	}
	if set["trust-proxy"] {
		cfg.TrustProxy = cli.TrustProxy
	}
	if set["rebuild"] {
		cfg.Rebuild = cli.Rebuild
	}
	if set["voter-salt"] {
		cfg.VoterTokenSalt = cli.VoterTokenSalt
	}

	// Secrets - MUST be provided
	if cfg.VoterTokenSalt == "" {
		return Config{}, errors.New("VOTER_TOKEN_SALT required")
	}
	if cfg.DatabaseURL == "" {
		return Config{}, errors.New("database URL required (use -d or DATABASE_URL env)")
	}

	if err := validate.Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func defaults() Config {
	return Config{
		Port:          DefaultPort,
		DatabaseType:  DefaultDatabaseType,
		FlushInterval: DefaultFlushInterval,
		CacheTTL:      DefaultCacheTTL,
		BatchSize:     DefaultBatchSize,
		RateLimit:     DefaultRateLimit,
		RateBurst:     DefaultRateBurst,
		Trust:         scoring.DefaultTrustPolicy(),
	}
}

// loadFile overlays the YAML file on the defaults. Keys missing from the
// file keep their default values.
func loadFile(path string) (Config, error) {
	cfg := defaults()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return errors.New("invalid PORT env variable")
		}
		cfg.Port = port
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("DATABASE_TYPE"); v != "" {
		cfg.DatabaseType = v
	}
	if v := os.Getenv("VOTER_TOKEN_SALT"); v != "" {
		cfg.VoterTokenSalt = v
	}

	var err error
	if cfg.FlushInterval, err = envDuration("FLUSH_INTERVAL", cfg.FlushInterval); err != nil {
		return err
	}
	if cfg.CacheTTL, err = envDuration("CACHE_TTL", cfg.CacheTTL); err != nil {
		return err
	}
	if cfg.BatchSize, err = envInt("BATCH_SIZE", cfg.BatchSize); err != nil {
		return err
	}
	if cfg.RateBurst, err = envInt("RATE_BURST", cfg.RateBurst); err != nil {
		return err
	}
	if cfg.TrustProxy, err = envBool("TRUST_PROXY", cfg.TrustProxy); err != nil {
		return err
	}
	if cfg.Rebuild, err = envBool("REBUILD_AGGREGATES", cfg.Rebuild); err != nil {
		return err
	}
	if v := os.Getenv("RATE_LIMIT"); v != "" {
		rps, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return errors.New("invalid RATE_LIMIT env variable")
		}
		cfg.RateLimit = rps
	}
	return nil
}

func envDuration(name string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(name)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s env variable: %w", name, err)
	}
	return d, nil
}

func envBool(name string, fallback bool) (bool, error) {
	v := os.Getenv(name)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s env variable", name)
	}
	return b, nil
}

func envInt(name string, fallback int) (int, error) {
	v := os.Getenv(name)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s env variable", name)
	}
	return n, nil
}
