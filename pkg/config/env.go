package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

const (
	DefaultMinTransferSol    = 400
	DefaultRPCMinInterval    = 5 * time.Second
	DefaultHeartbeatInterval = 30 * time.Second
	DefaultHeartbeatGrace    = 5 * time.Second
	DefaultPongTimeout       = 10 * time.Second
	DefaultReconnectDelay    = 2 * time.Second
	DefaultMatchRatio        = 0.9
	DefaultSignatureLimit    = 2
	DefaultPruneSchedule     = "@every 1m"
	DefaultHTTPAddr          = ":8080"
	DefaultPurchaseQueue     = "purchase_signal"
	DefaultControlQueue      = "watch_control"
	DefaultLogLevel          = "info"
	DefaultKeystoreDir       = "configs/keystore"

	lamportsPerSol      = 1_000_000_000
	defaultRabbitMQPort = "5672"
	defaultDatabasePort = "5432"
)

var ErrMissingVariable = errors.New("required environment variable not set")

// DatabaseConfig is the optional event journal database.
type DatabaseConfig struct {
	Host     string
	User     string
	Password string
	Name     string
	Port     string
}

// Enabled reports whether a database host was configured.
func (c DatabaseConfig) Enabled() bool { return c.Host != "" }

// DSN renders the postgres connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
		c.Host, c.User, c.Password, c.Name, c.Port)
}

// RabbitMQConfig is the optional broker for purchase signals and control commands.
type RabbitMQConfig struct {
	Host          string
	Port          string
	User          string
	Password      string
	PurchaseQueue string
	ControlQueue  string
}

// Enabled reports whether a broker host was configured.
func (c RabbitMQConfig) Enabled() bool { return c.Host != "" }

// URL renders the amqp connection URL.
func (c RabbitMQConfig) URL() string {
	return fmt.Sprintf("amqp://%s:%s@%s:%s/", c.User, c.Password, c.Host, c.Port)
}

// Config is the process configuration, read once at startup.
type Config struct {
	RPCURL       string
	WSURL        string
	TargetWallet string

	MinTransferLamports uint64
	RPCMinInterval      time.Duration

	HeartbeatInterval time.Duration
	HeartbeatGrace    time.Duration
	PongTimeout       time.Duration
	ReconnectDelay    time.Duration

	RecipientMatchRatio     float64
	RecipientSignatureLimit int

	MintCacheSize            int
	ProcessedSignaturesLimit int
	PendingTokenTTL          time.Duration
	PruneSchedule            string

	PrivateKey       string
	QuoteAmount      float64
	BuySlippage      float64
	KeystoreDir      string
	KeystoreAddress  string
	KeystorePassword string

	HTTPAddr string
	LogLevel string

	Database DatabaseConfig
	RabbitMQ RabbitMQConfig
}

// LoadDotEnv loads .env into the environment if the file exists.
func LoadDotEnv(files ...string) {
	if err := godotenv.Load(files...); err != nil {
		log.Debug("No .env file found, using process environment")
	}
}

// Load reads the configuration from the process environment.
func Load() (*Config, error) {
	return LoadFrom(os.LookupEnv)
}

// LoadFrom reads the configuration through lookup.
func LoadFrom(lookup func(string) (string, bool)) (*Config, error) {
	r := &reader{lookup: lookup}

	cfg := &Config{
		RPCURL:       r.required("RPC_URL"),
		WSURL:        r.required("WS_URL"),
		TargetWallet: r.required("TARGET_WALLET"),

		RPCMinInterval:    r.duration("RPC_MIN_INTERVAL", DefaultRPCMinInterval),
		HeartbeatInterval: r.duration("HEARTBEAT_INTERVAL", DefaultHeartbeatInterval),
		HeartbeatGrace:    r.duration("HEARTBEAT_GRACE", DefaultHeartbeatGrace),
		PongTimeout:       r.duration("PONG_TIMEOUT", DefaultPongTimeout),
		ReconnectDelay:    r.duration("RECONNECT_DELAY", DefaultReconnectDelay),

		RecipientMatchRatio:     r.number("RECIPIENT_MATCH_RATIO", DefaultMatchRatio),
		RecipientSignatureLimit: r.integer("RECIPIENT_SIGNATURE_LIMIT", DefaultSignatureLimit),

		MintCacheSize:            r.integer("MINT_CACHE_SIZE", 0),
		ProcessedSignaturesLimit: r.integer("PROCESSED_SIGNATURES_LIMIT", 0),
		PendingTokenTTL:          r.duration("PENDING_TOKEN_TTL", 0),
		PruneSchedule:            r.str("PRUNE_SCHEDULE", DefaultPruneSchedule),

		PrivateKey:       r.str("PRIVATE_KEY", ""),
		QuoteAmount:      r.number("QUOTE_AMOUNT", 0),
		BuySlippage:      r.number("BUY_SLIPPAGE", 0),
		KeystoreDir:      r.str("KEYSTORE_DIR", DefaultKeystoreDir),
		KeystoreAddress:  r.str("KEYSTORE_ADDRESS", ""),
		KeystorePassword: r.str("KEYSTORE_PASSWORD", ""),

		HTTPAddr: r.str("HTTP_ADDR", DefaultHTTPAddr),
		LogLevel: r.str("LOG_LEVEL", DefaultLogLevel),

		Database: r.database(),
		RabbitMQ: RabbitMQConfig{
			Host:          r.str("RABBITMQ_HOST", ""),
			Port:          r.str("RABBITMQ_PORT", defaultRabbitMQPort),
			User:          r.str("RABBITMQ_USER", "guest"),
			Password:      r.str("RABBITMQ_PASSWORD", "guest"),
			PurchaseQueue: r.str("RABBITMQ_PURCHASE_QUEUE", DefaultPurchaseQueue),
			ControlQueue:  r.str("RABBITMQ_CONTROL_QUEUE", DefaultControlQueue),
		},
	}

	minSol := r.number("MIN_TRANSFER_SOL", DefaultMinTransferSol)
	if minSol <= 0 {
		r.fail("MIN_TRANSFER_SOL", fmt.Errorf("must be positive, got %v", minSol))
	}
	cfg.MinTransferLamports = uint64(math.Round(minSol * lamportsPerSol))

	if cfg.TargetWallet != "" {
		if _, err := solana.PublicKeyFromBase58(cfg.TargetWallet); err != nil {
			r.fail("TARGET_WALLET", err)
		}
	}
	if cfg.KeystoreAddress != "" && cfg.KeystorePassword == "" {
		r.fail("KEYSTORE_PASSWORD", ErrMissingVariable)
	}
	if cfg.RecipientMatchRatio <= 0 || cfg.RecipientMatchRatio > 1 {
		r.fail("RECIPIENT_MATCH_RATIO", fmt.Errorf("must be in (0, 1], got %v", cfg.RecipientMatchRatio))
	}

	if len(r.errs) > 0 {
		return nil, errors.Join(r.errs...)
	}
	return cfg, nil
}

// LoadDatabaseFrom reads only the database settings through lookup.
// DB_HOST is required.
func LoadDatabaseFrom(lookup func(string) (string, bool)) (DatabaseConfig, error) {
	r := &reader{lookup: lookup}
	r.required("DB_HOST")
	cfg := r.database()
	if len(r.errs) > 0 {
		return DatabaseConfig{}, errors.Join(r.errs...)
	}
	return cfg, nil
}

type reader struct {
	lookup func(string) (string, bool)
	errs   []error
}

func (r *reader) fail(key string, err error) {
	r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
}

func (r *reader) value(key string) (string, bool) {
	v, ok := r.lookup(key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func (r *reader) required(key string) string {
	v, ok := r.value(key)
	if !ok {
		r.fail(key, ErrMissingVariable)
	}
	return v
}

func (r *reader) str(key, def string) string {
	if v, ok := r.value(key); ok {
		return v
	}
	return def
}

func (r *reader) integer(key string, def int) int {
	v, ok := r.value(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.fail(key, err)
		return def
	}
	return n
}

func (r *reader) number(key string, def float64) float64 {
	v, ok := r.value(key)
	if !ok {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		r.fail(key, err)
		return def
	}
	return f
}

// duration accepts Go duration strings ("5s") or bare milliseconds ("5000").
func (r *reader) duration(key string, def time.Duration) time.Duration {
	v, ok := r.value(key)
	if !ok {
		return def
	}
	if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		r.fail(key, err)
		return def
	}
	return d
}

func (r *reader) database() DatabaseConfig {
	return DatabaseConfig{
		Host:     r.str("DB_HOST", ""),
		User:     r.str("DB_USER", ""),
		Password: r.str("DB_PASSWORD", ""),
		Name:     r.str("DB_NAME", ""),
		Port:     r.str("DB_PORT", defaultDatabasePort),
	}
}
