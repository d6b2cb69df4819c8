// Package config provides application configuration loaded from environment variables.
// Use the package-level Get() function to obtain the singleton Config instance.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/btcsuite/btcd/chaincfg"
)

// ──────────────────────────────────────────────────────────────────────────────
// Sub-config structs
// ──────────────────────────────────────────────────────────────────────────────

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port           string        // e.g. "8080"
	BackofficePort string        // e.g. "8081"
	Env            string        // "development" | "production"
	ReadTimeout    time.Duration // default 10s
	WriteTimeout   time.Duration // default 10s
}

// DBConfig holds PostgreSQL connection settings.
type DBConfig struct {
	DSN             string        // full postgres DSN
	MaxOpenConns    int           // default 25
	MaxIdleConns    int           // default 10
	ConnMaxLifetime time.Duration // default 5m
}

// VaultConfig holds Key Vault settings.
type VaultConfig struct {
	MasterEncryptionKey string // base64, 32 raw bytes after decoding; required
}

// ExplorerConfig holds the external Bitcoin explorer endpoints and network.
type ExplorerConfig struct {
	Network           string // "mainnet" | "testnet"
	NetParams         *chaincfg.Params
	MempoolAPI        string // e.g. "https://mempool.space/testnet/api"
	MempoolWebSocket  string // e.g. "wss://mempool.space/testnet/api/v1/ws"
	BlockstreamAPI    string // secondary broadcast/fallback endpoint
	RequestTimeout    time.Duration
	BroadcastTimeout  time.Duration
	VerifyNetworkOnBoot bool // in production, probe the endpoint and abort if it disagrees with Network
}

// WSConfig holds WebSocket liveness tuning for the Explorer Client.
type WSConfig struct {
	PingInterval     time.Duration
	PingTimeout      time.Duration
	ReconnectDelay   time.Duration
	MaxReconnectDelay time.Duration
}

// BetConfig holds wager validation bounds and fair-roll parameters.
type BetConfig struct {
	MinBetSatoshis          int64
	MaxBetSatoshis          int64
	MinMultiplier           float64
	MaxMultiplier           float64
	HouseEdge               float64 // fraction in [0,1)
	MinConfirmationsPayout  int
	DefaultTxFeeSatoshis    int64
	FeeBufferSatoshis       int64
	DustLimitSatoshis       int64
	SettleDelay             time.Duration // pause before UTXO fetch on a payout attempt
	MaxPayoutRetries        int
	PayoutWorkerCount       int
	SweepInterval           time.Duration
	SweepPageSize           int
}

// AdminConfig holds the admin-surface access control settings.
type AdminConfig struct {
	APIKey             string
	IPWhitelist        []string // empty = deny all (fail closed)
	ColdStorageFee     int64    // satoshis, fee used for admin vault withdrawals
	ColdStorageAddress string   // default recipient for admin.WalletHandler.Withdraw
}

// ──────────────────────────────────────────────────────────────────────────────
// Top-level Config
// ──────────────────────────────────────────────────────────────────────────────

// Config is the root configuration object for the entire application.
type Config struct {
	Server   ServerConfig
	DB       DBConfig
	Vault    VaultConfig
	Explorer ExplorerConfig
	WS       WSConfig
	Bet      BetConfig
	Admin    AdminConfig
}

// IsProd returns true when running in the production environment.
func (c *Config) IsProd() bool {
	return c.Server.Env == "production"
}

// Validate checks that all required configuration values are present and valid.
// Returns a joined error of every violation found (ConfigFatal per the error
// taxonomy — callers should abort the process on a non-nil return).
func (c *Config) Validate() error {
	var errs []error

	if c.Vault.MasterEncryptionKey == "" {
		errs = append(errs, errors.New("MASTER_ENCRYPTION_KEY must be set"))
	}

	if c.Explorer.Network != "mainnet" && c.Explorer.Network != "testnet" {
		errs = append(errs, fmt.Errorf("NETWORK must be \"mainnet\" or \"testnet\", got %q", c.Explorer.Network))
	}
	if c.IsProd() && c.Explorer.Network != "mainnet" {
		errs = append(errs, errors.New("production environment requires NETWORK=mainnet"))
	}

	if c.Bet.MinBetSatoshis <= 0 {
		errs = append(errs, errors.New("MIN_BET_SATOSHIS must be positive"))
	}
	if c.Bet.MaxBetSatoshis < c.Bet.MinBetSatoshis {
		errs = append(errs, errors.New("MAX_BET_SATOSHIS must be >= MIN_BET_SATOSHIS"))
	}
	if c.Bet.MinMultiplier <= 1.0 {
		errs = append(errs, errors.New("MIN_MULTIPLIER must be > 1.0"))
	}
	if c.Bet.MaxMultiplier < c.Bet.MinMultiplier {
		errs = append(errs, errors.New("MAX_MULTIPLIER must be >= MIN_MULTIPLIER"))
	}
	if c.Bet.HouseEdge < 0 || c.Bet.HouseEdge >= 1 {
		errs = append(errs, fmt.Errorf("HOUSE_EDGE must be in [0,1), got %.4f", c.Bet.HouseEdge))
	}
	if c.Bet.MaxPayoutRetries <= 0 {
		errs = append(errs, errors.New("PAYOUT_MAX_RETRIES must be positive"))
	}

	if c.IsProd() && c.DB.DSN == "" {
		errs = append(errs, errors.New("DATABASE_DSN must be set in production"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Singleton
// ──────────────────────────────────────────────────────────────────────────────

var (
	instance *Config
	once     sync.Once
	loadErr  error
)

// Get returns the singleton Config, loading it once from environment variables.
// Panics if loading fails — call this early in main() to catch misconfigurations
// at startup.
func Get() *Config {
	once.Do(func() {
		instance, loadErr = load()
	})
	if loadErr != nil {
		panic(fmt.Sprintf("config: failed to load: %v", loadErr))
	}
	return instance
}

// MustLoad loads and validates configuration. Intended for use in main().
// Panics on any error so misconfiguration is caught immediately at boot
// (ConfigFatal per the error taxonomy).
func MustLoad() *Config {
	cfg := Get()
	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("config: validation failed: %v", err))
	}
	return cfg
}

// ──────────────────────────────────────────────────────────────────────────────
// Internal loader
// ──────────────────────────────────────────────────────────────────────────────

func load() (*Config, error) {
	cfg := &Config{}

	// ── Server ────────────────────────────────────────────────────────────────
	cfg.Server = ServerConfig{
		Port:           getEnv("SERVER_PORT", "8000"),
		BackofficePort: getEnv("BACKOFFICE_PORT", "8001"),
		Env:            getEnv("ENVIRONMENT", "development"),
		ReadTimeout:    getDuration("SERVER_READ_TIMEOUT", 10*time.Second),
		WriteTimeout:   getDuration("SERVER_WRITE_TIMEOUT", 10*time.Second),
	}

	// ── Database ──────────────────────────────────────────────────────────────
	dsn := os.Getenv("DATABASE_DSN")
	if dsn == "" {
		dsn = fmt.Sprintf(
			"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
			getEnv("DB_HOST", "localhost"),
			getEnv("DB_PORT", "5432"),
			getEnv("DB_USER", "postgres"),
			getEnv("DB_PASSWORD", ""),
			getEnv("DB_NAME", "dice_game"),
			getEnv("DB_SSLMODE", "disable"),
		)
	}
	maxOpen, err := getInt("DB_MAX_OPEN_CONNS", 25)
	if err != nil {
		return nil, fmt.Errorf("DB_MAX_OPEN_CONNS: %w", err)
	}
	maxIdle, err := getInt("DB_MAX_IDLE_CONNS", 10)
	if err != nil {
		return nil, fmt.Errorf("DB_MAX_IDLE_CONNS: %w", err)
	}
	cfg.DB = DBConfig{
		DSN:             dsn,
		MaxOpenConns:    maxOpen,
		MaxIdleConns:    maxIdle,
		ConnMaxLifetime: getDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
	}

	// ── Vault ─────────────────────────────────────────────────────────────────
	cfg.Vault = VaultConfig{
		MasterEncryptionKey: getEnv("MASTER_ENCRYPTION_KEY", ""),
	}

	// ── Explorer ──────────────────────────────────────────────────────────────
	network := getEnv("NETWORK", "testnet")
	netParams := &chaincfg.TestNet3Params
	if network == "mainnet" {
		netParams = &chaincfg.MainNetParams
	}
	cfg.Explorer = ExplorerConfig{
		Network:             network,
		NetParams:           netParams,
		MempoolAPI:          getEnv("MEMPOOL_SPACE_API", "https://mempool.space/testnet/api"),
		MempoolWebSocket:    getEnv("MEMPOOL_WEBSOCKET_URL", "wss://mempool.space/testnet/api/v1/ws"),
		BlockstreamAPI:      getEnv("BLOCKSTREAM_API", "https://blockstream.info/testnet/api"),
		RequestTimeout:      getDuration("API_REQUEST_TIMEOUT", 10*time.Second),
		BroadcastTimeout:    getDuration("BROADCAST_TIMEOUT", 15*time.Second),
		VerifyNetworkOnBoot: getBool("VERIFY_NETWORK_ON_BOOT", true),
	}

	// ── WebSocket liveness ────────────────────────────────────────────────────
	cfg.WS = WSConfig{
		PingInterval:      getDuration("WS_PING_INTERVAL", 30*time.Second),
		PingTimeout:       getDuration("WS_PING_TIMEOUT", 20*time.Second),
		ReconnectDelay:    getDuration("WS_RECONNECT_DELAY", 5*time.Second),
		MaxReconnectDelay: getDuration("WS_MAX_RECONNECT_DELAY", 60*time.Second),
	}

	// ── Bet / fair-roll / payout ──────────────────────────────────────────────
	minBet, err := getInt64("MIN_BET_SATOSHIS", 600)
	if err != nil {
		return nil, fmt.Errorf("MIN_BET_SATOSHIS: %w", err)
	}
	maxBet, err := getInt64("MAX_BET_SATOSHIS", 1_000_000)
	if err != nil {
		return nil, fmt.Errorf("MAX_BET_SATOSHIS: %w", err)
	}
	minMult, err := getFloat("MIN_MULTIPLIER", 1.1)
	if err != nil {
		return nil, fmt.Errorf("MIN_MULTIPLIER: %w", err)
	}
	maxMult, err := getFloat("MAX_MULTIPLIER", 98.0)
	if err != nil {
		return nil, fmt.Errorf("MAX_MULTIPLIER: %w", err)
	}
	houseEdge, err := getFloat("HOUSE_EDGE", 0.02)
	if err != nil {
		return nil, fmt.Errorf("HOUSE_EDGE: %w", err)
	}
	minConf, err := getInt("MIN_CONFIRMATIONS_PAYOUT", 0)
	if err != nil {
		return nil, fmt.Errorf("MIN_CONFIRMATIONS_PAYOUT: %w", err)
	}
	defaultFee, err := getInt64("DEFAULT_TX_FEE_SATOSHIS", 250)
	if err != nil {
		return nil, fmt.Errorf("DEFAULT_TX_FEE_SATOSHIS: %w", err)
	}
	feeBuffer, err := getInt64("FEE_BUFFER_SATOSHIS", 1000)
	if err != nil {
		return nil, fmt.Errorf("FEE_BUFFER_SATOSHIS: %w", err)
	}
	dustLimit, err := getInt64("DUST_LIMIT_SATOSHIS", 546)
	if err != nil {
		return nil, fmt.Errorf("DUST_LIMIT_SATOSHIS: %w", err)
	}
	maxRetries, err := getInt("PAYOUT_MAX_RETRIES", 3)
	if err != nil {
		return nil, fmt.Errorf("PAYOUT_MAX_RETRIES: %w", err)
	}
	workerCount, err := getInt("PAYOUT_WORKER_COUNT", 4)
	if err != nil {
		return nil, fmt.Errorf("PAYOUT_WORKER_COUNT: %w", err)
	}
	sweepPageSize, err := getInt("SWEEP_PAGE_SIZE", 100)
	if err != nil {
		return nil, fmt.Errorf("SWEEP_PAGE_SIZE: %w", err)
	}

	cfg.Bet = BetConfig{
		MinBetSatoshis:         minBet,
		MaxBetSatoshis:         maxBet,
		MinMultiplier:          minMult,
		MaxMultiplier:          maxMult,
		HouseEdge:              houseEdge,
		MinConfirmationsPayout: minConf,
		DefaultTxFeeSatoshis:   defaultFee,
		FeeBufferSatoshis:      feeBuffer,
		DustLimitSatoshis:      dustLimit,
		SettleDelay:            getDuration("PAYOUT_SETTLE_DELAY", 3*time.Second),
		MaxPayoutRetries:       maxRetries,
		PayoutWorkerCount:      workerCount,
		SweepInterval:          getDuration("SWEEP_INTERVAL", 30*time.Second),
		SweepPageSize:          sweepPageSize,
	}

	// ── Admin ─────────────────────────────────────────────────────────────────
	var whitelist []string
	if raw := os.Getenv("ADMIN_IP_WHITELIST"); raw != "" {
		whitelist = splitCSV(raw)
	}
	coldFee, err := getInt64("ADMIN_COLD_STORAGE_FEE_SATOSHIS", 500)
	if err != nil {
		return nil, fmt.Errorf("ADMIN_COLD_STORAGE_FEE_SATOSHIS: %w", err)
	}
	cfg.Admin = AdminConfig{
		APIKey:             getEnv("ADMIN_API_KEY", ""),
		IPWhitelist:        whitelist,
		ColdStorageFee:     coldFee,
		ColdStorageAddress: getEnv("ADMIN_COLD_STORAGE_ADDRESS", ""),
	}

	return cfg, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Helper functions
// ──────────────────────────────────────────────────────────────────────────────

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func getInt(key string, defaultVal int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid integer %q", v)
	}
	return n, nil
}

func getInt64(key string, defaultVal int64) (int64, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid integer %q", v)
	}
	return n, nil
}

func getFloat(key string, defaultVal float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid float %q", v)
	}
	return f, nil
}

// getDuration parses an env var as a Go duration string (e.g. "15m", "2s").
// Falls back to defaultVal if the variable is unset or empty.
func getDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

func splitCSV(raw string) []string {
	var out []string
	for _, piece := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(piece); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
