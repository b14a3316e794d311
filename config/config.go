package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Oracle     OracleConfig     `mapstructure:"oracle"`
	Escrow     EscrowConfig     `mapstructure:"escrow"`
	Withdrawal WithdrawalConfig `mapstructure:"withdrawal"`
	Chain      ChainConfig      `mapstructure:"chain"`
	JWT        JWTConfig        `mapstructure:"jwt"`
	Admin      AdminConfig      `mapstructure:"admin"`
	Callback   CallbackConfig   `mapstructure:"callback"`
	AES        AESConfig        `mapstructure:"aes"`
	Log        LogConfig        `mapstructure:"log"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug, release, test
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns the Redis address string.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type OracleConfig struct {
	BaseURL  string        `mapstructure:"base_url"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type EscrowConfig struct {
	MinWagerUSD  string        `mapstructure:"min_wager_usd"`  // decimal string, e.g. "2.50"
	StaleTimeout time.Duration `mapstructure:"stale_timeout"`  // accepted/started contracts idle longer are refunded
	SweepEvery   time.Duration `mapstructure:"sweep_interval"` // stale-contract sweep cadence; 0 disables
}

type WithdrawalConfig struct {
	CapSOL   string        `mapstructure:"cap_sol"` // decimal string, e.g. "3"
	Cooldown time.Duration `mapstructure:"cooldown"`
}

type ChainConfig struct {
	RPCURL         string        `mapstructure:"rpc_url"`
	BankPrivateKey string        `mapstructure:"bank_private_key"` // base58 secret key of the bank wallet
	Timeout        time.Duration `mapstructure:"timeout"`
}

type JWTConfig struct {
	Secret string        `mapstructure:"secret"`
	Expiry time.Duration `mapstructure:"expiry"`
	Issuer string        `mapstructure:"issuer"`
}

type AdminConfig struct {
	Username     string `mapstructure:"username"`
	PasswordHash string `mapstructure:"password_hash"` // Argon2id encoded hash
}

// CallbackConfig authenticates the embedded game's result callback.
type CallbackConfig struct {
	Secret string `mapstructure:"secret"` // HMAC-SHA256 shared secret
}

type AESConfig struct {
	Key string `mapstructure:"key"` // 32-byte hex-encoded key for AES-256 withdrawal payloads
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Pretty bool   `mapstructure:"pretty"` // human-readable output (dev only)
}

// Load reads configuration from file and environment variables.
// Environment variables override file values. Prefix: DWE (Duel Wager Escrow).
// Nested keys use underscore: DWE_DATABASE_HOST, DWE_JWT_SECRET, etc.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "duel_escrow")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("oracle.base_url", "https://api.coingecko.com")
	v.SetDefault("oracle.cache_ttl", "60s")
	v.SetDefault("oracle.timeout", "5s")
	v.SetDefault("escrow.min_wager_usd", "2.50")
	v.SetDefault("escrow.stale_timeout", "24h")
	v.SetDefault("escrow.sweep_interval", "10m")
	v.SetDefault("withdrawal.cap_sol", "3")
	v.SetDefault("withdrawal.cooldown", "7h")
	v.SetDefault("chain.rpc_url", "https://api.devnet.solana.com")
	v.SetDefault("chain.bank_private_key", "")
	v.SetDefault("chain.timeout", "30s")
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.expiry", "24h")
	v.SetDefault("jwt.issuer", "duel-escrow")
	v.SetDefault("admin.username", "admin")
	v.SetDefault("admin.password_hash", "")
	v.SetDefault("callback.secret", "")
	v.SetDefault("aes.key", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	// File config
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Environment variables: DWE_DATABASE_HOST -> database.host
	v.SetEnvPrefix("DWE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (not required, env vars can suffice)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}
