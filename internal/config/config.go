package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"

	"github.com/rocketscienceinc/tictactoe-ledger/internal/entity"
)

type Config struct {
	LogLevel          string        `yaml:"log-level" env:"LOG_LEVEL" env-default:"info"`
	HTTPPort          string        `yaml:"http-port" env:"HTTP_PORT" env-default:"9090"`
	Redis             Redis         `yaml:"redis"`
	SQLiteStoragePath string        `yaml:"sqlite-storage-path" env:"SQLITE_STORAGE_PATH" env-default:"ledger.db"`
	JWTSecretKey      string        `yaml:"jwt-secret-key" env:"JWT_SECRET_KEY"`
	TokenTTL          time.Duration `yaml:"token-ttl" env:"TOKEN_TTL" env-default:"24h"`
	Economics         Economics     `yaml:"economics"`
	Ledger            Ledger        `yaml:"ledger"`
}

type Redis struct {
	Host     string `yaml:"host" env:"REDIS_HOST" env-default:"localhost"`
	Port     string `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
}

// Economics configures the stake. Owner is also the admin allowed to create the registry over HTTP.
type Economics struct {
	Enabled    bool   `yaml:"enabled" env:"ECONOMICS_ENABLED" env-default:"false"`
	FeePercent uint64 `yaml:"fee-percent" env:"ECONOMICS_FEE_PERCENT" env-default:"0"`
	FixedBet   uint64 `yaml:"fixed-bet" env:"ECONOMICS_FIXED_BET" env-default:"0"`
	Owner      string `yaml:"owner" env:"ECONOMICS_OWNER"`
}

type Ledger struct {
	MaxRetries int `yaml:"max-retries" env:"LEDGER_MAX_RETRIES" env-default:"5"`
}

// Load reads path, then applies environment overrides.
func Load(path string) (*Config, error) {
	config := &Config{}

	if err := cleanenv.ReadConfig(path, config); err != nil {
		return nil, fmt.Errorf("unable to load config file: %w", err)
	}

	return config, nil
}

func (that *Redis) GetRedisAddr() string {
	if that.Host == "" || that.Port == "" {
		return ""
	}

	return fmt.Sprintf("%s:%s", that.Host, that.Port)
}

// ToEntity returns nil when the ledger runs without stakes.
func (that *Economics) ToEntity() *entity.Economics {
	if !that.Enabled {
		return nil
	}

	return &entity.Economics{
		FeePercent: that.FeePercent,
		FixedBet:   that.FixedBet,
		Owner:      entity.Identity(that.Owner),
	}
}
