package config

import (
	"os"
	"strconv"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Defaults returns the built-in baseline configuration. Instruments have no
// sensible defaults and must come from the TOML file.
func Defaults() Config {
	return Config{
		Mode:     "serve",
		LogLevel: "info",
		Engine: EngineConfig{
			TickDuration: 100,
		},
		Server: ServerConfig{
			Addr: ":8090",
			Path: "/tick",
		},
		Postgres: PostgresConfig{
			PoolMaxConns: 4,
			PoolMinConns: 1,
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 4,
		},
		S3: S3Config{
			Region: "us-east-1",
			UseSSL: true,
		},
	}
}

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies TICKBOT_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known TICKBOT_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject connection secrets at deploy time without touching
// the TOML file. Instrument parameters are deliberately TOML-only.
func applyEnvOverrides(cfg *Config) {
	setStr(&cfg.Mode, "TICKBOT_MODE")
	setStr(&cfg.LogLevel, "TICKBOT_LOG_LEVEL")

	setStr(&cfg.Server.Addr, "TICKBOT_SERVER_ADDR")
	setStr(&cfg.Server.Path, "TICKBOT_SERVER_PATH")

	setStr(&cfg.Replay.InputPath, "TICKBOT_REPLAY_INPUT_PATH")
	setStr(&cfg.Replay.OutputPath, "TICKBOT_REPLAY_OUTPUT_PATH")

	setBool(&cfg.Postgres.Enabled, "TICKBOT_POSTGRES_ENABLED")
	setStr(&cfg.Postgres.DSN, "TICKBOT_POSTGRES_DSN")
	setInt(&cfg.Postgres.PoolMaxConns, "TICKBOT_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "TICKBOT_POSTGRES_POOL_MIN_CONNS")

	setBool(&cfg.Redis.Enabled, "TICKBOT_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "TICKBOT_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "TICKBOT_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "TICKBOT_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "TICKBOT_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "TICKBOT_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "TICKBOT_REDIS_TLS_ENABLED")
	setStr(&cfg.Redis.RecoverRunID, "TICKBOT_REDIS_RECOVER_RUN_ID")

	setBool(&cfg.S3.Enabled, "TICKBOT_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "TICKBOT_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "TICKBOT_S3_REGION")
	setStr(&cfg.S3.Bucket, "TICKBOT_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "TICKBOT_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "TICKBOT_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "TICKBOT_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "TICKBOT_S3_FORCE_PATH_STYLE")
}

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}
