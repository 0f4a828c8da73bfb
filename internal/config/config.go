package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	HTTP struct {
		Addr string
	}
	DB struct {
		Driver string
		DSN    string
	}
	JWT struct {
		Secret string
		TTL    time.Duration
	}
	Log struct {
		Level  string
		Format string
	}
	Allocator struct {
		Min         int
		Max         int
		MaxAttempts int
	}
	Lock struct {
		Backend string
		TTL     time.Duration
	}
	Redis struct {
		URL string
	}
	Repair struct {
		OnStartup bool
		Interval  time.Duration
	}
	CORS struct {
		AllowedOrigins []string
	}
}

// Load reads config from environment (CARD_ prefix) and optional card-runner.yaml.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.SetConfigName("card-runner")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // optional config file

	v.SetDefault("http.addr", ":3002")
	v.SetDefault("jwt.ttl", "720h")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("allocator.min", 1000)
	v.SetDefault("allocator.max", 999999)
	v.SetDefault("allocator.max_attempts", 1000)
	v.SetDefault("lock.backend", "local")
	v.SetDefault("lock.ttl", "5s")
	v.SetDefault("repair.on_startup", false)
	v.SetDefault("repair.interval", "0s")
	v.SetDefault("cors.allowed_origins", "*")

	cfg := &Config{}
	cfg.HTTP.Addr = v.GetString("http.addr")
	cfg.DB.Driver = v.GetString("db.driver")
	cfg.DB.DSN = v.GetString("db.dsn")
	cfg.JWT.Secret = v.GetString("jwt.secret")
	cfg.Log.Level = v.GetString("log.level")
	cfg.Log.Format = v.GetString("log.format")
	cfg.Allocator.Min = v.GetInt("allocator.min")
	cfg.Allocator.Max = v.GetInt("allocator.max")
	cfg.Allocator.MaxAttempts = v.GetInt("allocator.max_attempts")
	cfg.Lock.Backend = strings.ToLower(v.GetString("lock.backend"))
	cfg.Redis.URL = v.GetString("redis.url")
	cfg.Repair.OnStartup = v.GetBool("repair.on_startup")
	cfg.CORS.AllowedOrigins = splitList(v.GetStringSlice("cors.allowed_origins"))

	var err error
	if cfg.JWT.TTL, err = duration(v, "jwt.ttl"); err != nil {
		return nil, err
	}
	if cfg.Lock.TTL, err = duration(v, "lock.ttl"); err != nil {
		return nil, err
	}
	if cfg.Repair.Interval, err = duration(v, "repair.interval"); err != nil {
		return nil, err
	}

	if cfg.DB.Driver == "" {
		return nil, fmt.Errorf("CARD_DB_DRIVER is required (sqlite3, mysql, postgres)")
	}
	if cfg.DB.DSN == "" {
		return nil, fmt.Errorf("CARD_DB_DSN is required")
	}
	if cfg.JWT.Secret == "" {
		return nil, fmt.Errorf("CARD_JWT_SECRET is required")
	}
	switch cfg.Lock.Backend {
	case "local":
	case "redis":
		if cfg.Redis.URL == "" {
			return nil, fmt.Errorf("CARD_REDIS_URL is required when lock.backend is redis")
		}
	default:
		return nil, fmt.Errorf("unknown lock.backend %q (local, redis)", cfg.Lock.Backend)
	}
	if cfg.Allocator.Min < 0 || cfg.Allocator.Max < cfg.Allocator.Min {
		return nil, fmt.Errorf("invalid allocator range [%d, %d]", cfg.Allocator.Min, cfg.Allocator.Max)
	}

	return cfg, nil
}

func duration(v *viper.Viper, key string) (time.Duration, error) {
	d, err := time.ParseDuration(v.GetString(key))
	if err != nil {
		env := "CARD_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		return 0, fmt.Errorf("invalid %s: %w", env, err)
	}
	return d, nil
}

// splitList accepts both YAML lists and comma-separated env values.
func splitList(in []string) []string {
	var out []string
	for _, s := range in {
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
