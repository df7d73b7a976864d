package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Server struct {
	Port           string        `yaml:"port"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

type QuoteServer struct {
	Addr           string        `yaml:"addr"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
}

type Throttle struct {
	Initial      time.Duration `yaml:"initial"`
	Floor        time.Duration `yaml:"floor"`
	Factor       float64       `yaml:"factor"`
	MaxPerSecond float64       `yaml:"max_per_second"` // 0 disables the hard cap
	Burst        int           `yaml:"burst"`
}

type Lock struct {
	Backend string        `yaml:"backend"` // local, redis or sqlite
	Name    string        `yaml:"name"`
	TTL     time.Duration `yaml:"ttl"`
	Retry   time.Duration `yaml:"retry"`
}

type Cache struct {
	Backend  string        `yaml:"backend"` // memory or redis
	TTL      time.Duration `yaml:"ttl"`
	MaxItems int           `yaml:"max_items"`
}

type Redis struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type SQLite struct {
	Path string `yaml:"path"`
}

type Audit struct {
	Backend        string `yaml:"backend"` // memory or sqlite
	ServerName     string `yaml:"server_name"`
	CacheHitEvents bool   `yaml:"cache_hit_events"`
}

type Log struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

type Config struct {
	Server      Server      `yaml:"server"`
	QuoteServer QuoteServer `yaml:"quote_server"`
	Throttle    Throttle    `yaml:"throttle"`
	Lock        Lock        `yaml:"lock"`
	Cache       Cache       `yaml:"cache"`
	Redis       Redis       `yaml:"redis"`
	SQLite      SQLite      `yaml:"sqlite"`
	Audit       Audit       `yaml:"audit"`
	Log         Log         `yaml:"log"`
}

func Default() Config {
	return Config{
		Server: Server{Port: "8080", RequestTimeout: 10 * time.Second},
		QuoteServer: QuoteServer{
			Addr:           "192.168.4.2:4442",
			ConnectTimeout: 3 * time.Second,
			WriteTimeout:   2 * time.Second,
			ReadTimeout:    5 * time.Second,
		},
		Throttle: Throttle{
			Initial: 50 * time.Millisecond,
			Floor:   8 * time.Millisecond,
			Factor:  0.99,
			Burst:   1,
		},
		Lock: Lock{
			Backend: "local",
			Name:    "quote-service-lock",
			TTL:     10 * time.Second,
			Retry:   5 * time.Millisecond,
		},
		Cache:  Cache{Backend: "memory", TTL: 60 * time.Second, MaxItems: 10000},
		Redis:  Redis{Addr: "localhost:6379"},
		SQLite: SQLite{Path: "data/quotes.db"},
		Audit:  Audit{Backend: "sqlite", ServerName: "web1", CacheHitEvents: true},
		Log:    Log{Level: "info"},
	}
}

// Load reads YAML config from path (JSON is accepted too). If path is empty
// it tries config.yaml in the working directory; a missing file means
// defaults. Environment variables override the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			path = "config.yaml"
		}
	}
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err == nil {
			if err := yaml.Unmarshal(b, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config: %w", err)
			}
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// Validate rejects unknown backends and values the components cannot run with.
func (c Config) Validate() error {
	var errs []error
	switch c.Lock.Backend {
	case "local", "redis", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("lock.backend: unknown %q", c.Lock.Backend))
	}
	switch c.Cache.Backend {
	case "memory", "redis":
	default:
		errs = append(errs, fmt.Errorf("cache.backend: unknown %q", c.Cache.Backend))
	}
	switch c.Audit.Backend {
	case "memory", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("audit.backend: unknown %q", c.Audit.Backend))
	}
	if c.QuoteServer.Addr == "" {
		errs = append(errs, errors.New("quote_server.addr: required"))
	}
	if c.Throttle.Factor <= 0 || c.Throttle.Factor > 1 {
		errs = append(errs, fmt.Errorf("throttle.factor: %v not in (0, 1]", c.Throttle.Factor))
	}
	if c.Throttle.Floor > c.Throttle.Initial {
		errs = append(errs, errors.New("throttle.floor: above throttle.initial"))
	}
	return errors.Join(errs...)
}

func applyEnv(cfg *Config) error {
	var errs []error
	str := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v := os.Getenv(key); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}
	num := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			x, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = x
		}
	}
	flt := func(key string, dst *float64) {
		if v := os.Getenv(key); v != "" {
			x, err := strconv.ParseFloat(v, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = x
		}
	}
	boolean := func(key string, dst *bool) {
		if v := os.Getenv(key); v != "" {
			switch strings.ToLower(v) {
			case "1", "true", "yes", "y":
				*dst = true
			case "0", "false", "no", "n":
				*dst = false
			default:
				errs = append(errs, fmt.Errorf("%s: not a boolean: %q", key, v))
			}
		}
	}

	str("PORT", &cfg.Server.Port)
	dur("REQUEST_TIMEOUT", &cfg.Server.RequestTimeout)

	str("QUOTE_SERVER_ADDR", &cfg.QuoteServer.Addr)
	dur("QUOTE_CONNECT_TIMEOUT", &cfg.QuoteServer.ConnectTimeout)
	dur("QUOTE_WRITE_TIMEOUT", &cfg.QuoteServer.WriteTimeout)
	dur("QUOTE_READ_TIMEOUT", &cfg.QuoteServer.ReadTimeout)

	dur("THROTTLE_INITIAL", &cfg.Throttle.Initial)
	dur("THROTTLE_FLOOR", &cfg.Throttle.Floor)
	flt("THROTTLE_FACTOR", &cfg.Throttle.Factor)
	flt("THROTTLE_MAX_PER_SECOND", &cfg.Throttle.MaxPerSecond)
	num("THROTTLE_BURST", &cfg.Throttle.Burst)

	str("LOCK_BACKEND", &cfg.Lock.Backend)
	str("LOCK_NAME", &cfg.Lock.Name)
	dur("LOCK_TTL", &cfg.Lock.TTL)
	dur("LOCK_RETRY", &cfg.Lock.Retry)

	str("CACHE_BACKEND", &cfg.Cache.Backend)
	dur("CACHE_TTL", &cfg.Cache.TTL)
	num("CACHE_MAX_ITEMS", &cfg.Cache.MaxItems)

	str("REDIS_ADDR", &cfg.Redis.Addr)
	str("REDIS_PASSWORD", &cfg.Redis.Password)
	num("REDIS_DB", &cfg.Redis.DB)

	str("SQLITE_PATH", &cfg.SQLite.Path)

	str("AUDIT_BACKEND", &cfg.Audit.Backend)
	str("SERVER_NAME", &cfg.Audit.ServerName)
	boolean("AUDIT_CACHE_HIT_EVENTS", &cfg.Audit.CacheHitEvents)

	str("LOG_LEVEL", &cfg.Log.Level)
	boolean("LOG_PRETTY", &cfg.Log.Pretty)

	return errors.Join(errs...)
}

// UsesRedis reports whether any component needs a Redis client.
func (c Config) UsesRedis() bool {
	return c.Lock.Backend == "redis" || c.Cache.Backend == "redis"
}

// UsesSQLite reports whether any component needs the SQLite file.
func (c Config) UsesSQLite() bool {
	return c.Lock.Backend == "sqlite" || c.Audit.Backend == "sqlite"
}
