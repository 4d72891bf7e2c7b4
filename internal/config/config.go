package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"lodestone/internal/logger"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	koanf "github.com/knadh/koanf/v2"
)

const (
	envPrefix           = "LODESTONE_"
	defaultConfigName   = "config.yaml"
	defaultDatabaseFile = "lodestone.db"
	defaultSnapshotFile = "servers-snapshot.json"
	defaultPort         = 8085
)

type HTTP struct {
	ListenAddr     string        `koanf:"listen_addr" validate:"required"`
	Token          string        `koanf:"token"`
	MaxBodyBytes   int64         `koanf:"max_body_bytes" validate:"gte=0"`
	RateLimitCount int           `koanf:"rate_limit_count" validate:"gte=0"`
	RateLimitWin   time.Duration `koanf:"rate_limit_window"`
}

type Storage struct {
	Path string `koanf:"path" validate:"required"`
}

type Registry struct {
	LivenessThreshold time.Duration `koanf:"liveness_threshold" validate:"gt=0"`
	AllowedServers    []string      `koanf:"allowed_servers"`
}

type Resync struct {
	Enabled bool          `koanf:"enabled"`
	Delay   time.Duration `koanf:"delay" validate:"gte=0"`
	Timeout time.Duration `koanf:"timeout" validate:"gt=0"`
}

type Control struct {
	Timeout    time.Duration `koanf:"timeout" validate:"gt=0"`
	Token      string        `koanf:"token"`
	PathPrefix string        `koanf:"path_prefix"`
}

type Ban struct {
	SweepInterval     time.Duration `koanf:"sweep_interval" validate:"gt=0"`
	FirstContactTypes []string      `koanf:"first_contact_types"`
	ProxyTypes        []string      `koanf:"proxy_types"`
}

type Fanout struct {
	PingInterval time.Duration `koanf:"ping_interval" validate:"gt=0"`
	HistorySize  int           `koanf:"history_size" validate:"gte=0"`
	SendBuffer   int           `koanf:"send_buffer" validate:"gt=0"`
}

type RCONTarget struct {
	Name     string `koanf:"name" validate:"required"`
	Address  string `koanf:"address" validate:"required,hostname_port"`
	Password string `koanf:"password"`
}

type RCON struct {
	Interval    time.Duration `koanf:"interval" validate:"gte=0"`
	DialTimeout time.Duration `koanf:"dial_timeout" validate:"gt=0"`
	ReadTimeout time.Duration `koanf:"read_timeout" validate:"gt=0"`
	Targets     []RCONTarget  `koanf:"targets" validate:"dive"`
}

type Snapshot struct {
	Path     string        `koanf:"path"`
	Interval time.Duration `koanf:"interval" validate:"gte=0"`
}

type SeedServer struct {
	Name       string `koanf:"name" validate:"required"`
	Type       string `koanf:"type"`
	Host       string `koanf:"host" validate:"required"`
	Port       int    `koanf:"port" validate:"gte=0,lte=65535"`
	ControlURL string `koanf:"control_url" validate:"omitempty,url"`
}

type Config struct {
	HTTP     HTTP          `koanf:"http"`
	Storage  Storage       `koanf:"storage"`
	Registry Registry      `koanf:"registry"`
	Resync   Resync        `koanf:"resync"`
	Control  Control       `koanf:"control"`
	Ban      Ban           `koanf:"ban"`
	Fanout   Fanout        `koanf:"fanout"`
	RCON     RCON          `koanf:"rcon"`
	Snapshot Snapshot      `koanf:"snapshot"`
	Servers  []SeedServer  `koanf:"servers" validate:"dive"`
	Log      logger.Config `koanf:"log"`

	ConfigDir string `koanf:"-"`
}

var validate = validator.New()

// LoadConfig reads <configDir>/config.yaml, creating it with defaults on the
// first run. A .env file in configDir and LODESTONE_* variables override it;
// "__" in a variable name separates sections (LODESTONE_HTTP__LISTEN_ADDR).
func LoadConfig(configDir string) (*Config, error) {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return nil, err
	}

	_ = godotenv.Load(filepath.Join(configDir, ".env"))

	configPath := filepath.Join(configDir, defaultConfigName)
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := createDefaultConfig(configPath); err != nil {
			return nil, err
		}
	}

	k := koanf.New(".")
	if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("error reading %s: %w", configPath, err)
	}

	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		s = strings.TrimPrefix(s, envPrefix)
		return strings.ToLower(strings.ReplaceAll(s, "__", "."))
	}), nil); err != nil {
		return nil, fmt.Errorf("error applying environment overrides: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("error decoding configuration: %w", err)
	}
	cfg.ConfigDir = configDir
	applyDefaults(&cfg)

	if cfg.HTTP.Token == "" {
		cfg.HTTP.Token = LoadOrGenerateSecret(configDir)
	}

	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.HTTP.ListenAddr == "" {
		cfg.HTTP.ListenAddr = fmt.Sprintf(":%d", GetPort())
	}
	if cfg.HTTP.MaxBodyBytes == 0 {
		cfg.HTTP.MaxBodyBytes = 1 << 20
	}
	if cfg.HTTP.RateLimitCount == 0 {
		cfg.HTTP.RateLimitCount = 600
	}
	if cfg.HTTP.RateLimitWin == 0 {
		cfg.HTTP.RateLimitWin = time.Minute
	}
	if cfg.Storage.Path == "" {
		cfg.Storage.Path = filepath.Join(cfg.ConfigDir, defaultDatabaseFile)
	}
	if cfg.Registry.LivenessThreshold == 0 {
		cfg.Registry.LivenessThreshold = 60 * time.Second
	}
	if cfg.Resync.Delay == 0 {
		cfg.Resync.Delay = 2 * time.Second
	}
	if cfg.Resync.Timeout == 0 {
		cfg.Resync.Timeout = 4 * time.Second
	}
	if cfg.Control.Timeout == 0 {
		cfg.Control.Timeout = 4 * time.Second
	}
	if cfg.Control.PathPrefix == "" {
		cfg.Control.PathPrefix = "/lodestone"
	}
	if cfg.Ban.SweepInterval == 0 {
		cfg.Ban.SweepInterval = time.Minute
	}
	if len(cfg.Ban.FirstContactTypes) == 0 {
		cfg.Ban.FirstContactTypes = []string{"hub"}
	}
	if len(cfg.Ban.ProxyTypes) == 0 {
		cfg.Ban.ProxyTypes = []string{"proxy"}
	}
	if cfg.Fanout.PingInterval == 0 {
		cfg.Fanout.PingInterval = 30 * time.Second
	}
	if cfg.Fanout.SendBuffer == 0 {
		cfg.Fanout.SendBuffer = 256
	}
	if cfg.RCON.DialTimeout == 0 {
		cfg.RCON.DialTimeout = 3 * time.Second
	}
	if cfg.RCON.ReadTimeout == 0 {
		cfg.RCON.ReadTimeout = 2 * time.Second
	}
	if cfg.Snapshot.Path == "" {
		cfg.Snapshot.Path = filepath.Join(cfg.ConfigDir, defaultSnapshotFile)
	}
}

func createDefaultConfig(configPath string) error {
	return os.WriteFile(configPath, []byte(defaultConfigYAML), 0644)
}

const defaultConfigYAML = `# Lodestone coordinator configuration.
http:
  listen_addr: ""
  token: ""
  rate_limit_count: 600
  rate_limit_window: 1m

registry:
  liveness_threshold: 60s
  allowed_servers: []

resync:
  enabled: true
  delay: 2s
  timeout: 4s

control:
  timeout: 4s
  path_prefix: /lodestone

ban:
  sweep_interval: 1m
  first_contact_types: [hub]
  proxy_types: [proxy]

fanout:
  ping_interval: 30s
  history_size: 200
  send_buffer: 256

rcon:
  interval: 0s
  dial_timeout: 3s
  read_timeout: 2s
  targets: []

snapshot:
  interval: 5m

servers: []

log:
  level: info
  format: console
  output: stderr
`

// IsDev switches the daemon to a separate config directory.
func IsDev() bool {
	v, _ := strconv.ParseBool(os.Getenv(envPrefix + "DEV"))
	return v
}

func GetPort() int {
	if p, err := strconv.Atoi(os.Getenv(envPrefix + "PORT")); err == nil && p > 0 {
		return p
	}
	return defaultPort
}
