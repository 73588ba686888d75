package config

import (
	"flag"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Env      string         `yaml:"env" env-default:"local"`
	HTTP     HTTPConfig     `yaml:"http"`
	WS       WSConfig       `yaml:"ws"`
	JWT      JWTConfig      `yaml:"jwt"`
	Redis    RedisConfig    `yaml:"redis"`
	Database DatabaseConfig `yaml:"database"`
}

type HTTPConfig struct {
	Address        string   `yaml:"address" env-default:":8080"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type WSConfig struct {
	ReadLimit   int64         `yaml:"read_limit" env-default:"65536"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"120s"`
	PingPeriod  time.Duration `yaml:"ping_period" env-default:"54s"`
	WriteWait   time.Duration `yaml:"write_wait" env-default:"10s"`
	SendBuffer  int           `yaml:"send_buffer" env-default:"256"`
}

type JWTConfig struct {
	Secret string        `yaml:"secret" env:"JWT_SECRET"`
	TTL    time.Duration `yaml:"ttl" env-default:"24h"`
}

type RedisConfig struct {
	Addr       string        `yaml:"addr" env:"REDIS_ADDR"`
	Password   string        `yaml:"password" env:"REDIS_PASSWORD"`
	DB         int           `yaml:"db" env-default:"0"`
	Channel    string        `yaml:"channel" env-default:"quickmeet:messages"`
	Backplane  string        `yaml:"backplane" env-default:"local"` // local | redis
	SessionTTL time.Duration `yaml:"session_ttl" env-default:"24h"`
	InviteTTL  time.Duration `yaml:"invite_ttl" env-default:"5m"`
}

type DatabaseConfig struct {
	DSN string `yaml:"dsn" env:"DATABASE_DSN"`
}

func MustLoad() *Config {
	configPath := fetchConfigPath()
	if configPath == "" {
		panic("config path is empty")
	}

	return MustLoadPath(configPath)
}

func MustLoadPath(configPath string) *Config {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		panic("config file does not exist: " + configPath)
	}

	var cfg Config

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		panic("cannot read config: " + err.Error())
	}

	return &cfg
}

func fetchConfigPath() string {
	var res string

	flag.StringVar(&res, "config", "", "path to config file")
	flag.Parse()

	if res == "" {
		res = os.Getenv("CONFIG_PATH")
	}

	if res == "" {
		res = "config/local.yaml"
	}

	return res
}
