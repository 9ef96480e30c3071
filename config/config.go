// Package config loads the rendezvous daemon configuration from a YAML
// file, overridable through environment variables.
package config

import (
	"flag"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Env  string     `yaml:"env" env:"PEERLINK_ENV" env-default:"local"`
	HTTP HTTPConfig `yaml:"http"`
}

type HTTPConfig struct {
	Address         string        `yaml:"address" env:"PEERLINK_ADDRESS" env-default:":8080"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"PEERLINK_SHUTDOWN_TIMEOUT" env-default:"10s"`
	ReadLimit       int64         `yaml:"read_limit" env:"PEERLINK_READ_LIMIT" env-default:"65536"`
}

// MustLoad resolves the config path from the -config flag, the
// CONFIG_PATH variable, or the default location, then loads it. A
// missing file falls back to environment variables alone.
func MustLoad() *Config {
	return MustLoadPath(fetchConfigPath())
}

func MustLoadPath(configPath string) *Config {
	var cfg Config

	if _, err := os.Stat(configPath); err == nil {
		if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
			panic("cannot read config: " + err.Error())
		}
		return &cfg
	}

	if err := cleanenv.ReadEnv(&cfg); err != nil {
		panic("cannot read config from environment: " + err.Error())
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
