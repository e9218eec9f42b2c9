package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

type Config struct {
	Env     string        `yaml:"env" env:"ENV" env-default:"local"`
	Storage StorageConfig `yaml:"storage"`
	Index   IndexConfig   `yaml:"index"`
	Console ConsoleConfig `yaml:"console"`
}

type StorageConfig struct {
	Path      string `yaml:"path" env:"STORAGE_PATH" env-default:"./users"`
	Extension string `yaml:"extension" env:"STORAGE_EXTENSION" env-default:".txt"`
}

// IndexConfig enables the SQLite search index when Path is set.
// ":memory:" keeps it in memory for the lifetime of the process.
type IndexConfig struct {
	Path string `yaml:"path" env:"INDEX_PATH"`
}

type ConsoleConfig struct {
	NoColor bool `yaml:"no_color" env:"NO_COLOR"`
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err.Error())
	}

	return cfg
}

// Load reads the config file named by CONFIG_PATH, or only the environment
// when it is unset. A .env file in the working directory is applied first.
func Load() (*Config, error) {
	_ = godotenv.Load(".env")

	configPath := fetchConfigPath()
	if configPath == "" {
		var cfg Config
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("failed to read config from env: %w", err)
		}
		return &cfg, nil
	}

	return LoadByPath(configPath)
}

func LoadByPath(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config file does not exist: %s", configPath)
	}

	var cfg Config

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	return &cfg, nil
}

// fetches config path from env variable. The program takes no flags.
func fetchConfigPath() string {
	return os.Getenv("CONFIG_PATH")
}
