package config

import (
	"context"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	ServerHost string
	ServerPort int

	DatabasePath string

	JWTSecret string
	TokenTTL  time.Duration

	KafkaHost  string
	KafkaPort  int
	KafkaTopic string

	AuthTimeout       time.Duration
	EstimateTimeout   time.Duration
	HeartbeatInterval time.Duration
}

func NewConfig(ctx context.Context) (*Config, error) {
	var err error

	configName := "config.json"
	_ = godotenv.Load()

	if os.Getenv("RIDEHUB_CONFIG_NAME") != "" {
		configName = os.Getenv("RIDEHUB_CONFIG_NAME")
	}

	viper.SetConfigName(configName)
	viper.SetConfigType("json")
	viper.AddConfigPath("config")
	viper.AddConfigPath(".")

	viper.SetDefault("ServerHost", "127.0.0.1")
	viper.SetDefault("ServerPort", 8800)
	viper.SetDefault("DatabasePath", "ridehub.db")
	viper.SetDefault("TokenTTL", 7*24*time.Hour)
	viper.SetDefault("AuthTimeout", 5*time.Second)
	viper.SetDefault("EstimateTimeout", 10*time.Second)
	viper.SetDefault("HeartbeatInterval", 10*time.Second)

	err = viper.ReadInConfig()
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	err = viper.Unmarshal(cfg)
	if err != nil {
		return nil, err
	}

	if secret := os.Getenv("RIDEHUB_JWT_SECRET"); secret != "" {
		cfg.JWTSecret = secret
	}

	return cfg, nil
}
