package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

//go:embed config.yml
var embeddedConfig []byte

type Config struct {
	Mode   string `mapstructure:"mode"`
	Server struct {
		HTTPPort    string        `mapstructure:"HTTPPort"`
		MetricsPort string        `mapstructure:"metricsPort"`
		Timeout     time.Duration `mapstructure:"HTTPTimeout"`
	} `mapstructure:"server"`
	Repositories struct {
		Postgres struct {
			Host     string `mapstructure:"host"`
			Password string `mapstructure:"password"`
			Port     string `mapstructure:"port"`
			Username string `mapstructure:"username"`
			DB       string `mapstructure:"db"`
			SSLMode  string `mapstructure:"sslmode"`
		} `mapstructure:"postgres"`
		Redis struct {
			URL string `mapstructure:"url"`
		} `mapstructure:"redis"`
	} `mapstructure:"repositories"`
	JWT  JWTConfig `mapstructure:"jwt"`
	Auth struct {
		BcryptCost int `mapstructure:"bcryptCost"`
	} `mapstructure:"auth"`
	Storage struct {
		Region    string `mapstructure:"region"`
		Bucket    string `mapstructure:"bucket"`
		Endpoint  string `mapstructure:"endpoint"`
		AccessKey string `mapstructure:"accessKey"`
		SecretKey string `mapstructure:"secretKey"`
	} `mapstructure:"storage"`
	AI struct {
		Enabled bool   `mapstructure:"enabled"`
		Model   string `mapstructure:"model"`
	} `mapstructure:"ai"`
}

// JWTConfig carries the token signing material and lifetimes. The access and
// refresh secrets must differ so a refresh token can never pass as an access
// token.
type JWTConfig struct {
	SecretKey        string        `mapstructure:"secretKey"`
	RefreshSecretKey string        `mapstructure:"refreshSecretKey"`
	Issuer           string        `mapstructure:"issuer"`
	AccessTokenTTL   time.Duration `mapstructure:"accessTokenTTL"`
	RefreshTokenTTL  time.Duration `mapstructure:"refreshTokenTTL"`
}

func InitConfig() (Config, error) {
	var config Config
	v := viper.New()

	v.AddConfigPath(".")
	v.AddConfigPath("config")
	v.AddConfigPath("/app/config")

	v.SetConfigName("config")
	v.SetConfigType("yml")

	// Secrets come from the environment, never from the yaml file.
	v.AutomaticEnv()
	_ = v.BindEnv("jwt.secretKey", "JWT_SECRET")
	_ = v.BindEnv("jwt.refreshSecretKey", "JWT_REFRESH_SECRET")
	_ = v.BindEnv("repositories.postgres.password", "POSTGRES_PASSWORD")
	_ = v.BindEnv("repositories.redis.url", "REDIS_URL")
	_ = v.BindEnv("storage.accessKey", "S3_ACCESS_KEY")
	_ = v.BindEnv("storage.secretKey", "S3_SECRET_KEY")

	err := v.ReadInConfig()
	if err != nil {
		fmt.Printf("Warning: Failed to find file-based config: %s. Falling back to embedded config.\n", err)
		if err = v.ReadConfig(bytes.NewReader(embeddedConfig)); err != nil {
			return Config{}, fmt.Errorf("failed to read embedded config: %s", err)
		}
	}

	if err = v.Unmarshal(&config); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %s", err)
	}
	if err = validate(&config); err != nil {
		return Config{}, err
	}
	return config, nil
}

func validate(cfg *Config) error {
	if cfg.JWT.SecretKey == "" || cfg.JWT.RefreshSecretKey == "" {
		return errors.New("jwt secrets are not configured (JWT_SECRET / JWT_REFRESH_SECRET)")
	}
	if cfg.JWT.SecretKey == cfg.JWT.RefreshSecretKey {
		return errors.New("access and refresh token secrets must be distinct")
	}
	if cfg.JWT.AccessTokenTTL <= 0 {
		cfg.JWT.AccessTokenTTL = 15 * time.Minute
	}
	if cfg.JWT.RefreshTokenTTL <= 0 {
		cfg.JWT.RefreshTokenTTL = 7 * 24 * time.Hour
	}
	if cfg.Auth.BcryptCost == 0 {
		cfg.Auth.BcryptCost = 10
	}
	return nil
}
