package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type HTTPConfig struct {
	Host string
	Port int
}

type DBConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type AuthConfig struct {
	AccessSecret string
}

type DetectorConfig struct {
	BaseURL string
	Timeout time.Duration
}

type PhotoConfig struct {
	FetchTimeout time.Duration
	MaxPerJob    int
}

type StorageConfig struct {
	Endpoint      string
	AccessKey     string
	SecretKey     string
	Bucket        string
	Region        string
	PublicBaseURL string
}

type Config struct {
	Environment string
	HTTP        HTTPConfig
	DB          DBConfig
	Auth        AuthConfig
	Detector    DetectorConfig
	Photo       PhotoConfig
	Storage     StorageConfig
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("app")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("./deploy")
	v.AddConfigPath("./internal/config")

	v.AutomaticEnv()

	_ = v.ReadInConfig()

	cfg := &Config{
		Environment: v.GetString("APP_ENV"),
		HTTP: HTTPConfig{
			Host: v.GetString("HTTP_HOST"),
			Port: v.GetInt("HTTP_PORT"),
		},
		DB: DBConfig{
			DSN:             v.GetString("DB_DSN"),
			MaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
			ConnMaxLifetime: v.GetDuration("DB_CONN_MAX_LIFETIME"),
		},
		Auth: AuthConfig{
			AccessSecret: v.GetString("JWT_ACCESS_SECRET"),
		},
		Detector: DetectorConfig{
			BaseURL: v.GetString("DETECTOR_BASE_URL"),
			Timeout: v.GetDuration("DETECTOR_TIMEOUT"),
		},
		Photo: PhotoConfig{
			FetchTimeout: v.GetDuration("PHOTO_FETCH_TIMEOUT"),
			MaxPerJob:    v.GetInt("PHOTO_MAX_PER_JOB"),
		},
		Storage: StorageConfig{
			Endpoint:      v.GetString("R2_ENDPOINT"),
			AccessKey:     v.GetString("R2_ACCESS_KEY_ID"),
			SecretKey:     v.GetString("R2_SECRET_ACCESS_KEY"),
			Bucket:        v.GetString("R2_BUCKET"),
			Region:        v.GetString("R2_REGION"),
			PublicBaseURL: v.GetString("R2_PUBLIC_BASE_URL"),
		},
	}

	if cfg.HTTP.Host == "" {
		cfg.HTTP.Host = "0.0.0.0"
	}
	if cfg.HTTP.Port == 0 {
		cfg.HTTP.Port = 8080
	}
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.Detector.Timeout == 0 {
		cfg.Detector.Timeout = 120 * time.Second
	}
	if cfg.Photo.FetchTimeout == 0 {
		cfg.Photo.FetchTimeout = 60 * time.Second
	}
	if cfg.Photo.MaxPerJob == 0 {
		cfg.Photo.MaxPerJob = 10
	}
	if cfg.Storage.Region == "" {
		cfg.Storage.Region = "auto"
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func validate(cfg *Config) error {
	if cfg.DB.DSN == "" {
		return fmt.Errorf("DB_DSN is required")
	}
	if cfg.Auth.AccessSecret == "" {
		return fmt.Errorf("JWT_ACCESS_SECRET is required")
	}
	if cfg.Detector.BaseURL == "" {
		return fmt.Errorf("DETECTOR_BASE_URL is required")
	}
	return nil
}
