package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

type SMTP struct {
	Host      string
	Port      int
	Username  string
	Password  string
	TLSMode   string
	FromEmail string
	FromName  string
}

type Config struct {
	Env       string
	Addr      string
	PublicURL *url.URL
	DBDSN     string
	LogLevel  string

	JWTSecret string
	JWTTTL    time.Duration

	VerifyTokenTTL time.Duration
	ResetTokenTTL  time.Duration

	HashMemoryKB   uint32
	HashIterations uint32

	SMTP SMTP

	AdminBootstrapName     string
	AdminBootstrapEmail    string
	AdminBootstrapPassword string
}

func Load() (Config, error) {
	return LoadFromEnv(os.Getenv)
}

func LoadFromEnv(getenv func(string) string) (Config, error) {
	cfg := Config{
		Env:       getenv("APP_ENV"),
		Addr:      getenv("APP_ADDR"),
		DBDSN:     getenv("APP_DB_DSN"),
		LogLevel:  getenv("APP_LOG_LEVEL"),
		JWTSecret: getenv("APP_JWT_SECRET"),
	}

	if cfg.Env == "" {
		cfg.Env = "dev"
	}
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:8080"
	}

	switch cfg.Env {
	case "dev", "prod", "test":
	default:
		return Config{}, errors.New("APP_ENV: must be one of dev, test, prod")
	}

	publicURLRaw := getenv("APP_PUBLIC_URL")
	if publicURLRaw != "" {
		parsed, err := url.Parse(publicURLRaw)
		if err != nil {
			return Config{}, fmt.Errorf("APP_PUBLIC_URL: %w", err)
		}
		if !parsed.IsAbs() || parsed.Host == "" {
			return Config{}, errors.New("APP_PUBLIC_URL: must be an absolute URL")
		}
		switch parsed.Scheme {
		case "http", "https":
		default:
			return Config{}, errors.New("APP_PUBLIC_URL: scheme must be http or https")
		}
		cfg.PublicURL = parsed
	}

	var err error
	if cfg.JWTTTL, err = parseTTL(getenv("APP_JWT_TTL"), 24*time.Hour); err != nil {
		return Config{}, fmt.Errorf("APP_JWT_TTL: %w", err)
	}
	if cfg.VerifyTokenTTL, err = parseTTL(getenv("APP_VERIFY_TOKEN_TTL"), 24*time.Hour); err != nil {
		return Config{}, fmt.Errorf("APP_VERIFY_TOKEN_TTL: %w", err)
	}
	if cfg.ResetTokenTTL, err = parseTTL(getenv("APP_RESET_TOKEN_TTL"), time.Hour); err != nil {
		return Config{}, fmt.Errorf("APP_RESET_TOKEN_TTL: %w", err)
	}

	if cfg.HashMemoryKB, err = parseUint32(getenv("APP_HASH_MEMORY_KB")); err != nil {
		return Config{}, fmt.Errorf("APP_HASH_MEMORY_KB: %w", err)
	}
	if cfg.HashIterations, err = parseUint32(getenv("APP_HASH_ITERATIONS")); err != nil {
		return Config{}, fmt.Errorf("APP_HASH_ITERATIONS: %w", err)
	}

	cfg.SMTP = SMTP{
		Host:      getenv("APP_SMTP_HOST"),
		Username:  getenv("APP_SMTP_USERNAME"),
		Password:  getenv("APP_SMTP_PASSWORD"),
		TLSMode:   getenv("APP_SMTP_TLS_MODE"),
		FromEmail: strings.TrimSpace(strings.ToLower(getenv("APP_SMTP_FROM_EMAIL"))),
		FromName:  strings.TrimSpace(getenv("APP_SMTP_FROM_NAME")),
	}
	portRaw := getenv("APP_SMTP_PORT")
	if portRaw == "" {
		cfg.SMTP.Port = 587
	} else {
		port, err := strconv.Atoi(portRaw)
		if err != nil || port <= 0 || port > 65535 {
			return Config{}, errors.New("APP_SMTP_PORT: must be a valid port")
		}
		cfg.SMTP.Port = port
	}
	switch cfg.SMTP.TLSMode {
	case "", "starttls", "tls", "none":
	default:
		return Config{}, errors.New("APP_SMTP_TLS_MODE: must be one of starttls, tls, none")
	}

	cfg.AdminBootstrapName = strings.TrimSpace(getenv("APP_ADMIN_BOOTSTRAP_NAME"))
	cfg.AdminBootstrapEmail = strings.TrimSpace(strings.ToLower(getenv("APP_ADMIN_BOOTSTRAP_EMAIL")))
	cfg.AdminBootstrapPassword = getenv("APP_ADMIN_BOOTSTRAP_PASSWORD")

	if cfg.AdminBootstrapPassword != "" && cfg.AdminBootstrapEmail == "" {
		return Config{}, errors.New("APP_ADMIN_BOOTSTRAP_EMAIL: required when APP_ADMIN_BOOTSTRAP_PASSWORD is set")
	}
	if cfg.AdminBootstrapPassword != "" && cfg.AdminBootstrapName == "" {
		cfg.AdminBootstrapName = "Administrator"
	}

	if cfg.IsProd() {
		if cfg.PublicURL == nil {
			return Config{}, errors.New("APP_PUBLIC_URL: required in prod")
		}
		if cfg.DBDSN == "" {
			return Config{}, errors.New("APP_DB_DSN: required in prod")
		}
		if len(cfg.JWTSecret) < 32 {
			return Config{}, errors.New("APP_JWT_SECRET: must be at least 32 bytes in prod")
		}
	}

	return cfg, nil
}

func (c Config) IsProd() bool { return c.Env == "prod" }

func (c Config) SMTPConfigured() bool { return c.SMTP.Host != "" && c.SMTP.FromEmail != "" }

func parseTTL(raw string, fallback time.Duration) (time.Duration, error) {
	if raw == "" {
		return fallback, nil
	}
	ttl, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	if ttl <= 0 {
		return 0, errors.New("must be > 0")
	}
	return ttl, nil
}

func parseUint32(raw string) (uint32, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, err
	}
	return uint32(n), nil
}
