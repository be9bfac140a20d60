// Package config содержит логику чтения конфигурации магазина.
package config

import (
	"errors"
	"flag"
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config содержит параметры конфигурации магазина Telegram Stars.
type Config struct {
	BotToken        string `env:"BOT_TOKEN"`
	AdminChatID     int64  `env:"ADMIN_CHAT_ID"`
	SupportUsername string `env:"SUPPORT_USERNAME"`
	PaymentDetails  string `env:"PAYMENT_DETAILS"`
	RedisURL        string `env:"REDIS_URL"`
	RunAddress      string `env:"RUN_ADDRESS"`
	OpsToken        string `env:"OPS_TOKEN"`
}

const (
	defaultSupportUsername = "@support"
	defaultPaymentDetails  = "2202 2002 2020 2020 - СБЕРБАНК"
	defaultRedisURL        = "redis://localhost:6379"
	defaultRunAddress      = "localhost:8080"
)

// Parse считывает конфигурацию из флагов командной строки и переменных
// окружения. Переменные окружения имеют приоритет над флагами.
func Parse() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envRedisURL := cfg.RedisURL
	envRunAddress := cfg.RunAddress

	flag.StringVar(&cfg.RedisURL, "r", defaultRedisURL, "redis connection URL")
	flag.StringVar(&cfg.RunAddress, "a", defaultRunAddress, "address and port for the ops HTTP server")

	flag.Parse()

	if envRedisURL != "" {
		cfg.RedisURL = envRedisURL
	}
	if envRunAddress != "" {
		cfg.RunAddress = envRunAddress
	}

	if cfg.RedisURL == "" {
		cfg.RedisURL = defaultRedisURL
	}
	if cfg.RunAddress == "" {
		cfg.RunAddress = defaultRunAddress
	}
	if cfg.SupportUsername == "" {
		cfg.SupportUsername = defaultSupportUsername
	}
	if cfg.PaymentDetails == "" {
		cfg.PaymentDetails = defaultPaymentDetails
	}

	if cfg.BotToken == "" {
		return nil, errors.New("BOT_TOKEN is required")
	}
	if cfg.AdminChatID == 0 {
		return nil, errors.New("ADMIN_CHAT_ID is required")
	}

	return cfg, nil
}
