package config

import (
	"fmt"
	"os"

	"github.com/shopspring/decimal"
)

type Config struct {
	DBSource             string
	Port                 string
	Env                  string
	GatewayKeySecret     string
	GatewayWebhookSecret string
	RechargeMin          decimal.Decimal
	RechargeMax          decimal.Decimal
	RedisAddr            string
	EventChannel         string
}

func Load() (*Config, error) {
	dbSource := os.Getenv("DB_SOURCE")
	if dbSource == "" {
		return nil, fmt.Errorf("DB_SOURCE environment variable is required")
	}

	gatewaySecret := os.Getenv("GATEWAY_KEY_SECRET")
	if gatewaySecret == "" {
		return nil, fmt.Errorf("GATEWAY_KEY_SECRET environment variable is required")
	}

	webhookSecret := os.Getenv("GATEWAY_WEBHOOK_SECRET")
	if webhookSecret == "" {
		webhookSecret = gatewaySecret
	}

	port := os.Getenv("SERVER_PORT")
	if port == "" {
		port = "8080"
	}

	env := os.Getenv("ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	rechargeMin, err := decimalEnv("RECHARGE_MIN", "10")
	if err != nil {
		return nil, err
	}
	rechargeMax, err := decimalEnv("RECHARGE_MAX", "10000")
	if err != nil {
		return nil, err
	}

	// Empty means no Redis; the server falls back to log-only events.
	redisAddr := os.Getenv("REDIS_ADDR")

	channel := os.Getenv("EVENT_CHANNEL")
	if channel == "" {
		channel = "commerce.notifications"
	}

	return &Config{
		DBSource:             dbSource,
		Port:                 port,
		Env:                  env,
		GatewayKeySecret:     gatewaySecret,
		GatewayWebhookSecret: webhookSecret,
		RechargeMin:          rechargeMin,
		RechargeMax:          rechargeMax,
		RedisAddr:            redisAddr,
		EventChannel:         channel,
	}, nil
}

func decimalEnv(key, fallback string) (decimal.Decimal, error) {
	raw := os.Getenv(key)
	if raw == "" {
		raw = fallback
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s must be a decimal number: %w", key, err)
	}
	return d, nil
}
