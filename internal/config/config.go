package config

import (
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

type Config struct {
	HttpServerPort uint16 `env:"HTTP_SERVER_PORT" envDefault:"8085" validate:"min=1000,max=65535"`

	// Origins allowed to reach the REST API and open WebSocket connections.
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envDefault:"http://localhost:3000,http://127.0.0.1:3000"`

	MessageCooldown time.Duration `env:"MESSAGE_COOLDOWN" envDefault:"5s"`
	TypingTimeout   time.Duration `env:"TYPING_TIMEOUT"   envDefault:"3s"`

	BatchSize       int           `env:"BATCH_SIZE"       envDefault:"10" validate:"min=1,max=1000"`
	BatchInterval   time.Duration `env:"BATCH_INTERVAL"   envDefault:"50ms"`
	BatchedDelivery bool          `env:"BATCHED_DELIVERY" envDefault:"false"`
}

func LoadConfig() (*Config, error) {
	// Load environment variables from .env file
	err := godotenv.Load(".env")
	if err != nil {
		zap.L().Debug(".env file not found", zap.Error(err))
	}

	cfg := &Config{}
	// Parse config from environment variables
	if err = env.Parse(cfg); err != nil {
		zap.L().Error("config_load_failed", zap.Error(err))
		return nil, err
	}

	// Validate the config
	validate := validator.New()
	err = validate.Struct(cfg)
	if err != nil {
		zap.L().Error("config_validation_failed", zap.Error(err))
		return nil, err
	}
	return cfg, nil
}
