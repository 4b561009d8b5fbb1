package bot

import (
	"fmt"
	"os"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	coreconfig "github.com/m3rciful/fundbot/core/config"
	coredatabase "github.com/m3rciful/fundbot/core/database"
	"github.com/m3rciful/fundbot/internal/service"
)

// PaymentsConfig configures the payment provider and donation bounds.
// Amounts are in major currency units.
type PaymentsConfig struct {
	ProviderToken string  `yaml:"provider_token" envconfig:"PAYMENT_PROVIDER_TOKEN"`
	Currency      string  `yaml:"currency" envconfig:"PAYMENT_CURRENCY"`
	MinAmount     int64   `yaml:"min_amount" envconfig:"PAYMENT_MIN_AMOUNT"`
	MaxAmount     int64   `yaml:"max_amount" envconfig:"PAYMENT_MAX_AMOUNT"`
	Presets       []int64 `yaml:"presets"`
}

// Config aggregates everything the bot process needs.
type Config struct {
	Core     coreconfig.Config   `yaml:",inline"`
	Database coredatabase.Config `yaml:"database"`
	Payments PaymentsConfig      `yaml:"payments"`
}

// CoreConfig exposes the embedded core configuration.
func (c *Config) CoreConfig() *coreconfig.Config { return &c.Core }

// DatabaseConfig exposes the database configuration.
func (c *Config) DatabaseConfig() coredatabase.Config { return c.Database }

// PaymentConfig converts the payments section into the service form.
func (c *Config) PaymentConfig() service.PaymentConfig {
	return service.PaymentConfig{
		ProviderToken: c.Payments.ProviderToken,
		Currency:      c.Payments.Currency,
		MinAmount:     c.Payments.MinAmount,
		MaxAmount:     c.Payments.MaxAmount,
		Presets:       append([]int64(nil), c.Payments.Presets...),
	}
}

// LoadConfig reads the YAML file, overlays environment variables, and
// validates the result.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse YAML config: %w", err)
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("process env: %w", err)
	}

	if err := coreconfig.Normalize(&cfg.Core); err != nil {
		return nil, err
	}
	if err := normalizePayments(&cfg.Payments); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func normalizePayments(p *PaymentsConfig) error {
	if strings.TrimSpace(p.ProviderToken) == "" {
		return fmt.Errorf("payments.provider_token is required")
	}
	if p.Currency == "" {
		p.Currency = "RUB"
	}
	if p.MinAmount <= 0 {
		p.MinAmount = 10
	}
	if p.MaxAmount <= 0 {
		p.MaxAmount = 100000
	}
	if p.MinAmount > p.MaxAmount {
		return fmt.Errorf("payments.min_amount %d exceeds max_amount %d", p.MinAmount, p.MaxAmount)
	}
	if len(p.Presets) == 0 {
		p.Presets = []int64{100, 300, 500, 1000}
	}
	for _, preset := range p.Presets {
		if preset < p.MinAmount || preset > p.MaxAmount {
			return fmt.Errorf("payments.presets value %d outside [%d, %d]", preset, p.MinAmount, p.MaxAmount)
		}
	}
	return nil
}
