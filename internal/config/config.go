// Package config loads service configuration from a YAML file with
// environment variable overrides. Environment variables take precedence over
// YAML values.
package config

import (
	"fmt"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all settings for the checkout service. Gateway credentials
// are usually supplied through the environment so they never land in a
// config file checked into version control.
type Config struct {
	Listen struct {
		BindIP string `yaml:"bind_ip" env:"BIND_IP" env-default:"0.0.0.0"`
		Port   string `yaml:"port" env:"PORT" env-default:"8080"`
	} `yaml:"listen"`
	Gateway struct {
		APIKey       string `yaml:"api_key" env:"EWAY_API_KEY" env-default:""`
		Password     string `yaml:"password" env:"EWAY_PASSWORD" env-default:""`
		Mode         string `yaml:"mode" env:"EWAY_MODE" env-default:"sandbox"`
		LogRequests  bool   `yaml:"log_requests" env:"EWAY_LOG_REQUESTS" env-default:"false"`
		LogResponses bool   `yaml:"log_responses" env:"EWAY_LOG_RESPONSES" env-default:"false"`
	} `yaml:"gateway"`
	Checkout struct {
		AcceptedCardTypes []string `yaml:"accepted_card_types" env:"ACCEPTED_CARD_TYPES" env-default:"visa,mastercard"`
		TransactionType   string   `yaml:"transaction_type" env:"EWAY_TRANSACTION_TYPE" env-default:"Purchase"`
		RedirectURL       string   `yaml:"redirect_url" env:"REDIRECT_URL" env-default:""`
	} `yaml:"checkout"`
	IsDebug bool `yaml:"is_debug" env:"DEBUG" env-default:"false"`
}

// Load reads the config file at path and applies environment overrides. An
// empty path loads from the environment alone.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	var err error
	if path == "" {
		err = cleanenv.ReadEnv(cfg)
	} else {
		err = cleanenv.ReadConfig(path, cfg)
	}
	if err != nil {
		desc, _ := cleanenv.GetDescription(cfg, nil)
		return nil, fmt.Errorf("load config: %w; %s", err, desc)
	}
	return cfg, nil
}
