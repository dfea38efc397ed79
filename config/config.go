package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/cmskit/clientlogin/domain"
)

// ProviderSettings is one provider entry under "providers" in the config
// file. The map key is the provider name ("Google", "Password", ...).
type ProviderSettings struct {
	Type         string   `mapstructure:"type"`
	Enabled      bool     `mapstructure:"enabled"`
	ClientID     string   `mapstructure:"clientId"`
	ClientSecret string   `mapstructure:"clientSecret"`
	Scopes       []string `mapstructure:"scopes"`
	Label        string   `mapstructure:"label"`
	AuthURL      string   `mapstructure:"authUrl"`
	TokenURL     string   `mapstructure:"tokenUrl"`
	UserInfoURL  string   `mapstructure:"userInfoUrl"`
}

// Config holds all configuration for the authentication module and the demo
// server wrapping it.
type Config struct {
	HTTPPort        string `mapstructure:"HTTP_PORT"`
	RootURL         string `mapstructure:"ROOT_URL"`
	BasePath        string `mapstructure:"BASEPATH"`
	ResponseNoun    string `mapstructure:"RESPONSE_NOUN"`
	LoginExpiryDays int    `mapstructure:"LOGIN_EXPIRY_DAYS"`

	MongoURI    string `mapstructure:"MONGO_URI"`
	MongoDBName string `mapstructure:"MONGO_DB_NAME"`

	// Empty RedisAddr selects the in-memory session store.
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`

	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogPretty bool   `mapstructure:"LOG_PRETTY"`

	MetricsEnabled bool `mapstructure:"METRICS_ENABLED"`

	Providers map[string]ProviderSettings `mapstructure:"providers"`
}

// Load reads configuration from file, environment variables, and defaults.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/clientlogin/")
	v.AddConfigPath("$HOME/.clientlogin")
	v.AddConfigPath(".")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("HTTP_PORT", "8080")
	v.SetDefault("ROOT_URL", "http://localhost:8080")
	v.SetDefault("BASEPATH", "authenticate")
	v.SetDefault("RESPONSE_NOUN", "authenticate")
	v.SetDefault("LOGIN_EXPIRY_DAYS", domain.DefaultLoginExpiryDays)
	v.SetDefault("MONGO_URI", "mongodb://localhost:27017/clientlogin_dev")
	v.SetDefault("MONGO_DB_NAME", "clientlogin_dev")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_PRETTY", true)
	v.SetDefault("METRICS_ENABLED", true)

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine, defaults and env vars apply.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	return &cfg, nil
}

// ProviderConfigs converts the raw provider entries into domain configs,
// normalizing names so "google", "GOOGLE" and "Google" resolve identically.
// Credential validation is deliberately deferred to the registry: a provider
// only needs credentials once an OAuth redirect is actually constructed.
func (c *Config) ProviderConfigs() map[string]domain.ProviderConfig {
	out := make(map[string]domain.ProviderConfig, len(c.Providers))
	for name, p := range c.Providers {
		canonical := NormalizeProviderName(name)
		typ := domain.ProviderType(p.Type)
		if typ == "" {
			if canonical == domain.LocalProviderName {
				typ = domain.ProviderTypeLocal
			} else {
				typ = domain.ProviderTypeOAuth2
			}
		}
		out[canonical] = domain.ProviderConfig{
			Name:            canonical,
			Type:            typ,
			Enabled:         p.Enabled,
			ClientID:        p.ClientID,
			ClientSecret:    p.ClientSecret,
			Scopes:          p.Scopes,
			Label:           p.Label,
			AuthURL:         p.AuthURL,
			TokenURL:        p.TokenURL,
			UserInfoURL:     p.UserInfoURL,
			LoginExpiryDays: c.LoginExpiryDays,
		}
	}
	return out
}

// NormalizeProviderName lower-cases then title-cases a provider name.
func NormalizeProviderName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return ""
	}
	return strings.ToUpper(name[:1]) + name[1:]
}
