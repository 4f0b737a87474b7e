// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 RadChat Contributors

package config

import (
	"errors"
	"log/slog"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	radchaterr "github.com/radchat/radchat/pkg/errors"
	"github.com/spf13/viper"
)

// Config is the top-level RadChat configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Sessions  SessionsConfig  `mapstructure:"sessions"`
	Agent     AgentConfig     `mapstructure:"agent"`
	Models    ModelsConfig    `mapstructure:"models"`
	Providers ProvidersConfig `mapstructure:"providers"`
	Tools     ToolsConfig     `mapstructure:"tools"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Listen      string   `mapstructure:"listen"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

// SessionsConfig bounds the in-memory session store.
type SessionsConfig struct {
	MaxSize int           `mapstructure:"max_size"`
	TTL     time.Duration `mapstructure:"ttl"`
}

// AgentConfig controls the model/tool loop.
type AgentConfig struct {
	MaxTurns     int    `mapstructure:"max_turns"`
	MaxTokens    int    `mapstructure:"max_tokens"`
	SystemPrompt string `mapstructure:"system_prompt"`
}

// ModelsConfig controls model selection.
type ModelsConfig struct {
	Default string `mapstructure:"default"`
}

// ProvidersConfig holds one entry per adapter.
type ProvidersConfig struct {
	Anthropic ProviderConfig `mapstructure:"anthropic"`
	OpenAI    ProviderConfig `mapstructure:"openai"`
}

// ProviderConfig holds credentials and endpoint for a model provider.
type ProviderConfig struct {
	APIKey   string `mapstructure:"api_key"`
	Endpoint string `mapstructure:"endpoint"`
}

// ToolsConfig locates the tool catalog and the services that execute tools.
type ToolsConfig struct {
	Catalog   string            `mapstructure:"catalog"`
	Endpoints map[string]string `mapstructure:"endpoints"`
	Timeout   time.Duration     `mapstructure:"timeout"`
}

// LoggingConfig selects the slog handler.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// SlogLevel maps Level onto slog. Unknown values fall back to info.
func (l LoggingConfig) SlogLevel() slog.Level {
	switch strings.ToLower(l.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.listen", "127.0.0.1:5000")
	v.SetDefault("server.cors_origins", []string{})
	v.SetDefault("sessions.max_size", 100)
	v.SetDefault("sessions.ttl", time.Hour)
	v.SetDefault("agent.max_turns", 10)
	v.SetDefault("agent.max_tokens", 4096)
	v.SetDefault("agent.system_prompt", "")
	v.SetDefault("models.default", "openai/gpt-4.1-mini")
	v.SetDefault("providers.anthropic.api_key", "")
	v.SetDefault("providers.anthropic.endpoint", "")
	v.SetDefault("providers.openai.api_key", "")
	v.SetDefault("providers.openai.endpoint", "https://models.inference.ai.azure.com")
	v.SetDefault("tools.catalog", "")
	v.SetDefault("tools.timeout", 30*time.Second)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// vendorKeyEnv maps provider key settings to the vendors' conventional
// variables, consulted only when neither the file nor RADCHAT_ set a key.
var vendorKeyEnv = map[string]string{
	"providers.anthropic.api_key": "ANTHROPIC_API_KEY",
	"providers.openai.api_key":    "GITHUB_TOKEN",
}

// SetupEnv enables RADCHAT_ overrides (dots become underscores).
func SetupEnv(v *viper.Viper) {
	v.SetEnvPrefix("RADCHAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// applyVendorKeys fills empty provider keys from the vendor variables. It
// runs after the config file is read so an explicit key always wins.
func applyVendorKeys(v *viper.Viper) {
	for key, env := range vendorKeyEnv {
		if v.GetString(key) != "" {
			continue
		}
		if val := os.Getenv(env); val != "" {
			v.Set(key, val)
		}
	}
}

// Load reads configuration from the given path (or defaults) with
// environment variable overrides (prefix RADCHAT_).
func Load(path string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)
	SetupEnv(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, radchaterr.Errorf(radchaterr.CodeConfigLoadReadFailure, "reading config %s: %w", path, err)
		}
	}
	applyVendorKeys(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, radchaterr.Errorf(radchaterr.CodeConfigParseInvalidFormat, "unmarshalling config: %w", err)
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, radchaterr.Errorf(radchaterr.CodeConfigValidateInvalidValue, "validating config: %w", errors.Join(errs...))
	}

	return &cfg, nil
}

// Validate checks the configuration for logical errors.
// It returns a slice of all validation errors found, collecting all issues
// rather than stopping at the first one.
func (c *Config) Validate() []error {
	var errs []error

	errs = append(errs, c.validateServer()...)
	errs = append(errs, c.validateSessions()...)
	errs = append(errs, c.validateAgent()...)
	errs = append(errs, c.validateProviders()...)
	errs = append(errs, c.validateTools()...)
	errs = append(errs, c.validateLogging()...)

	return errs
}

func invalid(format string, args ...any) error {
	return radchaterr.Errorf(radchaterr.CodeConfigValidateInvalidValue, "config: "+format, args...)
}

func (c *Config) validateServer() []error {
	var errs []error

	if c.Server.Listen == "" {
		return append(errs, invalid("server.listen must not be empty"))
	}

	_, portStr, err := net.SplitHostPort(c.Server.Listen)
	if err != nil {
		return append(errs, invalid("server.listen must be a valid host:port address, got %q: %w", c.Server.Listen, err))
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		errs = append(errs, invalid("server.listen port must be a number, got %q", portStr))
	} else if port < 1 || port > 65535 {
		errs = append(errs, invalid("server.listen port must be between 1 and 65535, got %d", port))
	}

	return errs
}

func (c *Config) validateSessions() []error {
	var errs []error

	if c.Sessions.MaxSize <= 0 {
		errs = append(errs, invalid("sessions.max_size must be greater than 0, got %d", c.Sessions.MaxSize))
	}
	if c.Sessions.TTL < 0 {
		errs = append(errs, invalid("sessions.ttl must not be negative, got %s", c.Sessions.TTL))
	}

	return errs
}

func (c *Config) validateAgent() []error {
	var errs []error

	if c.Agent.MaxTurns <= 0 {
		errs = append(errs, invalid("agent.max_turns must be greater than 0, got %d", c.Agent.MaxTurns))
	}
	if c.Agent.MaxTokens <= 0 {
		errs = append(errs, invalid("agent.max_tokens must be greater than 0, got %d", c.Agent.MaxTokens))
	}
	if strings.TrimSpace(c.Models.Default) == "" {
		errs = append(errs, invalid("models.default must not be empty"))
	}

	return errs
}

func (c *Config) validateProviders() []error {
	var errs []error

	for name, p := range map[string]ProviderConfig{
		"anthropic": c.Providers.Anthropic,
		"openai":    c.Providers.OpenAI,
	} {
		if p.Endpoint == "" {
			continue
		}
		if err := validateURL(p.Endpoint); err != nil {
			errs = append(errs, invalid("providers.%s.endpoint %v", name, err))
		}
	}

	return errs
}

func (c *Config) validateTools() []error {
	var errs []error

	if c.Tools.Timeout < 0 {
		errs = append(errs, invalid("tools.timeout must not be negative, got %s", c.Tools.Timeout))
	}
	for category, endpoint := range c.Tools.Endpoints {
		if err := validateURL(endpoint); err != nil {
			errs = append(errs, invalid("tools.endpoints.%s %v", category, err))
		}
	}

	return errs
}

func (c *Config) validateLogging() []error {
	var errs []error

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "warning": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, invalid("logging.level must be one of [debug, info, warn, error], got %q", c.Logging.Level))
	}
	if c.Logging.Format != "text" && c.Logging.Format != "json" {
		errs = append(errs, invalid("logging.format must be one of [text, json], got %q", c.Logging.Format))
	}

	return errs
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.New("must be an absolute http(s) URL, got " + strconv.Quote(raw))
	}
	return nil
}
