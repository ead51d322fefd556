// Package config provides configuration types and loading for the
// network operations agent.
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration document.
type Config struct {
	Logging   LoggingConfig           `yaml:"logging"`
	Inventory string                  `yaml:"inventory"`
	Session   SessionConfig           `yaml:"session"`
	Reasoner  ReasonerConfig          `yaml:"reasoner"`
	CMDB      CMDBConfig              `yaml:"cmdb"`
	Ticketing TicketingConfig         `yaml:"ticketing"`
	Mailer    MailerConfig            `yaml:"mailer"`
	Install   InstallPollConfig       `yaml:"install_poll"`
	Agents    map[string]*AgentConfig `yaml:"agents"`
	Router    RouterConfig            `yaml:"router"`
	Server    ServerConfig            `yaml:"server"`
}

// SessionConfig bounds ordinary device command execution. Installs get
// their own longer timeout from InstallPollConfig.
type SessionConfig struct {
	CommandTimeout time.Duration `yaml:"command_timeout"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

// ReasonerConfig configures the external reasoning capability. Only
// OpenAI-compatible chat-completions endpoints are supported; anything
// with that API surface (including local gateways) works via base_url.
type ReasonerConfig struct {
	Type        string  `yaml:"type"`
	Model       string  `yaml:"model"`
	VisionModel string  `yaml:"vision_model"`
	APIKey      string  `yaml:"api_key"`
	BaseURL     string  `yaml:"base_url"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
	Timeout     int     `yaml:"timeout"`
	MaxRetries  int     `yaml:"max_retries"`
}

type CMDBConfig struct {
	BaseURL string `yaml:"base_url"`
	Token   string `yaml:"token"`
	Timeout int    `yaml:"timeout"`
}

type TicketingConfig struct {
	BaseURL  string `yaml:"base_url"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Timeout  int    `yaml:"timeout"`
}

type MailerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

// InstallPollConfig bounds the package-install confirmation probe.
type InstallPollConfig struct {
	Attempts       int           `yaml:"attempts"`
	Interval       time.Duration `yaml:"interval"`
	ProbeTimeout   time.Duration `yaml:"probe_timeout"`
	ExecuteTimeout time.Duration `yaml:"execute_timeout"`
}

// AgentConfig describes one sub-agent: a device or service target plus
// the fixed tool subset it may use.
type AgentConfig struct {
	Description   string   `yaml:"description"`
	Device        string   `yaml:"device"`
	Service       string   `yaml:"service"`
	Tools         []string `yaml:"tools"`
	Instructions  string   `yaml:"instructions"`
	Examples      []string `yaml:"examples"`
	MaxIterations int      `yaml:"max_iterations"`
}

type RouterConfig struct {
	Instructions  string `yaml:"instructions"`
	MaxIterations int    `yaml:"max_iterations"`
}

type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	MaxAttachmentMB int           `yaml:"max_attachment_mb"`
}

// DefaultMaxIterations bounds a reasoning loop when no explicit
// max_iterations is configured.
const DefaultMaxIterations = 50

func (c *Config) SetDefaults() {
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	if c.Inventory == "" {
		c.Inventory = "testbed.yaml"
	}
	if c.Session.CommandTimeout == 0 {
		c.Session.CommandTimeout = 60 * time.Second
	}

	if c.Reasoner.Type == "" {
		c.Reasoner.Type = "openai"
	}
	if c.Reasoner.Model == "" {
		c.Reasoner.Model = "gpt-4o"
	}
	if c.Reasoner.VisionModel == "" {
		c.Reasoner.VisionModel = c.Reasoner.Model
	}
	if c.Reasoner.Temperature == 0 {
		c.Reasoner.Temperature = 0.3
	}
	if c.Reasoner.MaxTokens == 0 {
		c.Reasoner.MaxTokens = 4096
	}
	if c.Reasoner.Timeout == 0 {
		c.Reasoner.Timeout = 120
	}
	if c.Reasoner.MaxRetries == 0 {
		c.Reasoner.MaxRetries = 3
	}

	if c.CMDB.Timeout == 0 {
		c.CMDB.Timeout = 30
	}
	if c.Ticketing.Timeout == 0 {
		c.Ticketing.Timeout = 30
	}
	if c.Mailer.Port == 0 {
		c.Mailer.Port = 587
	}

	if c.Install.Attempts == 0 {
		c.Install.Attempts = 12
	}
	if c.Install.Interval == 0 {
		c.Install.Interval = 10 * time.Second
	}
	if c.Install.ProbeTimeout == 0 {
		c.Install.ProbeTimeout = 10 * time.Second
	}
	if c.Install.ExecuteTimeout == 0 {
		c.Install.ExecuteTimeout = 300 * time.Second
	}

	for _, agent := range c.Agents {
		if agent == nil {
			continue
		}
		if agent.MaxIterations == 0 {
			agent.MaxIterations = DefaultMaxIterations
		}
	}

	if c.Router.MaxIterations == 0 {
		c.Router.MaxIterations = DefaultMaxIterations
	}

	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
	if c.Server.MaxAttachmentMB == 0 {
		c.Server.MaxAttachmentMB = 10
	}
}

func (c *Config) Validate() error {
	if len(c.Agents) == 0 {
		return fmt.Errorf("at least one agent must be configured")
	}

	for name, agent := range c.Agents {
		if agent == nil {
			return fmt.Errorf("agent '%s' has no configuration body", name)
		}
		if agent.Device == "" && agent.Service == "" {
			return fmt.Errorf("agent '%s' must target a device or a service", name)
		}
		if agent.Device != "" && agent.Service != "" {
			return fmt.Errorf("agent '%s' targets both a device and a service", name)
		}
		if len(agent.Tools) == 0 {
			return fmt.Errorf("agent '%s' has an empty tool subset", name)
		}
	}

	if c.Install.Attempts < 1 {
		return fmt.Errorf("install_poll.attempts must be positive")
	}

	return nil
}
