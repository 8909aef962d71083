package config

import (
	"flag"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// AgentConfig holds configuration for the demo agent.
type AgentConfig struct {
	ConfigFile string        `yaml:"-"`
	Port       int           `yaml:"port"`
	Path       string        `yaml:"path"`
	RPCTimeout time.Duration `yaml:"rpc_timeout"`
	LogLevel   string        `yaml:"log_level"`
}

// SetDefaults initializes c with built-in defaults.
func (c *AgentConfig) SetDefaults() {
	c.Port = 9000
	c.Path = "/ws"
	c.RPCTimeout = 5 * time.Second
	c.LogLevel = "info"
	c.ConfigFile = DefaultConfigPath("agent.yaml")
}

// ApplyEnv overlays environment variables onto the current values.
func (c *AgentConfig) ApplyEnv() {
	if v := GetEnv("AGENT_CONFIG_FILE", ""); v != "" {
		c.ConfigFile = v
	}
	if v := GetEnv("AGENT_PORT", ""); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Port = n
		}
	}
	if v := GetEnv("AGENT_PATH", ""); v != "" {
		c.Path = v
	}
	if v := GetEnv("RPC_TIMEOUT", ""); v != "" {
		if d, err := parseSeconds(v); err == nil {
			c.RPCTimeout = d
		}
	}
	if v := GetEnv("LOG_LEVEL", ""); v != "" {
		c.LogLevel = v
	}
}

// BindFlagsFromCurrent binds flags on fs (flag.CommandLine when nil).
func (c *AgentConfig) BindFlagsFromCurrent(fs *flag.FlagSet) {
	if fs == nil {
		fs = flag.CommandLine
	}
	fs.StringVar(&c.ConfigFile, "config", c.ConfigFile, "agent config file path")
	fs.IntVar(&c.Port, "port", c.Port, "listen port")
	fs.StringVar(&c.Path, "path", c.Path, "WebSocket endpoint path")
	fs.DurationVar(&c.RPCTimeout, "rpc-timeout", c.RPCTimeout, "time to wait for each tool call answer")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "log verbosity (all, debug, info, warn, error, fatal, none)")
}

// LoadFile populates the config from a YAML file.
func (c *AgentConfig) LoadFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(b, c)
}
