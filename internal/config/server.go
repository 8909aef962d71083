package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ServerConfig holds configuration for the bridge HTTP server.
type ServerConfig struct {
	ConfigFile      string        `yaml:"-"`
	Port            int           `yaml:"port"`
	AgentURL        string        `yaml:"agent_url"`
	TurnTimeout     time.Duration `yaml:"turn_timeout"`
	MaxMessageBytes int64         `yaml:"max_message_bytes"`
	MetricsAddr     string        `yaml:"metrics_addr"`
	AllowedOrigins  []string      `yaml:"allowed_origins"`
	LogLevel        string        `yaml:"log_level"`
	LogFormat       string        `yaml:"log_format"`
	RedisAddr       string        `yaml:"redis_addr"`
	MCPToolsURL     string        `yaml:"mcp_tools_url"`
	MCPToolsToken   string        `yaml:"mcp_tools_token"`
	MCPToolsPrefix  string        `yaml:"mcp_tools_prefix"`
	DrainTimeout    time.Duration `yaml:"drain_timeout"`
	BuiltinTools    bool          `yaml:"builtin_tools"`
}

// SetDefaults initializes c with built-in defaults.
func (c *ServerConfig) SetDefaults() {
	c.Port = 8080
	c.AgentURL = "ws://localhost:9000/ws"
	c.TurnTimeout = 15 * time.Second
	c.MaxMessageBytes = 1 << 20
	c.LogLevel = "info"
	c.LogFormat = "console"
	c.DrainTimeout = 30 * time.Second
	c.BuiltinTools = true
	c.ConfigFile = DefaultConfigPath("server.yaml")
}

// ApplyEnv overlays environment variables onto the current values.
func (c *ServerConfig) ApplyEnv() {
	if v := GetEnv("CONFIG_FILE", ""); v != "" {
		c.ConfigFile = v
	}
	if v := GetEnv("PORT", ""); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Port = n
		}
	}
	// PYTHON_AGENT_URL is the historical name used by existing deployments.
	if v := GetEnv("AGENT_URL", GetEnv("PYTHON_AGENT_URL", "")); v != "" {
		c.AgentURL = v
	}
	if v := GetEnv("TURN_TIMEOUT", ""); v != "" {
		if d, err := parseSeconds(v); err == nil {
			c.TurnTimeout = d
		}
	}
	if v := GetEnv("MAX_MESSAGE_BYTES", ""); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.MaxMessageBytes = n
		}
	}
	if v := GetEnv("METRICS_PORT", ""); v != "" {
		c.MetricsAddr = metricsAddr(v)
	}
	if v := GetEnv("ALLOWED_ORIGINS", ""); v != "" {
		c.AllowedOrigins = splitComma(v)
	}
	if v := GetEnv("LOG_LEVEL", ""); v != "" {
		c.LogLevel = v
	}
	if v := GetEnv("LOG_FORMAT", ""); v != "" {
		c.LogFormat = v
	}
	if v := GetEnv("REDIS_ADDR", ""); v != "" {
		c.RedisAddr = v
	}
	if v := GetEnv("MCP_TOOLS_URL", ""); v != "" {
		c.MCPToolsURL = v
	}
	if v := GetEnv("MCP_TOOLS_TOKEN", ""); v != "" {
		c.MCPToolsToken = v
	}
	if v := GetEnv("MCP_TOOLS_PREFIX", ""); v != "" {
		c.MCPToolsPrefix = v
	}
	if v := GetEnv("DRAIN_TIMEOUT", ""); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.DrainTimeout = d
		}
	}
	if v := GetEnv("BUILTIN_TOOLS", ""); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.BuiltinTools = b
		}
	}
}

// BindFlagsFromCurrent binds command line flags on fs using the current
// values as defaults. A nil fs means flag.CommandLine.
func (c *ServerConfig) BindFlagsFromCurrent(fs *flag.FlagSet) {
	if fs == nil {
		fs = flag.CommandLine
	}
	fs.StringVar(&c.ConfigFile, "config", c.ConfigFile, "server config file path")
	fs.IntVar(&c.Port, "port", c.Port, "HTTP listen port for the chat API")
	fs.StringVar(&c.AgentURL, "agent-url", c.AgentURL, "WebSocket URL of the conversational agent")
	fs.Func("turn-timeout", "per-turn budget in seconds or as a duration (15, 15s)", func(v string) error {
		d, err := parseSeconds(v)
		if err != nil {
			return err
		}
		c.TurnTimeout = d
		return nil
	})
	fs.Int64Var(&c.MaxMessageBytes, "max-message-bytes", c.MaxMessageBytes, "largest accepted frame from the agent")
	fs.Func("metrics-port", "Prometheus metrics listen address or port; empty serves /metrics on --port", func(v string) error {
		c.MetricsAddr = metricsAddr(v)
		return nil
	})
	fs.Func("allowed-origins", "comma separated list of allowed CORS origins", func(v string) error {
		c.AllowedOrigins = splitComma(v)
		return nil
	})
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "log verbosity (all, debug, info, warn, error, fatal, none)")
	fs.StringVar(&c.LogFormat, "log-format", c.LogFormat, "log output format (console, json)")
	fs.StringVar(&c.RedisAddr, "redis-addr", c.RedisAddr, "redis connection URL for shared server state")
	fs.StringVar(&c.MCPToolsURL, "mcp-tools-url", c.MCPToolsURL, "streamable HTTP URL of an MCP server whose tools are offered to the agent")
	fs.StringVar(&c.MCPToolsToken, "mcp-tools-token", c.MCPToolsToken, "bearer token for --mcp-tools-url")
	fs.StringVar(&c.MCPToolsPrefix, "mcp-tools-prefix", c.MCPToolsPrefix, "prefix added to imported MCP tool names")
	fs.DurationVar(&c.DrainTimeout, "drain-timeout", c.DrainTimeout, "time to wait for in-flight chats on shutdown (-1 to wait indefinitely, 0 to exit immediately)")
	fs.BoolVar(&c.BuiltinTools, "builtin-tools", c.BuiltinTools, "offer getStringLength, countWords and reverseString")
}

// LoadFile populates the config from a YAML file.
func (c *ServerConfig) LoadFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(b, c)
}

// Validate reports settings the server cannot start with.
func (c *ServerConfig) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if !strings.HasPrefix(c.AgentURL, "ws://") && !strings.HasPrefix(c.AgentURL, "wss://") {
		return fmt.Errorf("agent url must be ws:// or wss://, got %q", c.AgentURL)
	}
	if c.TurnTimeout <= 0 {
		return fmt.Errorf("turn timeout must be positive")
	}
	return nil
}

func metricsAddr(v string) string {
	if v == "" || strings.Contains(v, ":") {
		return v
	}
	return ":" + v
}

// parseSeconds accepts a bare number of seconds or a Go duration.
func parseSeconds(v string) (time.Duration, error) {
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return time.Duration(f * float64(time.Second)), nil
	}
	return time.ParseDuration(v)
}
