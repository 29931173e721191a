package config

import (
	"fmt"
	"net"
	"strings"
	"time"
)

// ValidationError is a single configuration validation failure.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("configuration validation failed:\n  - %s", strings.Join(msgs, "\n  - "))
}

// HasErrors reports whether any validation errors were collected.
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// Validator validates configuration values, collecting every failure
// rather than stopping at the first.
type Validator struct {
	errors ValidationErrors
}

// NewValidator creates a configuration validator.
func NewValidator() *Validator {
	return &Validator{
		errors: make(ValidationErrors, 0),
	}
}

func (v *Validator) addError(field, message string) {
	v.errors = append(v.errors, ValidationError{Field: field, Message: message})
}

// Validate validates the entire configuration and returns any errors.
func (v *Validator) Validate(cfg *Config) error {
	v.errors = make(ValidationErrors, 0)

	v.validateServer(&cfg.Server)
	v.validateRedis(&cfg.Redis)
	v.validateDatabase(&cfg.Database)
	v.validateLock(&cfg.Lock)
	v.validateBreaker(&cfg.Breaker)
	v.validateCache(&cfg.Cache)
	v.validateAgents(&cfg.Agents)
	v.validateLogging(&cfg.Logging)

	if v.errors.HasErrors() {
		return v.errors
	}
	return nil
}

func (v *Validator) validateServer(cfg *ServerConfig) {
	if cfg.Address == "" {
		v.addError("server.address", "address is required")
	} else if !isValidAddress(cfg.Address) {
		v.addError("server.address", "invalid address format, expected host:port or :port")
	}

	if cfg.ReadTimeout < 0 {
		v.addError("server.read_timeout", "read timeout must be non-negative")
	}
	if cfg.WriteTimeout < 0 {
		v.addError("server.write_timeout", "write timeout must be non-negative")
	}
	if cfg.ReadTimeout > 0 && cfg.ReadTimeout < time.Second {
		v.addError("server.read_timeout", "read timeout should be at least 1 second")
	}
	if cfg.WriteTimeout > 0 && cfg.WriteTimeout < time.Second {
		v.addError("server.write_timeout", "write timeout should be at least 1 second")
	}

	if cfg.MaxConcurrent <= 0 {
		v.addError("server.max_concurrent", "max concurrent executions must be positive")
	}
}

func (v *Validator) validateRedis(cfg *RedisConfig) {
	if cfg.Host == "" {
		v.addError("redis.host", "host is required")
	} else if net.ParseIP(cfg.Host) == nil && !isValidHostname(cfg.Host) {
		v.addError("redis.host", "invalid host")
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		v.addError("redis.port", "port must be in 1..65535")
	}
	if cfg.DB < 0 {
		v.addError("redis.db", "db index must be non-negative")
	}
}

func (v *Validator) validateDatabase(cfg *DatabaseConfig) {
	if cfg.Driver == "" {
		return
	}

	validDrivers := map[string]bool{
		"mysql":    true,
		"postgres": true,
	}
	if !validDrivers[cfg.Driver] {
		v.addError("database.driver", fmt.Sprintf("invalid driver '%s', must be one of: mysql, postgres", cfg.Driver))
	}

	if cfg.Host == "" {
		v.addError("database.host", "host is required when a driver is configured")
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		v.addError("database.port", "port must be in 1..65535")
	}
	if cfg.Database == "" {
		v.addError("database.database", "database name is required when a driver is configured")
	}
	if cfg.MaxIdleConns < 0 {
		v.addError("database.max_idle_conns", "max idle connections must be non-negative")
	}
	if cfg.MaxOpenConns < 0 {
		v.addError("database.max_open_conns", "max open connections must be non-negative")
	}
	if cfg.MaxOpenConns > 0 && cfg.MaxIdleConns > cfg.MaxOpenConns {
		v.addError("database.max_idle_conns", "max idle connections cannot exceed max open connections")
	}
	if cfg.ConnMaxLifetime < 0 {
		v.addError("database.conn_max_lifetime", "connection max lifetime must be non-negative")
	}
}

func (v *Validator) validateLock(cfg *LockConfig) {
	if cfg.TTL <= 0 {
		v.addError("lock.ttl", "ttl must be positive")
	} else if cfg.TTL < time.Second {
		v.addError("lock.ttl", "ttl should be at least 1 second to survive renewal scheduling")
	}
	if cfg.RetryAttempts <= 0 {
		v.addError("lock.retry_attempts", "retry attempts must be positive")
	}
	if cfg.RetryInterval < 0 {
		v.addError("lock.retry_interval", "retry interval must be non-negative")
	}
}

func (v *Validator) validateBreaker(cfg *BreakerConfig) {
	if cfg.Window <= 0 {
		v.addError("breaker.window", "window must be positive")
	}
	if cfg.Buckets <= 0 {
		v.addError("breaker.buckets", "buckets must be positive")
	}
	if cfg.Window > 0 && cfg.Buckets > 0 && cfg.Window/time.Duration(cfg.Buckets) <= 0 {
		v.addError("breaker.buckets", "buckets must not exceed the window's duration in nanoseconds")
	}
	if cfg.FailureThreshold <= 0 || cfg.FailureThreshold > 1 {
		v.addError("breaker.failure_threshold", "failure threshold must be in (0, 1]")
	}
	if cfg.MinRequests <= 0 {
		v.addError("breaker.min_requests", "min requests must be positive")
	}
	if cfg.Cooldown <= 0 {
		v.addError("breaker.cooldown", "cooldown must be positive")
	}
}

func (v *Validator) validateCache(cfg *CacheConfig) {
	if cfg.TTL <= 0 {
		v.addError("cache.ttl", "ttl must be positive")
	}
	for _, kind := range cfg.CacheableAgents {
		if strings.TrimSpace(kind) == "" {
			v.addError("cache.cacheable_agents", "agent kinds must be non-empty")
			break
		}
	}
}

func (v *Validator) validateAgents(cfg *AgentsConfig) {
	if cfg.Chat.Enabled() && cfg.Chat.APIKey == "" {
		v.addError("agents.chat.api_key", "api key is required when a chat model is configured")
	}
	if cfg.Chat.Temperature < 0 || cfg.Chat.Temperature > 2 {
		v.addError("agents.chat.temperature", "temperature must be in [0, 2]")
	}
	if cfg.Chat.MaxTokens < 0 {
		v.addError("agents.chat.max_tokens", "max tokens must be non-negative")
	}

	if cfg.MCP.Enabled() {
		switch cfg.MCP.Transport {
		case "stdio":
			if cfg.MCP.Command == "" {
				v.addError("agents.mcp.command", "command is required for stdio transport")
			}
		case "sse":
			if cfg.MCP.URL == "" {
				v.addError("agents.mcp.url", "url is required for sse transport")
			}
		default:
			v.addError("agents.mcp.transport", fmt.Sprintf("invalid transport '%s', must be one of: stdio, sse", cfg.MCP.Transport))
		}
		if cfg.MCP.Timeout < 0 {
			v.addError("agents.mcp.timeout", "timeout must be non-negative")
		}
	}
}

func (v *Validator) validateLogging(cfg *LoggingConfig) {
	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if cfg.Level == "" {
		v.addError("logging.level", "log level is required")
	} else if !validLevels[strings.ToLower(cfg.Level)] {
		v.addError("logging.level", fmt.Sprintf("invalid log level '%s', must be one of: debug, info, warn, error", cfg.Level))
	}

	validFormats := map[string]bool{
		"json":    true,
		"console": true,
	}
	if cfg.Format == "" {
		v.addError("logging.format", "log format is required")
	} else if !validFormats[strings.ToLower(cfg.Format)] {
		v.addError("logging.format", fmt.Sprintf("invalid log format '%s', must be one of: json, console", cfg.Format))
	}

	validOutputs := map[string]bool{
		"stdout": true,
		"file":   true,
		"both":   true,
	}
	if cfg.Output == "" {
		v.addError("logging.output", "log output is required")
	} else if !validOutputs[strings.ToLower(cfg.Output)] {
		v.addError("logging.output", fmt.Sprintf("invalid log output '%s', must be one of: stdout, file, both", cfg.Output))
	}

	if out := strings.ToLower(cfg.Output); (out == "file" || out == "both") && cfg.FilePath == "" {
		v.addError("logging.file_path", "file path is required for file output")
	}
	if cfg.MaxSize < 0 {
		v.addError("logging.max_size", "max size must be non-negative")
	}
	if cfg.MaxBackups < 0 {
		v.addError("logging.max_backups", "max backups must be non-negative")
	}
	if cfg.MaxAge < 0 {
		v.addError("logging.max_age", "max age must be non-negative")
	}
}

// isValidAddress checks for a host:port or :port listen address.
func isValidAddress(addr string) bool {
	if addr == "" {
		return false
	}

	if strings.HasPrefix(addr, ":") {
		port := strings.TrimPrefix(addr, ":")
		if port == "" {
			return false
		}
		_, err := net.LookupPort("tcp", port)
		return err == nil
	}

	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return false
	}

	if port == "" {
		return false
	}
	if _, err := net.LookupPort("tcp", port); err != nil {
		return false
	}

	if host != "" {
		if ip := net.ParseIP(host); ip == nil {
			if !isValidHostname(host) {
				return false
			}
		}
	}

	return true
}

// isValidHostname performs basic hostname validation.
func isValidHostname(hostname string) bool {
	if len(hostname) == 0 || len(hostname) > 253 {
		return false
	}

	labels := strings.Split(hostname, ".")
	for _, label := range labels {
		if len(label) == 0 || len(label) > 63 {
			return false
		}
		if !isAlphanumeric(label[0]) || !isAlphanumeric(label[len(label)-1]) {
			return false
		}
		for _, c := range label {
			if !isAlphanumeric(byte(c)) && c != '-' {
				return false
			}
		}
	}

	return true
}

func isAlphanumeric(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	return NewValidator().Validate(c)
}

// LoadAndValidate loads configuration from a file and validates it.
func LoadAndValidate(path string) (*Config, error) {
	cfg, err := LoadFromFile(path)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}
