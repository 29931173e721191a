package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete configuration of the workflow service.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Redis    RedisConfig    `yaml:"redis"`
	Database DatabaseConfig `yaml:"database"`
	Lock     LockConfig     `yaml:"lock"`
	Breaker  BreakerConfig  `yaml:"breaker"`
	Cache    CacheConfig    `yaml:"cache"`
	Agents   AgentsConfig   `yaml:"agents"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig holds the REST surface configuration. MaxConcurrent
// bounds in-flight executions accepted by the submission endpoint.
type ServerConfig struct {
	Address       string        `yaml:"address" env:"WF_SERVER_ADDRESS"`
	ReadTimeout   time.Duration `yaml:"read_timeout" env:"WF_SERVER_READ_TIMEOUT"`
	WriteTimeout  time.Duration `yaml:"write_timeout" env:"WF_SERVER_WRITE_TIMEOUT"`
	EnableCORS    bool          `yaml:"enable_cors" env:"WF_SERVER_ENABLE_CORS"`
	MaxConcurrent int           `yaml:"max_concurrent" env:"WF_SERVER_MAX_CONCURRENT"`
}

// RedisConfig holds the Redis connection configuration. Redis backs the
// execution lease locks and the shared result cache.
type RedisConfig struct {
	Host     string `yaml:"host" env:"WF_REDIS_HOST"`
	Port     int    `yaml:"port" env:"WF_REDIS_PORT"`
	Password string `yaml:"password" env:"WF_REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"WF_REDIS_DB"`
}

// Addr returns the host:port dial address.
func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DatabaseConfig holds the execution-state database configuration. An
// empty driver disables persistence; the service then keeps state in
// memory only.
type DatabaseConfig struct {
	Driver          string        `yaml:"driver" env:"WF_DB_DRIVER"`
	Host            string        `yaml:"host" env:"WF_DB_HOST"`
	Port            int           `yaml:"port" env:"WF_DB_PORT"`
	Username        string        `yaml:"username" env:"WF_DB_USERNAME"`
	Password        string        `yaml:"password" env:"WF_DB_PASSWORD"`
	Database        string        `yaml:"database" env:"WF_DB_DATABASE"`
	Charset         string        `yaml:"charset" env:"WF_DB_CHARSET"`
	MaxIdleConns    int           `yaml:"max_idle_conns" env:"WF_DB_MAX_IDLE_CONNS"`
	MaxOpenConns    int           `yaml:"max_open_conns" env:"WF_DB_MAX_OPEN_CONNS"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"WF_DB_CONN_MAX_LIFETIME"`
}

// Enabled reports whether a database driver is configured.
func (c *DatabaseConfig) Enabled() bool {
	return c.Driver != ""
}

// LockConfig holds the execution lease configuration.
type LockConfig struct {
	TTL           time.Duration `yaml:"ttl" env:"WF_LOCK_TTL"`
	RetryAttempts int           `yaml:"retry_attempts" env:"WF_LOCK_RETRY_ATTEMPTS"`
	RetryInterval time.Duration `yaml:"retry_interval" env:"WF_LOCK_RETRY_INTERVAL"`
}

// BreakerConfig holds the per-agent-kind circuit breaker policy.
type BreakerConfig struct {
	Window           time.Duration `yaml:"window" env:"WF_BREAKER_WINDOW"`
	Buckets          int           `yaml:"buckets" env:"WF_BREAKER_BUCKETS"`
	FailureThreshold float64       `yaml:"failure_threshold" env:"WF_BREAKER_FAILURE_THRESHOLD"`
	MinRequests      int64         `yaml:"min_requests" env:"WF_BREAKER_MIN_REQUESTS"`
	Cooldown         time.Duration `yaml:"cooldown" env:"WF_BREAKER_COOLDOWN"`
}

// CacheConfig holds the result cache configuration. CacheableAgents is
// the allow-list of agent kinds whose results may be reused.
type CacheConfig struct {
	TTL             time.Duration `yaml:"ttl" env:"WF_CACHE_TTL"`
	CacheableAgents []string      `yaml:"cacheable_agents" env:"WF_CACHE_CACHEABLE_AGENTS"`
}

// AgentsConfig holds the outbound agent invoker configuration. The
// local analytics kinds are always available; chat and MCP invokers are
// wired only when configured.
type AgentsConfig struct {
	Chat ChatAgentConfig `yaml:"chat"`
	MCP  MCPAgentConfig  `yaml:"mcp"`
}

// ChatAgentConfig configures the LLM-backed chat invoker. An empty
// model leaves the invoker disabled.
type ChatAgentConfig struct {
	Model       string  `yaml:"model" env:"WF_AGENTS_CHAT_MODEL"`
	APIKey      string  `yaml:"api_key" env:"WF_AGENTS_CHAT_API_KEY"`
	BaseURL     string  `yaml:"base_url" env:"WF_AGENTS_CHAT_BASE_URL"`
	Temperature float32 `yaml:"temperature" env:"WF_AGENTS_CHAT_TEMPERATURE"`
	MaxTokens   int     `yaml:"max_tokens" env:"WF_AGENTS_CHAT_MAX_TOKENS"`
}

// Enabled reports whether the chat invoker is configured.
func (c *ChatAgentConfig) Enabled() bool {
	return c.Model != ""
}

// MCPAgentConfig configures the MCP tool invoker. Either a command
// (stdio transport) or a URL (sse transport) enables it.
type MCPAgentConfig struct {
	Transport string        `yaml:"transport" env:"WF_AGENTS_MCP_TRANSPORT"`
	Command   string        `yaml:"command" env:"WF_AGENTS_MCP_COMMAND"`
	Args      []string      `yaml:"args" env:"WF_AGENTS_MCP_ARGS"`
	URL       string        `yaml:"url" env:"WF_AGENTS_MCP_URL"`
	Timeout   time.Duration `yaml:"timeout" env:"WF_AGENTS_MCP_TIMEOUT"`
}

// Enabled reports whether the MCP invoker is configured.
func (c *MCPAgentConfig) Enabled() bool {
	return c.Command != "" || c.URL != ""
}

// LoggingConfig holds logging configuration. Format is json or console;
// output is stdout, file, or both.
type LoggingConfig struct {
	Level      string `yaml:"level" env:"WF_LOG_LEVEL"`
	Format     string `yaml:"format" env:"WF_LOG_FORMAT"`
	Output     string `yaml:"output" env:"WF_LOG_OUTPUT"`
	FilePath   string `yaml:"file_path" env:"WF_LOG_FILE_PATH"`
	MaxSize    int    `yaml:"max_size" env:"WF_LOG_MAX_SIZE"`
	MaxBackups int    `yaml:"max_backups" env:"WF_LOG_MAX_BACKUPS"`
	MaxAge     int    `yaml:"max_age" env:"WF_LOG_MAX_AGE"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Address:       ":8080",
			ReadTimeout:   30 * time.Second,
			WriteTimeout:  30 * time.Second,
			EnableCORS:    false,
			MaxConcurrent: 64,
		},
		Redis: RedisConfig{
			Host: "localhost",
			Port: 6379,
			DB:   0,
		},
		Database: DatabaseConfig{
			Driver:          "",
			Host:            "localhost",
			Port:            3306,
			Charset:         "utf8mb4",
			MaxIdleConns:    10,
			MaxOpenConns:    100,
			ConnMaxLifetime: time.Hour,
		},
		Lock: LockConfig{
			TTL:           30 * time.Second,
			RetryAttempts: 3,
			RetryInterval: 100 * time.Millisecond,
		},
		Breaker: BreakerConfig{
			Window:           10 * time.Second,
			Buckets:          10,
			FailureThreshold: 0.5,
			MinRequests:      5,
			Cooldown:         30 * time.Second,
		},
		Cache: CacheConfig{
			TTL: 5 * time.Minute,
			CacheableAgents: []string{
				"oee-calculator",
				"quality-analyzer",
				"downtime-analyzer",
			},
		},
		Agents: AgentsConfig{
			MCP: MCPAgentConfig{
				Transport: "stdio",
				Timeout:   30 * time.Second,
			},
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "json",
			Output:     "stdout",
			FilePath:   "logs/workflow-service.log",
			MaxSize:    100,
			MaxBackups: 3,
			MaxAge:     7,
		},
	}
}

// Loader loads configuration from its sources in precedence order:
// defaults < YAML file < environment variables.
type Loader struct {
	configPath string
}

// NewLoader creates a configuration loader.
func NewLoader() *Loader {
	return &Loader{}
}

// WithConfigPath sets the path to the YAML configuration file.
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// Load builds the configuration from all sources.
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	if l.configPath != "" {
		if err := l.loadFromFile(cfg); err != nil {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	if err := applyEnvToStruct(reflect.ValueOf(cfg).Elem()); err != nil {
		return nil, fmt.Errorf("apply environment overrides: %w", err)
	}

	return cfg, nil
}

// loadFromFile merges the YAML file into cfg. A missing file is not an
// error; the defaults stand.
func (l *Loader) loadFromFile(cfg *Config) error {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read %s: %w", l.configPath, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", l.configPath, err)
	}

	return nil
}

// applyEnvToStruct recursively applies env-tagged overrides to struct
// fields.
func applyEnvToStruct(v reflect.Value) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		if field.Kind() == reflect.Struct {
			if err := applyEnvToStruct(field); err != nil {
				return err
			}
			continue
		}

		envName := fieldType.Tag.Get("env")
		if envName == "" {
			continue
		}

		envValue := os.Getenv(envName)
		if envValue == "" {
			continue
		}

		if err := setFieldValue(field, envValue); err != nil {
			return fmt.Errorf("env %s: %w", envName, err)
		}
	}

	return nil
}

// setFieldValue parses value into the reflect.Value's type.
func setFieldValue(field reflect.Value, value string) error {
	if !field.CanSet() {
		return fmt.Errorf("field is not settable")
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return fmt.Errorf("invalid duration: %w", err)
			}
			field.SetInt(int64(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer: %w", err)
			}
			field.SetInt(i)
		}

	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid float: %w", err)
		}
		field.SetFloat(f)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean: %w", err)
		}
		field.SetBool(b)

	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice element type: %s", field.Type().Elem().Kind())
		}
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		field.Set(reflect.ValueOf(parts))

	default:
		return fmt.Errorf("unsupported field type: %s", field.Kind())
	}

	return nil
}

// Serialize renders the configuration as YAML.
func (c *Config) Serialize() ([]byte, error) {
	return yaml.Marshal(c)
}

// ParseConfig parses a YAML configuration, filling gaps with defaults.
func ParseConfig(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// LoadFromFile loads configuration from a YAML file path.
func LoadFromFile(path string) (*Config, error) {
	return NewLoader().WithConfigPath(path).Load()
}

// Clone creates a deep copy of the configuration.
func (c *Config) Clone() *Config {
	data, _ := c.Serialize()
	clone, _ := ParseConfig(data)
	return clone
}
