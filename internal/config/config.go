// File: internal/config/config.go
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Interface defines the contract for accessing application configuration.
// This allows for dependency injection and mocking in tests.
type Interface interface {
	Logger() LoggerConfig
	LLM() LLMConfig
	Output() OutputConfig
	Storage() StorageConfig
	Database() DatabaseConfig
	Pipeline() PipelineConfig
	Server() ServerConfig

	SetLLMProvider(p LLMProvider)
	SetOutputBaseDir(dir string)
}

// Config holds the entire application configuration.
type Config struct {
	LoggerCfg   LoggerConfig   `mapstructure:"logger" yaml:"logger"`
	LLMCfg      LLMConfig      `mapstructure:"llm" yaml:"llm"`
	OutputCfg   OutputConfig   `mapstructure:"output" yaml:"output"`
	StorageCfg  StorageConfig  `mapstructure:"storage" yaml:"storage"`
	DatabaseCfg DatabaseConfig `mapstructure:"database" yaml:"database"`
	PipelineCfg PipelineConfig `mapstructure:"pipeline" yaml:"pipeline"`
	ServerCfg   ServerConfig   `mapstructure:"server" yaml:"server"`
}

// --- Interface Method Implementations (Getters) ---

func (c *Config) Logger() LoggerConfig     { return c.LoggerCfg }
func (c *Config) LLM() LLMConfig           { return c.LLMCfg }
func (c *Config) Output() OutputConfig     { return c.OutputCfg }
func (c *Config) Storage() StorageConfig   { return c.StorageCfg }
func (c *Config) Database() DatabaseConfig { return c.DatabaseCfg }
func (c *Config) Pipeline() PipelineConfig { return c.PipelineCfg }
func (c *Config) Server() ServerConfig     { return c.ServerCfg }

// --- Interface Method Implementations (Setters) ---

func (c *Config) SetLLMProvider(p LLMProvider) { c.LLMCfg.Provider = p }
func (c *Config) SetOutputBaseDir(dir string)  { c.OutputCfg.BaseDir = dir }

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// LLMProvider defines the supported LLM providers.
type LLMProvider string

const (
	ProviderGemini LLMProvider = "gemini"
	// ProviderFake serves scripted responses without network access.
	ProviderFake LLMProvider = "fake"
)

// LLMConfig configures the generation capability.
type LLMConfig struct {
	Provider          LLMProvider   `mapstructure:"provider" yaml:"provider"`
	APIKey            string        `mapstructure:"api_key" yaml:"-"`
	FastModel         string        `mapstructure:"fast_model" yaml:"fast_model"`
	PowerfulModel     string        `mapstructure:"powerful_model" yaml:"powerful_model"`
	Temperature       float32       `mapstructure:"temperature" yaml:"temperature"`
	MaxTokens         int           `mapstructure:"max_tokens" yaml:"max_tokens"`
	APITimeout        time.Duration `mapstructure:"api_timeout" yaml:"api_timeout"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second" yaml:"requests_per_second"`
	Burst             int           `mapstructure:"burst" yaml:"burst"`
	// FakeScriptPath points at a JSON file of canned responses for the fake provider.
	FakeScriptPath string `mapstructure:"fake_script_path" yaml:"fake_script_path"`
}

// OutputConfig lays out where generated artifacts land inside the store.
type OutputConfig struct {
	BaseDir     string `mapstructure:"base_dir" yaml:"base_dir"`
	CodeDir     string `mapstructure:"code_dir" yaml:"code_dir"`
	TestsDir    string `mapstructure:"tests_dir" yaml:"tests_dir"`
	UsageReport string `mapstructure:"usage_report" yaml:"usage_report"`
}

// StorageBackend selects the artifact store implementation.
type StorageBackend string

const (
	StorageFS StorageBackend = "fs"
	StorageS3 StorageBackend = "s3"
	// StorageMemory keeps artifacts in process memory; used for dry runs.
	StorageMemory StorageBackend = "memory"
)

// StorageConfig selects and configures the artifact store.
type StorageConfig struct {
	Backend StorageBackend `mapstructure:"backend" yaml:"backend"`
	S3      S3Config       `mapstructure:"s3" yaml:"s3"`
}

// S3Config holds S3-compatible object storage settings.
type S3Config struct {
	Endpoint  string `mapstructure:"endpoint" yaml:"endpoint"`
	Bucket    string `mapstructure:"bucket" yaml:"bucket"`
	AccessKey string `mapstructure:"access_key" yaml:"-"`
	SecretKey string `mapstructure:"secret_key" yaml:"-"`
	UseSSL    bool   `mapstructure:"use_ssl" yaml:"use_ssl"`
	Region    string `mapstructure:"region" yaml:"region"`
}

// DatabaseConfig holds the run ledger connection details. URL selects
// Postgres; SQLitePath selects a local SQLite file. Both empty disables the ledger.
type DatabaseConfig struct {
	URL        string `mapstructure:"url" yaml:"url"`
	SQLitePath string `mapstructure:"sqlite_path" yaml:"sqlite_path"`
}

// PipelineConfig tunes the controller.
type PipelineConfig struct {
	ProgressBuffer int           `mapstructure:"progress_buffer" yaml:"progress_buffer"`
	TickInterval   time.Duration `mapstructure:"tick_interval" yaml:"tick_interval"`
	StageTimeout   time.Duration `mapstructure:"stage_timeout" yaml:"stage_timeout"`
}

// ServerConfig configures the HTTP/websocket front end.
type ServerConfig struct {
	Addr         string        `mapstructure:"addr" yaml:"addr"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	RecentRuns   int           `mapstructure:"recent_runs" yaml:"recent_runs"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// This should not happen with defaults, but good to be safe.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "agentforge")
	v.SetDefault("logger.log_file", "agentforge.log")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")

	// -- LLM --
	v.SetDefault("llm.provider", string(ProviderGemini))
	v.SetDefault("llm.fast_model", "gemini-2.5-flash-lite")
	v.SetDefault("llm.powerful_model", "gemini-2.5-flash-lite")
	v.SetDefault("llm.temperature", 0.7)
	v.SetDefault("llm.max_tokens", 8192)
	v.SetDefault("llm.api_timeout", "2m")
	v.SetDefault("llm.requests_per_second", 1.0)
	v.SetDefault("llm.burst", 1)

	// -- Output --
	v.SetDefault("output.base_dir", "generated")
	v.SetDefault("output.code_dir", "conjugator")
	v.SetDefault("output.tests_dir", "tests")
	v.SetDefault("output.usage_report", "usage_report.json")

	// -- Storage --
	v.SetDefault("storage.backend", string(StorageFS))
	v.SetDefault("storage.s3.endpoint", "")
	v.SetDefault("storage.s3.bucket", "")
	v.SetDefault("storage.s3.use_ssl", true)
	v.SetDefault("storage.s3.region", "us-east-1")

	// -- Database --
	v.SetDefault("database.url", "")
	v.SetDefault("database.sqlite_path", "")

	// -- Pipeline --
	v.SetDefault("pipeline.progress_buffer", 16)
	v.SetDefault("pipeline.tick_interval", "400ms")
	v.SetDefault("pipeline.stage_timeout", "5m")

	// -- Server --
	v.SetDefault("server.addr", "127.0.0.1:7860")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.recent_runs", 32)
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// Bind environment variables for sensitive data
	v.BindEnv("llm.api_key", "AGENTFORGE_LLM_API_KEY", "GOOGLE_API_KEY")
	v.BindEnv("storage.s3.access_key", "AGENTFORGE_S3_ACCESS_KEY")
	v.BindEnv("storage.s3.secret_key", "AGENTFORGE_S3_SECRET_KEY")
	v.BindEnv("database.url", "AGENTFORGE_DATABASE_URL", "DATABASE_URL")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Manually load the key if Unmarshal didn't pick it up
	if cfg.LLMCfg.Provider == ProviderGemini && cfg.LLMCfg.APIKey == "" {
		cfg.LLMCfg.APIKey = os.Getenv("GOOGLE_API_KEY")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
// The Gemini API key is checked when the client is built, so commands that
// never call the model still run without one.
func (c *Config) Validate() error {
	if err := c.LLMCfg.Validate(); err != nil {
		return fmt.Errorf("llm configuration invalid: %w", err)
	}
	if c.OutputCfg.BaseDir == "" {
		return fmt.Errorf("output.base_dir is required")
	}
	if c.OutputCfg.CodeDir == "" || c.OutputCfg.TestsDir == "" || c.OutputCfg.UsageReport == "" {
		return fmt.Errorf("output.code_dir, output.tests_dir, and output.usage_report are required")
	}
	if err := c.StorageCfg.Validate(); err != nil {
		return fmt.Errorf("storage configuration invalid: %w", err)
	}
	if c.PipelineCfg.ProgressBuffer <= 0 {
		return fmt.Errorf("pipeline.progress_buffer must be a positive integer")
	}
	if c.PipelineCfg.TickInterval <= 0 {
		return fmt.Errorf("pipeline.tick_interval must be a positive duration")
	}
	return nil
}

// Validate checks the LLM configuration.
func (l *LLMConfig) Validate() error {
	switch l.Provider {
	case ProviderGemini, ProviderFake:
	default:
		return fmt.Errorf("unsupported provider %q", l.Provider)
	}
	if l.FastModel == "" || l.PowerfulModel == "" {
		return fmt.Errorf("fast_model and powerful_model are required")
	}
	if l.Temperature < 0 || l.Temperature > 2 {
		return fmt.Errorf("temperature must be between 0.0 and 2.0")
	}
	if l.MaxTokens <= 0 {
		return fmt.Errorf("max_tokens must be a positive integer")
	}
	if l.RequestsPerSecond < 0 {
		return fmt.Errorf("requests_per_second must not be negative")
	}
	return nil
}

// Validate checks the storage configuration.
func (s *StorageConfig) Validate() error {
	switch s.Backend {
	case StorageFS, StorageMemory:
		return nil
	case StorageS3:
		if s.S3.Endpoint == "" || s.S3.Bucket == "" {
			return fmt.Errorf("s3.endpoint and s3.bucket are required")
		}
		return nil
	default:
		return fmt.Errorf("unsupported backend %q", s.Backend)
	}
}
