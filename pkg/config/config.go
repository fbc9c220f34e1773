package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/user/fricadelle/pkg/observability"
)

const (
	EnvPrefix       = "FRICADELLE"
	DefaultProvider = "ollama"
	DefaultModel    = "llama3.2"
)

type ProviderConfig struct {
	APIKey  string `mapstructure:"api_key" yaml:"api_key,omitempty"`
	BaseURL string `mapstructure:"base_url" yaml:"base_url,omitempty"`
}

type AnalysisConfig struct {
	ScansDir          string  `mapstructure:"scans_dir" yaml:"scans_dir" validate:"required"`
	Output            string  `mapstructure:"output" yaml:"output" validate:"required"`
	MaxRetries        int     `mapstructure:"max_retries" yaml:"max_retries" validate:"min=1,max=10"`
	Workers           int     `mapstructure:"workers" yaml:"workers" validate:"min=1,max=64"`
	MaxInputChars     int     `mapstructure:"max_input_chars" yaml:"max_input_chars" validate:"min=1"`
	ExcerptChars      int     `mapstructure:"excerpt_chars" yaml:"excerpt_chars" validate:"min=1"`
	EnableValidation  bool    `mapstructure:"enable_validation" yaml:"enable_validation"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second" yaml:"requests_per_second" validate:"min=0"`
	Burst             int     `mapstructure:"burst" yaml:"burst" validate:"min=1"`
	TimeoutSeconds    int     `mapstructure:"timeout_seconds" yaml:"timeout_seconds" validate:"min=1"`
}

// AuditConfig is copied into the audit_metadata block of every bundle.
type AuditConfig struct {
	ClientName string   `mapstructure:"client_name" yaml:"client_name"`
	AuditType  string   `mapstructure:"audit_type" yaml:"audit_type"`
	Scope      []string `mapstructure:"scope" yaml:"scope"`
	AuditDate  string   `mapstructure:"audit_date" yaml:"audit_date,omitempty"`
}

type Config struct {
	SelectedProvider string                     `mapstructure:"selected_provider" yaml:"selected_provider" validate:"oneof=ollama openai gemini"`
	SelectedModel    string                     `mapstructure:"selected_model" yaml:"selected_model" validate:"required"`
	Providers        map[string]ProviderConfig  `mapstructure:"providers" yaml:"providers"`
	Analysis         AnalysisConfig             `mapstructure:"analysis" yaml:"analysis"`
	Audit            AuditConfig                `mapstructure:"audit" yaml:"audit"`
	Logger           observability.LoggerConfig `mapstructure:"logger" yaml:"logger"`
}

// SetDefaults registers every default on v so a run works without a file.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("selected_provider", DefaultProvider)
	v.SetDefault("selected_model", DefaultModel)

	v.SetDefault("analysis.scans_dir", "results/scans")
	v.SetDefault("analysis.output", "results/findings_enrichis.json")
	v.SetDefault("analysis.max_retries", 3)
	v.SetDefault("analysis.workers", 1)
	v.SetDefault("analysis.max_input_chars", 4000)
	v.SetDefault("analysis.excerpt_chars", 500)
	v.SetDefault("analysis.enable_validation", true)
	v.SetDefault("analysis.requests_per_second", 0)
	v.SetDefault("analysis.burst", 1)
	v.SetDefault("analysis.timeout_seconds", 300)

	v.SetDefault("audit.client_name", "To be defined")
	v.SetDefault("audit.audit_type", "Pentest")
	v.SetDefault("audit.scope", []string{"To be defined"})

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.max_size", 10)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 7)
}

// NewViper builds a viper instance with defaults and FRICADELLE_* env
// overrides, reading cfgFile (or the default path) when it exists.
func NewViper(cfgFile string) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("providers.openai.api_key", EnvPrefix+"_OPENAI_API_KEY")
	_ = v.BindEnv("providers.gemini.api_key", EnvPrefix+"_GEMINI_API_KEY")
	_ = v.BindEnv("providers.ollama.base_url", EnvPrefix+"_OLLAMA_URL")

	if err := readFile(v, cfgFile); err != nil {
		return nil, err
	}
	return v, nil
}

// NewFileViper reads defaults and cfgFile only. Environment and flags are not
// consulted, so a config built from it is safe to write back to disk.
func NewFileViper(cfgFile string) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)
	if err := readFile(v, cfgFile); err != nil {
		return nil, err
	}
	return v, nil
}

// LoadFile loads the persisted configuration without env overrides.
func LoadFile(cfgFile string) (*Config, error) {
	v, err := NewFileViper(cfgFile)
	if err != nil {
		return nil, err
	}
	return Load(v)
}

func readFile(v *viper.Viper, cfgFile string) error {
	if cfgFile == "" {
		path, err := GetConfigPath()
		if err != nil {
			return err
		}
		cfgFile = path
	}
	v.SetConfigFile(cfgFile)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to read config %s: %w", cfgFile, err)
		}
	}
	return nil
}

// Load unmarshals and validates the configuration held by v.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if cfg.Providers == nil {
		cfg.Providers = make(map[string]ProviderConfig)
	}
	cfg.SelectedProvider = strings.ToLower(cfg.SelectedProvider)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var validate = validator.New()

func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func GetConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".fricadelle", "config.yaml"), nil
}

// SaveConfig writes cfg as YAML. The file holds API keys, so it is 0600.
func SaveConfig(path string, cfg *Config) error {
	if path == "" {
		p, err := GetConfigPath()
		if err != nil {
			return err
		}
		path = p
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

func (c *Config) SetAPIKey(provider, key string) {
	p := c.Providers[provider]
	p.APIKey = key
	c.Providers[provider] = p
}

func (c *Config) GetAPIKey(provider string) string {
	return c.Providers[provider].APIKey
}

func (c *Config) SetBaseURL(provider, url string) {
	p := c.Providers[provider]
	p.BaseURL = url
	c.Providers[provider] = p
}

func (c *Config) GetBaseURL(provider string) string {
	return c.Providers[provider].BaseURL
}
