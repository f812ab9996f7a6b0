// Package settings loads flowlab configuration from defaults, an optional
// YAML file, a .env file and FLOWLAB_* environment variables, in increasing
// order of precedence.
package settings

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	fgerrors "github.com/randalmurphal/flowlab/pkg/flowgraph/errors"
	"github.com/randalmurphal/flowlab/pkg/flowgraph/llm"
	"github.com/randalmurphal/flowlab/pkg/flowgraph/observability"
)

// EnvPrefix prefixes every environment override, e.g. FLOWLAB_LLM_MODEL.
const EnvPrefix = "FLOWLAB"

// Settings is the resolved configuration.
type Settings struct {
	LLM        LLM        `mapstructure:"llm"`
	Retry      Retry      `mapstructure:"retry"`
	Refine     Refine     `mapstructure:"refine"`
	Checkpoint Checkpoint `mapstructure:"checkpoint"`
	Log        Log        `mapstructure:"log"`
}

// LLM configures the model endpoint.
type LLM struct {
	BaseURL     string        `mapstructure:"base_url"`
	APIKey      string        `mapstructure:"api_key"`
	Model       string        `mapstructure:"model"`
	Temperature float64       `mapstructure:"temperature"`
	MaxTokens   int           `mapstructure:"max_output_tokens"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// Retry configures retries of transient model failures.
type Retry struct {
	MaxAttempts    int           `mapstructure:"max_attempts"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff"`
	MaxBackoff     time.Duration `mapstructure:"max_backoff"`
}

// Refine configures the refine loop.
type Refine struct {
	MaxIteration int `mapstructure:"max_iteration"`
}

// Checkpoint configures the chat thread store. An empty path keeps threads
// in memory.
type Checkpoint struct {
	Path string `mapstructure:"path"`
}

// Log configures the process logger.
type Log struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Options control where Load looks.
type Options struct {
	// ConfigFile is an explicit YAML file. It must exist when set.
	ConfigFile string
	// EnvFile is a dotenv file; a missing file is ignored.
	EnvFile string
}

func defaults(v *viper.Viper) {
	v.SetDefault("llm.base_url", llm.DefaultBaseURL)
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.model", llm.DefaultModel)
	v.SetDefault("llm.temperature", 0.7)
	v.SetDefault("llm.max_output_tokens", 1000)
	v.SetDefault("llm.timeout", 60*time.Second)
	v.SetDefault("retry.max_attempts", fgerrors.DefaultRetry.MaxAttempts)
	v.SetDefault("retry.initial_backoff", fgerrors.DefaultRetry.InitialBackoff)
	v.SetDefault("retry.max_backoff", fgerrors.DefaultRetry.MaxBackoff)
	v.SetDefault("refine.max_iteration", 5)
	v.SetDefault("checkpoint.path", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Load resolves settings. Values already in the process environment win
// over the dotenv file.
func Load(opts Options) (Settings, error) {
	if opts.EnvFile != "" {
		if err := godotenv.Load(opts.EnvFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Settings{}, fmt.Errorf("load %s: %w", opts.EnvFile, err)
		}
	}

	v := viper.New()
	defaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return Settings{}, fmt.Errorf("read config: %w", err)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return Settings{}, fmt.Errorf("decode config: %w", err)
	}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// Validate checks ranges. The API key is checked only when a hosted client
// is built.
func (s Settings) Validate() error {
	var errs []error
	if s.Refine.MaxIteration < 0 {
		errs = append(errs, fmt.Errorf("refine.max_iteration must be >= 0, got %d", s.Refine.MaxIteration))
	}
	if s.LLM.MaxTokens < 0 {
		errs = append(errs, fmt.Errorf("llm.max_output_tokens must be >= 0, got %d", s.LLM.MaxTokens))
	}
	if s.LLM.Temperature < 0 || s.LLM.Temperature > 2 {
		errs = append(errs, fmt.Errorf("llm.temperature must be in [0, 2], got %g", s.LLM.Temperature))
	}
	if s.Retry.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("retry.max_attempts must be >= 1, got %d", s.Retry.MaxAttempts))
	}
	if _, err := observability.ParseLevel(s.Log.Level); err != nil {
		errs = append(errs, err)
	}
	switch s.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", s.Log.Format))
	}
	return errors.Join(errs...)
}

// RetryConfig maps the retry settings onto the engine's retry policy.
func (s Settings) RetryConfig() fgerrors.RetryConfig {
	cfg := fgerrors.DefaultRetry
	cfg.MaxAttempts = s.Retry.MaxAttempts
	cfg.InitialBackoff = s.Retry.InitialBackoff
	cfg.MaxBackoff = s.Retry.MaxBackoff
	return cfg
}

// OpenAIConfig maps the model settings onto the hosted client config.
func (s Settings) OpenAIConfig() llm.OpenAIConfig {
	return llm.OpenAIConfig{
		APIKey:  s.LLM.APIKey,
		BaseURL: s.LLM.BaseURL,
		Model:   s.LLM.Model,
		Timeout: s.LLM.Timeout,
	}
}
