package docbot

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Netflix/go-env"
	"github.com/adrg/xdg"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/brunobiangulo/docbot/describe"
	"github.com/brunobiangulo/docbot/fetch"
	"github.com/brunobiangulo/docbot/imaging"
	"github.com/brunobiangulo/docbot/search"
	"github.com/brunobiangulo/docbot/server"
	"github.com/brunobiangulo/docbot/telegram"
)

// AppName names the data directory and default database file.
const AppName = "docbot"

// Config holds all configuration for the assistant.
type Config struct {
	// DBPath is the full path to the SQLite database file.
	// If empty, defaults to $XDG_DATA_HOME/docbot/docbot.db.
	DBPath string `json:"db_path" yaml:"db_path"`

	LogLevel string `json:"log_level" yaml:"log_level" validate:"omitempty,oneof=debug info warn error"`

	LLM      LLMConfig       `json:"llm" yaml:"llm"`
	Image    imaging.Config  `json:"image" yaml:"image"`
	Describe describe.Config `json:"describe" yaml:"describe"`
	Fetch    fetch.Config    `json:"fetch" yaml:"fetch"`
	Search   search.Config   `json:"search" yaml:"search"`
	Telegram telegram.Config `json:"telegram" yaml:"telegram"`
	HTTP     server.Config   `json:"http" yaml:"http"`
}

// LLMConfig configures the model endpoint.
type LLMConfig struct {
	Provider   string        `json:"provider" yaml:"provider" validate:"required,oneof=gemini ollama openrouter openai custom"` // gemini, ollama, openrouter, openai, custom
	Model      string        `json:"model" yaml:"model"`
	BaseURL    string        `json:"base_url" yaml:"base_url" validate:"omitempty,url"`
	APIKey     string        `json:"api_key" yaml:"api_key"`
	Timeout    time.Duration `json:"timeout" yaml:"timeout" validate:"gte=0"`
	MaxRetries int           `json:"max_retries" yaml:"max_retries"`
}

// DefaultConfig returns a Config targeting Gemini with the standard image
// and search limits.
func DefaultConfig() Config {
	return Config{
		LogLevel: "info",
		LLM: LLMConfig{
			Provider: "gemini",
			Model:    "gemini-1.5-flash",
			Timeout:  60 * time.Second,
		},
		Image: imaging.Config{
			MaxSide: imaging.DefaultMaxSide,
			Quality: imaging.DefaultQuality,
		},
		Fetch: fetch.Config{
			Timeout:  fetch.DefaultTimeout,
			MaxBytes: fetch.DefaultMaxBytes,
		},
		Search: search.Config{
			BaseURL: search.DefaultBaseURL,
			Limit:   search.DefaultLimit,
			Timeout: search.DefaultTimeout,
		},
		Telegram: telegram.Config{
			PollTimeout: telegram.DefaultPollTimeout,
		},
	}
}

// envOverrides lists the environment variables read on top of the file.
type envOverrides struct {
	TelegramToken  string `env:"TELEGRAM_BOT_TOKEN"`
	GeminiAPIKey   string `env:"GEMINI_API_KEY"`
	SearchAPIKey   string `env:"GOOGLE_SEARCH_API_KEY"`
	SearchEngineID string `env:"GOOGLE_SEARCH_ENGINE_ID"`
	DBPath         string `env:"DOCBOT_DB_PATH"`
	LLMProvider    string `env:"DOCBOT_LLM_PROVIDER"`
	LLMModel       string `env:"DOCBOT_LLM_MODEL"`
	LLMBaseURL     string `env:"DOCBOT_LLM_BASE_URL"`
	LLMAPIKey      string `env:"DOCBOT_LLM_API_KEY"`
	LogLevel       string `env:"DOCBOT_LOG_LEVEL"`
	HTTPAddr       string `env:"DOCBOT_HTTP_ADDR"`
	HTTPAPIKey     string `env:"DOCBOT_API_KEY"`
}

// LoadConfig builds a Config from defaults, the optional file at path
// (YAML or JSON) and the environment, then validates it.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("reading config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("%w: parsing %s: %v", ErrInvalidConfig, path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	var o envOverrides
	if _, err := env.UnmarshalFromEnviron(&o); err != nil {
		return fmt.Errorf("%w: environment: %v", ErrInvalidConfig, err)
	}

	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&c.Telegram.Token, o.TelegramToken)
	set(&c.Search.APIKey, o.SearchAPIKey)
	set(&c.Search.EngineID, o.SearchEngineID)
	set(&c.DBPath, o.DBPath)
	set(&c.LLM.Provider, o.LLMProvider)
	set(&c.LLM.Model, o.LLMModel)
	set(&c.LLM.BaseURL, o.LLMBaseURL)
	set(&c.LogLevel, strings.ToLower(o.LogLevel))
	set(&c.HTTP.Addr, o.HTTPAddr)
	set(&c.HTTP.APIKey, o.HTTPAPIKey)

	if c.LLM.Provider == "gemini" {
		set(&c.LLM.APIKey, o.GeminiAPIKey)
	}
	set(&c.LLM.APIKey, o.LLMAPIKey)
	return nil
}

var validate = validator.New()

// Validate checks field constraints. Errors wrap ErrInvalidConfig.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, len(verrs))
			for i, fe := range verrs {
				fields[i] = fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag())
			}
			return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(fields, ", "))
		}
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// resolveDBPath returns DBPath or the default under the XDG data home.
func (c *Config) resolveDBPath() string {
	if c.DBPath != "" {
		return c.DBPath
	}
	return filepath.Join(xdg.DataHome, AppName, AppName+".db")
}
