package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the research agent system
type Config struct {
	General   GeneralConfig   `mapstructure:"general"`
	Server    ServerConfig    `mapstructure:"server"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Search    SearchConfig    `mapstructure:"search"`
	Research  ResearchConfig  `mapstructure:"research"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	Debug          bool          `mapstructure:"debug"`
	LogLevel       string        `mapstructure:"log_level"`
	DefaultTimeout time.Duration `mapstructure:"default_timeout"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Address      string   `mapstructure:"address"`
	StaticDir    string   `mapstructure:"static_dir"`
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// LLMConfig contains LLM provider configurations
type LLMConfig struct {
	DefaultProvider string                 `mapstructure:"default_provider"`
	Providers       map[string]LLMProvider `mapstructure:"providers"`
	Routing         LLMRoutingConfig       `mapstructure:"routing"`
}

// LLMProvider represents a single LLM provider configuration
type LLMProvider struct {
	Type       string              `mapstructure:"type"` // openai, gemini
	APIKey     string              `mapstructure:"api_key"`
	BaseURL    string              `mapstructure:"base_url"`
	Models     map[string]LLMModel `mapstructure:"models"`
	MaxRetries int                 `mapstructure:"max_retries"`
	Timeout    time.Duration       `mapstructure:"timeout"`
}

// LLMModel represents a specific model configuration
type LLMModel struct {
	Name                     string  `mapstructure:"name"`
	APIName                  string  `mapstructure:"api_name"`
	MaxTokens                int     `mapstructure:"max_tokens"`
	Temperature              float64 `mapstructure:"temperature"`
	Description              string  `mapstructure:"description"`
	SupportsStructuredOutput bool    `mapstructure:"supports_structured_output"`
}

// LLMRoutingConfig defines which model to use for each research task
type LLMRoutingConfig struct {
	QueryGenerator string `mapstructure:"query_generator"` // initial search query generation
	Reflection     string `mapstructure:"reflection"`      // gap analysis between loops
	Answer         string `mapstructure:"answer"`          // final answer synthesis
}

// SearchConfig contains web-search provider settings
type SearchConfig struct {
	Provider     string        `mapstructure:"provider"` // google, serper, brave, tavily
	ResultsLimit int           `mapstructure:"results_limit"`
	Language     string        `mapstructure:"language"`
	SerperAPIKey string        `mapstructure:"serper_api_key"`
	BraveAPIKey  string        `mapstructure:"brave_api_key"`
	TavilyAPIKey string        `mapstructure:"tavily_api_key"`
	GeminiAPIKey string        `mapstructure:"gemini_api_key"`
	GeminiModel  string        `mapstructure:"gemini_model"`
	MaxRetries   int           `mapstructure:"max_retries"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

// ResearchConfig controls the research loop itself
type ResearchConfig struct {
	InitialSearchQueryCount int     `mapstructure:"initial_search_query_count"`
	MaxResearchLoops        int     `mapstructure:"max_research_loops"`
	QueryTemperature        float64 `mapstructure:"query_temperature"`
	QueryMaxTokens          int     `mapstructure:"query_max_tokens"`
	ReflectionTemperature   float64 `mapstructure:"reflection_temperature"`
	ReflectionMaxTokens     int     `mapstructure:"reflection_max_tokens"`
	AnswerTemperature       float64 `mapstructure:"answer_temperature"`
	AnswerMaxTokens         int     `mapstructure:"answer_max_tokens"`
}

// TelemetryConfig contains telemetry and monitoring settings
type TelemetryConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
}

func (s SearchConfig) Validate() error {
	switch s.Provider {
	case "google", "serper", "brave", "tavily":
	default:
		return fmt.Errorf("search.provider %q is not supported", s.Provider)
	}
	if s.ResultsLimit <= 0 {
		return fmt.Errorf("search.results_limit must be > 0")
	}
	return nil
}

func (r ResearchConfig) Validate() error {
	if r.InitialSearchQueryCount <= 0 {
		return fmt.Errorf("research.initial_search_query_count must be > 0")
	}
	if r.MaxResearchLoops <= 0 {
		return fmt.Errorf("research.max_research_loops must be > 0")
	}
	return nil
}

func (l LLMConfig) Validate() error {
	if len(l.Providers) == 0 {
		return fmt.Errorf("llm.providers must configure at least one provider")
	}
	if l.DefaultProvider != "" {
		if _, ok := l.Providers[l.DefaultProvider]; !ok {
			return fmt.Errorf("llm.default_provider %q is not configured", l.DefaultProvider)
		}
	}
	for name, p := range l.Providers {
		switch p.Type {
		case "openai", "gemini":
		default:
			return fmt.Errorf("llm.providers.%s.type %q is not supported", name, p.Type)
		}
	}
	return nil
}

// LoadConfig loads config from file, with environment overrides (PROSEARCH_*)
// and defaults for every documented knob. A missing config file is fine; a
// malformed one is fatal.
func LoadConfig(path string) *Config {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.SetDefault("general.log_level", "info")
	viper.SetDefault("general.default_timeout", 30*time.Second)
	viper.SetDefault("server.address", ":8123")
	viper.SetDefault("server.static_dir", "webui")
	viper.SetDefault("server.allow_origins", []string{"*"})
	viper.SetDefault("llm.default_provider", "gemini")
	viper.SetDefault("llm.routing.query_generator", "gemini-2.0-flash")
	viper.SetDefault("llm.routing.reflection", "gemini-2.5-flash")
	viper.SetDefault("llm.routing.answer", "gemini-2.5-pro")
	viper.SetDefault("search.provider", "google")
	viper.SetDefault("search.results_limit", 10)
	viper.SetDefault("search.language", "en-US")
	viper.SetDefault("search.gemini_model", "gemini-2.0-flash")
	viper.SetDefault("search.max_retries", 3)
	viper.SetDefault("search.timeout", 30*time.Second)
	viper.SetDefault("research.initial_search_query_count", 3)
	viper.SetDefault("research.max_research_loops", 2)
	viper.SetDefault("research.query_temperature", 0.7)
	viper.SetDefault("research.query_max_tokens", 2000)
	viper.SetDefault("research.reflection_temperature", 0.7)
	viper.SetDefault("research.reflection_max_tokens", 4000)
	viper.SetDefault("research.answer_temperature", 0.3)
	viper.SetDefault("research.answer_max_tokens", 8000)
	viper.SetDefault("telemetry.enabled", true)

	if path == "" {
		viper.AddConfigPath("./config")
		viper.AddConfigPath(".")
		exe, _ := os.Executable()
		exeDir := filepath.Dir(exe)
		viper.AddConfigPath(exeDir)
		viper.AddConfigPath(filepath.Join(exeDir, "..", "config"))
	} else {
		viper.SetConfigFile(path)
	}

	viper.SetEnvPrefix("PROSEARCH")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			panic(fmt.Errorf("fatal error config file: %w", err))
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		panic(fmt.Errorf("fatal error config file: %w", err))
	}

	applyEnvFallbacks(&config)

	if err := config.LLM.Validate(); err != nil {
		panic(err)
	}
	if err := config.Search.Validate(); err != nil {
		panic(err)
	}
	if err := config.Research.Validate(); err != nil {
		panic(err)
	}
	return &config
}

// applyEnvFallbacks picks up the conventional vendor API key variables for
// sections that were not configured explicitly, and seeds a provider entry per
// available key so a bare environment is enough to run.
func applyEnvFallbacks(c *Config) {
	if c.Search.GeminiAPIKey == "" {
		c.Search.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")
	}
	if c.Search.SerperAPIKey == "" {
		c.Search.SerperAPIKey = os.Getenv("SERPER_API_KEY")
	}
	if c.Search.BraveAPIKey == "" {
		c.Search.BraveAPIKey = os.Getenv("BRAVE_API_KEY")
	}
	if c.Search.TavilyAPIKey == "" {
		c.Search.TavilyAPIKey = os.Getenv("TAVILY_API_KEY")
	}

	if c.LLM.Providers == nil {
		c.LLM.Providers = map[string]LLMProvider{}
	}
	if _, ok := c.LLM.Providers["gemini"]; !ok && os.Getenv("GEMINI_API_KEY") != "" {
		c.LLM.Providers["gemini"] = LLMProvider{
			Type:   "gemini",
			APIKey: os.Getenv("GEMINI_API_KEY"),
			Models: defaultGeminiModels(),
		}
	}
	if _, ok := c.LLM.Providers["openai"]; !ok && os.Getenv("OPENAI_API_KEY") != "" {
		c.LLM.Providers["openai"] = LLMProvider{
			Type:   "openai",
			APIKey: os.Getenv("OPENAI_API_KEY"),
			Models: defaultOpenAIModels(),
		}
	}
	if _, ok := c.LLM.Providers[c.LLM.DefaultProvider]; !ok {
		for name := range c.LLM.Providers {
			c.LLM.DefaultProvider = name
			break
		}
	}
}

func defaultGeminiModels() map[string]LLMModel {
	return map[string]LLMModel{
		"gemini-2.0-flash": {Name: "gemini-2.0-flash", MaxTokens: 8192, Temperature: 0.7, SupportsStructuredOutput: true, Description: "Fast Gemini model for query generation"},
		"gemini-2.5-flash": {Name: "gemini-2.5-flash", MaxTokens: 8192, Temperature: 0.7, SupportsStructuredOutput: true, Description: "Gemini model for reflection"},
		"gemini-2.5-pro":   {Name: "gemini-2.5-pro", MaxTokens: 16384, Temperature: 0.3, SupportsStructuredOutput: true, Description: "Gemini model for answer synthesis"},
	}
}

func defaultOpenAIModels() map[string]LLMModel {
	return map[string]LLMModel{
		"gpt-4o-mini": {Name: "gpt-4o-mini", MaxTokens: 16384, Temperature: 0.7, SupportsStructuredOutput: true, Description: "Fast OpenAI model"},
		"gpt-4o":      {Name: "gpt-4o", MaxTokens: 16384, Temperature: 0.7, SupportsStructuredOutput: true, Description: "OpenAI flagship model"},
	}
}
