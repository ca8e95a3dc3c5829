package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds the application configuration loaded from files and environment variables.
type Config struct {
	AppName        string `mapstructure:"app_name"`
	Env            string `mapstructure:"app_env"`
	LogLevel       string `mapstructure:"log_level"`
	ProvidersFile  string `mapstructure:"providers_file"`
	FeedProvider   string `mapstructure:"feed_provider"`
	CategoriesFile string `mapstructure:"categories_file"`
	PublishersFile string `mapstructure:"publishers_file"`

	ArticlesPerCategory int           `mapstructure:"articles_per_category"`
	OverfetchFactor     int           `mapstructure:"overfetch_factor"`
	MinTitleChars       int           `mapstructure:"min_title_chars"`
	MinDescriptionChars int           `mapstructure:"min_description_chars"`
	CategoryDelayMs     int64         `mapstructure:"category_delay_ms"`
	CategoryDelay       time.Duration `mapstructure:"-"`
	FeedTimeoutSeconds  int64         `mapstructure:"feed_timeout_seconds"`
	FeedTimeout         time.Duration `mapstructure:"-"`
	PageTimeoutSeconds  int64         `mapstructure:"page_timeout_seconds"`
	PageTimeout         time.Duration `mapstructure:"-"`
	PageUserAgent       string        `mapstructure:"page_user_agent"`

	Extraction ExtractionConfig `mapstructure:",squash"`
	Validation ValidationConfig `mapstructure:",squash"`
	Summary    SummaryConfig    `mapstructure:",squash"`
	LLM        LLMConfig        `mapstructure:",squash"`

	StorageType   string        `mapstructure:"storage_type"`
	BBoltPath     string        `mapstructure:"bbolt_path"`
	SQLitePath    string        `mapstructure:"sqlite_path"`
	PostgresDSN   string        `mapstructure:"postgres_dsn"`
	RetentionDays int           `mapstructure:"retention_days"`
	Retention     time.Duration `mapstructure:"-"`

	ScheduleCron string `mapstructure:"schedule_cron"`
	MetricsAddr  string `mapstructure:"metrics_addr"`
}

// ExtractionConfig carries the word thresholds of every extraction stage.
type ExtractionConfig struct {
	ReadabilityMinWords int `mapstructure:"extract_readability_min_words"`
	SelectorMinWords    int `mapstructure:"extract_selector_min_words"`
	ParagraphsMinWords  int `mapstructure:"extract_paragraphs_min_words"`
	ParagraphMinChars   int `mapstructure:"extract_paragraph_min_chars"`
	StrippedMinWords    int `mapstructure:"extract_stripped_min_words"`
	DescriptionMinWords int `mapstructure:"extract_description_min_words"`

	// StrippedMinWordsDegraded replaces StrippedMinWords when no LLM is configured.
	StrippedMinWordsDegraded int `mapstructure:"extract_stripped_min_words_degraded"`
}

// ValidationConfig carries the content validator heuristics.
type ValidationConfig struct {
	MinWords           int `mapstructure:"validate_min_words"`
	ArtifactMaxRepeats int `mapstructure:"validate_artifact_max_repeats"`
	MinSentenceMarks   int `mapstructure:"validate_min_sentence_marks"`
	MinLongWords       int `mapstructure:"validate_min_long_words"`
}

// SummaryConfig carries the summary bounds and fallback tuning.
type SummaryConfig struct {
	MinWords                 int      `mapstructure:"summary_min_words"`
	MaxWords                 int      `mapstructure:"summary_max_words"`
	MaxInputChars            int      `mapstructure:"summary_max_input_chars"`
	FallbackSentences        int      `mapstructure:"summary_fallback_sentences"`
	FallbackSentenceMinWords int      `mapstructure:"summary_fallback_sentence_min_words"`
	Blacklist                []string `mapstructure:"summary_blacklist"`
}

// LLMConfig selects and tunes the summarization model backend.
type LLMConfig struct {
	Provider          string        `mapstructure:"llm_provider"`
	GeminiAPIKey      string        `mapstructure:"gemini_api_key"`
	GeminiModel       string        `mapstructure:"gemini_model"`
	OpenAIAPIKey      string        `mapstructure:"openai_api_key"`
	OpenAIModel       string        `mapstructure:"openai_model"`
	OpenAIBaseURL     string        `mapstructure:"openai_base_url"`
	RequestsPerMinute int           `mapstructure:"llm_requests_per_minute"`
	MaxAttempts       int           `mapstructure:"llm_max_attempts"`
	RetryDelayMs      int64         `mapstructure:"llm_retry_delay_ms"`
	RetryDelay        time.Duration `mapstructure:"-"`
	TimeoutSeconds    int64         `mapstructure:"llm_timeout_seconds"`
	Timeout           time.Duration `mapstructure:"-"`
}

// Load reads configuration from environment variables and config files.
func Load() (*Config, error) {
	_ = godotenv.Load("configs/.env")

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	// env overrides arrive as one comma separated string
	if raw := strings.TrimSpace(v.GetString("summary_blacklist")); raw != "" {
		cfg.Summary.Blacklist = splitList(raw)
	}

	if err := cfg.finalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app_name", "samvad-news-digest")
	v.SetDefault("app_env", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("providers_file", "./configs/providers.yaml")
	v.SetDefault("feed_provider", "gnews")
	v.SetDefault("categories_file", "./configs/categories.yaml")
	v.SetDefault("publishers_file", "")

	v.SetDefault("articles_per_category", 2)
	v.SetDefault("overfetch_factor", 3)
	v.SetDefault("min_title_chars", 10)
	v.SetDefault("min_description_chars", 20)
	v.SetDefault("category_delay_ms", 3000)
	v.SetDefault("feed_timeout_seconds", 15)
	v.SetDefault("page_timeout_seconds", 10)
	v.SetDefault("page_user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")

	v.SetDefault("extract_readability_min_words", 50)
	v.SetDefault("extract_selector_min_words", 50)
	v.SetDefault("extract_paragraphs_min_words", 40)
	v.SetDefault("extract_paragraph_min_chars", 40)
	v.SetDefault("extract_stripped_min_words", 80)
	v.SetDefault("extract_stripped_min_words_degraded", 50)
	v.SetDefault("extract_description_min_words", 30)

	v.SetDefault("validate_min_words", 25)
	v.SetDefault("validate_artifact_max_repeats", 2)
	v.SetDefault("validate_min_sentence_marks", 3)
	v.SetDefault("validate_min_long_words", 10)

	v.SetDefault("summary_min_words", 100)
	v.SetDefault("summary_max_words", 350)
	v.SetDefault("summary_max_input_chars", 12000)
	v.SetDefault("summary_fallback_sentences", 6)
	v.SetDefault("summary_fallback_sentence_min_words", 6)
	v.SetDefault("summary_blacklist", []string{
		"contenido insuficiente",
		"resumen no disponible",
		"content insufficient",
		"summary unavailable",
	})

	v.SetDefault("llm_provider", "gemini")
	v.SetDefault("gemini_api_key", "")
	v.SetDefault("gemini_model", "gemini-2.5-flash")
	v.SetDefault("openai_api_key", "")
	v.SetDefault("openai_model", "gpt-4o-mini")
	v.SetDefault("openai_base_url", "")
	v.SetDefault("llm_requests_per_minute", 10)
	v.SetDefault("llm_max_attempts", 2)
	v.SetDefault("llm_retry_delay_ms", 1500)
	v.SetDefault("llm_timeout_seconds", 60)

	v.SetDefault("storage_type", "bbolt")
	v.SetDefault("bbolt_path", "./data/noticias.db")
	v.SetDefault("sqlite_path", "./data/noticias.sqlite")
	v.SetDefault("postgres_dsn", "")
	v.SetDefault("retention_days", 180)

	v.SetDefault("schedule_cron", "0 */6 * * *")
	v.SetDefault("metrics_addr", "")
}

func (cfg *Config) finalize() error {
	if cfg.ArticlesPerCategory <= 0 {
		return fmt.Errorf("invalid articles_per_category (must be positive)")
	}
	if cfg.OverfetchFactor < 1 {
		return fmt.Errorf("invalid overfetch_factor (must be at least 1)")
	}
	if cfg.CategoryDelayMs < 0 {
		return fmt.Errorf("invalid category_delay_ms (must not be negative)")
	}
	cfg.CategoryDelay = time.Duration(cfg.CategoryDelayMs) * time.Millisecond

	if cfg.FeedTimeoutSeconds <= 0 {
		return fmt.Errorf("invalid feed_timeout_seconds (must be positive seconds)")
	}
	cfg.FeedTimeout = time.Duration(cfg.FeedTimeoutSeconds) * time.Second
	if cfg.PageTimeoutSeconds <= 0 {
		return fmt.Errorf("invalid page_timeout_seconds (must be positive seconds)")
	}
	cfg.PageTimeout = time.Duration(cfg.PageTimeoutSeconds) * time.Second

	if cfg.Summary.MinWords <= 0 || cfg.Summary.MaxWords < cfg.Summary.MinWords {
		return fmt.Errorf("invalid summary_min_words/summary_max_words (need 0 < min <= max)")
	}
	if cfg.Summary.MaxInputChars <= 0 {
		return fmt.Errorf("invalid summary_max_input_chars (must be positive)")
	}

	if cfg.LLM.MaxAttempts <= 0 {
		cfg.LLM.MaxAttempts = 1
	}
	if cfg.LLM.RetryDelayMs < 0 {
		return fmt.Errorf("invalid llm_retry_delay_ms (must not be negative)")
	}
	cfg.LLM.RetryDelay = time.Duration(cfg.LLM.RetryDelayMs) * time.Millisecond
	if cfg.LLM.TimeoutSeconds <= 0 {
		return fmt.Errorf("invalid llm_timeout_seconds (must be positive seconds)")
	}
	cfg.LLM.Timeout = time.Duration(cfg.LLM.TimeoutSeconds) * time.Second
	cfg.LLM.Provider = strings.ToLower(strings.TrimSpace(cfg.LLM.Provider))

	if cfg.RetentionDays <= 0 {
		return fmt.Errorf("invalid retention_days (must be positive days)")
	}
	cfg.Retention = time.Duration(cfg.RetentionDays) * 24 * time.Hour

	return nil
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
