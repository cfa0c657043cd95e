package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

const (
	defaultTimezone = "UTC"
	configPathEnv   = "CONFERENCE_SCANNER_CONFIG"
	dotEnvFile      = ".env"
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging       LoggingConfig      `yaml:"logging"`
	Scheduler     SchedulerConfig    `yaml:"scheduler"`
	Workbook      WorkbookConfig     `yaml:"workbook"`
	ChatGPT       ChatGPTConfig      `yaml:"chatgpt"`
	Dedup         DedupConfig        `yaml:"dedup"`
	Filter        FilterConfig       `yaml:"filter"`
	Scraper       ScraperConfig      `yaml:"scraper"`
	Notifications NotificationConfig `yaml:"notifications"`
	Sites         []SiteConfig       `yaml:"sites"`
}

// LoggingConfig selects the log verbosity.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// SchedulerConfig defines when recurring runs fire.
type SchedulerConfig struct {
	CronExpression string         `yaml:"cronExpression"`
	Timezone       string         `yaml:"timezone"`
	location       *time.Location `yaml:"-"`
}

// Location resolves the scheduler timezone string to a time.Location.
func (s SchedulerConfig) Location() *time.Location {
	if s.location != nil {
		return s.location
	}
	loc, _ := time.LoadLocation(defaultTimezone)
	return loc
}

// WorkbookConfig points at the persisted spreadsheet.
type WorkbookConfig struct {
	Path string `yaml:"path"`
}

// ChatGPTConfig defines how to contact the ChatGPT API.
type ChatGPTConfig struct {
	Endpoint string        `yaml:"endpoint"`
	Model    string        `yaml:"model"`
	APIKey   string        `yaml:"apiKey"`
	Timeout  time.Duration `yaml:"timeout"`
	// MinInterval spaces consecutive completions.
	MinInterval time.Duration `yaml:"minInterval"`
}

// DedupConfig tunes duplicate detection and past-list retention.
type DedupConfig struct {
	// CycleYear is assumed for dates quoted without a year; 0 means the
	// current year at run time.
	CycleYear       int `yaml:"cycleYear"`
	RetentionWindow int `yaml:"retentionWindow"`
}

// Year resolves CycleYear against now.
func (d DedupConfig) Year(now time.Time) int {
	if d.CycleYear > 0 {
		return d.CycleYear
	}
	return now.Year()
}

// FilterConfig holds default topic filters; command-line flags override them.
type FilterConfig struct {
	Include string `yaml:"include"`
	Exclude string `yaml:"exclude"`
}

// ScraperConfig tunes HTTP access to conference sites.
type ScraperConfig struct {
	UserAgent    string        `yaml:"userAgent"`
	RequestDelay time.Duration `yaml:"requestDelay"`
	Timeout      time.Duration `yaml:"timeout"`
	Retries      int           `yaml:"retries"`
	// Concurrency bounds how many sites are scanned at once.
	Concurrency int `yaml:"concurrency"`
}

// NotificationConfig encapsulates outbound channels (Telegram, etc.).
type NotificationConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
	BaseURL  string `yaml:"baseUrl"`
}

// Enabled reports whether both credentials are present.
func (t TelegramConfig) Enabled() bool {
	return t.BotToken != "" && t.ChatID != ""
}

// SiteConfig describes a single site with its scanner strategy.
type SiteConfig struct {
	Name    string            `yaml:"name"`
	Scanner string            `yaml:"scanner"`
	URL     string            `yaml:"url"`
	Options map[string]string `yaml:"options"`
}

// envOverrides lists the environment variables that win over the file.
type envOverrides struct {
	OpenAIAPIKey     string `envconfig:"OPENAI_API_KEY"`
	OpenAIModel      string `envconfig:"OPENAI_MODEL"`
	WorkbookPath     string `envconfig:"WORKBOOK_PATH"`
	LogLevel         string `envconfig:"LOG_LEVEL"`
	CycleYear        int    `envconfig:"CYCLE_YEAR"`
	TelegramBotToken string `envconfig:"TELEGRAM_BOT_TOKEN"`
	TelegramChatID   string `envconfig:"TELEGRAM_CHAT_ID"`
}

// Load reads .env, the YAML configuration (if present) and applies
// environment overrides. An empty path falls back to CONFERENCE_SCANNER_CONFIG;
// without either, defaults are used.
func Load(path string) (Config, error) {
	if err := godotenv.Load(dotEnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("config: cannot read %s: %v", dotEnvFile, err)
	}

	cfg := defaultConfig()

	if path == "" {
		path = os.Getenv(configPathEnv)
	}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return Config{}, err
	}
	cfg.bindTimezone()

	if len(cfg.Sites) == 0 {
		cfg.Sites = defaultConfig().Sites
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() error {
	var env envOverrides
	if err := envconfig.Process("", &env); err != nil {
		return fmt.Errorf("read environment: %w", err)
	}

	if env.OpenAIAPIKey != "" {
		c.ChatGPT.APIKey = env.OpenAIAPIKey
	}
	if env.OpenAIModel != "" {
		c.ChatGPT.Model = env.OpenAIModel
	}
	if env.WorkbookPath != "" {
		c.Workbook.Path = env.WorkbookPath
	}
	if env.LogLevel != "" {
		c.Logging.Level = env.LogLevel
	}
	if env.CycleYear != 0 {
		c.Dedup.CycleYear = env.CycleYear
	}
	if env.TelegramBotToken != "" {
		c.Notifications.Telegram.BotToken = env.TelegramBotToken
	}
	if env.TelegramChatID != "" {
		c.Notifications.Telegram.ChatID = env.TelegramChatID
	}
	return nil
}

func (c *Config) bindTimezone() {
	tz := c.Scheduler.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Printf("config: unknown timezone %s, reverting to %s", tz, defaultTimezone)
		loc, _ = time.LoadLocation(defaultTimezone)
	}
	c.Scheduler.location = loc
}

// Validate rejects settings no run could work with.
func (c Config) Validate() error {
	if c.Workbook.Path == "" {
		return fmt.Errorf("workbook path is empty")
	}
	if c.Dedup.CycleYear < 0 {
		return fmt.Errorf("dedup cycle year %d is negative", c.Dedup.CycleYear)
	}
	if c.Dedup.RetentionWindow < 0 {
		return fmt.Errorf("dedup retention window %d is negative", c.Dedup.RetentionWindow)
	}
	for i, site := range c.Sites {
		if site.Name == "" || site.Scanner == "" {
			return fmt.Errorf("site #%d needs a name and a scanner", i+1)
		}
	}
	return nil
}

func defaultConfig() Config {
	tz, _ := time.LoadLocation(defaultTimezone)
	return Config{
		Logging:   LoggingConfig{Level: "info"},
		Scheduler: SchedulerConfig{CronExpression: "0 6 * * *", Timezone: defaultTimezone, location: tz},
		Workbook:  WorkbookConfig{Path: "conferences.xlsx"},
		ChatGPT: ChatGPTConfig{
			Endpoint:    "https://api.openai.com/v1/chat/completions",
			Model:       "gpt-4o-mini",
			Timeout:     60 * time.Second,
			MinInterval: 500 * time.Millisecond,
		},
		Dedup: DedupConfig{CycleYear: 0, RetentionWindow: 10},
		Scraper: ScraperConfig{
			RequestDelay: 500 * time.Millisecond,
			Timeout:      60 * time.Second,
			Retries:      3,
			Concurrency:  2,
		},
		Notifications: NotificationConfig{
			Telegram: TelegramConfig{BaseURL: "https://api.telegram.org"},
		},
		Sites: []SiteConfig{
			{Name: "inomics", Scanner: "inomics", URL: "https://inomics.com/top/conferences"},
			{Name: "misfit", Scanner: "misfit", URL: "https://theeconomicmisfit.com/category/conferences/"},
		},
	}
}
