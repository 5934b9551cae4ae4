package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"golang.org/x/text/language"
)

// Store backends selectable with STORE_BACKEND
const (
	BackendAirtable   = "airtable"
	BackendClickHouse = "clickhouse"
	BackendMemory     = "memory"
)

// Config holds the application configuration
type Config struct {
	Backend string

	// Airtable configuration
	AirtableToken  string
	AirtableBaseID string
	AirtableTable  string
	AirtableAPIURL string

	// ClickHouse configuration
	ClickHouseHost     string
	ClickHousePort     int
	ClickHouseDatabase string
	ClickHouseUser     string
	ClickHousePassword string
	ClickHouseUseTLS   bool

	Port           string
	PageSize       int
	SortLocale     language.Tag
	RequestTimeout time.Duration

	LogLevel  string
	LogFormat string

	// Completion notifications, disabled unless token and chat are set
	TelegramToken    string
	TelegramChatID   int64
	TelegramThreadID int
}

// NotificationsEnabled reports whether the Telegram notifier should be built
func (c *Config) NotificationsEnabled() bool {
	return c.TelegramToken != "" && c.TelegramChatID != 0
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() (*Config, error) {
	config := &Config{}

	config.Backend = getEnv("STORE_BACKEND", BackendAirtable)
	switch config.Backend {
	case BackendAirtable:
		config.AirtableToken = os.Getenv("AIRTABLE_PAT")
		if config.AirtableToken == "" {
			return nil, fmt.Errorf("AIRTABLE_PAT is required when STORE_BACKEND is airtable")
		}
		config.AirtableBaseID = os.Getenv("AIRTABLE_BASE_ID")
		if config.AirtableBaseID == "" {
			return nil, fmt.Errorf("AIRTABLE_BASE_ID is required when STORE_BACKEND is airtable")
		}
		config.AirtableTable = os.Getenv("AIRTABLE_TABLE_NAME")
		if config.AirtableTable == "" {
			return nil, fmt.Errorf("AIRTABLE_TABLE_NAME is required when STORE_BACKEND is airtable")
		}
		config.AirtableAPIURL = getEnv("AIRTABLE_API_URL", "https://api.airtable.com/v0")

	case BackendClickHouse:
		config.ClickHouseHost = os.Getenv("CLICKHOUSE_HOST")
		if config.ClickHouseHost == "" {
			return nil, fmt.Errorf("CLICKHOUSE_HOST is required when STORE_BACKEND is clickhouse")
		}

		port, err := getInt("CLICKHOUSE_PORT", 9000) // Default ClickHouse native port
		if err != nil {
			return nil, err
		}
		config.ClickHousePort = port

		config.ClickHouseDatabase = getEnv("CLICKHOUSE_DATABASE", "default")
		config.ClickHouseUser = getEnv("CLICKHOUSE_USER", "default")
		config.ClickHousePassword = os.Getenv("CLICKHOUSE_PASSWORD")
		// Password is optional, can be empty

		config.ClickHouseUseTLS = os.Getenv("CLICKHOUSE_USE_TLS") == "true"

	case BackendMemory:
	default:
		return nil, fmt.Errorf("invalid STORE_BACKEND %q (want airtable, clickhouse or memory)", config.Backend)
	}

	config.Port = getEnv("PORT", "8080")

	pageSize, err := getInt("PAGE_SIZE", 10)
	if err != nil {
		return nil, err
	}
	if pageSize <= 0 {
		return nil, fmt.Errorf("PAGE_SIZE must be positive, got %d", pageSize)
	}
	config.PageSize = pageSize

	locale, err := language.Parse(getEnv("SORT_LOCALE", "en"))
	if err != nil {
		return nil, fmt.Errorf("invalid SORT_LOCALE: %w", err)
	}
	config.SortLocale = locale

	timeout, err := time.ParseDuration(getEnv("REQUEST_TIMEOUT", "15s"))
	if err != nil {
		return nil, fmt.Errorf("invalid REQUEST_TIMEOUT: %w", err)
	}
	config.RequestTimeout = timeout

	config.LogLevel = getEnv("LOG_LEVEL", "info")
	config.LogFormat = getEnv("LOG_FORMAT", "json")
	if config.LogFormat != "json" && config.LogFormat != "console" {
		return nil, fmt.Errorf("invalid LOG_FORMAT %q (want json or console)", config.LogFormat)
	}

	config.TelegramToken = os.Getenv("TELEGRAM_BOT_TOKEN")
	if chatStr := os.Getenv("TELEGRAM_CHAT_ID"); chatStr != "" {
		chatID, err := strconv.ParseInt(chatStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid TELEGRAM_CHAT_ID: %s", chatStr)
		}
		config.TelegramChatID = chatID
	}
	threadID, err := getInt("TELEGRAM_THREAD_ID", 0)
	if err != nil {
		return nil, err
	}
	config.TelegramThreadID = threadID

	return config, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}
