package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Storage backends accepted by STORAGE_BACKEND.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendMongo  = "mongo"
)

// Config represents the full application configuration surface.
type Config struct {
	Server     ServerConfig
	Log        LogConfig
	Storage    StorageConfig
	MongoDB    MongoDBConfig
	Attendance AttendanceConfig
	Scheduler  SchedulerConfig
	Sheets     SheetsConfig
}

// ServerConfig holds HTTP server related options.
type ServerConfig struct {
	Port string
}

// LogConfig holds logger options.
type LogConfig struct {
	Level string
}

// StorageConfig selects and locates the persistence backend.
type StorageConfig struct {
	Backend    string
	DataFile   string
	NamesFile  string
	SQLitePath string
}

// MongoDBConfig holds settings for MongoDB.
type MongoDBConfig struct {
	URI    string
	DBName string
}

// AttendanceConfig drives ledger behavior.
type AttendanceConfig struct {
	ExpectedCount     int
	Timezone          string
	StrictRosterVotes bool
}

// SchedulerConfig holds cron expressions for background jobs.
type SchedulerConfig struct {
	RolloverCron     string
	SheetPublishCron string
}

// SheetsConfig contains configuration required to publish attendance to Google Sheets.
// Publishing is disabled when either credentials or spreadsheet id is missing.
type SheetsConfig struct {
	CredentialsPath string
	SpreadsheetID   string
	SheetName       string
}

// Enabled reports whether the sheet publisher should be wired.
func (s SheetsConfig) Enabled() bool {
	return s.CredentialsPath != "" && s.SpreadsheetID != ""
}

// Load reads environment variables (optionally from the provided file) and
// materializes a Config instance.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed loading env file %s: %w", envFile, err)
			}
		}
	} else {
		// Missing .env files are fine when configuration comes from the environment.
		_ = godotenv.Load()
	}

	expected, err := getenvInt("EXPECTED_COUNT", 70)
	if err != nil {
		return nil, err
	}

	strict, err := getenvBool("STRICT_ROSTER_VOTES", false)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			Port: getenvWithDefault("APP_PORT", "8080"),
		},
		Log: LogConfig{
			Level: getenvWithDefault("LOG_LEVEL", "info"),
		},
		Storage: StorageConfig{
			Backend:    strings.ToLower(getenvWithDefault("STORAGE_BACKEND", BackendFile)),
			DataFile:   getenvWithDefault("DATA_FILE", "./data.json"),
			NamesFile:  getenvWithDefault("NAMES_FILE", "./names.json"),
			SQLitePath: getenvWithDefault("SQLITE_PATH", "./hostelbites.db"),
		},
		MongoDB: MongoDBConfig{
			URI:    os.Getenv("MONGODB_URI"),
			DBName: getenvWithDefault("MONGODB_DB_NAME", "hostelbites"),
		},
		Attendance: AttendanceConfig{
			ExpectedCount:     expected,
			Timezone:          getenvWithDefault("TIMEZONE", "Local"),
			StrictRosterVotes: strict,
		},
		Scheduler: SchedulerConfig{
			RolloverCron:     getenvWithDefault("ROLLOVER_CRON_SCHEDULE", "0 0 * * *"),
			SheetPublishCron: getenvWithDefault("SHEET_PUBLISH_CRON_SCHEDULE", "55 23 * * *"),
		},
		Sheets: SheetsConfig{
			CredentialsPath: os.Getenv("GOOGLE_SHEETS_CREDENTIALS_PATH"),
			SpreadsheetID:   os.Getenv("GOOGLE_SHEET_DATABASE_ID"),
			SheetName:       getenvWithDefault("SHEET_NAME", "Attendance"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate ensures that required configuration fields are populated.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}

	if c.Server.Port == "" {
		return errors.New("APP_PORT must be provided")
	}

	switch c.Storage.Backend {
	case BackendFile:
		if c.Storage.DataFile == "" || c.Storage.NamesFile == "" {
			return errors.New("DATA_FILE and NAMES_FILE must not be empty")
		}
	case BackendSQLite:
		if c.Storage.SQLitePath == "" {
			return errors.New("SQLITE_PATH must not be empty")
		}
	case BackendMongo:
		if c.MongoDB.URI == "" {
			return errors.New("MONGODB_URI must be provided for the mongo backend")
		}
		if c.MongoDB.DBName == "" {
			return errors.New("MONGODB_DB_NAME must not be empty")
		}
	default:
		return fmt.Errorf("unsupported STORAGE_BACKEND %q", c.Storage.Backend)
	}

	if c.Attendance.ExpectedCount < 0 {
		return errors.New("EXPECTED_COUNT must not be negative")
	}

	if _, err := c.Location(); err != nil {
		return fmt.Errorf("invalid TIMEZONE %q: %w", c.Attendance.Timezone, err)
	}

	if c.Scheduler.RolloverCron == "" {
		return errors.New("ROLLOVER_CRON_SCHEDULE must be provided")
	}

	if c.Sheets.Enabled() {
		if c.Sheets.SheetName == "" {
			return errors.New("SHEET_NAME must not be empty when publishing is enabled")
		}
		if c.Scheduler.SheetPublishCron == "" {
			return errors.New("SHEET_PUBLISH_CRON_SCHEDULE must be provided when publishing is enabled")
		}
	}

	return nil
}

// Location resolves the timezone used for day boundaries.
func (c *Config) Location() (*time.Location, error) {
	if c.Attendance.Timezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Attendance.Timezone)
}

func getenvWithDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getenvInt(key string, fallback int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return parsed, nil
}

func getenvBool(key string, fallback bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("%s must be a boolean: %w", key, err)
	}
	return parsed, nil
}
