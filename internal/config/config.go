package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gymdesk/internal/models"

	"github.com/joho/godotenv"
	yamlv2 "gopkg.in/yaml.v2"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App        AppConfig        `yaml:"app"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Backup     BackupConfig     `yaml:"backup"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Logging    LoggingConfig    `yaml:"logging"`
	API        APIConfig        `yaml:"api"`
	Gym        GymConfig        `yaml:"gym"`
	Google     GoogleConfig     `yaml:"google"`
	Exports    ExportConfig     `yaml:"exports"`
	SeedPath   string           `yaml:"seed_path"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type GymConfig struct {
	// PaymentSuccessRate is the simulated gateway's success probability.
	PaymentSuccessRate float64 `yaml:"payment_success_rate"`
	// SnapshotIntervalMinutes drives periodic full-mirror refreshes.
	SnapshotIntervalMinutes int `yaml:"snapshot_interval_minutes"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Schedule      string `yaml:"schedule"`
	RetentionDays int    `yaml:"retention_days"`
	StoragePath   string `yaml:"storage_path"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool   `yaml:"prometheus_enabled"`
	PrometheusPort    int    `yaml:"prometheus_port"`
	LogLevel          string `yaml:"log_level"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type APIConfig struct {
	Enabled   bool               `yaml:"enabled"`
	Port      int                `yaml:"port"`
	Auth      APIAuthConfig      `yaml:"auth"`
	RateLimit APIRateLimitConfig `yaml:"rate_limit"`
}

type APIAuthConfig struct {
	Enabled      bool           `yaml:"enabled"`
	HeaderAPIKey string         `yaml:"header_api_key"`
	APIKeys      []APIClientKey `yaml:"api_keys"`
}

type APIClientKey struct {
	Key         string   `yaml:"key"`
	Name        string   `yaml:"name"`
	Permissions []string `yaml:"permissions"`
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type GoogleConfig struct {
	CredentialsFile      string `yaml:"credentials_file"`
	MirrorSpreadsheetID  string `yaml:"mirror_spreadsheet_id"`
	MembersSheetName     string `yaml:"members_sheet_name"`
	BookingsSheetName    string `yaml:"bookings_sheet_name"`
}

type ExportConfig struct {
	Path string `yaml:"path"`
}

func Load(configPath string) (*Config, error) {
	// .env не обязателен
	_ = godotenv.Load(".env")

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	// Предварительная замена переменных окружения в YAML
	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return errors.New("database path is required")
	}
	if c.Gym.PaymentSuccessRate < 0 || c.Gym.PaymentSuccessRate > 1 {
		return fmt.Errorf("gym.payment_success_rate must be within [0, 1], got %v", c.Gym.PaymentSuccessRate)
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.API.Port == 0 {
		c.API.Port = 8080
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	// auth enabled by default when API is enabled
	if c.API.Enabled && !c.API.Auth.Enabled {
		c.API.Auth.Enabled = true
	}
	if c.API.Auth.HeaderAPIKey == "" {
		c.API.Auth.HeaderAPIKey = "x-api-key"
	}

	if c.Gym.PaymentSuccessRate == 0 {
		c.Gym.PaymentSuccessRate = models.DefaultPaymentSuccessRate
	}
	if c.Gym.SnapshotIntervalMinutes == 0 {
		c.Gym.SnapshotIntervalMinutes = models.DefaultSnapshotIntervalMinutes
	}

	if c.Google.MembersSheetName == "" {
		c.Google.MembersSheetName = "Members"
	}
	if c.Google.BookingsSheetName == "" {
		c.Google.BookingsSheetName = "Bookings"
	}
	if c.Exports.Path == "" {
		c.Exports.Path = "exports"
	}
	if c.SeedPath == "" {
		c.SeedPath = "configs/seed.yaml"
	}
}

// Seed is the initial data set loaded when the database is empty.
type Seed struct {
	Accounts  []models.Account  `yaml:"accounts"`
	TimeSlots []models.TimeSlot `yaml:"time_slots"`
}

// LoadSeed reads seed accounts and slots from YAML and validates referential
// integrity before they reach the store.
func LoadSeed(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var seed Seed
	if err := yamlv2.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("failed to parse seed file: %w", err)
	}

	if err := ValidateSeed(&seed); err != nil {
		return nil, fmt.Errorf("seed validation failed: %w", err)
	}
	return &seed, nil
}

func ValidateSeed(seed *Seed) error {
	ids := make(map[string]string, len(seed.Accounts))
	emails := make(map[string]bool, len(seed.Accounts))
	for _, a := range seed.Accounts {
		if a.ID == "" {
			return fmt.Errorf("account %q has empty id", a.Name)
		}
		if _, dup := ids[a.ID]; dup {
			return fmt.Errorf("duplicate account id: %s", a.ID)
		}
		ids[a.ID] = a.Role

		email := strings.ToLower(a.Email)
		if emails[email] {
			return fmt.Errorf("duplicate account email: %s", a.Email)
		}
		emails[email] = true

		switch a.Role {
		case models.RoleStudent, models.RoleTrainer, models.RoleAdmin:
		default:
			return fmt.Errorf("account %s has unknown role %q", a.ID, a.Role)
		}
	}

	for _, s := range seed.TimeSlots {
		if s.ID == "" {
			return fmt.Errorf("time slot for trainer %s has empty id", s.TrainerID)
		}
		if ids[s.TrainerID] != models.RoleTrainer {
			return fmt.Errorf("time slot %s references unknown trainer %s", s.ID, s.TrainerID)
		}
		if !models.ValidWeekday(s.Day) {
			return fmt.Errorf("time slot %s has unknown day %q", s.ID, s.Day)
		}
	}
	return nil
}
