// Package conf loads and holds the application configuration.
package conf

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/spf13/viper"
)

// Settings holds the full application configuration, populated by viper from
// config.yaml, environment variables and command line flags.
type Settings struct {
	Debug bool // true to enable debug output

	Version   string `yaml:"-"` // build version, set at compile time
	BuildDate string `yaml:"-"` // build date, set at compile time

	Main struct {
		Name string    // name of the running instance
		Log  LogConfig // main log file settings
	}

	WebServer WebServerSettings
	Output    OutputSettings
	Security  SecuritySettings
	Geo       GeoSettings
}

// WebServerSettings holds the HTTP server configuration
type WebServerSettings struct {
	Port  string // port to listen on
	Debug bool   // true to enable debug output and the /metrics endpoint
}

// OutputSettings selects and configures the claim store backend
type OutputSettings struct {
	SQLite SQLiteSettings
	MySQL  MySQLSettings
}

// SQLiteSettings holds the SQLite backend configuration
type SQLiteSettings struct {
	Enabled bool
	Path    string // path to the database file
}

// MySQLSettings holds the MySQL backend configuration
type MySQLSettings struct {
	Enabled  bool
	Username string
	Password string
	Host     string
	Port     string
	Database string
}

// SecuritySettings holds claim policy and token configuration
type SecuritySettings struct {
	// PrimaryDomains is a comma-separated list of organization domains.
	// An identity containing any of them is treated as an organization
	// identity (quarantine claimer, admin caller).
	PrimaryDomains string

	// DataEntryToken gates the data-entry unclaim path. Must be at least
	// six characters long for the path to be usable at all.
	DataEntryToken string
}

// GeoSettings configures the external territory/geocoding service client
type GeoSettings struct {
	BaseURL  string // base URL of the geo service
	Timeout  int    // request timeout in seconds
	CacheTTL int    // postcode bounds cache TTL in minutes
}

// OrgDomains returns the configured organization domains as a cleaned slice.
func (s *SecuritySettings) OrgDomains() []string {
	if strings.TrimSpace(s.PrimaryDomains) == "" {
		return nil
	}
	parts := strings.Split(s.PrimaryDomains, ",")
	domains := make([]string, 0, len(parts))
	for _, p := range parts {
		if d := strings.TrimSpace(p); d != "" {
			domains = append(domains, d)
		}
	}
	return domains
}

// LogConfig defines the configuration for a log file
type LogConfig struct {
	Enabled  bool         // true to enable this log
	Path     string       // Path to the log file
	Rotation RotationType // Type of log rotation
	MaxSize  int64        // Max size in bytes for RotationSize
}

// RotationType defines different types of log rotations.
type RotationType string

const (
	RotationDaily  RotationType = "daily"
	RotationWeekly RotationType = "weekly"
	RotationSize   RotationType = "size"
)

var (
	settingsInstance *Settings
	once             sync.Once
	settingsMutex    sync.RWMutex
)

// Load reads the configuration file and environment variables into a new
// Settings instance and makes it the current one.
func Load() (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	settings := &Settings{}

	if err := initViper(); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	settingsInstance = settings
	return settingsInstance, nil
}

// initViper initializes viper with default values and reads the configuration file.
func initViper() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("$HOME/.config/canvass")
	viper.AddConfigPath("/etc/canvass")

	viper.SetEnvPrefix("canvass")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaultConfig()

	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			// No config file is fine, defaults plus env cover everything
			return nil
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}

	return nil
}

// GetSettings returns the current settings instance
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// Setting returns the current settings instance, initializing it if necessary
func Setting() *Settings {
	once.Do(func() {
		if settingsInstance == nil {
			_, err := Load()
			if err != nil {
				log.Fatalf("Error loading settings: %v", err)
			}
		}
	})
	return GetSettings()
}

// SetTestSettings replaces the current settings instance. Intended for tests
// that need config-dependent packages without a config file on disk.
func SetTestSettings(settings *Settings) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()
	once.Do(func() {})
	settingsInstance = settings
}
