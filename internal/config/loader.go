package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/viper"

	"github.com/rpattn/productadmin/internal/db"
	"github.com/rpattn/productadmin/internal/logging"
)

// EnvPrefix prefixes every environment override, e.g. PRODUCTADMIN_DATABASE_HOST.
const EnvPrefix = "PRODUCTADMIN"

// DefaultSystemLanguageID is the system language when none is configured.
var DefaultSystemLanguageID = uuid.MustParse("2fbb5fe2-e29a-4d70-aa2e-3b0c4e0d7c1e")

// Config is the complete service configuration.
type Config struct {
	Database db.Config
	HTTP     HTTPConfig
	Logging  logging.Config
	Listing  ListingConfig
	Session  SessionConfig
	Metrics  MetricsConfig
	API      APIConfig
	Source   string
}

// APIConfig scopes requests that name no content language.
type APIConfig struct {
	SystemLanguageID uuid.UUID
}

type HTTPConfig struct {
	Address        string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	AllowedOrigins []string
}

type ListingConfig struct {
	DefaultLimit   int
	DefaultFilters []string
	ExportPageSize int
	ExportMaxRows  int
}

type SessionConfig struct {
	IdleTimeout time.Duration
}

type MetricsConfig struct {
	Namespace        string
	CollectGoMetrics bool
	CollectProcess   bool
}

func setDefaults(v *viper.Viper) {
	dbDefaults := db.DefaultConfig()
	v.SetDefault("database.host", dbDefaults.Host)
	v.SetDefault("database.port", dbDefaults.Port)
	v.SetDefault("database.user", dbDefaults.User)
	v.SetDefault("database.password", dbDefaults.Password)
	v.SetDefault("database.dbname", dbDefaults.DBName)
	v.SetDefault("database.sslmode", dbDefaults.SSLMode)
	v.SetDefault("database.max_conns", dbDefaults.MaxConns)

	v.SetDefault("http.address", ":8080")
	v.SetDefault("http.read_timeout", 15*time.Second)
	v.SetDefault("http.write_timeout", 60*time.Second)
	v.SetDefault("http.idle_timeout", 60*time.Second)
	v.SetDefault("http.allowed_origins", []string{"http://localhost:3000"})

	logDefaults := logging.DefaultConfig()
	v.SetDefault("logging.level", logDefaults.Level)
	v.SetDefault("logging.format", logDefaults.Format)
	v.SetDefault("logging.output", logDefaults.Output)
	v.SetDefault("logging.rotate.enabled", logDefaults.Rotate.Enabled)
	v.SetDefault("logging.rotate.max_size_mb", logDefaults.Rotate.MaxSizeMB)
	v.SetDefault("logging.rotate.max_age_days", logDefaults.Rotate.MaxAgeDays)
	v.SetDefault("logging.rotate.max_backups", logDefaults.Rotate.MaxBackups)
	v.SetDefault("logging.rotate.compress", logDefaults.Rotate.Compress)

	v.SetDefault("listing.default_limit", 25)
	v.SetDefault("listing.default_filters", []string{})
	v.SetDefault("listing.export_page_size", 500)
	v.SetDefault("listing.export_max_rows", 50000)
	v.SetDefault("api.system_language_id", DefaultSystemLanguageID.String())

	v.SetDefault("session.idle_timeout", 30*time.Minute)

	v.SetDefault("metrics.namespace", "productadmin")
	v.SetDefault("metrics.collect_go_metrics", true)
	v.SetDefault("metrics.collect_process", true)
}

// Load reads config.yaml from configPath when present and applies defaults
// and environment overrides on top.
func Load(configPath string) (Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if configPath != "" {
		v.AddConfigPath(configPath)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	var cfg Config
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return cfg, fmt.Errorf("failed to read config: %w", err)
		}
	} else {
		cfg.Source = v.ConfigFileUsed()
	}

	cfg.Database = db.Config{
		Host:     v.GetString("database.host"),
		Port:     v.GetInt("database.port"),
		User:     v.GetString("database.user"),
		Password: v.GetString("database.password"),
		DBName:   v.GetString("database.dbname"),
		SSLMode:  v.GetString("database.sslmode"),
		MaxConns: v.GetInt32("database.max_conns"),
	}
	cfg.HTTP = HTTPConfig{
		Address:        v.GetString("http.address"),
		ReadTimeout:    v.GetDuration("http.read_timeout"),
		WriteTimeout:   v.GetDuration("http.write_timeout"),
		IdleTimeout:    v.GetDuration("http.idle_timeout"),
		AllowedOrigins: v.GetStringSlice("http.allowed_origins"),
	}
	cfg.Logging = logging.Config{
		Level:  v.GetString("logging.level"),
		Format: v.GetString("logging.format"),
		Output: v.GetString("logging.output"),
		Rotate: logging.RotateConfig{
			Enabled:    v.GetBool("logging.rotate.enabled"),
			MaxSizeMB:  v.GetInt("logging.rotate.max_size_mb"),
			MaxAgeDays: v.GetInt("logging.rotate.max_age_days"),
			MaxBackups: v.GetInt("logging.rotate.max_backups"),
			Compress:   v.GetBool("logging.rotate.compress"),
		},
	}

	langID, err := uuid.Parse(v.GetString("api.system_language_id"))
	if err != nil {
		return cfg, fmt.Errorf("invalid api.system_language_id: %w", err)
	}
	cfg.API = APIConfig{SystemLanguageID: langID}
	cfg.Listing = ListingConfig{
		DefaultLimit:   v.GetInt("listing.default_limit"),
		DefaultFilters: v.GetStringSlice("listing.default_filters"),
		ExportPageSize: v.GetInt("listing.export_page_size"),
		ExportMaxRows:  v.GetInt("listing.export_max_rows"),
	}
	cfg.Session = SessionConfig{IdleTimeout: v.GetDuration("session.idle_timeout")}
	cfg.Metrics = MetricsConfig{
		Namespace:        v.GetString("metrics.namespace"),
		CollectGoMetrics: v.GetBool("metrics.collect_go_metrics"),
		CollectProcess:   v.GetBool("metrics.collect_process"),
	}

	if cfg.Database.Port <= 0 {
		return cfg, fmt.Errorf("invalid database.port %d", cfg.Database.Port)
	}
	if cfg.Listing.DefaultLimit <= 0 {
		return cfg, fmt.Errorf("invalid listing.default_limit %d", cfg.Listing.DefaultLimit)
	}
	return cfg, nil
}
