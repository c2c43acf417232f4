package config

import (
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// Config holds everything the server and CLI need at startup. Values
// come from config.yaml when present, overridden by environment
// variables (DB_DSN, SERVER_PORT, ...).
type Config struct {
	Port              int
	DSN               string
	CORSOrigin        string
	UploadDir         string
	AllowRegistration bool
	LogLevel          string
	LogFormat         string
	DashboardCacheTTL time.Duration
}

// Load reads configuration with sensible defaults.
func Load() Config {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")

	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.cors_origin", "http://localhost:5173")
	viper.SetDefault("database.dsn", "")
	viper.SetDefault("uploads.dir", "./uploads")
	viper.SetDefault("auth.allow_registration", false)
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "console")
	viper.SetDefault("dashboard.cache_ttl", 5*time.Minute)

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	// Legacy env names kept for existing deployments.
	viper.BindEnv("database.dsn", "DB_DSN")
	viper.BindEnv("auth.allow_registration", "ALLOW_REGISTRATION")
	viper.BindEnv("server.port", "PORT")

	if err := viper.ReadInConfig(); err != nil {
		log.Debug().Msg("no config file found, using defaults")
	}

	return Config{
		Port:              viper.GetInt("server.port"),
		DSN:               viper.GetString("database.dsn"),
		CORSOrigin:        viper.GetString("server.cors_origin"),
		UploadDir:         viper.GetString("uploads.dir"),
		AllowRegistration: viper.GetBool("auth.allow_registration"),
		LogLevel:          viper.GetString("log.level"),
		LogFormat:         viper.GetString("log.format"),
		DashboardCacheTTL: viper.GetDuration("dashboard.cache_ttl"),
	}
}
