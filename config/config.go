package config

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Server       Server
	Database     Database
	Session      Session
	JWTSecret    string
	GeminiApiKey string
}

type Server struct {
	Port string
}

type Database struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
}

type Session struct {
	// DefaultDurationMinutes applies when an assessment was authored
	// without an explicit duration.
	DefaultDurationMinutes int
	SubmitMaxRetries       int
	SubmitBackoffMillis    int
}

func NewConfig() (*Config, error) {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")

	viper.AutomaticEnv()

	viper.SetDefault("DEFAULT_DURATION_MINUTES", 60)
	viper.SetDefault("SUBMIT_MAX_RETRIES", 3)
	viper.SetDefault("SUBMIT_BACKOFF_MILLIS", 500)

	if err := viper.ReadInConfig(); err != nil {
		log.Warn().Err(err).Msg("Error reading config file")
	}

	var config Config

	config.Server.Port = viper.GetString("SERVER_PORT")
	config.Database.Host = viper.GetString("DATABASE_HOST")
	config.Database.Port = viper.GetString("DATABASE_PORT")
	config.Database.User = viper.GetString("DATABASE_USER")
	config.Database.Password = viper.GetString("DATABASE_PASSWORD")
	config.Database.Name = viper.GetString("DATABASE_NAME")

	config.Session.DefaultDurationMinutes = viper.GetInt("DEFAULT_DURATION_MINUTES")
	config.Session.SubmitMaxRetries = viper.GetInt("SUBMIT_MAX_RETRIES")
	config.Session.SubmitBackoffMillis = viper.GetInt("SUBMIT_BACKOFF_MILLIS")

	config.JWTSecret = viper.GetString("JWT_SECRET")
	config.GeminiApiKey = viper.GetString("GEMINI_API_KEY")

	log.Info().Str("port", config.Server.Port).Msg("Config loaded")
	return &config, nil
}
