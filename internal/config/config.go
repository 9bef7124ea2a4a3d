// internal/config/config.go
package config

import (
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server struct {
		Port int `mapstructure:"port"`
	} `mapstructure:"server"`
	Ingest struct {
		MinFrameIntervalMS  int `mapstructure:"min_frame_interval_ms"`
		ClassifierTimeoutMS int `mapstructure:"classifier_timeout_ms"`
	} `mapstructure:"ingest"`
	Incident struct {
		CriticalThresholdNTU   float64 `mapstructure:"critical_threshold_ntu"`
		SafeFrameThreshold     int     `mapstructure:"safe_frame_threshold"`
		CooldownSeconds        int     `mapstructure:"cooldown_seconds"`
		WarningThresholdNTU    float64 `mapstructure:"warning_threshold_ntu"`
		WarningDebounceSeconds int     `mapstructure:"warning_debounce_seconds"`
		WarningConfidenceFloor float64 `mapstructure:"warning_confidence_floor"`
	} `mapstructure:"incident"`
	Pairing struct {
		SessionTTLSeconds int `mapstructure:"session_ttl_seconds"`
	} `mapstructure:"pairing"`
	History struct {
		RingSize int `mapstructure:"ring_size"`
	} `mapstructure:"history"`
	Alerts struct {
		BufferSize int `mapstructure:"buffer_size"`
	} `mapstructure:"alerts"`
	Classifier struct {
		URL string `mapstructure:"url"`
	} `mapstructure:"classifier"`
	Notifier struct {
		URL           string    `mapstructure:"url"`
		APIKey        string    `mapstructure:"api_key"`
		AssistantID   string    `mapstructure:"assistant_id"`
		PhoneNumberID string    `mapstructure:"phone_number_id"`
		Contacts      []Contact `mapstructure:"contacts"`
	} `mapstructure:"notifier"`
	Simulator struct {
		Enabled         bool     `mapstructure:"enabled"`
		Sites           []string `mapstructure:"sites"`
		IntervalSeconds int      `mapstructure:"interval_seconds"`
	} `mapstructure:"simulator"`
	Auth struct {
		JWTSecret            string   `mapstructure:"jwt_secret"`
		JWTExpirationMinutes int      `mapstructure:"jwt_expiration_minutes"`
		APIKeys              []string `mapstructure:"api_keys"`
		Users                []User   `mapstructure:"users"`
	} `mapstructure:"auth"`
}

type Contact struct {
	Name  string `mapstructure:"name"`
	Phone string `mapstructure:"phone"`
}

type User struct {
	Username     string `mapstructure:"username"`
	PasswordHash string `mapstructure:"password_hash"`
	Role         string `mapstructure:"role"`
}

func (c *Config) MinFrameInterval() time.Duration {
	return time.Duration(c.Ingest.MinFrameIntervalMS) * time.Millisecond
}

func (c *Config) ClassifierTimeout() time.Duration {
	return time.Duration(c.Ingest.ClassifierTimeoutMS) * time.Millisecond
}

func (c *Config) Cooldown() time.Duration {
	return time.Duration(c.Incident.CooldownSeconds) * time.Second
}

func (c *Config) WarningDebounce() time.Duration {
	return time.Duration(c.Incident.WarningDebounceSeconds) * time.Second
}

func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.Pairing.SessionTTLSeconds) * time.Second
}

func (c *Config) SimulatorInterval() time.Duration {
	return time.Duration(c.Simulator.IntervalSeconds) * time.Second
}

// Load reads config.yaml from path (optional) and the environment. A .env file
// in the working directory is loaded first so flat env vars work in dev too.
func Load(path string) (*Config, error) {
	_ = godotenv.Load() // ignore missing file

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(path)
	viper.AutomaticEnv()

	setDefaults()
	bindEnvAliases()

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("No config file found, using defaults and environment: %v", err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// bindEnvAliases maps the flat environment variable names recognized by the
// deployment surface onto their nested config keys.
func bindEnvAliases() {
	aliases := map[string]string{
		"ingest.min_frame_interval_ms":    "MIN_FRAME_INTERVAL_MS",
		"incident.critical_threshold_ntu": "CRITICAL_THRESHOLD_NTU",
		"incident.safe_frame_threshold":   "SAFE_FRAME_THRESHOLD",
		"incident.cooldown_seconds":       "COOLDOWN_SECONDS",
		"pairing.session_ttl_seconds":     "SESSION_TTL_SECONDS",
		"history.ring_size":               "HISTORY_RING_SIZE",
		"server.port":                     "PORT",
		"classifier.url":                  "CLASSIFIER_URL",
		"notifier.api_key":                "VAPI_API_KEY",
		"notifier.assistant_id":           "VAPI_ASSISTANT_ID",
		"notifier.phone_number_id":        "VAPI_PHONE_NUMBER_ID",
		"auth.jwt_secret":                 "JWT_SECRET",
	}
	for key, env := range aliases {
		_ = viper.BindEnv(key, env)
	}
}

func setDefaults() {
	viper.SetDefault("server.port", 8000)
	viper.SetDefault("ingest.min_frame_interval_ms", 500)
	viper.SetDefault("ingest.classifier_timeout_ms", 8000)
	viper.SetDefault("incident.critical_threshold_ntu", 45.0)
	viper.SetDefault("incident.safe_frame_threshold", 10)
	viper.SetDefault("incident.cooldown_seconds", 600)
	viper.SetDefault("incident.warning_threshold_ntu", 15.0)
	viper.SetDefault("incident.warning_debounce_seconds", 30)
	viper.SetDefault("incident.warning_confidence_floor", 60.0)
	viper.SetDefault("pairing.session_ttl_seconds", 300)
	viper.SetDefault("history.ring_size", 60)
	viper.SetDefault("alerts.buffer_size", 200)
	viper.SetDefault("notifier.url", "https://api.vapi.ai/call")
	viper.SetDefault("simulator.enabled", true)
	viper.SetDefault("simulator.sites", []string{"SITE-02", "SITE-03", "SITE-04"})
	viper.SetDefault("simulator.interval_seconds", 2)
	viper.SetDefault("auth.jwt_expiration_minutes", 60)
}
