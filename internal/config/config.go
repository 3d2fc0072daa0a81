package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds the configuration settings for the telemetry pipeline and the route optimizer.
//
// Fields:
// - Env: The current environment (e.g., local, dev, prod).
// - HTTPPort: The port of the control API and monitoring server.
// - DriverID: The driver identity used when the host does not pass one explicitly.
// - Session: Where the upload token comes from.
// - Backend: The remote telemetry and proof-of-delivery endpoint.
// - Sink: Which telemetry sink the uploader writes to (http, kafka).
// - Capture, Upload: Timings and limits of the capture service and the uploader.
// - Geocoder, Routing: Provider selection and limits of the route optimizer.
// - GPX: Optional recorded track replayed as the location source.
// - Database: Configuration settings for the PostgreSQL database.
type Config struct {
	Env      string         `yaml:"env"`
	HTTPPort int            `yaml:"http.port"`
	DriverID string         `yaml:"driver_id"`
	Session  SessionConfig  `yaml:"session"`
	Backend  BackendConfig  `yaml:"backend"`
	Sink     string         `yaml:"sink"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Capture  CaptureConfig  `yaml:"capture"`
	Upload   UploadConfig   `yaml:"upload"`
	Geocoder GeocoderConfig `yaml:"geocoder"`
	Routing  RoutingConfig  `yaml:"routing"`
	GPX      GPXConfig      `yaml:"gpx"`
	Database PostgresConfig `yaml:"postgres"`
}

type SessionConfig struct {
	Token     string `yaml:"token"`
	TokenFile string `yaml:"token_file"` // Read on every upload attempt when set.
}

type BackendConfig struct {
	URL    string `yaml:"url"`
	APIKey string `yaml:"api_key"`
}

type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

type CaptureConfig struct {
	Interval           time.Duration `yaml:"interval"`            // Minimum spacing between two enqueued samples.
	SupervisorInterval time.Duration `yaml:"supervisor_interval"` // Period of the health check loop.
	RestartCooldown    time.Duration `yaml:"restart_cooldown"`    // Pause between stop and start on a forced restart.
}

type UploadConfig struct {
	Interval   time.Duration `yaml:"interval"`
	BatchSize  int           `yaml:"batch"`
	MaxRetries int           `yaml:"max_retries"`
	QueueMax   int           `yaml:"queue_max"` // 0 keeps the queue unbounded.
}

type GeocoderConfig struct {
	Type          string `yaml:"type"`
	APIKey        string `yaml:"api_key"`
	RateLimit     int    `yaml:"rate"`
	AddressSuffix string `yaml:"address_suffix"`
}

type RoutingConfig struct {
	Limit       int    `yaml:"limit"`        // Largest stop count sent to the exact optimizer.
	CityAliases string `yaml:"city_aliases"` // Optional TOML alias overlay.
}

type GPXConfig struct {
	Track   string  `yaml:"track"`
	Speedup float64 `yaml:"speedup"`
}

// PostgresConfig struct holds the configuration details for connecting to a PostgreSQL database.
type PostgresConfig struct {
	Host     string `yaml:"host"`                        // Host is the database server address.
	Port     string `yaml:"port"     env-default:"5432"` // Port is the database server port.
	User     string `yaml:"user"`                        // User is the database user.
	Password string `yaml:"password"`                    // Password is the database user's password.
	Name     string `yaml:"db_name"`                     // Name is the name of the database.
}

var defaults = map[string]string{
	"HERMES_ENV":                 "production",
	"HERMES_HTTP_PORT":           "8080",
	"HERMES_SINK":                "http",
	"HERMES_KAFKA_TOPIC":         "driver.locations",
	"HERMES_CAPTURE_INTERVAL":    "3s",
	"HERMES_SUPERVISOR_INTERVAL": "10s",
	"HERMES_RESTART_COOLDOWN":    "4s",
	"HERMES_UPLOAD_INTERVAL":     "1s",
	"HERMES_UPLOAD_BATCH":        "10",
	"HERMES_MAX_RETRIES":         "3",
	"HERMES_QUEUE_MAX":           "0",
	"HERMES_GEOCODER":            "google",
	"HERMES_GEOCODER_RATE":       "10",
	"HERMES_ADDRESS_SUFFIX":      "Malta",
	"HERMES_ROUTE_LIMIT":         "25",
	"HERMES_GPX_SPEEDUP":         "1.0",
	"DB_PORT":                    "5432",
}

// MustLoad reads the configuration from the environment and an optional dotenv file.
// Environment variables take precedence over the file, the file over built-in defaults.
func MustLoad() *Config {
	v := viper.New()
	v.AutomaticEnv()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	envFile, ok := os.LookupEnv("HERMES_ENV_FILE")
	if !ok {
		envFile = ".env"
	}
	if values, err := godotenv.Read(envFile); err == nil {
		for key, value := range values {
			v.SetDefault(key, value)
		}
	}

	return &Config{
		Env:      v.GetString("HERMES_ENV"),
		HTTPPort: mustInt(v, "HERMES_HTTP_PORT", "failed to parse port for monitoring server from configuration"),
		DriverID: v.GetString("HERMES_DRIVER_ID"),
		Session: SessionConfig{
			Token:     v.GetString("HERMES_SESSION_TOKEN"),
			TokenFile: v.GetString("HERMES_SESSION_TOKEN_FILE"),
		},
		Backend: BackendConfig{
			URL:    strings.TrimRight(v.GetString("HERMES_BACKEND_URL"), "/"),
			APIKey: v.GetString("HERMES_BACKEND_API_KEY"),
		},
		Sink: v.GetString("HERMES_SINK"),
		Kafka: KafkaConfig{
			Brokers: splitList(v.GetString("HERMES_KAFKA_BROKERS")),
			Topic:   v.GetString("HERMES_KAFKA_TOPIC"),
		},
		Capture: CaptureConfig{
			Interval: mustDuration(v, "HERMES_CAPTURE_INTERVAL",
				"failed to parse capture interval from configuration"),
			SupervisorInterval: mustDuration(v, "HERMES_SUPERVISOR_INTERVAL",
				"failed to parse supervisor interval from configuration"),
			RestartCooldown: mustDuration(v, "HERMES_RESTART_COOLDOWN",
				"failed to parse restart cooldown from configuration"),
		},
		Upload: UploadConfig{
			Interval: mustDuration(v, "HERMES_UPLOAD_INTERVAL", "failed to parse upload interval from configuration"),
			BatchSize: mustInt(v, "HERMES_UPLOAD_BATCH",
				"failed to parse upload batch from configuration, must be an integer types"),
			MaxRetries: mustInt(v, "HERMES_MAX_RETRIES",
				"failed to parse max retries from configuration, must be an integer types"),
			QueueMax: mustInt(v, "HERMES_QUEUE_MAX",
				"failed to parse queue max from configuration, must be an integer types"),
		},
		Geocoder: GeocoderConfig{
			Type:   v.GetString("HERMES_GEOCODER"),
			APIKey: v.GetString("HERMES_GEOCODER_KEY"),
			RateLimit: mustInt(v, "HERMES_GEOCODER_RATE",
				"failed to parse geocoder rate from configuration, must be an integer types"),
			AddressSuffix: v.GetString("HERMES_ADDRESS_SUFFIX"),
		},
		Routing: RoutingConfig{
			Limit: mustInt(v, "HERMES_ROUTE_LIMIT",
				"failed to parse route limit from configuration, must be an integer types"),
			CityAliases: v.GetString("HERMES_CITY_ALIASES"),
		},
		GPX: GPXConfig{
			Track:   v.GetString("HERMES_GPX_TRACK"),
			Speedup: mustFloat(v, "HERMES_GPX_SPEEDUP", "failed to parse gpx speedup from configuration"),
		},
		Database: PostgresConfig{
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetString("DB_PORT"),
			User:     v.GetString("DB_USERNAME"),
			Password: v.GetString("DB_PASSWORD"),
			Name:     v.GetString("DB_NAME"),
		},
	}
}

func mustDuration(v *viper.Viper, key, msg string) time.Duration {
	d, err := time.ParseDuration(v.GetString(key))
	if err != nil {
		panic(msg)
	}

	return d
}

func mustInt(v *viper.Viper, key, msg string) int {
	n, err := strconv.Atoi(v.GetString(key))
	if err != nil {
		panic(msg)
	}

	return n
}

func mustFloat(v *viper.Viper, key, msg string) float64 {
	f, err := strconv.ParseFloat(v.GetString(key), 64)
	if err != nil {
		panic(msg)
	}

	return f
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}

	return out
}
