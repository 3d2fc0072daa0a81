package config_test

import (
	"testing"
	"time"

	"github.com/Flaque/filet"
	"github.com/UnknownOlympus/hermes/internal/config"
	"github.com/stretchr/testify/assert"
)

func Test_MustLoadFromEnv(t *testing.T) {
	t.Setenv("HERMES_ENV_FILE", "does-not-exist.env")
	t.Setenv("HERMES_ENV", "local")
	t.Setenv("HERMES_CAPTURE_INTERVAL", "5s")
	t.Setenv("HERMES_GEOCODER_KEY", "testAPIKey")
	t.Setenv("HERMES_KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,")
	t.Setenv("HERMES_BACKEND_URL", "https://fleet.example.com/")
	t.Setenv("DB_HOST", "testHost")
	t.Setenv("DB_PORT", "12345")
	t.Setenv("DB_USERNAME", "admin")
	t.Setenv("DB_PASSWORD", "adminpass")
	t.Setenv("DB_NAME", "testName")

	cfg := config.MustLoad()

	assert.Equal(t, "local", cfg.Env)
	assert.Equal(t, "testHost", cfg.Database.Host)
	assert.Equal(t, "12345", cfg.Database.Port)
	assert.Equal(t, "admin", cfg.Database.User)
	assert.Equal(t, "adminpass", cfg.Database.Password)
	assert.Equal(t, "testName", cfg.Database.Name)
	assert.Equal(t, 5*time.Second, cfg.Capture.Interval)
	assert.Equal(t, 10*time.Second, cfg.Capture.SupervisorInterval)
	assert.Equal(t, 4*time.Second, cfg.Capture.RestartCooldown)
	assert.Equal(t, time.Second, cfg.Upload.Interval)
	assert.Equal(t, 10, cfg.Upload.BatchSize)
	assert.Equal(t, 3, cfg.Upload.MaxRetries)
	assert.Zero(t, cfg.Upload.QueueMax)
	assert.Equal(t, 8080, cfg.HTTPPort)
	assert.Equal(t, "testAPIKey", cfg.Geocoder.APIKey)
	assert.Equal(t, "google", cfg.Geocoder.Type)
	assert.Equal(t, "Malta", cfg.Geocoder.AddressSuffix)
	assert.Equal(t, 25, cfg.Routing.Limit)
	assert.Equal(t, "http", cfg.Sink)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "driver.locations", cfg.Kafka.Topic)
	assert.Equal(t, "https://fleet.example.com", cfg.Backend.URL)
	assert.InDelta(t, 1.0, cfg.GPX.Speedup, 1e-9)
}

func Test_MustLoadFromFile(t *testing.T) {
	defer filet.CleanUp(t)

	file := filet.TmpFile(t, "", "HERMES_DRIVER_ID=drv-42\nHERMES_ROUTE_LIMIT=8\nHERMES_SINK=kafka\n")
	t.Setenv("HERMES_ENV_FILE", file.Name())
	t.Setenv("HERMES_SINK", "http")

	cfg := config.MustLoad()

	assert.Equal(t, "drv-42", cfg.DriverID)
	assert.Equal(t, 8, cfg.Routing.Limit)
	assert.Equal(t, "http", cfg.Sink, "environment wins over the dotenv file")
}

func TestMustLoad_CaptureIntervalError(t *testing.T) {
	t.Setenv("HERMES_CAPTURE_INTERVAL", "error_value")

	assert.PanicsWithValue(t, "failed to parse capture interval from configuration", func() {
		config.MustLoad()
	})
}

func TestMustLoad_PortError(t *testing.T) {
	t.Setenv("HERMES_HTTP_PORT", "error_value")

	assert.PanicsWithValue(t, "failed to parse port for monitoring server from configuration", func() {
		config.MustLoad()
	})
}

func TestMustLoad_MaxRetriesError(t *testing.T) {
	t.Setenv("HERMES_MAX_RETRIES", "error_value")

	assert.PanicsWithValue(t, "failed to parse max retries from configuration, must be an integer types", func() {
		config.MustLoad()
	})
}

func TestMustLoad_SpeedupError(t *testing.T) {
	t.Setenv("HERMES_GPX_SPEEDUP", "fast")

	assert.PanicsWithValue(t, "failed to parse gpx speedup from configuration", func() {
		config.MustLoad()
	})
}
