package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"WardWatchAPI/internal/logger"
	"WardWatchAPI/internal/models"
)

func TestLoad_Defaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.False(t, cfg.Database.Enabled())
	assert.False(t, cfg.MQTT.Enabled())
	assert.Equal(t, "wards/+/vitals", cfg.MQTT.VitalsTopic)
	assert.Equal(t, 24*time.Hour, cfg.Security.JWTExpiration)
	assert.Equal(t, logger.INFO, cfg.Logging.Level)
	assert.Empty(t, cfg.Alerting.CriticalMargins)
	assert.True(t, cfg.Alerting.CombinationRule)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_FromEnvironment(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("DB_HOST", "db")
	t.Setenv("DB_PASSWORD", "secret")
	t.Setenv("MQTT_BROKER", "broker")
	t.Setenv("ALERT_CRITICAL_MARGIN_HEART_RATE", "30")
	t.Setenv("ALERT_CRITICAL_MARGIN_TEMPERATURE", "1.5")
	t.Setenv("ALERT_COMBINATION_RULE", "false")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.True(t, cfg.Database.Enabled())
	assert.True(t, cfg.MQTT.Enabled())
	assert.Equal(t, "tcp://broker:1883", cfg.GetMQTTBroker())
	assert.Equal(t, map[models.Channel]float64{
		models.ChannelHeartRate:   30,
		models.ChannelTemperature: 1.5,
	}, cfg.Alerting.CriticalMargins)
	assert.False(t, cfg.Alerting.CombinationRule)
	assert.Equal(t, logger.DEBUG, cfg.Logging.Level)
	assert.NoError(t, cfg.Validate())
}

func TestValidate_CollectsProblems(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("DB_HOST", "db")
	t.Setenv("MQTT_BROKER", "broker")
	t.Setenv("MQTT_ALERT_TOPIC", "wards/alerts")
	t.Setenv("ALERT_CRITICAL_MARGIN_HEART_RATE", "-5")

	cfg, err := Load()
	require.NoError(t, err)

	err = cfg.Validate()
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "DB_PASSWORD cannot be empty")
	assert.Contains(t, msg, "MQTT_ALERT_TOPIC")
	assert.Contains(t, msg, "JWT_SECRET must be changed in production")
	assert.Contains(t, msg, "ALERT_CRITICAL_MARGIN_HEART_RATE cannot be negative")
}

// chdir changes the working directory for the duration of the test,
// mirroring testing.T.Chdir (Go 1.24+) for older toolchains.
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(old) })
}
