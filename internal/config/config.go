package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"WardWatchAPI/internal/logger"
	"WardWatchAPI/internal/models"

	"github.com/joho/godotenv"
)

const defaultJWTSecret = "wardwatch_secret_change_in_production"

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	MQTT     MQTTConfig
	Security SecurityConfig
	Logging  LoggingConfig
	Alerting AlertingConfig
}

type ServerConfig struct {
	Host            string
	Port            int
	Environment     string
	ShutdownTimeout time.Duration
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	MaxHeaderBytes  int
}

// DatabaseConfig is optional; an empty Host selects the in-memory stores.
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

func (d DatabaseConfig) Enabled() bool {
	return d.Host != ""
}

// MQTTConfig is optional; an empty Broker disables device ingestion.
type MQTTConfig struct {
	Broker         string
	Port           int
	ClientID       string
	Username       string
	Password       string
	VitalsTopic    string
	AlertTopic     string
	PublishAlerts  bool
	QoS            byte
	RetainMessages bool
	KeepAlive      time.Duration
	ConnectTimeout time.Duration
	AutoReconnect  bool
}

func (m MQTTConfig) Enabled() bool {
	return m.Broker != ""
}

type SecurityConfig struct {
	JWTSecret          string
	JWTIssuer          string
	JWTExpiration      time.Duration
	CORSAllowedOrigins []string
	CORSAllowedMethods []string
	RateLimitPerMinute int
	EnableRateLimit    bool
}

type LoggingConfig struct {
	Level     logger.Level
	Mode      logger.Mode
	FilePath  string
	UseColors bool
}

type AlertingConfig struct {
	// CriticalMargins per channel; zero disables margin escalation.
	CriticalMargins  map[models.Channel]float64
	CombinationRule  bool
	AutoInitOrgs     bool
	BatchConcurrency int
	SessionQueueSize int
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		fmt.Fprintln(os.Stderr, "No .env file found, using environment variables")
	}

	cfg := &Config{
		Server:   loadServerConfig(),
		Database: loadDatabaseConfig(),
		MQTT:     loadMQTTConfig(),
		Security: loadSecurityConfig(),
		Logging:  loadLoggingConfig(),
		Alerting: loadAlertingConfig(),
	}

	return cfg, nil
}

func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("SERVER_HOST", "0.0.0.0"),
		Port:            getEnvAsInt("SERVER_PORT", 8080),
		Environment:     getEnv("ENVIRONMENT", "development"),
		ShutdownTimeout: getEnvAsDuration("SHUTDOWN_TIMEOUT", "15s"),
		ReadTimeout:     getEnvAsDuration("READ_TIMEOUT", "10s"),
		WriteTimeout:    getEnvAsDuration("WRITE_TIMEOUT", "10s"),
		MaxHeaderBytes:  getEnvAsInt("MAX_HEADER_BYTES", 1048576),
	}
}

func loadDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Host:            getEnv("DB_HOST", ""),
		Port:            getEnvAsInt("DB_PORT", 5432),
		User:            getEnv("DB_USER", "wardwatch"),
		Password:        getEnv("DB_PASSWORD", ""),
		Database:        getEnv("DB_NAME", "wardwatch"),
		SSLMode:         getEnv("DB_SSL_MODE", "disable"),
		MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
		MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
		ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", "5m"),
		ConnMaxIdleTime: getEnvAsDuration("DB_CONN_MAX_IDLE_TIME", "5m"),
	}
}

func loadMQTTConfig() MQTTConfig {
	return MQTTConfig{
		Broker:         getEnv("MQTT_BROKER", ""),
		Port:           getEnvAsInt("MQTT_PORT", 1883),
		ClientID:       getEnv("MQTT_CLIENT_ID", "wardwatch-backend"),
		Username:       getEnv("MQTT_USERNAME", ""),
		Password:       getEnv("MQTT_PASSWORD", ""),
		VitalsTopic:    getEnv("MQTT_VITALS_TOPIC", "wards/+/vitals"),
		AlertTopic:     getEnv("MQTT_ALERT_TOPIC", "wards/%s/alerts"),
		PublishAlerts:  getEnvAsBool("MQTT_PUBLISH_ALERTS", true),
		QoS:            byte(getEnvAsInt("MQTT_QOS", 1)),
		RetainMessages: getEnvAsBool("MQTT_RETAIN", false),
		KeepAlive:      getEnvAsDuration("MQTT_KEEP_ALIVE", "60s"),
		ConnectTimeout: getEnvAsDuration("MQTT_CONNECT_TIMEOUT", "10s"),
		AutoReconnect:  getEnvAsBool("MQTT_AUTO_RECONNECT", true),
	}
}

func loadSecurityConfig() SecurityConfig {
	origins := getEnv("CORS_ALLOWED_ORIGINS", "*")
	methods := getEnv("CORS_ALLOWED_METHODS", "GET,POST,PUT,DELETE,OPTIONS")

	return SecurityConfig{
		JWTSecret:          getEnv("JWT_SECRET", defaultJWTSecret),
		JWTIssuer:          getEnv("JWT_ISSUER", ""),
		JWTExpiration:      getEnvAsDuration("JWT_EXPIRATION", "24h"),
		CORSAllowedOrigins: strings.Split(origins, ","),
		CORSAllowedMethods: strings.Split(methods, ","),
		RateLimitPerMinute: getEnvAsInt("RATE_LIMIT_PER_MINUTE", 600),
		EnableRateLimit:    getEnvAsBool("ENABLE_RATE_LIMIT", true),
	}
}

func loadLoggingConfig() LoggingConfig {
	return LoggingConfig{
		Level:     logger.ParseLevel(getEnv("LOG_LEVEL", "info")),
		Mode:      logger.ParseMode(getEnv("LOG_MODE", "normal")),
		FilePath:  getEnv("LOG_FILE_PATH", ""),
		UseColors: getEnvAsBool("LOG_USE_COLORS", true),
	}
}

func loadAlertingConfig() AlertingConfig {
	margins := make(map[models.Channel]float64)
	for _, ch := range models.Channels {
		if ch == models.ChannelSpO2 {
			continue
		}
		key := "ALERT_CRITICAL_MARGIN_" + strings.ToUpper(string(ch))
		if m := getEnvAsFloat(key, 0); m != 0 {
			margins[ch] = m
		}
	}

	return AlertingConfig{
		CriticalMargins:  margins,
		CombinationRule:  getEnvAsBool("ALERT_COMBINATION_RULE", true),
		AutoInitOrgs:     getEnvAsBool("ALERT_AUTO_INIT_ORGS", true),
		BatchConcurrency: getEnvAsInt("ALERT_BATCH_CONCURRENCY", 8),
		SessionQueueSize: getEnvAsInt("WS_SESSION_QUEUE_SIZE", 256),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	duration, _ := time.ParseDuration(defaultValue)
	return duration
}

func (c *Config) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.Database,
		c.Database.SSLMode,
	)
}

func (c *Config) GetMQTTBroker() string {
	return fmt.Sprintf("tcp://%s:%d", c.MQTT.Broker, c.MQTT.Port)
}

func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

func (c *Config) Validate() error {
	var errors []string

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errors = append(errors, "SERVER_PORT must be between 1 and 65535")
	}

	if c.Database.Enabled() {
		if c.Database.Password == "" {
			errors = append(errors, "DB_PASSWORD cannot be empty")
		}
		if c.Database.Port < 1 || c.Database.Port > 65535 {
			errors = append(errors, "DB_PORT must be between 1 and 65535")
		}
	}

	if c.MQTT.Enabled() {
		if c.MQTT.Port < 1 || c.MQTT.Port > 65535 {
			errors = append(errors, "MQTT_PORT must be between 1 and 65535")
		}
		if c.MQTT.QoS > 2 {
			errors = append(errors, "MQTT_QOS must be 0, 1 or 2")
		}
		if c.MQTT.PublishAlerts && strings.Count(c.MQTT.AlertTopic, "%s") != 1 {
			errors = append(errors, "MQTT_ALERT_TOPIC must contain exactly one %s for the org id")
		}
	}

	if len(c.Security.JWTSecret) < 16 {
		errors = append(errors, "JWT_SECRET must be at least 16 characters")
	}
	if c.IsProduction() && c.Security.JWTSecret == defaultJWTSecret {
		errors = append(errors, "JWT_SECRET must be changed in production")
	}
	if c.Security.JWTExpiration <= 0 {
		errors = append(errors, "JWT_EXPIRATION must be positive")
	}

	for ch, m := range c.Alerting.CriticalMargins {
		if m < 0 {
			errors = append(errors, fmt.Sprintf("ALERT_CRITICAL_MARGIN_%s cannot be negative", strings.ToUpper(string(ch))))
		}
	}
	if c.Alerting.BatchConcurrency < 1 {
		errors = append(errors, "ALERT_BATCH_CONCURRENCY must be at least 1")
	}
	if c.Alerting.SessionQueueSize < 1 {
		errors = append(errors, "WS_SESSION_QUEUE_SIZE must be at least 1")
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errors, "\n  - "))
	}

	return nil
}

func (c *Config) Print() {
	fmt.Println("╔══════════════════════════════════════════════════════════╗")
	fmt.Println("║              WardWatch - Configuration                   ║")
	fmt.Println("╚══════════════════════════════════════════════════════════╝")
	fmt.Printf("Environment:     %s\n", c.Server.Environment)
	fmt.Printf("Server:          %s:%d\n", c.Server.Host, c.Server.Port)
	if c.Database.Enabled() {
		fmt.Printf("Database:        %s:%d/%s\n", c.Database.Host, c.Database.Port, c.Database.Database)
	} else {
		fmt.Println("Database:        in-memory")
	}
	if c.MQTT.Enabled() {
		fmt.Printf("MQTT Broker:     %s:%d (%s)\n", c.MQTT.Broker, c.MQTT.Port, c.MQTT.VitalsTopic)
	} else {
		fmt.Println("MQTT Broker:     disabled")
	}
	fmt.Printf("Critical margins: %v (combination rule: %t)\n", c.Alerting.CriticalMargins, c.Alerting.CombinationRule)
	fmt.Println("──────────────────────────────────────────────────────────")
}
