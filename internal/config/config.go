package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config is the full gateway configuration, assembled from defaults, an
// optional .env file and environment variables.
type Config struct {
	Service  ServiceConfig
	Log      LogConfig
	MQTT     MQTTConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Influx   InfluxConfig
	Webhook  WebhookConfig
	AlarmLog AlarmLogConfig
	CORS     CORSConfig
}

type ServiceConfig struct {
	Name     string
	HTTPAddr string
}

type LogConfig struct {
	Level  string
	Format string
}

type MQTTConfig struct {
	Broker   string
	ClientID string
	Username string
	Password string
	Topic    string
	QoS      byte
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int
	MaxIdle  int
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// InfluxConfig drives the optional reading-history writer; the feature is
// off unless URL and Token are both set.
type InfluxConfig struct {
	URL    string
	Token  string
	Org    string
	Bucket string
}

// WebhookConfig drives the optional critical-alert notifier; off unless URL
// is set.
type WebhookConfig struct {
	URL string
}

type AlarmLogConfig struct {
	MemoryCap int
}

type CORSConfig struct {
	AllowedOrigins []string
}

// DSN renders the PostgreSQL connection string.
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// Enabled reports whether a Redis mirror is configured.
func (c *RedisConfig) Enabled() bool { return c.Addr != "" }

// Enabled reports whether the history writer is configured.
func (c *InfluxConfig) Enabled() bool { return c.URL != "" && c.Token != "" }

// Enabled reports whether the alert webhook is configured.
func (c *WebhookConfig) Enabled() bool { return c.URL != "" }

// Load builds the configuration. A .env file in the working directory is
// honored when present; real environment variables win over it.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Service: ServiceConfig{
			Name:     "subtronic-gateway",
			HTTPAddr: ":8080",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		MQTT: MQTTConfig{
			Broker:   "tcp://localhost:1883",
			ClientID: "subtronic-gateway",
			Topic:    "otsm/devices/telemetry",
			QoS:      1,
		},
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "postgres",
			Database: "subtronic",
			SSLMode:  "disable",
			MaxConns: 10,
			MaxIdle:  5,
		},
		AlarmLog: AlarmLogConfig{
			MemoryCap: 1000,
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{"*"},
		},
	}

	cfg.loadFromEnv()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFromEnv() {
	setString(&c.Service.HTTPAddr, "HTTP_ADDR")
	setString(&c.Log.Level, "LOG_LEVEL")
	setString(&c.Log.Format, "LOG_FORMAT")

	setString(&c.MQTT.Broker, "MQTT_BROKER")
	setString(&c.MQTT.ClientID, "MQTT_CLIENT_ID")
	setString(&c.MQTT.Username, "MQTT_USERNAME")
	setString(&c.MQTT.Password, "MQTT_PASSWORD")
	setString(&c.MQTT.Topic, "MQTT_TOPIC")
	if qos, ok := lookupInt("MQTT_QOS"); ok && qos >= 0 && qos <= 2 {
		c.MQTT.QoS = byte(qos)
	}

	setString(&c.Database.Host, "DB_HOST")
	setInt(&c.Database.Port, "DB_PORT")
	setString(&c.Database.User, "DB_USER")
	setString(&c.Database.Password, "DB_PASSWORD")
	setString(&c.Database.Database, "DB_DATABASE")
	setString(&c.Database.SSLMode, "DB_SSLMODE")
	setInt(&c.Database.MaxConns, "DB_MAX_CONNS")
	setInt(&c.Database.MaxIdle, "DB_MAX_IDLE")

	setString(&c.Redis.Addr, "REDIS_ADDR")
	setString(&c.Redis.Password, "REDIS_PASSWORD")
	setInt(&c.Redis.DB, "REDIS_DB")

	setString(&c.Influx.URL, "INFLUX_URL")
	setString(&c.Influx.Token, "INFLUX_TOKEN")
	setString(&c.Influx.Org, "INFLUX_ORG")
	setString(&c.Influx.Bucket, "INFLUX_BUCKET")

	setString(&c.Webhook.URL, "ALERT_WEBHOOK_URL")

	setInt(&c.AlarmLog.MemoryCap, "ALARM_LOG_MEMORY_CAP")

	if origins := os.Getenv("CORS_ALLOWED_ORIGINS"); origins != "" {
		parts := strings.Split(origins, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		c.CORS.AllowedOrigins = parts
	}
}

func (c *Config) validate() error {
	if c.MQTT.Broker == "" {
		return fmt.Errorf("MQTT broker address is required")
	}
	if c.MQTT.Topic == "" {
		return fmt.Errorf("MQTT topic is required")
	}
	if c.Service.HTTPAddr == "" {
		return fmt.Errorf("HTTP listen address is required")
	}
	if c.AlarmLog.MemoryCap <= 0 {
		return fmt.Errorf("alarm log memory cap must be positive")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v, ok := lookupInt(key); ok {
		*dst = v
	}
}

func lookupInt(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return i, true
}
