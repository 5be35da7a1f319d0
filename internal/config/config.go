package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
// The values are read by viper from a config file or environment variables.
type Config struct {
	AppName    string          `mapstructure:"APP_NAME"`
	AppVersion string          `mapstructure:"APP_VERSION"`
	Server     ServerConfig    `mapstructure:"SERVER"`
	Database   DatabaseConfig  `mapstructure:"DATABASE"`
	Redis      RedisConfig     `mapstructure:"REDIS"`
	Kafka      KafkaConfig     `mapstructure:"KAFKA"`
	Auth       AuthConfig      `mapstructure:"AUTH"`
	WebSocket  WebSocketConfig `mapstructure:"WEBSOCKET"`
	Chat       ChatConfig      `mapstructure:"CHAT"`
	CORS       CORSConfig      `mapstructure:"CORS"`
}

// ServerConfig holds configuration for the HTTP server.
type ServerConfig struct {
	Host           string        `mapstructure:"HOST"`
	Port           string        `mapstructure:"PORT"`
	WebSocketPath  string        `mapstructure:"WEBSOCKET_PATH"`
	ReadTimeout    time.Duration `mapstructure:"READ_TIMEOUT"`
	WriteTimeout   time.Duration `mapstructure:"WRITE_TIMEOUT"`
	MaxHeaderBytes int           `mapstructure:"MAX_HEADER_BYTES"`
}

// DatabaseConfig holds configuration for the database.
type DatabaseConfig struct {
	Type     string `mapstructure:"TYPE"`
	Host     string `mapstructure:"HOST"`
	Port     int    `mapstructure:"PORT"`
	User     string `mapstructure:"USER"`
	Password string `mapstructure:"PASSWORD"`
	DBName   string `mapstructure:"DB_NAME"`
	SSLMode  string `mapstructure:"SSL_MODE"`
}

// RedisConfig holds configuration for Redis.
type RedisConfig struct {
	Addr     string `mapstructure:"ADDR"`
	Password string `mapstructure:"PASSWORD"`
	DB       int    `mapstructure:"DB"`
}

// KafkaConfig holds configuration for the optional Kafka event mirror.
type KafkaConfig struct {
	Enabled      bool     `mapstructure:"ENABLED"`
	Brokers      []string `mapstructure:"BROKERS"`
	ClientID     string   `mapstructure:"CLIENT_ID"`
	EventsTopic  string   `mapstructure:"EVENTS_TOPIC"`  // outbound room-event journal
	NoticesTopic string   `mapstructure:"NOTICES_TOPIC"` // inbound operator notices
	ConsumerGroup string  `mapstructure:"CONSUMER_GROUP"`
	Protocol     string   `mapstructure:"PROTOCOL"`
}

// AuthConfig holds configuration for session tokens and credentials.
type AuthConfig struct {
	JWTSecretKey string        `mapstructure:"JWT_SECRET_KEY"`
	JWTExpiry    time.Duration `mapstructure:"JWT_EXPIRY"`
	// RequireIdentity forces accounts to carry an external identity link
	// before they may join; used during external-auth migrations.
	RequireIdentity bool `mapstructure:"REQUIRE_IDENTITY"`
}

// WebSocketConfig holds configuration for WebSocket connections.
type WebSocketConfig struct {
	WriteWaitSeconds    int `mapstructure:"WRITE_WAIT_SECONDS"`
	PongWaitSeconds     int `mapstructure:"PONG_WAIT_SECONDS"`
	PingPeriodSeconds   int `mapstructure:"PING_PERIOD_SECONDS"`
	MaxMessageSizeBytes int `mapstructure:"MAX_MESSAGE_SIZE_BYTES"`
}

// ChatConfig holds tunables for the chat engine itself.
type ChatConfig struct {
	// GracePeriod is how long a disconnect waits before the user is treated
	// as gone, so a page refresh does not flicker between left and joined.
	GracePeriod time.Duration `mapstructure:"GRACE_PERIOD"`
	// SweepInterval is how often the inactivity sweep runs.
	SweepInterval time.Duration `mapstructure:"SWEEP_INTERVAL"`
	// IdleAfter is how long without activity before a user goes Inactive.
	IdleAfter time.Duration `mapstructure:"IDLE_AFTER"`
	// RoomSnapshotMessages is the recent-message window in room snapshots.
	RoomSnapshotMessages int `mapstructure:"ROOM_SNAPSHOT_MESSAGES"`
	// HistoryMessages is the page size for message history queries.
	HistoryMessages int `mapstructure:"HISTORY_MESSAGES"`
	// ProviderTimeout bounds a single content-provider fetch.
	ProviderTimeout time.Duration `mapstructure:"PROVIDER_TIMEOUT"`
}

// CORSConfig holds configuration for CORS on the API routes.
type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"ALLOWED_ORIGINS"`
	AllowedMethods   []string `mapstructure:"ALLOWED_METHODS"`
	AllowedHeaders   []string `mapstructure:"ALLOWED_HEADERS"`
	AllowCredentials bool     `mapstructure:"ALLOW_CREDENTIALS"`
	MaxAge           int      `mapstructure:"MAX_AGE"`
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(path string) (config Config, err error) {
	v := viper.New()

	v.SetDefault("APP_NAME", "Banter")
	v.SetDefault("APP_VERSION", "1.0.0")

	v.SetDefault("SERVER.HOST", "0.0.0.0")
	v.SetDefault("SERVER.PORT", "8080")
	v.SetDefault("SERVER.WEBSOCKET_PATH", "/ws")
	v.SetDefault("SERVER.READ_TIMEOUT", 30*time.Second)
	v.SetDefault("SERVER.WRITE_TIMEOUT", 30*time.Second)
	v.SetDefault("SERVER.MAX_HEADER_BYTES", 1<<20)

	v.SetDefault("DATABASE.TYPE", "postgres")
	v.SetDefault("DATABASE.HOST", "localhost")
	v.SetDefault("DATABASE.PORT", 5432)
	v.SetDefault("DATABASE.USER", "postgres")
	v.SetDefault("DATABASE.PASSWORD", "password")
	v.SetDefault("DATABASE.DB_NAME", "banter")
	v.SetDefault("DATABASE.SSL_MODE", "disable")

	v.SetDefault("REDIS.ADDR", "localhost:6379")
	v.SetDefault("REDIS.PASSWORD", "")
	v.SetDefault("REDIS.DB", 0)

	v.SetDefault("KAFKA.ENABLED", false)
	v.SetDefault("KAFKA.BROKERS", []string{"localhost:9092"})
	v.SetDefault("KAFKA.CLIENT_ID", "banter")
	v.SetDefault("KAFKA.EVENTS_TOPIC", "banter-room-events")
	v.SetDefault("KAFKA.NOTICES_TOPIC", "banter-notices")
	v.SetDefault("KAFKA.CONSUMER_GROUP", "banter-chat-server")
	v.SetDefault("KAFKA.PROTOCOL", "plaintext")

	v.SetDefault("AUTH.JWT_SECRET_KEY", "a_very_secret_key_that_should_be_changed")
	v.SetDefault("AUTH.JWT_EXPIRY", 30*24*time.Hour)
	v.SetDefault("AUTH.REQUIRE_IDENTITY", false)

	v.SetDefault("WEBSOCKET.WRITE_WAIT_SECONDS", 10)
	v.SetDefault("WEBSOCKET.PONG_WAIT_SECONDS", 60)
	v.SetDefault("WEBSOCKET.PING_PERIOD_SECONDS", 54) // (60 * 9) / 10
	v.SetDefault("WEBSOCKET.MAX_MESSAGE_SIZE_BYTES", 4096)

	v.SetDefault("CHAT.GRACE_PERIOD", 500*time.Millisecond)
	v.SetDefault("CHAT.SWEEP_INTERVAL", time.Minute)
	v.SetDefault("CHAT.IDLE_AFTER", 15*time.Minute)
	v.SetDefault("CHAT.ROOM_SNAPSHOT_MESSAGES", 30)
	v.SetDefault("CHAT.HISTORY_MESSAGES", 100)
	v.SetDefault("CHAT.PROVIDER_TIMEOUT", 10*time.Second)

	v.SetDefault("CORS.ALLOWED_ORIGINS", []string{"http://localhost:5173"})
	v.SetDefault("CORS.ALLOWED_METHODS", []string{"GET", "POST", "OPTIONS"})
	v.SetDefault("CORS.ALLOWED_HEADERS", []string{"Accept", "Authorization", "Content-Type"})
	v.SetDefault("CORS.ALLOW_CREDENTIALS", true)
	v.SetDefault("CORS.MAX_AGE", 300)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err = v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return
		}
		// No config file is fine; defaults and environment cover everything.
		err = nil
	}

	err = v.Unmarshal(&config)
	return
}
