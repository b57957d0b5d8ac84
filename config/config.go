package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreBackendPostgres = "postgres"
	StoreBackendMemory   = "memory"
)

type Config struct {
	AppPort      string
	AppMode      string
	LogMode      string
	StoreBackend string

	DBHost     string
	DBUser     string
	DBPassword string
	DBName     string
	DBPort     string
	DBMaxConns int

	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	JWTSecret string

	S3Region       string
	S3Bucket       string
	S3AccessKey    string
	S3SecretKey    string
	S3Endpoint     string
	S3PublicBase   string
	ThumbnailBase  string
	MaxUploadBytes int64
	MaxAttachments int

	TypingTimeout     time.Duration
	PresenceWindow    time.Duration
	HeartbeatInterval time.Duration

	OutboxInterval   time.Duration
	OutboxBatchSize  int
	OutboxMaxRetries int

	MessageRateLimit  int
	MessageRateWindow time.Duration
	SocketFrameRPS    float64
	SocketFrameBurst  int
}

func LoadConfig() *Config {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	return &Config{
		AppPort:      getEnv("APP_PORT", "8080"),
		AppMode:      getEnv("APP_MODE", "debug"),
		LogMode:      getEnv("LOG_MODE", "development"),
		StoreBackend: getEnv("STORE_BACKEND", StoreBackendPostgres),

		DBHost:     getEnv("DB_HOST", "localhost"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", "postgres"),
		DBName:     getEnv("DB_NAME", "parley"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBMaxConns: getEnvAsInt("DB_MAX_CONNS", 20),

		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		JWTSecret: getEnv("JWT_SECRET", "change-me"),

		S3Region:       getEnv("S3_REGION", ""),
		S3Bucket:       getEnv("S3_BUCKET", ""),
		S3AccessKey:    getEnv("S3_ACCESS_KEY", ""),
		S3SecretKey:    getEnv("S3_SECRET_KEY", ""),
		S3Endpoint:     getEnv("S3_ENDPOINT", ""),
		S3PublicBase:   getEnv("S3_PUBLIC_BASE", ""),
		ThumbnailBase:  getEnv("THUMBNAIL_BASE", ""),
		MaxUploadBytes: int64(getEnvAsInt("MAX_UPLOAD_BYTES", 25<<20)),
		MaxAttachments: getEnvAsInt("MAX_ATTACHMENTS", 10),

		TypingTimeout:     getEnvAsDuration("TYPING_TIMEOUT", 5*time.Second),
		PresenceWindow:    getEnvAsDuration("PRESENCE_WINDOW", 5*time.Minute),
		HeartbeatInterval: getEnvAsDuration("HEARTBEAT_INTERVAL", 60*time.Second),

		OutboxInterval:   getEnvAsDuration("OUTBOX_INTERVAL", 100*time.Millisecond),
		OutboxBatchSize:  getEnvAsInt("OUTBOX_BATCH_SIZE", 100),
		OutboxMaxRetries: getEnvAsInt("OUTBOX_MAX_RETRIES", 10),

		MessageRateLimit:  getEnvAsInt("MESSAGE_RATE_LIMIT", 60),
		MessageRateWindow: getEnvAsDuration("MESSAGE_RATE_WINDOW", time.Minute),
		SocketFrameRPS:    getEnvAsFloat("SOCKET_FRAME_RPS", 20),
		SocketFrameBurst:  getEnvAsInt("SOCKET_FRAME_BURST", 40),
	}
}

// DatabaseURL builds the pgx connection string.
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable&pool_max_conns=%d",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBMaxConns)
}

func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%s", c.RedisHost, c.RedisPort)
}

// S3Enabled reports whether enough S3 settings are present to build a client.
func (c *Config) S3Enabled() bool {
	return c.S3Region != "" && c.S3Bucket != ""
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return fallback
}
