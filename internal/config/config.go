package config

import (
	"os"
	"strconv"
	"time"

	"cucumber_hub/internal/logger"

	"github.com/joho/godotenv"
)

// Config настройки процесса, читаются из окружения (и .env, если он есть)
type Config struct {
	AppPort string

	// пустой RedisAddr = хранилище и публикация в памяти процесса (один инстанс)
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// пустой DatabaseURL = журнал ходов отключен
	DatabaseURL string

	JWTSecret         string
	FirebaseProjectID string
	FirebaseAPIKey    string
	TelegramBotToken  string

	StoreTimeout   time.Duration
	PublishTimeout time.Duration
	RoomArchiveTTL time.Duration

	RateLimitPerMinute int
	AllowedOrigin      string

	LogLevel  string
	LogFormat string
}

const (
	defaultPort           = "8080"
	defaultStoreTimeout   = 2 * time.Second
	defaultPublishTimeout = time.Second
	defaultArchiveTTL     = 24 * time.Hour
	defaultRateLimit      = 120
)

// Load загружает .env (если файла нет - не страшно) и собирает Config
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		AppPort:            getEnv("APP_PORT", defaultPort),
		RedisAddr:          os.Getenv("REDIS_ADDR"),
		RedisPassword:      os.Getenv("REDIS_PASSWORD"),
		RedisDB:            getInt("REDIS_DB", 0),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		JWTSecret:          os.Getenv("JWT_SECRET"),
		FirebaseProjectID:  os.Getenv("FIREBASE_PROJECT_ID"),
		FirebaseAPIKey:     os.Getenv("FIREBASE_API_KEY"),
		TelegramBotToken:   os.Getenv("TELEGRAM_BOT_TOKEN"),
		StoreTimeout:       getDuration("STORE_TIMEOUT", defaultStoreTimeout),
		PublishTimeout:     getDuration("PUBLISH_TIMEOUT", defaultPublishTimeout),
		RoomArchiveTTL:     getDuration("ROOM_ARCHIVE_TTL", defaultArchiveTTL),
		RateLimitPerMinute: getInt("RATE_LIMIT_PER_MINUTE", defaultRateLimit),
		AllowedOrigin:      os.Getenv("ALLOWED_ORIGIN"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		LogFormat:          os.Getenv("LOG_FORMAT"),
	}
}

// UseRedis включен ли режим нескольких инстансов через Redis
func (c *Config) UseRedis() bool {
	return c.RedisAddr != ""
}

// UseTelegram принимать init data Telegram WebApp как токен участника
func (c *Config) UseTelegram() bool {
	return c.TelegramBotToken != ""
}

// UseFirebase проверять токены через Firebase вместо собственного JWT
func (c *Config) UseFirebase() bool {
	return c.FirebaseProjectID != ""
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		logger.Warn("config: неверное целое значение, используем значение по умолчанию", "key", key, "value", raw, "default", def)
		return def
	}
	return v
}

func getDuration(key string, def time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	v, err := time.ParseDuration(raw)
	if err != nil || v <= 0 {
		logger.Warn("config: неверная длительность, используем значение по умолчанию", "key", key, "value", raw, "default", def)
		return def
	}
	return v
}
