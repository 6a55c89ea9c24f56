package config

import (
	"errors"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// JWTConfig defines issuer/secret pair for auth verification.
type JWTConfig struct {
	Issuer string
	Secret []byte
}

// Collections names every Mongo collection the service touches.
type Collections struct {
	Surveys             string
	Questions           string
	Approvals           string
	Users               string
	Categories          string
	FailedNotifications string
}

// MessengerConfig configures the messenger gateway notifier.
type MessengerConfig struct {
	Endpoint             string
	ModeratorDestination string
	AuthorDestination    string
	AudienceDestination  string
	ModeratorUserID      string
	AdminBaseURL         string
	Timeout              time.Duration
	Attempts             int
	RetryDelay           time.Duration
}

// StorageConfig configures S3-compatible media storage. An empty bucket disables uploads.
type StorageConfig struct {
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	BasePath        string
	ForcePathStyle  bool
	PresignExpiry   time.Duration
}

// CacheConfig configures the Redis detail cache. An empty address disables caching.
type CacheConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// Config holds runtime configuration shared across the application.
type Config struct {
	Addr           string
	MongoURI       string
	MongoDatabase  string
	Collections    Collections
	Timeout        time.Duration
	ServerLog      *log.Logger
	JWTConfigs     []JWTConfig
	JWTAudience    string
	Messenger      MessengerConfig
	Storage        StorageConfig
	Cache          CacheConfig
	WriteRateLimit float64
	WriteBurst     int
	BrandName      string
	AllowedOrigins []string
}

// Load reads .env (when present) and environment variables. Missing
// mandatory settings stop the process.
func Load() Config {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf(".env の読み込みに失敗しました: %v", err)
	}
	cfg, err := FromEnv()
	if err != nil {
		log.Fatal(err)
	}
	cfg.ServerLog.Printf("loaded config: db=%q messengerEndpoint=%q bucket=%q redis=%q",
		cfg.MongoDatabase, cfg.Messenger.Endpoint, cfg.Storage.Bucket, cfg.Cache.Addr)
	return cfg
}

// FromEnv builds a Config from the current environment.
func FromEnv() (Config, error) {
	var jwtConfigs []JWTConfig
	if secret := strings.TrimSpace(os.Getenv("AUTH_JWT_SECRET")); secret != "" {
		jwtConfigs = append(jwtConfigs, JWTConfig{
			Issuer: envOrDefault("AUTH_JWT_ISSUER", "wellnest-auth"),
			Secret: []byte(secret),
		})
	}
	if secret := strings.TrimSpace(os.Getenv("AUTH_ADMIN_JWT_SECRET")); secret != "" {
		jwtConfigs = append(jwtConfigs, JWTConfig{
			Issuer: envOrDefault("AUTH_ADMIN_JWT_ISSUER", "wellnest-admin"),
			Secret: []byte(secret),
		})
	}
	if len(jwtConfigs) == 0 {
		return Config{}, errors.New("JWT secrets not configured: set AUTH_JWT_SECRET or AUTH_ADMIN_JWT_SECRET")
	}

	messengerEndpoint := strings.TrimRight(strings.TrimSpace(os.Getenv("MESSENGER_GATEWAY_URL")), "/")

	cfg := Config{
		Addr:          envOrDefault("HTTP_ADDR", ":8080"),
		MongoURI:      envOrDefault("MONGO_URI", "mongodb://mongo:27017"),
		MongoDatabase: envOrDefault("MONGO_DB", "wellnest"),
		Collections: Collections{
			Surveys:             envOrDefault("SURVEY_COLLECTION", "surveys"),
			Questions:           envOrDefault("QUESTION_COLLECTION", "questions"),
			Approvals:           envOrDefault("APPROVAL_COLLECTION", "content_approvals"),
			Users:               envOrDefault("USER_COLLECTION", "users"),
			Categories:          envOrDefault("CATEGORY_COLLECTION", "categories"),
			FailedNotifications: envOrDefault("FAILED_NOTIFICATION_COLLECTION", "failed_notifications"),
		},
		Timeout:     parseDuration("MONGO_CONNECT_TIMEOUT", 10*time.Second),
		ServerLog:   log.New(os.Stdout, "[survey-api] ", log.LstdFlags|log.Lshortfile),
		JWTConfigs:  jwtConfigs,
		JWTAudience: strings.TrimSpace(os.Getenv("AUTH_JWT_AUDIENCE")),
		Messenger: MessengerConfig{
			Endpoint:             messengerEndpoint,
			ModeratorDestination: envOrDefault("MESSENGER_MODERATOR_DESTINATION", "slack"),
			AuthorDestination:    envOrDefault("MESSENGER_AUTHOR_DESTINATION", "email"),
			AudienceDestination:  envOrDefault("MESSENGER_AUDIENCE_DESTINATION", "push"),
			ModeratorUserID:      envOrDefault("MESSENGER_MODERATOR_USER_ID", "moderators"),
			AdminBaseURL:         strings.TrimRight(strings.TrimSpace(os.Getenv("ADMIN_BASE_URL")), "/"),
			Timeout:              parseDuration("MESSENGER_GATEWAY_TIMEOUT", 3*time.Second),
			Attempts:             parseInt("MESSENGER_ATTEMPTS", 1),
			RetryDelay:           parseDuration("MESSENGER_RETRY_DELAY", time.Second),
		},
		Storage: StorageConfig{
			Endpoint:        strings.TrimSpace(os.Getenv("S3_ENDPOINT")),
			Region:          envOrDefault("S3_REGION", "auto"),
			AccessKeyID:     strings.TrimSpace(os.Getenv("S3_ACCESS_KEY_ID")),
			SecretAccessKey: strings.TrimSpace(os.Getenv("S3_SECRET_ACCESS_KEY")),
			Bucket:          strings.TrimSpace(os.Getenv("S3_BUCKET")),
			BasePath:        strings.Trim(strings.TrimSpace(os.Getenv("S3_BASE_PATH")), "/"),
			ForcePathStyle:  strings.EqualFold(strings.TrimSpace(os.Getenv("S3_FORCE_PATH_STYLE")), "true"),
			PresignExpiry:   parseDuration("S3_PRESIGN_EXPIRY", 15*time.Minute),
		},
		Cache: CacheConfig{
			Addr:     strings.TrimSpace(os.Getenv("REDIS_ADDR")),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       parseInt("REDIS_DB", 0),
			TTL:      parseDuration("SURVEY_CACHE_TTL", 5*time.Minute),
		},
		WriteRateLimit: parseFloat("WRITE_RATE_LIMIT", 5),
		WriteBurst:     parseInt("WRITE_RATE_BURST", 10),
		BrandName:      envOrDefault("BRAND_NAME", "Wellnest"),
		AllowedOrigins: parseList("API_ALLOWED_ORIGINS", []string{"*"}),
	}
	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseDuration(key string, fallback time.Duration) time.Duration {
	if raw := strings.TrimSpace(os.Getenv(key)); raw != "" {
		if parsed, err := time.ParseDuration(raw); err == nil {
			return parsed
		}
	}
	return fallback
}

func parseInt(key string, fallback int) int {
	if raw := strings.TrimSpace(os.Getenv(key)); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			return parsed
		}
	}
	return fallback
}

func parseFloat(key string, fallback float64) float64 {
	if raw := strings.TrimSpace(os.Getenv(key)); raw != "" {
		if parsed, err := strconv.ParseFloat(raw, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func parseList(key string, fallback []string) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	parts := strings.Split(raw, ",")
	values := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			values = append(values, part)
		}
	}

	if len(values) == 0 {
		return fallback
	}
	return values
}
