package config

import "time"

// APIConfig holds runtime configuration for the API service.
type APIConfig struct {
	Environment        string
	LogLevel           string
	Addr               string
	DatabaseURL        string
	MigrationsDir      string
	AutoMigrate        bool
	DefaultServerName  string
	SampleRetention    time.Duration
	LiveChannelPrefix  string
	RedisAddr          string
	RedisPassword      string
	RedisDB            int
	RateLimitRedisAddr string
	RateLimitRedisPass string
	RateLimitRedisDB   int
	CORSOrigins        []string
}

// LoadAPIConfig constructs an APIConfig from environment variables.
func LoadAPIConfig() APIConfig {
	return APIConfig{
		Environment:        GetString("APP_ENV", "development"),
		LogLevel:           GetString("LOG_LEVEL", "info"),
		Addr:               GetString("API_ADDR", ":4000"),
		DatabaseURL:        GetString("DATABASE_URL", "postgres://craftdeck:craftdeck@db:5432/craftdeck?sslmode=disable"),
		MigrationsDir:      GetString("DB_MIGRATIONS_DIR", "db/migrations"),
		AutoMigrate:        GetBool("AUTO_MIGRATE", true),
		DefaultServerName:  GetString("DEFAULT_SERVER_NAME", "survival"),
		SampleRetention:    GetDuration("SAMPLE_RETENTION", 24*time.Hour),
		LiveChannelPrefix:  GetString("LIVE_CHANNEL_PREFIX", "craftdeck:live:"),
		RedisAddr:          GetString("REDIS_ADDR", ""),
		RedisPassword:      GetString("REDIS_PASSWORD", ""),
		RedisDB:            GetInt("REDIS_DB", 0),
		RateLimitRedisAddr: GetString("RATE_LIMIT_REDIS_ADDR", ""),
		RateLimitRedisPass: GetString("RATE_LIMIT_REDIS_PASSWORD", ""),
		RateLimitRedisDB:   GetInt("RATE_LIMIT_REDIS_DB", 0),
		CORSOrigins:        []string{GetString("CORS_ORIGIN", "*")},
	}
}
