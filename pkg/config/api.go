package config

import "time"

// APIConfig holds runtime configuration for the API service.
type APIConfig struct {
	Environment        string
	Addr               string
	DatabaseURL        string
	MigrationsDir      string
	JWTSecret          string
	AccessTokenTTL     time.Duration
	RunnerURL          string
	RunnerAuthToken    string
	RunnerCallTimeout  time.Duration
	RateLimitRedisAddr string
	RateLimitRedisPass string
	RateLimitRedisDB   int
	StorageEndpoint    string
	StorageBucket      string
	StorageRegion      string
	StorageAccessKey   string
	StorageSecretKey   string
	StoragePathStyle   bool
}

// LoadAPIConfig constructs an APIConfig from environment variables.
func LoadAPIConfig() APIConfig {
	return APIConfig{
		Environment:        GetString("APP_ENV", "development"),
		Addr:               GetString("API_ADDR", ":4000"),
		DatabaseURL:        GetString("DATABASE_URL", "postgres://vehosts:vehosts@db:5432/vehosts?sslmode=disable"),
		MigrationsDir:      GetString("DB_MIGRATIONS_DIR", "./db/migrations"),
		JWTSecret:          GetString("JWT_SECRET", "supersecuresecret"),
		AccessTokenTTL:     time.Duration(GetInt("ACCESS_TOKEN_TTL_MIN", 60)) * time.Minute,
		RunnerURL:          GetString("RUNNER_URL", "http://runner:5000"),
		RunnerAuthToken:    GetString("RUNNER_AUTH_TOKEN", ""),
		RunnerCallTimeout:  GetSeconds("RUNNER_CALL_TIMEOUT_SECONDS", 120),
		RateLimitRedisAddr: GetString("RATE_LIMIT_REDIS_ADDR", ""),
		RateLimitRedisPass: GetString("RATE_LIMIT_REDIS_PASSWORD", ""),
		RateLimitRedisDB:   GetInt("RATE_LIMIT_REDIS_DB", 0),
		StorageEndpoint:    GetString("STORAGE_ENDPOINT", ""),
		StorageBucket:      GetString("STORAGE_BUCKET", "project-files"),
		StorageRegion:      GetString("STORAGE_REGION", "us-east-1"),
		StorageAccessKey:   GetString("STORAGE_ACCESS_KEY_ID", ""),
		StorageSecretKey:   GetString("STORAGE_SECRET_ACCESS_KEY", ""),
		StoragePathStyle:   GetBool("STORAGE_FORCE_PATH_STYLE", true),
	}
}
