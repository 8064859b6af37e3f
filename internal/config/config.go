package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// MinSecretKeyLength is the minimum accepted size of SECRET_KEY in bytes
const MinSecretKeyLength = 32

// Config holds all configuration for the application
type Config struct {
	// Database
	DatabaseURL string

	// Auth
	Auth AuthConfig

	// Server
	Port        string
	CORSOrigins []string
	Env         string
	LogLevel    string

	// Rate limiting for /token and /register (requests per minute per client IP)
	LoginRateLimit int
	LoginBurst     int

	// Proxies (CIDRs or addresses) whose X-Forwarded-For is trusted. Empty
	// means the peer address is the client IP.
	TrustedProxies []string

	// Export/import
	ExportDir      string
	MaxImportBytes int64

	// S3 Storage
	S3 S3Config
}

// AuthConfig holds token signing and password hashing settings
type AuthConfig struct {
	SecretKey         string
	Algorithm         string
	Issuer            string
	Audience          string
	AccessTokenExpiry time.Duration
	BcryptCost        int
}

// S3Config holds AWS S3 configuration
type S3Config struct {
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	Endpoint        string // Optional: for MinIO/LocalStack local dev
	PresignExpiry   time.Duration
}

// Enabled reports whether a bucket is configured for remote export links
func (s S3Config) Enabled() bool {
	return s.Bucket != ""
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	expiryMinutes, err := getEnvInt("ACCESS_TOKEN_EXPIRE_MINUTES", 30)
	if err != nil {
		return nil, err
	}
	bcryptCost, err := getEnvInt("BCRYPT_COST", 10)
	if err != nil {
		return nil, err
	}
	loginRate, err := getEnvInt("LOGIN_RATE_LIMIT", 20)
	if err != nil {
		return nil, err
	}
	loginBurst, err := getEnvInt("LOGIN_BURST", 5)
	if err != nil {
		return nil, err
	}
	maxImportMB, err := getEnvInt("MAX_IMPORT_MB", 10)
	if err != nil {
		return nil, err
	}
	presignMinutes, err := getEnvInt("S3_PRESIGN_EXPIRY_MINUTES", 15)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		DatabaseURL: getEnv("DATABASE_URL", ""),
		Auth: AuthConfig{
			SecretKey:         getEnv("SECRET_KEY", ""),
			Algorithm:         getEnv("TOKEN_ALGORITHM", "HS256"),
			Issuer:            getEnv("TOKEN_ISSUER", "ledgerly"),
			Audience:          getEnv("TOKEN_AUDIENCE", "ledgerly-api"),
			AccessTokenExpiry: time.Duration(expiryMinutes) * time.Minute,
			BcryptCost:        bcryptCost,
		},
		Port:           getEnv("PORT", "8080"),
		CORSOrigins:    strings.Split(getEnv("CORS_ORIGINS", "http://localhost:3000"), ","),
		TrustedProxies: getEnvList("TRUSTED_PROXIES"),
		Env:            getEnv("ENV", "development"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LoginRateLimit: loginRate,
		LoginBurst:     loginBurst,
		ExportDir:      getEnv("EXPORT_DIR", filepath.Join(os.TempDir(), "ledgerly-exports")),
		MaxImportBytes: int64(maxImportMB) << 20,
		S3: S3Config{
			Region:          getEnv("S3_REGION", "us-east-1"),
			Bucket:          getEnv("S3_BUCKET", ""), // Empty = remote export links disabled
			AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
			Endpoint:        getEnv("S3_ENDPOINT", ""), // Empty = use AWS, set for MinIO/LocalStack
			PresignExpiry:   time.Duration(presignMinutes) * time.Minute,
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// IsProduction reports whether the service runs with ENV=production
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func (c *Config) validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.Auth.SecretKey == "" {
		return fmt.Errorf("SECRET_KEY is required")
	}
	if len(c.Auth.SecretKey) < MinSecretKeyLength {
		return fmt.Errorf("SECRET_KEY must be at least %d bytes", MinSecretKeyLength)
	}
	if c.Auth.Algorithm != "HS256" {
		return fmt.Errorf("TOKEN_ALGORITHM %q is not supported, use HS256", c.Auth.Algorithm)
	}
	if c.Auth.AccessTokenExpiry <= 0 {
		return fmt.Errorf("ACCESS_TOKEN_EXPIRE_MINUTES must be positive")
	}
	if c.LoginRateLimit <= 0 || c.LoginBurst <= 0 {
		return fmt.Errorf("LOGIN_RATE_LIMIT and LOGIN_BURST must be positive")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvList splits a comma-separated variable, dropping empty entries
func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return n, nil
}
