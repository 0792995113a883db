package config

import (
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// S3Config points at any S3-compatible store (AWS, R2, MinIO).
type S3Config struct {
	Endpoint        string
	AccountID       string // Cloudflare R2 account, used when Endpoint is empty
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	Region          string
	UsePathStyle    bool
	Timeout         time.Duration
}

type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

type Config struct {
	DB_URL        string
	Port          string
	JWTSecret     string
	Environment   string
	LogLevel      string
	FrontendURL   string
	MaxUploadSize int64
	CorsConfig    cors.Options
	S3            S3Config
	Google        GoogleConfig

	// EnvFile is the dotenv file consulted at startup; EnvFileLoaded reports
	// whether it was read. Logged by the commands once logging is configured.
	EnvFile       string
	EnvFileLoaded bool
}

var Envs = initConfig()

func initConfig() Config {
	envFile := os.Getenv("ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	loaded := godotenv.Load(envFile) == nil

	frontend := getEnv("FRONTEND_URL", "http://localhost:3000")

	return Config{
		DB_URL:        getEnv("DB_URL", ""),
		Port:          getEnv("PORT", "8080"),
		JWTSecret:     getEnv("JWT_SECRET", "not-so-secret-now-is-it?"),
		Environment:   getEnv("ENV", "development"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		FrontendURL:   frontend,
		MaxUploadSize: getEnvInt64("MAX_UPLOAD_MB", 100) << 20,
		CorsConfig:    CorsConfig(splitList(getEnv("ALLOWED_ORIGINS", frontend))),
		S3: S3Config{
			Endpoint:        getEnv("S3_ENDPOINT", ""),
			AccountID:       getEnv("R2_ACCOUNT_ID", ""),
			AccessKeyID:     getEnv("S3_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("S3_SECRET_ACCESS_KEY", ""),
			BucketName:      getEnv("S3_BUCKET", ""),
			Region:          getEnv("S3_REGION", "auto"),
			UsePathStyle:    getEnvBool("S3_USE_PATH_STYLE", true),
			Timeout:         getEnvDuration("S3_TIMEOUT", 60*time.Second),
		},
		Google: GoogleConfig{
			ClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
			ClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
			RedirectURL:  getEnv("GOOGLE_REDIRECT_URL", "http://localhost:8080/auth/google/callback"),
		},
		EnvFile:       envFile,
		EnvFileLoaded: loaded,
	}
}

func (c Config) IsProduction() bool {
	return c.Environment == "production"
}

// Validate reports settings the server cannot start without.
func (c Config) Validate() error {
	if c.DB_URL == "" {
		return fmt.Errorf("DB_URL is required")
	}
	if c.S3.BucketName == "" {
		return fmt.Errorf("S3_BUCKET is required")
	}
	if c.IsProduction() && c.JWTSecret == "not-so-secret-now-is-it?" {
		return fmt.Errorf("JWT_SECRET must be set in production")
	}
	return nil
}

// Gets the env by key or fallbacks
func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil || n <= 0 {
		log.Warn().Str("key", key).Str("value", value).Msg("invalid integer, using default")
		return fallback
	}
	return n
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		log.Warn().Str("key", key).Str("value", value).Msg("invalid boolean, using default")
		return fallback
	}
	return b
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		log.Warn().Str("key", key).Str("value", value).Msg("invalid duration, using default")
		return fallback
	}
	return d
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func CorsConfig(origins []string) cors.Options {
	return cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}
}

// LogEnvFile reports where settings came from. Call after SetupLogging.
func (c Config) LogEnvFile() {
	if c.EnvFileLoaded {
		log.Debug().Str("file", c.EnvFile).Msg("loaded env file")
		return
	}
	log.Debug().Str("file", c.EnvFile).Msg("no env file found, using process environment")
}

// SetupLogging configures the global zerolog logger. An empty override keeps cfg.LogLevel.
func SetupLogging(cfg Config, override string) {
	levelName := cfg.LogLevel
	if override != "" {
		levelName = override
	}
	level, err := zerolog.ParseLevel(levelName)
	if err != nil || levelName == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.IsProduction() {
		zerolog.TimeFieldFormat = time.RFC3339
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
		return
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
}
