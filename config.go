package main

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/AtharvaShastrakar/orangeChat/modules/auth"
)

// config is the process configuration, read from the environment after an
// optional .env file.
type config struct {
	Port            string
	DBPath          string
	DBDebug         bool
	AuthDBPath      string
	CORSOrigins     string
	JWT             auth.JWTConfig
	PublicURL       string
	Mailer          string
	SMTP            auth.SMTPMailer
	RedisAddr       string
	RedisPassword   string
	CacheTTL        time.Duration
	RateLimit       int
	ShutdownTimeout time.Duration
}

func loadConfig() config {
	// A missing .env file is normal outside local development.
	_ = godotenv.Load()

	jwt := auth.DefaultJWTConfig()
	jwt.SecretKey = getEnv("JWT_SECRET_KEY", jwt.SecretKey)
	jwt.Issuer = getEnv("JWT_ISSUER", jwt.Issuer)

	return config{
		Port:            getEnv("PORT", "3000"),
		DBPath:          getEnv("DB_PATH", "orangechat.db"),
		DBDebug:         getEnvBool("DB_DEBUG", false),
		AuthDBPath:      getEnv("AUTH_DB_PATH", "orangechat-auth.db"),
		CORSOrigins:     getEnv("CORS_ALLOWED_ORIGINS", ""),
		JWT:             jwt,
		PublicURL:       getEnv("PUBLIC_URL", ""),
		Mailer:          getEnv("MAILER", "log"),
		RedisAddr:       getEnv("REDIS_ADDR", ""),
		RedisPassword:   getEnv("REDIS_PASSWORD", ""),
		CacheTTL:        getEnvDuration("CACHE_TTL", 5*time.Minute),
		RateLimit:       getEnvInt("RATE_LIMIT", 100),
		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
		SMTP: auth.SMTPMailer{
			Addr:     getEnv("SMTP_ADDR", "localhost:25"),
			From:     getEnv("SMTP_FROM", "no-reply@orangechat.local"),
			Username: getEnv("SMTP_USERNAME", ""),
			Password: getEnv("SMTP_PASSWORD", ""),
		},
	}
}

// mailer picks the verification mailer. Links point at PublicURL, or at the
// local listener when it is unset.
func (c config) mailer() auth.Mailer {
	base := c.PublicURL
	if base == "" {
		base = "http://localhost:" + c.Port
	}
	if c.Mailer == "smtp" {
		m := c.SMTP
		m.BaseURL = base
		return m
	}
	log.Println("MAILER is not smtp: verification links are written to the log")
	return auth.LogMailer{BaseURL: base}
}

// getEnv returns the environment variable value or a default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return v
}

func getEnvInt(key string, defaultValue int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil || v <= 0 {
		return defaultValue
	}
	return v
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	v, err := time.ParseDuration(os.Getenv(key))
	if err != nil || v <= 0 {
		return defaultValue
	}
	return v
}
