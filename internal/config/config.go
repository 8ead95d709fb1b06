package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	AppEnv  string
	AppPort string
	DBDSN   string

	JWTAccessSecret  string
	JWTRefreshSecret string
	AccessTokenMin   int
	RefreshTokenMin  int

	CORSOrigin string

	RedisAddr     string
	RedisPassword string

	AMQPURL      string
	AMQPExchange string

	SMTPHost     string
	SMTPPort     string
	SMTPUser     string
	SMTPPassword string
	SMTPFrom     string

	RequireVerifiedEmail bool

	GoogleClientID  string
	GoogleSecret    string
	GoogleRedirect  string
	FrontendBaseURL string
}

func Load() Config {
	accessMin, _ := strconv.Atoi(get("ACCESS_TOKEN_EXPIRES_MIN", "15"))
	refreshMin, _ := strconv.Atoi(get("REFRESH_TOKEN_EXPIRES_MIN", "10080"))
	return Config{
		AppEnv:               get("APP_ENV", "development"),
		AppPort:              get("APP_PORT", "8080"),
		DBDSN:                must("DB_DSN"),
		JWTAccessSecret:      must("JWT_ACCESS_SECRET"),
		JWTRefreshSecret:     must("JWT_REFRESH_SECRET"),
		AccessTokenMin:       accessMin,
		RefreshTokenMin:      refreshMin,
		CORSOrigin:           get("CORS_ORIGIN", "http://localhost:3000"),
		RedisAddr:            get("REDIS_ADDR", ""),
		RedisPassword:        get("REDIS_PASSWORD", ""),
		AMQPURL:              get("AMQP_URL", ""),
		AMQPExchange:         get("AMQP_EXCHANGE", "orders"),
		SMTPHost:             get("SMTP_HOST", ""),
		SMTPPort:             get("SMTP_PORT", "587"),
		SMTPUser:             get("SMTP_USER", ""),
		SMTPPassword:         get("SMTP_PASSWORD", ""),
		SMTPFrom:             get("SMTP_FROM", "Marketplace <support@yourdomain.com>"),
		RequireVerifiedEmail: getBool("REQUIRE_VERIFIED_EMAIL", true),
		GoogleClientID:       get("GOOGLE_CLIENT_ID", ""),
		GoogleSecret:         get("GOOGLE_CLIENT_SECRET", ""),
		GoogleRedirect:       get("GOOGLE_REDIRECT_URL", ""),
		FrontendBaseURL:      get("FRONTEND_BASE_URL", "http://localhost:3000"),
	}
}

func (c Config) IsProduction() bool {
	return c.AppEnv == "production" || c.AppEnv == "prod"
}

func (c Config) AccessTTL() time.Duration {
	return time.Duration(c.AccessTokenMin) * time.Minute
}

func (c Config) RefreshTTL() time.Duration {
	return time.Duration(c.RefreshTokenMin) * time.Minute
}

func get(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}

func getBool(k string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func must(k string) string {
	v := os.Getenv(k)
	if v == "" {
		panic("missing env: " + k)
	}
	return v
}
