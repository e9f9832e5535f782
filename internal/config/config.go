package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Port                      string
	AllowedOrigin             string
	DatabaseURL               string
	SQLitePath                string
	RedisAddr                 string
	RedisPassword             string
	RedisDB                   int
	AuthSecret                string
	AccessTokenTTLMinutes     int
	GSTRate                   float64
	IncentiveRate             float64
	DefaultMonthlyTargetCents int64
	ReportCacheTTLSeconds     int
}

func Load() Config {
	// Missing .env is fine; real deployments set the environment directly.
	_ = godotenv.Load()

	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	tokenTTL, err := strconv.Atoi(getEnv("ACCESS_TOKEN_TTL_MINUTES", "480"))
	if err != nil || tokenTTL < 1 {
		tokenTTL = 480
	}
	gstRate, err := strconv.ParseFloat(getEnv("GST_RATE", "0.18"), 64)
	if err != nil || gstRate < 0 || gstRate > 1 {
		gstRate = 0.18
	}
	incentiveRate, err := strconv.ParseFloat(getEnv("INCENTIVE_RATE", "0.01"), 64)
	if err != nil || incentiveRate < 0 || incentiveRate > 1 {
		incentiveRate = 0.01
	}
	defaultTarget, err := strconv.ParseInt(getEnv("DEFAULT_MONTHLY_TARGET_CENTS", "5500000000"), 10, 64)
	if err != nil || defaultTarget < 1 {
		defaultTarget = 5500000000
	}
	reportTTL, err := strconv.Atoi(getEnv("REPORT_CACHE_TTL_SECONDS", "30"))
	if err != nil || reportTTL < 1 {
		reportTTL = 30
	}

	return Config{
		Port:                      getEnv("PORT", "8080"),
		AllowedOrigin:             getEnv("ALLOWED_ORIGIN", "http://127.0.0.1:3000"),
		DatabaseURL:               os.Getenv("DATABASE_URL"),
		SQLitePath:                os.Getenv("SQLITE_PATH"),
		RedisAddr:                 os.Getenv("REDIS_ADDR"),
		RedisPassword:             os.Getenv("REDIS_PASSWORD"),
		RedisDB:                   redisDB,
		AuthSecret:                strings.TrimSpace(os.Getenv("AUTH_SECRET")),
		AccessTokenTTLMinutes:     tokenTTL,
		GSTRate:                   gstRate,
		IncentiveRate:             incentiveRate,
		DefaultMonthlyTargetCents: defaultTarget,
		ReportCacheTTLSeconds:     reportTTL,
	}
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

func getEnv(key string, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}
