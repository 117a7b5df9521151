package config

import (
	"log"
	"os"
	"strconv"
	"time"
)

type Config struct {
	AppPort string

	PostgresDSN string
	RedisAddr   string

	CronSpec string

	// 发布时间补全相关
	EnrichEnabled        bool
	EnrichCachePath      string
	EnrichMaxFetchPerRun int
	EnrichRequestTimeout time.Duration
	EnrichMaxWorkers     int
	EnrichMissTTLHours   int
}

func Load() *Config {
	cfg := &Config{
		AppPort:     getEnv("APP_PORT", "9000"),
		PostgresDSN: getEnv("POSTGRES_DSN", "host=localhost user=hotdigest password=hotdigest dbname=hotdigest port=5432 sslmode=disable TimeZone=UTC"),
		RedisAddr:   getEnv("REDIS_ADDR", "localhost:6380"),
		CronSpec:    getEnv("CRON_SPEC", "*/30 * * * *"),

		EnrichEnabled:        getEnvBool("ENRICH_ENABLED", true),
		EnrichCachePath:      getEnv("ENRICH_CACHE_PATH", "output/news/publish_time_cache.db"),
		EnrichMaxFetchPerRun: getEnvInt("ENRICH_MAX_FETCH_PER_RUN", 200),
		EnrichRequestTimeout: time.Duration(getEnvInt("ENRICH_TIMEOUT_SECONDS", 8)) * time.Second,
		EnrichMaxWorkers:     getEnvInt("ENRICH_MAX_WORKERS", 8),
		EnrichMissTTLHours:   getEnvInt("ENRICH_MISS_TTL_HOURS", 24),
	}

	if cfg.EnrichMaxFetchPerRun < 0 {
		cfg.EnrichMaxFetchPerRun = 0
	}
	if cfg.EnrichMaxWorkers < 1 {
		cfg.EnrichMaxWorkers = 1
	}
	if cfg.EnrichRequestTimeout <= 0 {
		cfg.EnrichRequestTimeout = 8 * time.Second
	}
	if cfg.EnrichMissTTLHours < 0 {
		cfg.EnrichMissTTLHours = 0
	}

	log.Printf("config loaded: port=%s cron=%s enrich=%v", cfg.AppPort, cfg.CronSpec, cfg.EnrichEnabled)
	return cfg
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("warn: env %s=%q is not a number, using %d", key, v, def)
		return def
	}
	return n
}

func getEnvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Printf("warn: env %s=%q is not a bool, using %v", key, v, def)
		return def
	}
	return b
}

// Now returns current time, 方便后续做可测试封装
func Now() time.Time {
	return time.Now()
}
