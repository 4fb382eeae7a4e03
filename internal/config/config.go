package config

import (
	"log"
	"os"
	"strconv"
)

type Config struct {
	AppPort string

	PostgresDSN string
	RedisAddr   string

	CronSpec string

	// ProxyBypass 为 true 时所有抓取请求都绕过环境代理，
	// 适合部署在能直连政务/协会站点的内网出口上
	ProxyBypass bool

	// RenderURL 是动态渲染 sidecar 的地址，空表示不启用
	RenderURL string
}

func Load() *Config {
	cfg := &Config{
		AppPort:     getEnv("APP_PORT", "9000"),
		PostgresDSN: getEnv("POSTGRES_DSN", "host=localhost user=newshub password=newshub dbname=newshub port=5432 sslmode=disable TimeZone=UTC"),
		RedisAddr:   getEnv("REDIS_ADDR", "localhost:6380"),
		CronSpec:    getEnv("CRON_SPEC", "*/30 * * * *"),
		ProxyBypass: getBoolEnv("PROXY_BYPASS", false),
		RenderURL:   getEnv("RENDER_URL", ""),
	}

	log.Printf("config loaded: port=%s cron=%s", cfg.AppPort, cfg.CronSpec)
	return cfg
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getBoolEnv(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
