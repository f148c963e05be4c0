package config

import "os"

// Config holds the server's environment-driven settings.
type Config struct {
	Addr      string
	DBFile    string
	RedisAddr string
}

func Load() *Config {
	return &Config{
		Addr:      getEnv("ADDR", ":8080"),
		DBFile:    getEnv("DB_FILE", "dev.db"),
		RedisAddr: getEnv("REDIS_ADDR", "localhost:6379"),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
