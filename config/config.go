package config

import (
	"log"
	"os"

	"github.com/joho/godotenv"
)

// Load reads .env if present. Real deployments set the environment
// directly, so a missing file is not an error.
func Load() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("config: skipping .env: %v", err)
	}
}

func Getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func Port() string {
	return Getenv("PORT", "8000")
}

func JWTSecret() []byte {
	return []byte(Getenv("JWT_SECRET", "supersecretkey"))
}

func RedisAddr() string {
	return os.Getenv("REDIS_ADDR")
}
