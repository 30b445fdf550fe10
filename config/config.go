package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	JWTSecret  string

	BucketName string

	// StorageTimeoutSec bounds each object storage call made during a
	// version create/clone. Defaults to 30.
	StorageTimeoutSec int
}

func LoadConfig() Config {
	// .env is optional; in Cloud Run everything comes from real env vars.
	_ = godotenv.Load()

	timeout := 30
	if raw := os.Getenv("STORAGE_TIMEOUT_SEC"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			timeout = v
		}
	}

	return Config{
		DBHost:            os.Getenv("DB_HOST"),
		DBPort:            os.Getenv("DB_PORT"),
		DBUser:            os.Getenv("DB_USER"),
		DBPassword:        os.Getenv("DB_PASSWORD"),
		DBName:            os.Getenv("DB_NAME"),
		JWTSecret:         os.Getenv("JWT_SECRET"),
		BucketName:        os.Getenv("BUCKET_NAME"),
		StorageTimeoutSec: timeout,
	}
}
