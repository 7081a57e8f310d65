package config

import (
	"os"
	"strconv"
)

type Config struct {
	Addr        string
	RedisURL    string
	DatabaseURL string
	KVNamespace string
	CORSOrigin  string
	// Search (optional)
	MeiliURL       string
	MeiliMasterKey string
	// Attachment object storage (optional)
	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string
	S3Bucket    string
	S3UseSSL    bool
	// Batch execution limits
	BatchMaxItems int
}

func Load() Config {
	return Config{
		Addr:        getenv("API_ADDR", ":8788"),
		RedisURL:    getenv("REDIS_URL", "redis://localhost:6379/0"),
		DatabaseURL: getenv("DATABASE_URL", ""),
		KVNamespace: getenv("REQTRACK_KV_NAMESPACE", "reqtrack:"),
		CORSOrigin:  getenv("REQTRACK_CORS_ORIGIN", "*"),
		// Search - empty by default, search falls back to repository scans
		MeiliURL:       getenv("MEILI_URL", ""),
		MeiliMasterKey: getenv("MEILI_MASTER_KEY", ""),
		// S3 - empty by default, attachment uploads disabled if not configured
		S3Endpoint:    getenv("S3_ENDPOINT", ""),
		S3AccessKey:   getenv("S3_ACCESS_KEY", ""),
		S3SecretKey:   getenv("S3_SECRET_KEY", ""),
		S3Bucket:      getenv("S3_BUCKET", "reqtrack-attachments"),
		S3UseSSL:      getenvBool("S3_USE_SSL", false),
		BatchMaxItems: getenvInt("REQTRACK_BATCH_MAX_ITEMS", 100),
	}
}

func getenv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}
