package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

var (
	// Google Drive settings
	Scopes                  = []string{"https://www.googleapis.com/auth/drive.file"}
	GoogleClientSecretsFile = os.Getenv("GOOGLE_CLIENT_SECRETS_FILE")
	GoogleClientID          = os.Getenv("GOOGLE_CLIENT_ID")
	GoogleClientSecret      = os.Getenv("GOOGLE_CLIENT_SECRET")
	GoogleRedirectURL       = getEnvWithDefault("GOOGLE_REDIRECT_URL", "urn:ietf:wg:oauth:2.0:oob")
	GoogleDriveEndpoint     = os.Getenv("GOOGLE_DRIVE_ENDPOINT") // Override for tests and proxies

	// Cloud project service
	CloudAPIBaseURL       = getEnvWithDefault("CLOUD_API_BASE_URL", "https://api.gdevelop.io/project")
	CloudAPIRatePerSecond = getEnvInt("CLOUD_API_RATE_PER_SECOND", 10)
	CloudAPIBurst         = getEnvInt("CLOUD_API_BURST", 20)
	CloudAPITimeout       = getEnvDuration("CLOUD_API_TIMEOUT", 60*time.Second)

	// Project resources bucket (S3/R2 compatible)
	ProjectBucketRegion   = getEnvWithDefault("PROJECT_BUCKET_REGION", "auto")
	ProjectBucketEndpoint = os.Getenv("PROJECT_BUCKET_ENDPOINT") // For R2: https://account-id.r2.cloudflarestorage.com

	// Autosave cache
	AutoSaveBackend     = getEnvWithDefault("AUTOSAVE_BACKEND", "redis") // "redis", "bolt" or "none"
	AutoSaveBoltPath    = getEnvWithDefault("AUTOSAVE_BOLT_PATH", "autosave.db")
	AutoSaveGraceWindow = getEnvDuration("AUTOSAVE_GRACE_WINDOW", 5*time.Second)
	AutoSaveTTL         = getEnvDuration("AUTOSAVE_TTL", 7*24*time.Hour)

	// Recent projects
	RecentProjectsDBPath = getEnvWithDefault("RECENT_PROJECTS_DB", "recent.db")
	RecentProjectsLimit  = getEnvInt("RECENT_PROJECTS_LIMIT", 20)
	RecentProjectsMaxAge = getEnvDuration("RECENT_PROJECTS_MAX_AGE", 90*24*time.Hour)

	// Downloads
	DownloadDir = getEnvWithDefault("DOWNLOAD_DIR", os.TempDir())
	DownloadTTL = getEnvDuration("DOWNLOAD_TTL", 24*time.Hour)

	// HTTP server
	CORSAllowedOrigins = getEnvList("CORS_ALLOWED_ORIGINS", []string{"*"})
	MaxRequestBytes    = int64(getEnvInt("MAX_REQUEST_BYTES", 64<<20))

	// Worker
	CleanupInterval = getEnvDuration("CLEANUP_INTERVAL", time.Hour)

	// State
	ValkeyHost = getEnvWithDefault("VALKEY_HOST", "localhost")
	ValkeyPort = getEnvInt("VALKEY_PORT", 6379)
)

func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvList reads a comma separated list, dropping blank items.
func getEnvList(key string, defaultValue []string) []string {
	var values []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			values = append(values, item)
		}
	}
	if len(values) == 0 {
		return defaultValue
	}
	return values
}

// AutoSavePrefix marks a file identifier that points at the local autosave
// cache instead of a committed cloud version.
const AutoSavePrefix = "cache-autosave:"

// AutoSaveCacheName namespaces autosave entries in shared caches.
const AutoSaveCacheName = "projectstore-cloud-autosave"
