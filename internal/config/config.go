package config

import (
	"log"
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
	DBSSLMode  string

	RedisURL string

	ServerPort string

	JWTSecret string

	// Apple gateway
	APNSCertFile   string
	APNSSandbox    bool
	APNSTopic      string
	APNSMaxRetries int

	// Android gateway: legacy API key, or a Firebase service account
	AndroidGCMAPIKey string
	FCMProjectID     string
	FCMClientEmail   string
	FCMPrivateKey    string

	// Relay ("bouncer") client side
	PushNotificationBouncerURL string
	ZulipOrgID                 string
	ZulipOrgKey                string
	ZulipVersion               string

	// Relay server side
	ZilencerEnabled bool

	PushNotificationRedactContent bool

	// S3-compatible storage for s3:// certificate URLs
	S3Region          string
	S3Endpoint        string
	S3AccessKeyID     string
	S3SecretAccessKey string

	PushWorkerCount int
	PushMaxRetries  int
}

// UsesNotificationBouncer reports whether registrations and notifications
// go through the relay instead of the gateways.
func (c *Config) UsesNotificationBouncer() bool {
	return c.PushNotificationBouncerURL != ""
}

// HasFCMCredentials reports whether the Firebase service account is configured.
func (c *Config) HasFCMCredentials() bool {
	return c.FCMProjectID != "" && c.FCMClientEmail != "" && c.FCMPrivateKey != ""
}

func LoadConfig() (*Config, error) {
	err := godotenv.Load()
	if err != nil {
		log.Println("No .env file found or error loading it, relying on environment variables")
	}

	serverPort := os.Getenv("SERVER_PORT")
	if serverPort == "" {
		serverPort = "8080"
	}

	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		redisURL = "redis://localhost:6379/0"
	}

	sslMode := os.Getenv("DB_SSLMODE")
	if sslMode == "" {
		sslMode = "require"
	}

	apnsTopic := os.Getenv("APNS_TOPIC")
	if apnsTopic == "" {
		apnsTopic = "org.zulip.Zulip"
	}

	version := os.Getenv("ZULIP_VERSION")
	if version == "" {
		version = "1.7.0"
	}

	return &Config{
		DBHost:     os.Getenv("DB_HOST"),
		DBPort:     os.Getenv("DB_PORT"),
		DBUser:     os.Getenv("DB_USER"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     os.Getenv("DB_NAME"),
		DBSSLMode:  sslMode,

		RedisURL: redisURL,

		ServerPort: serverPort,

		JWTSecret: os.Getenv("JWT_SECRET"),

		APNSCertFile:   os.Getenv("APNS_CERT_FILE"),
		APNSSandbox:    envBool("APNS_SANDBOX"),
		APNSTopic:      apnsTopic,
		APNSMaxRetries: envInt("APNS_MAX_RETRIES", 3),

		AndroidGCMAPIKey: os.Getenv("ANDROID_GCM_API_KEY"),
		FCMProjectID:     os.Getenv("FCM_PROJECT_ID"),
		FCMClientEmail:   os.Getenv("FCM_CLIENT_EMAIL"),
		FCMPrivateKey:    os.Getenv("FCM_PRIVATE_KEY"),

		PushNotificationBouncerURL: os.Getenv("PUSH_NOTIFICATION_BOUNCER_URL"),
		ZulipOrgID:                 os.Getenv("ZULIP_ORG_ID"),
		ZulipOrgKey:                os.Getenv("ZULIP_ORG_KEY"),
		ZulipVersion:               version,

		ZilencerEnabled: envBool("ZILENCER_ENABLED"),

		PushNotificationRedactContent: envBool("PUSH_NOTIFICATION_REDACT_CONTENT"),

		S3Region:          os.Getenv("S3_REGION"),
		S3Endpoint:        os.Getenv("S3_ENDPOINT"),
		S3AccessKeyID:     os.Getenv("S3_ACCESS_KEY_ID"),
		S3SecretAccessKey: os.Getenv("S3_SECRET_ACCESS_KEY"),

		PushWorkerCount: envInt("PUSH_WORKER_COUNT", 2),
		PushMaxRetries:  envInt("PUSH_MAX_RETRIES", 3),
	}, nil
}

func envBool(key string) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	return err == nil && v
}

// envInt falls back to def for missing, malformed or negative values.
func envInt(key string, def int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil || v < 0 {
		return def
	}
	return v
}
