package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	AppPort string
	AppEnv  string

	AWSRegion      string
	AWSEndpointURL string // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string
	AWSSecretKey   string
	DynamoTables   DynamoTables

	JWTPublicKeyPath  string
	JWTPrivateKeyPath string
	JWTExpiryDays     int

	// NotificationsEnabled disables the whole engine when false: Start()
	// logs and returns without arming anything. Read once at startup.
	NotificationsEnabled bool
	// Timezone is the facility network's local zone; all job cadences are
	// evaluated in it.
	Timezone string
	// ReminderLead is how long before a reservation its reminder fires.
	ReminderLead time.Duration
	// ReconcileWindow is how far ahead the startup reconciler re-arms reminders.
	ReconcileWindow time.Duration

	ExpoAccessToken string

	WeatherAPIKey string

	SNSRegion      string
	OpsAlertTopic  string // SNS topic ARN for operational alerts, empty disables
	AllowedOrigins []string
}

// DynamoTables holds the DynamoDB table name for each entity.
type DynamoTables struct {
	Reservations string
	Users        string
	Complexes    string
	Deliveries   string
}

// Load reads all configuration from environment variables.
func Load() *Config {
	return &Config{
		AppPort: getEnv("APP_PORT", "3000"),
		AppEnv:  getEnv("APP_ENV", "development"),

		AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
		AWSEndpointURL: getEnv("AWS_ENDPOINT_URL", ""),
		AWSAccessKeyID: getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
		DynamoTables: DynamoTables{
			Reservations: getEnv("DYNAMO_TABLE_RESERVATIONS", "reservations"),
			Users:        getEnv("DYNAMO_TABLE_USERS", "users"),
			Complexes:    getEnv("DYNAMO_TABLE_COMPLEXES", "complexes"),
			Deliveries:   getEnv("DYNAMO_TABLE_DELIVERIES", "notification_deliveries"),
		},

		JWTPublicKeyPath:  getEnv("JWT_PUBLIC_KEY_PATH", "./public_key.pem"),
		JWTPrivateKeyPath: getEnv("JWT_PRIVATE_KEY_PATH", "./private_key.pem"),
		JWTExpiryDays:     getEnvInt("JWT_EXPIRY_DAYS", 7),

		NotificationsEnabled: getEnvBool("NOTIFICATIONS_ENABLED", true),
		Timezone:             getEnv("FACILITY_TIMEZONE", "America/Argentina/Buenos_Aires"),
		ReminderLead:         getEnvDuration("REMINDER_LEAD", 2*time.Hour),
		ReconcileWindow:      getEnvDuration("RECONCILE_WINDOW", 48*time.Hour),

		ExpoAccessToken: getEnv("EXPO_ACCESS_TOKEN", ""),

		WeatherAPIKey: getEnv("WEATHER_API_KEY", ""),

		SNSRegion:      getEnv("SNS_REGION", "us-east-1"),
		OpsAlertTopic:  getEnv("OPS_ALERT_TOPIC_ARN", ""),
		AllowedOrigins: strings.Split(getEnv("ALLOWED_ORIGINS", "*"), ","),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
