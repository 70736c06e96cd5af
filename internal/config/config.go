package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName   string
	AppEnv    string
	AppPort   string
	ClientURL string

	DatabaseURL string
	RedisURL    string
	NATSURL     string

	SessionSecret     string
	SessionCookieName string
	SessionTTL        time.Duration
	SessionSweepEvery time.Duration

	OTPTTL                time.Duration
	OTPBucketCapacity     int
	OTPBucketRefill       time.Duration
	OTPDebugCodes         bool
	OTPVerifyMaxAttempts  int
	OTPVerifyWindow       time.Duration
	DefaultCountryCode    string
	SMSGatewayURL         string
	SMSGatewayAPIKey      string
	SMSSenderID           string
	SendGridAPIKey        string
	MailFromAddress       string
	MailFromName          string
	LeaderboardCacheTTL   time.Duration
	NotificationKeepAlive time.Duration
	PortalRequestsPerMin  int

	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool
	MinioRegion    string
	UploadMaxMB    int

	CloudinaryCloudName    string
	CloudinaryAPIKey       string
	CloudinaryAPISecret    string
	CloudinaryUploadFolder string

	AdminUsername string
	AdminEmail    string
	AdminFullName string
	AdminPassword string
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// IsProduction reports whether the service runs in production mode.
func (c Config) IsProduction() bool {
	return strings.EqualFold(c.AppEnv, "production")
}

// MinioEnabled reports whether object storage credentials were supplied.
func (c Config) MinioEnabled() bool {
	return c.MinioEndpoint != "" && c.MinioAccessKey != "" && c.MinioSecretKey != ""
}

// CloudinaryEnabled reports whether Cloudinary credentials were supplied.
func (c Config) CloudinaryEnabled() bool {
	return c.CloudinaryCloudName != "" && c.CloudinaryAPIKey != "" && c.CloudinaryAPISecret != ""
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("COACHING")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "Coaching API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("client.url", "http://localhost:5173")
	v.SetDefault("session.cookie_name", "coaching_session")
	v.SetDefault("session.ttl", "24h")
	v.SetDefault("session.sweep_every", "15m")
	v.SetDefault("otp.ttl", "5m")
	v.SetDefault("otp.bucket_capacity", 3)
	v.SetDefault("otp.bucket_refill", "60s")
	v.SetDefault("otp.debug_codes", false)
	v.SetDefault("otp.verify_max_attempts", 5)
	v.SetDefault("otp.verify_window", "5m")
	v.SetDefault("otp.default_country_code", "+91")
	v.SetDefault("sms.sender_id", "COACHG")
	v.SetDefault("mail.from_name", "Coaching Institute")
	v.SetDefault("leaderboard.cache_ttl", "1m")
	v.SetDefault("notifications.keepalive", "30s")
	v.SetDefault("ratelimit.portal_per_minute", 300)
	v.SetDefault("minio.bucket", "coaching-content")
	v.SetDefault("minio.use_ssl", false)
	v.SetDefault("minio.region", "us-east-1")
	v.SetDefault("upload.max_mb", 500)
	v.SetDefault("cloudinary.folder", "coaching")
	v.SetDefault("admin.username", "admin")
	v.SetDefault("admin.full_name", "Administrator")

	durations := map[string]time.Duration{}
	for _, key := range []string{"session.ttl", "session.sweep_every", "otp.ttl", "otp.bucket_refill", "otp.verify_window", "leaderboard.cache_ttl", "notifications.keepalive"} {
		parsed, err := time.ParseDuration(v.GetString(key))
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", key, err)
		}
		if parsed <= 0 {
			return Config{}, fmt.Errorf("%s must be positive", key)
		}
		durations[key] = parsed
	}

	cfg := Config{
		AppName:                v.GetString("app.name"),
		AppEnv:                 v.GetString("app.env"),
		AppPort:                v.GetString("app.port"),
		ClientURL:              v.GetString("client.url"),
		DatabaseURL:            v.GetString("database.url"),
		RedisURL:               v.GetString("redis.url"),
		NATSURL:                v.GetString("nats.url"),
		SessionSecret:          v.GetString("session.secret"),
		SessionCookieName:      v.GetString("session.cookie_name"),
		SessionTTL:             durations["session.ttl"],
		SessionSweepEvery:      durations["session.sweep_every"],
		OTPTTL:                 durations["otp.ttl"],
		OTPBucketCapacity:      v.GetInt("otp.bucket_capacity"),
		OTPBucketRefill:        durations["otp.bucket_refill"],
		OTPDebugCodes:          v.GetBool("otp.debug_codes"),
		OTPVerifyMaxAttempts:   v.GetInt("otp.verify_max_attempts"),
		OTPVerifyWindow:        durations["otp.verify_window"],
		DefaultCountryCode:     v.GetString("otp.default_country_code"),
		SMSGatewayURL:          v.GetString("sms.gateway_url"),
		SMSGatewayAPIKey:       v.GetString("sms.api_key"),
		SMSSenderID:            v.GetString("sms.sender_id"),
		SendGridAPIKey:         v.GetString("sendgrid.api_key"),
		MailFromAddress:        v.GetString("mail.from"),
		MailFromName:           v.GetString("mail.from_name"),
		LeaderboardCacheTTL:    durations["leaderboard.cache_ttl"],
		NotificationKeepAlive:  durations["notifications.keepalive"],
		PortalRequestsPerMin:   v.GetInt("ratelimit.portal_per_minute"),
		MinioEndpoint:          v.GetString("minio.endpoint"),
		MinioAccessKey:         v.GetString("minio.access_key"),
		MinioSecretKey:         v.GetString("minio.secret_key"),
		MinioBucket:            v.GetString("minio.bucket"),
		MinioUseSSL:            v.GetBool("minio.use_ssl"),
		MinioRegion:            v.GetString("minio.region"),
		UploadMaxMB:            v.GetInt("upload.max_mb"),
		CloudinaryCloudName:    v.GetString("cloudinary.cloud_name"),
		CloudinaryAPIKey:       v.GetString("cloudinary.api_key"),
		CloudinaryAPISecret:    v.GetString("cloudinary.api_secret"),
		CloudinaryUploadFolder: v.GetString("cloudinary.folder"),
		AdminUsername:          v.GetString("admin.username"),
		AdminEmail:             v.GetString("admin.email"),
		AdminFullName:          v.GetString("admin.full_name"),
		AdminPassword:          v.GetString("admin.password"),
	}

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("database url must be provided")
	}

	if cfg.SessionSecret == "" && cfg.IsProduction() {
		return Config{}, fmt.Errorf("session secret must be provided in production")
	}

	if cfg.OTPBucketCapacity <= 0 {
		cfg.OTPBucketCapacity = 3
	}

	if cfg.OTPVerifyMaxAttempts <= 0 {
		cfg.OTPVerifyMaxAttempts = 5
	}

	if cfg.UploadMaxMB <= 0 {
		cfg.UploadMaxMB = 500
	}

	if cfg.IsProduction() {
		cfg.OTPDebugCodes = false
	}

	return cfg, nil
}
