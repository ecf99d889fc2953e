package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Auth     AuthConfig
	Storage  StorageConfig
	WhatsApp WhatsAppConfig
	Email    EmailConfig
	PubNub   PubNubConfig
	Realtime RealtimeConfig
	Scanner  ScannerConfig
	Bundle   BundleConfig
}

type ServerConfig struct {
	Port        string
	GinMode     string
	LogLevel    string
	CORSOrigins []string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type AuthConfig struct {
	// JWTSecret verifies access tokens issued by the hosted auth service.
	JWTSecret string
}

type StorageConfig struct {
	Endpoint      string
	Region        string
	Bucket        string
	AccessKey     string
	SecretKey     string
	PublicBaseURL string
	MaxPhotoEdge  int
}

// Enabled reports whether photo/QR uploads can be served.
func (c StorageConfig) Enabled() bool {
	return c.Bucket != "" && c.AccessKey != ""
}

type WhatsAppConfig struct {
	APIBase       string
	PhoneNumberID string
	AccessToken   string
	SendInterval  time.Duration
}

func (c WhatsAppConfig) Enabled() bool {
	return c.PhoneNumberID != "" && c.AccessToken != ""
}

type EmailConfig struct {
	SMTPHost    string
	SMTPPort    string
	Username    string
	Password    string
	From        string
	FromName    string
	Concurrency int
}

func (c EmailConfig) Enabled() bool {
	return c.SMTPHost != "" && c.From != ""
}

type PubNubConfig struct {
	PublishKey   string
	SubscribeKey string
	SecretKey    string
}

func (c PubNubConfig) Enabled() bool {
	return c.PublishKey != "" && c.SubscribeKey != ""
}

type RealtimeConfig struct {
	RetryBackoff time.Duration
}

type ScannerConfig struct {
	InactivityWarn  time.Duration
	InactivityPause time.Duration
	IdentifiedDelay time.Duration
	ErrorCooldown   time.Duration
}

type BundleConfig struct {
	MaxGuests  int
	WarnGuests int
}

var AppConfig *Config

func LoadConfig() *Config {
	// .env is optional; real deployments inject the environment directly.
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	AppConfig = &Config{
		Server: ServerConfig{
			Port:        v.GetString("PORT"),
			GinMode:     v.GetString("GIN_MODE"),
			LogLevel:    v.GetString("LOG_LEVEL"),
			CORSOrigins: splitList(v.GetString("CORS_ORIGINS")),
		},
		Database: DatabaseConfig{
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetString("DB_PORT"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			DBName:   v.GetString("DB_NAME"),
			SSLMode:  v.GetString("DB_SSL_MODE"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("REDIS_HOST"),
			Port:     v.GetString("REDIS_PORT"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		Auth: AuthConfig{
			JWTSecret: v.GetString("JWT_SECRET"),
		},
		Storage: StorageConfig{
			Endpoint:      v.GetString("STORAGE_ENDPOINT"),
			Region:        v.GetString("STORAGE_REGION"),
			Bucket:        v.GetString("STORAGE_BUCKET"),
			AccessKey:     v.GetString("STORAGE_ACCESS_KEY"),
			SecretKey:     v.GetString("STORAGE_SECRET_KEY"),
			PublicBaseURL: v.GetString("STORAGE_PUBLIC_BASE_URL"),
			MaxPhotoEdge:  v.GetInt("STORAGE_MAX_PHOTO_EDGE"),
		},
		WhatsApp: WhatsAppConfig{
			APIBase:       v.GetString("WHATSAPP_API_BASE"),
			PhoneNumberID: v.GetString("WHATSAPP_PHONE_NUMBER_ID"),
			AccessToken:   v.GetString("WHATSAPP_ACCESS_TOKEN"),
			SendInterval:  v.GetDuration("WHATSAPP_SEND_INTERVAL"),
		},
		Email: EmailConfig{
			SMTPHost:    v.GetString("SMTP_HOST"),
			SMTPPort:    v.GetString("SMTP_PORT"),
			Username:    v.GetString("SMTP_USERNAME"),
			Password:    v.GetString("SMTP_PASSWORD"),
			From:        v.GetString("EMAIL_FROM"),
			FromName:    v.GetString("EMAIL_FROM_NAME"),
			Concurrency: v.GetInt("EMAIL_WORKERS"),
		},
		PubNub: PubNubConfig{
			PublishKey:   v.GetString("PUBNUB_PUBLISH_KEY"),
			SubscribeKey: v.GetString("PUBNUB_SUBSCRIBE_KEY"),
			SecretKey:    v.GetString("PUBNUB_SECRET_KEY"),
		},
		Realtime: RealtimeConfig{
			RetryBackoff: v.GetDuration("REALTIME_RETRY_BACKOFF"),
		},
		Scanner: ScannerConfig{
			InactivityWarn:  v.GetDuration("SCANNER_INACTIVITY_WARN"),
			InactivityPause: v.GetDuration("SCANNER_INACTIVITY_PAUSE"),
			IdentifiedDelay: v.GetDuration("SCANNER_IDENTIFIED_DELAY"),
			ErrorCooldown:   v.GetDuration("SCANNER_ERROR_COOLDOWN"),
		},
		Bundle: BundleConfig{
			MaxGuests:  v.GetInt("BUNDLE_MAX_GUESTS"),
			WarnGuests: v.GetInt("BUNDLE_WARN_GUESTS"),
		},
	}

	return AppConfig
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "8080")
	v.SetDefault("GIN_MODE", "release")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "postgres")
	v.SetDefault("DB_SSL_MODE", "disable")

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("STORAGE_REGION", "us-east-1")
	v.SetDefault("STORAGE_MAX_PHOTO_EDGE", 1024)

	v.SetDefault("WHATSAPP_API_BASE", "https://graph.facebook.com/v19.0")
	v.SetDefault("WHATSAPP_SEND_INTERVAL", time.Second)

	v.SetDefault("SMTP_PORT", "587")
	v.SetDefault("EMAIL_FROM_NAME", "Event Check-in")
	v.SetDefault("EMAIL_WORKERS", 5)

	v.SetDefault("REALTIME_RETRY_BACKOFF", 3*time.Second)

	v.SetDefault("SCANNER_INACTIVITY_WARN", 4*time.Minute)
	v.SetDefault("SCANNER_INACTIVITY_PAUSE", 5*time.Minute)
	v.SetDefault("SCANNER_IDENTIFIED_DELAY", 1500*time.Millisecond)
	v.SetDefault("SCANNER_ERROR_COOLDOWN", 2*time.Second)

	v.SetDefault("BUNDLE_MAX_GUESTS", 1000)
	v.SetDefault("BUNDLE_WARN_GUESTS", 500)
}

// KioskConfig configures the door kiosk binary.
type KioskConfig struct {
	APIURL  string
	Token   string
	EventID string
	Scanner ScannerConfig
}

func LoadKioskConfig() *KioskConfig {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)
	v.SetDefault("KIOSK_API_URL", "http://localhost:8080")

	return &KioskConfig{
		APIURL:  v.GetString("KIOSK_API_URL"),
		Token:   v.GetString("KIOSK_TOKEN"),
		EventID: v.GetString("KIOSK_EVENT_ID"),
		Scanner: ScannerConfig{
			InactivityWarn:  v.GetDuration("SCANNER_INACTIVITY_WARN"),
			InactivityPause: v.GetDuration("SCANNER_INACTIVITY_PAUSE"),
			IdentifiedDelay: v.GetDuration("SCANNER_IDENTIFIED_DELAY"),
			ErrorCooldown:   v.GetDuration("SCANNER_ERROR_COOLDOWN"),
		},
	}
}

func LoadTestConfig() *Config {
	testConfig := &DatabaseConfig{
		Host:     "localhost",
		Port:     "5433", // test DB listens on 5433
		User:     "postgres",
		Password: "postgres",
		DBName:   "test_db",
		SSLMode:  "disable",
	}

	testRedisConfig := RedisConfig{
		Host:     "localhost",
		Port:     "6380", // test Redis listens on 6380
		Password: "",
		DB:       1,
	}

	return &Config{
		Server:   ServerConfig{Port: "8080", GinMode: "test", LogLevel: "debug"},
		Database: *testConfig,
		Redis:    testRedisConfig,
		Auth:     AuthConfig{JWTSecret: "test-secret"},
		WhatsApp: WhatsAppConfig{SendInterval: time.Millisecond},
		Realtime: RealtimeConfig{RetryBackoff: 10 * time.Millisecond},
		Scanner: ScannerConfig{
			InactivityWarn:  4 * time.Minute,
			InactivityPause: 5 * time.Minute,
			IdentifiedDelay: 1500 * time.Millisecond,
			ErrorCooldown:   2 * time.Second,
		},
		Bundle: BundleConfig{MaxGuests: 1000, WarnGuests: 500},
	}
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
