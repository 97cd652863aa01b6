package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"
)

const (
	defaultPort              = "8080"
	defaultDatabaseURL       = "user=postgres password=password dbname=dropoff host=localhost port=5432 sslmode=disable"
	defaultSendGridFromName  = "Deliveries"
	defaultEmailTimeout      = 10 * time.Second
	defaultLocalStorageDir   = "_uploads"
	defaultTestEmailCooldown = time.Minute
	podEmailDisabledValue    = "false"
)

type Config struct {
	Port        string
	DatabaseURL string

	SendGridAPIKey    string
	DeliveryFromEmail string
	SendGridFromName  string
	EmailTimeout      time.Duration
	// PODEmailEnabled gates the notification step of the confirmation workflow.
	PODEmailEnabled bool

	SupabaseURL     string
	SupabaseAnonKey string

	BlobToken       string
	BlobAPIURL      string
	LocalStorageDir string
	PublicBaseURL   string

	RedisAddr         string
	TestEmailCooldown time.Duration
}

// Load reads the configuration from the environment once at startup.
func Load() *Config {
	cfg := &Config{
		Port:              getEnv("PORT", defaultPort),
		DatabaseURL:       os.Getenv("DB_CONNECTION_STRING"),
		SendGridAPIKey:    firstEnv("SENDGRID_API_KEY", "SEND_GRID_API_KEY"),
		DeliveryFromEmail: os.Getenv("DELIVERY_FROM_EMAIL"),
		SendGridFromName:  getEnv("SENDGRID_FROM_NAME", defaultSendGridFromName),
		EmailTimeout:      getDuration("EMAIL_TIMEOUT", defaultEmailTimeout),
		PODEmailEnabled:   podEmailEnabled(),
		SupabaseURL:       os.Getenv("SUPABASE_URL"),
		SupabaseAnonKey:   os.Getenv("SUPABASE_ANON_KEY"),
		BlobToken:         os.Getenv("BLOB_READ_WRITE_TOKEN"),
		BlobAPIURL:        os.Getenv("BLOB_API_URL"),
		LocalStorageDir:   getEnv("LOCAL_STORAGE_DIR", defaultLocalStorageDir),
		RedisAddr:         os.Getenv("REDIS_ADDR"),
		TestEmailCooldown: getDuration("TEST_EMAIL_COOLDOWN", defaultTestEmailCooldown),
	}
	cfg.PublicBaseURL = getEnv("PUBLIC_BASE_URL", "http://localhost:"+cfg.Port)

	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = defaultDatabaseURL
		log.Println("WARNING: DB_CONNECTION_STRING not set, using default local connection string.")
	}
	if cfg.SendGridAPIKey == "" {
		log.Println("WARNING: SENDGRID_API_KEY not set. POD emails will fail at runtime.")
	}
	if cfg.DeliveryFromEmail == "" {
		log.Println("WARNING: DELIVERY_FROM_EMAIL not set. POD emails will fail at runtime.")
	}
	if cfg.SupabaseURL == "" {
		log.Println("WARNING: SUPABASE_URL not set. Every delivery confirmation will be rejected as unauthenticated.")
	}
	if cfg.BlobToken == "" {
		log.Printf("WARNING: BLOB_READ_WRITE_TOKEN not set, storing uploads locally in %s.", cfg.LocalStorageDir)
	}

	return cfg
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%s", c.Port)
}

func getEnv(key, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultVal
}

// firstEnv returns the first non-empty value among keys.
func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(os.Getenv(k)); v != "" {
			return v
		}
	}
	return ""
}

// podEmailEnabled is false only when the first set flag is exactly "false".
func podEmailEnabled() bool {
	for _, k := range []string{"ENABLE_POD_EMAIL", "NEXT_PUBLIC_ENABLE_POD_EMAIL"} {
		if v := os.Getenv(k); v != "" {
			return v != podEmailDisabledValue
		}
	}
	return true
}

func getDuration(key string, defaultVal time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		log.Printf("WARNING: invalid %s %q, using %s.", key, raw, defaultVal)
		return defaultVal
	}
	return d
}
