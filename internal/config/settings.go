package config

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const (
	DriverMongo  = "mongo"
	DriverMemory = "memory"
)

// Settings is the typed process configuration, read from the environment.
type Settings struct {
	AppEnv   string
	LogLevel string
	HTTPAddr string

	StoreDriver   string
	MongoURI      string
	MongoDatabase string
	RedisURL      string
	SyncStore     string
	BoltPath      string

	JWTKey      string
	JWTTTL      time.Duration
	RBACPolicy  string
	CORSOrigins []string

	AdminEmail    string
	AdminPassword string

	TimetableCacheTTL time.Duration
	TimetablePageSize int
	PollInterval      time.Duration
	NotifyDedup       bool

	EmailProvider string
	ResendAPIKey  string
	FromEmail     string
	SMTPHost      string
	SMTPPort      int
	SMTPUser      string
	SMTPPassword  string
}

func defaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "dev")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("STORE_DRIVER", DriverMongo)
	v.SetDefault("MONGO_URI", "")
	v.SetDefault("MONGO_DATABASE", "studysync")
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("SYNC_STORE", "bolt")
	v.SetDefault("BOLT_PATH", "data/studysync.db")
	v.SetDefault("JWT_KEY", "")
	v.SetDefault("JWT_TTL", 24*time.Hour)
	v.SetDefault("RBAC_POLICY", "rbac_policy.csv")
	v.SetDefault("CORS_ORIGINS", "http://localhost:5173")
	v.SetDefault("ADMIN_EMAIL", "")
	v.SetDefault("ADMIN_PASSWORD", "")
	v.SetDefault("TIMETABLE_CACHE_TTL", 5*time.Minute)
	v.SetDefault("TIMETABLE_PAGE_SIZE", 10)
	v.SetDefault("POLL_INTERVAL", 60*time.Second)
	v.SetDefault("NOTIFY_DEDUP", true)
	v.SetDefault("EMAIL_PROVIDER", "none")
	v.SetDefault("RESEND_API_KEY", "")
	v.SetDefault("FROM_EMAIL", "")
	v.SetDefault("SMTP_HOST", "")
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("SMTP_USER", "")
	v.SetDefault("SMTP_PASSWORD", "")
}

// NewSettings reads the environment into Settings and checks required values.
func NewSettings() (*Settings, error) {
	return load(viper.New())
}

func load(v *viper.Viper) (*Settings, error) {
	defaults(v)
	v.AutomaticEnv()

	s := &Settings{
		AppEnv:            v.GetString("APP_ENV"),
		LogLevel:          v.GetString("LOG_LEVEL"),
		HTTPAddr:          v.GetString("HTTP_ADDR"),
		StoreDriver:       strings.ToLower(v.GetString("STORE_DRIVER")),
		MongoURI:          v.GetString("MONGO_URI"),
		MongoDatabase:     v.GetString("MONGO_DATABASE"),
		RedisURL:          v.GetString("REDIS_URL"),
		SyncStore:         strings.ToLower(v.GetString("SYNC_STORE")),
		BoltPath:          v.GetString("BOLT_PATH"),
		JWTKey:            v.GetString("JWT_KEY"),
		JWTTTL:            v.GetDuration("JWT_TTL"),
		RBACPolicy:        v.GetString("RBAC_POLICY"),
		CORSOrigins:       splitList(v.GetString("CORS_ORIGINS")),
		AdminEmail:        v.GetString("ADMIN_EMAIL"),
		AdminPassword:     v.GetString("ADMIN_PASSWORD"),
		TimetableCacheTTL: v.GetDuration("TIMETABLE_CACHE_TTL"),
		TimetablePageSize: v.GetInt("TIMETABLE_PAGE_SIZE"),
		PollInterval:      v.GetDuration("POLL_INTERVAL"),
		NotifyDedup:       v.GetBool("NOTIFY_DEDUP"),
		EmailProvider:     strings.ToLower(v.GetString("EMAIL_PROVIDER")),
		ResendAPIKey:      v.GetString("RESEND_API_KEY"),
		FromEmail:         v.GetString("FROM_EMAIL"),
		SMTPHost:          v.GetString("SMTP_HOST"),
		SMTPPort:          v.GetInt("SMTP_PORT"),
		SMTPUser:          v.GetString("SMTP_USER"),
		SMTPPassword:      v.GetString("SMTP_PASSWORD"),
	}
	return s, s.check()
}

func (s *Settings) check() error {
	if s.JWTKey == "" {
		return errors.New("JWT_KEY not set")
	}
	switch s.StoreDriver {
	case DriverMongo:
		if s.MongoURI == "" {
			return errors.New("MONGO_URI not set")
		}
	case DriverMemory:
	default:
		return errors.Errorf("unknown STORE_DRIVER %q", s.StoreDriver)
	}
	switch s.SyncStore {
	case "bolt", "memory":
	case "redis":
		if s.RedisURL == "" {
			return errors.New("SYNC_STORE=redis needs REDIS_URL")
		}
	default:
		return errors.Errorf("unknown SYNC_STORE %q", s.SyncStore)
	}
	switch s.EmailProvider {
	case "none":
	case "resend":
		if s.ResendAPIKey == "" || s.FromEmail == "" {
			return errors.New("resend email needs RESEND_API_KEY and FROM_EMAIL")
		}
	case "smtp":
		if s.SMTPHost == "" || s.FromEmail == "" {
			return errors.New("smtp email needs SMTP_HOST and FROM_EMAIL")
		}
	default:
		return errors.Errorf("unknown EMAIL_PROVIDER %q", s.EmailProvider)
	}
	return nil
}

// Dev reports whether the process runs in development mode.
func (s *Settings) Dev() bool {
	return s.AppEnv == "dev"
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
