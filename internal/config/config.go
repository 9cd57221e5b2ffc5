package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server       ServerConfig
	Store        StoreConfig
	DynamoDB     DynamoDBConfig
	Redis        RedisConfig
	Verification VerificationConfig
	Voice        VoiceConfig
	Twilio       TwilioConfig
	Speech       SpeechConfig
	Email        EmailConfig
	Admin        AdminConfig
}

type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	Environment  string
	CORSOrigins  []string
}

// Debug reports whether debug-only response fields (like the issued code) may be exposed.
func (c ServerConfig) Debug() bool {
	return c.Environment != "production"
}

type StoreConfig struct {
	// Backend is one of "memory", "redis" or "dynamodb".
	Backend string
}

type DynamoDBConfig struct {
	Endpoint  string
	Region    string
	TableName string
}

type RedisConfig struct {
	Endpoint string
	Password string
	DB       int
}

type VerificationConfig struct {
	CodeLength  int
	Expiry      time.Duration
	MaxAttempts int
	HashCost    int
}

type VoiceConfig struct {
	PublicBaseURL string
	SessionTTL    time.Duration
	SynthTimeout  time.Duration
}

type TwilioConfig struct {
	AccountSID  string
	AuthToken   string
	PhoneNumber string
	Timeout     time.Duration
}

type SpeechConfig struct {
	APIKey   string
	APIURL   string
	TTSModel string
	STTModel string
	Timeout  time.Duration
}

type EmailConfig struct {
	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	FromEmail    string
}

type AdminConfig struct {
	JWTSecret   string
	TokenExpiry time.Duration
}

// Load reads the configuration from the environment. A .env file in the working
// directory is loaded first when present; real environment variables win.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", "8000"),
			ReadTimeout:  getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout: getEnvAsDuration("SERVER_WRITE_TIMEOUT", 45*time.Second),
			Environment:  getEnv("ENVIRONMENT", "development"),
			CORSOrigins:  getEnvAsList("CORS_ORIGINS", []string{"*"}),
		},
		Store: StoreConfig{
			Backend: strings.ToLower(getEnv("STORE_BACKEND", "memory")),
		},
		DynamoDB: DynamoDBConfig{
			Endpoint:  getEnv("DYNAMODB_ENDPOINT", ""),
			Region:    getEnv("DYNAMODB_REGION", "us-east-1"),
			TableName: getEnv("DYNAMODB_TABLE_NAME", "CallflowTable"),
		},
		Redis: RedisConfig{
			Endpoint: getEnv("REDIS_ENDPOINT", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Verification: VerificationConfig{
			CodeLength:  getEnvAsInt("VERIFICATION_CODE_LENGTH", 6),
			Expiry:      getEnvAsDuration("VERIFICATION_EXPIRY", 5*time.Minute),
			MaxAttempts: getEnvAsInt("VERIFICATION_MAX_ATTEMPTS", 3),
			HashCost:    getEnvAsInt("VERIFICATION_HASH_COST", 10),
		},
		Voice: VoiceConfig{
			PublicBaseURL: strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://localhost:8000"), "/"),
			SessionTTL:    getEnvAsDuration("SESSION_TTL", 24*time.Hour),
			SynthTimeout:  getEnvAsDuration("SPEECH_SYNTH_TIMEOUT", 30*time.Second),
		},
		Twilio: TwilioConfig{
			AccountSID:  getEnv("TWILIO_ACCOUNT_SID", ""),
			AuthToken:   getEnv("TWILIO_AUTH_TOKEN", ""),
			PhoneNumber: getEnv("TWILIO_PHONE_NUMBER", ""),
			Timeout:     getEnvAsDuration("TWILIO_TIMEOUT", 30*time.Second),
		},
		Speech: SpeechConfig{
			APIKey:   getEnv("SARVAM_API_KEY", ""),
			APIURL:   strings.TrimRight(getEnv("SARVAM_API_URL", "https://api.sarvam.ai/v1"), "/"),
			TTSModel: getEnv("SARVAM_TTS_MODEL", "bulbul:v1"),
			STTModel: getEnv("SARVAM_STT_MODEL", "saarika:v1"),
			Timeout:  getEnvAsDuration("SARVAM_TIMEOUT", 30*time.Second),
		},
		Email: EmailConfig{
			SMTPHost:     getEnv("SMTP_HOST", ""),
			SMTPPort:     getEnvAsInt("SMTP_PORT", 587),
			SMTPUser:     getEnv("SMTP_USER", ""),
			SMTPPassword: getEnv("SMTP_PASSWORD", ""),
			FromEmail:    getEnv("SMTP_FROM_EMAIL", "noreply@callflow.local"),
		},
		Admin: AdminConfig{
			JWTSecret:   getEnv("ADMIN_JWT_SECRET", ""),
			TokenExpiry: getEnvAsDuration("ADMIN_TOKEN_EXPIRY", 12*time.Hour),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Store.Backend {
	case "memory", "redis":
	case "dynamodb":
		if c.DynamoDB.TableName == "" {
			return fmt.Errorf("DYNAMODB_TABLE_NAME is required for the dynamodb store backend")
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q (want memory, redis or dynamodb)", c.Store.Backend)
	}

	if c.Admin.JWTSecret != "" && len(c.Admin.JWTSecret) < 32 {
		return fmt.Errorf("ADMIN_JWT_SECRET must be at least 32 bytes (256 bits)")
	}

	if c.Verification.MaxAttempts < 1 {
		return fmt.Errorf("VERIFICATION_MAX_ATTEMPTS must be positive")
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
