package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Auth     AuthConfig
	CheckIn  CheckInConfig
	Stripe   StripeConfig
}

type ServerConfig struct {
	Port           string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	AllowedOrigins []string
}

type DatabaseConfig struct {
	DSN           string
	MaxOpenConns  int
	MaxIdleConns  int
	MaxLifetime   time.Duration
	ConnRetries   int
	MigrationsDir string
	AutoMigrate   bool
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type KafkaConfig struct {
	Brokers []string
	GroupID string
	Topics  TopicConfig
	Enabled bool
}

type TopicConfig struct {
	CodeGenerated     string
	CheckInRegistered string
	CheckInSettled    string
}

type AuthConfig struct {
	OIDCIssuer        string
	AccessTokenSecret string
}

// CheckInConfig holds the tunables of the code lifecycle.
type CheckInConfig struct {
	CodeTTL             time.Duration
	SubscribeTimeout    time.Duration
	DefaultTimezone     string
	MaxCodeAttempts     int
	GenerateRatePerMin  int
	GenerateBurst       int
	QRImageSize         int
	SettlementBatchSize int
	SettlementInterval  time.Duration
}

type StripeConfig struct {
	SecretKey string
	Currency  string
}

func Load() *Config {
	codeTTL := getEnvDuration("CHECKIN_CODE_TTL", 5*time.Minute)

	return &Config{
		Server: ServerConfig{
			Port:           getEnv("PORT", ":8084"),
			ReadTimeout:    15 * time.Second,
			// SSE streams stay open for up to the subscribe timeout.
			WriteTimeout:   0,
			IdleTimeout:    60 * time.Second,
			AllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		},
		Database: DatabaseConfig{
			DSN:           getEnv("POSTGRES_DSN", ""),
			MaxOpenConns:  getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:  getEnvInt("DB_MAX_IDLE_CONNS", 25),
			MaxLifetime:   time.Duration(getEnvInt("DB_MAX_LIFETIME_MINUTES", 5)) * time.Minute,
			ConnRetries:   getEnvInt("DB_CONN_RETRIES", 5),
			MigrationsDir: getEnv("MIGRATIONS_DIR", "./migrations"),
			AutoMigrate:   getEnvBool("AUTO_MIGRATE", true),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Kafka: KafkaConfig{
			Brokers: getEnvList("KAFKA_ADDR", []string{"localhost:9092"}),
			GroupID: getEnv("KAFKA_GROUP_ID", "checkin-settlement"),
			Enabled: getEnvBool("KAFKA_ENABLED", true),
			Topics: TopicConfig{
				CodeGenerated:     getEnv("KAFKA_TOPIC_CODE_GENERATED", "gym.checkin.code_generated"),
				CheckInRegistered: getEnv("KAFKA_TOPIC_CHECKIN_REGISTERED", "gym.checkin.registered"),
				CheckInSettled:    getEnv("KAFKA_TOPIC_CHECKIN_SETTLED", "gym.checkin.settled"),
			},
		},
		Auth: AuthConfig{
			OIDCIssuer:        getEnv("OIDC_ISSUER", ""),
			AccessTokenSecret: getEnv("ACCESS_TOKEN_SECRET", ""),
		},
		CheckIn: CheckInConfig{
			CodeTTL:             codeTTL,
			SubscribeTimeout:    getEnvDuration("CHECKIN_SUBSCRIBE_TIMEOUT", codeTTL),
			DefaultTimezone:     getEnv("CHECKIN_DEFAULT_TIMEZONE", "UTC"),
			MaxCodeAttempts:     getEnvInt("CHECKIN_MAX_CODE_ATTEMPTS", 10),
			GenerateRatePerMin:  getEnvInt("CHECKIN_GENERATE_RATE_PER_MIN", 10),
			GenerateBurst:       getEnvInt("CHECKIN_GENERATE_BURST", 3),
			QRImageSize:         getEnvInt("CHECKIN_QR_IMAGE_SIZE", 256),
			SettlementBatchSize: getEnvInt("SETTLEMENT_BATCH_SIZE", 100),
			SettlementInterval:  getEnvDuration("SETTLEMENT_INTERVAL", time.Minute),
		},
		Stripe: StripeConfig{
			SecretKey: getEnv("STRIPE_SECRET_KEY", ""),
			Currency:  getEnv("STRIPE_CURRENCY", "brl"),
		},
	}
}

// Validate reports the settings the API service cannot start without.
func (c *Config) Validate() error {
	var errs []error
	if c.Database.DSN == "" {
		errs = append(errs, errors.New("POSTGRES_DSN not set"))
	}
	if c.Auth.OIDCIssuer == "" {
		errs = append(errs, errors.New("OIDC_ISSUER not set"))
	}
	if c.Auth.AccessTokenSecret == "" {
		errs = append(errs, errors.New("ACCESS_TOKEN_SECRET not set"))
	}
	if c.CheckIn.CodeTTL <= 0 {
		errs = append(errs, errors.New("CHECKIN_CODE_TTL must be positive"))
	}
	if _, err := time.LoadLocation(c.CheckIn.DefaultTimezone); err != nil {
		errs = append(errs, errors.New("CHECKIN_DEFAULT_TIMEZONE is not a valid IANA zone"))
	}
	return errors.Join(errs...)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
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

func getEnvList(key string, defaultValue []string) []string {
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
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
