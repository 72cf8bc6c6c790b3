package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	ListenAddr  string
	LogLevel    string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	Bank BankConfig
}

// BankConfig is the outbound bank API surface: endpoint, credentials and the
// key material used by the crypto envelope.
type BankConfig struct {
	BaseURL        string
	APIKey         string
	MerchantID     string
	SubMerchantID  string
	TerminalID     string
	PublicCertPath string
	PrivateKeyPath string
	RequestTimeout int // seconds
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		AppName:     getenv("APP_SERVICE", "recurpay"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Environment: getenv("ENVIRONMENT", "development"),
		ListenAddr:  getenv("LISTEN_ADDR", ":8080"),
		LogLevel:    getenv("LOG_LEVEL", "info"),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "recurpay"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 20),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 3600),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 600),

		Bank: BankConfig{
			BaseURL:        getenv("BANK_API_BASE_URL", ""),
			APIKey:         getenv("BANK_API_KEY", ""),
			MerchantID:     getenv("BANK_MERCHANT_ID", ""),
			SubMerchantID:  getenv("BANK_SUB_MERCHANT_ID", ""),
			TerminalID:     getenv("BANK_TERMINAL_ID", "5411"),
			PublicCertPath: getenv("BANK_PUBLIC_CERT_PATH", "certs/bank_public.pem"),
			PrivateKeyPath: getenv("BANK_PRIVATE_KEY_PATH", "certs/merchant_private.pem"),
			RequestTimeout: getenvInt("BANK_REQUEST_TIMEOUT_SECONDS", 30),
		},
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}
