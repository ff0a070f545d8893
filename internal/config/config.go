package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	PostgreSQL PostgreSQLConfig
	Server     ServerConfig
	AI         AIConfig
	Chat       ChatConfig
	Search     SearchConfig
	Estimation EstimationConfig
}

// PostgreSQLConfig holds PostgreSQL database configuration
type PostgreSQLConfig struct {
	DSN                string
	Host               string
	Port               int
	User               string
	Password           string
	Database           string
	SSLMode            string
	MaxConnections     int
	MaxIdleConnections int
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port           int
	Host           string
	GinMode        string
	AllowedOrigins string
}

// AIConfig holds the embedding/completion provider configuration.
// AI-dependent features require both FeatureFlag and APIKey; absence of
// either degrades every dependent operation to its documented fallback
// instead of failing the request.
type AIConfig struct {
	FeatureFlag         bool
	APIKey              string
	APIBase             string
	ChatModel           string
	ChatMaxTokens       int
	EmbeddingModel      string
	EmbeddingDimensions int
	BatchSize           int
	BatchPause          time.Duration
	Timeout             time.Duration
}

// Enabled reports whether AI-backed features may make provider calls.
func (c *AIConfig) Enabled() bool {
	return c.FeatureFlag && c.APIKey != ""
}

// ChatConfig holds conversation/session configuration
type ChatConfig struct {
	SessionTimeout       time.Duration // idle window within which a session is resumed
	RetentionWindow      time.Duration // sessions idle longer than this are archived
	MaxPersistedMessages int           // history cap per session
	ContextWindow        int           // messages passed to the language model
	ArchiveSweepInterval time.Duration
}

// SearchConfig holds search-related configuration
type SearchConfig struct {
	DefaultLimit    int
	MaxLimit        int
	OverFetchFactor int // semantic search retrieves factor*limit candidates
}

// EstimationConfig holds price-estimation heuristics. These are tunable
// thresholds, not derived values.
type EstimationConfig struct {
	ComparablePool     int     // candidate pool size for comparable retrieval
	BedroomTolerance   int     // comparable bedrooms may differ by this much
	PriceBand          float64 // specs-based similarity: price within this fraction
	SimilarityHigh     float64 // comparable counts as high-similarity above this
	SimilarityGood     float64 // data-quality counter threshold
	HighMinComparables int
	HighMinHighSim     int
	HighMinRecentSales int
	MedMinComparables  int
	MedMinHighSim      int
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file (optional)
	_ = godotenv.Load()

	cfg := &Config{
		PostgreSQL: PostgreSQLConfig{
			DSN:                getEnv("DATABASE_URL", getEnv("POSTGRESQL_URI", getEnv("PG_DSN", ""))),
			Host:               getEnv("PG_HOST", "localhost"),
			Port:               getEnvAsInt("PG_PORT", 5432),
			User:               getEnv("PG_USER", "postgres"),
			Password:           getEnv("PG_PASSWORD", ""),
			Database:           getEnv("PG_DATABASE", "realestate"),
			SSLMode:            getEnv("PG_SSLMODE", "disable"),
			MaxConnections:     getEnvAsInt("PG_MAX_CONNECTIONS", 25),
			MaxIdleConnections: getEnvAsInt("PG_MAX_IDLE_CONNECTIONS", 5),
		},
		Server: ServerConfig{
			Port:           getEnvAsInt("SERVER_PORT", 8080),
			Host:           getEnv("SERVER_HOST", "0.0.0.0"),
			GinMode:        getEnv("GIN_MODE", "release"),
			AllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),
		},
		AI: AIConfig{
			FeatureFlag:         getEnvAsBool("AI_FEATURES_ENABLED", false),
			APIKey:              getEnv("OPENAI_API_KEY", ""),
			APIBase:             getEnv("OPENAI_API_BASE", "https://api.openai.com/v1"),
			ChatModel:           getEnv("OPENAI_CHAT_MODEL", "gpt-4o-mini"),
			ChatMaxTokens:       getEnvAsInt("OPENAI_CHAT_MAX_TOKENS", 1024),
			EmbeddingModel:      getEnv("OPENAI_EMBEDDING_MODEL", "text-embedding-3-small"),
			EmbeddingDimensions: getEnvAsInt("OPENAI_EMBEDDING_DIMENSIONS", 1536),
			BatchSize:           getEnvAsInt("OPENAI_BATCH_SIZE", 100),
			BatchPause:          getEnvAsDuration("OPENAI_BATCH_PAUSE", 2*time.Second),
			Timeout:             getEnvAsDuration("OPENAI_TIMEOUT", 30*time.Second),
		},
		Chat: ChatConfig{
			SessionTimeout:       getEnvAsDuration("CHAT_SESSION_TIMEOUT", 30*time.Minute),
			RetentionWindow:      getEnvAsDuration("CHAT_RETENTION_WINDOW", 90*24*time.Hour),
			MaxPersistedMessages: getEnvAsInt("CHAT_MAX_MESSAGES", 20),
			ContextWindow:        getEnvAsInt("CHAT_CONTEXT_WINDOW", 6),
			ArchiveSweepInterval: getEnvAsDuration("CHAT_ARCHIVE_SWEEP_INTERVAL", 6*time.Hour),
		},
		Search: SearchConfig{
			DefaultLimit:    getEnvAsInt("SEARCH_DEFAULT_LIMIT", 10),
			MaxLimit:        getEnvAsInt("SEARCH_MAX_LIMIT", 50),
			OverFetchFactor: getEnvAsInt("SEARCH_OVERFETCH_FACTOR", 2),
		},
		Estimation: EstimationConfig{
			ComparablePool:     getEnvAsInt("ESTIMATE_COMPARABLE_POOL", 100),
			BedroomTolerance:   getEnvAsInt("ESTIMATE_BEDROOM_TOLERANCE", 1),
			PriceBand:          getEnvAsFloat("ESTIMATE_PRICE_BAND", 0.20),
			SimilarityHigh:     getEnvAsFloat("ESTIMATE_SIMILARITY_HIGH", 0.85),
			SimilarityGood:     getEnvAsFloat("ESTIMATE_SIMILARITY_GOOD", 0.80),
			HighMinComparables: getEnvAsInt("ESTIMATE_HIGH_MIN_COMPARABLES", 10),
			HighMinHighSim:     getEnvAsInt("ESTIMATE_HIGH_MIN_HIGH_SIM", 5),
			HighMinRecentSales: getEnvAsInt("ESTIMATE_HIGH_MIN_RECENT_SALES", 3),
			MedMinComparables:  getEnvAsInt("ESTIMATE_MED_MIN_COMPARABLES", 5),
			MedMinHighSim:      getEnvAsInt("ESTIMATE_MED_MIN_HIGH_SIM", 2),
		},
	}

	return cfg, nil
}

// GetPostgreSQLDSN returns PostgreSQL connection string
func (c *Config) GetPostgreSQLDSN() string {
	if c.PostgreSQL.DSN != "" {
		return c.PostgreSQL.DSN
	}

	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.PostgreSQL.Host,
		c.PostgreSQL.Port,
		c.PostgreSQL.User,
		c.PostgreSQL.Password,
		c.PostgreSQL.Database,
		c.PostgreSQL.SSLMode,
	)
}

// Helper functions

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Warning: Invalid integer value for %s, using default %d", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		log.Printf("Warning: Invalid float value for %s, using default %f", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		log.Printf("Warning: Invalid boolean value for %s, using default %t", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		log.Printf("Warning: Invalid duration value for %s, using default %s", key, defaultValue)
		return defaultValue
	}
	return value
}
