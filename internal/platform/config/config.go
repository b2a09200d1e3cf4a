// Package config builds runtime configuration from the environment so main
// stays lean. Every tunable carries a production default; a .env file is
// honored when present.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Server captures HTTP server level configuration.
type Server struct {
	Addr string
}

// Sources are the base URLs of the external enrichment services.
type Sources struct {
	SanctionsURL     string
	RegistryURL      string
	FilingsURL       string
	KnowledgeBaseURL string
	Timeout          time.Duration
}

// Cache tunes the enrichment cache. RedisURL empty selects the in-process
// cache.
type Cache struct {
	Capacity int
	TTL      time.Duration
	RedisURL string
}

// Retry tunes the per-entity source retry loop.
type Retry struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// Kafka configures assessment publication. Empty brokers disable it.
type Kafka struct {
	Brokers     []string
	TopicPrefix string
	Partitions  int32
}

// Neo4j configures the relationship graph. Empty URI selects the in-memory
// graph.
type Neo4j struct {
	URI      string
	Username string
	Password string
	MaxDepth int
}

// Mongo configures assessment persistence. Empty URI selects the in-memory
// store.
type Mongo struct {
	URI      string
	Database string
}

// Postgres configures the audit trail store. Empty DSN selects the in-memory
// store.
type Postgres struct {
	DSN string
}

// Pipeline tunes orchestration behavior.
type Pipeline struct {
	Aggregation        string
	Parallelism        int
	RelationshipWeight float64
	HighThreshold      float64
	MediumThreshold    float64
	WeightSanctions    float64
	WeightJurisdiction float64
	WeightCorporate    float64
	WeightHistorical   float64
}

// Config is the full process configuration.
type Config struct {
	Server   Server
	Sources  Sources
	Cache    Cache
	Retry    Retry
	Kafka    Kafka
	Neo4j    Neo4j
	Mongo    Mongo
	Postgres Postgres
	Pipeline Pipeline
	LogLevel string
}

// Load reads an optional .env file and then builds the config from the
// environment.
func Load() Config {
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv builds a Config from FINRISK_* environment variables.
func FromEnv() Config {
	return Config{
		Server: Server{
			Addr: getString("FINRISK_HTTP_ADDR", ":8080"),
		},
		Sources: Sources{
			SanctionsURL:     getString("FINRISK_SANCTIONS_URL", "http://localhost:9001"),
			RegistryURL:      getString("FINRISK_REGISTRY_URL", "http://localhost:9002"),
			FilingsURL:       getString("FINRISK_FILINGS_URL", "http://localhost:9003"),
			KnowledgeBaseURL: getString("FINRISK_KNOWLEDGE_URL", "http://localhost:9004"),
			Timeout:          getDuration("FINRISK_SOURCE_TIMEOUT", 10*time.Second),
		},
		Cache: Cache{
			Capacity: getInt("FINRISK_CACHE_CAPACITY", 1000),
			TTL:      getDuration("FINRISK_CACHE_TTL", time.Hour),
			RedisURL: os.Getenv("FINRISK_REDIS_URL"),
		},
		Retry: Retry{
			MaxAttempts:    getInt("FINRISK_RETRY_ATTEMPTS", 3),
			InitialBackoff: getDuration("FINRISK_RETRY_INITIAL_BACKOFF", 4*time.Second),
			MaxBackoff:     getDuration("FINRISK_RETRY_MAX_BACKOFF", 10*time.Second),
		},
		Kafka: Kafka{
			Brokers:     getList("FINRISK_KAFKA_BROKERS"),
			TopicPrefix: getString("FINRISK_KAFKA_TOPIC_PREFIX", "transactions"),
			Partitions:  int32(getInt("FINRISK_KAFKA_PARTITIONS", 3)),
		},
		Neo4j: Neo4j{
			URI:      os.Getenv("FINRISK_NEO4J_URI"),
			Username: getString("FINRISK_NEO4J_USER", "neo4j"),
			Password: os.Getenv("FINRISK_NEO4J_PASSWORD"),
			MaxDepth: getInt("FINRISK_GRAPH_MAX_DEPTH", 2),
		},
		Mongo: Mongo{
			URI:      os.Getenv("FINRISK_MONGO_URI"),
			Database: getString("FINRISK_MONGO_DATABASE", "finrisk"),
		},
		Postgres: Postgres{
			DSN: os.Getenv("FINRISK_POSTGRES_DSN"),
		},
		Pipeline: Pipeline{
			Aggregation:        getString("FINRISK_AGGREGATION", "max"),
			Parallelism:        getInt("FINRISK_PARALLELISM", 4),
			RelationshipWeight: getFloat("FINRISK_RELATIONSHIP_WEIGHT", 0.5),
			HighThreshold:      getFloat("FINRISK_HIGH_THRESHOLD", 75),
			MediumThreshold:    getFloat("FINRISK_MEDIUM_THRESHOLD", 50),
			WeightSanctions:    getFloat("FINRISK_WEIGHT_SANCTIONS", 0.4),
			WeightJurisdiction: getFloat("FINRISK_WEIGHT_JURISDICTION", 0.3),
			WeightCorporate:    getFloat("FINRISK_WEIGHT_CORPORATE", 0.2),
			WeightHistorical:   getFloat("FINRISK_WEIGHT_HISTORICAL", 0.1),
		},
		LogLevel: getString("FINRISK_LOG_LEVEL", "info"),
	}
}

func getString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func getList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
