package config

import (
	"errors"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	App       AppConfig
	Server    ServerConfig
	Database  DatabaseConfig
	JWT       JWTConfig
	Redis     RedisConfig
	Session   SessionConfig
	Recommend RecommendConfig
	Recall    RecallConfig
}

type AppConfig struct {
	Name        string
	Version     string
	Environment string
}

type ServerConfig struct {
	Port string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

type JWTConfig struct {
	SecretKey string
}

type RedisConfig struct {
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int
}

type SessionConfig struct {
	TTLMinutes   int
	SweepMinutes int
}

type RecommendConfig struct {
	BaseWeight          float64
	DiversityWeight     float64
	UrgencyWeight       float64
	MinCandidates       int
	CandidateMultiplier int
	FetchTimeoutSeconds int
	CandidateCacheTTL   int // minutes
}

type RecallConfig struct {
	RecallGood     float64
	RecallFair     float64
	CoverageGood   float64
	CoverageFair   float64
	DiversityGood  float64
	DiversityFair  float64
	SweepWorkers   int
	EventRetention int // days
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, errors.New("invalid redis database")
	}

	cfg := &Config{
		App: AppConfig{
			Name:        getEnv("APP_NAME", "Campus Canteen Recommendation API"),
			Version:     getEnv("APP_VERSION", "1.0.0"),
			Environment: getEnv("APP_ENV", "development"),
		},
		Server: ServerConfig{
			Port: getEnv("PORT", "8080"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Name:     getEnv("DB_NAME", "campus_canteen"),
			SSLMode:  getEnv("DB_SSL_MODE", "disable"),
		},
		JWT: JWTConfig{
			SecretKey: getEnv("JWT_SECRET", ""),
		},
		Redis: RedisConfig{
			RedisHost:     getEnv("REDIS_HOST", "localhost"),
			RedisPort:     getEnv("REDIS_PORT", "6379"),
			RedisPassword: getEnv("REDIS_PASSWORD", ""),
			RedisDB:       redisDB,
		},
		Session: SessionConfig{
			TTLMinutes:   getEnvInt("SESSION_TTL_MINUTES", 30),
			SweepMinutes: getEnvInt("SESSION_SWEEP_MINUTES", 5),
		},
		Recommend: RecommendConfig{
			BaseWeight:          getEnvFloat("RECOMMEND_BASE_WEIGHT", 0.70),
			DiversityWeight:     getEnvFloat("RECOMMEND_DIVERSITY_WEIGHT", 0.20),
			UrgencyWeight:       getEnvFloat("RECOMMEND_URGENCY_WEIGHT", 0.10),
			MinCandidates:       getEnvInt("RECOMMEND_MIN_CANDIDATES", 100),
			CandidateMultiplier: getEnvInt("RECOMMEND_CANDIDATE_MULTIPLIER", 5),
			FetchTimeoutSeconds: getEnvInt("RECOMMEND_FETCH_TIMEOUT_SECONDS", 3),
			CandidateCacheTTL:   getEnvInt("RECOMMEND_CANDIDATE_CACHE_TTL_MINUTES", 10),
		},
		Recall: RecallConfig{
			RecallGood:     getEnvFloat("RECALL_GOOD", 0.7),
			RecallFair:     getEnvFloat("RECALL_FAIR", 0.5),
			CoverageGood:   getEnvFloat("COVERAGE_GOOD", 0.8),
			CoverageFair:   getEnvFloat("COVERAGE_FAIR", 0.5),
			DiversityGood:  getEnvFloat("DIVERSITY_GOOD", 3.0),
			DiversityFair:  getEnvFloat("DIVERSITY_FAIR", 2.0),
			SweepWorkers:   getEnvInt("RECALL_SWEEP_WORKERS", 8),
			EventRetention: getEnvInt("EVENT_RETENTION_DAYS", 90),
		},
	}

	if cfg.JWT.SecretKey == "" {
		return nil, errors.New("missing jwt secret")
	}

	if cfg.Database.Password == "" {
		return nil, errors.New("missing database password")
	}

	return cfg, nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}

	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}

	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}

	return defaultVal
}
