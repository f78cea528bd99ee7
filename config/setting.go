package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type ServerConfig struct {
	Port        int    `koanf:"port" validate:"required,gt=0"`
	AppName     string `koanf:"app_name" validate:"required"`
	Concurrency int    `koanf:"concurrency" validate:"gte=0"`
	BodyLimit   int    `koanf:"body_limit" validate:"gte=0"`

	// MaxInFlight caps concurrently served requests; 0 disables the limiter.
	MaxInFlight int `koanf:"max_in_flight" validate:"gte=0"`
}

type LogLevel string

const (
	Debug LogLevel = "debug"
	Info  LogLevel = "info"
	Warn  LogLevel = "warn"
	Error LogLevel = "error"
	Fatal LogLevel = "fatal"
	Panic LogLevel = "panic"
)

type Module string

const (
	ModuleMilvus     Module = "milvus"
	ModuleIngest     Module = "ingest"
	ModuleDatabase   Module = "database"
	ModuleOpenAI     Module = "openai"
	ModuleRedis      Module = "redis"
	ModuleS3         Module = "s3"
	ModuleCors       Module = "cors"
	ModuleServer     Module = "server"
	ModuleSetting    Module = "setting"
	ModuleUpload     Module = "upload"
	ModuleRetriever  Module = "retriever"
	ModuleChat       Module = "chat"
	ModuleHealth     Module = "health"
	ModuleEmbedding  Module = "embedding"
	ModuleCompletion Module = "completion"
)

// PlaceholderOpenAIKey is the value shipped in example env files; it counts as "not configured".
const PlaceholderOpenAIKey = "your_openai_api_key_here"

type OpenAIConfig struct {
	Key                string  `koanf:"key"`
	BaseURL            string  `koanf:"base_url"`
	Model              string  `koanf:"model" validate:"required"`
	EmbeddingModel     string  `koanf:"embedding_model" validate:"required"`
	EmbeddingDimension int     `koanf:"embedding_dimension" validate:"required,gt=0"`
	MaxTokens          int     `koanf:"max_tokens" validate:"gt=0"`
	Temperature        float64 `koanf:"temperature" validate:"gte=0,lte=2"`
	TimeoutSeconds     int     `koanf:"timeout_seconds" validate:"gt=0"`
}

type CorsConfig struct {
	AllowOrigins     []string `koanf:"allow_origins"`
	AllowMethods     []string `koanf:"allow_methods"`
	AllowHeaders     []string `koanf:"allow_headers"`
	AllowCredentials bool     `koanf:"allow_credentials"`
}

type MilvusConfig struct {
	Address    string `koanf:"address" validate:"required"`
	Username   string `koanf:"username"`
	Password   string `koanf:"password"`
	TLS        bool   `koanf:"tls"`
	Collection string `koanf:"collection" validate:"required"`

	// ConnectAttempts and ConnectRetryDelayMs bound the dial loop; Milvus may take a while to boot.
	ConnectAttempts     int `koanf:"connect_attempts" validate:"gt=0"`
	ConnectTimeoutMs    int `koanf:"connect_timeout_ms" validate:"gt=0"`
	ConnectRetryDelayMs int `koanf:"connect_retry_delay_ms" validate:"gte=0"`
	SearchTimeoutMs     int `koanf:"search_timeout_ms" validate:"gt=0"`

	Index IndexIVFConfig `koanf:"index"`
}

type IndexIVFConfig struct {
	NList  int `koanf:"nlist" validate:"gt=0"`
	NProbe int `koanf:"nprobe" validate:"gt=0"`
}

type RetrievalConfig struct {
	TopK                int     `koanf:"top_k" validate:"gt=0,lte=64"`
	SimilarityThreshold float64 `koanf:"similarity_threshold" validate:"gte=-1,lte=1"`
}

type DatabaseConfig struct {
	// DSN enables transcript persistence when non-empty.
	DSN          string   `koanf:"dsn"`
	Replicas     []string `koanf:"replicas"`
	MaxIdleConns int      `koanf:"max_idle_conns" validate:"gte=0"`
	MaxOpenConns int      `koanf:"max_open_conns" validate:"gte=0"`
	MaxLifetime  int      `koanf:"max_lifetime" validate:"gte=0"`
}

type RedisConfig struct {
	// Addrs enables the embedding cache when non-empty.
	Addrs    []string `koanf:"addrs"`
	Password string   `koanf:"password"`
	TTLHours int      `koanf:"ttl_hours" validate:"gte=0"`
}

type S3Config struct {
	Endpoint  string `koanf:"endpoint"`
	AccessKey string `koanf:"access_key"`
	SecretKey string `koanf:"secret_key"`
	Region    string `koanf:"region"`

	// Bucket, when set, archives uploaded files before ingestion.
	Bucket string `koanf:"bucket"`
}

type IngestConfig struct {
	ChunkTokens      int      `koanf:"chunk_tokens" validate:"gt=0"`
	ChunkOverlap     int      `koanf:"chunk_overlap" validate:"gte=0"`
	BatchSize        int      `koanf:"batch_size" validate:"gt=0"`
	EmbedConcurrency int      `koanf:"embed_concurrency" validate:"gt=0"`
	TimeoutSeconds   int      `koanf:"timeout_seconds" validate:"gt=0"`
	Include          []string `koanf:"include"`
}

type Config struct {
	Server    ServerConfig    `koanf:"server"`
	LogLevel  LogLevel        `koanf:"log_level" validate:"omitempty,oneof=debug info warn error fatal panic"`
	OpenAI    OpenAIConfig    `koanf:"openai"`
	Milvus    MilvusConfig    `koanf:"milvus"`
	Retrieval RetrievalConfig `koanf:"retrieval"`
	Database  DatabaseConfig  `koanf:"database"`
	Redis     RedisConfig     `koanf:"redis"`
	S3        S3Config        `koanf:"s3"`
	Cors      CorsConfig      `koanf:"cors"`
	Ingest    IngestConfig    `koanf:"ingest"`
}

// Default returns the built-in configuration every source is layered on.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Port:        8000,
			AppName:     "rag-chatbot",
			BodyLimit:   4 * 1024 * 1024,
			MaxInFlight: 256,
		},
		LogLevel: Info,
		OpenAI: OpenAIConfig{
			Model:              "gpt-3.5-turbo",
			EmbeddingModel:     "text-embedding-3-small",
			EmbeddingDimension: 1536,
			MaxTokens:          1000,
			Temperature:        0.7,
			TimeoutSeconds:     30,
		},
		Milvus: MilvusConfig{
			Address:             "localhost:19530",
			Collection:          "chatbot_documents",
			ConnectAttempts:     5,
			ConnectTimeoutMs:    5000,
			ConnectRetryDelayMs: 2000,
			SearchTimeoutMs:     3000,
			Index: IndexIVFConfig{
				NList:  128,
				NProbe: 10,
			},
		},
		Retrieval: RetrievalConfig{
			TopK:                3,
			SimilarityThreshold: 0.3,
		},
		Database: DatabaseConfig{
			MaxIdleConns: 5,
			MaxOpenConns: 20,
			MaxLifetime:  30,
		},
		Redis: RedisConfig{
			TTLHours: 24 * 7,
		},
		S3: S3Config{
			Region: "us-east-1",
		},
		Cors: CorsConfig{
			AllowOrigins: []string{"*"},
			AllowMethods: []string{"GET", "POST", "OPTIONS"},
			AllowHeaders: []string{"Origin", "Content-Type", "Accept", "X-Request-ID"},
		},
		Ingest: IngestConfig{
			ChunkTokens:      600,
			ChunkOverlap:     80,
			BatchSize:        32,
			EmbedConcurrency: 1,
			TimeoutSeconds:   300,
			Include:          []string{"**/*.txt", "**/*.md", "**/*.json", "**/*.pdf"},
		},
	}
}

// Load layers defaults, the YAML file at path (optional), .env and the environment, then validates.
// Environment keys use the APP_ prefix with "__" for nesting: APP_OPENAI__KEY -> openai.key.
func Load(path string) (Config, error) {
	cfg := Default()
	k := koanf.New(".")

	// .env is optional, as in local development
	_ = godotenv.Load(".env")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil && !errors.Is(err, os.ErrNotExist) {
			return cfg, fmt.Errorf("%v: load %s: %w", ModuleSetting, path, err)
		}
	}

	if err := k.Load(env.Provider("APP_", ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, "APP_")), "__", ".")
	}), nil); err != nil {
		return cfg, fmt.Errorf("%v: load env: %w", ModuleSetting, err)
	}

	if err := k.Unmarshal("", &cfg); err != nil {
		return cfg, fmt.Errorf("%v: unmarshal: %w", ModuleSetting, err)
	}

	applyLegacyEnv(&cfg)

	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks struct tags and reports every failing field at once.
func Validate(cfg Config) error {
	validate := validator.New()
	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return fmt.Errorf("%v: config validation failed: %w", ModuleSetting, err)
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%v: config validation failed:", ModuleSetting))
	for _, e := range errs {
		sb.WriteString(fmt.Sprintf("\n  - %s: failed '%s' (value: %v)", e.Namespace(), e.Tag(), e.Value()))
	}
	return errors.New(sb.String())
}

// applyLegacyEnv honours the flat variable names used by earlier deployments.
// Values only fill fields the APP_ variables left at their defaults.
func applyLegacyEnv(cfg *Config) {
	def := Default()
	setString := func(dst *string, name, defValue string) {
		if v, ok := os.LookupEnv(name); ok && v != "" && *dst == defValue {
			*dst = v
		}
	}
	setString(&cfg.OpenAI.Key, "OPENAI_API_KEY", def.OpenAI.Key)
	setString(&cfg.OpenAI.Model, "OPENAI_MODEL", def.OpenAI.Model)
	setString(&cfg.OpenAI.EmbeddingModel, "OPENAI_EMBEDDING_MODEL", def.OpenAI.EmbeddingModel)
	setString(&cfg.Milvus.Username, "MILVUS_USERNAME", def.Milvus.Username)
	setString(&cfg.Milvus.Password, "MILVUS_PASSWORD", def.Milvus.Password)
	setString(&cfg.Milvus.Collection, "MILVUS_COLLECTION_NAME", def.Milvus.Collection)

	if v, ok := os.LookupEnv("OPENAI_EMBEDDING_DIMENSION"); ok && cfg.OpenAI.EmbeddingDimension == def.OpenAI.EmbeddingDimension {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.OpenAI.EmbeddingDimension = n
		}
	}

	// managed Milvus is addressed as host + port and always served over TLS
	if host, ok := os.LookupEnv("MILVUS_HOST"); ok && host != "" && cfg.Milvus.Address == def.Milvus.Address {
		port := os.Getenv("MILVUS_PORT")
		if port == "" {
			port = "443"
		}
		cfg.Milvus.Address = host + ":" + port
		cfg.Milvus.TLS = true
	}
}
