package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// MongoConfig holds the entry store connection settings.
type MongoConfig struct {
	Address    string `yaml:"address"`
	Username   string `yaml:"username"`
	Password   string `yaml:"password"`
	Database   string `yaml:"database"`
	Collection string `yaml:"collection"`
}

// MySQLConfig holds the feedback event log connection settings.
type MySQLConfig struct {
	Address         string `yaml:"address"`
	Username        string `yaml:"username"`
	Password        string `yaml:"password"`
	Database        string `yaml:"database"`
	MaxOpenConns    int    `yaml:"maxOpenConns"`
	MaxIdleConns    int    `yaml:"maxIdleConns"`
	ConnMaxLifetime int    `yaml:"connMaxLifetime"` // seconds
}

// RedisConfig holds the embedding cache connection settings.
type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	// TTL for cached embedding vectors, seconds. 0 means no expiry.
	EmbeddingTTL int `yaml:"embeddingTTL"`
}

// MilvusConfig holds the embedding store connection and collection settings.
type MilvusConfig struct {
	Address        string `yaml:"address"`
	CollectionName string `yaml:"collectionName"`
	// Dimension of the embedding vectors. Persisted layout: changing it
	// invalidates every stored vector.
	Dimension int `yaml:"dimension"`
}

// KafkaConfig holds the ingestion transport settings.
type KafkaConfig struct {
	Brokers      []string `yaml:"brokers"`
	AnswersTopic string   `yaml:"answersTopic"`
	GroupID      string   `yaml:"groupID"`
}

// MinIOConfig holds the voice note object storage settings.
type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"accessKey"`
	SecretKey string `yaml:"secretKey"`
	Bucket    string `yaml:"bucket"`
	Secure    bool   `yaml:"secure"`
}

// DatabaseConfigs groups every storage backend.
type DatabaseConfigs struct {
	MongoDB MongoConfig  `yaml:"mongodb"`
	MySQL   MySQLConfig  `yaml:"mysql"`
	Redis   RedisConfig  `yaml:"redis"`
	Milvus  MilvusConfig `yaml:"milvus"`
	Kafka   KafkaConfig  `yaml:"kafka"`
	MinIO   MinIOConfig  `yaml:"minio"`
}

// ProviderConfig configures one external model provider.
type ProviderConfig struct {
	APIKey  string `yaml:"apiKey"`
	Model   string `yaml:"model"`
	BaseURL string `yaml:"baseURL,omitempty"`
}

// EmbeddingConfig selects and configures the embedding provider.
type EmbeddingConfig struct {
	Provider string         `yaml:"provider"` // "ollama", "openai" or "google"
	Ollama   ProviderConfig `yaml:"ollama"`
	OpenAI   ProviderConfig `yaml:"openai"`
	Google   ProviderConfig `yaml:"google"`
	// TimeoutSec bounds a single provider call.
	TimeoutSec int `yaml:"timeoutSec"`
	// MaxAttempts bounds the retry loop; backoff between attempts is
	// exponential starting at BackoffMS milliseconds.
	MaxAttempts int `yaml:"maxAttempts"`
	BackoffMS   int `yaml:"backoffMS"`
}

// VerifierConfig configures the external plausibility check used by the
// linker. The verifier is optional: an empty API key disables blending.
type VerifierConfig struct {
	Gemini     ProviderConfig `yaml:"gemini"`
	TimeoutSec int            `yaml:"timeoutSec"`
}

// ScoringConfig gathers every weight, threshold and window the retrieval and
// linking core reads. Algorithm code never hardcodes these values; tests pin
// the documented defaults.
type ScoringConfig struct {
	// Confidence scorer factor weights. Must sum to 1.0.
	WeightVector   float64 `yaml:"weightVector"`   // default 0.40
	WeightThematic float64 `yaml:"weightThematic"` // default 0.25
	WeightQuality  float64 `yaml:"weightQuality"`  // default 0.20
	WeightRecency  float64 `yaml:"weightRecency"`  // default 0.15

	// Discrete confidence levels.
	HighThreshold   float64 `yaml:"highThreshold"`   // default 0.65
	MediumThreshold float64 `yaml:"mediumThreshold"` // default 0.45

	// Ranker knobs.
	FeedbackBoostLimit float64 `yaml:"feedbackBoostLimit"` // default 0.2
	KeywordBonus       float64 `yaml:"keywordBonus"`       // default 0.05
	MaxKeywords        int     `yaml:"maxKeywords"`        // default 6

	// Response validator guardrails.
	MinVectorScore  float64 `yaml:"minVectorScore"`  // default 0.35
	MinAnswerLength int     `yaml:"minAnswerLength"` // default 30
	LowConfidence   float64 `yaml:"lowConfidence"`   // default 0.5

	// Query validator.
	MinQueryLength     int      `yaml:"minQueryLength"`     // default 5
	OffTopicMultiplier float64  `yaml:"offTopicMultiplier"` // default 0.5
	DomainKeywords     []string `yaml:"domainKeywords"`

	// Linker weights and windows.
	LinkSemanticWeight  float64 `yaml:"linkSemanticWeight"`  // default 0.8
	LinkTextWeight      float64 `yaml:"linkTextWeight"`      // default 0.3
	LinkContextWeight   float64 `yaml:"linkContextWeight"`   // default 0.2
	SameAuthorBonus     float64 `yaml:"sameAuthorBonus"`     // default 0.05
	LanguageBonus       float64 `yaml:"languageBonus"`       // default 0.05
	CandidateWindowHrs  int     `yaml:"candidateWindowHrs"`  // default 72
	CandidateLimit      int     `yaml:"candidateLimit"`      // default 100
	ContextGapHrs       int     `yaml:"contextGapHrs"`       // default 24
	TimeDecayCapHrs     int     `yaml:"timeDecayCapHrs"`     // default 48
	TimeDecayMax        float64 `yaml:"timeDecayMax"`        // default 0.1
	VerifyThreshold     float64 `yaml:"verifyThreshold"`     // default 0.3
	VerifierBlendWeight float64 `yaml:"verifierBlendWeight"` // default 0.3
	AcceptThreshold     float64 `yaml:"acceptThreshold"`     // default 0.55

	// Vector cache TTL, seconds.
	CacheTTLSec int `yaml:"cacheTTLSec"` // default 300
}

// IndexerConfig bounds the bulk re-embedding worker pool.
type IndexerConfig struct {
	Concurrency int `yaml:"concurrency"` // default 4
	BatchSize   int `yaml:"batchSize"`   // default 200
}

// MiddlewareConfig configures the HTTP surface protections.
type MiddlewareConfig struct {
	RateLimiter RateLimiterConfig `yaml:"rateLimiter"`
}

// RateLimiterConfig configures the token bucket in front of the API.
type RateLimiterConfig struct {
	Enabled  bool    `yaml:"enabled"`
	Rate     float64 `yaml:"rate"` // tokens per second
	Capacity int     `yaml:"capacity"`
}

// AppInfo holds basic application metadata.
type AppInfo struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
}

// LoggerConfig selects the log level.
type LoggerConfig struct {
	Level string `yaml:"level"`
}

// ServerConfig holds the HTTP listen address.
type ServerConfig struct {
	Address string `yaml:"address"`
}

// AppConfig is the root of the YAML configuration file.
type AppConfig struct {
	App        AppInfo          `yaml:"app"`
	Server     ServerConfig     `yaml:"server"`
	Logger     LoggerConfig     `yaml:"logger"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Verifier   VerifierConfig   `yaml:"verifier"`
	Scoring    ScoringConfig    `yaml:"scoring"`
	Indexer    IndexerConfig    `yaml:"indexer"`
	Middleware MiddlewareConfig `yaml:"middleware"`
	Databases  DatabaseConfigs  `yaml:"databases"`
}

// DefaultScoring returns the documented scoring defaults. The weights and
// thresholds are part of the persisted layout: stored link confidences are
// only comparable across versions if these stay put.
func DefaultScoring() ScoringConfig {
	return ScoringConfig{
		WeightVector:   0.40,
		WeightThematic: 0.25,
		WeightQuality:  0.20,
		WeightRecency:  0.15,

		HighThreshold:   0.65,
		MediumThreshold: 0.45,

		FeedbackBoostLimit: 0.2,
		KeywordBonus:       0.05,
		MaxKeywords:        6,

		MinVectorScore:  0.35,
		MinAnswerLength: 30,
		LowConfidence:   0.5,

		MinQueryLength:     5,
		OffTopicMultiplier: 0.5,
		DomainKeywords:     defaultDomainKeywords(),

		LinkSemanticWeight:  0.8,
		LinkTextWeight:      0.3,
		LinkContextWeight:   0.2,
		SameAuthorBonus:     0.05,
		LanguageBonus:       0.05,
		CandidateWindowHrs:  72,
		CandidateLimit:      100,
		ContextGapHrs:       24,
		TimeDecayCapHrs:     48,
		TimeDecayMax:        0.1,
		VerifyThreshold:     0.3,
		VerifierBlendWeight: 0.3,
		AcceptThreshold:     0.55,

		CacheTTLSec: 300,
	}
}

// defaultDomainKeywords is the vocabulary used for domain classification and
// thematic overlap. The archive is multilingual; the list mixes French
// transliterations with Hebrew terms as they appear in transcripts.
func defaultDomainKeywords() []string {
	return []string{
		"chabbat", "shabbat", "cacherout", "casher", "kasher", "kashrout",
		"priere", "tefila", "tefiline", "mezouza", "bougie", "bougies",
		"synagogue", "rabbin", "rav", "torah", "mitsva", "mitsvot",
		"halakha", "halacha", "berakha", "brakha", "kiddouch", "havdala",
		"pessah", "kippour", "souccot", "hanouka", "pourim", "roch",
		"hachana", "jeune", "talit", "minyan", "nidda", "mikve",
		"conversion", "deuil", "mariage", "brit", "mila", "tsniout",
		"tsedaka", "chofar", "omer", "techouva",
	}
}

// ApplyDefaults fills zero-valued knobs with their documented defaults so a
// partial YAML file stays usable.
func (c *AppConfig) ApplyDefaults() {
	def := DefaultScoring()
	s := &c.Scoring
	if s.WeightVector == 0 && s.WeightThematic == 0 && s.WeightQuality == 0 && s.WeightRecency == 0 {
		s.WeightVector = def.WeightVector
		s.WeightThematic = def.WeightThematic
		s.WeightQuality = def.WeightQuality
		s.WeightRecency = def.WeightRecency
	}
	if s.HighThreshold == 0 {
		s.HighThreshold = def.HighThreshold
	}
	if s.MediumThreshold == 0 {
		s.MediumThreshold = def.MediumThreshold
	}
	if s.FeedbackBoostLimit == 0 {
		s.FeedbackBoostLimit = def.FeedbackBoostLimit
	}
	if s.KeywordBonus == 0 {
		s.KeywordBonus = def.KeywordBonus
	}
	if s.MaxKeywords == 0 {
		s.MaxKeywords = def.MaxKeywords
	}
	if s.MinVectorScore == 0 {
		s.MinVectorScore = def.MinVectorScore
	}
	if s.MinAnswerLength == 0 {
		s.MinAnswerLength = def.MinAnswerLength
	}
	if s.LowConfidence == 0 {
		s.LowConfidence = def.LowConfidence
	}
	if s.MinQueryLength == 0 {
		s.MinQueryLength = def.MinQueryLength
	}
	if s.OffTopicMultiplier == 0 {
		s.OffTopicMultiplier = def.OffTopicMultiplier
	}
	if len(s.DomainKeywords) == 0 {
		s.DomainKeywords = def.DomainKeywords
	}
	if s.LinkSemanticWeight == 0 {
		s.LinkSemanticWeight = def.LinkSemanticWeight
	}
	if s.LinkTextWeight == 0 {
		s.LinkTextWeight = def.LinkTextWeight
	}
	if s.LinkContextWeight == 0 {
		s.LinkContextWeight = def.LinkContextWeight
	}
	if s.SameAuthorBonus == 0 {
		s.SameAuthorBonus = def.SameAuthorBonus
	}
	if s.LanguageBonus == 0 {
		s.LanguageBonus = def.LanguageBonus
	}
	if s.CandidateWindowHrs == 0 {
		s.CandidateWindowHrs = def.CandidateWindowHrs
	}
	if s.CandidateLimit == 0 {
		s.CandidateLimit = def.CandidateLimit
	}
	if s.ContextGapHrs == 0 {
		s.ContextGapHrs = def.ContextGapHrs
	}
	if s.TimeDecayCapHrs == 0 {
		s.TimeDecayCapHrs = def.TimeDecayCapHrs
	}
	if s.TimeDecayMax == 0 {
		s.TimeDecayMax = def.TimeDecayMax
	}
	if s.VerifyThreshold == 0 {
		s.VerifyThreshold = def.VerifyThreshold
	}
	if s.VerifierBlendWeight == 0 {
		s.VerifierBlendWeight = def.VerifierBlendWeight
	}
	if s.AcceptThreshold == 0 {
		s.AcceptThreshold = def.AcceptThreshold
	}
	if s.CacheTTLSec == 0 {
		s.CacheTTLSec = def.CacheTTLSec
	}
	if c.Embedding.TimeoutSec == 0 {
		c.Embedding.TimeoutSec = 30
	}
	if c.Embedding.MaxAttempts == 0 {
		c.Embedding.MaxAttempts = 3
	}
	if c.Embedding.BackoffMS == 0 {
		c.Embedding.BackoffMS = 500
	}
	if c.Verifier.TimeoutSec == 0 {
		c.Verifier.TimeoutSec = 20
	}
	if c.Indexer.Concurrency == 0 {
		c.Indexer.Concurrency = 4
	}
	if c.Indexer.BatchSize == 0 {
		c.Indexer.BatchSize = 200
	}
	if c.Server.Address == "" {
		c.Server.Address = ":8080"
	}
}

// Validate rejects configurations the scoring core cannot run with. The
// weight sum check guards the calibration of every persisted confidence.
func (c *AppConfig) Validate() error {
	s := c.Scoring
	sum := s.WeightVector + s.WeightThematic + s.WeightQuality + s.WeightRecency
	if diff := sum - 1.0; diff > 1e-9 || diff < -1e-9 {
		return fmt.Errorf("confidence weights must sum to 1.0, got %v", sum)
	}
	if c.Databases.Milvus.Dimension <= 0 {
		return fmt.Errorf("milvus embedding dimension must be positive")
	}
	return nil
}

// LoadConfig reads and parses the YAML configuration file at path, applies
// defaults and validates the result.
func LoadConfig(path string) (*AppConfig, error) {
	yamlFile, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(yamlFile, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
