package config

import (
	"os"
	"strconv"
	"strings"
)

type Config struct {
	HTTPAddr string

	Env string // "dev" | "prod"

	// Storage
	DataDir     string // documents DB lives here
	AuditLogDir string // audit DB lives here, separate durability settings
	IndexDir    string // chromem persistence

	// Access control
	DefaultRole string // role assumed when the request carries none
	PolicyFile  string // YAML role policy; empty = built-in defaults
	RulesFile   string // YAML workflow rules; empty = built-in defaults

	// Embedding
	Embedder       string // "local" | "ollama"
	OllamaURL      string
	OllamaModel    string
	EmbedDim       int
	EmbedTimeoutMS int
	EmbedRPS       float64

	// Search
	SearchDefaultK int
	SearchMinScore float64
}

func FromEnv() Config {
	addr := getenvDefault("DOCUFLOW_HTTP_ADDR", ":8080")

	env := strings.ToLower(getenvDefault("DOCUFLOW_ENV", "dev"))
	if env != "dev" && env != "prod" {
		// fail-soft: treat unknown as dev
		env = "dev"
	}

	embedder := strings.ToLower(getenvDefault("DOCUFLOW_EMBEDDER", "local"))
	if embedder != "local" && embedder != "ollama" {
		embedder = "local"
	}

	return Config{
		HTTPAddr: addr,
		Env:      env,

		DataDir:     getenvDefault("DOCUFLOW_DATA_DIR", "./data"),
		AuditLogDir: getenvDefault("DOCUFLOW_AUDIT_LOG_DIR", "./audit_logs"),
		IndexDir:    getenvDefault("DOCUFLOW_INDEX_DIR", "./data/index"),

		DefaultRole: getenvDefault("DOCUFLOW_DEFAULT_ROLE", "operator"),
		PolicyFile:  os.Getenv("DOCUFLOW_POLICY_FILE"),
		RulesFile:   os.Getenv("DOCUFLOW_RULES_FILE"),

		Embedder:       embedder,
		OllamaURL:      getenvDefault("DOCUFLOW_OLLAMA_URL", "http://localhost:11434"),
		OllamaModel:    getenvDefault("DOCUFLOW_OLLAMA_MODEL", "nomic-embed-text"),
		EmbedDim:       getenvInt("DOCUFLOW_EMBED_DIM", 384),
		EmbedTimeoutMS: getenvInt("DOCUFLOW_EMBED_TIMEOUT_MS", 10000),
		EmbedRPS:       getenvFloat("DOCUFLOW_EMBED_RPS", 0),

		SearchDefaultK: getenvInt("DOCUFLOW_SEARCH_DEFAULT_K", 5),
		SearchMinScore: getenvFloat("DOCUFLOW_SEARCH_MIN_SCORE", 0),
	}
}

func getenvDefault(key, def string) string {
	v := os.Getenv(key)
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func getenvInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}

func getenvFloat(key string, def float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f < 0 {
		return def
	}
	return f
}
