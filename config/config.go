package config

import (
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	LLM        LLMConfig        `yaml:"llm"`
	Generation GenerationConfig `yaml:"generation"`
}

type ServerConfig struct {
	Port string `yaml:"port"`
	Mode string `yaml:"mode"` // debug, release
}

type DatabaseConfig struct {
	Type string `yaml:"type"` // sqlite, mysql
	DSN  string `yaml:"dsn"`
}

// LLMConfig holds the provider endpoints. Every provider except OpenAI is
// reached through its OpenAI-compatible chat completions endpoint.
type LLMConfig struct {
	DefaultProvider string `yaml:"default_provider"` // openai, ollama, gemini, groq

	OpenAIAPIKey string `yaml:"openai_api_key"`
	OpenAIURL    string `yaml:"openai_url"`
	OpenAIModel  string `yaml:"openai_model"`

	OllamaURL   string `yaml:"ollama_url"`
	OllamaModel string `yaml:"ollama_model"`

	GeminiAPIKey string `yaml:"gemini_api_key"`
	GeminiURL    string `yaml:"gemini_url"`
	GeminiModel  string `yaml:"gemini_model"`

	GroqAPIKey string `yaml:"groq_api_key"`
	GroqURL    string `yaml:"groq_url"`
	GroqModel  string `yaml:"groq_model"`

	EmbeddingModel string `yaml:"embedding_model"`

	MaxTokens          int     `yaml:"max_tokens"`
	RequestsPerSecond  float64 `yaml:"requests_per_second"`
	MaxConcurrentCalls int64   `yaml:"max_concurrent_calls"`
}

type GenerationConfig struct {
	MaxWorkers int `yaml:"max_workers"` // batch fan-out pool size
}

var (
	cfg  *Config
	once sync.Once
)

func GetConfig() *Config {
	once.Do(func() {
		cfg = loadConfig()
	})
	return cfg
}

func loadConfig() *Config {
	config := &Config{
		Server: ServerConfig{
			Port: "8080",
			Mode: "debug",
		},
		Database: DatabaseConfig{
			Type: "sqlite",
			DSN:  "./data/app.db",
		},
		LLM: LLMConfig{
			DefaultProvider:    "ollama",
			OpenAIURL:          "https://api.openai.com/v1",
			OpenAIModel:        "gpt-4o-mini",
			OllamaURL:          "http://localhost:11434/v1",
			OllamaModel:        "llama3.2:3b",
			GeminiURL:          "https://generativelanguage.googleapis.com/v1beta/openai",
			GeminiModel:        "gemini-2.5-flash",
			GroqURL:            "https://api.groq.com/openai/v1",
			GroqModel:          "llama-3.3-70b-versatile",
			EmbeddingModel:     "text-embedding-3-small",
			MaxTokens:          4096,
			RequestsPerSecond:  2,
			MaxConcurrentCalls: 3,
		},
		Generation: GenerationConfig{
			MaxWorkers: 8,
		},
	}

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	data, err := os.ReadFile(configPath)
	if err == nil {
		yaml.Unmarshal(data, config)
	}

	// Environment variables take precedence over the config file.
	if provider := os.Getenv("LLM_PROVIDER"); provider != "" {
		config.LLM.DefaultProvider = provider
	}
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		config.LLM.OpenAIAPIKey = apiKey
	}
	if baseURL := os.Getenv("OPENAI_BASE_URL"); baseURL != "" {
		config.LLM.OpenAIURL = baseURL
	}
	if model := os.Getenv("OPENAI_MODEL_NAME"); model != "" {
		config.LLM.OpenAIModel = model
	}
	if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" {
		config.LLM.OllamaURL = baseURL
	}
	if apiKey := os.Getenv("GEMINI_API_KEY"); apiKey != "" {
		config.LLM.GeminiAPIKey = apiKey
	}
	if apiKey := os.Getenv("GROQ_API_KEY"); apiKey != "" {
		config.LLM.GroqAPIKey = apiKey
	}

	if dbType := os.Getenv("DB_TYPE"); dbType != "" {
		config.Database.Type = dbType
	}
	if dbDSN := os.Getenv("DB_DSN"); dbDSN != "" {
		config.Database.DSN = dbDSN
	}

	return config
}

func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
