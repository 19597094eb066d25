// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package runtime

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// StorageConfig selects and configures the KVStore facade's backing store.
type StorageConfig struct {
	// Backend is "memory" (default), "sqlite3", "postgres" or "mysql".
	Backend string `yaml:"backend"`
	// DSN is passed to database/sql.Open unchanged; ignored for "memory".
	DSN string `yaml:"dsn"`
}

// CacheConfig configures the LLM response cache.
type CacheConfig struct {
	TTL        time.Duration `yaml:"ttl"`
	MaxEntries int           `yaml:"maxEntries"`
}

// LLMConfig configures the LLM Client's provider and defaults.
type LLMConfig struct {
	// Provider is "openai", "gemini" or "" (disabled: every agent falls
	// back to its non-LLM path).
	Provider    string        `yaml:"provider"`
	APIKey      string        `yaml:"apiKey"`
	BaseURL     string        `yaml:"baseURL"`
	Model       string        `yaml:"model"`
	Temperature float64       `yaml:"temperature"`
	MaxTokens   int           `yaml:"maxTokens"`
	Cache       CacheConfig   `yaml:"cache"`
	// EmbeddingModel, when set and Provider is "openai", wires a real
	// embedding call into the Knowledge Store instead of its TF-IDF
	// fallback.
	EmbeddingModel string `yaml:"embeddingModel"`
}

// QdrantConfig mirrors knowledge.QdrantConfig for YAML decoding.
type QdrantConfig struct {
	Host   string `yaml:"host"`
	Port   int    `yaml:"port"`
	APIKey string `yaml:"apiKey"`
	UseTLS bool   `yaml:"useTLS"`
}

// PineconeConfig mirrors knowledge.PineconeConfig for YAML decoding.
type PineconeConfig struct {
	APIKey    string `yaml:"apiKey"`
	Host      string `yaml:"host"`
	IndexName string `yaml:"indexName"`
}

// KnowledgeConfig configures the Knowledge Base's chunker and vector
// backend.
type KnowledgeConfig struct {
	// Backend is "chromem" (default, embedded), "qdrant" or "pinecone".
	Backend       string         `yaml:"backend"`
	ChunkSize     int            `yaml:"chunkSize"`
	ChunkOverlap  int            `yaml:"chunkOverlap"`
	Qdrant        QdrantConfig   `yaml:"qdrant"`
	Pinecone      PineconeConfig `yaml:"pinecone"`
}

// TracingConfig configures span export.
type TracingConfig struct {
	Enabled     bool   `yaml:"enabled"`
	ServiceName string `yaml:"serviceName"`
}

// ObservabilityConfig configures the ambient metrics/tracing/decision-log
// stack.
type ObservabilityConfig struct {
	Namespace string        `yaml:"namespace"`
	Tracing   TracingConfig `yaml:"tracing"`
}

// AutonomyConfig bounds how much risk an agent may action without a human,
// in risk-score points (0..100).
type AutonomyConfig struct {
	AutoApproveMaxRisk float64 `yaml:"autoApproveMaxRisk"`
	AutoRejectMinRisk  float64 `yaml:"autoRejectMinRisk"`
	EscalateMinRisk    float64 `yaml:"escalateMinRisk"`
}

// AgentConfig toggles and tunes one specialized agent's autonomous scan
// scheduler.
type AgentConfig struct {
	Enabled                    bool          `yaml:"enabled"`
	ScanInterval               time.Duration `yaml:"scanInterval"`
	EventAccelerationThreshold int           `yaml:"eventAccelerationThreshold"`
}

// AgentsConfig holds per-agent settings for every specialized agent this
// runtime can wire.
type AgentsConfig struct {
	Onboarding      AgentConfig `yaml:"onboarding"`
	PolicyEvolution AgentConfig `yaml:"policyEvolution"`
}

// LoggingConfig configures the ambient slog setup.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Config is the top-level runtime configuration, decoded from YAML.
type Config struct {
	Storage       StorageConfig       `yaml:"storage"`
	LLM           LLMConfig           `yaml:"llm"`
	Knowledge     KnowledgeConfig     `yaml:"knowledge"`
	Observability ObservabilityConfig `yaml:"observability"`
	Agents        AgentsConfig        `yaml:"agents"`
	Autonomy      AutonomyConfig      `yaml:"autonomy"`
	Logging       LoggingConfig       `yaml:"logging"`
}

// SetDefaults fills in every zero-valued field this runtime needs a
// non-zero default for.
func (c *Config) SetDefaults() {
	if c.Storage.Backend == "" {
		c.Storage.Backend = "memory"
	}
	if c.LLM.Model == "" {
		c.LLM.Model = "gpt-4o-mini"
	}
	if c.LLM.MaxTokens == 0 {
		c.LLM.MaxTokens = 1024
	}
	if c.LLM.Cache.TTL == 0 {
		c.LLM.Cache.TTL = 10 * time.Minute
	}
	if c.LLM.Cache.MaxEntries == 0 {
		c.LLM.Cache.MaxEntries = 1000
	}
	if c.Knowledge.Backend == "" {
		c.Knowledge.Backend = "chromem"
	}
	if c.Knowledge.ChunkSize == 0 {
		c.Knowledge.ChunkSize = 800
	}
	if c.Knowledge.ChunkOverlap == 0 {
		c.Knowledge.ChunkOverlap = 150
	}
	if c.Observability.Namespace == "" {
		c.Observability.Namespace = "agentcore"
	}
	if c.Observability.Tracing.ServiceName == "" {
		c.Observability.Tracing.ServiceName = "agentcore"
	}
	if c.Agents.Onboarding.ScanInterval == 0 {
		c.Agents.Onboarding.ScanInterval = 5 * time.Minute
	}
	if c.Agents.PolicyEvolution.ScanInterval == 0 {
		c.Agents.PolicyEvolution.ScanInterval = 5 * time.Minute
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

// Validate rejects configurations this runtime cannot build from.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case "memory", "sqlite3", "postgres", "mysql":
	default:
		return fmt.Errorf("runtime: unknown storage backend %q", c.Storage.Backend)
	}
	if c.Storage.Backend != "memory" && c.Storage.DSN == "" {
		return fmt.Errorf("runtime: storage backend %q requires a dsn", c.Storage.Backend)
	}
	switch c.Knowledge.Backend {
	case "chromem", "qdrant", "pinecone":
	default:
		return fmt.Errorf("runtime: unknown knowledge backend %q", c.Knowledge.Backend)
	}
	switch c.LLM.Provider {
	case "", "openai", "gemini":
	default:
		return fmt.Errorf("runtime: unknown LLM provider %q", c.LLM.Provider)
	}
	if c.LLM.Provider == "gemini" && c.LLM.APIKey == "" {
		return fmt.Errorf("runtime: llm provider %q requires an apiKey", c.LLM.Provider)
	}
	for name, v := range map[string]float64{
		"autoApproveMaxRisk": c.Autonomy.AutoApproveMaxRisk,
		"autoRejectMinRisk":  c.Autonomy.AutoRejectMinRisk,
		"escalateMinRisk":    c.Autonomy.EscalateMinRisk,
	} {
		if v < 0 || v > 100 {
			return fmt.Errorf("runtime: autonomy.%s must be in 0..100, got %v", name, v)
		}
	}
	return nil
}

// LoadConfig reads path as YAML, expands ${VAR} / $VAR environment
// references, decodes into a Config, applies defaults and validates it.
// A ".env.local" and a ".env" in the working directory are loaded first
// (each if present) so references to secrets never need to be hardcoded.
func LoadConfig(path string) (*Config, error) {
	for _, envFile := range []string{".env.local", ".env"} {
		_ = godotenv.Load(envFile)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("runtime: read config: %w", err)
	}

	var rawMap map[string]any
	if err := yaml.Unmarshal(raw, &rawMap); err != nil {
		return nil, fmt.Errorf("runtime: parse config: %w", err)
	}
	expanded, _ := expandEnvVars(rawMap).(map[string]any)

	cfg := &Config{}
	if err := decodeConfig(expanded, cfg); err != nil {
		return nil, fmt.Errorf("runtime: decode config: %w", err)
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decodeConfig(input map[string]any, output *Config) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           output,
		TagName:          "yaml",
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return fmt.Errorf("build decoder: %w", err)
	}
	return decoder.Decode(input)
}

// envVarPattern matches ${VAR}, ${VAR:-default} and $VAR.
var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}|\$([A-Za-z_][A-Za-z0-9_]*)`)

func expandEnvVars(v any) any {
	switch val := v.(type) {
	case string:
		return expandEnvString(val)
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = expandEnvVars(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = expandEnvVars(item)
		}
		return out
	default:
		return v
	}
}

func expandEnvString(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		if strings.HasPrefix(match, "${") {
			inner := match[2 : len(match)-1]
			if idx := strings.Index(inner, ":-"); idx != -1 {
				name, def := inner[:idx], inner[idx+2:]
				if val := os.Getenv(name); val != "" {
					return val
				}
				return def
			}
			return os.Getenv(inner)
		}
		return os.Getenv(match[1:])
	})
}
