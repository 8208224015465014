// Package config loads process-wide settings from a JSONC config file,
// a .env file, and environment variables.
package config

import (
	"encoding/json"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/tidwall/jsonc"
)

// Config holds all process-wide settings.
type Config struct {
	// Auth collaborator.
	SecretKey      string `json:"secret_key"`
	TokenAlgorithm string `json:"token_algorithm"`
	TokenTTLMin    int    `json:"token_ttl_min"`

	// Durable store.
	DatabaseURL string `json:"database_url"`

	// Sandbox.
	SandboxBaseDir   string `json:"sandbox_base_dir"`
	MaxSandboxSizeMB int    `json:"max_sandbox_size_mb"`
	MaxFileSizeMB    int    `json:"max_file_size_mb"`

	// Agent loop.
	EnableAgentLoop          bool `json:"enable_agent_loop"`
	EnableStreamingReasoning bool `json:"enable_streaming_reasoning"`
	ToolExecutionTimeoutSec  int  `json:"tool_execution_timeout"`
	MaxToolCallsPerMessage   int  `json:"max_tool_calls_per_message"`
	MaxIterations            int  `json:"max_iterations"`
	EventQueueCapacity       int  `json:"event_queue_capacity"`

	// Message truncation.
	MaxUserInputLength       int    `json:"max_user_input_length"`
	MaxHistoryMessages       int    `json:"max_history_messages"`
	EnableMessageTruncation  bool   `json:"enable_message_truncation"`
	TruncationWarningMessage string `json:"truncation_warning_message"`

	// Provider.
	DeepSeekAPIKey        string `json:"deepseek_api_key"`
	DeepSeekBaseURL       string `json:"deepseek_base_url"`
	DeepSeekModel         string `json:"deepseek_model"`
	DeepSeekReasonerModel string `json:"deepseek_reasoner_model"`

	// Server.
	Port     int    `json:"port"`
	LogLevel string `json:"log_level"`
}

// Default returns a config with the built-in defaults.
func Default() *Config {
	return &Config{
		SecretKey:      "your-secret-key-change-in-production",
		TokenAlgorithm: "HS256",
		TokenTTLMin:    30,

		DatabaseURL: "file:websmith.db",

		SandboxBaseDir:   "./sandboxes",
		MaxSandboxSizeMB: 100,
		MaxFileSizeMB:    1,

		EnableAgentLoop:          true,
		EnableStreamingReasoning: true,
		ToolExecutionTimeoutSec:  30,
		MaxToolCallsPerMessage:   10,
		MaxIterations:            100,
		EventQueueCapacity:       100,

		MaxUserInputLength:       1000,
		MaxHistoryMessages:       20,
		EnableMessageTruncation:  true,
		TruncationWarningMessage: "...(消息已截取)",

		DeepSeekBaseURL:       "https://api.deepseek.com",
		DeepSeekModel:         "deepseek-chat",
		DeepSeekReasonerModel: "deepseek-reasoner",

		Port:     8080,
		LogLevel: "info",
	}
}

// Load builds the configuration (priority order):
//  1. Built-in defaults
//  2. JSONC config file (WEBSMITH_CONFIG, or websmith.jsonc/websmith.json
//     in the working directory)
//  3. .env file in the working directory
//  4. Environment variables
func Load() (*Config, error) {
	cfg := Default()

	path := os.Getenv("WEBSMITH_CONFIG")
	if path == "" {
		for _, candidate := range []string{"websmith.jsonc", "websmith.json"} {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
	}
	if path != "" {
		if err := loadConfigFile(path, cfg); err != nil {
			return nil, err
		}
	}

	// .env values become environment variables for the overrides below;
	// existing environment wins.
	_ = godotenv.Load()

	applyEnvOverrides(cfg)

	return cfg, nil
}

// loadConfigFile merges a single JSONC config file into cfg.
func loadConfigFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	// Strip JSONC comments using tidwall/jsonc.
	data = jsonc.ToJSON(data)

	return json.Unmarshal(data, cfg)
}

// applyEnvOverrides applies environment variable overrides.
func applyEnvOverrides(cfg *Config) {
	setString(&cfg.SecretKey, "SECRET_KEY")
	setString(&cfg.TokenAlgorithm, "TOKEN_ALGORITHM")
	setInt(&cfg.TokenTTLMin, "TOKEN_TTL_MIN")

	setString(&cfg.DatabaseURL, "DATABASE_URL")

	setString(&cfg.SandboxBaseDir, "SANDBOX_BASE_DIR")
	setInt(&cfg.MaxSandboxSizeMB, "MAX_SANDBOX_SIZE_MB")
	setInt(&cfg.MaxFileSizeMB, "MAX_FILE_SIZE_MB")

	setBool(&cfg.EnableAgentLoop, "ENABLE_AGENT_LOOP")
	setBool(&cfg.EnableStreamingReasoning, "ENABLE_STREAMING_REASONING")
	setInt(&cfg.ToolExecutionTimeoutSec, "TOOL_EXECUTION_TIMEOUT")
	setInt(&cfg.MaxToolCallsPerMessage, "MAX_TOOL_CALLS_PER_MESSAGE")
	setInt(&cfg.MaxIterations, "MAX_ITERATIONS")
	setInt(&cfg.EventQueueCapacity, "EVENT_QUEUE_CAPACITY")

	setInt(&cfg.MaxUserInputLength, "MAX_USER_INPUT_LENGTH")
	setInt(&cfg.MaxHistoryMessages, "MAX_HISTORY_MESSAGES")
	setBool(&cfg.EnableMessageTruncation, "ENABLE_MESSAGE_TRUNCATION")
	setString(&cfg.TruncationWarningMessage, "TRUNCATION_WARNING_MESSAGE")

	setString(&cfg.DeepSeekAPIKey, "DEEPSEEK_API_KEY")
	setString(&cfg.DeepSeekBaseURL, "DEEPSEEK_BASE_URL")
	setString(&cfg.DeepSeekModel, "DEEPSEEK_MODEL")
	setString(&cfg.DeepSeekReasonerModel, "DEEPSEEK_REASONER_MODEL")

	setInt(&cfg.Port, "PORT")
	setString(&cfg.LogLevel, "LOG_LEVEL")
}

// ToolTimeout returns the per-call tool execution timeout.
func (c *Config) ToolTimeout() time.Duration {
	return time.Duration(c.ToolExecutionTimeoutSec) * time.Second
}

// MaxFileSize returns the per-file size limit in bytes.
func (c *Config) MaxFileSize() int64 {
	return int64(c.MaxFileSizeMB) * 1024 * 1024
}

// MaxSandboxSize returns the per-session total size limit in bytes.
func (c *Config) MaxSandboxSize() int64 {
	return int64(c.MaxSandboxSizeMB) * 1024 * 1024
}

// TokenTTL returns the auth token lifetime.
func (c *Config) TokenTTL() time.Duration {
	return time.Duration(c.TokenTTLMin) * time.Minute
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}
