package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig
	AI         AIConfig
	Prediction PredictionConfig
	Auth       AuthConfig
	SQLite     SQLiteConfig
	Guest      GuestConfig
	Redis      RedisConfig
	RateLimit  RateLimitConfig
	Logging    LoggingConfig
}

type ServerConfig struct {
	Host           string
	Port           int
	ReadTimeout    int
	WriteTimeout   int
	BodyLimit      int
	AllowedOrigins []string
}

type AIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	// MalformedResponse decides what the orchestrator does when the model
	// returns output the strict parser rejects: "error" fails the image,
	// "placeholder" substitutes the fixed "Analysis Incomplete" result.
	MalformedResponse string
	Temperature       float32
	MaxTokens         int
	TimeoutSec        int
}

type PredictionConfig struct {
	// Mode selects the single active backend: "http" or "process".
	Mode        string
	ServiceURL  string
	Interpreter string
	ScriptPath  string
	TimeoutSec  int
}

type AuthConfig struct {
	Enabled bool
	URL     string
	AnonKey string
}

type SQLiteConfig struct {
	Path string
}

type GuestConfig struct {
	DataDir string
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
	TTLSec   int
}

type RateLimitConfig struct {
	MaxRequestsPerMinute int
}

type LoggingConfig struct {
	Level      string
	Format     string
	OutputPath string
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/krishi-mitra")

	viper.SetEnvPrefix("KRISHI")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate rejects incomplete configuration at boot rather than letting the
// first request discover a missing credential.
func (c *Config) Validate() error {
	if c.AI.APIKey == "" {
		return fmt.Errorf("ai.apiKey is required")
	}

	switch c.AI.MalformedResponse {
	case "error", "placeholder":
	default:
		return fmt.Errorf("ai.malformedResponse must be \"error\" or \"placeholder\", got %q", c.AI.MalformedResponse)
	}

	switch c.Prediction.Mode {
	case "http":
		if c.Prediction.ServiceURL == "" {
			return fmt.Errorf("prediction.serviceURL is required in http mode")
		}
	case "process":
		if c.Prediction.ScriptPath == "" {
			return fmt.Errorf("prediction.scriptPath is required in process mode")
		}
	default:
		return fmt.Errorf("prediction.mode must be \"http\" or \"process\", got %q", c.Prediction.Mode)
	}

	if c.Auth.Enabled && c.Auth.URL == "" {
		return fmt.Errorf("auth.url is required when auth is enabled")
	}

	return nil
}

func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.readTimeout", 30)
	viper.SetDefault("server.writeTimeout", 30)
	// Batch uploads carry up to ten 10MB photos.
	viper.SetDefault("server.bodyLimit", 110*1024*1024)
	viper.SetDefault("server.allowedOrigins", []string{"http://localhost:3000"})

	viper.SetDefault("ai.baseURL", "https://generativelanguage.googleapis.com/v1beta/openai/")
	viper.SetDefault("ai.model", "gemini-1.5-flash")
	viper.SetDefault("ai.malformedResponse", "error")
	viper.SetDefault("ai.temperature", 0.3)
	viper.SetDefault("ai.maxTokens", 1024)
	viper.SetDefault("ai.timeoutSec", 15)

	viper.SetDefault("prediction.mode", "http")
	viper.SetDefault("prediction.interpreter", "python3")
	viper.SetDefault("prediction.timeoutSec", 30)

	viper.SetDefault("auth.enabled", true)

	viper.SetDefault("sqlite.path", "./data/krishimitra.db")
	viper.SetDefault("guest.dataDir", "./data/guest")

	viper.SetDefault("redis.enabled", false)
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.ttlSec", 86400)

	viper.SetDefault("ratelimit.maxRequestsPerMinute", 60)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.outputPath", "stdout")
}
