package config

import (
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full nearword server configuration. Values come from an
// optional YAML file (NEARWORD_CONFIG path) overridden by NEARWORD_* env vars.
type Config struct {
	// Server configuration
	Server ServerConfig `mapstructure:"server"`

	// Vocabulary and embedding model configuration
	Vocab VocabConfig `mapstructure:"vocab"`

	// Game behavior configuration
	Game GameConfig `mapstructure:"game"`

	// Per-session limits
	Limits LimitsConfig `mapstructure:"limits"`

	// Logging configuration
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig contains listener and CORS settings.
type ServerConfig struct {
	BindAddr         string        `mapstructure:"bind_addr"`
	AdminAddr        string        `mapstructure:"admin_addr"`
	CORSAllowOrigins []string      `mapstructure:"cors_allow_origins"`
	GracefulTimeout  time.Duration `mapstructure:"graceful_timeout"`
	ReadTimeout      time.Duration `mapstructure:"read_timeout"`
	WriteTimeout     time.Duration `mapstructure:"write_timeout"`
}

// VocabConfig locates the curated word list and the embedding model, and
// tunes the target pool filter.
type VocabConfig struct {
	// Path to the curated word list, one word per line, most common first.
	Path string `mapstructure:"path"`

	// ModelsDir holds one subdirectory per embedding model; ModelName picks
	// which manifest.yaml to load.
	ModelsDir string `mapstructure:"models_dir"`
	ModelName string `mapstructure:"model_name"`

	// RankSize caps how many list entries participate in ranking (0 = all).
	RankSize int `mapstructure:"rank_size"`

	// TargetPoolSize bounds the prefix of the list eligible as targets.
	TargetPoolSize int `mapstructure:"target_pool_size"`

	// MeaningfulPOS lists the parts of speech eligible as targets.
	MeaningfulPOS []string `mapstructure:"meaningful_pos"`

	// TargetMinLen rejects short targets from the pool (0 = no minimum).
	TargetMinLen int `mapstructure:"target_min_len"`
}

// GameConfig contains room build settings.
type GameConfig struct {
	BuildWorkers int `mapstructure:"build_workers"`
	BuildRetries int `mapstructure:"build_retries"`
}

// LimitsConfig contains per-session throttles and buffer sizes.
type LimitsConfig struct {
	GuessRate   float64 `mapstructure:"guess_rate"`
	GuessBurst  int     `mapstructure:"guess_burst"`
	OutboxSize  int     `mapstructure:"outbox_size"`
	HistorySize int     `mapstructure:"history_size"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			BindAddr:         ":8000",
			AdminAddr:        ":2112",
			CORSAllowOrigins: []string{"*"},
			GracefulTimeout:  10 * time.Second,
			ReadTimeout:      15 * time.Second,
			WriteTimeout:     15 * time.Second,
		},
		Vocab: VocabConfig{
			Path:           "data/words.txt",
			ModelsDir:      "data/models",
			ModelName:      "glove-10k",
			RankSize:       0,
			TargetPoolSize: 2000,
			MeaningfulPOS:  []string{"noun", "verb", "adj", "adv"},
			TargetMinLen:   0,
		},
		Game: GameConfig{
			BuildWorkers: runtime.GOMAXPROCS(0),
			BuildRetries: 3,
		},
		Limits: LimitsConfig{
			GuessRate:   5,
			GuessBurst:  10,
			OutboxSize:  64,
			HistorySize: 256,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads the YAML file at NEARWORD_CONFIG (if set and present) and
// applies NEARWORD_* environment overrides on top of the defaults.
func Load() (*Config, error) {
	return LoadFile(os.Getenv("NEARWORD_CONFIG"))
}

// LoadFile is Load with an explicit file path; path "" skips the file step.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	v.SetEnvPrefix("NEARWORD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("server.bind_addr", d.Server.BindAddr)
	v.SetDefault("server.admin_addr", d.Server.AdminAddr)
	v.SetDefault("server.cors_allow_origins", d.Server.CORSAllowOrigins)
	v.SetDefault("server.graceful_timeout", d.Server.GracefulTimeout)
	v.SetDefault("server.read_timeout", d.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", d.Server.WriteTimeout)
	v.SetDefault("vocab.path", d.Vocab.Path)
	v.SetDefault("vocab.models_dir", d.Vocab.ModelsDir)
	v.SetDefault("vocab.model_name", d.Vocab.ModelName)
	v.SetDefault("vocab.rank_size", d.Vocab.RankSize)
	v.SetDefault("vocab.target_pool_size", d.Vocab.TargetPoolSize)
	v.SetDefault("vocab.meaningful_pos", d.Vocab.MeaningfulPOS)
	v.SetDefault("vocab.target_min_len", d.Vocab.TargetMinLen)
	v.SetDefault("game.build_workers", d.Game.BuildWorkers)
	v.SetDefault("game.build_retries", d.Game.BuildRetries)
	v.SetDefault("limits.guess_rate", d.Limits.GuessRate)
	v.SetDefault("limits.guess_burst", d.Limits.GuessBurst)
	v.SetDefault("limits.outbox_size", d.Limits.OutboxSize)
	v.SetDefault("limits.history_size", d.Limits.HistorySize)
	v.SetDefault("logging.level", d.Logging.Level)
}

// Validate rejects configurations the server cannot start with.
func (c *Config) Validate() error {
	if c.Server.BindAddr == "" {
		return fmt.Errorf("server.bind_addr cannot be empty")
	}
	if c.Vocab.Path == "" {
		return fmt.Errorf("vocab.path cannot be empty")
	}
	if c.Vocab.ModelsDir == "" || c.Vocab.ModelName == "" {
		return fmt.Errorf("vocab.models_dir and vocab.model_name are required")
	}
	if c.Vocab.RankSize < 0 {
		return fmt.Errorf("vocab.rank_size cannot be negative")
	}
	if c.Vocab.TargetPoolSize <= 0 {
		return fmt.Errorf("vocab.target_pool_size must be positive")
	}
	if len(c.Vocab.MeaningfulPOS) == 0 {
		return fmt.Errorf("vocab.meaningful_pos cannot be empty")
	}
	if c.Game.BuildWorkers <= 0 {
		return fmt.Errorf("game.build_workers must be positive")
	}
	if c.Game.BuildRetries < 0 {
		return fmt.Errorf("game.build_retries cannot be negative")
	}
	if c.Limits.GuessRate <= 0 || c.Limits.GuessBurst <= 0 {
		return fmt.Errorf("limits.guess_rate and limits.guess_burst must be positive")
	}
	if c.Limits.OutboxSize <= 0 || c.Limits.HistorySize <= 0 {
		return fmt.Errorf("limits.outbox_size and limits.history_size must be positive")
	}
	return nil
}

// AllowedOrigin reports whether a WebSocket upgrade Origin is acceptable.
func (c *Config) AllowedOrigin(origin string) bool {
	if origin == "" {
		return true
	}
	for _, allowed := range c.Server.CORSAllowOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}
