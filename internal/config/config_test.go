package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// TestLoadConfig tests configuration loading from defaults, env, and files
func TestLoadConfig(t *testing.T) {
	t.Run("Default configuration", func(t *testing.T) {
		cfg, err := Load()
		require.NoError(t, err)
		require.NotNil(t, cfg)

		assert.Equal(t, ":8000", cfg.Server.BindAddr)
		assert.Equal(t, 2000, cfg.Vocab.TargetPoolSize)
		assert.Equal(t, []string{"noun", "verb", "adj", "adv"}, cfg.Vocab.MeaningfulPOS)
		assert.Equal(t, 3, cfg.Game.BuildRetries)
		assert.NotEmpty(t, cfg.Logging.Level)
	})

	t.Run("Environment variable override", func(t *testing.T) {
		os.Setenv("NEARWORD_SERVER_BIND_ADDR", ":9001")
		os.Setenv("NEARWORD_VOCAB_RANK_SIZE", "5000")
		os.Setenv("NEARWORD_LOGGING_LEVEL", "debug")
		defer func() {
			os.Unsetenv("NEARWORD_SERVER_BIND_ADDR")
			os.Unsetenv("NEARWORD_VOCAB_RANK_SIZE")
			os.Unsetenv("NEARWORD_LOGGING_LEVEL")
		}()

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, ":9001", cfg.Server.BindAddr)
		assert.Equal(t, 5000, cfg.Vocab.RankSize)
		assert.Equal(t, "debug", cfg.Logging.Level)
	})

	t.Run("YAML file with env override on top", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "nearword.yaml")
		data := []byte("server:\n  bind_addr: \":7777\"\nvocab:\n  path: /srv/words.txt\n  target_pool_size: 1500\n")
		require.NoError(t, os.WriteFile(path, data, 0o644))

		os.Setenv("NEARWORD_VOCAB_TARGET_POOL_SIZE", "1200")
		defer os.Unsetenv("NEARWORD_VOCAB_TARGET_POOL_SIZE")

		cfg, err := LoadFile(path)
		require.NoError(t, err)
		assert.Equal(t, ":7777", cfg.Server.BindAddr)
		assert.Equal(t, "/srv/words.txt", cfg.Vocab.Path)
		assert.Equal(t, 1200, cfg.Vocab.TargetPoolSize)
	})

	t.Run("Missing file errors", func(t *testing.T) {
		_, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
		assert.Error(t, err)
	})
}

// TestConfigValidation tests the Validate rules
func TestConfigValidation(t *testing.T) {
	t.Run("Valid configuration", func(t *testing.T) {
		cfg := Default()
		assert.NoError(t, cfg.Validate())
	})

	t.Run("Empty bind address", func(t *testing.T) {
		cfg := Default()
		cfg.Server.BindAddr = ""
		assert.Error(t, cfg.Validate())
	})

	t.Run("Zero target pool", func(t *testing.T) {
		cfg := Default()
		cfg.Vocab.TargetPoolSize = 0
		assert.Error(t, cfg.Validate())
	})

	t.Run("Negative rank size", func(t *testing.T) {
		cfg := Default()
		cfg.Vocab.RankSize = -1
		assert.Error(t, cfg.Validate())
	})

	t.Run("No meaningful POS", func(t *testing.T) {
		cfg := Default()
		cfg.Vocab.MeaningfulPOS = nil
		assert.Error(t, cfg.Validate())
	})

	t.Run("Bad limits", func(t *testing.T) {
		cfg := Default()
		cfg.Limits.GuessBurst = 0
		assert.Error(t, cfg.Validate())
	})
}

func TestAllowedOrigin(t *testing.T) {
	cfg := Default()
	cfg.Server.CORSAllowOrigins = []string{"https://play.example.com"}

	assert.True(t, cfg.AllowedOrigin(""))
	assert.True(t, cfg.AllowedOrigin("https://play.example.com"))
	assert.True(t, cfg.AllowedOrigin("HTTPS://PLAY.EXAMPLE.COM"))
	assert.False(t, cfg.AllowedOrigin("https://evil.example.com"))

	cfg.Server.CORSAllowOrigins = []string{"*"}
	assert.True(t, cfg.AllowedOrigin("https://anything.example.com"))
}

func TestWatcherReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nearword.yaml")
	require.NoError(t, os.WriteFile(path, []byte("limits:\n  guess_rate: 5\n"), 0o644))

	w, err := NewWatcher(path, zap.NewNop())
	require.NoError(t, err)

	got := make(chan *Config, 1)
	w.RegisterHandler(func(cfg *Config) {
		select {
		case got <- cfg:
		default:
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	require.NoError(t, os.WriteFile(path, []byte("limits:\n  guess_rate: 9\n"), 0o644))

	select {
	case cfg := <-got:
		assert.Equal(t, float64(9), cfg.Limits.GuessRate)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not deliver reloaded config")
	}
}

func TestWatcherIgnoresInvalidReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nearword.yaml")
	require.NoError(t, os.WriteFile(path, []byte("limits:\n  guess_rate: 5\n"), 0o644))

	w, err := NewWatcher(path, zap.NewNop())
	require.NoError(t, err)

	calls := make(chan struct{}, 4)
	w.RegisterHandler(func(*Config) { calls <- struct{}{} })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	// Broken YAML must not reach handlers.
	require.NoError(t, os.WriteFile(path, []byte(":\n  ::bad"), 0o644))

	select {
	case <-calls:
		t.Fatal("handler fired for invalid config")
	case <-time.After(1 * time.Second):
	}
}
