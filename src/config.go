package src

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// Config carries everything the engine needs. It is threaded explicitly
// through construction; there is no package-level state.
type Config struct {
	// Pool holds shared keys per provider, picked uniformly at random
	// for callers without a key of their own.
	Pool map[Provider][]string `yaml:"pool"`

	// PoolEnabled gates use of the shared pool.
	PoolEnabled bool `yaml:"pool_enabled"`

	// DefaultProvider is used when a request names none.
	DefaultProvider Provider `yaml:"default_provider"`

	// RepairProvider/RepairModel identify the fixed, reliable pair used
	// for JSON self-correction, independent of the caller's choice.
	RepairProvider Provider `yaml:"repair_provider"`
	RepairModel    string   `yaml:"repair_model"`

	// OllamaBaseURL points at the local completion server.
	OllamaBaseURL string `yaml:"ollama_base_url"`

	// OpenAIBaseURL optionally redirects the openai transport to an
	// OpenAI-compatible endpoint.
	OpenAIBaseURL string `yaml:"openai_base_url"`

	// AffordanceProviders is the UTCP providers file used to reach
	// external UI affordances in god mode.
	AffordanceProviders string `yaml:"affordance_providers"`
}

// DefaultConfig mirrors the defaults the hosted deployment uses.
func DefaultConfig() Config {
	return Config{
		DefaultProvider: ProviderGemini,
		RepairProvider:  ProviderGemini,
		RepairModel:     "gemini-2.5-flash",
		OllamaBaseURL:   "http://localhost:11434",
	}
}

// LoadConfig reads a YAML config, falling back to ~/.vibe/config.yaml and
// then to defaults when no file exists.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return cfg, nil
		}
		path = filepath.Join(home, ".vibe", "config.yaml")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// AuditRecord is what gets logged when a model call finally fails.
type AuditRecord struct {
	User     string
	Provider Provider
	Attempts int
	Error    string
	Project  string
}

// AuditSink receives failure records. Implementations must never block
// the caller on their own failure.
type AuditSink interface {
	LogError(rec AuditRecord)
}

// SlogAudit writes audit records as structured log lines.
type SlogAudit struct {
	Logger *slog.Logger
}

func (a SlogAudit) LogError(rec AuditRecord) {
	logger := a.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Error("model call failed",
		"user", rec.User,
		"provider", string(rec.Provider),
		"attempts", rec.Attempts,
		"error", rec.Error,
		"project", rec.Project,
	)
}

// Wallet meters callers in whole-credit units. One successful model call
// costs one credit.
type Wallet interface {
	Balance(ctx context.Context, userID string) (int, error)
	Debit(ctx context.Context, userID string) error
}

// MemoryWallet is the in-process wallet used by the TUI and tests.
type MemoryWallet struct {
	mu       sync.Mutex
	balances map[string]int
}

func NewMemoryWallet() *MemoryWallet {
	return &MemoryWallet{balances: map[string]int{}}
}

func (w *MemoryWallet) Grant(userID string, credits int) {
	w.mu.Lock()
	w.balances[userID] += credits
	w.mu.Unlock()
}

func (w *MemoryWallet) Balance(_ context.Context, userID string) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.balances[userID], nil
}

func (w *MemoryWallet) Debit(_ context.Context, userID string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.balances[userID] <= 0 {
		return ErrInsufficientBudget
	}
	w.balances[userID]--
	return nil
}
