// Package promptulate schedules a pool of hosted-LLM API credentials. A
// scheduler instance owns the pool for its lifetime: it is constructed
// explicitly, loaded from persisted state once, and flushed on demand and on
// Close. There is no package-level singleton.
package promptulate

import (
	"context"
	"fmt"
	"io"

	"github.com/longsihua2026/promptulate/config"
	"github.com/longsihua2026/promptulate/keypool"
	"github.com/longsihua2026/promptulate/utils"
)

// Scheduler is the boundary contract consumed by conversation, memory and
// CLI layers: acquire a usable credential for a model, run the call, report
// the outcome; plus administrative credential management and diagnostics.
type Scheduler interface {
	// Dispatch runs call with a credential acquired for model, failing over
	// across candidates on rate limits, auth failures and transient errors.
	// An empty model accepts any credential.
	Dispatch(ctx context.Context, model string, call keypool.CallFunc) (string, error)

	// AddCredential registers a secret for a model. Fails with a
	// DuplicateCredential error if the secret is already pooled.
	AddCredential(secret, model string) error

	// RemoveCredential deletes a credential. Fails with a NotFound error if
	// the secret is not pooled.
	RemoveCredential(secret string) error

	// ResetCredential clears cooldown and failure state, reviving a
	// credential disabled by an auth failure.
	ResetCredential(secret string) error

	// ListStatus returns a redacted diagnostic view of every credential.
	ListStatus() []keypool.CredentialStatus

	// Flush writes pool state to the configured persister.
	Flush() error

	// Close flushes state and releases the persistence backend.
	Close() error
}

type schedulerImpl struct {
	store      *keypool.Store
	dispatcher *keypool.Dispatcher
	persister  keypool.Persister
	logger     utils.Logger
	config     *config.Config
}

// New builds a Scheduler from the environment plus the given options.
func New(opts ...config.ConfigOption) (Scheduler, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	config.ApplyOptions(cfg, opts...)
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logger := utils.NewLogger(cfg.LogLevel)

	persister, err := newPersister(cfg, logger)
	if err != nil {
		return nil, err
	}

	store := keypool.NewStore(logger)
	if err := loadState(store, persister, cfg, logger); err != nil {
		return nil, err
	}

	policy := keypool.CooldownPolicy{
		Base:      cfg.CooldownBase,
		Max:       cfg.CooldownMax,
		CapFactor: cfg.CooldownCap,
	}

	dispatchOpts := []keypool.DispatcherOption{
		keypool.WithMaxAttempts(cfg.MaxAttempts),
	}
	if cfg.WriteThrough {
		dispatchOpts = append(dispatchOpts, keypool.WithWriteThrough(persister))
	}
	if cfg.ModelFallback {
		dispatchOpts = append(dispatchOpts, keypool.WithModelFallback())
	}

	return &schedulerImpl{
		store:      store,
		dispatcher: keypool.NewDispatcher(store, policy, logger, dispatchOpts...),
		persister:  persister,
		logger:     logger,
		config:     cfg,
	}, nil
}

func newPersister(cfg *config.Config, logger utils.Logger) (keypool.Persister, error) {
	if cfg.SQLitePath != "" {
		return keypool.NewSQLiteStore(cfg.SQLitePath)
	}

	path := cfg.StatePath
	if path == "" {
		var err error
		if path, err = keypool.DefaultStatePath(); err != nil {
			return nil, err
		}
	}
	return keypool.NewFileStore(path, logger), nil
}

// loadState restores persisted credentials, falling back to an empty pool on
// a missing or corrupt state file. An environment-provided key seeds the
// pool on first run.
func loadState(store *keypool.Store, persister keypool.Persister, cfg *config.Config, logger utils.Logger) error {
	records, err := persister.Load()
	if err != nil {
		logger.Warn("Failed to load persisted pool state, starting empty", "error", err)
		records = nil
	}

	if len(records) == 0 && cfg.SeedKey != "" {
		logger.Info("Seeding pool from environment", "model", cfg.SeedModel)
		records = []keypool.Record{{Secret: cfg.SeedKey, Model: cfg.SeedModel}}
	}

	if err := store.Restore(records); err != nil {
		return fmt.Errorf("failed to restore pool state: %w", err)
	}
	logger.Debug("Pool loaded", "credentials", store.Len())
	return nil
}

func (s *schedulerImpl) Dispatch(ctx context.Context, model string, call keypool.CallFunc) (string, error) {
	return s.dispatcher.Dispatch(ctx, model, call)
}

func (s *schedulerImpl) AddCredential(secret, model string) error {
	if err := s.store.Add(keypool.Credential{Secret: secret, Model: model}); err != nil {
		return err
	}
	return s.Flush()
}

func (s *schedulerImpl) RemoveCredential(secret string) error {
	if err := s.store.Remove(secret); err != nil {
		return err
	}
	return s.Flush()
}

func (s *schedulerImpl) ResetCredential(secret string) error {
	return s.dispatcher.ResetCredential(secret)
}

func (s *schedulerImpl) ListStatus() []keypool.CredentialStatus {
	creds := s.store.Snapshot()
	statuses := make([]keypool.CredentialStatus, len(creds))
	for i, c := range creds {
		statuses[i] = keypool.CredentialStatus{
			Secret:        keypool.Redact(c.Secret),
			Model:         c.Model,
			LastUsedAt:    c.LastUsedAt,
			CooldownUntil: c.CooldownUntil,
			Failures:      c.Failures,
			Disabled:      c.Disabled(),
		}
	}
	return statuses
}

func (s *schedulerImpl) Flush() error {
	if err := s.persister.Save(keypool.SnapshotRecords(s.store)); err != nil {
		s.logger.Error("Failed to flush pool state", "error", err)
		return err
	}
	return nil
}

func (s *schedulerImpl) Close() error {
	err := s.Flush()
	if closer, ok := s.persister.(io.Closer); ok {
		if closeErr := closer.Close(); err == nil {
			err = closeErr
		}
	}
	return err
}
