package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/novatv-digital/adexclusion/internal/domain"
)

// MemoryStore keeps all state in process memory, optionally mirroring rule
// sets to YAML files so a development instance survives restarts. It is the
// default backend for tests and local work.
type MemoryStore struct {
	mu        sync.RWMutex
	envs      map[domain.Environment]EnvState
	snapshots map[string]domain.RuleSet
	audit     []domain.AuditLogEntry
	dataDir   string // empty disables file persistence
}

// NewMemoryStore creates a purely in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		envs:      make(map[domain.Environment]EnvState),
		snapshots: make(map[string]domain.RuleSet),
	}
}

// NewFileBackedStore creates a memory store that mirrors per-environment rule
// sets to <dataDir>/rules_<env>.yaml, loading any existing files.
func NewFileBackedStore(dataDir string) (*MemoryStore, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, domain.NewAppErrorWithCause(domain.ErrStoreUnavailable,
			"cannot create data directory", 503, err, map[string]any{"dir": dataDir})
	}
	s := NewMemoryStore()
	s.dataDir = dataDir
	for _, env := range []domain.Environment{domain.EnvProd, domain.EnvDev} {
		state, err := readEnvFile(s.envFilePath(env))
		if err != nil {
			return nil, err
		}
		if state != nil {
			s.envs[env] = *state
		}
	}
	return s, nil
}

func (s *MemoryStore) GetRules(ctx context.Context, env domain.Environment) (EnvState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.envs[env]
	if !ok {
		return EnvState{Rules: domain.RuleSet{}}, nil
	}
	state.Rules = state.Rules.Clone()
	return state, nil
}

func (s *MemoryStore) PutRules(ctx context.Context, env domain.Environment, rules domain.RuleSet, script *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := s.envs[env]
	state.Rules = rules.Clone()
	if script != nil {
		state.Script = *script
	}
	s.envs[env] = state

	if s.dataDir != "" {
		if err := writeEnvFile(s.envFilePath(env), state); err != nil {
			return err
		}
	}
	return nil
}

func (s *MemoryStore) GetSnapshot(ctx context.Context, id string) (domain.RuleSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rules, ok := s.snapshots[id]
	if !ok {
		return nil, domain.NewAppError(domain.ErrNotFound, "snapshot not found", 404,
			map[string]any{"snapshot_id": id})
	}
	return rules.Clone(), nil
}

func (s *MemoryStore) PutSnapshot(ctx context.Context, id string, rules domain.RuleSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[id] = rules.Clone()
	return nil
}

func (s *MemoryStore) GetAuditLog(ctx context.Context) ([]domain.AuditLogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.AuditLogEntry(nil), s.audit...), nil
}

func (s *MemoryStore) PutAuditLog(ctx context.Context, entries []domain.AuditLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audit = append([]domain.AuditLogEntry(nil), entries...)
	return nil
}

func (s *MemoryStore) Ping(ctx context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) envFilePath(env domain.Environment) string {
	return filepath.Join(s.dataDir, fmt.Sprintf("rules_%s.yaml", env))
}

func readEnvFile(path string) (*EnvState, error) {
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, domain.NewAppErrorWithCause(domain.ErrStoreUnavailable,
			"cannot read rules file", 503, err, map[string]any{"path": path})
	}
	var state EnvState
	if err := yaml.Unmarshal(raw, &state); err != nil {
		return nil, domain.NewAppErrorWithCause(domain.ErrInternal,
			"rules file is not valid YAML", 500, err, map[string]any{"path": path})
	}
	return &state, nil
}

func writeEnvFile(path string, state EnvState) error {
	raw, err := yaml.Marshal(state)
	if err != nil {
		return domain.NewAppErrorWithCause(domain.ErrInternal,
			"cannot serialize rules file", 500, err, map[string]any{"path": path})
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return domain.NewAppErrorWithCause(domain.ErrStoreUnavailable,
			"cannot write rules file", 503, err, map[string]any{"path": path})
	}
	return nil
}
