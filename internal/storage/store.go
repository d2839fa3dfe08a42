// Package storage provides the persistence gateways for rule sets, snapshots
// and the audit log. The canonical deployment keeps everything in a key-value
// store (redis); a memory implementation with optional on-disk YAML
// persistence backs development and tests.
package storage

import (
	"context"

	"github.com/novatv-digital/adexclusion/internal/domain"
)

// EnvState is the unit stored per environment: the current rule set and the
// compiled script published for it.
type EnvState struct {
	Rules  domain.RuleSet `json:"rules" yaml:"rules"`
	Script string         `json:"script" yaml:"script"`
}

// Store is the combined gateway the core reads and writes through.
// Implementations must be safe for concurrent use. I/O failures propagate as
// errors and are never collapsed into "empty".
type Store interface {
	// GetRules returns the current rule set and compiled script for an
	// environment. An environment that was never written returns an empty
	// state, not an error.
	GetRules(ctx context.Context, env domain.Environment) (EnvState, error)

	// PutRules replaces the environment's rule set. A nil script preserves
	// whatever script is currently stored, so workspace autosaves cannot
	// wipe a published script.
	PutRules(ctx context.Context, env domain.Environment, rules domain.RuleSet, script *string) error

	// GetSnapshot loads an immutable rule-set copy by snapshot id. Unknown
	// ids return a NOT_FOUND AppError.
	GetSnapshot(ctx context.Context, id string) (domain.RuleSet, error)

	// PutSnapshot stores an immutable rule-set copy under id.
	PutSnapshot(ctx context.Context, id string, rules domain.RuleSet) error

	// GetAuditLog returns the audit entries, most recent first.
	GetAuditLog(ctx context.Context) ([]domain.AuditLogEntry, error)

	// PutAuditLog replaces the audit log with the given entries.
	PutAuditLog(ctx context.Context, entries []domain.AuditLogEntry) error

	// Ping verifies the backing store is reachable.
	Ping(ctx context.Context) error

	// Close releases any resources held by the store.
	Close() error
}
