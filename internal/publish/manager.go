// Package publish orchestrates saving a rule set: persist the new state,
// snapshot it, classify what changed, and append a bounded audit trail that
// rollback can restore from.
package publish

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/novatv-digital/adexclusion/internal/domain"
	"github.com/novatv-digital/adexclusion/internal/storage"
)

// DefaultRetention caps the audit log length; older entries are evicted
// silently.
const DefaultRetention = 100

// Manager implements the publish/rollback workflow against a storage gateway.
type Manager struct {
	store     storage.Store
	retention int

	now   func() time.Time
	newID func() string

	mu         sync.Mutex
	lastSnapMs int64
}

// NewManager creates a Manager with the default retention.
func NewManager(store storage.Store) *Manager {
	return &Manager{
		store:     store,
		retention: DefaultRetention,
		now:       time.Now,
		newID:     func() string { return uuid.NewString() },
	}
}

// Request describes one save/publish operation. Old is the rule set read
// immediately before the edit (used only for diff classification); Script is
// non-nil for publish operations and nil for workspace saves.
type Request struct {
	Env    domain.Environment
	Old    domain.RuleSet
	New    domain.RuleSet
	Script *string
	User   string
}

// Publish persists the new rule set and script for the environment, stores an
// immutable snapshot, and appends one classified audit entry.
//
// The state write and the audit append are not transactional: if the audit
// append fails after the state was saved, the entry is dropped with a warning
// and the publish still succeeds. The audit trail is bookkeeping, not a
// ledger.
func (m *Manager) Publish(ctx context.Context, req Request) (domain.AuditLogEntry, error) {
	if err := m.store.PutRules(ctx, req.Env, req.New, req.Script); err != nil {
		return domain.AuditLogEntry{}, err
	}

	nowMs := m.now().UnixMilli()
	snapshotID := m.nextSnapshotID(nowMs)
	if err := m.store.PutSnapshot(ctx, snapshotID, req.New); err != nil {
		return domain.AuditLogEntry{}, err
	}

	action, details := classify(req, nowMs)
	entry := domain.AuditLogEntry{
		ID:         m.newID(),
		Timestamp:  nowMs,
		User:       userOrDefault(req.User),
		Action:     action,
		Details:    details,
		SnapshotID: snapshotID,
	}
	m.appendAudit(ctx, entry)
	return entry, nil
}

// Rollback restores the rule set saved under snapshotID as the current
// workspace state, preserving the published script, and records a ROLLBACK
// entry. An unknown snapshot id fails with a NOT_FOUND error and leaves the
// current state untouched.
func (m *Manager) Rollback(ctx context.Context, snapshotID, user string) (domain.AuditLogEntry, error) {
	rules, err := m.store.GetSnapshot(ctx, snapshotID)
	if err != nil {
		return domain.AuditLogEntry{}, err
	}

	if err := m.store.PutRules(ctx, domain.EnvProd, rules, nil); err != nil {
		return domain.AuditLogEntry{}, err
	}

	shortID := snapshotID
	if len(shortID) > 15 {
		shortID = shortID[:15] + "..."
	}
	entry := domain.AuditLogEntry{
		ID:         m.newID(),
		Timestamp:  m.now().UnixMilli(),
		User:       userOrDefault(user),
		Action:     domain.AuditRollback,
		Details:    fmt.Sprintf("Restored rule set from snapshot %s", shortID),
		SnapshotID: snapshotID,
	}
	m.appendAudit(ctx, entry)
	return entry, nil
}

// AuditLog returns the stored audit entries, most recent first.
func (m *Manager) AuditLog(ctx context.Context) ([]domain.AuditLogEntry, error) {
	return m.store.GetAuditLog(ctx)
}

// nextSnapshotID derives an id from the current time, bumping by a
// millisecond when two publishes land inside the same tick so ids stay unique
// and monotonic.
func (m *Manager) nextSnapshotID(nowMs int64) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if nowMs <= m.lastSnapMs {
		nowMs = m.lastSnapMs + 1
	}
	m.lastSnapMs = nowMs
	return fmt.Sprintf("snap-%d", nowMs)
}

func (m *Manager) appendAudit(ctx context.Context, entry domain.AuditLogEntry) {
	entries, err := m.store.GetAuditLog(ctx)
	if err != nil {
		log.Warn().Err(err).Str("action", string(entry.Action)).Msg("audit log read failed, entry dropped")
		return
	}
	entries = append([]domain.AuditLogEntry{entry}, entries...)
	if len(entries) > m.retention {
		entries = entries[:m.retention]
	}
	if err := m.store.PutAuditLog(ctx, entries); err != nil {
		log.Warn().Err(err).Str("action", string(entry.Action)).Msg("audit log write failed, entry dropped")
	}
}

func userOrDefault(user string) string {
	if strings.TrimSpace(user) == "" {
		return "admin"
	}
	return user
}
