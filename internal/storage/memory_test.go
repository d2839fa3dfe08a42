package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/novatv-digital/adexclusion/internal/domain"
)

func storedRule(id, name string) domain.Rule {
	return domain.Rule{
		ID:       id,
		Name:     name,
		IsActive: true,
		Conditions: []domain.Condition{
			{TargetKey: domain.KeySite, Operator: domain.OpEquals, Value: "dnevnik"},
		},
		LogicalOperator:       domain.LogicAnd,
		TargetElementSelector: ".banner",
		Action:                domain.ActionHide,
	}
}

func TestMemoryStore_EmptyEnvironment(t *testing.T) {
	store := NewMemoryStore()

	state, err := store.GetRules(context.Background(), domain.EnvProd)
	require.NoError(t, err)
	assert.Empty(t, state.Rules)
	assert.Empty(t, state.Script)
}

func TestMemoryStore_PutAndGetRules(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	rules := domain.RuleSet{storedRule("r1", "first")}
	script := "/** compiled **/"
	require.NoError(t, store.PutRules(ctx, domain.EnvProd, rules, &script))

	state, err := store.GetRules(ctx, domain.EnvProd)
	require.NoError(t, err)
	assert.Equal(t, rules, state.Rules)
	assert.Equal(t, script, state.Script)

	// Environments are isolated.
	devState, err := store.GetRules(ctx, domain.EnvDev)
	require.NoError(t, err)
	assert.Empty(t, devState.Rules)
}

func TestMemoryStore_NilScriptPreservesStoredOne(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	script := "/** live **/"
	require.NoError(t, store.PutRules(ctx, domain.EnvProd, domain.RuleSet{storedRule("r1", "a")}, &script))
	require.NoError(t, store.PutRules(ctx, domain.EnvProd, domain.RuleSet{storedRule("r1", "b")}, nil))

	state, err := store.GetRules(ctx, domain.EnvProd)
	require.NoError(t, err)
	assert.Equal(t, "b", state.Rules[0].Name)
	assert.Equal(t, script, state.Script)
}

func TestMemoryStore_CloneIsolation(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	rules := domain.RuleSet{storedRule("r1", "original")}
	require.NoError(t, store.PutRules(ctx, domain.EnvProd, rules, nil))

	// Mutating the caller's slice after Put must not affect stored state.
	rules[0].Name = "mutated"

	state, err := store.GetRules(ctx, domain.EnvProd)
	require.NoError(t, err)
	assert.Equal(t, "original", state.Rules[0].Name)

	// Mutating a read result must not affect subsequent reads.
	state.Rules[0].Name = "mutated-read"
	again, err := store.GetRules(ctx, domain.EnvProd)
	require.NoError(t, err)
	assert.Equal(t, "original", again.Rules[0].Name)
}

func TestMemoryStore_Snapshots(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	rules := domain.RuleSet{storedRule("r1", "snap")}
	require.NoError(t, store.PutSnapshot(ctx, "snap-1", rules))

	got, err := store.GetSnapshot(ctx, "snap-1")
	require.NoError(t, err)
	assert.Equal(t, rules, got)

	_, err = store.GetSnapshot(ctx, "snap-missing")
	require.Error(t, err)
	assert.True(t, domain.IsNotFound(err))
}

func TestMemoryStore_AuditLog(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	entries, err := store.GetAuditLog(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries)

	put := []domain.AuditLogEntry{
		{ID: "a2", Timestamp: 2, Action: domain.AuditUpdate},
		{ID: "a1", Timestamp: 1, Action: domain.AuditCreate},
	}
	require.NoError(t, store.PutAuditLog(ctx, put))

	got, err := store.GetAuditLog(ctx)
	require.NoError(t, err)
	assert.Equal(t, put, got)
}

func TestFileBackedStore_SurvivesReload(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store, err := NewFileBackedStore(dir)
	require.NoError(t, err)

	rules := domain.RuleSet{storedRule("r1", "persisted")}
	script := "/** on disk **/"
	require.NoError(t, store.PutRules(ctx, domain.EnvProd, rules, &script))

	reloaded, err := NewFileBackedStore(dir)
	require.NoError(t, err)

	state, err := reloaded.GetRules(ctx, domain.EnvProd)
	require.NoError(t, err)
	assert.Equal(t, rules, state.Rules)
	assert.Equal(t, script, state.Script)
}

func TestNewStore_Factory(t *testing.T) {
	ctx := context.Background()

	store, err := NewStore(ctx, FactoryConfig{Type: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, store)

	_, err = NewStore(ctx, FactoryConfig{Type: "cassandra"})
	require.Error(t, err)
}
