package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/novatv-digital/adexclusion/internal/domain"
)

// Key layout in redis. Snapshots are immutable once written; the audit log is
// one JSON array replaced atomically on every append.
const (
	keyRulesPrefix    = "adex:rules:"
	keySnapshotPrefix = "adex:snapshot:"
	keyAuditLog       = "adex:audit"
)

// RedisStore persists all state in a redis key-value store, the production
// backend.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to redis and verifies the connection before
// returning, so a misconfigured address fails at startup rather than on the
// first publish.
func NewRedisStore(ctx context.Context, addr, password string, db int) (*RedisStore, error) {
	if addr == "" {
		return nil, domain.NewAppError(domain.ErrStoreUnavailable,
			"redis address cannot be empty", 503, nil)
	}

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	initCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(initCtx).Err(); err != nil {
		return nil, domain.NewAppErrorWithCause(domain.ErrStoreUnavailable,
			"failed to connect to redis", 503, err, map[string]any{"addr": addr})
	}

	return &RedisStore{client: client}, nil
}

func (s *RedisStore) GetRules(ctx context.Context, env domain.Environment) (EnvState, error) {
	raw, err := s.client.Get(ctx, keyRulesPrefix+string(env)).Result()
	if errors.Is(err, redis.Nil) {
		return EnvState{Rules: domain.RuleSet{}}, nil
	}
	if err != nil {
		return EnvState{}, storeFailure("read rules", err)
	}

	var state EnvState
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		return EnvState{}, domain.NewAppErrorWithCause(domain.ErrInternal,
			"stored rule set is not valid JSON", 500, err, map[string]any{"env": env})
	}
	if state.Rules == nil {
		state.Rules = domain.RuleSet{}
	}
	return state, nil
}

func (s *RedisStore) PutRules(ctx context.Context, env domain.Environment, rules domain.RuleSet, script *string) error {
	state := EnvState{Rules: rules}
	if script != nil {
		state.Script = *script
	} else {
		current, err := s.GetRules(ctx, env)
		if err != nil {
			return err
		}
		state.Script = current.Script
	}

	raw, err := json.Marshal(state)
	if err != nil {
		return domain.NewAppErrorWithCause(domain.ErrInternal,
			"cannot serialize rule set", 500, err, map[string]any{"env": env})
	}
	if err := s.client.Set(ctx, keyRulesPrefix+string(env), raw, 0).Err(); err != nil {
		return storeFailure("write rules", err)
	}
	return nil
}

func (s *RedisStore) GetSnapshot(ctx context.Context, id string) (domain.RuleSet, error) {
	raw, err := s.client.Get(ctx, keySnapshotPrefix+id).Result()
	if errors.Is(err, redis.Nil) {
		return nil, domain.NewAppError(domain.ErrNotFound, "snapshot not found", 404,
			map[string]any{"snapshot_id": id})
	}
	if err != nil {
		return nil, storeFailure("read snapshot", err)
	}

	var rules domain.RuleSet
	if err := json.Unmarshal([]byte(raw), &rules); err != nil {
		return nil, domain.NewAppErrorWithCause(domain.ErrInternal,
			"stored snapshot is not valid JSON", 500, err, map[string]any{"snapshot_id": id})
	}
	return rules, nil
}

func (s *RedisStore) PutSnapshot(ctx context.Context, id string, rules domain.RuleSet) error {
	raw, err := json.Marshal(rules)
	if err != nil {
		return domain.NewAppErrorWithCause(domain.ErrInternal,
			"cannot serialize snapshot", 500, err, map[string]any{"snapshot_id": id})
	}
	if err := s.client.Set(ctx, keySnapshotPrefix+id, raw, 0).Err(); err != nil {
		return storeFailure("write snapshot", err)
	}
	return nil
}

func (s *RedisStore) GetAuditLog(ctx context.Context) ([]domain.AuditLogEntry, error) {
	raw, err := s.client.Get(ctx, keyAuditLog).Result()
	if errors.Is(err, redis.Nil) {
		return []domain.AuditLogEntry{}, nil
	}
	if err != nil {
		return nil, storeFailure("read audit log", err)
	}

	var entries []domain.AuditLogEntry
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return nil, domain.NewAppErrorWithCause(domain.ErrInternal,
			"stored audit log is not valid JSON", 500, err, nil)
	}
	return entries, nil
}

func (s *RedisStore) PutAuditLog(ctx context.Context, entries []domain.AuditLogEntry) error {
	raw, err := json.Marshal(entries)
	if err != nil {
		return domain.NewAppErrorWithCause(domain.ErrInternal,
			"cannot serialize audit log", 500, err, nil)
	}
	if err := s.client.Set(ctx, keyAuditLog, raw, 0).Err(); err != nil {
		return storeFailure("write audit log", err)
	}
	return nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func storeFailure(op string, err error) *domain.AppError {
	return domain.NewAppErrorWithCause(domain.ErrStoreUnavailable,
		fmt.Sprintf("redis %s failed", op), 503, err, nil)
}
