package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/novatv-digital/adexclusion/internal/domain"
	"github.com/novatv-digital/adexclusion/internal/storage"
)

// Purger invalidates externally cached copies of the published script.
type Purger interface {
	PurgeScript(ctx context.Context, env domain.Environment) error
}

// Runner performs one scheduled check: load the production rule set, detect
// imminent or just-passed activation boundaries, and purge the CDN copy of
// the script when any are found. It is driven by an external cron hitting the
// scheduler endpoint, not by an in-process ticker.
type Runner struct {
	store    storage.Store
	purger   Purger
	windowMs int64
	now      func() time.Time
}

// Result summarizes one scheduler run for the caller.
type Result struct {
	CheckedAt   int64        `json:"checkedAt"`
	RuleCount   int          `json:"ruleCount"`
	Transitions []Transition `json:"transitions"`
	Purged      bool         `json:"purged"`
	PurgeError  string       `json:"purgeError,omitempty"`
}

// NewRunner creates a Runner. A zero window falls back to the default. The
// purger may be nil, in which case transitions are reported but nothing is
// purged.
func NewRunner(store storage.Store, purger Purger, window time.Duration) *Runner {
	windowMs := window.Milliseconds()
	if windowMs <= 0 {
		windowMs = DefaultWindowMs
	}
	return &Runner{
		store:    store,
		purger:   purger,
		windowMs: windowMs,
		now:      time.Now,
	}
}

// Run executes one detection pass against the given environment. A failed
// purge is reported in the result, not returned as an error, so the cron
// caller still sees which transitions fired.
func (r *Runner) Run(ctx context.Context, env domain.Environment) (Result, error) {
	state, err := r.store.GetRules(ctx, env)
	if err != nil {
		return Result{}, err
	}

	nowMs := r.now().UnixMilli()
	transitions := DetectTransitions(state.Rules, nowMs, r.windowMs)
	result := Result{
		CheckedAt:   nowMs,
		RuleCount:   len(state.Rules),
		Transitions: transitions,
	}

	if len(transitions) == 0 || r.purger == nil {
		return result, nil
	}

	if err := r.purger.PurgeScript(ctx, env); err != nil {
		log.Error().Err(err).Int("transitions", len(transitions)).Msg("cache purge after rule transition failed")
		result.PurgeError = err.Error()
		return result, nil
	}

	result.Purged = true
	log.Info().Int("transitions", len(transitions)).Msg("purged script cache after rule transition")
	return result, nil
}
