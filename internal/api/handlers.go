package api

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/novatv-digital/adexclusion/internal/cache"
	"github.com/novatv-digital/adexclusion/internal/compiler"
	"github.com/novatv-digital/adexclusion/internal/domain"
	"github.com/novatv-digital/adexclusion/internal/engine"
	"github.com/novatv-digital/adexclusion/internal/health"
	"github.com/novatv-digital/adexclusion/internal/publish"
	"github.com/novatv-digital/adexclusion/internal/scheduler"
	"github.com/novatv-digital/adexclusion/internal/storage"
)

// Handlers contains all HTTP handlers for the ad exclusion API.
type Handlers struct {
	store      storage.Store
	publisher  *publish.Manager
	validator  *domain.RuleValidator
	cache      *cache.ScriptCache
	checker    *health.Checker
	runner     *scheduler.Runner
	purger     scheduler.Purger
	cronSecret string
	startTime  time.Time
}

// NewHandlers creates a new instance of API handlers.
func NewHandlers(store storage.Store, publisher *publish.Manager, scriptCache *cache.ScriptCache, checker *health.Checker, runner *scheduler.Runner, purger scheduler.Purger, cronSecret string) *Handlers {
	return &Handlers{
		store:      store,
		publisher:  publisher,
		validator:  domain.NewRuleValidator(),
		cache:      scriptCache,
		checker:    checker,
		runner:     runner,
		purger:     purger,
		cronSecret: cronSecret,
		startTime:  time.Now(),
	}
}

// ErrorResponse is the standard error envelope.
type ErrorResponse struct {
	Status  string `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// SuccessResponse is the standard success envelope.
type SuccessResponse struct {
	Status string `json:"status"`
	Data   any    `json:"data"`
}

// SyncRequest is the payload for saving or publishing a rule set.
type SyncRequest struct {
	Env     string         `json:"env"`
	Rules   domain.RuleSet `json:"rules"`
	Publish bool           `json:"publish"`
	User    string         `json:"user"`
}

// RollbackRequest restores a snapshot as the current production rule set.
type RollbackRequest struct {
	SnapshotID string `json:"snapshotId"`
	User       string `json:"user"`
}

// SimulateRequest evaluates a rule set against a hand-built targeting
// context. When Rules is omitted the stored rules of Env are used.
type SimulateRequest struct {
	Context domain.TargetingContext `json:"context"`
	Rules   *domain.RuleSet         `json:"rules,omitempty"`
	Env     string                  `json:"env"`
}

// PurgeRequest asks the CDN to drop its cached copy of one script.
type PurgeRequest struct {
	Env string `json:"env"`
}

// SyncGetHandler handles GET /api/sync requests, returning the current rules
// and published script of an environment.
func (h *Handlers) SyncGetHandler(c *fiber.Ctx) error {
	ctx := c.Context()
	env := domain.ParseEnvironment(c.Query("env"))

	state, err := h.store.GetRules(ctx, env)
	if err != nil {
		return h.sendError(c, err)
	}

	return c.Status(200).JSON(SuccessResponse{
		Status: "success",
		Data: map[string]any{
			"env":    env,
			"rules":  state.Rules,
			"script": state.Script,
		},
	})
}

// SyncPostHandler handles POST /api/sync requests. A plain save persists the
// rule set and keeps the previously published script; a publish additionally
// compiles the rules and replaces the live script. Both snapshot the state
// and append one audit entry.
func (h *Handlers) SyncPostHandler(c *fiber.Ctx) error {
	ctx := c.Context()

	var req SyncRequest
	if err := c.BodyParser(&req); err != nil {
		return h.sendError(c, domain.NewAppError(
			domain.ErrInvalidInput,
			"Invalid JSON payload",
			400,
			map[string]string{"error": err.Error()},
		))
	}
	env := domain.ParseEnvironment(req.Env)

	if err := h.validator.ValidateRuleSet(req.Rules); err != nil {
		return h.sendError(c, err)
	}

	// The pre-edit state feeds diff classification only; a stale read here
	// mislabels the audit entry but cannot corrupt the saved rules.
	old, err := h.store.GetRules(ctx, env)
	if err != nil {
		return h.sendError(c, err)
	}

	var script *string
	if req.Publish {
		compiled, err := compiler.Compile(req.Rules, env)
		if err != nil {
			return h.sendError(c, err)
		}
		script = &compiled
	}

	entry, err := h.publisher.Publish(ctx, publish.Request{
		Env:    env,
		Old:    old.Rules,
		New:    req.Rules,
		Script: script,
		User:   req.User,
	})
	if err != nil {
		return h.sendError(c, err)
	}

	h.cache.Invalidate(string(env))

	if req.Publish && h.purger != nil {
		if err := h.purger.PurgeScript(ctx, env); err != nil {
			log.Warn().Err(err).Str("env", string(env)).Msg("CDN purge after publish failed")
		}
	}

	return c.Status(200).JSON(SuccessResponse{
		Status: "success",
		Data: map[string]any{
			"env":       env,
			"ruleCount": len(req.Rules),
			"published": req.Publish,
			"audit":     entry,
		},
	})
}

// AuditHandler handles GET /api/audit requests, most recent entry first.
func (h *Handlers) AuditHandler(c *fiber.Ctx) error {
	entries, err := h.publisher.AuditLog(c.Context())
	if err != nil {
		return h.sendError(c, err)
	}

	return c.Status(200).JSON(SuccessResponse{
		Status: "success",
		Data: map[string]any{
			"entries": entries,
			"count":   len(entries),
		},
	})
}

// RollbackHandler handles POST /api/rollback requests.
func (h *Handlers) RollbackHandler(c *fiber.Ctx) error {
	var req RollbackRequest
	if err := c.BodyParser(&req); err != nil {
		return h.sendError(c, domain.NewAppError(
			domain.ErrInvalidInput,
			"Invalid JSON payload",
			400,
			map[string]string{"error": err.Error()},
		))
	}

	req.SnapshotID = strings.TrimSpace(req.SnapshotID)
	if req.SnapshotID == "" {
		return h.sendError(c, domain.NewAppError(
			domain.ErrValidationFailed,
			"snapshotId is required",
			422,
			map[string]string{"field": "snapshotId"},
		))
	}

	entry, err := h.publisher.Rollback(c.Context(), req.SnapshotID, req.User)
	if err != nil {
		return h.sendError(c, err)
	}

	h.cache.Invalidate(string(domain.EnvProd))

	return c.Status(200).JSON(SuccessResponse{
		Status: "success",
		Data: map[string]any{
			"snapshotId": req.SnapshotID,
			"audit":      entry,
		},
	})
}

// SimulateHandler handles POST /api/simulate requests: the editor's "would
// this rule fire on this page" preview, evaluated through the same engine the
// compiled script replicates.
func (h *Handlers) SimulateHandler(c *fiber.Ctx) error {
	ctx := c.Context()

	var req SimulateRequest
	if err := c.BodyParser(&req); err != nil {
		return h.sendError(c, domain.NewAppError(
			domain.ErrInvalidInput,
			"Invalid JSON payload",
			400,
			map[string]string{"error": err.Error()},
		))
	}

	var rules domain.RuleSet
	if req.Rules != nil {
		rules = *req.Rules
	} else {
		state, err := h.store.GetRules(ctx, domain.ParseEnvironment(req.Env))
		if err != nil {
			return h.sendError(c, err)
		}
		rules = state.Rules
	}

	results := engine.EvaluateSet(rules, &req.Context, time.Now().UnixMilli())

	matched := 0
	for _, r := range results {
		if r.Matched {
			matched++
		}
	}

	return c.Status(200).JSON(SuccessResponse{
		Status: "success",
		Data: map[string]any{
			"results": results,
			"matched": matched,
		},
	})
}

// PurgeHandler handles POST /api/purge requests.
func (h *Handlers) PurgeHandler(c *fiber.Ctx) error {
	var req PurgeRequest
	if err := c.BodyParser(&req); err != nil {
		return h.sendError(c, domain.NewAppError(
			domain.ErrInvalidInput,
			"Invalid JSON payload",
			400,
			map[string]string{"error": err.Error()},
		))
	}

	env := domain.ParseEnvironment(req.Env)
	if h.purger == nil {
		return h.sendError(c, domain.NewAppError(
			domain.ErrInvalidInput,
			"CDN purge is not configured",
			400,
			nil,
		))
	}
	if err := h.purger.PurgeScript(c.Context(), env); err != nil {
		return h.sendError(c, err)
	}

	h.cache.Invalidate(string(env))

	return c.Status(200).JSON(SuccessResponse{
		Status: "success",
		Data:   map[string]any{"env": env, "purged": true},
	})
}

// SchedulerHandler handles GET /api/scheduler requests from the external
// cron. Guarded by a shared secret in the x-cron-secret header.
func (h *Handlers) SchedulerHandler(c *fiber.Ctx) error {
	if h.cronSecret != "" && c.Get("x-cron-secret") != h.cronSecret {
		return h.sendError(c, domain.NewAppError(
			domain.ErrUnauthorized,
			"Invalid cron secret",
			401,
			nil,
		))
	}

	env := domain.ParseEnvironment(c.Query("env"))
	result, err := h.runner.Run(c.Context(), env)
	if err != nil {
		return h.sendError(c, err)
	}

	return c.Status(200).JSON(SuccessResponse{
		Status: "success",
		Data:   result,
	})
}

// HealthHandler handles GET /health requests.
func (h *Handlers) HealthHandler(c *fiber.Ctx) error {
	systemHealth := h.checker.CheckHealth(c.Context())

	status := 200
	if systemHealth.Status == "unhealthy" {
		status = 503
	}
	return c.Status(status).JSON(systemHealth)
}

// MetricsHandler handles GET /metrics requests.
func (h *Handlers) MetricsHandler(c *fiber.Ctx) error {
	ctx := c.Context()

	ruleCounts := make(map[string]int)
	for _, env := range []domain.Environment{domain.EnvProd, domain.EnvDev} {
		state, err := h.store.GetRules(ctx, env)
		if err != nil {
			log.Warn().Err(err).Str("env", string(env)).Msg("rule count unavailable for metrics")
			continue
		}
		ruleCounts[string(env)] = len(state.Rules)
	}

	return c.Status(200).JSON(map[string]any{
		"cache": h.cache.Stats(),
		"rules": ruleCounts,
		"uptime": map[string]any{
			"seconds": time.Since(h.startTime).Seconds(),
		},
	})
}

// sendError writes the standard error envelope. Unknown error types are
// masked as internal errors so storage details never leak to clients.
func (h *Handlers) sendError(c *fiber.Ctx, err error) error {
	if appErr, ok := err.(*domain.AppError); ok {
		if appErr.StatusCode >= 500 {
			log.Error().Err(appErr.Cause).Str("code", appErr.Code).Str("path", c.Path()).Msg(appErr.Message)
		}
		return c.Status(appErr.StatusCode).JSON(ErrorResponse{
			Status:  "error",
			Code:    appErr.Code,
			Message: appErr.Message,
			Details: appErr.Details,
		})
	}

	log.Error().Err(err).Str("path", c.Path()).Msg("unhandled error")
	return c.Status(500).JSON(ErrorResponse{
		Status:  "error",
		Code:    domain.ErrInternal,
		Message: "Internal server error",
	})
}
