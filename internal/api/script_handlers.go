package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/novatv-digital/adexclusion/internal/compiler"
	"github.com/novatv-digital/adexclusion/internal/domain"
)

const scriptContentType = "application/javascript; charset=utf-8"

// ProdScriptHandler serves GET /exclusions/sponsorship_exclusions.js, the
// snippet the live site template includes. Short edge/browser TTL so a
// publish propagates within a minute even without an explicit purge.
func (h *Handlers) ProdScriptHandler(c *fiber.Ctx) error {
	c.Set(fiber.HeaderContentType, scriptContentType)
	c.Set(fiber.HeaderCacheControl, "public, max-age=60, s-maxage=60")
	return c.SendString(h.loadScript(c, domain.EnvProd))
}

// DevScriptHandler serves GET /exclusions/sponsorship_exclusions-dev.js for
// staging pages. Never cached anywhere, and stamped with the environment so a
// misconfigured template is easy to spot in the browser inspector.
func (h *Handlers) DevScriptHandler(c *fiber.Ctx) error {
	c.Set(fiber.HeaderContentType, scriptContentType)
	c.Set(fiber.HeaderCacheControl, "no-cache, no-store, must-revalidate")
	c.Set(fiber.HeaderPragma, "no-cache")
	c.Set(fiber.HeaderExpires, "0")
	c.Set("CDN-Cache-Control", "no-store")
	c.Set("Cloudflare-CDN-Cache-Control", "no-store")
	c.Set("X-AdEx-Env", string(domain.EnvDev))
	return c.SendString(h.loadScript(c, domain.EnvDev))
}

// loadScript returns the published script of env, going through the LRU
// cache. A store failure degrades to the placeholder comment: the serving
// path must always return valid JavaScript, never an error page a <script>
// tag would choke on.
func (h *Handlers) loadScript(c *fiber.Ctx, env domain.Environment) string {
	key := string(env)
	if script, ok := h.cache.Get(key); ok {
		return script
	}

	state, err := h.store.GetRules(c.Context(), env)
	if err != nil {
		log.Error().Err(err).Str("env", key).Msg("script load failed, serving placeholder")
		return compiler.Placeholder(env)
	}

	script := state.Script
	if script == "" {
		script = compiler.Placeholder(env)
	}

	h.cache.Set(key, script)
	return script
}
