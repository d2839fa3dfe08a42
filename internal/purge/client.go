// Package purge talks to the CDN cache-purge API so published script changes
// and scheduling transitions propagate without waiting for edge TTLs.
package purge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/novatv-digital/adexclusion/internal/domain"
)

// DefaultAPIBase is the CDN zone API root.
const DefaultAPIBase = "https://api.cloudflare.com/client/v4"

// DefaultTimeout bounds one purge request.
const DefaultTimeout = 10 * time.Second

// Config holds the CDN credentials and the public script URLs per
// environment. An empty ZoneID or APIToken disables purging.
type Config struct {
	APIBase  string
	ZoneID   string
	APIToken string
	Timeout  time.Duration

	// ScriptURLs maps each environment to the public URL of its script.
	ScriptURLs map[domain.Environment]string
}

// Client issues purge-by-URL requests against the CDN API.
type Client struct {
	config     Config
	httpClient *http.Client
}

// NewClient creates a purge client. When credentials are missing the client
// still constructs; PurgeScript then logs and succeeds without calling out,
// so local and test setups need no CDN account.
func NewClient(config Config) *Client {
	if config.APIBase == "" {
		config.APIBase = DefaultAPIBase
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultTimeout
	}
	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
	}
}

// Enabled reports whether the client has credentials to purge with.
func (c *Client) Enabled() bool {
	return c.config.ZoneID != "" && c.config.APIToken != ""
}

// PurgeScript purges the public URL of the environment's script.
func (c *Client) PurgeScript(ctx context.Context, env domain.Environment) error {
	url, ok := c.config.ScriptURLs[env]
	if !ok || url == "" {
		return domain.NewAppError(domain.ErrInvalidInput,
			fmt.Sprintf("no script URL configured for environment %q", env), 400, nil)
	}
	return c.PurgeFiles(ctx, []string{url})
}

// PurgeFiles purges the given URLs from the CDN cache.
func (c *Client) PurgeFiles(ctx context.Context, urls []string) error {
	if len(urls) == 0 {
		return nil
	}
	if !c.Enabled() {
		log.Debug().Strs("urls", urls).Msg("purge skipped, no CDN credentials configured")
		return nil
	}

	payload, err := json.Marshal(map[string]any{"files": urls})
	if err != nil {
		return domain.NewAppErrorWithCause(domain.ErrInternal,
			"cannot serialize purge request", 500, err, nil)
	}

	endpoint := fmt.Sprintf("%s/zones/%s/purge_cache", c.config.APIBase, c.config.ZoneID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return domain.NewAppErrorWithCause(domain.ErrInternal,
			"cannot build purge request", 500, err, nil)
	}
	req.Header.Set("Authorization", "Bearer "+c.config.APIToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.NewAppErrorWithCause(domain.ErrUpstream,
			"purge request failed", 502, err, map[string]any{"urls": urls})
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return domain.NewAppError(domain.ErrUpstream,
			fmt.Sprintf("purge API returned status %d", resp.StatusCode), 502,
			map[string]any{"urls": urls, "response": string(body)})
	}

	log.Info().Strs("urls", urls).Msg("CDN cache purged")
	return nil
}
