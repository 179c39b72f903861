// Package transactor calls the stateful serving tier ahead of destructive
// or session-invalidating phases, asking it to drop live sessions against
// a workspace before the worker proceeds.
package transactor

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/opsfleet/workspace-worker/internal/account"
)

// Client issues the force-close maintenance call. It is deliberately
// best-effort: the maintenance call failing never blocks the destructive
// action it precedes, because that action is authorised regardless of
// whether the transactor is reachable.
type Client struct {
	Account account.Client
	HTTP    *http.Client
	Token   string
}

func New(acct account.Client, token string) *Client {
	return &Client{Account: acct, HTTP: &http.Client{Timeout: 10 * time.Second}, Token: token}
}

// ForceClose fetches the current transactor endpoint from the control-plane,
// rewrites ws(s):// to http(s)://, and issues the force-close PUT. Any
// failure is logged and swallowed; the caller proceeds with its destructive
// action unconditionally.
func (c *Client) ForceClose(ctx context.Context, log zerolog.Logger) {
	endpoint, err := c.Account.GetTransactorEndpoint(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("transactor: could not resolve endpoint, proceeding anyway")
		return
	}
	if endpoint == "" {
		return
	}

	httpURL := rewriteScheme(endpoint)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, httpURL+"/api/v1/manage?token="+url.QueryEscape(c.Token)+"&operation=force-close", nil)
	if err != nil {
		log.Warn().Err(err).Msg("transactor: building force-close request")
		return
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		log.Warn().Err(err).Msg("transactor: force-close call failed, proceeding anyway")
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		log.Warn().Int("status", resp.StatusCode).Msg("transactor: force-close returned non-2xx, proceeding anyway")
	}
}

// rewriteScheme turns ws:// and wss:// into http:// and https://; any other
// scheme passes through unchanged.
func rewriteScheme(endpoint string) string {
	switch {
	case strings.HasPrefix(endpoint, "wss://"):
		return "https://" + strings.TrimPrefix(endpoint, "wss://")
	case strings.HasPrefix(endpoint, "ws://"):
		return "http://" + strings.TrimPrefix(endpoint, "ws://")
	default:
		return endpoint
	}
}
