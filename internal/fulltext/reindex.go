// Package fulltext calls the full-text reindex service after restore or
// cleanup phases complete.
package fulltext

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// Client issues the reindex PUT. Like the transactor call, it is
// best-effort: the lifecycle event is still reported successful on
// failure, because the workspace state transition has already happened and
// reindexing can be retried out-of-band.
type Client struct {
	URL   string // empty means unconfigured: Reindex becomes a no-op
	Token string
	HTTP  *http.Client
}

func New(url, token string) *Client {
	return &Client{URL: url, Token: token, HTTP: &http.Client{Timeout: 10 * time.Second}}
}

type reindexBody struct {
	Token    string `json:"token"`
	OnlyDrop bool   `json:"onlyDrop"`
}

// Reindex issues the PUT, if a URL was configured. clearIndexes selects a
// full drop (Delete's use) versus drop+reindex (ArchiveClean's use);
// it is carried in the body as onlyDrop.
func (c *Client) Reindex(ctx context.Context, log zerolog.Logger, clearIndexes bool) {
	if c.URL == "" {
		return
	}

	buf, err := json.Marshal(reindexBody{Token: c.Token, OnlyDrop: clearIndexes})
	if err != nil {
		log.Warn().Err(err).Msg("fulltext: marshalling reindex body")
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, fmt.Sprintf("%s/api/v1/reindex", c.URL), bytes.NewReader(buf))
	if err != nil {
		log.Warn().Err(err).Msg("fulltext: building reindex request")
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		log.Warn().Err(err).Msg("fulltext: reindex call failed")
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		log.Warn().Int("status", resp.StatusCode).Msg("fulltext: reindex returned non-2xx")
	}
}
