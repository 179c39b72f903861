// Package account is the control-plane collaborator: the "account service"
// that tracks every workspace's mode and version and hands work to workers.
package account

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/opsfleet/workspace-worker/internal/domain"
	"github.com/opsfleet/workspace-worker/internal/retry"
)

// retryPermanent marks 4xx-class responses as non-retryable: retrying a
// rejected request is never going to succeed, unlike a transient 5xx.
func retryPermanent(err error) error { return retry.Permanent(err) }

// Client is the control-plane surface the worker depends on. The HTTP
// implementation below is the only concrete binding shipped; tests supply
// fakes.
type Client interface {
	WorkerHandshake(ctx context.Context, region string, version domain.Version, operation domain.Operation) error
	GetPendingWorkspace(ctx context.Context, region string, version domain.Version, operation domain.Operation) (*domain.WorkspaceInfo, error)
	UpdateWorkspaceInfo(ctx context.Context, workspace string, event domain.Event, version *domain.Version, progress int, message string) error
	GetTransactorEndpoint(ctx context.Context) (string, error)
}

// HTTPClient is the concrete binding: plain JSON-over-HTTPS requests that
// carry the worker token in the JSON body (POST calls) or the query string
// (GET calls), matching the request/response shape described for the
// control-plane's external interface.
type HTTPClient struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
}

// NewHTTPClient builds an HTTPClient with sane request timeouts.
func NewHTTPClient(baseURL, token string) *HTTPClient {
	return &HTTPClient{
		BaseURL: baseURL,
		Token:   token,
		HTTP:    &http.Client{Timeout: 15 * time.Second},
	}
}

type handshakeRequest struct {
	Token     string           `json:"token"`
	Region    string           `json:"region"`
	Version   domain.Version   `json:"version"`
	Operation domain.Operation `json:"operation"`
}

func (c *HTTPClient) WorkerHandshake(ctx context.Context, region string, version domain.Version, operation domain.Operation) error {
	req := handshakeRequest{Token: c.Token, Region: region, Version: version, Operation: operation}
	return c.postJSON(ctx, "/api/v1/worker/handshake", req, nil)
}

type pendingResponse struct {
	Workspace *domain.WorkspaceInfo `json:"workspace"`
}

func (c *HTTPClient) GetPendingWorkspace(ctx context.Context, region string, version domain.Version, operation domain.Operation) (*domain.WorkspaceInfo, error) {
	url := fmt.Sprintf("%s/api/v1/worker/pending?token=%s&region=%s&operation=%s&version=%d.%d.%d",
		c.BaseURL, c.Token, region, operation, version.Major, version.Minor, version.Patch)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.HTTP.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}
	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("account: getPendingWorkspace: server error %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, retryPermanent(fmt.Errorf("account: getPendingWorkspace: status %d", resp.StatusCode))
	}

	var out pendingResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return out.Workspace, nil
}

type updateRequest struct {
	Token     string         `json:"token"`
	Workspace string         `json:"workspace"`
	Event     domain.Event   `json:"event"`
	Version   *domain.Version `json:"version,omitempty"`
	Progress  int            `json:"progress"`
	Message   string         `json:"message,omitempty"`
}

func (c *HTTPClient) UpdateWorkspaceInfo(ctx context.Context, workspace string, event domain.Event, version *domain.Version, progress int, message string) error {
	req := updateRequest{Token: c.Token, Workspace: workspace, Event: event, Version: version, Progress: progress, Message: message}
	return c.postJSON(ctx, "/api/v1/worker/update", req, nil)
}

type transactorResponse struct {
	URL string `json:"url"`
}

func (c *HTTPClient) GetTransactorEndpoint(ctx context.Context) (string, error) {
	var out transactorResponse
	url := fmt.Sprintf("%s/api/v1/worker/transactor?token=%s", c.BaseURL, c.Token)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := c.HTTP.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 500 {
		return "", fmt.Errorf("account: getTransactorEndpoint: server error %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return "", retryPermanent(fmt.Errorf("account: getTransactorEndpoint: status %d", resp.StatusCode))
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	return out.URL, nil
}

func (c *HTTPClient) postJSON(ctx context.Context, path string, body any, out any) error {
	buf, err := json.Marshal(body)
	if err != nil {
		return err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(buf))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	defer io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 500 {
		return fmt.Errorf("account: %s: server error %d", path, resp.StatusCode)
	}
	if resp.StatusCode >= 300 {
		return retryPermanent(fmt.Errorf("account: %s: status %d", path, resp.StatusCode))
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
