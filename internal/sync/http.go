package sync

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// HTTPRemote talks to a BitTask server over JSON:
//
//	POST {base}/sync/push            {"envelopes": [...]} -> {"results": [...]}
//	GET  {base}/sync/pull?since=...  -> PullResult
//
// since is RFC 3339 with nanoseconds and omitted for a full pull.
type HTTPRemote struct {
	base   string
	token  string
	client *http.Client
}

type pushRequest struct {
	Envelopes []Envelope `json:"envelopes"`
}

type pushResponse struct {
	Results []PushResult `json:"results"`
}

// maxResponseBytes bounds how much of a response body is read.
const maxResponseBytes = 32 << 20

// NewHTTPRemote returns a remote rooted at baseURL. token is sent as a
// bearer credential when non-empty. A nil client gets a 30s timeout.
func NewHTTPRemote(baseURL, token string, client *http.Client) (*HTTPRemote, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("invalid remote url %q", baseURL)
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPRemote{
		base:   strings.TrimRight(u.String(), "/"),
		token:  token,
		client: client,
	}, nil
}

// Push implements Remote.
func (r *HTTPRemote) Push(ctx context.Context, envelopes []Envelope) ([]PushResult, error) {
	body, err := json.Marshal(pushRequest{Envelopes: envelopes})
	if err != nil {
		return nil, fmt.Errorf("failed to encode push: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.base+"/sync/push", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	var out pushResponse
	if err := r.do(req, &out); err != nil {
		return nil, fmt.Errorf("push: %w", err)
	}
	return out.Results, nil
}

// Pull implements Remote.
func (r *HTTPRemote) Pull(ctx context.Context, since time.Time) (*PullResult, error) {
	endpoint := r.base + "/sync/pull"
	if !since.IsZero() {
		endpoint += "?since=" + url.QueryEscape(since.UTC().Format(time.RFC3339Nano))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	var out PullResult
	if err := r.do(req, &out); err != nil {
		return nil, fmt.Errorf("pull: %w", err)
	}
	return &out, nil
}

func (r *HTTPRemote) do(req *http.Request, out any) error {
	req.Header.Set("Accept", "application/json")
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body := io.LimitReader(resp.Body, maxResponseBytes)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(body, 512))
		return fmt.Errorf("server returned %s: %s", resp.Status, strings.TrimSpace(string(msg)))
	}
	if err := json.NewDecoder(body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
