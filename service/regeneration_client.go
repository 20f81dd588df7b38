package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"

	"armario-estampados/models"
)

// RegenerationClient calls a remote instance of the HD regeneration function
type RegenerationClient struct {
	endpoint   string
	httpClient *http.Client
}

var _ Regenerator = (*RegenerationClient)(nil)

// NewRegenerationClient creates a client for endpoint. A zero timeout means 60 seconds.
func NewRegenerationClient(endpoint string, timeout time.Duration) *RegenerationClient {
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	return &RegenerationClient{
		endpoint:   strings.TrimRight(endpoint, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// RemoteError is a failed call to the regeneration function. Network failures and 5xx/429
// responses are transient; anything else is the caller's fault.
type RemoteError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *RemoteError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("regeneration request failed: %v", e.Err)
	}
	return fmt.Sprintf("regeneration request failed: status %d: %s", e.StatusCode, e.Message)
}

func (e *RemoteError) Unwrap() error { return e.Err }

// Temporary reports whether retrying may succeed
func (e *RemoteError) Temporary() bool {
	return e.Err != nil || e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// Regenerate posts req and parses {front:{mockupUrl,hdUrl}, back:{...}}
func (c *RegenerationClient) Regenerate(ctx context.Context, req models.RegenerationRequest) (*models.RegenerationResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal regeneration request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create regeneration request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	log.Info().Str("order_id", req.OrderID).Str("endpoint", c.endpoint).Msg("🌐 Requesting remote HD regeneration")
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &RemoteError{Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &RemoteError{StatusCode: resp.StatusCode, Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		msg := gjson.GetBytes(respBody, "error").String()
		if msg == "" {
			msg = resp.Status
		}
		return nil, &RemoteError{StatusCode: resp.StatusCode, Message: msg}
	}
	if !gjson.ValidBytes(respBody) {
		return nil, &RemoteError{StatusCode: resp.StatusCode, Message: "invalid JSON response"}
	}

	parsed := gjson.ParseBytes(respBody)
	result := &models.RegenerationResult{}
	for _, side := range models.AllSides {
		files := parsed.Get(string(side))
		result.Set(side, models.SideFiles{
			MockupURL: files.Get("mockupUrl").String(),
			HDURL:     files.Get("hdUrl").String(),
		})
	}
	if result.Front.HDURL == "" && result.Back.HDURL == "" {
		return nil, &RemoteError{StatusCode: resp.StatusCode, Message: "response carries no production file"}
	}
	return result, nil
}
