package virag

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"construction-monitor/internal/shared/metrics"
	"construction-monitor/internal/shared/telemetry"
)

const (
	defaultTimeout = 10 * time.Second
	maxErrorBody   = 4 << 10
)

// Fetcher retrieves analyses by id.
type Fetcher interface {
	FetchAnalysis(ctx context.Context, analysisID string) (*Analysis, error)
}

// Client calls the VIRAG-BIM analysis service.
type Client struct {
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
}

// NewClient constructs a client for baseURL. When apiKey is set every request
// carries it as a bearer token.
func NewClient(baseURL, apiKey string, timeout time.Duration) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("VIRAG_API_URL is required")
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid VIRAG_API_URL: %w", err)
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	httpClient := &http.Client{}
	if key := strings.TrimSpace(apiKey); key != "" {
		httpClient = oauth2.NewClient(context.Background(), oauth2.StaticTokenSource(&oauth2.Token{
			AccessToken: key,
			TokenType:   "Bearer",
		}))
	}
	return &Client{baseURL: baseURL, timeout: timeout, httpClient: httpClient}, nil
}

// FetchAnalysis calls GET {base}/bim/analysis/{id}. It does not retry.
func (c *Client) FetchAnalysis(ctx context.Context, analysisID string) (*Analysis, error) {
	endpoint := c.baseURL + "/bim/analysis/" + url.PathEscape(analysisID)
	start := time.Now()

	body, err := c.get(ctx, endpoint)
	if err != nil {
		metrics.IncViragFetch(outcomeOf(err))
		telemetry.Error("virag.fetch.failed", map[string]any{
			"analysis_id": analysisID,
			"url":         endpoint,
			"duration_ms": time.Since(start).Milliseconds(),
			"error":       err,
		})
		return nil, err
	}

	var analysis Analysis
	if err := json.Unmarshal(body, &analysis); err != nil {
		metrics.IncViragFetch("decode_error")
		return nil, fmt.Errorf("virag: decode analysis %s: %w", analysisID, err)
	}
	if analysis.AnalysisID == "" {
		analysis.AnalysisID = analysisID
	}

	metrics.IncViragFetch("ok")
	telemetry.Info("virag.fetch.ok", map[string]any{
		"analysis_id":     analysisID,
		"sequence_number": analysis.SequenceNumber,
		"duration_ms":     time.Since(start).Milliseconds(),
	})
	return &analysis, nil
}

// Health probes the service's health endpoint.
func (c *Client) Health(ctx context.Context) error {
	_, err := c.get(ctx, c.baseURL+"/api/v1/health")
	return err
}

func (c *Client) get(ctx context.Context, endpoint string) ([]byte, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("virag: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classify(ctx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &UpstreamError{Status: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classify(ctx, err)
	}
	return body, nil
}

func classify(parent context.Context, err error) error {
	if parentErr := parent.Err(); parentErr != nil {
		return parentErr
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrUpstreamTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrUpstreamTimeout, err)
	}
	return &NetworkError{Err: err}
}

func outcomeOf(err error) string {
	var upstream *UpstreamError
	var network *NetworkError
	switch {
	case errors.Is(err, ErrUpstreamTimeout):
		return "timeout"
	case errors.As(err, &upstream):
		return "upstream_error"
	case errors.As(err, &network):
		return "network_error"
	default:
		return "canceled"
	}
}

var _ Fetcher = (*Client)(nil)
