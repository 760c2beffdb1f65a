package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/omnandre07/SchemeSahayak/internal/apperrors"
	"github.com/omnandre07/SchemeSahayak/internal/catalog"
	"github.com/omnandre07/SchemeSahayak/internal/logging"
	"github.com/omnandre07/SchemeSahayak/internal/profile"
)

// HTTPClientConfig configures the hosted-model adapter.
type HTTPClientConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration // per-call budget; a timeout routes callers to the fallback path
}

// HTTPClient talks to the hosted reasoning service over JSON. Every call is
// bounded by the configured timeout so the engine never holds a session
// lease on a stalled oracle.
type HTTPClient struct {
	config HTTPClientConfig
	client *http.Client
	logger logging.Logger
}

// NewHTTPClient creates the hosted-model adapter.
func NewHTTPClient(config HTTPClientConfig) *HTTPClient {
	if config.Timeout <= 0 {
		config.Timeout = 8 * time.Second
	}
	return &HTTPClient{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
		logger: logging.NewComponentLogger("oracle-http"),
	}
}

type extractRequest struct {
	Text     string            `json:"text"`
	Language string            `json:"language"`
	Context  map[string]string `json:"context"`
}

type reasonRequest struct {
	Context  map[string]string `json:"context"`
	Programs []catalog.Program `json:"programs"`
}

type phraseRequest struct {
	Attribute string `json:"attribute"`
	Language  string `json:"language"`
}

type phraseResponse struct {
	Question string `json:"question"`
}

// Extract implements Oracle.
func (c *HTTPClient) Extract(ctx context.Context, text, language string, current profile.UserContext) (profile.Delta, error) {
	body, err := c.post(ctx, "extract", extractRequest{
		Text:     text,
		Language: language,
		Context:  current.Values(),
	})
	if err != nil {
		return profile.Delta{}, err
	}

	var delta profile.Delta
	if err := decodeLenient(body, &delta); err != nil {
		c.logger.Warn("Extract response unparsable, treating as empty delta: %v", err)
		return profile.Delta{}, err
	}
	return delta, nil
}

// Reason implements Oracle.
func (c *HTTPClient) Reason(ctx context.Context, current profile.UserContext, programs []catalog.Program) ([]Candidate, error) {
	body, err := c.post(ctx, "reason", reasonRequest{
		Context:  current.Values(),
		Programs: programs,
	})
	if err != nil {
		return nil, err
	}

	var candidates []Candidate
	if err := decodeLenient(body, &candidates); err != nil {
		c.logger.Warn("Reason response unparsable, treating as empty candidate list: %v", err)
		return nil, err
	}
	return candidates, nil
}

// PhraseQuestion implements Oracle.
func (c *HTTPClient) PhraseQuestion(ctx context.Context, attribute, language string) (string, error) {
	body, err := c.post(ctx, "phrase", phraseRequest{Attribute: attribute, Language: language})
	if err != nil {
		return "", err
	}

	var resp phraseResponse
	if err := decodeLenient(body, &resp); err != nil {
		return "", err
	}
	return resp.Question, nil
}

// post performs one JSON round-trip to the oracle service.
func (c *HTTPClient) post(ctx context.Context, op string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, apperrors.NewOracleError(op, 0, fmt.Errorf("failed to encode request: %w", err))
	}

	url := fmt.Sprintf("%s/v1/%s", c.config.BaseURL, op)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, apperrors.NewOracleError(op, 0, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, apperrors.NewOracleError(op, 0, fmt.Errorf("%w: %v", apperrors.ErrOracleUnavailable, err))
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, apperrors.NewOracleError(op, resp.StatusCode, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.NewOracleError(op, resp.StatusCode,
			fmt.Errorf("unexpected status: %s", resp.Status))
	}

	return body, nil
}
