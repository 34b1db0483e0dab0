// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package classify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"slices"

	"go.uber.org/zap"

	"github.com/pdiddy/medline2sql/internal/httputil"
	"github.com/pdiddy/medline2sql/pkg/types"
)

// HTTP asks a zero-shot classification endpoint (Hugging Face inference
// API shape) for the best candidate.
type HTTP struct {
	client     *http.Client
	url        string
	token      string
	userAgent  string
	maxRetries int
	logger     *zap.Logger
}

// NewHTTP builds an HTTP labeler. A nil client uses one with cfg.Timeout.
// Throttled retries are logged at debug level.
func NewHTTP(client *http.Client, cfg types.ClassifierConfig, logger *zap.Logger) *HTTP {
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTP{
		client:     client,
		url:        cfg.URL,
		token:      cfg.APIToken,
		userAgent:  cfg.UserAgent,
		maxRetries: cfg.MaxRetries,
		logger:     logger.With(zap.String("classifier", cfg.URL)),
	}
}

type zeroShotRequest struct {
	Inputs     string `json:"inputs"`
	Parameters struct {
		CandidateLabels []string `json:"candidate_labels"`
	} `json:"parameters"`
}

// zeroShotResponse is the classic pipeline output: labels sorted by score.
type zeroShotResponse struct {
	Labels []string  `json:"labels"`
	Scores []float64 `json:"scores"`
}

// scoredLabel is one element of the list-shaped output newer endpoints return.
type scoredLabel struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// Label implements Labeler.
func (h *HTTP) Label(ctx context.Context, label string, candidates []string) (string, error) {
	var payload zeroShotRequest
	payload.Inputs = label
	payload.Parameters.CandidateLabels = candidates

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encoding classifier request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("building classifier request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if h.userAgent != "" {
		req.Header.Set("User-Agent", h.userAgent)
	}
	if h.token != "" {
		req.Header.Set("Authorization", "Bearer "+h.token)
	}

	resp, err := httputil.DoWithRetry(ctx, h.client, req, h.maxRetries, h.logger)
	if err != nil {
		return "", fmt.Errorf("calling classifier: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading classifier response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("classifier returned HTTP %d: %s", resp.StatusCode, bytes.TrimSpace(data))
	}

	best, err := bestLabel(data)
	if err != nil {
		return "", err
	}
	if !slices.Contains(candidates, best) {
		return "", fmt.Errorf("classifier returned %q, not one of %v", best, candidates)
	}
	return best, nil
}

func bestLabel(data []byte) (string, error) {
	var obj zeroShotResponse
	if err := json.Unmarshal(data, &obj); err == nil && len(obj.Labels) > 0 {
		return obj.Labels[0], nil
	}

	var list []scoredLabel
	if err := json.Unmarshal(data, &list); err != nil || len(list) == 0 {
		return "", fmt.Errorf("classifier response has no labels: %s", bytes.TrimSpace(data))
	}
	best := list[0]
	for _, l := range list[1:] {
		if l.Score > best.Score {
			best = l
		}
	}
	return best.Label, nil
}
