// Package ranking calls the external candidate-ranking service that can
// refine the matcher's fairness ordering with richer signals.
package ranking

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// DefaultTimeout bounds profile/ranking calls so a slow upstream resolves to
// a failure transition instead of hanging the matcher.
const DefaultTimeout = 6 * time.Second

type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func New(baseURL string, timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		BaseURL: baseURL,
		HTTP:    &http.Client{Timeout: timeout},
	}
}

// Candidate summarizes one eligible worker for the ranking service.
type Candidate struct {
	WorkerID      string   `json:"worker_id"`
	Skills        []string `json:"skills"`
	AverageRating float64  `json:"average_rating"`
	ActiveLoad    int      `json:"active_load"`
}

type RankRequest struct {
	ProjectID   string      `json:"project_id"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	ProjectType string      `json:"project_type"`
	Candidates  []Candidate `json:"candidates"`
}

type RankResponse struct {
	SelectedWorkerID string  `json:"selected_worker_id"`
	ConfidenceScore  float64 `json:"confidence_score"`
	Reasoning        string  `json:"reasoning"`
}

// Rank posts the project brief plus candidate summaries and returns the
// service's selection. The caller validates the selection against the
// eligible set before using it.
func (c *Client) Rank(ctx context.Context, req RankRequest) (*RankResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal rank request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/rank", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("ranking request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ranking service returned status %d", resp.StatusCode)
	}

	var out RankResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode rank response: %w", err)
	}
	if out.SelectedWorkerID == "" {
		return nil, fmt.Errorf("ranking service returned empty selection")
	}
	return &out, nil
}
