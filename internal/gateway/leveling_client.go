// Package gateway holds the progress side's resilient client for the
// leveling service boundary. Every call carries a bounded timeout and
// degrades to domain.ErrLevelingUnavailable instead of failing the primary
// operation; there is no retry and no circuit state across calls.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"trail-progress-service/internal/domain"
)

// DefaultTimeout is the fixed budget for one leveling call.
const DefaultTimeout = 5 * time.Second

// LevelingClient implements app.LevelingGateway over HTTP.
type LevelingClient struct {
	baseURL string
	client  *http.Client
}

func NewLevelingClient(baseURL string, timeout time.Duration) *LevelingClient {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &LevelingClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

func (c *LevelingClient) Credit(ctx context.Context, userID string, amount int) (domain.ExperienceRecord, error) {
	body := map[string]interface{}{"userId": userID, "amount": amount}
	var rec domain.ExperienceRecord
	if err := c.do(ctx, http.MethodPost, "/api/experience/credit", body, &rec); err != nil {
		return domain.ExperienceRecord{}, err
	}
	return rec, nil
}

func (c *LevelingClient) Read(ctx context.Context, userID string) (domain.ExperienceRecord, error) {
	var rec domain.ExperienceRecord
	path := "/api/experience?userId=" + url.QueryEscape(userID)
	if err := c.do(ctx, http.MethodGet, path, nil, &rec); err != nil {
		return domain.ExperienceRecord{}, err
	}
	return rec, nil
}

func (c *LevelingClient) BatchRead(ctx context.Context, userIDs []string) (map[string]domain.ExperienceRecord, error) {
	body := map[string]interface{}{"userIds": userIDs}
	var resp struct {
		Records map[string]domain.ExperienceRecord `json:"records"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/experience/batch", body, &resp); err != nil {
		return nil, err
	}
	return resp.Records, nil
}

// do performs one request and folds every failure mode (dial error, timeout,
// non-2xx, bad payload) into ErrLevelingUnavailable.
func (c *LevelingClient) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return c.unavailable(path, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return c.unavailable(path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return c.unavailable(path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.unavailable(path, fmt.Errorf("status %d", resp.StatusCode))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return c.unavailable(path, err)
	}
	return nil
}

func (c *LevelingClient) unavailable(path string, cause error) error {
	log.Printf("leveling call %s degraded: %v", path, cause)
	return fmt.Errorf("%w: %v", domain.ErrLevelingUnavailable, cause)
}
