// Package ollama is a minimal client for the local Ollama API, covering
// the two calls the deployment needs: listing loaded models (which doubles
// as the reachability probe) and pulling a missing one.
package ollama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// DefaultTimeout bounds individual API calls. Pulls stream progress over
// a single response, so they get a much larger budget.
const (
	DefaultTimeout     = 15 * time.Second
	DefaultPullTimeout = 30 * time.Minute
)

// Client talks to a single Ollama endpoint.
type Client struct {
	endpoint string
	http     *http.Client
}

// Model describes one entry from /api/tags.
type Model struct {
	Name       string    `json:"name"`
	ModifiedAt time.Time `json:"modified_at"`
	Size       int64     `json:"size"`
	Digest     string    `json:"digest"`
}

type tagsResponse struct {
	Models []Model `json:"models"`
}

// pullProgress is one NDJSON line of /api/pull output.
type pullProgress struct {
	Status    string `json:"status"`
	Total     int64  `json:"total"`
	Completed int64  `json:"completed"`
}

// NewClient creates a client for the given endpoint, e.g.
// "http://localhost:11434".
func NewClient(endpoint string) *Client {
	return &Client{
		endpoint: strings.TrimRight(endpoint, "/"),
		http:     &http.Client{Timeout: DefaultTimeout},
	}
}

// ListModels retrieves all models currently available on the endpoint.
// A transport error here means the inference service itself is down.
func (c *Client) ListModels(ctx context.Context) ([]Model, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"/api/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama not reachable at %s: %w", c.endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("ollama returned status %d: %s", resp.StatusCode, string(body))
	}

	var tags tagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return nil, fmt.Errorf("decode model list: %w", err)
	}
	return tags.Models, nil
}

// HasModel reports whether the named model is already present. Names in
// the tag list may carry a ":latest" suffix, so prefix matching is used.
func (c *Client) HasModel(ctx context.Context, name string) (bool, error) {
	models, err := c.ListModels(ctx)
	if err != nil {
		return false, err
	}
	for _, m := range models {
		if m.Name == name || strings.HasPrefix(m.Name, name+":") {
			return true, nil
		}
	}
	return false, nil
}

// PullModel asks the endpoint to download a model and blocks until the
// streamed pull completes or fails.
func (c *Client) PullModel(ctx context.Context, name string) error {
	log := otelzap.Ctx(ctx)
	log.Info("Pulling model from Ollama, this can take a while",
		zap.String("model", name),
		zap.String("endpoint", c.endpoint))

	body, err := json.Marshal(map[string]string{"name": name})
	if err != nil {
		return fmt.Errorf("marshal pull request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/api/pull", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	// The pull streams NDJSON progress for the lifetime of the download,
	// so the default client timeout does not apply.
	pullClient := &http.Client{Timeout: DefaultPullTimeout}
	resp, err := pullClient.Do(req)
	if err != nil {
		return fmt.Errorf("pull model %s: %w", name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("ollama returned status %d: %s", resp.StatusCode, string(msg))
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var p pullProgress
		if err := json.Unmarshal(scanner.Bytes(), &p); err != nil {
			continue
		}
		if p.Total > 0 {
			log.Debug("Pull progress",
				zap.String("status", p.Status),
				zap.Int64("percent", (p.Completed*100)/p.Total))
		}
		if strings.Contains(strings.ToLower(p.Status), "error") {
			return fmt.Errorf("pull of %s failed: %s", name, p.Status)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read pull response: %w", err)
	}

	log.Info("Model pulled", zap.String("model", name))
	return nil
}

// EnsureModel checks for the named model and pulls it when absent. This is
// the one prerequisite the tool repairs on its own rather than reporting.
func (c *Client) EnsureModel(ctx context.Context, name string) error {
	present, err := c.HasModel(ctx, name)
	if err != nil {
		return err
	}
	if present {
		otelzap.Ctx(ctx).Debug("Model already present", zap.String("model", name))
		return nil
	}
	return c.PullModel(ctx, name)
}
