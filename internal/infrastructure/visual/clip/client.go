package clip

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/manualqa/manual-assistant/internal/core/domain"
)

// Client calls a CLIP embedding sidecar over HTTP. The service receives a
// base64 image and answers with a fixed-length vector; vectors are
// expected unit-normalized, the ranker re-normalizes defensively anyway.
type Client struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

func New(baseURL, model string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *Client) EmbedImage(ctx context.Context, imagePNG []byte) ([]float32, error) {
	if len(imagePNG) == 0 {
		return nil, fmt.Errorf("empty image")
	}

	reqBody := map[string]any{
		"model": c.model,
		"image": base64.StdEncoding.EncodeToString(imagePNG),
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal embed request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, domain.WrapError(domain.ErrUpstream, "clip embed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		msg := strings.TrimSpace(string(respBody))
		if msg == "" {
			return nil, domain.WrapError(domain.ErrUpstream, "clip embed",
				fmt.Errorf("status %s", resp.Status))
		}
		return nil, domain.WrapError(domain.ErrUpstream, "clip embed",
			fmt.Errorf("status %s: %s", resp.Status, msg))
	}

	var response struct {
		Embedding []float32 `json:"embedding"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("decode embed response: %w", err)
	}
	if len(response.Embedding) == 0 {
		return nil, fmt.Errorf("empty embedding result")
	}
	return response.Embedding, nil
}
