package model

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// SidecarClient talks to an annotation sidecar over HTTP. The sidecar exposes
// POST /caption and POST /characters, both taking {"path": ...} and returning
// {"caption": ...} and {"characters": [...]} respectively.
type SidecarClient struct {
	baseURL string
	http    *http.Client
}

// NewSidecarClient creates a client for the sidecar at baseURL.
func NewSidecarClient(baseURL string, timeout time.Duration) *SidecarClient {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &SidecarClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// Caption asks the sidecar to caption the frame at imagePath.
func (c *SidecarClient) Caption(ctx context.Context, imagePath string) (string, error) {
	var out struct {
		Caption string `json:"caption"`
	}
	if err := c.post(ctx, "/caption", imagePath, &out); err != nil {
		return "", err
	}
	return out.Caption, nil
}

// Characters asks the sidecar which characters appear in the frame at imagePath.
func (c *SidecarClient) Characters(ctx context.Context, imagePath string) ([]string, error) {
	var out struct {
		Characters []string `json:"characters"`
	}
	if err := c.post(ctx, "/characters", imagePath, &out); err != nil {
		return nil, err
	}
	if out.Characters == nil {
		out.Characters = []string{}
	}
	return out.Characters, nil
}

func (c *SidecarClient) post(ctx context.Context, endpoint, imagePath string, out any) error {
	b, _ := json.Marshal(map[string]string{"path": imagePath})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("annotation sidecar request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("annotation sidecar %s http %d: %s", endpoint, resp.StatusCode, string(data))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode sidecar response: %w", err)
	}
	return nil
}
