// Package deploy publishes a project's HTML through the deployment webhook.
package deploy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

var ErrDisabled = errors.New("deployment webhook not configured")

type Client struct {
	hookURL    string
	httpClient *http.Client
}

func NewClient(hookURL string) *Client {
	return &Client{
		hookURL:    hookURL,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

func (c *Client) Enabled() bool {
	return c.hookURL != ""
}

type deployRequest struct {
	HTMLContent string `json:"htmlContent"`
	SiteName    string `json:"siteName"`
}

type deployResponse struct {
	Success bool   `json:"success"`
	URL     string `json:"url"`
	Error   string `json:"error,omitempty"`
}

// Deploy posts the document to the webhook and returns the published URL.
func (c *Client) Deploy(ctx context.Context, siteName, htmlContent string) (string, error) {
	if !c.Enabled() {
		return "", ErrDisabled
	}
	if strings.TrimSpace(htmlContent) == "" {
		return "", errors.New("nothing to deploy")
	}

	body, err := json.Marshal(deployRequest{HTMLContent: htmlContent, SiteName: siteName})
	if err != nil {
		return "", fmt.Errorf("marshal deploy request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.hookURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build deploy request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("deploy request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("deploy request: status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var result deployResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode deploy response: %w", err)
	}
	if !result.Success {
		if result.Error != "" {
			return "", fmt.Errorf("deploy failed: %s", result.Error)
		}
		return "", errors.New("deploy failed")
	}
	if result.URL == "" {
		return "", errors.New("deploy succeeded but returned no url")
	}
	return result.URL, nil
}
