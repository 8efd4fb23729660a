// Package gemini is a minimal client for the Gemini streaming generation
// endpoint. It issues one request per generation and consumes the SSE body
// incrementally; there is no retry, a failed request is terminal.
package gemini

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

func NewClient(apiKey, baseURL, model string) *Client {
	return &Client{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		// No client timeout; stream duration is bounded by the
		// caller's context.
		httpClient: &http.Client{},
	}
}

func (c *Client) Model() string {
	return c.model
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generateRequest struct {
	SystemInstruction *content  `json:"systemInstruction,omitempty"`
	Contents          []content `json:"contents"`
}

type streamChunk struct {
	Candidates []struct {
		Content struct {
			Parts []part `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Stream sends one generation request and returns a channel of text
// fragments in arrival order. The error channel delivers at most one error
// and both channels close when the stream ends. Malformed SSE payloads are
// skipped rather than failing the stream.
func (c *Client) Stream(ctx context.Context, systemPrompt, userPrompt string) (<-chan string, <-chan error) {
	fragments := make(chan string, 64)
	errc := make(chan error, 1)

	go func() {
		defer close(fragments)
		defer close(errc)

		if c.apiKey == "" {
			errc <- errors.New("gemini api key not configured")
			return
		}

		reqBody := generateRequest{
			Contents: []content{{Role: "user", Parts: []part{{Text: userPrompt}}}},
		}
		if systemPrompt != "" {
			reqBody.SystemInstruction = &content{Parts: []part{{Text: systemPrompt}}}
		}
		encoded, err := json.Marshal(reqBody)
		if err != nil {
			errc <- fmt.Errorf("marshal generate request: %w", err)
			return
		}

		url := fmt.Sprintf("%s/models/%s:streamGenerateContent?alt=sse&key=%s", c.baseURL, c.model, c.apiKey)
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(encoded))
		if err != nil {
			errc <- fmt.Errorf("build generate request: %w", err)
			return
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "text/event-stream")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			errc <- fmt.Errorf("generate request: %w", err)
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			errc <- fmt.Errorf("generate request: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
			return
		}

		if err := consumeSSE(ctx, resp.Body, fragments); err != nil {
			errc <- err
		}
	}()

	return fragments, errc
}

// consumeSSE scans the event stream line by line, decoding each data payload
// and forwarding its text parts. SSE payloads for a full page can be large,
// so the scanner buffer is raised well past the default.
func consumeSSE(ctx context.Context, body io.Reader, fragments chan<- string) error {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "" || data == "[DONE]" {
			continue
		}

		var chunk streamChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			continue
		}
		if chunk.Error != nil {
			return fmt.Errorf("generate stream: %s (code %d)", chunk.Error.Message, chunk.Error.Code)
		}
		for _, candidate := range chunk.Candidates {
			for _, p := range candidate.Content.Parts {
				if p.Text == "" {
					continue
				}
				select {
				case fragments <- p.Text:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		}
	}
	if err := scanner.Err(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("read generate stream: %w", err)
	}
	return nil
}

// Collect drains a fragment stream into one string, returning whatever
// accumulated alongside any stream error. Used where the caller does not
// need incremental delivery.
func Collect(ctx context.Context, fragments <-chan string, errc <-chan error) (string, error) {
	var b strings.Builder
	var streamErr error
	for fragments != nil || errc != nil {
		select {
		case frag, ok := <-fragments:
			if !ok {
				fragments = nil
				continue
			}
			b.WriteString(frag)
		case err, ok := <-errc:
			if !ok {
				errc = nil
				continue
			}
			if err != nil && streamErr == nil {
				streamErr = err
			}
		case <-ctx.Done():
			return b.String(), ctx.Err()
		}
	}
	return b.String(), streamErr
}

