package gemini

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func sseServer(t *testing.T, lines []string, status int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, ":streamGenerateContent") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("alt") != "sse" {
			t.Error("alt=sse missing")
		}
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(status)
		flusher := w.(http.Flusher)
		for _, line := range lines {
			fmt.Fprintf(w, "%s\n\n", line)
			flusher.Flush()
		}
	}))
}

func chunkLine(text string) string {
	return fmt.Sprintf(`data: {"candidates":[{"content":{"parts":[{"text":%q}]}}]}`, text)
}

func TestStreamConcatenatesFragments(t *testing.T) {
	parts := []string{"<!DOCTYPE html>", "<html>", "<body>hi</body>", "</html>"}
	var lines []string
	for _, p := range parts {
		lines = append(lines, chunkLine(p))
	}
	lines = append(lines, "data: [DONE]")

	srv := sseServer(t, lines, http.StatusOK)
	defer srv.Close()

	client := NewClient("key", srv.URL, "gemini-2.5-flash")
	fragments, errc := client.Stream(context.Background(), "", "build a page")

	got, err := Collect(context.Background(), fragments, errc)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if want := strings.Join(parts, ""); got != want {
		t.Fatalf("buffer = %q, want %q", got, want)
	}
}

func TestStreamSkipsMalformedChunks(t *testing.T) {
	lines := []string{
		chunkLine("a"),
		"data: {not valid json",
		": comment line",
		"event: something",
		chunkLine("b"),
	}
	srv := sseServer(t, lines, http.StatusOK)
	defer srv.Close()

	client := NewClient("key", srv.URL, "gemini-2.5-flash")
	fragments, errc := client.Stream(context.Background(), "sys", "prompt")

	got, err := Collect(context.Background(), fragments, errc)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if got != "ab" {
		t.Fatalf("buffer = %q, want %q", got, "ab")
	}
}

func TestStreamFailsFastOnHTTPError(t *testing.T) {
	srv := sseServer(t, nil, http.StatusTooManyRequests)
	defer srv.Close()

	client := NewClient("key", srv.URL, "gemini-2.5-flash")
	fragments, errc := client.Stream(context.Background(), "", "prompt")

	if _, err := Collect(context.Background(), fragments, errc); err == nil {
		t.Fatal("non-2xx response should surface an error")
	}
}

func TestStreamRequiresAPIKey(t *testing.T) {
	client := NewClient("", "http://unused", "gemini-2.5-flash")
	fragments, errc := client.Stream(context.Background(), "", "prompt")
	if _, err := Collect(context.Background(), fragments, errc); err == nil {
		t.Fatal("missing api key should surface an error")
	}
}

func TestStreamHonorsCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		fmt.Fprintf(w, "%s\n\n", chunkLine("first"))
		flusher.Flush()
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	client := NewClient("key", srv.URL, "gemini-2.5-flash")
	fragments, errc := client.Stream(ctx, "", "prompt")

	select {
	case frag := <-fragments:
		if frag != "first" {
			t.Fatalf("fragment = %q", frag)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for first fragment")
	}
	cancel()

	if _, err := Collect(context.Background(), fragments, errc); err == nil {
		t.Fatal("cancellation should surface an error")
	}
}

func TestStreamSurfacesInlineError(t *testing.T) {
	lines := []string{
		chunkLine("partial"),
		`data: {"error":{"code":500,"message":"internal"}}`,
	}
	srv := sseServer(t, lines, http.StatusOK)
	defer srv.Close()

	client := NewClient("key", srv.URL, "gemini-2.5-flash")
	fragments, errc := client.Stream(context.Background(), "", "prompt")

	got, err := Collect(context.Background(), fragments, errc)
	if err == nil {
		t.Fatal("inline stream error should surface")
	}
	if got != "partial" {
		t.Fatalf("buffer before error = %q, want %q", got, "partial")
	}
}
