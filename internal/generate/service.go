// Package generate drives one site-generation run: it streams model output,
// pushes throttled preview updates to live subscribers, and persists the
// result when the stream ends, however it ends.
package generate

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"sitesmith/api/internal/live"
	"sitesmith/api/internal/store"
)

// Run states, in order. A run that produced no usable document finishes
// failed; everything else finishes done.
const (
	StateIdle       = "idle"
	StateRequesting = "requesting"
	StateStreaming  = "streaming"
	StateDone       = "done"
	StateFailed     = "failed"
)

// Preview updates are throttled to at most one per interval so a fast
// stream does not flood subscribers with full-document payloads.
const previewInterval = 200 * time.Millisecond

const systemPrompt = `You are a website generator. Respond with a single complete HTML document and nothing else. Inline all CSS and JavaScript. Start the response with <!DOCTYPE html>.`

type Streamer interface {
	Stream(ctx context.Context, systemPrompt, userPrompt string) (<-chan string, <-chan error)
}

type ProjectStore interface {
	GetProject(ctx context.Context, projectID string) (store.Project, error)
	ForceProjectHTML(ctx context.Context, projectID, html string, isDirty bool) (int64, error)
	SetEditingMarker(ctx context.Context, projectID, userID string) (bool, error)
	ClearEditingMarker(ctx context.Context, projectID, userID string) error
	AppendChatMessage(ctx context.Context, projectID, role, text string) (store.ChatMessage, error)
}

type Publisher interface {
	Publish(ctx context.Context, event live.Event) error
}

type Service struct {
	streamer Streamer
	store    ProjectStore
	hub      Publisher
	timeout  time.Duration
}

func NewService(streamer Streamer, st ProjectStore, hub Publisher, timeout time.Duration) *Service {
	return &Service{streamer: streamer, store: st, hub: hub, timeout: timeout}
}

// Result is the outcome of one generation run.
type Result struct {
	State   string `json:"state"`
	HTML    string `json:"html"`
	Version int64  `json:"version,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Run executes a single generation attempt for a project. The model is
// called once; any failure is terminal for this run. Whatever document text
// accumulated before a failure is still persisted so a long stream that dies
// near the end is not lost.
//
// Substitutions maps placeholder tokens the prompt promised to the model
// onto their real values (typically uploaded asset URLs) and is applied to
// the finished document.
func (s *Service) Run(ctx context.Context, projectID, userID, prompt string, substitutions map[string]string) Result {
	runCtx := ctx
	var cancel context.CancelFunc
	if s.timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	// The marker is advisory. Losing the claim does not block the run,
	// it only means another editor's name stays on the banner.
	if ok, err := s.store.SetEditingMarker(runCtx, projectID, userID); err != nil {
		log.Printf("generate: set editing marker for %s: %v", projectID, err)
	} else if ok {
		defer func() {
			if err := s.store.ClearEditingMarker(context.WithoutCancel(runCtx), projectID, userID); err != nil {
				log.Printf("generate: clear editing marker for %s: %v", projectID, err)
			}
		}()
	}

	s.publishState(runCtx, projectID, live.EventGenerateStarted, StateRequesting, 0, "")

	fragments, errc := s.streamer.Stream(runCtx, systemPrompt, prompt)

	var buf strings.Builder
	limiter := rate.NewLimiter(rate.Every(previewInterval), 1)
	streaming := false
	var streamErr error

drain:
	for fragments != nil || errc != nil {
		select {
		case frag, ok := <-fragments:
			if !ok {
				fragments = nil
				continue
			}
			if !streaming {
				streaming = true
				s.publishState(runCtx, projectID, live.EventGenerateChunk, StateStreaming, 0, "")
			}
			buf.WriteString(frag)
			if limiter.Allow() {
				s.publishPreview(runCtx, projectID, buf.String())
			}
		case err, ok := <-errc:
			if !ok {
				errc = nil
				continue
			}
			if err != nil && streamErr == nil {
				streamErr = err
			}
		case <-runCtx.Done():
			streamErr = runCtx.Err()
			break drain
		}
	}

	return s.finalize(runCtx, projectID, buf.String(), substitutions, streamErr)
}

// finalize always persists what was produced. It runs on a detached context
// so a cancelled or timed-out run still saves its partial document.
func (s *Service) finalize(ctx context.Context, projectID, raw string, substitutions map[string]string, streamErr error) Result {
	persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	html := CleanDocument(raw)
	html = ApplySubstitutions(html, substitutions)

	if html == "" {
		msg := "model produced no document"
		if streamErr != nil {
			msg = streamErr.Error()
		}
		s.publishState(persistCtx, projectID, live.EventGenerateFailed, StateFailed, 0, msg)
		return Result{State: StateFailed, Error: msg}
	}

	version, err := s.store.ForceProjectHTML(persistCtx, projectID, html, false)
	if err != nil {
		log.Printf("generate: persist document for %s: %v", projectID, err)
		s.publishState(persistCtx, projectID, live.EventGenerateFailed, StateFailed, 0, err.Error())
		return Result{State: StateFailed, HTML: html, Error: err.Error()}
	}

	if streamErr != nil {
		// Partial output was saved, but the run itself failed.
		s.publishState(persistCtx, projectID, live.EventGenerateFailed, StateFailed, version, streamErr.Error())
		return Result{State: StateFailed, HTML: html, Version: version, Error: streamErr.Error()}
	}

	if _, err := s.store.AppendChatMessage(persistCtx, projectID, "ai", "Updated the site."); err != nil {
		log.Printf("generate: append ai chat message for %s: %v", projectID, err)
	}

	s.publishState(persistCtx, projectID, live.EventGenerateDone, StateDone, version, "")
	return Result{State: StateDone, HTML: html, Version: version}
}

func (s *Service) publishState(ctx context.Context, projectID, eventType, state string, version int64, errMsg string) {
	payload, _ := json.Marshal(map[string]string{"state": state, "error": errMsg})
	event := live.Event{Type: eventType, ProjectID: projectID, Version: version, Payload: payload}
	if err := s.hub.Publish(ctx, event); err != nil {
		log.Printf("generate: publish %s for %s: %v", eventType, projectID, err)
	}
}

func (s *Service) publishPreview(ctx context.Context, projectID, html string) {
	payload, err := json.Marshal(map[string]string{"html": html})
	if err != nil {
		return
	}
	event := live.Event{Type: live.EventGenerateChunk, ProjectID: projectID, Payload: payload}
	if err := s.hub.Publish(ctx, event); err != nil {
		log.Printf("generate: publish preview for %s: %v", projectID, err)
	}
}

// CleanDocument trims model chatter around the HTML document. Everything
// before the document start marker goes, as do markdown code fences.
func CleanDocument(raw string) string {
	text := strings.TrimSpace(raw)
	if text == "" {
		return ""
	}

	for _, marker := range []string{"<!DOCTYPE", "<!doctype", "<html"} {
		if idx := strings.Index(text, marker); idx >= 0 {
			if idx > 0 {
				text = text[idx:]
			}
			break
		}
	}

	text = strings.TrimPrefix(text, "```html\n")
	text = strings.TrimPrefix(text, "```\n")
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	text = strings.TrimSpace(text)

	// A response with no recognizable document structure is not usable.
	if !strings.Contains(text, "<html") && !strings.Contains(text, "<HTML") {
		return ""
	}
	return text
}

// ApplySubstitutions replaces each placeholder token with its bound value.
func ApplySubstitutions(html string, substitutions map[string]string) string {
	for token, value := range substitutions {
		if token == "" {
			continue
		}
		html = strings.ReplaceAll(html, token, value)
	}
	return html
}
