package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// capturedRequest records what the provider actually sent.
type capturedRequest struct {
	path       string
	apiVersion string
	apiKey     string
	body       chatRequest
}

// newSSEServer serves the given SSE body, flushed in chunkSize-byte
// pieces so the client sees genuinely incremental delivery. The last
// request is recorded into rec, if non-nil.
func newSSEServer(t *testing.T, status int, body string, chunkSize int, rec *capturedRequest) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rec != nil {
			rec.path = r.URL.Path
			rec.apiVersion = r.URL.Query().Get("api-version")
			rec.apiKey = r.Header.Get("api-key")
			if err := json.NewDecoder(r.Body).Decode(&rec.body); err != nil {
				t.Errorf("failed to decode request body: %v", err)
			}
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(status)

		fl, ok := w.(http.Flusher)
		if !ok {
			t.Fatal("response writer is not a flusher")
		}
		for off := 0; off < len(body); off += chunkSize {
			end := off + chunkSize
			if end > len(body) {
				end = len(body)
			}
			if _, err := w.Write([]byte(body[off:end])); err != nil {
				return
			}
			fl.Flush()
		}
	}))
}

func testProvider(url string) *AzureProvider {
	return NewAzureProvider(AzureConfig{
		Endpoint: url,
		APIKey:   "test-key",
		Model:    "gpt-4o",
	})
}

func collectDeltas(ch <-chan StreamDelta) (string, bool, error) {
	var text strings.Builder
	var done bool
	for delta := range ch {
		if delta.Err != nil {
			return text.String(), done, delta.Err
		}
		if delta.Done {
			done = true
			continue
		}
		text.WriteString(delta.Token)
	}
	return text.String(), done, nil
}

func TestCompleteStream_TwoDeltas(t *testing.T) {
	var rec capturedRequest
	srv := newSSEServer(t, http.StatusOK, sampleStream, 7, &rec)
	defer srv.Close()

	ch := testProvider(srv.URL).CompleteStream(context.Background(), []Message{
		{Role: RoleUser, Content: "hi"},
	})

	text, done, err := collectDeltas(ch)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "Hi there" {
		t.Errorf("expected %q, got %q", "Hi there", text)
	}
	if !done {
		t.Error("expected a Done delta after [DONE]")
	}

	if rec.path != "/openai/deployments/gpt-4o/chat/completions" {
		t.Errorf("unexpected request path: %s", rec.path)
	}
	if rec.apiVersion != defaultAPIVersion {
		t.Errorf("expected default api-version, got %s", rec.apiVersion)
	}
	if rec.apiKey != "test-key" {
		t.Errorf("expected api-key header, got %q", rec.apiKey)
	}
	if !rec.body.Stream {
		t.Error("expected stream=true in request body")
	}
	if rec.body.MaxTokens != defaultMaxTokens {
		t.Errorf("expected default max_tokens, got %d", rec.body.MaxTokens)
	}
}

func TestCompleteStream_ByteAtATimeDelivery(t *testing.T) {
	srv := newSSEServer(t, http.StatusOK, sampleStream, 1, nil)
	defer srv.Close()

	text, done, err := collectDeltas(testProvider(srv.URL).CompleteStream(context.Background(), nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "Hi there" || !done {
		t.Errorf("byte-at-a-time delivery changed the result: %q done=%v", text, done)
	}
}

func TestCompleteStream_MalformedFrameSkipped(t *testing.T) {
	body := "data: {\"choices\":[{\"delta\":{\"content\":\"Hi\"}}]}\n\n" +
		"data: {not json\n\n" +
		"data: [DONE]\n\n"
	srv := newSSEServer(t, http.StatusOK, body, 16, nil)
	defer srv.Close()

	var debug bytes.Buffer
	p := NewAzureProvider(AzureConfig{
		Endpoint: srv.URL,
		APIKey:   "test-key",
		Model:    "gpt-4o",
		Debug:    &debug,
	})

	text, done, err := collectDeltas(p.CompleteStream(context.Background(), nil))
	if err != nil {
		t.Fatalf("a single bad frame must not abort the turn: %v", err)
	}
	if text != "Hi" {
		t.Errorf("expected %q, got %q", "Hi", text)
	}
	if !done {
		t.Error("turn should still complete on [DONE]")
	}
	if !strings.Contains(debug.String(), "skipping frame") {
		t.Errorf("expected skipped frame logged, got %q", debug.String())
	}
}

func TestCompleteStream_FaultIsolationOrdering(t *testing.T) {
	body := "data: {garbage\n\n" +
		"data: {\"choices\":[{\"delta\":{\"content\":\"a\"}}]}\n\n" +
		"data: also garbage\n\n" +
		"data: {\"choices\":[{\"delta\":{\"content\":\"b\"}}]}\n\n" +
		"data: [DONE]\n\n"
	srv := newSSEServer(t, http.StatusOK, body, 9, nil)
	defer srv.Close()

	text, _, err := collectDeltas(testProvider(srv.URL).CompleteStream(context.Background(), nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "ab" {
		t.Errorf("well-formed deltas must survive in order, got %q", text)
	}
}

func TestCompleteStream_APIErrorFrame(t *testing.T) {
	body := "data: {\"choices\":[{\"delta\":{\"content\":\"partial\"}}]}\n\n" +
		"data: {\"error\":{\"code\":\"content_filter\",\"message\":\"blocked\"}}\n\n"
	srv := newSSEServer(t, http.StatusOK, body, 32, nil)
	defer srv.Close()

	text, done, err := collectDeltas(testProvider(srv.URL).CompleteStream(context.Background(), nil))
	if text != "partial" {
		t.Errorf("expected the pre-error delta, got %q", text)
	}
	if done {
		t.Error("an in-band error must not look like normal completion")
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.Code != "content_filter" {
		t.Errorf("unexpected code: %s", apiErr.Code)
	}
}

func TestCompleteStream_EOFWithoutSentinel(t *testing.T) {
	body := "data: {\"choices\":[{\"delta\":{\"content\":\"tail\"}}]}\n\n"
	srv := newSSEServer(t, http.StatusOK, body, 16, nil)
	defer srv.Close()

	var debug bytes.Buffer
	p := NewAzureProvider(AzureConfig{Endpoint: srv.URL, APIKey: "k", Model: "m", Debug: &debug})

	text, done, err := collectDeltas(p.CompleteStream(context.Background(), nil))
	if err != nil {
		t.Fatalf("stream close without sentinel is still completion: %v", err)
	}
	if text != "tail" || !done {
		t.Errorf("expected completed reply, got %q done=%v", text, done)
	}
	if !strings.Contains(debug.String(), "sentinel") {
		t.Errorf("missing sentinel should be noted in diagnostics, got %q", debug.String())
	}
}

func TestCompleteStream_HTTPStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"rate limit"}}`))
	}))
	defer srv.Close()

	_, _, err := collectDeltas(testProvider(srv.URL).CompleteStream(context.Background(), nil))

	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected *StatusError, got %v", err)
	}
	if statusErr.Code != http.StatusTooManyRequests {
		t.Errorf("unexpected status: %d", statusErr.Code)
	}
	if !strings.Contains(statusErr.Body, "rate limit") {
		t.Errorf("server detail missing from error: %q", statusErr.Body)
	}
}

func TestCompleteStream_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // nothing listening anymore

	_, _, err := collectDeltas(testProvider(srv.URL).CompleteStream(context.Background(), nil))

	var netErr *NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("expected *NetworkError, got %v", err)
	}
}

func TestCompleteStream_ContextCancelMidStream(t *testing.T) {
	firstDelta := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Write([]byte("data: {\"choices\":[{\"delta\":{\"content\":\"Hi\"}}]}\n\n"))
		w.(http.Flusher).Flush()
		close(firstDelta)
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch := testProvider(srv.URL).CompleteStream(ctx, nil)

	var first StreamDelta
	select {
	case first = <-ch:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for the first delta")
	}
	if first.Token != "Hi" {
		t.Fatalf("expected first delta %q, got %+v", "Hi", first)
	}

	<-firstDelta
	cancel()

	var sawDone bool
	var streamErr error
	for delta := range ch {
		if delta.Err != nil {
			streamErr = delta.Err
		}
		if delta.Done {
			sawDone = true
		}
	}
	if sawDone {
		t.Error("a cancelled stream must not report normal completion")
	}
	if streamErr != nil && !errors.Is(streamErr, context.Canceled) {
		t.Errorf("unexpected stream error after cancel: %v", streamErr)
	}
}

func TestComplete_FullMessage(t *testing.T) {
	var rec capturedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.path = r.URL.Path
		rec.apiKey = r.Header.Get("api-key")
		json.NewDecoder(r.Body).Decode(&rec.body)
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"  Hello there.  "}}]}`))
	}))
	defer srv.Close()

	reply, err := testProvider(srv.URL).Complete(context.Background(), []Message{
		{Role: RoleSystem, Content: "sys"},
		{Role: RoleUser, Content: "hi"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply != "Hello there." {
		t.Errorf("expected trimmed reply, got %q", reply)
	}
	if rec.body.Stream {
		t.Error("buffered path must send stream=false")
	}
	if len(rec.body.Messages) != 2 {
		t.Errorf("expected full history in body, got %d messages", len(rec.body.Messages))
	}
}

func TestComplete_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"invalid key"}}`))
	}))
	defer srv.Close()

	_, err := testProvider(srv.URL).Complete(context.Background(), nil)

	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected *StatusError, got %v", err)
	}
	if statusErr.Code != http.StatusUnauthorized {
		t.Errorf("unexpected status: %d", statusErr.Code)
	}
}

func TestComplete_NoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	if _, err := testProvider(srv.URL).Complete(context.Background(), nil); err == nil {
		t.Fatal("expected error for empty choices")
	}
}

func TestComplete_InBandError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":{"code":"model_not_found","message":"no such deployment"}}`))
	}))
	defer srv.Close()

	_, err := testProvider(srv.URL).Complete(context.Background(), nil)

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
}

// The streamed fragments must concatenate to exactly what the buffered
// path returns for the same reply.
func TestStreamingMatchesBuffered(t *testing.T) {
	const full = "The quick brown fox jumps over the lazy dog."
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		json.NewDecoder(r.Body).Decode(&req)

		if !req.Stream {
			resp := map[string]any{
				"choices": []map[string]any{{"message": map[string]string{"role": "assistant", "content": full}}},
			}
			json.NewEncoder(w).Encode(resp)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		fl := w.(http.Flusher)
		for _, word := range strings.SplitAfter(full, " ") {
			chunk, _ := json.Marshal(map[string]any{
				"choices": []map[string]any{{"delta": map[string]string{"content": word}}},
			})
			w.Write([]byte("data: "))
			w.Write(chunk)
			w.Write([]byte("\n\n"))
			fl.Flush()
		}
		w.Write([]byte("data: [DONE]\n\n"))
		fl.Flush()
	}))
	defer srv.Close()

	p := testProvider(srv.URL)

	buffered, err := p.Complete(context.Background(), nil)
	if err != nil {
		t.Fatalf("buffered path failed: %v", err)
	}

	streamed, done, err := collectDeltas(p.CompleteStream(context.Background(), nil))
	if err != nil {
		t.Fatalf("streaming path failed: %v", err)
	}
	if !done {
		t.Error("expected stream completion")
	}
	if streamed != buffered {
		t.Errorf("paths disagree: streamed %q vs buffered %q", streamed, buffered)
	}
}

func TestAzureProvider_URLJoinsCleanly(t *testing.T) {
	p := NewAzureProvider(AzureConfig{
		Endpoint:   "https://example.openai.azure.com/",
		APIKey:     "k",
		Model:      "gpt-35-turbo",
		APIVersion: "2025-01-01-preview",
	})

	want := "https://example.openai.azure.com/openai/deployments/gpt-35-turbo/chat/completions?api-version=2025-01-01-preview"
	if got := p.url(); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}
