package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

const (
	defaultAPIVersion  = "2025-01-01-preview"
	defaultMaxTokens   = 1000
	defaultTemperature = 0.7
	requestTimeout     = 60 * time.Second
)

// AzureConfig configures an AzureProvider. Endpoint, APIKey and Model are
// validated upstream (config.Validate) before any provider is built.
type AzureConfig struct {
	Endpoint    string
	APIKey      string
	Model       string // deployment name
	APIVersion  string
	MaxTokens   int
	Temperature float64
	// Debug, when non-nil, receives diagnostics such as skipped frames.
	Debug io.Writer
}

// AzureProvider implements Provider and StreamingProvider against an
// Azure OpenAI chat-completions deployment.
type AzureProvider struct {
	endpoint    string
	apiKey      string
	model       string
	apiVersion  string
	maxTokens   int
	temperature float64
	debug       io.Writer

	// Buffered requests get an overall timeout; streaming responses must
	// not, or long replies would be cut off mid-stream. The stream client
	// bounds only connection setup and relies on context for cancellation.
	httpClient   *http.Client
	streamClient *http.Client
}

// NewAzureProvider builds a provider, filling in API defaults for any
// unset tuning fields.
func NewAzureProvider(cfg AzureConfig) *AzureProvider {
	if cfg.APIVersion == "" {
		cfg.APIVersion = defaultAPIVersion
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = defaultTemperature
	}

	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout: 10 * time.Second,
		ForceAttemptHTTP2:   true,
	}

	return &AzureProvider{
		endpoint:     cfg.Endpoint,
		apiKey:       cfg.APIKey,
		model:        cfg.Model,
		apiVersion:   cfg.APIVersion,
		maxTokens:    cfg.MaxTokens,
		temperature:  cfg.Temperature,
		debug:        cfg.Debug,
		httpClient:   &http.Client{Timeout: requestTimeout, Transport: transport},
		streamClient: &http.Client{Transport: transport},
	}
}

// url assembles the deployment-scoped chat-completions URL.
func (p *AzureProvider) url() string {
	return fmt.Sprintf("%s/openai/deployments/%s/chat/completions?api-version=%s",
		strings.TrimRight(p.endpoint, "/"), p.model, p.apiVersion)
}

func (p *AzureProvider) newRequest(ctx context.Context, messages []Message, stream bool) (*http.Request, error) {
	body, err := json.Marshal(chatRequest{
		Messages:    messages,
		MaxTokens:   p.maxTokens,
		Temperature: p.temperature,
		Stream:      stream,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("api-key", p.apiKey)
	if stream {
		req.Header.Set("Accept", "text/event-stream")
		req.Header.Set("Cache-Control", "no-cache")
	}
	return req, nil
}

// Complete sends the conversation with stream=false and extracts the full
// assistant message from the buffered response.
func (p *AzureProvider) Complete(ctx context.Context, messages []Message) (string, error) {
	req, err := p.newRequest(ctx, messages, false)
	if err != nil {
		return "", err
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", &NetworkError{Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &NetworkError{Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return "", &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if parsed.Error != nil {
		return "", &APIError{Code: parsed.Error.Code, Message: parsed.Error.Message}
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("no response choices available")
	}
	return strings.TrimSpace(parsed.Choices[0].Message.Content), nil
}

// CompleteStream sends the conversation with stream=true and decodes the
// SSE response incrementally. The returned channel is unbuffered: the
// reader goroutine suspends until the consumer takes each delta, so
// frames never pile up when the consumer is slower than the network.
func (p *AzureProvider) CompleteStream(ctx context.Context, messages []Message) <-chan StreamDelta {
	ch := make(chan StreamDelta)
	go func() {
		defer close(ch)
		p.streamInto(ctx, messages, ch)
	}()
	return ch
}

func (p *AzureProvider) streamInto(ctx context.Context, messages []Message, ch chan<- StreamDelta) {
	req, err := p.newRequest(ctx, messages, true)
	if err != nil {
		p.emit(ctx, ch, StreamDelta{Err: err})
		return
	}

	resp, err := p.streamClient.Do(req)
	if err != nil {
		p.emit(ctx, ch, StreamDelta{Err: &NetworkError{Err: err}})
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		p.emit(ctx, ch, StreamDelta{Err: &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}})
		return
	}

	sc := newSSEScanner(resp.Body)
	var partial strings.Builder
	for {
		payload, err := sc.Next()
		if err == io.EOF {
			// Some deployments close the body without sending the
			// sentinel; both count as normal completion.
			if !sc.SawDone() {
				p.debugf("stream closed without %s sentinel", doneSentinel)
			}
			p.emit(ctx, ch, StreamDelta{Done: true})
			return
		}
		if err != nil {
			if ctx.Err() != nil {
				// Cancelled by the consumer; nothing left to report.
				return
			}
			p.emit(ctx, ch, StreamDelta{Err: &StreamError{Partial: partial.String(), Err: err}})
			return
		}

		switch f := parseFrame(payload); f.kind {
		case frameSkip:
			if f.err != nil {
				p.debugf("skipping frame: %v", f.err)
			}
		case frameError:
			p.emit(ctx, ch, StreamDelta{Err: f.err})
			return
		case frameDelta:
			if f.text == "" {
				continue
			}
			partial.WriteString(f.text)
			if !p.emit(ctx, ch, StreamDelta{Token: f.text}) {
				return
			}
		}
	}
}

// emit delivers one delta unless the context is cancelled first.
// Reports whether the delta was sent.
func (p *AzureProvider) emit(ctx context.Context, ch chan<- StreamDelta, d StreamDelta) bool {
	select {
	case ch <- d:
		return true
	case <-ctx.Done():
		return false
	}
}

func (p *AzureProvider) debugf(format string, args ...any) {
	if p.debug != nil {
		fmt.Fprintf(p.debug, "azchat: "+format+"\n", args...)
	}
}
