// Package stt sends WAV audio to a speech-to-text service. Two modes exist:
// "local" posts raw audio/wav to a faster-whisper style sidecar, "remote"
// posts multipart form data to an OpenAI-compatible transcriptions endpoint.
// Both accept a language and an optional bias prompt.
package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/discord-voice-assistant/internal/logging"
)

const (
	ModeLocal  = "local"
	ModeRemote = "remote"
)

// Request is one transcription call.
type Request struct {
	// Audio is a complete WAV container (2ch, 16-bit, 48kHz).
	Audio    []byte
	Language string
	// Prompt biases recognition toward the wake word; optional.
	Prompt        string
	CorrelationID string
}

type Client struct {
	URL       string
	Mode      string
	Model     string
	AuthToken string
	HTTP      *http.Client
}

func NewClient(rawurl, mode, model, authToken string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		URL:       rawurl,
		Mode:      mode,
		Model:     model,
		AuthToken: authToken,
		HTTP:      &http.Client{Timeout: timeout},
	}
}

// Transcribe converts the request audio to text. Transient failures (network
// errors, 5xx) are retried up to 3 times with exponential backoff.
func (c *Client) Transcribe(ctx context.Context, req Request) (string, error) {
	if c.URL == "" {
		return "", fmt.Errorf("stt url not configured")
	}
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(time.Duration(1<<(attempt-1)) * time.Second):
			}
		}
		text, retryable, err := c.send(ctx, req)
		if err == nil {
			return text, nil
		}
		lastErr = err
		logging.Warnw("stt: request failed", "attempt", attempt+1, "err", err,
			"correlation_id", req.CorrelationID)
		if !retryable {
			break
		}
	}
	return "", lastErr
}

func (c *Client) send(ctx context.Context, req Request) (text string, retryable bool, err error) {
	var httpReq *http.Request
	if c.Mode == ModeRemote {
		httpReq, err = c.multipartRequest(ctx, req)
	} else {
		httpReq, err = c.rawRequest(ctx, req)
	}
	if err != nil {
		return "", false, err
	}
	if req.CorrelationID != "" {
		httpReq.Header.Set("X-Correlation-ID", req.CorrelationID)
	}
	if c.AuthToken != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.AuthToken)
	}

	resp, err := c.HTTP.Do(httpReq)
	if err != nil {
		return "", true, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 500 {
		return "", true, fmt.Errorf("stt server error status=%d", resp.StatusCode)
	}
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", false, fmt.Errorf("stt status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	var out struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", false, fmt.Errorf("decode stt response: %w", err)
	}
	return strings.TrimSpace(out.Text), false, nil
}

// rawRequest posts the WAV body directly with language/prompt query params.
func (c *Client) rawRequest(ctx context.Context, req Request) (*http.Request, error) {
	u, err := url.Parse(c.URL)
	if err != nil {
		return nil, err
	}
	q := u.Query()
	if req.Language != "" {
		q.Set("language", req.Language)
	}
	if req.Prompt != "" {
		q.Set("initial_prompt", req.Prompt)
	}
	u.RawQuery = q.Encode()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(req.Audio))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "audio/wav")
	return httpReq, nil
}

// multipartRequest builds an OpenAI-compatible transcriptions form.
func (c *Client) multipartRequest(ctx context.Context, req Request) (*http.Request, error) {
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	fw, err := mw.CreateFormFile("file", "utterance.wav")
	if err != nil {
		return nil, err
	}
	if _, err := fw.Write(req.Audio); err != nil {
		return nil, err
	}
	if c.Model != "" {
		_ = mw.WriteField("model", c.Model)
	}
	if req.Language != "" {
		_ = mw.WriteField("language", req.Language)
	}
	if req.Prompt != "" {
		_ = mw.WriteField("prompt", req.Prompt)
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, body)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())
	return httpReq, nil
}
