// Package tts performs text-to-speech synthesis via an external service that
// accepts JSON and returns a playable WAV asset.
package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/discord-voice-assistant/internal/logging"
)

type Client struct {
	URL       string
	Voice     string
	AuthToken string
	HTTP      *http.Client
}

func NewClient(rawurl, voice, authToken string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		URL:       rawurl,
		Voice:     voice,
		AuthToken: authToken,
		HTTP:      &http.Client{Timeout: timeout},
	}
}

// Synthesize converts text to WAV bytes using the configured voice. Network
// failures are retried once with a short backoff.
func (c *Client) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if c == nil || c.URL == "" {
		return nil, fmt.Errorf("tts client not configured")
	}
	payload, _ := json.Marshal(map[string]string{"text": text, "voice": c.Voice})

	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(200 * time.Millisecond):
			}
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		if c.AuthToken != "" {
			req.Header.Set("Authorization", "Bearer "+c.AuthToken)
		}
		resp, err := c.HTTP.Do(req)
		if err != nil {
			lastErr = err
			logging.Debugw("tts: POST attempt failed", "attempt", attempt+1, "err", err)
			continue
		}
		audio, err := readBody(resp)
		if err != nil {
			lastErr = err
			if resp.StatusCode < 500 {
				break
			}
			continue
		}
		return audio, nil
	}
	return nil, lastErr
}

func readBody(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("tts status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return io.ReadAll(resp.Body)
}
