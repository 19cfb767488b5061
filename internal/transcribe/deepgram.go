package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrEmptyTranscript indicates the provider answered but produced no text.
var ErrEmptyTranscript = errors.New("no transcript returned")

// Client calls the Deepgram pre-recorded transcription API: full audio in,
// one final transcript out.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient constructs a Deepgram client.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		apiKey:     strings.TrimSpace(apiKey),
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}
}

// Transcribe submits audio bytes and returns the transcript text.
func (c *Client) Transcribe(ctx context.Context, contentType string, audio []byte) (string, error) {
	if c.apiKey == "" {
		return "", fmt.Errorf("deepgram api key required")
	}
	params := url.Values{}
	params.Set("punctuate", "true")
	params.Set("language", "en")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"?"+params.Encode(), bytes.NewReader(audio))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Token "+c.apiKey)
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("deepgram request: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return "", fmt.Errorf("deepgram read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("deepgram api error: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return ParseTranscript(body)
}

// ParseTranscript extracts the first channel's first alternative from a
// Deepgram pre-recorded response. Returns ErrEmptyTranscript when the
// response decodes but carries no text.
func ParseTranscript(body []byte) (string, error) {
	var resp transcriptionResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("deepgram decode: %w", err)
	}
	if len(resp.Results.Channels) == 0 || len(resp.Results.Channels[0].Alternatives) == 0 {
		return "", ErrEmptyTranscript
	}
	transcript := strings.TrimSpace(resp.Results.Channels[0].Alternatives[0].Transcript)
	if transcript == "" {
		return "", ErrEmptyTranscript
	}
	return transcript, nil
}

type transcriptionResponse struct {
	Results struct {
		Channels []struct {
			Alternatives []struct {
				Transcript string `json:"transcript"`
			} `json:"alternatives"`
		} `json:"channels"`
	} `json:"results"`
}
