// Package client talks to the rebase backend's forwarding routes.
package client

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

const (
	DefaultBaseURL = "http://localhost:8191"

	EventPromptReplace = "prompt_replace"
	EventGenerate      = "generate"

	MinGenerate = 1
	MaxGenerate = 8
)

var ErrInvalidCount = fmt.Errorf("count must be an integer between %d and %d", MinGenerate, MaxGenerate)

type Resolution struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

type Sampler struct {
	Steps       *int     `json:"steps,omitempty"`
	CFG         *float64 `json:"cfg,omitempty"`
	SamplerName string   `json:"sampler_name,omitempty"`
	Scheduler   string   `json:"scheduler,omitempty"`
}

type IPAdapter struct {
	Image   string   `json:"image,omitempty"`
	Weight  *float64 `json:"weight,omitempty"` // 0-1
	Enabled *bool    `json:"enabled,omitempty"`
}

// PromptReplaceDetail is the data of a prompt_replace event. Unset fields are
// left out of the request so the front-end keeps its current values.
type PromptReplaceDetail struct {
	PositivePrompt string      `json:"positive_prompt,omitempty"`
	NegativePrompt string      `json:"negative_prompt,omitempty"`
	Resolution     *Resolution `json:"resolution,omitempty"`
	Loras          string      `json:"loras,omitempty"`
	Sampler        *Sampler    `json:"sampler,omitempty"`
	Name           string      `json:"name,omitempty"`
	RescaleCFG     *bool       `json:"rescaleCfg,omitempty"`
	PerpNeg        *bool       `json:"perpNeg,omitempty"`
	IPAdapter      *IPAdapter  `json:"ipAdapter,omitempty"`
}

type Response struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func New(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: timeout},
	}
}

// Forward posts {event, data} to /rebase/forward.
func (c *Client) Forward(ctx context.Context, event string, data any) (*Response, error) {
	return c.post(ctx, "/rebase/forward", map[string]any{"event": event, "data": data})
}

func (c *Client) PromptReplace(ctx context.Context, detail PromptReplaceDetail) (*Response, error) {
	return c.Forward(ctx, EventPromptReplace, detail)
}

func (c *Client) Generate(ctx context.Context, count int) (*Response, error) {
	if count < MinGenerate || count > MaxGenerate {
		return nil, ErrInvalidCount
	}
	return c.Forward(ctx, EventGenerate, map[string]int{"count": count})
}

// Reset asks the backend to send the base workflow template as load_graph.
func (c *Client) Reset(ctx context.Context) (*Response, error) {
	return c.post(ctx, "/rebase/reset", map[string]any{})
}

func (c *Client) post(ctx context.Context, path string, payload any) (*Response, error) {
	url := c.BaseURL + path
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode request for %s: %w", url, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("POST %s failed: %w", url, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response from %s: %w", url, err)
	}

	var out Response
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("non-JSON response from %s: %s", url, truncate(string(raw), 200))
	}
	if resp.StatusCode >= 300 {
		msg := out.Error
		if msg == "" {
			msg = resp.Status
		}
		return &out, errors.New("POST " + url + " failed: " + msg)
	}
	return &out, nil
}

// truncate keeps at most n runes of s.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
