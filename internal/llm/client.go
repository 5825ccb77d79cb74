// Package llm talks to the plan generator: it builds prompts, calls the
// model over HTTP, and pulls the JSON plan out of the model's reply.
//
// The client speaks the Ollama generate API: it posts
// {model, prompt, stream: false} and reads the response field.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// Client calls a text-generation endpoint. It is safe for concurrent use.
type Client struct {
	http  *resty.Client
	url   string
	model string
}

// Options configures a Client.
type Options struct {
	URL     string
	Model   string
	Timeout time.Duration
}

// NewClient creates a Client.
func NewClient(o Options) (*Client, error) {
	if o.URL == "" {
		return nil, errors.New("llm: url is required")
	}
	if o.Model == "" {
		return nil, errors.New("llm: model is required")
	}
	h := resty.New().
		SetHeader("Accept", "application/json").
		SetTimeout(o.Timeout)
	return &Client{http: h, url: o.URL, model: o.Model}, nil
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Response string `json:"response"`
	Error    string `json:"error"`
}

// Generate sends a prompt and returns the model's raw text.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	var out generateResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(generateRequest{Model: c.model, Prompt: prompt}).
		SetResult(&out).
		SetError(&out).
		Post(c.url)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", fmt.Errorf("llm request failed: %w", err)
	}
	if resp.IsError() {
		msg := out.Error
		if msg == "" {
			msg = strings.TrimSpace(resp.String())
		}
		return "", fmt.Errorf("llm returned %d: %s", resp.StatusCode(), msg)
	}
	if strings.TrimSpace(out.Response) == "" {
		return "", errors.New("llm returned an empty response")
	}
	return out.Response, nil
}
