// Package llamastack adapts a self-hosted llama-stack inference node as
// a blocking text provider. The node authenticates short-lived HS256
// bearers minted per call.
package llamastack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/jacky-htg/ai-gateway/libs/auth"
	"github.com/jacky-htg/ai-gateway/libs/gateway"
)

const (
	defaultEndpoint = "http://localhost:8321/inference/chat/completions"
	bearerTTL       = time.Minute
)

// Client targets the llama-stack chat completions endpoint.
type Client struct {
	endpoint  string
	apiKey    string
	apiSecret string
	client    *http.Client
}

// New creates a client. Empty endpoint falls back to the default local
// node; empty credentials send unauthenticated requests.
func New(endpoint, apiKey, apiSecret string) *Client {
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	return &Client{
		endpoint:  endpoint,
		apiKey:    apiKey,
		apiSecret: apiSecret,
		client:    &http.Client{},
	}
}

type chatRequest struct {
	Model       string         `json:"model"`
	Messages    []gateway.Turn `json:"messages"`
	MaxTokens   int            `json:"max_tokens,omitempty"`
	Temperature float64        `json:"temperature,omitempty"`
}

// chatResponse accepts both the llama-stack completion_message shape and
// the OpenAI-compatible choices shape.
type chatResponse struct {
	CompletionMessage struct {
		Content string `json:"content"`
	} `json:"completion_message"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// Complete performs a single awaited chat completion.
func (c *Client) Complete(ctx context.Context, req gateway.Request) (gateway.Payload, error) {
	body := chatRequest{
		Model:       req.Model,
		Messages:    req.Messages(),
		MaxTokens:   req.Params.MaxUnits,
		Temperature: req.Params.Temperature,
	}
	b, err := json.Marshal(body)
	if err != nil {
		return gateway.Payload{}, fmt.Errorf("marshal llama-stack request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(b))
	if err != nil {
		return gateway.Payload{}, fmt.Errorf("new llama-stack request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	if c.apiKey != "" && c.apiSecret != "" {
		bearer, err := auth.MintBearer(c.apiKey, c.apiSecret, req.Model, req.ID, bearerTTL)
		if err != nil {
			return gateway.Payload{}, &gateway.Error{
				Provider: "llamastack",
				Kind:     gateway.ErrKindAuth,
				Message:  "mint bearer",
				Cause:    err,
			}
		}
		httpReq.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return gateway.Payload{}, ctx.Err()
		}
		return gateway.Payload{}, &gateway.Error{
			Provider: "llamastack",
			Kind:     gateway.ErrKindUnavailable,
			Message:  "connect failed",
			Cause:    err,
		}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return gateway.Payload{}, gateway.ErrorFromStatus("llamastack", resp)
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return gateway.Payload{}, &gateway.Error{
			Provider: "llamastack",
			Kind:     gateway.ErrKindProtocolParse,
			Message:  "decode response",
			Cause:    err,
		}
	}

	content := out.CompletionMessage.Content
	if content == "" && len(out.Choices) > 0 {
		content = out.Choices[0].Message.Content
	}
	payload := gateway.Payload{Content: content}
	if out.Usage != nil {
		payload.Usage = &gateway.Usage{
			Input:  out.Usage.PromptTokens,
			Output: out.Usage.CompletionTokens,
			Total:  out.Usage.TotalTokens,
		}
	}
	return payload, nil
}
