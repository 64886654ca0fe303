// Package hftts adapts the HuggingFace hosted inference API as a
// blocking speech provider.
package hftts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/jacky-htg/ai-gateway/libs/gateway"
)

const defaultBaseURL = "https://api-inference.huggingface.co/models"

// Client posts {"inputs": text} to a hosted TTS model and receives raw
// audio bytes.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
}

// New creates a client. Empty baseURL falls back to the public inference
// API; token is the HuggingFace API token used as a bearer.
func New(baseURL, token string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{baseURL: baseURL, token: token, client: &http.Client{}}
}

type inferenceRequest struct {
	Inputs string `json:"inputs"`
}

// Complete synthesizes the request's source text via the hosted model
// named by the request.
func (c *Client) Complete(ctx context.Context, req gateway.Request) (gateway.Payload, error) {
	b, err := json.Marshal(inferenceRequest{Inputs: req.SourceText()})
	if err != nil {
		return gateway.Payload{}, fmt.Errorf("marshal inference request: %w", err)
	}

	endpoint := c.baseURL + "/" + req.Model
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(b))
	if err != nil {
		return gateway.Payload{}, fmt.Errorf("new inference request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return gateway.Payload{}, ctx.Err()
		}
		return gateway.Payload{}, &gateway.Error{
			Provider: "hftts",
			Kind:     gateway.ErrKindUnavailable,
			Message:  "connect failed",
			Cause:    err,
		}
	}
	defer resp.Body.Close()

	// 503 means the hosted model is still loading; surface it as
	// unavailable so the chain advances.
	if resp.StatusCode == http.StatusServiceUnavailable {
		return gateway.Payload{}, &gateway.Error{
			Provider: "hftts",
			Kind:     gateway.ErrKindUnavailable,
			Message:  "model loading",
		}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return gateway.Payload{}, gateway.ErrorFromStatus("hftts", resp)
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctx.Err() != nil {
			return gateway.Payload{}, ctx.Err()
		}
		return gateway.Payload{}, &gateway.Error{
			Provider: "hftts",
			Kind:     gateway.ErrKindUnavailable,
			Message:  "read audio response",
			Cause:    err,
		}
	}
	return gateway.Payload{Audio: audio}, nil
}
