// Package ollama adapts the local Ollama HTTP API as a text provider,
// both as a newline-framed streaming source and as a blocking call.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/jacky-htg/ai-gateway/libs/gateway"
)

const defaultEndpoint = "http://localhost:11434/api/generate"

// Client targets the Ollama generate endpoint.
type Client struct {
	endpoint string
	client   *http.Client
}

// New returns a client configured for the default local endpoint.
func New() *Client { return NewWithEndpoint(defaultEndpoint) }

// NewWithEndpoint creates an Ollama client with a custom endpoint.
// The HTTP client carries no fixed timeout: attempt deadlines come from
// the request context, and a client timeout would cut long streams short.
func NewWithEndpoint(endpoint string) *Client {
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	return &Client{endpoint: endpoint, client: &http.Client{}}
}

type generateRequest struct {
	Model   string           `json:"model"`
	Prompt  string           `json:"prompt"`
	Stream  bool             `json:"stream"`
	Options *generateOptions `json:"options,omitempty"`
}

type generateOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type generateResponse struct {
	Response        string `json:"response"`
	Done            bool   `json:"done"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	EvalCount       int    `json:"eval_count"`
}

func (c *Client) post(ctx context.Context, req gateway.Request, streaming bool) (*http.Response, error) {
	body := generateRequest{
		Model:  req.Model,
		Prompt: req.Prompt(),
		Stream: streaming,
	}
	if req.Params.Temperature > 0 || req.Params.MaxUnits > 0 {
		body.Options = &generateOptions{
			Temperature: req.Params.Temperature,
			NumPredict:  req.Params.MaxUnits,
		}
	}
	b, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal ollama request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("new ollama request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &gateway.Error{
			Provider: "ollama",
			Kind:     gateway.ErrKindUnavailable,
			Message:  "connect failed",
			Cause:    err,
		}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		gerr := gateway.ErrorFromStatus("ollama", resp)
		resp.Body.Close()
		return nil, gerr
	}
	return resp, nil
}

// OpenStream starts a streaming generation. The returned body is a
// sequence of newline-delimited JSON frames ending in a done frame.
func (c *Client) OpenStream(ctx context.Context, req gateway.Request) (io.ReadCloser, error) {
	resp, err := c.post(ctx, req, true)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// Complete performs a single blocking generation.
func (c *Client) Complete(ctx context.Context, req gateway.Request) (gateway.Payload, error) {
	resp, err := c.post(ctx, req, false)
	if err != nil {
		return gateway.Payload{}, err
	}
	defer resp.Body.Close()

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return gateway.Payload{}, &gateway.Error{
			Provider: "ollama",
			Kind:     gateway.ErrKindProtocolParse,
			Message:  "decode response",
			Cause:    err,
		}
	}

	payload := gateway.Payload{Content: out.Response}
	if out.PromptEvalCount > 0 || out.EvalCount > 0 {
		payload.Usage = &gateway.Usage{
			Input:  out.PromptEvalCount,
			Output: out.EvalCount,
			Total:  out.PromptEvalCount + out.EvalCount,
		}
	}
	return payload, nil
}
