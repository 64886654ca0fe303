// Package piper adapts a local Piper TTS server as a blocking speech
// provider.
package piper

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/jacky-htg/ai-gateway/libs/gateway"
)

const defaultEndpoint = "http://localhost:7071/tts"

// Client targets the Piper HTTP endpoint, which takes a url-encoded form
// with field "text" and streams back encoded audio.
type Client struct {
	endpoint string
	client   *http.Client
}

// New returns a client for the default local endpoint.
func New() *Client { return NewWithEndpoint(defaultEndpoint) }

// NewWithEndpoint allows overriding the Piper endpoint.
func NewWithEndpoint(endpoint string) *Client {
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	return &Client{endpoint: endpoint, client: &http.Client{}}
}

// Complete synthesizes the request's source text into audio bytes.
func (c *Client) Complete(ctx context.Context, req gateway.Request) (gateway.Payload, error) {
	form := url.Values{}
	form.Set("text", req.SourceText())
	if req.Params.Voice != "" {
		form.Set("voice", req.Params.Voice)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return gateway.Payload{}, err
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return gateway.Payload{}, ctx.Err()
		}
		return gateway.Payload{}, &gateway.Error{
			Provider: "piper",
			Kind:     gateway.ErrKindUnavailable,
			Message:  "connect failed",
			Cause:    err,
		}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return gateway.Payload{}, gateway.ErrorFromStatus("piper", resp)
	}

	// The server writes chunked audio; read fully since the canonical
	// result carries the whole clip.
	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctx.Err() != nil {
			return gateway.Payload{}, ctx.Err()
		}
		return gateway.Payload{}, &gateway.Error{
			Provider: "piper",
			Kind:     gateway.ErrKindUnavailable,
			Message:  "read audio stream",
			Cause:    err,
		}
	}
	return gateway.Payload{Audio: audio}, nil
}
