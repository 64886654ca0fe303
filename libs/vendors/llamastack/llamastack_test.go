package llamastack

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jacky-htg/ai-gateway/libs/gateway"
)

func testRequest() gateway.Request {
	return gateway.Request{
		ID:              "req_test",
		Capability:      gateway.CapabilityText,
		Model:           "llama3",
		Turns:           []gateway.Turn{{Role: "user", Content: "hi"}},
		ContextPreamble: "be terse",
	}
}

func TestCompleteCompletionMessageShape(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Model    string         `json:"model"`
			Messages []gateway.Turn `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if len(body.Messages) != 2 || body.Messages[0].Role != "system" {
			t.Errorf("messages = %v, want preamble injected as system turn", body.Messages)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"completion_message": map[string]string{"content": "stacked"},
			"usage": map[string]int{
				"prompt_tokens": 2, "completion_tokens": 3, "total_tokens": 5,
			},
		})
	}))
	defer srv.Close()

	payload, err := New(srv.URL, "", "").Complete(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if payload.Content != "stacked" {
		t.Errorf("content = %q", payload.Content)
	}
	if payload.Usage == nil || payload.Usage.Total != 5 {
		t.Errorf("usage = %+v, want total 5", payload.Usage)
	}
}

func TestCompleteChoicesShape(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"content": "from choices"}},
			},
		})
	}))
	defer srv.Close()

	payload, err := New(srv.URL, "", "").Complete(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if payload.Content != "from choices" {
		t.Errorf("content = %q", payload.Content)
	}
	if payload.Usage != nil {
		t.Error("usage should be nil when unreported")
	}
}

func TestCompleteSendsBearer(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode(map[string]any{
			"completion_message": map[string]string{"content": "ok"},
		})
	}))
	defer srv.Close()

	if _, err := New(srv.URL, "key", "secret").Complete(context.Background(), testRequest()); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if !strings.HasPrefix(gotAuth, "Bearer ") {
		t.Fatalf("Authorization = %q, want a bearer token", gotAuth)
	}
	// HS256 compact JWT: three dot-separated segments.
	token := strings.TrimPrefix(gotAuth, "Bearer ")
	if parts := strings.Split(token, "."); len(parts) != 3 {
		t.Errorf("token has %d segments, want 3", len(parts))
	}
}

func TestCompleteNoBearerWithoutCredentials(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "" {
			t.Error("Authorization header sent without credentials")
		}
		json.NewEncoder(w).Encode(map[string]any{
			"completion_message": map[string]string{"content": "ok"},
		})
	}))
	defer srv.Close()

	if _, err := New(srv.URL, "", "").Complete(context.Background(), testRequest()); err != nil {
		t.Fatalf("Complete: %v", err)
	}
}

func TestCompleteAuthRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := New(srv.URL, "key", "secret").Complete(context.Background(), testRequest())
	gerr, ok := gateway.AsError(err)
	if !ok {
		t.Fatalf("err = %v, want *gateway.Error", err)
	}
	if gerr.Kind != gateway.ErrKindAuth {
		t.Errorf("kind = %s, want auth", gerr.Kind)
	}
}
