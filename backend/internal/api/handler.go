package api

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/jacky-htg/ai-gateway/libs/gateway"
	"github.com/jacky-htg/ai-gateway/libs/store"
)

// Handler exposes the gateway over HTTP.
type Handler struct {
	ctrl  *gateway.Controller
	board *gateway.Board
	// journal is optional; a nil store disables request journaling.
	journal *store.Store
}

// NewHandler creates a Handler. journal may be nil.
func NewHandler(ctrl *gateway.Controller, board *gateway.Board, journal *store.Store) *Handler {
	return &Handler{ctrl: ctrl, board: board, journal: journal}
}

type completionRequest struct {
	Model        string         `json:"model" binding:"required"`
	Messages     []gateway.Turn `json:"messages" binding:"required,min=1"`
	Temperature  float64        `json:"temperature"`
	MaxTokens    int            `json:"max_tokens"`
	Context      string         `json:"context"`
	Stream       bool           `json:"stream"`
	AllowReorder bool           `json:"allow_reorder"`
}

type completionResponse struct {
	RequestID      string        `json:"request_id"`
	Content        string        `json:"content"`
	Usage          gateway.Usage `json:"usage"`
	Method         string        `json:"method"`
	Warnings       []string      `json:"warnings,omitempty"`
	TotalLatencyMs int64         `json:"total_latency_ms"`
}

// Completion handles POST /v1/completions.
func (h *Handler) Completion(c *gin.Context) {
	requestID := c.GetString("request_id")
	start := time.Now()

	var body completionRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": gin.H{"type": "invalid_request", "message": err.Error()},
		})
		return
	}

	req := gateway.Request{
		ID:              requestID,
		Capability:      gateway.CapabilityText,
		Model:           body.Model,
		Turns:           body.Messages,
		Params:          gateway.Params{Temperature: body.Temperature, MaxUnits: body.MaxTokens},
		ContextPreamble: body.Context,
		AllowReorder:    body.AllowReorder,
	}

	result, ok := h.execute(c, req)
	if !ok {
		return
	}

	if body.Stream {
		h.writeSSE(c, requestID, result)
		return
	}
	c.JSON(http.StatusOK, completionResponse{
		RequestID:      requestID,
		Content:        result.Content,
		Usage:          result.Usage,
		Method:         result.Method,
		Warnings:       result.Warnings,
		TotalLatencyMs: time.Since(start).Milliseconds(),
	})
}

type speechRequest struct {
	Model string `json:"model" binding:"required"`
	Input string `json:"input" binding:"required"`
	Voice string `json:"voice"`
}

// Speech handles POST /v1/speech.
func (h *Handler) Speech(c *gin.Context) {
	requestID := c.GetString("request_id")

	var body speechRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": gin.H{"type": "invalid_request", "message": err.Error()},
		})
		return
	}

	req := gateway.Request{
		ID:         requestID,
		Capability: gateway.CapabilitySpeech,
		Model:      body.Model,
		Turns:      []gateway.Turn{{Role: "user", Content: body.Input}},
		Params:     gateway.Params{Voice: body.Voice},
	}

	result, ok := h.execute(c, req)
	if !ok {
		return
	}

	log.WithFields(log.Fields{
		"request_id": requestID,
		"method":     result.Method,
		"audio_size": humanize.Bytes(uint64(len(result.Audio))),
	}).Info("speech synthesized")

	c.JSON(http.StatusOK, gin.H{
		"request_id":   requestID,
		"audio_base64": base64.StdEncoding.EncodeToString(result.Audio),
		"usage":        result.Usage,
		"method":       result.Method,
		"warnings":     result.Warnings,
	})
}

// execute runs the fallback chain and maps failures onto HTTP. It
// returns false when a response has already been written.
func (h *Handler) execute(c *gin.Context, req gateway.Request) (*gateway.Result, bool) {
	if h.journal != nil {
		if err := h.journal.RecordRequest(req); err != nil {
			log.WithField("error", err.Error()).Warn("journal request failed")
		}
	}

	result, attempts, err := h.ctrl.Do(c.Request.Context(), req)
	h.recordJournal(req, result, attempts, err)

	if err == nil {
		return result, true
	}

	if errors.Is(err, gateway.ErrNoProviderConfigured) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": gin.H{"type": "no_provider_configured", "message": err.Error()},
		})
		return nil, false
	}
	if exhausted, ok := gateway.AsExhausted(err); ok {
		c.JSON(http.StatusBadGateway, gin.H{
			"error": gin.H{
				"type":    "all_providers_failed",
				"message": exhausted.Error(),
				"trace":   exhausted.Trace,
			},
		})
		return nil, false
	}
	if c.Request.Context().Err() != nil {
		// Client went away; nothing useful to write.
		log.WithField("request_id", req.ID).Info("request canceled by caller")
		c.Abort()
		return nil, false
	}
	c.JSON(http.StatusInternalServerError, gin.H{
		"error": gin.H{"type": "internal", "message": err.Error()},
	})
	return nil, false
}

func (h *Handler) recordJournal(req gateway.Request, result *gateway.Result, attempts []gateway.Attempt, err error) {
	if h.journal == nil {
		return
	}
	if jerr := h.journal.RecordAttempts(req.ID, attempts); jerr != nil {
		log.WithField("error", jerr.Error()).Warn("journal attempts failed")
	}
	status := "succeeded"
	method := ""
	chars := 0
	if err != nil {
		status = "failed"
	} else {
		method = result.Method
		chars = len(result.Content)
	}
	if jerr := h.journal.FinishRequest(req.ID, method, status, chars); jerr != nil {
		log.WithField("error", jerr.Error()).Warn("journal finish failed")
	}
}

// writeSSE replays the completed result as newline-delimited event
// frames. The answer is withheld until the winning provider finished, so
// a failed provider's partial output never leaks to the client.
func (h *Handler) writeSSE(c *gin.Context, requestID string, result *gateway.Result) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)

	write := func(v any) {
		b, err := json.Marshal(v)
		if err != nil {
			return
		}
		fmt.Fprintf(c.Writer, "data: %s\n\n", b)
	}

	write(gin.H{"content": result.Content, "method": result.Method})
	write(gin.H{"usage": result.Usage})
	for _, w := range result.Warnings {
		write(gin.H{"warning": w})
	}
	fmt.Fprint(c.Writer, "data: [DONE]\n\n")
	c.Writer.Flush()

	log.WithFields(log.Fields{
		"request_id": requestID,
		"method":     result.Method,
	}).Info("stream complete")
}

// Health handles GET /health with a per-provider health snapshot.
func (h *Handler) Health(c *gin.Context) {
	type providerStatus struct {
		ConsecutiveFailures int    `json:"consecutive_failures"`
		LastSuccess         string `json:"last_success,omitempty"`
	}
	providers := make(map[string]providerStatus)
	for id, ph := range h.board.Snapshot() {
		ps := providerStatus{ConsecutiveFailures: ph.ConsecutiveFailures}
		if !ph.LastSuccess.IsZero() {
			ps.LastSuccess = humanize.Time(ph.LastSuccess)
		}
		providers[id] = ps
	}
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"time":      time.Now().UTC().Format(time.RFC3339),
		"providers": providers,
	})
}

// GetRequest handles GET /v1/requests/:id against the journal.
func (h *Handler) GetRequest(c *gin.Context) {
	if h.journal == nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error": gin.H{"type": "not_found", "message": "journal disabled"},
		})
		return
	}
	row, attempts, err := h.journal.GetRequest(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error": gin.H{"type": "not_found", "message": "request not found"},
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"request": row, "attempts": attempts})
}
