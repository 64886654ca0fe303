// Package stream reconstructs discrete content tokens from a raw byte
// stream of newline-delimited event frames, regardless of how the
// producer split the bytes across transport chunks.
package stream

import (
	"bytes"
	"encoding/json"
	"io"

	log "github.com/sirupsen/logrus"
)

// TokenKind tags the kind of a normalized token.
type TokenKind string

const (
	// TokenText carries an incremental content fragment.
	TokenText TokenKind = "text"
	// TokenUsage carries provider-reported accounting.
	TokenUsage TokenKind = "usage"
	// TokenDone marks clean end of the sequence.
	TokenDone TokenKind = "done"
)

// Usage is provider-reported unit accounting extracted from a frame.
type Usage struct {
	Input  int
	Output int
	Total  int
}

// Token is one canonical unit of producer output.
type Token struct {
	Kind  TokenKind
	Text  string
	Usage Usage
}

const readChunkSize = 4096

// Normalizer turns a newline-framed event stream into an ordered Token
// sequence. Frames may be bare JSON lines (NDJSON) or SSE "data:" lines;
// "[DONE]" and frames with done:true end the sequence. A Normalizer is
// single-use: restart by creating a new one over a fresh reader.
type Normalizer struct {
	r       io.Reader
	buf     []byte // carry-over for a partially received frame
	pending []Token
	eof     bool
	done    bool
	log     log.FieldLogger
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithLogger overrides the logger used for skipped-frame warnings.
func WithLogger(l log.FieldLogger) Option {
	return func(n *Normalizer) { n.log = l }
}

// NewNormalizer wraps r. The reader is not closed by the Normalizer;
// the caller owns its lifetime.
func NewNormalizer(r io.Reader, opts ...Option) *Normalizer {
	n := &Normalizer{r: r, log: log.StandardLogger()}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Next returns the next token. After the terminal token (TokenDone) has
// been returned, Next returns io.EOF. Transport close without an explicit
// terminal marker still yields a final TokenDone.
func (n *Normalizer) Next() (Token, error) {
	for {
		if len(n.pending) > 0 {
			tok := n.pending[0]
			n.pending = n.pending[1:]
			if tok.Kind == TokenDone {
				n.done = true
			}
			return tok, nil
		}
		if n.done {
			return Token{}, io.EOF
		}

		line, err := n.readLine()
		if err == io.EOF {
			n.done = true
			return Token{Kind: TokenDone}, nil
		}
		if err != nil {
			return Token{}, err
		}
		n.pending = n.parseFrame(line)
	}
}

// readLine returns the next newline-terminated frame, buffering partial
// frames across reads. The final unterminated frame before EOF is
// returned as a frame of its own.
func (n *Normalizer) readLine() ([]byte, error) {
	for {
		if i := bytes.IndexByte(n.buf, '\n'); i >= 0 {
			line := n.buf[:i]
			n.buf = n.buf[i+1:]
			return bytes.TrimRight(line, "\r"), nil
		}
		if n.eof {
			if len(n.buf) > 0 {
				line := n.buf
				n.buf = nil
				return bytes.TrimRight(line, "\r"), nil
			}
			return nil, io.EOF
		}

		chunk := make([]byte, readChunkSize)
		m, err := n.r.Read(chunk)
		if m > 0 {
			n.buf = append(n.buf, chunk[:m]...)
		}
		if err == io.EOF {
			n.eof = true
			continue
		}
		if err != nil {
			return nil, err
		}
	}
}

// frame is the superset of the wire shapes we accept: Ollama-style
// generate/chat frames and OpenAI-compatible delta frames.
type frame struct {
	Content  string `json:"content"`
	Response string `json:"response"`
	Delta    struct {
		Content string `json:"content"`
	} `json:"delta"`
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	Done  bool `json:"done"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
	PromptEvalCount int `json:"prompt_eval_count"`
	EvalCount       int `json:"eval_count"`
}

// parseFrame decodes a single frame into zero or more tokens. A frame
// that fails to parse is logged and skipped; it never aborts the stream.
func (n *Normalizer) parseFrame(line []byte) []Token {
	line = bytes.TrimSpace(line)
	if len(line) == 0 || line[0] == ':' {
		return nil
	}
	if bytes.HasPrefix(line, []byte("data:")) {
		line = bytes.TrimSpace(line[len("data:"):])
		if len(line) == 0 {
			return nil
		}
	}
	if bytes.Equal(line, []byte("[DONE]")) {
		return []Token{{Kind: TokenDone}}
	}

	var f frame
	if err := json.Unmarshal(line, &f); err != nil {
		n.log.WithFields(log.Fields{
			"frame": string(line),
			"error": err.Error(),
		}).Warn("skipping malformed stream frame")
		return nil
	}

	var toks []Token
	if text := f.text(); text != "" {
		toks = append(toks, Token{Kind: TokenText, Text: text})
	}
	if u, ok := f.usage(); ok {
		toks = append(toks, Token{Kind: TokenUsage, Usage: u})
	}
	if f.Done {
		toks = append(toks, Token{Kind: TokenDone})
	}
	return toks
}

func (f *frame) text() string {
	switch {
	case f.Content != "":
		return f.Content
	case f.Response != "":
		return f.Response
	case f.Delta.Content != "":
		return f.Delta.Content
	default:
		return f.Message.Content
	}
}

func (f *frame) usage() (Usage, bool) {
	if f.Usage != nil {
		return Usage{
			Input:  f.Usage.PromptTokens,
			Output: f.Usage.CompletionTokens,
			Total:  f.Usage.TotalTokens,
		}, true
	}
	if f.PromptEvalCount > 0 || f.EvalCount > 0 {
		return Usage{
			Input:  f.PromptEvalCount,
			Output: f.EvalCount,
			Total:  f.PromptEvalCount + f.EvalCount,
		}, true
	}
	return Usage{}, false
}
