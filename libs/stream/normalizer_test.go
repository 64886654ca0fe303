package stream

import (
	"io"
	"strings"
	"testing"
)

// chunkedReader yields the underlying data in fixed-size pieces so tests
// can exercise arbitrary transport chunk boundaries.
type chunkedReader struct {
	data []byte
	size int
	off  int
}

func (r *chunkedReader) Read(p []byte) (int, error) {
	if r.off >= len(r.data) {
		return 0, io.EOF
	}
	end := r.off + r.size
	if end > len(r.data) {
		end = len(r.data)
	}
	n := copy(p, r.data[r.off:end])
	r.off += n
	return n, nil
}

func drain(t *testing.T, n *Normalizer) []Token {
	t.Helper()
	var toks []Token
	for {
		tok, err := n.Next()
		if err == io.EOF {
			return toks
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		toks = append(toks, tok)
	}
}

func collectText(toks []Token) string {
	var b strings.Builder
	for _, tok := range toks {
		if tok.Kind == TokenText {
			b.WriteString(tok.Text)
		}
	}
	return b.String()
}

func TestNormalizerNDJSON(t *testing.T) {
	raw := `{"response":"Hel"}
{"response":"lo"}
{"done":true,"prompt_eval_count":3,"eval_count":2}
`
	toks := drain(t, NewNormalizer(strings.NewReader(raw)))

	if got := collectText(toks); got != "Hello" {
		t.Errorf("content = %q, want %q", got, "Hello")
	}
	last := toks[len(toks)-1]
	if last.Kind != TokenDone {
		t.Errorf("last token kind = %s, want done", last.Kind)
	}

	var usage *Usage
	for i := range toks {
		if toks[i].Kind == TokenUsage {
			usage = &toks[i].Usage
		}
	}
	if usage == nil {
		t.Fatal("expected a usage token")
	}
	if usage.Input != 3 || usage.Output != 2 || usage.Total != 5 {
		t.Errorf("usage = %+v, want {3 2 5}", *usage)
	}
}

func TestNormalizerSSEFrames(t *testing.T) {
	raw := "data: {\"delta\":{\"content\":\"a\"}}\n\n" +
		"data: {\"delta\":{\"content\":\"b\"},\"usage\":{\"prompt_tokens\":1,\"completion_tokens\":2,\"total_tokens\":3}}\n\n" +
		"data: [DONE]\n\n"
	toks := drain(t, NewNormalizer(strings.NewReader(raw)))

	if got := collectText(toks); got != "ab" {
		t.Errorf("content = %q, want %q", got, "ab")
	}
	if toks[len(toks)-1].Kind != TokenDone {
		t.Error("expected terminal done token")
	}

	found := false
	for _, tok := range toks {
		if tok.Kind == TokenUsage {
			found = true
			if tok.Usage.Total != 3 {
				t.Errorf("usage total = %d, want 3", tok.Usage.Total)
			}
		}
	}
	if !found {
		t.Error("expected a usage token")
	}
}

// Token boundaries must not depend on how the producer split the bytes:
// every chunk size from one byte up must reconstruct the same sequence.
func TestNormalizerChunkBoundaryInvariance(t *testing.T) {
	raw := `{"response":"The quick "}
{"response":"brown fox"}
{"response":" jumps"}
{"done":true,"prompt_eval_count":10,"eval_count":7}
`
	want := drain(t, NewNormalizer(strings.NewReader(raw)))

	for size := 1; size <= len(raw); size++ {
		got := drain(t, NewNormalizer(&chunkedReader{data: []byte(raw), size: size}))
		if len(got) != len(want) {
			t.Fatalf("chunk size %d: got %d tokens, want %d", size, len(got), len(want))
		}
		for i := range got {
			if got[i] != want[i] {
				t.Fatalf("chunk size %d: token %d = %+v, want %+v", size, i, got[i], want[i])
			}
		}
	}
}

func TestNormalizerSkipsMalformedFrames(t *testing.T) {
	raw := `{"response":"ok"}
this is not json
{"response":" still ok"}
{"done":true}
`
	toks := drain(t, NewNormalizer(strings.NewReader(raw)))
	if got := collectText(toks); got != "ok still ok" {
		t.Errorf("content = %q, want %q", got, "ok still ok")
	}
	if toks[len(toks)-1].Kind != TokenDone {
		t.Error("malformed frame must not abort the stream")
	}
}

func TestNormalizerEOFWithoutTerminal(t *testing.T) {
	raw := `{"response":"partial"}` + "\n"
	toks := drain(t, NewNormalizer(strings.NewReader(raw)))
	if got := collectText(toks); got != "partial" {
		t.Errorf("content = %q, want %q", got, "partial")
	}
	if toks[len(toks)-1].Kind != TokenDone {
		t.Error("transport close should still yield a done token")
	}
}

func TestNormalizerUnterminatedFinalFrame(t *testing.T) {
	raw := `{"response":"a"}` + "\n" + `{"response":"b"}` // no trailing newline
	toks := drain(t, NewNormalizer(strings.NewReader(raw)))
	if got := collectText(toks); got != "ab" {
		t.Errorf("content = %q, want %q", got, "ab")
	}
}

func TestNormalizerSingleUse(t *testing.T) {
	n := NewNormalizer(strings.NewReader(`{"done":true}` + "\n"))
	drain(t, n)
	if _, err := n.Next(); err != io.EOF {
		t.Errorf("Next after done = %v, want io.EOF", err)
	}
}

func TestNormalizerIgnoresCommentsAndBlanks(t *testing.T) {
	raw := ": keep-alive\n\n{\"content\":\"x\"}\ndata: [DONE]\n"
	toks := drain(t, NewNormalizer(strings.NewReader(raw)))
	if got := collectText(toks); got != "x" {
		t.Errorf("content = %q, want %q", got, "x")
	}
}
