package gateway

import "testing"

func TestAssemblePrefersProviderUsage(t *testing.T) {
	req := textRequest()
	res := assemble(req, Payload{
		Content: "hello world",
		Usage:   &Usage{Input: 7, Output: 9},
	})
	if res.Usage.Estimated {
		t.Error("provider-reported usage must not be marked estimated")
	}
	if res.Usage.Total != 16 {
		t.Errorf("total = %d, want input+output = 16", res.Usage.Total)
	}
}

func TestAssembleEstimatesWhenUnreported(t *testing.T) {
	req := Request{
		Capability: CapabilityText,
		Turns:      []Turn{{Role: "user", Content: "12345678"}}, // 8 chars
	}
	res := assemble(req, Payload{Content: "abcdefghijkl"}) // 12 chars

	if !res.Usage.Estimated {
		t.Fatal("usage should be estimated")
	}
	if res.Usage.Input != 2 {
		t.Errorf("input = %d, want 2", res.Usage.Input)
	}
	if res.Usage.Output != 3 {
		t.Errorf("output = %d, want 3", res.Usage.Output)
	}
	if res.Usage.Total != 5 {
		t.Errorf("total = %d, want 5", res.Usage.Total)
	}
}

func TestAssembleEstimateNeverZeroForNonEmpty(t *testing.T) {
	req := Request{Turns: []Turn{{Content: "hi"}}} // under one unit of chars
	res := assemble(req, Payload{Content: "ok"})
	if res.Usage.Input != 1 || res.Usage.Output != 1 {
		t.Errorf("usage = %+v, want nonzero text rounded up to 1 unit", res.Usage)
	}
}

func TestAssembleEmptyUsageTreatedAsUnreported(t *testing.T) {
	req := textRequest()
	res := assemble(req, Payload{Content: "answer", Usage: &Usage{}})
	if !res.Usage.Estimated {
		t.Error("all-zero provider usage should fall back to estimation")
	}
}

func TestAssembleCarriesAudio(t *testing.T) {
	res := assemble(Request{Capability: CapabilitySpeech}, Payload{Audio: []byte{1, 2, 3}})
	if len(res.Audio) != 3 {
		t.Errorf("audio length = %d, want 3", len(res.Audio))
	}
}

func TestRequestPrompt(t *testing.T) {
	req := Request{
		ContextPreamble: "Be brief.",
		Turns: []Turn{
			{Role: "user", Content: "hi"},
			{Role: "assistant", Content: "hello"},
			{Role: "user", Content: "bye"},
		},
	}
	want := "Be brief.\n\nhi\nassistant: hello\nbye"
	if got := req.Prompt(); got != want {
		t.Errorf("Prompt = %q, want %q", got, want)
	}
}

func TestRequestMessagesInjectsPreamble(t *testing.T) {
	req := Request{
		ContextPreamble: "system rules",
		Turns:           []Turn{{Role: "user", Content: "hi"}},
	}
	msgs := req.Messages()
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}
	if msgs[0].Role != "system" || msgs[0].Content != "system rules" {
		t.Errorf("first message = %+v, want system preamble", msgs[0])
	}
}
