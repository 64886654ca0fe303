package subproc

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestRunCapturesOutput(t *testing.T) {
	res, err := Run(context.Background(), Spec{
		Command: "sh",
		Args:    []string{"-c", "echo out; echo err 1>&2"},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.ExitCode != 0 {
		t.Errorf("exit code = %d, want 0", res.ExitCode)
	}
	if strings.TrimSpace(res.Stdout) != "out" {
		t.Errorf("stdout = %q, want %q", res.Stdout, "out")
	}
	if strings.TrimSpace(res.Stderr) != "err" {
		t.Errorf("stderr = %q, want %q", res.Stderr, "err")
	}
	if res.TimedOut {
		t.Error("TimedOut = true, want false")
	}
}

func TestRunNonZeroExit(t *testing.T) {
	res, err := Run(context.Background(), Spec{
		Command: "sh",
		Args:    []string{"-c", "echo boom 1>&2; exit 3"},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.ExitCode != 3 {
		t.Errorf("exit code = %d, want 3", res.ExitCode)
	}
	if !strings.Contains(res.Stderr, "boom") {
		t.Errorf("stderr = %q, want it to contain %q", res.Stderr, "boom")
	}
}

func TestRunTimeoutKillsProcess(t *testing.T) {
	start := time.Now()
	res, err := Run(context.Background(), Spec{
		Command: "sleep",
		Args:    []string{"60"},
		Timeout: 50 * time.Millisecond,
	})
	elapsed := time.Since(start)

	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.TimedOut {
		t.Error("TimedOut = false, want true")
	}
	// Termination plus grace must come nowhere near the sleep duration.
	if elapsed > killGrace+2*time.Second {
		t.Errorf("run took %s, process was not reaped promptly", elapsed)
	}
}

func TestRunPreservesOutputOnTimeout(t *testing.T) {
	res, err := Run(context.Background(), Spec{
		Command: "sh",
		Args:    []string{"-c", "echo before; sleep 60"},
		Timeout: 200 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.TimedOut {
		t.Fatal("TimedOut = false, want true")
	}
	if strings.TrimSpace(res.Stdout) != "before" {
		t.Errorf("stdout = %q, want output captured before the kill", res.Stdout)
	}
}

func TestRunCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	_, err := Run(ctx, Spec{Command: "sleep", Args: []string{"60"}})
	if err != context.Canceled {
		t.Errorf("Run err = %v, want context.Canceled", err)
	}
}

func TestRunStartFailure(t *testing.T) {
	res, err := Run(context.Background(), Spec{Command: "/no/such/binary"})
	if err == nil {
		t.Fatal("expected start error")
	}
	if res.ExitCode != -1 {
		t.Errorf("exit code = %d, want -1", res.ExitCode)
	}
}

func TestDecodeOutput(t *testing.T) {
	tests := []struct {
		name    string
		stdout  string
		kind    DecodedKind
		content string
	}{
		{"structured content", `{"content":"hello"}`, DecodedStructured, "hello"},
		{"structured response", `{"response":"hi"}`, DecodedStructured, "hi"},
		{"structured text", `{"text":"yo"}`, DecodedStructured, "yo"},
		{"raw text", "plain answer\n", DecodedRaw, "plain answer"},
		{"invalid json falls back", `{"content":`, DecodedRaw, `{"content":`},
		{"json without known fields", `{"other":"x"}`, DecodedRaw, `{"other":"x"}`},
		{"empty", "", DecodedRaw, ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := DecodeOutput(tc.stdout)
			if got.Kind != tc.kind {
				t.Errorf("kind = %s, want %s", got.Kind, tc.kind)
			}
			if got.Content != tc.content {
				t.Errorf("content = %q, want %q", got.Content, tc.content)
			}
		})
	}
}

func TestQuoteArg(t *testing.T) {
	got := QuoteArg(`say "hi" to o'brien \now`)
	want := `say \"hi\" to o\'brien \\now`
	if got != want {
		t.Errorf("QuoteArg = %q, want %q", got, want)
	}
}
