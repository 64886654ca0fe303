// gatectl is a small command-line client for the gateway server.
package main

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var (
	serverURL string
	model     string
	timeout   time.Duration
)

func main() {
	root := &cobra.Command{
		Use:   "gatectl",
		Short: "Client for the AI capability gateway",
	}
	root.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8080", "gateway base URL")
	root.PersistentFlags().DurationVar(&timeout, "timeout", 2*time.Minute, "request timeout")

	root.AddCommand(textCmd(), speechCmd(), providersCmd())
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func client() *http.Client { return &http.Client{Timeout: timeout} }

func postJSON(path string, body any) (*http.Response, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	resp, err := client().Post(serverURL+path, "application/json", bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("post %s: %w", path, err)
	}
	return resp, nil
}

func fail(resp *http.Response) error {
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return fmt.Errorf("server returned %d: %s", resp.StatusCode, string(body))
}

func textCmd() *cobra.Command {
	var allowReorder bool
	var contextText string
	cmd := &cobra.Command{
		Use:   "text [prompt...]",
		Short: "Request a text completion",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			start := time.Now()
			resp, err := postJSON("/v1/completions", map[string]any{
				"model":         model,
				"messages":      []map[string]string{{"role": "user", "content": strings.Join(args, " ")}},
				"context":       contextText,
				"allow_reorder": allowReorder,
			})
			if err != nil {
				return err
			}
			if resp.StatusCode != http.StatusOK {
				return fail(resp)
			}
			defer resp.Body.Close()

			var out struct {
				Content string `json:"content"`
				Method  string `json:"method"`
				Usage   struct {
					Total     int  `json:"total"`
					Estimated bool `json:"estimated"`
				} `json:"usage"`
				Warnings []string `json:"warnings"`
			}
			if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
				return fmt.Errorf("decode response: %w", err)
			}

			fmt.Println(out.Content)
			for _, w := range out.Warnings {
				fmt.Fprintf(os.Stderr, "warning: %s\n", w)
			}
			units := fmt.Sprintf("%d units", out.Usage.Total)
			if out.Usage.Estimated {
				units += " (estimated)"
			}
			fmt.Fprintf(os.Stderr, "served by %s in %s, %s\n",
				out.Method, time.Since(start).Round(time.Millisecond), units)
			return nil
		},
	}
	cmd.Flags().StringVar(&model, "model", "tinyllama", "model identifier")
	cmd.Flags().StringVar(&contextText, "context", "", "context preamble injected ahead of the prompt")
	cmd.Flags().BoolVar(&allowReorder, "allow-reorder", false, "let the gateway reorder providers by health")
	return cmd
}

func speechCmd() *cobra.Command {
	var outPath, voice string
	cmd := &cobra.Command{
		Use:   "speech [text...]",
		Short: "Synthesize speech",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := postJSON("/v1/speech", map[string]any{
				"model": model,
				"input": strings.Join(args, " "),
				"voice": voice,
			})
			if err != nil {
				return err
			}
			if resp.StatusCode != http.StatusOK {
				return fail(resp)
			}
			defer resp.Body.Close()

			var out struct {
				AudioBase64 string `json:"audio_base64"`
				Method      string `json:"method"`
			}
			if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
				return fmt.Errorf("decode response: %w", err)
			}
			audio, err := base64.StdEncoding.DecodeString(out.AudioBase64)
			if err != nil {
				return fmt.Errorf("decode audio: %w", err)
			}
			if err := os.WriteFile(outPath, audio, 0644); err != nil {
				return fmt.Errorf("write audio: %w", err)
			}
			fmt.Fprintf(os.Stderr, "wrote %s of audio to %s (served by %s)\n",
				humanize.Bytes(uint64(len(audio))), outPath, out.Method)
			return nil
		},
	}
	cmd.Flags().StringVar(&model, "model", "piper", "model identifier")
	cmd.Flags().StringVar(&voice, "voice", "", "voice hint")
	cmd.Flags().StringVar(&outPath, "out", "out.wav", "output audio file")
	return cmd
}

func providersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "Show provider health",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := client().Get(serverURL + "/health")
			if err != nil {
				return fmt.Errorf("get health: %w", err)
			}
			if resp.StatusCode != http.StatusOK {
				return fail(resp)
			}
			defer resp.Body.Close()

			var out struct {
				Status    string `json:"status"`
				Providers map[string]struct {
					ConsecutiveFailures int    `json:"consecutive_failures"`
					LastSuccess         string `json:"last_success"`
				} `json:"providers"`
			}
			if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
				return fmt.Errorf("decode response: %w", err)
			}

			fmt.Printf("gateway: %s\n", out.Status)
			ids := make([]string, 0, len(out.Providers))
			for id := range out.Providers {
				ids = append(ids, id)
			}
			sort.Strings(ids)
			for _, id := range ids {
				p := out.Providers[id]
				last := p.LastSuccess
				if last == "" {
					last = "never"
				}
				fmt.Printf("  %-12s failures=%d last_success=%s\n", id, p.ConsecutiveFailures, last)
			}
			return nil
		},
	}
}
