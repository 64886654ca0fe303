package subproc

import (
	"encoding/json"
	"strings"
)

// DecodedKind tags how captured stdout was interpreted.
type DecodedKind string

const (
	// DecodedStructured means stdout was valid JSON matching the
	// expected provider schema and the content field was extracted.
	DecodedStructured DecodedKind = "structured"
	// DecodedRaw means stdout was passed through as trimmed text.
	DecodedRaw DecodedKind = "raw"
)

// Decoded is the tagged result of interpreting subprocess stdout.
type Decoded struct {
	Kind    DecodedKind
	Content string
}

// cliOutput is the superset of JSON shapes CLI-invoked model backends
// emit, depending on flags.
type cliOutput struct {
	Content  string `json:"content"`
	Response string `json:"response"`
	Text     string `json:"text"`
}

// DecodeOutput extracts the content field when stdout is structured JSON
// and otherwise passes the raw trimmed text through unchanged.
func DecodeOutput(stdout string) Decoded {
	trimmed := strings.TrimSpace(stdout)
	if strings.HasPrefix(trimmed, "{") {
		var out cliOutput
		if err := json.Unmarshal([]byte(trimmed), &out); err == nil {
			content := out.Content
			if content == "" {
				content = out.Response
			}
			if content == "" {
				content = out.Text
			}
			if content != "" {
				return Decoded{Kind: DecodedStructured, Content: content}
			}
		}
	}
	return Decoded{Kind: DecodedRaw, Content: trimmed}
}

// QuoteArg escapes quote characters so a prompt survives as a single
// argument when the command is re-expanded by a shell wrapper.
func QuoteArg(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	s = strings.ReplaceAll(s, `'`, `\'`)
	return s
}
