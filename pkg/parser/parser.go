// Package parser extracts structured tool calls from free-form model
// output. Models emit calls in several encodings depending on their
// chat template; the parser runs an ordered cascade of recognizers and
// returns the first match. Malformed input is never an error — a model
// that produced no parseable call simply wasn't calling a tool.
package parser

import (
	"encoding/json"
	"log/slog"
	"regexp"
	"strings"
)

// ToolCall is a structured call extracted from model output
type ToolCall struct {
	// Name is the tool name
	Name string `json:"name"`

	// Args maps parameter names to values. Values are returned
	// uninterpreted; schema validation is the tool's responsibility.
	Args map[string]interface{} `json:"args"`
}

// Parser extracts at most one tool call per invocation
type Parser struct {
	logger *slog.Logger
}

// NewParser creates a parser that reports recognizer diagnostics to the
// given logger. A nil logger falls back to slog.Default().
func NewParser(logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Parser{logger: logger}
}

var defaultParser = NewParser(nil)

// Parse extracts a tool call using the default parser
func Parse(content string) *ToolCall {
	return defaultParser.Parse(content)
}

// taggedCallRe matches the opening of a <tool_call> wrapper. The closing
// tag is optional so truncated generations still parse.
var taggedCallRe = regexp.MustCompile(`(?s)<tool_call>\s*(.*?)\s*(?:</tool_call>|\z)`)

// functionCallRe matches bare identifier(...) call syntax. The paren
// must follow the identifier directly so ordinary prose doesn't match.
var functionCallRe = regexp.MustCompile(`([A-Za-z_][A-Za-z0-9_]*)\(([^)]*)\)`)

// Parse extracts at most one tool call from content. The recognizers are
// tried in order; the first to succeed wins. Returns nil when no
// recognizer matches.
func (p *Parser) Parse(content string) *ToolCall {
	if strings.TrimSpace(content) == "" {
		return nil
	}

	// Some upstream transports double-encode the payload; unwrap it
	// before running the recognizers.
	content = p.unwrapEncoded(content)

	if call := p.parseTagged(content); call != nil {
		return call
	}
	if call := p.parseBareJSON(content); call != nil {
		return call
	}
	return p.parseFunctionSyntax(content)
}

// unwrapEncoded substitutes the cleanContent field of a JSON-encoded
// envelope, when the whole content is such an envelope. Decode failures
// leave the content untouched.
func (p *Parser) unwrapEncoded(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "{") || !strings.HasSuffix(trimmed, "}") {
		return content
	}

	var envelope map[string]interface{}
	if err := json.Unmarshal([]byte(trimmed), &envelope); err != nil {
		return content
	}
	if clean, ok := envelope["cleanContent"].(string); ok {
		return clean
	}
	return content
}

// parseTagged recognizes the <tool_call>{...}</tool_call> form
func (p *Parser) parseTagged(content string) *ToolCall {
	m := taggedCallRe.FindStringSubmatch(content)
	if m == nil {
		return nil
	}

	payload := strings.TrimSpace(m[1])

	// Payloads re-encoded as JSON strings carry escaped quotes; run one
	// unescape pass before decoding.
	if strings.Contains(payload, `\"`) {
		payload = strings.ReplaceAll(payload, `\"`, `"`)
	}

	// Without a closing tag the payload may carry trailing text; scan
	// out just the balanced object.
	start := strings.IndexByte(payload, '{')
	if start < 0 {
		return nil
	}
	object, ok := scanBalancedObject(payload[start:])
	if !ok {
		// Truncated mid-object; decode what's there as a last resort.
		object = payload[start:]
	}
	return p.decodeCallObject(object)
}

// parseBareJSON recognizes a {"name": ..., "arguments": {...}} object
// anywhere in the text, using balanced-brace scanning so nested argument
// objects are captured whole.
func (p *Parser) parseBareJSON(content string) *ToolCall {
	idx := bareCallStartRe.FindStringIndex(content)
	if idx == nil {
		return nil
	}

	object, ok := scanBalancedObject(content[idx[0]:])
	if !ok {
		p.logger.Debug("tool call parse: unbalanced braces in bare JSON candidate")
		return nil
	}

	call := p.decodeCallObject(object)
	if call == nil {
		p.logger.Debug("tool call parse: bare JSON candidate failed to decode")
	}
	return call
}

// bareCallStartRe locates the start of a bare JSON call object
var bareCallStartRe = regexp.MustCompile(`\{\s*"name"\s*:`)

// parseFunctionSyntax recognizes identifier(...) call syntax
func (p *Parser) parseFunctionSyntax(content string) *ToolCall {
	m := functionCallRe.FindStringSubmatch(content)
	if m == nil {
		return nil
	}

	name := m[1]
	body := strings.TrimSpace(m[2])
	args := make(map[string]interface{})

	if body != "" {
		// Prefer a JSON object body; wrap bare key/value pairs in
		// braces so add(a: 1) and add("a": 1) both decode.
		var decoded map[string]interface{}
		if err := json.Unmarshal([]byte("{"+body+"}"), &decoded); err == nil {
			args = decoded
		} else {
			args = splitNaiveArgs(body)
		}
	}

	return &ToolCall{Name: name, Args: args}
}

// splitNaiveArgs extracts key: value pairs split on commas, stripping
// surrounding quotes. Last-resort extraction for models that emit
// pseudo-code rather than JSON.
func splitNaiveArgs(body string) map[string]interface{} {
	args := make(map[string]interface{})
	for _, part := range strings.Split(body, ",") {
		kv := strings.SplitN(part, ":", 2)
		if len(kv) != 2 {
			continue
		}
		key := strings.Trim(strings.TrimSpace(kv[0]), `"'`)
		value := strings.Trim(strings.TrimSpace(kv[1]), `"'`)
		if key == "" {
			continue
		}
		args[key] = value
	}
	return args
}

// decodeCallObject decodes a JSON object into a ToolCall. The object
// must carry a name; arguments come from "arguments" or "args" and
// default to an empty map.
func (p *Parser) decodeCallObject(payload string) *ToolCall {
	var raw map[string]interface{}
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return nil
	}

	name, ok := raw["name"].(string)
	if !ok || name == "" {
		return nil
	}

	args := make(map[string]interface{})
	if m, ok := raw["arguments"].(map[string]interface{}); ok {
		args = m
	} else if m, ok := raw["args"].(map[string]interface{}); ok {
		args = m
	}

	return &ToolCall{Name: name, Args: args}
}

// scanBalancedObject returns the shortest prefix of s that forms a
// balanced JSON object, honoring string literals and escapes. The input
// must start at an opening brace.
func scanBalancedObject(s string) (string, bool) {
	depth := 0
	inString := false
	escaped := false

	for i := 0; i < len(s); i++ {
		c := s[i]
		if escaped {
			escaped = false
			continue
		}
		switch c {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					return s[:i+1], true
				}
			}
		}
	}
	return "", false
}
