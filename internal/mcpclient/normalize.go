package mcpclient

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strings"
)

// normalizeResult decodes a tools/call JSON-RPC result into a generic map,
// ported from the Python adapter's normalize_tool_result (_tool_runner.py):
// MCP tool results can arrive as a plain object, the content/text envelope
// this runtime's own transport emits ({"content": [{"text": "..."}]} or a
// bare list [{"text": "..."}]), a JSON string wrapping either of those, or
// an opaque non-JSON string. Whatever doesn't parse falls back to
// {"raw": <string>} rather than erroring, so a client never chokes on a
// third-party MCP server returning a shape this runtime didn't anticipate.
// Pure and deterministic: same bytes in, same map out (spec.md §4.8).
func normalizeResult(raw json.RawMessage) map[string]any {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return map[string]any{"raw": ""}
	}
	if m, ok := tryParseNormalized(trimmed); ok {
		return m
	}
	return map[string]any{"raw": string(trimmed)}
}

// tryParseNormalized attempts the dict, content-list, and JSON-string forms
// in turn, recursing once into an unwrapped JSON string's own contents.
func tryParseNormalized(trimmed []byte) (map[string]any, bool) {
	var asMap map[string]any
	if err := json.Unmarshal(trimmed, &asMap); err == nil {
		if content, ok := asMap["content"].([]any); ok {
			if m, ok := normalizeContentList(content); ok {
				return m, true
			}
		}
		return asMap, true
	}

	var asList []any
	if err := json.Unmarshal(trimmed, &asList); err == nil {
		return normalizeContentList(asList)
	}

	var asString string
	if err := json.Unmarshal(trimmed, &asString); err == nil {
		inner := bytes.TrimSpace([]byte(asString))
		if len(inner) == 0 {
			return map[string]any{"raw": ""}, true
		}
		if m, ok := tryParseNormalized(inner); ok {
			return m, true
		}
		return map[string]any{"raw": asString}, true
	}

	if v, ok := tryParsePythonLiteral(string(trimmed)); ok {
		switch t := v.(type) {
		case map[string]any:
			return t, true
		case []any:
			if m, ok := normalizeContentList(t); ok {
				return m, true
			}
		}
	}

	return nil, false
}

var (
	pyNoneRe  = regexp.MustCompile(`\bNone\b`)
	pyTrueRe  = regexp.MustCompile(`\bTrue\b`)
	pyFalseRe = regexp.MustCompile(`\bFalse\b`)
)

// tryParsePythonLiteral best-effort parses a Python-repr-looking string (a
// single-quoted dict/list literal, with True/False/None) by rewriting it to
// JSON and re-parsing, mirroring the Python adapter's ast.literal_eval
// fallback in _tool_runner.py's normalize_tool_result. Only single-quoted
// literals with no embedded double quotes round-trip correctly; anything
// more exotic falls through to the raw-string fallback.
func tryParsePythonLiteral(s string) (any, bool) {
	t := strings.TrimSpace(s)
	if t == "" || (t[0] != '[' && t[0] != '{') {
		return nil, false
	}
	if strings.Contains(t, `"`) {
		return nil, false
	}

	jsonLike := strings.ReplaceAll(t, "'", `"`)
	jsonLike = pyNoneRe.ReplaceAllString(jsonLike, "null")
	jsonLike = pyTrueRe.ReplaceAllString(jsonLike, "true")
	jsonLike = pyFalseRe.ReplaceAllString(jsonLike, "false")

	var v any
	if err := json.Unmarshal([]byte(jsonLike), &v); err != nil {
		return nil, false
	}
	return v, true
}

// normalizeContentList handles the MCP content-array shape: a non-empty
// list whose first element is {"text": "<json or raw string>"}.
func normalizeContentList(items []any) (map[string]any, bool) {
	if len(items) == 0 {
		return nil, false
	}
	first, ok := items[0].(map[string]any)
	if !ok {
		return nil, false
	}
	text, ok := first["text"].(string)
	if !ok {
		return nil, false
	}
	if m, ok := tryParseNormalized([]byte(text)); ok {
		return m, true
	}
	return map[string]any{"raw": text}, true
}
