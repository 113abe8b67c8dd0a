package fileutils

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// ParseResult is the outcome of reading a JSON array of objects out of free-form model output.
// Exactly one of Items or Reason is meaningful, selected by OK.
type ParseResult struct {
	OK     bool
	Items  []map[string]any
	Reason string
}

func Success(items []map[string]any) ParseResult {
	return ParseResult{OK: true, Items: items}
}

func Failure(format string, args ...any) ParseResult {
	return ParseResult{Reason: fmt.Sprintf(format, args...)}
}

var trailingComma = regexp.MustCompile(`,\s*([\]}])`)

// DecodeModelArray extracts the outermost JSON array from a model response. The span runs from
// the first '[' to the last ']', which leaves markdown code fences and surrounding prose outside
// it. Trailing commas before a closing bracket or brace are removed before decoding. Elements that
// are not objects decode as empty maps.
func DecodeModelArray(outputText string) ParseResult {
	s := strings.TrimSpace(outputText)
	if s == "" {
		return Failure("empty model output")
	}

	start := strings.IndexByte(s, '[')
	end := strings.LastIndexByte(s, ']')
	if start == -1 || end == -1 || end <= start {
		return Failure("no JSON array found in model output (len=%d)", len(s))
	}

	sub := trailingComma.ReplaceAllString(s[start:end+1], "$1")

	var raw []json.RawMessage
	if err := json.Unmarshal([]byte(sub), &raw); err != nil {
		return Failure("failed to unmarshal extracted JSON array (len=%d): %v", len(sub), err)
	}

	items := make([]map[string]any, 0, len(raw))
	for _, r := range raw {
		var obj map[string]any
		if err := json.Unmarshal(r, &obj); err != nil || obj == nil {
			obj = map[string]any{}
		}
		items = append(items, obj)
	}
	return Success(items)
}
