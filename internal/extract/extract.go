// Package extract recovers structured decisions from noisy LLM output.
//
// Model responses routinely wrap their JSON in markdown fences, preface
// it with prose, or trail off into commentary whose stray braces break
// naive first-{-to-last-} slicing. Every consumer of model output in this
// codebase goes through this package instead of encoding/json directly.
package extract

import (
	"encoding/json"
	"fmt"
	"strings"
)

// StripFences removes markdown code-fence wrappers from a response.
// Handles ```json ... ``` and bare ``` ... ``` blocks, fenced or not.
func StripFences(s string) string {
	out := strings.TrimSpace(s)
	if idx := strings.Index(out, "```json"); idx != -1 {
		out = out[idx+len("```json"):]
	} else if idx := strings.Index(out, "```"); idx != -1 {
		out = out[idx+len("```"):]
	}
	if idx := strings.LastIndex(out, "```"); idx != -1 {
		out = out[:idx]
	}
	return strings.TrimSpace(out)
}

// FirstObject locates the first balanced {...} object in s and returns its
// exact span. The scan is string-aware: a double quote toggles in-string
// mode, and inside a string a backslash escapes the next byte, so quotes
// and braces embedded in string literals never perturb the depth counter.
// Returns ("", false) when no balanced object exists.
func FirstObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start == -1 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

// DecodeObject runs the full recovery cascade on raw model output and
// decodes the first balanced JSON object into v:
//
//  1. strip fence markers, locate the first balanced object, decode;
//  2. on decode failure, re-strip the extracted span and retry once.
//
// Keyword sniffing and safe defaults are decision-type-specific, so they
// stay with the caller; DecodeObject only reports whether a structured
// decode was possible. It never panics.
func DecodeObject(raw string, v any) error {
	cleaned := StripFences(raw)
	obj, ok := FirstObject(cleaned)
	if !ok {
		// Fences sometimes split the object; try the raw text too.
		if obj, ok = FirstObject(raw); !ok {
			return fmt.Errorf("no JSON object found in response (%d bytes)", len(raw))
		}
	}

	if err := json.Unmarshal([]byte(obj), v); err != nil {
		repaired := StripFences(obj)
		if err2 := json.Unmarshal([]byte(repaired), v); err2 != nil {
			return fmt.Errorf("JSON decode failed: %w (after repair: %v)", err, err2)
		}
	}
	return nil
}

// ContainsLiteral reports whether the raw text contains the given literal
// substring, ignoring case. This is the last-resort keyword sniff callers
// use when the structured cascade has already failed.
func ContainsLiteral(raw, literal string) bool {
	return strings.Contains(strings.ToLower(raw), strings.ToLower(literal))
}
