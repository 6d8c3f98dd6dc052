package ai

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
)

// Pre-compiled regular expressions; compiling per parse is much slower.
var (
	// Code fence patterns. Newlines optional to handle responses where the
	// model omits them.
	codeFenceStartRegex = regexp.MustCompile(`(?s)^` + "`" + `{3}(?:json|javascript|js)?\s*\n?([\s\S]*?)\n?` + "`" + `{3}\s*$`)
	codeFenceAnyRegex   = regexp.MustCompile(`(?s)` + "`" + `{3}(?:json|javascript|js)?\s*\n?([\s\S]*?)\n?` + "`" + `{3}`)

	// JSON cleanup patterns
	trailingCommaRegex = regexp.MustCompile(`,(\s*[}\]])`)
	unquotedKeyRegex   = regexp.MustCompile(`([{,]\s*)([a-zA-Z_$][a-zA-Z0-9_$]*)\s*:`)

	// Greedy extraction patterns for JSON embedded in prose
	objectRegex = regexp.MustCompile(`(?s)\{[\s\S]*\}`)
	arrayRegex  = regexp.MustCompile(`(?s)\[[\s\S]*\]`)
)

// ParseResult represents the result of a JSON parse operation.
type ParseResult[T any] struct {
	Success      bool
	Data         T
	Error        string
	OriginalText string
}

// ParseOptions configures JSON parsing behavior.
type ParseOptions struct {
	Context        string // Context for error messages
	DisableCleanup bool   // Skip the cleanup/repair strategies (direct parse only)
	MaxInputSize   int    // Maximum input size in bytes (0 = 1MB default)
}

// Parse attempts to parse JSON from model output with fallback strategies.
// Model responses are adversarially unreliable: they arrive wrapped in
// markdown fences, padded with prose, or truncated mid-object.
//
// Strategy sequence:
//  1. Direct JSON parse
//  2. Remove code fences and retry
//  3. Fix common JSON issues (trailing commas, unquoted keys) and retry
//  4. Extract the first balanced object/array from mixed content and retry
//  5. Repair a truncated object by closing it at the last complete field
func Parse[T any](text string, opts ...ParseOptions) ParseResult[T] {
	var options ParseOptions
	if len(opts) > 0 {
		options = opts[0]
	}
	maxInput := options.MaxInputSize
	if maxInput == 0 {
		maxInput = 1024 * 1024
	}

	if len(text) > maxInput {
		return createError[T](
			fmt.Sprintf("input exceeds size limit (%d > %d bytes)", len(text), maxInput),
			truncateString(text, 1000), options.Context)
	}

	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return createError[T]("empty input", text, options.Context)
	}

	// Strategy 1: direct parse
	if result, err := tryDirectParse[T](trimmed); err == nil {
		return ParseResult[T]{Success: true, Data: result, OriginalText: text}
	} else if options.DisableCleanup {
		return createError[T](err.Error(), text, options.Context)
	} else {
		slog.Debug("direct JSON parse failed, trying cleanup strategies",
			"error", err.Error(),
			"textPreview", truncateString(text, 100),
			"context", options.Context)
	}

	// Strategy 2: strip code fences
	withoutFences := removeCodeFences(trimmed)
	if withoutFences != trimmed {
		if result, err := tryDirectParse[T](withoutFences); err == nil {
			return ParseResult[T]{Success: true, Data: result, OriginalText: text}
		}
	}

	// Strategy 3: fix common formatting issues
	cleaned := cleanupJSON(withoutFences)
	if result, err := tryDirectParse[T](cleaned); err == nil {
		return ParseResult[T]{Success: true, Data: result, OriginalText: text}
	}

	// Strategy 4: extract JSON from surrounding prose
	extracted := extractJSON(cleaned)
	if extracted != "" {
		if result, err := tryDirectParse[T](extracted); err == nil {
			return ParseResult[T]{Success: true, Data: result, OriginalText: text}
		}
	}

	// Strategy 5: repair truncation. Try on the extracted fragment first so
	// leading prose doesn't defeat the repair, then on the cleaned text.
	for _, candidate := range []string{extracted, cleaned} {
		if candidate == "" {
			continue
		}
		if repaired := repairTruncated(candidate); repaired != "" {
			if result, err := tryDirectParse[T](repaired); err == nil {
				slog.Debug("parsed JSON after truncation repair",
					"context", options.Context,
					"repairedPreview", truncateString(repaired, 100))
				return ParseResult[T]{Success: true, Data: result, OriginalText: text}
			}
		}
	}

	return createError[T]("all JSON parsing strategies failed", text, options.Context)
}

// ParseOrDefault parses JSON and returns a fallback value on error.
func ParseOrDefault[T any](text string, fallback T, opts ...ParseOptions) T {
	result := Parse[T](text, opts...)
	if result.Success {
		return result.Data
	}
	return fallback
}

// tryDirectParse attempts a direct JSON parse without any cleanup.
func tryDirectParse[T any](text string) (T, error) {
	var result T
	err := json.Unmarshal([]byte(text), &result)
	return result, err
}

// removeCodeFences strips markdown code fences from text.
func removeCodeFences(text string) string {
	cleaned := codeFenceStartRegex.ReplaceAllString(text, "$1")
	if cleaned == text {
		cleaned = codeFenceAnyRegex.ReplaceAllString(text, "$1")
	}

	// Single backticks wrapping the whole content
	if strings.HasPrefix(cleaned, "`") && strings.HasSuffix(cleaned, "`") {
		cleaned = strings.TrimPrefix(cleaned, "`")
		cleaned = strings.TrimSuffix(cleaned, "`")
	}

	return strings.TrimSpace(cleaned)
}

// cleanupJSON fixes common JSON formatting issues: trailing commas before
// closing braces/brackets and unquoted object keys (JavaScript-identifier
// cases only). Single quotes are left alone since converting them would
// break valid JSON containing apostrophes.
func cleanupJSON(text string) string {
	cleaned := strings.TrimSpace(text)
	cleaned = trailingCommaRegex.ReplaceAllString(cleaned, "$1")
	cleaned = unquotedKeyRegex.ReplaceAllString(cleaned, `$1"$2":`)
	return strings.TrimSpace(cleaned)
}

// extractJSON pulls the first balanced-looking JSON object or array out of
// mixed content. Returns empty string if nothing JSON-like is found.
func extractJSON(text string) string {
	trimmed := strings.TrimSpace(text)

	if len(trimmed) > 0 {
		switch trimmed[0] {
		case '[':
			if match := arrayRegex.FindString(text); match != "" {
				return match
			}
		case '{':
			if match := objectRegex.FindString(text); match != "" {
				return match
			}
		}
	}

	// Objects first: more common in model responses.
	if match := objectRegex.FindString(text); match != "" {
		return match
	}
	if match := arrayRegex.FindString(text); match != "" {
		return match
	}
	return ""
}

// repairTruncated attempts to recover a JSON object or array that was cut
// off mid-stream: it drops everything after the last complete field and
// closes the structures that remain open. Leading noise before the first
// brace or bracket is sliced off, since a truncated response wrapped in an
// opening fence or prose never reaches the fence-stripping or extraction
// strategies (both need the closing delimiter the truncation ate). Returns
// empty string when the input holds no truncated JSON or no complete field
// survives.
func repairTruncated(text string) string {
	trimmed := strings.TrimSpace(text)
	start := strings.IndexAny(trimmed, "{[")
	if start < 0 {
		return ""
	}
	trimmed = trimmed[start:]

	var stack []byte
	inString := false
	escaped := false
	lastSafe := -1
	var safeStack []byte

	for i := 0; i < len(trimmed); i++ {
		ch := trimmed[i]
		if inString {
			if escaped {
				escaped = false
				continue
			}
			if ch == '\\' {
				escaped = true
				continue
			}
			if ch == '"' {
				inString = false
			}
			continue
		}

		switch ch {
		case '"':
			inString = true
		case '{', '[':
			stack = append(stack, ch)
		case '}', ']':
			if len(stack) == 0 {
				return "" // malformed beyond repair
			}
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return "" // balanced already, truncation is not the problem
			}
			// A nested structure just completed cleanly.
			lastSafe = i + 1
			safeStack = append(safeStack[:0], stack...)
		case ',':
			if len(stack) == 1 {
				// A top-level field just completed.
				lastSafe = i
				safeStack = append(safeStack[:0], stack...)
			}
		}
	}

	if len(stack) == 0 || lastSafe < 0 {
		return ""
	}

	repaired := strings.TrimRight(strings.TrimSpace(trimmed[:lastSafe]), ",")
	for i := len(safeStack) - 1; i >= 0; i-- {
		if safeStack[i] == '{' {
			repaired += "}"
		} else {
			repaired += "]"
		}
	}
	return repaired
}

// createError creates a failed ParseResult with error details.
func createError[T any](message, text, context string) ParseResult[T] {
	var zero T
	errorMsg := message
	if context != "" {
		errorMsg = context + ": " + message
	}
	return ParseResult[T]{
		Success:      false,
		Data:         zero,
		Error:        errorMsg,
		OriginalText: text,
	}
}
