// Package template resolves {{path.to.value}} expressions against an
// execution context. Tenant-authored templates are untrusted input: they are
// never parsed as code, and unresolved tokens pass through verbatim so a
// missing variable cannot crash a run.
package template

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/loopworklabs/loopwork/pkg/models"
)

var tokenPattern = regexp.MustCompile(`\{\{([^{}]+)\}\}`)

// Render resolves all tokens in the template. A template that is exactly one
// token returns the resolved value with its native type preserved, so a
// downstream numeric comparison sees a number rather than its decimal
// rendering. Templates with surrounding text stringify each resolved value.
func Render(input string, ectx *models.ExecutionContext) any {
	trimmed := strings.TrimSpace(input)

	if m := tokenPattern.FindStringSubmatch(trimmed); m != nil && m[0] == trimmed {
		if value, ok := ectx.Lookup(m[1]); ok {
			return value
		}

		return input
	}

	return tokenPattern.ReplaceAllStringFunc(input, func(token string) string {
		path := tokenPattern.FindStringSubmatch(token)[1]

		value, ok := ectx.Lookup(path)
		if !ok {
			return token
		}

		return Stringify(value)
	})
}

// RenderString renders and stringifies, for callers that need text.
func RenderString(input string, ectx *models.ExecutionContext) string {
	return Stringify(Render(input, ectx))
}

// RenderAny renders every string leaf of a value in place, recursing through
// maps and slices. Non-string leaves pass through unchanged.
func RenderAny(input any, ectx *models.ExecutionContext) any {
	switch v := input.(type) {
	case string:
		return Render(v, ectx)
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			out[k] = RenderAny(item, ectx)
		}

		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = RenderAny(item, ectx)
		}

		return out
	default:
		return input
	}
}

// HasToken reports whether the input contains at least one template token.
func HasToken(input string) bool {
	return tokenPattern.MatchString(input)
}

// Stringify renders a resolved value as text. Composite values marshal as
// JSON; nil renders empty.
func Stringify(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case json.Number:
		return v.String()
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return ""
		}

		return string(encoded)
	}
}
