// Package webhook provides the outbound webhook handler: an HTTP call to a
// tenant-configured endpoint with optional HMAC signing, a success condition
// over the response, and retry with configurable backoff.
package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/loopworklabs/loopwork/pkg/condition"
	"github.com/loopworklabs/loopwork/pkg/models"
	"github.com/loopworklabs/loopwork/pkg/template"
)

// SignatureHeader carries the HMAC-SHA256 of the request body, hex encoded
// with a "sha256=" prefix. Tenant endpoints verify it, so the format must
// not change.
const SignatureHeader = "X-Webhook-Signature"

const (
	defaultTimeoutMs   = 30000
	defaultDelayMs     = 1000
	maxResponseBytes   = 1 << 20
	defaultMaxAttempts = 3
)

type retryConfig struct {
	enabled     bool
	maxAttempts int
	backoffType string
	delayMs     int
}

type Handler struct {
	client    *http.Client
	evaluator *condition.Evaluator
	logger    *slog.Logger
}

func NewHandler(logger *slog.Logger) *Handler {
	return &Handler{
		// Per-call deadlines come from the request context, not the client.
		client:    &http.Client{},
		evaluator: condition.NewEvaluator(logger),
		logger:    logger.With("module", "actions", "action_type", "send_webhook"),
	}
}

func (h *Handler) Type() string { return "send_webhook" }

func (h *Handler) Schema() map[string]any {
	return map[string]any{
		"type":     "object",
		"required": []string{"url"},
		"properties": map[string]any{
			"url": map[string]any{"type": "string", "minLength": 1},
			"method": map[string]any{
				"type": "string",
				"enum": []string{"GET", "POST", "PUT", "PATCH", "DELETE"},
			},
			"headers":   map[string]any{"type": "object"},
			"body":      map[string]any{"type": []string{"object", "string"}},
			"timeoutMs": map[string]any{"type": "number", "minimum": 1, "maximum": 300000},
			"secret":    map[string]any{"type": "string"},
			"successCondition": map[string]any{
				"type":     "object",
				"required": []string{"field", "operator"},
			},
			"retry": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"enabled":     map[string]any{"type": "boolean"},
					"maxAttempts": map[string]any{"type": "number", "minimum": 1, "maximum": 10},
					"backoffType": map[string]any{"type": "string", "enum": []string{"linear", "exponential", "fixed"}},
					"delayMs":     map[string]any{"type": "number", "minimum": 0, "maximum": 300000},
				},
			},
		},
	}
}

func (h *Handler) Execute(ctx context.Context, config map[string]any, ectx *models.ExecutionContext) models.NodeResult {
	url := template.RenderString(stringValue(config["url"]), ectx)
	if url == "" || template.HasToken(url) {
		return models.Fail(models.ErrorKindValidation, "url did not resolve to a value")
	}

	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return models.Fail(models.ErrorKindValidation, fmt.Sprintf("unsupported url scheme in %q", url))
	}

	method := strings.ToUpper(stringValue(config["method"]))
	if method == "" {
		method = http.MethodPost
	}

	body, isJSON := renderBody(config["body"], ectx)
	timeout := durationMs(config["timeoutMs"], defaultTimeoutMs)
	retry := parseRetry(config["retry"])

	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, method, url, strings.NewReader(body))
	if err != nil {
		return models.Fail(models.ErrorKindValidation, fmt.Sprintf("invalid webhook request: %v", err))
	}

	for key, value := range renderHeaders(config["headers"], ectx) {
		req.Header.Set(key, value)
	}

	if body != "" && req.Header.Get("Content-Type") == "" {
		contentType := "text/plain"
		if isJSON {
			contentType = "application/json"
		}

		req.Header.Set("Content-Type", contentType)
	}

	if secret := stringValue(config["secret"]); secret != "" {
		req.Header.Set(SignatureHeader, Sign(secret, []byte(body)))
	}

	resp, err := h.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return h.failOrRetry(retry, ectx.Attempt, models.ErrorKindWebhookTimeout,
				fmt.Sprintf("webhook timeout after %s calling %s", timeout, url),
				map[string]any{"timed_out": true})
		}

		return h.failOrRetry(retry, ectx.Attempt, models.ErrorKindTransient,
			fmt.Sprintf("webhook request failed: %v", err), nil)
	}

	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return h.failOrRetry(retry, ectx.Attempt, models.ErrorKindTransient,
			fmt.Sprintf("reading webhook response: %v", err), nil)
	}

	responseBody := parseBody(raw)
	output := map[string]any{
		"status":   resp.StatusCode,
		"response": responseBody,
	}

	ok, evalErr := h.succeeded(config["successCondition"], resp.StatusCode, responseBody, ectx)
	if evalErr != nil {
		return models.Fail(models.ErrorKindValidation, fmt.Sprintf("success condition: %v", evalErr))
	}

	if !ok {
		return h.failOrRetry(retry, ectx.Attempt, models.ErrorKindTransient,
			fmt.Sprintf("webhook returned unsuccessful status %d", resp.StatusCode), output)
	}

	return models.Continue(output)
}

// Sign computes the body signature in the on-wire format: sha256=<hex-hmac>.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)

	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a received signature in constant time.
func VerifySignature(secret string, body []byte, signature string) bool {
	return hmac.Equal([]byte(Sign(secret, body)), []byte(signature))
}

// failOrRetry turns a failed attempt into either a retry result with the
// configured backoff or a terminal failure of the given kind. attempt is the
// zero-based count of the attempt that just failed.
func (h *Handler) failOrRetry(retry retryConfig, attempt int, kind models.ErrorKind, message string, output map[string]any) models.NodeResult {
	if retry.enabled && attempt+1 < retry.maxAttempts {
		result := models.Retry(message, Backoff(retry.backoffType, time.Duration(retry.delayMs)*time.Millisecond, attempt+1))
		result.Kind = kind
		result.Output = output

		return result
	}

	result := models.Fail(kind, message)
	result.Output = output

	return result
}

// Backoff returns the delay before the next attempt. attempt is the 1-based
// number of the attempt that just failed: linear grows as attempt*base,
// exponential as 2^(attempt-1)*base, fixed stays at base.
func Backoff(backoffType string, base time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	switch backoffType {
	case "linear":
		return time.Duration(attempt) * base
	case "exponential":
		return time.Duration(1<<(attempt-1)) * base
	default:
		return base
	}
}

// succeeded applies the tenant success condition when present, else requires
// a 2xx status. The condition is evaluated against a scratch context whose
// addressable roots are {response, status}.
func (h *Handler) succeeded(rawCondition any, status int, responseBody any, ectx *models.ExecutionContext) (bool, error) {
	conditionMap, ok := rawCondition.(map[string]any)
	if !ok {
		return status >= 200 && status < 300, nil
	}

	cond := condition.Condition{
		Field:     stringValue(conditionMap["field"]),
		Operator:  stringValue(conditionMap["operator"]),
		Value:     conditionMap["value"],
		ValueType: stringValue(conditionMap["valueType"]),
	}

	evalCtx := models.NewExecutionContext(ectx.ExecutionID, ectx.WorkflowID, ectx.OrganizationID,
		map[string]any{"response": responseBody, "status": float64(status)}, nil)

	return h.evaluator.Evaluate(cond, evalCtx)
}

func renderBody(raw any, ectx *models.ExecutionContext) (body string, isJSON bool) {
	switch v := raw.(type) {
	case nil:
		return "", false
	case string:
		return template.RenderString(v, ectx), json.Valid([]byte(v))
	default:
		rendered := template.RenderAny(v, ectx)

		encoded, err := json.Marshal(rendered)
		if err != nil {
			return "", false
		}

		return string(encoded), true
	}
}

func renderHeaders(raw any, ectx *models.ExecutionContext) map[string]string {
	headers := make(map[string]string)

	entries, ok := raw.(map[string]any)
	if !ok {
		return headers
	}

	for key, value := range entries {
		headers[key] = template.RenderString(template.Stringify(value), ectx)
	}

	return headers
}

func parseBody(raw []byte) any {
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err == nil {
		return decoded
	}

	return string(raw)
}

func parseRetry(raw any) retryConfig {
	cfg := retryConfig{maxAttempts: defaultMaxAttempts, backoffType: "fixed", delayMs: defaultDelayMs}

	entries, ok := raw.(map[string]any)
	if !ok {
		return cfg
	}

	if enabled, ok := entries["enabled"].(bool); ok {
		cfg.enabled = enabled
	}

	if attempts, ok := entries["maxAttempts"].(float64); ok {
		cfg.maxAttempts = int(attempts)
	}

	if backoffType, ok := entries["backoffType"].(string); ok {
		cfg.backoffType = backoffType
	}

	if delay, ok := entries["delayMs"].(float64); ok {
		cfg.delayMs = int(delay)
	}

	return cfg
}

func durationMs(raw any, fallback int) time.Duration {
	ms, ok := raw.(float64)
	if !ok || ms <= 0 {
		ms = float64(fallback)
	}

	return time.Duration(ms) * time.Millisecond
}

func stringValue(v any) string {
	s, _ := v.(string)

	return s
}
