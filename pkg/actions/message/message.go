// Package message provides the communication action handlers. One handler
// per channel, all backed by the Messenger capability.
package message

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/loopworklabs/loopwork/pkg/capabilities"
	"github.com/loopworklabs/loopwork/pkg/models"
	"github.com/loopworklabs/loopwork/pkg/template"
)

// Handler sends one message on a fixed channel. Registered three times,
// once per channel, under send_email / send_sms / send_chat.
type Handler struct {
	channel   capabilities.Channel
	messenger capabilities.Messenger
	logger    *slog.Logger
}

func NewSendEmailHandler(messenger capabilities.Messenger, logger *slog.Logger) *Handler {
	return newHandler(capabilities.ChannelEmail, messenger, logger)
}

func NewSendSMSHandler(messenger capabilities.Messenger, logger *slog.Logger) *Handler {
	return newHandler(capabilities.ChannelSMS, messenger, logger)
}

func NewSendChatHandler(messenger capabilities.Messenger, logger *slog.Logger) *Handler {
	return newHandler(capabilities.ChannelChat, messenger, logger)
}

func newHandler(channel capabilities.Channel, messenger capabilities.Messenger, logger *slog.Logger) *Handler {
	return &Handler{
		channel:   channel,
		messenger: messenger,
		logger:    logger.With("module", "actions", "action_type", "send_"+string(channel)),
	}
}

func (h *Handler) Type() string {
	switch h.channel {
	case capabilities.ChannelEmail:
		return "send_email"
	case capabilities.ChannelSMS:
		return "send_sms"
	default:
		return "send_chat"
	}
}

func (h *Handler) Schema() map[string]any {
	return map[string]any{
		"type":     "object",
		"required": []string{"to", "body"},
		"properties": map[string]any{
			"to":      map[string]any{"type": "string", "minLength": 1},
			"subject": map[string]any{"type": "string"},
			"body":    map[string]any{"type": "string"},
			"fallback": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":     "object",
					"required": []string{"channel", "to"},
					"properties": map[string]any{
						"channel": map[string]any{"type": "string", "enum": []string{"email", "sms", "chat"}},
						"to":      map[string]any{"type": "string"},
					},
				},
			},
		},
	}
}

// Execute interpolates recipient, subject and body, then sends. When the
// primary channel fails and fallback channels are configured, each is tried
// in order; the message only fails once every channel has refused it.
func (h *Handler) Execute(ctx context.Context, config map[string]any, ectx *models.ExecutionContext) models.NodeResult {
	to := template.RenderString(stringValue(config["to"]), ectx)
	if strings.TrimSpace(to) == "" || template.HasToken(to) {
		return models.Fail(models.ErrorKindValidation, "recipient did not resolve to a value")
	}

	msg := capabilities.Message{
		Channel: h.channel,
		To:      to,
		Subject: template.RenderString(stringValue(config["subject"]), ectx),
		Body:    template.RenderString(stringValue(config["body"]), ectx),
	}

	receipt, err := h.messenger.SendMessage(ctx, ectx.OrganizationID, msg)
	if err == nil {
		return models.Continue(sendOutput(msg, receipt, false))
	}

	h.logger.WarnContext(ctx, "Primary channel failed, trying fallbacks",
		"execution_id", ectx.ExecutionID, "error", err)

	lastErr := err

	for _, fb := range fallbacks(config, ectx) {
		fb.Subject = msg.Subject
		fb.Body = msg.Body

		receipt, err := h.messenger.SendMessage(ctx, ectx.OrganizationID, fb)
		if err == nil {
			return models.Continue(sendOutput(fb, receipt, true))
		}

		lastErr = err
	}

	return models.Fail(models.ErrorKindTransient, fmt.Sprintf("message send failed: %v", lastErr))
}

func sendOutput(msg capabilities.Message, receipt capabilities.Receipt, usedFallback bool) map[string]any {
	return map[string]any{
		"channel":       string(msg.Channel),
		"to":            msg.To,
		"message_id":    receipt.ID,
		"provider":      receipt.Provider,
		"used_fallback": usedFallback,
	}
}

func fallbacks(config map[string]any, ectx *models.ExecutionContext) []capabilities.Message {
	raw, ok := config["fallback"].([]any)
	if !ok {
		return nil
	}

	msgs := make([]capabilities.Message, 0, len(raw))

	for _, item := range raw {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}

		channel := capabilities.Channel(stringValue(entry["channel"]))
		to := template.RenderString(stringValue(entry["to"]), ectx)

		if !channel.Valid() || to == "" {
			continue
		}

		msgs = append(msgs, capabilities.Message{Channel: channel, To: to})
	}

	return msgs
}

func stringValue(v any) string {
	s, _ := v.(string)

	return s
}
