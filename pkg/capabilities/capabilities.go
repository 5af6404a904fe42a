// Package capabilities declares the external services the engine consumes.
// The engine never talks to a mail provider or the tenant record store
// directly; handlers receive these narrow interfaces and treat any returned
// error as the action's failure.
package capabilities

import (
	"context"
	"errors"
)

// Channel identifies a message transport.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
	ChannelChat  Channel = "chat"
)

// Valid reports whether the channel is a known transport.
func (c Channel) Valid() bool {
	switch c {
	case ChannelEmail, ChannelSMS, ChannelChat:
		return true
	default:
		return false
	}
}

// Message is one outbound message. Subject is ignored by transports that
// have no subject concept.
type Message struct {
	Channel Channel
	To      string
	Subject string
	Body    string
}

// Receipt identifies a sent message at its provider.
type Receipt struct {
	ID       string `json:"id"`
	Provider string `json:"provider"`
}

// Messenger is the outbound message capability.
type Messenger interface {
	SendMessage(ctx context.Context, organizationID string, msg Message) (Receipt, error)
}

// ErrRecordNotFound is returned by RecordStore lookups for missing or
// cross-tenant records; handlers surface it as a tenant-data error.
var ErrRecordNotFound = errors.New("record not found")

// Record is a tenant-owned CRM-style record.
type Record struct {
	ID     string         `json:"id"`
	Kind   string         `json:"kind"`
	Fields map[string]any `json:"fields"`
	Tags   []string       `json:"tags"`
}

// RecordStore is the tenant record mutation capability. Every operation is
// scoped by organization; implementations must not return records across
// that boundary.
type RecordStore interface {
	GetRecord(ctx context.Context, organizationID, kind, id string) (*Record, error)
	UpdateRecord(ctx context.Context, organizationID, kind, id string, fields map[string]any) (*Record, error)
	UpdateTags(ctx context.Context, organizationID, kind, id string, tags []string) (*Record, error)
}

// Generator is the AI-assisted text generation capability.
type Generator interface {
	Generate(ctx context.Context, organizationID, prompt string, options map[string]any) (string, error)
}
