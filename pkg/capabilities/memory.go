package capabilities

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// LogMessenger records sends and logs them instead of delivering. Used in
// development setups and tests.
type LogMessenger struct {
	logger *slog.Logger

	mu   sync.Mutex
	sent []Message
}

func NewLogMessenger(logger *slog.Logger) *LogMessenger {
	return &LogMessenger{logger: logger.With("module", "messenger")}
}

func (m *LogMessenger) SendMessage(ctx context.Context, organizationID string, msg Message) (Receipt, error) {
	if !msg.Channel.Valid() {
		return Receipt{}, fmt.Errorf("unsupported channel %q", msg.Channel)
	}

	if msg.To == "" {
		return Receipt{}, fmt.Errorf("no recipient for %s message", msg.Channel)
	}

	m.mu.Lock()
	m.sent = append(m.sent, msg)
	m.mu.Unlock()

	m.logger.InfoContext(ctx, "Message sent",
		"organization_id", organizationID,
		"channel", msg.Channel,
		"to", msg.To,
	)

	return Receipt{ID: uuid.New().String(), Provider: "log"}, nil
}

// Sent returns a copy of all messages accepted so far.
func (m *LogMessenger) Sent() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()

	return slices.Clone(m.sent)
}

// MemoryRecordStore keeps tenant records in process memory, partitioned by
// organization. Used in development setups and tests.
type MemoryRecordStore struct {
	mu      sync.RWMutex
	records map[string]*Record // key: org/kind/id
}

func NewMemoryRecordStore() *MemoryRecordStore {
	return &MemoryRecordStore{records: make(map[string]*Record)}
}

func recordKey(organizationID, kind, id string) string {
	return organizationID + "/" + kind + "/" + id
}

// PutRecord seeds a record, replacing any existing one.
func (s *MemoryRecordStore) PutRecord(organizationID string, record *Record) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[recordKey(organizationID, record.Kind, record.ID)] = cloneRecord(record)
}

func (s *MemoryRecordStore) GetRecord(ctx context.Context, organizationID, kind, id string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.records[recordKey(organizationID, kind, id)]
	if !ok {
		return nil, ErrRecordNotFound
	}

	return cloneRecord(record), nil
}

func (s *MemoryRecordStore) UpdateRecord(ctx context.Context, organizationID, kind, id string, fields map[string]any) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[recordKey(organizationID, kind, id)]
	if !ok {
		return nil, ErrRecordNotFound
	}

	if record.Fields == nil {
		record.Fields = make(map[string]any)
	}

	for k, v := range fields {
		record.Fields[k] = v
	}

	return cloneRecord(record), nil
}

func (s *MemoryRecordStore) UpdateTags(ctx context.Context, organizationID, kind, id string, tags []string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[recordKey(organizationID, kind, id)]
	if !ok {
		return nil, ErrRecordNotFound
	}

	record.Tags = slices.Clone(tags)

	return cloneRecord(record), nil
}

func cloneRecord(r *Record) *Record {
	clone := &Record{
		ID:     r.ID,
		Kind:   r.Kind,
		Fields: make(map[string]any, len(r.Fields)),
		Tags:   slices.Clone(r.Tags),
	}
	for k, v := range r.Fields {
		clone.Fields[k] = v
	}

	return clone
}

// TemplateGenerator is the fallback Generator: it echoes the prompt into a
// fixed frame instead of calling a model. Real deployments register an
// HTTP-backed implementation.
type TemplateGenerator struct{}

func (TemplateGenerator) Generate(ctx context.Context, organizationID, prompt string, options map[string]any) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", fmt.Errorf("empty prompt")
	}

	return prompt, nil
}
