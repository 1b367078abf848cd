package audit

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

const (
	// ActionCreate records the creation of a resource.
	ActionCreate = "CREATE"
	// ActionUpdate records a state change on an existing resource.
	ActionUpdate = "UPDATE"
)

// Entry describes one administrative or state-changing action.
type Entry struct {
	Actor      uuid.UUID
	Action     string
	Resource   string
	ResourceID string
	Metadata   map[string]any
}

// Sink receives audit entries. Writes are best-effort: callers log failures
// and never roll back the operation that produced the entry.
type Sink interface {
	Log(ctx context.Context, entry Entry) error
}

// LoggerSink writes audit entries to the structured logger. Used when no
// database is configured.
type LoggerSink struct {
	logger *slog.Logger
}

// NewLoggerSink constructs a logging audit sink.
func NewLoggerSink(logger *slog.Logger) *LoggerSink {
	return &LoggerSink{logger: logger}
}

// Log writes the entry to the structured logger.
func (s *LoggerSink) Log(_ context.Context, entry Entry) error {
	if s == nil || s.logger == nil {
		return nil
	}
	s.logger.Info("audit",
		"actor", entry.Actor.String(),
		"action", entry.Action,
		"resource", entry.Resource,
		"resource_id", entry.ResourceID,
		"metadata", entry.Metadata,
	)
	return nil
}

// MemorySink collects entries in memory for tests.
type MemorySink struct {
	mu      sync.Mutex
	entries []Entry
}

// NewMemorySink constructs an in-memory audit sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

// Log appends the entry.
func (s *MemorySink) Log(_ context.Context, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	return nil
}

// Entries returns a copy of everything logged so far.
func (s *MemorySink) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}
