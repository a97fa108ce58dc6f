// Package history merges a contact's messages and notes into one timeline.
package history

import (
	"context"
	"log/slog"
	"sort"

	"github.com/unifiedinbox/inbox/internal/message"
	"github.com/unifiedinbox/inbox/internal/notes"
)

const defaultListLimit = 50

type MessageLister interface {
	ListLatest(ctx context.Context, contactID string, limit int) ([]message.Message, error)
}

type NoteLister interface {
	List(ctx context.Context, contactID, viewerID string) ([]notes.Note, error)
}

type Service struct {
	messages MessageLister
	notes    NoteLister
	logger   *slog.Logger
}

func NewService(log *slog.Logger, messages MessageLister, notes NoteLister) *Service {
	return &Service{
		messages: messages,
		notes:    notes,
		logger:   log.With(slog.String("service", "history")),
	}
}

// List returns up to limit entries, newest first. Private notes of other
// operators are left out.
func (s *Service) List(ctx context.Context, contactID, viewerID string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	msgs, err := s.messages.ListLatest(ctx, contactID, limit)
	if err != nil {
		return nil, err
	}
	ns, err := s.notes.List(ctx, contactID, viewerID)
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(msgs)+len(ns))
	for i := range msgs {
		entries = append(entries, Entry{Kind: KindMessage, At: msgs[i].CreatedAt, Message: &msgs[i]})
	}
	for i := range ns {
		entries = append(entries, Entry{Kind: KindNote, At: ns[i].CreatedAt, Note: &ns[i]})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].At.Equal(entries[j].At) {
			return tieBreak(entries[i]) > tieBreak(entries[j])
		}
		return entries[i].At.After(entries[j].At)
	})
	if len(entries) > limit {
		entries = entries[:limit]
	}
	s.logger.Debug("history listed",
		slog.String("contact_id", contactID),
		slog.Int("messages", len(msgs)),
		slog.Int("notes", len(ns)),
	)
	return entries, nil
}

// tieBreak orders messages sharing a timestamp by seq.
func tieBreak(e Entry) int64 {
	if e.Message != nil {
		return e.Message.Seq
	}
	return 0
}
