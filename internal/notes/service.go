// Package notes stores internal notes operators attach to a conversation.
package notes

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/unifiedinbox/inbox/internal/apperr"
	"github.com/unifiedinbox/inbox/internal/db"
	"github.com/unifiedinbox/inbox/internal/db/sqlc"
	"github.com/unifiedinbox/inbox/internal/message/event"
)

type Note struct {
	ID        string    `json:"id"`
	ContactID string    `json:"contactId"`
	AuthorID  string    `json:"authorId"`
	Content   string    `json:"content"`
	IsPrivate bool      `json:"isPrivate"`
	Mentions  []string  `json:"mentions"`
	CreatedAt time.Time `json:"createdAt"`
}

type CreateRequest struct {
	Content   string   `json:"content"`
	IsPrivate bool     `json:"isPrivate"`
	Mentions  []string `json:"mentions"`
}

// UpdatePayload is the data of a note-update event. Note is omitted for
// private notes so only their author sees the content.
type UpdatePayload struct {
	ConversationID string `json:"conversationId"`
	NoteID         string `json:"noteId"`
	AuthorID       string `json:"authorId"`
	IsPrivate      bool   `json:"isPrivate"`
	Note           *Note  `json:"note,omitempty"`
}

type Queries interface {
	CreateNote(ctx context.Context, arg sqlc.CreateNoteParams) (sqlc.Note, error)
	ListNotes(ctx context.Context, arg sqlc.ListNotesParams) ([]sqlc.Note, error)
}

type Service struct {
	queries   Queries
	publisher event.Publisher
	logger    *slog.Logger
}

func NewService(log *slog.Logger, queries Queries, publisher event.Publisher) *Service {
	return &Service{
		queries:   queries,
		publisher: publisher,
		logger:    log.With(slog.String("service", "notes")),
	}
}

// Create stores a note and announces it on the conversation topic.
func (s *Service) Create(ctx context.Context, contactID, authorID string, req CreateRequest) (Note, error) {
	pgContactID, err := db.ParseUUID(contactID)
	if err != nil {
		return Note{}, apperr.Validation("create note", "invalid contact id")
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return Note{}, apperr.Validation("create note", "content is required")
	}
	if strings.TrimSpace(authorID) == "" {
		return Note{}, apperr.Auth("create note", "author is required")
	}
	row, err := s.queries.CreateNote(ctx, sqlc.CreateNoteParams{
		ContactID: pgContactID,
		AuthorID:  authorID,
		Content:   content,
		IsPrivate: req.IsPrivate,
		Mentions:  normalizeMentions(req.Mentions),
	})
	if db.IsForeignKeyViolation(err) {
		return Note{}, apperr.NotFound("create note", "contact")
	}
	if err != nil {
		return Note{}, apperr.Store("create note", "note", err)
	}
	note := toNote(row)
	s.publish(note)
	return note, nil
}

// List returns notes visible to viewerID, newest first.
func (s *Service) List(ctx context.Context, contactID, viewerID string) ([]Note, error) {
	pgContactID, err := db.ParseUUID(contactID)
	if err != nil {
		return nil, apperr.Validation("list notes", "invalid contact id")
	}
	rows, err := s.queries.ListNotes(ctx, sqlc.ListNotesParams{ContactID: pgContactID, ViewerID: viewerID})
	if err != nil {
		return nil, apperr.Store("list notes", "note", err)
	}
	out := make([]Note, 0, len(rows))
	for _, row := range rows {
		out = append(out, toNote(row))
	}
	return out, nil
}

func (s *Service) publish(note Note) {
	if s.publisher == nil {
		return
	}
	payload := UpdatePayload{
		ConversationID: note.ContactID,
		NoteID:         note.ID,
		AuthorID:       note.AuthorID,
		IsPrivate:      note.IsPrivate,
	}
	if !note.IsPrivate {
		payload.Note = &note
	}
	topic := event.ConversationTopic(note.ContactID)
	ev, err := event.New(event.TypeNoteUpdate, topic, payload)
	if err != nil {
		s.logger.Warn("encode note event", slog.Any("error", err))
		return
	}
	s.publisher.Publish(topic, ev)
}

func toNote(row sqlc.Note) Note {
	mentions := row.Mentions
	if mentions == nil {
		mentions = []string{}
	}
	return Note{
		ID:        db.UUIDString(row.ID),
		ContactID: db.UUIDString(row.ContactID),
		AuthorID:  row.AuthorID,
		Content:   row.Content,
		IsPrivate: row.IsPrivate,
		Mentions:  mentions,
		CreatedAt: db.TimeFromPg(row.CreatedAt),
	}
}

func normalizeMentions(mentions []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(mentions))
	for _, m := range mentions {
		m = strings.TrimPrefix(strings.TrimSpace(m), "@")
		if m == "" {
			continue
		}
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		out = append(out, m)
	}
	return out
}
