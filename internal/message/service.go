// Package message provides the append-only message store and status transitions.
package message

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/unifiedinbox/inbox/internal/apperr"
	"github.com/unifiedinbox/inbox/internal/channel"
	dbpkg "github.com/unifiedinbox/inbox/internal/db"
	"github.com/unifiedinbox/inbox/internal/db/sqlc"
)

const (
	DefaultPageSize = 50
	MaxPageSize     = 500
)

// Queries is the part of sqlc.Queries the message store uses.
type Queries interface {
	GetMessage(ctx context.Context, id pgtype.UUID) (sqlc.Message, error)
	GetMessageByOccurrence(ctx context.Context, arg sqlc.GetMessageByOccurrenceParams) (sqlc.Message, error)
	GetMessageByProviderID(ctx context.Context, arg sqlc.GetMessageByProviderIDParams) (sqlc.Message, error)
	InsertMessage(ctx context.Context, arg sqlc.InsertMessageParams) (sqlc.Message, error)
	ListLatestMessages(ctx context.Context, arg sqlc.ListLatestMessagesParams) ([]sqlc.Message, error)
	ListMessagesBefore(ctx context.Context, arg sqlc.ListMessagesBeforeParams) ([]sqlc.Message, error)
	ListMessagesSince(ctx context.Context, arg sqlc.ListMessagesSinceParams) ([]sqlc.Message, error)
	TransitionMessageStatus(ctx context.Context, arg sqlc.TransitionMessageStatusParams) (sqlc.Message, error)
	TransitionMessageStatusByProviderID(ctx context.Context, arg sqlc.TransitionMessageStatusByProviderIDParams) (sqlc.Message, error)
}

// DBService persists messages in PostgreSQL.
type DBService struct {
	queries Queries
	logger  *slog.Logger
}

var _ Store = (*DBService)(nil)

// NewService creates a message store.
func NewService(log *slog.Logger, queries Queries) *DBService {
	if log == nil {
		log = slog.Default()
	}
	return &DBService{
		queries: queries,
		logger:  log.With(slog.String("service", "message")),
	}
}

// Append inserts a message and advances the conversation's lastMessageAt in
// the same statement. A duplicate by provider id or scheduled occurrence
// returns the existing row with created=false.
func (s *DBService) Append(ctx context.Context, input AppendInput) (Message, bool, error) {
	params, err := appendParams(input)
	if err != nil {
		return Message{}, false, err
	}
	row, err := s.queries.InsertMessage(ctx, params)
	if err == nil {
		return toMessage(row), true, nil
	}
	if dbpkg.IsForeignKeyViolation(err) {
		return Message{}, false, apperr.NotFound("append message", "contact")
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Message{}, false, apperr.Store("append message", "message", err)
	}

	var existing sqlc.Message
	switch {
	case params.ProviderMessageID.Valid:
		existing, err = s.queries.GetMessageByProviderID(ctx, sqlc.GetMessageByProviderIDParams{
			Channel:           params.Channel,
			ProviderMessageID: params.ProviderMessageID,
		})
	case params.ScheduledSendID.Valid:
		existing, err = s.queries.GetMessageByOccurrence(ctx, sqlc.GetMessageByOccurrenceParams{
			ScheduledSendID: params.ScheduledSendID,
			Occurrence:      params.Occurrence,
		})
	default:
		return Message{}, false, apperr.Store("append message", "message", errors.New("insert returned no row"))
	}
	if err != nil {
		return Message{}, false, apperr.Store("append message", "message", err)
	}
	s.logger.Debug("duplicate message absorbed", slog.String("message_id", dbpkg.UUIDString(existing.ID)))
	return toMessage(existing), false, nil
}

func appendParams(input AppendInput) (sqlc.InsertMessageParams, error) {
	contactID, err := dbpkg.ParseUUID(input.ContactID)
	if err != nil {
		return sqlc.InsertMessageParams{}, apperr.Validation("append message", "invalid contact id")
	}
	if !input.Channel.Valid() {
		return sqlc.InsertMessageParams{}, apperr.Validation("append message", "invalid channel %q", input.Channel)
	}
	if input.Direction != Inbound && input.Direction != Outbound {
		return sqlc.InsertMessageParams{}, apperr.Validation("append message", "invalid direction %q", input.Direction)
	}
	if !input.Status.Valid() {
		return sqlc.InsertMessageParams{}, apperr.Validation("append message", "invalid status %q", input.Status)
	}
	if strings.TrimSpace(input.Content) == "" && len(input.MediaRefs) == 0 {
		return sqlc.InsertMessageParams{}, apperr.Validation("append message", "content or media is required")
	}
	params := sqlc.InsertMessageParams{
		ContactID:         contactID,
		Channel:           input.Channel.String(),
		Direction:         string(input.Direction),
		Content:           input.Content,
		MediaRefs:         nonNilStrings(input.MediaRefs),
		Status:            string(input.Status),
		ProviderMessageID: dbpkg.Text(input.ProviderMessageID),
		SenderID:          dbpkg.Text(input.SenderID),
	}
	if input.ScheduledSendID != "" {
		if params.ScheduledSendID, err = dbpkg.ParseUUID(input.ScheduledSendID); err != nil {
			return sqlc.InsertMessageParams{}, apperr.Validation("append message", "invalid scheduled send id")
		}
		if input.Occurrence.IsZero() {
			return sqlc.InsertMessageParams{}, apperr.Validation("append message", "scheduled message needs an occurrence")
		}
		params.Occurrence = dbpkg.Timestamptz(input.Occurrence)
	}
	return params, nil
}

func (s *DBService) Get(ctx context.Context, messageID string) (Message, error) {
	pgID, err := dbpkg.ParseUUID(messageID)
	if err != nil {
		return Message{}, apperr.Validation("get message", "invalid message id")
	}
	row, err := s.queries.GetMessage(ctx, pgID)
	if err != nil {
		return Message{}, apperr.Store("get message", "message", err)
	}
	return toMessage(row), nil
}

func (s *DBService) GetByProviderID(ctx context.Context, ch channel.Type, providerMessageID string) (Message, error) {
	row, err := s.queries.GetMessageByProviderID(ctx, sqlc.GetMessageByProviderIDParams{
		Channel:           ch.String(),
		ProviderMessageID: dbpkg.Text(providerMessageID),
	})
	if err != nil {
		return Message{}, apperr.Store("get message", "message", err)
	}
	return toMessage(row), nil
}

func (s *DBService) GetByOccurrence(ctx context.Context, scheduledSendID string, occurrence time.Time) (Message, error) {
	pgID, err := dbpkg.ParseUUID(scheduledSendID)
	if err != nil {
		return Message{}, apperr.Validation("get message", "invalid scheduled send id")
	}
	row, err := s.queries.GetMessageByOccurrence(ctx, sqlc.GetMessageByOccurrenceParams{
		ScheduledSendID: pgID,
		Occurrence:      dbpkg.Timestamptz(occurrence),
	})
	if err != nil {
		return Message{}, apperr.Store("get message", "message", err)
	}
	return toMessage(row), nil
}

// ListSince returns messages with seq greater than cursor, oldest first.
func (s *DBService) ListSince(ctx context.Context, contactID string, cursor int64, limit int) ([]Message, error) {
	pgID, err := parseContactID(contactID)
	if err != nil {
		return nil, err
	}
	rows, err := s.queries.ListMessagesSince(ctx, sqlc.ListMessagesSinceParams{
		ContactID: pgID,
		Seq:       cursor,
		Limit:     clampLimit(limit),
	})
	if err != nil {
		return nil, apperr.Store("list messages", "message", err)
	}
	return toMessages(rows), nil
}

// ListLatest returns the newest limit messages, oldest first.
func (s *DBService) ListLatest(ctx context.Context, contactID string, limit int) ([]Message, error) {
	pgID, err := parseContactID(contactID)
	if err != nil {
		return nil, err
	}
	rows, err := s.queries.ListLatestMessages(ctx, sqlc.ListLatestMessagesParams{
		ContactID: pgID,
		Limit:     clampLimit(limit),
	})
	if err != nil {
		return nil, apperr.Store("list messages", "message", err)
	}
	return toMessages(rows), nil
}

// ListBefore returns up to limit messages with seq below cursor, oldest first.
func (s *DBService) ListBefore(ctx context.Context, contactID string, cursor int64, limit int) ([]Message, error) {
	pgID, err := parseContactID(contactID)
	if err != nil {
		return nil, err
	}
	rows, err := s.queries.ListMessagesBefore(ctx, sqlc.ListMessagesBeforeParams{
		ContactID: pgID,
		Seq:       cursor,
		Limit:     clampLimit(limit),
	})
	if err != nil {
		return nil, apperr.Store("list messages", "message", err)
	}
	return toMessages(rows), nil
}

// Transition moves a message to status to. A transition that would not move
// the status forward leaves the row untouched and returns it with
// changed=false.
func (s *DBService) Transition(ctx context.Context, messageID string, to Status, providerMessageID, errMsg string) (Message, bool, error) {
	pgID, err := dbpkg.ParseUUID(messageID)
	if err != nil {
		return Message{}, false, apperr.Validation("transition message", "invalid message id")
	}
	allowed, err := allowedFrom(to)
	if err != nil {
		return Message{}, false, err
	}
	row, err := s.queries.TransitionMessageStatus(ctx, sqlc.TransitionMessageStatusParams{
		Status:            string(to),
		ProviderMessageID: dbpkg.Text(providerMessageID),
		Error:             dbpkg.Text(errMsg),
		ID:                pgID,
		AllowedFrom:       allowed,
	})
	if err == nil {
		return toMessage(row), true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Message{}, false, apperr.Store("transition message", "message", err)
	}
	current, err := s.queries.GetMessage(ctx, pgID)
	if err != nil {
		return Message{}, false, apperr.Store("transition message", "message", err)
	}
	return toMessage(current), false, nil
}

// TransitionByProviderID is Transition keyed by the provider's message id,
// as delivered in status callbacks.
func (s *DBService) TransitionByProviderID(ctx context.Context, ch channel.Type, providerMessageID string, to Status, errMsg string) (Message, bool, error) {
	if strings.TrimSpace(providerMessageID) == "" {
		return Message{}, false, apperr.Validation("transition message", "provider message id is required")
	}
	allowed, err := allowedFrom(to)
	if err != nil {
		return Message{}, false, err
	}
	row, err := s.queries.TransitionMessageStatusByProviderID(ctx, sqlc.TransitionMessageStatusByProviderIDParams{
		Status:            string(to),
		Error:             dbpkg.Text(errMsg),
		Channel:           ch.String(),
		ProviderMessageID: dbpkg.Text(providerMessageID),
		AllowedFrom:       allowed,
	})
	if err == nil {
		return toMessage(row), true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Message{}, false, apperr.Store("transition message", "message", err)
	}
	current, err := s.GetByProviderID(ctx, ch, providerMessageID)
	if err != nil {
		return Message{}, false, err
	}
	return current, false, nil
}

func allowedFrom(to Status) ([]string, error) {
	preds := Predecessors(to)
	if len(preds) == 0 {
		return nil, apperr.Validation("transition message", "no transition leads to %q", to)
	}
	out := make([]string, 0, len(preds))
	for _, p := range preds {
		out = append(out, string(p))
	}
	return out, nil
}

func parseContactID(contactID string) (pgtype.UUID, error) {
	pgID, err := dbpkg.ParseUUID(contactID)
	if err != nil {
		return pgtype.UUID{}, apperr.Validation("list messages", "invalid contact id")
	}
	return pgID, nil
}

func clampLimit(limit int) int32 {
	if limit <= 0 {
		return DefaultPageSize
	}
	if limit > MaxPageSize {
		return MaxPageSize
	}
	return int32(limit)
}

func toMessage(row sqlc.Message) Message {
	contactID := dbpkg.UUIDString(row.ContactID)
	return Message{
		ID:                dbpkg.UUIDString(row.ID),
		Seq:               row.Seq,
		ConversationID:    contactID,
		ContactID:         contactID,
		Channel:           channel.Type(row.Channel),
		Direction:         Direction(row.Direction),
		Content:           row.Content,
		MediaRefs:         nonNilStrings(row.MediaRefs),
		Status:            Status(row.Status),
		ProviderMessageID: dbpkg.TextToString(row.ProviderMessageID),
		Error:             dbpkg.TextToString(row.Error),
		ScheduledSendID:   dbpkg.UUIDString(row.ScheduledSendID),
		SenderID:          dbpkg.TextToString(row.SenderID),
		CreatedAt:         dbpkg.TimeFromPg(row.CreatedAt),
		UpdatedAt:         dbpkg.TimeFromPg(row.UpdatedAt),
	}
}

func toMessages(rows []sqlc.Message) []Message {
	out := make([]Message, 0, len(rows))
	for _, row := range rows {
		out = append(out, toMessage(row))
	}
	return out
}

func nonNilStrings(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
