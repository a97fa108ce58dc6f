package notes

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unifiedinbox/inbox/internal/apperr"
	"github.com/unifiedinbox/inbox/internal/db"
	"github.com/unifiedinbox/inbox/internal/db/sqlc"
	"github.com/unifiedinbox/inbox/internal/logger"
	"github.com/unifiedinbox/inbox/internal/message/event"
)

type memNotes struct {
	rows     []sqlc.Note
	contacts map[pgtype.UUID]bool
}

func (m *memNotes) CreateNote(_ context.Context, arg sqlc.CreateNoteParams) (sqlc.Note, error) {
	if !m.contacts[arg.ContactID] {
		return sqlc.Note{}, &pgconn.PgError{Code: "23503"}
	}
	row := sqlc.Note{
		ID: db.NewUUID(), ContactID: arg.ContactID, AuthorID: arg.AuthorID, Content: arg.Content,
		IsPrivate: arg.IsPrivate, Mentions: arg.Mentions,
		CreatedAt: pgtype.Timestamptz{Time: time.Now(), Valid: true},
	}
	m.rows = append([]sqlc.Note{row}, m.rows...)
	return row, nil
}

func (m *memNotes) ListNotes(_ context.Context, arg sqlc.ListNotesParams) ([]sqlc.Note, error) {
	var out []sqlc.Note
	for _, r := range m.rows {
		if r.ContactID == arg.ContactID && (!r.IsPrivate || r.AuthorID == arg.ViewerID) {
			out = append(out, r)
		}
	}
	return out, nil
}

func TestCreatePublishesNoteUpdate(t *testing.T) {
	contact := db.NewUUID()
	contactID := db.UUIDString(contact)
	hub := event.NewHub(logger.Discard())
	_, stream, cancel := hub.Subscribe(event.ConversationTopic(contactID), 8)
	defer cancel()
	svc := NewService(logger.Discard(), &memNotes{contacts: map[pgtype.UUID]bool{contact: true}}, hub)

	note, err := svc.Create(context.Background(), contactID, "op-1", CreateRequest{
		Content:  "  Call back tomorrow ",
		Mentions: []string{"@op-2", "op-2", " "},
	})
	require.NoError(t, err)
	assert.Equal(t, "Call back tomorrow", note.Content)
	assert.Equal(t, []string{"op-2"}, note.Mentions)

	ev := <-stream
	assert.Equal(t, event.TypeNoteUpdate, ev.Type)
	var payload UpdatePayload
	require.NoError(t, json.Unmarshal(ev.Data, &payload))
	assert.Equal(t, note.ID, payload.NoteID)
	require.NotNil(t, payload.Note)
	assert.Equal(t, "Call back tomorrow", payload.Note.Content)

	private, err := svc.Create(context.Background(), contactID, "op-1", CreateRequest{Content: "secret", IsPrivate: true})
	require.NoError(t, err)
	ev = <-stream
	payload = UpdatePayload{}
	require.NoError(t, json.Unmarshal(ev.Data, &payload))
	assert.Equal(t, private.ID, payload.NoteID)
	assert.Nil(t, payload.Note, "private content is not broadcast")
}

func TestListHidesOthersPrivateNotes(t *testing.T) {
	contact := db.NewUUID()
	contactID := db.UUIDString(contact)
	svc := NewService(logger.Discard(), &memNotes{contacts: map[pgtype.UUID]bool{contact: true}}, nil)

	_, err := svc.Create(context.Background(), contactID, "op-1", CreateRequest{Content: "public"})
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), contactID, "op-1", CreateRequest{Content: "mine", IsPrivate: true})
	require.NoError(t, err)

	own, err := svc.List(context.Background(), contactID, "op-1")
	require.NoError(t, err)
	assert.Len(t, own, 2)

	other, err := svc.List(context.Background(), contactID, "op-2")
	require.NoError(t, err)
	require.Len(t, other, 1)
	assert.Equal(t, "public", other[0].Content)
}

func TestCreateErrors(t *testing.T) {
	svc := NewService(logger.Discard(), &memNotes{contacts: map[pgtype.UUID]bool{}}, nil)
	_, err := svc.Create(context.Background(), db.UUIDString(db.NewUUID()), "op-1", CreateRequest{Content: "x"})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	_, err = svc.Create(context.Background(), db.UUIDString(db.NewUUID()), "op-1", CreateRequest{Content: "  "})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = svc.Create(context.Background(), "bad", "op-1", CreateRequest{Content: "x"})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}
