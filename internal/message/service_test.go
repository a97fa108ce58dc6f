package message

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unifiedinbox/inbox/internal/apperr"
	"github.com/unifiedinbox/inbox/internal/channel"
	"github.com/unifiedinbox/inbox/internal/db"
	"github.com/unifiedinbox/inbox/internal/db/sqlc"
	"github.com/unifiedinbox/inbox/internal/logger"
)

// memQueries mimics the message statements: seq comes from a per-contact
// counter bumped under a lock, and ON CONFLICT DO NOTHING surfaces as
// pgx.ErrNoRows.
type memQueries struct {
	mu   sync.Mutex
	seqs map[pgtype.UUID]int64
	rows []sqlc.Message
}

func (m *memQueries) find(pred func(sqlc.Message) bool) (int, bool) {
	for i, r := range m.rows {
		if pred(r) {
			return i, true
		}
	}
	return -1, false
}

func (m *memQueries) InsertMessage(_ context.Context, arg sqlc.InsertMessageParams) (sqlc.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.seqs == nil {
		m.seqs = map[pgtype.UUID]int64{}
	}
	m.seqs[arg.ContactID]++
	seq := m.seqs[arg.ContactID]
	if arg.ProviderMessageID.Valid {
		if _, ok := m.find(func(r sqlc.Message) bool {
			return r.Channel == arg.Channel && r.ProviderMessageID == arg.ProviderMessageID
		}); ok {
			return sqlc.Message{}, pgx.ErrNoRows
		}
	}
	if arg.ScheduledSendID.Valid {
		if _, ok := m.find(func(r sqlc.Message) bool {
			return r.ScheduledSendID == arg.ScheduledSendID && r.Occurrence.Time.Equal(arg.Occurrence.Time)
		}); ok {
			return sqlc.Message{}, pgx.ErrNoRows
		}
	}
	now := pgtype.Timestamptz{Time: time.Now(), Valid: true}
	row := sqlc.Message{
		ID: db.NewUUID(), Seq: seq, ContactID: arg.ContactID, Channel: arg.Channel,
		Direction: arg.Direction, Content: arg.Content, MediaRefs: arg.MediaRefs, Status: arg.Status,
		ProviderMessageID: arg.ProviderMessageID, ScheduledSendID: arg.ScheduledSendID,
		Occurrence: arg.Occurrence, SenderID: arg.SenderID, CreatedAt: now, UpdatedAt: now,
	}
	m.rows = append(m.rows, row)
	return row, nil
}

func (m *memQueries) GetMessage(_ context.Context, id pgtype.UUID) (sqlc.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i, ok := m.find(func(r sqlc.Message) bool { return r.ID == id }); ok {
		return m.rows[i], nil
	}
	return sqlc.Message{}, pgx.ErrNoRows
}

func (m *memQueries) GetMessageByOccurrence(_ context.Context, arg sqlc.GetMessageByOccurrenceParams) (sqlc.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i, ok := m.find(func(r sqlc.Message) bool {
		return r.ScheduledSendID == arg.ScheduledSendID && r.Occurrence.Time.Equal(arg.Occurrence.Time)
	}); ok {
		return m.rows[i], nil
	}
	return sqlc.Message{}, pgx.ErrNoRows
}

func (m *memQueries) GetMessageByProviderID(_ context.Context, arg sqlc.GetMessageByProviderIDParams) (sqlc.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i, ok := m.find(func(r sqlc.Message) bool {
		return r.Channel == arg.Channel && r.ProviderMessageID == arg.ProviderMessageID
	}); ok {
		return m.rows[i], nil
	}
	return sqlc.Message{}, pgx.ErrNoRows
}

func (m *memQueries) byContact(contactID pgtype.UUID, keep func(sqlc.Message) bool) []sqlc.Message {
	var out []sqlc.Message
	for _, r := range m.rows {
		if r.ContactID == contactID && keep(r) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out
}

func (m *memQueries) ListLatestMessages(_ context.Context, arg sqlc.ListLatestMessagesParams) ([]sqlc.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := m.byContact(arg.ContactID, func(sqlc.Message) bool { return true })
	if n := len(all) - int(arg.Limit); n > 0 {
		all = all[n:]
	}
	return all, nil
}

func (m *memQueries) ListMessagesBefore(_ context.Context, arg sqlc.ListMessagesBeforeParams) ([]sqlc.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := m.byContact(arg.ContactID, func(r sqlc.Message) bool { return r.Seq < arg.Seq })
	if n := len(all) - int(arg.Limit); n > 0 {
		all = all[n:]
	}
	return all, nil
}

func (m *memQueries) ListMessagesSince(_ context.Context, arg sqlc.ListMessagesSinceParams) ([]sqlc.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := m.byContact(arg.ContactID, func(r sqlc.Message) bool { return r.Seq > arg.Seq })
	if len(all) > int(arg.Limit) {
		all = all[:arg.Limit]
	}
	return all, nil
}

func (m *memQueries) transition(i int, status string, allowed []string, providerID, errText pgtype.Text) (sqlc.Message, error) {
	if !slices.Contains(allowed, m.rows[i].Status) {
		return sqlc.Message{}, pgx.ErrNoRows
	}
	m.rows[i].Status = status
	if providerID.Valid {
		m.rows[i].ProviderMessageID = providerID
	}
	if errText.Valid {
		m.rows[i].Error = errText
	}
	return m.rows[i], nil
}

func (m *memQueries) TransitionMessageStatus(_ context.Context, arg sqlc.TransitionMessageStatusParams) (sqlc.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i, ok := m.find(func(r sqlc.Message) bool { return r.ID == arg.ID })
	if !ok {
		return sqlc.Message{}, pgx.ErrNoRows
	}
	return m.transition(i, arg.Status, arg.AllowedFrom, arg.ProviderMessageID, arg.Error)
}

func (m *memQueries) TransitionMessageStatusByProviderID(_ context.Context, arg sqlc.TransitionMessageStatusByProviderIDParams) (sqlc.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i, ok := m.find(func(r sqlc.Message) bool {
		return r.Channel == arg.Channel && r.ProviderMessageID == arg.ProviderMessageID
	})
	if !ok {
		return sqlc.Message{}, pgx.ErrNoRows
	}
	return m.transition(i, arg.Status, arg.AllowedFrom, pgtype.Text{}, arg.Error)
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusPending, StatusSent, true},
		{StatusSent, StatusDelivered, true},
		{StatusPending, StatusDelivered, true},
		{StatusDelivered, StatusRead, true},
		{StatusDelivered, StatusSent, false},
		{StatusSent, StatusSent, false},
		{StatusPending, StatusFailed, true},
		{StatusDelivered, StatusFailed, true},
		{StatusRead, StatusFailed, false},
		{StatusFailed, StatusSent, false},
		{StatusSent, StatusPending, false},
		{Status("BOGUS"), StatusSent, false},
	}
	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.want {
			t.Fatalf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
	if got := Predecessors(StatusPending); len(got) != 0 {
		t.Fatalf("Predecessors(PENDING) = %v, want none", got)
	}
}

func TestListSinceOrderedUnderInterleavedWrites(t *testing.T) {
	store := NewService(logger.Discard(), &memQueries{})
	contactID := db.UUIDString(db.NewUUID())

	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			dir := Inbound
			status := StatusDelivered
			if i%2 == 0 {
				dir, status = Outbound, StatusPending
			}
			_, _, err := store.Append(context.Background(), AppendInput{
				ContactID: contactID, Channel: channel.SMS, Direction: dir,
				Content: fmt.Sprintf("m%d", i), Status: status,
			})
			if err != nil {
				t.Errorf("Append: %v", err)
			}
		}(i)
	}
	wg.Wait()

	var cursor int64
	var seen []int64
	for {
		page, err := store.ListSince(context.Background(), contactID, cursor, 7)
		require.NoError(t, err)
		if len(page) == 0 {
			break
		}
		for _, m := range page {
			seen = append(seen, m.Seq)
		}
		cursor = page[len(page)-1].Seq
	}
	require.Len(t, seen, 40)
	assert.True(t, sort.SliceIsSorted(seen, func(i, j int) bool { return seen[i] < seen[j] }))

	latest, err := store.ListLatest(context.Background(), contactID, 5)
	require.NoError(t, err)
	require.Len(t, latest, 5)
	assert.Equal(t, seen[35:], []int64{latest[0].Seq, latest[1].Seq, latest[2].Seq, latest[3].Seq, latest[4].Seq})

	before, err := store.ListBefore(context.Background(), contactID, latest[0].Seq, 3)
	require.NoError(t, err)
	assert.Equal(t, seen[32:35], []int64{before[0].Seq, before[1].Seq, before[2].Seq})
}

func TestAppendAbsorbsDuplicates(t *testing.T) {
	store := NewService(logger.Discard(), &memQueries{})
	contactID := db.UUIDString(db.NewUUID())
	in := AppendInput{
		ContactID: contactID, Channel: channel.SMS, Direction: Inbound,
		Content: "Hi", Status: StatusDelivered, ProviderMessageID: "SM1",
	}
	first, created, err := store.Append(context.Background(), in)
	require.NoError(t, err)
	assert.True(t, created)

	again, created, err := store.Append(context.Background(), in)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, again.ID)

	occurrence := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	sched := AppendInput{
		ContactID: contactID, Channel: channel.SMS, Direction: Outbound, Content: "Reminder",
		Status: StatusPending, ScheduledSendID: db.UUIDString(db.NewUUID()), Occurrence: occurrence,
	}
	a, created, err := store.Append(context.Background(), sched)
	require.NoError(t, err)
	require.True(t, created)
	b, created, err := store.Append(context.Background(), sched)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, a.ID, b.ID)
}

func TestAppendValidates(t *testing.T) {
	store := NewService(logger.Discard(), &memQueries{})
	_, _, err := store.Append(context.Background(), AppendInput{
		ContactID: db.UUIDString(db.NewUUID()), Channel: channel.SMS, Direction: Inbound, Status: StatusDelivered,
	})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, _, err = store.Append(context.Background(), AppendInput{
		ContactID: "nope", Channel: channel.SMS, Direction: Inbound, Status: StatusDelivered, Content: "x",
	})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestTransitionIsMonotonic(t *testing.T) {
	store := NewService(logger.Discard(), &memQueries{})
	msg, _, err := store.Append(context.Background(), AppendInput{
		ContactID: db.UUIDString(db.NewUUID()), Channel: channel.WhatsApp, Direction: Outbound,
		Content: "Hello", Status: StatusPending,
	})
	require.NoError(t, err)

	sent, changed, err := store.Transition(context.Background(), msg.ID, StatusSent, "SM9", "")
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, "SM9", sent.ProviderMessageID)

	read, changed, err := store.TransitionByProviderID(context.Background(), channel.WhatsApp, "SM9", StatusRead, "")
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, StatusRead, read.Status)

	// A late "delivered" callback must not move READ backwards.
	late, changed, err := store.TransitionByProviderID(context.Background(), channel.WhatsApp, "SM9", StatusDelivered, "")
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, StatusRead, late.Status)

	_, _, err = store.TransitionByProviderID(context.Background(), channel.WhatsApp, "SM-unknown", StatusDelivered, "")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	_, _, err = store.Transition(context.Background(), msg.ID, StatusPending, "", "")
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestSeqIsPerConversation(t *testing.T) {
	store := NewService(logger.Discard(), &memQueries{})
	alice := db.UUIDString(db.NewUUID())
	bob := db.UUIDString(db.NewUUID())
	appendTo := func(contactID, providerID string) {
		t.Helper()
		_, _, err := store.Append(context.Background(), AppendInput{
			ContactID: contactID, Channel: channel.SMS, Direction: Inbound,
			Content: "hi", Status: StatusDelivered, ProviderMessageID: providerID,
		})
		require.NoError(t, err)
	}

	appendTo(alice, "SM1")
	appendTo(bob, "SM2")
	appendTo(alice, "SM1") // redelivery consumes a value
	appendTo(alice, "SM3")

	page, err := store.ListSince(context.Background(), alice, 0, 10)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, int64(1), page[0].Seq)
	assert.Equal(t, int64(3), page[1].Seq)

	page, err = store.ListSince(context.Background(), alice, page[0].Seq, 10)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "SM3", page[0].ProviderMessageID)

	page, err = store.ListSince(context.Background(), bob, 0, 10)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, int64(1), page[0].Seq)
}
