package history

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/unifiedinbox/inbox/internal/logger"
	"github.com/unifiedinbox/inbox/internal/message"
	"github.com/unifiedinbox/inbox/internal/notes"
)

type fakeMessages []message.Message

func (f fakeMessages) ListLatest(_ context.Context, _ string, limit int) ([]message.Message, error) {
	if len(f) > limit {
		return f[len(f)-limit:], nil
	}
	return f, nil
}

type fakeNotes struct {
	notes []notes.Note
	err   error
}

func (f fakeNotes) List(context.Context, string, string) ([]notes.Note, error) {
	return f.notes, f.err
}

func TestListMergesNewestFirst(t *testing.T) {
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	msgs := fakeMessages{
		{ID: "m1", Seq: 1, Content: "Hi", CreatedAt: base},
		{ID: "m2", Seq: 2, Content: "Hello", CreatedAt: base.Add(2 * time.Minute)},
	}
	ns := fakeNotes{notes: []notes.Note{{ID: "n1", Content: "VIP", CreatedAt: base.Add(time.Minute)}}}
	svc := NewService(logger.Discard(), msgs, ns)

	entries, err := svc.List(context.Background(), "c1", "agent-1", 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	want := []string{"m2", "n1", "m1"}
	if len(entries) != len(want) {
		t.Fatalf("expected %d entries, got %d", len(want), len(entries))
	}
	for i, e := range entries {
		id := ""
		if e.Kind == KindMessage {
			id = e.Message.ID
		} else {
			id = e.Note.ID
		}
		if id != want[i] {
			t.Fatalf("entry %d = %s, want %s", i, id, want[i])
		}
	}

	limited, err := svc.List(context.Background(), "c1", "agent-1", 2)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(limited) != 2 || limited[1].Kind != KindNote {
		t.Fatalf("unexpected limited page: %+v", limited)
	}
}

func TestListPropagatesNoteError(t *testing.T) {
	svc := NewService(logger.Discard(), fakeMessages{}, fakeNotes{err: errors.New("boom")})
	if _, err := svc.List(context.Background(), "c1", "agent-1", 10); err == nil {
		t.Fatalf("expected error")
	}
}
