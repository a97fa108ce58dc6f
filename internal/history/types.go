package history

import (
	"time"

	"github.com/unifiedinbox/inbox/internal/message"
	"github.com/unifiedinbox/inbox/internal/notes"
)

// Kind tells which field of an Entry is set.
type Kind string

const (
	KindMessage Kind = "message"
	KindNote    Kind = "note"
)

// Entry is one item of a contact's timeline.
type Entry struct {
	Kind    Kind             `json:"kind"`
	At      time.Time        `json:"at"`
	Message *message.Message `json:"message,omitempty"`
	Note    *notes.Note      `json:"note,omitempty"`
}

type ListResponse struct {
	Items []Entry `json:"items"`
}
