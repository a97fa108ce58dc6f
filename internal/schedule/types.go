package schedule

import (
	"time"
)

// Status is the lifecycle state of a scheduled send. DISPATCHING marks an
// entry claimed by a dispatcher.
type Status string

const (
	StatusPending     Status = "PENDING"
	StatusDispatching Status = "DISPATCHING"
	StatusSent        Status = "SENT"
	StatusCancelled   Status = "CANCELLED"
	StatusFailed      Status = "FAILED"
)

// ScheduledSend is a future, possibly recurring, outbound message.
// RecurringDays holds weekday indices, 0 for Sunday through 6 for Saturday.
type ScheduledSend struct {
	ID            string    `json:"id"`
	ContactID     string    `json:"contactId"`
	Channel       string    `json:"channel"`
	Content       string    `json:"content"`
	MediaRefs     []string  `json:"mediaRefs"`
	ScheduledFor  time.Time `json:"scheduledFor"`
	IsRecurring   bool      `json:"isRecurring"`
	RecurringDays []int     `json:"recurringDays"`
	Status        Status    `json:"status"`
	LastError     string    `json:"lastError,omitempty"`
	LastMessageID string    `json:"lastMessageId,omitempty"`
	CreatedBy     string    `json:"createdBy"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

type CreateRequest struct {
	ContactID     string    `json:"contactId"`
	Channel       string    `json:"channel"`
	Content       string    `json:"content"`
	MediaRefs     []string  `json:"mediaRefs"`
	ScheduledFor  time.Time `json:"scheduledFor"`
	IsRecurring   bool      `json:"isRecurring"`
	RecurringDays []int     `json:"recurringDays"`
}

type UpdateRequest struct {
	Channel       *string    `json:"channel,omitempty"`
	Content       *string    `json:"content,omitempty"`
	ScheduledFor  *time.Time `json:"scheduledFor,omitempty"`
	IsRecurring   *bool      `json:"isRecurring,omitempty"`
	RecurringDays *[]int     `json:"recurringDays,omitempty"`
}

type ListResponse struct {
	Items []ScheduledSend `json:"items"`
}
