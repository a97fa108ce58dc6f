package contacts

import "time"

// Contact is one external party. Its id doubles as the conversation id.
type Contact struct {
	ID            string            `json:"id"`
	DisplayName   string            `json:"displayName"`
	Addresses     map[string]string `json:"addresses"`
	Tags          []string          `json:"tags"`
	LastMessageAt *time.Time        `json:"lastMessageAt,omitempty"`
	CreatedAt     time.Time         `json:"createdAt"`
	UpdatedAt     time.Time         `json:"updatedAt"`
}

// Conversation is a contact with a preview of its newest message.
type Conversation struct {
	ContactID     string     `json:"contactId"`
	DisplayName   string     `json:"displayName"`
	LastMessageAt *time.Time `json:"lastMessageAt,omitempty"`
	LastMessage   *Preview   `json:"lastMessage,omitempty"`
}

type Preview struct {
	Content   string `json:"content"`
	Channel   string `json:"channel"`
	Direction string `json:"direction"`
}

// Resolved is the outcome of an address resolution.
type Resolved struct {
	ContactID string
	Address   string
	Created   bool
}

type CreateRequest struct {
	DisplayName string            `json:"displayName"`
	Addresses   map[string]string `json:"addresses"`
	Tags        []string          `json:"tags"`
}

// UpdateRequest changes the display name and tags. Addresses may only be
// added for channels the contact has no address on yet.
type UpdateRequest struct {
	DisplayName *string           `json:"displayName,omitempty"`
	Tags        *[]string         `json:"tags,omitempty"`
	Addresses   map[string]string `json:"addresses,omitempty"`
}

type ListResponse struct {
	Items []Contact `json:"items"`
}
