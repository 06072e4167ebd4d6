package model

import "time"

type AttachmentType string

const (
	AttachmentImage AttachmentType = "image"
	AttachmentVideo AttachmentType = "video"
	AttachmentFile  AttachmentType = "file"
)

// Attachment is a typed reference to a stored file plus its original name.
type Attachment struct {
	Filename       string         `json:"filename"`
	StoredFilename string         `json:"stored_filename"`
	Type           AttachmentType `json:"type"`
	Size           int64          `json:"size"`
}

// Message is immutable once created; the id is assigned by the server and is
// unique within a chat.
type Message struct {
	ID          string       `json:"id"`
	ChatID      string       `json:"chat_id"`
	Username    string       `json:"username"`
	Content     string       `json:"content"`
	RawContent  string       `json:"raw_content,omitempty"`
	Mentions    []string     `json:"mentions,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
	CreatedAt   time.Time    `json:"timestamp"`
}

// MentionedBy reports whether username is mentioned in the message.
func (m *Message) MentionedBy(username string) bool {
	for _, u := range m.Mentions {
		if u == username {
			return true
		}
	}
	return false
}
