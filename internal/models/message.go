package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Message is a persisted chat message. Exactly one container reference is
// set: InboxID, GroupID, or OrgWide. Sender/body/attachment are immutable
// after create; only read-state and flag-state mutate.
type Message struct {
	ID string `gorm:"primaryKey;type:text" json:"id"`

	// Container (exactly one of the three)
	InboxID *string `gorm:"index;type:text" json:"inboxId,omitempty"`
	GroupID *string `gorm:"index;type:text" json:"groupId,omitempty"`
	OrgWide bool    `gorm:"default:false" json:"orgWide"`

	SenderID   string `gorm:"index;type:text;not null" json:"senderId"`
	SenderRole Role   `gorm:"type:text;not null" json:"senderRole"`

	Body          string `gorm:"type:text" json:"body"`
	AttachmentURL string `json:"attachmentUrl"`

	// Per-container sequence, assigned under the container write lock.
	// Gives monotonic ordering within an inbox/group independent of clock skew.
	Seq int64 `gorm:"index:idx_message_container_seq" json:"seq"`

	CreatedAt time.Time      `json:"createdAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Sender User `gorm:"foreignKey:SenderID" json:"sender,omitempty"`
}

func (m *Message) BeforeCreate(tx *gorm.DB) (err error) {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	return
}

// ContainerKey returns the lock/sequence key for the message's container.
func (m *Message) ContainerKey() string {
	switch {
	case m.InboxID != nil:
		return "inbox:" + *m.InboxID
	case m.GroupID != nil:
		return "group:" + *m.GroupID
	default:
		return "org"
	}
}

// MessageRead records one recipient's read of one message. First read wins;
// repeats are no-ops.
type MessageRead struct {
	ID         string    `gorm:"primaryKey;type:text" json:"id"`
	MessageID  string    `gorm:"type:text;not null;uniqueIndex:idx_read_once" json:"messageId"`
	ReaderID   string    `gorm:"type:text;not null;uniqueIndex:idx_read_once" json:"readerId"`
	ReaderRole Role      `gorm:"type:text" json:"readerRole"`
	ReadAt     time.Time `json:"readAt"`

	Message Message `gorm:"foreignKey:MessageID" json:"-"`
}

func (r *MessageRead) BeforeCreate(tx *gorm.DB) (err error) {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	return
}

type FlagType string

const (
	FlagInappropriate FlagType = "INAPPROPRIATE"
	FlagHarassment    FlagType = "HARASSMENT"
	FlagSpam          FlagType = "SPAM"
	FlagSelfHarm      FlagType = "SELF_HARM"
	FlagOther         FlagType = "OTHER"
)

func IsValidFlagType(t FlagType) bool {
	switch t {
	case FlagInappropriate, FlagHarassment, FlagSpam, FlagSelfHarm, FlagOther:
		return true
	}
	return false
}

type FlagStatus string

const (
	FlagOpen      FlagStatus = "OPEN"
	FlagReviewed  FlagStatus = "REVIEWED"
	FlagDismissed FlagStatus = "DISMISSED"
)

// MessageFlag is the moderation audit record for a reported message.
// Created by a user/coach action, mutated only by admin review, never deleted.
type MessageFlag struct {
	ID            string     `gorm:"primaryKey;type:text" json:"id"`
	MessageID     string     `gorm:"index;type:text;not null" json:"messageId"`
	FlagType      FlagType   `gorm:"type:text;not null" json:"flagType"`
	FlaggedByID   string     `gorm:"type:text;not null" json:"flaggedById"`
	FlaggedByRole Role       `gorm:"type:text;not null" json:"flaggedByRole"`
	Status        FlagStatus `gorm:"type:text;default:'OPEN'" json:"status"`
	ReviewedByID  *string    `gorm:"type:text" json:"reviewedById,omitempty"`
	ReviewedAt    *time.Time `json:"reviewedAt,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`

	Message Message `gorm:"foreignKey:MessageID" json:"message,omitempty"`
}

func (f *MessageFlag) BeforeCreate(tx *gorm.DB) (err error) {
	if f.ID == "" {
		f.ID = uuid.New().String()
	}
	return
}
