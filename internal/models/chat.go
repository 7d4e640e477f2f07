package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Inbox is a two-party private messaging container (one coach, one user).
type Inbox struct {
	ID        string    `gorm:"primaryKey;type:text" json:"id"`
	CoachID   string    `gorm:"index;type:text;not null;uniqueIndex:idx_inbox_pair" json:"coachId"`
	UserID    string    `gorm:"index;type:text;not null;uniqueIndex:idx_inbox_pair" json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	Coach User `gorm:"foreignKey:CoachID" json:"coach,omitempty"`
	User  User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

func (i *Inbox) BeforeCreate(tx *gorm.DB) (err error) {
	if i.ID == "" {
		i.ID = uuid.New().String()
	}
	return
}

// IsParticipant reports whether the actor is one of the two inbox parties.
func (i *Inbox) IsParticipant(actorID string) bool {
	return actorID != "" && (i.CoachID == actorID || i.UserID == actorID)
}

// Group is an N-party messaging container backed by a member roster.
type Group struct {
	ID        string    `gorm:"primaryKey;type:text" json:"id"`
	Name      string    `json:"name"`
	OwnerID   string    `gorm:"index;type:text" json:"ownerId"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	Members []GroupMember `gorm:"foreignKey:GroupID" json:"members,omitempty"`
}

func (g *Group) BeforeCreate(tx *gorm.DB) (err error) {
	if g.ID == "" {
		g.ID = uuid.New().String()
	}
	return
}

// GroupMember is one roster row. Membership is re-checked on every
// subscribe attempt, never cached across a session.
type GroupMember struct {
	GroupID   string    `gorm:"primaryKey;type:text" json:"groupId"`
	ActorID   string    `gorm:"primaryKey;type:text" json:"actorId"`
	ActorRole Role      `gorm:"type:text" json:"actorRole"`
	JoinedAt  time.Time `json:"joinedAt"`
}
