package models

import (
	"time"

	"gorm.io/gorm"
)

type Role string

const (
	RoleUser  Role = "USER"
	RoleCoach Role = "COACH"
	RoleAdmin Role = "ADMIN"
)

// Actor is the resolved identity attached to every store/authorizer call.
// Admin, coach and user share one sender concept, distinguished by Role.
type Actor struct {
	ID     string `json:"id"`
	Role   Role   `json:"role"`
	Name   string `json:"name,omitempty"`
	Avatar string `json:"avatar,omitempty"`
}

func (a Actor) IsZero() bool {
	return a.ID == ""
}

type User struct {
	ID        string         `gorm:"primaryKey;type:text" json:"id"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Name     string `json:"name"`
	Email    string `gorm:"uniqueIndex" json:"email"`
	Image    string `json:"image"`
	Username string `gorm:"uniqueIndex" json:"username"`

	// Enums stored as strings
	Role Role `gorm:"type:text;default:'USER'" json:"role"`

	IsActive bool `gorm:"default:true" json:"isActive"`

	// Push notification target (OneSignal player/device id)
	PushDeviceID string `json:"-"`

	Password string `json:"-"`
}

// AsActor builds the broadcast-facing identity for this user row.
func (u *User) AsActor() Actor {
	return Actor{ID: u.ID, Role: u.Role, Name: u.Name, Avatar: u.Image}
}
