package model

import (
	"time"
)

// SessionType discriminates the two session variants
type SessionType string

const (
	SessionTypeAgent SessionType = "agent" // backed by exactly one agent link
	SessionTypeGroup SessionType = "group" // zero or more agents as participants
)

// InboxSlug is the well-known slug of the per-user inbox session.
const InboxSlug = "inbox"

// DefaultInboxAvatar is shown for the synthetic inbox entry in rankings.
const DefaultInboxAvatar = "📥"

// Session is a chat container. Agent sessions read only their first link;
// group sessions expose every linked agent as an ordered participant.
type Session struct {
	ID     string  `gorm:"type:varchar(64);primaryKey" json:"id"`
	UserID string  `gorm:"type:varchar(64);not null;index;uniqueIndex:idx_sessions_user_slug" json:"user_id"`
	Slug   *string `gorm:"type:varchar(100);uniqueIndex:idx_sessions_user_slug" json:"slug,omitempty"`

	Type    SessionType `gorm:"type:varchar(20);not null;default:'agent'" json:"type"`
	GroupID *string     `gorm:"type:varchar(64);index" json:"group_id,omitempty"`

	// Per-session metadata, overridable independent of the linked agent's own.
	Title           *string `gorm:"type:varchar(255)" json:"title,omitempty"`
	Description     *string `gorm:"type:text" json:"description,omitempty"`
	Avatar          *string `gorm:"type:varchar(255)" json:"avatar,omitempty"`
	BackgroundColor *string `gorm:"type:varchar(32)" json:"background_color,omitempty"`

	Pinned bool `gorm:"default:false" json:"pinned"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relationships
	Agents []Agent       `gorm:"many2many:agents_to_sessions;joinForeignKey:SessionID;joinReferences:AgentID" json:"agents,omitempty"`
	Group  *SessionGroup `gorm:"foreignKey:GroupID" json:"group,omitempty"`
}

// TableName specifies the table name for Session
func (Session) TableName() string {
	return "sessions"
}

// Agent returns the first linked agent, or nil. Agent sessions keep at most
// one active link even though the link table permits many.
func (s *Session) Agent() *Agent {
	if len(s.Agents) == 0 {
		return nil
	}
	return &s.Agents[0]
}

// SessionGroup is a user-defined folder for organizing sessions
type SessionGroup struct {
	ID     string `gorm:"type:varchar(64);primaryKey" json:"id"`
	UserID string `gorm:"type:varchar(64);not null;index" json:"user_id"`
	Name   string `gorm:"type:varchar(255);not null" json:"name"`
	Sort   *int   `json:"sort,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for SessionGroup
func (SessionGroup) TableName() string {
	return "session_groups"
}
