package model

import "time"

// AgentSession is the join row between a session and an agent. The user id is
// denormalized onto the link so every predicate in the lifecycle manager can
// stay scoped to the owning user.
type AgentSession struct {
	AgentID   string `gorm:"type:varchar(64);primaryKey" json:"agent_id"`
	SessionID string `gorm:"type:varchar(64);primaryKey" json:"session_id"`
	UserID    string `gorm:"type:varchar(64);not null;index" json:"user_id"`

	CreatedAt time.Time `json:"created_at"`
}

// TableName specifies the table name for AgentSession
func (AgentSession) TableName() string {
	return "agents_to_sessions"
}
