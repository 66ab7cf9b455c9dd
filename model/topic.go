package model

import "time"

// Topic is a conversation thread inside a session. Topics with a NULL session
// id belong to the user's inbox, which has no session row of its own yet.
type Topic struct {
	ID        string  `gorm:"type:varchar(64);primaryKey" json:"id"`
	UserID    string  `gorm:"type:varchar(64);not null;index" json:"user_id"`
	SessionID *string `gorm:"type:varchar(64);index" json:"session_id,omitempty"`
	Title     string  `gorm:"type:varchar(255)" json:"title"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for Topic
func (Topic) TableName() string {
	return "topics"
}
