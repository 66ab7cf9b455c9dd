package model

import (
	"time"

	"github.com/lib/pq"
	"gorm.io/datatypes"
)

// Agent is a reusable AI configuration owned by exactly one user. Agents are
// created as a byproduct of agent-session creation and removed once the last
// session link referencing them is gone.
type Agent struct {
	ID     string  `gorm:"type:varchar(64);primaryKey" json:"id"`
	UserID string  `gorm:"type:varchar(64);not null;index" json:"user_id"`
	Slug   *string `gorm:"type:varchar(100)" json:"slug,omitempty"`

	Title           *string        `gorm:"type:varchar(255)" json:"title,omitempty"`
	Description     *string        `gorm:"type:text" json:"description,omitempty"`
	Avatar          *string        `gorm:"type:varchar(255)" json:"avatar,omitempty"`
	BackgroundColor *string        `gorm:"type:varchar(32)" json:"background_color,omitempty"`
	Tags            pq.StringArray `gorm:"type:text[]" json:"tags,omitempty"`

	Model      string  `gorm:"type:varchar(100)" json:"model"`
	Provider   string  `gorm:"type:varchar(100)" json:"provider"`
	SystemRole *string `gorm:"type:text" json:"system_role,omitempty"`

	// Sampling parameters (temperature, top_p, frequency_penalty,
	// presence_penalty). NULL when no parameter is set; a per-key JSON null
	// means "explicitly disabled". Never stored as an empty object.
	Params datatypes.JSON `gorm:"type:jsonb" json:"params,omitempty"`

	// Nested chat behaviour config, merged key-wise on update.
	ChatConfig datatypes.JSON `gorm:"type:jsonb" json:"chat_config,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relationships
	Sessions []Session `gorm:"many2many:agents_to_sessions;joinForeignKey:AgentID;joinReferences:SessionID" json:"sessions,omitempty"`
}

// TableName specifies the table name for Agent
func (Agent) TableName() string {
	return "agents"
}
