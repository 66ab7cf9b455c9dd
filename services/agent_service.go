package services

import (
	"github.com/sahilchouksey/agent-chat-api/config"
	"github.com/sahilchouksey/agent-chat-api/model"
	"gorm.io/gorm"
)

// AgentService provisions the well-known default sessions for one user,
// pulling override configuration from the environment.
type AgentService struct {
	db     *gorm.DB
	userID string
}

// NewAgentService creates an agent service scoped to one user
func NewAgentService(db *gorm.DB, userID string) *AgentService {
	return &AgentService{
		db:     db,
		userID: userID,
	}
}

// CreateInbox idempotently seeds the user's inbox session
func (s *AgentService) CreateInbox() (*model.Session, error) {
	sessions := NewSessionService(s.db, s.userID)
	return sessions.CreateInbox(config.ParseServerDefaultAgent())
}

// CreateDefaultAssistants seeds the default assistants for the user
func (s *AgentService) CreateDefaultAssistants() ([]model.Session, error) {
	sessions := NewSessionService(s.db, s.userID)
	return sessions.CreateDefaultAssistants(config.ParseServerDefaultAgent(), config.ParseDefaultAgents())
}

// UpdateDefaultAssistantsAvatars re-applies the canonical assistant avatars
func (s *AgentService) UpdateDefaultAssistantsAvatars() error {
	sessions := NewSessionService(s.db, s.userID)
	return sessions.UpdateDefaultAssistantsAvatars()
}

// UpdateDefaultAssistantsConfig reconciles existing assistants against the
// environment-supplied overrides
func (s *AgentService) UpdateDefaultAssistantsConfig() error {
	sessions := NewSessionService(s.db, s.userID)
	return sessions.UpdateDefaultAssistantsConfig(config.ParseDefaultAgents())
}
