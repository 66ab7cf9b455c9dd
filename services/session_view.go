package services

import (
	"time"

	"github.com/sahilchouksey/agent-chat-api/model"
)

// SessionMeta is the display metadata resolved for a session view. Agent
// sessions prefer the linked agent's metadata over the session's own
// overrides.
type SessionMeta struct {
	Avatar          *string  `json:"avatar,omitempty"`
	BackgroundColor *string  `json:"background_color,omitempty"`
	Description     *string  `json:"description,omitempty"`
	Tags            []string `json:"tags,omitempty"`
	Title           *string  `json:"title,omitempty"`
}

// GroupMember is one participant of a group session, in stable order
type GroupMember struct {
	model.Agent
	AgentID string `json:"agent_id"`
	Role    string `json:"role"`
	Order   int    `json:"order"`
	Enabled bool   `json:"enabled"`
}

// SessionView is the API shape of a session: agent sessions carry the linked
// agent as Config, group sessions carry ordered Members.
type SessionView struct {
	ID        string            `json:"id"`
	Slug      *string           `json:"slug,omitempty"`
	Type      model.SessionType `json:"type"`
	GroupID   *string           `json:"group,omitempty"`
	Pinned    bool              `json:"pinned"`
	Meta      SessionMeta       `json:"meta"`
	Model     string            `json:"model,omitempty"`
	Config    *model.Agent      `json:"config,omitempty"`
	Members   []GroupMember     `json:"members,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

func coalesce(preferred, fallback *string) *string {
	if preferred != nil {
		return preferred
	}
	return fallback
}

func mapSessionView(sess model.Session) SessionView {
	view := SessionView{
		ID:        sess.ID,
		Slug:      sess.Slug,
		Type:      sess.Type,
		GroupID:   sess.GroupID,
		Pinned:    sess.Pinned,
		CreatedAt: sess.CreatedAt,
		UpdatedAt: sess.UpdatedAt,
		Meta: SessionMeta{
			Avatar:          sess.Avatar,
			BackgroundColor: sess.BackgroundColor,
			Description:     sess.Description,
			Title:           sess.Title,
		},
	}

	if sess.Type == model.SessionTypeGroup {
		members := make([]GroupMember, 0, len(sess.Agents))
		for i, agent := range sess.Agents {
			members = append(members, GroupMember{
				Agent:   agent,
				AgentID: agent.ID,
				Role:    "participant",
				Order:   i,
				Enabled: true,
			})
		}
		view.Members = members
		return view
	}

	if agent := sess.Agent(); agent != nil {
		view.Config = agent
		view.Model = agent.Model
		view.Meta = SessionMeta{
			Avatar:          coalesce(agent.Avatar, sess.Avatar),
			BackgroundColor: coalesce(agent.BackgroundColor, sess.BackgroundColor),
			Description:     coalesce(agent.Description, sess.Description),
			Tags:            agent.Tags,
			Title:           coalesce(agent.Title, sess.Title),
		}
	}
	return view
}
