package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/sahilchouksey/agent-chat-api/model"
	"github.com/sahilchouksey/agent-chat-api/utils/idgen"
	"github.com/sahilchouksey/agent-chat-api/utils/merge"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ErrSessionNotLinked is returned by UpdateConfig when the target session has
// no linked agent (group sessions, or a data-integrity gap).
var ErrSessionNotLinked = errors.New("session is not assigned an agent, please contact an admin to fix this issue")

// SessionService orchestrates session, agent and link-table records for one
// user. It is cheap to construct, so handlers build one per request from the
// authenticated user id; every query predicate carries that user id.
type SessionService struct {
	db     *gorm.DB
	userID string
}

// NewSessionService creates a session service scoped to one user
func NewSessionService(db *gorm.DB, userID string) *SessionService {
	return &SessionService{
		db:     db,
		userID: userID,
	}
}

// CreateSessionParams describes a session to create. ID is generated when
// empty. For agent-type sessions Config holds the new agent's fields; group
// sessions ignore it.
type CreateSessionParams struct {
	ID      string
	Slug    string
	Type    model.SessionType
	Session model.Session
	Config  model.Agent
}

// Create inserts a new session. A slugged create is idempotent: if the user
// already has a session with that slug, the existing row is returned
// untouched. Agent-type sessions insert the agent, the session and the link
// row in one transaction.
func (s *SessionService) Create(p CreateSessionParams) (*model.Session, error) {
	if p.Type == "" {
		p.Type = model.SessionTypeAgent
	}

	var created model.Session
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if p.Slug != "" {
			var existing model.Session
			err := tx.Where("user_id = ? AND slug = ?", s.userID, p.Slug).First(&existing).Error
			if err == nil {
				created = existing
				return nil
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
		}

		sess := p.Session
		sess.ID = p.ID
		if sess.ID == "" {
			sess.ID = idgen.New(idgen.Session)
		}
		sess.UserID = s.userID
		sess.Type = p.Type
		sess.Slug = nil
		if p.Slug != "" {
			slug := p.Slug
			sess.Slug = &slug
		}
		sess.Agents = nil
		sess.Group = nil
		sess.CreatedAt = time.Time{}
		sess.UpdatedAt = time.Time{}

		if p.Type == model.SessionTypeGroup {
			if err := tx.Create(&sess).Error; err != nil {
				return err
			}
			created = sess
			return nil
		}

		agent := p.Config
		agent.ID = idgen.New(idgen.Agent)
		agent.UserID = s.userID
		agent.Sessions = nil
		agent.CreatedAt = time.Time{}
		agent.UpdatedAt = time.Time{}
		if err := tx.Create(&agent).Error; err != nil {
			return err
		}

		if err := tx.Create(&sess).Error; err != nil {
			return err
		}

		link := model.AgentSession{
			AgentID:   agent.ID,
			SessionID: sess.ID,
			UserID:    s.userID,
		}
		if err := tx.Create(&link).Error; err != nil {
			return err
		}

		created = sess
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &created, nil
}

// BatchCreate inserts sessions in bulk, assigning fresh ids and the bound user
func (s *SessionService) BatchCreate(sessions []model.Session) ([]model.Session, error) {
	if len(sessions) == 0 {
		return nil, nil
	}

	for i := range sessions {
		sessions[i].ID = idgen.New(idgen.Session)
		sessions[i].UserID = s.userID
	}

	if err := s.db.Create(&sessions).Error; err != nil {
		return nil, err
	}
	return sessions, nil
}

// Duplicate copies a session and its agent configuration under fresh
// identities. The source agent's id and slug are never copied. Returns
// (nil, nil) when the source does not exist.
func (s *SessionService) Duplicate(id string, newTitle string) (*model.Session, error) {
	source, err := s.FindByIDOrSlug(id)
	if err != nil {
		return nil, err
	}
	if source == nil {
		return nil, nil
	}

	agent := source.Agent()

	sess := *source
	sess.ID = ""
	sess.Slug = nil
	sess.Agents = nil
	sess.Group = nil
	sess.CreatedAt = time.Time{}
	sess.UpdatedAt = time.Time{}
	if newTitle != "" {
		sess.Title = &newTitle
	}

	var config model.Agent
	if agent != nil {
		config = *agent
		config.ID = ""
		config.Slug = nil
		config.Sessions = nil
		config.CreatedAt = time.Time{}
		config.UpdatedAt = time.Time{}
	}

	return s.Create(CreateSessionParams{
		ID:      idgen.New(idgen.Session),
		Type:    model.SessionTypeAgent,
		Session: sess,
		Config:  config,
	})
}

// FindByIDOrSlug looks a session up by primary id or slug with its agents and
// group preloaded. Returns (nil, nil) when no matching session belongs to the
// user.
func (s *SessionService) FindByIDOrSlug(idOrSlug string) (*model.Session, error) {
	var sess model.Session
	err := s.db.
		Preload("Agents").
		Preload("Group").
		Where("user_id = ? AND (id = ? OR slug = ?)", s.userID, idOrSlug, idOrSlug).
		First(&sess).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

// Page controls listing pagination
type Page struct {
	Current  int
	PageSize int
}

// Query lists the user's sessions, most recently updated first. The inbox
// session is kept out of listings.
func (s *SessionService) Query(page Page) ([]model.Session, error) {
	if page.PageSize <= 0 {
		page.PageSize = 9999
	}
	offset := page.Current * page.PageSize

	var sessions []model.Session
	err := s.db.
		Preload("Agents").
		Preload("Group").
		Where("user_id = ? AND (slug IS NULL OR slug <> ?)", s.userID, model.InboxSlug).
		Order("updated_at DESC").
		Limit(page.PageSize).
		Offset(offset).
		Find(&sessions).Error
	return sessions, err
}

// SessionList bundles mapped sessions with the user's session groups
type SessionList struct {
	Sessions      []SessionView        `json:"sessions"`
	SessionGroups []model.SessionGroup `json:"session_groups"`
}

// QueryWithGroups returns all sessions plus the user's session groups in
// their default ordering (sort key, then newest first).
func (s *SessionService) QueryWithGroups() (*SessionList, error) {
	sessions, err := s.Query(Page{})
	if err != nil {
		return nil, err
	}

	var groups []model.SessionGroup
	if err := s.db.
		Where("user_id = ?", s.userID).
		Order("sort ASC").
		Order("created_at DESC").
		Find(&groups).Error; err != nil {
		return nil, err
	}

	views := make([]SessionView, 0, len(sessions))
	for _, sess := range sessions {
		views = append(views, mapSessionView(sess))
	}

	return &SessionList{Sessions: views, SessionGroups: groups}, nil
}

// QueryByKeyword searches case-insensitively over agent titles and
// descriptions and returns the sessions still linked to a matching agent.
// Search failures degrade to an empty result so the caller never hard-fails.
func (s *SessionService) QueryByKeyword(keyword string) []SessionView {
	if keyword == "" {
		return []SessionView{}
	}
	pattern := "%" + strings.ToLower(keyword) + "%"

	var agents []model.Agent
	err := s.db.
		Preload("Sessions").
		Where("user_id = ? AND (lower(title) LIKE ? OR lower(description) LIKE ?)", s.userID, pattern, pattern).
		Order("updated_at DESC").
		Find(&agents).Error
	if err != nil {
		log.Printf("QueryByKeyword failed for %q: %v", keyword, err)
		return []SessionView{}
	}

	views := make([]SessionView, 0, len(agents))
	for _, agent := range agents {
		if len(agent.Sessions) == 0 {
			// agent row without a surviving link, nothing to show
			continue
		}
		sess := agent.Sessions[0]
		matched := agent
		matched.Sessions = nil
		sess.Agents = []model.Agent{matched}
		views = append(views, mapSessionView(sess))
	}
	return views
}

// CountParams optionally bounds Count by creation time. Range is an inclusive
// [start, end] window and combines with the open-ended bounds.
type CountParams struct {
	StartDate *time.Time
	EndDate   *time.Time
	Range     *[2]time.Time
}

// Count returns the number of sessions the user owns
func (s *SessionService) Count(params *CountParams) (int64, error) {
	query := s.db.Model(&model.Session{}).Where("user_id = ?", s.userID)
	if params != nil {
		if params.StartDate != nil {
			query = query.Where("created_at >= ?", *params.StartDate)
		}
		if params.EndDate != nil {
			query = query.Where("created_at <= ?", *params.EndDate)
		}
		if params.Range != nil {
			query = query.Where("created_at >= ? AND created_at <= ?", params.Range[0], params.Range[1])
		}
	}

	var count int64
	err := query.Count(&count).Error
	return count, err
}

// HasMoreThanN reports whether the user owns more than n sessions
func (s *SessionService) HasMoreThanN(n int) (bool, error) {
	var ids []string
	err := s.db.Model(&model.Session{}).
		Where("user_id = ?", s.userID).
		Limit(n + 1).
		Pluck("id", &ids).Error
	return len(ids) > n, err
}

// SessionRankItem is one row of the topic-count ranking
type SessionRankItem struct {
	ID              string  `json:"id"`
	Title           *string `json:"title,omitempty"`
	Avatar          *string `json:"avatar,omitempty"`
	BackgroundColor *string `json:"background_color,omitempty" gorm:"column:background_color"`
	Count           int64   `json:"count" gorm:"column:topic_count"`
}

func (s *SessionService) rankSessions(limit int) ([]SessionRankItem, error) {
	items := []SessionRankItem{}
	// Rank passes limit-1 here when the inbox takes a slot, so 0 means no
	// slots left for ranked sessions, never "unlimited".
	if limit <= 0 {
		return items, nil
	}
	err := s.db.Table("sessions").
		Select("sessions.id AS id, agents.title AS title, agents.avatar AS avatar, agents.background_color AS background_color, count(topics.id) AS topic_count").
		Joins("LEFT JOIN topics ON topics.session_id = sessions.id").
		Joins("LEFT JOIN agents_to_sessions ON agents_to_sessions.session_id = sessions.id").
		Joins("LEFT JOIN agents ON agents.id = agents_to_sessions.agent_id").
		Where("sessions.user_id = ?", s.userID).
		Group("sessions.id, agents.id").
		Having("count(topics.id) > 0").
		Order("topic_count DESC").
		Limit(limit).
		Scan(&items).Error
	return items, err
}

// Rank returns the user's sessions ordered by topic count. Topics without a
// session id belong to the inbox, which has no session row of its own; when
// any exist a synthetic inbox entry takes one of the limit slots.
func (s *SessionService) Rank(limit int) ([]SessionRankItem, error) {
	if limit <= 0 {
		limit = 10
	}

	var inboxCount int64
	if err := s.db.Model(&model.Topic{}).
		Where("user_id = ? AND session_id IS NULL", s.userID).
		Count(&inboxCount).Error; err != nil {
		return nil, err
	}

	if inboxCount == 0 {
		return s.rankSessions(limit)
	}

	ranked, err := s.rankSessions(limit - 1)
	if err != nil {
		return nil, err
	}

	inboxTitle := "Inbox"
	inboxAvatar := model.DefaultInboxAvatar
	result := append([]SessionRankItem{{
		ID:     model.InboxSlug,
		Title:  &inboxTitle,
		Avatar: &inboxAvatar,
		Count:  inboxCount,
	}}, ranked...)

	sort.SliceStable(result, func(i, j int) bool { return result[i].Count > result[j].Count })
	return result, nil
}

// SessionPatch is a partial update of session-level fields. Nil fields are
// left untouched.
type SessionPatch struct {
	Title           *string `json:"title"`
	Description     *string `json:"description"`
	Avatar          *string `json:"avatar"`
	BackgroundColor *string `json:"background_color"`
	GroupID         *string `json:"group_id"`
	Pinned          *bool   `json:"pinned"`
}

func (p SessionPatch) updates() map[string]interface{} {
	updates := map[string]interface{}{}
	if p.Title != nil {
		updates["title"] = *p.Title
	}
	if p.Description != nil {
		updates["description"] = *p.Description
	}
	if p.Avatar != nil {
		updates["avatar"] = *p.Avatar
	}
	if p.BackgroundColor != nil {
		updates["background_color"] = *p.BackgroundColor
	}
	if p.GroupID != nil {
		updates["group_id"] = *p.GroupID
	}
	if p.Pinned != nil {
		updates["pinned"] = *p.Pinned
	}
	return updates
}

// IsEmpty reports whether the patch carries no field changes
func (p SessionPatch) IsEmpty() bool {
	return len(p.updates()) == 0
}

// Update applies a partial update to the session row only
func (s *SessionService) Update(id string, patch SessionPatch) (int64, error) {
	updates := patch.updates()
	if len(updates) == 0 {
		return 0, nil
	}

	result := s.db.Model(&model.Session{}).
		Where("id = ? AND user_id = ?", id, s.userID).
		Updates(updates)
	return result.RowsAffected, result.Error
}

// ParamPatch is one pending change to a sampling parameter: Remove deletes
// the key from stored params, otherwise Value overwrites it. A nil Value is
// an explicit null ("disabled") and is preserved, not stripped.
type ParamPatch struct {
	Remove bool
	Value  *float64
}

// RemoveParam deletes the parameter key entirely
func RemoveParam() ParamPatch { return ParamPatch{Remove: true} }

// SetParam overwrites the parameter with a value
func SetParam(v float64) ParamPatch { return ParamPatch{Value: &v} }

// NullParam marks the parameter explicitly disabled
func NullParam() ParamPatch { return ParamPatch{} }

// AgentPatch is a partial update of the agent linked to a session. Nil
// pointer fields are left untouched; ChatConfig merges key-wise into the
// stored config.
type AgentPatch struct {
	Title           *string
	Description     *string
	Avatar          *string
	BackgroundColor *string
	Tags            []string
	Model           *string
	Provider        *string
	SystemRole      *string
	ChatConfig      map[string]interface{}
	Params          map[string]ParamPatch
}

func (p AgentPatch) isEmpty() bool {
	return p.Title == nil && p.Description == nil && p.Avatar == nil &&
		p.BackgroundColor == nil && p.Tags == nil && p.Model == nil &&
		p.Provider == nil && p.SystemRole == nil &&
		len(p.ChatConfig) == 0 && len(p.Params) == 0
}

// UpdateConfig merges a partial configuration into the session's linked
// agent. Only the agent row is written; the session row stays untouched. An
// emptied params object is stored as absent, never as "{}".
func (s *SessionService) UpdateConfig(sessionID string, patch AgentPatch) error {
	if patch.isEmpty() {
		return nil
	}

	sess, err := s.FindByIDOrSlug(sessionID)
	if err != nil {
		return err
	}
	if sess == nil {
		return nil
	}

	agent := sess.Agent()
	if agent == nil {
		return ErrSessionNotLinked
	}

	params := map[string]interface{}{}
	if len(agent.Params) > 0 {
		if err := json.Unmarshal(agent.Params, &params); err != nil {
			return fmt.Errorf("decode agent params: %w", err)
		}
	}
	for key, change := range patch.Params {
		if change.Remove {
			delete(params, key)
			continue
		}
		if change.Value == nil {
			params[key] = nil
			continue
		}
		params[key] = *change.Value
	}

	updates := map[string]interface{}{}
	if patch.Title != nil {
		updates["title"] = *patch.Title
	}
	if patch.Description != nil {
		updates["description"] = *patch.Description
	}
	if patch.Avatar != nil {
		updates["avatar"] = *patch.Avatar
	}
	if patch.BackgroundColor != nil {
		updates["background_color"] = *patch.BackgroundColor
	}
	if patch.Tags != nil {
		updates["tags"] = pq.StringArray(patch.Tags)
	}
	if patch.Model != nil {
		updates["model"] = *patch.Model
	}
	if patch.Provider != nil {
		updates["provider"] = *patch.Provider
	}
	if patch.SystemRole != nil {
		updates["system_role"] = *patch.SystemRole
	}

	if len(patch.ChatConfig) > 0 {
		existing := map[string]interface{}{}
		if len(agent.ChatConfig) > 0 {
			if err := json.Unmarshal(agent.ChatConfig, &existing); err != nil {
				return fmt.Errorf("decode agent chat config: %w", err)
			}
		}
		encoded, err := json.Marshal(merge.Maps(existing, patch.ChatConfig))
		if err != nil {
			return err
		}
		updates["chat_config"] = datatypes.JSON(encoded)
	}

	if len(params) == 0 {
		updates["params"] = nil
	} else {
		encoded, err := json.Marshal(params)
		if err != nil {
			return err
		}
		updates["params"] = datatypes.JSON(encoded)
	}

	return s.db.Model(&model.Agent{}).
		Where("id = ? AND user_id = ?", agent.ID, s.userID).
		Updates(updates).Error
}

// Delete removes a session, its link rows and any agent left without a
// referencing link, all in one transaction.
func (s *SessionService) Delete(id string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var agentIDs []string
		if err := tx.Model(&model.AgentSession{}).
			Where("session_id = ? AND user_id = ?", id, s.userID).
			Pluck("agent_id", &agentIDs).Error; err != nil {
			return err
		}

		if err := tx.Where("session_id = ? AND user_id = ?", id, s.userID).
			Delete(&model.AgentSession{}).Error; err != nil {
			return err
		}

		if err := tx.Where("id = ? AND user_id = ?", id, s.userID).
			Delete(&model.Session{}).Error; err != nil {
			return err
		}

		return s.clearOrphanAgents(tx, agentIDs)
	})
}

// BatchDelete removes several sessions at once with the same link cleanup and
// orphan reclamation as Delete. An empty id list is a no-op and opens no
// transaction. Returns the number of session rows removed.
func (s *SessionService) BatchDelete(ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	var deleted int64
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var agentIDs []string
		if err := tx.Model(&model.AgentSession{}).
			Distinct("agent_id").
			Where("session_id IN ? AND user_id = ?", ids, s.userID).
			Pluck("agent_id", &agentIDs).Error; err != nil {
			return err
		}

		if err := tx.Where("session_id IN ? AND user_id = ?", ids, s.userID).
			Delete(&model.AgentSession{}).Error; err != nil {
			return err
		}

		result := tx.Where("id IN ? AND user_id = ?", ids, s.userID).
			Delete(&model.Session{})
		if result.Error != nil {
			return result.Error
		}
		deleted = result.RowsAffected

		return s.clearOrphanAgents(tx, agentIDs)
	})
	if err != nil {
		return 0, err
	}
	return deleted, nil
}

// DeleteAll wipes every link, agent and session the user owns, in that
// order. Everything is user-scoped, so no orphan check is needed.
func (s *SessionService) DeleteAll() error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", s.userID).
			Delete(&model.AgentSession{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", s.userID).
			Delete(&model.Agent{}).Error; err != nil {
			return err
		}
		return tx.Where("user_id = ?", s.userID).
			Delete(&model.Session{}).Error
	})
}

// clearOrphanAgents deletes each agent whose last referencing link is gone.
// The existence check spans all users (a link from anyone keeps the agent
// alive) but the delete itself stays scoped to the bound user.
func (s *SessionService) clearOrphanAgents(tx *gorm.DB, agentIDs []string) error {
	for _, agentID := range agentIDs {
		var link model.AgentSession
		err := tx.Where("agent_id = ?", agentID).First(&link).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		if err := tx.Where("id = ? AND user_id = ?", agentID, s.userID).
			Delete(&model.Agent{}).Error; err != nil {
			return err
		}
	}
	return nil
}

// isUniqueViolation reports whether err is a uniqueness-constraint failure.
// 23505 is the Postgres unique_violation code; the sqlite message shows up
// under the test driver.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "23505") ||
		strings.Contains(msg, "duplicate key value") ||
		strings.Contains(msg, "UNIQUE constraint failed")
}
