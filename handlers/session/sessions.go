package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/lib/pq"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/sahilchouksey/agent-chat-api/model"
	"github.com/sahilchouksey/agent-chat-api/services"
	"github.com/sahilchouksey/agent-chat-api/utils/cache"
	"github.com/sahilchouksey/agent-chat-api/utils/middleware"
	"github.com/sahilchouksey/agent-chat-api/utils/response"
	"github.com/sahilchouksey/agent-chat-api/utils/validation"
)

const rankCacheTTL = time.Minute

// SessionHandler handles session endpoints
type SessionHandler struct {
	db        *gorm.DB
	cache     *cache.RedisCache
	validator *validation.Validator
}

// NewSessionHandler creates a new session handler. The cache is optional;
// when nil, rank responses are computed on every request.
func NewSessionHandler(db *gorm.DB, redisCache *cache.RedisCache) *SessionHandler {
	return &SessionHandler{
		db:        db,
		cache:     redisCache,
		validator: validation.NewValidator(),
	}
}

func (h *SessionHandler) sessions(c *fiber.Ctx) *services.SessionService {
	return services.NewSessionService(h.db, middleware.UserID(c))
}

func (h *SessionHandler) agents(c *fiber.Ctx) *services.AgentService {
	return services.NewAgentService(h.db, middleware.UserID(c))
}

type sessionFieldsRequest struct {
	Title           *string `json:"title" validate:"omitempty,max=255"`
	Description     *string `json:"description"`
	Avatar          *string `json:"avatar" validate:"omitempty,max=255"`
	BackgroundColor *string `json:"background_color" validate:"omitempty,max=32"`
	GroupID         *string `json:"group_id"`
	Pinned          *bool   `json:"pinned"`
}

func (r sessionFieldsRequest) toModel() model.Session {
	sess := model.Session{
		Title:           r.Title,
		Description:     r.Description,
		Avatar:          r.Avatar,
		BackgroundColor: r.BackgroundColor,
		GroupID:         r.GroupID,
	}
	if r.Pinned != nil {
		sess.Pinned = *r.Pinned
	}
	return sess
}

type agentConfigRequest struct {
	Title           *string                `json:"title" validate:"omitempty,max=255"`
	Description     *string                `json:"description"`
	Avatar          *string                `json:"avatar" validate:"omitempty,max=255"`
	BackgroundColor *string                `json:"background_color" validate:"omitempty,max=32"`
	Tags            []string               `json:"tags"`
	Model           string                 `json:"model" validate:"omitempty,max=100"`
	Provider        string                 `json:"provider" validate:"omitempty,max=100"`
	SystemRole      *string                `json:"system_role"`
	Params          map[string]*float64    `json:"params"`
	ChatConfig      map[string]interface{} `json:"chat_config"`
}

func (r agentConfigRequest) toModel() (model.Agent, error) {
	agent := model.Agent{
		Title:           r.Title,
		Description:     r.Description,
		Avatar:          r.Avatar,
		BackgroundColor: r.BackgroundColor,
		Tags:            pq.StringArray(r.Tags),
		Model:           r.Model,
		Provider:        r.Provider,
		SystemRole:      r.SystemRole,
	}
	if len(r.Params) > 0 {
		raw, err := json.Marshal(r.Params)
		if err != nil {
			return agent, err
		}
		agent.Params = datatypes.JSON(raw)
	}
	if len(r.ChatConfig) > 0 {
		raw, err := json.Marshal(r.ChatConfig)
		if err != nil {
			return agent, err
		}
		agent.ChatConfig = datatypes.JSON(raw)
	}
	return agent, nil
}

type createSessionRequest struct {
	Slug    string               `json:"slug" validate:"omitempty,max=100"`
	Type    string               `json:"type" validate:"omitempty,oneof=agent group"`
	Session sessionFieldsRequest `json:"session"`
	Config  agentConfigRequest   `json:"config"`
}

// Create creates a new session. Agent-type sessions also create their backing
// agent and link in one transaction. A slugged create returns the existing
// session when the slug is already taken by this user.
func (h *SessionHandler) Create(c *fiber.Ctx) error {
	var req createSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	config, err := req.Config.toModel()
	if err != nil {
		return response.BadRequest(c, "Invalid agent configuration")
	}

	sess, err := h.sessions(c).Create(services.CreateSessionParams{
		Slug:    req.Slug,
		Type:    model.SessionType(req.Type),
		Session: req.Session.toModel(),
		Config:  config,
	})
	if err != nil {
		log.Println("Error creating session:", err)
		return response.InternalServerError(c, "Failed to create session")
	}

	h.invalidateRank(c)
	return response.Created(c, sess)
}

type batchCreateRequest struct {
	Sessions []sessionFieldsRequest `json:"sessions" validate:"required,min=1,dive"`
}

// BatchCreate inserts multiple sessions at once
func (h *SessionHandler) BatchCreate(c *fiber.Ctx) error {
	var req batchCreateRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	sessions := make([]model.Session, 0, len(req.Sessions))
	for _, fields := range req.Sessions {
		sessions = append(sessions, fields.toModel())
	}

	created, err := h.sessions(c).BatchCreate(sessions)
	if err != nil {
		log.Println("Error batch creating sessions:", err)
		return response.InternalServerError(c, "Failed to create sessions")
	}

	h.invalidateRank(c)
	return response.Created(c, created)
}

// List returns the user's sessions, most recently updated first
func (h *SessionHandler) List(c *fiber.Ctx) error {
	page := services.Page{
		Current:  c.QueryInt("page", 0),
		PageSize: c.QueryInt("page_size", 0),
	}

	sessions, err := h.sessions(c).Query(page)
	if err != nil {
		log.Println("Error listing sessions:", err)
		return response.InternalServerError(c, "Failed to list sessions")
	}
	return response.Success(c, sessions)
}

// Grouped returns sessions together with the user's session groups
func (h *SessionHandler) Grouped(c *fiber.Ctx) error {
	list, err := h.sessions(c).QueryWithGroups()
	if err != nil {
		log.Println("Error listing grouped sessions:", err)
		return response.InternalServerError(c, "Failed to list sessions")
	}
	return response.Success(c, list)
}

// Search finds sessions whose agent title or description matches the keyword
func (h *SessionHandler) Search(c *fiber.Ctx) error {
	keyword := validation.SanitizeString(c.Query("q"))
	if keyword == "" {
		return response.BadRequest(c, "Query parameter 'q' is required")
	}
	return response.Success(c, h.sessions(c).QueryByKeyword(keyword))
}

// Rank returns sessions ordered by topic count, cached briefly per user
func (h *SessionHandler) Rank(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 10)
	if limit < 1 || limit > 100 {
		return response.BadRequest(c, "Limit must be between 1 and 100")
	}

	cacheKey := fmt.Sprintf("sessions:rank:%s:%d", middleware.UserID(c), limit)
	if h.cache != nil {
		var cached []services.SessionRankItem
		if err := h.cache.GetJSON(c.Context(), cacheKey, &cached); err == nil {
			return response.Success(c, cached)
		}
	}

	ranked, err := h.sessions(c).Rank(limit)
	if err != nil {
		log.Println("Error ranking sessions:", err)
		return response.InternalServerError(c, "Failed to rank sessions")
	}

	if h.cache != nil {
		if err := h.cache.SetJSON(c.Context(), cacheKey, ranked, rankCacheTTL); err != nil {
			log.Println("Warning: failed to cache session rank:", err)
		}
	}
	return response.Success(c, ranked)
}

// Count returns how many sessions the user owns, optionally bounded by
// creation date (RFC 3339 or YYYY-MM-DD)
func (h *SessionHandler) Count(c *fiber.Ctx) error {
	params := services.CountParams{}

	if raw := c.Query("start_date"); raw != "" {
		t, err := parseDate(raw)
		if err != nil {
			return response.BadRequest(c, "Invalid start_date")
		}
		params.StartDate = &t
	}
	if raw := c.Query("end_date"); raw != "" {
		t, err := parseDate(raw)
		if err != nil {
			return response.BadRequest(c, "Invalid end_date")
		}
		params.EndDate = &t
	}

	rangeStart, rangeEnd := c.Query("range_start"), c.Query("range_end")
	if (rangeStart == "") != (rangeEnd == "") {
		return response.BadRequest(c, "range_start and range_end must be supplied together")
	}
	if rangeStart != "" {
		start, err := parseDate(rangeStart)
		if err != nil {
			return response.BadRequest(c, "Invalid range_start")
		}
		end, err := parseDate(rangeEnd)
		if err != nil {
			return response.BadRequest(c, "Invalid range_end")
		}
		params.Range = &[2]time.Time{start, end}
	}

	count, err := h.sessions(c).Count(&params)
	if err != nil {
		log.Println("Error counting sessions:", err)
		return response.InternalServerError(c, "Failed to count sessions")
	}
	return response.Success(c, fiber.Map{"count": count})
}

func parseDate(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", raw)
}

// Get returns a single session by id or slug with its agent and group
func (h *SessionHandler) Get(c *fiber.Ctx) error {
	sess, err := h.sessions(c).FindByIDOrSlug(c.Params("id"))
	if err != nil {
		log.Println("Error fetching session:", err)
		return response.InternalServerError(c, "Failed to fetch session")
	}
	if sess == nil {
		return response.NotFound(c, "Session not found")
	}
	return response.Success(c, sess)
}

type duplicateRequest struct {
	Title string `json:"title" validate:"omitempty,max=255"`
}

// Duplicate copies a session and its agent configuration under new ids
func (h *SessionHandler) Duplicate(c *fiber.Ctx) error {
	var req duplicateRequest
	if err := c.BodyParser(&req); err != nil && !errors.Is(err, fiber.ErrUnprocessableEntity) {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	sess, err := h.sessions(c).Duplicate(c.Params("id"), req.Title)
	if err != nil {
		log.Println("Error duplicating session:", err)
		return response.InternalServerError(c, "Failed to duplicate session")
	}
	if sess == nil {
		return response.NotFound(c, "Session not found")
	}

	h.invalidateRank(c)
	return response.Created(c, sess)
}

// Update applies a partial update to session-level fields only
func (h *SessionHandler) Update(c *fiber.Ctx) error {
	var patch services.SessionPatch
	if err := c.BodyParser(&patch); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	// An empty patch would also report zero affected rows; reject it up front
	// so the 404 below always means the session is missing.
	if patch.IsEmpty() {
		return response.BadRequest(c, "No fields to update")
	}

	affected, err := h.sessions(c).Update(c.Params("id"), patch)
	if err != nil {
		log.Println("Error updating session:", err)
		return response.InternalServerError(c, "Failed to update session")
	}
	if affected == 0 {
		return response.NotFound(c, "Session not found")
	}
	return response.SuccessWithMessage(c, "Session updated", fiber.Map{"updated": affected})
}

type updateConfigRequest struct {
	Title           *string                `json:"title" validate:"omitempty,max=255"`
	Description     *string                `json:"description"`
	Avatar          *string                `json:"avatar" validate:"omitempty,max=255"`
	BackgroundColor *string                `json:"background_color" validate:"omitempty,max=32"`
	Tags            []string               `json:"tags"`
	Model           *string                `json:"model" validate:"omitempty,max=100"`
	Provider        *string                `json:"provider" validate:"omitempty,max=100"`
	SystemRole      *string                `json:"system_role"`
	ChatConfig      map[string]interface{} `json:"chat_config"`

	// Params sets values (a JSON null disables the parameter without removing
	// it); RemoveParams deletes keys outright and wins over Params.
	Params       map[string]*float64 `json:"params"`
	RemoveParams []string            `json:"remove_params"`
}

func (r updateConfigRequest) toPatch() services.AgentPatch {
	patch := services.AgentPatch{
		Title:           r.Title,
		Description:     r.Description,
		Avatar:          r.Avatar,
		BackgroundColor: r.BackgroundColor,
		Tags:            r.Tags,
		Model:           r.Model,
		Provider:        r.Provider,
		SystemRole:      r.SystemRole,
		ChatConfig:      r.ChatConfig,
	}

	if len(r.Params) > 0 || len(r.RemoveParams) > 0 {
		patch.Params = make(map[string]services.ParamPatch, len(r.Params)+len(r.RemoveParams))
		for key, value := range r.Params {
			if value == nil {
				patch.Params[key] = services.NullParam()
			} else {
				patch.Params[key] = services.SetParam(*value)
			}
		}
		for _, key := range r.RemoveParams {
			patch.Params[key] = services.RemoveParam()
		}
	}
	return patch
}

// UpdateConfig merges a partial configuration into the session's linked agent
func (h *SessionHandler) UpdateConfig(c *fiber.Ctx) error {
	var req updateConfigRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	err := h.sessions(c).UpdateConfig(c.Params("id"), req.toPatch())
	if err != nil {
		if errors.Is(err, services.ErrSessionNotLinked) {
			return response.Conflict(c, "Session has no linked agent")
		}
		log.Println("Error updating session config:", err)
		return response.InternalServerError(c, "Failed to update session config")
	}
	return response.SuccessWithMessage(c, "Session config updated", nil)
}

// Delete removes a session, its links and any agent left orphaned by it
func (h *SessionHandler) Delete(c *fiber.Ctx) error {
	if err := h.sessions(c).Delete(c.Params("id")); err != nil {
		log.Println("Error deleting session:", err)
		return response.InternalServerError(c, "Failed to delete session")
	}

	h.invalidateRank(c)
	return response.NoContent(c)
}

type batchDeleteRequest struct {
	IDs []string `json:"ids" validate:"required,min=1"`
}

// BatchDelete removes multiple sessions in one transaction
func (h *SessionHandler) BatchDelete(c *fiber.Ctx) error {
	var req batchDeleteRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	deleted, err := h.sessions(c).BatchDelete(req.IDs)
	if err != nil {
		log.Println("Error batch deleting sessions:", err)
		return response.InternalServerError(c, "Failed to delete sessions")
	}

	h.invalidateRank(c)
	return response.Success(c, fiber.Map{"deleted": deleted})
}

// DeleteAll removes every session, link and agent the user owns
func (h *SessionHandler) DeleteAll(c *fiber.Ctx) error {
	if err := h.sessions(c).DeleteAll(); err != nil {
		log.Println("Error deleting all sessions:", err)
		return response.InternalServerError(c, "Failed to delete sessions")
	}

	h.invalidateRank(c)
	return response.NoContent(c)
}

// CreateInbox provisions the user's inbox session. Idempotent.
func (h *SessionHandler) CreateInbox(c *fiber.Ctx) error {
	sess, err := h.agents(c).CreateInbox()
	if err != nil {
		log.Println("Error creating inbox:", err)
		return response.InternalServerError(c, "Failed to create inbox")
	}
	return response.Created(c, sess)
}

// CreateDefaultAssistants seeds the built-in assistants for the user.
// Idempotent; assistants that already exist are skipped.
func (h *SessionHandler) CreateDefaultAssistants(c *fiber.Ctx) error {
	created, err := h.agents(c).CreateDefaultAssistants()
	if err != nil {
		log.Println("Error creating default assistants:", err)
		return response.InternalServerError(c, "Failed to create default assistants")
	}
	return response.Created(c, created)
}

// invalidateRank drops the user's cached rank entries after a write
func (h *SessionHandler) invalidateRank(c *fiber.Ctx) {
	if h.cache == nil {
		return
	}
	pattern := fmt.Sprintf("sessions:rank:%s:*", middleware.UserID(c))
	if err := h.cache.DeletePattern(c.Context(), pattern); err != nil {
		log.Println("Warning: failed to invalidate rank cache:", err)
	}
}
