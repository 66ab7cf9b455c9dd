package services

import (
	"encoding/json"
	"errors"
	"log"

	"github.com/sahilchouksey/agent-chat-api/config"
	"github.com/sahilchouksey/agent-chat-api/model"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// defaultAgentBaseline is the built-in configuration applied beneath any
// external overrides when seeding default sessions.
func defaultAgentBaseline() model.Agent {
	params, _ := json.Marshal(map[string]interface{}{
		"frequency_penalty": 0,
		"presence_penalty":  0,
		"temperature":       1,
		"top_p":             1,
	})
	return model.Agent{
		Model:    "gpt-4o-mini",
		Provider: "openai",
		Params:   datatypes.JSON(params),
	}
}

// applyAgentEnvConfig overlays externally supplied system role and parameter
// overrides onto an agent about to be inserted.
func applyAgentEnvConfig(agent *model.Agent, cfg *config.DefaultAgentEnvConfig) error {
	if cfg == nil {
		return nil
	}

	if cfg.SystemRole != "" {
		role := cfg.SystemRole
		agent.SystemRole = &role
	}

	if cfg.Params == nil {
		return nil
	}

	params := map[string]interface{}{}
	if len(agent.Params) > 0 {
		if err := json.Unmarshal(agent.Params, &params); err != nil {
			return err
		}
	}
	if cfg.Params.FrequencyPenalty != nil {
		params["frequency_penalty"] = *cfg.Params.FrequencyPenalty
	}
	if cfg.Params.PresencePenalty != nil {
		params["presence_penalty"] = *cfg.Params.PresencePenalty
	}
	if cfg.Params.Temperature != nil {
		params["temperature"] = *cfg.Params.Temperature
	}
	if cfg.Params.TopP != nil {
		params["top_p"] = *cfg.Params.TopP
	}

	encoded, err := json.Marshal(params)
	if err != nil {
		return err
	}
	agent.Params = datatypes.JSON(encoded)
	return nil
}

type defaultAssistant struct {
	slug       string
	title      string
	avatar     string
	systemRole string // fallback when no env override is supplied
	envConfig  func(*config.DefaultAgentsConfig) *config.DefaultAgentEnvConfig
}

var defaultAssistants = []defaultAssistant{
	{
		slug:       "readiness-plan-agent",
		title:      "Readiness Plan Agent",
		avatar:     "😀",
		systemRole: "You are a Readiness Plan Agent. Your role is to help users create comprehensive readiness plans.",
		envConfig: func(c *config.DefaultAgentsConfig) *config.DefaultAgentEnvConfig {
			if c == nil {
				return nil
			}
			return c.ReadinessPlanAgent
		},
	},
	{
		slug:       "checkpoint-agent",
		title:      "Checkpoint Agent",
		avatar:     "😆",
		systemRole: "You are a Checkpoint Agent. Your role is to help users track progress and verify completion of tasks.",
		envConfig: func(c *config.DefaultAgentsConfig) *config.DefaultAgentEnvConfig {
			if c == nil {
				return nil
			}
			return c.CheckpointAgent
		},
	},
	{
		slug:       "qa-agent",
		title:      "QA Agent",
		avatar:     "😉",
		systemRole: "You are a QA Agent. Your role is to help users with quality assurance and testing.",
		envConfig: func(c *config.DefaultAgentsConfig) *config.DefaultAgentEnvConfig {
			if c == nil {
				return nil
			}
			return c.QAAgent
		},
	},
}

// CreateInbox seeds the user's inbox session once. Subsequent calls return
// the existing session.
func (s *SessionService) CreateInbox(overrides *config.DefaultAgentEnvConfig) (*model.Session, error) {
	existing, err := s.FindByIDOrSlug(model.InboxSlug)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	agent := defaultAgentBaseline()
	inboxAvatar := model.DefaultInboxAvatar
	agent.Avatar = &inboxAvatar
	if err := applyAgentEnvConfig(&agent, overrides); err != nil {
		return nil, err
	}

	return s.Create(CreateSessionParams{
		Slug:   model.InboxSlug,
		Type:   model.SessionTypeAgent,
		Config: agent,
	})
}

// CreateDefaultAssistants seeds the fixed set of default assistants, each at
// most once per user. Config layering, lowest to highest precedence:
// built-in baseline, server-wide default override, per-assistant values.
// A uniqueness violation means a concurrent request created the assistant
// first and is swallowed; any other error propagates.
func (s *SessionService) CreateDefaultAssistants(serverDefault *config.DefaultAgentEnvConfig, cfg *config.DefaultAgentsConfig) ([]model.Session, error) {
	created := []model.Session{}

	for _, assistant := range defaultAssistants {
		var existing model.Session
		err := s.db.Where("user_id = ? AND slug = ?", s.userID, assistant.slug).
			First(&existing).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return created, err
		}

		agent := defaultAgentBaseline()
		if err := applyAgentEnvConfig(&agent, serverDefault); err != nil {
			return created, err
		}
		avatar := assistant.avatar
		agent.Avatar = &avatar
		role := assistant.systemRole
		agent.SystemRole = &role
		if err := applyAgentEnvConfig(&agent, assistant.envConfig(cfg)); err != nil {
			return created, err
		}

		title := assistant.title
		sess, err := s.Create(CreateSessionParams{
			Slug:    assistant.slug,
			Type:    model.SessionTypeAgent,
			Session: model.Session{Title: &title},
			Config:  agent,
		})
		if err != nil {
			if isUniqueViolation(err) {
				// lost the creation race to a concurrent request
				continue
			}
			return created, err
		}
		created = append(created, *sess)
	}

	return created, nil
}

// UpdateDefaultAssistantsAvatars re-applies the canonical avatar to each
// default assistant's agent. Missing sessions or agents are skipped.
func (s *SessionService) UpdateDefaultAssistantsAvatars() error {
	for _, assistant := range defaultAssistants {
		sess, err := s.FindByIDOrSlug(assistant.slug)
		if err != nil {
			return err
		}
		if sess == nil {
			log.Printf("UpdateDefaultAssistantsAvatars: session not found for slug %s, skipping", assistant.slug)
			continue
		}
		if sess.Agent() == nil {
			log.Printf("UpdateDefaultAssistantsAvatars: no agent linked to %s, skipping", assistant.slug)
			continue
		}

		avatar := assistant.avatar
		if err := s.UpdateConfig(sess.ID, AgentPatch{Avatar: &avatar}); err != nil {
			log.Printf("UpdateDefaultAssistantsAvatars: update failed for %s: %v", assistant.slug, err)
		}
	}
	return nil
}

// UpdateDefaultAssistantsConfig re-applies externally supplied system role
// and parameter overrides onto existing default assistants. Per field, an
// unset env var keeps the stored value and a set one overwrites it. Missing
// sessions or agents are logged and skipped, never fatal.
func (s *SessionService) UpdateDefaultAssistantsConfig(cfg *config.DefaultAgentsConfig) error {
	if cfg == nil {
		return nil
	}

	for _, assistant := range defaultAssistants {
		envCfg := assistant.envConfig(cfg)
		if envCfg == nil {
			continue
		}

		sess, err := s.FindByIDOrSlug(assistant.slug)
		if err != nil {
			log.Printf("UpdateDefaultAssistantsConfig: lookup failed for %s: %v", assistant.slug, err)
			continue
		}
		if sess == nil {
			log.Printf("UpdateDefaultAssistantsConfig: session not found for slug %s, skipping", assistant.slug)
			continue
		}
		if sess.Agent() == nil {
			log.Printf("UpdateDefaultAssistantsConfig: no agent linked to %s, skipping", assistant.slug)
			continue
		}

		patch := AgentPatch{}
		if envCfg.SystemRole != "" {
			role := envCfg.SystemRole
			patch.SystemRole = &role
		}
		if envCfg.Params != nil {
			patch.Params = map[string]ParamPatch{}
			if envCfg.Params.FrequencyPenalty != nil {
				patch.Params["frequency_penalty"] = ParamPatch{Value: envCfg.Params.FrequencyPenalty}
			}
			if envCfg.Params.PresencePenalty != nil {
				patch.Params["presence_penalty"] = ParamPatch{Value: envCfg.Params.PresencePenalty}
			}
			if envCfg.Params.Temperature != nil {
				patch.Params["temperature"] = ParamPatch{Value: envCfg.Params.Temperature}
			}
			if envCfg.Params.TopP != nil {
				patch.Params["top_p"] = ParamPatch{Value: envCfg.Params.TopP}
			}
		}
		if patch.isEmpty() {
			continue
		}

		if err := s.UpdateConfig(sess.ID, patch); err != nil {
			log.Printf("UpdateDefaultAssistantsConfig: update failed for %s: %v", assistant.slug, err)
		}
	}
	return nil
}
