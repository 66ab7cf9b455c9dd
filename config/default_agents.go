package config

import (
	"os"
	"strconv"
)

// AgentParams carries the optional sampling parameters supplied through the
// environment. A nil field means the variable was not set (keep whatever the
// agent already has).
type AgentParams struct {
	FrequencyPenalty *float64 `json:"frequency_penalty,omitempty"`
	PresencePenalty  *float64 `json:"presence_penalty,omitempty"`
	Temperature      *float64 `json:"temperature,omitempty"`
	TopP             *float64 `json:"top_p,omitempty"`
}

// DefaultAgentEnvConfig is the externally supplied override for one default
// assistant.
type DefaultAgentEnvConfig struct {
	SystemRole string
	Params     *AgentParams
}

// DefaultAgentsConfig holds the per-assistant overrides parsed from the
// environment. A nil entry means no variables were set for that assistant.
type DefaultAgentsConfig struct {
	ReadinessPlanAgent *DefaultAgentEnvConfig
	CheckpointAgent    *DefaultAgentEnvConfig
	QAAgent            *DefaultAgentEnvConfig
}

// parseParam parses one env var as a float and checks it against [min, max].
// Unset, non-numeric and out-of-range values are all ignored.
func parseParam(key string, min, max float64) *float64 {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}

	value, err := strconv.ParseFloat(raw, 64)
	if err != nil || value < min || value > max {
		return nil
	}
	return &value
}

func parseAgentConfig(prefix string) *DefaultAgentEnvConfig {
	systemRole := os.Getenv(prefix + "_SYSTEM_ROLE")

	params := &AgentParams{
		FrequencyPenalty: parseParam(prefix+"_FREQUENCY_PENALTY", 0, 2),
		PresencePenalty:  parseParam(prefix+"_PRESENCE_PENALTY", 0, 2),
		Temperature:      parseParam(prefix+"_TEMPERATURE", 0, 2),
		TopP:             parseParam(prefix+"_TOP_P", 0, 1),
	}

	hasParams := params.FrequencyPenalty != nil || params.PresencePenalty != nil ||
		params.Temperature != nil || params.TopP != nil

	if systemRole == "" && !hasParams {
		return nil
	}

	cfg := &DefaultAgentEnvConfig{SystemRole: systemRole}
	if hasParams {
		cfg.Params = params
	}
	return cfg
}

// ParseServerDefaultAgent reads the server-wide default agent override
// (DEFAULT_AGENT_SYSTEM_ROLE, DEFAULT_AGENT_TEMPERATURE, ...). It applies to
// every seeded session beneath any per-assistant override.
func ParseServerDefaultAgent() *DefaultAgentEnvConfig {
	return parseAgentConfig("DEFAULT_AGENT")
}

// ParseDefaultAgents reads the default-assistant overrides from environment
// variables.
//
// Variable format (same pattern for CHECKPOINT_AGENT_* and QA_AGENT_*):
//   - READINESS_PLAN_AGENT_SYSTEM_ROLE: system role text
//   - READINESS_PLAN_AGENT_FREQUENCY_PENALTY: frequency penalty (0-2)
//   - READINESS_PLAN_AGENT_PRESENCE_PENALTY: presence penalty (0-2)
//   - READINESS_PLAN_AGENT_TEMPERATURE: temperature (0-2)
//   - READINESS_PLAN_AGENT_TOP_P: top p (0-1)
func ParseDefaultAgents() *DefaultAgentsConfig {
	return &DefaultAgentsConfig{
		ReadinessPlanAgent: parseAgentConfig("READINESS_PLAN_AGENT"),
		CheckpointAgent:    parseAgentConfig("CHECKPOINT_AGENT"),
		QAAgent:            parseAgentConfig("QA_AGENT"),
	}
}
