package config

import (
	"testing"
)

func TestParseDefaultAgentsEmpty(t *testing.T) {
	cfg := ParseDefaultAgents()

	if cfg.ReadinessPlanAgent != nil {
		t.Error("expected nil readiness plan agent when no env vars set")
	}
	if cfg.CheckpointAgent != nil {
		t.Error("expected nil checkpoint agent when no env vars set")
	}
	if cfg.QAAgent != nil {
		t.Error("expected nil qa agent when no env vars set")
	}
}

func TestParseDefaultAgentsSystemRoleOnly(t *testing.T) {
	t.Setenv("QA_AGENT_SYSTEM_ROLE", "You are a strict QA reviewer.")

	cfg := ParseDefaultAgents()

	if cfg.QAAgent == nil {
		t.Fatal("expected qa agent config")
	}
	if cfg.QAAgent.SystemRole != "You are a strict QA reviewer." {
		t.Errorf("unexpected system role: %q", cfg.QAAgent.SystemRole)
	}
	if cfg.QAAgent.Params != nil {
		t.Error("expected no params when only system role is set")
	}
}

func TestParseDefaultAgentsParams(t *testing.T) {
	t.Setenv("CHECKPOINT_AGENT_TEMPERATURE", "0.7")
	t.Setenv("CHECKPOINT_AGENT_TOP_P", "0.9")
	t.Setenv("CHECKPOINT_AGENT_FREQUENCY_PENALTY", "1.5")

	cfg := ParseDefaultAgents()

	if cfg.CheckpointAgent == nil || cfg.CheckpointAgent.Params == nil {
		t.Fatal("expected checkpoint agent params")
	}
	params := cfg.CheckpointAgent.Params
	if params.Temperature == nil || *params.Temperature != 0.7 {
		t.Errorf("temperature = %v, want 0.7", params.Temperature)
	}
	if params.TopP == nil || *params.TopP != 0.9 {
		t.Errorf("top_p = %v, want 0.9", params.TopP)
	}
	if params.FrequencyPenalty == nil || *params.FrequencyPenalty != 1.5 {
		t.Errorf("frequency_penalty = %v, want 1.5", params.FrequencyPenalty)
	}
	if params.PresencePenalty != nil {
		t.Error("presence_penalty should be nil when unset")
	}
}

func TestParseDefaultAgentsRejectsInvalidValues(t *testing.T) {
	t.Setenv("READINESS_PLAN_AGENT_TEMPERATURE", "3.5")   // above max
	t.Setenv("READINESS_PLAN_AGENT_TOP_P", "not-a-float") // non-numeric
	t.Setenv("READINESS_PLAN_AGENT_PRESENCE_PENALTY", "-1")

	cfg := ParseDefaultAgents()

	if cfg.ReadinessPlanAgent != nil {
		t.Errorf("expected nil config when every value is invalid, got %+v", cfg.ReadinessPlanAgent)
	}
}

func TestParseDefaultAgentsBoundaryValues(t *testing.T) {
	t.Setenv("QA_AGENT_TEMPERATURE", "0")
	t.Setenv("QA_AGENT_TOP_P", "1")

	cfg := ParseDefaultAgents()

	if cfg.QAAgent == nil || cfg.QAAgent.Params == nil {
		t.Fatal("expected qa agent params")
	}
	if cfg.QAAgent.Params.Temperature == nil || *cfg.QAAgent.Params.Temperature != 0 {
		t.Error("temperature 0 should be accepted")
	}
	if cfg.QAAgent.Params.TopP == nil || *cfg.QAAgent.Params.TopP != 1 {
		t.Error("top_p 1 should be accepted")
	}
}
