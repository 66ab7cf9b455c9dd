package services

import (
	"testing"

	"github.com/sahilchouksey/agent-chat-api/config"
	"github.com/sahilchouksey/agent-chat-api/model"
)

func f64(v float64) *float64 { return &v }

func TestCreateInboxIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	svc := NewSessionService(db, "user-1")

	first, err := svc.CreateInbox(nil)
	if err != nil {
		t.Fatalf("first inbox create: %v", err)
	}
	if first.Slug == nil || *first.Slug != model.InboxSlug {
		t.Fatalf("inbox session must carry the inbox slug: %+v", first.Slug)
	}

	second, err := svc.CreateInbox(nil)
	if err != nil {
		t.Fatalf("second inbox create: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("inbox create must return the existing session, got %s then %s", first.ID, second.ID)
	}

	agent := loadAgentFor(t, svc, first.ID)
	if agent.Avatar == nil || *agent.Avatar != model.DefaultInboxAvatar {
		t.Fatalf("inbox agent avatar wrong: %+v", agent.Avatar)
	}
	if agent.Model != "gpt-4o-mini" || agent.Provider != "openai" {
		t.Fatalf("inbox agent must use the built-in baseline: %+v", agent)
	}
}

func TestCreateInboxWithServerOverride(t *testing.T) {
	db := newTestDB(t)
	svc := NewSessionService(db, "user-1")

	inbox, err := svc.CreateInbox(&config.DefaultAgentEnvConfig{
		SystemRole: "You are the inbox.",
		Params:     &config.AgentParams{Temperature: f64(0.4)},
	})
	if err != nil {
		t.Fatalf("create inbox: %v", err)
	}

	agent := loadAgentFor(t, svc, inbox.ID)
	if agent.SystemRole == nil || *agent.SystemRole != "You are the inbox." {
		t.Fatalf("system role override not applied: %+v", agent.SystemRole)
	}
	params := decodeParams(t, agent.Params)
	if params["temperature"] != 0.4 {
		t.Fatalf("temperature override not applied: %v", params["temperature"])
	}
	// Baseline values stay beneath the override.
	if params["top_p"] != float64(1) {
		t.Fatalf("baseline top_p lost: %v", params["top_p"])
	}
}

func TestCreateDefaultAssistants(t *testing.T) {
	db := newTestDB(t)
	svc := NewSessionService(db, "user-1")

	created, err := svc.CreateDefaultAssistants(nil, nil)
	if err != nil {
		t.Fatalf("create default assistants: %v", err)
	}
	if len(created) != 3 {
		t.Fatalf("expected 3 seeded assistants, got %d", len(created))
	}

	for _, slug := range []string{"readiness-plan-agent", "checkpoint-agent", "qa-agent"} {
		sess, err := svc.FindByIDOrSlug(slug)
		if err != nil {
			t.Fatalf("lookup %s: %v", slug, err)
		}
		if sess == nil {
			t.Fatalf("assistant %s not seeded", slug)
		}
		agent := sess.Agent()
		if agent == nil {
			t.Fatalf("assistant %s has no linked agent", slug)
		}
		if agent.SystemRole == nil || *agent.SystemRole == "" {
			t.Fatalf("assistant %s must get its built-in system role", slug)
		}
	}

	// Seeding again must be a no-op.
	again, err := svc.CreateDefaultAssistants(nil, nil)
	if err != nil {
		t.Fatalf("second seeding: %v", err)
	}
	if len(again) != 0 {
		t.Fatalf("second seeding must create nothing, got %d", len(again))
	}

	var count int64
	db.Model(&model.Session{}).Where("user_id = ?", "user-1").Count(&count)
	if count != 3 {
		t.Fatalf("expected exactly 3 sessions, got %d", count)
	}
}

func TestCreateDefaultAssistantsConfigLayering(t *testing.T) {
	db := newTestDB(t)
	svc := NewSessionService(db, "user-1")

	serverDefault := &config.DefaultAgentEnvConfig{
		Params: &config.AgentParams{Temperature: f64(0.5)},
	}
	perAssistant := &config.DefaultAgentsConfig{
		ReadinessPlanAgent: &config.DefaultAgentEnvConfig{
			SystemRole: "Custom readiness role.",
			Params:     &config.AgentParams{Temperature: f64(0.9)},
		},
	}

	if _, err := svc.CreateDefaultAssistants(serverDefault, perAssistant); err != nil {
		t.Fatalf("create default assistants: %v", err)
	}

	// Per-assistant values win over the server-wide default.
	readiness, _ := svc.FindByIDOrSlug("readiness-plan-agent")
	readinessAgent := readiness.Agent()
	if readinessAgent.SystemRole == nil || *readinessAgent.SystemRole != "Custom readiness role." {
		t.Fatalf("per-assistant system role not applied: %+v", readinessAgent.SystemRole)
	}
	if got := decodeParams(t, readinessAgent.Params)["temperature"]; got != 0.9 {
		t.Fatalf("per-assistant temperature not applied: %v", got)
	}

	// Assistants without their own override get the server-wide default and
	// keep their built-in fallback role.
	checkpoint, _ := svc.FindByIDOrSlug("checkpoint-agent")
	checkpointAgent := checkpoint.Agent()
	if got := decodeParams(t, checkpointAgent.Params)["temperature"]; got != 0.5 {
		t.Fatalf("server default temperature not applied: %v", got)
	}
	if checkpointAgent.SystemRole == nil || *checkpointAgent.SystemRole == "" {
		t.Fatal("fallback system role lost")
	}
}

func TestUpdateDefaultAssistantsConfig(t *testing.T) {
	db := newTestDB(t)
	svc := NewSessionService(db, "user-1")

	if _, err := svc.CreateDefaultAssistants(nil, nil); err != nil {
		t.Fatalf("seed: %v", err)
	}

	cfg := &config.DefaultAgentsConfig{
		QAAgent: &config.DefaultAgentEnvConfig{
			SystemRole: "Updated QA role.",
			Params:     &config.AgentParams{TopP: f64(0.8)},
		},
	}
	if err := svc.UpdateDefaultAssistantsConfig(cfg); err != nil {
		t.Fatalf("update config: %v", err)
	}

	qa, _ := svc.FindByIDOrSlug("qa-agent")
	qaAgent := qa.Agent()
	if qaAgent.SystemRole == nil || *qaAgent.SystemRole != "Updated QA role." {
		t.Fatalf("system role not re-applied: %+v", qaAgent.SystemRole)
	}
	params := decodeParams(t, qaAgent.Params)
	if params["top_p"] != 0.8 {
		t.Fatalf("top_p not re-applied: %v", params["top_p"])
	}
	// Unset env fields keep the stored baseline values.
	if params["temperature"] != float64(1) {
		t.Fatalf("unset fields must keep stored values: %v", params["temperature"])
	}

	// Assistants without overrides stay untouched.
	checkpoint, _ := svc.FindByIDOrSlug("checkpoint-agent")
	if got := decodeParams(t, checkpoint.Agent().Params)["temperature"]; got != float64(1) {
		t.Fatalf("assistant without override changed: %v", got)
	}
}

func TestUpdateDefaultAssistantsConfigSkipsMissing(t *testing.T) {
	db := newTestDB(t)
	svc := NewSessionService(db, "user-1")

	// Nothing seeded yet; the sweep must log and continue, never fail.
	cfg := &config.DefaultAgentsConfig{
		QAAgent: &config.DefaultAgentEnvConfig{SystemRole: "role"},
	}
	if err := svc.UpdateDefaultAssistantsConfig(cfg); err != nil {
		t.Fatalf("missing assistants must be skipped, got %v", err)
	}
}

func TestUpdateDefaultAssistantsAvatars(t *testing.T) {
	db := newTestDB(t)
	svc := NewSessionService(db, "user-1")

	if _, err := svc.CreateDefaultAssistants(nil, nil); err != nil {
		t.Fatalf("seed: %v", err)
	}

	// Drift an avatar, then re-apply the canonical one.
	qa, _ := svc.FindByIDOrSlug("qa-agent")
	if err := svc.UpdateConfig(qa.ID, AgentPatch{Avatar: strPtr("💀")}); err != nil {
		t.Fatalf("drift avatar: %v", err)
	}

	if err := svc.UpdateDefaultAssistantsAvatars(); err != nil {
		t.Fatalf("update avatars: %v", err)
	}

	restored := loadAgentFor(t, svc, qa.ID)
	if restored.Avatar == nil || *restored.Avatar != "😉" {
		t.Fatalf("avatar not restored: %+v", restored.Avatar)
	}
}
