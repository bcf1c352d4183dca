package agents

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/edumesones/clientflow-pro/internal/models"
	"github.com/edumesones/clientflow-pro/internal/store"
)

func seedLead(s store.Store, id string, status models.LeadStatus) {
	_ = s.SaveLead(models.Lead{
		ID:             id,
		ProfessionalID: "prof-1",
		Name:           "Luis Vega",
		Email:          "luis@example.com",
		Message:        "Do you have evening slots?",
		Status:         status,
		CreatedAt:      time.Date(2026, 3, 9, 12, 0, 0, 0, time.UTC),
	})
}

func TestProcessNewLeadBuildsWholeSequence(t *testing.T) {
	s := store.NewInMemoryStore()
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	seedLead(s, "lead-1", models.LeadStatusNew)

	agent := NewNurtureAgent(s, &stubGenerator{}, &stubDispatcher{}, fixedClock(now), DefaultNurtureConfig())
	if err := agent.ProcessNewLead(context.Background(), "lead-1", "nurture7"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	actions, err := s.ListDueActions(now.Add(200 * time.Hour))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(actions) != 3 {
		t.Fatalf("expected 3 persisted actions, got %d", len(actions))
	}
	for i, action := range actions {
		if action.StepNumber != i+1 {
			t.Errorf("action %d has step number %d", i, action.StepNumber)
		}
		if action.Content == "" {
			t.Errorf("action %d has empty content", i)
		}
		if i > 0 && !actions[i].ScheduledAt.After(actions[i-1].ScheduledAt) {
			t.Errorf("action %d not scheduled after its predecessor", i)
		}
	}
	if actions[0].Subject == "" {
		t.Error("expected a subject on the first email step")
	}

	lead, err := s.GetLead("lead-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if lead.Status != models.LeadStatusContacted {
		t.Errorf("expected contacted lead, got %s", lead.Status)
	}

	err = agent.ProcessNewLead(context.Background(), "lead-1", "nurture7")
	if !errors.Is(err, models.ErrSequenceExists) {
		t.Errorf("expected ErrSequenceExists on repeat, got %v", err)
	}
}

func TestProcessNewLeadRejectsUnknownTemplate(t *testing.T) {
	s := store.NewInMemoryStore()
	seedLead(s, "lead-1", models.LeadStatusNew)
	agent := NewNurtureAgent(s, &stubGenerator{}, &stubDispatcher{}, fixedClock(time.Now()), DefaultNurtureConfig())
	err := agent.ProcessNewLead(context.Background(), "lead-1", "no-such-template")
	if !errors.Is(err, models.ErrUnknownTemplate) {
		t.Errorf("expected ErrUnknownTemplate, got %v", err)
	}
}

func TestNurtureRunStartsAndSendsFirstStep(t *testing.T) {
	s := store.NewInMemoryStore()
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	seedLead(s, "lead-1", models.LeadStatusNew)

	d := &stubDispatcher{}
	agent := NewNurtureAgent(s, &stubGenerator{}, d, fixedClock(now), DefaultNurtureConfig())
	summary := agent.Run(context.Background())

	if summary.Counts["sequences_created"] != 1 {
		t.Errorf("expected 1 sequence created, got %d", summary.Counts["sequences_created"])
	}
	if summary.Counts["actions_sent"] != 1 {
		t.Fatalf("expected the immediate first step to be sent, got %d", summary.Counts["actions_sent"])
	}
	if len(d.sent) != 1 || d.sent[0].Recipient != "luis@example.com" {
		t.Fatalf("unexpected dispatches: %+v", d.sent)
	}

	// The two later steps stay scheduled.
	due, err := s.ListDueActions(now.Add(200 * time.Hour))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(due) != 2 {
		t.Errorf("expected 2 remaining scheduled actions, got %d", len(due))
	}
}

func TestNurtureDispatchFailureIsNotRetried(t *testing.T) {
	s := store.NewInMemoryStore()
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	seedLead(s, "lead-1", models.LeadStatusNew)

	d := &stubDispatcher{fail: true}
	agent := NewNurtureAgent(s, &stubGenerator{}, d, fixedClock(now), DefaultNurtureConfig())
	summary := agent.Run(context.Background())
	if summary.Counts["actions_failed"] != 1 {
		t.Fatalf("expected 1 failed action, got %d", summary.Counts["actions_failed"])
	}

	// A later healthy run must not resurrect the failed step.
	d.fail = false
	summary = agent.Run(context.Background())
	if summary.Counts["actions_sent"] != 0 {
		t.Errorf("failed action was retried")
	}
}

func TestNurtureDefersActionsOnDisabledChannel(t *testing.T) {
	s := store.NewInMemoryStore()
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	seedLead(s, "lead-1", models.LeadStatusNew)

	d := &stubDispatcher{disabled: map[models.Channel]bool{models.ChannelEmail: true}}
	agent := NewNurtureAgent(s, &stubGenerator{}, d, fixedClock(now), DefaultNurtureConfig())
	summary := agent.Run(context.Background())
	if summary.Counts["actions_deferred"] != 1 {
		t.Fatalf("expected 1 deferred action, got %d", summary.Counts["actions_deferred"])
	}
	if summary.Counts["actions_sent"] != 0 || summary.Counts["actions_failed"] != 0 {
		t.Fatalf("deferred action was claimed: %+v", summary.Counts)
	}
	if len(d.sent) != 0 {
		t.Fatalf("expected no sends, got %d", len(d.sent))
	}

	// Once the channel comes back the action goes out as usual.
	d.disabled = nil
	summary = agent.Run(context.Background())
	if summary.Counts["actions_sent"] != 1 {
		t.Errorf("expected the deferred action to send, got %d", summary.Counts["actions_sent"])
	}
}

func TestNurtureReplyAnalysisFallsBackToNeutral(t *testing.T) {
	s := store.NewInMemoryStore()
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	seedLead(s, "lead-1", models.LeadStatusNew)

	gen := &stubGenerator{jsonErr: errors.New("model returned prose")}
	agent := NewNurtureAgent(s, gen, &stubDispatcher{}, fixedClock(now), DefaultNurtureConfig())
	agent.Run(context.Background())

	replied := firstSentAction(t, s, "lead-1")
	if _, err := s.RecordActionReply(replied, "need this urgently"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	summary := agent.Run(context.Background())
	if summary.Counts["replies_analyzed"] != 1 {
		t.Fatalf("expected 1 analyzed reply, got %d", summary.Counts["replies_analyzed"])
	}
	insight, err := s.GetLeadInsight("lead-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if insight.Sentiment != "neutral" || insight.UrgencyLevel != 5 {
		t.Errorf("expected neutral baseline, got %s/%d", insight.Sentiment, insight.UrgencyLevel)
	}
}

func TestNurtureFlagsHotLeadOnUrgency(t *testing.T) {
	s := store.NewInMemoryStore()
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	seedLead(s, "lead-1", models.LeadStatusNew)

	gen := &stubGenerator{jsonRaw: `{"sentiment":"positive","urgency_level":9,"pain_points":["scheduling"],"decision_timeline":"immediate","recommended_approach":"call today"}`}
	agent := NewNurtureAgent(s, gen, &stubDispatcher{}, fixedClock(now), DefaultNurtureConfig())
	agent.Run(context.Background())

	replied := firstSentAction(t, s, "lead-1")
	if _, err := s.RecordActionReply(replied, "can we start this week?"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	summary := agent.Run(context.Background())
	if summary.Counts["leads_flagged_hot"] != 1 {
		t.Fatalf("expected 1 hot lead, got %d", summary.Counts["leads_flagged_hot"])
	}
	lead, err := s.GetLead("lead-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !lead.HighPriority {
		t.Error("expected high priority flag")
	}

	// The flag is one-way and counted once.
	summary = agent.Run(context.Background())
	if summary.Counts["leads_flagged_hot"] != 0 {
		t.Errorf("hot flag counted twice")
	}
}

// firstSentAction returns the ID of the lead's earliest sent step.
func firstSentAction(t *testing.T, s store.Store, leadID string) string {
	t.Helper()
	actions, err := s.ListActionsByLead(leadID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, a := range actions {
		if a.Status == models.ActionStatusSent {
			return a.ID
		}
	}
	t.Fatal("no sent action found")
	return ""
}
