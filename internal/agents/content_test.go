package agents

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/edumesones/clientflow-pro/internal/models"
	"github.com/edumesones/clientflow-pro/internal/store"
)

func TestDetectIndustry(t *testing.T) {
	cases := map[string]string{
		"Personal Trainer":     "fitness",
		"Clinical Psychologist": "therapy",
		"Business Strategy":    "consulting",
		"Hair Salon":           "beauty",
		"Tax Attorney":         "legal",
		"Dog Walker":           "services",
		"":                     "services",
	}
	for specialty, want := range cases {
		if got := detectIndustry(specialty); got != want {
			t.Errorf("detectIndustry(%q) = %q, want %q", specialty, got, want)
		}
	}
}

func TestContentTopUpAndSchedule(t *testing.T) {
	s := store.NewInMemoryStore()
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	seedProfessional(s, "prof-1", "Carlos Gil", "Personal Trainer")

	gen := &stubGenerator{jsonErr: errors.New("model unavailable")}
	agent := NewContentAgent(s, gen, fixedClock(now), DefaultContentConfig())
	summary := agent.Run(context.Background())

	if summary.Counts["drafts_created"] != 5 {
		t.Fatalf("expected 5 drafts, got %d", summary.Counts["drafts_created"])
	}
	if summary.Counts["posts_scheduled"] != 5 {
		t.Fatalf("expected all drafts scheduled, got %d", summary.Counts["posts_scheduled"])
	}

	strategy, err := s.GetContentStrategy("prof-1")
	if err != nil {
		t.Fatalf("expected auto-created strategy: %v", err)
	}
	if !strategy.IsActive || strategy.ToneOfVoice == "" {
		t.Errorf("unexpected default strategy: %+v", strategy)
	}

	pending, err := s.CountPendingContent("prof-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pending != 5 {
		t.Errorf("expected 5 pending posts, got %d", pending)
	}

	// The queue is full, so a second run is a no-op.
	second := agent.Run(context.Background())
	if second.Counts["drafts_created"] != 0 || second.Counts["posts_scheduled"] != 0 {
		t.Errorf("second run should be a no-op, got %v", second.Counts)
	}
}

func TestContentDraftPromotion(t *testing.T) {
	s := store.NewInMemoryStore()
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	seedProfessional(s, "prof-1", "Carlos Gil", "Personal Trainer")
	if err := s.SaveGeneratedContent(models.GeneratedContent{
		ID:             "content-1",
		ProfessionalID: "prof-1",
		Platform:       "instagram",
		Title:          "Test post",
		Body:           "body",
		Status:         models.ContentStatusDraft,
		CreatedAt:      now,
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Pin the strategy and fill the queue so the run only schedules.
	if err := s.SaveContentStrategy(models.ContentStrategy{
		ProfessionalID: "prof-1", ToneOfVoice: "direct", IsActive: true, CreatedAt: now,
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cfg := DefaultContentConfig()
	cfg.PendingWatermark = 1
	agent := NewContentAgent(s, &stubGenerator{}, fixedClock(now), cfg)
	summary := agent.Run(context.Background())
	if summary.Counts["posts_scheduled"] != 1 {
		t.Fatalf("expected 1 scheduled post, got %d", summary.Counts["posts_scheduled"])
	}

	drafts, err := s.ListDraftContent()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(drafts) != 0 {
		t.Fatalf("expected no drafts left, got %d", len(drafts))
	}
}

func TestContentSkipsInactiveStrategy(t *testing.T) {
	s := store.NewInMemoryStore()
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	seedProfessional(s, "prof-1", "Carlos Gil", "Personal Trainer")
	if err := s.SaveContentStrategy(models.ContentStrategy{
		ProfessionalID: "prof-1", ToneOfVoice: "direct", IsActive: false, CreatedAt: now,
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// A draft left over from before the strategy was switched off.
	if err := s.SaveGeneratedContent(models.GeneratedContent{
		ID: "content-1", ProfessionalID: "prof-1", Platform: "instagram",
		Title: "Leftover", Body: "body", Status: models.ContentStatusDraft, CreatedAt: now,
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	agent := NewContentAgent(s, &stubGenerator{}, fixedClock(now), DefaultContentConfig())
	summary := agent.Run(context.Background())
	if summary.Counts["drafts_created"] != 0 {
		t.Errorf("expected no drafts for an inactive strategy, got %d", summary.Counts["drafts_created"])
	}
	if summary.Counts["posts_scheduled"] != 0 {
		t.Errorf("expected parked draft to stay put, got %d scheduled", summary.Counts["posts_scheduled"])
	}
}
