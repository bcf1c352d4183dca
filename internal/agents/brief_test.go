package agents

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/edumesones/clientflow-pro/internal/models"
	"github.com/edumesones/clientflow-pro/internal/store"
)

func TestBriefGeneratedForImminentAppointment(t *testing.T) {
	s := store.NewInMemoryStore()
	now := time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)
	seedClient(s, "client-1", "Ana Torres", "ana@example.com")
	seedProfessional(s, "prof-1", "Marta Ruiz", "therapist")
	if err := s.SaveAppointment(models.Appointment{
		ID:             "apt-1",
		ProfessionalID: "prof-1",
		ClientID:       "client-1",
		Date:           time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		StartTime:      "14:30",
		Status:         models.AppointmentStatusConfirmed,
		ServiceType:    "initial consultation",
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	gen := &stubGenerator{jsonRaw: `{"executive_summary":"First session with Ana.","open_topics":["goals"],"follow_up_items":[],"communication_style":"direct","suggested_questions":["What brings you in?"],"materials":["intake form"]}`}
	agent := NewBriefAgent(s, gen, fixedClock(now), DefaultBriefConfig())
	summary := agent.Run(context.Background())
	if summary.Counts["briefs_generated"] != 1 {
		t.Fatalf("expected 1 brief, got %d", summary.Counts["briefs_generated"])
	}

	brief, err := s.GetBriefByAppointment("apt-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if brief.ExecutiveSummary != "First session with Ana." {
		t.Errorf("unexpected summary %q", brief.ExecutiveSummary)
	}
	if brief.Status != models.BriefStatusGenerated || brief.GeneratedAt == nil {
		t.Errorf("unexpected brief state: status=%s", brief.Status)
	}

	// Regenerating is an in-place update, not a second brief.
	second := agent.Run(context.Background())
	if second.Counts["briefs_generated"] != 0 {
		t.Errorf("brief generated twice for the same appointment")
	}
}

func TestBriefSkipsAppointmentOutsideLookahead(t *testing.T) {
	s := store.NewInMemoryStore()
	now := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	seedClient(s, "client-1", "Ana Torres", "ana@example.com")
	seedProfessional(s, "prof-1", "Marta Ruiz", "therapist")
	if err := s.SaveAppointment(models.Appointment{
		ID:             "apt-later",
		ProfessionalID: "prof-1",
		ClientID:       "client-1",
		Date:           time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		StartTime:      "16:00",
		Status:         models.AppointmentStatusConfirmed,
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	agent := NewBriefAgent(s, &stubGenerator{}, fixedClock(now), DefaultBriefConfig())
	summary := agent.Run(context.Background())
	if summary.Counts["briefs_generated"] != 0 {
		t.Errorf("brief generated too early")
	}
	if _, err := s.GetBriefByAppointment("apt-later"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("expected no brief yet, got %v", err)
	}
}

func TestBriefFallsBackWhenGeneratorFails(t *testing.T) {
	s := store.NewInMemoryStore()
	now := time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)
	seedClient(s, "client-1", "Ana Torres", "ana@example.com")
	seedProfessional(s, "prof-1", "Marta Ruiz", "therapist")
	if err := s.SaveAppointment(models.Appointment{
		ID:             "apt-1",
		ProfessionalID: "prof-1",
		ClientID:       "client-1",
		Date:           time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		StartTime:      "14:30",
		Status:         models.AppointmentStatusConfirmed,
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	gen := &stubGenerator{jsonErr: errors.New("model unavailable")}
	agent := NewBriefAgent(s, gen, fixedClock(now), DefaultBriefConfig())
	if err := agent.GenerateBriefForAppointment(context.Background(), "apt-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	brief, err := s.GetBriefByAppointment("apt-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if brief.ExecutiveSummary == "" {
		t.Error("expected a fallback executive summary")
	}
	if len(brief.SuggestedQuestions) == 0 {
		t.Error("expected fallback suggested questions")
	}
}

func TestBriefSkipsLeadOnlyAppointment(t *testing.T) {
	s := store.NewInMemoryStore()
	now := time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)
	if err := s.SaveAppointment(models.Appointment{
		ID:        "apt-lead",
		LeadName:  "Walk In",
		LeadEmail: "walkin@example.com",
		Date:      time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		StartTime: "14:30",
		Status:    models.AppointmentStatusPending,
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	agent := NewBriefAgent(s, &stubGenerator{}, fixedClock(now), DefaultBriefConfig())
	if err := agent.GenerateBriefForAppointment(context.Background(), "apt-lead"); err != nil {
		t.Fatalf("expected a silent skip, got %v", err)
	}
	if _, err := s.GetBriefByAppointment("apt-lead"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("expected no brief for lead-only appointment, got %v", err)
	}
}

func TestClientInsightRefresh(t *testing.T) {
	s := store.NewInMemoryStore()
	now := time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)
	seedClient(s, "client-1", "Ana Torres", "ana@example.com")
	seedProfessional(s, "prof-1", "Marta Ruiz", "therapist")
	for i := 0; i < 3; i++ {
		if err := s.SaveAppointment(models.Appointment{
			ID:             "apt-" + string(rune('a'+i)),
			ProfessionalID: "prof-1",
			ClientID:       "client-1",
			Date:           now.AddDate(0, 0, -(i + 1)),
			Status:         models.AppointmentStatusCompleted,
			ServiceType:    "session",
		}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	gen := &stubGenerator{jsonErr: errors.New("model unavailable")}
	agent := NewBriefAgent(s, gen, fixedClock(now), DefaultBriefConfig())
	summary := agent.Run(context.Background())
	if summary.Counts["insights_refreshed"] != 1 {
		t.Fatalf("expected 1 insight refresh, got %d", summary.Counts["insights_refreshed"])
	}

	insight, err := s.GetClientInsight("client-1", "prof-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if insight.TotalAppointments != 3 {
		t.Errorf("expected 3 total appointments, got %d", insight.TotalAppointments)
	}
	if len(insight.CommonTopics) == 0 {
		t.Error("expected service types as fallback common topics")
	}
}

func TestRecordClientNote(t *testing.T) {
	s := store.NewInMemoryStore()
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	seedClient(s, "client-1", "Ana Torres", "ana@example.com")
	seedProfessional(s, "prof-1", "Marta Ruiz", "massage therapist")

	agent := NewBriefAgent(s, &stubGenerator{}, fixedClock(now), DefaultBriefConfig())
	note, err := agent.RecordClientNote("client-1", "prof-1", "  Prefers morning sessions.  ", "offer the 9am slot")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(note.ID, "note") {
		t.Errorf("unexpected note ID %q", note.ID)
	}
	if note.Content != "Prefers morning sessions." || note.NextSteps != "offer the 9am slot" {
		t.Errorf("unexpected note fields: %+v", note)
	}
	if !note.CreatedAt.Equal(now) {
		t.Errorf("unexpected created_at %v", note.CreatedAt)
	}

	saved, err := s.ListClientNotes("client-1", "prof-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(saved) != 1 || saved[0].ID != note.ID {
		t.Fatalf("expected the note to be listed, got %+v", saved)
	}

	if _, err := agent.RecordClientNote("client-1", "prof-1", "   ", ""); !errors.Is(err, models.ErrEmptyNote) {
		t.Errorf("expected ErrEmptyNote, got %v", err)
	}
	if _, err := agent.RecordClientNote("ghost", "prof-1", "real content", ""); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown client, got %v", err)
	}
}
