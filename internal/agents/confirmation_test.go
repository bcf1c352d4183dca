package agents

import (
	"context"
	"testing"
	"time"

	"github.com/edumesones/clientflow-pro/internal/models"
	"github.com/edumesones/clientflow-pro/internal/store"
)

func TestConfirmationReminderSentOnce(t *testing.T) {
	s := store.NewInMemoryStore()
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	seedClient(s, "client-1", "Ana Torres", "ana@example.com")
	if err := s.SaveAppointment(models.Appointment{
		ID:             "apt-1",
		ProfessionalID: "prof-1",
		ClientID:       "client-1",
		Date:           time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC),
		StartTime:      "10:00",
		Status:         models.AppointmentStatusConfirmed,
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	d := &stubDispatcher{}
	agent := NewConfirmationAgent(s, &stubGenerator{}, d, fixedClock(now), DefaultConfirmationConfig())

	first := agent.Run(context.Background())
	if first.Counts["reminders_24h_sent"] != 1 {
		t.Fatalf("expected 1 reminder on first run, got %d", first.Counts["reminders_24h_sent"])
	}
	second := agent.Run(context.Background())
	if second.Counts["reminders_24h_sent"] != 0 {
		t.Errorf("expected 0 reminders on second run, got %d", second.Counts["reminders_24h_sent"])
	}
	if len(d.sent) != 1 {
		t.Fatalf("expected exactly 1 message dispatched, got %d", len(d.sent))
	}
	if d.sent[0].Recipient != "ana@example.com" {
		t.Errorf("unexpected recipient %q", d.sent[0].Recipient)
	}

	apt, err := s.GetAppointment("apt-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !apt.Reminder24hSent {
		t.Error("expected reminder flag to be set")
	}
	conf, err := s.GetConfirmationByAppointment("apt-1")
	if err != nil {
		t.Fatalf("expected confirmation record: %v", err)
	}
	if conf.Status != models.ConfirmationStatusPending {
		t.Errorf("expected pending confirmation, got %s", conf.Status)
	}
}

func TestConfirmationSkipsCancelledAppointment(t *testing.T) {
	s := store.NewInMemoryStore()
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	seedClient(s, "client-1", "Ana Torres", "ana@example.com")
	if err := s.SaveAppointment(models.Appointment{
		ID:       "apt-cancelled",
		ClientID: "client-1",
		Date:     time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC),
		Status:   models.AppointmentStatusCancelled,
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	d := &stubDispatcher{}
	agent := NewConfirmationAgent(s, &stubGenerator{}, d, fixedClock(now), DefaultConfirmationConfig())
	summary := agent.Run(context.Background())
	if summary.Counts["reminders_24h_sent"] != 0 || len(d.sent) != 0 {
		t.Errorf("expected no reminders for cancelled appointment, got %d sent", len(d.sent))
	}
}

func TestConfirmationEscalatesToRescheduleOnce(t *testing.T) {
	s := store.NewInMemoryStore()
	start := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	current := start
	clock := func() time.Time { return current }

	seedClient(s, "client-1", "Ana Torres", "ana@example.com")
	if err := s.SaveAppointment(models.Appointment{
		ID:        "apt-1",
		ClientID:  "client-1",
		Date:      time.Date(2026, 3, 12, 0, 0, 0, 0, time.UTC),
		StartTime: "10:00",
		Status:    models.AppointmentStatusPending,
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	remindedAt := start.Add(-13 * time.Hour)
	if err := s.SaveConfirmation(models.Confirmation{
		ID:            "conf-1",
		AppointmentID: "apt-1",
		Status:        models.ConfirmationStatusPending,
		Reminder24hAt: &remindedAt,
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	d := &stubDispatcher{}
	agent := NewConfirmationAgent(s, &stubGenerator{}, d, clock, DefaultConfirmationConfig())

	summary := agent.Run(context.Background())
	if summary.Counts["no_responses"] != 1 {
		t.Fatalf("expected 1 no_response, got %d", summary.Counts["no_responses"])
	}
	if summary.Counts["reschedules_offered"] != 0 {
		t.Fatalf("reschedule offered too early")
	}

	// Past the reschedule delay the offer goes out exactly once.
	current = start.Add(6 * time.Hour)
	summary = agent.Run(context.Background())
	if summary.Counts["reschedules_offered"] != 1 {
		t.Fatalf("expected 1 reschedule offer, got %d", summary.Counts["reschedules_offered"])
	}
	summary = agent.Run(context.Background())
	if summary.Counts["reschedules_offered"] != 0 {
		t.Errorf("reschedule offer repeated")
	}

	conf, err := s.GetConfirmationByAppointment("apt-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if conf.Status != models.ConfirmationStatusNoResponse || !conf.AutoRescheduled {
		t.Errorf("unexpected confirmation state: status=%s autoRescheduled=%v", conf.Status, conf.AutoRescheduled)
	}
}

func TestReliabilityRefresh(t *testing.T) {
	s := store.NewInMemoryStore()
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	seedClient(s, "client-1", "Ana Torres", "ana@example.com")
	for i := 0; i < 10; i++ {
		status := models.AppointmentStatusCompleted
		if i < 2 {
			status = models.AppointmentStatusNoShow
		}
		if err := s.SaveAppointment(models.Appointment{
			ID:       "apt-" + string(rune('a'+i)),
			ClientID: "client-1",
			Date:     now.AddDate(0, 0, -(i + 1)),
			Status:   status,
		}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	// client-2's only no-show predates the lookback window; refreshing must
	// reset a stale counter, not skip the client.
	seedClient(s, "client-2", "Bea Sanz", "bea@example.com")
	if err := s.SaveAppointment(models.Appointment{
		ID:       "apt-old",
		ClientID: "client-2",
		Date:     now.AddDate(0, 0, -120),
		Status:   models.AppointmentStatusNoShow,
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.SaveReliabilityPattern(models.ReliabilityPattern{
		ClientID: "client-2", TotalAppointments: 1, NoShows: 1, ReliabilityScore: 0, UpdatedAt: now.AddDate(0, 0, -120),
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	agent := NewConfirmationAgent(s, &stubGenerator{}, &stubDispatcher{}, fixedClock(now), DefaultConfirmationConfig())
	summary := agent.Run(context.Background())
	if summary.Counts["reliability_refreshed"] != 2 {
		t.Fatalf("expected 2 reliability refreshes, got %d", summary.Counts["reliability_refreshed"])
	}

	p, err := s.GetReliabilityPattern("client-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.TotalAppointments != 10 || p.NoShows != 2 || p.ReliabilityScore != 80 {
		t.Errorf("unexpected pattern: total=%d noShows=%d score=%d", p.TotalAppointments, p.NoShows, p.ReliabilityScore)
	}

	stale, err := s.GetReliabilityPattern("client-2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stale.TotalAppointments != 0 || stale.ReliabilityScore != 100 {
		t.Errorf("expected stale counters to reset, got total=%d score=%d", stale.TotalAppointments, stale.ReliabilityScore)
	}
}

func TestComputeReliabilityScoreDefaults(t *testing.T) {
	if got := models.ComputeReliabilityScore(0, 0); got != 100 {
		t.Errorf("expected optimistic default 100, got %d", got)
	}
	if got := models.ComputeReliabilityScore(4, 4); got != 0 {
		t.Errorf("expected 0 for a full no-show record, got %d", got)
	}
}
