package agents

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/edumesones/clientflow-pro/internal/models"
	"github.com/edumesones/clientflow-pro/internal/store"
)

func completedAppointment(updatedAt time.Time) models.Appointment {
	return models.Appointment{
		ID:             "apt-1",
		ProfessionalID: "prof-1",
		ClientID:       "client-1",
		Date:           updatedAt.Truncate(24 * time.Hour),
		StartTime:      "10:00",
		Status:         models.AppointmentStatusCompleted,
		ServiceType:    "deep tissue massage",
		UpdatedAt:      updatedAt,
	}
}

func TestReviewRequestSentOnce(t *testing.T) {
	s := store.NewInMemoryStore()
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	seedClient(s, "client-1", "Ana Torres", "ana@example.com")
	seedProfessional(s, "prof-1", "Marta Ruiz", "massage therapist")
	if err := s.SaveAppointment(completedAppointment(now.Add(-36 * time.Hour))); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	d := &stubDispatcher{}
	agent := NewReviewAgent(s, &stubGenerator{}, d, fixedClock(now), DefaultReviewConfig())

	first := agent.Run(context.Background())
	if first.Counts["requests_sent"] != 1 {
		t.Fatalf("expected 1 request, got %d", first.Counts["requests_sent"])
	}
	second := agent.Run(context.Background())
	if second.Counts["requests_sent"] != 0 {
		t.Errorf("request repeated")
	}
	if len(d.sent) != 1 || d.sent[0].Recipient != "ana@example.com" {
		t.Fatalf("unexpected dispatches: %+v", d.sent)
	}

	has, err := s.HasReviewRequestForAppointment("apt-1")
	if err != nil || !has {
		t.Errorf("expected a persisted review request (has=%v, err=%v)", has, err)
	}
	apt, err := s.GetAppointment("apt-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !apt.ReviewRequested {
		t.Error("expected review_requested flag")
	}
}

func TestReviewRequestRespectsWindow(t *testing.T) {
	s := store.NewInMemoryStore()
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	seedClient(s, "client-1", "Ana Torres", "ana@example.com")
	seedProfessional(s, "prof-1", "Marta Ruiz", "massage therapist")
	// Completed only 2 hours ago: too fresh to ask.
	if err := s.SaveAppointment(completedAppointment(now.Add(-2 * time.Hour))); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	agent := NewReviewAgent(s, &stubGenerator{}, &stubDispatcher{}, fixedClock(now), DefaultReviewConfig())
	summary := agent.Run(context.Background())
	if summary.Counts["requests_sent"] != 0 {
		t.Errorf("asked for a review too early")
	}
}

func seedReviewRequest(t *testing.T, s store.Store, id string, sentAt time.Time) {
	t.Helper()
	err := s.SaveReviewRequest(models.ReviewRequest{
		ID:             id,
		AppointmentID:  "apt-1",
		ProfessionalID: "prof-1",
		ClientID:       "client-1",
		Status:         models.ReviewStatusRequested,
		SentAt:         &sentAt,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSubmitReviewPublishesHighRating(t *testing.T) {
	s := store.NewInMemoryStore()
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	seedClient(s, "client-1", "Ana Torres", "ana@example.com")
	seedProfessional(s, "prof-1", "Marta Ruiz", "massage therapist")
	if err := s.SaveAppointment(completedAppointment(now.Add(-36 * time.Hour))); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// The request below stands in for an earlier run, so the flag is claimed.
	if _, err := s.ClaimReviewRequested("apt-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	seedReviewRequest(t, s, "req-1", now.Add(-time.Hour))

	d := &stubDispatcher{}
	agent := NewReviewAgent(s, &stubGenerator{}, d, fixedClock(now), DefaultReviewConfig())
	err := agent.SubmitReview(context.Background(), "req-1", 5, "Incredible massage, my back pain is gone", "Ana T.")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	req, err := s.GetReviewRequest("req-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// A five-star submission publishes right away, not on a later run.
	if req.Status != models.ReviewStatusPublished || req.Rating != 5 {
		t.Fatalf("unexpected request state: status=%s rating=%d", req.Status, req.Rating)
	}
	if req.PublishedAt == nil || !req.PublishedAt.Equal(now) {
		t.Fatalf("expected published_at set at submission, got %v", req.PublishedAt)
	}
	if len(d.sent) != 1 {
		t.Errorf("expected a thank-you message, got %d sends", len(d.sent))
	}

	reviews, err := s.ListPublicReviews("prof-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(reviews) != 1 {
		t.Fatalf("expected 1 public review, got %d", len(reviews))
	}
	pub := reviews[0]
	if !pub.IsFeatured || pub.PublishedAt == nil {
		t.Errorf("expected a featured published review: %+v", pub)
	}
	if pub.ServiceReceived != "deep tissue massage" {
		t.Errorf("unexpected service %q", pub.ServiceReceived)
	}

	// Nothing remains for the publish sweep to pick up.
	summary := agent.Run(context.Background())
	if summary.Counts["reviews_published"] != 0 {
		t.Errorf("review published twice")
	}
}

func TestSubmitReviewLowRatingStaysPrivate(t *testing.T) {
	s := store.NewInMemoryStore()
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	seedClient(s, "client-1", "Ana Torres", "ana@example.com")
	seedReviewRequest(t, s, "req-1", now.Add(-time.Hour))

	agent := NewReviewAgent(s, &stubGenerator{}, &stubDispatcher{}, fixedClock(now), DefaultReviewConfig())
	if err := agent.SubmitReview(context.Background(), "req-1", 3, "It was fine", "Ana T."); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	summary := agent.Run(context.Background())
	if summary.Counts["reviews_published"] != 0 {
		t.Errorf("low rating was published")
	}
	req, err := s.GetReviewRequest("req-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Status != models.ReviewStatusReceived {
		t.Errorf("expected review to stay received, got %s", req.Status)
	}

	// Lowering the threshold lets the publish sweep pick the review up.
	relaxed := DefaultReviewConfig()
	relaxed.PublishThreshold = 3
	agent = NewReviewAgent(s, &stubGenerator{}, &stubDispatcher{}, fixedClock(now), relaxed)
	summary = agent.Run(context.Background())
	if summary.Counts["reviews_published"] != 1 {
		t.Fatalf("expected the sweep to publish 1 review, got %d", summary.Counts["reviews_published"])
	}
	req, err = s.GetReviewRequest("req-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Status != models.ReviewStatusPublished || req.PublishedAt == nil {
		t.Errorf("expected the sweep to publish the request, got %s", req.Status)
	}
}

func TestSubmitReviewValidation(t *testing.T) {
	s := store.NewInMemoryStore()
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	seedReviewRequest(t, s, "req-1", now)

	agent := NewReviewAgent(s, &stubGenerator{}, &stubDispatcher{}, fixedClock(now), DefaultReviewConfig())
	if err := agent.SubmitReview(context.Background(), "req-1", 0, "x", "A"); !errors.Is(err, models.ErrInvalidRating) {
		t.Errorf("expected ErrInvalidRating for 0, got %v", err)
	}
	if err := agent.SubmitReview(context.Background(), "req-1", 6, "x", "A"); !errors.Is(err, models.ErrInvalidRating) {
		t.Errorf("expected ErrInvalidRating for 6, got %v", err)
	}
	if err := agent.SubmitReview(context.Background(), "missing", 4, "x", "A"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	// A second submission against the same request is rejected.
	if err := agent.SubmitReview(context.Background(), "req-1", 4, "great", "A"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := agent.SubmitReview(context.Background(), "req-1", 5, "even better", "A"); !errors.Is(err, models.ErrInvalidStatus) {
		t.Errorf("expected ErrInvalidStatus on resubmission, got %v", err)
	}
}

func TestExtractKeywords(t *testing.T) {
	got := extractKeywords("The massage was incredible, really incredible. My back pain is gone!")
	want := []string{"massage", "incredible", "back", "pain", "gone"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("extractKeywords = %v, want %v", got, want)
	}
	if kws := extractKeywords(""); len(kws) != 0 {
		t.Errorf("expected no keywords for empty text, got %v", kws)
	}
}
