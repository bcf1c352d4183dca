package agents

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/edumesones/clientflow-pro/internal/models"
	"github.com/edumesones/clientflow-pro/internal/store"
	"github.com/edumesones/clientflow-pro/internal/util"
)

// ReviewConfig tunes the review funnel.
type ReviewConfig struct {
	// Requests go out for appointments completed between WindowMax and
	// WindowMin ago. The lower bound gives clients a day to decompress, the
	// upper bound keeps the ask fresh.
	WindowMin time.Duration
	WindowMax time.Duration
	// Channel carries the review request and thank-you messages.
	Channel models.Channel
	// PublishThreshold is the minimum rating published as a testimonial.
	PublishThreshold int
	// FeatureThreshold is the minimum rating highlighted on the booking page.
	FeatureThreshold int
}

// DefaultReviewConfig returns the production settings: a 24-48h window,
// email delivery, publish at 4 stars, feature at 5.
func DefaultReviewConfig() ReviewConfig {
	return ReviewConfig{
		WindowMin:        24 * time.Hour,
		WindowMax:        48 * time.Hour,
		Channel:          models.ChannelEmail,
		PublishThreshold: 4,
		FeatureThreshold: 5,
	}
}

// ReviewAgent asks for reviews after completed appointments, ingests
// submissions, and publishes the good ones as testimonials.
type ReviewAgent struct {
	store      store.Store
	gen        Generator
	dispatcher Dispatcher
	now        Clock
	cfg        ReviewConfig
}

// NewReviewAgent wires the review agent with its collaborators.
func NewReviewAgent(s store.Store, gen Generator, d Dispatcher, now Clock, cfg ReviewConfig) *ReviewAgent {
	return &ReviewAgent{store: s, gen: gen, dispatcher: d, now: now, cfg: cfg}
}

func (a *ReviewAgent) Name() string { return "review" }

// Run sends review requests for recently completed appointments and
// publishes received reviews that clear the rating threshold.
func (a *ReviewAgent) Run(ctx context.Context) models.RunSummary {
	summary := models.NewRunSummary(a.Name())
	a.requestReviews(ctx, &summary)
	a.publishReceived(&summary)
	slog.Debug("ReviewAgent run complete", "counts", summary.Counts, "errors", len(summary.Errors))
	return summary
}

func (a *ReviewAgent) requestReviews(ctx context.Context, summary *models.RunSummary) {
	if !a.dispatcher.Enabled(a.cfg.Channel) {
		slog.Warn("ReviewAgent request channel disabled, skipping requests", "channel", a.cfg.Channel)
		return
	}
	now := a.now()
	due, err := a.store.ListCompletedAppointmentsForReview(now.Add(-a.cfg.WindowMax), now.Add(-a.cfg.WindowMin))
	if err != nil {
		slog.Error("ReviewAgent failed to list completed appointments", "error", err)
		summary.AddError(err)
		return
	}
	for _, appt := range due {
		if err := a.requestOne(ctx, appt); err != nil {
			slog.Error("ReviewAgent request failed", "error", err, "appointmentID", appt.ID)
			summary.AddError(err)
			continue
		}
		summary.Add("requests_sent", 1)
	}
}

func (a *ReviewAgent) requestOne(ctx context.Context, appt models.Appointment) error {
	to, err := appointmentContact(a.store, appt)
	if err != nil {
		return fmt.Errorf("failed to resolve contact for appointment %s: %w", appt.ID, err)
	}
	professional, err := a.store.GetProfessional(appt.ProfessionalID)
	if err != nil {
		return fmt.Errorf("failed to load professional %s: %w", appt.ProfessionalID, err)
	}

	claimed, err := a.store.ClaimReviewRequested(appt.ID)
	if err != nil {
		return fmt.Errorf("failed to claim review request for appointment %s: %w", appt.ID, err)
	}
	if !claimed {
		// Another run got here first.
		return nil
	}

	message := a.gen.Generate(ctx,
		fmt.Sprintf("You write short, warm review requests on behalf of %s. One paragraph, no subject line.", professional.FullName),
		fmt.Sprintf("Ask %s for a review of their recent %s appointment. Mention it takes two minutes.", to.Name, appt.ServiceType),
		0.7)
	if message == "" {
		message = fmt.Sprintf("Hi %s, thank you for visiting %s. Would you take two minutes to share how it went? Your feedback means a lot.", to.Name, professional.FullName)
	}

	now := a.now()
	req := models.ReviewRequest{
		ID:             util.GenerateRandomID("rev", 16),
		AppointmentID:  appt.ID,
		ProfessionalID: appt.ProfessionalID,
		ClientID:       appt.ClientID,
		RequestMessage: message,
		Status:         models.ReviewStatusRequested,
		SentAt:         &now,
	}
	if err := a.store.SaveReviewRequest(req); err != nil {
		return fmt.Errorf("failed to save review request for appointment %s: %w", appt.ID, err)
	}

	if !a.dispatcher.Send(ctx, a.cfg.Channel, to.recipient(a.cfg.Channel), "How was your appointment?", message) {
		return fmt.Errorf("failed to dispatch review request %s on channel %s", req.ID, a.cfg.Channel)
	}
	return nil
}

// SubmitReview records a client's rating and text against a pending request.
// Ratings at or above the publish threshold are published immediately as a
// public testimonial; ratings of five are featured. Lower ratings stay
// received and private.
func (a *ReviewAgent) SubmitReview(ctx context.Context, requestID string, rating int, text, clientName string) error {
	if rating < 1 || rating > 5 {
		return models.ErrInvalidRating
	}
	req, err := a.store.GetReviewRequest(requestID)
	if err != nil {
		return fmt.Errorf("failed to load review request %s: %w", requestID, err)
	}
	if req.Status != models.ReviewStatusRequested {
		return fmt.Errorf("review request %s is %s: %w", requestID, req.Status, models.ErrInvalidStatus)
	}

	now := a.now()
	req.Rating = rating
	req.ReviewText = text
	req.Status = models.ReviewStatusReceived
	req.ReceivedAt = &now

	service := ""
	if appt, err := a.store.GetAppointment(req.AppointmentID); err == nil {
		service = appt.ServiceType
	}
	pub := models.PublicReview{
		ID:              util.GenerateRandomID("pub", 16),
		ProfessionalID:  req.ProfessionalID,
		ReviewRequestID: req.ID,
		ClientName:      clientName,
		Rating:          rating,
		ReviewText:      text,
		ServiceReceived: service,
		Keywords:        extractKeywords(text),
		IsFeatured:      rating >= a.cfg.FeatureThreshold,
	}
	if rating >= a.cfg.PublishThreshold {
		req.Status = models.ReviewStatusPublished
		req.PublishedAt = &now
		pub.PublishedAt = &now
	}
	if err := a.store.SaveReviewSubmission(*req, pub); err != nil {
		return fmt.Errorf("failed to save review submission %s: %w", requestID, err)
	}

	a.sendThankYou(ctx, *req, clientName, rating)
	return nil
}

// sendThankYou is best effort; a lost thank-you never blocks the submission.
func (a *ReviewAgent) sendThankYou(ctx context.Context, req models.ReviewRequest, clientName string, rating int) {
	if req.ClientID == "" {
		return
	}
	client, err := a.store.GetClient(req.ClientID)
	if err != nil {
		slog.Debug("ReviewAgent skipping thank-you, client not found", "clientID", req.ClientID)
		return
	}
	to := contact{Name: client.FullName, Email: client.Email, Phone: client.Phone}

	var body string
	if rating >= a.cfg.PublishThreshold {
		body = fmt.Sprintf("Thank you %s! We're thrilled you had a great experience and may feature your words on our page.", clientName)
	} else {
		body = fmt.Sprintf("Thank you for the honest feedback, %s. We're sorry it wasn't perfect and we'll use your comments to do better.", clientName)
	}
	if !a.dispatcher.Send(ctx, a.cfg.Channel, to.recipient(a.cfg.Channel), "Thank you for your review", body) {
		slog.Error("ReviewAgent thank-you dispatch failed", "requestID", req.ID)
	}
}

// publishReceived promotes received reviews at or above the threshold.
// Submissions publish inline, so this only catches rows that were below the
// threshold when submitted and now clear a lowered one. The received guard
// on the update makes repeated runs harmless.
func (a *ReviewAgent) publishReceived(summary *models.RunSummary) {
	received, err := a.store.ListReceivedReviewRequests()
	if err != nil {
		slog.Error("ReviewAgent failed to list received reviews", "error", err)
		summary.AddError(err)
		return
	}
	for _, req := range received {
		if req.Rating < a.cfg.PublishThreshold {
			continue
		}
		ok, err := a.store.PublishReviewRequest(req.ID, a.now())
		if err != nil {
			summary.AddError(err)
			continue
		}
		if ok {
			summary.Add("reviews_published", 1)
		}
	}
}

var keywordStopWords = map[string]bool{
	"the": true, "and": true, "was": true, "were": true, "with": true,
	"that": true, "this": true, "have": true, "had": true, "for": true,
	"very": true, "really": true, "from": true, "about": true, "would": true,
	"they": true, "them": true, "been": true, "just": true, "their": true,
}

// extractKeywords pulls up to ten distinctive lowercase words out of review
// text for search and display grouping.
func extractKeywords(text string) []string {
	seen := make(map[string]bool)
	var keywords []string
	for _, raw := range strings.Fields(strings.ToLower(text)) {
		word := strings.Trim(raw, ".,!?;:()\"'")
		if len(word) < 4 || keywordStopWords[word] || seen[word] {
			continue
		}
		seen[word] = true
		keywords = append(keywords, word)
		if len(keywords) == 10 {
			break
		}
	}
	return keywords
}
