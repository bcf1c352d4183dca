package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/edumesones/clientflow-pro/internal/models"
)

// dateLayout is the storage format for appointment calendar days. Dates are
// stored as text so day-equality queries behave identically on both backends.
const dateLayout = "2006-01-02"

// rowScanner is satisfied by both *sql.Row and *sql.Rows, letting one scan
// function per entity serve single-row and multi-row queries.
type rowScanner interface {
	Scan(dest ...any) error
}

// nilIfEmpty returns nil if s is empty, otherwise returns s.
// Used for nullable database columns.
func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// nilIfNilTime adapts an optional timestamp to a nullable column value.
func nilIfNilTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return *t
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}

// marshalStrings serializes a string slice to its JSON column form. A nil
// slice becomes an empty JSON array so round-trips never produce SQL NULL.
func marshalStrings(ss []string) (string, error) {
	if ss == nil {
		ss = []string{}
	}
	b, err := json.Marshal(ss)
	if err != nil {
		return "", fmt.Errorf("failed to marshal string list: %w", err)
	}
	return string(b), nil
}

func unmarshalStrings(raw sql.NullString) ([]string, error) {
	if !raw.Valid || raw.String == "" {
		return nil, nil
	}
	var ss []string
	if err := json.Unmarshal([]byte(raw.String), &ss); err != nil {
		return nil, fmt.Errorf("failed to unmarshal string list: %w", err)
	}
	return ss, nil
}

// Column order contract for each entity, shared by both SQL backends. Every
// SELECT must list columns in the order the matching scan function expects.

const appointmentColumns = `id, professional_id, client_id, lead_name, lead_email, lead_phone, date, start_time, end_time, status, service_type, notes, reminder_24h_sent, reminder_1h_sent, review_requested, created_at, updated_at`

func scanAppointment(s rowScanner) (models.Appointment, error) {
	var a models.Appointment
	var clientID, leadName, leadEmail, leadPhone, serviceType, notes sql.NullString
	var day string
	err := s.Scan(
		&a.ID, &a.ProfessionalID, &clientID, &leadName, &leadEmail, &leadPhone,
		&day, &a.StartTime, &a.EndTime, &a.Status, &serviceType, &notes,
		&a.Reminder24hSent, &a.Reminder1hSent, &a.ReviewRequested, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return a, err
	}
	a.ClientID = clientID.String
	a.LeadName = leadName.String
	a.LeadEmail = leadEmail.String
	a.LeadPhone = leadPhone.String
	a.ServiceType = serviceType.String
	a.Notes = notes.String
	a.Date, err = time.ParseInLocation(dateLayout, day, time.UTC)
	if err != nil {
		return a, fmt.Errorf("failed to parse appointment date %q: %w", day, err)
	}
	return a, nil
}

const confirmationColumns = `id, appointment_id, status, reminder_24h_at, response_text, auto_rescheduled, created_at, updated_at`

func scanConfirmation(s rowScanner) (models.Confirmation, error) {
	var c models.Confirmation
	var reminderAt sql.NullTime
	var responseText sql.NullString
	err := s.Scan(&c.ID, &c.AppointmentID, &c.Status, &reminderAt, &responseText, &c.AutoRescheduled, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return c, err
	}
	c.Reminder24hAt = timePtr(reminderAt)
	c.ResponseText = responseText.String
	return c, nil
}

const leadColumns = `id, professional_id, name, email, phone, source, message, status, high_priority, created_at, updated_at`

func scanLead(s rowScanner) (models.Lead, error) {
	var l models.Lead
	var email, phone, source, message sql.NullString
	err := s.Scan(&l.ID, &l.ProfessionalID, &l.Name, &email, &phone, &source, &message, &l.Status, &l.HighPriority, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return l, err
	}
	l.Email = email.String
	l.Phone = phone.String
	l.Source = source.String
	l.Message = message.String
	return l, nil
}

const actionColumns = `id, sequence_id, lead_id, step_number, channel, subject, content, scheduled_at, sent_at, status, error_message, client_reply, reply_processed`

func scanAction(s rowScanner) (models.FollowupAction, error) {
	var a models.FollowupAction
	var subject, errorMessage, clientReply sql.NullString
	var sentAt sql.NullTime
	err := s.Scan(&a.ID, &a.SequenceID, &a.LeadID, &a.StepNumber, &a.Channel, &subject, &a.Content, &a.ScheduledAt, &sentAt, &a.Status, &errorMessage, &clientReply, &a.ReplyProcessed)
	if err != nil {
		return a, err
	}
	a.Subject = subject.String
	a.ErrorMessage = errorMessage.String
	a.ClientReply = clientReply.String
	a.SentAt = timePtr(sentAt)
	return a, nil
}

const briefColumns = `id, appointment_id, professional_id, client_id, executive_summary, history_summary, open_topics, follow_up_items, communication_style, suggested_questions, materials, status, generated_at`

func scanBrief(s rowScanner) (models.AppointmentBrief, error) {
	var b models.AppointmentBrief
	var historySummary, communicationStyle sql.NullString
	var openTopics, followUpItems, suggestedQuestions, materials sql.NullString
	var generatedAt sql.NullTime
	err := s.Scan(&b.ID, &b.AppointmentID, &b.ProfessionalID, &b.ClientID, &b.ExecutiveSummary, &historySummary, &openTopics, &followUpItems, &communicationStyle, &suggestedQuestions, &materials, &b.Status, &generatedAt)
	if err != nil {
		return b, err
	}
	b.HistorySummary = historySummary.String
	b.CommunicationStyle = communicationStyle.String
	b.GeneratedAt = timePtr(generatedAt)
	if b.OpenTopics, err = unmarshalStrings(openTopics); err != nil {
		return b, err
	}
	if b.FollowUpItems, err = unmarshalStrings(followUpItems); err != nil {
		return b, err
	}
	if b.SuggestedQuestions, err = unmarshalStrings(suggestedQuestions); err != nil {
		return b, err
	}
	if b.Materials, err = unmarshalStrings(materials); err != nil {
		return b, err
	}
	return b, nil
}

const strategyColumns = `professional_id, tone_of_voice, platforms, target_audience, booking_link, is_active, created_at`

func scanStrategy(s rowScanner) (models.ContentStrategy, error) {
	var cs models.ContentStrategy
	var platforms, targetAudience, bookingLink sql.NullString
	err := s.Scan(&cs.ProfessionalID, &cs.ToneOfVoice, &platforms, &targetAudience, &bookingLink, &cs.IsActive, &cs.CreatedAt)
	if err != nil {
		return cs, err
	}
	cs.TargetAudience = targetAudience.String
	cs.BookingLink = bookingLink.String
	if cs.Platforms, err = unmarshalStrings(platforms); err != nil {
		return cs, err
	}
	return cs, nil
}

const contentColumns = `id, professional_id, platform, title, body, hashtags, call_to_action, booking_link, status, engagement_score, scheduled_at, created_at`

func scanContent(s rowScanner) (models.GeneratedContent, error) {
	var c models.GeneratedContent
	var hashtags, callToAction, bookingLink sql.NullString
	var scheduledAt sql.NullTime
	err := s.Scan(&c.ID, &c.ProfessionalID, &c.Platform, &c.Title, &c.Body, &hashtags, &callToAction, &bookingLink, &c.Status, &c.EngagementScore, &scheduledAt, &c.CreatedAt)
	if err != nil {
		return c, err
	}
	c.CallToAction = callToAction.String
	c.BookingLink = bookingLink.String
	c.ScheduledAt = timePtr(scheduledAt)
	if c.Hashtags, err = unmarshalStrings(hashtags); err != nil {
		return c, err
	}
	return c, nil
}

const reviewRequestColumns = `id, appointment_id, professional_id, client_id, request_message, rating, review_text, status, sent_at, received_at, published_at`

func scanReviewRequest(s rowScanner) (models.ReviewRequest, error) {
	var r models.ReviewRequest
	var requestMessage, reviewText sql.NullString
	var sentAt, receivedAt, publishedAt sql.NullTime
	err := s.Scan(&r.ID, &r.AppointmentID, &r.ProfessionalID, &r.ClientID, &requestMessage, &r.Rating, &reviewText, &r.Status, &sentAt, &receivedAt, &publishedAt)
	if err != nil {
		return r, err
	}
	r.RequestMessage = requestMessage.String
	r.ReviewText = reviewText.String
	r.SentAt = timePtr(sentAt)
	r.ReceivedAt = timePtr(receivedAt)
	r.PublishedAt = timePtr(publishedAt)
	return r, nil
}

const publicReviewColumns = `id, professional_id, review_request_id, client_name, rating, review_text, service_received, keywords, is_featured, published_at`

func scanPublicReview(s rowScanner) (models.PublicReview, error) {
	var r models.PublicReview
	var serviceReceived, keywords sql.NullString
	var publishedAt sql.NullTime
	err := s.Scan(&r.ID, &r.ProfessionalID, &r.ReviewRequestID, &r.ClientName, &r.Rating, &r.ReviewText, &serviceReceived, &keywords, &r.IsFeatured, &publishedAt)
	if err != nil {
		return r, err
	}
	r.ServiceReceived = serviceReceived.String
	r.PublishedAt = timePtr(publishedAt)
	if r.Keywords, err = unmarshalStrings(keywords); err != nil {
		return r, err
	}
	return r, nil
}

const referralColumns = `id, campaign_id, professional_id, referrer_id, referrer_email, referred_email, referred_name, code, link, status, referrer_reward_given, referred_reward_given, invited_at, signed_up_at, completed_at, rewarded_at`

func scanReferral(s rowScanner) (models.Referral, error) {
	var r models.Referral
	var referrerEmail, referredName, link sql.NullString
	var signedUpAt, completedAt, rewardedAt sql.NullTime
	err := s.Scan(&r.ID, &r.CampaignID, &r.ProfessionalID, &r.ReferrerID, &referrerEmail, &r.ReferredEmail, &referredName, &r.Code, &link, &r.Status, &r.ReferrerRewardGiven, &r.ReferredRewardGiven, &r.InvitedAt, &signedUpAt, &completedAt, &rewardedAt)
	if err != nil {
		return r, err
	}
	r.ReferrerEmail = referrerEmail.String
	r.ReferredName = referredName.String
	r.Link = link.String
	r.SignedUpAt = timePtr(signedUpAt)
	r.CompletedAt = timePtr(completedAt)
	r.RewardedAt = timePtr(rewardedAt)
	return r, nil
}

const campaignColumns = `id, professional_id, name, description, referrer_reward, referred_reward, is_active, created_at`

func scanCampaign(s rowScanner) (models.ReferralCampaign, error) {
	var c models.ReferralCampaign
	var description sql.NullString
	err := s.Scan(&c.ID, &c.ProfessionalID, &c.Name, &description, &c.ReferrerReward, &c.ReferredReward, &c.IsActive, &c.CreatedAt)
	if err != nil {
		return c, err
	}
	c.Description = description.String
	return c, nil
}
