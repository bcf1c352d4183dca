package models

import "time"

// ContentStatus represents the publishing state of generated marketing content.
type ContentStatus string

const (
	ContentStatusDraft     ContentStatus = "draft"
	ContentStatusScheduled ContentStatus = "scheduled"
	ContentStatusPublished ContentStatus = "published"
)

// ContentStrategy captures a professional's marketing preferences. One row
// per professional, auto-created with defaults the first time the content
// agent touches them.
type ContentStrategy struct {
	ProfessionalID string    `json:"professional_id"`
	ToneOfVoice    string    `json:"tone_of_voice"`
	Platforms      []string  `json:"platforms"`
	TargetAudience string    `json:"target_audience,omitempty"`
	BookingLink    string    `json:"booking_link,omitempty"`
	IsActive       bool      `json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
}

// GeneratedContent is one marketing post produced by the content agent.
type GeneratedContent struct {
	ID              string        `json:"id"`
	ProfessionalID  string        `json:"professional_id"`
	Platform        string        `json:"platform"`
	Title           string        `json:"title"`
	Body            string        `json:"body"`
	Hashtags        []string      `json:"hashtags"`
	CallToAction    string        `json:"call_to_action,omitempty"`
	BookingLink     string        `json:"booking_link,omitempty"`
	Status          ContentStatus `json:"status"`
	EngagementScore int           `json:"engagement_score"` // predicted, 1-10
	ScheduledAt     *time.Time    `json:"scheduled_at,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
}

// ReviewStatus represents the funnel state of a review request.
type ReviewStatus string

const (
	ReviewStatusRequested ReviewStatus = "requested"
	ReviewStatusReceived  ReviewStatus = "received"
	ReviewStatusPublished ReviewStatus = "published"
	ReviewStatusRewarded  ReviewStatus = "rewarded"
)

// ReviewRequest tracks one ask for a review after a completed appointment.
// At most one request per appointment.
type ReviewRequest struct {
	ID             string       `json:"id"`
	AppointmentID  string       `json:"appointment_id"`
	ProfessionalID string       `json:"professional_id"`
	ClientID       string       `json:"client_id"`
	RequestMessage string       `json:"request_message,omitempty"`
	Rating         int          `json:"rating,omitempty"` // 1-5, 0 until received
	ReviewText     string       `json:"review_text,omitempty"`
	Status         ReviewStatus `json:"status"`
	SentAt         *time.Time   `json:"sent_at,omitempty"`
	ReceivedAt     *time.Time   `json:"received_at,omitempty"`
	PublishedAt    *time.Time   `json:"published_at,omitempty"`
}

// PublicReview is the published testimonial derived from a review request.
type PublicReview struct {
	ID              string     `json:"id"`
	ProfessionalID  string     `json:"professional_id"`
	ReviewRequestID string     `json:"review_request_id"`
	ClientName      string     `json:"client_name"`
	Rating          int        `json:"rating"`
	ReviewText      string     `json:"review_text"`
	ServiceReceived string     `json:"service_received,omitempty"`
	Keywords        []string   `json:"keywords"`
	IsFeatured      bool       `json:"is_featured"`
	PublishedAt     *time.Time `json:"published_at,omitempty"`
}

// ReferralStatus represents the forward-only funnel state of a referral.
type ReferralStatus string

const (
	ReferralStatusInvited              ReferralStatus = "invited"
	ReferralStatusClicked              ReferralStatus = "clicked"
	ReferralStatusSignedUp             ReferralStatus = "signed_up"
	ReferralStatusCompletedAppointment ReferralStatus = "completed_appointment"
	ReferralStatusRewarded             ReferralStatus = "rewarded"
)

// ReferralCampaign defines the rewards offered for referrals by one professional.
type ReferralCampaign struct {
	ID             string    `json:"id"`
	ProfessionalID string    `json:"professional_id"`
	Name           string    `json:"name"`
	Description    string    `json:"description,omitempty"`
	ReferrerReward string    `json:"referrer_reward"`
	ReferredReward string    `json:"referred_reward"`
	IsActive       bool      `json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
}

// Referral is one invitation moving through the referral funnel. The reward
// flags are idempotent booleans set exactly once, atomically with the status
// transition to rewarded.
type Referral struct {
	ID                   string         `json:"id"`
	CampaignID           string         `json:"campaign_id"`
	ProfessionalID       string         `json:"professional_id"`
	ReferrerID           string         `json:"referrer_id"`
	ReferrerEmail        string         `json:"referrer_email,omitempty"`
	ReferredEmail        string         `json:"referred_email"`
	ReferredName         string         `json:"referred_name,omitempty"`
	Code                 string         `json:"code"`
	Link                 string         `json:"link,omitempty"`
	Status               ReferralStatus `json:"status"`
	ReferrerRewardGiven  bool           `json:"referrer_reward_given"`
	ReferredRewardGiven  bool           `json:"referred_reward_given"`
	InvitedAt            time.Time      `json:"invited_at"`
	SignedUpAt           *time.Time     `json:"signed_up_at,omitempty"`
	CompletedAt          *time.Time     `json:"completed_at,omitempty"`
	RewardedAt           *time.Time     `json:"rewarded_at,omitempty"`
}

// ReferralInvitation is the message sent for one referral.
type ReferralInvitation struct {
	ID         string     `json:"id"`
	ReferralID string     `json:"referral_id"`
	Message    string     `json:"message"`
	Channel    Channel    `json:"channel"`
	SentAt     *time.Time `json:"sent_at,omitempty"`
}
