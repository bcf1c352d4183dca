package models

import "time"

// LeadStatus represents the qualification state of a sales lead. Transitions
// are monotonic; converted and lost are terminal.
type LeadStatus string

const (
	LeadStatusNew        LeadStatus = "new"
	LeadStatusContacted  LeadStatus = "contacted"
	LeadStatusFollowedUp LeadStatus = "followed_up"
	LeadStatusConverted  LeadStatus = "converted"
	LeadStatusLost       LeadStatus = "lost"
)

// Lead is a prospect captured from the booking page or another source.
type Lead struct {
	ID             string     `json:"id"`
	ProfessionalID string     `json:"professional_id"`
	Name           string     `json:"name"`
	Email          string     `json:"email,omitempty"`
	Phone          string     `json:"phone,omitempty"`
	Source         string     `json:"source,omitempty"`
	Message        string     `json:"message,omitempty"`
	Status         LeadStatus `json:"status"`
	HighPriority   bool       `json:"high_priority"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// ActionStatus represents the lifecycle state of one followup step.
type ActionStatus string

const (
	ActionStatusScheduled ActionStatus = "scheduled"
	ActionStatusSent      ActionStatus = "sent"
	ActionStatusOpened    ActionStatus = "opened"
	ActionStatusReplied   ActionStatus = "replied"
	ActionStatusConverted ActionStatus = "converted"
	ActionStatusFailed    ActionStatus = "failed"
)

// FollowupSequence groups the ordered contact steps created for one lead.
// A lead has at most one sequence at a time.
type FollowupSequence struct {
	ID             string    `json:"id"`
	LeadID         string    `json:"lead_id"`
	ProfessionalID string    `json:"professional_id"`
	Name           string    `json:"name"`
	TotalSteps     int       `json:"total_steps"`
	CreatedAt      time.Time `json:"created_at"`
}

// FollowupAction is one step of a sequence. Actions are persisted up front
// with absolute scheduled timestamps and pre-generated content; once sent
// they are immutable except for the reply-tracking fields.
type FollowupAction struct {
	ID             string       `json:"id"`
	SequenceID     string       `json:"sequence_id"`
	LeadID         string       `json:"lead_id"`
	StepNumber     int          `json:"step_number"`
	Channel        Channel      `json:"channel"`
	Subject        string       `json:"subject,omitempty"`
	Content        string       `json:"content"`
	ScheduledAt    time.Time    `json:"scheduled_at"`
	SentAt         *time.Time   `json:"sent_at,omitempty"`
	Status         ActionStatus `json:"status"`
	ErrorMessage   string       `json:"error_message,omitempty"`
	ClientReply    string       `json:"client_reply,omitempty"`
	ReplyProcessed bool         `json:"reply_processed"`
}

// LeadInsight is the derived analysis of a lead's messages. It is recomputed
// in place whenever new reply text arrives, never appended.
type LeadInsight struct {
	LeadID              string    `json:"lead_id"`
	Sentiment           string    `json:"sentiment"` // positive|neutral|negative
	UrgencyLevel        int       `json:"urgency_level"` // 1-10
	PainPoints          []string  `json:"pain_points"`
	DecisionTimeline    string    `json:"decision_timeline,omitempty"` // immediate|short|medium|long
	RecommendedApproach string    `json:"recommended_approach,omitempty"`
	UpdatedAt           time.Time `json:"updated_at"`
}
