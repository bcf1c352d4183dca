package models

import "time"

// BriefStatus represents the delivery state of an appointment brief.
type BriefStatus string

const (
	BriefStatusPending   BriefStatus = "pending"
	BriefStatusGenerated BriefStatus = "generated"
	BriefStatusDelivered BriefStatus = "delivered"
	BriefStatusViewed    BriefStatus = "viewed"
)

// AppointmentBrief is the pre-meeting intelligence document for one
// appointment. There is at most one brief per appointment; regenerating
// updates it in place.
type AppointmentBrief struct {
	ID                 string      `json:"id"`
	AppointmentID      string      `json:"appointment_id"`
	ProfessionalID     string      `json:"professional_id"`
	ClientID           string      `json:"client_id"`
	ExecutiveSummary   string      `json:"executive_summary"`
	HistorySummary     string      `json:"history_summary,omitempty"`
	OpenTopics         []string    `json:"open_topics"`
	FollowUpItems      []string    `json:"follow_up_items"`
	CommunicationStyle string      `json:"communication_style,omitempty"`
	SuggestedQuestions []string    `json:"suggested_questions"`
	Materials          []string    `json:"materials"`
	Status             BriefStatus `json:"status"`
	GeneratedAt        *time.Time  `json:"generated_at,omitempty"`
}

// ClientInsight is the accumulating behavioral profile of a client as seen
// by one professional, refreshed on a rolling basis from recent appointments.
type ClientInsight struct {
	ClientID          string    `json:"client_id"`
	ProfessionalID    string    `json:"professional_id"`
	CommonTopics      []string  `json:"common_topics"`
	CommunicationNote string    `json:"communication_note,omitempty"`
	PainPoints        []string  `json:"pain_points"`
	PersonalityNotes  string    `json:"personality_notes,omitempty"`
	TotalAppointments int       `json:"total_appointments"`
	UpdatedAt         time.Time `json:"updated_at"`
}
