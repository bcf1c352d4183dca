// Package models defines the core data structures for the ClientFlow automation engine.
//
// It includes the appointment, confirmation, and reliability entities shared by the
// per-domain agents, plus the run summary every agent reports.
package models

import (
	"errors"
	"time"
)

// Channel identifies a notification transport.
type Channel string

const (
	// ChannelEmail delivers over SMTP.
	ChannelEmail Channel = "email"
	// ChannelChat delivers over the WhatsApp Business API.
	ChannelChat Channel = "chat"
	// ChannelSMS delivers over SMS.
	ChannelSMS Channel = "sms"
)

// IsValidChannel checks if the given channel is supported.
func IsValidChannel(c Channel) bool {
	switch c {
	case ChannelEmail, ChannelChat, ChannelSMS:
		return true
	default:
		return false
	}
}

// Error variables for better error handling and testability
var (
	ErrNotFound         = errors.New("record not found")
	ErrSequenceExists   = errors.New("lead already has a followup sequence")
	ErrEmptyRecipient   = errors.New("recipient cannot be empty")
	ErrMissingClient    = errors.New("appointment has no associated client")
	ErrInvalidRating    = errors.New("rating must be between 1 and 5")
	ErrUnknownTemplate  = errors.New("unknown sequence template")
	ErrInvalidStatus    = errors.New("invalid status transition")
	ErrEmptyNote        = errors.New("note content cannot be empty")
	ErrCampaignInactive = errors.New("referral campaign is not active")
)

// AppointmentStatus represents the lifecycle state of an appointment.
type AppointmentStatus string

const (
	AppointmentStatusPending   AppointmentStatus = "pending"
	AppointmentStatusConfirmed AppointmentStatus = "confirmed"
	AppointmentStatusCompleted AppointmentStatus = "completed"
	AppointmentStatusCancelled AppointmentStatus = "cancelled"
	AppointmentStatusNoShow    AppointmentStatus = "no_show"
)

// IsTerminal reports whether the appointment can no longer change status.
func (s AppointmentStatus) IsTerminal() bool {
	switch s {
	case AppointmentStatusCompleted, AppointmentStatusCancelled, AppointmentStatusNoShow:
		return true
	default:
		return false
	}
}

// Appointment is a scheduled meeting between a professional and a client.
// ClientID may be empty when the booking came from an unconverted lead; the
// lead contact fields carry the recipient in that case.
type Appointment struct {
	ID             string            `json:"id"`
	ProfessionalID string            `json:"professional_id"`
	ClientID       string            `json:"client_id,omitempty"`
	LeadName       string            `json:"lead_name,omitempty"`
	LeadEmail      string            `json:"lead_email,omitempty"`
	LeadPhone      string            `json:"lead_phone,omitempty"`
	Date           time.Time         `json:"date"` // calendar day, midnight UTC
	StartTime      string            `json:"start_time"` // "15:04"
	EndTime        string            `json:"end_time"`
	Status         AppointmentStatus `json:"status"`
	ServiceType    string            `json:"service_type,omitempty"`
	Notes          string            `json:"notes,omitempty"`
	Reminder24hSent bool             `json:"reminder_24h_sent"`
	Reminder1hSent  bool             `json:"reminder_1h_sent"`
	ReviewRequested bool             `json:"review_requested"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// ConfirmationStatus represents the client's response state for an appointment reminder.
type ConfirmationStatus string

const (
	ConfirmationStatusPending    ConfirmationStatus = "pending"
	ConfirmationStatusConfirmed  ConfirmationStatus = "confirmed"
	ConfirmationStatusDeclined   ConfirmationStatus = "declined"
	ConfirmationStatusNoResponse ConfirmationStatus = "no_response"
)

// Confirmation tracks the reminder/confirmation exchange for one appointment.
// There is at most one Confirmation per appointment, and AutoRescheduled may
// only ever be set once.
type Confirmation struct {
	ID              string             `json:"id"`
	AppointmentID   string             `json:"appointment_id"`
	Status          ConfirmationStatus `json:"status"`
	Reminder24hAt   *time.Time         `json:"reminder_24h_at,omitempty"`
	ResponseText    string             `json:"response_text,omitempty"`
	AutoRescheduled bool               `json:"auto_rescheduled"`
	CreatedAt       time.Time          `json:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at"`
}

// ReliabilityPattern holds rolling no-show counters for one client over the
// lookback window. Counters are replaced on every recompute, never accumulated.
type ReliabilityPattern struct {
	ClientID          string    `json:"client_id"`
	TotalAppointments int       `json:"total_appointments"`
	NoShows           int       `json:"no_shows"`
	ReliabilityScore  int       `json:"reliability_score"` // 0-100
	UpdatedAt         time.Time `json:"updated_at"`
}

// ComputeReliabilityScore derives the 0-100 attendance score from raw counters.
// Zero appointments yields the optimistic default of 100.
func ComputeReliabilityScore(total, noShows int) int {
	if total <= 0 {
		return 100
	}
	return (total - noShows) * 100 / total
}

// Client is the customer side of an appointment.
type Client struct {
	ID        string    `json:"id"`
	FullName  string    `json:"full_name"`
	Email     string    `json:"email,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Professional is a service provider with a public booking page.
type Professional struct {
	ID        string    `json:"id"`
	FullName  string    `json:"full_name"`
	Email     string    `json:"email,omitempty"`
	Slug      string    `json:"slug,omitempty"`
	Specialty string    `json:"specialty,omitempty"`
	Bio       string    `json:"bio,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ClientNote is a free-form note a professional keeps about a client.
type ClientNote struct {
	ID             string    `json:"id"`
	ProfessionalID string    `json:"professional_id"`
	ClientID       string    `json:"client_id"`
	Content        string    `json:"content"`
	NextSteps      string    `json:"next_steps,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// RunSummary is the aggregate result of one agent invocation. Agents never
// surface errors to the scheduler; failures are collected here per record.
type RunSummary struct {
	Agent  string         `json:"agent"`
	Counts map[string]int `json:"counts"`
	Errors []string       `json:"errors"`
}

// NewRunSummary creates an empty summary for the named agent.
func NewRunSummary(agent string) RunSummary {
	return RunSummary{Agent: agent, Counts: make(map[string]int)}
}

// Add increments the named counter by n.
func (s *RunSummary) Add(key string, n int) {
	s.Counts[key] += n
}

// AddError appends an error string to the summary.
func (s *RunSummary) AddError(err error) {
	if err != nil {
		s.Errors = append(s.Errors, err.Error())
	}
}
