// Package store provides the persistence boundary for the automation engine.
//
// The Store interface is the sole mutator of durable state: agents read due
// records through it and write transitions back through it. Every
// at-most-once side effect (reminder flags, action sends, reward grants) is
// guarded by a conditional update whose WHERE clause re-checks the prior
// state, so overlapping agent invocations cannot double-claim a record.
// Backends: SQLite (default), PostgreSQL, and an in-memory store for tests.
package store

import (
	"strings"
	"time"

	"github.com/edumesones/clientflow-pro/internal/models"
)

// Store is the repository contract consumed by the agents. List methods take
// explicit as-of times so callers stay clock-injectable; Claim/Mark methods
// return false when another invocation already owns the transition. Single
// entity getters return models.ErrNotFound when no row exists.
type Store interface {
	Close() error

	// Clients and professionals.
	SaveClient(c models.Client) error
	GetClient(id string) (*models.Client, error)
	ListClientIDs() ([]string, error)
	SaveProfessional(p models.Professional) error
	GetProfessional(id string) (*models.Professional, error)
	ListProfessionals() ([]models.Professional, error)

	// Appointments.
	SaveAppointment(a models.Appointment) error
	GetAppointment(id string) (*models.Appointment, error)
	// ListAppointmentsDue24hReminder returns pending/confirmed appointments on
	// the given calendar day whose 24h reminder flag is unset.
	ListAppointmentsDue24hReminder(day time.Time) ([]models.Appointment, error)
	// ClaimReminder24h sets the 24h reminder flag if it was unset and reports
	// whether this caller won the claim.
	ClaimReminder24h(appointmentID string) (bool, error)
	ListAppointmentHistory(clientID, professionalID string) ([]models.Appointment, error)
	ListRecentAppointmentsByClient(clientID string, limit int) ([]models.Appointment, error)
	// ListCompletedAppointmentsForReview returns completed appointments whose
	// last update falls in [from, to] and which have no review requested yet.
	ListCompletedAppointmentsForReview(from, to time.Time) ([]models.Appointment, error)
	ClaimReviewRequested(appointmentID string) (bool, error)
	CountAppointmentsByClientSince(clientID string, since time.Time) (int, error)
	CountNoShowsByClientSince(clientID string, since time.Time) (int, error)
	ListClientIDsWithAppointmentsSince(since time.Time) ([]string, error)
	// ListUpcomingAppointmentsWithoutBrief returns pending/confirmed
	// appointments starting within [from, to] that have no brief yet.
	ListUpcomingAppointmentsWithoutBrief(from, to time.Time) ([]models.Appointment, error)

	// Confirmations. At most one per appointment.
	SaveConfirmation(c models.Confirmation) error
	GetConfirmationByAppointment(appointmentID string) (*models.Confirmation, error)
	ListConfirmationsPendingBefore(cutoff time.Time) ([]models.Confirmation, error)
	MarkConfirmationNoResponse(id string) (bool, error)
	ListConfirmationsForReschedule(cutoff time.Time) ([]models.Confirmation, error)
	// ClaimAutoReschedule sets auto_rescheduled once; false on a repeat claim.
	ClaimAutoReschedule(id string) (bool, error)

	// Reliability patterns, replaced wholesale on every recompute.
	SaveReliabilityPattern(p models.ReliabilityPattern) error
	GetReliabilityPattern(clientID string) (*models.ReliabilityPattern, error)

	// Leads.
	SaveLead(l models.Lead) error
	GetLead(id string) (*models.Lead, error)
	ListNewLeadsWithoutSequence() ([]models.Lead, error)
	ListLeadsByStatus(statuses ...models.LeadStatus) ([]models.Lead, error)
	UpdateLeadStatus(id string, from, to models.LeadStatus) (bool, error)
	MarkLeadHighPriority(id string) (bool, error)

	// Followup sequences and actions.
	// CreateSequence persists the sequence and all of its actions in one
	// transaction; a mid-failure leaves nothing behind.
	CreateSequence(seq models.FollowupSequence, actions []models.FollowupAction) error
	CountSequencesByLead(leadID string) (int, error)
	ListActionsByLead(leadID string) ([]models.FollowupAction, error)
	ListDueActions(asOf time.Time) ([]models.FollowupAction, error)
	MarkActionSent(id string, at time.Time) (bool, error)
	MarkActionFailed(id string, errMsg string) error
	RecordActionReply(id string, reply string) (bool, error)
	ListUnprocessedReplies() ([]models.FollowupAction, error)
	MarkReplyProcessed(id string) error
	CountRepliedActionsByLead(leadID string) (int, error)

	// Lead insights, recomputed in place.
	SaveLeadInsight(i models.LeadInsight) error
	GetLeadInsight(leadID string) (*models.LeadInsight, error)

	// Client notes.
	SaveClientNote(n models.ClientNote) error
	ListClientNotes(clientID, professionalID string) ([]models.ClientNote, error)

	// Appointment briefs and client insights, both upserts.
	SaveBrief(b models.AppointmentBrief) error
	GetBriefByAppointment(appointmentID string) (*models.AppointmentBrief, error)
	SaveClientInsight(i models.ClientInsight) error
	GetClientInsight(clientID, professionalID string) (*models.ClientInsight, error)

	// Content generation.
	SaveContentStrategy(s models.ContentStrategy) error
	GetContentStrategy(professionalID string) (*models.ContentStrategy, error)
	ListActiveContentStrategies() ([]models.ContentStrategy, error)
	CountPendingContent(professionalID string) (int, error)
	SaveGeneratedContent(c models.GeneratedContent) error
	ListDraftContent() ([]models.GeneratedContent, error)
	ScheduleContent(id string, at time.Time) (bool, error)

	// Reviews.
	SaveReviewRequest(r models.ReviewRequest) error
	GetReviewRequest(id string) (*models.ReviewRequest, error)
	HasReviewRequestForAppointment(appointmentID string) (bool, error)
	// SaveReviewSubmission updates the request and inserts the public review
	// in one transaction.
	SaveReviewSubmission(req models.ReviewRequest, pub models.PublicReview) error
	ListReceivedReviewRequests() ([]models.ReviewRequest, error)
	PublishReviewRequest(id string, at time.Time) (bool, error)
	ListPublicReviews(professionalID string) ([]models.PublicReview, error)

	// Referrals.
	SaveReferralCampaign(c models.ReferralCampaign) error
	GetReferralCampaign(id string) (*models.ReferralCampaign, error)
	GetActiveCampaign(professionalID string) (*models.ReferralCampaign, error)
	ListReferralCampaigns(professionalID string) ([]models.ReferralCampaign, error)
	// CreateReferral persists the referral and its invitation in one
	// transaction.
	CreateReferral(r models.Referral, inv models.ReferralInvitation) error
	GetReferralByCode(code string) (*models.Referral, error)
	ReferralCodeExists(code string) (bool, error)
	MarkReferralSignedUp(code string, email string, at time.Time) (bool, error)
	MarkReferralCompleted(code string, at time.Time) (bool, error)
	ListUnrewardedReferrals() ([]models.Referral, error)
	// GrantReferralRewards flips both reward flags and the status to rewarded
	// in a single guarded update; false when already granted.
	GrantReferralRewards(id string, at time.Time) (bool, error)
	MarkInvitationSent(id string, at time.Time) error
}

// Opts holds configuration options for persistent stores.
type Opts struct {
	DSN string
}

// Option defines a configuration option for store construction.
type Option func(*Opts)

// WithSQLiteDSN configures a SQLite database file path.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// WithPostgresDSN configures a PostgreSQL connection string.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// DetectDSNType classifies a DSN as "postgres" or "sqlite". PostgreSQL DSNs
// use URL or key=value form; anything else is treated as a SQLite file path.
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") || strings.Contains(dsn, "host=") {
		return "postgres"
	}
	return "sqlite"
}
