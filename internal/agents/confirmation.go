package agents

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/edumesones/clientflow-pro/internal/models"
	"github.com/edumesones/clientflow-pro/internal/store"
	"github.com/edumesones/clientflow-pro/internal/util"
)

// ConfirmationConfig tunes the anti no-show pipeline.
type ConfirmationConfig struct {
	// ReminderChannel carries the 24h reminder and the reschedule offer.
	ReminderChannel models.Channel
	// NoResponseAfter is how long a pending confirmation may sit after the
	// 24h reminder before it is marked no_response.
	NoResponseAfter time.Duration
	// RescheduleAfter is the additional wait in no_response before the one
	// automatic reschedule offer goes out.
	RescheduleAfter time.Duration
	// ReliabilityLookback bounds the rolling no-show counters.
	ReliabilityLookback time.Duration
}

// DefaultConfirmationConfig returns the production settings: email reminders,
// 12h to no_response, 6h more to the reschedule offer, 90-day reliability
// window.
func DefaultConfirmationConfig() ConfirmationConfig {
	return ConfirmationConfig{
		ReminderChannel:     models.ChannelEmail,
		NoResponseAfter:     12 * time.Hour,
		RescheduleAfter:     6 * time.Hour,
		ReliabilityLookback: 90 * 24 * time.Hour,
	}
}

// ConfirmationAgent sends appointment reminders, escalates silence, offers a
// reschedule once, and keeps per-client reliability patterns fresh.
type ConfirmationAgent struct {
	store      store.Store
	gen        Generator
	dispatcher Dispatcher
	now        Clock
	cfg        ConfirmationConfig
}

// NewConfirmationAgent wires the confirmation agent with its collaborators.
func NewConfirmationAgent(s store.Store, gen Generator, d Dispatcher, now Clock, cfg ConfirmationConfig) *ConfirmationAgent {
	return &ConfirmationAgent{store: s, gen: gen, dispatcher: d, now: now, cfg: cfg}
}

func (a *ConfirmationAgent) Name() string { return "confirmation" }

// Run executes the pipeline passes in order. Each pass is independent; a
// failure in one record never stops the batch.
func (a *ConfirmationAgent) Run(ctx context.Context) models.RunSummary {
	summary := models.NewRunSummary(a.Name())
	a.send24hReminders(ctx, &summary)
	summary.Add("reminders_1h_sent", a.send1hReminders(ctx))
	a.markNoResponses(ctx, &summary)
	a.offerReschedules(ctx, &summary)
	a.refreshReliability(ctx, &summary)
	slog.Debug("ConfirmationAgent run complete", "counts", summary.Counts, "errors", len(summary.Errors))
	return summary
}

// send24hReminders handles appointments dated exactly tomorrow. The claim on
// the reminder flag happens before the send, so a crash after claiming loses
// at most one reminder and never duplicates one.
func (a *ConfirmationAgent) send24hReminders(ctx context.Context, summary *models.RunSummary) {
	if !a.dispatcher.Enabled(a.cfg.ReminderChannel) {
		slog.Warn("ConfirmationAgent reminder channel disabled, skipping reminders", "channel", a.cfg.ReminderChannel)
		return
	}
	tomorrow := a.now().Add(24 * time.Hour)
	due, err := a.store.ListAppointmentsDue24hReminder(tomorrow)
	if err != nil {
		slog.Error("ConfirmationAgent failed to list due appointments", "error", err)
		summary.AddError(err)
		return
	}
	for _, apt := range due {
		if err := a.remind(ctx, apt); err != nil {
			slog.Error("ConfirmationAgent reminder failed", "error", err, "appointmentID", apt.ID)
			summary.AddError(err)
			continue
		}
		summary.Add("reminders_24h_sent", 1)
	}
}

func (a *ConfirmationAgent) remind(ctx context.Context, apt models.Appointment) error {
	ct, err := appointmentContact(a.store, apt)
	if err != nil {
		return err
	}
	claimed, err := a.store.ClaimReminder24h(apt.ID)
	if err != nil {
		return err
	}
	if !claimed {
		// Another invocation owns this reminder.
		return nil
	}

	now := a.now()
	if err := a.ensureConfirmation(apt.ID, now); err != nil {
		return err
	}

	body := a.gen.Generate(ctx,
		"You write short, warm appointment reminders for a small business. Reply with the message body only.",
		fmt.Sprintf("Remind %s about their %s appointment tomorrow at %s. Ask them to reply to confirm.",
			ct.Name, apt.ServiceType, apt.StartTime),
		0.7)
	if body == "" {
		body = fmt.Sprintf("Hi %s, this is a reminder of your appointment tomorrow at %s. Please reply to confirm you can make it.",
			ct.Name, apt.StartTime)
	}
	subject := "Reminder: your appointment tomorrow"
	if !a.dispatcher.Send(ctx, a.cfg.ReminderChannel, ct.recipient(a.cfg.ReminderChannel), subject, body) {
		return fmt.Errorf("failed to dispatch 24h reminder for appointment %s", apt.ID)
	}
	return nil
}

// ensureConfirmation creates the pending confirmation row on first reminder,
// or refreshes the reminder timestamp if one already exists.
func (a *ConfirmationAgent) ensureConfirmation(appointmentID string, at time.Time) error {
	existing, err := a.store.GetConfirmationByAppointment(appointmentID)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return err
	}
	if existing != nil {
		existing.Reminder24hAt = &at
		existing.UpdatedAt = at
		return a.store.SaveConfirmation(*existing)
	}
	return a.store.SaveConfirmation(models.Confirmation{
		ID:            util.GenerateRandomID("conf", 16),
		AppointmentID: appointmentID,
		Status:        models.ConfirmationStatusPending,
		Reminder24hAt: &at,
		CreatedAt:     at,
		UpdatedAt:     at,
	})
}

// send1hReminders is a declared extension point that intentionally does
// nothing yet; same-hour reminders are handled by the 24h flow today.
func (a *ConfirmationAgent) send1hReminders(ctx context.Context) int {
	_ = ctx
	return 0
}

func (a *ConfirmationAgent) markNoResponses(ctx context.Context, summary *models.RunSummary) {
	_ = ctx
	cutoff := a.now().Add(-a.cfg.NoResponseAfter)
	pending, err := a.store.ListConfirmationsPendingBefore(cutoff)
	if err != nil {
		slog.Error("ConfirmationAgent failed to list pending confirmations", "error", err)
		summary.AddError(err)
		return
	}
	for _, c := range pending {
		ok, err := a.store.MarkConfirmationNoResponse(c.ID)
		if err != nil {
			summary.AddError(err)
			continue
		}
		if ok {
			summary.Add("no_responses", 1)
		}
	}
}

func (a *ConfirmationAgent) offerReschedules(ctx context.Context, summary *models.RunSummary) {
	if !a.dispatcher.Enabled(a.cfg.ReminderChannel) {
		slog.Warn("ConfirmationAgent reminder channel disabled, skipping reschedules", "channel", a.cfg.ReminderChannel)
		return
	}
	cutoff := a.now().Add(-(a.cfg.NoResponseAfter + a.cfg.RescheduleAfter))
	candidates, err := a.store.ListConfirmationsForReschedule(cutoff)
	if err != nil {
		slog.Error("ConfirmationAgent failed to list reschedule candidates", "error", err)
		summary.AddError(err)
		return
	}
	for _, c := range candidates {
		if err := a.reschedule(ctx, c); err != nil {
			slog.Error("ConfirmationAgent reschedule failed", "error", err, "confirmationID", c.ID)
			summary.AddError(err)
			continue
		}
		summary.Add("reschedules_offered", 1)
	}
}

func (a *ConfirmationAgent) reschedule(ctx context.Context, c models.Confirmation) error {
	apt, err := a.store.GetAppointment(c.AppointmentID)
	if err != nil {
		return err
	}
	ct, err := appointmentContact(a.store, *apt)
	if err != nil {
		return err
	}
	claimed, err := a.store.ClaimAutoReschedule(c.ID)
	if err != nil {
		return err
	}
	if !claimed {
		return nil
	}

	body := a.gen.Generate(ctx,
		"You write short, understanding messages offering to reschedule an appointment. Reply with the message body only.",
		fmt.Sprintf("%s has not confirmed their appointment on %s at %s. Offer to find a better time.",
			ct.Name, apt.Date.Format("January 2"), apt.StartTime),
		0.7)
	if body == "" {
		body = fmt.Sprintf("Hi %s, we noticed you haven't confirmed your appointment. If the time no longer works, reply and we'll find a better one.", ct.Name)
	}
	if !a.dispatcher.Send(ctx, a.cfg.ReminderChannel, ct.recipient(a.cfg.ReminderChannel), "Need a different time?", body) {
		return fmt.Errorf("failed to dispatch reschedule offer for confirmation %s", c.ID)
	}
	return nil
}

// refreshReliability replaces every active client's rolling counters over the
// lookback window. Counters are recomputed from scratch, never accumulated.
func (a *ConfirmationAgent) refreshReliability(ctx context.Context, summary *models.RunSummary) {
	_ = ctx
	now := a.now()
	since := now.Add(-a.cfg.ReliabilityLookback)
	// Every client is recomputed, not just the recently active ones, so
	// counters decay once their appointments age out of the lookback.
	ids, err := a.store.ListClientIDs()
	if err != nil {
		slog.Error("ConfirmationAgent failed to list clients", "error", err)
		summary.AddError(err)
		return
	}
	for _, clientID := range ids {
		total, err := a.store.CountAppointmentsByClientSince(clientID, since)
		if err != nil {
			summary.AddError(err)
			continue
		}
		noShows, err := a.store.CountNoShowsByClientSince(clientID, since)
		if err != nil {
			summary.AddError(err)
			continue
		}
		err = a.store.SaveReliabilityPattern(models.ReliabilityPattern{
			ClientID:          clientID,
			TotalAppointments: total,
			NoShows:           noShows,
			ReliabilityScore:  models.ComputeReliabilityScore(total, noShows),
			UpdatedAt:         now,
		})
		if err != nil {
			summary.AddError(err)
			continue
		}
		summary.Add("reliability_refreshed", 1)
	}
}
