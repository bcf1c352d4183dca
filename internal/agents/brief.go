package agents

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/edumesones/clientflow-pro/internal/models"
	"github.com/edumesones/clientflow-pro/internal/store"
	"github.com/edumesones/clientflow-pro/internal/util"
)

// BriefConfig tunes the pre-meeting intelligence pipeline.
type BriefConfig struct {
	// Lookahead is how far ahead of the start time a brief is prepared.
	Lookahead time.Duration
	// InsightLookback bounds which clients get their profile refreshed.
	InsightLookback time.Duration
	// InsightAppointments caps how many recent appointments feed a refresh.
	InsightAppointments int
}

// DefaultBriefConfig returns the production settings: briefs one hour ahead,
// insight refresh over a 30-day window using the five most recent
// appointments.
func DefaultBriefConfig() BriefConfig {
	return BriefConfig{
		Lookahead:           time.Hour,
		InsightLookback:     30 * 24 * time.Hour,
		InsightAppointments: 5,
	}
}

// BriefAgent prepares an intelligence document before each appointment and
// keeps per-client behavioral profiles fresh.
type BriefAgent struct {
	store store.Store
	gen   Generator
	now   Clock
	cfg   BriefConfig
}

// NewBriefAgent wires the brief agent with its collaborators.
func NewBriefAgent(s store.Store, gen Generator, now Clock, cfg BriefConfig) *BriefAgent {
	return &BriefAgent{store: s, gen: gen, now: now, cfg: cfg}
}

func (a *BriefAgent) Name() string { return "brief" }

// Run generates briefs for imminent appointments, then refreshes client
// insights for recently active clients.
func (a *BriefAgent) Run(ctx context.Context) models.RunSummary {
	summary := models.NewRunSummary(a.Name())
	a.generateUpcomingBriefs(ctx, &summary)
	a.refreshClientInsights(ctx, &summary)
	slog.Debug("BriefAgent run complete", "counts", summary.Counts, "errors", len(summary.Errors))
	return summary
}

func (a *BriefAgent) generateUpcomingBriefs(ctx context.Context, summary *models.RunSummary) {
	now := a.now()
	until := now.Add(a.cfg.Lookahead)
	candidates, err := a.store.ListUpcomingAppointmentsWithoutBrief(now, until)
	if err != nil {
		slog.Error("BriefAgent failed to list upcoming appointments", "error", err)
		summary.AddError(err)
		return
	}
	for _, apt := range candidates {
		start := appointmentStart(apt)
		if start.Before(now) || start.After(until) {
			continue
		}
		if err := a.GenerateBriefForAppointment(ctx, apt.ID); err != nil {
			slog.Error("BriefAgent generation failed", "error", err, "appointmentID", apt.ID)
			summary.AddError(err)
			continue
		}
		summary.Add("briefs_generated", 1)
	}
}

// RecordClientNote persists a professional's note about a client. Notes feed
// the prompt of every subsequent brief for that pair.
func (a *BriefAgent) RecordClientNote(clientID, professionalID, content, nextSteps string) (models.ClientNote, error) {
	if strings.TrimSpace(content) == "" {
		return models.ClientNote{}, models.ErrEmptyNote
	}
	if _, err := a.store.GetClient(clientID); err != nil {
		return models.ClientNote{}, fmt.Errorf("failed to load client %s: %w", clientID, err)
	}
	note := models.ClientNote{
		ID:             util.GenerateRandomID("note", 16),
		ProfessionalID: professionalID,
		ClientID:       clientID,
		Content:        strings.TrimSpace(content),
		NextSteps:      strings.TrimSpace(nextSteps),
		CreatedAt:      a.now(),
	}
	if err := a.store.SaveClientNote(note); err != nil {
		return models.ClientNote{}, fmt.Errorf("failed to save note for client %s: %w", clientID, err)
	}
	return note, nil
}

// briefPayload is the generator's JSON contract for briefs.
type briefPayload struct {
	ExecutiveSummary   string   `json:"executive_summary"`
	OpenTopics         []string `json:"open_topics"`
	FollowUpItems      []string `json:"follow_up_items"`
	CommunicationStyle string   `json:"communication_style"`
	SuggestedQuestions []string `json:"suggested_questions"`
	Materials          []string `json:"materials"`
}

// GenerateBriefForAppointment builds or rebuilds the brief for one
// appointment. An appointment without a linked client or professional is a
// data-integrity case: logged and skipped without failing the batch. The
// brief is never left unset; generator failure degrades to a summary built
// from raw counts.
func (a *BriefAgent) GenerateBriefForAppointment(ctx context.Context, appointmentID string) error {
	apt, err := a.store.GetAppointment(appointmentID)
	if err != nil {
		return err
	}
	if apt.ClientID == "" {
		slog.Warn("BriefAgent skipping appointment without client", "appointmentID", appointmentID)
		return nil
	}
	client, err := a.store.GetClient(apt.ClientID)
	if errors.Is(err, models.ErrNotFound) {
		slog.Warn("BriefAgent skipping appointment with missing client", "appointmentID", appointmentID, "clientID", apt.ClientID)
		return nil
	}
	if err != nil {
		return err
	}
	professional, err := a.store.GetProfessional(apt.ProfessionalID)
	if errors.Is(err, models.ErrNotFound) {
		slog.Warn("BriefAgent skipping appointment with missing professional", "appointmentID", appointmentID, "professionalID", apt.ProfessionalID)
		return nil
	}
	if err != nil {
		return err
	}

	history, err := a.store.ListAppointmentHistory(apt.ClientID, apt.ProfessionalID)
	if err != nil {
		return err
	}
	notes, err := a.store.ListClientNotes(apt.ClientID, apt.ProfessionalID)
	if err != nil {
		return err
	}
	insight, err := a.store.GetClientInsight(apt.ClientID, apt.ProfessionalID)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return err
	}

	payload := a.composeBrief(ctx, *client, *professional, *apt, history, notes, insight)
	now := a.now()
	brief := models.AppointmentBrief{
		ID:                 util.GenerateRandomID("brief", 16),
		AppointmentID:      apt.ID,
		ProfessionalID:     apt.ProfessionalID,
		ClientID:           apt.ClientID,
		ExecutiveSummary:   payload.ExecutiveSummary,
		HistorySummary:     fmt.Sprintf("%d completed appointments on record", len(history)),
		OpenTopics:         payload.OpenTopics,
		FollowUpItems:      payload.FollowUpItems,
		CommunicationStyle: payload.CommunicationStyle,
		SuggestedQuestions: payload.SuggestedQuestions,
		Materials:          payload.Materials,
		Status:             models.BriefStatusGenerated,
		GeneratedAt:        &now,
	}
	return a.store.SaveBrief(brief)
}

func (a *BriefAgent) composeBrief(ctx context.Context, client models.Client, professional models.Professional, apt models.Appointment, history []models.Appointment, notes []models.ClientNote, insight *models.ClientInsight) briefPayload {
	var noteLines []string
	for i, n := range notes {
		if i >= 5 {
			break
		}
		noteLines = append(noteLines, n.Content)
	}
	insightLine := "no accumulated profile yet"
	if insight != nil {
		insightLine = fmt.Sprintf("common topics %v, communication: %s", insight.CommonTopics, insight.CommunicationNote)
	}

	var payload briefPayload
	err := a.gen.GenerateJSON(ctx,
		`You prepare a pre-meeting brief for a professional. Respond with JSON only: {"executive_summary": "...", "open_topics": [...], "follow_up_items": [...], "communication_style": "...", "suggested_questions": [...], "materials": [...]}`,
		fmt.Sprintf("Professional %s (%s) meets client %s for %q. Past appointments: %d. Recent notes: %s. Profile: %s.",
			professional.FullName, professional.Specialty, client.FullName, apt.ServiceType,
			len(history), strings.Join(noteLines, " | "), insightLine),
		0.4, &payload)
	if err != nil || payload.ExecutiveSummary == "" {
		if err != nil {
			slog.Error("BriefAgent generation fell back to raw counts", "error", err, "appointmentID", apt.ID)
		}
		payload = briefPayload{
			ExecutiveSummary: fmt.Sprintf("%s has %d previous appointments with %s. Review recent notes before the session.",
				client.FullName, len(history), professional.FullName),
			SuggestedQuestions: []string{"How have things been since your last appointment?"},
		}
	}
	return payload
}

// clientProfile is the generator's JSON contract for insight refreshes.
type clientProfile struct {
	CommonTopics      []string `json:"common_topics"`
	CommunicationNote string   `json:"communication_note"`
	PainPoints        []string `json:"pain_points"`
	PersonalityNotes  string   `json:"personality_notes"`
}

// refreshClientInsights rebuilds the profile for every client active within
// the lookback window. The insight attaches to the professional of the most
// recent appointment; clients seeing several professionals keep one profile
// under the first one encountered.
func (a *BriefAgent) refreshClientInsights(ctx context.Context, summary *models.RunSummary) {
	now := a.now()
	clientIDs, err := a.store.ListClientIDsWithAppointmentsSince(now.Add(-a.cfg.InsightLookback))
	if err != nil {
		slog.Error("BriefAgent failed to list active clients", "error", err)
		summary.AddError(err)
		return
	}
	for _, clientID := range clientIDs {
		if err := a.refreshInsight(ctx, clientID, now); err != nil {
			slog.Error("BriefAgent insight refresh failed", "error", err, "clientID", clientID)
			summary.AddError(err)
			continue
		}
		summary.Add("insights_refreshed", 1)
	}
}

func (a *BriefAgent) refreshInsight(ctx context.Context, clientID string, now time.Time) error {
	recent, err := a.store.ListRecentAppointmentsByClient(clientID, a.cfg.InsightAppointments)
	if err != nil {
		return err
	}
	if len(recent) == 0 {
		return nil
	}
	professionalID := recent[0].ProfessionalID
	total, err := a.store.CountAppointmentsByClientSince(clientID, time.Time{})
	if err != nil {
		return err
	}
	notes, err := a.store.ListClientNotes(clientID, professionalID)
	if err != nil {
		return err
	}

	var services, noteLines []string
	for _, apt := range recent {
		if apt.ServiceType != "" {
			services = append(services, apt.ServiceType)
		}
	}
	for i, n := range notes {
		if i >= 5 {
			break
		}
		noteLines = append(noteLines, n.Content)
	}

	var profile clientProfile
	err = a.gen.GenerateJSON(ctx,
		`You maintain a behavioral profile of a recurring client. Respond with JSON only: {"common_topics": [...], "communication_note": "...", "pain_points": [...], "personality_notes": "..."}`,
		fmt.Sprintf("Recent services: %v. Notes: %s.", services, strings.Join(noteLines, " | ")),
		0.4, &profile)
	if err != nil {
		slog.Error("BriefAgent profile generation failed, keeping counters only", "error", err, "clientID", clientID)
		profile = clientProfile{CommonTopics: services}
	}

	return a.store.SaveClientInsight(models.ClientInsight{
		ClientID:          clientID,
		ProfessionalID:    professionalID,
		CommonTopics:      profile.CommonTopics,
		CommunicationNote: profile.CommunicationNote,
		PainPoints:        profile.PainPoints,
		PersonalityNotes:  profile.PersonalityNotes,
		TotalAppointments: total,
		UpdatedAt:         now,
	})
}
