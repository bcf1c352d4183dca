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

// sequenceStep is one planned touch in a followup template.
type sequenceStep struct {
	Delay   time.Duration
	Channel models.Channel
	Kind    string // intro, value, close
}

// sequenceTemplates are the built-in followup plans. Steps carry relative
// delays; ProcessNewLead converts them to absolute timestamps up front.
var sequenceTemplates = map[string][]sequenceStep{
	"nurture7": {
		{Delay: 0, Channel: models.ChannelEmail, Kind: "intro"},
		{Delay: 48 * time.Hour, Channel: models.ChannelEmail, Kind: "value"},
		{Delay: 120 * time.Hour, Channel: models.ChannelChat, Kind: "close"},
	},
	"quickClose": {
		{Delay: 0, Channel: models.ChannelEmail, Kind: "intro"},
		{Delay: 24 * time.Hour, Channel: models.ChannelEmail, Kind: "value"},
		{Delay: 72 * time.Hour, Channel: models.ChannelChat, Kind: "close"},
	},
}

// DefaultSequenceTemplate is applied to leads that arrive without an explicit
// template choice.
const DefaultSequenceTemplate = "nurture7"

// NurtureConfig tunes the lead follow-up pipeline.
type NurtureConfig struct {
	// Template names the sequence plan used for untemplated new leads.
	Template string
	// HotUrgency is the insight urgency level at or above which a lead is
	// flagged high priority.
	HotUrgency int
	// HotReplies is the replied-action count at or above which a lead is
	// flagged high priority.
	HotReplies int
}

// DefaultNurtureConfig returns the production settings.
func DefaultNurtureConfig() NurtureConfig {
	return NurtureConfig{Template: DefaultSequenceTemplate, HotUrgency: 8, HotReplies: 2}
}

// NurtureAgent creates followup sequences for new leads, sends due steps,
// analyzes replies, and flags hot leads.
type NurtureAgent struct {
	store      store.Store
	gen        Generator
	dispatcher Dispatcher
	now        Clock
	cfg        NurtureConfig
}

// NewNurtureAgent wires the nurture agent with its collaborators.
func NewNurtureAgent(s store.Store, gen Generator, d Dispatcher, now Clock, cfg NurtureConfig) *NurtureAgent {
	return &NurtureAgent{store: s, gen: gen, dispatcher: d, now: now, cfg: cfg}
}

func (a *NurtureAgent) Name() string { return "nurture" }

// Run executes the pipeline passes in order.
func (a *NurtureAgent) Run(ctx context.Context) models.RunSummary {
	summary := models.NewRunSummary(a.Name())
	a.startSequences(ctx, &summary)
	a.sendDueActions(ctx, &summary)
	a.analyzeReplies(ctx, &summary)
	a.flagHotLeads(ctx, &summary)
	slog.Debug("NurtureAgent run complete", "counts", summary.Counts, "errors", len(summary.Errors))
	return summary
}

// ProcessNewLead builds the whole sequence for one lead: every step is
// persisted up front with an absolute send time and pre-generated content,
// so later runs only dispatch. A lead that already has a sequence is left
// alone (ErrSequenceExists).
func (a *NurtureAgent) ProcessNewLead(ctx context.Context, leadID, templateName string) error {
	steps, ok := sequenceTemplates[templateName]
	if !ok {
		return fmt.Errorf("template %q: %w", templateName, models.ErrUnknownTemplate)
	}
	lead, err := a.store.GetLead(leadID)
	if err != nil {
		return err
	}
	existing, err := a.store.CountSequencesByLead(leadID)
	if err != nil {
		return err
	}
	if existing > 0 {
		return fmt.Errorf("lead %s: %w", leadID, models.ErrSequenceExists)
	}

	now := a.now()
	seq := models.FollowupSequence{
		ID:             util.GenerateRandomID("seq", 16),
		LeadID:         leadID,
		ProfessionalID: lead.ProfessionalID,
		Name:           templateName,
		TotalSteps:     len(steps),
		CreatedAt:      now,
	}
	actions := make([]models.FollowupAction, 0, len(steps))
	for i, step := range steps {
		content, subject := a.stepContent(ctx, *lead, step, i+1, len(steps))
		actions = append(actions, models.FollowupAction{
			ID:          util.GenerateRandomID("act", 16),
			SequenceID:  seq.ID,
			LeadID:      leadID,
			StepNumber:  i + 1,
			Channel:     step.Channel,
			Subject:     subject,
			Content:     content,
			ScheduledAt: now.Add(step.Delay),
			Status:      models.ActionStatusScheduled,
		})
	}
	if err := a.store.CreateSequence(seq, actions); err != nil {
		return err
	}
	if _, err := a.store.UpdateLeadStatus(leadID, models.LeadStatusNew, models.LeadStatusContacted); err != nil {
		return err
	}
	slog.Debug("NurtureAgent sequence created", "leadID", leadID, "template", templateName, "steps", len(steps))
	return nil
}

func (a *NurtureAgent) stepContent(ctx context.Context, lead models.Lead, step sequenceStep, num, total int) (body, subject string) {
	body = a.gen.Generate(ctx,
		"You write short, personal follow-up messages for a service business nurturing a sales lead. Reply with the message body only.",
		fmt.Sprintf("Step %d of %d (%s) for %s, who asked: %q. Keep it under 80 words.",
			num, total, step.Kind, lead.Name, lead.Message),
		0.8)
	if body == "" {
		switch step.Kind {
		case "intro":
			body = fmt.Sprintf("Hi %s, thanks for reaching out. I'd love to help. Reply here and we can set up a time to talk.", lead.Name)
		case "value":
			body = fmt.Sprintf("Hi %s, just checking in. Happy to answer any questions before you decide.", lead.Name)
		default:
			body = fmt.Sprintf("Hi %s, I still have a few openings this week if you'd like to book a session.", lead.Name)
		}
	}
	if step.Channel == models.ChannelEmail {
		subject = fmt.Sprintf("Following up on your inquiry (%d/%d)", num, total)
	}
	return body, subject
}

func (a *NurtureAgent) startSequences(ctx context.Context, summary *models.RunSummary) {
	leads, err := a.store.ListNewLeadsWithoutSequence()
	if err != nil {
		slog.Error("NurtureAgent failed to list new leads", "error", err)
		summary.AddError(err)
		return
	}
	for _, lead := range leads {
		if err := a.ProcessNewLead(ctx, lead.ID, a.cfg.Template); err != nil {
			slog.Error("NurtureAgent failed to start sequence", "error", err, "leadID", lead.ID)
			summary.AddError(err)
			continue
		}
		summary.Add("sequences_created", 1)
	}
}

// sendDueActions dispatches every scheduled action whose time has come. The
// status claim precedes the send; a dispatch failure downgrades the action to
// failed and it is never retried. Actions on a disabled channel are deferred
// without claiming.
func (a *NurtureAgent) sendDueActions(ctx context.Context, summary *models.RunSummary) {
	now := a.now()
	due, err := a.store.ListDueActions(now)
	if err != nil {
		slog.Error("NurtureAgent failed to list due actions", "error", err)
		summary.AddError(err)
		return
	}
	for _, action := range due {
		if !a.dispatcher.Enabled(action.Channel) {
			// The action stays scheduled until its channel is configured.
			summary.Add("actions_deferred", 1)
			continue
		}
		lead, err := a.store.GetLead(action.LeadID)
		if err != nil {
			summary.AddError(err)
			continue
		}
		claimed, err := a.store.MarkActionSent(action.ID, now)
		if err != nil {
			summary.AddError(err)
			continue
		}
		if !claimed {
			continue
		}
		recipient := lead.Email
		if action.Channel != models.ChannelEmail {
			recipient = lead.Phone
		}
		if !a.dispatcher.Send(ctx, action.Channel, recipient, action.Subject, action.Content) {
			msg := fmt.Sprintf("dispatch failed on channel %s", action.Channel)
			if err := a.store.MarkActionFailed(action.ID, msg); err != nil {
				summary.AddError(err)
			}
			summary.Add("actions_failed", 1)
			continue
		}
		summary.Add("actions_sent", 1)
		if action.StepNumber > 1 {
			// Best effort; a lead already past contacted keeps its status.
			if _, err := a.store.UpdateLeadStatus(lead.ID, models.LeadStatusContacted, models.LeadStatusFollowedUp); err != nil {
				summary.AddError(err)
			}
		}
	}
}

// leadAnalysis is the generator's JSON contract for reply analysis.
type leadAnalysis struct {
	Sentiment           string   `json:"sentiment"`
	UrgencyLevel        int      `json:"urgency_level"`
	PainPoints          []string `json:"pain_points"`
	DecisionTimeline    string   `json:"decision_timeline"`
	RecommendedApproach string   `json:"recommended_approach"`
}

// analyzeReplies turns unprocessed client replies into a refreshed
// LeadInsight. The insight is recomputed in place, never appended; malformed
// generator output degrades to a neutral baseline so the reply is still
// marked processed.
func (a *NurtureAgent) analyzeReplies(ctx context.Context, summary *models.RunSummary) {
	replies, err := a.store.ListUnprocessedReplies()
	if err != nil {
		slog.Error("NurtureAgent failed to list replies", "error", err)
		summary.AddError(err)
		return
	}
	for _, action := range replies {
		insight := a.analyzeReply(ctx, action)
		if err := a.store.SaveLeadInsight(insight); err != nil {
			summary.AddError(err)
			continue
		}
		if err := a.store.MarkReplyProcessed(action.ID); err != nil {
			summary.AddError(err)
			continue
		}
		summary.Add("replies_analyzed", 1)
	}
}

func (a *NurtureAgent) analyzeReply(ctx context.Context, action models.FollowupAction) models.LeadInsight {
	var analysis leadAnalysis
	err := a.gen.GenerateJSON(ctx,
		`You analyze a sales lead's reply. Respond with JSON only: {"sentiment": "positive|neutral|negative", "urgency_level": 1-10, "pain_points": [...], "decision_timeline": "immediate|short|medium|long", "recommended_approach": "..."}`,
		fmt.Sprintf("The lead replied: %q", action.ClientReply),
		0.3, &analysis)
	if err != nil || analysis.Sentiment == "" {
		if err != nil {
			slog.Error("NurtureAgent reply analysis failed, using neutral baseline", "error", err, "actionID", action.ID)
		}
		analysis = leadAnalysis{Sentiment: "neutral", UrgencyLevel: 5}
	}
	if analysis.UrgencyLevel < 1 {
		analysis.UrgencyLevel = 1
	}
	if analysis.UrgencyLevel > 10 {
		analysis.UrgencyLevel = 10
	}
	return models.LeadInsight{
		LeadID:              action.LeadID,
		Sentiment:           strings.ToLower(analysis.Sentiment),
		UrgencyLevel:        analysis.UrgencyLevel,
		PainPoints:          analysis.PainPoints,
		DecisionTimeline:    analysis.DecisionTimeline,
		RecommendedApproach: analysis.RecommendedApproach,
		UpdatedAt:           a.now(),
	}
}

// flagHotLeads promotes leads to high priority when the insight urgency or
// the reply count crosses the configured thresholds. The flag is one-way.
func (a *NurtureAgent) flagHotLeads(ctx context.Context, summary *models.RunSummary) {
	_ = ctx
	leads, err := a.store.ListLeadsByStatus(models.LeadStatusNew, models.LeadStatusContacted, models.LeadStatusFollowedUp)
	if err != nil {
		slog.Error("NurtureAgent failed to list leads for hot check", "error", err)
		summary.AddError(err)
		return
	}
	for _, lead := range leads {
		if lead.HighPriority {
			continue
		}
		hot := false
		insight, err := a.store.GetLeadInsight(lead.ID)
		if err == nil && insight.UrgencyLevel >= a.cfg.HotUrgency {
			hot = true
		}
		if !hot {
			replies, err := a.store.CountRepliedActionsByLead(lead.ID)
			if err != nil {
				summary.AddError(err)
				continue
			}
			hot = replies >= a.cfg.HotReplies
		}
		if !hot {
			continue
		}
		ok, err := a.store.MarkLeadHighPriority(lead.ID)
		if err != nil {
			summary.AddError(err)
			continue
		}
		if ok {
			summary.Add("leads_flagged_hot", 1)
		}
	}
}
