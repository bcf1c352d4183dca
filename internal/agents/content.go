package agents

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/edumesones/clientflow-pro/internal/models"
	"github.com/edumesones/clientflow-pro/internal/store"
	"github.com/edumesones/clientflow-pro/internal/util"
)

// contentTemplate is one post idea in an industry's bank.
type contentTemplate struct {
	Title string // may contain %s for the professional's name
	Topic string
}

// industryTemplates is the per-industry post idea bank. Industry is detected
// by keyword match on the professional's specialty; unknown specialties fall
// through to the generic services bank.
var industryTemplates = map[string][]contentTemplate{
	"fitness": {
		{Title: "3 habits my clients swear by", Topic: "sustainable training habits"},
		{Title: "What nobody tells you about rest days", Topic: "recovery and rest"},
		{Title: "How %s structures a first session", Topic: "what to expect in a first session"},
	},
	"therapy": {
		{Title: "A small exercise for anxious days", Topic: "a simple grounding exercise"},
		{Title: "What therapy is (and isn't)", Topic: "common misconceptions about therapy"},
		{Title: "How %s approaches the first conversation", Topic: "what a first therapy session looks like"},
	},
	"consulting": {
		{Title: "The question I ask every new client", Topic: "diagnosing a business problem fast"},
		{Title: "3 signs it's time to bring in outside help", Topic: "when to hire a consultant"},
		{Title: "A week in the life with %s", Topic: "how an engagement actually works"},
	},
	"beauty": {
		{Title: "The routine mistake almost everyone makes", Topic: "a common beauty routine mistake"},
		{Title: "Before and after: what changed", Topic: "a recent client transformation"},
		{Title: "How %s picks products for each client", Topic: "personalized product selection"},
	},
	"legal": {
		{Title: "3 clauses to read before you sign", Topic: "contract clauses people skip"},
		{Title: "When a consultation saves you money", Topic: "the value of early legal advice"},
		{Title: "How %s handles a first consultation", Topic: "what to bring to a first legal consultation"},
	},
	"services": {
		{Title: "What my best clients have in common", Topic: "habits of great clients"},
		{Title: "The most common question I get", Topic: "an answer to a frequent client question"},
		{Title: "How %s prepares for every appointment", Topic: "behind the scenes of an appointment"},
	},
}

var industryKeywords = map[string][]string{
	"fitness":    {"fitness", "trainer", "coach", "nutrition", "gym", "yoga"},
	"therapy":    {"therapy", "therapist", "psycholog", "counsel", "mental"},
	"consulting": {"consult", "advisor", "strategy", "business"},
	"beauty":     {"beauty", "hair", "salon", "aesthet", "skin", "makeup"},
	"legal":      {"legal", "lawyer", "attorney", "abogad", "law"},
}

// detectIndustry classifies a specialty string into a template bank key.
func detectIndustry(specialty string) string {
	lower := strings.ToLower(specialty)
	for industry, keywords := range industryKeywords {
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				return industry
			}
		}
	}
	return "services"
}

// ContentConfig tunes the marketing content pipeline.
type ContentConfig struct {
	// PendingWatermark is how many draft+scheduled posts each professional
	// should have queued at all times.
	PendingWatermark int
	// MinScheduleDays and MaxScheduleDays bound the randomized future slot a
	// draft is promoted into.
	MinScheduleDays int
	MaxScheduleDays int
}

// DefaultContentConfig returns the production settings: a watermark of five
// pending posts, scheduled one to seven days out.
func DefaultContentConfig() ContentConfig {
	return ContentConfig{PendingWatermark: 5, MinScheduleDays: 1, MaxScheduleDays: 7}
}

// ContentAgent keeps every active professional's marketing queue topped up
// with drafts and promotes drafts onto the calendar.
type ContentAgent struct {
	store store.Store
	gen   Generator
	now   Clock
	cfg   ContentConfig
}

// NewContentAgent wires the content agent with its collaborators.
func NewContentAgent(s store.Store, gen Generator, now Clock, cfg ContentConfig) *ContentAgent {
	return &ContentAgent{store: s, gen: gen, now: now, cfg: cfg}
}

func (a *ContentAgent) Name() string { return "content" }

// Run ensures each professional has a strategy, tops drafts up to the
// watermark, then schedules pending drafts.
func (a *ContentAgent) Run(ctx context.Context) models.RunSummary {
	summary := models.NewRunSummary(a.Name())
	a.topUpDrafts(ctx, &summary)
	a.scheduleDrafts(ctx, &summary)
	slog.Debug("ContentAgent run complete", "counts", summary.Counts, "errors", len(summary.Errors))
	return summary
}

// ensureStrategy returns the professional's strategy, creating the default
// one on first touch.
func (a *ContentAgent) ensureStrategy(professional models.Professional) (*models.ContentStrategy, error) {
	existing, err := a.store.GetContentStrategy(professional.ID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}
	strategy := models.ContentStrategy{
		ProfessionalID: professional.ID,
		ToneOfVoice:    "professional yet approachable",
		Platforms:      []string{"instagram", "linkedin"},
		BookingLink:    fmt.Sprintf("https://clientflow.pro/%s", professional.Slug),
		IsActive:       true,
		CreatedAt:      a.now(),
	}
	if err := a.store.SaveContentStrategy(strategy); err != nil {
		return nil, err
	}
	return &strategy, nil
}

func (a *ContentAgent) topUpDrafts(ctx context.Context, summary *models.RunSummary) {
	professionals, err := a.store.ListProfessionals()
	if err != nil {
		slog.Error("ContentAgent failed to list professionals", "error", err)
		summary.AddError(err)
		return
	}
	for _, professional := range professionals {
		strategy, err := a.ensureStrategy(professional)
		if err != nil {
			summary.AddError(err)
			continue
		}
		if !strategy.IsActive {
			continue
		}
		pending, err := a.store.CountPendingContent(professional.ID)
		if err != nil {
			summary.AddError(err)
			continue
		}
		for i := pending; i < a.cfg.PendingWatermark; i++ {
			if err := a.generateDraft(ctx, professional, *strategy, i); err != nil {
				slog.Error("ContentAgent draft generation failed", "error", err, "professionalID", professional.ID)
				summary.AddError(err)
				continue
			}
			summary.Add("drafts_created", 1)
		}
	}
}

// contentPayload is the generator's JSON contract for post bodies.
type contentPayload struct {
	Body            string   `json:"body"`
	Hashtags        []string `json:"hashtags"`
	CallToAction    string   `json:"call_to_action"`
	EngagementScore int      `json:"engagement_score"`
}

func (a *ContentAgent) generateDraft(ctx context.Context, professional models.Professional, strategy models.ContentStrategy, seq int) error {
	industry := detectIndustry(professional.Specialty)
	bank := industryTemplates[industry]
	tmpl := bank[seq%len(bank)]

	title := tmpl.Title
	if strings.Contains(title, "%s") {
		title = fmt.Sprintf(title, professional.FullName)
	}
	platforms := strategy.Platforms
	if len(platforms) == 0 {
		platforms = []string{"instagram"}
	}
	platform := platforms[seq%len(platforms)]

	var payload contentPayload
	err := a.gen.GenerateJSON(ctx,
		fmt.Sprintf(`You write social media posts for a %s professional. Tone: %s. Respond with JSON only: {"body": "...", "hashtags": [...], "call_to_action": "...", "engagement_score": 1-10}`,
			industry, strategy.ToneOfVoice),
		fmt.Sprintf("Write a %s post titled %q about %s.", platform, title, tmpl.Topic),
		0.8, &payload)
	if err != nil || payload.Body == "" {
		if err != nil {
			slog.Error("ContentAgent generation fell back to template", "error", err, "professionalID", professional.ID)
		}
		payload = contentPayload{
			Body:            fmt.Sprintf("%s: thoughts from %s on %s. Book a session to learn more.", title, professional.FullName, tmpl.Topic),
			Hashtags:        []string{"#" + industry},
			CallToAction:    "Book through the link in bio.",
			EngagementScore: 5,
		}
	}
	if payload.EngagementScore < 1 || payload.EngagementScore > 10 {
		payload.EngagementScore = 5
	}

	return a.store.SaveGeneratedContent(models.GeneratedContent{
		ID:              util.GenerateRandomID("content", 16),
		ProfessionalID:  professional.ID,
		Platform:        platform,
		Title:           title,
		Body:            payload.Body,
		Hashtags:        payload.Hashtags,
		CallToAction:    payload.CallToAction,
		BookingLink:     strategy.BookingLink,
		Status:          models.ContentStatusDraft,
		EngagementScore: payload.EngagementScore,
		CreatedAt:       a.now(),
	})
}

// scheduleDrafts promotes drafts under an active strategy to scheduled with
// a randomized future slot. The draft guard makes the promotion race-safe.
func (a *ContentAgent) scheduleDrafts(ctx context.Context, summary *models.RunSummary) {
	_ = ctx
	strategies, err := a.store.ListActiveContentStrategies()
	if err != nil {
		slog.Error("ContentAgent failed to list active strategies", "error", err)
		summary.AddError(err)
		return
	}
	active := make(map[string]bool, len(strategies))
	for _, strategy := range strategies {
		active[strategy.ProfessionalID] = true
	}

	drafts, err := a.store.ListDraftContent()
	if err != nil {
		slog.Error("ContentAgent failed to list drafts", "error", err)
		summary.AddError(err)
		return
	}
	for _, draft := range drafts {
		// A strategy deactivated after drafting parks its drafts until it
		// comes back.
		if !active[draft.ProfessionalID] {
			continue
		}
		days := a.cfg.MinScheduleDays
		if spread := a.cfg.MaxScheduleDays - a.cfg.MinScheduleDays; spread > 0 {
			days += rand.IntN(spread + 1)
		}
		at := a.now().Add(time.Duration(days) * 24 * time.Hour)
		ok, err := a.store.ScheduleContent(draft.ID, at)
		if err != nil {
			summary.AddError(err)
			continue
		}
		if ok {
			summary.Add("posts_scheduled", 1)
		}
	}
}
