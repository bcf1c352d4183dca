package agents

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/edumesones/clientflow-pro/internal/models"
	"github.com/edumesones/clientflow-pro/internal/store"
	"github.com/edumesones/clientflow-pro/internal/util"
)

// ReferralConfig tunes the referral funnel.
type ReferralConfig struct {
	// Channel carries invitations and reward notifications.
	Channel models.Channel
	// CodeLength is the length of generated referral codes.
	CodeLength int
	// CodeRetries bounds the collision retry loop on code generation.
	CodeRetries int
}

// DefaultReferralConfig returns the production settings: email delivery and
// 8-character codes.
func DefaultReferralConfig() ReferralConfig {
	return ReferralConfig{Channel: models.ChannelEmail, CodeLength: 8, CodeRetries: 5}
}

// ReferralAgent runs the refer-a-friend program: it creates coded
// invitations, walks referrals forward through the funnel, and grants both
// rewards exactly once when a referred client completes an appointment.
type ReferralAgent struct {
	store      store.Store
	gen        Generator
	dispatcher Dispatcher
	now        Clock
	cfg        ReferralConfig
}

// NewReferralAgent wires the referral agent with its collaborators.
func NewReferralAgent(s store.Store, gen Generator, d Dispatcher, now Clock, cfg ReferralConfig) *ReferralAgent {
	return &ReferralAgent{store: s, gen: gen, dispatcher: d, now: now, cfg: cfg}
}

func (a *ReferralAgent) Name() string { return "referral" }

// Run grants rewards for referrals whose referred client completed an
// appointment, and notifies both sides.
func (a *ReferralAgent) Run(ctx context.Context) models.RunSummary {
	summary := models.NewRunSummary(a.Name())
	unrewarded, err := a.store.ListUnrewardedReferrals()
	if err != nil {
		slog.Error("ReferralAgent failed to list unrewarded referrals", "error", err)
		summary.AddError(err)
		return summary
	}
	for _, ref := range unrewarded {
		granted, err := a.store.GrantReferralRewards(ref.ID, a.now())
		if err != nil {
			slog.Error("ReferralAgent reward grant failed", "error", err, "referralID", ref.ID)
			summary.AddError(err)
			continue
		}
		if !granted {
			continue
		}
		summary.Add("rewards_granted", 1)
		a.notifyRewards(ctx, ref)
	}
	slog.Debug("ReferralAgent run complete", "counts", summary.Counts, "errors", len(summary.Errors))
	return summary
}

// ensureCampaign returns the professional's active campaign, creating the
// default one on first touch. A professional whose campaigns are all
// deactivated has opted out and gets ErrCampaignInactive instead of a fresh
// default.
func (a *ReferralAgent) ensureCampaign(professionalID string) (*models.ReferralCampaign, error) {
	campaign, err := a.store.GetActiveCampaign(professionalID)
	if err == nil {
		return campaign, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}
	existing, err := a.store.ListReferralCampaigns(professionalID)
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		return nil, models.ErrCampaignInactive
	}
	created := models.ReferralCampaign{
		ID:             util.GenerateRandomID("camp", 16),
		ProfessionalID: professionalID,
		Name:           "Refer a friend",
		Description:    "Share your link and you both get a discount.",
		ReferrerReward: "10% off your next appointment",
		ReferredReward: "10% off your first appointment",
		IsActive:       true,
		CreatedAt:      a.now(),
	}
	if err := a.store.SaveReferralCampaign(created); err != nil {
		return nil, err
	}
	return &created, nil
}

// uniqueCode generates a referral code not yet present in the store.
func (a *ReferralAgent) uniqueCode() (string, error) {
	for i := 0; i < a.cfg.CodeRetries; i++ {
		code := util.GenerateReferralCode(a.cfg.CodeLength)
		exists, err := a.store.ReferralCodeExists(code)
		if err != nil {
			return "", err
		}
		if !exists {
			return code, nil
		}
	}
	return "", fmt.Errorf("failed to generate a unique referral code after %d attempts", a.cfg.CodeRetries)
}

// CreateInvitation opens a referral from an existing client to a friend and
// sends the invitation message. The professional's campaign is created with
// defaults if none exists yet.
func (a *ReferralAgent) CreateInvitation(ctx context.Context, professionalID, referrerID, referredEmail, referredName string) (*models.Referral, error) {
	if referredEmail == "" {
		return nil, models.ErrEmptyRecipient
	}
	campaign, err := a.ensureCampaign(professionalID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve campaign for professional %s: %w", professionalID, err)
	}
	referrer, err := a.store.GetClient(referrerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load referrer %s: %w", referrerID, err)
	}
	professional, err := a.store.GetProfessional(professionalID)
	if err != nil {
		return nil, fmt.Errorf("failed to load professional %s: %w", professionalID, err)
	}

	code, err := a.uniqueCode()
	if err != nil {
		return nil, err
	}
	link := fmt.Sprintf("https://clientflow.pro/%s?ref=%s", professional.Slug, code)

	message := a.gen.Generate(ctx,
		fmt.Sprintf("You write short, friendly referral invitations for %s. One paragraph, include the link verbatim.", professional.FullName),
		fmt.Sprintf("%s is inviting %s. Referred reward: %s. Link: %s", referrer.FullName, referredName, campaign.ReferredReward, link),
		0.7)
	if message == "" {
		message = fmt.Sprintf("Hi %s, %s thought you'd like %s. Book with this link and get %s: %s",
			referredName, referrer.FullName, professional.FullName, campaign.ReferredReward, link)
	}

	now := a.now()
	referral := models.Referral{
		ID:             util.GenerateRandomID("ref", 16),
		CampaignID:     campaign.ID,
		ProfessionalID: professionalID,
		ReferrerID:     referrerID,
		ReferrerEmail:  referrer.Email,
		ReferredEmail:  referredEmail,
		ReferredName:   referredName,
		Code:           code,
		Link:           link,
		Status:         models.ReferralStatusInvited,
		InvitedAt:      now,
	}
	invitation := models.ReferralInvitation{
		ID:         util.GenerateRandomID("inv", 16),
		ReferralID: referral.ID,
		Message:    message,
		Channel:    models.ChannelEmail,
	}
	if err := a.store.CreateReferral(referral, invitation); err != nil {
		return nil, fmt.Errorf("failed to create referral %s: %w", referral.ID, err)
	}

	// Invitations always go by email; we only hold an address for the
	// referred person at this point.
	if a.dispatcher.Send(ctx, models.ChannelEmail, referredEmail, fmt.Sprintf("%s invited you", referrer.FullName), message) {
		if err := a.store.MarkInvitationSent(invitation.ID, a.now()); err != nil {
			slog.Error("ReferralAgent failed to mark invitation sent", "error", err, "invitationID", invitation.ID)
		}
	} else {
		slog.Error("ReferralAgent invitation dispatch failed", "referralID", referral.ID)
	}
	return &referral, nil
}

// SignUp records that the referred person created an account with the code.
// Moves invited or clicked referrals to signed_up; anything further along is
// left untouched. The referrer gets a heads-up that their code worked.
func (a *ReferralAgent) SignUp(ctx context.Context, code, email string) error {
	ok, err := a.store.MarkReferralSignedUp(code, email, a.now())
	if err != nil {
		return fmt.Errorf("failed to record signup for code %s: %w", code, err)
	}
	if !ok {
		return fmt.Errorf("code %s cannot sign up: %w", code, models.ErrInvalidStatus)
	}
	a.notifyReferrerSignup(ctx, code)
	return nil
}

// notifyReferrerSignup is best effort; the signup already stuck.
func (a *ReferralAgent) notifyReferrerSignup(ctx context.Context, code string) {
	ref, err := a.store.GetReferralByCode(code)
	if err != nil {
		slog.Error("ReferralAgent failed to load referral for signup notice", "error", err, "code", code)
		return
	}
	if ref.ReferrerEmail == "" {
		return
	}
	name := ref.ReferredName
	if name == "" {
		name = "Your friend"
	}
	body := fmt.Sprintf("%s just signed up with your referral code %s. Your reward unlocks after their first appointment.", name, ref.Code)
	if !a.dispatcher.Send(ctx, models.ChannelEmail, ref.ReferrerEmail, "Your referral signed up", body) {
		slog.Error("ReferralAgent referrer signup notice failed", "referralID", ref.ID)
	}
}

// CompleteAppointment records that the referred client attended their first
// appointment, making the referral eligible for rewards on the next run.
func (a *ReferralAgent) CompleteAppointment(code string) error {
	ok, err := a.store.MarkReferralCompleted(code, a.now())
	if err != nil {
		return fmt.Errorf("failed to record completion for code %s: %w", code, err)
	}
	if !ok {
		return fmt.Errorf("code %s cannot complete: %w", code, models.ErrInvalidStatus)
	}
	return nil
}

// notifyRewards is best effort; the grant already happened and will not be
// repeated whether or not these messages land.
func (a *ReferralAgent) notifyRewards(ctx context.Context, ref models.Referral) {
	campaign, err := a.store.GetReferralCampaign(ref.CampaignID)
	if err != nil {
		slog.Error("ReferralAgent failed to load campaign for reward notice", "error", err, "campaignID", ref.CampaignID)
		return
	}
	if ref.ReferrerEmail != "" {
		body := fmt.Sprintf("Your referral completed their first appointment. Your reward: %s.", campaign.ReferrerReward)
		if !a.dispatcher.Send(ctx, a.cfg.Channel, ref.ReferrerEmail, "Your referral reward is ready", body) {
			slog.Error("ReferralAgent referrer reward notice failed", "referralID", ref.ID)
		}
	}
	if ref.ReferredEmail != "" {
		body := fmt.Sprintf("Thanks for coming in! Your reward: %s.", campaign.ReferredReward)
		if !a.dispatcher.Send(ctx, a.cfg.Channel, ref.ReferredEmail, "Your welcome reward is ready", body) {
			slog.Error("ReferralAgent referred reward notice failed", "referralID", ref.ID)
		}
	}
}
