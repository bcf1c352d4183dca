package agents

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/edumesones/clientflow-pro/internal/models"
	"github.com/edumesones/clientflow-pro/internal/store"
)

func TestReferralInvitationCreatesCampaignAndCode(t *testing.T) {
	s := store.NewInMemoryStore()
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	seedClient(s, "client-1", "Ana Torres", "ana@example.com")
	seedProfessional(s, "prof-1", "Marta Ruiz", "massage therapist")

	d := &stubDispatcher{}
	agent := NewReferralAgent(s, &stubGenerator{}, d, fixedClock(now), DefaultReferralConfig())

	ref, err := agent.CreateInvitation(context.Background(), "prof-1", "client-1", "friend@example.com", "Bea")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ref.Code) != 8 {
		t.Errorf("expected an 8-character code, got %q", ref.Code)
	}
	if ref.Status != models.ReferralStatusInvited {
		t.Errorf("expected invited status, got %s", ref.Status)
	}
	if !strings.Contains(ref.Link, ref.Code) {
		t.Errorf("link %q does not carry the code", ref.Link)
	}

	campaign, err := s.GetActiveCampaign("prof-1")
	if err != nil {
		t.Fatalf("expected auto-created campaign: %v", err)
	}
	if campaign.ReferrerReward == "" || campaign.ReferredReward == "" {
		t.Errorf("default campaign has empty rewards: %+v", campaign)
	}

	if len(d.sent) != 1 || d.sent[0].Recipient != "friend@example.com" {
		t.Fatalf("unexpected dispatches: %+v", d.sent)
	}

	stored, err := s.GetReferralByCode(ref.Code)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stored.ReferrerEmail != "ana@example.com" {
		t.Errorf("unexpected referrer email %q", stored.ReferrerEmail)
	}
}

func TestReferralInactiveCampaignRejected(t *testing.T) {
	s := store.NewInMemoryStore()
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	seedClient(s, "client-1", "Ana Torres", "ana@example.com")
	seedProfessional(s, "prof-1", "Marta Ruiz", "massage therapist")
	// A deactivated campaign means the professional opted out; no default
	// campaign is created behind their back.
	if err := s.SaveReferralCampaign(models.ReferralCampaign{
		ID: "camp-1", ProfessionalID: "prof-1", Name: "Old campaign",
		ReferrerReward: "x", ReferredReward: "y", IsActive: false, CreatedAt: now,
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	agent := NewReferralAgent(s, &stubGenerator{}, &stubDispatcher{}, fixedClock(now), DefaultReferralConfig())
	_, err := agent.CreateInvitation(context.Background(), "prof-1", "client-1", "friend@example.com", "Bea")
	if !errors.Is(err, models.ErrCampaignInactive) {
		t.Errorf("expected ErrCampaignInactive, got %v", err)
	}

	if _, err := agent.CreateInvitation(context.Background(), "prof-1", "client-1", "", "Bea"); !errors.Is(err, models.ErrEmptyRecipient) {
		t.Errorf("expected ErrEmptyRecipient, got %v", err)
	}
}

func TestReferralFunnelRewardsOnce(t *testing.T) {
	s := store.NewInMemoryStore()
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	seedClient(s, "client-1", "Ana Torres", "ana@example.com")
	seedProfessional(s, "prof-1", "Marta Ruiz", "massage therapist")

	d := &stubDispatcher{}
	agent := NewReferralAgent(s, &stubGenerator{}, d, fixedClock(now), DefaultReferralConfig())
	ref, err := agent.CreateInvitation(context.Background(), "prof-1", "client-1", "friend@example.com", "Bea")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// The reward run has nothing to grant before the funnel completes.
	summary := agent.Run(context.Background())
	if summary.Counts["rewards_granted"] != 0 {
		t.Fatalf("rewards granted before completion")
	}

	if err := agent.SignUp(context.Background(), ref.Code, "friend@example.com"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// The referrer hears about the signup exactly once.
	signupNotices := 0
	for _, msg := range d.sent {
		if msg.Subject == "Your referral signed up" {
			signupNotices++
			if msg.Recipient != "ana@example.com" {
				t.Errorf("signup notice went to %q", msg.Recipient)
			}
		}
	}
	if signupNotices != 1 {
		t.Fatalf("expected 1 signup notice, got %d", signupNotices)
	}
	if err := agent.SignUp(context.Background(), ref.Code, "friend@example.com"); err == nil {
		t.Error("expected second signup to be rejected")
	}
	if err := agent.CompleteAppointment(ref.Code); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	summary = agent.Run(context.Background())
	if summary.Counts["rewards_granted"] != 1 {
		t.Fatalf("expected 1 reward grant, got %d", summary.Counts["rewards_granted"])
	}
	summary = agent.Run(context.Background())
	if summary.Counts["rewards_granted"] != 0 {
		t.Errorf("reward granted twice")
	}

	final, err := s.GetReferralByCode(ref.Code)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if final.Status != models.ReferralStatusRewarded {
		t.Errorf("expected rewarded status, got %s", final.Status)
	}
	if !final.ReferrerRewardGiven || !final.ReferredRewardGiven {
		t.Errorf("expected both reward flags set: %+v", final)
	}
	if final.RewardedAt == nil {
		t.Error("expected rewarded timestamp")
	}

	// Invitation, signup notice, then one reward notice to each side.
	if len(d.sent) != 4 {
		t.Errorf("expected 4 messages total, got %d", len(d.sent))
	}
}

func TestReferralCompleteRequiresSignup(t *testing.T) {
	s := store.NewInMemoryStore()
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	seedClient(s, "client-1", "Ana Torres", "ana@example.com")
	seedProfessional(s, "prof-1", "Marta Ruiz", "massage therapist")

	agent := NewReferralAgent(s, &stubGenerator{}, &stubDispatcher{}, fixedClock(now), DefaultReferralConfig())
	ref, err := agent.CreateInvitation(context.Background(), "prof-1", "client-1", "friend@example.com", "Bea")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := agent.CompleteAppointment(ref.Code); !errors.Is(err, models.ErrInvalidStatus) {
		t.Errorf("expected ErrInvalidStatus for skipping signup, got %v", err)
	}
}
