// Package agents implements the automation agents that drive the ClientFlow
// engine: confirmation (anti no-show), nurture (lead follow-up), brief
// (pre-meeting intelligence), and the growth trio (content, review,
// referral).
//
// Agents are stateless between runs. All progress lives in the store, every
// externally visible side effect sits behind a guarded store claim, and the
// clock is injected so runs are reproducible in tests. Generation and
// dispatch failures are per-record: logged, counted in the run summary, and
// never abort the batch.
package agents

import (
	"context"
	"fmt"
	"time"

	"github.com/edumesones/clientflow-pro/internal/models"
	"github.com/edumesones/clientflow-pro/internal/store"
)

// Agent is one scheduled automation. Run processes everything currently due
// and reports what it did; it never returns an error because per-record
// failures are collected in the summary.
type Agent interface {
	Name() string
	Run(ctx context.Context) models.RunSummary
}

// Generator produces message text and structured JSON from prompts.
// Generate returns the empty string on failure; GenerateJSON returns an
// error so callers can fall back to deterministic content.
type Generator interface {
	Generate(ctx context.Context, systemPrompt, userPrompt string, temperature float64) string
	GenerateJSON(ctx context.Context, systemPrompt, userPrompt string, temperature float64, v any) error
}

// Dispatcher delivers one message over a channel. Send reports success;
// a channel with no registered sender is a successful no-op.
type Dispatcher interface {
	Send(ctx context.Context, channel models.Channel, recipient, subject, body string) bool
	Enabled(channel models.Channel) bool
}

// Clock supplies the current time. Production passes time.Now.
type Clock func() time.Time

// contact is the resolved recipient for an appointment or lead.
type contact struct {
	Name  string
	Email string
	Phone string
}

// recipient picks the address matching the channel.
func (c contact) recipient(ch models.Channel) string {
	if ch == models.ChannelEmail {
		return c.Email
	}
	return c.Phone
}

// appointmentContact resolves who to message about an appointment. A linked
// client wins; otherwise the lead contact fields captured at booking apply.
func appointmentContact(s store.Store, a models.Appointment) (contact, error) {
	if a.ClientID != "" {
		client, err := s.GetClient(a.ClientID)
		if err != nil {
			return contact{}, fmt.Errorf("failed to resolve client for appointment %s: %w", a.ID, err)
		}
		return contact{Name: client.FullName, Email: client.Email, Phone: client.Phone}, nil
	}
	if a.LeadEmail == "" && a.LeadPhone == "" {
		return contact{}, fmt.Errorf("appointment %s: %w", a.ID, models.ErrMissingClient)
	}
	return contact{Name: a.LeadName, Email: a.LeadEmail, Phone: a.LeadPhone}, nil
}

// appointmentStart combines the calendar day and wall-clock start time into a
// single UTC instant. An unparseable start time degrades to midnight.
func appointmentStart(a models.Appointment) time.Time {
	t, err := time.Parse("15:04", a.StartTime)
	if err != nil {
		return a.Date
	}
	return a.Date.Add(time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute)
}
