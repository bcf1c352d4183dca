package agents

import (
	"context"
	"encoding/json"
	"time"

	"github.com/edumesones/clientflow-pro/internal/models"
	"github.com/edumesones/clientflow-pro/internal/store"
)

// stubGenerator returns canned generation results. An empty text simulates a
// generation failure so fallback paths are exercised.
type stubGenerator struct {
	text    string
	jsonRaw string
	jsonErr error
}

func (g *stubGenerator) Generate(ctx context.Context, systemPrompt, userPrompt string, temperature float64) string {
	return g.text
}

func (g *stubGenerator) GenerateJSON(ctx context.Context, systemPrompt, userPrompt string, temperature float64, v any) error {
	if g.jsonErr != nil {
		return g.jsonErr
	}
	if g.jsonRaw == "" {
		return nil
	}
	return json.Unmarshal([]byte(g.jsonRaw), v)
}

type sentMessage struct {
	Channel   models.Channel
	Recipient string
	Subject   string
	Body      string
}

// stubDispatcher records every send. Setting fail makes all sends report
// failure without recording; channels in disabled report as not configured.
type stubDispatcher struct {
	fail     bool
	disabled map[models.Channel]bool
	sent     []sentMessage
}

func (d *stubDispatcher) Send(ctx context.Context, channel models.Channel, recipient, subject, body string) bool {
	if d.fail {
		return false
	}
	d.sent = append(d.sent, sentMessage{Channel: channel, Recipient: recipient, Subject: subject, Body: body})
	return true
}

func (d *stubDispatcher) Enabled(channel models.Channel) bool { return !d.disabled[channel] }

func fixedClock(t time.Time) Clock {
	return func() time.Time { return t }
}

func seedClient(s store.Store, id, name, email string) {
	_ = s.SaveClient(models.Client{ID: id, FullName: name, Email: email, Phone: "+1555000" + id})
}

func seedProfessional(s store.Store, id, name, specialty string) {
	_ = s.SaveProfessional(models.Professional{
		ID:        id,
		FullName:  name,
		Email:     id + "@example.com",
		Slug:      id,
		Specialty: specialty,
	})
}
