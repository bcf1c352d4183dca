package store

import (
	"sort"
	"sync"
	"time"

	"github.com/edumesones/clientflow-pro/internal/models"
)

// InMemoryStore is a map-backed Store used in tests and for ephemeral runs.
// It applies the same guard semantics as the SQL backends so agent logic can
// be exercised without a database file.
type InMemoryStore struct {
	mu sync.Mutex

	clients       map[string]models.Client
	professionals map[string]models.Professional
	appointments  map[string]models.Appointment
	confirmations map[string]models.Confirmation // keyed by appointment_id
	reliability   map[string]models.ReliabilityPattern
	notes         []models.ClientNote
	leads         map[string]models.Lead
	sequences     map[string]models.FollowupSequence
	actions       map[string]models.FollowupAction
	leadInsights  map[string]models.LeadInsight
	briefs        map[string]models.AppointmentBrief // keyed by appointment_id
	clientInsight map[string]models.ClientInsight    // keyed by client_id+"/"+professional_id
	strategies    map[string]models.ContentStrategy
	content       map[string]models.GeneratedContent
	reviewReqs    map[string]models.ReviewRequest // keyed by id
	publicReviews map[string]models.PublicReview
	campaigns     map[string]models.ReferralCampaign
	referrals     map[string]models.Referral // keyed by id
	invitations   map[string]models.ReferralInvitation
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		clients:       make(map[string]models.Client),
		professionals: make(map[string]models.Professional),
		appointments:  make(map[string]models.Appointment),
		confirmations: make(map[string]models.Confirmation),
		reliability:   make(map[string]models.ReliabilityPattern),
		leads:         make(map[string]models.Lead),
		sequences:     make(map[string]models.FollowupSequence),
		actions:       make(map[string]models.FollowupAction),
		leadInsights:  make(map[string]models.LeadInsight),
		briefs:        make(map[string]models.AppointmentBrief),
		clientInsight: make(map[string]models.ClientInsight),
		strategies:    make(map[string]models.ContentStrategy),
		content:       make(map[string]models.GeneratedContent),
		reviewReqs:    make(map[string]models.ReviewRequest),
		publicReviews: make(map[string]models.PublicReview),
		campaigns:     make(map[string]models.ReferralCampaign),
		referrals:     make(map[string]models.Referral),
		invitations:   make(map[string]models.ReferralInvitation),
	}
}

func (s *InMemoryStore) Close() error { return nil }

func sameDay(a, b time.Time) bool {
	return a.UTC().Format(dateLayout) == b.UTC().Format(dateLayout)
}

// Clients and professionals.

func (s *InMemoryStore) SaveClient(c models.Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[c.ID] = c
	return nil
}

func (s *InMemoryStore) GetClient(id string) (*models.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.clients[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &c, nil
}

func (s *InMemoryStore) ListClientIDs() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.clients))
	for id := range s.clients {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *InMemoryStore) SaveProfessional(p models.Professional) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.professionals[p.ID] = p
	return nil
}

func (s *InMemoryStore) GetProfessional(id string) (*models.Professional, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.professionals[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &p, nil
}

func (s *InMemoryStore) ListProfessionals() ([]models.Professional, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Professional, 0, len(s.professionals))
	for _, p := range s.professionals {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Appointments.

func (s *InMemoryStore) SaveAppointment(a models.Appointment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appointments[a.ID] = a
	return nil
}

func (s *InMemoryStore) GetAppointment(id string) (*models.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.appointments[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &a, nil
}

func (s *InMemoryStore) ListAppointmentsDue24hReminder(day time.Time) ([]models.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Appointment
	for _, a := range s.appointments {
		if sameDay(a.Date, day) && !a.Reminder24hSent &&
			(a.Status == models.AppointmentStatusPending || a.Status == models.AppointmentStatusConfirmed) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime < out[j].StartTime })
	return out, nil
}

func (s *InMemoryStore) ClaimReminder24h(appointmentID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.appointments[appointmentID]
	if !ok || a.Reminder24hSent {
		return false, nil
	}
	if a.Status != models.AppointmentStatusPending && a.Status != models.AppointmentStatusConfirmed {
		return false, nil
	}
	a.Reminder24hSent = true
	s.appointments[appointmentID] = a
	return true, nil
}

func (s *InMemoryStore) ListAppointmentHistory(clientID, professionalID string) ([]models.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Appointment
	for _, a := range s.appointments {
		if a.ClientID == clientID && a.ProfessionalID == professionalID && a.Status == models.AppointmentStatusCompleted {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out, nil
}

func (s *InMemoryStore) ListRecentAppointmentsByClient(clientID string, limit int) ([]models.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Appointment
	for _, a := range s.appointments {
		if a.ClientID == clientID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *InMemoryStore) ListCompletedAppointmentsForReview(from, to time.Time) ([]models.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Appointment
	for _, a := range s.appointments {
		if a.Status == models.AppointmentStatusCompleted && !a.ReviewRequested &&
			!a.UpdatedAt.Before(from) && !a.UpdatedAt.After(to) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	return out, nil
}

func (s *InMemoryStore) ClaimReviewRequested(appointmentID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.appointments[appointmentID]
	if !ok || a.ReviewRequested || a.Status != models.AppointmentStatusCompleted {
		return false, nil
	}
	a.ReviewRequested = true
	s.appointments[appointmentID] = a
	return true, nil
}

func (s *InMemoryStore) CountAppointmentsByClientSince(clientID string, since time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, a := range s.appointments {
		if a.ClientID == clientID && !a.Date.Before(since) {
			n++
		}
	}
	return n, nil
}

func (s *InMemoryStore) CountNoShowsByClientSince(clientID string, since time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, a := range s.appointments {
		if a.ClientID == clientID && a.Status == models.AppointmentStatusNoShow && !a.Date.Before(since) {
			n++
		}
	}
	return n, nil
}

func (s *InMemoryStore) ListClientIDsWithAppointmentsSince(since time.Time) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[string]bool)
	for _, a := range s.appointments {
		if a.ClientID != "" && !a.Date.Before(since) {
			seen[a.ClientID] = true
		}
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *InMemoryStore) ListUpcomingAppointmentsWithoutBrief(from, to time.Time) ([]models.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Appointment
	for _, a := range s.appointments {
		if a.Status != models.AppointmentStatusPending && a.Status != models.AppointmentStatusConfirmed {
			continue
		}
		if a.Date.Before(from.UTC().Truncate(24*time.Hour)) || a.Date.After(to) {
			continue
		}
		if _, exists := s.briefs[a.ID]; exists {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].StartTime < out[j].StartTime
	})
	return out, nil
}

// Confirmations.

func (s *InMemoryStore) SaveConfirmation(c models.Confirmation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.confirmations[c.AppointmentID] = c
	return nil
}

func (s *InMemoryStore) GetConfirmationByAppointment(appointmentID string) (*models.Confirmation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.confirmations[appointmentID]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &c, nil
}

func (s *InMemoryStore) findConfirmation(id string) (models.Confirmation, string, bool) {
	for key, c := range s.confirmations {
		if c.ID == id {
			return c, key, true
		}
	}
	return models.Confirmation{}, "", false
}

func (s *InMemoryStore) ListConfirmationsPendingBefore(cutoff time.Time) ([]models.Confirmation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Confirmation
	for _, c := range s.confirmations {
		if c.Status == models.ConfirmationStatusPending && c.Reminder24hAt != nil && c.Reminder24hAt.Before(cutoff) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *InMemoryStore) MarkConfirmationNoResponse(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, key, ok := s.findConfirmation(id)
	if !ok || c.Status != models.ConfirmationStatusPending {
		return false, nil
	}
	c.Status = models.ConfirmationStatusNoResponse
	s.confirmations[key] = c
	return true, nil
}

func (s *InMemoryStore) ListConfirmationsForReschedule(cutoff time.Time) ([]models.Confirmation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Confirmation
	for _, c := range s.confirmations {
		if c.Status == models.ConfirmationStatusNoResponse && !c.AutoRescheduled &&
			c.Reminder24hAt != nil && c.Reminder24hAt.Before(cutoff) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *InMemoryStore) ClaimAutoReschedule(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, key, ok := s.findConfirmation(id)
	if !ok || c.AutoRescheduled || c.Status != models.ConfirmationStatusNoResponse {
		return false, nil
	}
	c.AutoRescheduled = true
	s.confirmations[key] = c
	return true, nil
}

// Reliability patterns.

func (s *InMemoryStore) SaveReliabilityPattern(p models.ReliabilityPattern) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reliability[p.ClientID] = p
	return nil
}

func (s *InMemoryStore) GetReliabilityPattern(clientID string) (*models.ReliabilityPattern, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.reliability[clientID]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &p, nil
}

// Leads.

func (s *InMemoryStore) SaveLead(l models.Lead) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.leads[l.ID] = l
	return nil
}

func (s *InMemoryStore) GetLead(id string) (*models.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.leads[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &l, nil
}

func (s *InMemoryStore) ListNewLeadsWithoutSequence() ([]models.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	withSequence := make(map[string]bool)
	for _, seq := range s.sequences {
		withSequence[seq.LeadID] = true
	}
	var out []models.Lead
	for _, l := range s.leads {
		if l.Status == models.LeadStatusNew && !withSequence[l.ID] {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *InMemoryStore) ListLeadsByStatus(statuses ...models.LeadStatus) ([]models.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	want := make(map[models.LeadStatus]bool, len(statuses))
	for _, st := range statuses {
		want[st] = true
	}
	var out []models.Lead
	for _, l := range s.leads {
		if want[l.Status] {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *InMemoryStore) UpdateLeadStatus(id string, from, to models.LeadStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.leads[id]
	if !ok || l.Status != from {
		return false, nil
	}
	l.Status = to
	s.leads[id] = l
	return true, nil
}

func (s *InMemoryStore) MarkLeadHighPriority(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.leads[id]
	if !ok || l.HighPriority {
		return false, nil
	}
	l.HighPriority = true
	s.leads[id] = l
	return true, nil
}

// Followup sequences and actions.

func (s *InMemoryStore) CreateSequence(seq models.FollowupSequence, actions []models.FollowupAction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sequences[seq.ID] = seq
	for _, a := range actions {
		s.actions[a.ID] = a
	}
	return nil
}

func (s *InMemoryStore) CountSequencesByLead(leadID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, seq := range s.sequences {
		if seq.LeadID == leadID {
			n++
		}
	}
	return n, nil
}

func (s *InMemoryStore) ListActionsByLead(leadID string) ([]models.FollowupAction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.FollowupAction
	for _, a := range s.actions {
		if a.LeadID == leadID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StepNumber < out[j].StepNumber })
	return out, nil
}

func (s *InMemoryStore) ListDueActions(asOf time.Time) ([]models.FollowupAction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.FollowupAction
	for _, a := range s.actions {
		if a.Status == models.ActionStatusScheduled && !a.ScheduledAt.After(asOf) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledAt.Before(out[j].ScheduledAt) })
	return out, nil
}

func (s *InMemoryStore) MarkActionSent(id string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.actions[id]
	if !ok || a.Status != models.ActionStatusScheduled {
		return false, nil
	}
	a.Status = models.ActionStatusSent
	a.SentAt = &at
	s.actions[id] = a
	return true, nil
}

func (s *InMemoryStore) MarkActionFailed(id string, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.actions[id]
	if !ok {
		return models.ErrNotFound
	}
	a.Status = models.ActionStatusFailed
	a.ErrorMessage = errMsg
	s.actions[id] = a
	return nil
}

func (s *InMemoryStore) RecordActionReply(id string, reply string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.actions[id]
	if !ok || a.Status != models.ActionStatusSent {
		return false, nil
	}
	a.Status = models.ActionStatusReplied
	a.ClientReply = reply
	a.ReplyProcessed = false
	s.actions[id] = a
	return true, nil
}

func (s *InMemoryStore) ListUnprocessedReplies() ([]models.FollowupAction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.FollowupAction
	for _, a := range s.actions {
		if a.Status == models.ActionStatusReplied && !a.ReplyProcessed {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledAt.Before(out[j].ScheduledAt) })
	return out, nil
}

func (s *InMemoryStore) MarkReplyProcessed(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.actions[id]
	if !ok {
		return models.ErrNotFound
	}
	a.ReplyProcessed = true
	s.actions[id] = a
	return nil
}

func (s *InMemoryStore) CountRepliedActionsByLead(leadID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, a := range s.actions {
		if a.LeadID == leadID && a.Status == models.ActionStatusReplied {
			n++
		}
	}
	return n, nil
}

// Lead insights.

func (s *InMemoryStore) SaveLeadInsight(i models.LeadInsight) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.leadInsights[i.LeadID] = i
	return nil
}

func (s *InMemoryStore) GetLeadInsight(leadID string) (*models.LeadInsight, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.leadInsights[leadID]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &i, nil
}

// Client notes.

func (s *InMemoryStore) SaveClientNote(n models.ClientNote) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notes = append(s.notes, n)
	return nil
}

func (s *InMemoryStore) ListClientNotes(clientID, professionalID string) ([]models.ClientNote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.ClientNote
	for _, n := range s.notes {
		if n.ClientID == clientID && n.ProfessionalID == professionalID {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// Appointment briefs and client insights.

func (s *InMemoryStore) SaveBrief(b models.AppointmentBrief) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.briefs[b.AppointmentID] = b
	return nil
}

func (s *InMemoryStore) GetBriefByAppointment(appointmentID string) (*models.AppointmentBrief, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.briefs[appointmentID]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &b, nil
}

func insightKey(clientID, professionalID string) string {
	return clientID + "/" + professionalID
}

func (s *InMemoryStore) SaveClientInsight(i models.ClientInsight) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clientInsight[insightKey(i.ClientID, i.ProfessionalID)] = i
	return nil
}

func (s *InMemoryStore) GetClientInsight(clientID, professionalID string) (*models.ClientInsight, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.clientInsight[insightKey(clientID, professionalID)]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &i, nil
}

// Content generation.

func (s *InMemoryStore) SaveContentStrategy(cs models.ContentStrategy) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.strategies[cs.ProfessionalID] = cs
	return nil
}

func (s *InMemoryStore) GetContentStrategy(professionalID string) (*models.ContentStrategy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cs, ok := s.strategies[professionalID]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &cs, nil
}

func (s *InMemoryStore) ListActiveContentStrategies() ([]models.ContentStrategy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.ContentStrategy
	for _, cs := range s.strategies {
		if cs.IsActive {
			out = append(out, cs)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProfessionalID < out[j].ProfessionalID })
	return out, nil
}

func (s *InMemoryStore) CountPendingContent(professionalID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.content {
		if c.ProfessionalID == professionalID &&
			(c.Status == models.ContentStatusDraft || c.Status == models.ContentStatusScheduled) {
			n++
		}
	}
	return n, nil
}

func (s *InMemoryStore) SaveGeneratedContent(c models.GeneratedContent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.content[c.ID] = c
	return nil
}

func (s *InMemoryStore) ListDraftContent() ([]models.GeneratedContent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.GeneratedContent
	for _, c := range s.content {
		if c.Status == models.ContentStatusDraft {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *InMemoryStore) ScheduleContent(id string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.content[id]
	if !ok || c.Status != models.ContentStatusDraft {
		return false, nil
	}
	c.Status = models.ContentStatusScheduled
	c.ScheduledAt = &at
	s.content[id] = c
	return true, nil
}

// Reviews.

func (s *InMemoryStore) SaveReviewRequest(r models.ReviewRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reviewReqs[r.ID] = r
	return nil
}

func (s *InMemoryStore) GetReviewRequest(id string) (*models.ReviewRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reviewReqs[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &r, nil
}

func (s *InMemoryStore) HasReviewRequestForAppointment(appointmentID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.reviewReqs {
		if r.AppointmentID == appointmentID {
			return true, nil
		}
	}
	return false, nil
}

func (s *InMemoryStore) SaveReviewSubmission(req models.ReviewRequest, pub models.PublicReview) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reviewReqs[req.ID] = req
	s.publicReviews[pub.ID] = pub
	return nil
}

func (s *InMemoryStore) ListReceivedReviewRequests() ([]models.ReviewRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.ReviewRequest
	for _, r := range s.reviewReqs {
		if r.Status == models.ReviewStatusReceived {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ReceivedAt == nil || out[j].ReceivedAt == nil {
			return out[i].ID < out[j].ID
		}
		return out[i].ReceivedAt.Before(*out[j].ReceivedAt)
	})
	return out, nil
}

func (s *InMemoryStore) PublishReviewRequest(id string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reviewReqs[id]
	if !ok || r.Status != models.ReviewStatusReceived {
		return false, nil
	}
	r.Status = models.ReviewStatusPublished
	r.PublishedAt = &at
	s.reviewReqs[id] = r
	for pid, pr := range s.publicReviews {
		if pr.ReviewRequestID == id {
			pr.PublishedAt = &at
			s.publicReviews[pid] = pr
		}
	}
	return true, nil
}

func (s *InMemoryStore) ListPublicReviews(professionalID string) ([]models.PublicReview, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.PublicReview
	for _, r := range s.publicReviews {
		if r.ProfessionalID == professionalID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Referrals.

func (s *InMemoryStore) SaveReferralCampaign(c models.ReferralCampaign) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.campaigns[c.ID] = c
	return nil
}

func (s *InMemoryStore) GetReferralCampaign(id string) (*models.ReferralCampaign, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.campaigns[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &c, nil
}

func (s *InMemoryStore) ListReferralCampaigns(professionalID string) ([]models.ReferralCampaign, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.ReferralCampaign
	for _, c := range s.campaigns {
		if c.ProfessionalID == professionalID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *InMemoryStore) GetActiveCampaign(professionalID string) (*models.ReferralCampaign, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var found *models.ReferralCampaign
	for _, c := range s.campaigns {
		if c.ProfessionalID == professionalID && c.IsActive {
			if found == nil || c.CreatedAt.After(found.CreatedAt) {
				campaign := c
				found = &campaign
			}
		}
	}
	if found == nil {
		return nil, models.ErrNotFound
	}
	return found, nil
}

func (s *InMemoryStore) CreateReferral(r models.Referral, inv models.ReferralInvitation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.referrals[r.ID] = r
	s.invitations[inv.ID] = inv
	return nil
}

func (s *InMemoryStore) GetReferralByCode(code string) (*models.Referral, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.referrals {
		if r.Code == code {
			referral := r
			return &referral, nil
		}
	}
	return nil, models.ErrNotFound
}

func (s *InMemoryStore) ReferralCodeExists(code string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.referrals {
		if r.Code == code {
			return true, nil
		}
	}
	return false, nil
}

func (s *InMemoryStore) MarkReferralSignedUp(code string, email string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, r := range s.referrals {
		if r.Code != code {
			continue
		}
		if r.Status != models.ReferralStatusInvited && r.Status != models.ReferralStatusClicked {
			return false, nil
		}
		r.Status = models.ReferralStatusSignedUp
		r.ReferredEmail = email
		r.SignedUpAt = &at
		s.referrals[id] = r
		return true, nil
	}
	return false, nil
}

func (s *InMemoryStore) MarkReferralCompleted(code string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, r := range s.referrals {
		if r.Code != code {
			continue
		}
		if r.Status != models.ReferralStatusSignedUp {
			return false, nil
		}
		r.Status = models.ReferralStatusCompletedAppointment
		r.CompletedAt = &at
		s.referrals[id] = r
		return true, nil
	}
	return false, nil
}

func (s *InMemoryStore) ListUnrewardedReferrals() ([]models.Referral, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Referral
	for _, r := range s.referrals {
		if r.Status == models.ReferralStatusCompletedAppointment && !r.ReferrerRewardGiven {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *InMemoryStore) GrantReferralRewards(id string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.referrals[id]
	if !ok || r.Status != models.ReferralStatusCompletedAppointment || r.ReferrerRewardGiven {
		return false, nil
	}
	r.Status = models.ReferralStatusRewarded
	r.ReferrerRewardGiven = true
	r.ReferredRewardGiven = true
	r.RewardedAt = &at
	s.referrals[id] = r
	return true, nil
}

func (s *InMemoryStore) MarkInvitationSent(id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.invitations[id]
	if !ok {
		return models.ErrNotFound
	}
	inv.SentAt = &at
	s.invitations[id] = inv
	return nil
}
