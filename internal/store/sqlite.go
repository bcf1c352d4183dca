// Package store provides storage backends for the ClientFlow automation engine.
//
// This file implements the SQLite-backed store, the default backend.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "embed"

	"github.com/edumesones/clientflow-pro/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// Constants for SQLite store configuration
const (
	// DefaultDirPermissions defines the default permissions for database directories
	DefaultDirPermissions = 0755
)

//go:embed migrations_sqlite.sql
var sqliteMigrations string

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN should be a file path to the SQLite database file.
// If the directory doesn't exist, it will be created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully")

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// execGuarded runs a conditional update and reports whether a row changed.
// RowsAffected == 0 means the guard failed: another invocation already owns
// the transition.
func (s *SQLiteStore) execGuarded(query string, args ...any) (bool, error) {
	res, err := s.db.Exec(query, args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Clients and professionals.

func (s *SQLiteStore) SaveClient(c models.Client) error {
	_, err := s.db.Exec(`INSERT INTO clients (id, full_name, email, phone, created_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET full_name = excluded.full_name, email = excluded.email, phone = excluded.phone`,
		c.ID, c.FullName, nilIfEmpty(c.Email), nilIfEmpty(c.Phone), c.CreatedAt)
	if err != nil {
		slog.Error("SQLiteStore SaveClient failed", "error", err, "clientID", c.ID)
		return fmt.Errorf("failed to save client %s: %w", c.ID, err)
	}
	return nil
}

func (s *SQLiteStore) GetClient(id string) (*models.Client, error) {
	row := s.db.QueryRow(`SELECT id, full_name, email, phone, created_at FROM clients WHERE id = ?`, id)
	var c models.Client
	var email, phone sql.NullString
	err := row.Scan(&c.ID, &c.FullName, &email, &phone, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get client %s: %w", id, err)
	}
	c.Email = email.String
	c.Phone = phone.String
	return &c, nil
}

func (s *SQLiteStore) ListClientIDs() ([]string, error) {
	rows, err := s.db.Query(`SELECT id FROM clients ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query client ids: %w", err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan client id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *SQLiteStore) SaveProfessional(p models.Professional) error {
	_, err := s.db.Exec(`INSERT INTO professionals (id, full_name, email, slug, specialty, bio, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET full_name = excluded.full_name, email = excluded.email, slug = excluded.slug, specialty = excluded.specialty, bio = excluded.bio`,
		p.ID, p.FullName, nilIfEmpty(p.Email), nilIfEmpty(p.Slug), nilIfEmpty(p.Specialty), nilIfEmpty(p.Bio), p.CreatedAt)
	if err != nil {
		slog.Error("SQLiteStore SaveProfessional failed", "error", err, "professionalID", p.ID)
		return fmt.Errorf("failed to save professional %s: %w", p.ID, err)
	}
	return nil
}

func (s *SQLiteStore) GetProfessional(id string) (*models.Professional, error) {
	row := s.db.QueryRow(`SELECT id, full_name, email, slug, specialty, bio, created_at FROM professionals WHERE id = ?`, id)
	var p models.Professional
	var email, slug, specialty, bio sql.NullString
	err := row.Scan(&p.ID, &p.FullName, &email, &slug, &specialty, &bio, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get professional %s: %w", id, err)
	}
	p.Email = email.String
	p.Slug = slug.String
	p.Specialty = specialty.String
	p.Bio = bio.String
	return &p, nil
}

func (s *SQLiteStore) ListProfessionals() ([]models.Professional, error) {
	rows, err := s.db.Query(`SELECT id, full_name, email, slug, specialty, bio, created_at FROM professionals ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query professionals: %w", err)
	}
	defer rows.Close()
	var out []models.Professional
	for rows.Next() {
		var p models.Professional
		var email, slug, specialty, bio sql.NullString
		if err := rows.Scan(&p.ID, &p.FullName, &email, &slug, &specialty, &bio, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan professional row: %w", err)
		}
		p.Email = email.String
		p.Slug = slug.String
		p.Specialty = specialty.String
		p.Bio = bio.String
		out = append(out, p)
	}
	return out, rows.Err()
}

// Appointments.

func (s *SQLiteStore) SaveAppointment(a models.Appointment) error {
	_, err := s.db.Exec(`INSERT INTO appointments (`+appointmentColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status, date = excluded.date, start_time = excluded.start_time, end_time = excluded.end_time,
			service_type = excluded.service_type, notes = excluded.notes,
			reminder_24h_sent = excluded.reminder_24h_sent, reminder_1h_sent = excluded.reminder_1h_sent,
			review_requested = excluded.review_requested, updated_at = excluded.updated_at`,
		a.ID, a.ProfessionalID, nilIfEmpty(a.ClientID), nilIfEmpty(a.LeadName), nilIfEmpty(a.LeadEmail), nilIfEmpty(a.LeadPhone),
		a.Date.UTC().Format(dateLayout), a.StartTime, a.EndTime, a.Status, nilIfEmpty(a.ServiceType), nilIfEmpty(a.Notes),
		a.Reminder24hSent, a.Reminder1hSent, a.ReviewRequested, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		slog.Error("SQLiteStore SaveAppointment failed", "error", err, "appointmentID", a.ID)
		return fmt.Errorf("failed to save appointment %s: %w", a.ID, err)
	}
	return nil
}

func (s *SQLiteStore) GetAppointment(id string) (*models.Appointment, error) {
	row := s.db.QueryRow(`SELECT `+appointmentColumns+` FROM appointments WHERE id = ?`, id)
	a, err := scanAppointment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get appointment %s: %w", id, err)
	}
	return &a, nil
}

func (s *SQLiteStore) listAppointments(query string, args ...any) ([]models.Appointment, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query appointments: %w", err)
	}
	defer rows.Close()
	var out []models.Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan appointment row: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) ListAppointmentsDue24hReminder(day time.Time) ([]models.Appointment, error) {
	return s.listAppointments(`SELECT `+appointmentColumns+` FROM appointments
		WHERE date = ? AND status IN ('pending', 'confirmed') AND reminder_24h_sent = 0
		ORDER BY start_time`, day.UTC().Format(dateLayout))
}

func (s *SQLiteStore) ClaimReminder24h(appointmentID string) (bool, error) {
	claimed, err := s.execGuarded(`UPDATE appointments SET reminder_24h_sent = 1, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND reminder_24h_sent = 0 AND status IN ('pending', 'confirmed')`, appointmentID)
	if err != nil {
		slog.Error("SQLiteStore ClaimReminder24h failed", "error", err, "appointmentID", appointmentID)
		return false, fmt.Errorf("failed to claim 24h reminder for %s: %w", appointmentID, err)
	}
	slog.Debug("SQLiteStore ClaimReminder24h", "appointmentID", appointmentID, "claimed", claimed)
	return claimed, nil
}

func (s *SQLiteStore) ListAppointmentHistory(clientID, professionalID string) ([]models.Appointment, error) {
	return s.listAppointments(`SELECT `+appointmentColumns+` FROM appointments
		WHERE client_id = ? AND professional_id = ? AND status = 'completed'
		ORDER BY date DESC, start_time DESC`, clientID, professionalID)
}

func (s *SQLiteStore) ListRecentAppointmentsByClient(clientID string, limit int) ([]models.Appointment, error) {
	return s.listAppointments(`SELECT `+appointmentColumns+` FROM appointments
		WHERE client_id = ? ORDER BY date DESC, start_time DESC LIMIT ?`, clientID, limit)
}

func (s *SQLiteStore) ListCompletedAppointmentsForReview(from, to time.Time) ([]models.Appointment, error) {
	return s.listAppointments(`SELECT `+appointmentColumns+` FROM appointments
		WHERE status = 'completed' AND review_requested = 0 AND updated_at >= ? AND updated_at <= ?
		ORDER BY updated_at`, from, to)
}

func (s *SQLiteStore) ClaimReviewRequested(appointmentID string) (bool, error) {
	claimed, err := s.execGuarded(`UPDATE appointments SET review_requested = 1, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND review_requested = 0 AND status = 'completed'`, appointmentID)
	if err != nil {
		slog.Error("SQLiteStore ClaimReviewRequested failed", "error", err, "appointmentID", appointmentID)
		return false, fmt.Errorf("failed to claim review request for %s: %w", appointmentID, err)
	}
	return claimed, nil
}

func (s *SQLiteStore) CountAppointmentsByClientSince(clientID string, since time.Time) (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM appointments WHERE client_id = ? AND date >= ?`,
		clientID, since.UTC().Format(dateLayout)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count appointments for client %s: %w", clientID, err)
	}
	return n, nil
}

func (s *SQLiteStore) CountNoShowsByClientSince(clientID string, since time.Time) (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM appointments WHERE client_id = ? AND date >= ? AND status = 'no_show'`,
		clientID, since.UTC().Format(dateLayout)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count no-shows for client %s: %w", clientID, err)
	}
	return n, nil
}

func (s *SQLiteStore) ListClientIDsWithAppointmentsSince(since time.Time) ([]string, error) {
	rows, err := s.db.Query(`SELECT DISTINCT client_id FROM appointments WHERE client_id IS NOT NULL AND date >= ?`,
		since.UTC().Format(dateLayout))
	if err != nil {
		return nil, fmt.Errorf("failed to query active client ids: %w", err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan client id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *SQLiteStore) ListUpcomingAppointmentsWithoutBrief(from, to time.Time) ([]models.Appointment, error) {
	// The window spans at most two calendar days; filter to the minute in the
	// agent after reassembling date + start_time.
	return s.listAppointments(`SELECT `+appointmentColumns+` FROM appointments
		WHERE status IN ('pending', 'confirmed') AND date >= ? AND date <= ?
		AND id NOT IN (SELECT appointment_id FROM appointment_briefs)
		ORDER BY date, start_time`, from.UTC().Format(dateLayout), to.UTC().Format(dateLayout))
}

// Confirmations.

func (s *SQLiteStore) SaveConfirmation(c models.Confirmation) error {
	_, err := s.db.Exec(`INSERT INTO confirmations (`+confirmationColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(appointment_id) DO UPDATE SET
			status = excluded.status, reminder_24h_at = excluded.reminder_24h_at,
			response_text = excluded.response_text, auto_rescheduled = excluded.auto_rescheduled,
			updated_at = excluded.updated_at`,
		c.ID, c.AppointmentID, c.Status, nilIfNilTime(c.Reminder24hAt), nilIfEmpty(c.ResponseText), c.AutoRescheduled, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		slog.Error("SQLiteStore SaveConfirmation failed", "error", err, "appointmentID", c.AppointmentID)
		return fmt.Errorf("failed to save confirmation for appointment %s: %w", c.AppointmentID, err)
	}
	return nil
}

func (s *SQLiteStore) GetConfirmationByAppointment(appointmentID string) (*models.Confirmation, error) {
	row := s.db.QueryRow(`SELECT `+confirmationColumns+` FROM confirmations WHERE appointment_id = ?`, appointmentID)
	c, err := scanConfirmation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get confirmation for appointment %s: %w", appointmentID, err)
	}
	return &c, nil
}

func (s *SQLiteStore) listConfirmations(query string, args ...any) ([]models.Confirmation, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query confirmations: %w", err)
	}
	defer rows.Close()
	var out []models.Confirmation
	for rows.Next() {
		c, err := scanConfirmation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan confirmation row: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) ListConfirmationsPendingBefore(cutoff time.Time) ([]models.Confirmation, error) {
	return s.listConfirmations(`SELECT `+confirmationColumns+` FROM confirmations
		WHERE status = 'pending' AND reminder_24h_at IS NOT NULL AND reminder_24h_at < ?`, cutoff)
}

func (s *SQLiteStore) MarkConfirmationNoResponse(id string) (bool, error) {
	ok, err := s.execGuarded(`UPDATE confirmations SET status = 'no_response', updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND status = 'pending'`, id)
	if err != nil {
		slog.Error("SQLiteStore MarkConfirmationNoResponse failed", "error", err, "confirmationID", id)
		return false, fmt.Errorf("failed to mark confirmation %s no_response: %w", id, err)
	}
	return ok, nil
}

func (s *SQLiteStore) ListConfirmationsForReschedule(cutoff time.Time) ([]models.Confirmation, error) {
	return s.listConfirmations(`SELECT `+confirmationColumns+` FROM confirmations
		WHERE status = 'no_response' AND auto_rescheduled = 0
		AND reminder_24h_at IS NOT NULL AND reminder_24h_at < ?`, cutoff)
}

func (s *SQLiteStore) ClaimAutoReschedule(id string) (bool, error) {
	claimed, err := s.execGuarded(`UPDATE confirmations SET auto_rescheduled = 1, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND auto_rescheduled = 0 AND status = 'no_response'`, id)
	if err != nil {
		slog.Error("SQLiteStore ClaimAutoReschedule failed", "error", err, "confirmationID", id)
		return false, fmt.Errorf("failed to claim auto-reschedule for %s: %w", id, err)
	}
	return claimed, nil
}

// Reliability patterns.

func (s *SQLiteStore) SaveReliabilityPattern(p models.ReliabilityPattern) error {
	_, err := s.db.Exec(`INSERT INTO reliability_patterns (client_id, total_appointments, no_shows, reliability_score, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(client_id) DO UPDATE SET
			total_appointments = excluded.total_appointments, no_shows = excluded.no_shows,
			reliability_score = excluded.reliability_score, updated_at = excluded.updated_at`,
		p.ClientID, p.TotalAppointments, p.NoShows, p.ReliabilityScore, p.UpdatedAt)
	if err != nil {
		slog.Error("SQLiteStore SaveReliabilityPattern failed", "error", err, "clientID", p.ClientID)
		return fmt.Errorf("failed to save reliability pattern for %s: %w", p.ClientID, err)
	}
	return nil
}

func (s *SQLiteStore) GetReliabilityPattern(clientID string) (*models.ReliabilityPattern, error) {
	row := s.db.QueryRow(`SELECT client_id, total_appointments, no_shows, reliability_score, updated_at
		FROM reliability_patterns WHERE client_id = ?`, clientID)
	var p models.ReliabilityPattern
	err := row.Scan(&p.ClientID, &p.TotalAppointments, &p.NoShows, &p.ReliabilityScore, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reliability pattern for %s: %w", clientID, err)
	}
	return &p, nil
}

// Leads.

func (s *SQLiteStore) SaveLead(l models.Lead) error {
	_, err := s.db.Exec(`INSERT INTO leads (`+leadColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name, email = excluded.email, phone = excluded.phone,
			source = excluded.source, message = excluded.message, status = excluded.status,
			high_priority = excluded.high_priority, updated_at = excluded.updated_at`,
		l.ID, l.ProfessionalID, l.Name, nilIfEmpty(l.Email), nilIfEmpty(l.Phone), nilIfEmpty(l.Source),
		nilIfEmpty(l.Message), l.Status, l.HighPriority, l.CreatedAt, l.UpdatedAt)
	if err != nil {
		slog.Error("SQLiteStore SaveLead failed", "error", err, "leadID", l.ID)
		return fmt.Errorf("failed to save lead %s: %w", l.ID, err)
	}
	return nil
}

func (s *SQLiteStore) GetLead(id string) (*models.Lead, error) {
	row := s.db.QueryRow(`SELECT `+leadColumns+` FROM leads WHERE id = ?`, id)
	l, err := scanLead(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get lead %s: %w", id, err)
	}
	return &l, nil
}

func (s *SQLiteStore) listLeads(query string, args ...any) ([]models.Lead, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query leads: %w", err)
	}
	defer rows.Close()
	var out []models.Lead
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan lead row: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) ListNewLeadsWithoutSequence() ([]models.Lead, error) {
	return s.listLeads(`SELECT ` + leadColumns + ` FROM leads
		WHERE status = 'new' AND id NOT IN (SELECT lead_id FROM followup_sequences)
		ORDER BY created_at`)
}

func (s *SQLiteStore) ListLeadsByStatus(statuses ...models.LeadStatus) ([]models.Lead, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	query := `SELECT ` + leadColumns + ` FROM leads WHERE status IN (?`
	args := []any{statuses[0]}
	for _, st := range statuses[1:] {
		query += `, ?`
		args = append(args, st)
	}
	query += `) ORDER BY created_at`
	return s.listLeads(query, args...)
}

func (s *SQLiteStore) UpdateLeadStatus(id string, from, to models.LeadStatus) (bool, error) {
	ok, err := s.execGuarded(`UPDATE leads SET status = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND status = ?`, to, id, from)
	if err != nil {
		slog.Error("SQLiteStore UpdateLeadStatus failed", "error", err, "leadID", id, "from", from, "to", to)
		return false, fmt.Errorf("failed to update lead %s status: %w", id, err)
	}
	return ok, nil
}

func (s *SQLiteStore) MarkLeadHighPriority(id string) (bool, error) {
	ok, err := s.execGuarded(`UPDATE leads SET high_priority = 1, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND high_priority = 0`, id)
	if err != nil {
		slog.Error("SQLiteStore MarkLeadHighPriority failed", "error", err, "leadID", id)
		return false, fmt.Errorf("failed to flag lead %s high priority: %w", id, err)
	}
	return ok, nil
}

// Followup sequences and actions.

func (s *SQLiteStore) CreateSequence(seq models.FollowupSequence, actions []models.FollowupAction) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin sequence transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`INSERT INTO followup_sequences (id, lead_id, professional_id, name, total_steps, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		seq.ID, seq.LeadID, seq.ProfessionalID, seq.Name, seq.TotalSteps, seq.CreatedAt)
	if err != nil {
		slog.Error("SQLiteStore CreateSequence insert failed", "error", err, "leadID", seq.LeadID)
		return fmt.Errorf("failed to insert sequence for lead %s: %w", seq.LeadID, err)
	}
	for _, a := range actions {
		_, err = tx.Exec(`INSERT INTO followup_actions (`+actionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			a.ID, a.SequenceID, a.LeadID, a.StepNumber, a.Channel, nilIfEmpty(a.Subject), a.Content,
			a.ScheduledAt, nilIfNilTime(a.SentAt), a.Status, nilIfEmpty(a.ErrorMessage), nilIfEmpty(a.ClientReply), a.ReplyProcessed)
		if err != nil {
			slog.Error("SQLiteStore CreateSequence action insert failed", "error", err, "actionID", a.ID)
			return fmt.Errorf("failed to insert action %s: %w", a.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit sequence for lead %s: %w", seq.LeadID, err)
	}
	slog.Debug("SQLiteStore CreateSequence succeeded", "leadID", seq.LeadID, "steps", len(actions))
	return nil
}

func (s *SQLiteStore) CountSequencesByLead(leadID string) (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM followup_sequences WHERE lead_id = ?`, leadID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count sequences for lead %s: %w", leadID, err)
	}
	return n, nil
}

func (s *SQLiteStore) listActions(query string, args ...any) ([]models.FollowupAction, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query followup actions: %w", err)
	}
	defer rows.Close()
	var out []models.FollowupAction
	for rows.Next() {
		a, err := scanAction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan action row: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) ListActionsByLead(leadID string) ([]models.FollowupAction, error) {
	return s.listActions(`SELECT `+actionColumns+` FROM followup_actions
		WHERE lead_id = ?
		ORDER BY step_number`, leadID)
}

func (s *SQLiteStore) ListDueActions(asOf time.Time) ([]models.FollowupAction, error) {
	return s.listActions(`SELECT `+actionColumns+` FROM followup_actions
		WHERE status = 'scheduled' AND scheduled_at <= ?
		ORDER BY scheduled_at`, asOf)
}

func (s *SQLiteStore) MarkActionSent(id string, at time.Time) (bool, error) {
	ok, err := s.execGuarded(`UPDATE followup_actions SET status = 'sent', sent_at = ?
		WHERE id = ? AND status = 'scheduled'`, at, id)
	if err != nil {
		slog.Error("SQLiteStore MarkActionSent failed", "error", err, "actionID", id)
		return false, fmt.Errorf("failed to mark action %s sent: %w", id, err)
	}
	slog.Debug("SQLiteStore MarkActionSent", "actionID", id, "claimed", ok)
	return ok, nil
}

func (s *SQLiteStore) MarkActionFailed(id string, errMsg string) error {
	_, err := s.db.Exec(`UPDATE followup_actions SET status = 'failed', error_message = ? WHERE id = ?`, errMsg, id)
	if err != nil {
		slog.Error("SQLiteStore MarkActionFailed failed", "error", err, "actionID", id)
		return fmt.Errorf("failed to mark action %s failed: %w", id, err)
	}
	return nil
}

func (s *SQLiteStore) RecordActionReply(id string, reply string) (bool, error) {
	ok, err := s.execGuarded(`UPDATE followup_actions SET status = 'replied', client_reply = ?, reply_processed = 0
		WHERE id = ? AND status = 'sent'`, reply, id)
	if err != nil {
		slog.Error("SQLiteStore RecordActionReply failed", "error", err, "actionID", id)
		return false, fmt.Errorf("failed to record reply on action %s: %w", id, err)
	}
	return ok, nil
}

func (s *SQLiteStore) ListUnprocessedReplies() ([]models.FollowupAction, error) {
	return s.listActions(`SELECT ` + actionColumns + ` FROM followup_actions
		WHERE status = 'replied' AND reply_processed = 0
		ORDER BY scheduled_at`)
}

func (s *SQLiteStore) MarkReplyProcessed(id string) error {
	_, err := s.db.Exec(`UPDATE followup_actions SET reply_processed = 1 WHERE id = ?`, id)
	if err != nil {
		slog.Error("SQLiteStore MarkReplyProcessed failed", "error", err, "actionID", id)
		return fmt.Errorf("failed to mark reply processed on action %s: %w", id, err)
	}
	return nil
}

func (s *SQLiteStore) CountRepliedActionsByLead(leadID string) (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM followup_actions WHERE lead_id = ? AND status = 'replied'`, leadID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count replies for lead %s: %w", leadID, err)
	}
	return n, nil
}

// Lead insights.

func (s *SQLiteStore) SaveLeadInsight(i models.LeadInsight) error {
	painPoints, err := marshalStrings(i.PainPoints)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`INSERT INTO lead_insights (lead_id, sentiment, urgency_level, pain_points, decision_timeline, recommended_approach, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(lead_id) DO UPDATE SET
			sentiment = excluded.sentiment, urgency_level = excluded.urgency_level,
			pain_points = excluded.pain_points, decision_timeline = excluded.decision_timeline,
			recommended_approach = excluded.recommended_approach, updated_at = excluded.updated_at`,
		i.LeadID, i.Sentiment, i.UrgencyLevel, painPoints, nilIfEmpty(i.DecisionTimeline), nilIfEmpty(i.RecommendedApproach), i.UpdatedAt)
	if err != nil {
		slog.Error("SQLiteStore SaveLeadInsight failed", "error", err, "leadID", i.LeadID)
		return fmt.Errorf("failed to save insight for lead %s: %w", i.LeadID, err)
	}
	return nil
}

func (s *SQLiteStore) GetLeadInsight(leadID string) (*models.LeadInsight, error) {
	row := s.db.QueryRow(`SELECT lead_id, sentiment, urgency_level, pain_points, decision_timeline, recommended_approach, updated_at
		FROM lead_insights WHERE lead_id = ?`, leadID)
	var i models.LeadInsight
	var painPoints, decisionTimeline, recommendedApproach sql.NullString
	err := row.Scan(&i.LeadID, &i.Sentiment, &i.UrgencyLevel, &painPoints, &decisionTimeline, &recommendedApproach, &i.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get insight for lead %s: %w", leadID, err)
	}
	i.DecisionTimeline = decisionTimeline.String
	i.RecommendedApproach = recommendedApproach.String
	if i.PainPoints, err = unmarshalStrings(painPoints); err != nil {
		return nil, err
	}
	return &i, nil
}

// Client notes.

func (s *SQLiteStore) SaveClientNote(n models.ClientNote) error {
	_, err := s.db.Exec(`INSERT INTO client_notes (id, professional_id, client_id, content, next_steps, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		n.ID, n.ProfessionalID, n.ClientID, n.Content, nilIfEmpty(n.NextSteps), n.CreatedAt)
	if err != nil {
		slog.Error("SQLiteStore SaveClientNote failed", "error", err, "clientID", n.ClientID)
		return fmt.Errorf("failed to save note for client %s: %w", n.ClientID, err)
	}
	return nil
}

func (s *SQLiteStore) ListClientNotes(clientID, professionalID string) ([]models.ClientNote, error) {
	rows, err := s.db.Query(`SELECT id, professional_id, client_id, content, next_steps, created_at
		FROM client_notes WHERE client_id = ? AND professional_id = ? ORDER BY created_at DESC`, clientID, professionalID)
	if err != nil {
		return nil, fmt.Errorf("failed to query notes for client %s: %w", clientID, err)
	}
	defer rows.Close()
	var out []models.ClientNote
	for rows.Next() {
		var n models.ClientNote
		var nextSteps sql.NullString
		if err := rows.Scan(&n.ID, &n.ProfessionalID, &n.ClientID, &n.Content, &nextSteps, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan note row: %w", err)
		}
		n.NextSteps = nextSteps.String
		out = append(out, n)
	}
	return out, rows.Err()
}

// Appointment briefs and client insights.

func (s *SQLiteStore) SaveBrief(b models.AppointmentBrief) error {
	openTopics, err := marshalStrings(b.OpenTopics)
	if err != nil {
		return err
	}
	followUpItems, err := marshalStrings(b.FollowUpItems)
	if err != nil {
		return err
	}
	suggestedQuestions, err := marshalStrings(b.SuggestedQuestions)
	if err != nil {
		return err
	}
	materials, err := marshalStrings(b.Materials)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`INSERT INTO appointment_briefs (`+briefColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(appointment_id) DO UPDATE SET
			executive_summary = excluded.executive_summary, history_summary = excluded.history_summary,
			open_topics = excluded.open_topics, follow_up_items = excluded.follow_up_items,
			communication_style = excluded.communication_style, suggested_questions = excluded.suggested_questions,
			materials = excluded.materials, status = excluded.status, generated_at = excluded.generated_at`,
		b.ID, b.AppointmentID, b.ProfessionalID, b.ClientID, b.ExecutiveSummary, nilIfEmpty(b.HistorySummary),
		openTopics, followUpItems, nilIfEmpty(b.CommunicationStyle), suggestedQuestions, materials, b.Status, nilIfNilTime(b.GeneratedAt))
	if err != nil {
		slog.Error("SQLiteStore SaveBrief failed", "error", err, "appointmentID", b.AppointmentID)
		return fmt.Errorf("failed to save brief for appointment %s: %w", b.AppointmentID, err)
	}
	return nil
}

func (s *SQLiteStore) GetBriefByAppointment(appointmentID string) (*models.AppointmentBrief, error) {
	row := s.db.QueryRow(`SELECT `+briefColumns+` FROM appointment_briefs WHERE appointment_id = ?`, appointmentID)
	b, err := scanBrief(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get brief for appointment %s: %w", appointmentID, err)
	}
	return &b, nil
}

func (s *SQLiteStore) SaveClientInsight(i models.ClientInsight) error {
	commonTopics, err := marshalStrings(i.CommonTopics)
	if err != nil {
		return err
	}
	painPoints, err := marshalStrings(i.PainPoints)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`INSERT INTO client_insights (client_id, professional_id, common_topics, communication_note, pain_points, personality_notes, total_appointments, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(client_id, professional_id) DO UPDATE SET
			common_topics = excluded.common_topics, communication_note = excluded.communication_note,
			pain_points = excluded.pain_points, personality_notes = excluded.personality_notes,
			total_appointments = excluded.total_appointments, updated_at = excluded.updated_at`,
		i.ClientID, i.ProfessionalID, commonTopics, nilIfEmpty(i.CommunicationNote), painPoints,
		nilIfEmpty(i.PersonalityNotes), i.TotalAppointments, i.UpdatedAt)
	if err != nil {
		slog.Error("SQLiteStore SaveClientInsight failed", "error", err, "clientID", i.ClientID)
		return fmt.Errorf("failed to save client insight for %s: %w", i.ClientID, err)
	}
	return nil
}

func (s *SQLiteStore) GetClientInsight(clientID, professionalID string) (*models.ClientInsight, error) {
	row := s.db.QueryRow(`SELECT client_id, professional_id, common_topics, communication_note, pain_points, personality_notes, total_appointments, updated_at
		FROM client_insights WHERE client_id = ? AND professional_id = ?`, clientID, professionalID)
	var i models.ClientInsight
	var commonTopics, communicationNote, painPoints, personalityNotes sql.NullString
	err := row.Scan(&i.ClientID, &i.ProfessionalID, &commonTopics, &communicationNote, &painPoints, &personalityNotes, &i.TotalAppointments, &i.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get client insight for %s: %w", clientID, err)
	}
	i.CommunicationNote = communicationNote.String
	i.PersonalityNotes = personalityNotes.String
	if i.CommonTopics, err = unmarshalStrings(commonTopics); err != nil {
		return nil, err
	}
	if i.PainPoints, err = unmarshalStrings(painPoints); err != nil {
		return nil, err
	}
	return &i, nil
}

// Content generation.

func (s *SQLiteStore) SaveContentStrategy(cs models.ContentStrategy) error {
	platforms, err := marshalStrings(cs.Platforms)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`INSERT INTO content_strategies (`+strategyColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(professional_id) DO UPDATE SET
			tone_of_voice = excluded.tone_of_voice, platforms = excluded.platforms,
			target_audience = excluded.target_audience, booking_link = excluded.booking_link,
			is_active = excluded.is_active`,
		cs.ProfessionalID, cs.ToneOfVoice, platforms, nilIfEmpty(cs.TargetAudience), nilIfEmpty(cs.BookingLink), cs.IsActive, cs.CreatedAt)
	if err != nil {
		slog.Error("SQLiteStore SaveContentStrategy failed", "error", err, "professionalID", cs.ProfessionalID)
		return fmt.Errorf("failed to save content strategy for %s: %w", cs.ProfessionalID, err)
	}
	return nil
}

func (s *SQLiteStore) GetContentStrategy(professionalID string) (*models.ContentStrategy, error) {
	row := s.db.QueryRow(`SELECT `+strategyColumns+` FROM content_strategies WHERE professional_id = ?`, professionalID)
	cs, err := scanStrategy(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get content strategy for %s: %w", professionalID, err)
	}
	return &cs, nil
}

func (s *SQLiteStore) ListActiveContentStrategies() ([]models.ContentStrategy, error) {
	rows, err := s.db.Query(`SELECT ` + strategyColumns + ` FROM content_strategies WHERE is_active = 1 ORDER BY professional_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query content strategies: %w", err)
	}
	defer rows.Close()
	var out []models.ContentStrategy
	for rows.Next() {
		cs, err := scanStrategy(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan strategy row: %w", err)
		}
		out = append(out, cs)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) CountPendingContent(professionalID string) (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM generated_content WHERE professional_id = ? AND status IN ('draft', 'scheduled')`,
		professionalID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count pending content for %s: %w", professionalID, err)
	}
	return n, nil
}

func (s *SQLiteStore) SaveGeneratedContent(c models.GeneratedContent) error {
	hashtags, err := marshalStrings(c.Hashtags)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`INSERT INTO generated_content (`+contentColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title, body = excluded.body, hashtags = excluded.hashtags,
			call_to_action = excluded.call_to_action, status = excluded.status,
			engagement_score = excluded.engagement_score, scheduled_at = excluded.scheduled_at`,
		c.ID, c.ProfessionalID, c.Platform, c.Title, c.Body, hashtags, nilIfEmpty(c.CallToAction),
		nilIfEmpty(c.BookingLink), c.Status, c.EngagementScore, nilIfNilTime(c.ScheduledAt), c.CreatedAt)
	if err != nil {
		slog.Error("SQLiteStore SaveGeneratedContent failed", "error", err, "contentID", c.ID)
		return fmt.Errorf("failed to save generated content %s: %w", c.ID, err)
	}
	return nil
}

func (s *SQLiteStore) ListDraftContent() ([]models.GeneratedContent, error) {
	rows, err := s.db.Query(`SELECT ` + contentColumns + ` FROM generated_content WHERE status = 'draft' ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to query draft content: %w", err)
	}
	defer rows.Close()
	var out []models.GeneratedContent
	for rows.Next() {
		c, err := scanContent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan content row: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) ScheduleContent(id string, at time.Time) (bool, error) {
	ok, err := s.execGuarded(`UPDATE generated_content SET status = 'scheduled', scheduled_at = ?
		WHERE id = ? AND status = 'draft'`, at, id)
	if err != nil {
		slog.Error("SQLiteStore ScheduleContent failed", "error", err, "contentID", id)
		return false, fmt.Errorf("failed to schedule content %s: %w", id, err)
	}
	return ok, nil
}

// Reviews.

func (s *SQLiteStore) SaveReviewRequest(r models.ReviewRequest) error {
	_, err := s.db.Exec(`INSERT INTO review_requests (`+reviewRequestColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(appointment_id) DO UPDATE SET
			request_message = excluded.request_message, rating = excluded.rating,
			review_text = excluded.review_text, status = excluded.status,
			sent_at = excluded.sent_at, received_at = excluded.received_at, published_at = excluded.published_at`,
		r.ID, r.AppointmentID, r.ProfessionalID, r.ClientID, nilIfEmpty(r.RequestMessage), r.Rating,
		nilIfEmpty(r.ReviewText), r.Status, nilIfNilTime(r.SentAt), nilIfNilTime(r.ReceivedAt), nilIfNilTime(r.PublishedAt))
	if err != nil {
		slog.Error("SQLiteStore SaveReviewRequest failed", "error", err, "appointmentID", r.AppointmentID)
		return fmt.Errorf("failed to save review request for appointment %s: %w", r.AppointmentID, err)
	}
	return nil
}

func (s *SQLiteStore) GetReviewRequest(id string) (*models.ReviewRequest, error) {
	row := s.db.QueryRow(`SELECT `+reviewRequestColumns+` FROM review_requests WHERE id = ?`, id)
	r, err := scanReviewRequest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get review request %s: %w", id, err)
	}
	return &r, nil
}

func (s *SQLiteStore) HasReviewRequestForAppointment(appointmentID string) (bool, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM review_requests WHERE appointment_id = ?`, appointmentID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check review request for appointment %s: %w", appointmentID, err)
	}
	return n > 0, nil
}

func (s *SQLiteStore) SaveReviewSubmission(req models.ReviewRequest, pub models.PublicReview) error {
	keywords, err := marshalStrings(pub.Keywords)
	if err != nil {
		return err
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin review submission transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`UPDATE review_requests SET rating = ?, review_text = ?, status = ?, received_at = ?, published_at = ?
		WHERE id = ?`,
		req.Rating, nilIfEmpty(req.ReviewText), req.Status, nilIfNilTime(req.ReceivedAt), nilIfNilTime(req.PublishedAt), req.ID)
	if err != nil {
		slog.Error("SQLiteStore SaveReviewSubmission update failed", "error", err, "requestID", req.ID)
		return fmt.Errorf("failed to update review request %s: %w", req.ID, err)
	}
	_, err = tx.Exec(`INSERT INTO public_reviews (`+publicReviewColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		pub.ID, pub.ProfessionalID, pub.ReviewRequestID, pub.ClientName, pub.Rating, pub.ReviewText,
		nilIfEmpty(pub.ServiceReceived), keywords, pub.IsFeatured, nilIfNilTime(pub.PublishedAt))
	if err != nil {
		slog.Error("SQLiteStore SaveReviewSubmission insert failed", "error", err, "requestID", req.ID)
		return fmt.Errorf("failed to insert public review for request %s: %w", req.ID, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit review submission for %s: %w", req.ID, err)
	}
	return nil
}

func (s *SQLiteStore) ListReceivedReviewRequests() ([]models.ReviewRequest, error) {
	rows, err := s.db.Query(`SELECT ` + reviewRequestColumns + ` FROM review_requests WHERE status = 'received' ORDER BY received_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to query received review requests: %w", err)
	}
	defer rows.Close()
	var out []models.ReviewRequest
	for rows.Next() {
		r, err := scanReviewRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan review request row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) PublishReviewRequest(id string, at time.Time) (bool, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return false, fmt.Errorf("failed to begin publish transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`UPDATE review_requests SET status = 'published', published_at = ?
		WHERE id = ? AND status = 'received'`, at, id)
	if err != nil {
		slog.Error("SQLiteStore PublishReviewRequest failed", "error", err, "requestID", id)
		return false, fmt.Errorf("failed to publish review request %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, nil
	}
	_, err = tx.Exec(`UPDATE public_reviews SET published_at = ? WHERE review_request_id = ?`, at, id)
	if err != nil {
		return false, fmt.Errorf("failed to stamp public review for request %s: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit publish for request %s: %w", id, err)
	}
	return true, nil
}

func (s *SQLiteStore) ListPublicReviews(professionalID string) ([]models.PublicReview, error) {
	rows, err := s.db.Query(`SELECT `+publicReviewColumns+` FROM public_reviews WHERE professional_id = ? ORDER BY published_at DESC`, professionalID)
	if err != nil {
		return nil, fmt.Errorf("failed to query public reviews for %s: %w", professionalID, err)
	}
	defer rows.Close()
	var out []models.PublicReview
	for rows.Next() {
		r, err := scanPublicReview(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan public review row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Referrals.

func (s *SQLiteStore) SaveReferralCampaign(c models.ReferralCampaign) error {
	_, err := s.db.Exec(`INSERT INTO referral_campaigns (`+campaignColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name, description = excluded.description,
			referrer_reward = excluded.referrer_reward, referred_reward = excluded.referred_reward,
			is_active = excluded.is_active`,
		c.ID, c.ProfessionalID, c.Name, nilIfEmpty(c.Description), c.ReferrerReward, c.ReferredReward, c.IsActive, c.CreatedAt)
	if err != nil {
		slog.Error("SQLiteStore SaveReferralCampaign failed", "error", err, "campaignID", c.ID)
		return fmt.Errorf("failed to save referral campaign %s: %w", c.ID, err)
	}
	return nil
}

func (s *SQLiteStore) GetReferralCampaign(id string) (*models.ReferralCampaign, error) {
	row := s.db.QueryRow(`SELECT `+campaignColumns+` FROM referral_campaigns WHERE id = ?`, id)
	c, err := scanCampaign(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get referral campaign %s: %w", id, err)
	}
	return &c, nil
}

func (s *SQLiteStore) ListReferralCampaigns(professionalID string) ([]models.ReferralCampaign, error) {
	rows, err := s.db.Query(`SELECT `+campaignColumns+` FROM referral_campaigns
		WHERE professional_id = ? ORDER BY created_at DESC`, professionalID)
	if err != nil {
		return nil, fmt.Errorf("failed to query referral campaigns: %w", err)
	}
	defer rows.Close()
	var out []models.ReferralCampaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan campaign row: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) GetActiveCampaign(professionalID string) (*models.ReferralCampaign, error) {
	row := s.db.QueryRow(`SELECT `+campaignColumns+` FROM referral_campaigns
		WHERE professional_id = ? AND is_active = 1 ORDER BY created_at DESC LIMIT 1`, professionalID)
	c, err := scanCampaign(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active campaign for %s: %w", professionalID, err)
	}
	return &c, nil
}

func (s *SQLiteStore) CreateReferral(r models.Referral, inv models.ReferralInvitation) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin referral transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`INSERT INTO referrals (`+referralColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.CampaignID, r.ProfessionalID, r.ReferrerID, nilIfEmpty(r.ReferrerEmail), r.ReferredEmail,
		nilIfEmpty(r.ReferredName), r.Code, nilIfEmpty(r.Link), r.Status, r.ReferrerRewardGiven, r.ReferredRewardGiven,
		r.InvitedAt, nilIfNilTime(r.SignedUpAt), nilIfNilTime(r.CompletedAt), nilIfNilTime(r.RewardedAt))
	if err != nil {
		slog.Error("SQLiteStore CreateReferral insert failed", "error", err, "code", r.Code)
		return fmt.Errorf("failed to insert referral %s: %w", r.ID, err)
	}
	_, err = tx.Exec(`INSERT INTO referral_invitations (id, referral_id, message, channel, sent_at) VALUES (?, ?, ?, ?, ?)`,
		inv.ID, inv.ReferralID, inv.Message, inv.Channel, nilIfNilTime(inv.SentAt))
	if err != nil {
		slog.Error("SQLiteStore CreateReferral invitation insert failed", "error", err, "referralID", r.ID)
		return fmt.Errorf("failed to insert invitation for referral %s: %w", r.ID, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit referral %s: %w", r.ID, err)
	}
	return nil
}

func (s *SQLiteStore) GetReferralByCode(code string) (*models.Referral, error) {
	row := s.db.QueryRow(`SELECT `+referralColumns+` FROM referrals WHERE code = ?`, code)
	r, err := scanReferral(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get referral by code %s: %w", code, err)
	}
	return &r, nil
}

func (s *SQLiteStore) ReferralCodeExists(code string) (bool, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM referrals WHERE code = ?`, code).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check referral code %s: %w", code, err)
	}
	return n > 0, nil
}

func (s *SQLiteStore) MarkReferralSignedUp(code string, email string, at time.Time) (bool, error) {
	ok, err := s.execGuarded(`UPDATE referrals SET status = 'signed_up', referred_email = ?, signed_up_at = ?
		WHERE code = ? AND status IN ('invited', 'clicked')`, email, at, code)
	if err != nil {
		slog.Error("SQLiteStore MarkReferralSignedUp failed", "error", err, "code", code)
		return false, fmt.Errorf("failed to mark referral %s signed up: %w", code, err)
	}
	return ok, nil
}

func (s *SQLiteStore) MarkReferralCompleted(code string, at time.Time) (bool, error) {
	ok, err := s.execGuarded(`UPDATE referrals SET status = 'completed_appointment', completed_at = ?
		WHERE code = ? AND status = 'signed_up'`, at, code)
	if err != nil {
		slog.Error("SQLiteStore MarkReferralCompleted failed", "error", err, "code", code)
		return false, fmt.Errorf("failed to mark referral %s completed: %w", code, err)
	}
	return ok, nil
}

func (s *SQLiteStore) ListUnrewardedReferrals() ([]models.Referral, error) {
	rows, err := s.db.Query(`SELECT ` + referralColumns + ` FROM referrals
		WHERE status = 'completed_appointment' AND referrer_reward_given = 0 ORDER BY completed_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to query unrewarded referrals: %w", err)
	}
	defer rows.Close()
	var out []models.Referral
	for rows.Next() {
		r, err := scanReferral(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan referral row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) GrantReferralRewards(id string, at time.Time) (bool, error) {
	// Both reward flags and the terminal status flip in one statement so the
	// grant can never be half-applied or repeated.
	claimed, err := s.execGuarded(`UPDATE referrals
		SET status = 'rewarded', referrer_reward_given = 1, referred_reward_given = 1, rewarded_at = ?
		WHERE id = ? AND status = 'completed_appointment' AND referrer_reward_given = 0`, at, id)
	if err != nil {
		slog.Error("SQLiteStore GrantReferralRewards failed", "error", err, "referralID", id)
		return false, fmt.Errorf("failed to grant rewards for referral %s: %w", id, err)
	}
	slog.Debug("SQLiteStore GrantReferralRewards", "referralID", id, "claimed", claimed)
	return claimed, nil
}

func (s *SQLiteStore) MarkInvitationSent(id string, at time.Time) error {
	_, err := s.db.Exec(`UPDATE referral_invitations SET sent_at = ? WHERE id = ?`, at, id)
	if err != nil {
		slog.Error("SQLiteStore MarkInvitationSent failed", "error", err, "invitationID", id)
		return fmt.Errorf("failed to mark invitation %s sent: %w", id, err)
	}
	return nil
}
