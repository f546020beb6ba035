package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgStore implements AppointmentStore and CalendarSource on Postgres.
type PgStore struct {
	pool *pgxpool.Pool
}

func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

const appointmentColumns = `
	id, patient_id, professional_id, site_id, start_time, end_time,
	status, treatment_id, resource, notes, version, created_at, updated_at
`

// Helpers

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var siteID *uuid.UUID
	var treatmentID *uuid.UUID
	var resource *string

	err := row.Scan(
		&a.ID,
		&a.PatientID,
		&a.ProfessionalID,
		&siteID,
		&a.Start,
		&a.End,
		&a.Status,
		&treatmentID,
		&resource,
		&a.Notes,
		&a.Version,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	if siteID != nil {
		a.SiteID = *siteID
	}
	a.TreatmentID = treatmentID
	a.Resource = resource
	return &a, nil
}

// nullableUUID maps the zero uuid to SQL NULL for optional references.
func nullableUUID(id uuid.UUID) *uuid.UUID {
	if id == uuid.Nil {
		return nil
	}
	return &id
}

func (s *PgStore) listAppointments(ctx context.Context, query string, args ...any) ([]Appointment, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *PgStore) loadHistory(ctx context.Context, appointmentID uuid.UUID) ([]HistoryEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT occurred_at, actor, description
		FROM appointment_history
		WHERE appointment_id = $1
		ORDER BY id
	`, appointmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []HistoryEntry
	for rows.Next() {
		var e HistoryEntry
		if err := rows.Scan(&e.At, &e.Actor, &e.Description); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

func appendHistory(ctx context.Context, tx pgx.Tx, appointmentID uuid.UUID, entry HistoryEntry) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO appointment_history (appointment_id, occurred_at, actor, description)
		VALUES ($1, $2, $3, $4)
	`, appointmentID, entry.At, entry.Actor, entry.Description)
	if err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	return nil
}

// AppointmentStore

func (s *PgStore) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	a, err := scanAppointment(row)
	if err != nil {
		return nil, err
	}

	history, err := s.loadHistory(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	a.History = history
	return a, nil
}

func (s *PgStore) ListByProfessionalAndRange(ctx context.Context, professionalID uuid.UUID, start, end time.Time) ([]Appointment, error) {
	return s.listAppointments(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE professional_id = $1
		  AND start_time < $3
		  AND end_time > $2
		ORDER BY start_time
	`, professionalID, start, end)
}

func (s *PgStore) ListByResourceAndRange(ctx context.Context, resource string, start, end time.Time) ([]Appointment, error) {
	return s.listAppointments(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE resource = $1
		  AND start_time < $3
		  AND end_time > $2
		ORDER BY start_time
	`, resource, start, end)
}

func (s *PgStore) Create(ctx context.Context, appt *Appointment, entry HistoryEntry) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		INSERT INTO appointments (
			id, patient_id, professional_id, site_id, start_time, end_time,
			status, treatment_id, resource, notes, version, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 1, now(), now())
		RETURNING `+appointmentColumns+`
	`,
		appt.ID, appt.PatientID, appt.ProfessionalID, nullableUUID(appt.SiteID),
		appt.Start, appt.End, appt.Status, appt.TreatmentID, appt.Resource, appt.Notes,
	)
	stored, err := scanAppointment(row)
	if err != nil {
		return fmt.Errorf("insert appointment: %w", err)
	}

	if err := appendHistory(ctx, tx, appt.ID, entry); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}

	*appt = *stored
	appt.History = []HistoryEntry{entry}
	return nil
}

func (s *PgStore) CompareAndSwap(ctx context.Context, id uuid.UUID, expectedVersion int64, change IntervalChange, entry HistoryEntry) (*Appointment, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		UPDATE appointments
		SET start_time = $2,
		    end_time = $3,
		    professional_id = $4,
		    resource = $5,
		    version = version + 1,
		    updated_at = now()
		WHERE id = $1
		  AND version = $6
		RETURNING `+appointmentColumns+`
	`, id, change.Start, change.End, change.ProfessionalID, change.Resource, expectedVersion)

	updated, err := scanAppointment(row)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, s.missingOrStale(ctx, id)
		}
		return nil, fmt.Errorf("update appointment: %w", err)
	}

	if err := appendHistory(ctx, tx, id, entry); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	history, err := s.loadHistory(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	updated.History = history
	return updated, nil
}

func (s *PgStore) UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status, entry HistoryEntry) (*Appointment, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    version = version + 1,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING `+appointmentColumns+`
	`, id, to, from)

	updated, err := scanAppointment(row)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, s.missingOrStale(ctx, id)
		}
		return nil, fmt.Errorf("update status: %w", err)
	}

	if err := appendHistory(ctx, tx, id, entry); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	history, err := s.loadHistory(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	updated.History = history
	return updated, nil
}

// missingOrStale distinguishes a vanished row from a lost conditional write.
func (s *PgStore) missingOrStale(ctx context.Context, id uuid.UUID) error {
	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM appointments WHERE id = $1)
	`, id).Scan(&exists)
	if err != nil {
		return err
	}
	if !exists {
		return ErrAppointmentNotFound
	}
	return ErrVersionConflict
}

// CalendarSource

func (s *PgStore) GetWorkingHours(ctx context.Context, professionalID uuid.UUID) (WorkingHours, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM professionals WHERE id = $1)
	`, professionalID).Scan(&exists)
	if err != nil {
		return WorkingHours{}, err
	}
	if !exists {
		return WorkingHours{}, ErrProfessionalNotFound
	}

	rows, err := s.pool.Query(ctx, `
		SELECT weekday, start_minute, end_minute
		FROM working_hours
		WHERE professional_id = $1
		ORDER BY weekday, start_minute
	`, professionalID)
	if err != nil {
		return WorkingHours{}, err
	}
	defer rows.Close()

	wh := WorkingHours{ProfessionalID: professionalID}
	for rows.Next() {
		var w WorkingWindow
		var weekday int
		if err := rows.Scan(&weekday, &w.StartMinute, &w.EndMinute); err != nil {
			return WorkingHours{}, err
		}
		w.Weekday = time.Weekday(weekday)
		wh.Windows = append(wh.Windows, w)
	}
	if err := rows.Err(); err != nil {
		return WorkingHours{}, err
	}
	return wh, nil
}

func (s *PgStore) ListBlocks(ctx context.Context, professionalID uuid.UUID, start, end time.Time) ([]Block, error) {
	return s.listBlocks(ctx, `
		SELECT id, professional_id, resource, start_time, end_time, reason
		FROM blocks
		WHERE professional_id = $1
		  AND start_time < $3
		  AND end_time > $2
	`, professionalID, start, end)
}

func (s *PgStore) ListBlocksByResource(ctx context.Context, resource string, start, end time.Time) ([]Block, error) {
	return s.listBlocks(ctx, `
		SELECT id, professional_id, resource, start_time, end_time, reason
		FROM blocks
		WHERE resource = $1
		  AND start_time < $3
		  AND end_time > $2
	`, resource, start, end)
}

func (s *PgStore) listBlocks(ctx context.Context, query string, args ...any) ([]Block, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Block
	for rows.Next() {
		var b Block
		var professionalID *uuid.UUID
		if err := rows.Scan(&b.ID, &professionalID, &b.Resource, &b.Start, &b.End, &b.Reason); err != nil {
			return nil, err
		}
		if professionalID != nil {
			b.ProfessionalID = *professionalID
		}
		result = append(result, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
