// Package storage is the Postgres engine.Store. The no-overlap invariants
// live in exclusion constraints on the windows and appointments tables, so
// conflict detection is insert-and-translate rather than check-then-insert.
package storage

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/slotbook/slotbook/libs/db"
	"github.com/slotbook/slotbook/services/booking-service/internal/engine"
	"github.com/slotbook/slotbook/services/booking-service/internal/model"
	"github.com/slotbook/slotbook/services/booking-service/internal/outbox"
	"github.com/slotbook/slotbook/services/booking-service/internal/timerange"
)

// lockTimeout bounds how long an insert waits on a competing transaction
// before surfacing ErrTimeout.
const lockTimeout = "2s"

type Store struct {
	pool   *db.Pool
	outbox *outbox.Repository
}

func New(pool *db.Pool, outboxRepo *outbox.Repository) *Store {
	return &Store{pool: pool, outbox: outboxRepo}
}

func (s *Store) CreateService(ctx context.Context, svc model.Service) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO services (id, provider_id, name, service_type, duration_minutes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, svc.ID, svc.ProviderID, svc.Name, string(svc.Type), svc.DurationMinutes, svc.CreatedAt)
	return translate(err, engine.ErrStorage)
}

func (s *Store) GetService(ctx context.Context, id string) (model.Service, error) {
	var svc model.Service
	var typ string
	err := s.pool.QueryRow(ctx, `
		SELECT id, provider_id, name, service_type, duration_minutes, created_at
		FROM services
		WHERE id = $1
	`, id).Scan(&svc.ID, &svc.ProviderID, &svc.Name, &typ, &svc.DurationMinutes, &svc.CreatedAt)
	if err != nil {
		return model.Service{}, translate(err, engine.ErrStorage)
	}
	svc.Type = model.ServiceType(typ)
	return svc, nil
}

func (s *Store) ListServices(ctx context.Context) ([]model.Service, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, provider_id, name, service_type, duration_minutes, created_at
		FROM services
		ORDER BY created_at
	`)
	if err != nil {
		return nil, translate(err, engine.ErrStorage)
	}
	defer rows.Close()

	var out []model.Service
	for rows.Next() {
		var svc model.Service
		var typ string
		if err := rows.Scan(&svc.ID, &svc.ProviderID, &svc.Name, &typ, &svc.DurationMinutes, &svc.CreatedAt); err != nil {
			return nil, translate(err, engine.ErrStorage)
		}
		svc.Type = model.ServiceType(typ)
		out = append(out, svc)
	}
	if rows.Err() != nil {
		return nil, translate(rows.Err(), engine.ErrStorage)
	}
	return out, nil
}

// AddWindow inserts the window and its outbox event in one transaction. The
// exclusion constraint on (service_id, day_of_week, minute range) rejects
// overlapping committed windows with 23P01.
func (s *Store) AddWindow(ctx context.Context, w model.AvailabilityWindow) error {
	return s.inTx(ctx, engine.ErrOverlapConflict, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO availability_windows (id, service_id, day_of_week, start_minute, end_minute, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, w.ID, w.ServiceID, w.DayOfWeek, w.Range.Start, w.Range.End, w.CreatedAt)
		if err != nil {
			return err
		}
		return s.outbox.Insert(ctx, tx, outbox.WindowEvent(w))
	})
}

func (s *Store) WindowsFor(ctx context.Context, serviceID string, dayOfWeek int) ([]model.AvailabilityWindow, error) {
	return s.queryWindows(ctx, `
		SELECT id, service_id, day_of_week, start_minute, end_minute, created_at
		FROM availability_windows
		WHERE service_id = $1 AND day_of_week = $2
		ORDER BY start_minute
	`, serviceID, dayOfWeek)
}

func (s *Store) WindowsForService(ctx context.Context, serviceID string) ([]model.AvailabilityWindow, error) {
	return s.queryWindows(ctx, `
		SELECT id, service_id, day_of_week, start_minute, end_minute, created_at
		FROM availability_windows
		WHERE service_id = $1
		ORDER BY day_of_week, start_minute
	`, serviceID)
}

func (s *Store) queryWindows(ctx context.Context, query string, args ...any) ([]model.AvailabilityWindow, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, translate(err, engine.ErrStorage)
	}
	defer rows.Close()

	var out []model.AvailabilityWindow
	for rows.Next() {
		var w model.AvailabilityWindow
		var start, end int
		if err := rows.Scan(&w.ID, &w.ServiceID, &w.DayOfWeek, &start, &end, &w.CreatedAt); err != nil {
			return nil, translate(err, engine.ErrStorage)
		}
		w.Range, err = timerange.New(start, end)
		if err != nil {
			return nil, translate(err, engine.ErrStorage)
		}
		out = append(out, w)
	}
	if rows.Err() != nil {
		return nil, translate(rows.Err(), engine.ErrStorage)
	}
	return out, nil
}

// Book inserts the appointment and its outbox event in one transaction. The
// partial exclusion constraint over booked rows for (provider_id, date,
// minute range) rejects double bookings with 23P01; cancelled rows fall
// outside the constraint and free their range.
func (s *Store) Book(ctx context.Context, a model.Appointment) error {
	return s.inTx(ctx, engine.ErrSlotConflict, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO appointments
				(id, user_id, provider_id, service_id, booking_date, start_minute, end_minute, status, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`, a.ID, a.UserID, a.ProviderID, a.ServiceID, a.Date, a.Range.Start, a.Range.End, a.Status, a.CreatedAt)
		if err != nil {
			return err
		}
		return s.outbox.Insert(ctx, tx, outbox.AppointmentEvent(outbox.EventAppointmentBooked, a))
	})
}

func (s *Store) GetAppointment(ctx context.Context, id string) (model.Appointment, error) {
	a, err := scanAppointment(s.pool.QueryRow(ctx, `
		SELECT id, user_id, provider_id, service_id, booking_date, start_minute, end_minute, status, cancelled_at, created_at
		FROM appointments
		WHERE id = $1
	`, id))
	if err != nil {
		return model.Appointment{}, translate(err, engine.ErrStorage)
	}
	return a, nil
}

// Cancel flips a booked appointment to cancelled. The guarded UPDATE makes
// the transition idempotent: a second cancel matches no row and falls back
// to re-reading the already-cancelled record.
func (s *Store) Cancel(ctx context.Context, id string) (model.Appointment, error) {
	var cancelled model.Appointment
	err := s.inTx(ctx, engine.ErrStorage, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE appointments
			SET status = 'cancelled',
				cancelled_at = now()
			WHERE id = $1 AND status = 'booked'
		`, id)
		if err != nil {
			return err
		}
		cancelled, err = scanAppointment(tx.QueryRow(ctx, `
			SELECT id, user_id, provider_id, service_id, booking_date, start_minute, end_minute, status, cancelled_at, created_at
			FROM appointments
			WHERE id = $1
		`, id))
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return nil
		}
		return s.outbox.Insert(ctx, tx, outbox.AppointmentEvent(outbox.EventAppointmentCancelled, cancelled))
	})
	if err != nil {
		return model.Appointment{}, err
	}
	return cancelled, nil
}

func (s *Store) ListByUser(ctx context.Context, userID string) ([]model.Appointment, error) {
	return s.queryAppointments(ctx, `
		SELECT id, user_id, provider_id, service_id, booking_date, start_minute, end_minute, status, cancelled_at, created_at
		FROM appointments
		WHERE user_id = $1
		ORDER BY booking_date, start_minute
	`, userID)
}

func (s *Store) ListByProvider(ctx context.Context, providerID string) ([]model.Appointment, error) {
	return s.queryAppointments(ctx, `
		SELECT id, user_id, provider_id, service_id, booking_date, start_minute, end_minute, status, cancelled_at, created_at
		FROM appointments
		WHERE provider_id = $1
		ORDER BY booking_date, start_minute
	`, providerID)
}

func (s *Store) BookedFor(ctx context.Context, providerID, date string) ([]model.Appointment, error) {
	return s.queryAppointments(ctx, `
		SELECT id, user_id, provider_id, service_id, booking_date, start_minute, end_minute, status, cancelled_at, created_at
		FROM appointments
		WHERE provider_id = $1 AND booking_date = $2 AND status = 'booked'
		ORDER BY start_minute
	`, providerID, date)
}

// UpsertProvider keeps the provider read model in step with user events.
// Re-delivered or out-of-order events reduce to a no-op.
func (s *Store) UpsertProvider(ctx context.Context, p model.Provider) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO providers (id, email, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO NOTHING
	`, p.ID, p.Email, p.CreatedAt)
	return translate(err, engine.ErrStorage)
}

func (s *Store) queryAppointments(ctx context.Context, query string, args ...any) ([]model.Appointment, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, translate(err, engine.ErrStorage)
	}
	defer rows.Close()

	var out []model.Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, translate(err, engine.ErrStorage)
		}
		out = append(out, a)
	}
	if rows.Err() != nil {
		return nil, translate(rows.Err(), engine.ErrStorage)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAppointment(row rowScanner) (model.Appointment, error) {
	var a model.Appointment
	var date time.Time
	var start, end int
	var cancelledAt *time.Time
	err := row.Scan(&a.ID, &a.UserID, &a.ProviderID, &a.ServiceID, &date, &start, &end, &a.Status, &cancelledAt, &a.CreatedAt)
	if err != nil {
		return model.Appointment{}, err
	}
	a.Date = date.Format(model.DateLayout)
	a.CancelledAt = cancelledAt
	a.Range, err = timerange.New(start, end)
	if err != nil {
		return model.Appointment{}, err
	}
	return a, nil
}

// inTx runs fn in a transaction with a bounded lock wait and translates the
// resulting error, using conflict for exclusion violations.
func (s *Store) inTx(ctx context.Context, conflict error, fn func(tx pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return translate(err, conflict)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, "SET LOCAL lock_timeout = '"+lockTimeout+"'"); err != nil {
		return translate(err, conflict)
	}
	if err := fn(tx); err != nil {
		return translate(err, conflict)
	}
	return translate(tx.Commit(ctx), conflict)
}
