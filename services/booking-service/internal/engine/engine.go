// Package engine implements the availability and booking rules: weekly
// recurring windows per service, appointments as sub-ranges of a window on a
// concrete date, and the overlap guarantees for both.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/slotbook/slotbook/services/booking-service/internal/model"
	"github.com/slotbook/slotbook/services/booking-service/internal/timerange"
)

type Engine struct {
	store Store
}

func New(store Store) *Engine {
	return &Engine{store: store}
}

// CreateService registers a new bookable offering for the calling provider.
func (e *Engine) CreateService(ctx context.Context, caller model.Principal, name string, typ model.ServiceType, durationMinutes int) (model.Service, error) {
	if caller.Role != model.RoleProvider {
		return model.Service{}, fmt.Errorf("create service: %w", ErrForbidden)
	}
	if name == "" {
		return model.Service{}, fmt.Errorf("create service: empty name: %w", ErrInvalidInput)
	}
	if !typ.Valid() {
		return model.Service{}, fmt.Errorf("create service: unknown type %q: %w", typ, ErrInvalidInput)
	}
	if !model.ValidDuration(durationMinutes) {
		return model.Service{}, fmt.Errorf("create service: duration %d: %w", durationMinutes, ErrInvalidInput)
	}
	s := model.Service{
		ID:              uuid.NewString(),
		ProviderID:      caller.ID,
		Name:            name,
		Type:            typ,
		DurationMinutes: durationMinutes,
		CreatedAt:       time.Now().UTC(),
	}
	if err := e.store.CreateService(ctx, s); err != nil {
		return model.Service{}, err
	}
	return s, nil
}

func (e *Engine) GetService(ctx context.Context, id string) (model.Service, error) {
	return e.store.GetService(ctx, id)
}

func (e *Engine) ListServices(ctx context.Context) ([]model.Service, error) {
	return e.store.ListServices(ctx)
}

// AddWindow declares a weekly recurring availability window for a service the
// caller owns. The overlap check against committed windows for the same
// (service, day) happens atomically in the store.
func (e *Engine) AddWindow(ctx context.Context, caller model.Principal, serviceID string, dayOfWeek int, start, end string) (model.AvailabilityWindow, error) {
	r, err := timerange.ParseClockRange(start, end)
	if err != nil {
		return model.AvailabilityWindow{}, fmt.Errorf("add window: %w", err)
	}
	if dayOfWeek < 0 || dayOfWeek > 6 {
		return model.AvailabilityWindow{}, fmt.Errorf("add window: day of week %d: %w", dayOfWeek, ErrInvalidInput)
	}
	svc, err := e.store.GetService(ctx, serviceID)
	if err != nil {
		return model.AvailabilityWindow{}, err
	}
	if svc.ProviderID != caller.ID {
		return model.AvailabilityWindow{}, fmt.Errorf("add window: service %s: %w", serviceID, ErrForbidden)
	}
	w := model.AvailabilityWindow{
		ID:        uuid.NewString(),
		ServiceID: serviceID,
		DayOfWeek: dayOfWeek,
		Range:     r,
		CreatedAt: time.Now().UTC(),
	}
	if err := e.store.AddWindow(ctx, w); err != nil {
		return model.AvailabilityWindow{}, err
	}
	return w, nil
}

// WindowsFor lists a service's windows for one weekday, ordered by start.
func (e *Engine) WindowsFor(ctx context.Context, serviceID string, dayOfWeek int) ([]model.AvailabilityWindow, error) {
	if dayOfWeek < 0 || dayOfWeek > 6 {
		return nil, fmt.Errorf("windows: day of week %d: %w", dayOfWeek, ErrInvalidInput)
	}
	if _, err := e.store.GetService(ctx, serviceID); err != nil {
		return nil, err
	}
	return e.store.WindowsFor(ctx, serviceID, dayOfWeek)
}

// WindowsForService lists all windows of a service across the week.
func (e *Engine) WindowsForService(ctx context.Context, serviceID string) ([]model.AvailabilityWindow, error) {
	if _, err := e.store.GetService(ctx, serviceID); err != nil {
		return nil, err
	}
	return e.store.WindowsForService(ctx, serviceID)
}

// Book creates an appointment for the caller on a concrete date. The
// requested range must lie entirely inside a single availability window of
// the service for that date's weekday; the no-double-booking check against
// the provider's committed appointments happens atomically in the store.
func (e *Engine) Book(ctx context.Context, caller model.Principal, serviceID, date, start, end string) (model.Appointment, error) {
	r, err := timerange.ParseClockRange(start, end)
	if err != nil {
		return model.Appointment{}, fmt.Errorf("book: %w", err)
	}
	_, weekday, err := model.ParseDate(date)
	if err != nil {
		return model.Appointment{}, fmt.Errorf("book: date %q: %w", date, ErrInvalidInput)
	}
	svc, err := e.store.GetService(ctx, serviceID)
	if err != nil {
		return model.Appointment{}, err
	}
	windows, err := e.store.WindowsFor(ctx, serviceID, weekday)
	if err != nil {
		return model.Appointment{}, err
	}
	contained := false
	for _, w := range windows {
		if w.Range.Contains(r) {
			contained = true
			break
		}
	}
	if !contained {
		return model.Appointment{}, fmt.Errorf("book: %s %s on %s: %w", start, end, date, ErrNoAvailability)
	}
	a := model.Appointment{
		ID:         uuid.NewString(),
		UserID:     caller.ID,
		ProviderID: svc.ProviderID,
		ServiceID:  serviceID,
		Date:       date,
		Range:      r,
		Status:     model.StatusBooked,
		CreatedAt:  time.Now().UTC(),
	}
	if err := e.store.Book(ctx, a); err != nil {
		return model.Appointment{}, err
	}
	return a, nil
}

// Cancel moves an appointment to cancelled. Only the user who booked the
// appointment may cancel it. Cancelling an already cancelled appointment is
// a no-op that returns the current record.
func (e *Engine) Cancel(ctx context.Context, caller model.Principal, appointmentID string) (model.Appointment, error) {
	a, err := e.store.GetAppointment(ctx, appointmentID)
	if err != nil {
		return model.Appointment{}, err
	}
	if caller.ID != a.UserID {
		return model.Appointment{}, fmt.Errorf("cancel %s: %w", appointmentID, ErrForbidden)
	}
	if a.Status == model.StatusCancelled {
		return a, nil
	}
	return e.store.Cancel(ctx, appointmentID)
}

// Appointments lists the caller's appointments: bookings they made as a
// user, or bookings against their services as a provider.
func (e *Engine) Appointments(ctx context.Context, caller model.Principal) ([]model.Appointment, error) {
	if caller.Role == model.RoleProvider {
		return e.store.ListByProvider(ctx, caller.ID)
	}
	return e.store.ListByUser(ctx, caller.ID)
}

// FreeSlot is an open interval of a service's availability on a date.
type FreeSlot struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// FreeSlots computes the unbooked portions of a service's windows on a
// date: each window minus the provider's booked ranges for that date,
// ordered by start. Cancelled appointments free their range.
func (e *Engine) FreeSlots(ctx context.Context, serviceID, date string) ([]FreeSlot, error) {
	_, weekday, err := model.ParseDate(date)
	if err != nil {
		return nil, fmt.Errorf("free slots: date %q: %w", date, ErrInvalidInput)
	}
	svc, err := e.store.GetService(ctx, serviceID)
	if err != nil {
		return nil, err
	}
	windows, err := e.store.WindowsFor(ctx, serviceID, weekday)
	if err != nil {
		return nil, err
	}
	booked, err := e.store.BookedFor(ctx, svc.ProviderID, date)
	if err != nil {
		return nil, err
	}
	busy := make([]timerange.Range, 0, len(booked))
	for _, a := range booked {
		busy = append(busy, a.Range)
	}
	slots := make([]FreeSlot, 0)
	for _, w := range windows {
		for _, free := range timerange.Subtract(w.Range, busy) {
			slots = append(slots, FreeSlot{
				Start: timerange.FormatClock(free.Start),
				End:   timerange.FormatClock(free.End),
			})
		}
	}
	return slots, nil
}
