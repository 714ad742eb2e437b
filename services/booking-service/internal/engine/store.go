package engine

import (
	"context"

	"github.com/slotbook/slotbook/services/booking-service/internal/model"
)

// ServiceStore persists services and the provider read model.
type ServiceStore interface {
	CreateService(ctx context.Context, s model.Service) error
	GetService(ctx context.Context, id string) (model.Service, error)
	ListServices(ctx context.Context) ([]model.Service, error)
}

// WindowStore persists availability windows. AddWindow must atomically
// verify the no-overlap invariant for (service, day) against committed
// windows and insert; a losing concurrent insert returns ErrOverlapConflict
// and a bounded wait that expires returns ErrTimeout. WindowsFor returns
// windows ordered by start minute.
type WindowStore interface {
	AddWindow(ctx context.Context, w model.AvailabilityWindow) error
	WindowsFor(ctx context.Context, serviceID string, dayOfWeek int) ([]model.AvailabilityWindow, error)
	WindowsForService(ctx context.Context, serviceID string) ([]model.AvailabilityWindow, error)
}

// AppointmentStore persists appointments. Book must atomically check the
// requested range against booked appointments for (provider, date) and
// insert; a losing concurrent booking returns ErrSlotConflict. BookedFor
// returns booked ranges ordered by start minute.
type AppointmentStore interface {
	Book(ctx context.Context, a model.Appointment) error
	GetAppointment(ctx context.Context, id string) (model.Appointment, error)
	Cancel(ctx context.Context, id string) (model.Appointment, error)
	ListByUser(ctx context.Context, userID string) ([]model.Appointment, error)
	ListByProvider(ctx context.Context, providerID string) ([]model.Appointment, error)
	BookedFor(ctx context.Context, providerID, date string) ([]model.Appointment, error)
}

// Store is the full persistence surface the engine operates against.
type Store interface {
	ServiceStore
	WindowStore
	AppointmentStore
}
