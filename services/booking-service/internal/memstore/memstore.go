// Package memstore is an in-memory engine.Store used by tests and by local
// runs without a database. Conflict checks serialize on per-key locks with a
// bounded wait, mirroring the lock-then-check behavior of the SQL store.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/slotbook/slotbook/services/booking-service/internal/engine"
	"github.com/slotbook/slotbook/services/booking-service/internal/model"
)

const defaultLockWait = 2 * time.Second

type Store struct {
	mu           sync.RWMutex
	services     map[string]model.Service
	windows      map[string][]model.AvailabilityWindow // service id -> windows
	appointments map[string]model.Appointment

	locks    *lockTable
	lockWait time.Duration
}

func New() *Store {
	return &Store{
		services:     make(map[string]model.Service),
		windows:      make(map[string][]model.AvailabilityWindow),
		appointments: make(map[string]model.Appointment),
		locks:        newLockTable(),
		lockWait:     defaultLockWait,
	}
}

// SetLockWait bounds how long a conflict check waits for its key lock before
// failing with ErrTimeout.
func (s *Store) SetLockWait(d time.Duration) { s.lockWait = d }

func (s *Store) CreateService(ctx context.Context, svc model.Service) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.services[svc.ID]; ok {
		return fmt.Errorf("service %s already exists: %w", svc.ID, engine.ErrStorage)
	}
	s.services[svc.ID] = svc
	return nil
}

func (s *Store) GetService(ctx context.Context, id string) (model.Service, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	svc, ok := s.services[id]
	if !ok {
		return model.Service{}, fmt.Errorf("service %s: %w", id, engine.ErrNotFound)
	}
	return svc, nil
}

func (s *Store) ListServices(ctx context.Context) ([]model.Service, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Service, 0, len(s.services))
	for _, svc := range s.services {
		out = append(out, svc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func windowKey(serviceID string, day int) string {
	return fmt.Sprintf("win:%s:%d", serviceID, day)
}

func (s *Store) AddWindow(ctx context.Context, w model.AvailabilityWindow) error {
	release, err := s.locks.acquire(ctx, windowKey(w.ServiceID, w.DayOfWeek), s.lockWait)
	if err != nil {
		return fmt.Errorf("add window: %w", err)
	}
	defer release()

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.windows[w.ServiceID] {
		if existing.DayOfWeek == w.DayOfWeek && existing.Range.Overlaps(w.Range) {
			return fmt.Errorf("window %s vs %s: %w", w.Range, existing.Range, engine.ErrOverlapConflict)
		}
	}
	s.windows[w.ServiceID] = append(s.windows[w.ServiceID], w)
	return nil
}

func (s *Store) WindowsFor(ctx context.Context, serviceID string, dayOfWeek int) ([]model.AvailabilityWindow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.AvailabilityWindow
	for _, w := range s.windows[serviceID] {
		if w.DayOfWeek == dayOfWeek {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Range.Less(out[j].Range) })
	return out, nil
}

func (s *Store) WindowsForService(ctx context.Context, serviceID string) ([]model.AvailabilityWindow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := append([]model.AvailabilityWindow(nil), s.windows[serviceID]...)
	sort.Slice(out, func(i, j int) bool {
		if out[i].DayOfWeek != out[j].DayOfWeek {
			return out[i].DayOfWeek < out[j].DayOfWeek
		}
		return out[i].Range.Less(out[j].Range)
	})
	return out, nil
}

func appointmentKey(providerID, date string) string {
	return "appt:" + providerID + ":" + date
}

func (s *Store) Book(ctx context.Context, a model.Appointment) error {
	release, err := s.locks.acquire(ctx, appointmentKey(a.ProviderID, a.Date), s.lockWait)
	if err != nil {
		return fmt.Errorf("book: %w", err)
	}
	defer release()

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.appointments {
		if existing.ProviderID == a.ProviderID && existing.Date == a.Date &&
			existing.Status == model.StatusBooked && existing.Range.Overlaps(a.Range) {
			return fmt.Errorf("booking %s vs %s: %w", a.Range, existing.Range, engine.ErrSlotConflict)
		}
	}
	s.appointments[a.ID] = a
	return nil
}

func (s *Store) GetAppointment(ctx context.Context, id string) (model.Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.appointments[id]
	if !ok {
		return model.Appointment{}, fmt.Errorf("appointment %s: %w", id, engine.ErrNotFound)
	}
	return a, nil
}

func (s *Store) Cancel(ctx context.Context, id string) (model.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.appointments[id]
	if !ok {
		return model.Appointment{}, fmt.Errorf("appointment %s: %w", id, engine.ErrNotFound)
	}
	if a.Status == model.StatusBooked {
		now := time.Now().UTC()
		a.Status = model.StatusCancelled
		a.CancelledAt = &now
		s.appointments[id] = a
	}
	return a, nil
}

func (s *Store) ListByUser(ctx context.Context, userID string) ([]model.Appointment, error) {
	return s.list(func(a model.Appointment) bool { return a.UserID == userID })
}

func (s *Store) ListByProvider(ctx context.Context, providerID string) ([]model.Appointment, error) {
	return s.list(func(a model.Appointment) bool { return a.ProviderID == providerID })
}

func (s *Store) BookedFor(ctx context.Context, providerID, date string) ([]model.Appointment, error) {
	out, err := s.list(func(a model.Appointment) bool {
		return a.ProviderID == providerID && a.Date == date && a.Status == model.StatusBooked
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Range.Less(out[j].Range) })
	return out, nil
}

func (s *Store) list(keep func(model.Appointment) bool) ([]model.Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Appointment
	for _, a := range s.appointments {
		if keep(a) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].Range.Less(out[j].Range)
	})
	return out, nil
}
