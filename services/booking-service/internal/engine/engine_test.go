package engine_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/slotbook/slotbook/services/booking-service/internal/engine"
	"github.com/slotbook/slotbook/services/booking-service/internal/memstore"
	"github.com/slotbook/slotbook/services/booking-service/internal/model"
	"github.com/slotbook/slotbook/services/booking-service/internal/timerange"
)

var (
	provider = model.Principal{ID: "prov-1", Email: "p@example.com", Role: model.RoleProvider}
	userU    = model.Principal{ID: "user-u", Email: "u@example.com", Role: model.RoleUser}
	userV    = model.Principal{ID: "user-v", Email: "v@example.com", Role: model.RoleUser}
	userW    = model.Principal{ID: "user-w", Email: "w@example.com", Role: model.RoleUser}
)

// wednesday is a date whose weekday is 3.
const wednesday = "2026-01-07"

func newEngine(t *testing.T) (*engine.Engine, *memstore.Store) {
	t.Helper()
	store := memstore.New()
	return engine.New(store), store
}

func mustService(t *testing.T, e *engine.Engine, owner model.Principal, duration int) model.Service {
	t.Helper()
	svc, err := e.CreateService(context.Background(), owner, "Checkup", model.ServiceMedical, duration)
	if err != nil {
		t.Fatalf("CreateService: %v", err)
	}
	return svc
}

func mustWindow(t *testing.T, e *engine.Engine, owner model.Principal, serviceID string, day int, start, end string) model.AvailabilityWindow {
	t.Helper()
	w, err := e.AddWindow(context.Background(), owner, serviceID, day, start, end)
	if err != nil {
		t.Fatalf("AddWindow %s-%s: %v", start, end, err)
	}
	return w
}

func TestCreateServiceValidation(t *testing.T) {
	e, _ := newEngine(t)
	ctx := context.Background()

	if _, err := e.CreateService(ctx, userU, "Checkup", model.ServiceMedical, 30); !errors.Is(err, engine.ErrForbidden) {
		t.Fatalf("user role: got %v, want ErrForbidden", err)
	}
	if _, err := e.CreateService(ctx, provider, "", model.ServiceMedical, 30); !errors.Is(err, engine.ErrInvalidInput) {
		t.Fatalf("empty name: got %v, want ErrInvalidInput", err)
	}
	if _, err := e.CreateService(ctx, provider, "Checkup", model.ServiceType("VET"), 30); !errors.Is(err, engine.ErrInvalidInput) {
		t.Fatalf("unknown type: got %v, want ErrInvalidInput", err)
	}
	for _, d := range []int{0, 15, 45, 150, -30} {
		if _, err := e.CreateService(ctx, provider, "Checkup", model.ServiceMedical, d); !errors.Is(err, engine.ErrInvalidInput) {
			t.Fatalf("duration %d: got %v, want ErrInvalidInput", d, err)
		}
	}
	svc, err := e.CreateService(ctx, provider, "Checkup", model.ServiceMedical, 60)
	if err != nil {
		t.Fatalf("valid service: %v", err)
	}
	if svc.ProviderID != provider.ID {
		t.Fatalf("provider id = %q, want %q", svc.ProviderID, provider.ID)
	}
}

func TestAddWindowRejectsOverlap(t *testing.T) {
	e, _ := newEngine(t)
	ctx := context.Background()
	svc := mustService(t, e, provider, 30)

	mustWindow(t, e, provider, svc.ID, 3, "09:00", "12:00")

	cases := []struct {
		name       string
		start, end string
	}{
		{"identical", "09:00", "12:00"},
		{"contained", "10:00", "11:00"},
		{"left edge", "08:00", "09:01"},
		{"right edge", "11:59", "13:00"},
		{"covering", "08:00", "13:00"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := e.AddWindow(ctx, provider, svc.ID, 3, tc.start, tc.end); !errors.Is(err, engine.ErrOverlapConflict) {
				t.Fatalf("got %v, want ErrOverlapConflict", err)
			}
		})
	}

	// Touching endpoints are not an overlap.
	mustWindow(t, e, provider, svc.ID, 3, "12:00", "14:00")
	mustWindow(t, e, provider, svc.ID, 3, "08:00", "09:00")
	// Other days and other services are independent conflict domains.
	mustWindow(t, e, provider, svc.ID, 4, "09:00", "12:00")
	other := mustService(t, e, provider, 30)
	mustWindow(t, e, provider, other.ID, 3, "09:00", "12:00")
}

func TestAddWindowBoundaryMinutes(t *testing.T) {
	e, _ := newEngine(t)
	svc := mustService(t, e, provider, 30)

	// [09:00,10:00) and [10:00,11:00) do not conflict.
	mustWindow(t, e, provider, svc.ID, 1, "09:00", "10:00")
	mustWindow(t, e, provider, svc.ID, 1, "10:00", "11:00")

	// [09:00,10:01) and [10:00,11:00) do.
	svc2 := mustService(t, e, provider, 30)
	mustWindow(t, e, provider, svc2.ID, 1, "09:00", "10:01")
	if _, err := e.AddWindow(context.Background(), provider, svc2.ID, 1, "10:00", "11:00"); !errors.Is(err, engine.ErrOverlapConflict) {
		t.Fatalf("got %v, want ErrOverlapConflict", err)
	}
}

func TestAddWindowValidation(t *testing.T) {
	e, _ := newEngine(t)
	ctx := context.Background()
	svc := mustService(t, e, provider, 30)

	if _, err := e.AddWindow(ctx, provider, svc.ID, 3, "9:00", "12:00"); !errors.Is(err, timerange.ErrInvalidTimeFormat) {
		t.Fatalf("short hour: got %v, want ErrInvalidTimeFormat", err)
	}
	if _, err := e.AddWindow(ctx, provider, svc.ID, 3, "12:00", "09:00"); !errors.Is(err, timerange.ErrInvalidRange) {
		t.Fatalf("inverted: got %v, want ErrInvalidRange", err)
	}
	if _, err := e.AddWindow(ctx, provider, svc.ID, 7, "09:00", "12:00"); !errors.Is(err, engine.ErrInvalidInput) {
		t.Fatalf("day 7: got %v, want ErrInvalidInput", err)
	}
	if _, err := e.AddWindow(ctx, provider, "no-such-service", 3, "09:00", "12:00"); !errors.Is(err, engine.ErrNotFound) {
		t.Fatalf("unknown service: got %v, want ErrNotFound", err)
	}
	stranger := model.Principal{ID: "prov-2", Role: model.RoleProvider}
	if _, err := e.AddWindow(ctx, stranger, svc.ID, 3, "09:00", "12:00"); !errors.Is(err, engine.ErrForbidden) {
		t.Fatalf("non-owner: got %v, want ErrForbidden", err)
	}
}

func TestWindowsForOrdered(t *testing.T) {
	e, _ := newEngine(t)
	svc := mustService(t, e, provider, 30)
	mustWindow(t, e, provider, svc.ID, 2, "14:00", "16:00")
	mustWindow(t, e, provider, svc.ID, 2, "08:00", "10:00")
	mustWindow(t, e, provider, svc.ID, 2, "11:00", "12:00")

	windows, err := e.WindowsFor(context.Background(), svc.ID, 2)
	if err != nil {
		t.Fatalf("WindowsFor: %v", err)
	}
	if len(windows) != 3 {
		t.Fatalf("got %d windows, want 3", len(windows))
	}
	for i := 1; i < len(windows); i++ {
		if !windows[i-1].Range.Less(windows[i].Range) {
			t.Fatalf("windows out of order: %s before %s", windows[i-1].Range, windows[i].Range)
		}
	}
}

func TestBookRequiresContainment(t *testing.T) {
	e, _ := newEngine(t)
	ctx := context.Background()
	svc := mustService(t, e, provider, 30)
	mustWindow(t, e, provider, svc.ID, 3, "09:00", "12:00")
	mustWindow(t, e, provider, svc.ID, 3, "13:00", "15:00")

	if _, err := e.Book(ctx, userU, svc.ID, wednesday, "09:00", "09:30"); err != nil {
		t.Fatalf("inside window: %v", err)
	}
	// Exactly filling a window is containment.
	if _, err := e.Book(ctx, userV, svc.ID, wednesday, "13:00", "15:00"); err != nil {
		t.Fatalf("exact fill: %v", err)
	}
	// Straddling two windows is not containment in any single one.
	if _, err := e.Book(ctx, userW, svc.ID, wednesday, "11:30", "13:30"); !errors.Is(err, engine.ErrNoAvailability) {
		t.Fatalf("straddle: got %v, want ErrNoAvailability", err)
	}
	// Wrong weekday: the windows are for day 3, 2026-01-08 is day 4.
	if _, err := e.Book(ctx, userW, svc.ID, "2026-01-08", "09:00", "09:30"); !errors.Is(err, engine.ErrNoAvailability) {
		t.Fatalf("wrong weekday: got %v, want ErrNoAvailability", err)
	}
	if _, err := e.Book(ctx, userW, svc.ID, "07-01-2026", "09:00", "09:30"); !errors.Is(err, engine.ErrInvalidInput) {
		t.Fatalf("bad date: got %v, want ErrInvalidInput", err)
	}
	if _, err := e.Book(ctx, userW, "no-such-service", wednesday, "09:00", "09:30"); !errors.Is(err, engine.ErrNotFound) {
		t.Fatalf("unknown service: got %v, want ErrNotFound", err)
	}
}

func TestBookConflictDomainIsProviderAndDate(t *testing.T) {
	e, _ := newEngine(t)
	ctx := context.Background()

	// Two services of the same provider share one calendar.
	svcA := mustService(t, e, provider, 30)
	svcB := mustService(t, e, provider, 30)
	mustWindow(t, e, provider, svcA.ID, 3, "09:00", "12:00")
	mustWindow(t, e, provider, svcB.ID, 3, "09:00", "12:00")

	if _, err := e.Book(ctx, userU, svcA.ID, wednesday, "09:00", "10:00"); err != nil {
		t.Fatalf("first booking: %v", err)
	}
	if _, err := e.Book(ctx, userV, svcB.ID, wednesday, "09:30", "10:30"); !errors.Is(err, engine.ErrSlotConflict) {
		t.Fatalf("cross-service same provider: got %v, want ErrSlotConflict", err)
	}
	// Touching bookings coexist, as do bookings a week apart.
	if _, err := e.Book(ctx, userV, svcB.ID, wednesday, "10:00", "11:00"); err != nil {
		t.Fatalf("touching booking: %v", err)
	}
	if _, err := e.Book(ctx, userV, svcA.ID, "2026-01-14", "09:00", "10:00"); err != nil {
		t.Fatalf("next week: %v", err)
	}

	// A different provider's calendar is independent.
	other := model.Principal{ID: "prov-2", Role: model.RoleProvider}
	svcC := mustService(t, e, other, 30)
	mustWindow(t, e, other, svcC.ID, 3, "09:00", "12:00")
	if _, err := e.Book(ctx, userW, svcC.ID, wednesday, "09:00", "10:00"); err != nil {
		t.Fatalf("other provider: %v", err)
	}
}

func TestCancel(t *testing.T) {
	e, _ := newEngine(t)
	ctx := context.Background()
	svc := mustService(t, e, provider, 30)
	mustWindow(t, e, provider, svc.ID, 3, "09:00", "12:00")

	a, err := e.Book(ctx, userU, svc.ID, wednesday, "09:00", "09:30")
	if err != nil {
		t.Fatalf("book: %v", err)
	}

	if _, err := e.Cancel(ctx, userV, a.ID); !errors.Is(err, engine.ErrForbidden) {
		t.Fatalf("stranger cancel: got %v, want ErrForbidden", err)
	}
	if _, err := e.Cancel(ctx, userU, "no-such-appointment"); !errors.Is(err, engine.ErrNotFound) {
		t.Fatalf("unknown id: got %v, want ErrNotFound", err)
	}

	cancelled, err := e.Cancel(ctx, userU, a.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != model.StatusCancelled || cancelled.CancelledAt == nil {
		t.Fatalf("status = %q, cancelledAt = %v", cancelled.Status, cancelled.CancelledAt)
	}

	// Idempotent: a second cancel succeeds and changes nothing.
	again, err := e.Cancel(ctx, userU, a.ID)
	if err != nil {
		t.Fatalf("second cancel: %v", err)
	}
	if !again.CancelledAt.Equal(*cancelled.CancelledAt) {
		t.Fatalf("second cancel moved timestamp: %v vs %v", again.CancelledAt, cancelled.CancelledAt)
	}

	// Only the booking user may cancel; the service's provider may not.
	b, err := e.Book(ctx, userU, svc.ID, wednesday, "10:00", "10:30")
	if err != nil {
		t.Fatalf("book: %v", err)
	}
	if _, err := e.Cancel(ctx, provider, b.ID); !errors.Is(err, engine.ErrForbidden) {
		t.Fatalf("provider cancel: got %v, want ErrForbidden", err)
	}
	got, err := e.Cancel(ctx, userU, b.ID)
	if err != nil {
		t.Fatalf("owner cancel: %v", err)
	}
	if got.Status != model.StatusCancelled {
		t.Fatalf("status = %q, want %q", got.Status, model.StatusCancelled)
	}
}

func TestBookingScenario(t *testing.T) {
	e, _ := newEngine(t)
	ctx := context.Background()

	svc := mustService(t, e, provider, 30)
	mustWindow(t, e, provider, svc.ID, 3, "09:00", "12:00")

	first, err := e.Book(ctx, userU, svc.ID, wednesday, "09:00", "09:30")
	if err != nil {
		t.Fatalf("U books 09:00-09:30: %v", err)
	}
	if _, err := e.Book(ctx, userV, svc.ID, wednesday, "09:15", "09:45"); !errors.Is(err, engine.ErrSlotConflict) {
		t.Fatalf("V books 09:15-09:45: got %v, want ErrSlotConflict", err)
	}
	if _, err := e.Book(ctx, userV, svc.ID, wednesday, "09:30", "10:00"); err != nil {
		t.Fatalf("V books 09:30-10:00: %v", err)
	}
	if _, err := e.Cancel(ctx, userU, first.ID); err != nil {
		t.Fatalf("U cancels: %v", err)
	}
	if _, err := e.Book(ctx, userW, svc.ID, wednesday, "09:00", "09:30"); err != nil {
		t.Fatalf("W rebooks freed slot: %v", err)
	}

	// Spilling past the window end is no availability, not a slot conflict.
	if _, err := e.Book(ctx, userW, svc.ID, wednesday, "11:45", "12:15"); !errors.Is(err, engine.ErrNoAvailability) {
		t.Fatalf("11:45-12:15: got %v, want ErrNoAvailability", err)
	}
}

func TestFreeSlots(t *testing.T) {
	e, _ := newEngine(t)
	ctx := context.Background()
	svc := mustService(t, e, provider, 30)
	mustWindow(t, e, provider, svc.ID, 3, "09:00", "12:00")
	mustWindow(t, e, provider, svc.ID, 3, "14:00", "15:00")

	if _, err := e.Book(ctx, userU, svc.ID, wednesday, "09:30", "10:00"); err != nil {
		t.Fatalf("book: %v", err)
	}
	cancelled, err := e.Book(ctx, userV, svc.ID, wednesday, "10:30", "11:00")
	if err != nil {
		t.Fatalf("book: %v", err)
	}
	if _, err := e.Cancel(ctx, userV, cancelled.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	slots, err := e.FreeSlots(ctx, svc.ID, wednesday)
	if err != nil {
		t.Fatalf("FreeSlots: %v", err)
	}
	want := []engine.FreeSlot{
		{Start: "09:00", End: "09:30"},
		{Start: "10:00", End: "12:00"},
		{Start: "14:00", End: "15:00"},
	}
	if len(slots) != len(want) {
		t.Fatalf("got %d slots %v, want %d", len(slots), slots, len(want))
	}
	for i := range want {
		if slots[i] != want[i] {
			t.Fatalf("slot %d = %v, want %v", i, slots[i], want[i])
		}
	}

	// A day with no windows has no slots.
	empty, err := e.FreeSlots(ctx, svc.ID, "2026-01-08")
	if err != nil {
		t.Fatalf("FreeSlots empty day: %v", err)
	}
	if len(empty) != 0 {
		t.Fatalf("got %v, want no slots", empty)
	}
}

func TestConcurrentBookingAdmitsOne(t *testing.T) {
	e, _ := newEngine(t)
	ctx := context.Background()
	svc := mustService(t, e, provider, 30)
	mustWindow(t, e, provider, svc.ID, 3, "09:00", "12:00")

	const n = 16
	var wg sync.WaitGroup
	errs := make([]error, n)
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			caller := model.Principal{ID: uuidLike(i), Role: model.RoleUser}
			_, err := e.Book(ctx, caller, svc.ID, wednesday, "10:00", "10:30")
			errs[i] = err
		}(i)
	}
	close(start)
	wg.Wait()

	var ok, conflict int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, engine.ErrSlotConflict):
			conflict++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != 1 || conflict != n-1 {
		t.Fatalf("got %d successes and %d conflicts, want 1 and %d", ok, conflict, n-1)
	}
}

func uuidLike(i int) string {
	return "user-" + string(rune('a'+i))
}
