package model

import (
	"time"

	"github.com/slotbook/slotbook/services/booking-service/internal/timerange"
)

// Roles carried in access-token claims.
const (
	RoleUser     = "user"
	RoleProvider = "provider"
)

// Principal is the authenticated caller as extracted from a verified token.
type Principal struct {
	ID    string
	Email string
	Role  string
}

// ServiceType is the published category of a service.
type ServiceType string

const (
	ServiceMedical   ServiceType = "MEDICAL"
	ServiceHouseHelp ServiceType = "HOUSE_HELP"
	ServiceBeauty    ServiceType = "BEAUTY"
	ServiceFitness   ServiceType = "FITNESS"
	ServiceEducation ServiceType = "EDUCATION"
	ServiceOther     ServiceType = "OTHER"
)

func (t ServiceType) Valid() bool {
	switch t {
	case ServiceMedical, ServiceHouseHelp, ServiceBeauty, ServiceFitness, ServiceEducation, ServiceOther:
		return true
	}
	return false
}

// Duration constraints for a service: a positive multiple of the granularity
// within [DurationMin, DurationMax] minutes.
const (
	DurationGranularity = 30
	DurationMin         = 30
	DurationMax         = 120
)

func ValidDuration(minutes int) bool {
	return minutes >= DurationMin && minutes <= DurationMax && minutes%DurationGranularity == 0
}

// Service is a bookable offering owned by exactly one provider. Immutable
// after creation.
type Service struct {
	ID              string
	ProviderID      string
	Name            string
	Type            ServiceType
	DurationMinutes int
	CreatedAt       time.Time
}

// AvailabilityWindow is a weekly recurring interval during which a service
// accepts bookings. DayOfWeek follows time.Weekday: Sunday = 0.
// Windows for one (service, day) never overlap; they are created, never
// mutated.
type AvailabilityWindow struct {
	ID        string
	ServiceID string
	DayOfWeek int
	Range     timerange.Range
	CreatedAt time.Time
}

// Appointment statuses. The only transition is booked -> cancelled.
const (
	StatusBooked    = "booked"
	StatusCancelled = "cancelled"
)

// Appointment is a user's booking of a sub-range of an availability window
// on a concrete date. Date is "YYYY-MM-DD" in the platform's single zone.
type Appointment struct {
	ID          string
	UserID      string
	ProviderID  string
	ServiceID   string
	Date        string
	Range       timerange.Range
	Status      string
	CancelledAt *time.Time
	CreatedAt   time.Time
}

const DateLayout = "2006-01-02"

// ParseDate validates a YYYY-MM-DD date and returns it with its weekday.
func ParseDate(s string) (time.Time, int, error) {
	d, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, 0, err
	}
	return d, int(d.Weekday()), nil
}

// Provider is the local read model of a provider account, owned by the
// identity service and mirrored here via user events.
type Provider struct {
	ID        string
	Email     string
	CreatedAt time.Time
}
