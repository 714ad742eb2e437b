package outbox

import (
	"encoding/json"

	"github.com/slotbook/slotbook/services/booking-service/internal/model"
	"github.com/slotbook/slotbook/services/booking-service/internal/timerange"
)

// Event types published by the booking service. The Kafka topic name equals
// the event type.
const (
	EventAppointmentBooked    = "booking.appointment.booked.v1"
	EventAppointmentCancelled = "booking.appointment.cancelled.v1"
	EventWindowCreated        = "booking.window.created.v1"
)

// Event is the domain event envelope written to the outbox table alongside
// the state change it describes.
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

type appointmentPayload struct {
	AppointmentID string `json:"appointmentId"`
	UserID        string `json:"userId"`
	ProviderID    string `json:"providerId"`
	ServiceID     string `json:"serviceId"`
	Date          string `json:"date"`
	Start         string `json:"start"`
	End           string `json:"end"`
	Status        string `json:"status"`
}

func AppointmentEvent(eventType string, a model.Appointment) Event {
	payload, _ := json.Marshal(appointmentPayload{
		AppointmentID: a.ID,
		UserID:        a.UserID,
		ProviderID:    a.ProviderID,
		ServiceID:     a.ServiceID,
		Date:          a.Date,
		Start:         timerange.FormatClock(a.Range.Start),
		End:           timerange.FormatClock(a.Range.End),
		Status:        a.Status,
	})
	return Event{
		AggregateType: "appointment",
		AggregateID:   a.ID,
		EventType:     eventType,
		Payload:       payload,
	}
}

type windowPayload struct {
	WindowID  string `json:"windowId"`
	ServiceID string `json:"serviceId"`
	DayOfWeek int    `json:"dayOfWeek"`
	Start     string `json:"start"`
	End       string `json:"end"`
}

func WindowEvent(w model.AvailabilityWindow) Event {
	payload, _ := json.Marshal(windowPayload{
		WindowID:  w.ID,
		ServiceID: w.ServiceID,
		DayOfWeek: w.DayOfWeek,
		Start:     timerange.FormatClock(w.Range.Start),
		End:       timerange.FormatClock(w.Range.End),
	})
	return Event{
		AggregateType: "availability_window",
		AggregateID:   w.ID,
		EventType:     EventWindowCreated,
		Payload:       payload,
	}
}
