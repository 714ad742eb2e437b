package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/slotbook/slotbook/services/booking-service/internal/engine"
	"github.com/slotbook/slotbook/services/booking-service/internal/model"
	"github.com/slotbook/slotbook/services/booking-service/internal/timerange"
)

type BookingHandler struct {
	engine *engine.Engine
	logger *slog.Logger
}

func NewBookingHandler(eng *engine.Engine, logger *slog.Logger) *BookingHandler {
	return &BookingHandler{engine: eng, logger: logger}
}

type createServiceRequest struct {
	Name            string `json:"name"`
	Type            string `json:"type"`
	DurationMinutes int    `json:"duration_minutes"`
}

type serviceResponse struct {
	ServiceID       string `json:"service_id"`
	ProviderID      string `json:"provider_id"`
	Name            string `json:"name"`
	Type            string `json:"type"`
	DurationMinutes int    `json:"duration_minutes"`
	CreatedAt       string `json:"created_at"`
}

type createWindowRequest struct {
	ServiceID string `json:"service_id"`
	DayOfWeek int    `json:"day_of_week"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

type windowResponse struct {
	WindowID  string `json:"window_id"`
	ServiceID string `json:"service_id"`
	DayOfWeek int    `json:"day_of_week"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

type createAppointmentRequest struct {
	ServiceID string `json:"service_id"`
	Date      string `json:"date"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

type appointmentResponse struct {
	AppointmentID string `json:"appointment_id"`
	UserID        string `json:"user_id"`
	ProviderID    string `json:"provider_id"`
	ServiceID     string `json:"service_id"`
	Date          string `json:"date"`
	StartTime     string `json:"start_time"`
	EndTime       string `json:"end_time"`
	Status        string `json:"status"`
	CancelledAt   string `json:"cancelled_at,omitempty"`
}

type cancelAppointmentRequest struct {
	AppointmentID string `json:"appointment_id"`
}

// Services handles POST (create, providers only) and GET (public catalog).
func (h *BookingHandler) Services(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.createService(w, r)
	case http.MethodGet:
		h.listServices(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *BookingHandler) createService(w http.ResponseWriter, r *http.Request) {
	caller, ok := PrincipalFrom(r.Context())
	if !ok {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}
	var req createServiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	svc, err := h.engine.CreateService(r.Context(), caller, strings.TrimSpace(req.Name), model.ServiceType(req.Type), req.DurationMinutes)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toServiceResponse(svc))
}

func (h *BookingHandler) listServices(w http.ResponseWriter, r *http.Request) {
	services, err := h.engine.ListServices(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	out := make([]serviceResponse, 0, len(services))
	for _, svc := range services {
		out = append(out, toServiceResponse(svc))
	}
	writeJSON(w, http.StatusOK, out)
}

// Windows handles POST (declare a window, owner only) and GET (public
// listing, optionally filtered to one weekday).
func (h *BookingHandler) Windows(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.createWindow(w, r)
	case http.MethodGet:
		h.listWindows(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *BookingHandler) createWindow(w http.ResponseWriter, r *http.Request) {
	caller, ok := PrincipalFrom(r.Context())
	if !ok {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}
	var req createWindowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.ServiceID) == "" {
		http.Error(w, "missing service_id", http.StatusBadRequest)
		return
	}
	win, err := h.engine.AddWindow(r.Context(), caller, req.ServiceID, req.DayOfWeek, req.StartTime, req.EndTime)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toWindowResponse(win))
}

func (h *BookingHandler) listWindows(w http.ResponseWriter, r *http.Request) {
	serviceID := r.URL.Query().Get("service_id")
	if serviceID == "" {
		http.Error(w, "missing service_id", http.StatusBadRequest)
		return
	}

	var windows []model.AvailabilityWindow
	var err error
	if dayParam := r.URL.Query().Get("day_of_week"); dayParam != "" {
		day, convErr := strconv.Atoi(dayParam)
		if convErr != nil {
			http.Error(w, "invalid day_of_week", http.StatusBadRequest)
			return
		}
		windows, err = h.engine.WindowsFor(r.Context(), serviceID, day)
	} else {
		windows, err = h.engine.WindowsForService(r.Context(), serviceID)
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	out := make([]windowResponse, 0, len(windows))
	for _, win := range windows {
		out = append(out, toWindowResponse(win))
	}
	writeJSON(w, http.StatusOK, out)
}

// Appointments handles POST (book) and GET (the caller's appointments).
func (h *BookingHandler) Appointments(w http.ResponseWriter, r *http.Request) {
	caller, ok := PrincipalFrom(r.Context())
	if !ok {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}
	switch r.Method {
	case http.MethodPost:
		h.book(w, r, caller)
	case http.MethodGet:
		h.listAppointments(w, r, caller)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *BookingHandler) book(w http.ResponseWriter, r *http.Request, caller model.Principal) {
	var req createAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.ServiceID) == "" {
		http.Error(w, "missing service_id", http.StatusBadRequest)
		return
	}
	appt, err := h.engine.Book(r.Context(), caller, req.ServiceID, req.Date, req.StartTime, req.EndTime)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.logger.Info("appointment booked",
		"appointment_id", appt.ID,
		"service_id", appt.ServiceID,
		"date", appt.Date,
	)
	writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
}

func (h *BookingHandler) listAppointments(w http.ResponseWriter, r *http.Request, caller model.Principal) {
	appts, err := h.engine.Appointments(r.Context(), caller)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	out := make([]appointmentResponse, 0, len(appts))
	for _, a := range appts {
		out = append(out, toAppointmentResponse(a))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	caller, ok := PrincipalFrom(r.Context())
	if !ok {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}
	var req cancelAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.AppointmentID) == "" {
		http.Error(w, "missing appointment_id", http.StatusBadRequest)
		return
	}
	appt, err := h.engine.Cancel(r.Context(), caller, req.AppointmentID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.logger.Info("appointment cancelled", "appointment_id", appt.ID)
	writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
}

// Slots is the public free-slot listing for a service on a date.
func (h *BookingHandler) Slots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	serviceID := r.URL.Query().Get("service_id")
	date := r.URL.Query().Get("date")
	if serviceID == "" || date == "" {
		http.Error(w, "missing service_id or date", http.StatusBadRequest)
		return
	}
	slots, err := h.engine.FreeSlots(r.Context(), serviceID, date)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, slots)
}

func (h *BookingHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, engine.ErrInvalidInput),
		errors.Is(err, timerange.ErrInvalidTimeFormat),
		errors.Is(err, timerange.ErrInvalidRange):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, engine.ErrForbidden):
		http.Error(w, "forbidden", http.StatusForbidden)
	case errors.Is(err, engine.ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, engine.ErrOverlapConflict), errors.Is(err, engine.ErrSlotConflict):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, engine.ErrNoAvailability):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, engine.ErrTimeout):
		http.Error(w, "conflict check timed out, retry", http.StatusServiceUnavailable)
	default:
		h.logger.Error("request failed", "path", r.URL.Path, "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func toServiceResponse(svc model.Service) serviceResponse {
	return serviceResponse{
		ServiceID:       svc.ID,
		ProviderID:      svc.ProviderID,
		Name:            svc.Name,
		Type:            string(svc.Type),
		DurationMinutes: svc.DurationMinutes,
		CreatedAt:       svc.CreatedAt.Format(time.RFC3339),
	}
}

func toWindowResponse(w model.AvailabilityWindow) windowResponse {
	return windowResponse{
		WindowID:  w.ID,
		ServiceID: w.ServiceID,
		DayOfWeek: w.DayOfWeek,
		StartTime: timerange.FormatClock(w.Range.Start),
		EndTime:   timerange.FormatClock(w.Range.End),
	}
}

func toAppointmentResponse(a model.Appointment) appointmentResponse {
	resp := appointmentResponse{
		AppointmentID: a.ID,
		UserID:        a.UserID,
		ProviderID:    a.ProviderID,
		ServiceID:     a.ServiceID,
		Date:          a.Date,
		StartTime:     timerange.FormatClock(a.Range.Start),
		EndTime:       timerange.FormatClock(a.Range.End),
		Status:        a.Status,
	}
	if a.CancelledAt != nil {
		resp.CancelledAt = a.CancelledAt.UTC().Format(time.RFC3339)
	}
	return resp
}
