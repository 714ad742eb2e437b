package handlers_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/slotbook/slotbook/libs/auth"
	"github.com/slotbook/slotbook/services/booking-service/internal/engine"
	"github.com/slotbook/slotbook/services/booking-service/internal/handlers"
	"github.com/slotbook/slotbook/services/booking-service/internal/memstore"
)

const testSecret = "handler-test-secret"

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	eng := engine.New(memstore.New())
	logger := slog.New(slog.NewTextHandler(testWriter{t}, nil))
	h := handlers.NewBookingHandler(eng, logger)

	mux := http.NewServeMux()
	mux.Handle("/api/v1/services", withOptionalAuth(http.HandlerFunc(h.Services)))
	mux.Handle("/api/v1/windows", withOptionalAuth(http.HandlerFunc(h.Windows)))
	mux.Handle("/api/v1/appointments", handlers.RequireAuth(http.HandlerFunc(h.Appointments), testSecret, nil))
	mux.Handle("/api/v1/appointments/cancel", handlers.RequireAuth(http.HandlerFunc(h.Cancel), testSecret, nil))
	mux.HandleFunc("/api/v1/public/slots", h.Slots)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// withOptionalAuth requires a token for writes only, matching the route
// layout in main where GETs on these paths are public.
func withOptionalAuth(next http.Handler) http.Handler {
	authed := handlers.RequireAuth(next, testSecret, nil)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			next.ServeHTTP(w, r)
			return
		}
		authed.ServeHTTP(w, r)
	})
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}

func token(t *testing.T, sub, role string) string {
	t.Helper()
	now := time.Now()
	tok, err := auth.SignHS256(auth.Claims{
		Sub:   sub,
		Email: sub + "@example.com",
		Role:  role,
		Iat:   now.Unix(),
		Exp:   now.Add(time.Hour).Unix(),
	}, testSecret)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return tok
}

func do(t *testing.T, method, url, bearer string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })

	var decoded map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&decoded)
	return resp, decoded
}

func setupService(t *testing.T, srv *httptest.Server, providerToken string) string {
	t.Helper()
	resp, body := do(t, http.MethodPost, srv.URL+"/api/v1/services", providerToken, map[string]any{
		"name":             "Checkup",
		"type":             "MEDICAL",
		"duration_minutes": 30,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create service: status %d", resp.StatusCode)
	}
	id, _ := body["service_id"].(string)
	if id == "" {
		t.Fatalf("create service: no id in %v", body)
	}
	resp, _ = do(t, http.MethodPost, srv.URL+"/api/v1/windows", providerToken, map[string]any{
		"service_id":  id,
		"day_of_week": 3,
		"start_time":  "09:00",
		"end_time":    "12:00",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create window: status %d", resp.StatusCode)
	}
	return id
}

func TestBookingFlow(t *testing.T) {
	srv := newServer(t)
	providerTok := token(t, "9f1b6a6e-0000-4000-8000-000000000001", "provider")
	userTok := token(t, "9f1b6a6e-0000-4000-8000-000000000002", "user")
	otherTok := token(t, "9f1b6a6e-0000-4000-8000-000000000003", "user")

	serviceID := setupService(t, srv, providerTok)

	resp, booked := do(t, http.MethodPost, srv.URL+"/api/v1/appointments", userTok, map[string]any{
		"service_id": serviceID,
		"date":       "2026-01-07",
		"start_time": "09:00",
		"end_time":   "09:30",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("book: status %d body %v", resp.StatusCode, booked)
	}
	if booked["status"] != "booked" {
		t.Fatalf("status = %v", booked["status"])
	}

	// Overlapping booking by another user conflicts.
	resp, _ = do(t, http.MethodPost, srv.URL+"/api/v1/appointments", otherTok, map[string]any{
		"service_id": serviceID,
		"date":       "2026-01-07",
		"start_time": "09:15",
		"end_time":   "09:45",
	})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("overlap: status %d, want 409", resp.StatusCode)
	}

	// Outside the window is unprocessable, not a conflict.
	resp, _ = do(t, http.MethodPost, srv.URL+"/api/v1/appointments", otherTok, map[string]any{
		"service_id": serviceID,
		"date":       "2026-01-07",
		"start_time": "11:45",
		"end_time":   "12:15",
	})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("outside window: status %d, want 422", resp.StatusCode)
	}

	// Cancel by a stranger is forbidden; by the booker it succeeds.
	apptID := booked["appointment_id"].(string)
	resp, _ = do(t, http.MethodPost, srv.URL+"/api/v1/appointments/cancel", otherTok, map[string]any{
		"appointment_id": apptID,
	})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("stranger cancel: status %d, want 403", resp.StatusCode)
	}
	resp, cancelled := do(t, http.MethodPost, srv.URL+"/api/v1/appointments/cancel", userTok, map[string]any{
		"appointment_id": apptID,
	})
	if resp.StatusCode != http.StatusOK || cancelled["status"] != "cancelled" {
		t.Fatalf("cancel: status %d body %v", resp.StatusCode, cancelled)
	}

	// The freed range books again.
	resp, _ = do(t, http.MethodPost, srv.URL+"/api/v1/appointments", otherTok, map[string]any{
		"service_id": serviceID,
		"date":       "2026-01-07",
		"start_time": "09:00",
		"end_time":   "09:30",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("rebook: status %d", resp.StatusCode)
	}
}

func TestStatusMapping(t *testing.T) {
	srv := newServer(t)
	providerTok := token(t, "9f1b6a6e-0000-4000-8000-000000000011", "provider")
	userTok := token(t, "9f1b6a6e-0000-4000-8000-000000000012", "user")
	serviceID := setupService(t, srv, providerTok)

	cases := []struct {
		name   string
		method string
		path   string
		token  string
		body   map[string]any
		want   int
	}{
		{"no token", http.MethodPost, "/api/v1/appointments", "", map[string]any{}, http.StatusUnauthorized},
		{"user creates service", http.MethodPost, "/api/v1/services", userTok,
			map[string]any{"name": "X", "type": "MEDICAL", "duration_minutes": 30}, http.StatusForbidden},
		{"bad duration", http.MethodPost, "/api/v1/services", providerTok,
			map[string]any{"name": "X", "type": "MEDICAL", "duration_minutes": 45}, http.StatusBadRequest},
		{"bad clock", http.MethodPost, "/api/v1/windows", providerTok,
			map[string]any{"service_id": serviceID, "day_of_week": 3, "start_time": "9:00", "end_time": "10:00"}, http.StatusBadRequest},
		{"window overlap", http.MethodPost, "/api/v1/windows", providerTok,
			map[string]any{"service_id": serviceID, "day_of_week": 3, "start_time": "10:00", "end_time": "11:00"}, http.StatusConflict},
		{"unknown service", http.MethodPost, "/api/v1/windows", providerTok,
			map[string]any{"service_id": "b1e00000-0000-4000-8000-000000000000", "day_of_week": 3, "start_time": "13:00", "end_time": "14:00"}, http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, _ := do(t, tc.method, srv.URL+tc.path, tc.token, tc.body)
			if resp.StatusCode != tc.want {
				t.Fatalf("status %d, want %d", resp.StatusCode, tc.want)
			}
		})
	}
}

func TestPublicSlots(t *testing.T) {
	srv := newServer(t)
	providerTok := token(t, "9f1b6a6e-0000-4000-8000-000000000021", "provider")
	userTok := token(t, "9f1b6a6e-0000-4000-8000-000000000022", "user")
	serviceID := setupService(t, srv, providerTok)

	resp, _ := do(t, http.MethodPost, srv.URL+"/api/v1/appointments", userTok, map[string]any{
		"service_id": serviceID,
		"date":       "2026-01-07",
		"start_time": "10:00",
		"end_time":   "10:30",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("book: status %d", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/api/v1/public/slots?service_id="+serviceID+"&date=2026-01-07", nil)
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("slots: %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("slots: status %d", res.StatusCode)
	}
	var slots []map[string]string
	if err := json.NewDecoder(res.Body).Decode(&slots); err != nil {
		t.Fatalf("decode slots: %v", err)
	}
	want := []map[string]string{
		{"start": "09:00", "end": "10:00"},
		{"start": "10:30", "end": "12:00"},
	}
	if len(slots) != len(want) {
		t.Fatalf("slots = %v, want %v", slots, want)
	}
	for i := range want {
		if slots[i]["start"] != want[i]["start"] || slots[i]["end"] != want[i]["end"] {
			t.Fatalf("slot %d = %v, want %v", i, slots[i], want[i])
		}
	}
}
