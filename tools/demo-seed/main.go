// demo-seed drives a running identity + booking pair end to end: register a
// provider, publish a service with availability, register a user, book and
// list free slots. Useful after docker compose up to confirm the whole path
// works.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

func main() {
	var (
		identityURL = flag.String("identity-url", getenv("IDENTITY_URL", "http://localhost:8081"), "identity service base url")
		bookingURL  = flag.String("booking-url", getenv("BOOKING_URL", "http://localhost:8083"), "booking service base url")
		date        = flag.String("date", "", "booking date YYYY-MM-DD (default: next Wednesday)")
	)
	flag.Parse()

	bookDate := *date
	if bookDate == "" {
		bookDate = nextWeekday(time.Wednesday).Format("2006-01-02")
	}

	suffix := fmt.Sprintf("%d", time.Now().UnixNano())
	providerTok := register(*identityURL, "provider+"+suffix+"@example.com", "provider")
	userTok := register(*identityURL, "user+"+suffix+"@example.com", "user")

	svc := post(*bookingURL+"/api/v1/services", providerTok, map[string]any{
		"name":             "Demo Checkup",
		"type":             "MEDICAL",
		"duration_minutes": 30,
	})
	serviceID := svc["service_id"].(string)
	fmt.Println("service:", serviceID)

	post(*bookingURL+"/api/v1/windows", providerTok, map[string]any{
		"service_id":  serviceID,
		"day_of_week": 3,
		"start_time":  "09:00",
		"end_time":    "12:00",
	})

	appt := post(*bookingURL+"/api/v1/appointments", userTok, map[string]any{
		"service_id": serviceID,
		"date":       bookDate,
		"start_time": "09:00",
		"end_time":   "09:30",
	})
	fmt.Println("appointment:", appt["appointment_id"], appt["status"])

	resp, err := http.Get(*bookingURL + "/api/v1/public/slots?service_id=" + serviceID + "&date=" + bookDate)
	if err != nil {
		fatal(err.Error())
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	fmt.Println("free slots:", strings.TrimSpace(string(body)))
}

func register(baseURL, email, role string) string {
	out := post(baseURL+"/api/v1/auth/register", "", map[string]any{
		"email":    email,
		"password": "demo-password",
		"role":     role,
	})
	tok, _ := out["access_token"].(string)
	if tok == "" {
		fatal("register " + email + ": no access token")
	}
	return tok
}

func post(url, bearer string, body map[string]any) map[string]any {
	raw, err := json.Marshal(body)
	if err != nil {
		fatal(err.Error())
	}
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		fatal(err.Error())
	}
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fatal(err.Error())
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 300 {
		fatal(fmt.Sprintf("POST %s: %d %s", url, resp.StatusCode, strings.TrimSpace(string(data))))
	}
	var out map[string]any
	_ = json.Unmarshal(data, &out)
	return out
}

func nextWeekday(day time.Weekday) time.Time {
	d := time.Now()
	for d.Weekday() != day {
		d = d.AddDate(0, 0, 1)
	}
	return d
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func fatal(msg string) {
	fmt.Fprintln(os.Stderr, "error:", msg)
	os.Exit(1)
}
