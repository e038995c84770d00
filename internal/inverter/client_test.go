package inverter

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// report builds a home.cgi body with the given power, energy and status
// fields in their firmware positions.
func report(power, energy, status string) string {
	lines := []string{
		"1",
		"1",
		"EAB9618C1399",
		"QZWXECRVTBYN",
		"M11",
		"18625-797R+17829-719R",
		"10:34 27/08/2026",
		"1",
		"1",
		"SX00000000000",
		power,
		energy,
		status,
	}
	return strings.Join(lines, "\n")
}

func TestPoll_ParsesReport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/home.cgi" {
			t.Errorf("path = %q, want /home.cgi", r.URL.Path)
		}
		w.Write([]byte(report("500", "12.34", "OK")))
	}))
	defer srv.Close()

	c := New(strings.TrimPrefix(srv.URL, "http://"), time.Second)
	reading, err := c.Poll(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if reading.PowerWatts != 500 {
		t.Errorf("PowerWatts = %d, want 500", reading.PowerWatts)
	}
	if reading.EnergyTodayKWh != 12.34 {
		t.Errorf("EnergyTodayKWh = %v, want 12.34", reading.EnergyTodayKWh)
	}
	if reading.EnergyTodayWh() != 12340 {
		t.Errorf("EnergyTodayWh = %d, want 12340", reading.EnergyTodayWh())
	}
	if reading.Status != "OK" {
		t.Errorf("Status = %q, want OK", reading.Status)
	}
	if time.Since(reading.Timestamp) > time.Minute {
		t.Errorf("Timestamp %v is not recent", reading.Timestamp)
	}
}

func TestPoll_RepairsEnergyLeadingZero(t *testing.T) {
	// The firmware drops the leading zero of the hundredths: "3.9" on the
	// wire means 3.09 kWh.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(report("120", "3.9", "OK")))
	}))
	defer srv.Close()

	c := New(strings.TrimPrefix(srv.URL, "http://"), time.Second)
	reading, err := c.Poll(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if reading.EnergyTodayKWh != 3.09 {
		t.Errorf("EnergyTodayKWh = %v, want 3.09", reading.EnergyTodayKWh)
	}
	if reading.EnergyTodayWh() != 3090 {
		t.Errorf("EnergyTodayWh = %d, want 3090", reading.EnergyTodayWh())
	}
}

func TestPoll_TruncatedReport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("1\n1\nEAB9618C1399\n"))
	}))
	defer srv.Close()

	c := New(strings.TrimPrefix(srv.URL, "http://"), time.Second)
	if _, err := c.Poll(context.Background()); !errors.Is(err, ErrUnavailable) {
		t.Errorf("err = %v, want ErrUnavailable", err)
	}
}

func TestPoll_MalformedFields(t *testing.T) {
	cases := map[string]struct {
		power, energy, status string
	}{
		"power not a number":  {"five hundred", "12.34", "OK"},
		"energy not a number": {"500", "midday", "OK"},
		"energy missing":      {"500", "", "OK"},
		"status missing":      {"500", "12.34", ""},
		"negative power":      {"-10", "12.34", "OK"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(report(tc.power, tc.energy, tc.status)))
			}))
			defer srv.Close()

			c := New(strings.TrimPrefix(srv.URL, "http://"), time.Second)
			if _, err := c.Poll(context.Background()); !errors.Is(err, ErrUnavailable) {
				t.Errorf("err = %v, want ErrUnavailable", err)
			}
		})
	}
}

func TestPoll_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	c := New(strings.TrimPrefix(srv.URL, "http://"), 20*time.Millisecond)
	if _, err := c.Poll(context.Background()); !errors.Is(err, ErrUnavailable) {
		t.Errorf("err = %v, want ErrUnavailable", err)
	}
}

func TestPoll_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	addr := strings.TrimPrefix(srv.URL, "http://")
	srv.Close()

	c := New(addr, time.Second)
	if _, err := c.Poll(context.Background()); !errors.Is(err, ErrUnavailable) {
		t.Errorf("err = %v, want ErrUnavailable", err)
	}
}

func TestPoll_DeviceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "busy", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := New(strings.TrimPrefix(srv.URL, "http://"), time.Second)
	if _, err := c.Poll(context.Background()); !errors.Is(err, ErrUnavailable) {
		t.Errorf("err = %v, want ErrUnavailable", err)
	}
}
