// Package inverter implements the HTTP client for the Zeversolar local
// reporting endpoint. The device serves a newline-separated ASCII report on
// /home.cgi; this package fetches it once per call and turns it into a
// models.Reading.
package inverter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pvlog/agent/internal/models"
)

// ErrUnavailable is returned for any failure to obtain a usable reading:
// connection refused, timeout, non-2xx response, or a payload the parser
// cannot make sense of. The wrapped cause carries the detail.
var ErrUnavailable = errors.New("inverter unavailable")

// Field positions in the home.cgi report. The report is one value per line;
// the leading lines are registry and firmware metadata the agent ignores.
const (
	lineCount  = 13
	linePower  = 10
	lineEnergy = 11
	lineStatus = 12
)

// Client polls a single inverter.
type Client struct {
	url    string
	client *http.Client
}

// New creates a Client for the inverter at addr (host or host:port).
func New(addr string, timeout time.Duration) *Client {
	return &Client{
		url:    fmt.Sprintf("http://%s/home.cgi", addr),
		client: &http.Client{Timeout: timeout},
	}
}

// Poll fetches the current report and returns a Reading stamped with the
// current time. Any transport or parse failure wraps ErrUnavailable.
func (c *Client) Poll(ctx context.Context) (models.Reading, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return models.Reading{}, fmt.Errorf("%w: create request: %v", ErrUnavailable, err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return models.Reading{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body)
		return models.Reading{}, fmt.Errorf("%w: device returned %d", ErrUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.Reading{}, fmt.Errorf("%w: read response: %v", ErrUnavailable, err)
	}

	reading, err := parseReport(string(body), time.Now())
	if err != nil {
		return models.Reading{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return reading, nil
}

// parseReport parses the newline-separated home.cgi body. A short report or
// an unparseable power/energy field fails the whole reading; no field is
// ever substituted with zero.
func parseReport(body string, now time.Time) (models.Reading, error) {
	lines := strings.Split(strings.ReplaceAll(body, "\r\n", "\n"), "\n")
	if len(lines) < lineCount {
		return models.Reading{}, fmt.Errorf("truncated report: %d of %d lines", len(lines), lineCount)
	}

	power, err := strconv.Atoi(strings.TrimSpace(lines[linePower]))
	if err != nil {
		return models.Reading{}, fmt.Errorf("malformed power field %q: %v", lines[linePower], err)
	}
	if power < 0 {
		return models.Reading{}, fmt.Errorf("negative power reading %d", power)
	}

	energy, err := parseEnergyToday(strings.TrimSpace(lines[lineEnergy]))
	if err != nil {
		return models.Reading{}, err
	}

	status := strings.TrimSpace(lines[lineStatus])
	if status == "" {
		return models.Reading{}, fmt.Errorf("missing status field")
	}

	return models.Reading{
		Timestamp:      now,
		PowerWatts:     power,
		EnergyTodayKWh: energy,
		Status:         status,
	}, nil
}

// parseEnergyToday parses the E-Today kWh field, working around a firmware
// bug: the device drops the leading zero of the fractional part, so "3.9"
// on the wire means 3.09 kWh, not 3.90.
func parseEnergyToday(raw string) (float64, error) {
	whole, frac, found := strings.Cut(raw, ".")
	if found && len(frac) == 1 {
		raw = whole + ".0" + frac
	}
	kwh, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("malformed energy field %q: %v", raw, err)
	}
	if kwh < 0 {
		return 0, fmt.Errorf("negative energy reading %v", kwh)
	}
	return kwh, nil
}
