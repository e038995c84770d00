// Package pvoutput implements the client for the PVOutput r2 service API:
// the addstatus upload endpoint plus the getsystem probe used once at
// startup. Authentication is the API-key/system-id header pair.
package pvoutput

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pvlog/agent/internal/models"
)

var (
	// ErrRejected means the service answered and refused the request
	// (bad credentials, rate limit, malformed payload).
	ErrRejected = errors.New("pvoutput rejected request")

	// ErrUnavailable means the request never got a usable response.
	ErrUnavailable = errors.New("pvoutput unreachable")
)

// statusIntervalField is the position of the status interval in the
// comma-separated getsystem response; field 0 is the system name.
const statusIntervalField = 15

// Client talks to the PVOutput r2 API for a single system.
type Client struct {
	baseURL  string
	apiKey   string
	systemID string
	client   *http.Client
}

// New creates a Client. baseURL is the r2 service root, without a trailing
// slash (e.g. https://pvoutput.org/service/r2).
func New(baseURL, apiKey, systemID string, timeout time.Duration) *Client {
	return &Client{
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		apiKey:   apiKey,
		systemID: systemID,
		client:   &http.Client{Timeout: timeout},
	}
}

// AddStatus uploads one reading to the addstatus endpoint. It is attempted
// exactly once; the caller observes the result and moves on.
func (c *Client) AddStatus(ctx context.Context, reading models.Reading) error {
	form := url.Values{
		"d":  {reading.Timestamp.Format("20060102")},
		"t":  {reading.Timestamp.Format("15:04")},
		"v1": {strconv.Itoa(reading.EnergyTodayWh())},
		"v2": {strconv.Itoa(reading.PowerWatts)},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/addstatus.jsp", strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("%w: create request: %v", ErrUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	c.setAuth(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return &rejectedError{code: resp.StatusCode, body: strings.TrimSpace(string(body))}
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}

// GetSystem fetches the system's name and configured status interval from
// the getsystem endpoint. HTTP 401 wraps ErrRejected so the caller can treat
// bad credentials as fatal at startup.
func (c *Client) GetSystem(ctx context.Context) (models.SystemInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/getsystem.jsp", nil)
	if err != nil {
		return models.SystemInfo{}, fmt.Errorf("%w: create request: %v", ErrUnavailable, err)
	}
	c.setAuth(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return models.SystemInfo{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body)
		return models.SystemInfo{}, &rejectedError{code: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.SystemInfo{}, fmt.Errorf("%w: read response: %v", ErrUnavailable, err)
	}

	return parseSystem(string(body))
}

// rejectedError carries the HTTP status code of a refused request.
// It unwraps to ErrRejected so callers can match the class with errors.Is.
type rejectedError struct {
	code int
	body string
}

func (e *rejectedError) Error() string {
	if e.body == "" {
		return fmt.Sprintf("pvoutput rejected request: %d", e.code)
	}
	return fmt.Sprintf("pvoutput rejected request: %d %s", e.code, e.body)
}

func (e *rejectedError) Unwrap() error { return ErrRejected }

// IsUnauthorized reports whether err is a rejection for bad credentials.
func IsUnauthorized(err error) bool {
	var rej *rejectedError
	return errors.As(err, &rej) && rej.code == http.StatusUnauthorized
}

func (c *Client) setAuth(req *http.Request) {
	req.Header.Set("X-Pvoutput-Apikey", c.apiKey)
	req.Header.Set("X-Pvoutput-SystemId", c.systemID)
}

// parseSystem parses the comma-separated getsystem body. The name is field
// 0; the status interval is in minutes with possible trailing text, so only
// the leading digits are read.
func parseSystem(body string) (models.SystemInfo, error) {
	fields := strings.Split(strings.TrimSpace(body), ",")
	if len(fields) <= statusIntervalField {
		return models.SystemInfo{}, fmt.Errorf("%w: short getsystem response (%d fields)", ErrUnavailable, len(fields))
	}

	name := strings.TrimSpace(fields[0])
	if name == "" {
		return models.SystemInfo{}, fmt.Errorf("%w: getsystem response has no system name", ErrUnavailable)
	}

	raw := strings.TrimSpace(fields[statusIntervalField])
	digits := raw
	for i, r := range raw {
		if r < '0' || r > '9' {
			digits = raw[:i]
			break
		}
	}
	minutes, err := strconv.Atoi(digits)
	if err != nil || minutes <= 0 {
		return models.SystemInfo{}, fmt.Errorf("%w: malformed status interval %q", ErrUnavailable, raw)
	}

	return models.SystemInfo{
		Name:           name,
		StatusInterval: time.Duration(minutes) * time.Minute,
	}, nil
}
