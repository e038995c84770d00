package telemetry

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_RecordAndServe(t *testing.T) {
	m := New()
	m.PowerWatts.Set(500)
	m.PollsTotal.Inc()
	m.PollsTotal.Inc()

	if got := testutil.ToFloat64(m.PowerWatts); got != 500 {
		t.Errorf("power gauge = %v, want 500", got)
	}
	if got := testutil.ToFloat64(m.PollsTotal); got != 2 {
		t.Errorf("polls counter = %v, want 2", got)
	}

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	body := string(raw)
	if !strings.Contains(body, "pvlog_power_watts 500") {
		t.Errorf("exposition missing power gauge:\n%s", body)
	}
	if !strings.Contains(body, "pvlog_polls_total 2") {
		t.Errorf("exposition missing polls counter:\n%s", body)
	}
}
