package recorder

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pvlog/agent/internal/models"
)

func sampleReading(t *testing.T) models.Reading {
	t.Helper()
	ts, err := time.Parse("2006-01-02 15:04", "2026-08-27 10:34")
	if err != nil {
		t.Fatal(err)
	}
	return models.Reading{
		Timestamp:      ts,
		PowerWatts:     500,
		EnergyTodayKWh: 12.34,
		Status:         "OK",
	}
}

func readAll(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	return rows
}

func TestAppend_CreatesFileWithHeader(t *testing.T) {
	dir := t.TempDir()
	r := New(dir, "test database.csv")

	if err := r.Append(sampleReading(t)); err != nil {
		t.Fatal(err)
	}

	rows := readAll(t, r.Path())
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want header plus one data row", len(rows))
	}

	wantHeader := []string{"date", "time", "status", "pac_w", "e_today_wh"}
	for i, col := range wantHeader {
		if rows[0][i] != col {
			t.Errorf("header[%d] = %q, want %q", i, rows[0][i], col)
		}
	}

	want := []string{"20260827", "10:34", "OK", "500", "12340"}
	for i, col := range want {
		if rows[1][i] != col {
			t.Errorf("row[%d] = %q, want %q", i, rows[1][i], col)
		}
	}
}

func TestAppend_DoesNotRepeatHeader(t *testing.T) {
	dir := t.TempDir()
	r := New(dir, "test database.csv")

	if err := r.Append(sampleReading(t)); err != nil {
		t.Fatal(err)
	}
	second := sampleReading(t)
	second.PowerWatts = 620
	if err := r.Append(second); err != nil {
		t.Fatal(err)
	}

	rows := readAll(t, r.Path())
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want header plus two data rows", len(rows))
	}
	if rows[2][3] != "620" {
		t.Errorf("second row power = %q, want 620", rows[2][3])
	}
}

func TestAppend_FilesystemError(t *testing.T) {
	r := New(filepath.Join(t.TempDir(), "missing-subdir"), "test.csv")
	if err := r.Append(sampleReading(t)); err == nil {
		t.Error("expected error when the database directory does not exist")
	}
}
