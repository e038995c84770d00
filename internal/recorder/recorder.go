// Package recorder appends readings to the local CSV database. The file is
// the agent's only durable store: one header row, then one row per
// successful poll, append-only.
package recorder

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pvlog/agent/internal/models"
)

// header describes the CSV schema. Energy is stored in watt-hours to match
// what gets uploaded.
var header = []string{"date", "time", "status", "pac_w", "e_today_wh"}

// Recorder writes readings to a single CSV file.
type Recorder struct {
	path string
}

// New creates a Recorder for the given file path. The file itself is only
// created on the first Append.
func New(dir, file string) *Recorder {
	return &Recorder{path: filepath.Join(dir, file)}
}

// Path returns the database file path.
func (r *Recorder) Path() string {
	return r.path
}

// Append writes one row for the reading, creating the file with a header
// row first if it does not exist. The file is opened and closed per call so
// a transient filesystem error on one iteration does not poison the next.
func (r *Recorder) Append(reading models.Reading) error {
	_, statErr := os.Stat(r.path)
	fresh := os.IsNotExist(statErr)

	f, err := os.OpenFile(r.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("opening database %s: %w", r.path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if fresh {
		if err := w.Write(header); err != nil {
			return fmt.Errorf("writing header: %w", err)
		}
	}

	row := []string{
		reading.Timestamp.Format("20060102"),
		reading.Timestamp.Format("15:04"),
		reading.Status,
		strconv.Itoa(reading.PowerWatts),
		strconv.Itoa(reading.EnergyTodayWh()),
	}
	if err := w.Write(row); err != nil {
		return fmt.Errorf("writing row: %w", err)
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flushing database %s: %w", r.path, err)
	}
	return nil
}
