// internal/sched/trace.go

package sched

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// FormatEvent renders one status event as a console line.
func FormatEvent(ev StatusEvent) string {
	// an auxiliary function to center the event kind in the output
	center := func(str string, width int) string {
		spaces := int(float64(width-len(str)) / 2)
		return strings.Repeat(" ", spaces) + str + strings.Repeat(" ", width-(spaces+len(str)))
	}

	task := "----"
	if ev.Kind == StatusDispatch || ev.Kind == StatusExpire {
		task = fmt.Sprintf("%04d", ev.TaskID)
	}
	line := fmt.Sprintf("%s = Clock: %09d ms [%s] => Task: %s, events=0x%04x",
		ev.Time.Format("Jan 02 15:04:05.000"),
		ev.Clock,
		center(ev.Kind.String(), 12),
		task,
		uint16(ev.Events),
	)
	if ev.Kind == StatusSleep {
		if ev.Timeout == SleepForever {
			line += ", sleep=forever"
		} else {
			line += fmt.Sprintf(", sleep=%dms", ev.Timeout)
		}
	}
	return line
}

// CSVTrace mirrors status events into a CSV file.
type CSVTrace struct {
	mu sync.Mutex
	c  io.Closer
	w  *csv.Writer
}

// NewCSVTrace opens the given file path for CSV logging of events.
func NewCSVTrace(path string) (*CSVTrace, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	t := newCSVTrace(f, f)
	if err := t.w.Error(); err != nil {
		f.Close()
		return nil, err
	}
	return t, nil
}

func newCSVTrace(w io.Writer, c io.Closer) *CSVTrace {
	cw := csv.NewWriter(w)

	// write header
	cw.Write([]string{"timestamp", "clock_ms", "event", "task_id", "events", "sleep_ms"})
	cw.Flush()
	return &CSVTrace{c: c, w: cw}
}

// Observe writes one record. It is safe to use as a scheduler observer.
func (t *CSVTrace) Observe(ev StatusEvent) {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec := []string{
		ev.Time.Format(time.RFC3339Nano),
		strconv.FormatUint(uint64(ev.Clock), 10),
		ev.Kind.String(),
		strconv.FormatUint(uint64(ev.TaskID), 10),
		fmt.Sprintf("0x%04x", uint16(ev.Events)),
		strconv.FormatUint(uint64(ev.Timeout), 10),
	}
	t.w.Write(rec)
	t.w.Flush()
}

// Close flushes and closes the underlying file.
func (t *CSVTrace) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.w.Flush()
	if t.c == nil {
		return t.w.Error()
	}
	return t.c.Close()
}
