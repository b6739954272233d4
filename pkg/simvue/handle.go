package simvue

import (
	"context"
	"time"
)

// RunHandle binds a client to an active run.
// It satisfies the monitor package's MetricSender.
type RunHandle struct {
	client *Client
	id     string
	start  time.Time
}

// NewRunHandle creates a handle; start is used to compute relative metric times.
func NewRunHandle(c *Client, runID string, start time.Time) *RunHandle {
	return &RunHandle{client: c, id: runID, start: start}
}

// ID returns the run id.
func (h *RunHandle) ID() string {
	return h.id
}

// SendMetrics sends one step of values recorded at timestamp.
func (h *RunHandle) SendMetrics(ctx context.Context, values map[string]any, timestamp time.Time, step int) error {
	return h.client.SendMetrics(ctx, h.id, []MetricSet{{
		Values:    values,
		Time:      timestamp.Sub(h.start).Seconds(),
		Timestamp: FormatTimestamp(timestamp),
		Step:      step,
	}})
}

// LogEvent sends a single event message stamped with the current time.
func (h *RunHandle) LogEvent(ctx context.Context, message string) error {
	return h.client.SendEvents(ctx, h.id, []Event{{
		Message:   message,
		Timestamp: FormatTimestamp(time.Now()),
	}})
}
