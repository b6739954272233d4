package simvue

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// TimestampFormat is the server's timestamp layout (UTC, microseconds).
const TimestampFormat = "2006-01-02T15:04:05.000000"

// FormatTimestamp renders t in the server's layout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampFormat)
}

// ParseTimestamp reads a timestamp in the server's layout as UTC.
func ParseTimestamp(s string) (time.Time, error) {
	return time.ParseInLocation(TimestampFormat, s, time.UTC)
}

// MetricSet is one step of metric values.
type MetricSet struct {
	Values map[string]any `json:"values"`
	// Time is seconds since the run started.
	Time      float64 `json:"time"`
	Timestamp string  `json:"timestamp"`
	Step      int     `json:"step"`
}

// Event is a timestamped log message attached to a run.
type Event struct {
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// SendMetrics posts metric sets for a run in a single request.
func (c *Client) SendMetrics(ctx context.Context, runID string, metrics []MetricSet) error {
	wire := make([]MetricSet, len(metrics))
	for i, m := range metrics {
		wire[i] = m
		wire[i].Values = wireValues(m.Values)
	}
	body := struct {
		Run     string      `json:"run"`
		Metrics []MetricSet `json:"metrics"`
	}{Run: runID, Metrics: wire}
	return c.do(ctx, http.MethodPost, "metrics", nil, body, nil)
}

// GetMetrics returns every metric set recorded for a run, in the order received.
func (c *Client) GetMetrics(ctx context.Context, runID string) ([]MetricSet, error) {
	var resp struct {
		Data []MetricSet `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, "runs/"+url.PathEscape(runID)+"/metrics", nil, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// SendEvents posts events for a run in a single request.
func (c *Client) SendEvents(ctx context.Context, runID string, events []Event) error {
	body := struct {
		Run    string  `json:"run"`
		Events []Event `json:"events"`
	}{Run: runID, Events: events}
	return c.do(ctx, http.MethodPost, "events", nil, body, nil)
}

// floatValue keeps integral floats distinguishable from integers on the wire:
// 3.0 is sent as "3.0", not "3".
type floatValue float64

func (f floatValue) MarshalJSON() ([]byte, error) {
	s := strconv.FormatFloat(float64(f), 'g', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return []byte(s), nil
}

func wireValues(values map[string]any) map[string]any {
	out := make(map[string]any, len(values))
	for k, v := range values {
		switch n := v.(type) {
		case float64:
			out[k] = floatValue(n)
		case float32:
			out[k] = floatValue(n)
		default:
			out[k] = v
		}
	}
	return out
}
