package monitor

import (
	"context"
	"time"
)

// MetricSender is the run handle the pipeline writes to.
// It must already represent an active run; the pipeline never opens or closes runs.
type MetricSender interface {
	SendMetrics(ctx context.Context, values map[string]any, timestamp time.Time, step int) error
}

// Emitter packages rows into metric updates.
type Emitter struct {
	sender MetricSender
	now    func() time.Time
}

// NewEmitter creates an emitter using the wall clock for receipt times.
func NewEmitter(sender MetricSender) *Emitter {
	return &Emitter{sender: sender, now: time.Now}
}

// Emit sends one row at the given step. Failures are returned as
// *TransmissionError without retrying; retry policy belongs to the sender.
func (e *Emitter) Emit(ctx context.Context, row MetricRow, step int) error {
	if err := e.sender.SendMetrics(ctx, row.Values(), e.now(), step); err != nil {
		return &TransmissionError{Step: step, Err: err}
	}
	return nil
}
