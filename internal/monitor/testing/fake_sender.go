// Package testing provides test doubles for the monitor package.
package testing

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrSendFailed is returned by a failing FakeSender that has no FailError.
var ErrSendFailed = errors.New("fake sender: send failed")

// SendCall records a call to the sender.
type SendCall struct {
	Values    map[string]any
	Timestamp time.Time
	Step      int
}

// FakeSender records metric updates and can be told to fail.
type FakeSender struct {
	mu sync.Mutex

	// FailOnCall makes the n-th call (1-based) and every later one fail. Zero never fails.
	FailOnCall int
	// FailError is returned by failing calls; nil selects ErrSendFailed.
	FailError error

	Calls []SendCall
}

// NewFakeSender creates a sender that succeeds by default.
func NewFakeSender() *FakeSender {
	return &FakeSender{}
}

// SendMetrics records the update, or fails if configured to.
func (f *FakeSender) SendMetrics(_ context.Context, values map[string]any, timestamp time.Time, step int) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	attempt := len(f.Calls) + 1
	if f.FailOnCall > 0 && attempt >= f.FailOnCall {
		if f.FailError == nil {
			return ErrSendFailed
		}
		return f.FailError
	}

	f.Calls = append(f.Calls, SendCall{
		Values:    values,
		Timestamp: timestamp,
		Step:      step,
	})
	return nil
}

// SetFailOnCall configures the sender to fail from the n-th call onwards.
func (f *FakeSender) SetFailOnCall(n int, err error) *FakeSender {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.FailOnCall = n
	f.FailError = err
	return f
}

// Steps returns the step numbers of recorded calls, in order.
func (f *FakeSender) Steps() []int {
	f.mu.Lock()
	defer f.mu.Unlock()

	steps := make([]int, len(f.Calls))
	for i, c := range f.Calls {
		steps[i] = c.Step
	}
	return steps
}
