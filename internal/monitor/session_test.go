package monitor

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/simvue-io/simvue-cli/internal/logger"
	montest "github.com/simvue-io/simvue-cli/internal/monitor/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSession(sender MetricSender, log logger.Logger) *Session {
	fixed := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
	return NewSession(sender, Options{
		Logger: log,
		Clock:  func() time.Time { return fixed },
	})
}

func TestSessionEndToEnd(t *testing.T) {
	sender := montest.NewFakeSender()
	log := logger.NewBufferLogger()
	s := newTestSession(sender, log)

	input := "x\ty\n1\t2\n2\t4\nbad\n3\t6\n"
	sum := s.Run(context.Background(), strings.NewReader(input))

	require.NoError(t, sum.Err)
	assert.Equal(t, StateClosed, sum.State)
	assert.Equal(t, 3, sum.RowsProcessed)
	assert.Equal(t, 1, sum.RowsSkipped)
	assert.Equal(t, Header{"x", "y"}, sum.Header)
	assert.Equal(t, 3, sum.NextStep)

	require.Len(t, sender.Calls, 3)
	assert.Equal(t, []int{0, 1, 2}, sender.Steps())
	assert.Equal(t, map[string]any{"x": int64(1), "y": int64(2)}, sender.Calls[0].Values)
	assert.Equal(t, map[string]any{"x": int64(2), "y": int64(4)}, sender.Calls[1].Values)
	assert.Equal(t, map[string]any{"x": int64(3), "y": int64(6)}, sender.Calls[2].Values)
	assert.Equal(t, 1, log.Count("warn"))
}

func TestSessionEmptyInput(t *testing.T) {
	sender := montest.NewFakeSender()
	s := newTestSession(sender, logger.NewBufferLogger())

	sum := s.Run(context.Background(), strings.NewReader(""))

	assert.NoError(t, sum.Err)
	assert.Equal(t, StateClosed, sum.State)
	assert.Zero(t, sum.RowsProcessed)
	assert.Zero(t, sum.RowsSkipped)
	assert.Nil(t, sum.Header)
	assert.Empty(t, sender.Calls)
}

func TestSessionBlankLinesOnly(t *testing.T) {
	sender := montest.NewFakeSender()
	s := newTestSession(sender, logger.NewBufferLogger())

	sum := s.Run(context.Background(), strings.NewReader("\n   \n\t\n"))

	assert.NoError(t, sum.Err)
	assert.Equal(t, StateClosed, sum.State)
	assert.Nil(t, sum.Header)
}

func TestSessionHeaderIsFirstNonBlankLine(t *testing.T) {
	sender := montest.NewFakeSender()
	s := newTestSession(sender, logger.NewBufferLogger())

	sum := s.Run(context.Background(), strings.NewReader("\n  \n  loss \t acc \n0.5\t0.9\n"))

	require.NoError(t, sum.Err)
	assert.Equal(t, Header{"loss", "acc"}, sum.Header)
	require.Len(t, sender.Calls, 1)
	assert.Equal(t, map[string]any{"loss": 0.5, "acc": 0.9}, sender.Calls[0].Values)
}

func TestSessionHeaderNeverRecomputed(t *testing.T) {
	sender := montest.NewFakeSender()
	log := logger.NewBufferLogger()
	s := newTestSession(sender, log)

	input := "a\tb\na\tb\tc\n1\t2\t3\n4\t5\n"
	sum := s.Run(context.Background(), strings.NewReader(input))

	require.NoError(t, sum.Err)
	assert.Equal(t, Header{"a", "b"}, sum.Header)
	assert.Equal(t, 1, sum.RowsProcessed)
	assert.Equal(t, 2, sum.RowsSkipped)
	assert.Equal(t, []int{0}, sender.Steps())
}

func TestSessionDuplicateHeader(t *testing.T) {
	sender := montest.NewFakeSender()
	s := newTestSession(sender, logger.NewBufferLogger())

	sum := s.Run(context.Background(), strings.NewReader("x\ty\tx\n1\t2\t3\n"))

	assert.Equal(t, StateFailed, sum.State)
	assert.Zero(t, sum.RowsProcessed)
	assert.Empty(t, sender.Calls)

	var cfgErr *ConfigurationError
	require.ErrorAs(t, sum.Err, &cfgErr)
	assert.Equal(t, "x", cfgErr.Field)
}

func TestSessionTransmissionFailureOnSecondRow(t *testing.T) {
	sendErr := errors.New("connection reset by peer")
	sender := montest.NewFakeSender().SetFailOnCall(2, sendErr)
	s := newTestSession(sender, logger.NewBufferLogger())

	sum := s.Run(context.Background(), strings.NewReader("x\ty\n1\t2\n2\t4\n3\t6\n"))

	assert.Equal(t, StateFailed, sum.State)
	assert.Equal(t, 1, sum.RowsProcessed)
	require.Len(t, sender.Calls, 1)

	var txErr *TransmissionError
	require.ErrorAs(t, sum.Err, &txErr)
	assert.Equal(t, 1, txErr.Step)
	assert.ErrorIs(t, sum.Err, sendErr)
	assert.Equal(t, StateFailed, s.State())
}

func TestSessionSkippedRowsDoNotConsumeSteps(t *testing.T) {
	sender := montest.NewFakeSender()
	s := newTestSession(sender, logger.NewBufferLogger())

	input := strings.Join([]string{
		"a,b",
		"1,2",
		"1",
		"1,2,3",
		"3,4",
		"",
		"5,6",
	}, "\n")
	s.delim = ','
	sum := s.Run(context.Background(), strings.NewReader(input))

	require.NoError(t, sum.Err)
	assert.Equal(t, []int{0, 1, 2}, sender.Steps())
	assert.Equal(t, 2, sum.RowsSkipped)
}

func TestSessionStartStep(t *testing.T) {
	sender := montest.NewFakeSender()
	s := NewSession(sender, Options{
		Delimiter: ',',
		StartStep: 10,
		Logger:    logger.Noop(),
	})

	sum := s.Run(context.Background(), strings.NewReader("v\n1\n2\n"))

	require.NoError(t, sum.Err)
	assert.Equal(t, []int{10, 11}, sender.Steps())
	assert.Equal(t, 12, sum.NextStep)
}

func TestSessionLastLineWithoutNewline(t *testing.T) {
	sender := montest.NewFakeSender()
	s := newTestSession(sender, logger.NewBufferLogger())

	sum := s.Run(context.Background(), strings.NewReader("x\n1\n2"))

	require.NoError(t, sum.Err)
	assert.Equal(t, 2, sum.RowsProcessed)
}

func TestSessionMixedTypes(t *testing.T) {
	sender := montest.NewFakeSender()
	s := newTestSession(sender, logger.NewBufferLogger())

	sum := s.Run(context.Background(), strings.NewReader("a\tb\tc\td\n42\t3.14\t42abc\t\n"))

	require.NoError(t, sum.Err)
	require.Len(t, sender.Calls, 1)
	assert.Equal(t, map[string]any{
		"a": int64(42),
		"b": 3.14,
		"c": "42abc",
		"d": "",
	}, sender.Calls[0].Values)
}

func TestSessionUsesClockForTimestamps(t *testing.T) {
	sender := montest.NewFakeSender()
	s := newTestSession(sender, logger.Noop())

	s.Run(context.Background(), strings.NewReader("x\n1\n"))

	require.Len(t, sender.Calls, 1)
	assert.Equal(t, time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC), sender.Calls[0].Timestamp)
}

func TestSessionCancelledContext(t *testing.T) {
	sender := montest.NewFakeSender()
	s := newTestSession(sender, logger.Noop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sum := s.Run(ctx, strings.NewReader("x\n1\n"))

	assert.Equal(t, StateFailed, sum.State)
	assert.ErrorIs(t, sum.Err, context.Canceled)
	assert.Empty(t, sender.Calls)
}

type failingReader struct{ err error }

func (r failingReader) Read([]byte) (int, error) { return 0, r.err }

func TestSessionReadError(t *testing.T) {
	readErr := errors.New("broken pipe")
	s := newTestSession(montest.NewFakeSender(), logger.Noop())

	sum := s.Run(context.Background(), failingReader{err: readErr})

	assert.Equal(t, StateFailed, sum.State)
	assert.ErrorIs(t, sum.Err, readErr)
}

func TestSessionReadsLiveInputLineByLine(t *testing.T) {
	pr, pw := io.Pipe()
	sender := montest.NewFakeSender()
	s := newTestSession(sender, logger.Noop())

	done := make(chan Summary, 1)
	go func() { done <- s.Run(context.Background(), pr) }()

	_, err := pw.Write([]byte("t\n1\n"))
	require.NoError(t, err)

	// The producer is still open, yet the first row must be sent.
	require.Eventually(t, func() bool { return len(sender.Steps()) == 1 }, time.Second, 5*time.Millisecond)

	_, err = pw.Write([]byte("2\n"))
	require.NoError(t, err)
	require.NoError(t, pw.Close())

	sum := <-done
	require.NoError(t, sum.Err)
	assert.Equal(t, 2, sum.RowsProcessed)
}

func TestSessionCancelWhileWaitingForLine(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()
	sender := montest.NewFakeSender()
	s := newTestSession(sender, logger.Noop())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan Summary, 1)
	go func() { done <- s.Run(ctx, pr) }()

	_, err := pw.Write([]byte("x\n1\n"))
	require.NoError(t, err)
	require.Eventually(t, func() bool { return len(sender.Steps()) == 1 }, time.Second, 5*time.Millisecond)

	// The producer stays silent; cancellation alone must end the session.
	cancel()
	var sum Summary
	select {
	case sum = <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run kept waiting for input after cancellation")
	}
	assert.Equal(t, StateFailed, sum.State)
	assert.ErrorIs(t, sum.Err, context.Canceled)
	assert.Equal(t, 1, sum.RowsProcessed)

	// A row arriving after cancellation is never sent.
	_, err = pw.Write([]byte("2\n"))
	require.NoError(t, err)
	assert.Equal(t, []int{0}, sender.Steps())
}

// cancelOnSecondRead delivers the header, then cancels ctx as the next line arrives.
type cancelOnSecondRead struct {
	reads  int
	cancel context.CancelFunc
}

func (r *cancelOnSecondRead) Read(p []byte) (int, error) {
	r.reads++
	switch r.reads {
	case 1:
		return copy(p, "x\n"), nil
	case 2:
		r.cancel()
		return copy(p, "1\n"), nil
	default:
		return 0, io.EOF
	}
}

func TestSessionLineReadAfterCancelIsNotSent(t *testing.T) {
	sender := montest.NewFakeSender()
	s := newTestSession(sender, logger.Noop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sum := s.Run(ctx, &cancelOnSecondRead{cancel: cancel})

	assert.Equal(t, StateFailed, sum.State)
	assert.ErrorIs(t, sum.Err, context.Canceled)
	assert.Empty(t, sender.Steps())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "AWAITING_HEADER", StateAwaitingHeader.String())
	assert.Equal(t, "STREAMING", StateStreaming.String())
	assert.Equal(t, "CLOSED", StateClosed.String())
	assert.Equal(t, "FAILED", StateFailed.String())
	assert.Equal(t, "UNKNOWN", State(99).String())
}
