package monitor

import (
	"bufio"
	"context"
	"errors"
	"io"
	"time"

	"github.com/simvue-io/simvue-cli/internal/logger"
)

// State is a position in the session state machine.
type State int

const (
	StateAwaitingHeader State = iota
	StateStreaming
	StateClosed
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateAwaitingHeader:
		return "AWAITING_HEADER"
	case StateStreaming:
		return "STREAMING"
	case StateClosed:
		return "CLOSED"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// Summary is what a finished session reports to the command layer.
type Summary struct {
	RowsProcessed int
	RowsSkipped   int
	State         State
	Header        Header
	// NextStep is the step the next update would have used.
	NextStep int
	Err      error
}

// Options configures a Session.
type Options struct {
	// Delimiter separates fields; zero selects DefaultDelimiter.
	Delimiter rune
	// StartStep is the first step number, used to continue an existing run.
	StartStep int
	Logger    logger.Logger
	// Clock overrides the receipt time source, mainly for tests.
	Clock func() time.Time
}

// Session owns one pass over an input stream.
// It is not safe for concurrent use.
type Session struct {
	emitter *Emitter
	delim   rune
	log     logger.Logger

	state   State
	header  Header
	step    int
	line    int
	sent    int
	skipped int
}

// rowOutcome is the per-line result: either a row to send or the reason it was skipped.
type rowOutcome struct {
	row  MetricRow
	skip error
}

// NewSession creates a session that sends rows through sender.
func NewSession(sender MetricSender, opts Options) *Session {
	em := NewEmitter(sender)
	if opts.Clock != nil {
		em.now = opts.Clock
	}
	delim := opts.Delimiter
	if delim == 0 {
		delim = DefaultDelimiter
	}
	log := opts.Logger
	if log == nil {
		log = logger.NewEnvLogger("[monitor]")
	}

	return &Session{
		emitter: em,
		delim:   delim,
		log:     log,
		state:   StateAwaitingHeader,
		step:    opts.StartStep,
	}
}

// State returns the current state.
func (s *Session) State() State {
	return s.state
}

// Run reads r until EOF, a send failure, or cancellation of ctx.
// Cancellation is observed while waiting for the next line and before each
// line is handled, never in the middle of sending a row. A cancelled read is
// abandoned; r must not be reused after Run returns early.
func (s *Session) Run(ctx context.Context, r io.Reader) Summary {
	br := bufio.NewReader(r)

	for s.state == StateAwaitingHeader || s.state == StateStreaming {
		if err := ctx.Err(); err != nil {
			return s.fail(err)
		}

		res, err := readLine(ctx, br)
		if err != nil {
			return s.fail(err)
		}
		line, readErr := res.line, res.err
		if line != "" {
			if err := ctx.Err(); err != nil {
				return s.fail(err)
			}
			s.line++
			if err := s.handleLine(ctx, line); err != nil {
				return s.fail(err)
			}
		}

		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				s.state = StateClosed
				break
			}
			return s.fail(readErr)
		}
	}

	if s.header == nil {
		s.log.Debug("input closed before a header line")
	}
	return s.summary(nil)
}

type readResult struct {
	line string
	err  error
}

// readLine reads one line on a helper goroutine so a silent producer can't
// hold off cancellation. Only one read is ever outstanding, so nothing is
// read ahead of the line being handled. When ctx wins, the helper is left
// blocked until the stream delivers data or closes.
func readLine(ctx context.Context, br *bufio.Reader) (readResult, error) {
	ch := make(chan readResult, 1)
	go func() {
		line, err := br.ReadString('\n')
		ch <- readResult{line: line, err: err}
	}()

	select {
	case res := <-ch:
		return res, nil
	case <-ctx.Done():
		return readResult{}, ctx.Err()
	}
}

func (s *Session) handleLine(ctx context.Context, line string) error {
	fields := Tokenize(line, s.delim)
	if fields == nil {
		return nil
	}

	if s.state == StateAwaitingHeader {
		h, err := ResolveHeader(fields)
		if err != nil {
			return err
		}
		s.header = h
		s.state = StateStreaming
		s.log.Debug("header resolved: %v", []string(h))
		return nil
	}

	out := s.classify(fields)
	if out.skip != nil {
		s.skipped++
		s.log.Warn("skipping %v", out.skip)
		return nil
	}

	if err := s.emitter.Emit(ctx, out.row, s.step); err != nil {
		return err
	}
	s.step++
	s.sent++
	return nil
}

func (s *Session) classify(fields []string) rowOutcome {
	row, err := s.header.BuildRow(s.line, fields)
	if err != nil {
		return rowOutcome{skip: err}
	}
	return rowOutcome{row: row}
}

func (s *Session) fail(err error) Summary {
	s.state = StateFailed
	s.log.Error("%v", err)
	return s.summary(err)
}

func (s *Session) summary(err error) Summary {
	return Summary{
		RowsProcessed: s.sent,
		RowsSkipped:   s.skipped,
		State:         s.state,
		Header:        s.header,
		NextStep:      s.step,
		Err:           err,
	}
}
