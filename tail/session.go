// Copyright 2026 The wb Authors
// SPDX-License-Identifier: Apache-2.0

package tail

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/filetail/wb/lib/clock"
	"github.com/filetail/wb/lib/fault"
	"github.com/filetail/wb/registry"
	"github.com/filetail/wb/sandbox"
)

const (
	// BacklogLines is how many trailing lines a new session receives.
	BacklogLines = 100

	// PollInterval is the period between reads past the cursor.
	PollInterval = 500 * time.Millisecond

	// MaxReadPerPoll bounds the bytes examined in one tick. Appends
	// larger than this drain over several ticks.
	MaxReadPerPoll = 1 << 20

	// maxConsecutivePollErrors is the number of failed reads in a row
	// that ends a polling session. One failure is tolerated.
	maxConsecutivePollErrors = 2

	backfillBufferSize = 64 * 1024
)

// State is a session's position in its lifecycle.
type State int

const (
	Opening State = iota
	Backfilling
	Polling
	Closed
)

func (s State) String() string {
	switch s {
	case Opening:
		return "opening"
	case Backfilling:
		return "backfilling"
	case Polling:
		return "polling"
	case Closed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Sink delivers messages to the client. Send must not retain message
// after returning.
type Sink interface {
	Send(ctx context.Context, message []byte) error
}

// Tracker records live sessions for shutdown. *registry.SessionSet
// satisfies it.
type Tracker interface {
	Track(registry.Session)
	Untrack(id string)
}

// Config configures a Session.
type Config struct {
	// Root confines Path. Required.
	Root *sandbox.Root

	// Path is the client-supplied path to tail. Untrusted.
	Path string

	// Sink receives the backlog, appended lines, and diagnostics.
	// Required.
	Sink Sink

	// Clock drives the poll ticker. Defaults to clock.Real().
	Clock clock.Clock

	// Logger is the structured logger. Required.
	Logger *slog.Logger

	// Tracker, when set, tracks the session while it runs.
	Tracker Tracker

	// ID identifies the session in logs. A random UUID when empty.
	ID string

	// BacklogLines overrides the backlog window. Zero means
	// BacklogLines.
	BacklogLines int

	// PollInterval overrides the poll period. Zero means PollInterval.
	PollInterval time.Duration
}

// Session is one client's tail of one file. Run drives it; Close ends
// it from any goroutine.
type Session struct {
	id           string
	root         *sandbox.Root
	requested    string
	sink         Sink
	clock        clock.Clock
	logger       *slog.Logger
	tracker      Tracker
	backlogLines int
	pollInterval time.Duration

	// mu guards state, cancel, and started. The file and cursor are
	// touched only by the Run goroutine.
	mu      sync.Mutex
	state   State
	cancel  context.CancelFunc
	started bool

	file       *os.File
	cursor     cursor
	pollErrors int

	done      chan struct{}
	closeOnce sync.Once

	// afterPoll, when set, runs after every poll cycle. Tests use it
	// to know a tick has been fully processed.
	afterPoll func()
}

// NewSession validates config and returns a session in the Opening
// state. Nothing is opened until Run.
func NewSession(config Config) *Session {
	if config.Root == nil {
		panic("tail.NewSession: Root is required")
	}
	if config.Sink == nil {
		panic("tail.NewSession: Sink is required")
	}
	if config.Logger == nil {
		panic("tail.NewSession: Logger is required")
	}
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	if config.ID == "" {
		config.ID = uuid.NewString()
	}
	if config.BacklogLines <= 0 {
		config.BacklogLines = BacklogLines
	}
	if config.PollInterval <= 0 {
		config.PollInterval = PollInterval
	}

	return &Session{
		id:           config.ID,
		root:         config.Root,
		requested:    config.Path,
		sink:         config.Sink,
		clock:        config.Clock,
		logger:       config.Logger.With("session", config.ID, "path", config.Path),
		tracker:      config.Tracker,
		backlogLines: config.BacklogLines,
		pollInterval: config.PollInterval,
		state:        Opening,
		done:         make(chan struct{}),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Done is closed once the session has reached Closed and released its
// file handle.
func (s *Session) Done() <-chan struct{} { return s.done }

func (s *Session) setState(next State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Closed {
		s.state = next
	}
}

// Run drives the session until it closes. It returns nil when the
// session ends because ctx was cancelled or Close was called, and the
// cause otherwise. Errors from Opening and Backfilling are fault
// errors and have already been reported to the client. Run may be
// called at most once.
func (s *Session) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return errors.New("tail: session already started")
	}
	s.started = true
	if s.state == Closed {
		s.mu.Unlock()
		return nil
	}
	s.cancel = cancel
	s.mu.Unlock()

	if s.tracker != nil {
		s.tracker.Track(s)
	}
	defer s.release()

	if err := s.open(); err != nil {
		s.report(ctx, err)
		return err
	}

	s.setState(Backfilling)
	backlog, err := s.backfill()
	if err != nil {
		s.report(ctx, err)
		return err
	}
	if err := s.send(ctx, backlog); err != nil {
		return err
	}
	s.logger.Debug("tail backlog sent", "bytes", len(backlog), "cursor", s.cursor.offset)

	s.setState(Polling)
	ticker := s.clock.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			// A tick can be selected after cancellation when both are
			// ready; never touch the file once teardown has begun.
			if ctx.Err() != nil || s.State() != Polling {
				return nil
			}
			err := s.poll(ctx)
			if s.afterPoll != nil {
				s.afterPoll()
			}
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
		}
	}
}

// Close ends the session and waits for its resources to be released.
// Safe to call from any goroutine, more than once, and before Run.
func (s *Session) Close() error {
	s.mu.Lock()
	started := s.started
	cancel := s.cancel
	if !started {
		s.state = Closed
	}
	s.mu.Unlock()

	if !started {
		s.closeOnce.Do(func() { close(s.done) })
		return nil
	}
	if cancel != nil {
		cancel()
	}
	<-s.done
	return nil
}

// release is the single exit path into Closed. The ticker is stopped
// by Run's own defer, which runs before this one.
func (s *Session) release() {
	s.mu.Lock()
	previous := s.state
	s.state = Closed
	s.mu.Unlock()

	if s.file != nil {
		if err := s.file.Close(); err != nil {
			s.logger.Debug("closing tailed file", "error", err)
		}
		s.file = nil
	}
	if s.tracker != nil {
		s.tracker.Untrack(s.id)
	}
	s.logger.Debug("tail session closed", "from_state", previous.String())
	s.closeOnce.Do(func() { close(s.done) })
}

// open resolves the requested path and opens it read-only.
func (s *Session) open() error {
	path, err := s.root.Resolve(s.requested)
	if err != nil {
		return err
	}

	file, err := os.Open(path.Real())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fault.NotFoundf(err, "/%s does not exist", path.Rel())
		}
		return fault.IOErrorf(err, "opening /%s", path.Rel())
	}
	// Check the opened handle rather than the path so a swap between
	// resolve and open cannot hand us a directory or device.
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return fault.IOErrorf(err, "stat /%s", path.Rel())
	}
	if !info.Mode().IsRegular() {
		file.Close()
		return fault.Malformedf("/%s is not a regular file", path.Rel())
	}

	s.file = file
	return nil
}

// backfill reads the whole file once through the line ring and
// positions the cursor after the last complete line. An unterminated
// last line stays out of the backlog and is read again by the cursor,
// so it reaches the client whole once its newline arrives. Bytes
// appended while backfill runs are either read here or past the
// cursor; never both.
func (s *Session) backfill() ([]byte, error) {
	ring := newLineRing(s.backlogLines)
	reader := bufio.NewReaderSize(s.file, backfillBufferSize)

	var consumed int64
	var pending []byte
	for {
		chunk, err := reader.ReadSlice('\n')
		pending = append(pending, chunk...)
		consumed += int64(len(chunk))

		switch {
		case err == nil:
			ring.push(pending)
			pending = nil
		case errors.Is(err, bufio.ErrBufferFull):
			if len(pending) >= MaxReadPerPoll {
				ring.push(pending)
				pending = nil
			}
		case errors.Is(err, io.EOF):
			lineStart := consumed - int64(len(pending))
			s.cursor = cursor{file: s.file, offset: lineStart, limit: MaxReadPerPoll}
			return ring.join(), nil
		default:
			return nil, fault.IOErrorf(err, "reading %s", s.requested)
		}
	}
}

// poll sends every complete line appended since the last tick.
func (s *Session) poll(ctx context.Context) error {
	result, err := s.cursor.next()
	if err != nil {
		s.pollErrors++
		if s.pollErrors >= maxConsecutivePollErrors {
			s.logger.Warn("tail poll failed repeatedly, closing session",
				"error", err,
				"consecutive_failures", s.pollErrors,
			)
			return fmt.Errorf("polling %s: %w", s.requested, err)
		}
		s.logger.Warn("tail poll failed, retrying next tick", "error", err)
		return nil
	}
	s.pollErrors = 0

	if result.rewound {
		s.logger.Info("tailed file shrank below cursor, restarting from the beginning")
	}
	for _, line := range result.lines {
		if err := s.send(ctx, line); err != nil {
			return err
		}
	}
	return nil
}

func (s *Session) send(ctx context.Context, message []byte) error {
	if err := s.sink.Send(ctx, message); err != nil {
		return fmt.Errorf("sending to client: %w", err)
	}
	return nil
}

// report sends the one diagnostic a client sees for an Opening or
// Backfilling failure.
func (s *Session) report(ctx context.Context, err error) {
	s.logger.Info("tail session rejected", "kind", fault.KindOf(err).String(), "error", err)
	if sendErr := s.sink.Send(ctx, []byte("error: "+fault.PublicMessage(err))); sendErr != nil {
		s.logger.Debug("sending tail diagnostic", "error", sendErr)
	}
}
