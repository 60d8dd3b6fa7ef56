package session

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	apperrors "github.com/yanqian/bio-generator/pkg/errors"
)

// Session owns the state of one interactive form: the submission guard and the result buffer.
type Session struct {
	generator Generator
	sink      Sink
	logger    *slog.Logger

	state atomic.Int32

	mu     sync.RWMutex
	result strings.Builder
}

// New creates a Session in the Idle state with an empty result.
func New(generator Generator, sink Sink, logger *slog.Logger) *Session {
	if sink == nil {
		sink = SinkFuncs{}
	}
	return &Session{
		generator: generator,
		sink:      sink,
		logger:    logger.With("component", "session"),
	}
}

// State reports whether a submission is outstanding.
func (s *Session) State() State {
	return State(s.state.Load())
}

// Result returns the text accumulated by the current or last submission.
func (s *Session) Result() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.result.String()
}

// Submit sends prompt to the generator and streams the response into the result buffer,
// publishing every fragment to the sink as it arrives. It blocks until the stream ends.
//
// A call made while another submission is in flight is ignored and returns nil.
// Whatever the outcome, the session is Idle again when Submit returns; fragments
// received before a read failure stay in the buffer.
func (s *Session) Submit(ctx context.Context, prompt string) error {
	if !s.state.CompareAndSwap(int32(StateIdle), int32(StateInFlight)) {
		s.logger.Debug("submit ignored, request in flight")
		return nil
	}
	defer s.state.Store(int32(StateIdle))

	s.reset()
	start := time.Now()

	stream, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		if apperrors.CodeOf(err) == "" {
			err = apperrors.Wrap(apperrors.CodeRequestFailed, "generation request failed", err)
		}
		s.logger.Warn("generation request failed", "error", err)
		return err
	}
	if stream == nil {
		s.logger.Debug("generation response has no body")
		return nil
	}
	defer stream.Close()

	fragments := 0
	for fragment, readErr := range Fragments(stream) {
		if readErr != nil {
			s.logger.Warn("generation stream interrupted", "fragments", fragments, "error", readErr)
			return apperrors.Wrap(apperrors.CodeStreamReadError, "read generation stream", readErr)
		}
		fragments++
		s.sink.OnFragment(fragment, s.appendFragment(fragment))
	}

	s.sink.ScrollToResult()
	s.logger.Debug("generation stream completed", "fragments", fragments, "latency_ms", time.Since(start).Milliseconds())
	return nil
}

func (s *Session) reset() {
	s.mu.Lock()
	s.result.Reset()
	s.mu.Unlock()
	s.sink.Reset()
}

func (s *Session) appendFragment(fragment string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.result.WriteString(fragment)
	return s.result.String()
}
