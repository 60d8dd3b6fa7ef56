package session

import (
	"context"
	"errors"
	"io"
	"iter"
	"strings"
)

// State is the submission guard of a Session.
type State int32

const (
	StateIdle State = iota
	StateInFlight
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateInFlight:
		return "in_flight"
	default:
		return "unknown"
	}
}

// Stream is a single generation response body, read one fragment at a time.
// Recv returns io.EOF once the body is exhausted.
type Stream interface {
	Recv() (string, error)
	Close() error
}

// Generator issues one request to the generation endpoint.
// A nil Stream with a nil error means the response carried no body.
type Generator interface {
	Generate(ctx context.Context, prompt string) (Stream, error)
}

// Sink receives display updates for the result area.
type Sink interface {
	Reset()
	OnFragment(fragment, text string)
	ScrollToResult()
}

// SinkFuncs adapts plain functions to a Sink. Nil fields are skipped.
type SinkFuncs struct {
	ResetFn          func()
	OnFragmentFn     func(fragment, text string)
	ScrollToResultFn func()
}

func (f SinkFuncs) Reset() {
	if f.ResetFn != nil {
		f.ResetFn()
	}
}

func (f SinkFuncs) OnFragment(fragment, text string) {
	if f.OnFragmentFn != nil {
		f.OnFragmentFn(fragment, text)
	}
}

func (f SinkFuncs) ScrollToResult() {
	if f.ScrollToResultFn != nil {
		f.ScrollToResultFn()
	}
}

// Fragments turns a Stream into a single-pass sequence of non-empty fragments.
// The sequence ends silently on io.EOF; any other error is yielded once as the last element.
func Fragments(stream Stream) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for {
			fragment, err := stream.Recv()
			if err != nil {
				if !errors.Is(err, io.EOF) {
					yield("", err)
				}
				return
			}
			if fragment == "" {
				continue
			}
			if !yield(fragment, nil) {
				return
			}
		}
	}
}

// BuildPrompt places the instruction prefix in front of the user's text.
func BuildPrompt(prefix, input string) string {
	prefix = strings.TrimSpace(prefix)
	input = strings.TrimSpace(input)
	if prefix == "" {
		return input
	}
	return prefix + " " + input
}
