package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	apperrors "github.com/yanqian/bio-generator/pkg/errors"
)

func TestSubmitStreamsFragmentsInOrder(t *testing.T) {
	gen := &stubGenerator{stream: &sliceStream{fragments: []string{"Sen", "ior dev"}}}
	sink := &recordingSink{}
	s := New(gen, sink, newTestLogger())

	require.Equal(t, StateIdle, s.State())
	require.NoError(t, s.Submit(context.Background(), "hello"))

	require.Equal(t, "Senior dev", s.Result())
	require.Equal(t, []string{"Sen", "Senior dev"}, sink.texts)
	require.Equal(t, []string{"Sen", "ior dev"}, sink.fragments)
	require.Equal(t, 1, sink.scrolls)
	require.Equal(t, StateIdle, s.State())
	require.Equal(t, []string{"hello"}, gen.prompts)
	require.True(t, gen.stream.closed)
}

func TestSubmitObservesPrefixChain(t *testing.T) {
	tests := []struct {
		name   string
		chunks []string
	}{
		{name: "single chunk", chunks: []string{"Builder of things."}},
		{name: "many small chunks", chunks: []string{"G", "o", " ", "dev", " @", "acme"}},
		{name: "multibyte", chunks: []string{"运行", "结果", " ✂️"}},
		{name: "empty fragments skipped", chunks: []string{"a", "", "b", "", "c"}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			sink := &recordingSink{}
			s := New(&stubGenerator{stream: &sliceStream{fragments: tt.chunks}}, sink, newTestLogger())

			require.NoError(t, s.Submit(context.Background(), "prompt"))

			want := strings.Join(tt.chunks, "")
			require.Equal(t, want, s.Result())
			prev := ""
			for _, text := range sink.texts {
				require.True(t, strings.HasPrefix(text, prev), "%q is not a prefix of %q", prev, text)
				prev = text
			}
			require.Equal(t, want, prev)
		})
	}
}

func TestSubmitRequestFailed(t *testing.T) {
	gen := &stubGenerator{err: apperrors.Wrap(apperrors.CodeRequestFailed, "500 Internal Server Error", nil)}
	sink := &recordingSink{}
	s := New(gen, sink, newTestLogger())

	err := s.Submit(context.Background(), "hello")
	require.Error(t, err)
	require.True(t, apperrors.IsCode(err, apperrors.CodeRequestFailed))
	require.Contains(t, err.Error(), "500 Internal Server Error")
	require.Equal(t, "", s.Result())
	require.Zero(t, sink.scrolls)
	require.Equal(t, StateIdle, s.State())
}

func TestSubmitWrapsTransportErrors(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	s := New(&stubGenerator{err: cause}, nil, newTestLogger())

	err := s.Submit(context.Background(), "hello")
	require.ErrorIs(t, err, cause)
	require.True(t, apperrors.IsCode(err, apperrors.CodeRequestFailed))
	require.Equal(t, StateIdle, s.State())
}

func TestSubmitEmptyBodyIsBenign(t *testing.T) {
	sink := &recordingSink{}
	s := New(&stubGenerator{}, sink, newTestLogger())

	require.NoError(t, s.Submit(context.Background(), "hello"))
	require.Equal(t, "", s.Result())
	require.Empty(t, sink.texts)
	require.Equal(t, StateIdle, s.State())
}

func TestSubmitKeepsPartialResultOnReadError(t *testing.T) {
	stream := &sliceStream{fragments: []string{"partial ", "result"}, err: io.ErrUnexpectedEOF}
	sink := &recordingSink{}
	s := New(&stubGenerator{stream: stream}, sink, newTestLogger())

	err := s.Submit(context.Background(), "hello")
	require.Error(t, err)
	require.True(t, apperrors.IsCode(err, apperrors.CodeStreamReadError))
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
	require.Equal(t, "partial result", s.Result())
	require.Zero(t, sink.scrolls)
	require.True(t, stream.closed)
	require.Equal(t, StateIdle, s.State())
}

func TestSubmitResetsBufferBeforeRequest(t *testing.T) {
	sink := &recordingSink{}
	gen := &stubGenerator{stream: &sliceStream{fragments: []string{"first run"}}}
	s := New(gen, sink, newTestLogger())
	require.NoError(t, s.Submit(context.Background(), "one"))
	require.Equal(t, "first run", s.Result())

	var seen string
	gen.generateFn = func(ctx context.Context, prompt string) (Stream, error) {
		seen = s.Result()
		require.Equal(t, StateInFlight, s.State())
		return &sliceStream{fragments: []string{"second"}}, nil
	}
	require.NoError(t, s.Submit(context.Background(), "two"))

	require.Equal(t, "", seen)
	require.Equal(t, "second", s.Result())
	require.Equal(t, 2, sink.resets)
}

func TestSubmitIgnoredWhileInFlight(t *testing.T) {
	stream := newGatedStream("first")
	gen := &stubGenerator{stream: stream}
	firstFragment := make(chan struct{})
	sink := SinkFuncs{OnFragmentFn: func(string, string) { close(firstFragment) }}
	s := New(gen, sink, newTestLogger())

	done := make(chan error, 1)
	go func() { done <- s.Submit(context.Background(), "first") }()

	waitFor(t, firstFragment)
	require.Equal(t, StateInFlight, s.State())

	require.NoError(t, s.Submit(context.Background(), "second"))
	require.Equal(t, 1, gen.callCount())
	require.Equal(t, "first", s.Result())
	require.Equal(t, StateInFlight, s.State())

	close(stream.release)
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("first submission did not finish")
	}
	require.Equal(t, StateIdle, s.State())
	require.Equal(t, "first", s.Result())
}

func TestSubmitConcurrentCallsSendOneRequest(t *testing.T) {
	release := make(chan struct{})
	gen := &stubGenerator{}
	gen.generateFn = func(ctx context.Context, prompt string) (Stream, error) {
		<-release
		return &sliceStream{fragments: []string{prompt}}, nil
	}
	s := New(gen, nil, newTestLogger())

	const callers = 10
	done := make(chan error, callers)
	for i := 0; i < callers; i++ {
		go func() { done <- s.Submit(context.Background(), "bio") }()
	}
	for i := 0; i < callers-1; i++ {
		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(time.Second):
			t.Fatal("ignored submission blocked")
		}
	}
	require.Equal(t, 1, gen.callCount())

	close(release)
	require.NoError(t, <-done)
	require.Equal(t, "bio", s.Result())
	require.Equal(t, StateIdle, s.State())
}

func TestFragmentsStopsEarly(t *testing.T) {
	stream := &sliceStream{fragments: []string{"a", "b", "c"}}
	var got []string
	for fragment, err := range Fragments(stream) {
		require.NoError(t, err)
		got = append(got, fragment)
		if len(got) == 2 {
			break
		}
	}
	require.Equal(t, []string{"a", "b"}, got)
}

func TestBuildPrompt(t *testing.T) {
	tests := []struct {
		name   string
		prefix string
		input  string
		want   string
	}{
		{name: "prefix and input", prefix: "Write a bio about: ", input: " Go developer ", want: "Write a bio about: Go developer"},
		{name: "no prefix", prefix: "", input: "Go developer", want: "Go developer"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.want, BuildPrompt(tt.prefix, tt.input))
		})
	}
}

func TestStateString(t *testing.T) {
	require.Equal(t, "idle", StateIdle.String())
	require.Equal(t, "in_flight", StateInFlight.String())
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func waitFor(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for signal")
	}
}

type stubGenerator struct {
	mu         sync.Mutex
	calls      int
	prompts    []string
	stream     *sliceStream
	err        error
	generateFn func(ctx context.Context, prompt string) (Stream, error)
}

func (g *stubGenerator) Generate(ctx context.Context, prompt string) (Stream, error) {
	g.mu.Lock()
	g.calls++
	g.prompts = append(g.prompts, prompt)
	g.mu.Unlock()

	if g.generateFn != nil {
		return g.generateFn(ctx, prompt)
	}
	if g.err != nil {
		return nil, g.err
	}
	if g.stream == nil {
		return nil, nil
	}
	return g.stream, nil
}

func (g *stubGenerator) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

type sliceStream struct {
	fragments []string
	err       error
	idx       int
	closed    bool
	release   chan struct{}
}

// newGatedStream yields its fragments, then blocks until release is closed before ending.
func newGatedStream(fragments ...string) *sliceStream {
	return &sliceStream{fragments: fragments, release: make(chan struct{})}
}

func (s *sliceStream) Recv() (string, error) {
	if s.idx < len(s.fragments) {
		fragment := s.fragments[s.idx]
		s.idx++
		return fragment, nil
	}
	if s.release != nil {
		<-s.release
	}
	if s.err != nil {
		return "", s.err
	}
	return "", io.EOF
}

func (s *sliceStream) Close() error {
	s.closed = true
	return nil
}

type recordingSink struct {
	resets    int
	fragments []string
	texts     []string
	scrolls   int
}

func (r *recordingSink) Reset() { r.resets++ }

func (r *recordingSink) OnFragment(fragment, text string) {
	r.fragments = append(r.fragments, fragment)
	r.texts = append(r.texts, text)
}

func (r *recordingSink) ScrollToResult() { r.scrolls++ }
