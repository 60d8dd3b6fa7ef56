package generateapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yanqian/bio-generator/internal/domain/session"
	apperrors "github.com/yanqian/bio-generator/pkg/errors"
)

func TestClientStreamsChunksIntoSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var req Request
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "hello", req.Prompt)

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		writeChunk(w, "Sen")
		writeChunk(w, "ior dev")
	}))
	defer srv.Close()

	var texts []string
	sink := session.SinkFuncs{OnFragmentFn: func(_, text string) { texts = append(texts, text) }}
	s := session.New(newClientUnderTest(t, srv.URL), sink, newTestLogger())

	require.NoError(t, s.Submit(context.Background(), "hello"))
	require.Equal(t, "Senior dev", s.Result())
	require.NotEmpty(t, texts)
	require.Equal(t, "Senior dev", texts[len(texts)-1])
	require.Equal(t, session.StateIdle, s.State())
}

func TestClientNonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"code":"generate_failed","message":"upstream unavailable"}}`))
	}))
	defer srv.Close()

	s := session.New(newClientUnderTest(t, srv.URL), nil, newTestLogger())
	err := s.Submit(context.Background(), "hello")

	require.Error(t, err)
	require.True(t, apperrors.IsCode(err, apperrors.CodeRequestFailed))
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	require.Equal(t, http.StatusInternalServerError, statusErr.StatusCode)
	require.Equal(t, "500 Internal Server Error", statusErr.Status)
	require.Equal(t, "upstream unavailable", statusErr.Detail)
	require.Equal(t, "", s.Result())
	require.Equal(t, session.StateIdle, s.State())
}

func TestClientEmptyBody(t *testing.T) {
	tests := []struct {
		name   string
		status int
	}{
		{name: "ok without body", status: http.StatusOK},
		{name: "no content", status: http.StatusNoContent},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			client := newClientUnderTest(t, srv.URL)
			stream, err := client.Generate(context.Background(), "hello")
			require.NoError(t, err)
			require.Nil(t, stream)

			s := session.New(client, nil, newTestLogger())
			require.NoError(t, s.Submit(context.Background(), "hello"))
			require.Equal(t, "", s.Result())
			require.Equal(t, session.StateIdle, s.State())
		})
	}
}

func TestClientConnectionDropKeepsPartialResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		writeChunk(w, "Senior ")
		writeChunk(w, "dev")
		panic(http.ErrAbortHandler)
	}))
	defer srv.Close()

	s := session.New(newClientUnderTest(t, srv.URL), nil, newTestLogger())
	err := s.Submit(context.Background(), "hello")

	require.Error(t, err)
	require.True(t, apperrors.IsCode(err, apperrors.CodeStreamReadError))
	require.Equal(t, "Senior dev", s.Result())
	require.Equal(t, session.StateIdle, s.State())
}

func TestClientReassemblesSplitRunes(t *testing.T) {
	word := []byte("运行")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		writeChunk(w, string(append([]byte("a"), word[:2]...)))
		time.Sleep(10 * time.Millisecond)
		writeChunk(w, string(append(word[2:], 'b')))
	}))
	defer srv.Close()

	s := session.New(newClientUnderTest(t, srv.URL), nil, newTestLogger())
	require.NoError(t, s.Submit(context.Background(), "hello"))
	require.Equal(t, "a运行b", s.Result())
}

func TestClientDecodesDeclaredCharset(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=iso-8859-1")
		_, _ = w.Write([]byte{'c', 'a', 'f', 0xE9})
	}))
	defer srv.Close()

	s := session.New(newClientUnderTest(t, srv.URL), nil, newTestLogger())
	require.NoError(t, s.Submit(context.Background(), "hello"))
	require.Equal(t, "café", s.Result())
}

func TestClientCancelMidStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeChunk(w, "first")
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sink := session.SinkFuncs{OnFragmentFn: func(string, string) { cancel() }}
	s := session.New(newClientUnderTest(t, srv.URL), sink, newTestLogger())

	err := s.Submit(ctx, "hello")
	require.Error(t, err)
	require.True(t, apperrors.IsCode(err, apperrors.CodeStreamReadError))
	require.Equal(t, "first", s.Result())
	require.Equal(t, session.StateIdle, s.State())
}

func TestClientUnreachableEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := newClientUnderTest(t, url).Generate(context.Background(), "hello")
	require.Error(t, err)
	require.True(t, apperrors.IsCode(err, apperrors.CodeRequestFailed))
}

func TestNewClientRejectsEmptyEndpoint(t *testing.T) {
	_, err := NewClient("  ", time.Second, newTestLogger())
	require.EqualError(t, err, "generate endpoint cannot be empty")
}

func writeChunk(w http.ResponseWriter, chunk string) {
	_, _ = w.Write([]byte(chunk))
	w.(http.Flusher).Flush()
}

func newClientUnderTest(t *testing.T, url string) *Client {
	t.Helper()
	client, err := NewClient(url, 5*time.Second, newTestLogger())
	require.NoError(t, err)
	return client
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
