package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yanqian/bio-generator/internal/domain/session"
	"github.com/yanqian/bio-generator/internal/infra/config"
	apperrors "github.com/yanqian/bio-generator/pkg/errors"
)

func TestGenerateStreamsToStdout(t *testing.T) {
	isolateConfig(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assertPrompt(t, r, session.BuildPrompt(config.DefaultPromptPrefix, "software engineer"))
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("Senior "))
		w.(http.Flusher).Flush()
		_, _ = w.Write([]byte("dev"))
	}))
	defer srv.Close()

	stdout, stderr, err := execute(t, nil, "generate", "--endpoint", srv.URL, "software", "engineer")
	require.NoError(t, err)
	require.Equal(t, "Senior dev\n", stdout)
	require.Empty(t, stderr)
}

func TestGenerateReadsStdinAndCopies(t *testing.T) {
	isolateConfig(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assertPrompt(t, r, "Write a bio: climber, gopher")
		_, _ = w.Write([]byte("Go engineer who climbs"))
	}))
	defer srv.Close()

	var copied string
	original := copyToClipboard
	copyToClipboard = func(text string) error {
		copied = text
		return nil
	}
	t.Cleanup(func() { copyToClipboard = original })

	stdout, stderr, err := execute(t, strings.NewReader("  climber, gopher \n"), "generate", "--endpoint", srv.URL, "--prefix", "Write a bio:", "--copy")
	require.NoError(t, err)
	require.Equal(t, "Go engineer who climbs\n", stdout)
	require.Equal(t, "Go engineer who climbs", copied)
	require.Contains(t, stderr, "Result copied to clipboard")
}

func TestGenerateServerError(t *testing.T) {
	isolateConfig(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	stdout, _, err := execute(t, nil, "generate", "--endpoint", srv.URL, "hi")
	require.Error(t, err)
	require.True(t, apperrors.IsCode(err, apperrors.CodeRequestFailed))
	require.Contains(t, err.Error(), "generation failed")
	require.Empty(t, stdout)
}

func TestGenerateEmptyBody(t *testing.T) {
	isolateConfig(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	stdout, stderr, err := execute(t, nil, "generate", "--endpoint", srv.URL, "hi")
	require.NoError(t, err)
	require.Empty(t, stdout)
	require.Contains(t, stderr, "empty bio")
}

func TestGenerateUsesConfiguredEndpoint(t *testing.T) {
	isolateConfig(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("from env"))
	}))
	defer srv.Close()
	t.Setenv("BIO_ENDPOINT", srv.URL)

	stdout, _, err := execute(t, nil, "generate", "hi")
	require.NoError(t, err)
	require.Equal(t, "from env\n", stdout)
}

func TestReadInput(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		stdin   string
		want    string
		wantErr error
	}{
		{name: "args joined", args: []string{"Go", "engineer"}, want: "Go engineer"},
		{name: "args win over stdin", args: []string{"args"}, stdin: "stdin", want: "args"},
		{name: "blank args", args: []string{" ", ""}, wantErr: errNoInput},
		{name: "stdin trimmed", stdin: "\n gopher \n", want: "gopher"},
		{name: "empty stdin", stdin: "", wantErr: errNoInput},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got, err := readInput(tt.args, strings.NewReader(tt.stdin))
			if tt.wantErr != nil {
				require.True(t, errors.Is(err, tt.wantErr))
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestWriterSinkStopsAfterWriteError(t *testing.T) {
	sink := &writerSink{w: failingWriter{}}
	sink.OnFragment("a", "a")
	require.Error(t, sink.err)
	sink.OnFragment("b", "ab")
	sink.ScrollToResult()
	require.EqualError(t, sink.err, "disk full")

	var buf bytes.Buffer
	sink = &writerSink{w: &buf}
	sink.ScrollToResult()
	require.Empty(t, buf.String())
}

func assertPrompt(t *testing.T, r *http.Request, want string) {
	var body struct {
		Prompt string `json:"prompt"`
	}
	assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
	assert.Equal(t, want, body.Prompt)
}

func execute(t *testing.T, stdin *strings.Reader, args ...string) (string, string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	if stdin != nil {
		cmd.SetIn(stdin)
	} else {
		cmd.SetIn(strings.NewReader(""))
	}
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

// isolateConfig keeps the developer's environment out of the command under test.
func isolateConfig(t *testing.T) {
	t.Helper()
	t.Chdir(t.TempDir())
	for _, key := range []string{"CONFIG_PATH", "BIO_ENDPOINT", "BIO_PROMPT_PREFIX", "BIO_REQUEST_TIMEOUT"} {
		t.Setenv(key, "")
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("disk full")
}
