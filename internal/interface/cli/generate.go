package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/spf13/cobra"

	"github.com/yanqian/bio-generator/internal/domain/session"
)

var errNoInput = errors.New("no input: pass your current bio as arguments or pipe it on stdin")

// copyToClipboard is swapped in tests.
var copyToClipboard = clipboard.WriteAll

func newGenerateCommand(opts *options) *cobra.Command {
	var copyResult bool

	cmd := &cobra.Command{
		Use:   "generate [text]",
		Short: "Generate one bio and print it as it streams",
		Example: `  bio generate "Senior Developer Advocate @vercel. Tweeting about web development."
  echo "Go engineer, climber, coffee snob" | bio generate --copy`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			input, err := readInput(args, cmd.InOrStdin())
			if err != nil {
				return err
			}
			client, err := opts.client()
			if err != nil {
				return err
			}

			out := &writerSink{w: cmd.OutOrStdout()}
			s := session.New(client, out, opts.logger)
			if err := s.Submit(cmd.Context(), session.BuildPrompt(opts.prefix, input)); err != nil {
				if s.Result() != "" {
					fmt.Fprintln(cmd.OutOrStdout())
				}
				return fmt.Errorf("generation failed: %w", err)
			}
			if out.err != nil {
				return fmt.Errorf("write result: %w", out.err)
			}

			result := s.Result()
			if result == "" {
				fmt.Fprintln(cmd.ErrOrStderr(), warnColor("the server returned an empty bio"))
				return nil
			}
			if copyResult {
				if err := copyToClipboard(result); err != nil {
					return fmt.Errorf("copy to clipboard: %w", err)
				}
				fmt.Fprintln(cmd.ErrOrStderr(), successColor("✂️ Result copied to clipboard"))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&copyResult, "copy", false, "copy the generated bio to the clipboard")
	return cmd
}

// readInput joins the arguments, falling back to piped stdin.
func readInput(args []string, stdin io.Reader) (string, error) {
	if len(args) > 0 {
		if input := strings.TrimSpace(strings.Join(args, " ")); input != "" {
			return input, nil
		}
		return "", errNoInput
	}
	if f, ok := stdin.(*os.File); ok && isTerminal(f) {
		return "", errNoInput
	}
	data, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	input := strings.TrimSpace(string(data))
	if input == "" {
		return "", errNoInput
	}
	return input, nil
}

func isTerminal(f *os.File) bool {
	stat, err := f.Stat()
	if err != nil {
		return false
	}
	return stat.Mode()&os.ModeCharDevice != 0
}

// writerSink prints fragments as they arrive and ends the line once the stream completes.
type writerSink struct {
	w     io.Writer
	wrote bool
	err   error
}

func (s *writerSink) Reset() {}

func (s *writerSink) OnFragment(fragment, _ string) {
	if s.err != nil {
		return
	}
	s.wrote = true
	_, s.err = io.WriteString(s.w, fragment)
}

func (s *writerSink) ScrollToResult() {
	if s.err != nil || !s.wrote {
		return
	}
	_, s.err = io.WriteString(s.w, "\n")
}

var _ session.Sink = (*writerSink)(nil)
