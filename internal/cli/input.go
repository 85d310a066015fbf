package cli

import (
	"errors"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// maxStdin bounds text read from a pipe.
const maxStdin = 10 << 20

// readText returns args joined with spaces, or stdin when no args are
// given and stdin is not a terminal.
func readText(args []string, stdin io.Reader) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	if f, ok := stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return "", errors.New("no text given; pass it as an argument or pipe it on stdin")
	}
	data, err := io.ReadAll(io.LimitReader(stdin, maxStdin))
	if err != nil {
		return "", err
	}
	return string(data), nil
}
