// Package prompt asks the user before destructive steps.
package prompt

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/gookit/color"
	"golang.org/x/term"
)

// ErrNotInteractive is returned when a question needs an answer but stdin
// is not a terminal.
var ErrNotInteractive = errors.New("stdin is not a terminal; pass --yes to confirm")

var questionStyle = color.New(color.FgYellow, color.OpBold)

// Confirmer answers yes/no questions.
type Confirmer interface {
	Confirm(question string) (bool, error)
}

// Terminal reads answers line by line. Anything but y or yes is a no.
type Terminal struct {
	in  *bufio.Reader
	out io.Writer
}

// New creates a confirmer reading from in and writing questions to out.
func New(in io.Reader, out io.Writer) *Terminal {
	return &Terminal{in: bufio.NewReader(in), out: out}
}

func (t *Terminal) Confirm(question string) (bool, error) {
	fmt.Fprintf(t.out, "%s [y/N]: ", questionStyle.Sprint(question))
	line, err := t.in.ReadString('\n')
	if err != nil {
		if !errors.Is(err, io.EOF) {
			return false, fmt.Errorf("reading answer: %w", err)
		}
		fmt.Fprintln(t.out)
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}

// Auto answers every question with the same value.
type Auto bool

func (a Auto) Confirm(string) (bool, error) {
	return bool(a), nil
}

type refuse struct{}

func (refuse) Confirm(string) (bool, error) {
	return false, ErrNotInteractive
}

// ForStdin returns Auto(true) when yes is set, a Terminal on stdin when it
// is a TTY, and otherwise a confirmer failing with ErrNotInteractive.
func ForStdin(yes bool) Confirmer {
	if yes {
		return Auto(true)
	}
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return refuse{}
	}
	return New(os.Stdin, os.Stderr)
}
