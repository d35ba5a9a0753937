package ui

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// LineConfirmer asks a question on out and reads one line from in. It
// satisfies ido.Confirmer.
type LineConfirmer struct {
	in  *bufio.Reader
	out io.Writer
}

// NewLineConfirmer creates a confirmer reading from in. The prompt is
// written to out, which should not be standard output.
func NewLineConfirmer(in io.Reader, out io.Writer) *LineConfirmer {
	return &LineConfirmer{in: bufio.NewReader(in), out: out}
}

type lineResult struct {
	line string
	err  error
}

// Ask writes prompt and blocks until a line is read or ctx is done. Only the
// line terminator is removed from the answer. Input that ends without a
// newline is returned as is; end of input with nothing typed is an error.
func (c *LineConfirmer) Ask(ctx context.Context, prompt string) (string, error) {
	fmt.Fprint(c.out, StyleWarning.Render(prompt))

	ch := make(chan lineResult, 1)
	go func() {
		line, err := c.in.ReadString('\n')
		ch <- lineResult{line: line, err: err}
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(c.out)
		return "", ctx.Err()
	case r := <-ch:
		if r.err != nil {
			if !errors.Is(r.err, io.EOF) {
				return "", r.err
			}
			if r.line == "" {
				return "", fmt.Errorf("no answer: %w", io.ErrUnexpectedEOF)
			}
		}
		return strings.TrimRight(r.line, "\r\n"), nil
	}
}

// Confirm prompts with a yes/no question. Returns true for yes.
func Confirm(in io.Reader, out io.Writer, prompt string) bool {
	fmt.Fprintf(out, "%s [y/N]: ", StyleWarning.Render(prompt))
	line, _ := bufio.NewReader(in).ReadString('\n')
	line = strings.TrimSpace(strings.ToLower(line))
	return line == "y" || line == "yes"
}

// PromptSecret reads a value without echo when stdin is a terminal, and a
// plain line otherwise.
func PromptSecret(out io.Writer, prompt string) (string, error) {
	fmt.Fprint(out, prompt)
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", err
		}
		return strings.TrimSpace(line), nil
	}
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(out)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
