// Package prompt asks the user at the terminal.
package prompt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/manifoldco/promptui"
	"github.com/mattn/go-isatty"
	"go.uber.org/zap"
)

// ErrNotInteractive is returned by Confirm when stdin is not a terminal and
// confirmation was not pre-approved.
var ErrNotInteractive = errors.New("prompt: stdin is not a terminal, pass --yes to confirm")

// Terminal confirms destructive actions and prints alerts.
type Terminal struct {
	// Yes approves every confirmation without asking.
	Yes         bool
	Interactive bool

	Stdin  io.ReadCloser
	Stdout io.WriteCloser
	Err    io.Writer

	log *zap.Logger
}

// New returns a Terminal on the process stdio.
func New(yes bool, log *zap.Logger) *Terminal {
	fd := os.Stdin.Fd()
	return &Terminal{
		Yes:         yes,
		Interactive: isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd),
		Err:         color.Error,
		log:         log.Named("prompt"),
	}
}

// Confirm asks a yes/no question. Declining is not an error.
func (t *Terminal) Confirm(ctx context.Context, message string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if t.Yes {
		t.log.Debug("confirmation pre-approved", zap.String("message", message))
		return true, nil
	}
	if !t.Interactive {
		return false, ErrNotInteractive
	}

	p := promptui.Prompt{
		Label:     message,
		IsConfirm: true,
		Templates: &promptui.PromptTemplates{
			Confirm: "{{ . | bold }} [y/N] ",
			Success: "{{ . | faint }} ",
		},
		Stdin:  t.Stdin,
		Stdout: t.Stdout,
	}
	_, err := p.Run()
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, promptui.ErrAbort):
		return false, nil
	case errors.Is(err, promptui.ErrInterrupt), errors.Is(err, promptui.ErrEOF):
		return false, nil
	}
	return false, fmt.Errorf("prompt: %w", err)
}

// Alert reports a failure the user has to see.
func (t *Terminal) Alert(message string) {
	t.log.Warn("alert", zap.String("message", message))
	red := color.New(color.FgRed, color.Bold)
	_, _ = red.Fprint(t.Err, "! ")
	_, _ = fmt.Fprintln(t.Err, message)
}
