// Package confirm models operator confirmation as an injectable capability,
// so automated runs and tests can supply deterministic answers without a
// real terminal.
package confirm

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
)

// Confirmer answers yes/no questions put to the operator.
type Confirmer interface {
	// Confirm presents the prompt and blocks for an answer.
	// The zero answer is no.
	Confirm(prompt string) (bool, error)
}

// Terminal asks on an interactive terminal. The answer is a single y/N
// line; anything other than an explicit yes declines.
type Terminal struct {
	In  io.Reader
	Out io.Writer
}

// NewTerminal returns a Terminal bound to stdin/stdout.
func NewTerminal() *Terminal {
	return &Terminal{
		In:  os.Stdin,
		Out: os.Stdout,
	}
}

// Confirm implements Confirmer.
func (t *Terminal) Confirm(prompt string) (bool, error) {
	if _, err := color.New(color.FgYellow, color.Bold).Fprintf(t.Out, "%s [y/N]: ", prompt); err != nil {
		return false, fmt.Errorf("failed to write prompt: %w", err)
	}

	reader := bufio.NewReader(t.In)
	line, err := reader.ReadString('\n')
	if err != nil && err != io.EOF {
		return false, fmt.Errorf("failed to read answer: %w", err)
	}

	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

// Assume answers every prompt with a fixed response. Assume(true) backs the
// --yes flag; tests use both values.
type Assume bool

// Confirm implements Confirmer.
func (a Assume) Confirm(string) (bool, error) {
	return bool(a), nil
}
