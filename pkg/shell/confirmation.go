package shell

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"
)

// Prompter asks the user to confirm an action such as overwriting a file.
type Prompter interface {
	// Confirm shows message and reports whether the user answered yes.
	Confirm(message string) (bool, error)
}

// InteractivePrompter reads answers from a plain reader.
type InteractivePrompter struct {
	reader *bufio.Reader
	writer io.Writer
}

// NewInteractivePrompter creates an InteractivePrompter with custom I/O.
func NewInteractivePrompter(reader io.Reader, writer io.Writer) *InteractivePrompter {
	return &InteractivePrompter{
		reader: bufio.NewReader(reader),
		writer: writer,
	}
}

// Confirm displays the message followed by " [y/N]: ". Only "y" or "yes"
// (any case) confirms; EOF counts as no.
func (p *InteractivePrompter) Confirm(message string) (bool, error) {
	fmt.Fprintf(p.writer, "%s [y/N]: ", message)

	line, err := p.reader.ReadString('\n')
	if err != nil && err != io.EOF {
		return false, fmt.Errorf("failed to read confirmation: %w", err)
	}
	return isYes(line), nil
}

// readlinePrompter asks through the shell's own readline instance, which
// owns the terminal while the shell runs.
type readlinePrompter struct {
	rl *readline.Instance
}

func (p *readlinePrompter) Confirm(message string) (bool, error) {
	prompt := p.rl.Config.Prompt
	defer p.rl.SetPrompt(prompt)

	p.rl.SetPrompt(message + " [y/N]: ")
	line, err := p.rl.Readline()
	if err == readline.ErrInterrupt || err == io.EOF {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return isYes(line), nil
}

func isYes(answer string) bool {
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}

var (
	_ Prompter = (*InteractivePrompter)(nil)
	_ Prompter = (*readlinePrompter)(nil)
)
