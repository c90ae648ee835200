package shell

import (
	"bytes"
	"strings"
	"testing"
)

// mockPrompter returns a fixed answer and records prompts.
type mockPrompter struct {
	response bool
	err      error
	prompts  []string
}

func (m *mockPrompter) Confirm(message string) (bool, error) {
	m.prompts = append(m.prompts, message)
	return m.response, m.err
}

func TestInteractivePrompter_Confirm(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{"y", "y\n", true},
		{"yes", "yes\n", true},
		{"upper case", "YES\n", true},
		{"padded", "  y  \n", true},
		{"no", "n\n", false},
		{"empty", "\n", false},
		{"other", "sure\n", false},
		{"eof", "", false},
		{"no newline", "y", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			p := NewInteractivePrompter(strings.NewReader(tt.input), &out)

			got, err := p.Confirm("Overwrite view.html?")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Confirm() = %v, want %v", got, tt.want)
			}
			if out.String() != "Overwrite view.html? [y/N]: " {
				t.Errorf("unexpected prompt %q", out.String())
			}
		})
	}
}

func TestInteractivePrompter_SequentialAnswers(t *testing.T) {
	p := NewInteractivePrompter(strings.NewReader("y\nn\n"), &bytes.Buffer{})

	first, _ := p.Confirm("first")
	second, _ := p.Confirm("second")
	if !first || second {
		t.Errorf("expected yes then no, got %v then %v", first, second)
	}
}
