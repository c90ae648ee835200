package shell

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/desothier1/Dutch-BERTje-attention-visualisation/pkg/attention"
	"github.com/desothier1/Dutch-BERTje-attention-visualisation/pkg/display"
	"github.com/desothier1/Dutch-BERTje-attention-visualisation/pkg/errors"
	"github.com/desothier1/Dutch-BERTje-attention-visualisation/pkg/headview"
)

// writeDoc writes a 2-layer, 2-head document over four tokens.
func writeDoc(t *testing.T, dir string, split *int) string {
	t.Helper()

	m := [][]float64{{0.7, 0.1, 0.1, 0.1}, {0.1, 0.7, 0.1, 0.1}, {0.1, 0.1, 0.7, 0.1}, {0.1, 0.1, 0.1, 0.7}}
	in := &attention.Input{
		Tokens:         []string{"[CLS]", "Ġde", "##kat", "[SEP]"},
		Attention:      attention.Tensor{{m, m}, {m, m}},
		SentenceBStart: split,
	}

	path := filepath.Join(dir, "doc.json")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer f.Close()
	if err := attention.Encode(f, in); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return path
}

func newTestShell(t *testing.T) (*Shell, *display.Page, *bytes.Buffer) {
	t.Helper()

	renderer, err := headview.NewRenderer(nil)
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}
	page := display.NewPage("shell")
	s := New(renderer, page, page, Config{Options: headview.DefaultOptions()})

	var out bytes.Buffer
	s.SetOutput(&out)
	s.SetPrompter(&mockPrompter{response: true})
	return s, page, &out
}

func mustExecute(t *testing.T, s *Shell, line string) {
	t.Helper()
	if err := s.Execute(line); err != nil {
		t.Fatalf("%s: %v", line, err)
	}
}

func TestExecute_Errors(t *testing.T) {
	s, page, _ := newTestShell(t)

	tests := []struct {
		line string
		code string
	}{
		{"hello", errors.ErrCommandNotFound},
		{"/frobnicate", errors.ErrCommandNotFound},
		{"/render 0 0", errors.ErrCommandNoInput},
		{"/render 0", errors.ErrCommandMissingArgs},
		{"/load", errors.ErrCommandMissingArgs},
		{"/load /no/such/file.json", errors.ErrInputReadFailed},
		{"/split", errors.ErrCommandMissingArgs},
		{"/split two", errors.ErrCommandInvalidArg},
		{"/prettify maybe", errors.ErrCommandMissingArgs},
		{"/hints", errors.ErrCommandMissingArgs},
		{"/hints x", errors.ErrCommandInvalidArg},
		{"/export out.svg", errors.ErrCommandNoInput},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			if err := s.Execute(tt.line); !errors.IsCode(err, tt.code) {
				t.Errorf("Execute(%q) = %v, want %s", tt.line, err, tt.code)
			}
		})
	}

	if page.Len() != 0 {
		t.Errorf("failed commands displayed %d outputs", page.Len())
	}
}

func TestExecute_Quit(t *testing.T) {
	s, _, _ := newTestShell(t)
	for _, cmd := range []string{"/quit", "/exit", "/q"} {
		if err := s.Execute(cmd); err != errQuit {
			t.Errorf("%s returned %v", cmd, err)
		}
	}
	if err := s.Execute("   "); err != nil {
		t.Errorf("blank line returned %v", err)
	}
}

func TestLoadAndRender(t *testing.T) {
	s, page, out := newTestShell(t)
	path := writeDoc(t, t.TempDir(), nil)

	mustExecute(t, s, "/load "+path)
	if !strings.Contains(out.String(), "4 tokens, 2 layers x 2 heads") {
		t.Errorf("unexpected load output %q", out.String())
	}

	mustExecute(t, s, "/render 1 1")
	if page.Len() != 4 {
		t.Fatalf("expected 4 outputs, got %d", page.Len())
	}
	if s.last.Tokens[1] != " de" || s.last.Tokens[2] != "kat" {
		t.Errorf("expected prettified tokens, got %q", s.last.Tokens)
	}
	if !strings.Contains(s.last.SVG, "Layer 1 · Head 1") {
		t.Error("expected heatmap title")
	}

	if err := s.Execute("/render 2 0"); !errors.IsCode(err, errors.ErrIndexFailed) {
		t.Errorf("expected INDEX_FAILED, got %v", err)
	}
	if page.Len() != 4 {
		t.Error("failed render displayed outputs")
	}
}

func TestSplitAndPrettify(t *testing.T) {
	s, _, _ := newTestShell(t)
	two := 2
	mustExecute(t, s, "/load "+writeDoc(t, t.TempDir(), &two))

	mustExecute(t, s, "/render 0 0")
	if len(s.last.Payload.Attention) != 5 {
		t.Errorf("expected split from the document, got %d views", len(s.last.Payload.Attention))
	}

	mustExecute(t, s, "/split off")
	mustExecute(t, s, "/prettify off")
	mustExecute(t, s, "/render 0 0")
	if len(s.last.Payload.Attention) != 1 {
		t.Errorf("expected one view, got %d", len(s.last.Payload.Attention))
	}
	if s.last.Tokens[1] != "Ġde" {
		t.Errorf("expected raw tokens, got %q", s.last.Tokens)
	}

	mustExecute(t, s, "/split 1")
	mustExecute(t, s, "/render 0 1")
	if v := s.last.Payload.Attention[headview.FilterAB]; len(v.LeftText) != 1 || len(v.RightText) != 3 {
		t.Errorf("unexpected ab view %q/%q", v.LeftText, v.RightText)
	}

	mustExecute(t, s, "/split 9")
	if err := s.Execute("/render 0 0"); !errors.IsCode(err, errors.ErrIndexFailed) {
		t.Errorf("expected INDEX_FAILED, got %v", err)
	}
}

func TestHints(t *testing.T) {
	s, _, _ := newTestShell(t)
	mustExecute(t, s, "/load "+writeDoc(t, t.TempDir(), nil))

	mustExecute(t, s, "/hints 1 0 1")
	mustExecute(t, s, "/render 0 0")
	if !strings.Contains(s.last.Script, `"layer":1,"heads":[0,1]`) {
		t.Error("expected hints in the widget payload")
	}

	mustExecute(t, s, "/hints - 1")
	mustExecute(t, s, "/render 0 0")
	if !strings.Contains(s.last.Script, `"layer":null,"heads":[1]`) {
		t.Error("expected heads-only hint")
	}

	mustExecute(t, s, "/hints off")
	mustExecute(t, s, "/render 0 0")
	if !strings.Contains(s.last.Script, `"layer":null,"heads":null`) {
		t.Error("expected hints cleared")
	}
}

func TestExportAndSave(t *testing.T) {
	s, _, _ := newTestShell(t)
	dir := t.TempDir()
	mustExecute(t, s, "/load "+writeDoc(t, dir, nil))
	mustExecute(t, s, "/render 0 0")

	svg := filepath.Join(dir, "head.svg")
	mustExecute(t, s, "/export "+svg)
	if data, _ := os.ReadFile(svg); string(data) != s.last.SVG {
		t.Error("exported SVG differs from the heatmap")
	}

	csvPath := filepath.Join(dir, "head.csv")
	mustExecute(t, s, "/export "+csvPath)
	data, _ := os.ReadFile(csvPath)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 5 || !strings.HasPrefix(lines[1], "[CLS],0.7,") {
		t.Errorf("unexpected CSV %q", data)
	}

	tsv := filepath.Join(dir, "head.tsv")
	mustExecute(t, s, "/export "+tsv)
	if data, _ := os.ReadFile(tsv); !strings.Contains(string(data), "\t") {
		t.Error("expected tab separated output")
	}

	if err := s.Execute("/export " + filepath.Join(dir, "head.png")); !errors.IsCode(err, errors.ErrCommandInvalidArg) {
		t.Errorf("expected COMMAND_INVALID_ARG, got %v", err)
	}

	page := filepath.Join(dir, "view.html")
	mustExecute(t, s, "/save "+page)
	if data, _ := os.ReadFile(page); !strings.Contains(string(data), s.last.ID) {
		t.Error("saved page lacks the widget")
	}
}

func TestOverwriteDeclined(t *testing.T) {
	s, _, out := newTestShell(t)
	prompter := &mockPrompter{response: false}
	s.SetPrompter(prompter)

	dir := t.TempDir()
	mustExecute(t, s, "/load "+writeDoc(t, dir, nil))
	mustExecute(t, s, "/render 0 0")

	path := filepath.Join(dir, "view.html")
	os.WriteFile(path, []byte("keep"), 0644)

	mustExecute(t, s, "/save "+path)
	if data, _ := os.ReadFile(path); string(data) != "keep" {
		t.Error("declined overwrite replaced the file")
	}
	if len(prompter.prompts) != 1 || !strings.Contains(prompter.prompts[0], "view.html exists") {
		t.Errorf("unexpected prompts %q", prompter.prompts)
	}
	if !strings.Contains(out.String(), "Cancelled.") {
		t.Error("expected cancellation notice")
	}
}

func TestInfo(t *testing.T) {
	s, _, out := newTestShell(t)
	mustExecute(t, s, "/info")
	if !strings.Contains(out.String(), "No document loaded.") {
		t.Errorf("unexpected info %q", out.String())
	}

	out.Reset()
	mustExecute(t, s, "/load "+writeDoc(t, t.TempDir(), nil))
	mustExecute(t, s, "/render 0 0")
	mustExecute(t, s, "/hints 0")
	out.Reset()
	mustExecute(t, s, "/info")
	for _, want := range []string{"Tokens: 4", "Layers: 2, heads: 2, positions: 4", "Split: off, prettify: true", "Hints: layer 0", "Outputs: 4"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("info missing %q in %q", want, out.String())
		}
	}
}

func TestInfo_Head(t *testing.T) {
	s, _, out := newTestShell(t)
	mustExecute(t, s, "/load "+writeDoc(t, t.TempDir(), nil))
	out.Reset()

	mustExecute(t, s, "/info 1 1")
	for _, want := range []string{"Layer 1 head 1:", "[CLS] -> [CLS] 0.700", "##kat -> ##kat 0.700", "[SEP] -> [SEP] 0.700"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("info missing %q in %q", want, out.String())
		}
	}

	tests := []struct {
		line string
		code string
	}{
		{"/info 0", errors.ErrCommandMissingArgs},
		{"/info 2 0", errors.ErrCommandInvalidArg},
		{"/info 0 -1", errors.ErrCommandInvalidArg},
		{"/info x 0", errors.ErrCommandInvalidArg},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			if err := s.Execute(tt.line); !errors.IsCode(err, tt.code) {
				t.Errorf("Expected %s, got %v", tt.code, err)
			}
		})
	}
}

func TestHelp(t *testing.T) {
	s, _, out := newTestShell(t)
	mustExecute(t, s, "/help")
	for _, cmd := range []string{"/load", "/render", "/split", "/prettify", "/hints", "/export", "/save", "/info", "/quit"} {
		if !strings.Contains(out.String(), cmd) {
			t.Errorf("help missing %s", cmd)
		}
	}
}
