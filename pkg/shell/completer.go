package shell

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/chzyer/readline"
)

// commands is the static list of available shell commands (without the / prefix).
var commands = []string{
	"load",
	"render",
	"split",
	"prettify",
	"hints",
	"export",
	"save",
	"info",
	"help",
	"quit",
	"exit",
	"q",
}

// keywordArgs lists fixed argument values per command.
var keywordArgs = map[string][]string{
	"split":    {"off"},
	"prettify": {"on", "off"},
	"hints":    {"-", "off"},
}

// fileArgs lists commands whose argument is a path, with the extensions
// offered for completion.
var fileArgs = map[string][]string{
	"load":   {".json"},
	"save":   {".html"},
	"export": {".svg", ".csv", ".tsv"},
}

// ShellCompleter provides tab completion for commands, keyword arguments
// and file paths. It implements the readline.AutoCompleter interface.
type ShellCompleter struct {
	// readDir lists a directory; replaced in tests.
	readDir func(dir string) ([]os.DirEntry, error)
}

// NewShellCompleter creates a completer that lists files from disk.
func NewShellCompleter() *ShellCompleter {
	return &ShellCompleter{readDir: os.ReadDir}
}

// Ensure ShellCompleter implements readline.AutoCompleter at compile time.
var _ readline.AutoCompleter = (*ShellCompleter)(nil)

// Do implements readline.AutoCompleter. It returns candidate suffixes for
// the word under the cursor and the length of the typed prefix.
func (c *ShellCompleter) Do(line []rune, pos int) (newLine [][]rune, length int) {
	if len(line) == 0 || pos <= 0 {
		return nil, 0
	}
	if pos > len(line) {
		pos = len(line)
	}

	lineStr := string(line[:pos])
	wordStart := findWordStart(lineStr)
	currentWord := lineStr[wordStart:]

	if wordStart == 0 {
		if strings.HasPrefix(currentWord, "/") {
			return c.completeCommand(currentWord)
		}
		return nil, 0
	}

	cmd := commandName(lineStr[:wordStart])
	if opts, ok := keywordArgs[cmd]; ok {
		return completeFrom(opts, currentWord)
	}
	if exts, ok := fileArgs[cmd]; ok {
		return c.completePath(currentWord, exts)
	}
	return nil, 0
}

// findWordStart returns the index where the current word begins.
func findWordStart(s string) int {
	return strings.LastIndexAny(s, " \t") + 1
}

// commandName returns the command typed at the start of the line, without
// its slash.
func commandName(beforeWord string) string {
	fields := strings.Fields(beforeWord)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return ""
	}
	return strings.TrimPrefix(fields[0], "/")
}

// completeCommand returns completions for commands starting with the given
// prefix, which includes the leading "/".
func (c *ShellCompleter) completeCommand(prefix string) ([][]rune, int) {
	return completeFrom(commands, strings.TrimPrefix(prefix, "/"))
}

func completeFrom(options []string, prefix string) ([][]rune, int) {
	var matches [][]rune
	for _, opt := range options {
		if strings.HasPrefix(opt, prefix) {
			matches = append(matches, []rune(opt[len(prefix):]+" "))
		}
	}
	return matches, len(prefix)
}

// completePath completes directories and files with one of exts.
func (c *ShellCompleter) completePath(prefix string, exts []string) ([][]rune, int) {
	dir, base := filepath.Split(prefix)
	listDir := dir
	if listDir == "" {
		listDir = "."
	}

	entries, err := c.readDir(listDir)
	if err != nil {
		return nil, 0
	}

	var names []string
	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, base) || (strings.HasPrefix(name, ".") && !strings.HasPrefix(base, ".")) {
			continue
		}
		if e.IsDir() {
			names = append(names, name+"/")
			continue
		}
		for _, ext := range exts {
			if strings.HasSuffix(name, ext) {
				names = append(names, name+" ")
				break
			}
		}
	}
	sort.Strings(names)

	matches := make([][]rune, 0, len(names))
	for _, name := range names {
		matches = append(matches, []rune(name[len(base):]))
	}
	return matches, len(base)
}
