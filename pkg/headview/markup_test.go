package headview

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
)

func TestNewContainerID(t *testing.T) {
	pattern := regexp.MustCompile(`^bertviz-[0-9a-f]{32}$`)

	seen := make(map[string]bool)
	for i := 0; i < 10000; i++ {
		id := NewContainerID(DefaultIDPrefix)
		if !pattern.MatchString(id) {
			t.Fatalf("id %q does not match %s", id, pattern)
		}
		if seen[id] {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = true
	}

	if id := NewContainerID(""); len(id) != 32 {
		t.Errorf("expected bare 32 hex digits, got %q", id)
	}
}

func TestContainerHTML(t *testing.T) {
	single := ContainerHTML("bertviz-1", false)
	if !strings.Contains(single, "<div id='bertviz-1'>") {
		t.Error("missing container id")
	}
	if !strings.Contains(single, "<select id=\"layer\"></select>") {
		t.Error("missing layer selector")
	}
	if strings.Contains(single, "filter") {
		t.Error("unexpected filter selector")
	}

	pair := ContainerHTML("bertviz-2", true)
	if !strings.Contains(pair, "Sentence A -&gt; Sentence B") {
		t.Error("expected escaped option label")
	}
	if strings.Count(pair, "<option") != 5 {
		t.Errorf("expected 5 options, got %d", strings.Count(pair, "<option"))
	}
}

func TestFilterLabel(t *testing.T) {
	if FilterAll.Label() != "All" || FilterBA.Label() != "Sentence B -> Sentence A" {
		t.Error("unexpected labels")
	}
	if Filter("zz").Label() != "zz" {
		t.Error("expected unknown filter to label as itself")
	}
}

func TestSubstitute(t *testing.T) {
	p := &Payload{
		Attention:     map[Filter]View{FilterAll: {LeftText: []string{"</script>"}, RightText: []string{}}},
		DefaultFilter: FilterAll,
		RootDivID:     "bertviz-x",
	}
	out, err := Substitute("var a = PYTHON_PARAMS; var b = PYTHON_PARAMS;", p)
	if err != nil {
		t.Fatalf("Substitute: %v", err)
	}
	if strings.Contains(out, ParamsPlaceholder) {
		t.Error("placeholder left behind")
	}
	if strings.Contains(out, "</script>") {
		t.Error("payload not escaped for script context")
	}
	if strings.Count(out, `"root_div_id":"bertviz-x"`) != 2 {
		t.Error("expected both placeholders replaced")
	}
}

func TestEmbeddedDriver(t *testing.T) {
	if strings.Count(EmbeddedDriver(), ParamsPlaceholder) != 1 {
		t.Error("embedded driver must contain the placeholder exactly once")
	}
}

func TestLoadDriver(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.js")
	bad := filepath.Join(dir, "bad.js")
	os.WriteFile(good, []byte("render(PYTHON_PARAMS);"), 0644)
	os.WriteFile(bad, []byte("render();"), 0644)

	if _, err := LoadDriver(good); err != nil {
		t.Errorf("LoadDriver(good): %v", err)
	}
	if _, err := LoadDriver(bad); err == nil {
		t.Error("expected error for script without placeholder")
	}
	if _, err := LoadDriver(filepath.Join(dir, "missing.js")); err == nil {
		t.Error("expected error for missing script")
	}
}
