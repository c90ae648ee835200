package attention

import (
	"bytes"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/desothier1/Dutch-BERTje-attention-visualisation/pkg/errors"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name      string
		doc       string
		wantLayer int
		wantSplit *int
		wantCode  string
	}{
		{
			name:      "four dimensional",
			doc:       `{"tokens":["a","b"],"attention":[[[[1,0],[0,1]]]]}`,
			wantLayer: 1,
		},
		{
			name:      "five dimensional with batch",
			doc:       `{"tokens":["a","b"],"attention":[[[[[1,0],[0,1]]]],[[[[0.5,0.5],[0.5,0.5]]]]],"sentence_b_start":1}`,
			wantLayer: 2,
			wantSplit: intPtr(1),
		},
		{
			name:     "batch of two",
			doc:      `{"tokens":["a"],"attention":[[[[[1]]],[[[1]]]]]}`,
			wantCode: errors.ErrAttentionBatch,
		},
		{
			name:     "missing attention",
			doc:      `{"tokens":["a"]}`,
			wantCode: errors.ErrAttentionEmpty,
		},
		{
			name:     "empty four dimensional",
			doc:      `{"tokens":[],"attention":[]}`,
			wantCode: errors.ErrAttentionEmpty,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, err := Decode(strings.NewReader(tt.doc))
			if tt.wantCode != "" {
				if !errors.IsCode(err, tt.wantCode) {
					t.Fatalf("expected %s, got %v", tt.wantCode, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if in.Attention.Layers() != tt.wantLayer {
				t.Errorf("layers = %d, want %d", in.Attention.Layers(), tt.wantLayer)
			}
			if !reflect.DeepEqual(in.SentenceBStart, tt.wantSplit) {
				t.Errorf("split = %v, want %v", in.SentenceBStart, tt.wantSplit)
			}
		})
	}
}

func TestDecode_NotNumeric(t *testing.T) {
	_, err := Decode(strings.NewReader(`{"tokens":["a"],"attention":"nope"}`))
	if err == nil {
		t.Fatal("expected error for string attention")
	}
}

func TestEncodeLoadRoundTrip(t *testing.T) {
	in := &Input{
		Tokens:         []string{"[CLS]", "de", "kat", "[SEP]"},
		Attention:      grid(4),
		SentenceBStart: intPtr(2),
	}

	var buf bytes.Buffer
	if err := Encode(&buf, in); err != nil {
		t.Fatalf("Encode: %v", err)
	}

	path := filepath.Join(t.TempDir(), "input.json")
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(got, in) {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", got, in)
	}
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "missing.json"))
	if !errors.IsCode(err, errors.ErrInputReadFailed) {
		t.Errorf("expected INPUT_READ_FAILED, got %v", err)
	}

	bad := filepath.Join(dir, "bad.json")
	os.WriteFile(bad, []byte("{not json"), 0644)
	_, err = Load(bad)
	if !errors.IsCode(err, errors.ErrInputParseFailed) {
		t.Errorf("expected INPUT_PARSE_FAILED, got %v", err)
	}
}

func intPtr(v int) *int { return &v }
