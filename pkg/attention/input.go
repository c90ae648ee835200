package attention

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/desothier1/Dutch-BERTje-attention-visualisation/pkg/errors"
)

// Input is a decoded input document: the attention tensor, its tokens and
// an optional sentence B start index.
type Input struct {
	Tokens         []string
	Attention      Tensor
	SentenceBStart *int
}

// document is the JSON layout of an input file. Attention may be 4-D or 5-D
// (with a batch axis of size 1).
type document struct {
	Tokens         []string        `json:"tokens"`
	Attention      json.RawMessage `json:"attention"`
	SentenceBStart *int            `json:"sentence_b_start,omitempty"`
}

// Decode reads an input document from r.
func Decode(r io.Reader) (*Input, error) {
	var doc document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, err
	}
	if len(doc.Attention) == 0 {
		return nil, errors.AttentionEmpty()
	}

	var batched Batched
	if err := json.Unmarshal(doc.Attention, &batched); err == nil {
		t, err := Squeeze(batched)
		if err != nil {
			return nil, err
		}
		return &Input{Tokens: doc.Tokens, Attention: t, SentenceBStart: doc.SentenceBStart}, nil
	}

	var t Tensor
	if err := json.Unmarshal(doc.Attention, &t); err != nil {
		return nil, fmt.Errorf("attention must be a 4-D or 5-D numeric array: %w", err)
	}
	if len(t) == 0 {
		return nil, errors.AttentionEmpty()
	}
	return &Input{Tokens: doc.Tokens, Attention: t, SentenceBStart: doc.SentenceBStart}, nil
}

// Load reads and decodes the input document at path.
func Load(path string) (*Input, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.InputRead(path, err)
	}
	defer f.Close()

	in, err := Decode(f)
	if err != nil {
		if _, ok := errors.As(err); ok {
			return nil, err
		}
		return nil, errors.InputParse(path, err)
	}
	return in, nil
}

// Encode writes in as a 4-D input document.
func Encode(w io.Writer, in *Input) error {
	raw, err := json.Marshal(in.Attention)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(document{
		Tokens:         in.Tokens,
		Attention:      raw,
		SentenceBStart: in.SentenceBStart,
	})
}
