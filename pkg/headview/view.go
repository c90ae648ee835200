package headview

import (
	"github.com/desothier1/Dutch-BERTje-attention-visualisation/pkg/attention"
)

// Filter names a view of the attention data.
type Filter string

// View filters. The segment filters exist only when a sentence B start is set.
const (
	FilterAll Filter = "all"
	FilterAA  Filter = "aa"
	FilterAB  Filter = "ab"
	FilterBA  Filter = "ba"
	FilterBB  Filter = "bb"
)

// SegmentFilters lists the four cross/within-segment filters in the order
// the filter selector shows them.
var SegmentFilters = []Filter{FilterAA, FilterAB, FilterBA, FilterBB}

// Label returns the selector caption for f.
func (f Filter) Label() string {
	switch f {
	case FilterAll:
		return "All"
	case FilterAA:
		return "Sentence A -> Sentence A"
	case FilterAB:
		return "Sentence A -> Sentence B"
	case FilterBA:
		return "Sentence B -> Sentence A"
	case FilterBB:
		return "Sentence B -> Sentence B"
	default:
		return string(f)
	}
}

// View is the attention restricted to a block of query rows and key columns,
// with the tokens labelling each axis.
type View struct {
	Attn      attention.Tensor `json:"attn"`
	LeftText  []string         `json:"left_text"`
	RightText []string         `json:"right_text"`
}

// Payload is the parameter object handed to the widget driver script.
type Payload struct {
	Attention     map[Filter]View `json:"attention"`
	DefaultFilter Filter          `json:"default_filter"`
	RootDivID     string          `json:"root_div_id"`
	Layer         *int            `json:"layer"`
	Heads         []int           `json:"heads"`
}

// BuildViews constructs the "all" view and, when split is non-nil, the four
// segment views. Segment A is [0, split) and segment B is [split, n) where n
// is len(toks).
//
// split is not range checked: a value outside [0, n] panics on the token
// slice the same way any out-of-range slice expression does.
func BuildViews(attn attention.Tensor, toks []string, split *int) map[Filter]View {
	n := len(toks)
	views := map[Filter]View{
		FilterAll: {
			Attn:      attn.Nested(),
			LeftText:  copyTokens(toks),
			RightText: copyTokens(toks),
		},
	}
	if split == nil {
		return views
	}

	s := *split
	a, b := attention.Range{Lo: 0, Hi: s}, attention.Range{Lo: s, Hi: n}
	tokA, tokB := toks[a.Lo:a.Hi], toks[b.Lo:b.Hi]

	segment := func(rows, cols attention.Range, left, right []string) View {
		return View{
			Attn:      attn.Block(rows, cols),
			LeftText:  copyTokens(left),
			RightText: copyTokens(right),
		}
	}
	views[FilterAA] = segment(a, a, tokA, tokA)
	views[FilterAB] = segment(a, b, tokA, tokB)
	views[FilterBA] = segment(b, a, tokB, tokA)
	views[FilterBB] = segment(b, b, tokB, tokB)
	return views
}

func copyTokens(toks []string) []string {
	out := make([]string, len(toks))
	copy(out, toks)
	return out
}
