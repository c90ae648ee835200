// Package attention holds precomputed transformer attention weights and the
// slicing operations the head view needs.
//
// A Tensor is indexed [layer][head][query][key]. Values are post-softmax
// weights; nothing in this package computes attention.
package attention

import (
	"gonum.org/v1/gonum/mat"

	"github.com/desothier1/Dutch-BERTje-attention-visualisation/pkg/errors"
)

// Tensor is a 4-D attention array: [layer][head][query][key].
type Tensor [][][][]float64

// Batched is the per-layer model output with the batch axis still present:
// [layer][batch][head][query][key].
type Batched [][][][][]float64

// Range is a half-open [Lo, Hi) interval over a position axis.
type Range struct {
	Lo, Hi int
}

// Len returns the number of positions in the range.
func (r Range) Len() int {
	if r.Hi < r.Lo {
		return 0
	}
	return r.Hi - r.Lo
}

// Squeeze drops the batch axis of a batched tensor. Every layer must hold
// exactly one batch entry.
func Squeeze(b Batched) (Tensor, error) {
	if len(b) == 0 {
		return nil, errors.AttentionEmpty()
	}
	t := make(Tensor, len(b))
	for l, layer := range b {
		if len(layer) != 1 {
			return nil, errors.AttentionBatch(l, len(layer))
		}
		t[l] = layer[0]
	}
	return t.Nested(), nil
}

// Layers returns the size of the layer axis.
func (t Tensor) Layers() int {
	return len(t)
}

// Heads returns the size of the head axis of the first layer.
func (t Tensor) Heads() int {
	if len(t) == 0 {
		return 0
	}
	return len(t[0])
}

// Positions returns the query-axis length of the first (layer, head) slice.
func (t Tensor) Positions() int {
	if len(t) == 0 || len(t[0]) == 0 {
		return 0
	}
	return len(t[0][0])
}

// Nested returns a deep copy of t as plain nested slices. Values are copied
// bit for bit and keep their order.
func (t Tensor) Nested() Tensor {
	if t == nil {
		return nil
	}
	out := make(Tensor, len(t))
	for l, layer := range t {
		out[l] = make([][][]float64, len(layer))
		for h, head := range layer {
			out[l][h] = make([][]float64, len(head))
			for q, row := range head {
				out[l][h][q] = append([]float64(nil), row...)
			}
		}
	}
	return out
}

// Block restricts every (layer, head) matrix to rows × cols and returns a
// freshly allocated tensor. Bounds past the end of an axis are clipped to
// its length; a range starting past the end yields an empty axis.
func (t Tensor) Block(rows, cols Range) Tensor {
	out := make(Tensor, len(t))
	for l, layer := range t {
		out[l] = make([][][]float64, len(layer))
		for h, head := range layer {
			qlo, qhi := clip(rows, len(head))
			m := make([][]float64, 0, qhi-qlo)
			for _, row := range head[qlo:qhi] {
				klo, khi := clip(cols, len(row))
				m = append(m, append(make([]float64, 0, khi-klo), row[klo:khi]...))
			}
			out[l][h] = m
		}
	}
	return out
}

// clip bounds r to [0, n] the way sequence slicing does for oversize stops.
func clip(r Range, n int) (int, int) {
	lo, hi := r.Lo, r.Hi
	if hi > n {
		hi = n
	}
	if lo > hi {
		lo = hi
	}
	return lo, hi
}

// Matrix returns the (layer, head) attention matrix as a dense matrix.
// Indices are not range checked; an invalid index panics like any slice
// access. A ragged or empty slice yields a nil matrix.
func (t Tensor) Matrix(layer, head int) *mat.Dense {
	return Dense(t[layer][head])
}

// Dense copies a square or rectangular [][]float64 into a *mat.Dense.
// It returns nil for empty or ragged input.
func Dense(m [][]float64) *mat.Dense {
	if len(m) == 0 || len(m[0]) == 0 {
		return nil
	}
	cols := len(m[0])
	data := make([]float64, 0, len(m)*cols)
	for _, row := range m {
		if len(row) != cols {
			return nil
		}
		data = append(data, row...)
	}
	return mat.NewDense(len(m), cols, data)
}

// Rows converts a dense matrix back to nested rows.
func Rows(d mat.Matrix) [][]float64 {
	r, c := d.Dims()
	out := make([][]float64, r)
	for i := range out {
		out[i] = make([]float64, c)
		for j := range out[i] {
			out[i][j] = d.At(i, j)
		}
	}
	return out
}
