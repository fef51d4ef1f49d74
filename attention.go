package main

// Attention traces are the data contract between the model core and any
// collaborator that wants to render attention: per layer and head, the
// softmax weight row recorded at each query position.
//
// Rows are ragged by construction — at query position t the model has only
// t+1 cached keys — so a row's length encodes its causal horizon. Dense()
// pads rows into a rectangular matrix with exact zeros above the diagonal
// for consumers that want a full query×key grid.

// HeadTrace is one head's recorded weight matrix in dense form.
type HeadTrace struct {
	Layer   int
	Head    int
	Weights [][]float64 // [query][key], zero for key > query
}

// AttentionTrace accumulates attention weight rows across the positions of
// one forward sequence (one training document or one generated sample).
type AttentionTrace struct {
	rows [][][][]float64 // [layer][head][query] -> weights over keys 0..query
}

// NewAttentionTrace creates an empty trace for a model shape.
func NewAttentionTrace(numLayers, numHeads int) *AttentionTrace {
	tr := &AttentionTrace{rows: make([][][][]float64, numLayers)}
	for l := range tr.rows {
		tr.rows[l] = make([][][]float64, numHeads)
	}
	return tr
}

// AddRow appends one query position's weight row for a layer/head.
func (tr *AttentionTrace) AddRow(layer, head int, row []float64) {
	tr.rows[layer][head] = append(tr.rows[layer][head], row)
}

// NumLayers returns the layer count the trace was shaped for.
func (tr *AttentionTrace) NumLayers() int { return len(tr.rows) }

// NumHeads returns the head count the trace was shaped for.
func (tr *AttentionTrace) NumHeads() int {
	if len(tr.rows) == 0 {
		return 0
	}
	return len(tr.rows[0])
}

// Positions returns the number of query positions recorded.
func (tr *AttentionTrace) Positions() int {
	if tr.NumLayers() == 0 || tr.NumHeads() == 0 {
		return 0
	}
	return len(tr.rows[0][0])
}

// Rows returns the ragged weight rows for one layer/head.
func (tr *AttentionTrace) Rows(layer, head int) [][]float64 {
	return tr.rows[layer][head]
}

// Dense returns the weight matrix for one layer/head as a square
// positions×positions grid, padding key positions beyond each query with
// exact zeros.
func (tr *AttentionTrace) Dense(layer, head int) [][]float64 {
	src := tr.rows[layer][head]
	n := len(src)
	out := make([][]float64, n)
	for q := range out {
		out[q] = make([]float64, n)
		copy(out[q], src[q])
	}
	return out
}

// Heads flattens the trace into the per-head contract records consumed by
// visualization collaborators, in (layer, head) order.
func (tr *AttentionTrace) Heads() []HeadTrace {
	heads := make([]HeadTrace, 0, tr.NumLayers()*tr.NumHeads())
	for l := 0; l < tr.NumLayers(); l++ {
		for h := 0; h < tr.NumHeads(); h++ {
			heads = append(heads, HeadTrace{Layer: l, Head: h, Weights: tr.Dense(l, h)})
		}
	}
	return heads
}
