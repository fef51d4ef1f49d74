package main

// ===========================================================================
// WHAT'S GOING ON HERE
// ===========================================================================
//
// This file implements the transformer itself: the parameter store and the
// single-token forward pass. The architecture is a minimal decoder-only
// GPT, expressed entirely as scalar graph operations:
//
//   token embedding + position embedding
//     -> rmsnorm
//     -> N × [ rmsnorm -> multi-head causal attention -> residual
//              rmsnorm -> feed-forward (×4, relu) -> residual ]
//     -> linear projection to vocabulary logits
//
// DESIGN CHOICES (all on the "smallest thing that learns" end):
//
//   - RMSNorm without a learned scale: divide by √(mean(x²) + ε), nothing
//     else. With a 16-wide embedding, the learned affine buys nothing.
//   - Heads are contiguous slices of the embedding width. Head h owns
//     dimensions [h·headDim, (h+1)·headDim) of the shared q/k/v projections;
//     no separate per-head weight matrices.
//   - Attention is causal by construction: the current position's key and
//     value enter the cache first, then the query scores every cached
//     position. There is no mask tensor anywhere.
//   - No biases, no dropout, no weight tying. Logits come straight from
//     one final projection.
//
// ONE TOKEN AT A TIME:
//
// Forward processes a single (token, position) pair against a growing KV
// cache. A sequence pass is a loop over positions sharing one cache. This
// is the incremental-decoding formulation used for generation, applied to
// training as well — with scalar ops there is no batching advantage to a
// full-sequence pass, and one code path means training and sampling cannot
// disagree.
//
// REPRODUCIBILITY:
//
// Parameter matrices are created in one fixed order and initialized with
// Gaussian draws from the session generator, so a given seed and vocabulary
// always produce bit-identical starting weights. Collections that would
// iterate in nondeterministic order (maps) are deliberately absent.
//
// ===========================================================================

import (
	"fmt"
	"math"
)

const (
	rmsNormEps = 1e-5
	initStd    = 0.08 // std-dev of the Gaussian used for all weights
	ffnFactor  = 4    // feed-forward expansion factor
)

// Config describes the model architecture.
type Config struct {
	NumLayers   int // transformer blocks
	EmbedDim    int // embedding width, must divide evenly by NumHeads
	NumHeads    int // attention heads per block
	ContextSize int // maximum sequence length, including the start marker
}

// DefaultConfig returns the architecture used by the interactive session:
// small enough to train in seconds on one core.
func DefaultConfig() Config {
	return Config{
		NumLayers:   1,
		EmbedDim:    16,
		NumHeads:    4,
		ContextSize: 16,
	}
}

// Validate checks the configuration for internal consistency.
func (c Config) Validate() error {
	if c.NumLayers < 1 || c.EmbedDim < 1 || c.NumHeads < 1 || c.ContextSize < 2 {
		return fmt.Errorf("config: all dimensions must be positive (context >= 2), got %+v", c)
	}
	if c.EmbedDim%c.NumHeads != 0 {
		return fmt.Errorf("config: embed dim %d not divisible by %d heads", c.EmbedDim, c.NumHeads)
	}
	return nil
}

// layerWeights holds one transformer block's parameter matrices.
type layerWeights struct {
	wq, wk, wv, wo [][]Val // attention projections, embed×embed
	fc1            [][]Val // feed-forward expansion, 4·embed×embed
	fc2            [][]Val // feed-forward contraction, embed×4·embed
}

// Model is the parameter store plus the forward pass. All parameters live
// in the model's Graph below the MarkParams watermark.
type Model struct {
	cfg       Config
	vocabSize int
	g         *Graph

	wte    [][]Val // token embeddings, vocab×embed
	wpe    [][]Val // position embeddings, context×embed
	lmHead [][]Val // output projection, vocab×embed
	layers []layerWeights

	params []Val // flat ordered list read by the optimizer
}

// NewModel creates and Gaussian-initializes a model. Matrices are created
// in a fixed order (wte, wpe, lm_head, then per layer wq, wk, wv, wo, fc1,
// fc2) so a fixed seed yields bit-identical parameters.
func NewModel(g *Graph, cfg Config, vocabSize int, rng *RNG) (*Model, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if vocabSize < 2 {
		return nil, fmt.Errorf("model: vocabulary of %d is too small", vocabSize)
	}

	m := &Model{cfg: cfg, vocabSize: vocabSize, g: g}

	m.wte = m.newMatrix(vocabSize, cfg.EmbedDim, rng)
	m.wpe = m.newMatrix(cfg.ContextSize, cfg.EmbedDim, rng)
	m.lmHead = m.newMatrix(vocabSize, cfg.EmbedDim, rng)

	m.layers = make([]layerWeights, cfg.NumLayers)
	for i := range m.layers {
		m.layers[i] = layerWeights{
			wq:  m.newMatrix(cfg.EmbedDim, cfg.EmbedDim, rng),
			wk:  m.newMatrix(cfg.EmbedDim, cfg.EmbedDim, rng),
			wv:  m.newMatrix(cfg.EmbedDim, cfg.EmbedDim, rng),
			wo:  m.newMatrix(cfg.EmbedDim, cfg.EmbedDim, rng),
			fc1: m.newMatrix(ffnFactor*cfg.EmbedDim, cfg.EmbedDim, rng),
			fc2: m.newMatrix(cfg.EmbedDim, ffnFactor*cfg.EmbedDim, rng),
		}
	}

	g.MarkParams()
	return m, nil
}

// newMatrix allocates a rows×cols parameter matrix, drawing each entry
// from the session generator in row-major order.
func (m *Model) newMatrix(rows, cols int, rng *RNG) [][]Val {
	mat := make([][]Val, rows)
	for r := 0; r < rows; r++ {
		row := make([]Val, cols)
		for c := 0; c < cols; c++ {
			v := m.g.Const(rng.Gauss(0, initStd))
			row[c] = v
			m.params = append(m.params, v)
		}
		mat[r] = row
	}
	return mat
}

// Config returns the architecture configuration.
func (m *Model) Config() Config { return m.cfg }

// VocabSize returns the vocabulary size the model was built for.
func (m *Model) VocabSize() int { return m.vocabSize }

// Graph returns the expression graph owning the model's parameters.
func (m *Model) Graph() *Graph { return m.g }

// Params returns the flat ordered parameter list read by the optimizer.
func (m *Model) Params() []Val { return m.params }

// NewCache returns a KV cache sized for one sequence pass of this model.
func (m *Model) NewCache() *KVCache {
	return NewKVCache(m.cfg.NumLayers, m.cfg.ContextSize)
}

// NewTrace returns an empty attention trace shaped for this model.
func (m *Model) NewTrace() *AttentionTrace {
	return NewAttentionTrace(m.cfg.NumLayers, m.cfg.NumHeads)
}

// linear computes w·x as graph operations: one output scalar per weight row.
func linear(g *Graph, x []Val, w [][]Val) []Val {
	out := make([]Val, len(w))
	for o, row := range w {
		s := g.Const(0)
		for i := range x {
			s = g.Add(s, g.Mul(row[i], x[i]))
		}
		out[o] = s
	}
	return out
}

// rmsNorm scales x by 1/√(mean(x²) + ε). No centering, no learned affine.
func rmsNorm(g *Graph, x []Val) []Val {
	ms := g.Const(0)
	for _, xi := range x {
		ms = g.Add(ms, g.Mul(xi, xi))
	}
	ms = g.Div(ms, g.Const(float64(len(x))))
	scale := g.Pow(g.Add(ms, g.Const(rmsNormEps)), -0.5)

	out := make([]Val, len(x))
	for i, xi := range x {
		out[i] = g.Mul(xi, scale)
	}
	return out
}

// softmax computes a numerically stable softmax over logits: the running
// maximum is subtracted before exponentiation so exp never overflows.
func softmax(g *Graph, logits []Val) []Val {
	maxVal := g.Data(logits[0])
	for _, l := range logits[1:] {
		if d := g.Data(l); d > maxVal {
			maxVal = d
		}
	}

	shift := g.Const(maxVal)
	exps := make([]Val, len(logits))
	total := g.Const(0)
	for i, l := range logits {
		e := g.Exp(g.Sub(l, shift))
		exps[i] = e
		total = g.Add(total, e)
	}

	out := make([]Val, len(logits))
	for i, e := range exps {
		out[i] = g.Div(e, total)
	}
	return out
}

// Forward runs one causal step: given a token id and its position, and the
// cache holding keys/values of all earlier positions, it returns the next-
// token logits. The current position's keys and values are appended to the
// cache before attention reads it.
//
// When trace is non-nil, each head's softmax weight row for this position
// is recorded.
func (m *Model) Forward(token, pos int, cache *KVCache, trace *AttentionTrace) []Val {
	g := m.g
	headDim := m.cfg.EmbedDim / m.cfg.NumHeads
	scale := g.Const(math.Sqrt(float64(headDim)))

	// Token + position embedding, then normalize.
	x := make([]Val, m.cfg.EmbedDim)
	for i := range x {
		x[i] = g.Add(m.wte[token][i], m.wpe[pos][i])
	}
	x = rmsNorm(g, x)

	for li := range m.layers {
		lw := &m.layers[li]

		// --- attention sublayer ---
		residual := x
		x = rmsNorm(g, x)
		q := linear(g, x, lw.wq)
		k := linear(g, x, lw.wk)
		v := linear(g, x, lw.wv)
		cache.Put(li, pos, k, v)

		attnOut := make([]Val, m.cfg.EmbedDim)
		for h := 0; h < m.cfg.NumHeads; h++ {
			lo := h * headDim

			// Scaled dot-product scores against every cached position.
			scores := make([]Val, pos+1)
			for t := 0; t <= pos; t++ {
				kt := cache.Key(li, t)
				dot := g.Const(0)
				for j := 0; j < headDim; j++ {
					dot = g.Add(dot, g.Mul(q[lo+j], kt[lo+j]))
				}
				scores[t] = g.Div(dot, scale)
			}
			weights := softmax(g, scores)

			if trace != nil {
				row := make([]float64, len(weights))
				for t, w := range weights {
					row[t] = g.Data(w)
				}
				trace.AddRow(li, h, row)
			}

			// Weighted sum over cached values.
			for j := 0; j < headDim; j++ {
				s := g.Const(0)
				for t := 0; t <= pos; t++ {
					s = g.Add(s, g.Mul(weights[t], cache.Value(li, t)[lo+j]))
				}
				attnOut[lo+j] = s
			}
		}

		x = linear(g, attnOut, lw.wo)
		for i := range x {
			x[i] = g.Add(x[i], residual[i])
		}

		// --- feed-forward sublayer ---
		residual = x
		x = rmsNorm(g, x)
		hidden := linear(g, x, lw.fc1)
		for i := range hidden {
			hidden[i] = g.ReLU(hidden[i])
		}
		x = linear(g, hidden, lw.fc2)
		for i := range x {
			x[i] = g.Add(x[i], residual[i])
		}
	}

	return linear(g, x, m.lmHead)
}

// LayerSummary is the per-block slice of the parameter breakdown.
type LayerSummary struct {
	Layer       int
	Attention   int // wq + wk + wv + wo
	FeedForward int // fc1 + fc2
	Total       int
}

// Summary is the read-only architecture description exposed to
// visualization and UI collaborators.
type Summary struct {
	EmbedDim    int
	NumHeads    int
	NumLayers   int
	ContextSize int
	VocabSize   int
	TotalParams int

	Embedding int // wte + wpe
	Output    int // lm_head
	PerLayer  []LayerSummary
}

// Summary derives the architecture summary from the configuration.
func (m *Model) Summary() Summary {
	e := m.cfg.EmbedDim
	s := Summary{
		EmbedDim:    e,
		NumHeads:    m.cfg.NumHeads,
		NumLayers:   m.cfg.NumLayers,
		ContextSize: m.cfg.ContextSize,
		VocabSize:   m.vocabSize,
		TotalParams: len(m.params),
		Embedding:   m.vocabSize*e + m.cfg.ContextSize*e,
		Output:      m.vocabSize * e,
	}
	for i := 0; i < m.cfg.NumLayers; i++ {
		attn := 4 * e * e
		ffn := 2 * ffnFactor * e * e
		s.PerLayer = append(s.PerLayer, LayerSummary{
			Layer:       i,
			Attention:   attn,
			FeedForward: ffn,
			Total:       attn + ffn,
		})
	}
	return s
}
