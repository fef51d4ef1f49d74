package main

// ===========================================================================
// GENERATION
// ===========================================================================
//
// Autoregressive sampling: start from the start/end marker at position 0,
// run the forward pass, sample the next token from the temperature-scaled
// softmax, feed it back in. Stop when the model samples the marker again
// (it has decided the document is over) or the context window fills up.
//
// Temperature divides the logits before the softmax:
//
//   t -> 0   sharpens towards greedy argmax decoding
//   t = 1    samples the model's actual distribution
//   t >> 1   flattens towards uniform noise
//
// Zero and negative temperatures are clamped to a small positive floor so
// "temperature 0" behaves as greedy decoding instead of dividing by zero.
//
// Each sample runs against a fresh KV cache and the transient graph nodes
// are truncated afterwards; only the parameters persist between calls.
// Batch sampling continues the same generator stream from sample to
// sample, so a batch is reproducible as a sequence for a given seed.
//
// ===========================================================================

import "fmt"

// minTemperature is the clamping floor for temperature-scaled sampling.
const minTemperature = 1e-4

// SampleResult is the per-sample record handed to UI collaborators.
type SampleResult struct {
	Text      string   // decoded text, markers dropped
	TokenIDs  []int    // raw sampled ids, including a terminating marker if drawn
	Chars     []string // printable form of TokenIDs
	Attention *AttentionTrace
}

// Generator samples documents from a trained model. Not safe for
// concurrent use; it shares the session's generator stream.
type Generator struct {
	g     *Graph
	model *Model
	tok   *Tokenizer
	rng   *RNG

	// TraceAttention records attention weights into each SampleResult.
	TraceAttention bool
}

// NewGenerator returns a sampler over the model's vocabulary.
func NewGenerator(model *Model, tok *Tokenizer, rng *RNG) *Generator {
	return &Generator{g: model.Graph(), model: model, tok: tok, rng: rng}
}

// Sample draws one document at the given temperature.
func (gen *Generator) Sample(temperature float64) (SampleResult, error) {
	if temperature < minTemperature {
		temperature = minTemperature
	}

	g := gen.g
	defer g.Reset() // drop this sample's graph nodes, keep parameters

	cache := gen.model.NewCache()
	var trace *AttentionTrace
	if gen.TraceAttention {
		trace = gen.model.NewTrace()
	}

	marker := gen.tok.Marker()
	token := marker
	var ids []int

	temp := g.Const(temperature)
	for pos := 0; pos < gen.model.Config().ContextSize; pos++ {
		logits := gen.model.Forward(token, pos, cache, trace)

		scaled := make([]Val, len(logits))
		for i, l := range logits {
			scaled[i] = g.Div(l, temp)
		}
		probs := softmax(g, scaled)

		weights := make([]float64, len(probs))
		for i, p := range probs {
			weights[i] = g.Data(p)
		}
		next, err := gen.rng.WeightedChoice(weights)
		if err != nil {
			return SampleResult{}, fmt.Errorf("generate: position %d: %w", pos, err)
		}

		ids = append(ids, next)
		if next == marker {
			break
		}
		token = next
	}

	chars := make([]string, len(ids))
	for i, id := range ids {
		chars[i], _ = gen.tok.Char(id)
	}

	return SampleResult{
		Text:      gen.tok.Decode(ids),
		TokenIDs:  ids,
		Chars:     chars,
		Attention: trace,
	}, nil
}

// SampleN draws count documents in sequence against the shared generator
// stream. The batch is reproducible as a whole for a fixed seed; the
// samples are not independently re-seeded.
func (gen *Generator) SampleN(count int, temperature float64) ([]SampleResult, error) {
	if count < 1 {
		return nil, fmt.Errorf("generate: sample count must be >= 1, got %d", count)
	}
	out := make([]SampleResult, 0, count)
	for i := 0; i < count; i++ {
		s, err := gen.Sample(temperature)
		if err != nil {
			return out, err
		}
		out = append(out, s)
	}
	return out, nil
}
