package main

// ===========================================================================
// WHAT'S GOING ON HERE
// ===========================================================================
//
// This file implements the training loop: one document per step, mean
// cross-entropy over its positions, one backward pass, one Adam update.
//
// A STEP, END TO END:
//
//   1. Pick the next document by cycling through the pre-shuffled corpus
//      (step mod corpus size) — every document is visited equally often,
//      in an order fixed by the seed.
//   2. Encode it (marker, characters, marker) and run the forward pass
//      position by position, threading one KV cache across the document.
//   3. At each position, take -log p(true next token) under that position's
//      softmax; average into a single scalar loss node.
//   4. One backward pass gives every parameter its gradient.
//   5. Adam update with bias correction, then zero the gradients and
//      truncate the graph back to the parameters.
//
// Each step is atomic with respect to model state: parameters are only
// touched in phase 5, after the backward pass has completed. A caller
// driving training one step per tick can stop between steps at any time.
//
// WHY ADAM:
//
// Plain SGD needs careful per-layer learning rates to train even a toy
// transformer. Adam normalizes each parameter's step by a running estimate
// of its gradient magnitude (second moment) and smooths direction with a
// running mean (first moment), which makes one global learning rate work
// across embeddings, attention, and feed-forward weights alike. The bias
// correction terms counteract the zero-initialized moments during the
// first few dozen steps.
//
// The learning rate decays linearly from its base value to a floor as the
// step count approaches the configured total — large early steps while the
// loss landscape is steep, small late steps to settle.
//
// ===========================================================================

import (
	"fmt"
	"math"
)

// TrainConfig holds optimization hyperparameters.
type TrainConfig struct {
	LearningRate    float64
	MinLearningRate float64 // decay floor
	Beta1           float64 // first-moment decay
	Beta2           float64 // second-moment decay
	Epsilon         float64 // denominator fuzz
	NumSteps        int     // target step count the decay schedule aims at
}

// DefaultTrainConfig returns hyperparameters tuned for the default tiny
// architecture.
func DefaultTrainConfig() TrainConfig {
	return TrainConfig{
		LearningRate:    0.01,
		MinLearningRate: 1e-4,
		Beta1:           0.85,
		Beta2:           0.99,
		Epsilon:         1e-8,
		NumSteps:        1000,
	}
}

// Validate checks the hyperparameters for internal consistency.
func (c TrainConfig) Validate() error {
	if c.LearningRate <= 0 || c.NumSteps < 1 {
		return fmt.Errorf("train config: need positive learning rate and at least one step")
	}
	if c.MinLearningRate < 0 || c.MinLearningRate > c.LearningRate {
		return fmt.Errorf("train config: learning-rate floor %g outside (0, %g]", c.MinLearningRate, c.LearningRate)
	}
	if c.Beta1 < 0 || c.Beta1 >= 1 || c.Beta2 < 0 || c.Beta2 >= 1 {
		return fmt.Errorf("train config: betas must be in [0, 1)")
	}
	return nil
}

// StepResult is the per-step record handed to drivers and visualization
// collaborators.
type StepResult struct {
	Loss      float64
	Step      int    // step count after this step
	Document  string // the document trained on
	Attention *AttentionTrace
}

// Trainer performs gradient steps on a model. It owns the Adam moment
// accumulators and the shuffled corpus order. Not safe for concurrent use.
type Trainer struct {
	cfg   TrainConfig
	g     *Graph
	model *Model
	tok   *Tokenizer
	docs  []string

	m, v []float64 // Adam first/second moments, one per parameter
	step int

	// TraceAttention records attention weights into each StepResult.
	// Off by default; traces are produced on demand only.
	TraceAttention bool
}

// NewTrainer shuffles a copy of the corpus with the session generator and
// prepares optimizer state.
func NewTrainer(model *Model, tok *Tokenizer, corpus []string, cfg TrainConfig, rng *RNG) (*Trainer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(corpus) == 0 {
		return nil, fmt.Errorf("trainer: empty corpus")
	}

	docs := append([]string(nil), corpus...)
	rng.Shuffle(len(docs), func(i, j int) { docs[i], docs[j] = docs[j], docs[i] })

	n := len(model.Params())
	return &Trainer{
		cfg:   cfg,
		g:     model.Graph(),
		model: model,
		tok:   tok,
		docs:  docs,
		m:     make([]float64, n),
		v:     make([]float64, n),
	}, nil
}

// StepCount returns the number of completed steps.
func (t *Trainer) StepCount() int { return t.step }

// Docs returns the shuffled training order (read-only view for drivers).
func (t *Trainer) Docs() []string { return t.docs }

// learningRate returns the linearly decayed rate for a step index.
func (t *Trainer) learningRate(step int) float64 {
	frac := float64(step) / float64(t.cfg.NumSteps)
	if frac > 1 {
		frac = 1
	}
	return t.cfg.MinLearningRate + (t.cfg.LearningRate-t.cfg.MinLearningRate)*(1-frac)
}

// Step runs one full training step and returns its result. On error the
// model is unchanged and the step does not count; the caller decides
// whether to continue — there are no retries here.
func (t *Trainer) Step() (StepResult, error) {
	g := t.g
	doc := t.docs[t.step%len(t.docs)]

	ids, err := t.tok.Encode(doc)
	if err != nil {
		return StepResult{}, fmt.Errorf("trainer: step %d: %w", t.step, err)
	}

	// Number of prediction positions: every id predicts its successor,
	// truncated to the context window.
	n := len(ids) - 1
	if n > t.model.Config().ContextSize {
		n = t.model.Config().ContextSize
	}

	cache := t.model.NewCache()
	var trace *AttentionTrace
	if t.TraceAttention {
		trace = t.model.NewTrace()
	}

	// Forward over the document, accumulating per-position negative log
	// likelihood of the true next token.
	total := g.Const(0)
	for pos := 0; pos < n; pos++ {
		logits := t.model.Forward(ids[pos], pos, cache, trace)
		probs := softmax(g, logits)
		total = g.Add(total, g.Neg(g.Log(probs[ids[pos+1]])))
	}
	loss := g.Div(total, g.Const(float64(n)))
	lossVal := g.Data(loss)

	g.Backward(loss)

	// Adam update. Bias correction uses the 1-based step index.
	params := t.model.Params()
	lr := t.learningRate(t.step)
	tt := float64(t.step + 1)
	c1 := 1 - math.Pow(t.cfg.Beta1, tt)
	c2 := 1 - math.Pow(t.cfg.Beta2, tt)
	for i, p := range params {
		grad := g.Grad(p)
		t.m[i] = t.cfg.Beta1*t.m[i] + (1-t.cfg.Beta1)*grad
		t.v[i] = t.cfg.Beta2*t.v[i] + (1-t.cfg.Beta2)*grad*grad
		mHat := t.m[i] / c1
		vHat := t.v[i] / c2
		g.SetData(p, g.Data(p)-lr*mHat/(math.Sqrt(vHat)+t.cfg.Epsilon))
	}

	g.ZeroGrad(params)
	g.Reset()
	t.step++

	return StepResult{
		Loss:      lossVal,
		Step:      t.step,
		Document:  doc,
		Attention: trace,
	}, nil
}
